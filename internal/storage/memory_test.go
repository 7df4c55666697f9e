package storage

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/chathy/api/chathy-command-engine/internal/apperrors"
	"gitlab.com/chathy/api/chathy-command-engine/internal/model"
)

func TestMemoryStateStore_CreateAndMutate(t *testing.T) {
	store := NewMemoryStateStore()
	ctx := context.Background()

	require.NoError(t, store.CreateTenant(ctx, "t1", model.SpaFixtureState()))
	assert.ErrorIs(t, store.CreateTenant(ctx, "t1", nil), apperrors.ErrDuplicate)

	err := store.Mutate(ctx, "t1", func(state *model.BusinessState) error {
		svc := state.Services["s2"]
		svc.Price = 95
		state.Services["s2"] = svc
		return nil
	})
	require.NoError(t, err)

	err = store.View(ctx, "t1", func(state *model.BusinessState) error {
		assert.Equal(t, 95.0, state.Services["s2"].Price)
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryStateStore_UnknownTenant(t *testing.T) {
	store := NewMemoryStateStore()

	err := store.View(context.Background(), "missing", func(*model.BusinessState) error { return nil })
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	err = store.Mutate(context.Background(), "missing", func(*model.BusinessState) error { return nil })
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestMemoryStateStore_ConcurrentMutationsSerialize(t *testing.T) {
	store := NewMemoryStateStore()
	ctx := context.Background()

	state := model.NewBusinessState()
	state.Services["s1"] = model.Service{ID: "s1", Name: "Massage", Price: 0, IsActive: true}
	require.NoError(t, store.CreateTenant(ctx, "t1", state))

	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_ = store.Mutate(ctx, "t1", func(s *model.BusinessState) error {
				svc := s.Services["s1"]
				svc.Price++
				s.Services["s1"] = svc
				return nil
			})
		}()
	}
	wg.Wait()

	err := store.View(ctx, "t1", func(s *model.BusinessState) error {
		assert.Equal(t, float64(workers), s.Services["s1"].Price)
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryStateStore_SenderIndex(t *testing.T) {
	store := NewMemoryStateStore()
	ctx := context.Background()

	profile := model.NewTenantProfile(&model.TenantProfile{
		ID:             "t1",
		Phone:          "+15551234567",
		TelegramUserID: "100200300",
		WidgetToken:    "tok-1",
	})
	require.NoError(t, store.Save(ctx, profile))

	found, err := store.FindBySenderKey(ctx, model.ChannelSMS, "+15551234567")
	require.NoError(t, err)
	assert.Equal(t, "t1", found.ID)

	found, err = store.FindBySenderKey(ctx, model.ChannelTelegram, "100200300")
	require.NoError(t, err)
	assert.Equal(t, "t1", found.ID)

	_, err = store.FindBySenderKey(ctx, model.ChannelWebchat, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestMemoryStateStore_SaveReindexesSenderKeys(t *testing.T) {
	store := NewMemoryStateStore()
	ctx := context.Background()

	profile := model.NewTenantProfile(&model.TenantProfile{ID: "t1", Phone: "+15551111111"})
	require.NoError(t, store.Save(ctx, profile))

	profile.Phone = "+15552222222"
	require.NoError(t, store.Save(ctx, profile))

	_, err := store.FindBySenderKey(ctx, model.ChannelSMS, "+15551111111")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	found, err := store.FindBySenderKey(ctx, model.ChannelSMS, "+15552222222")
	require.NoError(t, err)
	assert.Equal(t, "t1", found.ID)
}

func TestMemoryStateStore_FindByIDReturnsCopy(t *testing.T) {
	store := NewMemoryStateStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, model.NewTenantProfile(&model.TenantProfile{ID: "t1", BusinessName: "Serenity Spa"})))

	first, err := store.FindByID(ctx, "t1")
	require.NoError(t, err)
	first.BusinessName = "mutated"

	second, err := store.FindByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "Serenity Spa", second.BusinessName)
}
