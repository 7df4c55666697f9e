package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gitlab.com/chathy/api/chathy-command-engine/internal/channel"
	"gitlab.com/chathy/api/chathy-command-engine/internal/model"
	"gitlab.com/chathy/api/chathy-command-engine/internal/storage"
	"gitlab.com/chathy/api/chathy-command-engine/pkg/logger"
)

func init() {
	// Initialize logger for tests
	logger.Log = zap.NewNop()
}

const testTenantID = "biz_test"

func newExecutorFixture(t *testing.T) (*Executor, *storage.MemoryStateStore, storage.AuditRepo) {
	t.Helper()
	store := storage.NewMemoryStateStore()
	require.NoError(t, store.CreateTenant(context.Background(), testTenantID, model.SpaFixtureState()))

	auditRepo := storage.NewMemoryAuditRepo()
	audit := NewAuditService(auditRepo, nil, "v1.audit")
	return NewExecutor(store, audit, channel.NewComposer()), store, auditRepo
}

func TestExecute_PriceUpdate_Applied(t *testing.T) {
	exec, store, auditRepo := newExecutorFixture(t)
	ctx := context.Background()

	cmd := model.Command{Kind: model.KindPriceUpdate, PriceUpdate: &model.PriceUpdate{
		ServiceName: "Swedish Massage", OldPrice: 80, NewPrice: 95,
	}}
	result, err := exec.Execute(ctx, testTenantID, cmd, "sms")

	require.NoError(t, err)
	assert.Equal(t, model.OutcomeApplied, result.Outcome)
	assert.Contains(t, result.HumanMessage, "Swedish Massage")
	assert.Contains(t, result.HumanMessage, "$95.00")

	// State actually changed
	err = store.View(ctx, testTenantID, func(state *model.BusinessState) error {
		assert.Equal(t, 95.0, state.Services["s2"].Price)
		return nil
	})
	require.NoError(t, err)

	// Ledger entry appended after commit
	page, err := auditRepo.List(ctx, testTenantID, model.AuditListOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, string(model.KindPriceUpdate), page.Entries[0].Action)
	assert.Equal(t, string(model.OutcomeApplied), page.Entries[0].Outcome)
	assert.Equal(t, "sms", page.Entries[0].Source)
}

func TestExecute_PriceUpdate_SingleAmountFillsOldPrice(t *testing.T) {
	exec, store, _ := newExecutorFixture(t)
	ctx := context.Background()

	cmd := model.Command{Kind: model.KindPriceUpdate, PriceUpdate: &model.PriceUpdate{
		ServiceName: "Deep Tissue Massage", OldPrice: -1, NewPrice: 110,
	}}
	result, err := exec.Execute(ctx, testTenantID, cmd, "webchat")

	require.NoError(t, err)
	assert.Equal(t, model.OutcomeApplied, result.Outcome)
	assert.Contains(t, result.HumanMessage, "$100.00")
	assert.Contains(t, result.HumanMessage, "$110.00")

	err = store.View(ctx, testTenantID, func(state *model.BusinessState) error {
		assert.Equal(t, 110.0, state.Services["s3"].Price)
		return nil
	})
	require.NoError(t, err)
}

func TestExecute_PriceUpdate_StaleOldPriceRejected(t *testing.T) {
	exec, store, auditRepo := newExecutorFixture(t)
	ctx := context.Background()

	cmd := model.Command{Kind: model.KindPriceUpdate, PriceUpdate: &model.PriceUpdate{
		ServiceName: "Swedish Massage", OldPrice: 70, NewPrice: 95,
	}}
	result, err := exec.Execute(ctx, testTenantID, cmd, "sms")

	require.NoError(t, err)
	assert.Equal(t, model.OutcomeRejected, result.Outcome)
	assert.NotEmpty(t, result.HumanMessage)

	// Rejection leaves state untouched
	err = store.View(ctx, testTenantID, func(state *model.BusinessState) error {
		assert.Equal(t, 80.0, state.Services["s2"].Price)
		return nil
	})
	require.NoError(t, err)

	page, err := auditRepo.List(ctx, testTenantID, model.AuditListOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, string(model.OutcomeRejected), page.Entries[0].Outcome)
}

func TestExecute_PriceUpdate_NegativePriceRejected(t *testing.T) {
	exec, store, _ := newExecutorFixture(t)

	cmd := model.Command{Kind: model.KindPriceUpdate, PriceUpdate: &model.PriceUpdate{
		ServiceName: "Swedish Massage", OldPrice: -1, NewPrice: -10,
	}}
	result, err := exec.Execute(context.Background(), testTenantID, cmd, "sms")

	require.NoError(t, err)
	assert.Equal(t, model.OutcomeRejected, result.Outcome)

	err = store.View(context.Background(), testTenantID, func(state *model.BusinessState) error {
		assert.Equal(t, 80.0, state.Services["s2"].Price)
		return nil
	})
	require.NoError(t, err)
}

func TestExecute_PriceUpdate_ZeroPriceRejected(t *testing.T) {
	exec, store, auditRepo := newExecutorFixture(t)
	ctx := context.Background()

	cmd := model.Command{Kind: model.KindPriceUpdate, PriceUpdate: &model.PriceUpdate{
		ServiceName: "Swedish Massage", OldPrice: -1, NewPrice: 0,
	}}
	result, err := exec.Execute(ctx, testTenantID, cmd, "sms")

	require.NoError(t, err)
	assert.Equal(t, model.OutcomeRejected, result.Outcome)

	err = store.View(ctx, testTenantID, func(state *model.BusinessState) error {
		assert.Equal(t, 80.0, state.Services["s2"].Price)
		return nil
	})
	require.NoError(t, err)

	page, err := auditRepo.List(ctx, testTenantID, model.AuditListOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, string(model.OutcomeRejected), page.Entries[0].Outcome)
}

func TestExecute_PriceUpdate_UnknownService(t *testing.T) {
	exec, _, auditRepo := newExecutorFixture(t)

	cmd := model.Command{Kind: model.KindPriceUpdate, PriceUpdate: &model.PriceUpdate{
		ServiceName: "Paraffin Wrap", OldPrice: 50, NewPrice: 60,
	}}
	result, err := exec.Execute(context.Background(), testTenantID, cmd, "telegram")

	require.NoError(t, err)
	assert.Equal(t, model.OutcomeNotFound, result.Outcome)
	assert.Contains(t, result.HumanMessage, "Paraffin Wrap")

	page, err := auditRepo.List(context.Background(), testTenantID, model.AuditListOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, string(model.OutcomeNotFound), page.Entries[0].Outcome)
}

func TestExecute_HoursUpdate_Closure(t *testing.T) {
	exec, store, _ := newExecutorFixture(t)
	ctx := context.Background()

	cmd := model.Command{Kind: model.KindHoursUpdate, HoursUpdate: &model.HoursUpdate{
		Day: "friday", IsClosed: true,
	}}
	result, err := exec.Execute(ctx, testTenantID, cmd, "sms")

	require.NoError(t, err)
	assert.Equal(t, model.OutcomeApplied, result.Outcome)

	err = store.View(ctx, testTenantID, func(state *model.BusinessState) error {
		assert.True(t, state.Hours["friday"].IsClosed)
		return nil
	})
	require.NoError(t, err)
}

func TestExecute_HoursUpdate_InvalidWindowRejected(t *testing.T) {
	exec, store, _ := newExecutorFixture(t)
	ctx := context.Background()

	cmd := model.Command{Kind: model.KindHoursUpdate, HoursUpdate: &model.HoursUpdate{
		Day: "monday", Open: 17 * 60, Close: 9 * 60,
	}}
	result, err := exec.Execute(ctx, testTenantID, cmd, "sms")

	require.NoError(t, err)
	assert.Equal(t, model.OutcomeRejected, result.Outcome)

	// Monday keeps its fixture hours
	err = store.View(ctx, testTenantID, func(state *model.BusinessState) error {
		assert.False(t, state.Hours["monday"].IsClosed)
		assert.Equal(t, "09:00", state.Hours["monday"].Open.String())
		return nil
	})
	require.NoError(t, err)
}

func TestExecute_ServiceAdd_Applied(t *testing.T) {
	exec, store, _ := newExecutorFixture(t)
	ctx := context.Background()

	cmd := model.Command{Kind: model.KindServiceAdd, ServiceAdd: &model.ServiceAdd{
		Name: "Hot Stone Therapy", Price: 150, DurationMinutes: 90,
	}}
	result, err := exec.Execute(ctx, testTenantID, cmd, "webchat")

	require.NoError(t, err)
	assert.Equal(t, model.OutcomeApplied, result.Outcome)

	err = store.View(ctx, testTenantID, func(state *model.BusinessState) error {
		svc, ok := state.FindServiceByName("Hot Stone Therapy")
		require.True(t, ok)
		assert.Equal(t, 150.0, svc.Price)
		assert.Equal(t, 90, svc.DurationMinutes)
		assert.True(t, svc.IsActive)
		assert.NotEmpty(t, svc.ID)
		return nil
	})
	require.NoError(t, err)
}

func TestExecute_ServiceAdd_DuplicateNameRejected(t *testing.T) {
	exec, store, _ := newExecutorFixture(t)

	cmd := model.Command{Kind: model.KindServiceAdd, ServiceAdd: &model.ServiceAdd{
		Name: "swedish massage", Price: 90, DurationMinutes: 60,
	}}
	result, err := exec.Execute(context.Background(), testTenantID, cmd, "sms")

	require.NoError(t, err)
	assert.Equal(t, model.OutcomeRejected, result.Outcome)

	err = store.View(context.Background(), testTenantID, func(state *model.BusinessState) error {
		assert.Len(t, state.Services, 3)
		return nil
	})
	require.NoError(t, err)
}

func TestExecute_Query_Services(t *testing.T) {
	exec, _, auditRepo := newExecutorFixture(t)

	cmd := model.Command{Kind: model.KindQuery, Query: model.QueryServices}
	result, err := exec.Execute(context.Background(), testTenantID, cmd, "sms")

	require.NoError(t, err)
	assert.Equal(t, model.OutcomeApplied, result.Outcome)
	assert.Contains(t, result.HumanMessage, "Full Facial Treatment")
	assert.Contains(t, result.HumanMessage, "$120.00")
	assert.Contains(t, result.HumanMessage, "Swedish Massage")

	// Queries do not reach the ledger
	page, err := auditRepo.List(context.Background(), testTenantID, model.AuditListOptions{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, page.Entries)
}

func TestExecute_Query_Inventory_FlagsLowStock(t *testing.T) {
	exec, _, _ := newExecutorFixture(t)

	cmd := model.Command{Kind: model.KindQuery, Query: model.QueryInventory}
	result, err := exec.Execute(context.Background(), testTenantID, cmd, "sms")

	require.NoError(t, err)
	assert.Contains(t, result.HumanMessage, "Facial Cream Premium")
	assert.Contains(t, result.HumanMessage, "running low")
}

func TestExecute_Help(t *testing.T) {
	exec, _, auditRepo := newExecutorFixture(t)

	result, err := exec.Execute(context.Background(), testTenantID, model.Command{Kind: model.KindHelp}, "sms")

	require.NoError(t, err)
	assert.Equal(t, model.OutcomeApplied, result.Outcome)
	assert.Contains(t, result.HumanMessage, "Price updates")

	// Help requests are logged as interactions
	page, err := auditRepo.List(context.Background(), testTenantID, model.AuditListOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, string(model.KindHelp), page.Entries[0].Action)
}
