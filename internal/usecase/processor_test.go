package usecase

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/chathy/api/chathy-command-engine/internal/channel"
	"gitlab.com/chathy/api/chathy-command-engine/internal/fallback"
	"gitlab.com/chathy/api/chathy-command-engine/internal/model"
	"gitlab.com/chathy/api/chathy-command-engine/internal/parser"
	"gitlab.com/chathy/api/chathy-command-engine/internal/storage"
	"gitlab.com/chathy/api/chathy-command-engine/pkg/utils"
)

type processorFixture struct {
	processor *Processor
	store     *storage.MemoryStateStore
	auditRepo *storage.MemoryAuditRepo
	dedupe    *DedupeCache
	sender    *captureSender
}

// captureSender records outbound deliveries so tests can assert on them.
type captureSender struct {
	mu   sync.Mutex
	sent []string
}

func (s *captureSender) Send(_ context.Context, _ string, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, text)
	return nil
}

func (s *captureSender) deliveries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

func newProcessorFixture(t *testing.T, bridge *fallback.Bridge) *processorFixture {
	t.Helper()

	store := storage.NewMemoryStateStore()
	profile := &model.TenantProfile{
		ID:             testTenantID,
		BusinessName:   "Serenity Spa & Wellness",
		Phone:          "+15551234567",
		TelegramUserID: "100200300",
		WidgetToken:    "widget-token",
		Onboarded:      true,
	}
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, profile))
	require.NoError(t, store.CreateTenant(ctx, testTenantID, model.SpaFixtureState()))

	auditRepo := storage.NewMemoryAuditRepo()
	audit := NewAuditService(auditRepo, nil, "v1.audit")
	composer := channel.NewComposer()
	executor := NewExecutor(store, audit, composer)
	dedupe := NewDedupeCache(time.Minute, time.Minute)
	t.Cleanup(dedupe.Close)

	sender := &captureSender{}
	registry := channel.NewRegistry(
		channel.NewSMSAdapter(sender),
		channel.NewTelegramAdapter(nil),
		channel.NewWebchatAdapter(nil),
	)

	processor := NewProcessor(NewTenantResolver(store), store, parser.New(), executor,
		bridge, audit, dedupe, composer, registry, 5*time.Second)

	return &processorFixture{processor: processor, store: store, auditRepo: auditRepo, dedupe: dedupe, sender: sender}
}

func inboundSMS(text, messageID string) *model.InboundMessage {
	return &model.InboundMessage{
		SenderKey:        "+15551234567",
		Channel:          model.ChannelSMS,
		Text:             text,
		ChannelMessageID: messageID,
		ReceivedAt:       utils.Now(),
	}
}

func TestProcess_PriceUpdateEndToEnd(t *testing.T) {
	f := newProcessorFixture(t, nil)

	reply := f.processor.Process(context.Background(), inboundSMS("Increase Swedish Massage from $80 to $95", "SM1"))

	assert.Contains(t, reply, "$95.00")
	err := f.store.View(context.Background(), testTenantID, func(state *model.BusinessState) error {
		assert.Equal(t, 95.0, state.Services["s2"].Price)
		return nil
	})
	require.NoError(t, err)
}

func TestProcess_UnknownSenderGetsWelcome(t *testing.T) {
	f := newProcessorFixture(t, nil)

	msg := &model.InboundMessage{
		SenderKey:        "+19998887777",
		Channel:          model.ChannelSMS,
		Text:             "show services",
		ChannelMessageID: "SM2",
	}
	reply := f.processor.Process(context.Background(), msg)

	assert.Contains(t, reply, "Welcome")

	// Nothing was executed or audited for the unknown sender
	page, err := f.auditRepo.List(context.Background(), testTenantID, model.AuditListOptions{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, page.Entries)
}

func TestProcess_RedeliveryIsIdempotent(t *testing.T) {
	f := newProcessorFixture(t, nil)
	ctx := context.Background()

	first := f.processor.Process(ctx, inboundSMS("Increase Swedish Massage from $80 to $95", "SM3"))
	second := f.processor.Process(ctx, inboundSMS("Increase Swedish Massage from $80 to $95", "SM3"))

	// Same reply, and the mutation ran exactly once: a second execution
	// would have been rejected against the already-updated price.
	assert.Equal(t, first, second)
	err := f.store.View(ctx, testTenantID, func(state *model.BusinessState) error {
		assert.Equal(t, 95.0, state.Services["s2"].Price)
		return nil
	})
	require.NoError(t, err)

	page, err := f.auditRepo.List(ctx, testTenantID, model.AuditListOptions{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, page.Entries, 1)

	// The cached reply was re-emitted to the sender, not just returned.
	deliveries := f.sender.deliveries()
	require.Len(t, deliveries, 2)
	assert.Equal(t, deliveries[0], deliveries[1])
}

func TestProcess_ConcurrentDuplicateDeliveries(t *testing.T) {
	f := newProcessorFixture(t, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.processor.Process(ctx, inboundSMS("Increase Swedish Massage from $80 to $95", "SM9"))
		}()
	}
	wg.Wait()

	// Only one delivery got past the dedupe reservation: one mutation, one
	// ledger entry. Extra executions would have been rejected against the
	// updated price and appended rejection entries.
	err := f.store.View(ctx, testTenantID, func(state *model.BusinessState) error {
		assert.Equal(t, 95.0, state.Services["s2"].Price)
		return nil
	})
	require.NoError(t, err)

	page, err := f.auditRepo.List(ctx, testTenantID, model.AuditListOptions{Limit: 20})
	require.NoError(t, err)
	assert.Len(t, page.Entries, 1)
}

func TestProcess_FallbackRoutesToBackend(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"response":"Your busiest day is Saturday."}`))
	}))
	defer backend.Close()

	bridge := fallback.NewBridge(backend.URL, "/api/chat", "", 2*time.Second, 0, 10*time.Millisecond)
	f := newProcessorFixture(t, bridge)

	reply := f.processor.Process(context.Background(), inboundSMS("what's my busiest day?", "SM4"))

	assert.Equal(t, "Your busiest day is Saturday.", reply)

	page, err := f.auditRepo.List(context.Background(), testTenantID, model.AuditListOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, model.ActionFallback, page.Entries[0].Action)
	assert.Equal(t, "ok", page.Entries[0].Outcome)
}

func TestProcess_FallbackUnreachable(t *testing.T) {
	// Backend that is not listening
	bridge := fallback.NewBridge("http://127.0.0.1:1", "/api/chat", "", 500*time.Millisecond, 0, 10*time.Millisecond)
	f := newProcessorFixture(t, bridge)

	reply := f.processor.Process(context.Background(), inboundSMS("tell me a joke", "SM5"))

	assert.Contains(t, reply, "Connection error")

	page, err := f.auditRepo.List(context.Background(), testTenantID, model.AuditListOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, "unavailable", page.Entries[0].Outcome)
}

func TestProcess_FallbackBadResponse(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer backend.Close()

	bridge := fallback.NewBridge(backend.URL, "/api/chat", "", 2*time.Second, 0, 10*time.Millisecond)
	f := newProcessorFixture(t, bridge)

	reply := f.processor.Process(context.Background(), inboundSMS("tell me a joke", "SM6"))

	assert.Contains(t, reply, "Backend error")
}

func TestProcess_ClearChat(t *testing.T) {
	f := newProcessorFixture(t, nil)

	reply := f.processor.Process(context.Background(), inboundSMS("clear chat", "SM7"))

	assert.Contains(t, reply, "Chat cleared")

	page, err := f.auditRepo.List(context.Background(), testTenantID, model.AuditListOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, string(model.KindClearChat), page.Entries[0].Action)
}

func TestProcess_TenantIsolation(t *testing.T) {
	f := newProcessorFixture(t, nil)
	ctx := context.Background()

	other := &model.TenantProfile{
		ID:        "biz_other",
		Phone:     "+15559990000",
		Onboarded: true,
	}
	require.NoError(t, f.store.Save(ctx, other))
	require.NoError(t, f.store.CreateTenant(ctx, other.ID, model.SpaFixtureState()))

	f.processor.Process(ctx, inboundSMS("Increase Swedish Massage from $80 to $95", "SM8"))

	// The other tenant's state is untouched
	err := f.store.View(ctx, other.ID, func(state *model.BusinessState) error {
		assert.Equal(t, 80.0, state.Services["s2"].Price)
		return nil
	})
	require.NoError(t, err)
}
