package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gitlab.com/chathy/api/chathy-command-engine/internal/channel"
	"gitlab.com/chathy/api/chathy-command-engine/internal/fallback"
	"gitlab.com/chathy/api/chathy-command-engine/internal/model"
	"gitlab.com/chathy/api/chathy-command-engine/internal/parser"
	"gitlab.com/chathy/api/chathy-command-engine/internal/storage"
	"gitlab.com/chathy/api/chathy-command-engine/internal/usecase"
	"gitlab.com/chathy/api/chathy-command-engine/pkg/logger"
)

func init() {
	// Initialize logger for tests
	logger.Log = zap.NewNop()
	gin.SetMode(gin.TestMode)
}

const testTenantID = "biz_test"

// syncWorker runs tasks inline so webhook tests can assert on the outcome.
type syncWorker struct {
	processor *usecase.Processor
}

func (w *syncWorker) Submit(task usecase.MessageTask) error {
	w.processor.Process(task.Ctx, task.Message)
	return nil
}

func (w *syncWorker) Stop() {}

type apiFixture struct {
	engine *gin.Engine
	store  *storage.MemoryStateStore
	audit  *usecase.AuditService
}

func newAPIFixture(t *testing.T, bridge *fallback.Bridge) *apiFixture {
	t.Helper()

	store := storage.NewMemoryStateStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, &model.TenantProfile{
		ID:             testTenantID,
		BusinessName:   "Serenity Spa & Wellness",
		BusinessType:   "spa",
		Phone:          "+15551234567",
		TelegramUserID: "100200300",
		WidgetToken:    "widget-tok",
		Onboarded:      true,
	}))
	require.NoError(t, store.CreateTenant(ctx, testTenantID, model.SpaFixtureState()))

	audit := usecase.NewAuditService(storage.NewMemoryAuditRepo(), nil, "v1.audit")
	composer := channel.NewComposer()
	executor := usecase.NewExecutor(store, audit, composer)
	dedupe := usecase.NewDedupeCache(time.Minute, time.Minute)
	t.Cleanup(dedupe.Close)

	registry := channel.NewRegistry(
		channel.NewSMSAdapter(nil),
		channel.NewTelegramAdapter(nil),
		channel.NewWebchatAdapter(nil),
	)
	processor := usecase.NewProcessor(usecase.NewTenantResolver(store), store, parser.New(),
		executor, bridge, audit, dedupe, composer, registry, 5*time.Second)

	handler := NewHandler(registry, &syncWorker{processor: processor}, store, store, audit)
	engine := gin.New()
	handler.RegisterRoutes(engine)

	return &apiFixture{engine: engine, store: store, audit: audit}
}

func (f *apiFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

func tenantRequest(method, path string, body []byte) *http.Request {
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Tenant-ID", testTenantID)
	return req
}

func TestWebhookSMS_AppliesCommand(t *testing.T) {
	f := newAPIFixture(t, nil)

	form := url.Values{}
	form.Set("From", "+15551234567")
	form.Set("Body", "Increase Swedish Massage from $80 to $95")
	form.Set("MessageSid", "SM100")

	req := httptest.NewRequest(http.MethodPost, "/webhook/sms", strings.NewReader(form.Encode()))
	rec := f.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<Response></Response>", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/xml")

	err := f.store.View(context.Background(), testTenantID, func(state *model.BusinessState) error {
		assert.Equal(t, 95.0, state.Services["s2"].Price)
		return nil
	})
	require.NoError(t, err)
}

func TestWebhookSMS_MalformedPayloadStillAcked(t *testing.T) {
	f := newAPIFixture(t, nil)

	// Missing From: the payload is dropped but the webhook is acked so the
	// channel does not redeliver it forever.
	req := httptest.NewRequest(http.MethodPost, "/webhook/sms", strings.NewReader("Body=hello"))
	rec := f.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<Response></Response>", rec.Body.String())
}

func TestWebhookTelegram_Ack(t *testing.T) {
	f := newAPIFixture(t, nil)

	body := `{"update_id": 1, "message": {"message_id": 2, "text": "show services", "from": {"id": 100200300}, "chat": {"id": 100200300}}}`
	req := httptest.NewRequest(http.MethodPost, "/webhook/telegram", strings.NewReader(body))
	rec := f.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestWebhookWebchat_UnknownSenderStillAcked(t *testing.T) {
	f := newAPIFixture(t, nil)

	body := `{"token":"nobody-knows-this-token","message":"show services","message_id":"wc-9"}`
	req := httptest.NewRequest(http.MethodPost, "/webhook/webchat", strings.NewReader(body))
	rec := f.do(req)

	// Unregistered senders get the welcome reply out of band; the webhook acks
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAPI_RequiresTenant(t *testing.T) {
	f := newAPIFixture(t, nil)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/audit", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/audit", nil)
	req.Header.Set("X-Tenant-ID", "no-such-tenant")
	rec = f.do(req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuditEndpoint(t *testing.T) {
	f := newAPIFixture(t, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.audit.Record(ctx, testTenantID, string(model.KindPriceUpdate),
			string(model.OutcomeApplied), "price change", "sms", nil)
		require.NoError(t, err)
	}

	rec := f.do(tenantRequest(http.MethodGet, "/api/audit?limit=2", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Entries []model.AuditLogEntry `json:"entries"`
		Total   int                   `json:"total"`
		HasMore bool                  `json:"has_more"`
		Summary *model.AuditSummary   `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Entries, 2)
	assert.Equal(t, 3, resp.Total)
	assert.True(t, resp.HasMore)
	require.NotNil(t, resp.Summary)
	assert.Equal(t, 3, resp.Summary.ByAction[string(model.KindPriceUpdate)])
}

func TestDashboardEndpoint(t *testing.T) {
	f := newAPIFixture(t, nil)

	rec := f.do(tenantRequest(http.MethodGet, "/api/dashboard", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp, "business")
	assert.Contains(t, resp, "services")
	assert.Contains(t, resp, "hours")
	assert.Contains(t, resp, "audit_summary")
}

func TestServiceCRUD(t *testing.T) {
	f := newAPIFixture(t, nil)

	// Create
	body, _ := json.Marshal(map[string]interface{}{
		"name": "Hot Stone Therapy", "price": 150.0, "duration_minutes": 90,
	})
	rec := f.do(tenantRequest(http.MethodPost, "/api/business/services", body))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created model.Service
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.True(t, created.IsActive)

	// Duplicate name conflicts
	rec = f.do(tenantRequest(http.MethodPost, "/api/business/services", body))
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Update
	update, _ := json.Marshal(map[string]interface{}{
		"name": "Hot Stone Therapy", "price": 160.0, "duration_minutes": 75,
	})
	rec = f.do(tenantRequest(http.MethodPut, "/api/business/services/"+created.ID, update))
	require.Equal(t, http.StatusOK, rec.Code)

	// Delete deactivates
	rec = f.do(tenantRequest(http.MethodDelete, "/api/business/services/"+created.ID, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	err := f.store.View(context.Background(), testTenantID, func(state *model.BusinessState) error {
		svc := state.Services[created.ID]
		assert.False(t, svc.IsActive)
		assert.Equal(t, 160.0, svc.Price)
		return nil
	})
	require.NoError(t, err)
}

func TestServiceCreate_ZeroPriceRejected(t *testing.T) {
	f := newAPIFixture(t, nil)

	body, _ := json.Marshal(map[string]interface{}{
		"name": "Free Consultation", "price": 0.0, "duration_minutes": 15,
	})
	rec := f.do(tenantRequest(http.MethodPost, "/api/business/services", body))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Updates enforce the same rule
	update, _ := json.Marshal(map[string]interface{}{
		"name": "Swedish Massage", "price": 0.0, "duration_minutes": 45,
	})
	rec = f.do(tenantRequest(http.MethodPut, "/api/business/services/s2", update))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	err := f.store.View(context.Background(), testTenantID, func(state *model.BusinessState) error {
		assert.Equal(t, 80.0, state.Services["s2"].Price)
		return nil
	})
	require.NoError(t, err)
}

func TestServiceUpdate_NotFound(t *testing.T) {
	f := newAPIFixture(t, nil)

	body, _ := json.Marshal(map[string]interface{}{"name": "X", "price": 10.0})
	rec := f.do(tenantRequest(http.MethodPut, "/api/business/services/nope", body))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHoursEndpoint(t *testing.T) {
	f := newAPIFixture(t, nil)

	body, _ := json.Marshal(map[string]interface{}{"open": "10:00", "close": "18:00"})
	rec := f.do(tenantRequest(http.MethodPut, "/api/business/hours/saturday", body))
	require.Equal(t, http.StatusOK, rec.Code)

	err := f.store.View(context.Background(), testTenantID, func(state *model.BusinessState) error {
		assert.Equal(t, "10:00", state.Hours["saturday"].Open.String())
		assert.Equal(t, "18:00", state.Hours["saturday"].Close.String())
		return nil
	})
	require.NoError(t, err)

	// Unknown weekday
	rec = f.do(tenantRequest(http.MethodPut, "/api/business/hours/caturday", body))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Inverted window
	inverted, _ := json.Marshal(map[string]interface{}{"open": "18:00", "close": "10:00"})
	rec = f.do(tenantRequest(http.MethodPut, "/api/business/hours/monday", inverted))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPoliciesEndpoint(t *testing.T) {
	f := newAPIFixture(t, nil)

	body, _ := json.Marshal(model.Policies{Cancellation: "48 hour notice", Deposit: "20% deposit"})
	rec := f.do(tenantRequest(http.MethodPut, "/api/business/policies", body))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(tenantRequest(http.MethodGet, "/api/business/policies", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "48 hour notice")
}

func TestInventoryEndpoint(t *testing.T) {
	f := newAPIFixture(t, nil)

	body, _ := json.Marshal(map[string]interface{}{"quantity": 40, "restocked": true})
	rec := f.do(tenantRequest(http.MethodPut, "/api/business/inventory/i1", body))
	require.Equal(t, http.StatusOK, rec.Code)

	err := f.store.View(context.Background(), testTenantID, func(state *model.BusinessState) error {
		assert.Equal(t, 40, state.Inventory["i1"].Quantity)
		assert.False(t, state.Inventory["i1"].LastRestocked.IsZero())
		return nil
	})
	require.NoError(t, err)

	rec = f.do(tenantRequest(http.MethodPut, "/api/business/inventory/missing", body))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
