package model

import (
	"encoding/json"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"gitlab.com/chathy/api/chathy-command-engine/pkg/utils"
)

// init ensures gofakeit is seeded.
func init() {
	gofakeit.Seed(time.Now().UnixNano())
}

// JSONBMap marshals a map into a jsonb value for audit details.
func JSONBMap(data map[string]interface{}) datatypes.JSON {
	bytes, _ := json.Marshal(data)
	return datatypes.JSON(bytes)
}

// NewTenantProfile creates a TenantProfile with fake identities, applying
// the optional override on top.
func NewTenantProfile(overrideDefaults ...*TenantProfile) *TenantProfile {
	base := &TenantProfile{
		ID:             uuid.NewString(),
		BusinessName:   gofakeit.Company(),
		BusinessType:   gofakeit.RandomString([]string{"spa", "restaurant", "salon", "clinic"}),
		Email:          gofakeit.Email(),
		Phone:          "+1" + gofakeit.Numerify("##########"),
		TelegramUserID: gofakeit.Numerify("#########"),
		WidgetToken:    uuid.NewString(),
		Onboarded:      true,
		CreatedAt:      utils.Now().Add(-time.Duration(gofakeit.Number(1, 90)) * 24 * time.Hour),
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.ID != "" {
			base.ID = ovr.ID
		}
		if ovr.BusinessName != "" {
			base.BusinessName = ovr.BusinessName
		}
		if ovr.BusinessType != "" {
			base.BusinessType = ovr.BusinessType
		}
		if ovr.Phone != "" {
			base.Phone = ovr.Phone
		}
		if ovr.TelegramUserID != "" {
			base.TelegramUserID = ovr.TelegramUserID
		}
		if ovr.WidgetToken != "" {
			base.WidgetToken = ovr.WidgetToken
		}
	}

	return base
}

// NewService creates a Service with fake data.
func NewService(overrideDefaults ...*Service) *Service {
	base := &Service{
		ID:              uuid.NewString(),
		Name:            gofakeit.ProductName(),
		Price:           float64(gofakeit.Number(20, 200)),
		DurationMinutes: gofakeit.Number(15, 120),
		Category:        gofakeit.RandomString([]string{"massage", "facial", "hair", "nails"}),
		IsActive:        true,
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.ID != "" {
			base.ID = ovr.ID
		}
		if ovr.Name != "" {
			base.Name = ovr.Name
		}
		if ovr.Price != 0 {
			base.Price = ovr.Price
		}
		if ovr.DurationMinutes != 0 {
			base.DurationMinutes = ovr.DurationMinutes
		}
		if ovr.Category != "" {
			base.Category = ovr.Category
		}
	}

	return base
}

// SpaFixtureState builds a realistic spa business state used in tests and
// local development seeding.
func SpaFixtureState() *BusinessState {
	state := NewBusinessState()

	for _, svc := range []Service{
		{ID: "s1", Name: "Full Facial Treatment", Price: 120, DurationMinutes: 60, Category: "facial", Description: "Complete facial rejuvenation", IsActive: true},
		{ID: "s2", Name: "Swedish Massage", Price: 80, DurationMinutes: 45, Category: "massage", Description: "Relaxing full-body massage", IsActive: true},
		{ID: "s3", Name: "Deep Tissue Massage", Price: 100, DurationMinutes: 60, Category: "massage", Description: "Therapeutic deep tissue massage", IsActive: true},
	} {
		state.Services[svc.ID] = svc
	}

	open, _ := utils.ParseClock("09:00")
	close_, _ := utils.ParseClock("20:00")
	for _, day := range Weekdays {
		state.Hours[day] = DayHours{Open: open, Close: close_}
	}

	state.Policies = Policies{
		Cancellation: "24 hour notice required for cancellations",
		Refund:       "Full refund within 48 hours of booking",
		LateArrival:  "Sessions shortened for arrivals more than 15 minutes late",
		Deposit:      "No deposit required",
	}

	state.Inventory["i1"] = InventoryItem{
		ID: "i1", Name: "Facial Cream Premium", Quantity: 15, Unit: "bottles",
		LowStockThreshold: 20, LastRestocked: utils.Now().Add(-14 * 24 * time.Hour),
	}

	return state
}

// NewAuditLogEntry creates an AuditLogEntry with fake data.
func NewAuditLogEntry(overrideDefaults ...*AuditLogEntry) *AuditLogEntry {
	base := &AuditLogEntry{
		EntryID:     uuid.NewString(),
		TenantID:    "tenant_" + gofakeit.LetterN(10),
		Action:      gofakeit.RandomString([]string{string(KindPriceUpdate), string(KindHoursUpdate), string(KindServiceAdd), ActionFallback}),
		Outcome:     string(OutcomeApplied),
		Description: gofakeit.Sentence(6),
		Source:      gofakeit.RandomString([]string{string(ChannelSMS), string(ChannelTelegram), string(ChannelWebchat)}),
		OccurredAt:  utils.Now(),
		Details:     JSONBMap(map[string]interface{}{"note": gofakeit.Word()}),
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.EntryID != "" {
			base.EntryID = ovr.EntryID
		}
		if ovr.TenantID != "" {
			base.TenantID = ovr.TenantID
		}
		if ovr.Action != "" {
			base.Action = ovr.Action
		}
		if ovr.Outcome != "" {
			base.Outcome = ovr.Outcome
		}
		if ovr.Source != "" {
			base.Source = ovr.Source
		}
		if !ovr.OccurredAt.IsZero() {
			base.OccurredAt = ovr.OccurredAt
		}
	}

	return base
}
