package model

import (
	"strings"
	"time"

	"gitlab.com/chathy/api/chathy-command-engine/pkg/utils"
)

// Weekday is a lowercase day-of-week name, matching the hours map keys.
type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
)

// Weekdays lists all days in calendar order.
var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// IsValid reports whether w is a known weekday name.
func (w Weekday) IsValid() bool {
	for _, d := range Weekdays {
		if w == d {
			return true
		}
	}
	return false
}

// Service is one bookable service or menu item.
type Service struct {
	ID              string  `json:"id"`
	Name            string  `json:"name" validate:"required"`
	Price           float64 `json:"price" validate:"gt=0"`
	DurationMinutes int     `json:"duration_minutes" validate:"gte=0"`
	Category        string  `json:"category"`
	Description     string  `json:"description"`
	IsActive        bool    `json:"is_active"`
}

// DayHours is the opening window for one weekday.
// Invariant: when IsClosed is false, Open < Close.
type DayHours struct {
	IsClosed bool            `json:"is_closed"`
	Open     utils.ClockTime `json:"open"`
	Close    utils.ClockTime `json:"close"`
}

// Policies holds the free-text business policies.
type Policies struct {
	Cancellation string `json:"cancellation"`
	Refund       string `json:"refund"`
	LateArrival  string `json:"late_arrival"`
	Deposit      string `json:"deposit"`
}

// InventoryItem is one tracked stock item.
type InventoryItem struct {
	ID                string    `json:"id"`
	Name              string    `json:"name" validate:"required"`
	Quantity          int       `json:"quantity" validate:"gte=0"`
	Unit              string    `json:"unit"`
	LowStockThreshold int       `json:"low_stock_threshold"`
	LastRestocked     time.Time `json:"last_restocked"`
}

// Appointment is one scheduled booking, read-only for this service.
type Appointment struct {
	ID          string    `json:"id"`
	ServiceID   string    `json:"service_id"`
	ClientName  string    `json:"client_name"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Status      string    `json:"status"`
}

// BusinessState is the full mutable record of one tenant's business.
// It is owned exclusively by the state store: all access goes through
// View/Mutate closures, never through shared references.
type BusinessState struct {
	Services     map[string]Service       `json:"services"`
	Hours        map[Weekday]DayHours     `json:"hours"`
	Policies     Policies                 `json:"policies"`
	Inventory    map[string]InventoryItem `json:"inventory"`
	Appointments []Appointment            `json:"appointments"`
}

// NewBusinessState returns an empty state with initialized maps.
func NewBusinessState() *BusinessState {
	return &BusinessState{
		Services:  make(map[string]Service),
		Hours:     make(map[Weekday]DayHours),
		Inventory: make(map[string]InventoryItem),
	}
}

// FindServiceByName returns the first active service whose name matches
// case-insensitively. Deactivated services are invisible to name lookups.
func (s *BusinessState) FindServiceByName(name string) (*Service, bool) {
	for id := range s.Services {
		svc := s.Services[id]
		if svc.IsActive && strings.EqualFold(svc.Name, name) {
			return &svc, true
		}
	}
	return nil, false
}

// ServiceList returns services as a slice, for query responses.
func (s *BusinessState) ServiceList() []Service {
	out := make([]Service, 0, len(s.Services))
	for _, svc := range s.Services {
		out = append(out, svc)
	}
	return out
}

// InventoryList returns inventory items as a slice, for query responses.
func (s *BusinessState) InventoryList() []InventoryItem {
	out := make([]InventoryItem, 0, len(s.Inventory))
	for _, item := range s.Inventory {
		out = append(out, item)
	}
	return out
}

// TenantProfile is one onboarded business account and its channel identities.
type TenantProfile struct {
	ID             string    `json:"id" validate:"required"`
	BusinessName   string    `json:"business_name" validate:"required"`
	BusinessType   string    `json:"business_type"`
	Email          string    `json:"email" validate:"omitempty,email"`
	Phone          string    `json:"phone"`            // sms sender key
	TelegramUserID string    `json:"telegram_user_id"` // chat platform sender key
	WidgetToken    string    `json:"widget_token"`     // web widget sender key
	Onboarded      bool      `json:"onboarded"`
	CreatedAt      time.Time `json:"created_at"`
}

// SenderKeyFor returns the tenant's identity on the given channel.
func (t *TenantProfile) SenderKeyFor(channel Channel) string {
	switch channel {
	case ChannelSMS:
		return t.Phone
	case ChannelTelegram:
		return t.TelegramUserID
	case ChannelWebchat:
		return t.WidgetToken
	}
	return ""
}
