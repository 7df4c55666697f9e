package model

import (
	"gitlab.com/chathy/api/chathy-command-engine/pkg/utils"
)

// CommandKind discriminates the Command union. Values double as the audit
// ledger's action names.
type CommandKind string

const (
	KindPriceUpdate  CommandKind = "price_update"
	KindHoursUpdate  CommandKind = "hours_update"
	KindServiceAdd   CommandKind = "service_add"
	KindQuery        CommandKind = "query"
	KindHelp         CommandKind = "help"
	KindClearChat    CommandKind = "clear_chat"
	KindUnrecognized CommandKind = "unrecognized"

	// ActionFallback is the audit action recorded for messages handed to the
	// conversational backend. There is no corresponding parsed command.
	ActionFallback = "ai_fallback"
	// ActionError is the audit action recorded for internal processing failures.
	ActionError = "error"
)

// QueryKind selects the read-only slice of business state a Query returns.
type QueryKind string

const (
	QueryServices     QueryKind = "services"
	QueryHours        QueryKind = "hours"
	QueryInventory    QueryKind = "inventory"
	QueryPolicies     QueryKind = "policies"
	QueryAppointments QueryKind = "appointments"
	QueryRevenue      QueryKind = "revenue"
)

// PriceUpdate changes the price of an existing service.
type PriceUpdate struct {
	// ServiceName is the matched known service name from the message text.
	ServiceName string  `json:"service_name"`
	OldPrice    float64 `json:"old_price"`
	NewPrice    float64 `json:"new_price"`
}

// HoursUpdate changes one weekday's opening window or marks it closed.
type HoursUpdate struct {
	Day      Weekday         `json:"day"`
	IsClosed bool            `json:"is_closed"`
	Open     utils.ClockTime `json:"open"`
	Close    utils.ClockTime `json:"close"`
}

// ServiceAdd inserts a new service with a fresh ID.
type ServiceAdd struct {
	Name            string  `json:"name"`
	Price           float64 `json:"price"`
	DurationMinutes int     `json:"duration_minutes"`
}

// Command is the typed result of parsing one inbound message. Exactly the
// payload matching Kind is non-nil; Unrecognized carries only RawText.
type Command struct {
	Kind        CommandKind  `json:"kind"`
	PriceUpdate *PriceUpdate `json:"price_update,omitempty"`
	HoursUpdate *HoursUpdate `json:"hours_update,omitempty"`
	ServiceAdd  *ServiceAdd  `json:"service_add,omitempty"`
	Query       QueryKind    `json:"query,omitempty"`
	RawText     string       `json:"raw_text,omitempty"`
}

// Unrecognized wraps raw text into the fallback command variant.
func Unrecognized(text string) Command {
	return Command{Kind: KindUnrecognized, RawText: text}
}

// Outcome classifies the result of executing a command.
type Outcome string

const (
	OutcomeApplied  Outcome = "applied"
	OutcomeRejected Outcome = "rejected"
	OutcomeNotFound Outcome = "not_found"
)

// CommandResult is what the executor returns for a recognized command.
type CommandResult struct {
	Outcome Outcome `json:"outcome"`
	// HumanMessage is the user-facing reply text for this result.
	HumanMessage string `json:"human_message"`
	// Diff records what changed for applied mutations (old/new values).
	Diff map[string]interface{} `json:"diff,omitempty"`
}
