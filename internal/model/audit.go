package model

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLogEntry is one append-only record of a processed command or fallback
// interaction. Entries are never mutated or deleted after creation.
type AuditLogEntry struct {
	// ID is the internal database primary key, also the insertion-order tiebreak.
	ID int64 `json:"-" gorm:"primaryKey;autoIncrement"`
	// EntryID is the externally visible identifier.
	EntryID string `json:"id" gorm:"column:entry_id;uniqueIndex" validate:"required"`
	// TenantID identifies the business this entry belongs to.
	TenantID string `json:"tenant_id" gorm:"column:tenant_id;index" validate:"required"`
	// Action is the command kind (price_update, hours_update, ...) or ai_fallback.
	Action string `json:"action" gorm:"column:action;index" validate:"required"`
	// Outcome is applied/rejected/not_found, or the fallback failure kind.
	Outcome string `json:"outcome" gorm:"column:outcome"`
	// Description is the human-readable summary shown in the dashboard feed.
	Description string `json:"description" gorm:"column:description"`
	// Source is the originating channel.
	Source string `json:"source" gorm:"column:source;index"`
	// OccurredAt is when the command was applied, UTC.
	OccurredAt time.Time `json:"occurred_at" gorm:"column:occurred_at;index"`
	// Details carries the structured command payload (old/new prices, day, ...).
	Details datatypes.JSON `json:"details,omitempty" gorm:"type:jsonb;column:details"`
	// CreatedAt is when the row was persisted.
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for GORM.
func (AuditLogEntry) TableName() string {
	return "audit_logs"
}

// AuditListOptions filters and paginates a ledger read.
type AuditListOptions struct {
	Limit  int
	Offset int
	// Action filters by action name when non-empty.
	Action string
	// Source filters by originating channel when non-empty.
	Source string
}

// AuditSummary is the derived counts-by view, recomputed on every read.
type AuditSummary struct {
	Total    int            `json:"total"`
	ByAction map[string]int `json:"by_action"`
	BySource map[string]int `json:"by_source"`
}

// AuditPage is one page of ledger entries, newest first.
type AuditPage struct {
	Entries []AuditLogEntry `json:"entries"`
	Total   int             `json:"total"`
	HasMore bool            `json:"has_more"`
}
