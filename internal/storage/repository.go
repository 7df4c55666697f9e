package storage

import (
	"context"

	"gitlab.com/chathy/api/chathy-command-engine/internal/model"
)

// StateRepo owns every tenant's BusinessState. All access happens inside
// View/Mutate closures under a per-tenant exclusion scope: callers never hold
// a reference to the state outside the closure, and mutation closures must
// validate before touching the state (a closure returning an error must leave
// the state unmodified).
type StateRepo interface {
	// View runs fn with read access to the tenant's state.
	View(ctx context.Context, tenantID string, fn func(state *model.BusinessState) error) error
	// Mutate runs fn with exclusive write access to the tenant's state.
	// Different tenants never block each other.
	Mutate(ctx context.Context, tenantID string, fn func(state *model.BusinessState) error) error
	// CreateTenant registers a tenant with its initial state. Used at onboarding.
	CreateTenant(ctx context.Context, tenantID string, state *model.BusinessState) error
}

// TenantDirectoryRepo maps channel identities to tenant profiles.
// Lookups are pure reads with no side effects.
type TenantDirectoryRepo interface {
	FindBySenderKey(ctx context.Context, channel model.Channel, senderKey string) (*model.TenantProfile, error)
	FindByID(ctx context.Context, tenantID string) (*model.TenantProfile, error)
	Save(ctx context.Context, profile *model.TenantProfile) error
}

// AuditRepo is the append-only command ledger. Entries are immutable once
// appended; List reads newest first and never mutates the underlying log.
type AuditRepo interface {
	Append(ctx context.Context, entry *model.AuditLogEntry) error
	List(ctx context.Context, tenantID string, opts model.AuditListOptions) (*model.AuditPage, error)
	Summary(ctx context.Context, tenantID string) (*model.AuditSummary, error)
	Close(ctx context.Context) error
}
