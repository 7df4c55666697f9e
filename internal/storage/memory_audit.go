package storage

import (
	"context"
	"sync"

	"gitlab.com/chathy/api/chathy-command-engine/internal/apperrors"
	"gitlab.com/chathy/api/chathy-command-engine/internal/model"
)

// MemoryAuditRepo is the in-memory AuditRepo. Appends are safe under
// concurrent use from different tenants' goroutines; per-tenant order is
// insertion order.
type MemoryAuditRepo struct {
	mu      sync.RWMutex
	entries map[string][]model.AuditLogEntry
	nextID  int64
}

var _ AuditRepo = (*MemoryAuditRepo)(nil)

// NewMemoryAuditRepo creates an empty in-memory ledger.
func NewMemoryAuditRepo() *MemoryAuditRepo {
	return &MemoryAuditRepo{entries: make(map[string][]model.AuditLogEntry)}
}

// Append stores a copy of the entry at the end of the tenant's log.
func (r *MemoryAuditRepo) Append(_ context.Context, entry *model.AuditLogEntry) error {
	if entry == nil || entry.TenantID == "" {
		return apperrors.ErrValidation
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	copied := *entry
	copied.ID = r.nextID
	r.entries[entry.TenantID] = append(r.entries[entry.TenantID], copied)
	entry.ID = copied.ID
	return nil
}

// List returns a page of the tenant's entries, newest first. The underlying
// log is never modified.
func (r *MemoryAuditRepo) List(_ context.Context, tenantID string, opts model.AuditListOptions) (*model.AuditPage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.entries[tenantID]

	filtered := make([]model.AuditLogEntry, 0, len(all))
	// Walk backwards: insertion order is chronological, the page is newest first
	for i := len(all) - 1; i >= 0; i-- {
		e := all[i]
		if opts.Action != "" && e.Action != opts.Action {
			continue
		}
		if opts.Source != "" && e.Source != opts.Source {
			continue
		}
		filtered = append(filtered, e)
	}

	total := len(filtered)
	start := opts.Offset
	if start < 0 {
		start = 0
	}
	if start > total {
		start = total
	}
	// A non-positive limit means no limit: the page runs to the end.
	end := total
	if opts.Limit > 0 && start+opts.Limit < total {
		end = start + opts.Limit
	}

	page := make([]model.AuditLogEntry, end-start)
	copy(page, filtered[start:end])

	return &model.AuditPage{
		Entries: page,
		Total:   total,
		HasMore: end < total,
	}, nil
}

// Summary recomputes counts by action and source from the log.
func (r *MemoryAuditRepo) Summary(_ context.Context, tenantID string) (*model.AuditSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	summary := &model.AuditSummary{
		ByAction: make(map[string]int),
		BySource: make(map[string]int),
	}
	for _, e := range r.entries[tenantID] {
		summary.Total++
		summary.ByAction[e.Action]++
		summary.BySource[e.Source]++
	}
	return summary, nil
}

// Close is a no-op for the in-memory ledger.
func (r *MemoryAuditRepo) Close(_ context.Context) error {
	return nil
}
