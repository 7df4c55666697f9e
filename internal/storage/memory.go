package storage

import (
	"context"
	"sync"

	"gitlab.com/chathy/api/chathy-command-engine/internal/apperrors"
	"gitlab.com/chathy/api/chathy-command-engine/internal/model"
)

// tenantEntry pairs one tenant's state with its exclusion scope.
type tenantEntry struct {
	mu    sync.Mutex
	state *model.BusinessState
}

// MemoryStateStore is the in-memory StateRepo and TenantDirectoryRepo.
// One mutex per tenant serializes validate-then-apply sequences; the outer
// RWMutex only guards the tenant maps themselves.
type MemoryStateStore struct {
	mu       sync.RWMutex
	tenants  map[string]*tenantEntry
	profiles map[string]*model.TenantProfile
	// senderIndex maps channel+senderKey to tenant ID for resolver lookups.
	senderIndex map[string]string
}

var _ StateRepo = (*MemoryStateStore)(nil)
var _ TenantDirectoryRepo = (*MemoryStateStore)(nil)

// NewMemoryStateStore creates an empty in-memory store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{
		tenants:     make(map[string]*tenantEntry),
		profiles:    make(map[string]*model.TenantProfile),
		senderIndex: make(map[string]string),
	}
}

func senderIndexKey(channel model.Channel, senderKey string) string {
	return string(channel) + "|" + senderKey
}

func (s *MemoryStateStore) entry(tenantID string) (*tenantEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.tenants[tenantID]
	return e, ok
}

// CreateTenant registers a tenant with its initial state.
func (s *MemoryStateStore) CreateTenant(_ context.Context, tenantID string, state *model.BusinessState) error {
	if state == nil {
		state = model.NewBusinessState()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tenants[tenantID]; exists {
		return apperrors.ErrDuplicate
	}
	s.tenants[tenantID] = &tenantEntry{state: state}
	return nil
}

// View runs fn under the tenant's exclusion scope with read intent.
// It shares the write mutex: read-then-write sequences are serialized
// per tenant, and queries piggyback on the same scope.
func (s *MemoryStateStore) View(_ context.Context, tenantID string, fn func(state *model.BusinessState) error) error {
	e, ok := s.entry(tenantID)
	if !ok {
		return apperrors.ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.state)
}

// Mutate runs fn under the tenant's exclusion scope. The scope is released
// on every exit path, including fn panicking.
func (s *MemoryStateStore) Mutate(_ context.Context, tenantID string, fn func(state *model.BusinessState) error) error {
	e, ok := s.entry(tenantID)
	if !ok {
		return apperrors.ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.state)
}

// Save registers or updates a tenant profile and its sender-key index.
func (s *MemoryStateStore) Save(_ context.Context, profile *model.TenantProfile) error {
	if profile == nil || profile.ID == "" {
		return apperrors.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.profiles[profile.ID]; ok {
		for _, ch := range []model.Channel{model.ChannelSMS, model.ChannelTelegram, model.ChannelWebchat} {
			if key := prev.SenderKeyFor(ch); key != "" {
				delete(s.senderIndex, senderIndexKey(ch, key))
			}
		}
	}

	copied := *profile
	s.profiles[profile.ID] = &copied
	for _, ch := range []model.Channel{model.ChannelSMS, model.ChannelTelegram, model.ChannelWebchat} {
		if key := copied.SenderKeyFor(ch); key != "" {
			s.senderIndex[senderIndexKey(ch, key)] = copied.ID
		}
	}
	return nil
}

// FindBySenderKey resolves a channel identity to a tenant profile.
func (s *MemoryStateStore) FindBySenderKey(_ context.Context, channel model.Channel, senderKey string) (*model.TenantProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tenantID, ok := s.senderIndex[senderIndexKey(channel, senderKey)]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	profile := *s.profiles[tenantID]
	return &profile, nil
}

// FindByID returns the profile for a tenant ID.
func (s *MemoryStateStore) FindByID(_ context.Context, tenantID string) (*model.TenantProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, ok := s.profiles[tenantID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *profile
	return &copied, nil
}
