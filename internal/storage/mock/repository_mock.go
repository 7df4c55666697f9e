package mock

import (
	"context"

	"github.com/stretchr/testify/mock"
	"gitlab.com/chathy/api/chathy-command-engine/internal/model"
)

// --- StateRepo Mock ---

// StateRepoMock mocks the StateRepo interface
type StateRepoMock struct {
	mock.Mock
}

// View mocks the View method
func (m *StateRepoMock) View(ctx context.Context, tenantID string, fn func(state *model.BusinessState) error) error {
	args := m.Called(ctx, tenantID, fn)
	return args.Error(0)
}

// Mutate mocks the Mutate method
func (m *StateRepoMock) Mutate(ctx context.Context, tenantID string, fn func(state *model.BusinessState) error) error {
	args := m.Called(ctx, tenantID, fn)
	return args.Error(0)
}

// CreateTenant mocks the CreateTenant method
func (m *StateRepoMock) CreateTenant(ctx context.Context, tenantID string, state *model.BusinessState) error {
	args := m.Called(ctx, tenantID, state)
	return args.Error(0)
}

// --- TenantDirectoryRepo Mock ---

// TenantDirectoryRepoMock mocks the TenantDirectoryRepo interface
type TenantDirectoryRepoMock struct {
	mock.Mock
}

// FindBySenderKey mocks the FindBySenderKey method
func (m *TenantDirectoryRepoMock) FindBySenderKey(ctx context.Context, channel model.Channel, senderKey string) (*model.TenantProfile, error) {
	args := m.Called(ctx, channel, senderKey)
	var profile *model.TenantProfile
	if args.Get(0) != nil {
		profile = args.Get(0).(*model.TenantProfile)
	}
	return profile, args.Error(1)
}

// FindByID mocks the FindByID method
func (m *TenantDirectoryRepoMock) FindByID(ctx context.Context, tenantID string) (*model.TenantProfile, error) {
	args := m.Called(ctx, tenantID)
	var profile *model.TenantProfile
	if args.Get(0) != nil {
		profile = args.Get(0).(*model.TenantProfile)
	}
	return profile, args.Error(1)
}

// Save mocks the Save method
func (m *TenantDirectoryRepoMock) Save(ctx context.Context, profile *model.TenantProfile) error {
	args := m.Called(ctx, profile)
	return args.Error(0)
}

// --- AuditRepo Mock ---

// AuditRepoMock mocks the AuditRepo interface
type AuditRepoMock struct {
	mock.Mock
}

// Append mocks the Append method
func (m *AuditRepoMock) Append(ctx context.Context, entry *model.AuditLogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

// List mocks the List method
func (m *AuditRepoMock) List(ctx context.Context, tenantID string, opts model.AuditListOptions) (*model.AuditPage, error) {
	args := m.Called(ctx, tenantID, opts)
	var page *model.AuditPage
	if args.Get(0) != nil {
		page = args.Get(0).(*model.AuditPage)
	}
	return page, args.Error(1)
}

// Summary mocks the Summary method
func (m *AuditRepoMock) Summary(ctx context.Context, tenantID string) (*model.AuditSummary, error) {
	args := m.Called(ctx, tenantID)
	var summary *model.AuditSummary
	if args.Get(0) != nil {
		summary = args.Get(0).(*model.AuditSummary)
	}
	return summary, args.Error(1)
}

// Close mocks the Close method
func (m *AuditRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
