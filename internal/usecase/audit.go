package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"gitlab.com/chathy/api/chathy-command-engine/internal/jetstream"
	"gitlab.com/chathy/api/chathy-command-engine/internal/model"
	"gitlab.com/chathy/api/chathy-command-engine/internal/storage"
	"gitlab.com/chathy/api/chathy-command-engine/internal/validator"
	"gitlab.com/chathy/api/chathy-command-engine/pkg/logger"
	"gitlab.com/chathy/api/chathy-command-engine/pkg/utils"
)

// AuditService owns the append-only command ledger. Every processed message
// lands here exactly once, after its state change (if any) has committed.
// When a JetStream client is configured, each appended entry is also
// published for downstream consumers; publish failures never fail the append.
type AuditService struct {
	repo    storage.AuditRepo
	js      jetstream.ClientInterface
	subject string
}

// NewAuditService creates the audit service. js may be nil when event
// publishing is disabled.
func NewAuditService(repo storage.AuditRepo, js jetstream.ClientInterface, subject string) *AuditService {
	return &AuditService{repo: repo, js: js, subject: subject}
}

// Record appends one ledger entry, filling identity and timestamp fields.
// details may be nil for entries with no structured payload.
func (s *AuditService) Record(ctx context.Context, tenantID, action, outcome, description, source string, details map[string]interface{}) (*model.AuditLogEntry, error) {
	entry := &model.AuditLogEntry{
		EntryID:     uuid.NewString(),
		TenantID:    tenantID,
		Action:      action,
		Outcome:     outcome,
		Description: description,
		Source:      source,
		OccurredAt:  utils.Now(),
	}
	if details != nil {
		entry.Details = datatypes.JSON(utils.MustMarshalJSON(details))
	}

	if err := validator.Validate(entry); err != nil {
		return nil, fmt.Errorf("invalid audit entry: %w", err)
	}
	if err := s.repo.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("appending audit entry: %w", err)
	}

	s.publish(ctx, entry)
	return entry, nil
}

// List returns one page of the tenant's ledger, newest first, together with
// the recomputed summary so a single dashboard call gets both.
func (s *AuditService) List(ctx context.Context, tenantID string, opts model.AuditListOptions) (*model.AuditPage, *model.AuditSummary, error) {
	page, err := s.repo.List(ctx, tenantID, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("listing audit entries: %w", err)
	}
	summary, err := s.repo.Summary(ctx, tenantID)
	if err != nil {
		return nil, nil, fmt.Errorf("summarizing audit entries: %w", err)
	}
	return page, summary, nil
}

// Summary recomputes the tenant's counts-by-action and counts-by-source view.
func (s *AuditService) Summary(ctx context.Context, tenantID string) (*model.AuditSummary, error) {
	return s.repo.Summary(ctx, tenantID)
}

// SetupStream ensures the audit event stream exists. No-op without a client.
func (s *AuditService) SetupStream(ctx context.Context, streamName string, maxAge time.Duration) error {
	if s.js == nil {
		return nil
	}
	return s.js.SetupStream(ctx, &nats.StreamConfig{
		Name:     streamName,
		Subjects: []string{s.subject + ".>"},
		Storage:  nats.FileStorage,
		MaxAge:   maxAge,
	})
}

func (s *AuditService) publish(ctx context.Context, entry *model.AuditLogEntry) {
	if s.js == nil {
		return
	}
	subject := fmt.Sprintf("%s.%s", s.subject, entry.TenantID)
	headers := map[string]string{
		"entry_id": entry.EntryID,
		"action":   entry.Action,
	}
	if err := s.js.Publish(subject, utils.MustMarshalJSON(entry), headers); err != nil {
		logger.FromContext(ctx).Warn("Failed to publish audit event",
			zap.String("subject", subject),
			zap.String("entry_id", entry.EntryID),
			zap.Error(err))
	}
}
