package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"gitlab.com/chathy/api/chathy-command-engine/internal/apperrors"
	"gitlab.com/chathy/api/chathy-command-engine/internal/model"
	"gitlab.com/chathy/api/chathy-command-engine/pkg/logger"
)

// PostgresAuditRepo is the durable AuditRepo backend. The ledger is the only
// persisted collection; business state stays in the in-memory store.
type PostgresAuditRepo struct {
	db *gorm.DB
}

var _ AuditRepo = (*PostgresAuditRepo)(nil)

// NewPostgresAuditRepo connects with exponential-backoff retry and optionally
// migrates the audit table.
func NewPostgresAuditRepo(dsn string, autoMigrate bool) (*PostgresAuditRepo, error) {
	connect := func() (*gorm.DB, error) {
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err != nil {
			if isTransientPgError(err) {
				logger.Log.Warn("Failed to connect to postgres (transient), retrying...", zap.Error(err))
				return nil, err
			}
			return nil, backoff.Permanent(fmt.Errorf("failed to connect to postgres: %w", err))
		}
		return db, nil
	}

	notify := func(err error, d time.Duration) {
		logger.Log.Warn("Retrying postgres connection", zap.Error(err), zap.Duration("after", d))
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 1 * time.Second
	b.MaxInterval = 15 * time.Second
	b.MaxElapsedTime = 1 * time.Minute

	db, err := backoff.RetryNotifyWithData(connect, b, notify)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres after retries: %w", err)
	}

	if autoMigrate {
		if err := db.AutoMigrate(&model.AuditLogEntry{}); err != nil {
			return nil, fmt.Errorf("failed to migrate audit_logs: %w", err)
		}
	}

	return &PostgresAuditRepo{db: db}, nil
}

func isTransientPgError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08: connection exceptions; 57P03: cannot_connect_now
		return (len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08") || pgErr.Code == "57P03"
	}
	// Driver-level dial errors surface as plain errors; treat them as transient
	return true
}

func translatePgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %v", apperrors.ErrNotFound, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %v", apperrors.ErrDuplicate, err)
	}
	return fmt.Errorf("%w: %v", apperrors.ErrDatabase, err)
}

// Append inserts a new ledger row. Rows are never updated afterwards.
func (r *PostgresAuditRepo) Append(ctx context.Context, entry *model.AuditLogEntry) error {
	if entry == nil || entry.TenantID == "" {
		return apperrors.ErrValidation
	}

	result := r.db.WithContext(ctx).Create(entry)
	if result.Error != nil {
		logger.FromContext(ctx).Error("Failed to append audit entry",
			zap.String("tenant_id", entry.TenantID),
			zap.String("action", entry.Action),
			zap.Error(result.Error))
		return translatePgError(result.Error)
	}
	return nil
}

// List returns one page of the tenant's ledger, newest first.
func (r *PostgresAuditRepo) List(ctx context.Context, tenantID string, opts model.AuditListOptions) (*model.AuditPage, error) {
	query := r.db.WithContext(ctx).Model(&model.AuditLogEntry{}).Where("tenant_id = ?", tenantID)
	if opts.Action != "" {
		query = query.Where("action = ?", opts.Action)
	}
	if opts.Source != "" {
		query = query.Where("source = ?", opts.Source)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, translatePgError(err)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = -1 // gorm: no LIMIT clause
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	var entries []model.AuditLogEntry
	err := query.Order("occurred_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error
	if err != nil {
		return nil, translatePgError(err)
	}

	return &model.AuditPage{
		Entries: entries,
		Total:   int(total),
		HasMore: offset+len(entries) < int(total),
	}, nil
}

// Summary recomputes counts by action and source with grouped queries.
func (r *PostgresAuditRepo) Summary(ctx context.Context, tenantID string) (*model.AuditSummary, error) {
	type bucket struct {
		Key   string
		Count int
	}

	summary := &model.AuditSummary{
		ByAction: make(map[string]int),
		BySource: make(map[string]int),
	}

	var byAction []bucket
	err := r.db.WithContext(ctx).Model(&model.AuditLogEntry{}).
		Select("action AS key, COUNT(*) AS count").
		Where("tenant_id = ?", tenantID).
		Group("action").
		Scan(&byAction).Error
	if err != nil {
		return nil, translatePgError(err)
	}
	for _, b := range byAction {
		summary.ByAction[b.Key] = b.Count
		summary.Total += b.Count
	}

	var bySource []bucket
	err = r.db.WithContext(ctx).Model(&model.AuditLogEntry{}).
		Select("source AS key, COUNT(*) AS count").
		Where("tenant_id = ?", tenantID).
		Group("source").
		Scan(&bySource).Error
	if err != nil {
		return nil, translatePgError(err)
	}
	for _, b := range bySource {
		summary.BySource[b.Key] = b.Count
	}

	return summary, nil
}

// Close releases the underlying connection pool.
func (r *PostgresAuditRepo) Close(_ context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
