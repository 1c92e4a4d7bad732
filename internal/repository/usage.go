package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/joseph-ayodele/policy-extractor/internal/common"
	"github.com/joseph-ayodele/policy-extractor/internal/entity"
)

// UsageFilter narrows ListByTenant. Zero values mean unbounded.
type UsageFilter struct {
	From  time.Time
	To    time.Time
	Limit int
}

type UsageRepository interface {
	LogUsage(ctx context.Context, rec entity.UsageRecord) error
	ListByTenant(ctx context.Context, tenantID string, f UsageFilter) ([]entity.UsageRecord, error)
	Summarize(ctx context.Context, tenantID string, since time.Time) ([]entity.UsageSummary, error)
}

type usageRepository struct {
	db     *sqlx.DB
	logger *slog.Logger
}

func NewUsageRepository(db *sqlx.DB, logger *slog.Logger) UsageRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &usageRepository{db: db, logger: logger}
}

const insertUsage = `INSERT INTO pdf_processing_usage
	(organization_id, file_name, file_size, processing_method, outcome, cost, confidence, processing_date)
	VALUES (:organization_id, :file_name, :file_size, :processing_method, :outcome, :cost, :confidence, :processing_date)`

func (r *usageRepository) LogUsage(ctx context.Context, rec entity.UsageRecord) error {
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}
	if _, err := r.db.NamedExecContext(ctx, insertUsage, rec); err != nil {
		r.logger.Error("failed to insert usage record", "tenant_id", rec.TenantID, "file", rec.FileName, "error", err)
		return fmt.Errorf("%w: %w", common.ErrDatabase, err)
	}
	return nil
}

const selectUsage = `SELECT id, organization_id, file_name, file_size, processing_method, outcome, cost, confidence, processing_date
	FROM pdf_processing_usage`

func (r *usageRepository) ListByTenant(ctx context.Context, tenantID string, f UsageFilter) ([]entity.UsageRecord, error) {
	where := []string{"organization_id = ?"}
	args := []any{tenantID}
	if !f.From.IsZero() {
		where = append(where, "processing_date >= ?")
		args = append(args, f.From)
	}
	if !f.To.IsZero() {
		where = append(where, "processing_date < ?")
		args = append(args, f.To)
	}
	q := selectUsage + " WHERE " + strings.Join(where, " AND ") + " ORDER BY processing_date DESC, id DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	var out []entity.UsageRecord
	if err := r.db.SelectContext(ctx, &out, r.db.Rebind(q), args...); err != nil {
		r.logger.Error("failed to list usage", "tenant_id", tenantID, "error", err)
		return nil, fmt.Errorf("%w: %w", common.ErrDatabase, err)
	}
	return out, nil
}

const summarizeUsage = `SELECT processing_method,
	COUNT(*) AS documents,
	COALESCE(SUM(cost), 0) AS total_cost,
	COALESCE(AVG(confidence), 0) AS avg_confidence
	FROM pdf_processing_usage
	WHERE organization_id = ? AND processing_date >= ?
	GROUP BY processing_method
	ORDER BY processing_method`

// Summarize aggregates a tenant's usage per processing method since the given time.
func (r *usageRepository) Summarize(ctx context.Context, tenantID string, since time.Time) ([]entity.UsageSummary, error) {
	var out []entity.UsageSummary
	if err := r.db.SelectContext(ctx, &out, r.db.Rebind(summarizeUsage), tenantID, since); err != nil {
		r.logger.Error("failed to summarize usage", "tenant_id", tenantID, "error", err)
		return nil, fmt.Errorf("%w: %w", common.ErrDatabase, err)
	}
	return out, nil
}
