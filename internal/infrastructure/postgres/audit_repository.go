package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/bibbank/trust-engine/internal/domain/model"
	"github.com/bibbank/trust-engine/internal/domain/valueobject"
	pkgpostgres "github.com/bibbank/trust-engine/pkg/postgres"
)

// AuditRepository implements port.AuditSink and port.AuditReader using
// PostgreSQL. Inserts are idempotent on the record ID.
type AuditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository creates a new PostgreSQL-backed audit repository.
func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

const insertAuditRecord = `
	INSERT INTO trust_audit_records (
		id, verdict_id, recorded_at, product_id, seller_id,
		classification, trust_score, signal_statuses, cached
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (id) DO NOTHING
`

// Write persists a batch of audit records in one transaction.
func (r *AuditRepository) Write(ctx context.Context, records ...model.AuditRecord) error {
	if len(records) == 0 {
		return nil
	}

	err := pkgpostgres.WithTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		return pkgpostgres.SendBatch(ctx, tx, insertAuditRecord, records, auditArgs)
	})
	if err != nil {
		return fmt.Errorf("failed to save audit records: %w", err)
	}
	return nil
}

func auditArgs(rec model.AuditRecord) []any {
	var score decimal.NullDecimal
	if ts := rec.TrustScore(); ts != nil {
		score = decimal.NewNullDecimal(decimal.NewFromFloat(*ts).Round(2))
	}
	return []any{
		rec.ID(),
		rec.VerdictID(),
		rec.Timestamp(),
		rec.ProductID(),
		rec.SellerID(),
		rec.Classification().String(),
		score,
		rec.SignalStatuses(),
		rec.Cached(),
	}
}

// ListRecent returns up to limit records, newest first. An empty productID
// matches every product.
func (r *AuditRepository) ListRecent(ctx context.Context, productID string, limit int) ([]model.AuditRecord, error) {
	query := `
		SELECT id, verdict_id, recorded_at, product_id, seller_id,
			classification, trust_score, signal_statuses, cached
		FROM trust_audit_records
		WHERE ($1::text = '' OR product_id = $1::text)
		ORDER BY recorded_at DESC, id
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()

	var records []model.AuditRecord
	for rows.Next() {
		rec, err := scanAuditRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit records: %w", err)
	}

	return records, nil
}

// Ping reports whether the database is reachable.
func (r *AuditRepository) Ping(ctx context.Context) error {
	return pkgpostgres.HealthCheck(ctx, r.pool)
}

func scanAuditRecord(row pgx.Row) (model.AuditRecord, error) {
	var (
		id                uuid.UUID
		verdictID         uuid.UUID
		recordedAt        time.Time
		productID         string
		sellerID          string
		classificationStr string
		score             decimal.NullDecimal
		statuses          map[string]string
		cached            bool
	)

	err := row.Scan(
		&id, &verdictID, &recordedAt, &productID, &sellerID,
		&classificationStr, &score, &statuses, &cached,
	)
	if err != nil {
		return model.AuditRecord{}, fmt.Errorf("failed to scan audit record: %w", err)
	}

	classification, err := valueobject.ClassificationFromString(classificationStr)
	if err != nil {
		return model.AuditRecord{}, fmt.Errorf("failed to parse classification: %w", err)
	}

	var trustScore *float64
	if score.Valid {
		f := score.Decimal.InexactFloat64()
		trustScore = &f
	}

	return model.ReconstructAuditRecord(
		id, verdictID, recordedAt.UTC(), productID, sellerID,
		classification, trustScore, statuses, cached,
	), nil
}
