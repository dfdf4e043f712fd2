package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"trading-agent/internal/domain"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/trace"
)

const reportSchema = `
CREATE TABLE IF NOT EXISTS reports (
    id           BIGSERIAL   PRIMARY KEY,
    symbol       TEXT        NOT NULL,
    type         TEXT        NOT NULL,
    side         TEXT        NOT NULL DEFAULT '',
    confidence   SMALLINT    NOT NULL DEFAULT 0,
    generated_at TIMESTAMPTZ NOT NULL,
    payload      JSONB       NOT NULL
);
CREATE INDEX IF NOT EXISTS reports_symbol_generated_idx ON reports (symbol, generated_at DESC)`

// ReportRepository keeps the history of agent runs. The full report is stored
// as JSON; the other columns exist for filtering.
type ReportRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewReportRepository(pool PgxPool, tracer trace.Tracer) *ReportRepository {
	return &ReportRepository{pool: pool, tracer: tracer}
}

func (r *ReportRepository) RunMigrations(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, reportSchema)
	return err
}

func (r *ReportRepository) InsertReport(ctx context.Context, report *domain.Report) (int64, error) {
	_, span := r.tracer.Start(ctx, "report-repo.insert-report")
	defer span.End()

	payload, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("encode report: %w", err)
	}

	var id int64
	err = r.pool.QueryRow(ctx,
		`INSERT INTO reports (symbol, type, side, confidence, generated_at, payload)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		report.Symbol,
		string(report.Type),
		string(report.Side),
		int16(report.Confidence),
		report.GeneratedAt.UTC(),
		payload,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// LatestReport returns nil without error when no report exists for symbol.
func (r *ReportRepository) LatestReport(ctx context.Context, symbol string) (*domain.Report, error) {
	_, span := r.tracer.Start(ctx, "report-repo.latest-report")
	defer span.End()

	var id int64
	var payload []byte
	err := r.pool.QueryRow(ctx,
		`SELECT id, payload FROM reports
		 WHERE symbol = $1
		 ORDER BY generated_at DESC
		 LIMIT 1`,
		symbol,
	).Scan(&id, &payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeReport(id, payload)
}

func (r *ReportRepository) ListReports(ctx context.Context, symbol string, limit int) ([]domain.Report, error) {
	_, span := r.tracer.Start(ctx, "report-repo.list-reports")
	defer span.End()

	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, payload FROM reports
		 WHERE symbol = $1
		 ORDER BY generated_at DESC
		 LIMIT $2`,
		symbol, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := make([]domain.Report, 0, limit)
	for rows.Next() {
		var id int64
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		rep, err := decodeReport(id, payload)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *rep)
	}
	return reports, rows.Err()
}

func decodeReport(id int64, payload []byte) (*domain.Report, error) {
	var rep domain.Report
	if err := json.Unmarshal(payload, &rep); err != nil {
		return nil, fmt.Errorf("decode report %d: %w", id, err)
	}
	rep.ID = id
	return &rep, nil
}

// DeleteReportsBefore removes reports generated before cutoff and returns the
// number of rows deleted.
func (r *ReportRepository) DeleteReportsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	_, span := r.tracer.Start(ctx, "report-repo.delete-before")
	defer span.End()

	tag, err := r.pool.Exec(ctx, `DELETE FROM reports WHERE generated_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
