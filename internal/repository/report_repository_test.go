package repository

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"trading-agent/internal/domain"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/trace/noop"
)

func sampleReport() *domain.Report {
	return &domain.Report{
		Type:        domain.ReportSignal,
		Symbol:      "EURUSD=X",
		Label:       "EUR/USD",
		Side:        domain.SideNone,
		Entry:       1.0851,
		SL:          math.NaN(),
		TP:          math.NaN(),
		Confidence:  40,
		GeneratedAt: time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestReportRunMigrationsExecutesSchema(t *testing.T) {
	pool := &stubPool{}
	repo := NewReportRepository(pool, noop.NewTracerProvider().Tracer("test"))

	if err := repo.RunMigrations(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pool.execSQL) != 1 || !strings.Contains(pool.execSQL[0], "CREATE TABLE IF NOT EXISTS reports") {
		t.Fatalf("expected report schema, got %v", pool.execSQL)
	}
}

func TestInsertReportStoresPayload(t *testing.T) {
	pool := &stubPool{row: []any{int64(42)}}
	repo := NewReportRepository(pool, noop.NewTracerProvider().Tracer("test"))

	id, err := repo.InsertReport(context.Background(), sampleReport())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 42 {
		t.Fatalf("expected id 42, got %d", id)
	}
	if len(pool.queryArgs) != 6 || pool.queryArgs[1] != "SIGNAL" || pool.queryArgs[3] != int16(40) {
		t.Fatalf("unexpected insert args %v", pool.queryArgs)
	}
	payload, ok := pool.queryArgs[5].([]byte)
	if !ok || !strings.Contains(string(payload), `"sl":null`) {
		t.Fatalf("expected json payload with null stops, got %s", payload)
	}
}

func TestLatestReportDecodesPayload(t *testing.T) {
	pool := &stubPool{row: []any{int64(7), mustJSON(t, sampleReport())}}
	repo := NewReportRepository(pool, noop.NewTracerProvider().Tracer("test"))

	rep, err := repo.LatestReport(context.Background(), "EURUSD=X")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep == nil || rep.ID != 7 || rep.Label != "EUR/USD" || !math.IsNaN(rep.SL) {
		t.Fatalf("unexpected report %+v", rep)
	}
}

func TestLatestReportNoRows(t *testing.T) {
	pool := &stubPool{rowErr: pgx.ErrNoRows}
	repo := NewReportRepository(pool, noop.NewTracerProvider().Tracer("test"))

	rep, err := repo.LatestReport(context.Background(), "EURUSD=X")
	if err != nil || rep != nil {
		t.Fatalf("expected nil report without error, got %+v %v", rep, err)
	}
}

func TestListReportsClampsLimit(t *testing.T) {
	payload, _ := json.Marshal(sampleReport())
	pool := &stubPool{rowsData: [][]any{{int64(2), payload}, {int64(1), payload}}}
	repo := NewReportRepository(pool, noop.NewTracerProvider().Tracer("test"))

	reports, err := repo.ListReports(context.Background(), "EURUSD=X", 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reports) != 2 || reports[0].ID != 2 {
		t.Fatalf("unexpected reports %+v", reports)
	}
	if pool.queryArgs[1] != 200 {
		t.Fatalf("expected clamped limit 200, got %v", pool.queryArgs[1])
	}
}

func TestListReportsRejectsCorruptPayload(t *testing.T) {
	pool := &stubPool{rowsData: [][]any{{int64(3), []byte("{")}}}
	repo := NewReportRepository(pool, noop.NewTracerProvider().Tracer("test"))

	if _, err := repo.ListReports(context.Background(), "EURUSD=X", 5); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestDeleteReportsBefore(t *testing.T) {
	pool := &stubPool{execTag: "DELETE 3"}
	repo := NewReportRepository(pool, noop.NewTracerProvider().Tracer("test"))
	cutoff := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	deleted, err := repo.DeleteReportsBefore(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 3 {
		t.Fatalf("expected 3 deleted rows, got %d", deleted)
	}
	if len(pool.execSQL) != 1 || !strings.Contains(pool.execSQL[0], "DELETE FROM reports") {
		t.Fatalf("unexpected sql %v", pool.execSQL)
	}
	if got, ok := pool.execArgs[0].(time.Time); !ok || !got.Equal(cutoff) {
		t.Fatalf("unexpected cutoff arg %v", pool.execArgs)
	}
}
