package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"trading-agent/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace/noop"
)

var testTracer = noop.NewTracerProvider().Tracer("test")

func TestCandleRunMigrationsExecutesSchema(t *testing.T) {
	pool := &stubPool{}
	if err := NewCandleRepository(pool, testTracer).RunMigrations(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pool.execSQL) != 1 || !strings.Contains(pool.execSQL[0], "CREATE TABLE IF NOT EXISTS candles") {
		t.Fatalf("expected candle schema, got %v", pool.execSQL)
	}
}

func TestUpsertCandlesOneStatementPerSeries(t *testing.T) {
	pool := &stubPool{}
	repo := NewCandleRepository(pool, testTracer)

	h1 := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	candles := []domain.Candle{
		{Symbol: "EURUSD=X", Timeframe: domain.TimeframeH1, OpenTime: h1, Open: 1.08, High: 1.09, Low: 1.07, Close: 1.085},
		{Symbol: "EURUSD=X", Timeframe: domain.TimeframeD1, OpenTime: h1.Truncate(24 * time.Hour), Close: 1.08},
		{Symbol: "EURUSD=X", Timeframe: domain.TimeframeH1, OpenTime: h1.Add(time.Hour), Close: 1.086},
	}
	if err := repo.UpsertCandles(context.Background(), candles); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pool.execCalls) != 2 {
		t.Fatalf("expected one statement per series, got %d", len(pool.execCalls))
	}

	first := pool.execCalls[0]
	if first[0] != "EURUSD=X" || first[1] != string(domain.TimeframeH1) {
		t.Fatalf("unexpected series key %v %v", first[0], first[1])
	}
	times := first[2].([]time.Time)
	closes := first[6].([]float64)
	if len(times) != 2 || !times[1].Equal(h1.Add(time.Hour)) || closes[0] != 1.085 {
		t.Fatalf("unexpected column arrays %v %v", times, closes)
	}
	if !strings.Contains(pool.execSQL[0], "ON CONFLICT (symbol, timeframe, open_time)") {
		t.Fatalf("expected upsert statement, got %s", pool.execSQL[0])
	}
}

func TestUpsertCandlesChunksLongSeries(t *testing.T) {
	pool := &stubPool{}
	repo := NewCandleRepository(pool, testTracer)

	candles := make([]domain.Candle, upsertChunk+5)
	start := time.Unix(0, 0).UTC()
	for i := range candles {
		candles[i] = domain.Candle{Symbol: "EURUSD=X", Timeframe: domain.TimeframeM5, OpenTime: start.Add(time.Duration(i) * 5 * time.Minute)}
	}
	if err := repo.UpsertCandles(context.Background(), candles); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pool.execCalls) != 2 || len(pool.execCalls[1][2].([]time.Time)) != 5 {
		t.Fatalf("expected two chunks, got %d", len(pool.execCalls))
	}
}

func TestUpsertCandlesEmpty(t *testing.T) {
	pool := &stubPool{}
	if err := NewCandleRepository(pool, testTracer).UpsertCandles(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pool.execCalls) != 0 {
		t.Fatal("expected no statements for empty input")
	}
}

func TestUpsertCandlesWrapsError(t *testing.T) {
	pool := &stubPool{execErr: errors.New("connection reset")}
	err := NewCandleRepository(pool, testTracer).UpsertCandles(context.Background(), []domain.Candle{
		{Symbol: "EURUSD=X", Timeframe: domain.TimeframeH4},
	})
	if err == nil || !strings.Contains(err.Error(), "EURUSD=X 4h") {
		t.Fatalf("expected wrapped series error, got %v", err)
	}
}

func TestGetCandlesReturnsOldestFirst(t *testing.T) {
	pool := &stubPool{rowsData: [][]any{
		{time.Unix(7200, 0), 1.1, 1.2, 1.0, 1.15, 0.0},
		{time.Unix(3600, 0), 1.0, 1.1, 0.9, 1.05, 0.0},
	}}
	candles, err := NewCandleRepository(pool, testTracer).GetCandles(context.Background(), "EURUSD=X", domain.TimeframeH1, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candles) != 2 || candles[0].OpenTime.Unix() != 3600 || candles[1].Close != 1.15 {
		t.Fatalf("unexpected candles: %+v", candles)
	}
	if candles[0].Symbol != "EURUSD=X" || candles[0].Timeframe != domain.TimeframeH1 {
		t.Fatalf("expected series key to be filled, got %+v", candles[0])
	}
	if pool.queryArgs[2] != 2 {
		t.Fatalf("unexpected limit arg %v", pool.queryArgs)
	}
}

// stubPool records statements and serves canned rows.
type stubPool struct {
	rowsData  [][]any
	row       []any
	rowErr    error
	execTag   string
	execErr   error
	execSQL   []string
	execArgs  []any
	execCalls [][]any
	queryArgs []any
}

func (s *stubPool) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	s.execSQL = append(s.execSQL, sql)
	s.execArgs = args
	s.execCalls = append(s.execCalls, args)
	if s.execErr != nil {
		return pgconn.CommandTag{}, s.execErr
	}
	return pgconn.NewCommandTag(s.execTag), nil
}

func (s *stubPool) Query(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
	s.queryArgs = args
	return &stubRows{data: s.rowsData}, nil
}

func (s *stubPool) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	s.queryArgs = args
	return stubRow{values: s.row, err: s.rowErr}
}

type stubRows struct {
	pgx.Rows
	data [][]any
	pos  int
}

func (r *stubRows) Close()     {}
func (r *stubRows) Err() error { return nil }

func (r *stubRows) Next() bool {
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *stubRows) Scan(dest ...any) error {
	if r.pos == 0 {
		return errors.New("Scan called before Next")
	}
	return assign(r.data[r.pos-1], dest)
}

type stubRow struct {
	values []any
	err    error
}

func (s stubRow) Scan(dest ...any) error {
	if s.err != nil {
		return s.err
	}
	return assign(s.values, dest)
}

func assign(row []any, dest []any) error {
	if len(row) < len(dest) {
		return fmt.Errorf("row has %d values, want %d", len(row), len(dest))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = row[i].(string)
		case *time.Time:
			*p = row[i].(time.Time)
		case *float64:
			*p = row[i].(float64)
		case *int64:
			*p = row[i].(int64)
		case *[]byte:
			*p = row[i].([]byte)
		default:
			return fmt.Errorf("unsupported dest type %T", d)
		}
	}
	return nil
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	return data
}
