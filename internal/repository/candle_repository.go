package repository

import (
	"context"
	"fmt"
	"slices"
	"time"

	"trading-agent/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PgxPool is the subset of *pgxpool.Pool the repositories use.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const candleSchema = `
CREATE TABLE IF NOT EXISTS candles (
    symbol    TEXT             NOT NULL,
    timeframe TEXT             NOT NULL,
    open_time TIMESTAMPTZ      NOT NULL,
    open      DOUBLE PRECISION NOT NULL,
    high      DOUBLE PRECISION NOT NULL,
    low       DOUBLE PRECISION NOT NULL,
    close     DOUBLE PRECISION NOT NULL,
    volume    DOUBLE PRECISION NOT NULL DEFAULT 0,
    PRIMARY KEY (symbol, timeframe, open_time)
)`

// One statement per series chunk; the columns travel as parallel arrays.
const upsertCandlesSQL = `
INSERT INTO candles (symbol, timeframe, open_time, open, high, low, close, volume)
SELECT $1, $2, u.open_time, u.open, u.high, u.low, u.close, u.volume
FROM unnest($3::timestamptz[], $4::float8[], $5::float8[], $6::float8[], $7::float8[], $8::float8[])
    AS u(open_time, open, high, low, close, volume)
ON CONFLICT (symbol, timeframe, open_time) DO UPDATE SET
    open = EXCLUDED.open,
    high = EXCLUDED.high,
    low = EXCLUDED.low,
    close = EXCLUDED.close,
    volume = EXCLUDED.volume`

const upsertChunk = 1000

type CandleRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewCandleRepository(pool PgxPool, tracer trace.Tracer) *CandleRepository {
	return &CandleRepository{pool: pool, tracer: tracer}
}

func (r *CandleRepository) RunMigrations(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, candleSchema)
	return err
}

type seriesKey struct {
	symbol string
	tf     domain.Timeframe
}

// UpsertCandles writes candles keyed by (symbol, timeframe, open_time). A
// rewritten bar replaces the stored one, which lets the still-forming candle
// be refreshed on every run.
func (r *CandleRepository) UpsertCandles(ctx context.Context, candles []domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	ctx, span := r.tracer.Start(ctx, "candle-repo.upsert-candles")
	defer span.End()
	span.SetAttributes(attribute.Int("candles", len(candles)))

	var order []seriesKey
	series := make(map[seriesKey][]domain.Candle)
	for _, c := range candles {
		k := seriesKey{c.Symbol, c.Timeframe}
		if _, ok := series[k]; !ok {
			order = append(order, k)
		}
		series[k] = append(series[k], c)
	}

	for _, k := range order {
		for chunk := range slices.Chunk(series[k], upsertChunk) {
			if err := r.upsertSeries(ctx, k, chunk); err != nil {
				span.RecordError(err)
				return fmt.Errorf("upsert %s %s: %w", k.symbol, k.tf, err)
			}
		}
	}
	return nil
}

func (r *CandleRepository) upsertSeries(ctx context.Context, k seriesKey, candles []domain.Candle) error {
	n := len(candles)
	times := make([]time.Time, n)
	opens := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	volumes := make([]float64, n)
	for i, c := range candles {
		times[i] = c.OpenTime.UTC()
		opens[i], highs[i], lows[i], closes[i], volumes[i] = c.Open, c.High, c.Low, c.Close, c.Volume
	}
	_, err := r.pool.Exec(ctx, upsertCandlesSQL, k.symbol, string(k.tf), times, opens, highs, lows, closes, volumes)
	return err
}

// GetCandles returns the most recent limit candles, oldest first.
func (r *CandleRepository) GetCandles(ctx context.Context, symbol string, tf domain.Timeframe, limit int) ([]domain.Candle, error) {
	ctx, span := r.tracer.Start(ctx, "candle-repo.get-candles")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT open_time, open, high, low, close, volume
		 FROM candles
		 WHERE symbol = $1 AND timeframe = $2
		 ORDER BY open_time DESC
		 LIMIT $3`,
		symbol, string(tf), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Candle
	for rows.Next() {
		c := domain.Candle{Symbol: symbol, Timeframe: tf}
		if err := rows.Scan(&c.OpenTime, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, err
		}
		c.OpenTime = c.OpenTime.UTC()
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slices.Reverse(out)
	return out, nil
}
