package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"trading-agent/internal/db"
	"trading-agent/internal/domain"
	"trading-agent/internal/logger"
	"trading-agent/internal/market"
	"trading-agent/internal/repository"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace/noop"
)

const defaultDays = 60

// Yahoo serves intraday bars for a limited window only.
var maxDays = map[domain.Timeframe]int{
	domain.TimeframeH1:  729,
	domain.TimeframeH4:  729,
	domain.TimeframeM15: 59,
	domain.TimeframeM5:  59,
}

var (
	loadEnvFunc      = godotenv.Load
	initPostgresFunc = db.InitPostgres
)

type options struct {
	days       int
	symbols    []string
	timeframes []domain.Timeframe
}

type candleStore interface {
	UpsertCandles(ctx context.Context, candles []domain.Candle) error
}

func main() {
	_ = loadEnvFunc()
	logger.Setup(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))

	opts, err := parseOptions(os.Args[1:], os.Getenv)
	if err != nil {
		log.Fatal().Err(err).Msg("parse options")
	}

	dsn := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dsn == "" {
		log.Fatal().Msg("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Minute)
	defer cancel()

	pool, err := initPostgresFunc(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	tracer := noop.NewTracerProvider().Tracer("backfill")
	candleRepo := repository.NewCandleRepository(pool, tracer)
	if err := candleRepo.RunMigrations(ctx); err != nil {
		log.Fatal().Err(err).Msg("run migrations")
	}

	rate := 2.0
	if v, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv("YAHOO_RATE_PER_SEC")), 64); err == nil && v > 0 {
		rate = v
	}

	log.Info().
		Int("days", opts.days).
		Strs("symbols", opts.symbols).
		Str("timeframes", joinTimeframes(opts.timeframes)).
		Msg("starting candle backfill")

	total, err := backfill(ctx, market.NewYahooProvider(rate), candleRepo, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("backfill failed")
	}
	log.Info().
		Int("symbols", len(opts.symbols)).
		Int("total_candles", total).
		Msg("backfill complete")
}

// backfill downloads every symbol/timeframe pair and upserts the candles. A
// pair without data is skipped; any other error aborts.
func backfill(ctx context.Context, provider market.Provider, store candleStore, opts options) (int, error) {
	total := 0
	for _, symbol := range opts.symbols {
		for _, tf := range opts.timeframes {
			days := opts.days
			if limit, ok := maxDays[tf]; ok && days > limit {
				log.Warn().Str("timeframe", string(tf)).Int("days", limit).Msg("lookback capped to the provider limit")
				days = limit
			}
			candles, err := provider.Fetch(ctx, symbol, tf, time.Duration(days)*24*time.Hour)
			if err != nil {
				if errors.Is(err, market.ErrNoData) {
					log.Warn().Str("symbol", symbol).Str("timeframe", string(tf)).Msg("no candles returned")
					continue
				}
				return total, fmt.Errorf("fetch %s %s: %w", symbol, tf, err)
			}
			if err := store.UpsertCandles(ctx, candles); err != nil {
				return total, fmt.Errorf("upsert %s %s: %w", symbol, tf, err)
			}
			total += len(candles)
			log.Info().Str("symbol", symbol).Str("timeframe", string(tf)).Int("candles", len(candles)).Msg("backfilled")
		}
	}
	return total, nil
}

func parseOptions(args []string, getenv func(string) string) (options, error) {
	fs := flag.NewFlagSet("backfill", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	pair := strings.TrimSpace(getenv("PAIR"))
	if pair == "" {
		pair = "EURUSD=X"
	}
	days := fs.Int("days", defaultBackfillDays(getenv), "number of historical days to backfill (default from BACKFILL_DAYS, else 60)")
	symbolsRaw := fs.String("symbols", pair, "comma-separated Yahoo tickers to backfill")
	timeframesRaw := fs.String("timeframes", joinTimeframes(domain.SupportedTimeframes), "comma-separated timeframes to backfill")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if *days <= 0 {
		return options{}, fmt.Errorf("days must be > 0")
	}

	symbols, err := normalizeSymbols(*symbolsRaw)
	if err != nil {
		return options{}, err
	}
	timeframes, err := normalizeTimeframes(*timeframesRaw)
	if err != nil {
		return options{}, err
	}

	return options{
		days:       *days,
		symbols:    symbols,
		timeframes: timeframes,
	}, nil
}

func defaultBackfillDays(getenv func(string) string) int {
	if n, err := strconv.Atoi(strings.TrimSpace(getenv("BACKFILL_DAYS"))); err == nil && n > 0 {
		return n
	}
	return defaultDays
}

func normalizeSymbols(raw string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range strings.Split(raw, ",") {
		s := strings.ToUpper(strings.TrimSpace(p))
		if s == "" {
			continue
		}
		if strings.ContainsAny(s, " /") {
			return nil, fmt.Errorf("invalid ticker: %s (use the Yahoo form, e.g. EURUSD=X)", s)
		}
		if _, exists := seen[s]; exists {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("symbols cannot be empty")
	}
	return out, nil
}

// normalizeTimeframes accepts interval or label spellings. W1 is derived from
// D1 and never stored.
func normalizeTimeframes(raw string) ([]domain.Timeframe, error) {
	seen := make(map[domain.Timeframe]struct{})
	var out []domain.Timeframe
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		tf, ok := domain.ParseTimeframe(part)
		if !ok || tf == domain.TimeframeW1 {
			return nil, fmt.Errorf("unsupported timeframe: %s", part)
		}
		if _, exists := seen[tf]; exists {
			continue
		}
		seen[tf] = struct{}{}
		out = append(out, tf)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("timeframes cannot be empty")
	}
	return out, nil
}

func joinTimeframes(tfs []domain.Timeframe) string {
	parts := make([]string, len(tfs))
	for i, tf := range tfs {
		parts[i] = string(tf)
	}
	return strings.Join(parts, ",")
}
