package main

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"trading-agent/internal/domain"
	"trading-agent/internal/market"
)

func TestDefaultBackfillDays(t *testing.T) {
	getenv := func(key string) string { return "" }
	if got := defaultBackfillDays(getenv); got != defaultDays {
		t.Fatalf("expected default %d, got %d", defaultDays, got)
	}

	getenv = func(key string) string {
		if key == "BACKFILL_DAYS" {
			return "120"
		}
		return ""
	}
	if got := defaultBackfillDays(getenv); got != 120 {
		t.Fatalf("expected 120, got %d", got)
	}

	getenv = func(key string) string { return "-3" }
	if got := defaultBackfillDays(getenv); got != defaultDays {
		t.Fatalf("expected invalid value to fall back, got %d", got)
	}
}

func TestNormalizeSymbols(t *testing.T) {
	symbols, err := normalizeSymbols("eurusd=x, GBPUSD=X,eurusd=x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []string{"EURUSD=X", "GBPUSD=X"}
	if !reflect.DeepEqual(symbols, expected) {
		t.Fatalf("expected %v, got %v", expected, symbols)
	}

	if _, err := normalizeSymbols("EUR/USD"); err == nil {
		t.Fatal("expected invalid ticker error")
	}
	if _, err := normalizeSymbols(" ,, "); err == nil {
		t.Fatal("expected empty symbol error")
	}
}

func TestNormalizeTimeframes(t *testing.T) {
	tfs, err := normalizeTimeframes("H1, 15m,1h,D1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []domain.Timeframe{domain.TimeframeH1, domain.TimeframeM15, domain.TimeframeD1}
	if !reflect.DeepEqual(tfs, expected) {
		t.Fatalf("expected %v, got %v", expected, tfs)
	}

	if _, err := normalizeTimeframes("W1"); err == nil {
		t.Fatal("expected W1 to be rejected")
	}
	if _, err := normalizeTimeframes("2h"); err == nil {
		t.Fatal("expected unsupported timeframe error")
	}
}

func TestParseOptions(t *testing.T) {
	getenv := func(key string) string {
		switch key {
		case "BACKFILL_DAYS":
			return "30"
		case "PAIR":
			return "USDJPY=X"
		}
		return ""
	}

	opts, err := parseOptions(nil, getenv)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.days != 30 || !reflect.DeepEqual(opts.symbols, []string{"USDJPY=X"}) {
		t.Fatalf("unexpected defaults: %+v", opts)
	}
	if !reflect.DeepEqual(opts.timeframes, domain.SupportedTimeframes) {
		t.Fatalf("expected all supported timeframes, got %v", opts.timeframes)
	}

	opts, err = parseOptions([]string{"-days", "10", "-symbols", "gbpusd=x", "-timeframes", "1d,1h"}, getenv)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.days != 10 || opts.symbols[0] != "GBPUSD=X" || len(opts.timeframes) != 2 {
		t.Fatalf("unexpected parsed options: %+v", opts)
	}

	if _, err := parseOptions([]string{"-days", "0"}, getenv); err == nil {
		t.Fatal("expected days validation error")
	}
}

type fetchCall struct {
	symbol   string
	tf       domain.Timeframe
	lookback time.Duration
}

type stubProvider struct {
	calls []fetchCall
	fail  map[domain.Timeframe]error
}

func (p *stubProvider) Fetch(_ context.Context, symbol string, tf domain.Timeframe, lookback time.Duration) ([]domain.Candle, error) {
	p.calls = append(p.calls, fetchCall{symbol, tf, lookback})
	if err := p.fail[tf]; err != nil {
		return nil, err
	}
	return []domain.Candle{{Symbol: symbol, Timeframe: tf}, {Symbol: symbol, Timeframe: tf}}, nil
}

type stubStore struct {
	stored int
	err    error
}

func (s *stubStore) UpsertCandles(_ context.Context, candles []domain.Candle) error {
	if s.err != nil {
		return s.err
	}
	s.stored += len(candles)
	return nil
}

func TestBackfill(t *testing.T) {
	provider := &stubProvider{fail: map[domain.Timeframe]error{domain.TimeframeM5: market.ErrNoData}}
	store := &stubStore{}
	opts := options{
		days:       365,
		symbols:    []string{"EURUSD=X"},
		timeframes: []domain.Timeframe{domain.TimeframeD1, domain.TimeframeM15, domain.TimeframeM5},
	}

	total, err := backfill(context.Background(), provider, store, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 4 || store.stored != 4 {
		t.Fatalf("expected 4 candles stored, got total=%d stored=%d", total, store.stored)
	}
	if provider.calls[0].lookback != 365*24*time.Hour {
		t.Fatalf("expected full D1 lookback, got %v", provider.calls[0].lookback)
	}
	if provider.calls[1].lookback != 59*24*time.Hour {
		t.Fatalf("expected M15 lookback capped to 59 days, got %v", provider.calls[1].lookback)
	}
}

func TestBackfillAbortsOnError(t *testing.T) {
	provider := &stubProvider{fail: map[domain.Timeframe]error{domain.TimeframeH1: errors.New("breaker open")}}
	opts := options{days: 5, symbols: []string{"EURUSD=X"}, timeframes: []domain.Timeframe{domain.TimeframeH1}}

	if _, err := backfill(context.Background(), provider, &stubStore{}, opts); err == nil {
		t.Fatal("expected fetch error")
	}

	opts.timeframes = []domain.Timeframe{domain.TimeframeD1}
	if _, err := backfill(context.Background(), &stubProvider{}, &stubStore{err: errors.New("db down")}, opts); err == nil {
		t.Fatal("expected upsert error")
	}
}
