package market

import (
	"context"
	"errors"
	"time"

	"trading-agent/internal/domain"

	"github.com/rs/zerolog/log"
)

// ErrNoData is returned when a download yields no usable candles.
var ErrNoData = errors.New("market: no data")

// VIXSymbol is the volatility index used for the market mood.
const VIXSymbol = "^VIX"

// Provider downloads candles for a symbol covering the lookback window ending now.
type Provider interface {
	Fetch(ctx context.Context, symbol string, tf domain.Timeframe, lookback time.Duration) ([]domain.Candle, error)
}

// Request is one entry of a download plan.
type Request struct {
	Timeframe domain.Timeframe
	Lookback  time.Duration
	// Optional downloads may fail without aborting the plan.
	Optional bool
}

const day = 24 * time.Hour

// DefaultPlan lists the downloads of one analysis run, highest timeframe first.
var DefaultPlan = []Request{
	{Timeframe: domain.TimeframeD1, Lookback: 183 * day},
	{Timeframe: domain.TimeframeH4, Lookback: 60 * day},
	{Timeframe: domain.TimeframeH1, Lookback: 30 * day},
	{Timeframe: domain.TimeframeM15, Lookback: 10 * day, Optional: true},
	{Timeframe: domain.TimeframeM5, Lookback: 5 * day, Optional: true},
}

// VIXRequest is the download used for the market mood.
var VIXRequest = Request{Timeframe: domain.TimeframeD1, Lookback: 7 * day}

// FetchPlan downloads every request of plan for symbol. A failing required
// request aborts the whole plan; failed optional ones are left out of the result.
func FetchPlan(ctx context.Context, p Provider, symbol string, plan []Request) (map[domain.Timeframe][]domain.Candle, error) {
	out := make(map[domain.Timeframe][]domain.Candle, len(plan))
	for _, req := range plan {
		candles, err := p.Fetch(ctx, symbol, req.Timeframe, req.Lookback)
		if err != nil {
			if req.Optional && ctx.Err() == nil {
				log.Warn().Err(err).Str("symbol", symbol).Str("timeframe", string(req.Timeframe)).Msg("optional download failed")
				continue
			}
			return nil, err
		}
		out[req.Timeframe] = candles
	}
	return out, nil
}
