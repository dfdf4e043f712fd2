package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"trading-agent/internal/domain"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

var yahooIntervals = map[domain.Timeframe]datetime.Interval{
	domain.TimeframeD1:  datetime.OneDay,
	domain.TimeframeH1:  datetime.OneHour,
	domain.TimeframeM15: datetime.FifteenMins,
	domain.TimeframeM5:  datetime.FiveMins,
}

// YahooProvider downloads OHLC bars from the Yahoo Finance chart API.
type YahooProvider struct {
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	now     func() time.Time

	// fetchBars is swapped in tests.
	fetchBars func(p *chart.Params) ([]*finance.ChartBar, error)
}

func NewYahooProvider(ratePerSec float64) *YahooProvider {
	if ratePerSec <= 0 {
		ratePerSec = 2
	}
	settings := gobreaker.Settings{
		Name:    "yahoo-chart",
		Timeout: 60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNoData)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	}
	return &YahooProvider{
		limiter:   rate.NewLimiter(rate.Limit(ratePerSec), 1),
		breaker:   gobreaker.NewCircuitBreaker(settings),
		now:       time.Now,
		fetchBars: downloadBars,
	}
}

// Fetch downloads candles for tf. H4 is built from H1 bars and W1 from D1 bars.
func (y *YahooProvider) Fetch(ctx context.Context, symbol string, tf domain.Timeframe, lookback time.Duration) ([]domain.Candle, error) {
	switch tf {
	case domain.TimeframeH4:
		hourly, err := y.Fetch(ctx, symbol, domain.TimeframeH1, lookback)
		if err != nil {
			return nil, err
		}
		return Resample(hourly, domain.TimeframeH4), nil
	case domain.TimeframeW1:
		daily, err := y.Fetch(ctx, symbol, domain.TimeframeD1, lookback)
		if err != nil {
			return nil, err
		}
		return Resample(daily, domain.TimeframeW1), nil
	}

	interval, ok := yahooIntervals[tf]
	if !ok {
		return nil, fmt.Errorf("yahoo: unsupported timeframe %q", tf)
	}
	if err := y.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	end := y.now().UTC()
	start := end.Add(-lookback)
	params := &chart.Params{
		Symbol:   symbol,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: interval,
	}

	res, err := y.breaker.Execute(func() (interface{}, error) {
		bars, err := y.fetchBars(params)
		if err != nil {
			return nil, err
		}
		candles := toCandles(symbol, tf, bars)
		if len(candles) == 0 {
			return nil, ErrNoData
		}
		return candles, nil
	})
	if err != nil {
		return nil, fmt.Errorf("yahoo %s %s: %w", symbol, tf, err)
	}

	candles := res.([]domain.Candle)
	log.Debug().Str("symbol", symbol).Str("timeframe", string(tf)).Int("bars", len(candles)).Msg("downloaded candles")
	return candles, nil
}

func downloadBars(p *chart.Params) ([]*finance.ChartBar, error) {
	iter := chart.Get(p)
	var bars []*finance.ChartBar
	for iter.Next() {
		bars = append(bars, iter.Bar())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return bars, nil
}

// toCandles converts chart bars, dropping rows with a missing or non-positive price.
func toCandles(symbol string, tf domain.Timeframe, bars []*finance.ChartBar) []domain.Candle {
	out := make([]domain.Candle, 0, len(bars))
	for _, b := range bars {
		if b == nil {
			continue
		}
		c := domain.Candle{
			Symbol:    symbol,
			Timeframe: tf,
			OpenTime:  time.Unix(int64(b.Timestamp), 0).UTC(),
			Open:      b.Open.InexactFloat64(),
			High:      b.High.InexactFloat64(),
			Low:       b.Low.InexactFloat64(),
			Close:     b.Close.InexactFloat64(),
			Volume:    float64(b.Volume),
		}
		if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
			continue
		}
		out = append(out, c)
	}
	return out
}
