package market

import (
	"sort"
	"time"

	"trading-agent/internal/domain"
)

// Resample aggregates candles into buckets of the target timeframe. Buckets are
// keyed by their open time: UTC multiples of the target duration, or Mondays for W1.
// Empty buckets are skipped.
func Resample(candles []domain.Candle, target domain.Timeframe) []domain.Candle {
	if len(candles) == 0 || !target.IsValid() {
		return nil
	}
	sorted := make([]domain.Candle, len(candles))
	copy(sorted, candles)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].OpenTime.Before(sorted[j].OpenTime) })

	out := make([]domain.Candle, 0, len(sorted))
	var cur *domain.Candle
	for _, c := range sorted {
		key := bucketStart(c.OpenTime, target)
		if cur != nil && cur.OpenTime.Equal(key) {
			if c.High > cur.High {
				cur.High = c.High
			}
			if c.Low < cur.Low {
				cur.Low = c.Low
			}
			cur.Close = c.Close
			cur.Volume += c.Volume
			continue
		}
		out = append(out, domain.Candle{
			Symbol:    c.Symbol,
			Timeframe: target,
			OpenTime:  key,
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Volume:    c.Volume,
		})
		cur = &out[len(out)-1]
	}
	return out
}

func bucketStart(t time.Time, tf domain.Timeframe) time.Time {
	t = t.UTC()
	if tf == domain.TimeframeW1 {
		midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(midnight.Weekday()) + 6) % 7
		return midnight.AddDate(0, 0, -offset)
	}
	return t.Truncate(tf.Duration())
}
