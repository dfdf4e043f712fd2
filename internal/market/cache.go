package market

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"trading-agent/internal/domain"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const maxCacheTTL = 15 * time.Minute

// CachedProvider serves repeated downloads from Redis. Cache failures fall
// through to the wrapped provider.
type CachedProvider struct {
	next   Provider
	client *redis.Client
}

func NewCachedProvider(next Provider, client *redis.Client) *CachedProvider {
	return &CachedProvider{next: next, client: client}
}

func (c *CachedProvider) Fetch(ctx context.Context, symbol string, tf domain.Timeframe, lookback time.Duration) ([]domain.Candle, error) {
	if c.client == nil {
		return c.next.Fetch(ctx, symbol, tf, lookback)
	}

	key := cacheKey(symbol, tf, lookback)
	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var candles []domain.Candle
		if err := json.Unmarshal(raw, &candles); err == nil && len(candles) > 0 {
			return candles, nil
		}
	} else if err != redis.Nil {
		log.Warn().Err(err).Str("key", key).Msg("candle cache read failed")
	}

	candles, err := c.next.Fetch(ctx, symbol, tf, lookback)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(candles); err == nil {
		if err := c.client.Set(ctx, key, payload, CacheTTL(tf)).Err(); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("candle cache write failed")
		}
	}
	return candles, nil
}

// CacheTTL is the timeframe duration capped at fifteen minutes.
func CacheTTL(tf domain.Timeframe) time.Duration {
	d := tf.Duration()
	if d <= 0 || d > maxCacheTTL {
		return maxCacheTTL
	}
	return d
}

func cacheKey(symbol string, tf domain.Timeframe, lookback time.Duration) string {
	return fmt.Sprintf("candles:%s:%s:%d", symbol, tf, int64(lookback/time.Hour))
}
