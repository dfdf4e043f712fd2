package notify

import (
	"context"
	"fmt"
	"time"

	"trading-agent/internal/domain"
	"trading-agent/internal/report"

	"github.com/redis/go-redis/v9"
)

// Deduper suppresses repeated alerts for the same trade idea within a TTL.
// Non-actionable reports and a nil client always pass.
type Deduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewDeduper(client *redis.Client, ttl time.Duration) *Deduper {
	return &Deduper{client: client, ttl: ttl}
}

// Allow claims the report's dedupe key and reports whether it was new.
func (d *Deduper) Allow(ctx context.Context, r *domain.Report) (bool, error) {
	if d == nil || d.client == nil || d.ttl <= 0 || r == nil || !r.Actionable() {
		return true, nil
	}
	ok, err := d.client.SetNX(ctx, Key(r), r.GeneratedAt.Unix(), d.ttl).Result()
	if err != nil {
		// fail open
		return true, fmt.Errorf("dedupe: %w", err)
	}
	return ok, nil
}

// Release drops a claimed key so a report that reached no channel can be
// retried on the next run.
func (d *Deduper) Release(ctx context.Context, r *domain.Report) error {
	if d == nil || d.client == nil || d.ttl <= 0 || r == nil || !r.Actionable() {
		return nil
	}
	if err := d.client.Del(ctx, Key(r)).Err(); err != nil {
		return fmt.Errorf("dedupe release: %w", err)
	}
	return nil
}

func Key(r *domain.Report) string {
	return fmt.Sprintf("notify:%s:%s:%s:%s", r.Symbol, r.Type, r.Side, report.Price(r.Entry))
}
