// Package redisatomic coordinates a resource.Budget's cost-per-hour spend
// across multiple orchestrator processes using Redis as the shared ledger,
// the same cross-process coordination role the teacher's rmap-backed
// cluster rate limiter plays for tokens-per-minute.
package redisatomic

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SpendTracker records cost events in Redis sorted sets so the rolling
// hourly spend can be queried without a central coordinator.
type SpendTracker struct {
	client *redis.Client
	key    string
	window time.Duration
}

// New builds a SpendTracker keyed under key, typically one key per
// resource pool (e.g. "budget:anthropic" or "budget:global").
func New(client *redis.Client, key string) *SpendTracker {
	return &SpendTracker{client: client, key: key, window: time.Hour}
}

// RecordSpend appends a cost event at now and trims entries older than the
// rolling window.
func (s *SpendTracker) RecordSpend(ctx context.Context, now time.Time, costUSD float64) error {
	member := fmt.Sprintf("%d:%f", now.UnixNano(), costUSD)
	if err := s.client.ZAdd(ctx, s.key, redis.Z{Score: float64(now.UnixNano()), Member: member}).Err(); err != nil {
		return fmt.Errorf("redisatomic: record spend: %w", err)
	}
	cutoff := now.Add(-s.window)
	return s.client.ZRemRangeByScore(ctx, s.key, "-inf", fmt.Sprintf("%d", cutoff.UnixNano())).Err()
}

// SpentSince sums the cost of every event recorded at or after since.
func (s *SpendTracker) SpentSince(ctx context.Context, since time.Time) (float64, error) {
	members, err := s.client.ZRangeByScore(ctx, s.key, &redis.ZRangeBy{
		Min: fmt.Sprintf("%d", since.UnixNano()),
		Max: "+inf",
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("redisatomic: spent since: %w", err)
	}
	var total float64
	for _, m := range members {
		var ts int64
		var cost float64
		if _, err := fmt.Sscanf(m, "%d:%f", &ts, &cost); err == nil {
			total += cost
		}
	}
	return total, nil
}

// Headroom reports budgetUSD minus spend recorded in the trailing hour.
func (s *SpendTracker) Headroom(ctx context.Context, now time.Time, budgetUSD float64) (float64, error) {
	spent, err := s.SpentSince(ctx, now.Add(-s.window))
	if err != nil {
		return 0, err
	}
	return budgetUSD - spent, nil
}
