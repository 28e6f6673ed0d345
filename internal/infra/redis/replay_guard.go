package redis

import (
	"context"
	"fmt"
	"time"
)

// ReplayGuard remembers which webhook deliveries have already been handed to
// the application, so a re-delivered webhook is acknowledged without being
// processed twice. Markers expire after the configured TTL; this is a
// bounded cache, not a durable store.
type ReplayGuard struct {
	cli RedisClient
	ttl time.Duration
}

func NewReplayGuard(cli RedisClient, ttl time.Duration) *ReplayGuard {
	return &ReplayGuard{cli: cli, ttl: ttl}
}

// MarkProcessed records a delivery and reports whether this was the first
// time it was seen. The bank reference is unique per settled transfer, so it
// keys the marker together with the order code.
func (g *ReplayGuard) MarkProcessed(ctx context.Context, orderCode int64, reference string) (first bool, err error) {
	first, err = g.cli.SetNX(ctx, markerKey(orderCode, reference), 1, g.ttl)
	if err != nil {
		return false, fmt.Errorf("mark webhook processed: %w", err)
	}
	return first, nil
}

// Unmark drops a marker so a delivery whose handling failed is treated as
// fresh when the gateway redelivers it.
func (g *ReplayGuard) Unmark(ctx context.Context, orderCode int64, reference string) error {
	return g.cli.Del(ctx, markerKey(orderCode, reference))
}

func markerKey(orderCode int64, reference string) string {
	return fmt.Sprintf("payos:webhook:%d:%s", orderCode, reference)
}
