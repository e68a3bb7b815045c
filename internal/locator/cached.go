package locator

import (
	"context"
	"log/slog"
	"time"

	"github.com/zulandar/aocrank/internal/logging"
	"github.com/zulandar/aocrank/internal/metrics"
)

// Cached wraps a Locator and remembers Locate and IsWallet answers.
// Scheduler records are always fetched fresh. Cache failures fall through
// to the wrapped Locator.
type Cached struct {
	next   Locator
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewCached creates a Cached locator.
func NewCached(next Locator, cache Cache, ttl time.Duration, logger *slog.Logger) *Cached {
	return &Cached{next: next, cache: cache, ttl: ttl, logger: logging.For(logger, "locator-cache")}
}

// Locate implements Locator.
func (c *Cached) Locate(ctx context.Context, processID string) (Location, error) {
	key := "locate:" + processID
	var loc Location
	if c.lookup(ctx, "locate", key, &loc) {
		return loc, nil
	}
	loc, err := c.next.Locate(ctx, processID)
	if err != nil {
		return loc, err
	}
	c.store(ctx, key, loc)
	return loc, nil
}

// FetchSchedulerProcess implements Locator.
func (c *Cached) FetchSchedulerProcess(ctx context.Context, processID, url string) (SchedulerProcess, error) {
	return c.next.FetchSchedulerProcess(ctx, processID, url)
}

// IsWallet implements Locator.
func (c *Cached) IsWallet(ctx context.Context, id string) (bool, error) {
	key := "wallet:" + id
	var wallet bool
	if c.lookup(ctx, "wallet", key, &wallet) {
		return wallet, nil
	}
	wallet, err := c.next.IsWallet(ctx, id)
	if err != nil {
		return false, err
	}
	c.store(ctx, key, wallet)
	return wallet, nil
}

func (c *Cached) lookup(ctx context.Context, kind, key string, dest any) bool {
	hit, err := c.cache.Get(ctx, key, dest)
	if err != nil {
		c.logger.Warn("Location cache read failed", "key", key, "error", err)
	}
	result := "miss"
	if hit && err == nil {
		result = "hit"
	}
	metrics.LocatorCacheTotal.WithLabelValues(kind, result).Inc()
	return hit && err == nil
}

func (c *Cached) store(ctx context.Context, key string, value any) {
	if err := c.cache.Set(ctx, key, value, c.ttl); err != nil {
		c.logger.Warn("Location cache write failed", "key", key, "error", err)
	}
}
