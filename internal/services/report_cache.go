package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sgco/clinic-backend/internal/platform/logger"
)

const (
	reportCacheVersionKey = "reportes:version"
	reportCacheTTL        = 10 * time.Minute
)

// ReportCache memoizes computed financial reports in Redis. Invalidation bumps
// a version counter baked into every key, so stale entries just age out under
// the TTL. A nil client disables caching entirely.
type ReportCache struct {
	client *redis.Client
	log    *logger.Logger
}

func NewReportCache(client *redis.Client, baseLog *logger.Logger) *ReportCache {
	return &ReportCache{client: client, log: baseLog.With("service", "ReportCache")}
}

func (c *ReportCache) enabled() bool {
	return c != nil && c.client != nil
}

func (c *ReportCache) version(ctx context.Context) int64 {
	ver, err := c.client.Get(ctx, reportCacheVersionKey).Int64()
	if err != nil && err != redis.Nil {
		c.log.Warn("Report cache version lookup failed", "error", err)
	}
	return ver
}

func (c *ReportCache) Key(ctx context.Context, parts ...interface{}) string {
	if !c.enabled() {
		return ""
	}
	key := fmt.Sprintf("reportes:v%d", c.version(ctx))
	for _, p := range parts {
		key += fmt.Sprintf(":%v", p)
	}
	return key
}

// Get unmarshals a cached report into dest, reporting whether it was found.
func (c *ReportCache) Get(ctx context.Context, key string, dest interface{}) bool {
	if !c.enabled() || key == "" {
		return false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("Report cache read failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		c.log.Warn("Report cache entry corrupt, discarding", "key", key, "error", err)
		return false
	}
	return true
}

func (c *ReportCache) Set(ctx context.Context, key string, val interface{}) {
	if !c.enabled() || key == "" {
		return
	}
	raw, err := json.Marshal(val)
	if err != nil {
		c.log.Warn("Report cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, raw, reportCacheTTL).Err(); err != nil {
		c.log.Warn("Report cache write failed", "key", key, "error", err)
	}
}

// Invalidate drops all cached reports by bumping the version counter.
func (c *ReportCache) Invalidate(ctx context.Context) {
	if !c.enabled() {
		return
	}
	if err := c.client.Incr(ctx, reportCacheVersionKey).Err(); err != nil {
		c.log.Warn("Report cache invalidation failed", "error", err)
	}
}
