// Package cache keeps availability answers in redis between writes.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"Gin_postgres_redis_equipment_loans/engine"
	"Gin_postgres_redis_equipment_loans/lifecycle"
)

// AvailabilityCache stores answers under a per-equipment version. A commit
// bumps the version so every cached window of that equipment goes stale at
// once; stale keys expire on their own.
type AvailabilityCache struct {
	rdb *redis.Client
	ttl time.Duration
	log *slog.Logger
}

var _ engine.AvailabilityCache = (*AvailabilityCache)(nil)

func NewAvailabilityCache(rdb *redis.Client, ttl time.Duration, log *slog.Logger) *AvailabilityCache {
	return &AvailabilityCache{rdb: rdb, ttl: ttl, log: log.With("component", "availability_cache")}
}

func versionKey(equipmentID string) string { return fmt.Sprintf("avail:ver:%s", equipmentID) }

func entryKey(equipmentID string, version int64, w lifecycle.Window) string {
	return fmt.Sprintf("avail:%s:%d:%d:%d", equipmentID, version, w.Start.UnixNano(), w.End.UnixNano())
}

func (c *AvailabilityCache) Get(ctx context.Context, equipmentID string, w lifecycle.Window) (*engine.Availability, int64, bool) {
	ver, err := c.rdb.Get(ctx, versionKey(equipmentID)).Int64()
	if err != nil && err != redis.Nil {
		c.log.WarnContext(ctx, "cache version read failed", "equipment_id", equipmentID, "error", err)
		return nil, -1, false
	}
	b, err := c.rdb.Get(ctx, entryKey(equipmentID, ver, w)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.WarnContext(ctx, "cache read failed", "equipment_id", equipmentID, "error", err)
		}
		return nil, ver, false
	}
	var a engine.Availability
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, ver, false
	}
	return &a, ver, true
}

// Set stores a under the version Get reported before a was computed. A
// write committed in between has already moved the version on, so the entry
// is never read.
func (c *AvailabilityCache) Set(ctx context.Context, equipmentID string, w lifecycle.Window, version int64, a *engine.Availability) {
	if version < 0 {
		return
	}
	b, err := json.Marshal(a)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, entryKey(equipmentID, version, w), b, c.ttl).Err(); err != nil {
		c.log.WarnContext(ctx, "cache write failed", "equipment_id", equipmentID, "error", err)
	}
}

func (c *AvailabilityCache) Invalidate(ctx context.Context, equipmentIDs ...string) {
	pipe := c.rdb.TxPipeline()
	for _, id := range equipmentIDs {
		pipe.Incr(ctx, versionKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.log.ErrorContext(ctx, "cache invalidation failed", "equipment_ids", equipmentIDs, "error", err)
	}
}
