package util

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deduper guards an action so it runs at most once per key across process
// restarts, using SETNX with a TTL.
type Deduper struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewDeduper(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Deduper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deduper{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
	}
}

// DedupKey formats the Redis key for scope and id.
func DedupKey(scope, id string) string {
	return fmt.Sprintf("dedup:%s:%s", scope, id)
}

// AcquireOnce returns true the first time scope/id is seen within the TTL and
// false for duplicates. When Redis is unavailable it allows the action.
func (d *Deduper) AcquireOnce(ctx context.Context, scope, id string) bool {
	key := DedupKey(scope, id)

	ok, err := d.rdb.SetNX(ctx, key, time.Now().Unix(), d.ttl).Result()
	if err != nil {
		d.logger.Warn("Redis dedup check failed, allowing action",
			zap.String("scope", scope),
			zap.String("id", id),
			zap.Error(err),
		)
		return true
	}

	if !ok {
		d.logger.Info("Skipped duplicated action",
			zap.String("scope", scope),
			zap.String("id", id),
			zap.String("dedup_key", key),
		)
	}
	return ok
}

// Release forgets scope/id so a later attempt may run again.
func (d *Deduper) Release(ctx context.Context, scope, id string) {
	if err := d.rdb.Del(ctx, DedupKey(scope, id)).Err(); err != nil {
		d.logger.Warn("Redis dedup release failed",
			zap.String("scope", scope),
			zap.String("id", id),
			zap.Error(err),
		)
	}
}
