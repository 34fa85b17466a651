package asset

import (
	"context"
	"time"

	glog "github.com/Laisky/go-utils/v5/log"
	"github.com/Laisky/zap"
	"github.com/go-redis/redis/v8"
	"github.com/patrickmn/go-cache"
)

const redisKeyPrefix = "grok-relay:asset:"

// index remembers the content type of every materialized asset. The local
// cache answers most lookups; redis, when configured, lets replicas sharing
// a cache directory skip the content sniffing of files they did not fetch.
type index struct {
	local *cache.Cache
	rdb   redis.Cmdable
	ttl   time.Duration
	lg    glog.Logger
}

func newIndex(ttl time.Duration, rdb redis.Cmdable, lg glog.Logger) *index {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &index{
		local: cache.New(ttl, ttl/2),
		rdb:   rdb,
		ttl:   ttl,
		lg:    lg,
	}
}

func (i *index) lookup(ctx context.Context, key string) (string, bool) {
	if v, ok := i.local.Get(key); ok {
		return v.(string), true
	}
	if i.rdb == nil {
		return "", false
	}

	contentType, err := i.rdb.Get(ctx, redisKeyPrefix+key).Result()
	switch {
	case err == redis.Nil:
		return "", false
	case err != nil:
		i.lg.Warn("asset index redis lookup failed", zap.String("key", key), zap.Error(err))
		return "", false
	}
	i.local.SetDefault(key, contentType)
	return contentType, true
}

func (i *index) store(ctx context.Context, key, contentType string) {
	i.local.SetDefault(key, contentType)
	if i.rdb == nil {
		return
	}
	if err := i.rdb.Set(ctx, redisKeyPrefix+key, contentType, i.ttl).Err(); err != nil {
		i.lg.Warn("asset index redis store failed", zap.String("key", key), zap.Error(err))
	}
}
