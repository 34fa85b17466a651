package common

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"github.com/go-redis/redis/v8"

	"github.com/fuchsia74/grok-relay/common/config"
	"github.com/fuchsia74/grok-relay/common/logger"
)

// RDB backs the shared asset index. It is nil unless InitRedisClient enabled redis.
var RDB redis.Cmdable

var redisEnabled atomic.Bool

func IsRedisEnabled() bool {
	return redisEnabled.Load()
}

func SetRedisEnabled(enabled bool) {
	redisEnabled.Store(enabled)
}

// InitRedisClient connects to redis when REDIS_CONN_STRING is set. Without it
// the asset index stays in process.
func InitRedisClient() error {
	if config.RedisConnString == "" {
		SetRedisEnabled(false)
		logger.Logger.Info("REDIS_CONN_STRING not set, Redis is not enabled")
		return nil
	}

	client, err := newRedisClient(config.RedisConnString, config.RedisMasterName, config.RedisPassword)
	if err != nil {
		return errors.Wrap(err, "create redis client")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err = client.Ping(ctx).Result(); err != nil {
		return errors.Wrap(err, "redis ping test failed")
	}

	RDB = client
	SetRedisEnabled(true)
	return nil
}

func newRedisClient(connString, masterName, password string) (redis.UniversalClient, error) {
	if masterName == "" {
		logger.Logger.Info("Redis is enabled")
		opt, err := redis.ParseURL(connString)
		if err != nil {
			return nil, errors.Wrap(err, "parse redis connection string")
		}
		return redis.NewClient(opt), nil
	}

	// sentinel mode
	logger.Logger.Info("Redis sentinel mode enabled", zap.String("master_name", masterName))
	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:      strings.Split(connString, ","),
		Password:   password,
		MasterName: masterName,
	}), nil
}
