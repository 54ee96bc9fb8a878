package cache

import (
	"context"
	"strconv"

	"github.com/ManuelReschke/entitlement-sync/internal/pkg/config"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/storage/redis"
	goredis "github.com/redis/go-redis/v9"
)

// NewClient connects to the Redis/Dragonfly cache. The returned error only
// reports a failed ping; the client is always usable for later retries.
func NewClient(ctx context.Context, cfg config.CacheConfig) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pong, err := client.Ping(ctx).Result()
	if err != nil {
		log.Warnf("[Cache] Could not connect to cache at %s: %v", cfg.Addr(), err)
	} else {
		log.Infof("[Cache] Connected to cache at %s: %s", cfg.Addr(), pong)
	}
	return client, err
}

// limiterDB keeps rate limiter counters apart from webhook delivery keys.
const limiterDB = 2

// NewLimiterStorage returns fiber storage on the same cache server, used by the
// rate limiter so limits hold across instances.
func NewLimiterStorage(cfg config.CacheConfig) *redis.Storage {
	port, err := strconv.Atoi(cfg.Port)
	if err != nil {
		port = 6379
	}
	return redis.New(redis.Config{
		Host:     cfg.Host,
		Port:     port,
		Password: cfg.Password,
		Database: limiterDB,
		Reset:    false,
	})
}
