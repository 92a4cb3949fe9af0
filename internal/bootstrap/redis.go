package bootstrap

import (
	"context"
	"fmt"
	"log"

	"github.com/go-authgate/sallyport/internal/config"

	"github.com/redis/go-redis/v9"
)

// needsGoRedis reports whether any component backed by go-redis is enabled.
// The client cache uses rueidis and opens its own connections.
func needsGoRedis(cfg *config.Config) bool {
	if cfg.GrantStoreType == config.GrantStoreRedis {
		return true
	}
	return cfg.EnableRateLimit && cfg.RateLimitStore == config.RateLimitStoreRedis
}

// initializeRedisClient connects the go-redis client shared by the grant
// store and the rate limiter. Returns nil when neither uses Redis.
func initializeRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	if !needsGoRedis(cfg) {
		return nil, nil //nolint:nilnil // redis client not needed in this configuration
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	// Test connection with timeout
	ctx, cancel := context.WithTimeout(ctx, cfg.RedisConnTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.RedisAddr, err)
	}

	log.Printf("Redis client initialized (address: %s, db: %d)", cfg.RedisAddr, cfg.RedisDB)
	return client, nil
}
