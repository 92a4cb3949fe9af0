package bootstrap

import (
	"context"
	"fmt"
	"log"

	"github.com/go-authgate/sallyport/internal/cache"
	"github.com/go-authgate/sallyport/internal/config"
	"github.com/go-authgate/sallyport/internal/core"
	"github.com/go-authgate/sallyport/internal/metrics"
	"github.com/go-authgate/sallyport/internal/services"
)

const cacheKeyPrefix = "sallyport:"

// initializeMetrics initializes Prometheus metrics
func initializeMetrics(cfg *config.Config) core.Recorder {
	prometheusMetrics := metrics.Init(cfg.MetricsEnabled)
	if cfg.MetricsEnabled {
		log.Println("Prometheus metrics initialized")
	} else {
		log.Println("Metrics disabled (using noop implementation)")
	}
	return prometheusMetrics
}

// initializeClientCache initializes the client registration cache
// (always enabled, defaults to memory)
func initializeClientCache(
	ctx context.Context,
	cfg *config.Config,
) (core.Cache[services.CachedClient], error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.CacheInitTimeout)
	defer cancel()

	switch cfg.ClientCacheType {
	case config.ClientCacheTypeRedisAside:
		c, err := cache.NewRueidisAsideCache[services.CachedClient](
			cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
			cacheKeyPrefix,
			cfg.ClientCacheClientTTL,
			cfg.ClientCacheSizePerConn,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis-aside client cache: %w", err)
		}
		if err := c.Health(ctx); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("redis-aside client cache is unreachable: %w", err)
		}
		log.Printf(
			"Client cache: redis-aside (addr=%s, db=%d, client_ttl=%s, cache_size_per_conn=%dMB)",
			cfg.RedisAddr,
			cfg.RedisDB,
			cfg.ClientCacheClientTTL,
			cfg.ClientCacheSizePerConn,
		)
		return c, nil

	case config.ClientCacheTypeRedis:
		c, err := cache.NewRueidisCache[services.CachedClient](
			ctx,
			cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
			cacheKeyPrefix,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis client cache: %w", err)
		}
		log.Printf("Client cache: redis (addr=%s, db=%d)", cfg.RedisAddr, cfg.RedisDB)
		return c, nil

	default: // memory
		log.Println("Client cache: memory (single instance only)")
		return cache.NewMemoryCache[services.CachedClient](), nil
	}
}
