package bootstrap

import (
	"fmt"
	"log"

	"github.com/go-authgate/sallyport/internal/config"
	"github.com/go-authgate/sallyport/internal/core"
	"github.com/go-authgate/sallyport/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// rateLimitMiddlewares holds rate limiting middlewares for different endpoints
type rateLimitMiddlewares struct {
	authorize  gin.HandlerFunc
	token      gin.HandlerFunc
	introspect gin.HandlerFunc
	revoke     gin.HandlerFunc
}

// setupRateLimiting configures rate limiting middlewares based on configuration.
// redisClient may be nil for the memory store.
func setupRateLimiting(
	cfg *config.Config,
	audit core.AuditRecorder,
	redisClient *redis.Client,
) (rateLimitMiddlewares, error) {
	if !cfg.EnableRateLimit {
		noOp := func(c *gin.Context) { c.Next() }
		log.Println("Rate limiting disabled")
		return rateLimitMiddlewares{
			authorize:  noOp,
			token:      noOp,
			introspect: noOp,
			revoke:     noOp,
		}, nil
	}

	if cfg.RateLimitStore == config.RateLimitStoreRedis {
		log.Printf("Rate limiting enabled (store: redis, shared across instances)")
	} else {
		log.Printf("Rate limiting enabled (store: memory, single instance only)")
	}

	var firstErr error
	createLimiter := func(name string, requestsPerMinute int) gin.HandlerFunc {
		limiter, err := middleware.NewRateLimiter(middleware.RateLimitConfig{
			Name:              name,
			RequestsPerMinute: requestsPerMinute,
			CleanupInterval:   cfg.RateLimitCleanupInterval,
			StoreType:         cfg.RateLimitStore,
			RedisClient:       redisClient,
			Audit:             audit,
		})
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to create rate limiter for /%s: %w", name, err)
		}
		return limiter
	}

	limiters := rateLimitMiddlewares{
		authorize:  createLimiter("authorize", cfg.AuthorizeRateLimit),
		token:      createLimiter("token", cfg.TokenRateLimit),
		introspect: createLimiter("introspect", cfg.IntrospectRateLimit),
		revoke:     createLimiter("revoke", cfg.RevokeRateLimit),
	}
	if firstErr != nil {
		return rateLimitMiddlewares{}, firstErr
	}
	return limiters, nil
}
