package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-authgate/sallyport/internal/config"
	"github.com/go-authgate/sallyport/internal/core"
	"github.com/go-authgate/sallyport/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterRedis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// RateLimitConfig configures one limiter. Each endpoint gets its own limiter
// and key prefix so budgets are not shared between endpoints.
type RateLimitConfig struct {
	Name              string // key prefix and audit label, e.g. "token"
	RequestsPerMinute int
	CleanupInterval   time.Duration // memory store only

	StoreType   string        // config.RateLimitStoreMemory or config.RateLimitStoreRedis
	RedisClient *redis.Client // required for the redis store

	// Audit receives an event whenever a client is throttled. May be nil.
	Audit core.AuditRecorder
}

// NewRateLimiter creates a per-IP limiter backed by memory or Redis.
func NewRateLimiter(cfg RateLimitConfig) (gin.HandlerFunc, error) {
	if cfg.RequestsPerMinute <= 0 {
		return nil, fmt.Errorf("rate limit for %q must be positive", cfg.Name)
	}

	rate := limiter.Rate{
		Period: time.Minute,
		Limit:  int64(cfg.RequestsPerMinute),
	}
	opts := limiter.StoreOptions{
		Prefix:          "sallyport:ratelimit:" + cfg.Name,
		CleanUpInterval: cfg.CleanupInterval,
	}

	var store limiter.Store
	switch cfg.StoreType {
	case config.RateLimitStoreRedis:
		if cfg.RedisClient == nil {
			return nil, fmt.Errorf("redis rate limit store for %q has no client", cfg.Name)
		}
		s, err := limiterRedis.NewStoreWithOptions(cfg.RedisClient, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis rate limit store: %w", err)
		}
		store = s
	default:
		store = memory.NewStoreWithOptions(opts)
	}

	instance := limiter.New(store, rate)
	return mgin.NewMiddleware(instance, mgin.WithLimitReachedHandler(func(c *gin.Context) {
		if cfg.Audit != nil {
			cfg.Audit.Log(c.Request.Context(), models.AuditEntry{
				EventType:     models.EventRateLimitExceeded,
				Severity:      models.SeverityWarning,
				ActorIP:       c.ClientIP(),
				Action:        "Rate limit exceeded",
				Details:       models.AuditDetails{"limiter": cfg.Name, "limit_per_minute": cfg.RequestsPerMinute},
				Success:       false,
				UserAgent:     c.Request.UserAgent(),
				RequestPath:   c.Request.URL.Path,
				RequestMethod: c.Request.Method,
			})
		}
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":             "rate_limit_exceeded",
			"error_description": "Too many requests. Please try again later.",
		})
	})), nil
}
