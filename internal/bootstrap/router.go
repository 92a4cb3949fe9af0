package bootstrap

import (
	"log"
	"net/http"

	"github.com/go-authgate/sallyport/internal/config"
	"github.com/go-authgate/sallyport/internal/core"
	"github.com/go-authgate/sallyport/internal/metrics"
	"github.com/go-authgate/sallyport/internal/middleware"
	"github.com/go-authgate/sallyport/internal/util"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

const sessionCookieName = "sallyport_session"

// setupRouter configures the Gin router with all routes and middleware
func setupRouter(
	cfg *config.Config,
	h handlerSet,
	prometheusMetrics core.Recorder,
	audit core.AuditRecorder,
	redisClient *redis.Client,
) (*gin.Engine, error) {
	setupGinMode(cfg)
	r := gin.New()

	// Setup middleware
	r.Use(metrics.HTTPMetricsMiddleware(prometheusMetrics))
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(util.IPMiddleware())

	r.GET("/health", h.health.Health)

	setupMetricsEndpoint(r, cfg)

	rateLimiters, err := setupRateLimiting(cfg, audit, redisClient)
	if err != nil {
		return nil, err
	}

	setupAllRoutes(r, cfg, h, rateLimiters)

	logServerStartup(cfg)
	return r, nil
}

func setupGinMode(cfg *config.Config) {
	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}
}

// sessionMiddleware reads the cookie session shared with the login service.
func sessionMiddleware(cfg *config.Config) gin.HandlerFunc {
	sessionStore := cookie.NewStore([]byte(cfg.SessionSecret))
	sessionStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   cfg.SessionMaxAge,
		HttpOnly: true,
		Secure:   cfg.IsProduction,
		SameSite: http.SameSiteLaxMode,
	})
	return sessions.Sessions(sessionCookieName, sessionStore)
}

// identityMiddlewares returns the chain that resolves the end user on
// browser-facing routes.
func identityMiddlewares(cfg *config.Config) []gin.HandlerFunc {
	if cfg.IdentitySource == config.IdentitySourceHeader {
		return []gin.HandlerFunc{
			middleware.LoadIdentity(middleware.NewHeaderIdentityResolver(
				cfg.IdentityHeader,
				cfg.IdentityTenantHeader,
			)),
		}
	}
	return []gin.HandlerFunc{
		sessionMiddleware(cfg),
		middleware.LoadIdentity(middleware.NewSessionIdentityResolver()),
	}
}

// setupMetricsEndpoint configures the Prometheus metrics endpoint
func setupMetricsEndpoint(r *gin.Engine, cfg *config.Config) {
	switch {
	case !cfg.MetricsEnabled:
		log.Printf("Prometheus metrics disabled")
	case cfg.MetricsToken != "":
		log.Printf("Prometheus metrics enabled at /metrics with Bearer token authentication")
		r.GET(
			"/metrics",
			middleware.MetricsAuthMiddleware(cfg.MetricsToken),
			gin.WrapH(promhttp.Handler()),
		)
	default:
		log.Printf("Prometheus metrics enabled at /metrics (no authentication)")
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
}

// setupAllRoutes configures all application routes
func setupAllRoutes(
	r *gin.Engine,
	cfg *config.Config,
	h handlerSet,
	rl rateLimitMiddlewares,
) {
	// Discovery
	r.GET("/.well-known/openid-configuration", h.oidc.Discovery)
	r.GET("/.well-known/jwks.json", h.oidc.JWKS)

	// Browser-facing
	authorize := append([]gin.HandlerFunc{rl.authorize}, identityMiddlewares(cfg)...)
	r.GET("/authorize", append(authorize, h.authorization.Authorize)...)

	// Client-authenticated
	r.POST("/token", rl.token, h.token.Token)
	r.POST("/introspect", rl.introspect, h.token.Introspect)
	r.POST("/revoke", rl.revoke, h.token.Revoke)

	// Bearer
	r.GET("/userinfo", h.oidc.UserInfo)
	r.POST("/userinfo", h.oidc.UserInfo)
}

func logServerStartup(cfg *config.Config) {
	log.Printf("Sally Port listening on %s (issuer %s)", cfg.ServerAddr, cfg.Issuer)
	log.Printf("Identity source: %s", cfg.IdentitySource)
	if cfg.StepUpURL != "" {
		log.Printf("Step-up verification: %s", cfg.StepUpURL)
	}
}
