package bootstrap

import (
	"context"
	"net/http"

	"github.com/go-authgate/sallyport/internal/config"
	"github.com/go-authgate/sallyport/internal/core"
	"github.com/go-authgate/sallyport/internal/grantstore"
	"github.com/go-authgate/sallyport/internal/keys"
	"github.com/go-authgate/sallyport/internal/roles"
	"github.com/go-authgate/sallyport/internal/services"
	"github.com/go-authgate/sallyport/internal/store"

	"github.com/appleboy/graceful"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Application holds all initialized components
type Application struct {
	Config *config.Config

	// Core infrastructure
	DB              *store.Store
	MetricsRecorder core.Recorder
	RedisClient     *redis.Client
	GrantStore      core.GrantStore
	memoryGrants    *grantstore.MemoryStore // nil unless GRANT_STORE=memory
	ClientCache     core.Cache[services.CachedClient]
	Keys            *keys.Manager
	Extractor       *roles.Extractor

	// Services
	AuditService         *services.AuditService
	ClientService        *services.ClientService
	AuthorizationService *services.AuthorizationService
	TokenService         *services.TokenService

	// HTTP
	HandlerSet handlerSet
	Router     *gin.Engine
	Server     *http.Server
}

// Run initializes and starts the application
func Run(ctx context.Context, cfg *config.Config) error {
	app := &Application{Config: cfg}

	// Phase 1: Validate configuration
	if err := validateAllConfiguration(cfg); err != nil {
		return err
	}

	// Phase 2: Initialize infrastructure
	if err := app.initializeInfrastructure(ctx); err != nil {
		return err
	}

	// Phase 3: Initialize business layer
	if err := app.initializeBusinessLayer(); err != nil {
		return err
	}

	// Phase 4: Initialize HTTP layer
	if err := app.initializeHTTPLayer(); err != nil {
		return err
	}

	// Phase 5: Start server with graceful shutdown
	app.startWithGracefulShutdown()

	return nil
}

// initializeInfrastructure sets up the database, metrics, Redis, the grant
// store, the client cache and the key manager.
func (app *Application) initializeInfrastructure(ctx context.Context) error {
	var err error

	app.DB, err = initializeDatabase(ctx, app.Config)
	if err != nil {
		return err
	}

	app.MetricsRecorder = initializeMetrics(app.Config)

	app.RedisClient, err = initializeRedisClient(ctx, app.Config)
	if err != nil {
		return err
	}

	app.GrantStore, app.memoryGrants = initializeGrantStore(
		app.Config,
		app.RedisClient,
		app.MetricsRecorder,
	)

	app.ClientCache, err = initializeClientCache(ctx, app.Config)
	if err != nil {
		return err
	}

	app.Extractor, err = roles.NewExtractor(app.Config.RoleScopeBindings)
	if err != nil {
		return err
	}
	return nil
}

// initializeBusinessLayer sets up services
func (app *Application) initializeBusinessLayer() error {
	// Audit service (required by other services)
	var err error
	app.AuditService, err = initializeAuditService(app.Config, app.DB)
	if err != nil {
		return err
	}

	app.Keys, err = initializeKeyManager(app.Config, app.DB, app.MetricsRecorder, app.AuditService)
	if err != nil {
		return err
	}

	app.ClientService,
		app.AuthorizationService,
		app.TokenService = initializeServices(
		app.Config,
		app.DB,
		app.GrantStore,
		app.ClientCache,
		app.Keys,
		app.Extractor,
		app.AuditService,
		app.MetricsRecorder,
	)
	return nil
}

// initializeHTTPLayer sets up handlers, router, and server
func (app *Application) initializeHTTPLayer() error {
	app.HandlerSet = initializeHandlers(
		app.Config,
		app.DB,
		app.GrantStore,
		app.Keys,
		app.Extractor,
		app.AuthorizationService,
		app.TokenService,
	)

	var err error
	app.Router, err = setupRouter(
		app.Config,
		app.HandlerSet,
		app.MetricsRecorder,
		app.AuditService,
		app.RedisClient,
	)
	if err != nil {
		return err
	}

	app.Server = createHTTPServer(app.Config, app.Router)
	return nil
}

// startWithGracefulShutdown starts the server and handles graceful shutdown
func (app *Application) startWithGracefulShutdown() {
	m := graceful.NewManager()

	// Add jobs
	addServerRunningJob(m, app.Server)
	addServerShutdownJob(m, app.Config, app.Server)
	addGrantStoreSweepJob(m, app.Config, app.memoryGrants)
	addAuditServiceShutdownJob(m, app.Config, app.AuditService, app.DB)
	addAuditLogCleanupJob(m, app.Config, app.AuditService)
	addCacheShutdownJob(m, app.ClientCache)
	addGrantStoreShutdownJob(m, app.GrantStore)
	addRedisClientShutdownJob(m, app.RedisClient)

	// Wait for graceful shutdown
	<-m.Done()
}
