package bootstrap

import (
	"time"

	"github.com/go-authgate/sallyport/internal/config"
	"github.com/go-authgate/sallyport/internal/core"
	"github.com/go-authgate/sallyport/internal/handlers"
	"github.com/go-authgate/sallyport/internal/keys"
	"github.com/go-authgate/sallyport/internal/roles"
	"github.com/go-authgate/sallyport/internal/services"
	"github.com/go-authgate/sallyport/internal/store"
)

const healthCheckTimeout = 5 * time.Second

// handlerSet holds all HTTP handlers
type handlerSet struct {
	authorization *handlers.AuthorizationHandler
	token         *handlers.TokenHandler
	oidc          *handlers.OIDCHandler
	health        *handlers.HealthHandler
}

// initializeHandlers creates all HTTP handlers
func initializeHandlers(
	cfg *config.Config,
	db *store.Store,
	grants core.GrantStore,
	km *keys.Manager,
	extractor *roles.Extractor,
	authorizationService *services.AuthorizationService,
	tokenService *services.TokenService,
) handlerSet {
	return handlerSet{
		authorization: handlers.NewAuthorizationHandler(authorizationService, cfg),
		token:         handlers.NewTokenHandler(tokenService),
		oidc:          handlers.NewOIDCHandler(tokenService, km, extractor, cfg),
		health:        handlers.NewHealthHandler(db, grants, healthCheckTimeout),
	}
}
