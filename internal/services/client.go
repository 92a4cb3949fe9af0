package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-authgate/sallyport/internal/core"
	"github.com/go-authgate/sallyport/internal/models"
	"github.com/go-authgate/sallyport/internal/store"

	"golang.org/x/crypto/bcrypt"
)

const clientCacheKeyPrefix = "client:"

// ClientSource is the system of record for client registrations.
type ClientSource interface {
	GetClient(ctx context.Context, clientID string) (*models.OAuthApplication, error)
}

// CachedClient is the cache representation of a registration. The secret
// hash is not part of the application's JSON form, so it travels separately.
type CachedClient struct {
	models.OAuthApplication
	SecretHash string `json:"secret_hash"`
}

func (c CachedClient) application() *models.OAuthApplication {
	app := c.OAuthApplication
	app.ClientSecret = c.SecretHash
	return &app
}

// dummySecretHash is compared against when the client does not exist so an
// unknown id costs the same as a wrong secret.
var dummySecretHash = sync.OnceValue(func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("sallyport-unknown-client"), bcrypt.DefaultCost)
	if err != nil {
		panic(fmt.Sprintf("bcrypt: %v", err))
	}
	return h
})

// ClientService resolves and authenticates registered clients. Lookups go
// through a cache-aside layer in front of the database.
type ClientService struct {
	source   ClientSource
	cache    core.Cache[CachedClient]
	cacheTTL time.Duration
	metrics  core.Recorder
	audit    core.AuditRecorder
}

func NewClientService(
	source ClientSource,
	cache core.Cache[CachedClient],
	cacheTTL time.Duration,
	m core.Recorder,
	audit core.AuditRecorder,
) *ClientService {
	return &ClientService{
		source:   source,
		cache:    cache,
		cacheTTL: cacheTTL,
		metrics:  m,
		audit:    audit,
	}
}

// Resolve returns an active client by id. Unknown and disabled clients both
// yield ErrClientNotFound.
func (s *ClientService) Resolve(
	ctx context.Context,
	clientID string,
) (*models.OAuthApplication, error) {
	if clientID == "" {
		return nil, ErrClientNotFound
	}

	cached, err := s.cache.GetWithFetch(
		ctx,
		clientCacheKeyPrefix+clientID,
		s.cacheTTL,
		func(ctx context.Context, _ string) (CachedClient, error) {
			app, err := s.source.GetClient(ctx, clientID)
			if err != nil {
				return CachedClient{}, err
			}
			return CachedClient{OAuthApplication: *app, SecretHash: app.ClientSecret}, nil
		},
	)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("failed to resolve client %q: %w", clientID, err)
	}

	app := cached.application()
	if !app.IsActive {
		return nil, ErrClientNotFound
	}
	return app, nil
}

// Authenticate checks the presented secret. Public clients authenticate by
// id alone. Any failure returns ErrClientAuthFailed; only backend errors are
// reported differently.
func (s *ClientService) Authenticate(
	ctx context.Context,
	clientID, secret string,
) (*models.OAuthApplication, error) {
	start := time.Now()

	app, err := s.Resolve(ctx, clientID)
	if err != nil {
		if !errors.Is(err, ErrClientNotFound) {
			return nil, err
		}
		_ = bcrypt.CompareHashAndPassword(dummySecretHash(), []byte(secret))
		s.authFailed(ctx, clientID, "unknown or inactive client", start)
		return nil, ErrClientAuthFailed
	}

	if app.IsPublic() {
		s.metrics.RecordClientAuthentication(true, time.Since(start))
		return app, nil
	}

	if !app.ValidateClientSecret([]byte(secret)) {
		s.authFailed(ctx, clientID, "invalid client secret", start)
		return nil, ErrClientAuthFailed
	}

	s.metrics.RecordClientAuthentication(true, time.Since(start))
	return app, nil
}

func (s *ClientService) authFailed(ctx context.Context, clientID, reason string, start time.Time) {
	s.metrics.RecordClientAuthentication(false, time.Since(start))
	s.audit.Log(ctx, models.AuditEntry{
		EventType:     models.EventClientAuthenticationFailure,
		Severity:      models.SeverityWarning,
		ActorClientID: clientID,
		ResourceType:  models.ResourceClient,
		ResourceID:    clientID,
		Action:        "Client authentication failed",
		Success:       false,
		ErrorMessage:  reason,
	})
}
