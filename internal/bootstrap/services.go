package bootstrap

import (
	"fmt"
	"log"

	"github.com/go-authgate/sallyport/internal/client"
	"github.com/go-authgate/sallyport/internal/config"
	"github.com/go-authgate/sallyport/internal/core"
	"github.com/go-authgate/sallyport/internal/keys"
	"github.com/go-authgate/sallyport/internal/roles"
	"github.com/go-authgate/sallyport/internal/services"
	"github.com/go-authgate/sallyport/internal/store"
)

const auditWebhookSource = "sallyport"

// initializeAuditService starts the audit writer, forwarding batches to
// AUDIT_WEBHOOK_URL when one is configured.
func initializeAuditService(cfg *config.Config, db *store.Store) (*services.AuditService, error) {
	var forwarder services.AuditForwarder
	if cfg.EnableAuditLogging && cfg.AuditWebhookURL != "" {
		rc, err := client.NewRetryClient(client.Options{
			AuthMode:      cfg.AuditWebhookAuthMode,
			AuthSecret:    cfg.AuditWebhookSecret,
			AuthHeader:    cfg.AuditWebhookAuthHeader,
			Timeout:       cfg.AuditWebhookTimeout,
			MaxRetries:    cfg.AuditWebhookMaxRetries,
			RetryDelay:    cfg.AuditWebhookRetryDelay,
			MaxRetryDelay: cfg.AuditWebhookMaxDelay,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create audit webhook client: %w", err)
		}
		forwarder = services.NewAuditWebhook(rc, cfg.AuditWebhookURL, auditWebhookSource)
		log.Printf("Audit events forwarded to %s (auth: %s)", cfg.AuditWebhookURL, cfg.AuditWebhookAuthMode)
	}

	return services.NewAuditService(
		db,
		forwarder,
		cfg.EnableAuditLogging,
		cfg.AuditLogBufferSize,
	), nil
}

// initializeKeyManager builds the signing key manager. The key itself is
// loaded or created on first use.
func initializeKeyManager(
	cfg *config.Config,
	db *store.Store,
	m core.Recorder,
	audit core.AuditRecorder,
) (*keys.Manager, error) {
	opts := keys.Options{
		Algorithm: cfg.SigningAlgorithm,
		Timeout:   cfg.KeyTimeout,
		Metrics:   m,
		Audit:     audit,
	}
	if cfg.AdditionalJWKSFile != "" {
		extra, err := keys.LoadJWKSFile(cfg.AdditionalJWKSFile)
		if err != nil {
			return nil, err
		}
		opts.Additional = extra
		log.Printf("Trusting %d additional key(s) from %s", len(extra), cfg.AdditionalJWKSFile)
	}

	km, err := keys.NewManager(db, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create key manager: %w", err)
	}
	return km, nil
}

// initializeServices wires the OAuth services.
func initializeServices(
	cfg *config.Config,
	db *store.Store,
	grants core.GrantStore,
	clientCache core.Cache[services.CachedClient],
	km *keys.Manager,
	extractor *roles.Extractor,
	audit core.AuditRecorder,
	m core.Recorder,
) (*services.ClientService, *services.AuthorizationService, *services.TokenService) {
	clientService := services.NewClientService(db, clientCache, cfg.ClientCacheTTL, m, audit)
	authorizationService := services.NewAuthorizationService(
		clientService,
		grants,
		extractor,
		cfg,
		m,
		audit,
	)
	tokenService := services.NewTokenService(
		clientService,
		grants,
		km,
		extractor,
		cfg,
		m,
		audit,
	)
	return clientService, authorizationService, tokenService
}
