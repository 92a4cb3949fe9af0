package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-authgate/sallyport/internal/cache"
	"github.com/go-authgate/sallyport/internal/config"
	"github.com/go-authgate/sallyport/internal/core"
	"github.com/go-authgate/sallyport/internal/grantstore"
	"github.com/go-authgate/sallyport/internal/keys"
	"github.com/go-authgate/sallyport/internal/metrics"
	"github.com/go-authgate/sallyport/internal/mocks"
	"github.com/go-authgate/sallyport/internal/models"
	"github.com/go-authgate/sallyport/internal/roles"
	"github.com/go-authgate/sallyport/internal/store"
	"github.com/go-authgate/sallyport/internal/token"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// RFC 7636 Appendix B
const (
	testVerifier  = "dBjftJeZ4CVP-mJ92K27uhbUJU1p1r_wW1gFWFOEjXk"
	testChallenge = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
)

const (
	acmeSecret   = "acme-secret"
	acmeRedirect = "https://acme.test/callback?app=web"
	opsSecret    = "ops-secret"
	opsRedirect  = "https://ops.test/cb"
)

// recordingAudit keeps every entry it is given.
type recordingAudit struct {
	mu      sync.Mutex
	entries []models.AuditEntry
}

func (r *recordingAudit) Log(_ context.Context, e models.AuditEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

func (r *recordingAudit) find(ev models.EventType) (models.AuditEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.EventType == ev {
			return e, true
		}
	}
	return models.AuditEntry{}, false
}

type testEnv struct {
	cfg     *config.Config
	store   *store.Store
	grants  core.GrantStore
	keys    *keys.Manager
	audit   *recordingAudit
	clients *ClientService
	authz   *AuthorizationService
	tokens  *TokenService
}

func testConfig() *config.Config {
	return &config.Config{
		BaseURL:                "https://auth.test",
		Issuer:                 "https://auth.test",
		AuthCodeExpiration:     10 * time.Minute,
		RefreshTokenExpiration: 720 * time.Hour,
		IDTokenExpiration:      time.Hour,
		AccessTokenAudience:    []string{"integration-gateway", "mcp-servers"},
		DefaultTenant:          "tenant-integration-gateway",
		RoleScopeBindings:      map[string]string{"orders": "onyx_os"},
		StepUpURL:              "https://verify.test/step-up",
		StepUpSecret:           "step-up-secret",
		StepUpProofMaxAge:      5 * time.Minute,
	}
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()
	s, err := store.New(ctx, "sqlite", ":memory:", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(ctx) })
	return s
}

func createTestClient(t *testing.T, s *store.Store, app *models.OAuthApplication, secret string) {
	t.Helper()
	if secret != "" {
		require.NoError(t, app.SetClientSecret(secret))
	}
	if app.ClientName == "" {
		app.ClientName = app.ClientID
	}
	require.NoError(t, s.CreateClient(context.Background(), app))
}

// newTestEnv wires the services over an in-memory database. grants may be
// nil for a fresh memory store.
func newTestEnv(t *testing.T, grants core.GrantStore) *testEnv {
	t.Helper()

	cfg := testConfig()
	s := setupTestStore(t)
	if grants == nil {
		grants = grantstore.NewMemoryStore()
	}
	audit := &recordingAudit{}
	m := metrics.NewNoopMetrics()

	km, err := keys.NewManager(s, keys.Options{Timeout: time.Second, Metrics: m, Audit: audit})
	require.NoError(t, err)
	extractor, err := roles.NewExtractor(cfg.RoleScopeBindings)
	require.NoError(t, err)

	clients := NewClientService(s, cache.NewMemoryCache[CachedClient](), time.Minute, m, audit)

	createTestClient(t, s, &models.OAuthApplication{
		ClientID:   "acme",
		ClientType: models.ClientTypeConfidential,
		GrantTypes: models.StringArray{
			models.GrantTypeAuthorizationCode,
			models.GrantTypeRefreshToken,
		},
		ResponseTypes: models.StringArray{models.ResponseTypeCode},
		Scopes:        models.StringArray{"openid", "profile", "orders"},
		RedirectURIs:  models.StringArray{acmeRedirect},
		IsActive:      true,
	}, acmeSecret)

	createTestClient(t, s, &models.OAuthApplication{
		ClientID:   "ops",
		ClientType: models.ClientTypeConfidential,
		GrantTypes: models.StringArray{
			models.GrantTypeAuthorizationCode,
			models.GrantTypeRefreshToken,
			models.GrantTypeClientCredentials,
		},
		ResponseTypes: models.StringArray{models.ResponseTypeCode},
		Scopes: models.StringArray{
			"openid", "orders", "sapphire_sao", "emerald_sao", "diamond_sao",
		},
		RedirectURIs: models.StringArray{opsRedirect},
		TenantID:     "tenant-ops",
		IsActive:     true,
	}, opsSecret)

	createTestClient(t, s, &models.OAuthApplication{
		ClientID:   "mobile",
		ClientType: models.ClientTypePublic,
		GrantTypes: models.StringArray{
			models.GrantTypeAuthorizationCode,
			models.GrantTypeRefreshToken,
		},
		ResponseTypes: models.StringArray{models.ResponseTypeCode},
		Scopes:        models.StringArray{"openid", "orders"},
		RedirectURIs:  models.StringArray{"https://*.mobile.test/cb"},
		IsActive:      true,
	}, "")

	return &testEnv{
		cfg:     cfg,
		store:   s,
		grants:  grants,
		keys:    km,
		audit:   audit,
		clients: clients,
		authz:   NewAuthorizationService(clients, grants, extractor, cfg, m, audit),
		tokens:  NewTokenService(clients, grants, km, extractor, cfg, m, audit),
	}
}

func testUser() *models.Identity {
	return &models.Identity{Subject: "user-1", AuthTime: time.Now().Add(-time.Minute)}
}

// authorize runs an authorization request that must end in a code.
func (e *testEnv) authorize(t *testing.T, req AuthorizeRequest) string {
	t.Helper()
	if req.ResponseType == "" {
		req.ResponseType = models.ResponseTypeCode
	}
	res, err := e.authz.Authorize(context.Background(), req, testUser())
	require.NoError(t, err)
	require.Equal(t, OutcomeCodeIssued, res.Outcome, res.Location)

	u, err := url.Parse(res.Location)
	require.NoError(t, err)
	code := u.Query().Get("code")
	require.NotEmpty(t, code)
	return code
}

func (e *testEnv) client(t *testing.T, id, secret string) *models.OAuthApplication {
	t.Helper()
	app, err := e.tokens.AuthenticateClient(context.Background(), id, secret)
	require.NoError(t, err)
	return app
}

func (e *testEnv) acmeCode(t *testing.T) string {
	return e.authorize(t, AuthorizeRequest{
		ClientID:            "acme",
		RedirectURI:         acmeRedirect,
		Scope:               "openid orders",
		State:               "xyz",
		Nonce:               "n-0S6_WzA2Mj",
		CodeChallenge:       testChallenge,
		CodeChallengeMethod: PKCEMethodS256,
	})
}

func (e *testEnv) redeemAcme(t *testing.T, code string) (*TokenResponse, error) {
	return e.tokens.Exchange(context.Background(), e.client(t, "acme", acmeSecret), TokenRequest{
		GrantType:    models.GrantTypeAuthorizationCode,
		Code:         code,
		RedirectURI:  acmeRedirect,
		CodeVerifier: testVerifier,
	})
}

func (e *testEnv) accessClaims(t *testing.T, raw string) *token.AccessClaims {
	t.Helper()
	claims, err := token.ParseAccessToken(context.Background(), e.keys, raw, e.cfg.Issuer)
	require.NoError(t, err)
	return claims
}

func TestEndToEnd_Acme(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	code := env.acmeCode(t)
	resp, err := env.redeemAcme(t, code)
	require.NoError(t, err)

	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.IDToken, "openid was requested")
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, token.TokenTypeBearer, resp.TokenType)
	assert.Equal(t, int64(900), resp.ExpiresIn, "orders is bound to onyx_os")
	assert.Equal(t, "openid orders", resp.Scope)

	claims := env.accessClaims(t, resp.AccessToken)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "acme", claims.ClientID)
	assert.Equal(t, []string{"onyx_os"}, claims.Roles)
	assert.Equal(t, "tenant-integration-gateway", claims.Tenant)
	assert.Equal(t, models.GrantTypeAuthorizationCode, claims.GrantType)
	assert.Equal(t, jwt.ClaimStrings{"integration-gateway", "mcp-servers"}, claims.Audience)
	assert.NotEmpty(t, claims.ID)
	assert.Equal(t, 900*time.Second, claims.ExpiresAt.Sub(claims.IssuedAt.Time))

	var idc token.IDClaims
	_, err = env.keys.Verify(ctx, resp.IDToken, &idc, jwt.WithAudience("acme"), jwt.WithIssuer(env.cfg.Issuer))
	require.NoError(t, err)
	assert.Equal(t, "user-1", idc.Subject)
	assert.Equal(t, "n-0S6_WzA2Mj", idc.Nonce)
	assert.Equal(t, token.ComputeAtHash(resp.AccessToken), idc.AtHash)
	assert.NotNil(t, idc.AuthTime)

	_, ok := env.audit.find(models.EventAuthorizationCodeExchanged)
	assert.True(t, ok)
}

func TestExchangeCode_SingleUse(t *testing.T) {
	env := newTestEnv(t, nil)

	code := env.acmeCode(t)
	_, err := env.redeemAcme(t, code)
	require.NoError(t, err)

	_, err = env.redeemAcme(t, code)
	require.ErrorIs(t, err, ErrInvalidGrant)

	// The second attempt is recognised as a replay
	entry, ok := env.audit.find(models.EventSuspiciousActivity)
	require.True(t, ok)
	assert.Equal(t, models.SeverityCritical, entry.Severity)
}

func TestExchangeCode_ConcurrentRedemption(t *testing.T) {
	backends := map[string]func(t *testing.T) core.GrantStore{
		"memory": func(*testing.T) core.GrantStore { return grantstore.NewMemoryStore() },
		"redis": func(t *testing.T) core.GrantStore {
			mr := miniredis.RunT(t)
			rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = rdb.Close() })
			return grantstore.NewRedisStore(rdb, "test:", time.Second)
		},
	}

	for name, newStore := range backends {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t, newStore(t))
			code := env.acmeCode(t)
			acme := env.client(t, "acme", acmeSecret)

			const attempts = 20
			var (
				wg        sync.WaitGroup
				successes atomic.Int32
				invalid   atomic.Int32
			)
			start := make(chan struct{})
			for range attempts {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					_, err := env.tokens.Exchange(context.Background(), acme, TokenRequest{
						GrantType:    models.GrantTypeAuthorizationCode,
						Code:         code,
						RedirectURI:  acmeRedirect,
						CodeVerifier: testVerifier,
					})
					switch {
					case err == nil:
						successes.Add(1)
					case errors.Is(err, ErrInvalidGrant):
						invalid.Add(1)
					}
				}()
			}
			close(start)
			wg.Wait()

			assert.Equal(t, int32(1), successes.Load())
			assert.Equal(t, int32(attempts-1), invalid.Load())
		})
	}
}

func TestExchangeCode_PKCE(t *testing.T) {
	env := newTestEnv(t, nil)
	acme := env.client(t, "acme", acmeSecret)
	code := env.acmeCode(t)

	exchange := func(verifier string) error {
		_, err := env.tokens.Exchange(context.Background(), acme, TokenRequest{
			GrantType:    models.GrantTypeAuthorizationCode,
			Code:         code,
			RedirectURI:  acmeRedirect,
			CodeVerifier: verifier,
		})
		return err
	}

	require.ErrorIs(t, exchange(""), ErrInvalidGrant, "missing verifier")
	require.ErrorIs(t, exchange(testChallenge), ErrInvalidGrant, "challenge is not a verifier")
	require.ErrorIs(t, exchange(testVerifier+"x"), ErrInvalidGrant, "wrong verifier")

	// Failed checks do not consume the code
	require.NoError(t, exchange(testVerifier))
}

func TestExchangeCode_PlainPKCE(t *testing.T) {
	env := newTestEnv(t, nil)
	verifier := "plain-verifier-with-enough-entropy-0123456789abcdef"

	code := env.authorize(t, AuthorizeRequest{
		ClientID:      "mobile",
		RedirectURI:   "https://eu.mobile.test/cb",
		Scope:         "orders",
		CodeChallenge: verifier,
	})
	mobile := env.client(t, "mobile", "")

	resp, err := env.tokens.Exchange(context.Background(), mobile, TokenRequest{
		GrantType:    models.GrantTypeAuthorizationCode,
		Code:         code,
		RedirectURI:  "https://eu.mobile.test/cb",
		CodeVerifier: verifier,
	})
	require.NoError(t, err)
	assert.Empty(t, resp.IDToken, "openid was not requested")
	assert.NotEmpty(t, resp.RefreshToken)
}

func TestExchangeCode_Mismatch(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	t.Run("redirect_uri", func(t *testing.T) {
		code := env.acmeCode(t)
		_, err := env.tokens.Exchange(ctx, env.client(t, "acme", acmeSecret), TokenRequest{
			GrantType:    models.GrantTypeAuthorizationCode,
			Code:         code,
			RedirectURI:  "https://acme.test/callback",
			CodeVerifier: testVerifier,
		})
		require.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("other client", func(t *testing.T) {
		code := env.acmeCode(t)
		_, err := env.tokens.Exchange(ctx, env.client(t, "ops", opsSecret), TokenRequest{
			GrantType:    models.GrantTypeAuthorizationCode,
			Code:         code,
			RedirectURI:  acmeRedirect,
			CodeVerifier: testVerifier,
		})
		require.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("unknown code", func(t *testing.T) {
		_, err := env.redeemAcme(t, "does-not-exist")
		require.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("missing code", func(t *testing.T) {
		_, err := env.redeemAcme(t, "")
		require.ErrorIs(t, err, ErrInvalidRequest)
	})
}

func TestExchangeCode_Expired(t *testing.T) {
	env := newTestEnv(t, nil)
	env.cfg.AuthCodeExpiration = time.Millisecond

	code := env.acmeCode(t)
	time.Sleep(5 * time.Millisecond)

	_, err := env.redeemAcme(t, code)
	require.ErrorIs(t, err, ErrInvalidGrant)
}

func TestMostPrivilegedRoleWins(t *testing.T) {
	env := newTestEnv(t, nil)
	ops := env.client(t, "ops", opsSecret)

	for _, scope := range []string{"orders sapphire_sao", "sapphire_sao orders"} {
		t.Run(scope, func(t *testing.T) {
			code := env.authorize(t, AuthorizeRequest{
				ClientID:    "ops",
				RedirectURI: opsRedirect,
				Scope:       scope,
			})
			resp, err := env.tokens.Exchange(context.Background(), ops, TokenRequest{
				GrantType:   models.GrantTypeAuthorizationCode,
				Code:        code,
				RedirectURI: opsRedirect,
			})
			require.NoError(t, err)
			assert.Equal(t, int64(1800), resp.ExpiresIn)

			claims := env.accessClaims(t, resp.AccessToken)
			assert.Equal(t, []string{"sapphire_sao", "onyx_os"}, claims.Roles)
			assert.Equal(t, "tenant-ops", claims.Tenant, "client tenant applies when the user has none")
		})

		t.Run("client_credentials "+scope, func(t *testing.T) {
			resp, err := env.tokens.Exchange(context.Background(), ops, TokenRequest{
				GrantType: models.GrantTypeClientCredentials,
				Scope:     scope,
			})
			require.NoError(t, err)
			assert.Equal(t, int64(1800), resp.ExpiresIn)
		})
	}
}

func TestClientCredentials(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	ops := env.client(t, "ops", opsSecret)

	resp, err := env.tokens.Exchange(ctx, ops, TokenRequest{
		GrantType: models.GrantTypeClientCredentials,
		Scope:     "orders",
	})
	require.NoError(t, err)
	assert.Empty(t, resp.RefreshToken, "client_credentials never yields a refresh token")
	assert.Empty(t, resp.IDToken)
	assert.Equal(t, int64(900), resp.ExpiresIn)

	claims := env.accessClaims(t, resp.AccessToken)
	assert.Equal(t, "ops", claims.Subject)
	assert.Equal(t, models.GrantTypeClientCredentials, claims.GrantType)

	t.Run("defaults to all client scopes", func(t *testing.T) {
		resp, err := env.tokens.Exchange(ctx, ops, TokenRequest{GrantType: models.GrantTypeClientCredentials})
		require.NoError(t, err)
		assert.Equal(t, "openid orders sapphire_sao emerald_sao diamond_sao", resp.Scope)
		assert.Equal(t, int64(3300), resp.ExpiresIn)
		assert.Empty(t, resp.IDToken)
	})

	t.Run("scope outside registration", func(t *testing.T) {
		_, err := env.tokens.Exchange(ctx, ops, TokenRequest{
			GrantType: models.GrantTypeClientCredentials,
			Scope:     "orders profile",
		})
		require.ErrorIs(t, err, ErrInvalidScope)
	})

	t.Run("grant not registered", func(t *testing.T) {
		_, err := env.tokens.Exchange(ctx, env.client(t, "acme", acmeSecret), TokenRequest{
			GrantType: models.GrantTypeClientCredentials,
		})
		require.ErrorIs(t, err, ErrUnsupportedGrantType)
	})
}

func TestClientCredentials_PublicClient(t *testing.T) {
	env := newTestEnv(t, nil)
	public := &models.OAuthApplication{
		ClientID:   "cli",
		ClientType: models.ClientTypePublic,
		GrantTypes: models.StringArray{models.GrantTypeClientCredentials},
		Scopes:     models.StringArray{"orders"},
		IsActive:   true,
	}

	_, err := env.tokens.Exchange(context.Background(), public, TokenRequest{
		GrantType: models.GrantTypeClientCredentials,
	})
	require.ErrorIs(t, err, ErrUnauthorizedClient)
}

func TestRefresh_ScopeReductionOnly(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	acme := env.client(t, "acme", acmeSecret)

	first, err := env.redeemAcme(t, env.acmeCode(t))
	require.NoError(t, err)

	refresh := func(scope string) (*TokenResponse, error) {
		return env.tokens.Exchange(ctx, acme, TokenRequest{
			GrantType:    models.GrantTypeRefreshToken,
			RefreshToken: first.RefreshToken,
			Scope:        scope,
		})
	}

	_, err = refresh("openid orders profile")
	require.ErrorIs(t, err, ErrInvalidScope, "profile was not in the original grant")

	resp, err := refresh("")
	require.NoError(t, err)
	assert.Equal(t, "openid orders", resp.Scope)
	assert.Equal(t, first.RefreshToken, resp.RefreshToken, "refresh tokens are not rotated")
	assert.NotEmpty(t, resp.IDToken)

	resp, err = refresh("openid")
	require.NoError(t, err)
	assert.Equal(t, "openid", resp.Scope)
	assert.Equal(t, int64(900), resp.ExpiresIn, "lifetime follows the roles bound at authorization")
	assert.Empty(t, env.accessClaims(t, resp.AccessToken).Roles, "orders no longer confers onyx_os")

	var idc token.IDClaims
	_, err = env.keys.Verify(ctx, resp.IDToken, &idc, jwt.WithAudience("acme"))
	require.NoError(t, err)
	assert.Empty(t, idc.Nonce)
}

func TestRefresh_Invalid(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	first, err := env.redeemAcme(t, env.acmeCode(t))
	require.NoError(t, err)

	_, err = env.tokens.Exchange(ctx, env.client(t, "ops", opsSecret), TokenRequest{
		GrantType:    models.GrantTypeRefreshToken,
		RefreshToken: first.RefreshToken,
	})
	require.ErrorIs(t, err, ErrInvalidGrant, "bound to another client")

	_, err = env.tokens.Exchange(ctx, env.client(t, "acme", acmeSecret), TokenRequest{
		GrantType:    models.GrantTypeRefreshToken,
		RefreshToken: "unknown",
	})
	require.ErrorIs(t, err, ErrInvalidGrant)
}

func TestExchange_UnsupportedGrantType(t *testing.T) {
	env := newTestEnv(t, nil)
	acme := env.client(t, "acme", acmeSecret)

	_, err := env.tokens.Exchange(context.Background(), acme, TokenRequest{GrantType: "password"})
	require.ErrorIs(t, err, ErrUnsupportedGrantType)

	_, err = env.tokens.Exchange(context.Background(), acme, TokenRequest{})
	require.ErrorIs(t, err, ErrInvalidRequest)

	entry, ok := env.audit.find(models.EventTokenRequestFailed)
	require.True(t, ok)
	assert.False(t, entry.Success)
}

func TestAuthenticateClient(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	_, err := env.tokens.AuthenticateClient(ctx, "acme", "wrong")
	var wrongSecret *OAuthError
	require.ErrorAs(t, err, &wrongSecret)

	_, err = env.tokens.AuthenticateClient(ctx, "nobody", "wrong")
	var unknown *OAuthError
	require.ErrorAs(t, err, &unknown)

	assert.Equal(t, wrongSecret, unknown, "unknown client and wrong secret look the same")
	assert.Equal(t, 401, unknown.StatusCode())

	_, err = env.tokens.AuthenticateClient(ctx, "", "")
	require.ErrorIs(t, err, ErrInvalidClient)

	app, err := env.tokens.AuthenticateClient(ctx, "mobile", "ignored")
	require.NoError(t, err)
	assert.True(t, app.IsPublic())
}

func TestIntrospectionRoundTrip(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	acme := env.client(t, "acme", acmeSecret)
	ops := env.client(t, "ops", opsSecret)

	resp, err := env.redeemAcme(t, env.acmeCode(t))
	require.NoError(t, err)

	info, err := env.tokens.Introspect(ctx, ops, resp.AccessToken, "")
	require.NoError(t, err)
	assert.True(t, info.Active)
	assert.Equal(t, "openid orders", info.Scope)
	assert.Equal(t, "acme", info.ClientID)
	assert.Equal(t, []string{"onyx_os"}, info.Roles)
	assert.Equal(t, "user-1", info.Sub)
	assert.Equal(t, token.TokenTypeBearer, info.TokenType)
	assert.NotZero(t, info.Exp)

	info, err = env.tokens.Introspect(ctx, acme, resp.RefreshToken, TokenTypeHintRefreshToken)
	require.NoError(t, err)
	assert.True(t, info.Active)
	assert.Equal(t, TokenTypeHintRefreshToken, info.TokenType)

	// Another client cannot revoke acme's refresh token
	require.NoError(t, env.tokens.Revoke(ctx, ops, resp.RefreshToken, ""))
	info, err = env.tokens.Introspect(ctx, acme, resp.RefreshToken, "")
	require.NoError(t, err)
	assert.True(t, info.Active)

	require.NoError(t, env.tokens.Revoke(ctx, acme, resp.RefreshToken, TokenTypeHintRefreshToken))

	_, err = env.tokens.Exchange(ctx, acme, TokenRequest{
		GrantType:    models.GrantTypeRefreshToken,
		RefreshToken: resp.RefreshToken,
	})
	require.ErrorIs(t, err, ErrInvalidGrant)

	// Already-issued access tokens stay valid until they expire
	info, err = env.tokens.Introspect(ctx, acme, resp.AccessToken, "")
	require.NoError(t, err)
	assert.True(t, info.Active)

	// Revoking the access token itself takes effect immediately
	require.NoError(t, env.tokens.Revoke(ctx, acme, resp.AccessToken, TokenTypeHintAccessToken))
	info, err = env.tokens.Introspect(ctx, acme, resp.AccessToken, "")
	require.NoError(t, err)
	assert.False(t, info.Active)
	assert.Empty(t, info.ClientID)

	_, err = env.tokens.UserInfo(ctx, resp.AccessToken)
	require.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestIntrospect_Inactive(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	acme := env.client(t, "acme", acmeSecret)

	for _, raw := range []string{"", "opaque-unknown", "a.b.c"} {
		info, err := env.tokens.Introspect(ctx, acme, raw, "")
		require.NoError(t, err)
		assert.False(t, info.Active, raw)
	}
}

func TestIntrospect_StoreFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	grants := mocks.NewMockGrantStore(ctrl)
	grants.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, grantstore.ErrUnavailable).AnyTimes()

	env := newTestEnv(t, grants)
	acme := env.client(t, "acme", acmeSecret)

	_, err := env.tokens.Introspect(context.Background(), acme, "opaque-token", "")
	require.ErrorIs(t, err, ErrServerError)

	err = env.tokens.Revoke(context.Background(), acme, "opaque-token", "")
	require.ErrorIs(t, err, ErrServerError)

	_, err = env.redeemAcme(t, "some-code")
	require.ErrorIs(t, err, ErrServerError, "a store failure is never treated as a missing code")
}

func TestTokenTypeHintIsNotAFilter(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	acme := env.client(t, "acme", acmeSecret)

	resp, err := env.redeemAcme(t, env.acmeCode(t))
	require.NoError(t, err)

	info, err := env.tokens.Introspect(ctx, acme, resp.AccessToken, TokenTypeHintRefreshToken)
	require.NoError(t, err)
	assert.True(t, info.Active)
	assert.Equal(t, token.TokenTypeBearer, info.TokenType)

	info, err = env.tokens.Introspect(ctx, acme, resp.RefreshToken, TokenTypeHintAccessToken)
	require.NoError(t, err)
	assert.True(t, info.Active)
	assert.Equal(t, TokenTypeHintRefreshToken, info.TokenType)

	require.NoError(t, env.tokens.Revoke(ctx, acme, resp.AccessToken, TokenTypeHintRefreshToken))
	info, err = env.tokens.Introspect(ctx, acme, resp.AccessToken, "")
	require.NoError(t, err)
	assert.False(t, info.Active)

	require.NoError(t, env.tokens.Revoke(ctx, acme, resp.RefreshToken, TokenTypeHintAccessToken))
	info, err = env.tokens.Introspect(ctx, acme, resp.RefreshToken, "")
	require.NoError(t, err)
	assert.False(t, info.Active)
}

// unavailableKeys signs normally but cannot verify, as when the key
// backend times out.
type unavailableKeys struct {
	*keys.Manager
}

func (unavailableKeys) Verify(context.Context, string, jwt.Claims, ...jwt.ParserOption) (*jwt.Token, error) {
	return nil, fmt.Errorf("%w: context deadline exceeded", keys.ErrNoSigningKey)
}

func TestAccessToken_KeyBackendFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	acme := env.client(t, "acme", acmeSecret)

	resp, err := env.redeemAcme(t, env.acmeCode(t))
	require.NoError(t, err)

	tokens := NewTokenService(env.clients, env.grants, unavailableKeys{env.keys}, nil, env.cfg,
		metrics.NewNoopMetrics(), env.audit)

	_, err = tokens.Introspect(ctx, acme, resp.AccessToken, "")
	require.ErrorIs(t, err, ErrServerError)

	err = tokens.Revoke(ctx, acme, resp.AccessToken, TokenTypeHintAccessToken)
	require.ErrorIs(t, err, ErrServerError)

	_, err = tokens.UserInfo(ctx, resp.AccessToken)
	require.ErrorIs(t, err, ErrServerError)

	// Nothing was revoked by the failed call
	info, err := env.tokens.Introspect(ctx, acme, resp.AccessToken, "")
	require.NoError(t, err)
	assert.True(t, info.Active)
}

func TestRevoke_UnusedCode(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	code := env.acmeCode(t)

	// Revoking someone else's code does nothing
	require.NoError(t, env.tokens.Revoke(ctx, env.client(t, "ops", opsSecret), code, ""))
	require.NoError(t, env.tokens.Revoke(ctx, env.client(t, "acme", acmeSecret), code, ""))

	_, err := env.redeemAcme(t, code)
	require.ErrorIs(t, err, ErrInvalidGrant)

	require.ErrorIs(t, env.tokens.Revoke(ctx, env.client(t, "acme", acmeSecret), "", ""), ErrInvalidRequest)
}

func TestUserInfo(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	resp, err := env.redeemAcme(t, env.acmeCode(t))
	require.NoError(t, err)

	info, err := env.tokens.UserInfo(ctx, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", info.Sub)
	assert.Equal(t, "tenant-integration-gateway", info.Tenant)
	assert.Equal(t, []string{"onyx_os"}, info.Roles)
	assert.Equal(t, "acme", info.ClientID)

	_, err = env.tokens.UserInfo(ctx, "not-a-token")
	require.Error(t, err)
	_, err = env.tokens.UserInfo(ctx, "")
	require.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestCodeRecordIsNotPlaintextKeyed(t *testing.T) {
	env := newTestEnv(t, nil)
	code := env.acmeCode(t)

	_, err := env.grants.Get(context.Background(), code)
	require.ErrorIs(t, err, grantstore.ErrNotFound)

	data, err := env.grants.Get(context.Background(), grantstore.CodeKey(code))
	require.NoError(t, err)
	var rec models.AuthorizationCode
	require.NoError(t, json.Unmarshal(data, &rec))
	assert.Equal(t, "acme", rec.ClientID)
	assert.Equal(t, []string{"onyx_os"}, rec.Roles)
	assert.Equal(t, PKCEMethodS256, rec.CodeChallengeMethod)
}
