package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-authgate/sallyport/internal/cache"
	"github.com/go-authgate/sallyport/internal/config"
	"github.com/go-authgate/sallyport/internal/core"
	"github.com/go-authgate/sallyport/internal/grantstore"
	"github.com/go-authgate/sallyport/internal/keys"
	"github.com/go-authgate/sallyport/internal/metrics"
	"github.com/go-authgate/sallyport/internal/middleware"
	"github.com/go-authgate/sallyport/internal/models"
	"github.com/go-authgate/sallyport/internal/roles"
	"github.com/go-authgate/sallyport/internal/services"
	"github.com/go-authgate/sallyport/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

// RFC 7636 Appendix B
const (
	testVerifier  = "dBjftJeZ4CVP-mJ92K27uhbUJU1p1r_wW1gFWFOEjXk"
	testChallenge = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
)

const (
	webSecret   = "web-secret"
	webRedirect = "https://web.test/callback"
	userHeader  = "X-Test-User"
)

type discardAudit struct{}

func (discardAudit) Log(context.Context, models.AuditEntry) {}

type testServer struct {
	cfg    *config.Config
	store  *store.Store
	grants core.GrantStore
	keys   *keys.Manager
	router *gin.Engine
}

// newTestServer wires the handlers the same way the server does, with the
// identity taken from a test header.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	cfg := &config.Config{
		BaseURL:                "https://auth.test",
		Issuer:                 "https://auth.test",
		AuthCodeExpiration:     10 * time.Minute,
		RefreshTokenExpiration: 720 * time.Hour,
		IDTokenExpiration:      time.Hour,
		AccessTokenAudience:    []string{"integration-gateway"},
		DefaultTenant:          "tenant-integration-gateway",
		RoleScopeBindings:      map[string]string{"reports": "opal_aso"},
		StepUpURL:              "https://verify.test/step-up",
		StepUpSecret:           "step-up-secret",
		StepUpProofMaxAge:      5 * time.Minute,
		LoginURL:               "https://login.test/signin",
	}

	s, err := store.New(ctx, "sqlite", ":memory:", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(ctx) })

	web := &models.OAuthApplication{
		ClientID:   "web",
		ClientName: "Web",
		ClientType: models.ClientTypeConfidential,
		GrantTypes: models.StringArray{
			models.GrantTypeAuthorizationCode,
			models.GrantTypeRefreshToken,
			models.GrantTypeClientCredentials,
		},
		ResponseTypes: models.StringArray{models.ResponseTypeCode},
		Scopes:        models.StringArray{"openid", "reports", "sapphire_sao", "diamond_sao"},
		RedirectURIs:  models.StringArray{webRedirect},
		IsActive:      true,
	}
	require.NoError(t, web.SetClientSecret(webSecret))
	require.NoError(t, s.CreateClient(ctx, web))

	grants := grantstore.NewMemoryStore()
	m := metrics.NewNoopMetrics()
	audit := discardAudit{}

	km, err := keys.NewManager(s, keys.Options{Timeout: time.Second, Metrics: m, Audit: audit})
	require.NoError(t, err)
	extractor, err := roles.NewExtractor(cfg.RoleScopeBindings)
	require.NoError(t, err)

	clients := services.NewClientService(s, cache.NewMemoryCache[services.CachedClient](), time.Minute, m, audit)
	authz := services.NewAuthorizationService(clients, grants, extractor, cfg, m, audit)
	tokens := services.NewTokenService(clients, grants, km, extractor, cfg, m, audit)

	authzHandler := NewAuthorizationHandler(authz, cfg)
	tokenHandler := NewTokenHandler(tokens)
	oidcHandler := NewOIDCHandler(tokens, km, extractor, cfg)
	healthHandler := NewHealthHandler(s, grants, time.Second)

	r := gin.New()
	r.GET("/health", healthHandler.Health)
	r.GET("/authorize",
		middleware.LoadIdentity(middleware.NewHeaderIdentityResolver(userHeader, "")),
		authzHandler.Authorize)
	r.POST("/token", tokenHandler.Token)
	r.POST("/introspect", tokenHandler.Introspect)
	r.POST("/revoke", tokenHandler.Revoke)
	r.GET("/userinfo", oidcHandler.UserInfo)
	r.GET("/.well-known/openid-configuration", oidcHandler.Discovery)
	r.GET("/.well-known/jwks.json", oidcHandler.JWKS)

	return &testServer{cfg: cfg, store: s, grants: grants, keys: km, router: r}
}

func (ts *testServer) get(path, user string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if user != "" {
		req.Header.Set(userHeader, user)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

// postForm sends form values, authenticating as web with HTTP Basic unless
// basic is false.
func (ts *testServer) postForm(path string, form url.Values, basic bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if basic {
		req.SetBasicAuth("web", webSecret)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

// code runs /authorize for user-1 and returns the issued code.
func (ts *testServer) code(t *testing.T, scope string) string {
	t.Helper()
	q := url.Values{
		"client_id":             {"web"},
		"response_type":         {"code"},
		"redirect_uri":          {webRedirect},
		"scope":                 {scope},
		"state":                 {"s1"},
		"code_challenge":        {testChallenge},
		"code_challenge_method": {"S256"},
	}
	w := ts.get("/authorize?"+q.Encode(), "user-1")
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())

	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	code := loc.Query().Get("code")
	require.NotEmpty(t, code, loc.String())
	return code
}

// tokens redeems a fresh code for scope.
func (ts *testServer) tokens(t *testing.T, scope string) map[string]any {
	t.Helper()
	w := ts.postForm("/token", url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {ts.code(t, scope)},
		"redirect_uri":  {webRedirect},
		"code_verifier": {testVerifier},
	}, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode(t, w)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}
