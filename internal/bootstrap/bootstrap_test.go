package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-authgate/sallyport/internal/config"
	"github.com/go-authgate/sallyport/internal/grantstore"
	"github.com/go-authgate/sallyport/internal/models"
	"github.com/go-authgate/sallyport/internal/services"
	"github.com/go-authgate/sallyport/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testConfig mirrors config.Load defaults for an in-memory deployment.
func testConfig() *config.Config {
	return &config.Config{
		ServerAddr:               ":0",
		BaseURL:                  "https://auth.test",
		Issuer:                   "https://auth.test",
		DatabaseDriver:           "sqlite",
		DatabaseDSN:              ":memory:",
		GrantStoreType:           config.GrantStoreMemory,
		GrantStorePrefix:         "sallyport:",
		GrantStoreTimeout:        time.Second,
		GrantStoreSweepInterval:  time.Minute,
		ClientCacheType:          config.ClientCacheTypeMemory,
		ClientCacheTTL:           time.Minute,
		SigningAlgorithm:         config.SigningAlgorithmES256,
		KeyTimeout:               time.Second,
		AuthCodeExpiration:       10 * time.Minute,
		RefreshTokenExpiration:   time.Hour,
		IDTokenExpiration:        time.Hour,
		DefaultTenant:            "tenant-integration-gateway",
		StepUpURL:                "https://verify.test/step-up",
		IdentitySource:           config.IdentitySourceSession,
		SessionSecret:            "test-session-secret",
		SessionMaxAge:            3600,
		EnableRateLimit:          true,
		RateLimitStore:           config.RateLimitStoreMemory,
		TokenRateLimit:           60,
		AuthorizeRateLimit:       30,
		IntrospectRateLimit:      120,
		RevokeRateLimit:          30,
		RateLimitCleanupInterval: time.Minute,
		AuditWebhookAuthMode:     "none",
		DBInitTimeout:            5 * time.Second,
		DBCloseTimeout:           time.Second,
		RedisConnTimeout:         time.Second,
		CacheInitTimeout:         time.Second,
		ServerShutdownTimeout:    time.Second,
		AuditShutdownTimeout:     time.Second,
	}
}

func TestValidateAllConfiguration(t *testing.T) {
	require.NoError(t, validateAllConfiguration(testConfig()))

	cfg := testConfig()
	cfg.GrantStoreType = "etcd"
	err := validateAllConfiguration(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GRANT_STORE")

	cfg = testConfig()
	cfg.StepUpURL = "/relative/step-up"
	err = validateAllConfiguration(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STEP_UP_URL")

	cfg = testConfig()
	cfg.LoginURL = "login.test"
	err = validateAllConfiguration(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOGIN_URL")
}

func TestInitializeMetrics(t *testing.T) {
	for _, enabled := range []bool{true, false} {
		m := initializeMetrics(&config.Config{MetricsEnabled: enabled})
		require.NotNil(t, m)
	}
}

func TestNeedsGoRedis(t *testing.T) {
	cfg := testConfig()
	assert.False(t, needsGoRedis(cfg))

	cfg.RateLimitStore = config.RateLimitStoreRedis
	assert.True(t, needsGoRedis(cfg))

	cfg.EnableRateLimit = false
	assert.False(t, needsGoRedis(cfg))

	cfg.GrantStoreType = config.GrantStoreRedis
	assert.True(t, needsGoRedis(cfg))
}

func TestInitializeRedisClient(t *testing.T) {
	ctx := context.Background()

	client, err := initializeRedisClient(ctx, testConfig())
	require.NoError(t, err)
	assert.Nil(t, client)

	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.GrantStoreType = config.GrantStoreRedis
	cfg.RedisAddr = mr.Addr()

	client, err = initializeRedisClient(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, client)
	_ = client.Close()

	cfg.RedisAddr = "127.0.0.1:1"
	_, err = initializeRedisClient(ctx, cfg)
	require.Error(t, err)
}

func TestInitializeGrantStore(t *testing.T) {
	ctx := context.Background()
	m := initializeMetrics(&config.Config{})

	grants, mem := initializeGrantStore(testConfig(), nil, m)
	require.NotNil(t, mem)
	require.NoError(t, grants.Put(ctx, "k", []byte("v"), time.Minute))
	assert.Equal(t, 1, mem.Len())

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := testConfig()
	cfg.GrantStoreType = config.GrantStoreRedis
	grants, mem = initializeGrantStore(cfg, rdb, m)
	assert.Nil(t, mem)
	require.NoError(t, grants.Put(ctx, "k", []byte("v"), time.Minute))
	assert.True(t, mr.Exists("sallyport:k"))

	got, err := grants.Take(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
	_, err = grants.Take(ctx, "k")
	assert.ErrorIs(t, err, grantstore.ErrNotFound)
}

func TestInitializeClientCache(t *testing.T) {
	ctx := context.Background()

	c, err := initializeClientCache(ctx, testConfig())
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, "client:web", services.CachedClient{SecretHash: "h"}, time.Minute))
	got, err := c.Get(ctx, "client:web")
	require.NoError(t, err)
	assert.Equal(t, "h", got.SecretHash)
	require.NoError(t, c.Close())

	cfg := testConfig()
	cfg.ClientCacheType = config.ClientCacheTypeRedis
	cfg.RedisAddr = "127.0.0.1:1"
	_, err = initializeClientCache(ctx, cfg)
	require.Error(t, err)
}

func TestSetupRateLimiting_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.EnableRateLimit = false

	rl, err := setupRateLimiting(cfg, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, rl.token)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/token", rl.token, func(c *gin.Context) { c.Status(http.StatusOK) })
	for range 5 {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/token", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestSetupRateLimiting_BadLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RevokeRateLimit = 0

	_, err := setupRateLimiting(cfg, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/revoke")
}

func TestInitializeDatabase_CountsActiveClients(t *testing.T) {
	ctx := context.Background()
	db, err := initializeDatabase(ctx, testConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(ctx) })

	n, err := countActiveClients(ctx, db)
	require.NoError(t, err)
	assert.Zero(t, n)

	for id, active := range map[string]bool{"acme": true, "retired": false} {
		require.NoError(t, db.CreateClient(ctx, &models.OAuthApplication{
			ClientID:   id,
			ClientName: id,
			ClientType: models.ClientTypePublic,
			IsActive:   active,
		}))
	}
	n, err = countActiveClients(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	cfg := testConfig()
	cfg.DatabaseDriver = "oracle"
	_, err = initializeDatabase(ctx, cfg)
	require.ErrorIs(t, err, store.ErrUnsupportedDriver)
}

// newTestApplication runs every initialization phase except starting the
// server.
func newTestApplication(t *testing.T, cfg *config.Config) *Application {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	app := &Application{Config: cfg}
	require.NoError(t, validateAllConfiguration(cfg))
	require.NoError(t, app.initializeInfrastructure(ctx))
	require.NoError(t, app.initializeBusinessLayer())
	require.NoError(t, app.initializeHTTPLayer())

	t.Cleanup(func() {
		_ = app.AuditService.Shutdown(ctx)
		_ = app.DB.Close(ctx)
	})
	return app
}

func TestApplicationRoutes(t *testing.T) {
	cfg := testConfig()
	cfg.MetricsEnabled = true
	cfg.MetricsToken = "metrics-token"
	app := newTestApplication(t, cfg)

	tests := []struct {
		method string
		path   string
		header string
		want   int
	}{
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/.well-known/openid-configuration", "", http.StatusOK},
		{http.MethodGet, "/.well-known/jwks.json", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusUnauthorized},
		{http.MethodGet, "/metrics", "Bearer metrics-token", http.StatusOK},
		{http.MethodGet, "/userinfo", "", http.StatusUnauthorized},
		{http.MethodPost, "/token", "", http.StatusUnauthorized},
		{http.MethodPost, "/introspect", "", http.StatusUnauthorized},
		{http.MethodPost, "/revoke", "", http.StatusUnauthorized},
		{http.MethodGet, "/authorize", "", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			app.Router.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestApplicationRoutes_MetricsDisabled(t *testing.T) {
	app := newTestApplication(t, testConfig())

	w := httptest.NewRecorder()
	app.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
