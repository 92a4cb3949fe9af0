package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		RateLimitStore:         RateLimitStoreMemory,
		GrantStoreType:         GrantStoreMemory,
		ClientCacheType:        ClientCacheTypeMemory,
		ClientCacheTTL:         5 * time.Minute,
		IdentitySource:         IdentitySourceSession,
		SigningAlgorithm:       SigningAlgorithmES256,
		GrantStoreTimeout:      2 * time.Second,
		AuthCodeExpiration:     10 * time.Minute,
		RefreshTokenExpiration: 720 * time.Hour,
		AuditWebhookAuthMode:   "none",
		EnableRateLimit:        true,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(c *Config)
		errorMsg string
	}{
		{
			name:   "valid defaults",
			mutate: func(c *Config) {},
		},
		{
			name: "invalid rate limit store",
			mutate: func(c *Config) {
				c.RateLimitStore = "reddis"
			},
			errorMsg: `invalid RATE_LIMIT_STORE value: "reddis"`,
		},
		{
			name: "invalid rate limit store - uppercase",
			mutate: func(c *Config) {
				c.RateLimitStore = "MEMORY"
			},
			errorMsg: `invalid RATE_LIMIT_STORE value: "MEMORY"`,
		},
		{
			name: "invalid grant store",
			mutate: func(c *Config) {
				c.GrantStoreType = "etcd"
			},
			errorMsg: `invalid GRANT_STORE value: "etcd"`,
		},
		{
			name: "invalid client cache type",
			mutate: func(c *Config) {
				c.ClientCacheType = "memcache"
			},
			errorMsg: `invalid CLIENT_CACHE_TYPE value: "memcache"`,
		},
		{
			name: "invalid identity source",
			mutate: func(c *Config) {
				c.IdentitySource = "cookie"
			},
			errorMsg: `invalid IDENTITY_SOURCE value: "cookie"`,
		},
		{
			name: "invalid signing algorithm",
			mutate: func(c *Config) {
				c.SigningAlgorithm = "HS256"
			},
			errorMsg: `invalid SIGNING_ALGORITHM value: "HS256"`,
		},
		{
			name: "redis rate limit without address",
			mutate: func(c *Config) {
				c.RateLimitStore = RateLimitStoreRedis
			},
			errorMsg: `RATE_LIMIT_STORE="redis" requires REDIS_ADDR`,
		},
		{
			name: "redis rate limit without address but disabled",
			mutate: func(c *Config) {
				c.RateLimitStore = RateLimitStoreRedis
				c.EnableRateLimit = false
			},
		},
		{
			name: "redis grant store without address",
			mutate: func(c *Config) {
				c.GrantStoreType = GrantStoreRedis
			},
			errorMsg: `GRANT_STORE="redis" requires REDIS_ADDR`,
		},
		{
			name: "redis grant store with address",
			mutate: func(c *Config) {
				c.GrantStoreType = GrantStoreRedis
				c.RedisAddr = "localhost:6379"
			},
		},
		{
			name: "redis-aside client cache without address",
			mutate: func(c *Config) {
				c.ClientCacheType = ClientCacheTypeRedisAside
			},
			errorMsg: `CLIENT_CACHE_TYPE="redis-aside" requires REDIS_ADDR`,
		},
		{
			name: "zero client cache ttl",
			mutate: func(c *Config) {
				c.ClientCacheTTL = 0
			},
			errorMsg: "CLIENT_CACHE_TTL must be positive",
		},
		{
			name: "zero grant store timeout",
			mutate: func(c *Config) {
				c.GrantStoreTimeout = 0
			},
			errorMsg: "GRANT_STORE_TIMEOUT must be positive",
		},
		{
			name: "production without step-up secret",
			mutate: func(c *Config) {
				c.IsProduction = true
			},
			errorMsg: "STEP_UP_SECRET is required in production",
		},
		{
			name: "invalid webhook auth mode",
			mutate: func(c *Config) {
				c.AuditWebhookAuthMode = "oauth"
			},
			errorMsg: `invalid AUDIT_WEBHOOK_AUTH_MODE value: "oauth"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.errorMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, ":8080", cfg.ServerAddr)
	assert.Equal(t, cfg.BaseURL, cfg.Issuer)
	assert.Equal(t, 10*time.Minute, cfg.AuthCodeExpiration)
	assert.Equal(t, 720*time.Hour, cfg.RefreshTokenExpiration)
	assert.Equal(t, time.Hour, cfg.IDTokenExpiration)
	assert.Equal(t, []string{"integration-gateway", "mcp-servers"}, cfg.AccessTokenAudience)
	assert.Equal(t, "tenant-integration-gateway", cfg.DefaultTenant)
	assert.Equal(t, SigningAlgorithmES256, cfg.SigningAlgorithm)
	assert.Equal(t, GrantStoreMemory, cfg.GrantStoreType)
	assert.Empty(t, cfg.RoleScopeBindings)
	require.NoError(t, cfg.Validate())
}

func TestLoad_BaseURLTrailingSlash(t *testing.T) {
	t.Setenv("BASE_URL", "https://auth.example.com/")

	cfg := Load()
	assert.Equal(t, "https://auth.example.com", cfg.BaseURL)
	assert.Equal(t, "https://auth.example.com", cfg.Issuer)
}

func TestLoad_RoleScopeBindings(t *testing.T) {
	t.Setenv("ROLE_SCOPE_BINDINGS", "orders:onyx_os, admin : diamond_sao,broken,:x,y:")

	cfg := Load()
	assert.Equal(t, map[string]string{
		"orders": "onyx_os",
		"admin":  "diamond_sao",
	}, cfg.RoleScopeBindings)
}

func TestLoad_AudienceSlice(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_AUDIENCE", " api-a , , api-b ")

	cfg := Load()
	assert.Equal(t, []string{"api-a", "api-b"}, cfg.AccessTokenAudience)
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("SALLYPORT_TEST_BOOL", "1")
	assert.True(t, getEnvBool("SALLYPORT_TEST_BOOL", false))

	t.Setenv("SALLYPORT_TEST_BOOL", "yes")
	assert.False(t, getEnvBool("SALLYPORT_TEST_BOOL", true))

	assert.True(t, getEnvBool("SALLYPORT_TEST_BOOL_UNSET", true))
}
