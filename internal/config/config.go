package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Rate limit store constants
const (
	RateLimitStoreMemory = "memory"
	RateLimitStoreRedis  = "redis"
)

// Grant store constants
const (
	GrantStoreMemory = "memory"
	GrantStoreRedis  = "redis"
)

// Client cache type constants
const (
	ClientCacheTypeMemory     = "memory"
	ClientCacheTypeRedis      = "redis"
	ClientCacheTypeRedisAside = "redis-aside"
)

// Identity source constants
const (
	IdentitySourceSession = "session"
	IdentitySourceHeader  = "header"
)

// Signing algorithm constants
const (
	SigningAlgorithmES256 = "ES256"
	SigningAlgorithmRS256 = "RS256"
)

type Config struct {
	// Server settings
	ServerAddr   string
	BaseURL      string
	Issuer       string
	IsProduction bool

	// Database
	DatabaseDriver  string // "sqlite" or "postgres"
	DatabaseDSN     string // Database connection string (DSN or path)
	SeedClientsFile string

	// Redis (shared by grant store, rate limiting and client cache)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Grant store (authorization codes, refresh tokens, revocation markers)
	GrantStoreType          string
	GrantStorePrefix        string
	GrantStoreTimeout       time.Duration
	GrantStoreSweepInterval time.Duration

	// Client registration cache
	ClientCacheType        string
	ClientCacheTTL         time.Duration
	ClientCacheClientTTL   time.Duration // client-side TTL for redis-aside
	ClientCacheSizePerConn int           // MB per connection for redis-aside

	// Signing keys
	SigningAlgorithm   string
	KeyTimeout         time.Duration
	AdditionalJWKSFile string

	// Token lifetimes
	AuthCodeExpiration     time.Duration
	RefreshTokenExpiration time.Duration // default 720h = 30 days
	IDTokenExpiration      time.Duration

	// Token contents
	AccessTokenAudience []string
	DefaultTenant       string
	RoleScopeBindings   map[string]string // scope -> role

	// Step-up verification
	StepUpURL         string
	StepUpSecret      string
	StepUpProofMaxAge time.Duration

	// Identity resolution
	IdentitySource       string
	IdentityHeader       string
	IdentityTenantHeader string
	SessionSecret        string
	SessionMaxAge        int // seconds
	LoginURL             string

	// Metrics
	MetricsEnabled bool
	MetricsToken   string

	// Rate limiting
	EnableRateLimit          bool
	RateLimitStore           string
	TokenRateLimit           int // requests per minute
	AuthorizeRateLimit       int
	IntrospectRateLimit      int
	RevokeRateLimit          int
	RateLimitCleanupInterval time.Duration

	// Audit logging
	EnableAuditLogging     bool
	AuditLogBufferSize     int
	AuditLogRetention      time.Duration
	AuditWebhookURL        string
	AuditWebhookAuthMode   string // "none", "simple", or "hmac"
	AuditWebhookSecret     string
	AuditWebhookAuthHeader string
	AuditWebhookTimeout    time.Duration
	AuditWebhookMaxRetries int
	AuditWebhookRetryDelay time.Duration
	AuditWebhookMaxDelay   time.Duration

	// Timeouts
	DBInitTimeout         time.Duration
	DBCloseTimeout        time.Duration
	RedisConnTimeout      time.Duration
	RedisCloseTimeout     time.Duration
	CacheInitTimeout      time.Duration
	CacheCloseTimeout     time.Duration
	ServerShutdownTimeout time.Duration
	AuditShutdownTimeout  time.Duration
}

func Load() *Config {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	driver := getEnv("DATABASE_DRIVER", "sqlite")
	var dsn string
	if driver == "sqlite" {
		dsn = getEnv("DATABASE_DSN", "sallyport.db")
	} else {
		dsn = getEnv("DATABASE_DSN", "")
	}

	baseURL := strings.TrimRight(getEnv("BASE_URL", "http://localhost:8080"), "/")

	return &Config{
		ServerAddr:      getEnv("SERVER_ADDR", ":8080"),
		BaseURL:         baseURL,
		Issuer:          getEnv("ISSUER", baseURL),
		IsProduction:    getEnv("ENVIRONMENT", "") == "production",
		DatabaseDriver:  driver,
		DatabaseDSN:     dsn,
		SeedClientsFile: getEnv("SEED_CLIENTS_FILE", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		GrantStoreType:          getEnv("GRANT_STORE", GrantStoreMemory),
		GrantStorePrefix:        getEnv("GRANT_STORE_PREFIX", "sallyport:"),
		GrantStoreTimeout:       getEnvDuration("GRANT_STORE_TIMEOUT", 2*time.Second),
		GrantStoreSweepInterval: getEnvDuration("GRANT_STORE_SWEEP_INTERVAL", time.Minute),

		ClientCacheType:        getEnv("CLIENT_CACHE_TYPE", ClientCacheTypeMemory),
		ClientCacheTTL:         getEnvDuration("CLIENT_CACHE_TTL", 5*time.Minute),
		ClientCacheClientTTL:   getEnvDuration("CLIENT_CACHE_CLIENT_TTL", 30*time.Second),
		ClientCacheSizePerConn: getEnvInt("CLIENT_CACHE_SIZE_PER_CONN", 32),

		SigningAlgorithm:   getEnv("SIGNING_ALGORITHM", SigningAlgorithmES256),
		KeyTimeout:         getEnvDuration("KEY_TIMEOUT", 2*time.Second),
		AdditionalJWKSFile: getEnv("ADDITIONAL_JWKS_FILE", ""),

		AuthCodeExpiration:     getEnvDuration("AUTH_CODE_EXPIRATION", 10*time.Minute),
		RefreshTokenExpiration: getEnvDuration("REFRESH_TOKEN_EXPIRATION", 720*time.Hour),
		IDTokenExpiration:      getEnvDuration("ID_TOKEN_EXPIRATION", time.Hour),

		AccessTokenAudience: getEnvSlice(
			"ACCESS_TOKEN_AUDIENCE",
			[]string{"integration-gateway", "mcp-servers"},
		),
		DefaultTenant:     getEnv("DEFAULT_TENANT", "tenant-integration-gateway"),
		RoleScopeBindings: getEnvMap("ROLE_SCOPE_BINDINGS", map[string]string{}),

		StepUpURL:         getEnv("STEP_UP_URL", "https://auth.2100.cool/sacred-verification"),
		StepUpSecret:      getEnv("STEP_UP_SECRET", ""),
		StepUpProofMaxAge: getEnvDuration("STEP_UP_PROOF_MAX_AGE", 5*time.Minute),

		IdentitySource:       getEnv("IDENTITY_SOURCE", IdentitySourceSession),
		IdentityHeader:       getEnv("IDENTITY_HEADER", "X-Authenticated-User"),
		IdentityTenantHeader: getEnv("IDENTITY_TENANT_HEADER", "X-Tenant-ID"),
		SessionSecret:        getEnv("SESSION_SECRET", "session-secret-change-in-production"),
		SessionMaxAge:        getEnvInt("SESSION_MAX_AGE", 3600),
		LoginURL:             getEnv("LOGIN_URL", ""),

		MetricsEnabled: getEnvBool("METRICS_ENABLED", false),
		MetricsToken:   getEnv("METRICS_TOKEN", ""),

		EnableRateLimit:          getEnvBool("ENABLE_RATE_LIMIT", true),
		RateLimitStore:           getEnv("RATE_LIMIT_STORE", RateLimitStoreMemory),
		TokenRateLimit:           getEnvInt("TOKEN_RATE_LIMIT", 60),
		AuthorizeRateLimit:       getEnvInt("AUTHORIZE_RATE_LIMIT", 30),
		IntrospectRateLimit:      getEnvInt("INTROSPECT_RATE_LIMIT", 120),
		RevokeRateLimit:          getEnvInt("REVOKE_RATE_LIMIT", 30),
		RateLimitCleanupInterval: getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),

		EnableAuditLogging:     getEnvBool("ENABLE_AUDIT_LOGGING", true),
		AuditLogBufferSize:     getEnvInt("AUDIT_LOG_BUFFER_SIZE", 1000),
		AuditLogRetention:      getEnvDuration("AUDIT_LOG_RETENTION", 90*24*time.Hour),
		AuditWebhookURL:        getEnv("AUDIT_WEBHOOK_URL", ""),
		AuditWebhookAuthMode:   getEnv("AUDIT_WEBHOOK_AUTH_MODE", "none"),
		AuditWebhookSecret:     getEnv("AUDIT_WEBHOOK_SECRET", ""),
		AuditWebhookAuthHeader: getEnv("AUDIT_WEBHOOK_AUTH_HEADER", "X-API-Secret"),
		AuditWebhookTimeout:    getEnvDuration("AUDIT_WEBHOOK_TIMEOUT", 5*time.Second),
		AuditWebhookMaxRetries: getEnvInt("AUDIT_WEBHOOK_MAX_RETRIES", 3),
		AuditWebhookRetryDelay: getEnvDuration("AUDIT_WEBHOOK_RETRY_DELAY", time.Second),
		AuditWebhookMaxDelay:   getEnvDuration("AUDIT_WEBHOOK_MAX_RETRY_DELAY", 10*time.Second),

		DBInitTimeout:         getEnvDuration("DB_INIT_TIMEOUT", 30*time.Second),
		DBCloseTimeout:        getEnvDuration("DB_CLOSE_TIMEOUT", 5*time.Second),
		RedisConnTimeout:      getEnvDuration("REDIS_CONN_TIMEOUT", 5*time.Second),
		RedisCloseTimeout:     getEnvDuration("REDIS_CLOSE_TIMEOUT", 5*time.Second),
		CacheInitTimeout:      getEnvDuration("CACHE_INIT_TIMEOUT", 5*time.Second),
		CacheCloseTimeout:     getEnvDuration("CACHE_CLOSE_TIMEOUT", 5*time.Second),
		ServerShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 5*time.Second),
		AuditShutdownTimeout:  getEnvDuration("AUDIT_SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

// Validate checks enum-like settings and cross-field requirements.
func (c *Config) Validate() error {
	if c.RateLimitStore != RateLimitStoreMemory && c.RateLimitStore != RateLimitStoreRedis {
		return fmt.Errorf(
			"invalid RATE_LIMIT_STORE value: %q (must be %q or %q)",
			c.RateLimitStore, RateLimitStoreMemory, RateLimitStoreRedis,
		)
	}

	switch c.GrantStoreType {
	case GrantStoreMemory, GrantStoreRedis:
	default:
		return fmt.Errorf(
			"invalid GRANT_STORE value: %q (must be %q or %q)",
			c.GrantStoreType, GrantStoreMemory, GrantStoreRedis,
		)
	}

	switch c.ClientCacheType {
	case ClientCacheTypeMemory, ClientCacheTypeRedis, ClientCacheTypeRedisAside:
	default:
		return fmt.Errorf(
			"invalid CLIENT_CACHE_TYPE value: %q (must be %q, %q, or %q)",
			c.ClientCacheType,
			ClientCacheTypeMemory, ClientCacheTypeRedis, ClientCacheTypeRedisAside,
		)
	}

	switch c.IdentitySource {
	case IdentitySourceSession, IdentitySourceHeader:
	default:
		return fmt.Errorf(
			"invalid IDENTITY_SOURCE value: %q (must be %q or %q)",
			c.IdentitySource, IdentitySourceSession, IdentitySourceHeader,
		)
	}

	switch c.SigningAlgorithm {
	case SigningAlgorithmES256, SigningAlgorithmRS256:
	default:
		return fmt.Errorf(
			"invalid SIGNING_ALGORITHM value: %q (must be %q or %q)",
			c.SigningAlgorithm, SigningAlgorithmES256, SigningAlgorithmRS256,
		)
	}

	if c.RedisAddr == "" {
		if c.EnableRateLimit && c.RateLimitStore == RateLimitStoreRedis {
			return errors.New(`RATE_LIMIT_STORE="redis" requires REDIS_ADDR`)
		}
		if c.GrantStoreType == GrantStoreRedis {
			return errors.New(`GRANT_STORE="redis" requires REDIS_ADDR`)
		}
		if c.ClientCacheType != ClientCacheTypeMemory {
			return fmt.Errorf("CLIENT_CACHE_TYPE=%q requires REDIS_ADDR", c.ClientCacheType)
		}
	}

	if c.ClientCacheTTL <= 0 {
		return fmt.Errorf("CLIENT_CACHE_TTL must be positive, got %s", c.ClientCacheTTL)
	}
	if c.GrantStoreTimeout <= 0 {
		return fmt.Errorf("GRANT_STORE_TIMEOUT must be positive, got %s", c.GrantStoreTimeout)
	}
	if c.AuthCodeExpiration <= 0 || c.RefreshTokenExpiration <= 0 {
		return errors.New("AUTH_CODE_EXPIRATION and REFRESH_TOKEN_EXPIRATION must be positive")
	}

	if c.IsProduction && c.StepUpSecret == "" {
		return errors.New("STEP_UP_SECRET is required in production")
	}

	switch c.AuditWebhookAuthMode {
	case "none", "simple", "hmac":
	default:
		return fmt.Errorf(
			"invalid AUDIT_WEBHOOK_AUTH_MODE value: %q (must be none, simple, or hmac)",
			c.AuditWebhookAuthMode,
		)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		if parts := splitAndTrim(value, ","); len(parts) > 0 {
			return parts
		}
	}
	return defaultValue
}

// getEnvMap parses "k1:v1,k2:v2". Malformed pairs are skipped.
func getEnvMap(key string, defaultValue map[string]string) map[string]string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	out := make(map[string]string)
	for _, pair := range splitAndTrim(value, ",") {
		k, v, ok := strings.Cut(pair, ":")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	return out
}

func splitAndTrim(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
