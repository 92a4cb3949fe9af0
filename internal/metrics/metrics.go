package metrics

import (
	"sync"

	"github.com/go-authgate/sallyport/internal/core"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is an alias for core.Recorder so callers can keep importing metrics.
type Recorder = core.Recorder

// Ensure Metrics implements Recorder interface at compile time
var _ Recorder = (*Metrics)(nil)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Authorization endpoint
	AuthorizationRequestsTotal *prometheus.CounterVec
	StepUpRequiredTotal        *prometheus.CounterVec

	// Token endpoint
	TokensIssuedTotal       *prometheus.CounterVec
	TokenRequestErrorsTotal *prometheus.CounterVec
	TokensRevokedTotal      *prometheus.CounterVec
	TokensRefreshedTotal    *prometheus.CounterVec
	IntrospectionsTotal     *prometheus.CounterVec
	CodeReplaysTotal        prometheus.Counter
	TokenGenerationDuration *prometheus.HistogramVec

	// Client authentication
	ClientAuthTotal    *prometheus.CounterVec
	ClientAuthDuration prometheus.Histogram

	// Backends
	GrantStoreOperationsTotal   *prometheus.CounterVec
	GrantStoreOperationDuration *prometheus.HistogramVec
	SigningKeyLoadsTotal        *prometheus.CounterVec

	// HTTP Request Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Init initializes metrics based on enabled flag
// If enabled=true, returns Prometheus-based Metrics
// If enabled=false, returns NoopMetrics (zero overhead)
// Uses sync.Once to ensure Prometheus metrics are only registered once
func Init(enabled bool) Recorder {
	if !enabled {
		return NewNoopMetrics()
	}

	once.Do(func() {
		defaultMetrics = initMetrics()
	})
	return defaultMetrics
}

// latencyBuckets covers sub-millisecond store calls up to slow bcrypt/RSA work.
var latencyBuckets = []float64{
	0.0005, 0.001, 0.005, 0.010, 0.025, 0.050, 0.100, 0.250, 0.500, 1.0, 2.5, 5.0,
}

// initMetrics creates and registers all Prometheus metrics
func initMetrics() *Metrics {
	return &Metrics{
		AuthorizationRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sallyport_authorization_requests_total",
				Help: "Total number of authorization requests by outcome",
			},
			[]string{"result"}, // code_issued, step_up, login, or an OAuth error code
		),
		StepUpRequiredTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sallyport_step_up_required_total",
				Help: "Authorization requests deferred for step-up verification",
			},
			[]string{"role"},
		),

		TokensIssuedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sallyport_tokens_issued_total",
				Help: "Total number of access tokens issued",
			},
			[]string{"grant_type", "role"},
		),
		TokenRequestErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sallyport_token_request_errors_total",
				Help: "Token requests rejected, by grant type and error code",
			},
			[]string{"grant_type", "error"},
		),
		TokensRevokedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sallyport_tokens_revoked_total",
				Help: "Total number of tokens revoked",
			},
			[]string{"token_type"}, // access_token, refresh_token, authorization_code
		),
		TokensRefreshedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sallyport_tokens_refreshed_total",
				Help: "Total number of token refresh attempts",
			},
			[]string{"result"}, // success, error
		),
		IntrospectionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sallyport_introspections_total",
				Help: "Total number of introspection requests",
			},
			[]string{"active"},
		),
		CodeReplaysTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "sallyport_authorization_code_replays_total",
				Help: "Redemptions of an authorization code that was already used",
			},
		),
		TokenGenerationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sallyport_token_generation_duration_seconds",
				Help:    "Time taken to mint a token response",
				Buckets: latencyBuckets,
			},
			[]string{"grant_type"},
		),

		ClientAuthTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sallyport_client_authentications_total",
				Help: "Client authentication attempts",
			},
			[]string{"result"}, // success, failure
		),
		ClientAuthDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sallyport_client_authentication_duration_seconds",
				Help:    "Time taken to authenticate a client",
				Buckets: latencyBuckets,
			},
		),

		GrantStoreOperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sallyport_grant_store_operations_total",
				Help: "Grant store operations by result",
			},
			[]string{"operation", "result"},
		),
		GrantStoreOperationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sallyport_grant_store_operation_duration_seconds",
				Help:    "Grant store operation latency",
				Buckets: latencyBuckets,
			},
			[]string{"operation"},
		),
		SigningKeyLoadsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sallyport_signing_key_loads_total",
				Help: "Signing key loads, split by whether the key was newly created",
			},
			[]string{"created"},
		),

		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: latencyBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Current number of HTTP requests being served",
			},
		),
	}
}
