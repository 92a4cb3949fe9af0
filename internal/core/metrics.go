package core

import "time"

// Recorder defines the interface for recording application metrics.
// Implementations include Metrics (Prometheus-based) and NoopMetrics (no-op).
type Recorder interface {
	// Authorization endpoint
	RecordAuthorizationRequest(result string)
	RecordStepUpRequired(role string)

	// Token endpoint
	RecordTokenIssued(grantType, role string, generationTime time.Duration)
	RecordTokenRequestFailed(grantType, errorCode string)
	RecordTokenRevoked(tokenType string)
	RecordTokenRefresh(success bool)
	RecordIntrospection(active bool)
	RecordCodeReplay()

	// Client authentication
	RecordClientAuthentication(success bool, duration time.Duration)

	// Backends
	RecordGrantStoreOperation(operation string, duration time.Duration, err error)
	RecordSigningKeyLoad(created bool)
}
