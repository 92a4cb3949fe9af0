package metrics

import "time"

// NoopMetrics is a no-operation implementation of Recorder
// All methods are empty and do nothing, providing zero overhead when metrics are disabled
type NoopMetrics struct{}

// Ensure NoopMetrics implements Recorder interface at compile time
var _ Recorder = (*NoopMetrics)(nil)

// NewNoopMetrics creates a new no-operation metrics recorder
func NewNoopMetrics() Recorder {
	return &NoopMetrics{}
}

func (n *NoopMetrics) RecordAuthorizationRequest(result string) {}
func (n *NoopMetrics) RecordStepUpRequired(role string)         {}

func (n *NoopMetrics) RecordTokenIssued(grantType, role string, generationTime time.Duration) {}
func (n *NoopMetrics) RecordTokenRequestFailed(grantType, errorCode string)                   {}
func (n *NoopMetrics) RecordTokenRevoked(tokenType string)                                    {}
func (n *NoopMetrics) RecordTokenRefresh(success bool)                                        {}
func (n *NoopMetrics) RecordIntrospection(active bool)                                        {}
func (n *NoopMetrics) RecordCodeReplay()                                                      {}

func (n *NoopMetrics) RecordClientAuthentication(success bool, duration time.Duration) {}

func (n *NoopMetrics) RecordGrantStoreOperation(operation string, duration time.Duration, err error) {
}
func (n *NoopMetrics) RecordSigningKeyLoad(created bool) {}
