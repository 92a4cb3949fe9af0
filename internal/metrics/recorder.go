package metrics

import (
	"strconv"
	"time"
)

const (
	resultSuccess = "success"
	resultError   = "error"
	resultFailure = "failure"
)

func (m *Metrics) RecordAuthorizationRequest(result string) {
	m.AuthorizationRequestsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordStepUpRequired(role string) {
	m.StepUpRequiredTotal.WithLabelValues(role).Inc()
}

// RecordTokenIssued records a minted token response. role is the policy role
// that set the lifetime, or "none".
func (m *Metrics) RecordTokenIssued(grantType, role string, generationTime time.Duration) {
	if role == "" {
		role = "none"
	}
	m.TokensIssuedTotal.WithLabelValues(grantType, role).Inc()
	m.TokenGenerationDuration.WithLabelValues(grantType).Observe(generationTime.Seconds())
}

func (m *Metrics) RecordTokenRequestFailed(grantType, errorCode string) {
	m.TokenRequestErrorsTotal.WithLabelValues(grantType, errorCode).Inc()
}

func (m *Metrics) RecordTokenRevoked(tokenType string) {
	m.TokensRevokedTotal.WithLabelValues(tokenType).Inc()
}

func (m *Metrics) RecordTokenRefresh(success bool) {
	result := resultSuccess
	if !success {
		result = resultError
	}
	m.TokensRefreshedTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordIntrospection(active bool) {
	m.IntrospectionsTotal.WithLabelValues(strconv.FormatBool(active)).Inc()
}

func (m *Metrics) RecordCodeReplay() {
	m.CodeReplaysTotal.Inc()
}

func (m *Metrics) RecordClientAuthentication(success bool, duration time.Duration) {
	result := resultSuccess
	if !success {
		result = resultFailure
	}
	m.ClientAuthTotal.WithLabelValues(result).Inc()
	m.ClientAuthDuration.Observe(duration.Seconds())
}

// RecordGrantStoreOperation records one grant store call. A nil err counts as success.
func (m *Metrics) RecordGrantStoreOperation(operation string, duration time.Duration, err error) {
	result := resultSuccess
	if err != nil {
		result = resultError
	}
	m.GrantStoreOperationsTotal.WithLabelValues(operation, result).Inc()
	m.GrantStoreOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *Metrics) RecordSigningKeyLoad(created bool) {
	m.SigningKeyLoadsTotal.WithLabelValues(strconv.FormatBool(created)).Inc()
}
