package client

import (
	"fmt"
	"time"

	httpclient "github.com/appleboy/go-httpclient"
	retry "github.com/appleboy/go-httpretry"
)

// DefaultAuthHeader carries the shared secret in simple mode.
const DefaultAuthHeader = "X-API-Secret"

// Options configures an outbound client to a monitoring endpoint.
type Options struct {
	// AuthMode is one of httpclient.AuthModeNone, AuthModeSimple or AuthModeHMAC.
	AuthMode   string
	AuthSecret string
	// AuthHeader is the header the secret is sent in for simple mode.
	// Defaults to DefaultAuthHeader.
	AuthHeader string

	Timeout       time.Duration
	MaxRetries    int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
}

// NewRetryClient returns an authenticated HTTP client that retries
// transient failures with backoff.
func NewRetryClient(opts Options) (*retry.Client, error) {
	authMode := opts.AuthMode
	if authMode == "" {
		authMode = httpclient.AuthModeNone
	}

	authHeader := opts.AuthHeader
	if authHeader == "" {
		authHeader = DefaultAuthHeader
	}

	client, err := httpclient.NewAuthClient(
		authMode,
		opts.AuthSecret,
		httpclient.WithTimeout(opts.Timeout),
		httpclient.WithHeaderName(authHeader),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth client: %w", err)
	}

	retryClient, err := retry.NewRealtimeClient(
		retry.WithHTTPClient(client),
		retry.WithMaxRetries(opts.MaxRetries),
		retry.WithInitialRetryDelay(opts.RetryDelay),
		retry.WithMaxRetryDelay(opts.MaxRetryDelay),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create retry client: %w", err)
	}
	return retryClient, nil
}
