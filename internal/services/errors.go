package services

import (
	"errors"
	"fmt"
	"net/http"
)

// OAuthError is an error with an RFC 6749 error code. Two OAuthErrors match
// under errors.Is when their codes are equal, so the sentinels below work
// regardless of description.
type OAuthError struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func (e *OAuthError) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return e.Code + ": " + e.Description
}

func (e *OAuthError) Is(target error) bool {
	t, ok := target.(*OAuthError)
	return ok && t.Code == e.Code
}

// StatusCode maps the error code onto an HTTP status.
func (e *OAuthError) StatusCode() int {
	switch e.Code {
	case ErrInvalidClient.Code:
		return http.StatusUnauthorized
	case ErrServerError.Code:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// OAuth 2.0 error codes (RFC 6749 §4.1.2.1, §5.2; OIDC Core §3.1.2.6)
var (
	ErrInvalidRequest          = &OAuthError{Code: "invalid_request"}
	ErrInvalidClient           = &OAuthError{Code: "invalid_client"}
	ErrInvalidGrant            = &OAuthError{Code: "invalid_grant"}
	ErrUnauthorizedClient      = &OAuthError{Code: "unauthorized_client"}
	ErrUnsupportedGrantType    = &OAuthError{Code: "unsupported_grant_type"}
	ErrUnsupportedResponseType = &OAuthError{Code: "unsupported_response_type"}
	ErrInvalidScope            = &OAuthError{Code: "invalid_scope"}
	ErrLoginRequired           = &OAuthError{Code: "login_required"}
	ErrServerError             = &OAuthError{Code: "server_error"}
)

// Client registry errors
var (
	ErrClientNotFound   = errors.New("client not found")
	ErrClientAuthFailed = errors.New("client authentication failed")
)

// oauthError returns a copy of base carrying a description.
func oauthError(base *OAuthError, format string, args ...any) *OAuthError {
	return &OAuthError{Code: base.Code, Description: fmt.Sprintf(format, args...)}
}

// serverError hides an internal failure from the client. The caller logs
// the cause.
func serverError() *OAuthError {
	return oauthError(ErrServerError, "the server encountered an internal error")
}

// ToOAuthError converts any error into an OAuthError. Errors without an
// OAuth code become server_error.
func ToOAuthError(err error) *OAuthError {
	if err == nil {
		return nil
	}
	var oe *OAuthError
	if errors.As(err, &oe) {
		return oe
	}
	if errors.Is(err, ErrClientAuthFailed) || errors.Is(err, ErrClientNotFound) {
		return oauthError(ErrInvalidClient, "client authentication failed")
	}
	return serverError()
}
