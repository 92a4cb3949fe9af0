package models

import (
	"slices"
	"time"
)

// AuthorizationCode is the record stored behind a one-time authorization code.
// Only the SHA-256 of the code is used as the storage key; the plaintext is
// never persisted.
type AuthorizationCode struct {
	ClientID    string   `json:"client_id"`
	RedirectURI string   `json:"redirect_uri"`
	Scopes      string   `json:"scope"`
	Subject     string   `json:"sub"`
	Tenant      string   `json:"tenant,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Nonce       string   `json:"nonce,omitempty"`

	// PKCE (RFC 7636)
	CodeChallenge       string `json:"code_challenge,omitempty"` // empty = PKCE not used
	CodeChallengeMethod string `json:"code_challenge_method,omitempty"`

	AuthTime  time.Time `json:"auth_time"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (a *AuthorizationCode) IsExpired() bool {
	return time.Now().After(a.ExpiresAt)
}

// HasPKCE reports whether the authorization request carried a code challenge.
func (a *AuthorizationCode) HasPKCE() bool {
	return a.CodeChallenge != ""
}

// RefreshGrant is the record behind an opaque refresh token. It keeps the
// original grant so refreshes can only narrow it.
type RefreshGrant struct {
	ClientID  string    `json:"client_id"`
	Subject   string    `json:"sub"`
	Scopes    string    `json:"scope"`
	Tenant    string    `json:"tenant,omitempty"`
	Roles     []string  `json:"roles,omitempty"`
	AuthTime  time.Time `json:"auth_time"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (r *RefreshGrant) IsExpired() bool {
	return time.Now().After(r.ExpiresAt)
}

// HasRole reports whether role was bound to the grant.
func (r *RefreshGrant) HasRole(role string) bool {
	return slices.Contains(r.Roles, role)
}
