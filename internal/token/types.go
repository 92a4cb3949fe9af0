package token

import "github.com/golang-jwt/jwt/v5"

// Token type constants
const (
	TokenTypeBearer = "Bearer"
)

// AccessClaims is the payload of a signed access token.
type AccessClaims struct {
	jwt.RegisteredClaims
	Scope     string   `json:"scope"`
	ClientID  string   `json:"client_id"`
	Roles     []string `json:"roles"`
	Tenant    string   `json:"tenant,omitempty"`
	GrantType string   `json:"grant_type"`
}

// IDClaims is the payload of an OIDC ID token (OIDC Core 1.0 §2).
type IDClaims struct {
	jwt.RegisteredClaims
	AuthTime *jwt.NumericDate `json:"auth_time,omitempty"`
	Nonce    string           `json:"nonce,omitempty"`
	Roles    []string         `json:"roles,omitempty"`
	Tenant   string           `json:"tenant,omitempty"`
	AtHash   string           `json:"at_hash,omitempty"`
}
