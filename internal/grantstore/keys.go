package grantstore

import "github.com/go-authgate/sallyport/internal/util"

// Key namespaces. Secrets are never used as keys directly; codes and refresh
// tokens are addressed by their SHA-256.
const (
	prefixCode    = "code:"
	prefixUsed    = "used:"
	prefixRefresh = "rt:"
	prefixRevoked = "revoked:"
)

// CodeKey addresses an unredeemed authorization code.
func CodeKey(code string) string { return prefixCode + util.SHA256Hex(code) }

// UsedKey addresses the tombstone left after a code is redeemed.
func UsedKey(code string) string { return prefixUsed + util.SHA256Hex(code) }

// RefreshKey addresses a refresh grant.
func RefreshKey(token string) string { return prefixRefresh + util.SHA256Hex(token) }

// RevokedKey addresses the revocation marker of an access token.
func RevokedKey(jti string) string { return prefixRevoked + jti }
