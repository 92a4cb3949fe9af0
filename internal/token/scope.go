package token

import (
	"slices"
	"strings"
)

// ScopeOpenID marks a request for an ID token.
const ScopeOpenID = "openid"

// ParseScopes splits a space-separated scope string, dropping duplicates
// and keeping first-seen order.
func ParseScopes(scopes string) []string {
	var out []string
	for s := range strings.FieldsSeq(scopes) {
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

// JoinScopes is the inverse of ParseScopes.
func JoinScopes(scopes []string) string {
	return strings.Join(scopes, " ")
}

// ScopeSet parses a space-separated scope string into a boolean lookup map.
func ScopeSet(scopes string) map[string]bool {
	set := make(map[string]bool)
	for s := range strings.FieldsSeq(scopes) {
		set[s] = true
	}
	return set
}

// IsSubset reports whether every scope in requested is in granted.
func IsSubset(requested []string, granted string) bool {
	set := ScopeSet(granted)
	for _, s := range requested {
		if !set[s] {
			return false
		}
	}
	return true
}

// HasScope reports whether scope appears in the space-separated list.
func HasScope(scopes, scope string) bool {
	return ScopeSet(scopes)[scope]
}
