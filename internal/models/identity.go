package models

import "time"

// Identity is the authenticated end user behind an authorization request,
// as supplied by the session or a trusted proxy.
type Identity struct {
	Subject  string
	Tenant   string
	AuthTime time.Time
}

// IsZero reports whether no user is authenticated.
func (i *Identity) IsZero() bool {
	return i == nil || i.Subject == ""
}
