package grantstore

import "errors"

var (
	// ErrNotFound means the key does not exist or has expired.
	ErrNotFound = errors.New("grantstore: not found")

	// ErrUnavailable means the backend failed or timed out. Callers must not
	// treat it as a missing key.
	ErrUnavailable = errors.New("grantstore: backend unavailable")
)
