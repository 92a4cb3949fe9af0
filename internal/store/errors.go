package store

import "errors"

var (
	// ErrRecordNotFound wraps GORM's not found error for consistency
	ErrRecordNotFound = errors.New("record not found")

	// ErrClientConflict is returned when a client_id is already registered.
	ErrClientConflict = errors.New("client already exists")

	// ErrUnsupportedDriver is returned for DATABASE_DRIVER values other
	// than sqlite and postgres.
	ErrUnsupportedDriver = errors.New("unsupported database driver")
)
