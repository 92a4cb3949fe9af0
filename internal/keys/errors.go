package keys

import "errors"

var (
	// ErrNoSigningKey means the signing key could not be loaded or created.
	ErrNoSigningKey = errors.New("keys: signing key unavailable")

	// ErrUnknownKey means a token names a kid that is not trusted.
	ErrUnknownKey = errors.New("keys: unknown key id")

	// ErrUnsupportedAlgorithm is returned for algorithms other than ES256 and RS256.
	ErrUnsupportedAlgorithm = errors.New("keys: unsupported algorithm")
)
