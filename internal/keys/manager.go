package keys

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-authgate/sallyport/internal/core"
	"github.com/go-authgate/sallyport/internal/models"
	"github.com/go-authgate/sallyport/internal/store"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

// SecretName is the row under which the signing key is persisted.
const SecretName = "signing-key"

// SecretBackend persists the signing key. GetSecret returns
// store.ErrRecordNotFound when nothing is stored under name.
type SecretBackend interface {
	GetSecret(ctx context.Context, name string) (string, error)
	PutSecretIfAbsent(ctx context.Context, name, value string) (bool, error)
}

// Options configures a Manager.
type Options struct {
	// Algorithm used when a new key must be generated. Defaults to ES256.
	Algorithm string
	// Timeout bounds each load/create round trip. Zero means no bound.
	Timeout time.Duration
	// Additional are extra public keys trusted for verification and
	// published in the JWKS.
	Additional []jose.JSONWebKey

	Metrics core.Recorder
	Audit   core.AuditRecorder
}

// Manager owns the signing key. The first caller loads the key from the
// backend or creates it; concurrent callers wait for that single attempt.
// Once loaded the key is held in memory for the life of the process.
type Manager struct {
	backend SecretBackend
	opts    Options

	group   singleflight.Group
	mu      sync.RWMutex
	current *SigningKey
}

func NewManager(backend SecretBackend, opts Options) (*Manager, error) {
	if opts.Algorithm == "" {
		opts.Algorithm = AlgES256
	}
	if opts.Algorithm != AlgES256 && opts.Algorithm != AlgRS256 {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, opts.Algorithm)
	}
	return &Manager{backend: backend, opts: opts}, nil
}

// SigningKey returns the current key, loading or creating it on first use.
func (m *Manager) SigningKey(ctx context.Context) (*SigningKey, error) {
	m.mu.RLock()
	k := m.current
	m.mu.RUnlock()
	if k != nil {
		return k, nil
	}

	v, err, _ := m.group.Do(SecretName, func() (any, error) {
		m.mu.RLock()
		k := m.current
		m.mu.RUnlock()
		if k != nil {
			return k, nil
		}

		// the shared attempt must not die with the first caller's request
		ctx := context.WithoutCancel(ctx)
		if m.opts.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, m.opts.Timeout)
			defer cancel()
		}

		k, created, err := m.loadOrCreate(ctx)
		if err != nil {
			return nil, err
		}
		if m.opts.Metrics != nil {
			m.opts.Metrics.RecordSigningKeyLoad(created)
		}

		m.mu.Lock()
		m.current = k
		m.mu.Unlock()
		return k, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*SigningKey), nil
}

func (m *Manager) loadOrCreate(ctx context.Context) (*SigningKey, bool, error) {
	k, err := m.load(ctx)
	if err == nil {
		return k, false, nil
	}
	if !errors.Is(err, store.ErrRecordNotFound) {
		return nil, false, err
	}

	signer, err := generateKey(m.opts.Algorithm)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrNoSigningKey, err)
	}
	encoded, err := encodePEM(signer)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrNoSigningKey, err)
	}

	wrote, err := m.backend.PutSecretIfAbsent(ctx, SecretName, encoded)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrNoSigningKey, err)
	}
	if !wrote {
		// another instance won the race; adopt its key
		k, err := m.load(ctx)
		if err != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrNoSigningKey, err)
		}
		return k, false, nil
	}

	k, err = parsePEM(encoded)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrNoSigningKey, err)
	}
	log.Printf("[Keys] Created %s signing key kid=%s", k.Algorithm, k.KeyID)
	if m.opts.Audit != nil {
		m.opts.Audit.Log(ctx, models.AuditEntry{
			EventType:    models.EventSigningKeyCreated,
			Severity:     models.SeverityWarning,
			ResourceType: models.ResourceSigningKey,
			ResourceID:   k.KeyID,
			Action:       "Signing key created",
			Details:      models.AuditDetails{"algorithm": k.Algorithm},
			Success:      true,
		})
	}
	return k, true, nil
}

func (m *Manager) load(ctx context.Context) (*SigningKey, error) {
	raw, err := m.backend.GetSecret(ctx, SecretName)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrNoSigningKey, err)
	}
	k, err := parsePEM(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: stored key: %v", ErrNoSigningKey, err)
	}
	if k.Algorithm != m.opts.Algorithm {
		log.Printf("[Keys] Stored key is %s, configured %s; keeping the stored key", k.Algorithm, m.opts.Algorithm)
	}
	return k, nil
}

// PublicJWKS lists every trusted public key, the signing key first.
func (m *Manager) PublicJWKS(ctx context.Context) (jose.JSONWebKeySet, error) {
	k, err := m.SigningKey(ctx)
	if err != nil {
		return jose.JSONWebKeySet{}, err
	}
	set := jose.JSONWebKeySet{Keys: make([]jose.JSONWebKey, 0, 1+len(m.opts.Additional))}
	set.Keys = append(set.Keys, k.JWK())
	set.Keys = append(set.Keys, m.opts.Additional...)
	return set, nil
}

// Algorithms returns the signing algorithms tokens from this server may use.
func (m *Manager) Algorithms() []string {
	return []string{m.opts.Algorithm}
}

// Sign signs claims with the current key and stamps its kid.
func (m *Manager) Sign(ctx context.Context, claims jwt.Claims) (string, error) {
	k, err := m.SigningKey(ctx)
	if err != nil {
		return "", err
	}
	t := jwt.NewWithClaims(k.method(), claims)
	t.Header["kid"] = k.KeyID
	signed, err := t.SignedString(k.Signer)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses raw into claims. The key is chosen by kid and the token's
// alg must match that key's algorithm.
func (m *Manager) Verify(
	ctx context.Context,
	raw string,
	claims jwt.Claims,
	opts ...jwt.ParserOption,
) (*jwt.Token, error) {
	k, err := m.SigningKey(ctx)
	if err != nil {
		return nil, err
	}

	keyFunc := func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == k.KeyID {
			if t.Method.Alg() != k.Algorithm {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return k.Signer.Public(), nil
		}
		for _, extra := range m.opts.Additional {
			if extra.KeyID != kid {
				continue
			}
			if extra.Algorithm != "" && extra.Algorithm != t.Method.Alg() {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return extra.Key, nil
		}
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, kid)
	}

	opts = append(opts, jwt.WithValidMethods([]string{AlgES256, AlgRS256}))
	return jwt.ParseWithClaims(raw, claims, keyFunc, opts...)
}
