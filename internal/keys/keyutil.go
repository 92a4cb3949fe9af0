package keys

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
)

const (
	AlgES256 = "ES256"
	AlgRS256 = "RS256"

	rsaKeyBits = 2048
)

// SigningKey is a private key together with its derived identity.
type SigningKey struct {
	Signer    crypto.Signer
	KeyID     string
	Algorithm string
}

func (k *SigningKey) method() jwt.SigningMethod {
	return jwt.GetSigningMethod(k.Algorithm)
}

// JWK returns the public half as a JSON Web Key.
func (k *SigningKey) JWK() jose.JSONWebKey {
	return jose.JSONWebKey{
		Key:       k.Signer.Public(),
		KeyID:     k.KeyID,
		Algorithm: k.Algorithm,
		Use:       "sig",
	}
}

func generateKey(alg string) (crypto.Signer, error) {
	switch alg {
	case AlgES256:
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case AlgRS256:
		return rsa.GenerateKey(rand.Reader, rsaKeyBits)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}
}

func encodePEM(key crypto.Signer) (string, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return "", fmt.Errorf("failed to marshal signing key: %w", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})), nil
}

// parsePEM reads a PKCS#8 private key and derives its kid and algorithm.
func parsePEM(data string) (*SigningKey, error) {
	block, _ := pem.Decode([]byte(data))
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block from signing key")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key: %w", err)
	}
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("signing key does not implement crypto.Signer")
	}

	alg, err := deriveAlgorithm(signer)
	if err != nil {
		return nil, err
	}
	kid, err := deriveKeyID(signer.Public())
	if err != nil {
		return nil, err
	}
	return &SigningKey{Signer: signer, KeyID: kid, Algorithm: alg}, nil
}

// deriveKeyID returns the RFC 7638 thumbprint of pub.
func deriveKeyID(pub crypto.PublicKey) (string, error) {
	jwk := jose.JSONWebKey{Key: pub}
	thumbprint, err := jwk.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", fmt.Errorf("failed to compute key thumbprint: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(thumbprint), nil
}

func deriveAlgorithm(key crypto.Signer) (string, error) {
	switch k := key.(type) {
	case *rsa.PrivateKey:
		return AlgRS256, nil
	case *ecdsa.PrivateKey:
		if k.Curve != elliptic.P256() {
			return "", fmt.Errorf("%w: EC curve %s", ErrUnsupportedAlgorithm, k.Curve.Params().Name)
		}
		return AlgES256, nil
	default:
		return "", fmt.Errorf("%w: key type %T", ErrUnsupportedAlgorithm, key)
	}
}

// LoadJWKSFile reads additional trusted public keys. Every key needs a kid
// and must be public.
func LoadJWKSFile(path string) ([]jose.JSONWebKey, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("failed to read JWKS file: %w", err)
	}

	var set jose.JSONWebKeySet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to parse JWKS file: %w", err)
	}

	for i, k := range set.Keys {
		if k.KeyID == "" {
			return nil, fmt.Errorf("JWKS key %d has no kid", i)
		}
		if !k.IsPublic() {
			return nil, fmt.Errorf("JWKS key %q is not a public key", k.KeyID)
		}
		if !k.Valid() {
			return nil, fmt.Errorf("JWKS key %q is invalid", k.KeyID)
		}
		if set.Keys[i].Use == "" {
			set.Keys[i].Use = "sig"
		}
	}
	return set.Keys, nil
}
