package token

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// StepUpClaims is the payload of a proof issued by the step-up service
// after the user completed additional verification.
type StepUpClaims struct {
	jwt.RegisteredClaims
	Factors []string `json:"factors"`
}

// StepUpCheck describes what a proof must cover.
type StepUpCheck struct {
	Subject  string
	ClientID string
	Factors  []string
	MaxAge   time.Duration
}

// SignStepUpProof issues an HS256 proof. The step-up service and tests use
// it; the authorization server only verifies.
func SignStepUpProof(secret []byte, claims StepUpClaims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenGeneration, err)
	}
	return signed, nil
}

// VerifyStepUpProof checks an HS256 proof against want. The proof must name
// the same subject, carry the client id as audience, list every required
// factor and be issued no longer than MaxAge ago.
func VerifyStepUpProof(raw string, secret []byte, want StepUpCheck) (*StepUpClaims, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: no verification secret configured", ErrInvalidStepUpProof)
	}

	var claims StepUpClaims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithSubject(want.Subject),
		jwt.WithAudience(want.ClientID),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: expired", ErrInvalidStepUpProof)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidStepUpProof, err)
	}

	if claims.IssuedAt == nil {
		return nil, fmt.Errorf("%w: missing iat", ErrInvalidStepUpProof)
	}
	if want.MaxAge > 0 && time.Since(claims.IssuedAt.Time) > want.MaxAge {
		return nil, fmt.Errorf("%w: older than %s", ErrInvalidStepUpProof, want.MaxAge)
	}
	for _, f := range want.Factors {
		if !slices.Contains(claims.Factors, f) {
			return nil, fmt.Errorf("%w: factor %q not satisfied", ErrInvalidStepUpProof, f)
		}
	}
	return &claims, nil
}
