package token

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier checks signatures of tokens issued by this server.
type Verifier interface {
	Verify(ctx context.Context, raw string, claims jwt.Claims, opts ...jwt.ParserOption) (*jwt.Token, error)
}

// ParseAccessToken verifies raw and returns its claims. Expiry and issuer
// are enforced; revocation is the caller's concern. Errors that are not a
// rejection of the token itself, such as an unavailable signing key, are
// returned unwrapped.
func ParseAccessToken(ctx context.Context, v Verifier, raw, issuer string) (*AccessClaims, error) {
	var claims AccessClaims
	_, err := v.Verify(ctx, raw, &claims,
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case isRejection(err):
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		default:
			return nil, err
		}
	}
	if claims.ID == "" || claims.ClientID == "" {
		return nil, fmt.Errorf("%w: missing jti or client_id", ErrInvalidToken)
	}
	return &claims, nil
}

// isRejection reports whether the parser refused the token's content,
// signature or claims.
func isRejection(err error) bool {
	for _, target := range []error{
		jwt.ErrTokenMalformed,
		jwt.ErrTokenUnverifiable,
		jwt.ErrTokenSignatureInvalid,
		jwt.ErrTokenInvalidClaims,
		jwt.ErrTokenRequiredClaimMissing,
		jwt.ErrTokenInvalidIssuer,
		jwt.ErrTokenNotValidYet,
		jwt.ErrTokenUsedBeforeIssued,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
