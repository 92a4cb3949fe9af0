package services

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/go-authgate/sallyport/internal/grantstore"
	"github.com/go-authgate/sallyport/internal/models"
	"github.com/go-authgate/sallyport/internal/token"
	"github.com/go-authgate/sallyport/internal/util"

	"github.com/golang-jwt/jwt/v5"
)

// Token type hints (RFC 7009 §2.1, RFC 7662 §2.1)
const (
	TokenTypeHintAccessToken  = "access_token"
	TokenTypeHintRefreshToken = "refresh_token"
)

// IntrospectionResponse is the RFC 7662 §2.2 body. Only Active is set for
// inactive tokens.
type IntrospectionResponse struct {
	Active    bool     `json:"active"`
	Scope     string   `json:"scope,omitempty"`
	ClientID  string   `json:"client_id,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	Exp       int64    `json:"exp,omitempty"`
	Iat       int64    `json:"iat,omitempty"`
	Sub       string   `json:"sub,omitempty"`
	Iss       string   `json:"iss,omitempty"`
	Aud       []string `json:"aud,omitempty"`
	TokenType string   `json:"token_type,omitempty"`
	Tenant    string   `json:"tenant,omitempty"`
}

// UserInfoResponse is the /userinfo body.
type UserInfoResponse struct {
	Sub      string   `json:"sub"`
	Tenant   string   `json:"tenant,omitempty"`
	Roles    []string `json:"roles"`
	ClientID string   `json:"client_id"`
	Scope    string   `json:"scope"`
}

func unixOrZero(d *jwt.NumericDate) int64 {
	if d == nil {
		return 0
	}
	return d.Unix()
}

// looksLikeJWT reports whether raw has the three-part compact form.
func looksLikeJWT(raw string) bool {
	return strings.Count(raw, ".") == 2
}

// Introspect reports whether raw is currently usable. Any authenticated
// client may introspect any token. Store failures are returned as
// server_error rather than active:false.
func (s *TokenService) Introspect(
	ctx context.Context,
	caller *models.OAuthApplication,
	raw, hint string,
) (*IntrospectionResponse, error) {
	resp, err := s.introspect(ctx, raw, hint)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordIntrospection(resp.Active)
	s.audit.Log(ctx, models.AuditEntry{
		EventType:     models.EventTokenIntrospected,
		Severity:      models.SeverityInfo,
		ActorClientID: caller.ClientID,
		ResourceType:  models.ResourceToken,
		Action:        "Token introspected",
		Details: models.AuditDetails{
			"active":          resp.Active,
			"token_client_id": resp.ClientID,
			"token_type_hint": hint,
		},
		Success: true,
	})
	return resp, nil
}

func (s *TokenService) introspect(ctx context.Context, raw, hint string) (*IntrospectionResponse, error) {
	if raw == "" {
		return &IntrospectionResponse{Active: false}, nil
	}

	// The hint only orders the lookups; a miss falls through to the other type.
	lookups := []func(context.Context, string) (*IntrospectionResponse, error){
		s.introspectAccess,
		s.introspectRefresh,
	}
	if hint == TokenTypeHintRefreshToken {
		lookups[0], lookups[1] = lookups[1], lookups[0]
	}
	for _, lookup := range lookups {
		resp, err := lookup(ctx, raw)
		if err != nil {
			return nil, err
		}
		if resp != nil {
			return resp, nil
		}
	}
	return &IntrospectionResponse{Active: false}, nil
}

// introspectAccess returns nil when raw is not an active access token.
func (s *TokenService) introspectAccess(ctx context.Context, raw string) (*IntrospectionResponse, error) {
	if !looksLikeJWT(raw) {
		return nil, nil
	}
	claims, err := s.activeAccessToken(ctx, raw)
	if err != nil {
		if errors.Is(err, ErrServerError) {
			return nil, err
		}
		return nil, nil
	}
	return &IntrospectionResponse{
		Active:    true,
		Scope:     claims.Scope,
		ClientID:  claims.ClientID,
		Roles:     claims.Roles,
		Exp:       claims.ExpiresAt.Unix(),
		Iat:       unixOrZero(claims.IssuedAt),
		Sub:       claims.Subject,
		Iss:       claims.Issuer,
		Aud:       claims.Audience,
		TokenType: token.TokenTypeBearer,
		Tenant:    claims.Tenant,
	}, nil
}

// introspectRefresh returns nil when raw is not a live refresh token.
func (s *TokenService) introspectRefresh(ctx context.Context, raw string) (*IntrospectionResponse, error) {
	rec, err := s.lookupRefresh(ctx, raw)
	if err != nil {
		if errors.Is(err, grantstore.ErrNotFound) {
			return nil, nil
		}
		log.Printf("[Token] Introspection lookup failed: %v", err)
		return nil, serverError()
	}
	if rec.IsExpired() {
		return nil, nil
	}
	return &IntrospectionResponse{
		Active:    true,
		Scope:     rec.Scopes,
		ClientID:  rec.ClientID,
		Roles:     rec.Roles,
		Exp:       rec.ExpiresAt.Unix(),
		Iat:       rec.CreatedAt.Unix(),
		Sub:       rec.Subject,
		Iss:       s.config.Issuer,
		TokenType: TokenTypeHintRefreshToken,
		Tenant:    rec.Tenant,
	}, nil
}

// verifyAccessToken parses raw. Rejected tokens come back as
// token.ErrInvalidToken or token.ErrExpiredToken; a verifier failure such
// as an unavailable signing key is server_error.
func (s *TokenService) verifyAccessToken(ctx context.Context, raw string) (*token.AccessClaims, error) {
	claims, err := token.ParseAccessToken(ctx, s.signer, raw, s.config.Issuer)
	if err == nil {
		return claims, nil
	}
	if errors.Is(err, token.ErrInvalidToken) || errors.Is(err, token.ErrExpiredToken) {
		return nil, err
	}
	log.Printf("[Token] Access token verification failed: %v", err)
	return nil, serverError()
}

// activeAccessToken verifies raw and checks its revocation marker. Key and
// store failures are reported as server_error; every other failure as an
// invalid token.
func (s *TokenService) activeAccessToken(ctx context.Context, raw string) (*token.AccessClaims, error) {
	claims, err := s.verifyAccessToken(ctx, raw)
	if err != nil {
		return nil, err
	}
	_, err = s.grants.Get(ctx, grantstore.RevokedKey(claims.ID))
	switch {
	case err == nil:
		return nil, token.ErrInvalidToken
	case errors.Is(err, grantstore.ErrNotFound):
		return claims, nil
	default:
		log.Printf("[Token] Revocation lookup failed: %v", err)
		return nil, serverError()
	}
}

// Revoke invalidates raw if it belongs to caller (RFC 7009). Unknown tokens
// and tokens of other clients are silently ignored.
func (s *TokenService) Revoke(
	ctx context.Context,
	caller *models.OAuthApplication,
	raw, hint string,
) error {
	if raw == "" {
		return oauthError(ErrInvalidRequest, "token is required")
	}

	revokers := []func(context.Context, *models.OAuthApplication, string) (string, error){
		s.revokeAccessToken,
		s.revokeOpaque,
	}
	if hint == TokenTypeHintRefreshToken {
		revokers[0], revokers[1] = revokers[1], revokers[0]
	}

	var tokenType string
	for _, revoke := range revokers {
		t, err := revoke(ctx, caller, raw)
		if err != nil {
			if errors.Is(err, ErrServerError) {
				return err
			}
			log.Printf("[Token] Revocation failed: %v", err)
			return serverError()
		}
		if t != "" {
			tokenType = t
			break
		}
	}
	if tokenType == "" {
		return nil
	}

	s.metrics.RecordTokenRevoked(tokenType)
	s.audit.Log(ctx, models.AuditEntry{
		EventType:     models.EventTokenRevoked,
		Severity:      models.SeverityInfo,
		ActorClientID: caller.ClientID,
		ResourceType:  models.ResourceToken,
		ResourceID:    util.SHA256Hex(raw)[:16],
		Action:        "Token revoked",
		Details:       models.AuditDetails{"token_type": tokenType},
		Success:       true,
	})
	return nil
}

// revokeOpaque handles refresh tokens and unused authorization codes. It
// returns the type of what was revoked, or "" when nothing matched.
func (s *TokenService) revokeOpaque(
	ctx context.Context,
	caller *models.OAuthApplication,
	raw string,
) (string, error) {
	rec, err := s.lookupRefresh(ctx, raw)
	switch {
	case err == nil:
		if rec.ClientID != caller.ClientID {
			return "", nil
		}
		if err := s.grants.Delete(ctx, grantstore.RefreshKey(raw)); err != nil {
			return "", err
		}
		return TokenTypeHintRefreshToken, nil
	case !errors.Is(err, grantstore.ErrNotFound):
		return "", err
	}

	code, err := s.grants.Get(ctx, grantstore.CodeKey(raw))
	if err != nil {
		if errors.Is(err, grantstore.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	var owner struct {
		ClientID string `json:"client_id"`
	}
	if err := json.Unmarshal(code, &owner); err != nil || owner.ClientID != caller.ClientID {
		return "", nil
	}
	if err := s.grants.Delete(ctx, grantstore.CodeKey(raw)); err != nil {
		return "", err
	}
	return "authorization_code", nil
}

// revokeAccessToken writes a revocation marker that lives until the token
// would have expired anyway.
func (s *TokenService) revokeAccessToken(
	ctx context.Context,
	caller *models.OAuthApplication,
	raw string,
) (string, error) {
	if !looksLikeJWT(raw) {
		return "", nil
	}
	claims, err := s.verifyAccessToken(ctx, raw)
	if err != nil {
		if errors.Is(err, ErrServerError) {
			return "", err
		}
		return "", nil
	}
	if claims.ClientID != caller.ClientID {
		return "", nil
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return "", nil
	}
	if err := s.grants.Put(ctx, grantstore.RevokedKey(claims.ID), []byte(caller.ClientID), ttl); err != nil {
		return "", err
	}
	return TokenTypeHintAccessToken, nil
}

// UserInfo returns the claims of a valid bearer access token.
func (s *TokenService) UserInfo(ctx context.Context, raw string) (*UserInfoResponse, error) {
	if raw == "" {
		return nil, token.ErrInvalidToken
	}
	claims, err := s.activeAccessToken(ctx, raw)
	if err != nil {
		return nil, err
	}
	return &UserInfoResponse{
		Sub:      claims.Subject,
		Tenant:   claims.Tenant,
		Roles:    claims.Roles,
		ClientID: claims.ClientID,
		Scope:    claims.Scope,
	}, nil
}
