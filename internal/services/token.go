package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-authgate/sallyport/internal/config"
	"github.com/go-authgate/sallyport/internal/core"
	"github.com/go-authgate/sallyport/internal/grantstore"
	"github.com/go-authgate/sallyport/internal/models"
	"github.com/go-authgate/sallyport/internal/roles"
	"github.com/go-authgate/sallyport/internal/token"
	"github.com/go-authgate/sallyport/internal/util"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// TokenSigner signs and verifies the server's own JWTs.
type TokenSigner interface {
	Sign(ctx context.Context, claims jwt.Claims) (string, error)
	token.Verifier
}

// TokenRequest carries the grant-specific parameters of a /token call.
type TokenRequest struct {
	GrantType    string
	Code         string
	RedirectURI  string
	CodeVerifier string
	RefreshToken string
	Scope        string
}

// TokenResponse is the successful /token body (RFC 6749 §5.1).
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// grant is everything the minting routine needs, taken from the stored
// record rather than the live request.
type grant struct {
	GrantType string
	Subject   string
	Scopes    string
	Tenant    string
	Roles     []roles.Role
	AuthTime  time.Time
	Nonce     string

	// RefreshToken is reused as-is when set.
	RefreshToken string
	// OpenID is true when the original grant included openid.
	OpenID bool
}

// TokenService implements the token, introspection, revocation and
// userinfo endpoints.
type TokenService struct {
	clients   core.ClientRegistry
	grants    core.GrantStore
	signer    TokenSigner
	extractor *roles.Extractor
	config    *config.Config
	metrics   core.Recorder
	audit     core.AuditRecorder
}

func NewTokenService(
	clients core.ClientRegistry,
	grants core.GrantStore,
	signer TokenSigner,
	extractor *roles.Extractor,
	cfg *config.Config,
	m core.Recorder,
	audit core.AuditRecorder,
) *TokenService {
	return &TokenService{
		clients:   clients,
		grants:    grants,
		signer:    signer,
		extractor: extractor,
		config:    cfg,
		metrics:   m,
		audit:     audit,
	}
}

// AuthenticateClient verifies client credentials for the token,
// introspection and revocation endpoints.
func (s *TokenService) AuthenticateClient(
	ctx context.Context,
	clientID, secret string,
) (*models.OAuthApplication, error) {
	if clientID == "" {
		return nil, oauthError(ErrInvalidClient, "client authentication failed")
	}
	client, err := s.clients.Authenticate(ctx, clientID, secret)
	if err != nil {
		if errors.Is(err, ErrClientAuthFailed) {
			return nil, oauthError(ErrInvalidClient, "client authentication failed")
		}
		log.Printf("[Token] Client authentication backend error: %v", err)
		return nil, serverError()
	}
	return client, nil
}

// Exchange runs one grant for an authenticated client.
func (s *TokenService) Exchange(
	ctx context.Context,
	client *models.OAuthApplication,
	req TokenRequest,
) (*TokenResponse, error) {
	start := time.Now()

	var (
		resp *TokenResponse
		role roles.Role
		err  error
	)
	switch req.GrantType {
	case models.GrantTypeAuthorizationCode, models.GrantTypeClientCredentials, models.GrantTypeRefreshToken:
		if !client.AllowsGrantType(req.GrantType) {
			err = oauthError(ErrUnsupportedGrantType,
				"grant_type %q is not allowed for this client", req.GrantType)
			break
		}
		switch req.GrantType {
		case models.GrantTypeAuthorizationCode:
			resp, role, err = s.exchangeCode(ctx, client, req)
		case models.GrantTypeClientCredentials:
			resp, role, err = s.clientCredentials(ctx, client, req)
		case models.GrantTypeRefreshToken:
			resp, role, err = s.refresh(ctx, client, req)
			s.metrics.RecordTokenRefresh(err == nil)
		}
	case "":
		err = oauthError(ErrInvalidRequest, "grant_type is required")
	default:
		err = oauthError(ErrUnsupportedGrantType, "unsupported grant_type %q", req.GrantType)
	}

	if err != nil {
		oerr := ToOAuthError(err)
		s.metrics.RecordTokenRequestFailed(req.GrantType, oerr.Code)
		s.audit.Log(ctx, models.AuditEntry{
			EventType:     models.EventTokenRequestFailed,
			Severity:      models.SeverityWarning,
			ActorClientID: client.ClientID,
			ResourceType:  models.ResourceToken,
			Action:        "Token request failed",
			Details: models.AuditDetails{
				"grant_type": req.GrantType,
				"error":      oerr.Code,
			},
			Success:      false,
			ErrorMessage: oerr.Error(),
		})
		return nil, oerr
	}

	s.metrics.RecordTokenIssued(req.GrantType, string(role), time.Since(start))
	return resp, nil
}

func (s *TokenService) exchangeCode(
	ctx context.Context,
	client *models.OAuthApplication,
	req TokenRequest,
) (*TokenResponse, roles.Role, error) {
	if req.Code == "" {
		return nil, "", oauthError(ErrInvalidRequest, "code is required")
	}

	key := grantstore.CodeKey(req.Code)
	data, err := s.grants.Get(ctx, key)
	if err != nil {
		if errors.Is(err, grantstore.ErrNotFound) {
			return nil, "", s.missingCode(ctx, client, req.Code)
		}
		log.Printf("[Token] Code lookup failed: %v", err)
		return nil, "", serverError()
	}

	var rec models.AuthorizationCode
	if err := json.Unmarshal(data, &rec); err != nil {
		log.Printf("[Token] Corrupt code record: %v", err)
		return nil, "", oauthError(ErrInvalidGrant, "invalid authorization code")
	}
	if rec.IsExpired() {
		return nil, "", oauthError(ErrInvalidGrant, "authorization code expired")
	}
	if rec.ClientID != client.ClientID || rec.RedirectURI != req.RedirectURI {
		return nil, "", oauthError(ErrInvalidGrant, "authorization code was not issued to this client")
	}
	if rec.HasPKCE() {
		if !verifyPKCE(&rec, req.CodeVerifier) {
			return nil, "", oauthError(ErrInvalidGrant, "invalid code_verifier")
		}
	} else if req.CodeVerifier != "" {
		return nil, "", oauthError(ErrInvalidGrant, "code_verifier sent but no code_challenge was recorded")
	}

	// Single use: only the caller whose Take succeeds may mint.
	if _, err := s.grants.Take(ctx, key); err != nil {
		if errors.Is(err, grantstore.ErrNotFound) {
			return nil, "", oauthError(ErrInvalidGrant, "authorization code already used")
		}
		log.Printf("[Token] Code redemption failed: %v", err)
		return nil, "", serverError()
	}
	if _, err := s.grants.PutIfAbsent(
		ctx, grantstore.UsedKey(req.Code), []byte(client.ClientID), s.config.AuthCodeExpiration,
	); err != nil {
		log.Printf("[Token] Failed to record used code: %v", err)
	}

	bound := roles.FromStrings(rec.Roles)
	resp, err := s.mint(ctx, client, grant{
		GrantType: models.GrantTypeAuthorizationCode,
		Subject:   rec.Subject,
		Scopes:    rec.Scopes,
		Tenant:    rec.Tenant,
		Roles:     bound,
		AuthTime:  rec.AuthTime,
		Nonce:     rec.Nonce,
		OpenID:    token.HasScope(rec.Scopes, token.ScopeOpenID),
	})
	if err != nil {
		return nil, "", err
	}

	policy := roles.PolicyFor(bound)
	s.audit.Log(ctx, leveled(policy.AuditLevel, models.AuditEntry{
		EventType:     models.EventAuthorizationCodeExchanged,
		ActorSubject:  rec.Subject,
		ActorClientID: client.ClientID,
		Tenant:        rec.Tenant,
		ResourceType:  models.ResourceToken,
		ResourceName:  client.ClientName,
		Action:        "Authorization code exchanged",
		Details:       models.AuditDetails{"roles": rec.Roles},
		Success:       true,
	}, models.AuditDetails{
		"scope":         rec.Scopes,
		"refresh_token": resp.RefreshToken != "",
		"openid":        resp.IDToken != "",
	}))
	return resp, policy.Role, nil
}

// missingCode tells a replay of a redeemed code apart from an unknown one.
func (s *TokenService) missingCode(ctx context.Context, client *models.OAuthApplication, code string) error {
	owner, err := s.grants.Get(ctx, grantstore.UsedKey(code))
	if err != nil {
		if errors.Is(err, grantstore.ErrNotFound) {
			return oauthError(ErrInvalidGrant, "invalid authorization code")
		}
		log.Printf("[Token] Used-code lookup failed: %v", err)
		return serverError()
	}

	s.metrics.RecordCodeReplay()
	s.audit.Log(ctx, models.AuditEntry{
		EventType:     models.EventSuspiciousActivity,
		Severity:      models.SeverityCritical,
		ActorClientID: client.ClientID,
		ResourceType:  models.ResourceAuthorizationCode,
		ResourceID:    util.SHA256Hex(code)[:16],
		Action:        "Authorization code replay",
		Details:       models.AuditDetails{"issued_to": string(owner)},
		Success:       false,
		ErrorMessage:  "authorization code already used",
	})
	return oauthError(ErrInvalidGrant, "authorization code already used")
}

func (s *TokenService) clientCredentials(
	ctx context.Context,
	client *models.OAuthApplication,
	req TokenRequest,
) (*TokenResponse, roles.Role, error) {
	if client.IsPublic() {
		return nil, "", oauthError(ErrUnauthorizedClient, "public clients cannot use client_credentials")
	}

	scopes := token.ParseScopes(req.Scope)
	if len(scopes) == 0 {
		scopes = client.Scopes
	}
	if !client.AllowsScopes(scopes) {
		return nil, "", oauthError(ErrInvalidScope, "requested scope is not allowed for this client")
	}

	bound := s.extractor.ExtractRoles(scopes)
	tenant := resolveTenant("", client, s.config.DefaultTenant)
	resp, err := s.mint(ctx, client, grant{
		GrantType: models.GrantTypeClientCredentials,
		Subject:   client.ClientID,
		Scopes:    token.JoinScopes(scopes),
		Tenant:    tenant,
		Roles:     bound,
	})
	if err != nil {
		return nil, "", err
	}

	policy := roles.PolicyFor(bound)
	s.audit.Log(ctx, leveled(policy.AuditLevel, models.AuditEntry{
		EventType:     models.EventClientCredentialsTokenIssued,
		ActorSubject:  client.ClientID,
		ActorClientID: client.ClientID,
		Tenant:        tenant,
		ResourceType:  models.ResourceToken,
		ResourceName:  client.ClientName,
		Action:        "Client credentials token issued",
		Details:       models.AuditDetails{"roles": roles.Strings(bound)},
		Success:       true,
	}, models.AuditDetails{"scope": resp.Scope}))
	return resp, policy.Role, nil
}

func (s *TokenService) refresh(
	ctx context.Context,
	client *models.OAuthApplication,
	req TokenRequest,
) (*TokenResponse, roles.Role, error) {
	if req.RefreshToken == "" {
		return nil, "", oauthError(ErrInvalidRequest, "refresh_token is required")
	}

	rec, err := s.lookupRefresh(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, grantstore.ErrNotFound) {
			return nil, "", oauthError(ErrInvalidGrant, "invalid refresh token")
		}
		log.Printf("[Token] Refresh lookup failed: %v", err)
		return nil, "", serverError()
	}
	if rec.IsExpired() {
		return nil, "", oauthError(ErrInvalidGrant, "refresh token expired")
	}
	if rec.ClientID != client.ClientID {
		return nil, "", oauthError(ErrInvalidGrant, "refresh token was not issued to this client")
	}

	requested := token.ParseScopes(req.Scope)
	if len(requested) == 0 {
		requested = token.ParseScopes(rec.Scopes)
	}
	if !token.IsSubset(requested, rec.Scopes) {
		return nil, "", oauthError(ErrInvalidScope, "requested scope exceeds the original grant")
	}

	bound := roles.FromStrings(rec.Roles)
	resp, err := s.mint(ctx, client, grant{
		GrantType:    models.GrantTypeRefreshToken,
		Subject:      rec.Subject,
		Scopes:       token.JoinScopes(requested),
		Tenant:       rec.Tenant,
		Roles:        bound,
		AuthTime:     rec.AuthTime,
		RefreshToken: req.RefreshToken,
		OpenID:       token.HasScope(rec.Scopes, token.ScopeOpenID),
	})
	if err != nil {
		return nil, "", err
	}

	policy := roles.PolicyFor(bound)
	s.audit.Log(ctx, leveled(policy.AuditLevel, models.AuditEntry{
		EventType:     models.EventTokenRefreshed,
		ActorSubject:  rec.Subject,
		ActorClientID: client.ClientID,
		Tenant:        rec.Tenant,
		ResourceType:  models.ResourceToken,
		ResourceName:  client.ClientName,
		Action:        "Access token refreshed",
		Details:       models.AuditDetails{"roles": rec.Roles},
		Success:       true,
	}, models.AuditDetails{
		"scope":          resp.Scope,
		"original_scope": rec.Scopes,
	}))
	return resp, policy.Role, nil
}

// mint signs an access token and, where the grant allows, an ID token and
// a refresh token.
func (s *TokenService) mint(
	ctx context.Context,
	client *models.OAuthApplication,
	g grant,
) (*TokenResponse, error) {
	policy := roles.PolicyFor(g.Roles)
	conferred := roles.Intersect(g.Roles, s.extractor.ExtractRoles(token.ParseScopes(g.Scopes)))
	roleClaim := roles.Strings(conferred)

	now := time.Now()
	access := token.AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   g.Subject,
			Audience:  jwt.ClaimStrings(s.config.AccessTokenAudience),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(policy.AccessTokenTTL)),
			ID:        uuid.New().String(),
		},
		Scope:     g.Scopes,
		ClientID:  client.ClientID,
		Roles:     roleClaim,
		Tenant:    g.Tenant,
		GrantType: g.GrantType,
	}
	accessToken, err := s.signer.Sign(ctx, access)
	if err != nil {
		log.Printf("[Token] Failed to sign access token: %v", err)
		return nil, serverError()
	}

	resp := &TokenResponse{
		AccessToken: accessToken,
		TokenType:   token.TokenTypeBearer,
		ExpiresIn:   int64(policy.AccessTokenTTL / time.Second),
		Scope:       g.Scopes,
	}

	// Client credentials tokens have no user behind them.
	if g.GrantType == models.GrantTypeClientCredentials {
		return resp, nil
	}

	if g.OpenID {
		idToken, err := s.signIDToken(ctx, client, g, roleClaim, accessToken, now)
		if err != nil {
			log.Printf("[Token] Failed to sign ID token: %v", err)
			return nil, serverError()
		}
		resp.IDToken = idToken
	}

	switch {
	case g.RefreshToken != "":
		resp.RefreshToken = g.RefreshToken
	case client.AllowsGrantType(models.GrantTypeRefreshToken):
		rt, err := s.storeRefresh(ctx, client, g, now)
		if err != nil {
			log.Printf("[Token] Failed to store refresh token: %v", err)
			return nil, serverError()
		}
		resp.RefreshToken = rt
	}
	return resp, nil
}

func (s *TokenService) signIDToken(
	ctx context.Context,
	client *models.OAuthApplication,
	g grant,
	roleClaim []string,
	accessToken string,
	now time.Time,
) (string, error) {
	claims := token.IDClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   g.Subject,
			Audience:  jwt.ClaimStrings{client.ClientID},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.IDTokenExpiration)),
		},
		Nonce:  g.Nonce,
		Roles:  roleClaim,
		Tenant: g.Tenant,
		AtHash: token.ComputeAtHash(accessToken),
	}
	if !g.AuthTime.IsZero() {
		claims.AuthTime = jwt.NewNumericDate(g.AuthTime)
	}
	return s.signer.Sign(ctx, claims)
}

func (s *TokenService) storeRefresh(
	ctx context.Context,
	client *models.OAuthApplication,
	g grant,
	now time.Time,
) (string, error) {
	rt, err := util.RandomToken(48)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(models.RefreshGrant{
		ClientID:  client.ClientID,
		Subject:   g.Subject,
		Scopes:    g.Scopes,
		Tenant:    g.Tenant,
		Roles:     roles.Strings(g.Roles),
		AuthTime:  g.AuthTime,
		CreatedAt: now,
		ExpiresAt: now.Add(s.config.RefreshTokenExpiration),
	})
	if err != nil {
		return "", err
	}
	if err := s.grants.Put(ctx, grantstore.RefreshKey(rt), data, s.config.RefreshTokenExpiration); err != nil {
		return "", err
	}
	return rt, nil
}

func (s *TokenService) lookupRefresh(ctx context.Context, raw string) (*models.RefreshGrant, error) {
	data, err := s.grants.Get(ctx, grantstore.RefreshKey(raw))
	if err != nil {
		return nil, err
	}
	var rec models.RefreshGrant
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: corrupt refresh record: %v", grantstore.ErrNotFound, err)
	}
	return &rec, nil
}

// verifyPKCE checks verifier against the recorded challenge (RFC 7636 §4.6).
func verifyPKCE(rec *models.AuthorizationCode, verifier string) bool {
	if verifier == "" {
		return false
	}
	switch rec.CodeChallengeMethod {
	case PKCEMethodS256:
		return util.ConstantTimeEqual(oauth2.S256ChallengeFromVerifier(verifier), rec.CodeChallenge)
	case PKCEMethodPlain, "":
		return util.ConstantTimeEqual(verifier, rec.CodeChallenge)
	default:
		return false
	}
}
