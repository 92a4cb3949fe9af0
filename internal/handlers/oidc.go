package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-authgate/sallyport/internal/config"
	"github.com/go-authgate/sallyport/internal/models"
	"github.com/go-authgate/sallyport/internal/roles"
	"github.com/go-authgate/sallyport/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/go-jose/go-jose/v4"
)

const publicCacheControl = "public, max-age=3600"

// KeySet publishes the verification keys.
type KeySet interface {
	PublicJWKS(ctx context.Context) (jose.JSONWebKeySet, error)
	Algorithms() []string
}

// OIDCHandler handles discovery, JWKS and UserInfo.
type OIDCHandler struct {
	tokens    *services.TokenService
	keys      KeySet
	extractor *roles.Extractor
	config    *config.Config
}

func NewOIDCHandler(
	ts *services.TokenService,
	keys KeySet,
	extractor *roles.Extractor,
	cfg *config.Config,
) *OIDCHandler {
	return &OIDCHandler{
		tokens:    ts,
		keys:      keys,
		extractor: extractor,
		config:    cfg,
	}
}

// discoveryMetadata is the OpenID Provider Metadata document.
type discoveryMetadata struct {
	Issuer                           string   `json:"issuer"`
	AuthorizationEndpoint            string   `json:"authorization_endpoint"`
	TokenEndpoint                    string   `json:"token_endpoint"`
	UserinfoEndpoint                 string   `json:"userinfo_endpoint"`
	JwksURI                          string   `json:"jwks_uri"`
	IntrospectionEndpoint            string   `json:"introspection_endpoint"`
	RevocationEndpoint               string   `json:"revocation_endpoint"`
	ResponseTypesSupported           []string `json:"response_types_supported"`
	SubjectTypesSupported            []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported []string `json:"id_token_signing_alg_values_supported"`
	ScopesSupported                  []string `json:"scopes_supported"`
	TokenEndpointAuthMethods         []string `json:"token_endpoint_auth_methods_supported"`
	GrantTypesSupported              []string `json:"grant_types_supported"`
	ClaimsSupported                  []string `json:"claims_supported"`
	CodeChallengeMethodsSupported    []string `json:"code_challenge_methods_supported"`
}

// Discovery handles GET /.well-known/openid-configuration.
func (h *OIDCHandler) Discovery(c *gin.Context) {
	base := strings.TrimRight(h.config.BaseURL, "/")
	meta := discoveryMetadata{
		Issuer:                           h.config.Issuer,
		AuthorizationEndpoint:            base + "/authorize",
		TokenEndpoint:                    base + "/token",
		UserinfoEndpoint:                 base + "/userinfo",
		JwksURI:                          base + "/.well-known/jwks.json",
		IntrospectionEndpoint:            base + "/introspect",
		RevocationEndpoint:               base + "/revoke",
		ResponseTypesSupported:           []string{models.ResponseTypeCode},
		SubjectTypesSupported:            []string{"public"},
		IDTokenSigningAlgValuesSupported: h.keys.Algorithms(),
		ScopesSupported:                  h.scopes(),
		TokenEndpointAuthMethods: []string{
			"client_secret_basic",
			"client_secret_post",
			"none",
		},
		GrantTypesSupported: []string{
			models.GrantTypeAuthorizationCode,
			models.GrantTypeClientCredentials,
			models.GrantTypeRefreshToken,
		},
		ClaimsSupported: []string{
			"sub",
			"iss",
			"aud",
			"exp",
			"iat",
			"auth_time",
			"nonce",
			"at_hash",
			"client_id",
			"scope",
			"roles",
			"tenant",
			"grant_type",
		},
		CodeChallengeMethodsSupported: []string{
			services.PKCEMethodS256,
			services.PKCEMethodPlain,
		},
	}
	c.Header("Cache-Control", publicCacheControl)
	c.JSON(http.StatusOK, meta)
}

// scopes lists the standard scopes, every role scope and any extra scopes
// bound to roles, without duplicates.
func (h *OIDCHandler) scopes() []string {
	out := []string{"openid", "profile"}
	seen := map[string]bool{"openid": true, "profile": true}
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, r := range roles.All() {
		add(r.String())
	}
	if h.extractor != nil {
		for _, s := range h.extractor.BoundScopes() {
			add(s)
		}
	}
	return out
}

// JWKS handles GET /.well-known/jwks.json.
func (h *OIDCHandler) JWKS(c *gin.Context) {
	set, err := h.keys.PublicJWKS(c.Request.Context())
	if err != nil {
		log.Printf("[OIDC] Failed to load signing keys: %v", err)
		respondOAuthError(c, err)
		return
	}
	c.Header("Cache-Control", publicCacheControl)
	c.JSON(http.StatusOK, set)
}

// UserInfo handles GET /userinfo (OIDC Core 1.0 §5.3).
func (h *OIDCHandler) UserInfo(c *gin.Context) {
	raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !ok || raw == "" {
		invalidToken(c, "Bearer token required")
		return
	}

	info, err := h.tokens.UserInfo(c.Request.Context(), raw)
	if err != nil {
		if errors.Is(err, services.ErrServerError) {
			respondOAuthError(c, err)
			return
		}
		invalidToken(c, "token is invalid, expired or revoked")
		return
	}
	noStore(c)
	c.JSON(http.StatusOK, info)
}

func invalidToken(c *gin.Context, description string) {
	c.Header("WWW-Authenticate", `Bearer error="invalid_token"`)
	c.JSON(http.StatusUnauthorized, gin.H{
		"error":             "invalid_token",
		"error_description": description,
	})
}
