package handlers

import (
	"net/http"
	"net/url"

	"github.com/go-authgate/sallyport/internal/models"
	"github.com/go-authgate/sallyport/internal/services"

	"github.com/gin-gonic/gin"
)

// TokenHandler serves the client-authenticated endpoints: token,
// introspection and revocation.
type TokenHandler struct {
	tokens *services.TokenService
}

func NewTokenHandler(ts *services.TokenService) *TokenHandler {
	return &TokenHandler{tokens: ts}
}

// tokenRequest accepts both form-encoded and JSON bodies.
type tokenRequest struct {
	GrantType    string `form:"grant_type"    json:"grant_type"`
	Code         string `form:"code"          json:"code"`
	RedirectURI  string `form:"redirect_uri"  json:"redirect_uri"`
	CodeVerifier string `form:"code_verifier" json:"code_verifier"`
	RefreshToken string `form:"refresh_token" json:"refresh_token"`
	Scope        string `form:"scope"         json:"scope"`

	ClientID     string `form:"client_id"     json:"client_id"`
	ClientSecret string `form:"client_secret" json:"client_secret"`
}

type tokenLookupRequest struct {
	Token         string `form:"token"           json:"token"`
	TokenTypeHint string `form:"token_type_hint" json:"token_type_hint"`

	ClientID     string `form:"client_id"     json:"client_id"`
	ClientSecret string `form:"client_secret" json:"client_secret"`
}

// Token handles POST /token (RFC 6749 §3.2).
func (h *TokenHandler) Token(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBind(&req); err != nil {
		respondOAuthError(c, &services.OAuthError{
			Code:        services.ErrInvalidRequest.Code,
			Description: "malformed request body",
		})
		return
	}

	client, ok := h.authenticate(c, req.ClientID, req.ClientSecret)
	if !ok {
		return
	}

	resp, err := h.tokens.Exchange(c.Request.Context(), client, services.TokenRequest{
		GrantType:    req.GrantType,
		Code:         req.Code,
		RedirectURI:  req.RedirectURI,
		CodeVerifier: req.CodeVerifier,
		RefreshToken: req.RefreshToken,
		Scope:        req.Scope,
	})
	if err != nil {
		respondOAuthError(c, err)
		return
	}

	noStore(c)
	c.JSON(http.StatusOK, resp)
}

// Introspect handles POST /introspect (RFC 7662).
func (h *TokenHandler) Introspect(c *gin.Context) {
	req, client, ok := h.bindLookup(c)
	if !ok {
		return
	}

	resp, err := h.tokens.Introspect(c.Request.Context(), client, req.Token, req.TokenTypeHint)
	if err != nil {
		respondOAuthError(c, err)
		return
	}
	noStore(c)
	c.JSON(http.StatusOK, resp)
}

// Revoke handles POST /revoke (RFC 7009). Unknown tokens still get 200.
func (h *TokenHandler) Revoke(c *gin.Context) {
	req, client, ok := h.bindLookup(c)
	if !ok {
		return
	}

	if err := h.tokens.Revoke(c.Request.Context(), client, req.Token, req.TokenTypeHint); err != nil {
		respondOAuthError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *TokenHandler) bindLookup(c *gin.Context) (tokenLookupRequest, *models.OAuthApplication, bool) {
	var req tokenLookupRequest
	if err := c.ShouldBind(&req); err != nil {
		respondOAuthError(c, &services.OAuthError{
			Code:        services.ErrInvalidRequest.Code,
			Description: "malformed request body",
		})
		return req, nil, false
	}
	client, ok := h.authenticate(c, req.ClientID, req.ClientSecret)
	return req, client, ok
}

// authenticate prefers HTTP Basic credentials and falls back to the body
// fields. Basic credentials are form-encoded before base64 (RFC 6749 §2.3.1).
func (h *TokenHandler) authenticate(
	c *gin.Context,
	bodyID, bodySecret string,
) (*models.OAuthApplication, bool) {
	clientID, secret := bodyID, bodySecret
	if user, pass, ok := c.Request.BasicAuth(); ok {
		var err error
		if clientID, err = url.QueryUnescape(user); err == nil {
			secret, err = url.QueryUnescape(pass)
		}
		if err != nil {
			respondOAuthError(c, &services.OAuthError{
				Code:        services.ErrInvalidClient.Code,
				Description: "malformed Basic credentials",
			})
			return nil, false
		}
	}

	client, err := h.tokens.AuthenticateClient(c.Request.Context(), clientID, secret)
	if err != nil {
		respondOAuthError(c, err)
		return nil, false
	}
	return client, true
}
