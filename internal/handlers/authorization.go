package handlers

import (
	"net/http"

	"github.com/go-authgate/sallyport/internal/config"
	"github.com/go-authgate/sallyport/internal/middleware"
	"github.com/go-authgate/sallyport/internal/services"

	"github.com/gin-gonic/gin"
)

// AuthorizationHandler serves the browser-facing authorization endpoint.
type AuthorizationHandler struct {
	authz  *services.AuthorizationService
	config *config.Config
}

func NewAuthorizationHandler(
	as *services.AuthorizationService,
	cfg *config.Config,
) *AuthorizationHandler {
	return &AuthorizationHandler{authz: as, config: cfg}
}

// Authorize handles GET /authorize (RFC 6749 §4.1.1). Errors that cannot be
// sent back to a verified redirect_uri are rendered as JSON; everything else
// ends in a 302.
func (h *AuthorizationHandler) Authorize(c *gin.Context) {
	state, stateSet := c.GetQuery("state")
	req := services.AuthorizeRequest{
		ClientID:            c.Query("client_id"),
		ResponseType:        c.Query("response_type"),
		RedirectURI:         c.Query("redirect_uri"),
		Scope:               c.Query("scope"),
		State:               state,
		StateSet:            stateSet,
		CodeChallenge:       c.Query("code_challenge"),
		CodeChallengeMethod: c.Query("code_challenge_method"),
		Nonce:               c.Query("nonce"),
		StepUpProof:         c.Query("step_up_proof"),
		ReturnTo:            h.config.BaseURL + c.Request.URL.RequestURI(),
	}

	result, err := h.authz.Authorize(c.Request.Context(), req, middleware.GetIdentity(c))
	if err != nil {
		respondOAuthError(c, err)
		return
	}
	c.Redirect(http.StatusFound, result.Location)
}
