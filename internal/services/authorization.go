package services

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/go-authgate/sallyport/internal/config"
	"github.com/go-authgate/sallyport/internal/core"
	"github.com/go-authgate/sallyport/internal/grantstore"
	"github.com/go-authgate/sallyport/internal/models"
	"github.com/go-authgate/sallyport/internal/roles"
	"github.com/go-authgate/sallyport/internal/token"
	"github.com/go-authgate/sallyport/internal/util"
)

// PKCE methods (RFC 7636 §4.2)
const (
	PKCEMethodPlain = "plain"
	PKCEMethodS256  = "S256"
)

// AuthorizeOutcome says what kind of redirect an authorization request ended in.
type AuthorizeOutcome string

const (
	OutcomeCodeIssued    AuthorizeOutcome = "code_issued"
	OutcomeRedirectError AuthorizeOutcome = "redirect_error"
	OutcomeLogin         AuthorizeOutcome = "login"
	OutcomeStepUp        AuthorizeOutcome = "step_up"
)

// AuthorizeRequest carries the raw /authorize query parameters.
type AuthorizeRequest struct {
	ClientID            string
	ResponseType        string
	RedirectURI         string
	Scope               string
	State               string
	// StateSet is true when state was sent, even as an empty value.
	StateSet            bool
	CodeChallenge       string
	CodeChallengeMethod string
	Nonce               string
	StepUpProof         string

	// ReturnTo is the absolute URL of this request, used when the user agent
	// has to come back after login or step-up verification.
	ReturnTo string
}

// AuthorizeResult is a redirect for the user agent.
type AuthorizeResult struct {
	Outcome  AuthorizeOutcome
	Location string
}

// AuthorizationService runs the authorization endpoint (RFC 6749 §4.1.1).
type AuthorizationService struct {
	clients   core.ClientRegistry
	grants    core.GrantStore
	extractor *roles.Extractor
	config    *config.Config
	metrics   core.Recorder
	audit     core.AuditRecorder
}

func NewAuthorizationService(
	clients core.ClientRegistry,
	grants core.GrantStore,
	extractor *roles.Extractor,
	cfg *config.Config,
	m core.Recorder,
	audit core.AuditRecorder,
) *AuthorizationService {
	return &AuthorizationService{
		clients:   clients,
		grants:    grants,
		extractor: extractor,
		config:    cfg,
		metrics:   m,
		audit:     audit,
	}
}

// Authorize validates req and decides where to send the user agent. A
// returned error is an *OAuthError that must be rendered directly because
// the redirect URI could not be trusted.
func (s *AuthorizationService) Authorize(
	ctx context.Context,
	req AuthorizeRequest,
	id *models.Identity,
) (*AuthorizeResult, error) {
	if req.ClientID == "" || req.ResponseType == "" || req.RedirectURI == "" {
		return nil, s.reject(ctx, req, oauthError(ErrInvalidRequest,
			"client_id, response_type and redirect_uri are required"))
	}

	client, err := s.clients.Resolve(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, ErrClientNotFound) {
			return nil, s.reject(ctx, req, oauthError(ErrInvalidClient, "unknown client"))
		}
		log.Printf("[Authorize] Client lookup failed for %s: %v", req.ClientID, err)
		return nil, s.reject(ctx, req, serverError())
	}

	if req.ResponseType != models.ResponseTypeCode || !client.AllowsResponseType(req.ResponseType) {
		return nil, s.reject(ctx, req, oauthError(ErrUnsupportedResponseType,
			"response_type %q is not allowed for this client", req.ResponseType))
	}

	// Never redirect anywhere before this check passes.
	if !client.MatchRedirectURI(req.RedirectURI) {
		return nil, s.reject(ctx, req, oauthError(ErrInvalidRequest,
			"redirect_uri is not registered for this client"))
	}

	scopes := token.ParseScopes(req.Scope)
	if !client.AllowsScopes(scopes) {
		return s.redirectError(ctx, req, oauthError(ErrInvalidScope,
			"requested scope is not allowed for this client"))
	}

	method, oerr := s.checkPKCE(client, req)
	if oerr != nil {
		return s.redirectError(ctx, req, oerr)
	}

	if id.IsZero() {
		return s.loginRedirect(ctx, req)
	}

	granted := s.extractor.ExtractRoles(scopes)
	policy := roles.PolicyFor(granted)

	if policy.RequiresStepUp {
		if res, verified := s.checkStepUp(ctx, req, id, policy); !verified {
			return res, nil
		}
	}

	authTime := id.AuthTime
	if authTime.IsZero() {
		authTime = time.Now()
	}

	code, err := util.RandomToken(32)
	if err != nil {
		log.Printf("[Authorize] Failed to generate code: %v", err)
		return s.redirectError(ctx, req, serverError())
	}

	now := time.Now()
	rec := models.AuthorizationCode{
		ClientID:            client.ClientID,
		RedirectURI:         req.RedirectURI,
		Scopes:              token.JoinScopes(scopes),
		Subject:             id.Subject,
		Tenant:              resolveTenant(id.Tenant, client, s.config.DefaultTenant),
		Roles:               roles.Strings(granted),
		Nonce:               req.Nonce,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: method,
		AuthTime:            authTime,
		CreatedAt:           now,
		ExpiresAt:           now.Add(s.config.AuthCodeExpiration),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		log.Printf("[Authorize] Failed to encode code record: %v", err)
		return s.redirectError(ctx, req, serverError())
	}
	if err := s.grants.Put(ctx, grantstore.CodeKey(code), data, s.config.AuthCodeExpiration); err != nil {
		log.Printf("[Authorize] Failed to store code for client %s: %v", client.ClientID, err)
		return s.redirectError(ctx, req, serverError())
	}

	location, err := util.AppendQuery(req.RedirectURI, withState(url.Values{"code": {code}}, req))
	if err != nil {
		return s.redirectError(ctx, req, serverError())
	}

	s.metrics.RecordAuthorizationRequest(string(OutcomeCodeIssued))
	s.audit.Log(ctx, leveled(policy.AuditLevel, models.AuditEntry{
		EventType:     models.EventAuthorizationCodeGenerated,
		ActorSubject:  id.Subject,
		ActorClientID: client.ClientID,
		Tenant:        rec.Tenant,
		ResourceType:  models.ResourceAuthorizationCode,
		ResourceID:    util.SHA256Hex(code)[:16],
		ResourceName:  client.ClientName,
		Action:        "Authorization code issued",
		Details:       models.AuditDetails{"roles": rec.Roles},
		Success:       true,
	}, models.AuditDetails{
		"scope":        rec.Scopes,
		"redirect_uri": rec.RedirectURI,
		"pkce":         rec.HasPKCE(),
	}))

	return &AuthorizeResult{Outcome: OutcomeCodeIssued, Location: location}, nil
}

// checkPKCE validates the challenge parameters and returns the effective method.
func (s *AuthorizationService) checkPKCE(
	client *models.OAuthApplication,
	req AuthorizeRequest,
) (string, *OAuthError) {
	if req.CodeChallenge == "" {
		if req.CodeChallengeMethod != "" {
			return "", oauthError(ErrInvalidRequest, "code_challenge_method without code_challenge")
		}
		if client.IsPublic() {
			return "", oauthError(ErrInvalidRequest, "public clients must use PKCE")
		}
		return "", nil
	}

	method := req.CodeChallengeMethod
	if method == "" {
		method = PKCEMethodPlain
	}
	if method != PKCEMethodPlain && method != PKCEMethodS256 {
		return "", oauthError(ErrInvalidRequest, "unsupported code_challenge_method %q", method)
	}
	if n := len(req.CodeChallenge); n < 43 || n > 128 {
		return "", oauthError(ErrInvalidRequest, "code_challenge must be 43 to 128 characters")
	}
	return method, nil
}

// checkStepUp reports whether the request carries a valid step-up proof.
// When it does not, the result sends the user agent to the verification
// service.
func (s *AuthorizationService) checkStepUp(
	ctx context.Context,
	req AuthorizeRequest,
	id *models.Identity,
	policy roles.Policy,
) (*AuthorizeResult, bool) {
	required := policy.StepUpRequirements()

	if req.StepUpProof != "" {
		_, err := token.VerifyStepUpProof(req.StepUpProof, []byte(s.config.StepUpSecret), token.StepUpCheck{
			Subject:  id.Subject,
			ClientID: req.ClientID,
			Factors:  required,
			MaxAge:   s.config.StepUpProofMaxAge,
		})
		if err == nil {
			return nil, true
		}
		log.Printf("[Authorize] Rejected step-up proof for %s: %v", id.Subject, err)
	}

	if s.config.StepUpURL == "" {
		res, _ := s.redirectError(ctx, req, oauthError(ErrServerError,
			"step-up verification is not configured"))
		return res, false
	}

	params := url.Values{
		"client_id":    {req.ClientID},
		"redirect_uri": {req.RedirectURI},
		"requirements": {strings.Join(required, ",")},
		"return_to":    {stripParam(req.ReturnTo, "step_up_proof")},
	}
	location, err := util.AppendQuery(s.config.StepUpURL, withState(params, req))
	if err != nil {
		log.Printf("[Authorize] Invalid STEP_UP_URL: %v", err)
		res, _ := s.redirectError(ctx, req, serverError())
		return res, false
	}

	s.metrics.RecordStepUpRequired(string(policy.Role))
	s.audit.Log(ctx, leveled(policy.AuditLevel, models.AuditEntry{
		EventType:     models.EventStepUpRequired,
		Severity:      models.SeverityInfo,
		ActorSubject:  id.Subject,
		ActorClientID: req.ClientID,
		ResourceType:  models.ResourceClient,
		ResourceID:    req.ClientID,
		Action:        "Step-up verification required",
		Details: models.AuditDetails{
			"role":         string(policy.Role),
			"requirements": required,
			"proof_given":  req.StepUpProof != "",
		},
		Success: true,
	}, nil))

	return &AuthorizeResult{Outcome: OutcomeStepUp, Location: location}, false
}

func (s *AuthorizationService) loginRedirect(
	ctx context.Context,
	req AuthorizeRequest,
) (*AuthorizeResult, error) {
	if s.config.LoginURL == "" || req.ReturnTo == "" {
		return s.redirectError(ctx, req, oauthError(ErrLoginRequired, "no authenticated user"))
	}
	location, err := util.AppendQuery(s.config.LoginURL, url.Values{"return_to": {req.ReturnTo}})
	if err != nil {
		log.Printf("[Authorize] Invalid LOGIN_URL: %v", err)
		return s.redirectError(ctx, req, oauthError(ErrLoginRequired, "no authenticated user"))
	}
	s.metrics.RecordAuthorizationRequest(string(OutcomeLogin))
	return &AuthorizeResult{Outcome: OutcomeLogin, Location: location}, nil
}

// redirectError sends oerr back to the verified redirect URI.
func (s *AuthorizationService) redirectError(
	ctx context.Context,
	req AuthorizeRequest,
	oerr *OAuthError,
) (*AuthorizeResult, error) {
	params := url.Values{"error": {oerr.Code}}
	if oerr.Description != "" {
		params.Set("error_description", oerr.Description)
	}
	location, err := util.AppendQuery(req.RedirectURI, withState(params, req))
	if err != nil {
		return nil, s.reject(ctx, req, oauthError(ErrInvalidRequest, "malformed redirect_uri"))
	}

	s.metrics.RecordAuthorizationRequest(string(OutcomeRedirectError))
	s.auditDenied(ctx, req, oerr)
	return &AuthorizeResult{Outcome: OutcomeRedirectError, Location: location}, nil
}

// reject records a failure that is answered directly rather than redirected.
func (s *AuthorizationService) reject(
	ctx context.Context,
	req AuthorizeRequest,
	oerr *OAuthError,
) *OAuthError {
	s.metrics.RecordAuthorizationRequest("rejected")
	s.auditDenied(ctx, req, oerr)
	return oerr
}

func (s *AuthorizationService) auditDenied(ctx context.Context, req AuthorizeRequest, oerr *OAuthError) {
	s.audit.Log(ctx, models.AuditEntry{
		EventType:     models.EventAuthorizationDenied,
		Severity:      models.SeverityWarning,
		ActorSubject:  util.GetSubjectFromContext(ctx),
		ActorClientID: req.ClientID,
		ResourceType:  models.ResourceClient,
		ResourceID:    req.ClientID,
		Action:        "Authorization request denied",
		Details: models.AuditDetails{
			"error":        oerr.Code,
			"redirect_uri": req.RedirectURI,
			"scope":        req.Scope,
		},
		Success:      false,
		ErrorMessage: oerr.Error(),
	})
}

// withState echoes the request's state into params, including an empty
// one that was sent. An absent state stays absent.
func withState(params url.Values, req AuthorizeRequest) url.Values {
	if req.StateSet || req.State != "" {
		params.Set("state", req.State)
	}
	return params
}

// stripParam removes a query parameter from rawURL, returning rawURL
// unchanged when it cannot be parsed.
func stripParam(rawURL, name string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	if !q.Has(name) {
		return rawURL
	}
	q.Del(name)
	u.RawQuery = q.Encode()
	return u.String()
}
