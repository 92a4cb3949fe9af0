package middleware

import (
	"strings"
	"time"

	"github.com/go-authgate/sallyport/internal/models"
	"github.com/go-authgate/sallyport/internal/util"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// Session keys written by the login service that shares the session secret.
const (
	SessionUserID   = "user_id"
	SessionTenantID = "tenant_id"
	SessionAuthTime = "auth_time"
)

const identityContextKey = "identity"

// IdentityResolver finds the end user behind a browser request. It returns
// nil when nobody is signed in.
type IdentityResolver interface {
	Resolve(c *gin.Context) *models.Identity
}

// SessionIdentityResolver reads the identity from the cookie session.
type SessionIdentityResolver struct{}

func NewSessionIdentityResolver() *SessionIdentityResolver {
	return &SessionIdentityResolver{}
}

func (r *SessionIdentityResolver) Resolve(c *gin.Context) *models.Identity {
	session := sessions.Default(c)
	userID, _ := session.Get(SessionUserID).(string)
	if userID == "" {
		return nil
	}

	id := &models.Identity{Subject: userID}
	id.Tenant, _ = session.Get(SessionTenantID).(string)

	// Unix seconds; gob keeps the integer type it was written with
	switch v := session.Get(SessionAuthTime).(type) {
	case int64:
		id.AuthTime = time.Unix(v, 0)
	case int:
		id.AuthTime = time.Unix(int64(v), 0)
	case float64:
		id.AuthTime = time.Unix(int64(v), 0)
	}
	return id
}

// HeaderIdentityResolver trusts headers set by an authenticating reverse
// proxy. Only use it when the proxy strips these headers from client input.
type HeaderIdentityResolver struct {
	SubjectHeader string
	TenantHeader  string
}

func NewHeaderIdentityResolver(subjectHeader, tenantHeader string) *HeaderIdentityResolver {
	return &HeaderIdentityResolver{SubjectHeader: subjectHeader, TenantHeader: tenantHeader}
}

func (r *HeaderIdentityResolver) Resolve(c *gin.Context) *models.Identity {
	subject := strings.TrimSpace(c.GetHeader(r.SubjectHeader))
	if subject == "" {
		return nil
	}
	id := &models.Identity{Subject: subject}
	if r.TenantHeader != "" {
		id.Tenant = strings.TrimSpace(c.GetHeader(r.TenantHeader))
	}
	return id
}

// LoadIdentity resolves the user once per request, stores it on the gin
// context and puts the subject on the request context for audit logging.
func LoadIdentity(resolver IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := resolver.Resolve(c)
		if !id.IsZero() {
			c.Set(identityContextKey, id)
			c.Request = c.Request.WithContext(util.SetSubjectContext(c.Request.Context(), id.Subject))
		}
		c.Next()
	}
}

// GetIdentity returns the identity stored by LoadIdentity, or nil.
func GetIdentity(c *gin.Context) *models.Identity {
	v, ok := c.Get(identityContextKey)
	if !ok {
		return nil
	}
	id, _ := v.(*models.Identity)
	return id
}
