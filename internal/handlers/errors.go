package handlers

import (
	"net/http"

	"github.com/go-authgate/sallyport/internal/services"

	"github.com/gin-gonic/gin"
)

const basicRealm = `Basic realm="sallyport"`

// noStore marks a response as uncacheable (RFC 6749 §5.1).
func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
}

// respondOAuthError renders err as {error, error_description} with the
// status its code maps to.
func respondOAuthError(c *gin.Context, err error) {
	oerr := services.ToOAuthError(err)
	status := oerr.StatusCode()
	if status == http.StatusUnauthorized {
		// RFC 6749 §5.2
		c.Header("WWW-Authenticate", basicRealm)
	}
	noStore(c)

	body := gin.H{"error": oerr.Code}
	if oerr.Description != "" {
		body["error_description"] = oerr.Description
	}
	c.JSON(status, body)
}
