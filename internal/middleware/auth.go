// Package middleware provides Gin HTTP middleware for session authentication,
// role checks, rate limiting, security headers, and audit logging.
//
// Middleware ordering matters and is enforced in router.go:
//
//	Security → RateLimit → Auth → Role/Access → Audit → Handler
//
// Security headers run first so they appear on all responses including errors.
// Rate limiting runs before auth to block brute-force traffic before any DB
// work. Auth resolves the session cookie to a user; the role and page-access
// guards read from that context. Audit logging runs last so only authorized
// admin mutations are recorded.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/portal-boost/portal/internal/db/models"
	"github.com/portal-boost/portal/internal/session"
)

const (
	// UserContextKey is the gin.Context key holding the authenticated *models.User.
	UserContextKey = "user"
	// UserIDContextKey is the gin.Context key holding the authenticated user's uuid.UUID.
	UserIDContextKey = "user_id"
	// SessionTokenContextKey is the gin.Context key holding the raw session token,
	// needed by the logout handler to delete the right row.
	SessionTokenContextKey = "session_token"
)

// SessionAuthMiddleware authenticates requests by the signed session cookie.
// The cookie carries only an opaque token; the session service resolves it to
// a user on every request, so deactivation and expiry take effect immediately.
// Every failure mode is a uniform 401: a missing cookie, a forged signature,
// an unknown token, and an expired session are indistinguishable to clients.
func SessionAuthMiddleware(cookie *SessionCookie, sessions *session.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := cookie.Read(c)
		if err != nil || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
			})
			return
		}

		sw, err := sessions.Validate(c.Request.Context(), token)
		if err != nil {
			// Clear the cookie on any validation failure so clients do not
			// keep replaying a dead token.
			cookie.Clear(c)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
			})
			return
		}

		c.Set(UserContextKey, &sw.User)
		c.Set(UserIDContextKey, sw.User.ID)
		c.Set(SessionTokenContextKey, token)

		c.Next()
	}
}

// CurrentUser returns the authenticated user from the context. The second
// return is false on routes that are not behind SessionAuthMiddleware.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, exists := c.Get(UserContextKey)
	if !exists {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}

// CurrentUserID returns the authenticated user's ID from the context.
func CurrentUserID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get(UserIDContextKey)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
