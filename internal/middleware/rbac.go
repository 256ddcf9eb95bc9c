// rbac.go implements the portal's two authorization layers: the admin role
// gate for management endpoints and the per-user page entitlement check.
//
// Entitlements are read from the database at request time rather than being
// cached in the session. This is a deliberate design choice: when an admin
// changes a user's page assignments, the change takes effect on the user's
// next request without needing to invalidate their session.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/portal-boost/portal/internal/db/repositories"
)

// RequireAdmin rejects non-admin users with 403. Must run after
// SessionAuthMiddleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
			})
			return
		}
		if !user.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Admin access required",
			})
			return
		}
		c.Next()
	}
}

// PageAccessChecker reports whether a user may view a page. Admins see every
// page; regular users need an enabled entitlement row.
type PageAccessChecker struct {
	entitlements *repositories.EntitlementRepository
}

// NewPageAccessChecker creates a PageAccessChecker.
func NewPageAccessChecker(entitlements *repositories.EntitlementRepository) *PageAccessChecker {
	return &PageAccessChecker{entitlements: entitlements}
}

// Allowed checks access for the authenticated user in c against pageID.
func (p *PageAccessChecker) Allowed(c *gin.Context, pageID uuid.UUID) (bool, error) {
	user, ok := CurrentUser(c)
	if !ok {
		return false, nil
	}
	if user.IsAdmin() {
		return true, nil
	}
	return p.entitlements.HasAccess(c.Request.Context(), user.ID, pageID)
}
