// audit.go provides Gin middleware that writes a structured log line for
// every admin mutation: who did what, from where, and with what result.
// Request bodies are never logged — admin endpoints carry passwords and
// client secrets.
package middleware

import (
	"log/slog"

	"github.com/gin-gonic/gin"
)

// AuditMiddleware records admin write operations. Attach it to the admin
// route group after SessionAuthMiddleware and RequireAdmin so the actor is
// always known and already authorized.
func AuditMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		method := c.Request.Method
		if method == "GET" || method == "OPTIONS" || method == "HEAD" {
			return
		}

		attrs := []any{
			"method", method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"ip", c.ClientIP(),
		}
		if id, ok := CurrentUserID(c); ok {
			attrs = append(attrs, "actor_id", id.String())
		}
		if reqID, exists := c.Get(RequestIDKey); exists {
			attrs = append(attrs, "request_id", reqID)
		}

		slog.Info("admin action", attrs...)
	}
}
