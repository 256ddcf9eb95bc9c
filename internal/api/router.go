// Package api wires together all HTTP routes for the portal backend.
//
// Route grouping philosophy:
//   - /api/auth/ carries the unauthenticated credential endpoints (login,
//     reset-token request and redemption). These sit behind the per-IP rate
//     limiter and the per-account login guard instead of session auth.
//   - /api/ routes require a valid session cookie. Page and embed routes
//     additionally consult the per-user page allow-list.
//   - /api/admin/ routes require the admin role on top of session auth, and
//     every mutating admin request is audit-logged.
package api

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/portal-boost/portal/internal/api/admin"
	"github.com/portal-boost/portal/internal/config"
	"github.com/portal-boost/portal/internal/crypto"
	"github.com/portal-boost/portal/internal/db/repositories"
	"github.com/portal-boost/portal/internal/jobs"
	"github.com/portal-boost/portal/internal/mailer"
	"github.com/portal-boost/portal/internal/middleware"
	"github.com/portal-boost/portal/internal/powerbi"
	"github.com/portal-boost/portal/internal/session"
)

// BackgroundServices holds references to background jobs and resources that must
// be stopped during graceful shutdown. The caller (cmd/server) is responsible for
// calling Shutdown() when the process receives a termination signal.
type BackgroundServices struct {
	sessionSweeper *jobs.SessionSweeper
	loginGuard     *middleware.LoginGuard
	rateLimiters   []*middleware.RateLimiter
}

// Shutdown stops all background goroutines. It should be called after the HTTP
// server has been shut down so that in-flight requests are drained first.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.sessionSweeper != nil {
		bg.sessionSweeper.Stop()
	}
	if bg.loginGuard != nil {
		bg.loginGuard.Stop()
	}
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, db *sql.DB) (*gin.Engine, *BackgroundServices) {
	router := gin.New()

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	sessionRepo := repositories.NewSessionRepository(db)
	pageRepo := repositories.NewPageRepository(db)

	// Wrap *sql.DB with sqlx for the entitlement and credential repositories
	sqlxDB := sqlx.NewDb(db, "postgres")
	entitlementRepo := repositories.NewEntitlementRepository(sqlxDB)
	azureRepo := repositories.NewAzureSettingsRepository(sqlxDB)

	// Initialize the credential cipher for the stored Power BI client secret
	key, err := base64.StdEncoding.DecodeString(cfg.Auth.EncryptionKey)
	if err != nil || len(key) != 32 {
		log.Fatal("auth.encryption_key must be a base64-encoded 32-byte key")
	}
	secretCipher := crypto.NewSecretCipher(crypto.StaticKey(key))

	// Outbound account email (no-op unless notifications are configured)
	mail := mailer.New(&cfg.Notifications)

	sessionService := session.NewService(userRepo, sessionRepo, mail, &cfg.Auth, cfg.Server.GetPublicURL())
	broker := powerbi.NewBroker(azureRepo, secretCipher, &cfg.PowerBI)
	sessionCookie := middleware.NewSessionCookie(&cfg.Auth)

	// Start the expired-session sweeper
	sessionSweeper := jobs.NewSessionSweeper(sessionRepo, cfg.Auth.SessionSweepInterval)
	go sessionSweeper.Start(context.Background())

	background := &BackgroundServices{sessionSweeper: sessionSweeper}

	// Per-account failed-login guard, consulted before any bcrypt work
	guardCfg := middleware.DefaultLoginGuardConfig()
	if cfg.Security.LoginAttempts.Enabled {
		guardCfg.MaxAttempts = cfg.Security.LoginAttempts.MaxAttempts
		guardCfg.Window = cfg.Security.LoginAttempts.Window
	}
	loginGuard := middleware.NewLoginGuard(guardCfg)
	background.loginGuard = loginGuard

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware(cfg))
	router.Use(CORSMiddleware(cfg))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig()))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db))

	// Readiness check endpoint
	router.GET("/ready", readinessHandler(db))

	// API version
	router.GET("/version", versionHandler())

	// Per-client-IP rate limiting on the credential endpoints
	var rateLimit gin.HandlerFunc
	if cfg.Security.RateLimiting.Enabled {
		limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
			MaxRequests:     cfg.Security.RateLimiting.MaxRequests,
			Window:          cfg.Security.RateLimiting.Window,
			CleanupInterval: 5 * time.Minute,
		})
		background.rateLimiters = append(background.rateLimiters, limiter)
		rateLimit = middleware.RateLimitMiddleware(limiter)
	} else {
		rateLimit = func(c *gin.Context) { c.Next() }
	}

	authHandlers := NewAuthHandlers(sessionService, sessionCookie, loginGuard)
	pageHandlers := NewPageHandlers(pageRepo, entitlementRepo, broker)

	// Unauthenticated credential endpoints
	authGroup := router.Group("/api/auth")
	authGroup.Use(rateLimit)
	{
		authGroup.POST("/login", authHandlers.LoginHandler())
		authGroup.POST("/reset-password", authHandlers.RequestResetHandler())
		authGroup.POST("/reset-password-confirm", authHandlers.ConfirmResetHandler())
	}

	// Session-authenticated endpoints
	sessionAuth := middleware.SessionAuthMiddleware(sessionCookie, sessionService)

	apiGroup := router.Group("/api")
	apiGroup.Use(sessionAuth)
	{
		apiGroup.POST("/auth/logout", authHandlers.LogoutHandler())
		apiGroup.GET("/auth/user", authHandlers.CurrentUserHandler())
		apiGroup.PATCH("/auth/change-password", authHandlers.ChangePasswordHandler())

		apiGroup.GET("/user/dashboards", pageHandlers.ListDashboardsHandler())
		apiGroup.GET("/pages/slug/:slug", pageHandlers.GetPageBySlugHandler())
		apiGroup.POST("/powerbi/embed", pageHandlers.EmbedDetailsHandler())
	}

	// Admin endpoints
	adminUserHandlers := admin.NewUserHandlers(sessionService, userRepo, entitlementRepo)
	adminPageHandlers := admin.NewPageHandlers(pageRepo, entitlementRepo)
	adminAzureHandlers := admin.NewAzureHandlers(azureRepo, secretCipher, broker)

	adminGroup := router.Group("/api/admin")
	adminGroup.Use(sessionAuth)
	adminGroup.Use(middleware.RequireAdmin())
	adminGroup.Use(middleware.AuditMiddleware())
	{
		adminGroup.GET("/users", adminUserHandlers.ListUsersHandler())
		adminGroup.POST("/users", adminUserHandlers.CreateUserHandler())
		adminGroup.GET("/users/:id", adminUserHandlers.GetUserHandler())
		adminGroup.PATCH("/users/:id", adminUserHandlers.UpdateUserHandler())
		adminGroup.DELETE("/users/:id", adminUserHandlers.DeleteUserHandler())
		adminGroup.POST("/users/:id/reset-password", adminUserHandlers.ResetPasswordHandler())
		adminGroup.GET("/users/:id/pages", adminUserHandlers.ListUserPagesHandler())
		adminGroup.POST("/users/:id/assign-pages", adminUserHandlers.ReplaceUserPagesHandler())

		adminGroup.GET("/pages", adminPageHandlers.ListPagesHandler())
		adminGroup.POST("/pages", adminPageHandlers.CreatePageHandler())
		adminGroup.GET("/pages/:id", adminPageHandlers.GetPageHandler())
		adminGroup.PATCH("/pages/:id", adminPageHandlers.UpdatePageHandler())
		adminGroup.DELETE("/pages/:id", adminPageHandlers.DeletePageHandler())

		adminGroup.GET("/azure", adminAzureHandlers.GetSettingsHandler())
		adminGroup.POST("/azure", adminAzureHandlers.StoreSettingsHandler())
		adminGroup.PATCH("/azure", adminAzureHandlers.UpdateSettingsHandler())
		adminGroup.DELETE("/azure", adminAzureHandlers.DeleteSettingsHandler())
		adminGroup.POST("/azure/verify", adminAzureHandlers.VerifySettingsHandler())
	}

	return router, background
}

// healthCheckHandler returns the health status of the service
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check database connection
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// readinessHandler returns the readiness status of the service.
// Unlike the liveness probe (/health), this runs the ping with the request
// context so a Kubernetes readiness gate fails promptly when the database
// stalls.
func readinessHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}

		if err := db.PingContext(c.Request.Context()); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// versionHandler returns the API version
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     "0.1.0",
			"api_version": "v1",
		})
	}
}

// LoggerMiddleware provides structured logging
func LoggerMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		// Log the request
		if cfg.Logging.Format == "json" {
			logJSON(c, latency, path, query)
		} else {
			logText(c, latency, path, query)
		}
	}
}

// logJSON logs a request as a JSON-structured slog record.
func logJSON(c *gin.Context, latency time.Duration, path, query string) {
	requestID, _ := c.Get(middleware.RequestIDKey)
	slog.LogAttrs(
		c.Request.Context(),
		slog.LevelInfo,
		"http request",
		slog.String("method", c.Request.Method),
		slog.String("path", path),
		slog.String("query", query),
		slog.Int("status", c.Writer.Status()),
		slog.Int("size", c.Writer.Size()),
		slog.Duration("latency", latency),
		slog.String("ip", c.ClientIP()),
		slog.String("request_id", fmt.Sprintf("%v", requestID)),
		slog.String("user_agent", c.Request.UserAgent()),
	)
}

// logText logs a request as a human-readable slog text record.
func logText(c *gin.Context, latency time.Duration, path, query string) {
	// reuse the same structured output; slog will emit text format when the global
	// handler is a TextHandler (configured in telemetry.SetupLogger).
	logJSON(c, latency, path, query)
}

// CORSMiddleware handles CORS
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// Check if origin is allowed
		allowed := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
			}
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
