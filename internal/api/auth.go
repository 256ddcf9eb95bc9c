// auth.go implements HTTP handlers for password login, logout, the current-user
// probe, voluntary password changes, and the password-reset flow.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/portal-boost/portal/internal/middleware"
	"github.com/portal-boost/portal/internal/session"
)

// AuthHandlers handles authentication-related endpoints
type AuthHandlers struct {
	sessions *session.Service
	cookie   *middleware.SessionCookie
	guard    *middleware.LoginGuard
}

// NewAuthHandlers creates a new AuthHandlers instance
func NewAuthHandlers(sessions *session.Service, cookie *middleware.SessionCookie, guard *middleware.LoginGuard) *AuthHandlers {
	return &AuthHandlers{
		sessions: sessions,
		cookie:   cookie,
		guard:    guard,
	}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
}

type requestResetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type confirmResetRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

// LoginHandler verifies an email/password pair and sets the session cookie
// POST /api/auth/login
func (h *AuthHandlers) LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Email and password are required",
			})
			return
		}

		// Lockout check runs before any password verification work
		if h.guard.Blocked(req.Email) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many failed login attempts. Try again later.",
			})
			return
		}

		user, token, err := h.sessions.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			if errors.Is(err, session.ErrInvalidCredentials) {
				h.guard.RecordFailure(req.Email)
				c.JSON(http.StatusUnauthorized, gin.H{
					"error": "Invalid email or password",
				})
				return
			}
			slog.Error("login failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Login failed",
			})
			return
		}
		h.guard.Clear(req.Email)

		if err := h.cookie.Set(c, token); err != nil {
			slog.Error("failed to set session cookie", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Login failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"user":                 user.ToView(),
			"must_change_password": user.MustChangePassword,
		})
	}
}

// LogoutHandler deletes the current session and clears the cookie
// POST /api/auth/logout
func (h *AuthHandlers) LogoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Get(middleware.SessionTokenContextKey)
		if tok, ok := token.(string); ok {
			if err := h.sessions.Logout(c.Request.Context(), tok); err != nil {
				slog.Error("failed to delete session", "error", err)
			}
		}
		h.cookie.Clear(c)

		c.JSON(http.StatusOK, gin.H{
			"message": "Logged out",
		})
	}
}

// CurrentUserHandler returns the authenticated user's profile
// GET /api/auth/user
func (h *AuthHandlers) CurrentUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := middleware.CurrentUser(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"user": user.ToView(),
		})
	}
}

// ChangePasswordHandler verifies the current password and stores a new one
// PATCH /api/auth/change-password
func (h *AuthHandlers) ChangePasswordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req changePasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Current password and a new password of at least 8 characters are required",
			})
			return
		}

		userID, ok := middleware.CurrentUserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
			})
			return
		}

		err := h.sessions.ChangePassword(c.Request.Context(), userID, req.CurrentPassword, req.NewPassword)
		if err != nil {
			if errors.Is(err, session.ErrInvalidCredentials) {
				c.JSON(http.StatusBadRequest, gin.H{
					"error": "Current password is incorrect",
				})
				return
			}
			slog.Error("password change failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to change password",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "Password changed",
		})
	}
}

// RequestResetHandler issues a password-reset token and emails the reset link.
// The response is identical whether or not the address maps to an account.
// POST /api/auth/reset-password
func (h *AuthHandlers) RequestResetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req requestResetRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "A valid email address is required",
			})
			return
		}

		if err := h.sessions.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
			slog.Error("password reset request failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to process reset request",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "If that account exists, a reset link has been sent",
		})
	}
}

// ConfirmResetHandler redeems a reset token and stores the new password
// POST /api/auth/reset-password-confirm
func (h *AuthHandlers) ConfirmResetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req confirmResetRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "A reset token and a new password of at least 8 characters are required",
			})
			return
		}

		err := h.sessions.ConfirmPasswordReset(c.Request.Context(), req.Token, req.NewPassword)
		if err != nil {
			if errors.Is(err, session.ErrResetTokenInvalid) {
				c.JSON(http.StatusBadRequest, gin.H{
					"error": "Reset link is invalid or has expired",
				})
				return
			}
			slog.Error("password reset failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to reset password",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "Password reset",
		})
	}
}
