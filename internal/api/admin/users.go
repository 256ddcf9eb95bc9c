// users.go implements handlers for admin account management: CRUD, temporary
// password resets, and the per-user page allow-list. Temporary passwords appear
// exactly once in the create/reset responses so an admin can relay them
// out-of-band; they are never stored or logged in plaintext.
package admin

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/portal-boost/portal/internal/db/models"
	"github.com/portal-boost/portal/internal/db/repositories"
	"github.com/portal-boost/portal/internal/middleware"
	"github.com/portal-boost/portal/internal/session"
)

// UserHandlers handles admin user management endpoints
type UserHandlers struct {
	sessions     *session.Service
	userRepo     *repositories.UserRepository
	entitlements *repositories.EntitlementRepository
}

// NewUserHandlers creates a new UserHandlers instance
func NewUserHandlers(sessions *session.Service, userRepo *repositories.UserRepository, entitlements *repositories.EntitlementRepository) *UserHandlers {
	return &UserHandlers{
		sessions:     sessions,
		userRepo:     userRepo,
		entitlements: entitlements,
	}
}

// ListUsersHandler lists all user accounts with pagination
// GET /api/admin/users?page=1&per_page=20
func (h *UserHandlers) ListUsersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Parse pagination parameters
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

		if page < 1 {
			page = 1
		}
		if perPage < 1 || perPage > 100 {
			perPage = 20
		}

		offset := (page - 1) * perPage

		users, total, err := h.userRepo.ListUsers(c.Request.Context(), perPage, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to list users",
			})
			return
		}

		views := make([]models.UserView, 0, len(users))
		for _, u := range users {
			views = append(views, u.ToView())
		}

		c.JSON(http.StatusOK, gin.H{
			"users": views,
			"pagination": gin.H{
				"page":     page,
				"per_page": perPage,
				"total":    total,
			},
		})
	}
}

// GetUserHandler retrieves a single user account
// GET /api/admin/users/:id
func (h *UserHandlers) GetUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid user ID",
			})
			return
		}

		user, err := h.userRepo.GetUserByID(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to retrieve user",
			})
			return
		}
		if user == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "User not found",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"user": user.ToView(),
		})
	}
}

// CreateUserHandler creates an account with a generated temporary password.
// The temporary password is included in the response, once.
// POST /api/admin/users
func (h *UserHandlers) CreateUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.CreateUserInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "A valid email and full name are required",
			})
			return
		}

		user, tempPassword, err := h.sessions.CreateUser(c.Request.Context(), &input)
		if err != nil {
			if errors.Is(err, session.ErrEmailTaken) {
				c.JSON(http.StatusConflict, gin.H{
					"error": "A user with that email already exists",
				})
				return
			}
			slog.Error("failed to create user", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to create user",
			})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"user":          user.ToView(),
			"temp_password": tempPassword,
		})
	}
}

// UpdateUserHandler updates profile fields, role, and active status. Setting
// is_active to false also revokes the user's sessions.
// PATCH /api/admin/users/:id
func (h *UserHandlers) UpdateUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid user ID",
			})
			return
		}

		var input models.UpdateUserInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid update payload",
			})
			return
		}

		user, err := h.userRepo.GetUserByID(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to retrieve user",
			})
			return
		}
		if user == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "User not found",
			})
			return
		}

		if input.Email != nil && *input.Email != user.Email {
			existing, err := h.userRepo.GetUserByEmail(c.Request.Context(), *input.Email)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{
					"error": "Failed to check email",
				})
				return
			}
			if existing != nil && existing.ID != userID {
				c.JSON(http.StatusConflict, gin.H{
					"error": "A user with that email already exists",
				})
				return
			}
			user.Email = *input.Email
		}
		if input.FullName != nil {
			user.FullName = *input.FullName
		}
		if input.Role != nil {
			user.Role = *input.Role
		}

		deactivating := input.IsActive != nil && !*input.IsActive && user.IsActive
		if input.IsActive != nil {
			user.IsActive = *input.IsActive
		}

		if err := h.userRepo.UpdateUser(c.Request.Context(), user); err != nil {
			slog.Error("failed to update user", "user_id", userID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to update user",
			})
			return
		}

		if deactivating {
			if err := h.sessions.DeactivateUser(c.Request.Context(), userID); err != nil {
				slog.Error("failed to revoke sessions on deactivation", "user_id", userID, "error", err)
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"user": user.ToView(),
		})
	}
}

// DeleteUserHandler removes an account. Admins cannot delete themselves.
// DELETE /api/admin/users/:id
func (h *UserHandlers) DeleteUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid user ID",
			})
			return
		}

		if callerID, ok := middleware.CurrentUserID(c); ok && callerID == userID {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Cannot delete your own account",
			})
			return
		}

		user, err := h.userRepo.GetUserByID(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to retrieve user",
			})
			return
		}
		if user == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "User not found",
			})
			return
		}

		if err := h.userRepo.DeleteUser(c.Request.Context(), userID); err != nil {
			slog.Error("failed to delete user", "user_id", userID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to delete user",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "User deleted",
		})
	}
}

// ResetPasswordHandler issues a fresh temporary password for an account and
// revokes its sessions. The temporary password is included in the response,
// once.
// POST /api/admin/users/:id/reset-password
func (h *UserHandlers) ResetPasswordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid user ID",
			})
			return
		}

		tempPassword, err := h.sessions.ResetUserPassword(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, session.ErrUserNotFound) {
				c.JSON(http.StatusNotFound, gin.H{
					"error": "User not found",
				})
				return
			}
			slog.Error("failed to reset user password", "user_id", userID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to reset password",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"temp_password": tempPassword,
		})
	}
}

// ListUserPagesHandler lists a user's page allow-list entries
// GET /api/admin/users/:id/pages
func (h *UserHandlers) ListUserPagesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid user ID",
			})
			return
		}

		assignments, err := h.entitlements.ListForUser(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to list page access",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"assignments": assignments,
		})
	}
}

type replacePagesRequest struct {
	Assignments []models.PageAssignment `json:"assignments"`
}

// ReplaceUserPagesHandler replaces a user's page allow-list in one shot. An
// empty assignment list clears all access.
// POST /api/admin/users/:id/assign-pages
func (h *UserHandlers) ReplaceUserPagesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid user ID",
			})
			return
		}

		var req replacePagesRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid assignment payload",
			})
			return
		}

		user, err := h.userRepo.GetUserByID(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to retrieve user",
			})
			return
		}
		if user == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "User not found",
			})
			return
		}

		if err := h.entitlements.ReplaceForUser(c.Request.Context(), userID, req.Assignments); err != nil {
			slog.Error("failed to replace page access", "user_id", userID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to update page access",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "Page access updated",
		})
	}
}
