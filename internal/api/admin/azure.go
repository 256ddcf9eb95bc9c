// azure.go implements handlers for the Power BI service-principal credential
// singleton. The client secret is encrypted before it reaches the database and
// is never included in any response; the GET endpoint only reports that a
// secret is stored.
package admin

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/portal-boost/portal/internal/crypto"
	"github.com/portal-boost/portal/internal/db/models"
	"github.com/portal-boost/portal/internal/db/repositories"
	"github.com/portal-boost/portal/internal/middleware"
	"github.com/portal-boost/portal/internal/powerbi"
)

// AzureHandlers handles Power BI credential management endpoints
type AzureHandlers struct {
	azureRepo *repositories.AzureSettingsRepository
	cipher    *crypto.SecretCipher
	broker    *powerbi.Broker
}

// NewAzureHandlers creates a new AzureHandlers instance
func NewAzureHandlers(azureRepo *repositories.AzureSettingsRepository, cipher *crypto.SecretCipher, broker *powerbi.Broker) *AzureHandlers {
	return &AzureHandlers{
		azureRepo: azureRepo,
		cipher:    cipher,
		broker:    broker,
	}
}

// GetSettingsHandler reports the stored credential set, secret masked
// GET /api/admin/azure
func (h *AzureHandlers) GetSettingsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		settings, err := h.azureRepo.Get(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to retrieve settings",
			})
			return
		}
		if settings == nil {
			c.JSON(http.StatusOK, gin.H{
				"configured": false,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"configured": true,
			"settings":   settings.ToResponse(),
		})
	}
}

// StoreSettingsHandler stores (replaces) the credential singleton. The
// incoming client secret is encrypted before the row is written.
// POST /api/admin/azure
func (h *AzureHandlers) StoreSettingsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.AzureSettingsInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Tenant ID, client ID, and client secret are required",
			})
			return
		}

		sealed, err := h.cipher.Seal(input.ClientSecret)
		if err != nil {
			slog.Error("failed to encrypt client secret", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to store settings",
			})
			return
		}

		settings := &models.AzureSettings{
			TenantID:           input.TenantID,
			ClientID:           input.ClientID,
			ClientSecretCipher: sealed,
		}
		if callerID, ok := middleware.CurrentUserID(c); ok {
			settings.CreatedBy.UUID = callerID
			settings.CreatedBy.Valid = true
		}

		if err := h.azureRepo.Replace(c.Request.Context(), settings); err != nil {
			slog.Error("failed to store azure settings", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to store settings",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"settings": settings.ToResponse(),
		})
	}
}

type azureSettingsPatch struct {
	TenantID     *string `json:"tenant_id"`
	ClientID     *string `json:"client_id"`
	ClientSecret *string `json:"client_secret"`
}

// UpdateSettingsHandler partially updates the stored credential set. Omitted
// fields keep their current values; the secret is re-encrypted only when a new
// one is supplied.
// PATCH /api/admin/azure
func (h *AzureHandlers) UpdateSettingsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input azureSettingsPatch
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request body",
			})
			return
		}

		settings, err := h.azureRepo.Get(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to retrieve settings",
			})
			return
		}
		if settings == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "No credentials are configured",
			})
			return
		}

		if input.TenantID != nil {
			settings.TenantID = *input.TenantID
		}
		if input.ClientID != nil {
			settings.ClientID = *input.ClientID
		}
		if input.ClientSecret != nil {
			sealed, err := h.cipher.Seal(*input.ClientSecret)
			if err != nil {
				slog.Error("failed to encrypt client secret", "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{
					"error": "Failed to update settings",
				})
				return
			}
			settings.ClientSecretCipher = sealed
		}
		if callerID, ok := middleware.CurrentUserID(c); ok {
			settings.CreatedBy.UUID = callerID
			settings.CreatedBy.Valid = true
		}

		if err := h.azureRepo.Replace(c.Request.Context(), settings); err != nil {
			slog.Error("failed to update azure settings", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to update settings",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"settings": settings.ToResponse(),
		})
	}
}

// DeleteSettingsHandler removes the stored credential set
// DELETE /api/admin/azure
func (h *AzureHandlers) DeleteSettingsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.azureRepo.Delete(c.Request.Context()); err != nil {
			slog.Error("failed to delete azure settings", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to delete settings",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "Settings deleted",
		})
	}
}

// VerifySettingsHandler checks a credential set against Azure AD. A request
// body verifies the supplied credentials before they are saved; an empty body
// verifies the stored (or bootstrap) set.
// POST /api/admin/azure/verify
func (h *AzureHandlers) VerifySettingsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var creds *powerbi.Credentials

		var input models.AzureSettingsInput
		if err := c.ShouldBindJSON(&input); err == nil {
			creds = &powerbi.Credentials{
				TenantID:     input.TenantID,
				ClientID:     input.ClientID,
				ClientSecret: input.ClientSecret,
			}
		} else {
			loaded, err := h.broker.LoadCredentials(c.Request.Context())
			if err != nil {
				if errors.Is(err, powerbi.ErrNotConfigured) {
					c.JSON(http.StatusBadRequest, gin.H{
						"error": "No credentials to verify",
					})
					return
				}
				slog.Error("failed to load credentials", "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{
					"error": "Failed to load credentials",
				})
				return
			}
			creds = loaded
		}

		if err := h.broker.VerifyCredentials(c.Request.Context(), creds); err != nil {
			var upstream *powerbi.UpstreamError
			if errors.As(err, &upstream) {
				c.JSON(http.StatusOK, gin.H{
					"valid": false,
					"error": "Credential verification failed",
				})
				return
			}
			slog.Error("credential verification failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to verify credentials",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"valid": true,
		})
	}
}
