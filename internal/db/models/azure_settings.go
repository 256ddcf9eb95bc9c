// Package models - azure_settings.go defines the singleton Power BI
// service-principal credential record. The client secret is stored only as an
// AES-GCM blob and is never included in any API response.
package models

import (
	"time"

	"github.com/google/uuid"
)

// AzureSettings represents the azure_settings singleton row
type AzureSettings struct {
	ID                 uuid.UUID     `db:"id"`
	TenantID           string        `db:"tenant_id"`
	ClientID           string        `db:"client_id"`
	ClientSecretCipher string        `db:"client_secret_cipher"`
	CreatedBy          uuid.NullUUID `db:"created_by"`
	UpdatedAt          time.Time     `db:"updated_at"`
}

// AzureSettingsInput is the admin payload for storing credentials. The secret
// arrives in plaintext over TLS and is encrypted before it touches the database.
type AzureSettingsInput struct {
	TenantID     string `json:"tenant_id" binding:"required"`
	ClientID     string `json:"client_id" binding:"required"`
	ClientSecret string `json:"client_secret" binding:"required"`
}

// AzureSettingsResponse is the API response; it indicates that a secret is
// stored without ever echoing it.
type AzureSettingsResponse struct {
	ID              uuid.UUID `json:"id"`
	TenantID        string    `json:"tenant_id"`
	ClientID        string    `json:"client_id"`
	ClientSecretSet bool      `json:"client_secret_set"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ToResponse converts AzureSettings to its masked API representation
func (a *AzureSettings) ToResponse() AzureSettingsResponse {
	return AzureSettingsResponse{
		ID:              a.ID,
		TenantID:        a.TenantID,
		ClientID:        a.ClientID,
		ClientSecretSet: a.ClientSecretCipher != "",
		UpdatedAt:       a.UpdatedAt,
	}
}
