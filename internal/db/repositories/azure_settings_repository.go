// azure_settings_repository.go implements AzureSettingsRepository for the
// Power BI credential singleton. Storing new credentials deletes the old row
// and inserts the replacement in one transaction, so a concurrent reader sees
// either the old credentials or the new ones, never an empty table.
package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/portal-boost/portal/internal/db/models"
)

// AzureSettingsRepository handles azure_settings database operations
type AzureSettingsRepository struct {
	db *sqlx.DB
}

// NewAzureSettingsRepository creates a new AzureSettingsRepository
func NewAzureSettingsRepository(db *sqlx.DB) *AzureSettingsRepository {
	return &AzureSettingsRepository{db: db}
}

// Get retrieves the credential singleton; (nil, nil) when none is stored
func (r *AzureSettingsRepository) Get(ctx context.Context) (*models.AzureSettings, error) {
	var settings models.AzureSettings
	query := `SELECT id, tenant_id, client_id, client_secret_cipher, created_by, updated_at
		FROM azure_settings ORDER BY updated_at DESC LIMIT 1`
	err := r.db.GetContext(ctx, &settings, query)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// Replace stores new credentials as the singleton, removing any previous row
// in the same transaction
func (r *AzureSettingsRepository) Replace(ctx context.Context, settings *models.AzureSettings) error {
	if settings.ID == uuid.Nil {
		settings.ID = uuid.New()
	}
	settings.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM azure_settings`); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO azure_settings (id, tenant_id, client_id, client_secret_cipher, created_by, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		settings.ID,
		settings.TenantID,
		settings.ClientID,
		settings.ClientSecretCipher,
		settings.CreatedBy,
		settings.UpdatedAt,
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// Delete removes the stored credentials entirely
func (r *AzureSettingsRepository) Delete(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM azure_settings`)
	return err
}
