// page_repository.go implements PageRepository, CRUD for report pages.
package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/portal-boost/portal/internal/db/models"
)

// PageRepository handles page database operations
type PageRepository struct {
	db *sql.DB
}

// NewPageRepository creates a new PageRepository
func NewPageRepository(db *sql.DB) *PageRepository {
	return &PageRepository{db: db}
}

const pageColumns = `id, slug, title, description, icon, workspace_id, report_id,
		dataset_id, default_page_name, show_filter_pane, created_at, updated_at`

func scanPage(row interface{ Scan(...any) error }) (*models.Page, error) {
	page := &models.Page{}
	err := row.Scan(
		&page.ID,
		&page.Slug,
		&page.Title,
		&page.Description,
		&page.Icon,
		&page.WorkspaceID,
		&page.ReportID,
		&page.DatasetID,
		&page.DefaultPageName,
		&page.ShowFilterPane,
		&page.CreatedAt,
		&page.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return page, nil
}

// CreatePage creates a new page
func (r *PageRepository) CreatePage(ctx context.Context, page *models.Page) error {
	if page.ID == uuid.Nil {
		page.ID = uuid.New()
	}
	now := time.Now().UTC()
	page.CreatedAt = now
	page.UpdatedAt = now

	query := `
		INSERT INTO pages (id, slug, title, description, icon, workspace_id, report_id,
			dataset_id, default_page_name, show_filter_pane, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.ExecContext(ctx, query,
		page.ID,
		page.Slug,
		page.Title,
		page.Description,
		page.Icon,
		page.WorkspaceID,
		page.ReportID,
		page.DatasetID,
		page.DefaultPageName,
		page.ShowFilterPane,
		page.CreatedAt,
		page.UpdatedAt,
	)

	return err
}

// GetPageByID retrieves a page by ID
func (r *PageRepository) GetPageByID(ctx context.Context, pageID uuid.UUID) (*models.Page, error) {
	query := `SELECT ` + pageColumns + ` FROM pages WHERE id = $1`
	return scanPage(r.db.QueryRowContext(ctx, query, pageID))
}

// GetPageBySlug retrieves a page by its slug
func (r *PageRepository) GetPageBySlug(ctx context.Context, slug string) (*models.Page, error) {
	query := `SELECT ` + pageColumns + ` FROM pages WHERE slug = $1`
	return scanPage(r.db.QueryRowContext(ctx, query, slug))
}

// ListPages retrieves all pages ordered by title
func (r *PageRepository) ListPages(ctx context.Context) ([]*models.Page, error) {
	query := `SELECT ` + pageColumns + ` FROM pages ORDER BY title ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pages := make([]*models.Page, 0)
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}

	return pages, rows.Err()
}

// UpdatePage updates a page
func (r *PageRepository) UpdatePage(ctx context.Context, page *models.Page) error {
	page.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE pages
		SET slug = $2, title = $3, description = $4, icon = $5, workspace_id = $6,
		    report_id = $7, dataset_id = $8, default_page_name = $9,
		    show_filter_pane = $10, updated_at = $11
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query,
		page.ID,
		page.Slug,
		page.Title,
		page.Description,
		page.Icon,
		page.WorkspaceID,
		page.ReportID,
		page.DatasetID,
		page.DefaultPageName,
		page.ShowFilterPane,
		page.UpdatedAt,
	)

	return err
}

// DeletePage deletes a page (cascades to page access rows)
func (r *PageRepository) DeletePage(ctx context.Context, pageID uuid.UUID) error {
	query := `DELETE FROM pages WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, pageID)
	return err
}
