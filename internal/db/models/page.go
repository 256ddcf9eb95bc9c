// Package models - page.go defines report pages and per-user page access.
// A page binds a portal slug to a Power BI workspace/report pair; access is an
// allow-list of (user, page) rows consulted on every page and embed request.
package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Page represents a pages row
type Page struct {
	ID              uuid.UUID      `db:"id" json:"id"`
	Slug            string         `db:"slug" json:"slug"`
	Title           string         `db:"title" json:"title"`
	Description     sql.NullString `db:"description" json:"-"`
	Icon            sql.NullString `db:"icon" json:"-"`
	WorkspaceID     string         `db:"workspace_id" json:"workspace_id"`
	ReportID        string         `db:"report_id" json:"report_id"`
	DatasetID       string         `db:"dataset_id" json:"dataset_id"`
	DefaultPageName sql.NullString `db:"default_page_name" json:"-"`
	ShowFilterPane  bool           `db:"show_filter_pane" json:"show_filter_pane"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// PageView is the API representation of a page
type PageView struct {
	ID              uuid.UUID `json:"id"`
	Slug            string    `json:"slug"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	Icon            string    `json:"icon,omitempty"`
	WorkspaceID     string    `json:"workspace_id"`
	ReportID        string    `json:"report_id"`
	DatasetID       string    `json:"dataset_id"`
	DefaultPageName string    `json:"default_page_name,omitempty"`
	ShowFilterPane  bool      `json:"show_filter_pane"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ToView converts a Page to its API representation
func (p *Page) ToView() PageView {
	return PageView{
		ID:              p.ID,
		Slug:            p.Slug,
		Title:           p.Title,
		Description:     p.Description.String,
		Icon:            p.Icon.String,
		WorkspaceID:     p.WorkspaceID,
		ReportID:        p.ReportID,
		DatasetID:       p.DatasetID,
		DefaultPageName: p.DefaultPageName.String,
		ShowFilterPane:  p.ShowFilterPane,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

// PageInput is the admin payload for creating or replacing a page
type PageInput struct {
	Slug            string `json:"slug" binding:"required"`
	Title           string `json:"title" binding:"required"`
	Description     string `json:"description"`
	Icon            string `json:"icon"`
	WorkspaceID     string `json:"workspace_id" binding:"required"`
	ReportID        string `json:"report_id" binding:"required"`
	DatasetID       string `json:"dataset_id"`
	DefaultPageName string `json:"default_page_name"`
	ShowFilterPane  bool   `json:"show_filter_pane"`
}

// PageAccess represents a user_page_access row
type PageAccess struct {
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	PageID    uuid.UUID `db:"page_id" json:"page_id"`
	Enabled   bool      `db:"enabled" json:"enabled"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// PageAssignment is one entry of the bulk entitlement-replace payload
type PageAssignment struct {
	PageID  uuid.UUID `json:"page_id" binding:"required"`
	Enabled bool      `json:"enabled"`
}
