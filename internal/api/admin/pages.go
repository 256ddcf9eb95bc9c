// pages.go implements handlers for admin report-page management. A page binds
// a portal slug to a Power BI workspace/report pair; deleting a page cascades
// to its allow-list rows.
package admin

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/portal-boost/portal/internal/db/models"
	"github.com/portal-boost/portal/internal/db/repositories"
)

// PageHandlers handles admin page management endpoints
type PageHandlers struct {
	pageRepo     *repositories.PageRepository
	entitlements *repositories.EntitlementRepository
}

// NewPageHandlers creates a new PageHandlers instance
func NewPageHandlers(pageRepo *repositories.PageRepository, entitlements *repositories.EntitlementRepository) *PageHandlers {
	return &PageHandlers{
		pageRepo:     pageRepo,
		entitlements: entitlements,
	}
}

// applyInput copies a PageInput onto a Page model
func applyInput(page *models.Page, input *models.PageInput) {
	page.Slug = input.Slug
	page.Title = input.Title
	page.Description = sql.NullString{String: input.Description, Valid: input.Description != ""}
	page.Icon = sql.NullString{String: input.Icon, Valid: input.Icon != ""}
	page.WorkspaceID = input.WorkspaceID
	page.ReportID = input.ReportID
	page.DatasetID = input.DatasetID
	page.DefaultPageName = sql.NullString{String: input.DefaultPageName, Valid: input.DefaultPageName != ""}
	page.ShowFilterPane = input.ShowFilterPane
}

// ListPagesHandler lists all report pages
// GET /api/admin/pages
func (h *PageHandlers) ListPagesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		pages, err := h.pageRepo.ListPages(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to list pages",
			})
			return
		}

		views := make([]models.PageView, 0, len(pages))
		for _, p := range pages {
			views = append(views, p.ToView())
		}

		c.JSON(http.StatusOK, gin.H{
			"pages": views,
		})
	}
}

// GetPageHandler retrieves a single report page
// GET /api/admin/pages/:id
func (h *PageHandlers) GetPageHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		pageID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid page ID",
			})
			return
		}

		page, err := h.pageRepo.GetPageByID(c.Request.Context(), pageID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to retrieve page",
			})
			return
		}
		if page == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Page not found",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"page": page.ToView(),
		})
	}
}

// CreatePageHandler creates a report page
// POST /api/admin/pages
func (h *PageHandlers) CreatePageHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.PageInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Slug, title, workspace ID, and report ID are required",
			})
			return
		}

		existing, err := h.pageRepo.GetPageBySlug(c.Request.Context(), input.Slug)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to check slug",
			})
			return
		}
		if existing != nil {
			c.JSON(http.StatusConflict, gin.H{
				"error": "A page with that slug already exists",
			})
			return
		}

		page := &models.Page{}
		applyInput(page, &input)

		if err := h.pageRepo.CreatePage(c.Request.Context(), page); err != nil {
			slog.Error("failed to create page", "slug", input.Slug, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to create page",
			})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"page": page.ToView(),
		})
	}
}

// UpdatePageHandler replaces a report page's fields
// PATCH /api/admin/pages/:id
func (h *PageHandlers) UpdatePageHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		pageID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid page ID",
			})
			return
		}

		var input models.PageInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Slug, title, workspace ID, and report ID are required",
			})
			return
		}

		page, err := h.pageRepo.GetPageByID(c.Request.Context(), pageID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to retrieve page",
			})
			return
		}
		if page == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Page not found",
			})
			return
		}

		if input.Slug != page.Slug {
			existing, err := h.pageRepo.GetPageBySlug(c.Request.Context(), input.Slug)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{
					"error": "Failed to check slug",
				})
				return
			}
			if existing != nil && existing.ID != pageID {
				c.JSON(http.StatusConflict, gin.H{
					"error": "A page with that slug already exists",
				})
				return
			}
		}

		applyInput(page, &input)

		if err := h.pageRepo.UpdatePage(c.Request.Context(), page); err != nil {
			slog.Error("failed to update page", "page_id", pageID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to update page",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"page": page.ToView(),
		})
	}
}

// DeletePageHandler removes a report page and its allow-list rows
// DELETE /api/admin/pages/:id
func (h *PageHandlers) DeletePageHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		pageID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid page ID",
			})
			return
		}

		page, err := h.pageRepo.GetPageByID(c.Request.Context(), pageID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to retrieve page",
			})
			return
		}
		if page == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Page not found",
			})
			return
		}

		if err := h.pageRepo.DeletePage(c.Request.Context(), pageID); err != nil {
			slog.Error("failed to delete page", "page_id", pageID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to delete page",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "Page deleted",
		})
	}
}
