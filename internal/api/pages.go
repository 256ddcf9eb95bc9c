// pages.go implements HTTP handlers for the authenticated report-page surface:
// the per-user dashboard listing, page lookup by slug, and the Power BI embed
// detail endpoint that brokers an embed token for a single report.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/portal-boost/portal/internal/db/models"
	"github.com/portal-boost/portal/internal/db/repositories"
	"github.com/portal-boost/portal/internal/middleware"
	"github.com/portal-boost/portal/internal/powerbi"
	"github.com/portal-boost/portal/internal/telemetry"
)

// PageHandlers handles report-page and embed endpoints
type PageHandlers struct {
	pages        *repositories.PageRepository
	entitlements *repositories.EntitlementRepository
	checker      *middleware.PageAccessChecker
	broker       *powerbi.Broker
}

// NewPageHandlers creates a new PageHandlers instance
func NewPageHandlers(pages *repositories.PageRepository, entitlements *repositories.EntitlementRepository, broker *powerbi.Broker) *PageHandlers {
	return &PageHandlers{
		pages:        pages,
		entitlements: entitlements,
		checker:      middleware.NewPageAccessChecker(entitlements),
		broker:       broker,
	}
}

// ListDashboardsHandler lists the pages the authenticated user may open.
// Admins see every page; regular users see their enabled allow-list entries.
// GET /api/user/dashboards
func (h *PageHandlers) ListDashboardsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := middleware.CurrentUser(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
			})
			return
		}

		var (
			pages []*models.Page
			err   error
		)
		if user.IsAdmin() {
			pages, err = h.pages.ListPages(c.Request.Context())
		} else {
			pages, err = h.entitlements.ListPagesForUser(c.Request.Context(), user.ID)
		}
		if err != nil {
			slog.Error("failed to list dashboards", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to list dashboards",
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

// GetPageBySlugHandler retrieves a single page by slug, subject to the
// caller's page allow-list
// GET /api/pages/slug/:slug
func (h *PageHandlers) GetPageBySlugHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		slug := c.Param("slug")

		page, err := h.pages.GetPageBySlug(c.Request.Context(), slug)
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

		allowed, err := h.checker.Allowed(c, page.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to check page access",
			})
			return
		}
		if !allowed {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "Access to this page is denied",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"page": page.ToView(),
		})
	}
}

type embedRequest struct {
	PageID string `json:"pageId" binding:"required"`
}

// EmbedDetailsHandler brokers a Power BI embed token for one page. Each call
// produces a fresh token; nothing is cached server-side.
// POST /api/powerbi/embed
func (h *PageHandlers) EmbedDetailsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req embedRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "pageId is required",
			})
			return
		}
		pageID, err := uuid.Parse(req.PageID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid page ID",
			})
			return
		}

		page, err := h.pages.GetPageByID(c.Request.Context(), pageID)
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

		allowed, err := h.checker.Allowed(c, page.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to check page access",
			})
			return
		}
		if !allowed {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "Access to this page is denied",
			})
			return
		}

		details, err := h.broker.GetEmbedDetails(c.Request.Context(), page)
		if err != nil {
			var upstream *powerbi.UpstreamError
			switch {
			case errors.Is(err, powerbi.ErrNotConfigured):
				telemetry.EmbedTokensIssuedTotal.WithLabelValues("not_configured").Inc()
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"error": "Power BI credentials are not configured",
				})
			case errors.Is(err, powerbi.ErrReportNotFound):
				telemetry.EmbedTokensIssuedTotal.WithLabelValues("report_not_found").Inc()
				c.JSON(http.StatusNotFound, gin.H{
					"error": "Report not found in Power BI workspace",
				})
			case errors.As(err, &upstream):
				telemetry.EmbedTokensIssuedTotal.WithLabelValues("upstream_error").Inc()
				slog.Error("embed token request failed upstream",
					"operation", upstream.Operation,
					"status", upstream.StatusCode,
				)
				c.JSON(http.StatusBadGateway, gin.H{
					"error": "Power BI request failed",
				})
			default:
				telemetry.EmbedTokensIssuedTotal.WithLabelValues("upstream_error").Inc()
				slog.Error("embed token request failed", "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{
					"error": "Failed to generate embed token",
				})
			}
			return
		}
		telemetry.EmbedTokensIssuedTotal.WithLabelValues("issued").Inc()

		c.JSON(http.StatusOK, details)
	}
}
