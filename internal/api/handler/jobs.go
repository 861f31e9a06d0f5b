package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"go-upwork-assistant/internal/action"
	"go-upwork-assistant/internal/models"
	"go-upwork-assistant/internal/store"
)

// ListJobs handles GET /api/v1/jobs
// Returns the last scrape in the external schema; ?view=detail returns the raw detail records
func (h *Handler) ListJobs(c *gin.Context) {
	ctx := c.Request.Context()

	scrapedAt, _, err := store.Load[string](ctx, h.store, store.KeyLastScrapeTime)
	if err != nil {
		h.logger.Error("Failed to load scrape time", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load jobs"})
		return
	}

	var (
		jobs  any
		count int
	)
	if c.Query("view") == "detail" {
		details, _, err := store.Load[[]models.DetailJob](ctx, h.store, store.KeyLastScrapedJobs)
		if err != nil {
			h.logger.Error("Failed to load detail records", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load jobs"})
			return
		}
		if details == nil {
			details = []models.DetailJob{}
		}
		jobs, count = details, len(details)
	} else {
		external, _, err := store.Load[[]models.ExternalJob](ctx, h.store, store.KeyLastExternalJobs)
		if err != nil {
			h.logger.Error("Failed to load jobs", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load jobs"})
			return
		}
		if external == nil {
			external = []models.ExternalJob{}
		}
		jobs, count = external, len(external)
	}

	c.JSON(http.StatusOK, gin.H{
		"scraped_at": scrapedAt,
		"count":      count,
		"jobs":       jobs,
	})
}

// ExportCSV handles GET /api/v1/export.csv
func (h *Handler) ExportCSV(c *gin.Context) {
	resp := h.actions.Handle(c.Request.Context(), action.Request{Kind: action.KindExportCSV})
	res, ok := resp.Data.(action.ExportResult)
	if !resp.OK() || !ok {
		h.respond(c, resp)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, res.FileName))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(res.Content))
}
