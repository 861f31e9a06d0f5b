package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"go-upwork-assistant/internal/action"
	"go-upwork-assistant/internal/orchestrator"
)

// StartScrape handles POST /api/v1/scrape
// Starts a run in the background and answers 202, or runs it inline with ?wait=true
func (h *Handler) StartScrape(c *gin.Context) {
	req := action.Request{Kind: action.KindScrape}

	if c.Query("wait") == "true" {
		h.respond(c, h.actions.Handle(c.Request.Context(), req))
		return
	}

	if (h.runs != nil && h.runs.Running()) || !h.starting.CompareAndSwap(false, true) {
		body := gin.H{"error": "a scrape is already running"}
		if h.runs != nil {
			body["state"] = h.runs.State()
		}
		c.JSON(http.StatusConflict, body)
		return
	}

	h.background.Add(1)
	go func() {
		defer h.background.Done()
		defer h.starting.Store(false)
		resp := h.actions.Handle(h.baseCtx, req)
		h.logger.Debug("background scrape returned", slog.String("outcome", string(resp.Outcome)))
	}()

	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

// ScrapeStatus handles GET /api/v1/scrape
// Reports the current state and the last run's result
func (h *Handler) ScrapeStatus(c *gin.Context) {
	if h.runs == nil {
		c.JSON(http.StatusOK, gin.H{"state": orchestrator.StateIdle})
		return
	}
	body := gin.H{"state": h.runs.State()}
	if last, ok := h.runs.Last(); ok {
		body["last"] = last
	}
	c.JSON(http.StatusOK, body)
}
