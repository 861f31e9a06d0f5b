package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"go-upwork-assistant/internal/action"
)

const maxSettingsBody = 64 << 10

// GetSettings handles GET /api/v1/settings
func (h *Handler) GetSettings(c *gin.Context) {
	h.respond(c, h.actions.Handle(c.Request.Context(), action.Request{Kind: action.KindGetSettings}))
}

// UpdateSettings handles PUT /api/v1/settings
// The body is a partial settings document; keys not present keep their value
func (h *Handler) UpdateSettings(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxSettingsBody))
	if err != nil || !json.Valid(body) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	h.respond(c, h.actions.Handle(c.Request.Context(), action.Request{
		Kind:    action.KindUpdateSettings,
		Payload: body,
	}))
}
