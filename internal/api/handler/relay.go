package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"go-upwork-assistant/internal/action"
)

// Proposal handles POST /api/v1/proposal
func (h *Handler) Proposal(c *gin.Context) {
	var p action.ProposalPayload
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	h.run(c, action.KindProposal, p)
}

// MatchStatus handles POST /api/v1/status
// An empty body looks up the jobs of the last scrape
func (h *Handler) MatchStatus(c *gin.Context) {
	var p action.StatusPayload
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&p); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
	}
	h.run(c, action.KindStatus, p)
}

func (h *Handler) run(c *gin.Context, kind action.Kind, payload any) {
	req, err := action.NewRequest(kind, payload)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.respond(c, h.actions.Handle(c.Request.Context(), req))
}
