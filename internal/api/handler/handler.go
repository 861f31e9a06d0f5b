package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"go-upwork-assistant/internal/action"
	"go-upwork-assistant/internal/models"
	"go-upwork-assistant/internal/orchestrator"
	"go-upwork-assistant/internal/settings"
	"go-upwork-assistant/internal/store"
)

// Actions runs action requests
type Actions interface {
	Handle(ctx context.Context, req action.Request) action.Response
}

// Runs exposes the orchestrator's progress
type Runs interface {
	State() orchestrator.State
	Running() bool
	Last() (orchestrator.Result, bool)
}

// Schedule reports the next scheduled scrape
type Schedule interface {
	Next() (time.Time, bool)
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger   *slog.Logger
	Actions  Actions
	Store    store.Store
	Runs     Runs
	Schedule Schedule
	// BaseContext bounds scrapes started in the background; it outlives the request
	BaseContext context.Context
}

// Handler serves the control API
type Handler struct {
	logger   *slog.Logger
	actions  Actions
	store    store.Store
	runs     Runs
	schedule Schedule
	baseCtx  context.Context

	background sync.WaitGroup
	// starting is held from accepting a background scrape until it returns
	starting atomic.Bool
}

// New creates a Handler instance
func New(deps *Dependencies) *Handler {
	base := deps.BaseContext
	if base == nil {
		base = context.Background()
	}
	return &Handler{
		logger:   deps.Logger,
		actions:  deps.Actions,
		store:    deps.Store,
		runs:     deps.Runs,
		schedule: deps.Schedule,
		baseCtx:  base,
	}
}

// Wait blocks until scrapes started in the background have returned
func (h *Handler) Wait() {
	h.background.Wait()
}

// Health handles GET /health
func (h *Handler) Health(c *gin.Context) {
	body := gin.H{
		"status":  "healthy",
		"service": "upwork-assistant",
	}
	if h.runs != nil {
		body["state"] = h.runs.State()
	}
	if h.schedule != nil {
		if next, ok := h.schedule.Next(); ok {
			body["next_scrape"] = next
		}
	}
	c.JSON(http.StatusOK, body)
}

// respond writes an action response with a status code matching its error
func (h *Handler) respond(c *gin.Context, resp action.Response) {
	c.JSON(statusCode(resp.Err()), resp)
}

func statusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, models.ErrRunInProgress):
		return http.StatusConflict
	case errors.Is(err, models.ErrNotConfigured):
		return http.StatusPreconditionFailed
	case errors.Is(err, models.ErrNoJobsFound):
		return http.StatusNotFound
	case errors.Is(err, settings.ErrInvalid),
		errors.Is(err, action.ErrInvalidPayload),
		errors.Is(err, action.ErrUnknownAction):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
