package router

import (
	"github.com/gin-gonic/gin"

	"go-upwork-assistant/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(h *handler.Handler, deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	r.GET("/health", h.Health)

	v1 := r.Group("/api/v1")
	{
		// POST /api/v1/scrape - Start a scrape (?wait=true runs it inline)
		v1.POST("/scrape", h.StartScrape)

		// GET /api/v1/scrape - Current state and last result
		v1.GET("/scrape", h.ScrapeStatus)

		// GET /api/v1/jobs - Jobs from the last scrape
		v1.GET("/jobs", h.ListJobs)

		// GET /api/v1/export.csv - Last scrape as CSV
		v1.GET("/export.csv", h.ExportCSV)

		v1.POST("/proposal", h.Proposal)
		v1.POST("/status", h.MatchStatus)

		v1.GET("/settings", h.GetSettings)
		v1.PUT("/settings", h.UpdateSettings)
	}

	return r
}
