// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/automated-mda/backend/internal/storage"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store          storage.Store
	Results        storage.ResultStore
	Jobs           JobManager
	ResultsBackend string
	StreamTimeout  time.Duration
	Version        string
}

// Handlers holds all handler instances
type Handlers struct {
	Health    HealthHandler
	Process   ProcessHandler
	Results   ResultsHandler
	Files     FileHandler
	JobStream JobStreamHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:    NewHealthHandler(deps.Version, deps.ResultsBackend),
		Process:   NewProcessHandler(deps.Store, deps.Jobs, deps.StreamTimeout),
		Results:   NewResultsHandler(deps.Results),
		Files:     NewFileHandler(deps.Store),
		JobStream: NewWebSocketHandler(deps.Jobs, deps.StreamTimeout),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	api := e.Group("/api")

	// Health check
	api.GET("/health", handlers.Health.HandleHealth)

	// Processing
	api.POST("/process-financials", handlers.Process.HandleProcessFinancials)
	api.GET("/jobs/:jobId", handlers.Process.HandleGetJob)
	api.GET("/jobs/:jobId/progress", handlers.Process.HandleJobProgressStream)

	// Results
	api.GET("/results", handlers.Results.HandleListResults)
	api.GET("/results/demo", handlers.Results.HandleGetDemoResults)
	api.GET("/results/:id", handlers.Results.HandleGetResults)
	api.GET("/results/:id/msgpack", handlers.Results.HandleGetResultsMsgpack)
	api.GET("/results/:id/markdown", handlers.Results.HandleGetResultsMarkdown)

	// Uploaded files
	api.GET("/files/recent", handlers.Files.HandleGetRecentFiles)
	api.GET("/files/:id", handlers.Files.HandleGetFile)
	api.DELETE("/files/:id", handlers.Files.HandleDeleteFile)
}

// RegisterWebSocketRoutes registers WebSocket routes
func RegisterWebSocketRoutes(e *echo.Echo, handlers *Handlers) {
	e.GET("/api/ws/jobs/:jobId", handlers.JobStream.HandleJobSocket)
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo) {
	// Use custom error handler
	e.HTTPErrorHandler = ErrorHandler
}
