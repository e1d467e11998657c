// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/automated-mda/backend/internal/models"
)

// ProcessHandler handles statement submission and job status
type ProcessHandler interface {
	HandleProcessFinancials(c echo.Context) error
	HandleGetJob(c echo.Context) error
	HandleJobProgressStream(c echo.Context) error
}

// ResultsHandler serves computed and demo results bundles
type ResultsHandler interface {
	HandleListResults(c echo.Context) error
	HandleGetDemoResults(c echo.Context) error
	HandleGetResults(c echo.Context) error
	HandleGetResultsMsgpack(c echo.Context) error
	HandleGetResultsMarkdown(c echo.Context) error
}

// FileHandler handles uploaded statement files
type FileHandler interface {
	HandleGetRecentFiles(c echo.Context) error
	HandleGetFile(c echo.Context) error
	HandleDeleteFile(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// JobStreamHandler streams job status over WebSocket
type JobStreamHandler interface {
	HandleJobSocket(c echo.Context) error
}

// JobManager defines the interface for processing job management
// This allows mocking in tests
type JobManager interface {
	Start(info *models.FileInfo, path string) *models.Job
	Get(id string) (*models.Job, bool)
	Watch(ctx context.Context, id string) (<-chan models.Job, error)
}
