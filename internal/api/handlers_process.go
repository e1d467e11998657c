// handlers_process.go - Statement submission and job status handlers
package api

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/automated-mda/backend/internal/dropzone"
	"github.com/automated-mda/backend/internal/models"
	"github.com/automated-mda/backend/internal/storage"
)

// Default SSE polling settings.
const (
	DefaultStreamInterval = 100 * time.Millisecond
	DefaultStreamTimeout  = 5 * time.Minute
)

// ProcessHandlerImpl implements the ProcessHandler interface
type ProcessHandlerImpl struct {
	store    storage.Store
	jobs     JobManager
	interval time.Duration
	timeout  time.Duration
}

// NewProcessHandler creates a new process handler instance
func NewProcessHandler(store storage.Store, jobs JobManager, streamTimeout time.Duration) *ProcessHandlerImpl {
	if streamTimeout <= 0 {
		streamTimeout = DefaultStreamTimeout
	}
	return &ProcessHandlerImpl{
		store:    store,
		jobs:     jobs,
		interval: DefaultStreamInterval,
		timeout:  streamTimeout,
	}
}

// ProcessResponse is returned when a statement file is accepted.
type ProcessResponse struct {
	JobID      string           `json:"jobId"`
	Status     models.JobStatus `json:"status"`
	Stage      string           `json:"stage"`
	StatusURL  string           `json:"statusUrl"`
	ResultsURL string           `json:"resultsUrl"`
}

// JobStatusURL is the API path of a job.
func JobStatusURL(jobID string) string { return "/api/jobs/" + jobID }

// ResultsPageURL is the page that renders a job's results.
func ResultsPageURL(jobID string) string { return "/results/" + jobID }

// HandleProcessFinancials accepts a multipart statement file and starts
// processing it
func (h *ProcessHandlerImpl) HandleProcessFinancials(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return NewBadRequestError("no file provided", err)
	}

	name, ok := acceptedName(file.Filename, file.Header.Get(echo.HeaderContentType))
	if !ok {
		return NewUnsupportedMediaTypeError(fmt.Sprintf("unsupported file type %q: upload a .csv or .xlsx statement", file.Filename))
	}

	src, err := file.Open()
	if err != nil {
		return NewInternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	info, err := h.store.Save(name, src)
	if err != nil {
		return NewInternalError("failed to save file", err)
	}
	path, err := h.store.GetFilePath(info.ID)
	if err != nil {
		return NewInternalError("failed to locate saved file", err)
	}

	job := h.jobs.Start(info, path)
	log.Info().Str("job", job.ID).Str("file", info.Name).Int64("size", info.Size).Msg("Statement accepted")

	return c.JSON(http.StatusAccepted, ProcessResponse{
		JobID:      job.ID,
		Status:     job.Status,
		Stage:      job.Stage,
		StatusURL:  JobStatusURL(job.ID),
		ResultsURL: ResultsPageURL(job.ID),
	})
}

// HandleGetJob returns the current state of a job
func (h *ProcessHandlerImpl) HandleGetJob(c echo.Context) error {
	id := c.Param("jobId")
	if id == "" {
		return NewValidationError("jobId")
	}

	job, ok := h.jobs.Get(id)
	if !ok {
		return NewNotFoundError("job", id)
	}
	return c.JSON(http.StatusOK, job)
}

// HandleJobProgressStream streams job status via SSE
func (h *ProcessHandlerImpl) HandleJobProgressStream(c echo.Context) error {
	id := c.Param("jobId")
	if id == "" {
		return NewValidationError("jobId")
	}

	// Set SSE headers
	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	job, ok := h.jobs.Get(id)
	if !ok {
		sendSSEError(c, "job not found")
		return nil
	}

	// Send initial status
	sendSSEData(c, job)
	if job.Finished() {
		return nil
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	timeout := time.NewTimer(h.timeout)
	defer timeout.Stop()

	last := *job
	for {
		select {
		case <-c.Request().Context().Done():
			return nil

		case <-ticker.C:
			job, ok := h.jobs.Get(id)
			if !ok {
				sendSSEError(c, "job not found")
				return nil
			}
			if job.Stage == last.Stage && job.Status == last.Status {
				continue
			}
			last = *job
			sendSSEData(c, job)

			// Stop streaming if complete or error
			if job.Finished() {
				return nil
			}

		case <-timeout.C:
			sendSSEError(c, "stream timeout")
			return nil
		}
	}
}

// acceptedName returns the name to store an upload under, or false when
// neither its extension nor its MIME type is a supported statement format.
// Files accepted by MIME type alone get the matching extension appended.
func acceptedName(name, contentType string) (string, bool) {
	if dropzone.TypeForName(name) != "" {
		return name, true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", false
	}
	switch mediaType {
	case dropzone.MIMECSV:
		return strings.TrimSuffix(name, filepath.Ext(name)) + ".csv", true
	case dropzone.MIMEXLSX:
		return strings.TrimSuffix(name, filepath.Ext(name)) + ".xlsx", true
	}
	return "", false
}

func sendSSEData(c echo.Context, data interface{}) {
	jsonData, _ := json.Marshal(data)
	fmt.Fprintf(c.Response(), "data: %s\n\n", jsonData)
	c.Response().Flush()
}

func sendSSEError(c echo.Context, message string) {
	sendSSEData(c, map[string]string{"error": message})
}
