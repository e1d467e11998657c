// Package client talks to the MD&A server API: it submits statement
// files and follows job progress.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/automated-mda/backend/internal/dropzone"
	"github.com/automated-mda/backend/internal/flow"
	"github.com/automated-mda/backend/internal/models"
)

// DefaultPollInterval matches the server's own status polling.
const DefaultPollInterval = 100 * time.Millisecond

// ErrNotFound is returned for 404 responses.
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx response decoded from the server's error body.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	if e.Status == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// Client is an API client. It implements flow.Submitter and flow.Tracker.
type Client struct {
	BaseURL      string
	HTTP         *http.Client
	PollInterval time.Duration
}

// New creates a client for the server at baseURL.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		HTTP:         &http.Client{Timeout: 30 * time.Second},
		PollInterval: DefaultPollInterval,
	}
}

type processResponse struct {
	JobID      string `json:"jobId"`
	Stage      string `json:"stage"`
	ResultsURL string `json:"resultsUrl"`
}

// Submit uploads file as the "file" form field of a single POST.
func (c *Client) Submit(ctx context.Context, file dropzone.File) (flow.Submission, error) {
	rc, err := file.Open()
	if err != nil {
		return flow.Submission{}, fmt.Errorf("failed to open %s: %w", file.Name, err)
	}
	defer rc.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, file.Name))
	contentType := file.Type
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return flow.Submission{}, err
	}
	if _, err := io.Copy(part, rc); err != nil {
		return flow.Submission{}, fmt.Errorf("failed to read %s: %w", file.Name, err)
	}
	if err := mw.Close(); err != nil {
		return flow.Submission{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/process-financials", &body)
	if err != nil {
		return flow.Submission{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp processResponse
	if err := c.do(req, &resp); err != nil {
		return flow.Submission{}, fmt.Errorf("submit failed: %w", err)
	}
	log.Debug().Str("job_id", resp.JobID).Str("file", file.Name).Msg("Submitted statement file")
	return flow.Submission{JobID: resp.JobID, ResultsURL: resp.ResultsURL}, nil
}

// Job fetches the current state of a job.
func (c *Client) Job(ctx context.Context, jobID string) (*models.Job, error) {
	var job models.Job
	if err := c.getJSON(ctx, "/api/jobs/"+jobID, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Watch polls the job and emits each change of stage or status. The
// channel closes after a terminal status, on ctx end, or when a poll
// fails.
func (c *Client) Watch(ctx context.Context, jobID string) (<-chan models.Job, error) {
	first, err := c.Job(ctx, jobID)
	if err != nil {
		return nil, err
	}

	interval := c.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ch := make(chan models.Job, 1)
	go func() {
		defer close(ch)

		last := *first
		if !send(ctx, ch, last) || last.Finished() {
			return
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			job, err := c.Job(ctx, jobID)
			if err != nil {
				log.Warn().Err(err).Str("job_id", jobID).Msg("Job poll failed")
				return
			}
			if job.Stage == last.Stage && job.Status == last.Status {
				continue
			}
			last = *job
			if !send(ctx, ch, last) || last.Finished() {
				return
			}
		}
	}()
	return ch, nil
}

func send(ctx context.Context, ch chan<- models.Job, job models.Job) bool {
	select {
	case ch <- job:
		return true
	case <-ctx.Done():
		return false
	}
}

// Results fetches a results bundle. "demo" returns the sample bundle.
func (c *Client) Results(ctx context.Context, id string) (*models.ResultsBundle, error) {
	var b models.ResultsBundle
	if err := c.getJSON(ctx, "/api/results/"+id, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Markdown downloads the MD&A document of a bundle.
func (c *Client) Markdown(ctx context.Context, id string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/results/"+id+"/markdown", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, decodeError(resp)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("invalid response from %s: %w", req.URL.Path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Code == "" {
		apiErr.Code = http.StatusText(resp.StatusCode)
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}
