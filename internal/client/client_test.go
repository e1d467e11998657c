package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/automated-mda/backend/internal/api"
	"github.com/automated-mda/backend/internal/dropzone"
	"github.com/automated-mda/backend/internal/flow"
	"github.com/automated-mda/backend/internal/models"
	"github.com/automated-mda/backend/internal/stage"
	"github.com/automated-mda/backend/internal/storage"
	"github.com/automated-mda/backend/internal/testutil"
)

const sampleCSV = "company,period,revenue,cogs,operating_income,net_income,equity\nACME,Q1 2024,100,40,20,10,200\n"

func newAPIServer(t *testing.T) (*Client, *testutil.MockJobManager, *testutil.MockStorage) {
	t.Helper()
	jobs := testutil.NewMockJobManager()
	store := testutil.NewMockStorage()

	e := echo.New()
	api.SetupMiddleware(e)
	h := api.NewHandlers(&api.Dependencies{
		Store:          store,
		Results:        storage.NewMemoryResultStore(),
		Jobs:           jobs,
		ResultsBackend: "memory",
		StreamTimeout:  time.Second,
		Version:        "test",
	})
	api.RegisterRoutes(e, h)

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	c := New(srv.URL + "/")
	c.PollInterval = 5 * time.Millisecond
	return c, jobs, store
}

func TestClient_Submit(t *testing.T) {
	c, jobs, store := newAPIServer(t)

	sub, err := c.Submit(context.Background(), dropzone.FileFromBytes("acme.csv", dropzone.MIMECSV, []byte(sampleCSV)))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(sub.JobID, "job-"))
	assert.Equal(t, "/results/"+sub.JobID, sub.ResultsURL)
	assert.Equal(t, 1, store.GetFileCount())

	job, ok := jobs.Get(sub.JobID)
	require.True(t, ok)
	assert.Equal(t, "acme.csv", job.FileName)
}

func TestClient_SubmitRejected(t *testing.T) {
	c, _, store := newAPIServer(t)

	_, err := c.Submit(context.Background(), dropzone.FileFromBytes("notes.txt", "text/plain", []byte("hello")))
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnsupportedMediaType, apiErr.Status)
	assert.Equal(t, "UNSUPPORTED_MEDIA_TYPE", apiErr.Code)
	assert.Equal(t, 0, store.GetFileCount())
}

func TestClient_SubmitOpenError(t *testing.T) {
	c, _, _ := newAPIServer(t)
	file := dropzone.File{Name: "gone.csv", Open: func() (io.ReadCloser, error) { return nil, errors.New("boom") }}

	_, err := c.Submit(context.Background(), file)
	assert.ErrorContains(t, err, "boom")
}

func TestClient_Watch(t *testing.T) {
	c, jobs, _ := newAPIServer(t)
	jobs.Put(models.Job{ID: "job-1", Status: models.JobStatusProcessing, Stage: stage.Validating})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	updates, err := c.Watch(ctx, "job-1")
	require.NoError(t, err)

	go func() {
		for _, label := range []string{stage.Computing, stage.Embedding, stage.Complete} {
			time.Sleep(20 * time.Millisecond)
			jobs.Advance("job-1", label)
		}
	}()

	var seen []string
	for job := range updates {
		seen = append(seen, job.Stage)
	}
	assert.Equal(t, []string{stage.Validating, stage.Computing, stage.Embedding, stage.Complete}, seen)
}

func TestClient_WatchUnknownJob(t *testing.T) {
	c, _, _ := newAPIServer(t)

	_, err := c.Watch(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClient_WatchFinishedJob(t *testing.T) {
	c, jobs, _ := newAPIServer(t)
	jobs.Put(models.Job{ID: "job-1", Status: models.JobStatusError, Stage: stage.Failed, Error: "missing revenue"})

	updates, err := c.Watch(context.Background(), "job-1")
	require.NoError(t, err)

	job, ok := <-updates
	require.True(t, ok)
	assert.Equal(t, "missing revenue", job.Error)
	_, ok = <-updates
	assert.False(t, ok)
}

func TestClient_ResultsAndMarkdown(t *testing.T) {
	c, _, _ := newAPIServer(t)
	ctx := context.Background()

	b, err := c.Results(ctx, models.DemoResultsID)
	require.NoError(t, err)
	assert.Equal(t, "Apple Inc.", b.Company)
	assert.Len(t, b.MDASections, 4)

	md, err := c.Markdown(ctx, models.DemoResultsID)
	require.NoError(t, err)
	assert.Contains(t, string(md), "## Revenue Overview")

	_, err = c.Results(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = c.Markdown(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClient_DrivesTrackedFlow(t *testing.T) {
	c, jobs, _ := newAPIServer(t)

	started := make(chan string, 1)
	var navigated string
	f := flow.New(c,
		flow.NavigatorFunc(func(ctx context.Context, path string) error {
			navigated = path
			return nil
		}),
		flow.WithMode(flow.ModeTracked),
		flow.WithTracker(c),
		flow.WithSleeper(func(ctx context.Context, d time.Duration) error { return nil }),
		flow.WithOnChange(func(s flow.Snapshot) {
			if s.JobID != "" {
				select {
				case started <- s.JobID:
				default:
				}
			}
		}),
	)

	go func() {
		id := <-started
		for _, label := range []string{stage.Computing, stage.Embedding, stage.Indexing, stage.Narrating, stage.Complete} {
			time.Sleep(10 * time.Millisecond)
			jobs.Advance(id, label)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.HandleFileUpload(ctx, dropzone.FileFromBytes("acme.csv", dropzone.MIMECSV, []byte(sampleCSV))))

	snap := f.Snapshot()
	assert.Equal(t, stage.Complete, snap.Stage)
	assert.Equal(t, "/results/"+snap.JobID, navigated)
}
