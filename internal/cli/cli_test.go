package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/automated-mda/backend/internal/api"
	"github.com/automated-mda/backend/internal/client"
	"github.com/automated-mda/backend/internal/models"
	"github.com/automated-mda/backend/internal/stage"
	"github.com/automated-mda/backend/internal/storage"
	"github.com/automated-mda/backend/internal/testutil"
)

const sampleCSV = "company,period,revenue,cogs,operating_income,net_income,equity\nACME,Q1 2024,100,40,20,10,200\n"

// autoJobs completes every started job on its own.
type autoJobs struct {
	*testutil.MockJobManager
}

func (a autoJobs) Start(info *models.FileInfo, path string) *models.Job {
	job := a.MockJobManager.Start(info, path)
	go func() {
		for _, label := range stage.Sequence()[1:] {
			time.Sleep(10 * time.Millisecond)
			a.Advance(job.ID, label)
		}
	}()
	return job
}

func setupServer(t *testing.T) *testutil.MockJobManager {
	t.Helper()
	jobs := testutil.NewMockJobManager()

	e := echo.New()
	api.SetupMiddleware(e)
	api.RegisterRoutes(e, api.NewHandlers(&api.Dependencies{
		Store:         testutil.NewMockStorage(),
		Results:       storage.NewMemoryResultStore(),
		Jobs:          autoJobs{jobs},
		StreamTimeout: time.Second,
		Version:       "test",
	}))
	srv := httptest.NewServer(e)

	prevSleeper, prevClient := sleeper, newClient
	sleeper = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	newClient = func(baseURL string) *client.Client {
		c := client.New(baseURL)
		c.PollInterval = 2 * time.Millisecond
		return c
	}
	t.Cleanup(func() {
		srv.Close()
		sleeper, newClient = prevSleeper, prevClient
		uploadDrop, uploadMode = false, "tracked"
		resultsSection, resultsMarkdown = 0, false
		rootCmd.SetArgs(nil)
	})
	serverURL = srv.URL
	return jobs
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestUploadCmd_Flags(t *testing.T) {
	assert.Equal(t, "upload [file]", uploadCmd.Use)
	mode := uploadCmd.Flags().Lookup("mode")
	require.NotNil(t, mode)
	assert.Equal(t, "tracked", mode.DefValue)
	require.NotNil(t, uploadCmd.Flags().Lookup("drop"))
	require.NotNil(t, rootCmd.PersistentFlags().Lookup("server"))
}

func TestUploadCmd_RequiresFile(t *testing.T) {
	setupServer(t)
	_, err := run(t, "upload")
	assert.ErrorContains(t, err, "accepts 1 arg(s)")
}

func TestUploadCmd_Tracked(t *testing.T) {
	setupServer(t)
	path := writeFile(t, "acme.csv", sampleCSV)

	out, err := run(t, "upload", path, "--server", serverURL)
	require.NoError(t, err)

	assert.Contains(t, out, "Uploading acme.csv")
	assert.Contains(t, out, stage.Validating)
	assert.Contains(t, out, stage.Narrating)
	assert.Contains(t, out, "✓ "+stage.Complete)
	assert.Contains(t, out, serverURL+"/results/job-")
}

func TestUploadCmd_Simulated(t *testing.T) {
	setupServer(t)
	path := writeFile(t, "acme.csv", sampleCSV)

	out, err := run(t, "upload", path, "--mode", "simulated", "--server", serverURL)
	require.NoError(t, err)
	assert.Contains(t, out, stage.Computing)
	assert.Contains(t, out, serverURL+"/results\n")
}

func TestUploadCmd_DropFilter(t *testing.T) {
	setupServer(t)
	path := writeFile(t, "notes.txt", "hello")

	_, err := run(t, "upload", path, "--drop", "--server", serverURL)
	assert.ErrorIs(t, err, ErrDropRejected)
}

func TestUploadCmd_PickerForwardsAnyType(t *testing.T) {
	setupServer(t)
	path := writeFile(t, "notes.txt", "hello")

	// the picker does not filter, so the server is the one to reject it
	_, err := run(t, "upload", path, "--server", serverURL)
	require.Error(t, err)
	assert.ErrorContains(t, err, "UNSUPPORTED_MEDIA_TYPE")
}

func TestUploadCmd_BadMode(t *testing.T) {
	setupServer(t)
	path := writeFile(t, "acme.csv", sampleCSV)

	_, err := run(t, "upload", path, "--mode", "fast", "--server", serverURL)
	assert.ErrorContains(t, err, `unknown flow mode "fast"`)
}

func TestStatusCmd(t *testing.T) {
	jobs := setupServer(t)
	jobs.Put(models.Job{ID: "job-7", FileName: "acme.csv", Status: models.JobStatusProcessing, Stage: stage.Indexing})

	out, err := run(t, "status", "job-7", "--server", serverURL)
	require.NoError(t, err)
	assert.Contains(t, out, "Job job-7")
	assert.Contains(t, out, "✓ "+stage.Embedding)
	assert.Contains(t, out, "4 "+stage.Indexing)
	assert.Contains(t, out, "67%")

	_, err = run(t, "status", "missing", "--server", serverURL)
	assert.Error(t, err)
}

func TestResultsCmd(t *testing.T) {
	setupServer(t)

	out, err := run(t, "results", "demo", "--server", serverURL)
	require.NoError(t, err)
	assert.Contains(t, out, "Apple Inc.")
	assert.Contains(t, out, "Revenue Growth (YoY)")
	assert.Contains(t, out, "▸ Revenue Overview")
	assert.Contains(t, out, "SEC Filing - Segment Revenue")

	out, err = run(t, "results", "demo", "--section", "2", "--server", serverURL)
	require.NoError(t, err)
	assert.Contains(t, out, "▸ Risk Factors & Challenges")

	out, err = run(t, "results", "demo", "--section", "9", "--server", serverURL)
	require.NoError(t, err)
	assert.Contains(t, out, "▸ Revenue Overview")
}

func TestResultsCmd_Markdown(t *testing.T) {
	setupServer(t)

	out, err := run(t, "results", "demo", "--markdown", "--server", serverURL)
	require.NoError(t, err)
	assert.Contains(t, out, "# Management Discussion and Analysis")
	assert.Contains(t, out, "## Liquidity & Capital Allocation")
}
