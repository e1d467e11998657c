// handlers_process_test.go - Tests for statement submission and job status handlers
package api

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/automated-mda/backend/internal/models"
	"github.com/automated-mda/backend/internal/stage"
	"github.com/automated-mda/backend/internal/testutil"
)

func multipartRequest(t *testing.T, field, fileName, contentType string, data []byte) *http.Request {
	t.Helper()
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	if field != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+fileName+`"`)
		if contentType != "" {
			h.Set("Content-Type", contentType)
		}
		part, err := writer.CreatePart(h)
		require.NoError(t, err)
		part.Write(data)
	} else {
		writer.WriteField("note", "no file here")
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/process-financials", body)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	return req
}

func TestProcessHandler_HandleProcessFinancials(t *testing.T) {
	tests := []struct {
		name        string
		field       string
		fileName    string
		contentType string
		saveErr     error
		wantStatus  int
		wantErr     bool
		errCode     string
		storedName  string
	}{
		{
			name:       "csv by extension",
			field:      "file",
			fileName:   "ACME_2024.csv",
			wantStatus: http.StatusAccepted,
			storedName: "ACME_2024.csv",
		},
		{
			name:        "xlsx by extension with generic mime",
			field:       "file",
			fileName:    "AAPL_2023_10K.xlsx",
			contentType: "application/octet-stream",
			wantStatus:  http.StatusAccepted,
			storedName:  "AAPL_2023_10K.xlsx",
		},
		{
			name:        "csv by mime type only",
			field:       "file",
			fileName:    "export",
			contentType: "text/csv; charset=utf-8",
			wantStatus:  http.StatusAccepted,
			storedName:  "export.csv",
		},
		{
			name:       "missing file field",
			wantStatus: http.StatusBadRequest,
			wantErr:    true,
			errCode:    "BAD_REQUEST",
		},
		{
			name:        "unsupported type",
			field:       "file",
			fileName:    "filing.pdf",
			contentType: "application/pdf",
			wantStatus:  http.StatusUnsupportedMediaType,
			wantErr:     true,
			errCode:     "UNSUPPORTED_MEDIA_TYPE",
		},
		{
			name:       "storage failure",
			field:      "file",
			fileName:   "ACME.csv",
			saveErr:    errors.New("disk full"),
			wantStatus: http.StatusInternalServerError,
			wantErr:    true,
			errCode:    "INTERNAL_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testutil.NewMockStorage()
			store.SaveErr = tt.saveErr
			jobs := testutil.NewMockJobManager()
			handler := NewProcessHandler(store, jobs, time.Second)

			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(multipartRequest(t, tt.field, tt.fileName, tt.contentType, []byte("Quarter,Revenue\nQ1,1\n")), rec)

			err := handler.HandleProcessFinancials(c)

			if tt.wantErr {
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, tt.wantStatus, apiErr.Status)
				assert.Equal(t, tt.errCode, apiErr.Code)
				assert.Empty(t, jobs.Starts)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, rec.Code)

			var resp ProcessResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			require.Len(t, jobs.Starts, 1)
			start := jobs.Starts[0]
			assert.Equal(t, "job-"+start.Info.ID, resp.JobID)
			assert.Equal(t, models.JobStatusProcessing, resp.Status)
			assert.Equal(t, stage.Validating, resp.Stage)
			assert.Equal(t, "/api/jobs/"+resp.JobID, resp.StatusURL)
			assert.Equal(t, "/results/"+resp.JobID, resp.ResultsURL)
			assert.Equal(t, tt.storedName, start.Info.Name)
			assert.Equal(t, "/mock/path/"+start.Info.ID, start.Path)
		})
	}
}

func TestProcessHandler_HandleGetJob(t *testing.T) {
	jobs := testutil.NewMockJobManager()
	jobs.Put(models.Job{ID: "j1", Status: models.JobStatusProcessing, Stage: stage.Indexing, StageIndex: 3})
	handler := NewProcessHandler(testutil.NewMockStorage(), jobs, time.Second)
	e := echo.New()

	t.Run("known job", func(t *testing.T) {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/jobs/j1", nil), rec)
		c.SetParamNames("jobId")
		c.SetParamValues("j1")

		require.NoError(t, handler.HandleGetJob(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"stage":"Creating RAG index..."`)
		assert.Contains(t, rec.Body.String(), `"stageIndex":3`)
	})

	t.Run("unknown job", func(t *testing.T) {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/jobs/nope", nil), httptest.NewRecorder())
		c.SetParamNames("jobId")
		c.SetParamValues("nope")

		var apiErr *APIError
		require.ErrorAs(t, handler.HandleGetJob(c), &apiErr)
		assert.Equal(t, http.StatusNotFound, apiErr.Status)
	})
}

func readSSEEvents(t *testing.T, body string) []map[string]interface{} {
	t.Helper()
	var events []map[string]interface{}
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)
	}
	return events
}

func TestProcessHandler_HandleJobProgressStream(t *testing.T) {
	t.Run("streams stage changes until complete", func(t *testing.T) {
		jobs := testutil.NewMockJobManager()
		jobs.Put(models.Job{ID: "j1", Status: models.JobStatusProcessing, Stage: stage.Validating})
		handler := NewProcessHandler(testutil.NewMockStorage(), jobs, 5*time.Second)
		handler.interval = time.Millisecond

		go func() {
			for _, label := range []string{stage.Computing, stage.Embedding, stage.Indexing, stage.Narrating, stage.Complete} {
				time.Sleep(20 * time.Millisecond)
				jobs.Advance("j1", label)
			}
		}()

		e := echo.New()
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/jobs/j1/progress", nil), rec)
		c.SetParamNames("jobId")
		c.SetParamValues("j1")

		require.NoError(t, handler.HandleJobProgressStream(c))
		assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

		events := readSSEEvents(t, rec.Body.String())
		require.NotEmpty(t, events)
		assert.Equal(t, stage.Validating, events[0]["stage"])
		last := events[len(events)-1]
		assert.Equal(t, stage.Complete, last["stage"])
		assert.Equal(t, "complete", last["status"])
	})

	t.Run("unknown job sends error event", func(t *testing.T) {
		handler := NewProcessHandler(testutil.NewMockStorage(), testutil.NewMockJobManager(), time.Second)
		e := echo.New()
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/jobs/x/progress", nil), rec)
		c.SetParamNames("jobId")
		c.SetParamValues("x")

		require.NoError(t, handler.HandleJobProgressStream(c))
		events := readSSEEvents(t, rec.Body.String())
		require.Len(t, events, 1)
		assert.Equal(t, "job not found", events[0]["error"])
	})

	t.Run("times out", func(t *testing.T) {
		jobs := testutil.NewMockJobManager()
		jobs.Put(models.Job{ID: "slow", Status: models.JobStatusProcessing, Stage: stage.Validating})
		handler := NewProcessHandler(testutil.NewMockStorage(), jobs, 30*time.Millisecond)
		handler.interval = 5 * time.Millisecond

		e := echo.New()
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/jobs/slow/progress", nil), rec)
		c.SetParamNames("jobId")
		c.SetParamValues("slow")

		require.NoError(t, handler.HandleJobProgressStream(c))
		events := readSSEEvents(t, rec.Body.String())
		require.Len(t, events, 2)
		assert.Equal(t, "stream timeout", events[1]["error"])
	})
}

func TestAcceptedName(t *testing.T) {
	tests := []struct {
		name, contentType, want string
		ok                      bool
	}{
		{"a.csv", "", "a.csv", true},
		{"A.XLSX", "", "A.XLSX", true},
		{"data.bin", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "data.xlsx", true},
		{"notes.txt", "text/plain", "", false},
		{"report.xls", "application/vnd.ms-excel", "", false},
		{"noext", "", "", false},
	}
	for _, tt := range tests {
		got, ok := acceptedName(tt.name, tt.contentType)
		assert.Equal(t, tt.ok, ok, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}
}
