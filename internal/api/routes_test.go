package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/automated-mda/backend/internal/storage"
	"github.com/automated-mda/backend/internal/testutil"
)

func newTestServer(t *testing.T) (*echo.Echo, *testutil.MockJobManager) {
	t.Helper()
	jobs := testutil.NewMockJobManager()
	e := echo.New()
	SetupMiddleware(e)
	h := NewHandlers(&Dependencies{
		Store:          testutil.NewMockStorage(),
		Results:        storage.NewMemoryResultStore(),
		Jobs:           jobs,
		ResultsBackend: "memory",
		StreamTimeout:  time.Second,
		Version:        "test",
	})
	RegisterRoutes(e, h)
	RegisterWebSocketRoutes(e, h)
	return e, jobs
}

func TestRoutes(t *testing.T) {
	e, _ := newTestServer(t)

	tests := []struct {
		method, path string
		wantStatus   int
		wantCode     string
	}{
		{http.MethodGet, "/api/health", http.StatusOK, ""},
		{http.MethodGet, "/api/results/demo", http.StatusOK, ""},
		{http.MethodGet, "/api/results/demo/markdown", http.StatusOK, ""},
		{http.MethodGet, "/api/results/demo/msgpack", http.StatusOK, ""},
		{http.MethodGet, "/api/results", http.StatusOK, ""},
		{http.MethodGet, "/api/results/unknown", http.StatusNotFound, "NOT_FOUND"},
		{http.MethodGet, "/api/jobs/unknown", http.StatusNotFound, "NOT_FOUND"},
		{http.MethodGet, "/api/files/recent", http.StatusOK, ""},
		{http.MethodGet, "/api/files/unknown", http.StatusNotFound, "NOT_FOUND"},
		{http.MethodDelete, "/api/files/unknown", http.StatusNotFound, "NOT_FOUND"},
		{http.MethodPost, "/api/process-financials", http.StatusBadRequest, "BAD_REQUEST"},
		{http.MethodGet, "/api/nope", http.StatusNotFound, "HTTP_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.wantStatus, rec.Code)

			if tt.wantCode != "" {
				var apiErr APIError
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
				assert.Equal(t, tt.wantCode, apiErr.Code)
			}
		})
	}
}

func TestRoutes_SubmitThenPoll(t *testing.T) {
	e, jobs := newTestServer(t)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, multipartRequest(t, "file", "ACME.csv", "text/csv", []byte("Quarter,Revenue\nQ1,1\n")))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp ProcessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, jobs.Starts, 1)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, resp.StatusURL, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"`+resp.JobID+`"`)
}

func TestErrorHandler(t *testing.T) {
	e := echo.New()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"api error", NewUnsupportedMediaTypeError("nope"), http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE"},
		{"echo error", echo.NewHTTPError(http.StatusMethodNotAllowed, "method not allowed"), http.StatusMethodNotAllowed, "HTTP_ERROR"},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "UNKNOWN_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
			ErrorHandler(tt.err, c)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var apiErr APIError
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
			assert.Equal(t, tt.wantCode, apiErr.Code)
		})
	}
}
