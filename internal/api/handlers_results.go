// handlers_results.go - Results bundle handlers
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/automated-mda/backend/internal/mda"
	"github.com/automated-mda/backend/internal/models"
	"github.com/automated-mda/backend/internal/storage"
)

// ResultsHandlerImpl implements the ResultsHandler interface
type ResultsHandlerImpl struct {
	results storage.ResultStore
}

// NewResultsHandler creates a new results handler
func NewResultsHandler(results storage.ResultStore) *ResultsHandlerImpl {
	return &ResultsHandlerImpl{results: results}
}

// LoadBundle returns the bundle with the given id. The demo id always
// resolves to the sample bundle.
func LoadBundle(c echo.Context, results storage.ResultStore, id string) (*models.ResultsBundle, error) {
	if id == models.DemoResultsID {
		return models.DemoResults(), nil
	}
	bundle, err := results.Get(c.Request().Context(), id)
	if errors.Is(err, storage.ErrResultNotFound) {
		return nil, NewNotFoundError("results", id)
	}
	if err != nil {
		return nil, NewInternalError("failed to load results", err)
	}
	return bundle, nil
}

// HandleListResults returns the most recent results
func (h *ResultsHandlerImpl) HandleListResults(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	list, err := h.results.List(c.Request().Context(), limit)
	if err != nil {
		return NewInternalError("failed to list results", err)
	}
	if list == nil {
		list = []storage.ResultSummary{}
	}
	return c.JSON(http.StatusOK, list)
}

// HandleGetDemoResults returns the sample bundle
func (h *ResultsHandlerImpl) HandleGetDemoResults(c echo.Context) error {
	return c.JSON(http.StatusOK, models.DemoResults())
}

// HandleGetResults returns a bundle as JSON
func (h *ResultsHandlerImpl) HandleGetResults(c echo.Context) error {
	bundle, err := LoadBundle(c, h.results, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, bundle)
}

// HandleGetResultsMsgpack returns a bundle in msgpack encoding
func (h *ResultsHandlerImpl) HandleGetResultsMsgpack(c echo.Context) error {
	bundle, err := LoadBundle(c, h.results, c.Param("id"))
	if err != nil {
		return err
	}
	data, err := storage.EncodeBundle(bundle)
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}

// HandleGetResultsMarkdown returns the bundle's report as a Markdown
// attachment
func (h *ResultsHandlerImpl) HandleGetResultsMarkdown(c echo.Context) error {
	bundle, err := LoadBundle(c, h.results, c.Param("id"))
	if err != nil {
		return err
	}
	return SendMarkdown(c, bundle)
}

// SendMarkdown writes the bundle's Markdown report as a download.
func SendMarkdown(c echo.Context, bundle *models.ResultsBundle) error {
	md := bundle.Markdown
	if md == "" {
		md = mda.Markdown(bundle)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", mda.FileName(bundle)))
	return c.Blob(http.StatusOK, "text/markdown; charset=utf-8", []byte(md))
}
