package web

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/automated-mda/backend/internal/api"
	"github.com/automated-mda/backend/internal/dropzone"
	"github.com/automated-mda/backend/internal/flow"
	"github.com/automated-mda/backend/internal/models"
	"github.com/automated-mda/backend/internal/stage"
	"github.com/automated-mda/backend/internal/storage"
	"github.com/automated-mda/backend/internal/theme"
)

// JobLookup finds a job by id.
type JobLookup interface {
	Get(id string) (*models.Job, bool)
}

// Pages serves the HTML pages.
type Pages struct {
	Results      storage.ResultStore
	Jobs         JobLookup
	Theme        theme.Theme
	FlowMode     flow.Mode
	PollInterval int // milliseconds
}

// Layout is the data every full page receives.
type Layout struct {
	Title  string
	Header Header
	Page   interface{}
}

// IndexView is the landing page model.
type IndexView struct {
	Features      []Feature
	Accept        string
	AcceptedTypes []string
	Stages        []string
	FlowMode      string
	PollInterval  int
	Status        StatusView
}

// RegisterRoutes registers the page routes and static assets. API routes
// must be registered first.
func (p *Pages) RegisterRoutes(e *echo.Echo) error {
	renderer, err := NewRenderer()
	if err != nil {
		return err
	}
	e.Renderer = renderer

	static, err := StaticFS()
	if err != nil {
		return err
	}
	e.GET("/static/theme.css", p.handleThemeCSS)
	e.StaticFS("/static", static)

	e.GET("/", p.handleIndex)
	e.GET("/results", p.handleDemoResults)
	e.GET("/results/:id", p.handleResults)
	e.GET("/results/:id/mda.md", p.handleMarkdown)
	e.GET("/jobs/:jobId/status", p.handleJobStatus)
	return nil
}

func (p *Pages) handleIndex(c echo.Context) error {
	mode := p.FlowMode
	if mode == "" {
		mode = flow.ModeTracked
	}
	return c.Render(http.StatusOK, PageIndex, Layout{
		Title:  "Automated MD&A",
		Header: SiteHeader,
		Page: IndexView{
			Features:      Features,
			Accept:        dropzone.PickerAccept,
			AcceptedTypes: []string{dropzone.MIMECSV, dropzone.MIMEXLSX},
			Stages:        stage.Sequence(),
			FlowMode:      string(mode),
			PollInterval:  p.PollInterval,
			Status:        NewStatusView("", stage.Validating),
		},
	})
}

func (p *Pages) handleDemoResults(c echo.Context) error {
	return p.renderResults(c, models.DemoResults())
}

func (p *Pages) handleResults(c echo.Context) error {
	bundle, err := p.load(c, c.Param("id"))
	if err != nil {
		return err
	}
	return p.renderResults(c, bundle)
}

func (p *Pages) renderResults(c echo.Context, bundle *models.ResultsBundle) error {
	view := NewResultsView(bundle, c.QueryParam("section"))
	return c.Render(http.StatusOK, PageResults, Layout{
		Title:  bundle.Company + " MD&A",
		Header: SiteHeader,
		Page:   view,
	})
}

func (p *Pages) handleMarkdown(c echo.Context) error {
	bundle, err := p.load(c, c.Param("id"))
	if err != nil {
		return err
	}
	return api.SendMarkdown(c, bundle)
}

func (p *Pages) handleJobStatus(c echo.Context) error {
	id := c.Param("jobId")
	if p.Jobs == nil {
		return echo.NewHTTPError(http.StatusNotFound, "job not found")
	}
	job, ok := p.Jobs.Get(id)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "job not found")
	}
	return c.Render(http.StatusOK, PageStatus, NewJobStatusView(job))
}

func (p *Pages) handleThemeCSS(c echo.Context) error {
	c.Response().Header().Set("Cache-Control", "no-cache")
	return c.Blob(http.StatusOK, "text/css; charset=utf-8", []byte(p.Theme.WithDefaults().CSS()))
}

func (p *Pages) load(c echo.Context, id string) (*models.ResultsBundle, error) {
	bundle, err := api.LoadBundle(c, p.Results, id)
	var apiErr *api.APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return nil, echo.NewHTTPError(http.StatusNotFound, apiErr.Message)
	}
	return bundle, err
}
