// Package web serves the server-rendered pages and their embedded assets.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"

	"github.com/labstack/echo/v4"
)

//go:embed templates/*.html
var templateFiles embed.FS

//go:embed static/*
var staticFiles embed.FS

// Pages that are rendered inside the layout.
const (
	PageIndex   = "index"
	PageResults = "results"
	// PageStatus is a bare fragment without the layout.
	PageStatus = "status"
)

// partials are parsed into every page.
var partials = []string{"templates/layout.html", "templates/partials.html", "templates/status.html"}

// Renderer implements echo.Renderer over the embedded templates.
type Renderer struct {
	pages map[string]*template.Template
}

var funcs = template.FuncMap{
	"pct": func(v float64) template.CSS { return template.CSS(fmt.Sprintf("%.2f%%", v)) },
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	base, err := template.New("").Funcs(funcs).ParseFS(templateFiles, partials...)
	if err != nil {
		return nil, fmt.Errorf("parsing layout: %w", err)
	}

	r := &Renderer{pages: make(map[string]*template.Template)}
	for _, name := range []string{PageIndex, PageResults} {
		t, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(templateFiles, "templates/"+name+".html"); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
		r.pages[name] = t
	}
	r.pages[PageStatus] = base
	return r, nil
}

// Render executes the named page. Full pages render through "layout";
// the status fragment renders on its own.
func (r *Renderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	if name == PageStatus {
		return t.ExecuteTemplate(w, "status", data)
	}
	return t.ExecuteTemplate(w, "layout", data)
}

// StaticFS returns the embedded static assets rooted at static/.
func StaticFS() (fs.FS, error) {
	return fs.Sub(staticFiles, "static")
}
