package web

import (
	"html/template"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/automated-mda/backend/internal/mda"
	"github.com/automated-mda/backend/internal/models"
	"github.com/automated-mda/backend/internal/stage"
)

// Feature is one card of the landing page features grid.
type Feature struct {
	Icon        string
	Title       string
	Description string
}

// Features is the fixed list shown under "Powerful Financial Analysis Engine".
var Features = []Feature{
	{
		Icon:        "📊",
		Title:       "Automated KPI Extraction",
		Description: "Compute YoY/QoQ deltas and key financial metrics from raw statements automatically",
	},
	{
		Icon:        "🔍",
		Title:       "RAG-Powered Analysis",
		Description: "Retrieve contextual insights from chunked filings using semantic search and embeddings",
	},
	{
		Icon:        "📝",
		Title:       "AI-Generated Narratives",
		Description: "Create professional MD&A sections with trends, drivers, and risk factors using LLM",
	},
	{
		Icon:        "🔗",
		Title:       "Full Citation Tracking",
		Description: "Every narrative point is linked back to source chunks for transparency and verification",
	},
}

// NavLink is a header navigation entry.
type NavLink struct {
	Href  string
	Label string
}

// Header is the site header.
type Header struct {
	Badge string
	Name  string
	Links []NavLink
}

// SiteHeader is rendered on every page.
var SiteHeader = Header{
	Badge: "MD",
	Name:  "Automated MD&A",
	Links: []NavLink{
		{Href: "#features", Label: "Features"},
		{Href: "#upload", Label: "Get Started"},
	},
}

// KPICardView is a KPI ready for display.
type KPICardView struct {
	Label    string
	Value    string
	Arrow    string
	Color    template.CSS // CSS variable reference
	ToneName string
}

// NewKPICard maps a KPI onto its card.
func NewKPICard(k models.KPI) KPICardView {
	tone := string(k.Color)
	switch k.Color {
	case models.ToneSuccess, models.ToneWarning, models.ToneError:
	default:
		tone = string(models.ToneWarning)
	}
	return KPICardView{
		Label:    k.Label,
		Value:    k.Value,
		Arrow:    mda.Arrow(k.Change),
		Color:    template.CSS("var(--color-" + tone + ")"),
		ToneName: tone,
	}
}

// SectionCardView is the selected MD&A section.
type SectionCardView struct {
	Title   string
	Body    template.HTML
	Sources []string
}

// NewSectionCard renders the section content as HTML paragraphs.
func NewSectionCard(s models.MDASection) SectionCardView {
	body, err := mda.RenderHTML(s.Content)
	if err != nil {
		log.Warn().Err(err).Str("section", s.Title).Msg("Falling back to plain section text")
		body = "<p>" + template.HTMLEscapeString(s.Content) + "</p>"
	}
	return SectionCardView{
		Title:   s.Title,
		Body:    template.HTML(body),
		Sources: s.Sources,
	}
}

// SectionLink is one entry of the results section list.
type SectionLink struct {
	Index    int
	Title    string
	Selected bool
	Href     string
}

// ResultsView is the model of the results page.
type ResultsView struct {
	ID          string
	FileName    string
	Company     string
	Period      string
	KPIs        []KPICardView
	Sections    []SectionLink
	Selected    int
	Section     *SectionCardView
	DownloadURL string
}

// ResultsURL is the page path of a bundle. The demo bundle lives at
// /results.
func ResultsURL(id string) string {
	if id == "" || id == models.DemoResultsID {
		return "/results"
	}
	return "/results/" + id
}

// DownloadURL is the Markdown download path of a bundle.
func DownloadURL(id string) string {
	if id == "" {
		id = models.DemoResultsID
	}
	return "/results/" + id + "/mda.md"
}

// NewResultsView builds the results page model. selected is the raw
// section query value; anything unparsable or out of range selects the
// first section.
func NewResultsView(b *models.ResultsBundle, selected string) ResultsView {
	idx, err := strconv.Atoi(strings.TrimSpace(selected))
	if err != nil || idx < 0 || idx >= len(b.MDASections) {
		idx = 0
	}

	v := ResultsView{
		ID:          b.ID,
		FileName:    b.FileName,
		Company:     b.Company,
		Period:      b.Period,
		Selected:    idx,
		DownloadURL: DownloadURL(b.ID),
	}
	for _, k := range b.KPIs {
		v.KPIs = append(v.KPIs, NewKPICard(k))
	}
	base := ResultsURL(b.ID)
	for i, s := range b.MDASections {
		v.Sections = append(v.Sections, SectionLink{
			Index:    i,
			Title:    s.Title,
			Selected: i == idx,
			Href:     base + "?section=" + strconv.Itoa(i),
		})
	}
	if len(b.MDASections) > 0 {
		card := NewSectionCard(b.MDASections[idx])
		v.Section = &card
	}
	return v
}

// StepView is one row of the processing status list.
type StepView struct {
	stage.Step
	Marker string // "✓" for complete steps, else the step number
}

// StatusView is the processing status fragment model.
type StatusView struct {
	JobID   string
	Stage   string
	Steps   []StepView
	Percent float64
	Failed  bool
	Error   string
	Done    bool
}

// NewStatusView derives the status fragment for a stage label.
func NewStatusView(jobID, label string) StatusView {
	st := stage.Build(label)
	v := StatusView{
		JobID:   jobID,
		Stage:   label,
		Percent: st.Percent,
		Failed:  label == stage.Failed,
		Done:    label == stage.Complete,
	}
	for _, s := range st.Steps {
		marker := strconv.Itoa(s.Number)
		if s.State == stage.StateComplete {
			marker = "✓"
		}
		v.Steps = append(v.Steps, StepView{Step: s, Marker: marker})
	}
	return v
}

// NewJobStatusView is NewStatusView for a tracked job.
func NewJobStatusView(job *models.Job) StatusView {
	v := NewStatusView(job.ID, job.Stage)
	v.Error = job.Error
	return v
}
