package web

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/automated-mda/backend/internal/models"
	"github.com/automated-mda/backend/internal/stage"
)

func TestFeatures(t *testing.T) {
	require.Len(t, Features, 4)
	assert.Equal(t, "Automated KPI Extraction", Features[0].Title)
	assert.Equal(t, "Full Citation Tracking", Features[3].Title)
	for _, f := range Features {
		assert.NotEmpty(t, f.Icon)
		assert.NotEmpty(t, f.Description)
	}
}

func TestNewKPICard(t *testing.T) {
	tests := []struct {
		kpi       models.KPI
		wantArrow string
		wantColor string
	}{
		{models.KPI{Label: "ROE", Value: "5.4%", Change: models.ChangeUp, Color: models.ToneSuccess}, "↑", "var(--color-success)"},
		{models.KPI{Label: "OM", Value: "31.5%", Change: models.ChangeDown, Color: models.ToneWarning}, "↓", "var(--color-warning)"},
		{models.KPI{Label: "NM", Value: "-3.0%", Change: models.ChangeDown, Color: models.ToneError}, "↓", "var(--color-error)"},
	}
	for _, tt := range tests {
		card := NewKPICard(tt.kpi)
		assert.Equal(t, tt.kpi.Label, card.Label)
		assert.Equal(t, tt.kpi.Value, card.Value)
		assert.Equal(t, tt.wantArrow, card.Arrow)
		assert.Equal(t, tt.wantColor, string(card.Color))
	}
}

func TestNewResultsView_Selection(t *testing.T) {
	bundle := models.DemoResults()

	tests := []struct {
		selected string
		want     int
	}{
		{"", 0},
		{"2", 2},
		{"3", 3},
		{"4", 0},
		{"-1", 0},
		{"abc", 0},
		{" 1 ", 1},
	}
	for _, tt := range tests {
		t.Run("section="+tt.selected, func(t *testing.T) {
			v := NewResultsView(bundle, tt.selected)
			assert.Equal(t, tt.want, v.Selected)
			require.NotNil(t, v.Section)
			assert.Equal(t, bundle.MDASections[tt.want].Title, v.Section.Title)
			for i, s := range v.Sections {
				assert.Equal(t, i == tt.want, s.Selected)
			}
		})
	}
}

func TestNewResultsView_Links(t *testing.T) {
	demo := NewResultsView(models.DemoResults(), "")
	assert.Equal(t, "/results?section=1", demo.Sections[1].Href)
	assert.Equal(t, "/results/demo/mda.md", demo.DownloadURL)
	assert.Equal(t, "Apple Inc.", demo.Company)
	require.Len(t, demo.KPIs, 4)
	assert.Contains(t, string(demo.Section.Body), "<p>Total net sales increased 12.4%")
	assert.Equal(t, []string{"SEC Filing - Segment Revenue", "Management Discussion p. 23-24"}, demo.Section.Sources)

	b := models.DemoResults()
	b.ID = "job-9"
	v := NewResultsView(b, "")
	assert.Equal(t, "/results/job-9?section=0", v.Sections[0].Href)
	assert.Equal(t, "/results/job-9/mda.md", v.DownloadURL)
}

func TestNewResultsView_NoSections(t *testing.T) {
	v := NewResultsView(&models.ResultsBundle{ID: "x"}, "2")
	assert.Nil(t, v.Section)
	assert.Empty(t, v.Sections)
}

func TestNewStatusView(t *testing.T) {
	v := NewStatusView("j1", stage.Indexing)
	require.Len(t, v.Steps, 6)
	assert.Equal(t, "✓", v.Steps[0].Marker)
	assert.Equal(t, "✓", v.Steps[2].Marker)
	assert.Equal(t, "4", v.Steps[3].Marker)
	assert.Equal(t, stage.StateActive, v.Steps[3].State)
	assert.InDelta(t, 66.67, v.Percent, 0.01)
	assert.False(t, v.Failed)

	failed := NewJobStatusView(&models.Job{ID: "j2", Stage: stage.Failed, Error: "bad file"})
	assert.True(t, failed.Failed)
	assert.Equal(t, 0.0, failed.Percent)
	assert.Equal(t, "bad file", failed.Error)
	for _, s := range failed.Steps {
		assert.Equal(t, stage.StatePending, s.State)
	}

	assert.True(t, NewStatusView("", stage.Complete).Done)
}
