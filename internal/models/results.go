package models

import "time"

// Change is the direction indicator of a KPI.
type Change string

const (
	ChangeUp   Change = "up"
	ChangeDown Change = "down"
)

// Tone is the semantic color of a KPI.
type Tone string

const (
	ToneSuccess Tone = "success"
	ToneWarning Tone = "warning"
	ToneError   Tone = "error"
)

// KPI is one labeled, pre-formatted metric.
type KPI struct {
	Label  string `json:"label" msgpack:"label"`
	Value  string `json:"value" msgpack:"value"`
	Change Change `json:"change" msgpack:"change"`
	Color  Tone   `json:"color" msgpack:"color"`
}

// MDASection is one narrative section with its citations.
type MDASection struct {
	Title   string   `json:"title" msgpack:"title"`
	Content string   `json:"content" msgpack:"content"`
	Sources []string `json:"sources" msgpack:"sources"`
}

// MetricDelta is the change of one metric against the previous period.
// Values are pre-formatted for display.
type MetricDelta struct {
	Metric    string `json:"metric" msgpack:"metric"`
	Label     string `json:"label" msgpack:"label"`
	Period    string `json:"period" msgpack:"period"`
	Value     string `json:"value" msgpack:"value"`
	Change    string `json:"change" msgpack:"change"`
	Percent   string `json:"percent,omitempty" msgpack:"percent"` // empty when the previous value is zero
	Direction Change `json:"direction" msgpack:"direction"`
}

// ResultsBundle is everything the results view renders for one job.
type ResultsBundle struct {
	ID          string       `json:"id" msgpack:"id"`
	JobID       string       `json:"jobId,omitempty" msgpack:"job_id"`
	FileName    string       `json:"fileName" msgpack:"file_name"`
	Company     string       `json:"company" msgpack:"company"`
	Period      string       `json:"period" msgpack:"period"`
	KPIs        []KPI        `json:"kpis" msgpack:"kpis"`
	MDASections []MDASection `json:"mdaSections" msgpack:"mda_sections"`
	Deltas      []MetricDelta `json:"deltas,omitempty" msgpack:"deltas"`
	Markdown    string       `json:"markdown,omitempty" msgpack:"markdown"`
	CreatedAt   time.Time    `json:"createdAt" msgpack:"created_at"`
}
