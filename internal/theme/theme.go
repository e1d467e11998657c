// Package theme holds the design tokens shared by the web UI (as CSS
// custom properties) and the CLI (as lipgloss styles).
package theme

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme is the set of color tokens. Field names map to CSS variables
// --color-<kebab-case>.
type Theme struct {
	Background       string `yaml:"background"`
	Surface          string `yaml:"surface"`
	SurfaceSecondary string `yaml:"surface_secondary"`
	Border           string `yaml:"border"`
	Text             string `yaml:"text"`
	TextSecondary    string `yaml:"text_secondary"`
	Accent           string `yaml:"accent"`
	AccentHover      string `yaml:"accent_hover"`
	Success          string `yaml:"success"`
	Warning          string `yaml:"warning"`
	Error            string `yaml:"error"`
}

// Default returns the dark palette the product ships with.
func Default() Theme {
	return Theme{
		Background:       "#0b0f14",
		Surface:          "#121821",
		SurfaceSecondary: "#19212c",
		Border:           "#263140",
		Text:             "#e6edf3",
		TextSecondary:    "#8b98a9",
		Accent:           "#3ba7ff",
		AccentHover:      "#6cbcff",
		Success:          "#2fbf71",
		Warning:          "#f2b33d",
		Error:            "#f0545c",
	}
}

// WithDefaults fills empty tokens from Default.
func (t Theme) WithDefaults() Theme {
	d := Default()
	fill := func(v *string, def string) {
		if strings.TrimSpace(*v) == "" {
			*v = def
		}
	}
	fill(&t.Background, d.Background)
	fill(&t.Surface, d.Surface)
	fill(&t.SurfaceSecondary, d.SurfaceSecondary)
	fill(&t.Border, d.Border)
	fill(&t.Text, d.Text)
	fill(&t.TextSecondary, d.TextSecondary)
	fill(&t.Accent, d.Accent)
	fill(&t.AccentHover, d.AccentHover)
	fill(&t.Success, d.Success)
	fill(&t.Warning, d.Warning)
	fill(&t.Error, d.Error)
	return t
}

// Vars returns the CSS custom properties keyed by variable name.
func (t Theme) Vars() map[string]string {
	return map[string]string{
		"--color-background":        t.Background,
		"--color-surface":           t.Surface,
		"--color-surface-secondary": t.SurfaceSecondary,
		"--color-border":            t.Border,
		"--color-text":              t.Text,
		"--color-text-secondary":    t.TextSecondary,
		"--color-accent":            t.Accent,
		"--color-accent-hover":      t.AccentHover,
		"--color-success":           t.Success,
		"--color-warning":           t.Warning,
		"--color-error":             t.Error,
	}
}

// CSS renders a :root block with every token, sorted by name.
func (t Theme) CSS() string {
	vars := t.Vars()
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(":root {\n")
	for _, name := range names {
		fmt.Fprintf(&b, "  %s: %s;\n", name, vars[name])
	}
	b.WriteString("}\n")
	return b.String()
}

// Tone returns the token for a semantic KPI color name.
func (t Theme) Tone(name string) string {
	switch name {
	case "success":
		return t.Success
	case "warning":
		return t.Warning
	case "error":
		return t.Error
	default:
		return t.Text
	}
}

// Styles are the terminal renditions of the tokens.
type Styles struct {
	Title     lipgloss.Style
	Muted     lipgloss.Style
	Accent    lipgloss.Style
	Complete  lipgloss.Style
	Active    lipgloss.Style
	Pending   lipgloss.Style
	Card      lipgloss.Style
	toneStyle map[string]lipgloss.Style
}

// Terminal builds lipgloss styles from the tokens.
func (t Theme) Terminal() Styles {
	return Styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(t.Text)),
		Muted:    lipgloss.NewStyle().Foreground(lipgloss.Color(t.TextSecondary)),
		Accent:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(t.Accent)),
		Complete: lipgloss.NewStyle().Foreground(lipgloss.Color(t.Success)),
		Active:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(t.Accent)),
		Pending:  lipgloss.NewStyle().Foreground(lipgloss.Color(t.TextSecondary)),
		Card: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(t.Border)).
			Padding(0, 1),
		toneStyle: map[string]lipgloss.Style{
			"success": lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(t.Success)),
			"warning": lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(t.Warning)),
			"error":   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(t.Error)),
		},
	}
}

// Tone returns the style for a semantic KPI color name.
func (s Styles) Tone(name string) lipgloss.Style {
	if st, ok := s.toneStyle[name]; ok {
		return st
	}
	return s.Title
}
