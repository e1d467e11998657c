package mda

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/automated-mda/backend/internal/models"
)

// Markdown assembles the downloadable report for bundle.
func Markdown(bundle *models.ResultsBundle) string {
	var b strings.Builder
	b.WriteString("# Management Discussion and Analysis\n")
	fmt.Fprintf(&b, "## %s: %s Financial Results\n\n", bundle.Company, bundle.Period)

	if len(bundle.KPIs) > 0 {
		b.WriteString("### Key Performance Indicators\n\n")
		b.WriteString("| Metric | Value | Trend |\n|---|---|---|\n")
		for _, k := range bundle.KPIs {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", escapeCell(k.Label), escapeCell(k.Value), Arrow(k.Change))
		}
		b.WriteString("\n")
	}

	if len(bundle.Deltas) > 0 {
		fmt.Fprintf(&b, "### Changes from Prior Period\n\n| Metric | %s | Change | Change %% |\n|---|---|---|---|\n", escapeCell(bundle.Deltas[0].Period))
		for _, d := range bundle.Deltas {
			pct := d.Percent
			if pct == "" {
				pct = "n/a"
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", escapeCell(d.Label), d.Value, d.Change, pct)
		}
		b.WriteString("\n")
	}

	titles := make([]string, 0, len(bundle.MDASections))
	for _, s := range bundle.MDASections {
		titles = append(titles, s.Title)
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", s.Title, strings.TrimSpace(s.Content))
		if len(s.Sources) > 0 {
			b.WriteString("**Sources:**\n")
			for _, src := range s.Sources {
				fmt.Fprintf(&b, "- %s\n", src)
			}
			b.WriteString("\n")
		}
	}

	generated := bundle.CreatedAt
	if generated.IsZero() {
		generated = time.Now()
	}
	b.WriteString("---\n\n## Document Information\n")
	fmt.Fprintf(&b, "- Company: %s\n", bundle.Company)
	if bundle.FileName != "" {
		fmt.Fprintf(&b, "- Source File: %s\n", bundle.FileName)
	}
	fmt.Fprintf(&b, "- Data Period: %s\n", bundle.Period)
	fmt.Fprintf(&b, "- Generated: %s\n", generated.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- Sections: %s\n", strings.Join(titles, ", "))
	return b.String()
}

// Arrow is the trend glyph for a KPI change.
func Arrow(c models.Change) string {
	if c == models.ChangeDown {
		return "↓"
	}
	return "↑"
}

// FileName is the download name of a report.
func FileName(bundle *models.ResultsBundle) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		}
		return '_'
	}, bundle.Company+"_"+bundle.Period)
	return "mda_" + strings.Trim(name, "_") + ".md"
}

var renderer = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// RenderHTML converts report markdown to HTML.
func RenderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := renderer.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return buf.String(), nil
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
