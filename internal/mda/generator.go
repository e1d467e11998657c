// Package mda synthesizes Management Discussion and Analysis sections from
// computed KPIs and retrieved statement excerpts.
package mda

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/automated-mda/backend/internal/financials"
	"github.com/automated-mda/backend/internal/models"
	"github.com/automated-mda/backend/internal/rag"
)

// DefaultTopK is the number of excerpts retrieved per section.
const DefaultTopK = 3

// Kind identifies a section.
type Kind string

const (
	KindRevenue       Kind = "revenue"
	KindProfitability Kind = "profitability"
	KindLiquidity     Kind = "liquidity"
	KindRisk          Kind = "risk"
)

// Section describes one MD&A section: its title, the retrieval query and
// the brief handed to the narrator.
type Section struct {
	Kind  Kind
	Title string
	Query string
	Focus string
}

// Sections is the fixed section order of a report.
var Sections = []Section{
	{
		Kind:  KindRevenue,
		Title: "Revenue Overview",
		Query: "revenue net sales growth quarter year over year",
		Focus: "Discuss revenue trends, period-over-period and year-over-year growth, and their drivers.",
	},
	{
		Kind:  KindProfitability,
		Title: "Profitability & Operating Margins",
		Query: "gross margin operating income net income cost of goods sold operating expense",
		Focus: "Discuss gross, operating and net margins, cost behaviour and return on equity.",
	},
	{
		Kind:  KindLiquidity,
		Title: "Liquidity & Capital Resources",
		Query: "cash flow liquidity current ratio total liabilities shareholders equity capital expenditures",
		Focus: "Discuss liquidity, leverage, cash generation and capital allocation.",
	},
	{
		Kind:  KindRisk,
		Title: "Risk Factors & Challenges",
		Query: "risk factors competition regulatory uncertainty decline challenges",
		Focus: "Discuss the principal risks and adverse trends visible in the results and filings.",
	},
}

// Retriever finds excerpts relevant to a query.
type Retriever interface {
	Query(ctx context.Context, text string, k int, source string) ([]rag.Match, error)
}

// Brief is everything a narrator needs to write one section.
type Brief struct {
	Section  Section
	Company  string
	Period   string
	Dataset  *financials.Dataset
	KPIs     financials.KPISet
	Excerpts []rag.Match
}

// Narrator writes the body of one section.
type Narrator interface {
	Narrate(ctx context.Context, b Brief) (string, error)
}

// Generator produces the MD&A sections of a report.
type Generator struct {
	Index    Retriever
	Narrator Narrator
	TopK     int
}

// NewGenerator returns a generator. A nil narrator uses TemplateNarrator.
func NewGenerator(index Retriever, narrator Narrator, topK int) *Generator {
	if narrator == nil {
		narrator = TemplateNarrator{}
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Generator{Index: index, Narrator: narrator, TopK: topK}
}

// Generate writes every section for ds, citing the excerpts retrieved for
// each one.
func (g *Generator) Generate(ctx context.Context, ds *financials.Dataset, kpis financials.KPISet) ([]models.MDASection, error) {
	out := make([]models.MDASection, 0, len(Sections))
	for _, sec := range Sections {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var excerpts []rag.Match
		if g.Index != nil {
			var err error
			excerpts, err = g.Index.Query(ctx, sec.Query, g.TopK, "")
			if err != nil {
				return nil, fmt.Errorf("retrieve context for %s: %w", sec.Title, err)
			}
		}

		brief := Brief{
			Section:  sec,
			Company:  ds.Company,
			Period:   ds.LatestPeriod(),
			Dataset:  ds,
			KPIs:     kpis,
			Excerpts: excerpts,
		}
		content, err := g.Narrator.Narrate(ctx, brief)
		if err != nil {
			return nil, fmt.Errorf("narrate %s: %w", sec.Title, err)
		}

		log.Debug().Str("section", sec.Title).Int("excerpts", len(excerpts)).Msg("Section generated")
		out = append(out, models.MDASection{
			Title:   sec.Title,
			Content: content,
			Sources: Citations(excerpts),
		})
	}
	return out, nil
}

// Citations formats excerpts as "<source> [chunk <id>]".
func Citations(excerpts []rag.Match) []string {
	out := make([]string, 0, len(excerpts))
	for _, m := range excerpts {
		out = append(out, fmt.Sprintf("%s [chunk %s]", m.Source, m.ChunkID))
	}
	return out
}

// BuildContext renders excerpts the way they are quoted to a model.
func BuildContext(title string, excerpts []rag.Match) string {
	s := fmt.Sprintf("## %s\n\nRelevant excerpts from filings:\n", title)
	for i, m := range excerpts {
		s += fmt.Sprintf("\n[Chunk %d from %s]\n%s\n", i+1, m.Source, m.Text)
	}
	return s
}
