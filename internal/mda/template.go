package mda

import (
	"context"
	"fmt"
	"strings"

	"github.com/automated-mda/backend/internal/financials"
	"github.com/automated-mda/backend/internal/rag"
)

// TemplateNarrator writes deterministic prose from the dataset and KPIs.
type TemplateNarrator struct{}

func (TemplateNarrator) Narrate(ctx context.Context, b Brief) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var paras []string
	switch b.Section.Kind {
	case KindRevenue:
		paras = revenueNarrative(b)
	case KindProfitability:
		paras = profitabilityNarrative(b)
	case KindLiquidity:
		paras = liquidityNarrative(b)
	case KindRisk:
		paras = riskNarrative(b)
	default:
		return "", fmt.Errorf("unknown section kind %q", b.Section.Kind)
	}
	if quote := commentary(b.Excerpts); quote != "" {
		paras = append(paras, quote)
	}
	return strings.Join(paras, "\n\n"), nil
}

func revenueNarrative(b Brief) []string {
	ds := b.Dataset
	last := len(ds.Periods) - 1
	rev, _ := ds.Value(financials.Revenue, last)

	s := fmt.Sprintf("%s reported revenue of %s for %s", b.Company, financials.FormatAmount(rev), b.Period)
	if prev, ok := ds.Value(financials.Revenue, last-1); ok {
		s += fmt.Sprintf(", %s compared with %s in %s", changePhrase(rev, prev), financials.FormatAmount(prev), ds.Periods[last-1])
	}
	s += "."
	if g, ok := b.KPIs.Get(financials.KeyRevenueGrowthYoY); ok {
		s += fmt.Sprintf(" Year-over-year revenue growth was %s.", g.Format())
	}
	paras := []string{s}

	if len(ds.Periods) > 2 {
		first, _ := ds.Value(financials.Revenue, 0)
		increases := 0
		for i := 1; i <= last; i++ {
			cur, ok1 := ds.Value(financials.Revenue, i)
			prev, ok2 := ds.Value(financials.Revenue, i-1)
			if ok1 && ok2 && cur > prev {
				increases++
			}
		}
		paras = append(paras, fmt.Sprintf(
			"Across the %d reported periods revenue moved from %s in %s to %s in %s, increasing in %d of %d sequential comparisons.",
			len(ds.Periods), financials.FormatAmount(first), ds.Periods[0], financials.FormatAmount(rev), b.Period, increases, last))
	}
	return paras
}

func profitabilityNarrative(b Brief) []string {
	ds := b.Dataset
	prev := financials.KPIsAt(ds, len(ds.Periods)-2)

	var parts []string
	for _, key := range []string{financials.KeyGrossMargin, financials.KeyOperatingMargin, financials.KeyNetMargin} {
		k, ok := b.KPIs.Get(key)
		if !ok {
			continue
		}
		s := fmt.Sprintf("%s was %s", strings.ToLower(k.Label), k.Format())
		if p, ok := prev.Get(key); ok {
			s += fmt.Sprintf(" (%s)", bpsPhrase(k.Value-p.Value, ds.Periods[len(ds.Periods)-2]))
		}
		parts = append(parts, s)
	}

	var paras []string
	if len(parts) > 0 {
		paras = append(paras, fmt.Sprintf("For %s, %s.", b.Period, joinClauses(parts)))
	} else {
		paras = append(paras, fmt.Sprintf("The statements for %s do not include the cost and expense lines needed to compute margins.", b.Period))
	}

	if ni, ok := ds.Value(financials.NetIncome, len(ds.Periods)-1); ok {
		s := fmt.Sprintf("Net income was %s", financials.FormatAmount(ni))
		if roe, ok := b.KPIs.Get(financials.KeyROE); ok {
			s += fmt.Sprintf(", a return on equity of %s for the period", roe.Format())
		}
		paras = append(paras, s+".")
	}
	return paras
}

func liquidityNarrative(b Brief) []string {
	ds := b.Dataset
	last := len(ds.Periods) - 1

	var parts []string
	if cr, ok := b.KPIs.Get(financials.KeyCurrentRatio); ok {
		parts = append(parts, fmt.Sprintf("a current ratio of %s", cr.Format()))
	}
	if de, ok := b.KPIs.Get(financials.KeyDebtToEquity); ok {
		parts = append(parts, fmt.Sprintf("a debt-to-equity ratio of %s", de.Format()))
	}
	if cash, ok := ds.Value(financials.Cash, last); ok {
		parts = append(parts, fmt.Sprintf("cash and equivalents of %s", financials.FormatAmount(cash)))
	}

	var paras []string
	if len(parts) > 0 {
		paras = append(paras, fmt.Sprintf("As of %s the company reported %s.", b.Period, joinClauses(parts)))
	}

	var flows []string
	for _, m := range []string{financials.OperatingCashFlow, financials.InvestingCashFlow, financials.FinancingCashFlow, financials.CapEx} {
		v, ok := ds.Value(m, last)
		if !ok {
			continue
		}
		s := fmt.Sprintf("%s of %s", strings.ToLower(financials.Label(m)), financials.FormatAmount(v))
		if prev, ok := ds.Value(m, last-1); ok {
			s += fmt.Sprintf(" (%s)", changePhrase(v, prev))
		}
		flows = append(flows, s)
	}
	if len(flows) > 0 {
		paras = append(paras, fmt.Sprintf("Cash flows for the period comprised %s.", joinClauses(flows)))
	}
	if len(paras) == 0 {
		paras = append(paras, fmt.Sprintf("No balance sheet or cash flow data was provided for %s.", b.Period))
	}
	return paras
}

func riskNarrative(b Brief) []string {
	ds := b.Dataset
	last := len(ds.Periods) - 1
	prev := financials.KPIsAt(ds, last-1)

	var risks []string
	if g, ok := b.KPIs.Get(financials.KeyRevenueGrowthYoY); ok && g.Value < 0 {
		risks = append(risks, fmt.Sprintf("revenue declined %.1f%% year over year", -g.Value))
	} else if g, ok := b.KPIs.Get(financials.KeyRevenueGrowthQoQ); ok && g.Value < 0 {
		risks = append(risks, fmt.Sprintf("revenue declined %.1f%% from the prior period", -g.Value))
	}
	for _, key := range []string{financials.KeyGrossMargin, financials.KeyOperatingMargin, financials.KeyNetMargin} {
		k, ok1 := b.KPIs.Get(key)
		p, ok2 := prev.Get(key)
		if ok1 && ok2 && k.Value < p.Value {
			risks = append(risks, fmt.Sprintf("%s compressed by %.0f basis points", strings.ToLower(k.Label), (p.Value-k.Value)*100))
		}
	}
	if de, ok := b.KPIs.Get(financials.KeyDebtToEquity); ok && de.Value > 2 {
		risks = append(risks, fmt.Sprintf("leverage is elevated at %s debt-to-equity", de.Format()))
	}
	if cr, ok := b.KPIs.Get(financials.KeyCurrentRatio); ok && cr.Value < 1 {
		risks = append(risks, fmt.Sprintf("the current ratio of %s indicates short-term obligations exceed current assets", cr.Format()))
	}
	if ocf, ok := ds.Value(financials.OperatingCashFlow, last); ok && ocf < 0 {
		risks = append(risks, "operating cash flow was negative")
	}

	if len(risks) == 0 {
		return []string{fmt.Sprintf("The reported figures for %s show no declining revenue, margin compression or liquidity stress. Results remain exposed to competitive, regulatory and macroeconomic conditions that the statements alone do not capture.", b.Period)}
	}
	return []string{fmt.Sprintf("Areas warranting attention in %s: %s.", b.Period, joinClauses(risks))}
}

// commentary quotes the leading sentence of excerpts that come from notes
// rather than the numeric statements.
func commentary(excerpts []rag.Match) string {
	statement := map[string]bool{
		financials.SourceIncome:   true,
		financials.SourceBalance:  true,
		financials.SourceCashFlow: true,
		financials.SourceOther:    true,
		financials.SourceKPIs:     true,
	}
	var quotes []string
	for _, m := range excerpts {
		if statement[m.Source] {
			continue
		}
		if s := firstSentence(m.Text); s != "" {
			quotes = append(quotes, fmt.Sprintf("%q (%s)", s, m.Source))
		}
	}
	if len(quotes) == 0 {
		return ""
	}
	return "Management commentary: " + strings.Join(quotes, "; ") + "."
}

func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexAny(text, ".!?"); i >= 0 {
		return text[:i+1]
	}
	return text
}

func changePhrase(cur, prev float64) string {
	switch {
	case prev == 0:
		return "compared with nil"
	case cur > prev:
		return fmt.Sprintf("up %.1f%%", (cur-prev)/abs(prev)*100)
	case cur < prev:
		return fmt.Sprintf("down %.1f%%", (prev-cur)/abs(prev)*100)
	default:
		return "unchanged"
	}
}

func bpsPhrase(diffPct float64, period string) string {
	bps := diffPct * 100
	switch {
	case bps >= 0.5:
		return fmt.Sprintf("up %.0f bps from %s", bps, period)
	case bps <= -0.5:
		return fmt.Sprintf("down %.0f bps from %s", -bps, period)
	default:
		return fmt.Sprintf("flat versus %s", period)
	}
}

func joinClauses(parts []string) string {
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	case 2:
		return parts[0] + " and " + parts[1]
	}
	return strings.Join(parts[:len(parts)-1], ", ") + ", and " + parts[len(parts)-1]
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
