package financials

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Statement source names used as citation labels.
const (
	SourceIncome   = "Income Statement"
	SourceBalance  = "Balance Sheet"
	SourceCashFlow = "Cash Flow Statement"
	SourceOther    = "Other Reported Metrics"
	SourceKPIs     = "Key Performance Indicators"
)

var statementMetrics = []struct {
	source  string
	metrics []string
}{
	{SourceIncome, []string{Revenue, COGS, GrossProfit, OperatingExpense, OperatingIncome, NetIncome, EPS}},
	{SourceBalance, []string{TotalAssets, TotalLiabilities, ShareholdersEquity, CurrentAssets, CurrentLiabilities, CurrentRatio, Cash}},
	{SourceCashFlow, []string{OperatingCashFlow, InvestingCashFlow, FinancingCashFlow, CapEx}},
}

// Document is one retrievable text derived from the statements.
type Document struct {
	Source string
	Text   string
}

// Narrate renders the dataset as filing-style prose: one document per
// statement, one for the computed KPIs, and one per notes sheet.
func Narrate(ds *Dataset) []Document {
	known := make(map[string]bool)
	var docs []Document
	for _, st := range statementMetrics {
		for _, m := range st.metrics {
			known[m] = true
		}
		if text := narrateMetrics(ds, st.source, st.metrics); text != "" {
			docs = append(docs, Document{Source: st.source, Text: text})
		}
	}

	var other []string
	for _, m := range ds.metricOrder {
		if !known[m] {
			other = append(other, m)
		}
	}
	if text := narrateMetrics(ds, SourceOther, other); text != "" {
		docs = append(docs, Document{Source: SourceOther, Text: text})
	}

	if kpis := ComputeKPIs(ds); len(kpis) > 0 {
		var b strings.Builder
		fmt.Fprintf(&b, "%s key performance indicators for %s.", ds.Company, ds.LatestPeriod())
		for _, k := range kpis {
			fmt.Fprintf(&b, " %s was %s.", k.Label, k.Format())
		}
		docs = append(docs, Document{Source: SourceKPIs, Text: b.String()})
	}

	for _, sheet := range ds.NoteOrder {
		docs = append(docs, Document{Source: sheet, Text: ds.Notes[sheet]})
	}
	return docs
}

func narrateMetrics(ds *Dataset, source string, metrics []string) string {
	var present []string
	for _, m := range metrics {
		if ds.Has(m) {
			present = append(present, m)
		}
	}
	if len(present) == 0 {
		return ""
	}

	var b strings.Builder
	for i, period := range ds.Periods {
		var sentences []string
		for _, m := range present {
			v, ok := ds.Value(m, i)
			if !ok {
				continue
			}
			sentences = append(sentences, describe(ds, m, i, v))
		}
		if len(sentences) == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%s %s for %s. %s", ds.Company, source, period, strings.Join(sentences, " "))
	}
	return b.String()
}

func describe(ds *Dataset, metric string, i int, v float64) string {
	s := fmt.Sprintf("%s was %s", Label(metric), FormatAmount(v))
	if prev, ok := ds.Value(metric, i-1); ok && prev != 0 {
		s += fmt.Sprintf(", %s from %s", movement((v-prev)/math.Abs(prev)*100), ds.Periods[i-1])
	}
	if i >= yoyLag {
		if prev, ok := ds.Value(metric, i-yoyLag); ok && prev != 0 {
			s += fmt.Sprintf(" and %s year over year", movement((v-prev)/math.Abs(prev)*100))
		}
	}
	return s + "."
}

func movement(pct float64) string {
	switch {
	case pct > 0:
		return fmt.Sprintf("up %.1f%%", pct)
	case pct < 0:
		return fmt.Sprintf("down %.1f%%", -pct)
	default:
		return "unchanged"
	}
}

// FormatAmount renders v with thousands separators, keeping up to two
// decimals for fractional values.
func FormatAmount(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	var s string
	if v == math.Trunc(v) {
		s = strconv.FormatFloat(v, 'f', 0, 64)
	} else {
		s = strconv.FormatFloat(v, 'f', 2, 64)
	}

	intPart, frac := s, ""
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		intPart, frac = s[:dot], s[dot:]
	}
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + frac
	if neg {
		return "-" + out
	}
	return out
}
