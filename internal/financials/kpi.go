package financials

import (
	"fmt"
	"math"

	"github.com/automated-mda/backend/internal/models"
)

// KPI keys.
const (
	KeyGrossMargin      = "gross_margin_pct"
	KeyOperatingMargin  = "operating_margin_pct"
	KeyNetMargin        = "net_margin_pct"
	KeyDebtToEquity     = "debt_to_equity"
	KeyCurrentRatio     = "current_ratio"
	KeyROE              = "roe_pct"
	KeyRevenueGrowthYoY = "yoy_revenue_growth_pct"
	KeyRevenueGrowthQoQ = "qoq_revenue_growth_pct"
)

// Unit of a KPI value.
type Unit int

const (
	UnitPercent Unit = iota
	UnitRatio
)

// yoyLag is the number of quarterly periods in a year.
const yoyLag = 4

// KPI is one computed indicator at a period.
type KPI struct {
	Key    string
	Label  string
	Value  float64
	Unit   Unit
	Period string
}

// Format renders the value for display.
func (k KPI) Format() string {
	switch {
	case k.Unit == UnitRatio:
		return fmt.Sprintf("%.2fx", k.Value)
	case k.Key == KeyRevenueGrowthYoY || k.Key == KeyRevenueGrowthQoQ:
		return fmt.Sprintf("%+.1f%%", k.Value)
	default:
		return fmt.Sprintf("%.1f%%", k.Value)
	}
}

// KPISet is an ordered set of KPIs.
type KPISet []KPI

// Get looks up a KPI by key.
func (s KPISet) Get(key string) (KPI, bool) {
	for _, k := range s {
		if k.Key == key {
			return k, true
		}
	}
	return KPI{}, false
}

// ComputeKPIs computes the indicators at the latest period. Indicators
// whose inputs are missing or whose denominator is zero are omitted.
func ComputeKPIs(ds *Dataset) KPISet {
	return KPIsAt(ds, len(ds.Periods)-1)
}

// KPIsAt computes the indicators at period index i.
func KPIsAt(ds *Dataset, i int) KPISet {
	if i < 0 || i >= len(ds.Periods) {
		return nil
	}
	period := ds.Periods[i]
	var out KPISet
	add := func(key, label string, unit Unit, num, den float64, scale float64) {
		if den == 0 || math.IsNaN(num) || math.IsNaN(den) {
			return
		}
		out = append(out, KPI{Key: key, Label: label, Value: num / den * scale, Unit: unit, Period: period})
	}

	rev, hasRev := ds.Value(Revenue, i)
	if gp, ok := grossProfit(ds, i); ok && hasRev {
		add(KeyGrossMargin, "Gross Margin", UnitPercent, gp, rev, 100)
	}
	if oi, ok := operatingIncome(ds, i); ok && hasRev {
		add(KeyOperatingMargin, "Operating Margin", UnitPercent, oi, rev, 100)
	}
	ni, hasNI := ds.Value(NetIncome, i)
	if hasNI && hasRev {
		add(KeyNetMargin, "Net Margin", UnitPercent, ni, rev, 100)
	}

	eq, hasEq := equity(ds, i)
	if liab, ok := ds.Value(TotalLiabilities, i); ok && hasEq {
		add(KeyDebtToEquity, "Debt-to-Equity", UnitRatio, liab, eq, 1)
	}
	if cr, ok := currentRatio(ds, i); ok {
		out = append(out, KPI{Key: KeyCurrentRatio, Label: "Current Ratio", Value: cr, Unit: UnitRatio, Period: period})
	}
	if hasNI && hasEq {
		add(KeyROE, "ROE", UnitPercent, ni, eq, 100)
	}

	if hasRev && i >= yoyLag {
		if prev, ok := ds.Value(Revenue, i-yoyLag); ok {
			add(KeyRevenueGrowthYoY, "Revenue Growth (YoY)", UnitPercent, rev-prev, prev, 100)
		}
	}
	if hasRev && i >= 1 {
		if prev, ok := ds.Value(Revenue, i-1); ok {
			add(KeyRevenueGrowthQoQ, "Revenue Growth (QoQ)", UnitPercent, rev-prev, prev, 100)
		}
	}
	return out
}

func grossProfit(ds *Dataset, i int) (float64, bool) {
	if v, ok := ds.Value(GrossProfit, i); ok {
		return v, true
	}
	rev, ok1 := ds.Value(Revenue, i)
	cogs, ok2 := ds.Value(COGS, i)
	return rev - cogs, ok1 && ok2
}

func operatingIncome(ds *Dataset, i int) (float64, bool) {
	if v, ok := ds.Value(OperatingIncome, i); ok {
		return v, true
	}
	gp, ok1 := grossProfit(ds, i)
	opex, ok2 := ds.Value(OperatingExpense, i)
	return gp - opex, ok1 && ok2
}

func equity(ds *Dataset, i int) (float64, bool) {
	if v, ok := ds.Value(ShareholdersEquity, i); ok {
		return v, true
	}
	assets, ok1 := ds.Value(TotalAssets, i)
	liab, ok2 := ds.Value(TotalLiabilities, i)
	return assets - liab, ok1 && ok2
}

func currentRatio(ds *Dataset, i int) (float64, bool) {
	if v, ok := ds.Value(CurrentRatio, i); ok {
		return v, true
	}
	ca, ok1 := ds.Value(CurrentAssets, i)
	cl, ok2 := ds.Value(CurrentLiabilities, i)
	if !ok1 || !ok2 || cl == 0 {
		return 0, false
	}
	return ca / cl, true
}

// Delta is the change of one metric from the previous period.
type Delta struct {
	Period   string
	Abs      float64
	Pct      float64
	Valid    bool // both periods have values
	PctValid bool // previous value is non-zero
}

// ComputeDeltas returns, per metric, one Delta per period. The first
// period never has a valid delta.
func ComputeDeltas(ds *Dataset) map[string][]Delta {
	out := make(map[string][]Delta, len(ds.Series))
	for metric := range ds.Series {
		deltas := make([]Delta, len(ds.Periods))
		for i, p := range ds.Periods {
			deltas[i].Period = p
			if i == 0 {
				continue
			}
			cur, ok1 := ds.Value(metric, i)
			prev, ok2 := ds.Value(metric, i-1)
			if !ok1 || !ok2 {
				continue
			}
			deltas[i].Abs = cur - prev
			deltas[i].Valid = true
			if prev != 0 {
				deltas[i].Pct = (cur - prev) / prev * 100
				deltas[i].PctValid = true
			}
		}
		out[metric] = deltas
	}
	return out
}

// LatestDeltas formats the valid deltas of the latest period in metric
// order. deltas is the output of ComputeDeltas.
func LatestDeltas(ds *Dataset, deltas map[string][]Delta) []models.MetricDelta {
	last := len(ds.Periods) - 1
	if last < 1 {
		return nil
	}
	var out []models.MetricDelta
	for _, metric := range ds.Metrics() {
		series := deltas[metric]
		if len(series) <= last || !series[last].Valid {
			continue
		}
		d := series[last]
		cur, _ := ds.Value(metric, last)
		md := models.MetricDelta{
			Metric:    metric,
			Label:     Label(metric),
			Period:    d.Period,
			Value:     FormatAmount(cur),
			Change:    FormatAmount(d.Abs),
			Direction: models.ChangeUp,
		}
		if d.Abs >= 0 {
			md.Change = "+" + md.Change
		} else {
			md.Direction = models.ChangeDown
		}
		if d.PctValid {
			md.Percent = fmt.Sprintf("%+.1f%%", d.Pct)
		}
		out = append(out, md)
	}
	return out
}

// cardSpec describes one KPI card.
type cardSpec struct {
	key           string
	lowerIsBetter bool
	// critical reports values that are alarming regardless of trend.
	critical func(float64) bool
}

var cardSpecs = []cardSpec{
	{key: KeyGrossMargin, critical: negative},
	{key: KeyOperatingMargin, critical: negative},
	{key: KeyROE, critical: negative},
	{key: KeyNetMargin, critical: negative},
	{key: KeyDebtToEquity, lowerIsBetter: true, critical: func(v float64) bool { return v > 2 || v < 0 }},
	{key: KeyCurrentRatio, critical: func(v float64) bool { return v < 1 }},
}

func negative(v float64) bool { return v < 0 }

// Cards converts the latest KPIs into display cards. The first card is
// revenue growth, year-over-year when four prior periods exist and
// quarter-over-quarter otherwise.
//
// Change is the direction against the previous period (the sign for
// growth). Color is error when the value is critical, success when the
// trend is favourable, warning otherwise.
func Cards(ds *Dataset) []models.KPI {
	last := len(ds.Periods) - 1
	cur := KPIsAt(ds, last)
	prev := KPIsAt(ds, last-1)

	var cards []models.KPI
	if g, ok := cur.Get(KeyRevenueGrowthYoY); ok {
		cards = append(cards, growthCard(g))
	} else if g, ok := cur.Get(KeyRevenueGrowthQoQ); ok {
		cards = append(cards, growthCard(g))
	}

	for _, spec := range cardSpecs {
		k, ok := cur.Get(spec.key)
		if !ok {
			continue
		}
		change := models.ChangeUp
		if p, ok := prev.Get(spec.key); ok && k.Value < p.Value {
			change = models.ChangeDown
		}
		favourable := change == models.ChangeUp
		if spec.lowerIsBetter {
			favourable = !favourable
			if p, ok := prev.Get(spec.key); ok && k.Value == p.Value {
				favourable = true
			}
		}
		tone := models.ToneWarning
		switch {
		case spec.critical(k.Value):
			tone = models.ToneError
		case favourable:
			tone = models.ToneSuccess
		}
		cards = append(cards, models.KPI{Label: k.Label, Value: k.Format(), Change: change, Color: tone})
	}
	return cards
}

func growthCard(k KPI) models.KPI {
	card := models.KPI{Label: k.Label, Value: k.Format(), Change: models.ChangeUp, Color: models.ToneSuccess}
	switch {
	case k.Value < -5:
		card.Change, card.Color = models.ChangeDown, models.ToneError
	case k.Value < 0:
		card.Change, card.Color = models.ChangeDown, models.ToneWarning
	}
	return card
}
