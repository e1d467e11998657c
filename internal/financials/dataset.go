// Package financials reads statement extracts and derives KPIs, deltas and
// filing-style narration from them.
package financials

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Canonical metric keys.
const (
	Revenue            = "revenue"
	COGS               = "cogs"
	GrossProfit        = "gross_profit"
	OperatingExpense   = "operating_expense"
	OperatingIncome    = "operating_income"
	NetIncome          = "net_income"
	EPS                = "eps"
	TotalAssets        = "total_assets"
	TotalLiabilities   = "total_liabilities"
	ShareholdersEquity = "shareholders_equity"
	CurrentAssets      = "current_assets"
	CurrentLiabilities = "current_liabilities"
	CurrentRatio       = "current_ratio"
	Cash               = "cash"
	OperatingCashFlow  = "operating_cash_flow"
	InvestingCashFlow  = "investing_cash_flow"
	FinancingCashFlow  = "financing_cash_flow"
	CapEx              = "capex"

	companyKey = "company"
)

var aliases = map[string]string{
	"revenue":                            Revenue,
	"revenues":                           Revenue,
	"total_revenue":                      Revenue,
	"total_revenues":                     Revenue,
	"net_revenue":                        Revenue,
	"net_sales":                          Revenue,
	"total_net_sales":                    Revenue,
	"sales":                              Revenue,
	"cogs":                               COGS,
	"cost_of_goods_sold":                 COGS,
	"cost_of_revenue":                    COGS,
	"cost_of_sales":                      COGS,
	"gross_profit":                       GrossProfit,
	"gross_margin_amount":                GrossProfit,
	"operating_expense":                  OperatingExpense,
	"operating_expenses":                 OperatingExpense,
	"total_operating_expenses":           OperatingExpense,
	"opex":                               OperatingExpense,
	"operating_income":                   OperatingIncome,
	"income_from_operations":             OperatingIncome,
	"operating_profit":                   OperatingIncome,
	"ebit":                               OperatingIncome,
	"net_income":                         NetIncome,
	"net_earnings":                       NetIncome,
	"net_profit":                         NetIncome,
	"eps":                                EPS,
	"earnings_per_share":                 EPS,
	"diluted_eps":                        EPS,
	"total_assets":                       TotalAssets,
	"total_liabilities":                  TotalLiabilities,
	"shareholders_equity":                ShareholdersEquity,
	"stockholders_equity":                ShareholdersEquity,
	"total_shareholders_equity":          ShareholdersEquity,
	"total_stockholders_equity":          ShareholdersEquity,
	"total_equity":                       ShareholdersEquity,
	"equity":                             ShareholdersEquity,
	"current_assets":                     CurrentAssets,
	"total_current_assets":               CurrentAssets,
	"current_liabilities":                CurrentLiabilities,
	"total_current_liabilities":          CurrentLiabilities,
	"current_ratio":                      CurrentRatio,
	"cash":                               Cash,
	"cash_and_cash_equivalents":          Cash,
	"cash_and_equivalents":               Cash,
	"operating_cash_flow":                OperatingCashFlow,
	"cash_from_operations":               OperatingCashFlow,
	"net_cash_from_operating_activities": OperatingCashFlow,
	"investing_cash_flow":                InvestingCashFlow,
	"net_cash_from_investing_activities": InvestingCashFlow,
	"financing_cash_flow":                FinancingCashFlow,
	"net_cash_from_financing_activities": FinancingCashFlow,
	"capex":                              CapEx,
	"capital_expenditure":                CapEx,
	"capital_expenditures":               CapEx,
	"company":                            companyKey,
	"company_name":                       companyKey,
	"registrant":                         companyKey,
}

var labels = map[string]string{
	Revenue:            "Revenue",
	COGS:               "Cost of Goods Sold",
	GrossProfit:        "Gross Profit",
	OperatingExpense:   "Operating Expense",
	OperatingIncome:    "Operating Income",
	NetIncome:          "Net Income",
	EPS:                "EPS",
	TotalAssets:        "Total Assets",
	TotalLiabilities:   "Total Liabilities",
	ShareholdersEquity: "Shareholders' Equity",
	CurrentAssets:      "Current Assets",
	CurrentLiabilities: "Current Liabilities",
	CurrentRatio:       "Current Ratio",
	Cash:               "Cash and Equivalents",
	OperatingCashFlow:  "Operating Cash Flow",
	InvestingCashFlow:  "Investing Cash Flow",
	FinancingCashFlow:  "Financing Cash Flow",
	CapEx:              "Capital Expenditures",
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeHeader lowercases s and collapses every non-alphanumeric run
// into a single underscore.
func NormalizeHeader(s string) string {
	s = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "'", "")
	return strings.Trim(nonAlnum.ReplaceAllString(s, "_"), "_")
}

// Canonical maps a raw header onto its canonical metric key. Unknown
// headers are returned normalized.
func Canonical(header string) string {
	n := NormalizeHeader(header)
	if c, ok := aliases[n]; ok {
		return c
	}
	return n
}

// Label is the display name of a metric key.
func Label(metric string) string {
	if l, ok := labels[metric]; ok {
		return l
	}
	words := strings.Split(metric, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// ParseNumber parses a statement cell. It accepts currency symbols,
// thousands separators, percent signs and accounting negatives "(123)".
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" || s == "\u2014" {
		return 0, false
	}
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	s = strings.NewReplacer("$", "", ",", "", "%", "", " ", "").Replace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	if neg {
		v = -v
	}
	return v, true
}

// Dataset is a normalized view of one uploaded statement file. Every
// series has one entry per period; missing values are NaN.
type Dataset struct {
	Company   string
	Periods   []string
	Series    map[string][]float64
	Sources   map[string]string // metric → sheet it was read from
	Notes     map[string]string // sheet → free text
	NoteOrder []string

	metricOrder []string
	periodIndex map[string]int
}

// NewDataset returns an empty dataset.
func NewDataset() *Dataset {
	return &Dataset{
		Series:      make(map[string][]float64),
		Sources:     make(map[string]string),
		Notes:       make(map[string]string),
		periodIndex: make(map[string]int),
	}
}

// Metrics returns metric keys in first-seen order.
func (d *Dataset) Metrics() []string {
	out := make([]string, len(d.metricOrder))
	copy(out, d.metricOrder)
	return out
}

// Has reports whether metric has at least one value.
func (d *Dataset) Has(metric string) bool {
	for _, v := range d.Series[metric] {
		if !math.IsNaN(v) {
			return true
		}
	}
	return false
}

// Value returns the value of metric at period index i.
func (d *Dataset) Value(metric string, i int) (float64, bool) {
	s, ok := d.Series[metric]
	if !ok || i < 0 || i >= len(s) || math.IsNaN(s[i]) {
		return 0, false
	}
	return s[i], true
}

// LatestPeriod is the last period label, or "".
func (d *Dataset) LatestPeriod() string {
	if len(d.Periods) == 0 {
		return ""
	}
	return d.Periods[len(d.Periods)-1]
}

// Set records value for metric at period, creating either as needed.
func (d *Dataset) Set(period, metric string, value float64, sheet string) {
	i := d.ensurePeriod(period)
	s, ok := d.Series[metric]
	if !ok {
		s = nanSlice(len(d.Periods))
		d.metricOrder = append(d.metricOrder, metric)
		d.Sources[metric] = sheet
	}
	s[i] = value
	d.Series[metric] = s
}

// AddNote appends free text under sheet.
func (d *Dataset) AddNote(sheet, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if existing, ok := d.Notes[sheet]; ok {
		d.Notes[sheet] = existing + "\n" + text
		return
	}
	d.Notes[sheet] = text
	d.NoteOrder = append(d.NoteOrder, sheet)
}

func (d *Dataset) ensurePeriod(period string) int {
	if i, ok := d.periodIndex[period]; ok {
		return i
	}
	i := len(d.Periods)
	d.Periods = append(d.Periods, period)
	d.periodIndex[period] = i
	for k, s := range d.Series {
		d.Series[k] = append(s, math.NaN())
	}
	return i
}

func nanSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}
