package models

// DemoResultsID is the results identifier served for the sample bundle.
const DemoResultsID = "demo"

// DemoResults returns the sample bundle shown on /results before any
// upload has been processed. Each call returns a fresh copy.
func DemoResults() *ResultsBundle {
	return &ResultsBundle{
		ID:       DemoResultsID,
		FileName: "AAPL_2023_10K.xlsx",
		Company:  "Apple Inc.",
		Period:   "Q4 2023",
		KPIs: []KPI{
			{Label: "Revenue Growth (YoY)", Value: "+12.4%", Change: ChangeUp, Color: ToneSuccess},
			{Label: "Gross Margin", Value: "48.2%", Change: ChangeUp, Color: ToneSuccess},
			{Label: "Operating Margin", Value: "31.5%", Change: ChangeDown, Color: ToneWarning},
			{Label: "ROE", Value: "156.8%", Change: ChangeUp, Color: ToneSuccess},
		},
		MDASections: []MDASection{
			{
				Title:   "Revenue Overview",
				Content: "Total net sales increased 12.4% year-over-year to $383.3 billion, driven primarily by strong iPhone sales and services growth. The iPhone segment contributed $192.5 billion (+8.2% YoY), while Services reached $85.2 billion (+16.5% YoY), demonstrating the company's successful transition toward recurring revenue streams.",
				Sources: []string{"SEC Filing - Segment Revenue", "Management Discussion p. 23-24"},
			},
			{
				Title:   "Cost of Goods & Gross Margin",
				Content: "Gross margin improved to 48.2% from 46.8% in the prior year, reflecting improved supply chain efficiency and favorable product mix. The company maintained strong pricing power while managing component costs effectively. International revenue, which carries higher margins, represented 47% of net sales.",
				Sources: []string{"SEC Filing - Cost Analysis", "Notes to Financial Statements p. 15"},
			},
			{
				Title:   "Risk Factors & Challenges",
				Content: "Key risks include continued geopolitical tensions impacting supply chains, competitive pressure in emerging markets, and foreign exchange headwinds. The company faces regulatory scrutiny in the EU and China, which could impact App Store economics. Supply chain disruptions, while improving, remain a concern for future growth.",
				Sources: []string{"Risk Factors Section p. 8-12", "Forward-Looking Statements"},
			},
			{
				Title:   "Liquidity & Capital Allocation",
				Content: "The company maintains a strong balance sheet with $47.8 billion in cash and cash equivalents. Operating cash flow reached $110.2 billion (+6.3% YoY), funding capital expenditures of $12.5 billion and shareholder returns of $98.2 billion through dividends and buybacks. Debt-to-equity ratio remains conservative at 1.84x.",
				Sources: []string{"Cash Flow Statement", "Capital Allocation Policy p. 31-33"},
			},
		},
	}
}
