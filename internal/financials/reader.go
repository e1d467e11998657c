package financials

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrNoPeriods         = errors.New("no reporting periods found")
	ErrMissingRevenue    = errors.New("no revenue series found")
)

// ValidationError reports a statement file that parsed but cannot be
// analysed.
type ValidationError struct {
	File string
	Err  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid financial statements in %s: %v", e.File, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// periodHeaders are first-column headers that mark a period-per-row table.
var periodHeaders = map[string]bool{
	"quarter":        true,
	"period":         true,
	"year":           true,
	"date":           true,
	"fiscal_period":  true,
	"fiscal_quarter": true,
	"fiscal_year":    true,
}

// notesSheetWords mark sheets that hold free text instead of numbers.
var notesSheetWords = []string{"note", "filing", "md_a", "mda", "risk"}

// ReadFile reads the statement file at path. name is the user-facing file
// name and selects the format by extension.
func ReadFile(path, name string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open statements: %w", err)
	}
	defer f.Close()
	return Read(f, name)
}

// Read parses a CSV or XLSX statement extract and validates the result.
func Read(r io.Reader, name string) (*Dataset, error) {
	var (
		ds  *Dataset
		err error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		ds, err = readCSV(r, name)
	case ".xlsx":
		ds, err = readXLSX(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(name))
	}
	if err != nil {
		return nil, err
	}

	if ds.Company == "" {
		ds.Company = CompanyFromFileName(name)
	}
	if err := validate(ds); err != nil {
		return nil, &ValidationError{File: name, Err: err}
	}

	log.Debug().
		Str("file", name).
		Str("company", ds.Company).
		Int("periods", len(ds.Periods)).
		Int("metrics", len(ds.metricOrder)).
		Int("notes", len(ds.NoteOrder)).
		Msg("Statements parsed")
	return ds, nil
}

// CompanyFromFileName derives a company name from the first token of the
// file stem, e.g. "AAPL_2023_10K.xlsx" → "AAPL".
func CompanyFromFileName(name string) string {
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	fields := strings.FieldsFunc(stem, func(r rune) bool {
		return r == '_' || r == '-' || r == ' ' || r == '.'
	})
	if len(fields) == 0 {
		return "Unknown Company"
	}
	return fields[0]
}

func validate(ds *Dataset) error {
	if len(ds.Periods) == 0 {
		return ErrNoPeriods
	}
	if !ds.Has(Revenue) {
		return ErrMissingRevenue
	}
	return nil
}

func readCSV(r io.Reader, name string) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}

	// A CSV is always a single statement table; its file name is not a
	// sheet name and never selects notes or company handling.
	ds := NewDataset()
	sheet := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	parseTable(ds, sheet, trimRows(rows))
	return ds, nil
}

func readXLSX(r io.Reader) (*Dataset, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	ds := NewDataset()
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			log.Warn().Err(err).Str("sheet", sheet).Msg("Skipping unreadable sheet")
			continue
		}
		parseSheet(ds, sheet, rows)
	}
	return ds, nil
}

// parseSheet folds one table into ds.
func parseSheet(ds *Dataset, sheet string, rows [][]string) {
	rows = trimRows(rows)
	if len(rows) == 0 {
		return
	}

	norm := NormalizeHeader(sheet)
	if norm == companyKey || norm == "company_info" {
		if c := firstValue(rows, companyKey); c != "" {
			ds.Company = c
		}
		return
	}
	for _, w := range notesSheetWords {
		if strings.Contains(norm, w) {
			ds.AddNote(sheet, sheetText(rows))
			return
		}
	}

	parseTable(ds, sheet, rows)
}

// parseTable detects the layout of a statement table and folds it into ds.
func parseTable(ds *Dataset, sheet string, rows [][]string) {
	if len(rows) == 0 {
		return
	}
	header := rows[0]
	if periodHeaders[NormalizeHeader(header[0])] {
		parsePeriodRows(ds, sheet, header, rows[1:])
		return
	}
	parseMetricRows(ds, sheet, header, rows[1:])
}

// parsePeriodRows handles tables with one period per row and one metric
// per column.
func parsePeriodRows(ds *Dataset, sheet string, header []string, rows [][]string) {
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		period := strings.TrimSpace(row[0])
		if period == "" {
			continue
		}
		for j := 1; j < len(header) && j < len(row); j++ {
			metric := Canonical(header[j])
			if metric == "" {
				continue
			}
			cell := strings.TrimSpace(row[j])
			if metric == companyKey {
				if ds.Company == "" && cell != "" {
					ds.Company = cell
				}
				continue
			}
			if v, ok := ParseNumber(cell); ok {
				ds.Set(period, metric, v, sheet)
			}
		}
	}
}

// parseMetricRows handles tables with one metric per row and one period
// per column.
func parseMetricRows(ds *Dataset, sheet string, header []string, rows [][]string) {
	periods := make([]string, len(header))
	found := false
	for j := 1; j < len(header); j++ {
		periods[j] = strings.TrimSpace(header[j])
		found = found || periods[j] != ""
	}
	if !found {
		return
	}

	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		metric := Canonical(row[0])
		if metric == "" {
			continue
		}
		if metric == companyKey {
			if ds.Company == "" && len(row) > 1 {
				ds.Company = strings.TrimSpace(row[1])
			}
			continue
		}
		for j := 1; j < len(row) && j < len(periods); j++ {
			if periods[j] == "" {
				continue
			}
			if v, ok := ParseNumber(row[j]); ok {
				ds.Set(periods[j], metric, v, sheet)
			}
		}
	}
}

// trimRows drops leading blank rows.
func trimRows(rows [][]string) [][]string {
	for len(rows) > 0 && blank(rows[0]) {
		rows = rows[1:]
	}
	return rows
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func sheetText(rows [][]string) string {
	var buf bytes.Buffer
	for _, row := range rows {
		var cells []string
		for _, c := range row {
			if c = strings.TrimSpace(c); c != "" {
				cells = append(cells, c)
			}
		}
		if len(cells) > 0 {
			buf.WriteString(strings.Join(cells, " "))
			buf.WriteByte('\n')
		}
	}
	return buf.String()
}

// firstValue returns the first non-empty cell that is not the label
// itself.
func firstValue(rows [][]string, label string) string {
	for _, row := range rows {
		for _, c := range row {
			c = strings.TrimSpace(c)
			if c != "" && Canonical(c) != label {
				return c
			}
		}
	}
	return ""
}
