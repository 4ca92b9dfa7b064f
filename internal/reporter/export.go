package reporter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ledger-reconciliation-service/internal/models"
	"ledger-reconciliation-service/pkg/errors"
)

// ExportType selects which part of a result is exported as CSV.
type ExportType string

const (
	ExportMatched        ExportType = "matched"
	ExportUnmatchedBank  ExportType = "unmatched_bank"
	ExportUnmatchedSales ExportType = "unmatched_sales"
	ExportAll            ExportType = "all"
)

var exportPrefixes = map[ExportType]string{
	ExportMatched:        "matched",
	ExportUnmatchedBank:  "unmatched_bank",
	ExportUnmatchedSales: "unmatched_sales",
	ExportAll:            "full_report",
}

// IsValid checks if the export type is supported
func (t ExportType) IsValid() bool {
	_, ok := exportPrefixes[t]
	return ok
}

// ParseExportType validates user input naming an export type.
func ParseExportType(value string) (ExportType, error) {
	t := ExportType(strings.ToLower(strings.TrimSpace(value)))
	if !t.IsValid() {
		return "", errors.ValidationError(errors.CodeInvalidExport, "export_type", value,
			fmt.Errorf("export type must be one of matched, unmatched_bank, unmatched_sales, all"))
	}
	return t, nil
}

// Exporter renders reconciliation results as CSV files.
type Exporter struct {
	now func() time.Time
}

// NewExporter creates an exporter using the wall clock for timestamps.
func NewExporter() *Exporter {
	return &Exporter{now: time.Now}
}

// Filename returns a timestamped file name for an export of type t.
func (e *Exporter) Filename(t ExportType) string {
	return fmt.Sprintf("%s_%s.csv", exportPrefixes[t], e.now().Format("20060102_150405"))
}

// Generate renders the export in memory and returns it with its file name.
func (e *Exporter) Generate(result *models.ReconciliationResult, t ExportType) ([]byte, string, error) {
	var buf bytes.Buffer
	if err := e.Write(&buf, result, t); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), e.Filename(t), nil
}

// Write renders the export of type t to w.
func (e *Exporter) Write(w io.Writer, result *models.ReconciliationResult, t ExportType) error {
	if result == nil {
		return errors.ReconciliationError(errors.CodeMissingData, "export", fmt.Errorf("no reconciliation result"))
	}

	cw := csv.NewWriter(w)
	var rows [][]string
	switch t {
	case ExportMatched:
		rows = matchedRows(result.MatchedPairs)
	case ExportUnmatchedBank:
		rows = recordRows(result.UnmatchedBank, true)
	case ExportUnmatchedSales:
		rows = recordRows(result.UnmatchedSales, true)
	case ExportAll:
		rows = e.fullReportRows(result)
	default:
		_, err := ParseExportType(string(t))
		return err
	}

	if err := cw.WriteAll(rows); err != nil {
		return errors.InternalError(errors.CodeUnexpectedError, "write export", err)
	}
	return nil
}

func matchedRows(pairs []*models.MatchedPair) [][]string {
	rows := [][]string{{
		"Match ID", "Match Type", "Confidence",
		"Bank Date", "Bank Amount", "Bank Reference", "Bank Description",
		"Sales Date", "Sales Amount", "Sales Reference", "Sales Description",
		"Amount Difference", "Days Difference",
	}}
	for _, p := range pairs {
		rows = append(rows, []string{
			p.ID,
			p.MatchType.Label(),
			Percent(p.ConfidencePercentage()),
			p.BankRecord.DateString(),
			FormatCurrency(p.BankRecord.Amount),
			p.BankRecord.Reference,
			p.BankRecord.Description,
			p.SalesRecord.DateString(),
			FormatCurrency(p.SalesRecord.Amount),
			p.SalesRecord.Reference,
			p.SalesRecord.Description,
			FormatCurrency(p.AmountDiff),
			strconv.Itoa(p.DateDiff),
		})
	}
	return rows
}

func recordRows(records []*models.TransactionRecord, withID bool) [][]string {
	header := []string{"Date", "Amount", "Reference", "Description"}
	if withID {
		header = append([]string{"ID"}, header...)
	}

	rows := [][]string{header}
	for _, r := range records {
		row := []string{r.DateString(), FormatCurrency(r.Amount), r.Reference, r.Description}
		if withID {
			row = append([]string{r.ID}, row...)
		}
		rows = append(rows, row)
	}
	return rows
}

func (e *Exporter) fullReportRows(result *models.ReconciliationResult) [][]string {
	s := result.Summary
	rows := [][]string{
		{"=== RECONCILIATION SUMMARY ==="},
		{"Report date", e.now().Format("2006-01-02 15:04:05")},
		{"Total bank records", strconv.Itoa(s.TotalBank)},
		{"Total sales records", strconv.Itoa(s.TotalSales)},
		{"Total matched", strconv.Itoa(s.TotalMatched)},
		{"Match rate", Percent(s.MatchRate)},
		{"Exact matches", strconv.Itoa(s.ExactMatches)},
		{"Fuzzy matches", strconv.Itoa(s.FuzzyMatches)},
		{"Bank total", FormatCurrency(s.TotalBankAmount)},
		{"Sales total", FormatCurrency(s.TotalSalesAmount)},
		{"Difference", FormatCurrency(result.Difference())},
		{},
		{"=== MATCHED TRANSACTIONS ==="},
		{"Match Type", "Confidence", "Bank Date", "Bank Amount", "Bank Ref",
			"Sales Date", "Sales Amount", "Sales Ref", "Amount Diff"},
	}
	for _, p := range result.MatchedPairs {
		rows = append(rows, []string{
			p.MatchType.Label(),
			Percent(p.ConfidencePercentage()),
			p.BankRecord.DateString(),
			FormatCurrency(p.BankRecord.Amount),
			p.BankRecord.Reference,
			p.SalesRecord.DateString(),
			FormatCurrency(p.SalesRecord.Amount),
			p.SalesRecord.Reference,
			FormatCurrency(p.AmountDiff),
		})
	}

	rows = append(rows, []string{}, []string{"=== UNMATCHED BANK ==="})
	rows = append(rows, recordRows(result.UnmatchedBank, false)...)
	rows = append(rows, []string{}, []string{"=== UNMATCHED SALES ==="})
	rows = append(rows, recordRows(result.UnmatchedSales, false)...)
	return rows
}

// FormatCurrency renders an amount as $ with two decimals, e.g. $-12.50.
func FormatCurrency(amount decimal.Decimal) string {
	return "$" + amount.StringFixed(2)
}

// Percent renders a percentage with one decimal, e.g. 95.0%.
func Percent(value float64) string {
	return strconv.FormatFloat(value, 'f', 1, 64) + "%"
}
