// Package reporter renders reconciliation results for people and programs.
//
// Supported output formats:
//   - Console: human-readable summary for terminal display
//   - JSON: structured data for programmatic consumption
//   - YAML: the JSON document rendered as YAML
//   - CSV: one of the CSV exports (matched, unmatched_bank, unmatched_sales, all)
//
// Example usage:
//
//	generator, err := reporter.NewReportGenerator(&reporter.ReportConfig{
//		Format:     reporter.FormatJSON,
//		ExportType: reporter.ExportAll,
//	})
//	err = generator.GenerateReport(result, os.Stdout)
package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"ledger-reconciliation-service/internal/models"
	"ledger-reconciliation-service/pkg/errors"
	"ledger-reconciliation-service/pkg/logger"
)

// OutputFormat represents the supported report output formats.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatYAML    OutputFormat = "yaml"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatYAML, FormatCSV:
		return true
	default:
		return false
	}
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	// ExportType selects the CSV export when Format is csv.
	ExportType ExportType `json:"export_type"`

	IncludeMatched   bool `json:"include_matched"`
	IncludeUnmatched bool `json:"include_unmatched"`

	// MaxListItems caps console lists. Zero means no cap.
	MaxListItems int  `json:"max_list_items"`
	SortByAmount bool `json:"sort_by_amount"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:           FormatConsole,
		ExportType:       ExportAll,
		IncludeMatched:   true,
		IncludeUnmatched: true,
		MaxListItems:     10,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	if c.Format == FormatCSV && !c.ExportType.IsValid() {
		return fmt.Errorf("invalid export type: %s", c.ExportType)
	}
	if c.MaxListItems < 0 {
		return fmt.Errorf("max list items cannot be negative, got %d", c.MaxListItems)
	}
	return nil
}

// ReportGenerator generates reconciliation reports in various formats
type ReportGenerator struct {
	config   *ReportConfig
	exporter *Exporter
	logger   logger.Logger
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "report_config", config.Format, err).
			WithSuggestion("Use one of console, json, yaml or csv")
	}

	return &ReportGenerator{
		config:   config,
		exporter: NewExporter(),
		logger:   logger.GetGlobalLogger().WithComponent("reporter"),
	}, nil
}

// GenerateReport writes the report for result to writer.
func (rg *ReportGenerator) GenerateReport(result *models.ReconciliationResult, writer io.Writer) error {
	if result == nil {
		return errors.ReconciliationError(errors.CodeMissingData, "generate report",
			fmt.Errorf("reconciliation result cannot be nil"))
	}

	rg.logger.WithFields(logger.Fields{
		"format":    rg.config.Format,
		"result_id": result.ID,
	}).Debug("Generating report")

	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleReport(result, writer)
	case FormatJSON:
		return rg.generateJSONReport(result, writer)
	case FormatYAML:
		return rg.generateYAMLReport(result, writer)
	case FormatCSV:
		return rg.exporter.Write(writer, result, rg.config.ExportType)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

// WriteFile writes the report to path, creating or truncating it.
func (rg *ReportGenerator) WriteFile(result *models.ReconciliationResult, path string) error {
	file, err := os.Create(path)
	if err != nil {
		if os.IsPermission(err) {
			return errors.FileError(errors.CodeFilePermission, path, err)
		}
		return errors.FileError("", path, err)
	}

	if err := rg.GenerateReport(result, file); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return errors.FileError("", path, err)
	}

	rg.logger.WithField("output_file", path).Info("Report written")
	return nil
}

// Document is the structured form of a result used by the JSON and YAML
// formats. Sections left out by the configuration are omitted.
type Document struct {
	ID             string                      `json:"id"`
	CreatedAt      time.Time                   `json:"created_at"`
	Summary        models.Summary              `json:"summary"`
	Difference     string                      `json:"difference"`
	MatchedPairs   []*models.MatchedPair       `json:"matched_pairs,omitempty"`
	UnmatchedBank  []*models.TransactionRecord `json:"unmatched_bank,omitempty"`
	UnmatchedSales []*models.TransactionRecord `json:"unmatched_sales,omitempty"`
}

// BuildDocument applies the configuration's section filters to result.
func (rg *ReportGenerator) BuildDocument(result *models.ReconciliationResult) *Document {
	doc := &Document{
		ID:         result.ID,
		CreatedAt:  result.CreatedAt,
		Summary:    result.Summary,
		Difference: result.Difference().StringFixed(2),
	}
	if rg.config.IncludeMatched {
		doc.MatchedPairs = result.MatchedPairs
	}
	if rg.config.IncludeUnmatched {
		doc.UnmatchedBank = result.UnmatchedBank
		doc.UnmatchedSales = result.UnmatchedSales
	}
	return doc
}

func (rg *ReportGenerator) generateJSONReport(result *models.ReconciliationResult, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(rg.BuildDocument(result))
}

// generateYAMLReport reuses the JSON field names by round-tripping the
// document through encoding/json before handing it to the YAML encoder.
func (rg *ReportGenerator) generateYAMLReport(result *models.ReconciliationResult, writer io.Writer) error {
	data, err := json.Marshal(rg.BuildDocument(result))
	if err != nil {
		return errors.InternalError(errors.CodeUnexpectedError, "encode report", err)
	}

	var tree interface{}
	if err := json.Unmarshal(data, &tree); err != nil {
		return errors.InternalError(errors.CodeUnexpectedError, "encode report", err)
	}

	encoder := yaml.NewEncoder(writer)
	encoder.SetIndent(2)
	if err := encoder.Encode(tree); err != nil {
		return err
	}
	return encoder.Close()
}

func (rg *ReportGenerator) generateConsoleReport(result *models.ReconciliationResult, writer io.Writer) error {
	s := result.Summary

	fmt.Fprintf(writer, "RECONCILIATION REPORT\n")
	fmt.Fprintf(writer, "ID:        %s\n", result.ID)
	fmt.Fprintf(writer, "Generated: %s\n\n", result.CreatedAt.Format(time.RFC3339))

	fmt.Fprintf(writer, "=== SUMMARY ===\n")
	fmt.Fprintf(writer, "Bank records:    %d (unmatched: %d)\n", s.TotalBank, result.UnmatchedBankCount())
	fmt.Fprintf(writer, "Sales records:   %d (unmatched: %d)\n", s.TotalSales, result.UnmatchedSalesCount())
	fmt.Fprintf(writer, "Matched pairs:   %d\n", result.MatchedCount())
	fmt.Fprintf(writer, "Match rate:      %s\n\n", Percent(s.MatchRate))

	fmt.Fprintf(writer, "=== FINANCIAL SUMMARY ===\n")
	fmt.Fprintf(writer, "Bank total:      %s\n", FormatCurrency(s.TotalBankAmount))
	fmt.Fprintf(writer, "Sales total:     %s\n", FormatCurrency(s.TotalSalesAmount))
	fmt.Fprintf(writer, "Difference:      %s\n", FormatCurrency(result.Difference()))
	fmt.Fprintf(writer, "Matched amount:  %s\n", FormatCurrency(s.MatchedAmount))
	fmt.Fprintf(writer, "Unmatched bank:  %s\n", FormatCurrency(s.UnmatchedBankAmount))
	fmt.Fprintf(writer, "Unmatched sales: %s\n\n", FormatCurrency(s.UnmatchedSalesAmount))

	fmt.Fprintf(writer, "=== MATCH QUALITY BREAKDOWN ===\n")
	total := s.ExactMatches + s.FuzzyMatches
	fmt.Fprintf(writer, "Exact matches:   %d (%.1f%%)\n", s.ExactMatches, percentage(s.ExactMatches, total))
	fmt.Fprintf(writer, "Fuzzy matches:   %d (%.1f%%)\n", s.FuzzyMatches, percentage(s.FuzzyMatches, total))

	if rg.config.IncludeMatched && len(result.MatchedPairs) > 0 {
		fmt.Fprintf(writer, "\n=== MATCHED PAIRS ===\n")
		rg.printPairs(result.MatchedPairs, writer)
	}
	if rg.config.IncludeUnmatched && len(result.UnmatchedBank) > 0 {
		fmt.Fprintf(writer, "\n=== UNMATCHED BANK ===\n")
		rg.printRecords(result.UnmatchedBank, writer)
	}
	if rg.config.IncludeUnmatched && len(result.UnmatchedSales) > 0 {
		fmt.Fprintf(writer, "\n=== UNMATCHED SALES ===\n")
		rg.printRecords(result.UnmatchedSales, writer)
	}

	return nil
}

func (rg *ReportGenerator) printPairs(pairs []*models.MatchedPair, writer io.Writer) {
	for i, p := range pairs {
		if rg.truncate(i, len(pairs), writer) {
			return
		}
		fmt.Fprintf(writer, "  %d. [%s %s] bank %s %s %s <-> sales %s %s %s (diff %s, %d days)\n",
			i+1,
			p.MatchType.Label(),
			Percent(p.ConfidencePercentage()),
			p.BankRecord.DateString(), FormatCurrency(p.BankRecord.Amount), p.BankRecord.Reference,
			p.SalesRecord.DateString(), FormatCurrency(p.SalesRecord.Amount), p.SalesRecord.Reference,
			FormatCurrency(p.AmountDiff), p.DateDiff)
	}
}

func (rg *ReportGenerator) printRecords(records []*models.TransactionRecord, writer io.Writer) {
	if rg.config.SortByAmount {
		records = append([]*models.TransactionRecord(nil), records...)
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].Amount.Abs().GreaterThan(records[j].Amount.Abs())
		})
	}

	for i, r := range records {
		if rg.truncate(i, len(records), writer) {
			return
		}
		date := r.DateString()
		if date == "" {
			date = "(no date)"
		}
		fmt.Fprintf(writer, "  %d. %s %s %s %s\n", i+1, date, FormatCurrency(r.Amount), r.Reference, r.Description)
	}
}

// truncate prints the "... and N more" line once the cap is reached.
func (rg *ReportGenerator) truncate(i, total int, writer io.Writer) bool {
	if rg.config.MaxListItems == 0 || i < rg.config.MaxListItems {
		return false
	}
	fmt.Fprintf(writer, "  ... and %d more\n", total-i)
	return true
}

// GetConfiguration returns the current configuration
func (rg *ReportGenerator) GetConfiguration() *ReportConfig {
	return rg.config
}

func percentage(part, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(part) / float64(total) * 100.0
}
