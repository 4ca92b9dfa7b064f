package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ledger-reconciliation-service/internal/detector"
	"ledger-reconciliation-service/internal/models"
	"ledger-reconciliation-service/internal/parsers"
)

var (
	detectFile string
	detectJSON bool
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Show the columns detected in a file",
	Long: `Detect decodes a .csv, .xlsx or .xls file and prints which column was
chosen for each canonical field (date, amount, reference, description),
together with a few sample rows.

Examples:
  reconciler detect --file bank.csv
  reconciler detect --file sales.xlsx --json`,
	RunE: runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)

	detectCmd.Flags().StringVarP(&detectFile, "file", "i", "", "path to the file to inspect (required)")
	detectCmd.Flags().BoolVar(&detectJSON, "json", false, "print the detection result as JSON")
	_ = detectCmd.MarkFlagRequired("file")
}

type detection struct {
	File    string          `json:"file"`
	Format  parsers.Format  `json:"format"`
	Headers []string        `json:"headers"`
	Rows    int             `json:"rows"`
	Fields  models.FieldMap `json:"fields"`
	Missing []string        `json:"missing,omitempty"`
}

func runDetect(cmd *cobra.Command, args []string) error {
	if err := validateFileExists(detectFile, "input file"); err != nil {
		return err
	}

	service, err := newService()
	if err != nil {
		return err
	}

	table, fields, err := service.Detect(cmd.Context(), detectFile)
	if err != nil {
		return err
	}

	result := detection{
		File:    table.Name,
		Format:  table.Format,
		Headers: table.Headers,
		Rows:    len(table.Rows),
		Fields:  fields,
	}
	for _, t := range fields.Missing() {
		result.Missing = append(result.Missing, string(t))
	}

	out := cmd.OutOrStdout()
	if detectJSON {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}

	fmt.Fprintf(out, "%s\n\n", table)
	fmt.Fprintf(out, "%-12s %-6s %s\n", "FIELD", "COLUMN", "HEADER")
	for _, t := range models.FieldTypes {
		if f, ok := fields.Get(t); ok {
			fmt.Fprintf(out, "%-12s %-6d %s\n", t, f.Index, f.Name)
		} else {
			fmt.Fprintf(out, "%-12s %-6s %s\n", t, "-", "(not found)")
		}
	}

	sample := table.Sample(service.Config().SampleRows)
	if len(sample) > 0 {
		fmt.Fprintf(out, "\nSample rows:\n")
		for _, row := range sample {
			cells := make([]string, len(row))
			for i, v := range row {
				cells[i], _ = detector.CellText(v)
			}
			fmt.Fprintf(out, "  %s\n", strings.Join(cells, " | "))
		}
	}
	return nil
}
