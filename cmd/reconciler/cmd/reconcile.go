package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ledger-reconciliation-service/cmd/reconciler/config"
	"ledger-reconciliation-service/internal/reconciler"
	"ledger-reconciliation-service/internal/reporter"
	"ledger-reconciliation-service/pkg/errors"
)

// Flags for the reconcile command
var (
	bankFile     string
	salesFile    string
	outputFormat string
	exportType   string
	outputFile   string
	showProgress bool
)

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile a bank statement with a sales ledger",
	Long: `Reconcile loads a bank statement and a sales ledger (.csv, .xlsx or .xls),
detects their date, amount, reference and description columns, and pairs
their records.

Examples:
  # Basic reconciliation with the default tolerances (1.00 and 3 days)
  reconciler reconcile --bank-file bank.csv --sales-file sales.csv

  # Strict tolerances
  reconciler reconcile --bank-file bank.csv --sales-file sales.csv \
    --amount-tolerance 0.05 --date-tolerance 1

  # Export the unmatched bank records as CSV
  reconciler reconcile --bank-file bank.xlsx --sales-file sales.xlsx \
    --output-format csv --export-type unmatched_bank --output-file unmatched.csv

  # Full YAML report
  reconciler reconcile --bank-file bank.csv --sales-file sales.csv --output-format yaml`,

	PreRunE: validateReconcileFlags,
	RunE:    runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	// Required flags
	reconcileCmd.Flags().StringVarP(&bankFile, "bank-file", "b", "", "path to the bank statement file (required)")
	reconcileCmd.Flags().StringVarP(&salesFile, "sales-file", "s", "", "path to the sales ledger file (required)")

	// Output flags
	reconcileCmd.Flags().StringVarP(&outputFormat, "output-format", "f", "console", "output format: console, json, yaml, csv")
	reconcileCmd.Flags().StringVarP(&exportType, "export-type", "e", "all", "csv export: all, matched, unmatched_bank, unmatched_sales")
	reconcileCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout)")

	// UI flags
	reconcileCmd.Flags().BoolVar(&showProgress, "progress", false, "show progress indicators")

	// Bind flags to viper
	_ = viper.BindPFlag("bank-file", reconcileCmd.Flags().Lookup("bank-file"))
	_ = viper.BindPFlag("sales-file", reconcileCmd.Flags().Lookup("sales-file"))
	_ = viper.BindPFlag("output-format", reconcileCmd.Flags().Lookup("output-format"))
	_ = viper.BindPFlag("export-type", reconcileCmd.Flags().Lookup("export-type"))
	_ = viper.BindPFlag("output-file", reconcileCmd.Flags().Lookup("output-file"))
	_ = viper.BindPFlag("progress", reconcileCmd.Flags().Lookup("progress"))
}

func validateReconcileFlags(cmd *cobra.Command, args []string) error {
	// Get values from viper (allows override from config file)
	bankFile = viper.GetString("bank-file")
	salesFile = viper.GetString("sales-file")
	outputFormat = viper.GetString("output-format")
	exportType = viper.GetString("export-type")
	outputFile = viper.GetString("output-file")
	showProgress = viper.GetBool("progress")

	// Collect every problem so they can be fixed in one go
	var problems []*errors.ReconcilerError
	check := func(err error) {
		if re, ok := errors.AsReconcilerError(err); ok {
			problems = append(problems, re)
		}
	}

	if bankFile == "" {
		check(errors.ConfigurationError(errors.CodeMissingConfig, "bank-file", nil, nil))
	} else {
		check(validateFileExists(bankFile, "bank file"))
	}
	if salesFile == "" {
		check(errors.ConfigurationError(errors.CodeMissingConfig, "sales-file", nil, nil))
	} else {
		check(validateFileExists(salesFile, "sales file"))
	}
	_, err := config.CreateReportConfig(outputFormat, exportType)
	check(err)

	switch len(problems) {
	case 0:
	case 1:
		return problems[0]
	default:
		return errors.NewErrorSummary(problems)
	}

	// Validate output file directory exists if specified
	if outputFile != "" {
		dir := filepath.Dir(outputFile)
		if dir != "." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return errors.FileError(errors.CodeFileNotFound, dir, err).
					WithSuggestion("create the output directory first")
			}
		}
	}

	return nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, description, nil, nil)
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return errors.FileError(errors.CodeFileNotFound, filePath, err).WithContext("role", description)
	}
	if err != nil {
		return errors.FileError(errors.CodeFilePermission, filePath, err).WithContext("role", description)
	}

	if info.IsDir() {
		return errors.FileError("", filePath, fmt.Errorf("%s is a directory, expected a file", description))
	}

	// Check if file is readable
	file, err := os.Open(filePath)
	if err != nil {
		return errors.FileError(errors.CodeFilePermission, filePath, err).WithContext("role", description)
	}
	file.Close()

	return nil
}

// newService builds a reconciliation service from the bound settings.
func newService() (*reconciler.ReconciliationService, error) {
	matching := config.CreateMatchingConfig(
		viper.GetInt("date-tolerance"),
		viper.GetFloat64("amount-tolerance"),
		viper.GetBool("parallel-scoring"),
	)

	serviceConfig, err := config.CreateReconcilerConfig(
		matching,
		viper.GetString("sign-policy"),
		viper.GetInt("sample-rows"),
		viper.GetInt("max-upload-mb"),
	)
	if err != nil {
		return nil, err
	}
	return reconciler.NewReconciliationService(serviceConfig)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	stderr := cmd.ErrOrStderr()

	if viper.GetBool("verbose") {
		fmt.Fprintf(stderr, "Starting reconciliation...\n")
		fmt.Fprintf(stderr, "Bank file: %s\n", bankFile)
		fmt.Fprintf(stderr, "Sales file: %s\n", salesFile)
		fmt.Fprintf(stderr, "Output format: %s\n", outputFormat)
		if outputFile != "" {
			fmt.Fprintf(stderr, "Output file: %s\n", outputFile)
		}
	}

	service, err := newService()
	if err != nil {
		return err
	}

	if showProgress {
		service.AddProgressCallback(func(p reconciler.Progress) {
			fmt.Fprintf(stderr, "[%s] %s", p.Timestamp.Format("15:04:05"), p.Stage)
			if p.Count > 0 {
				fmt.Fprintf(stderr, " (%d)", p.Count)
			}
			fmt.Fprintln(stderr)
		})
	}

	run, err := service.ReconcileFiles(cmd.Context(), bankFile, salesFile)
	if err != nil {
		return err
	}

	reportConfig, err := config.CreateReportConfig(outputFormat, exportType)
	if err != nil {
		return err
	}
	reportGenerator, err := reporter.NewReportGenerator(reportConfig)
	if err != nil {
		return err
	}

	if outputFile != "" {
		err = reportGenerator.WriteFile(run.Result, outputFile)
	} else {
		err = reportGenerator.GenerateReport(run.Result, cmd.OutOrStdout())
	}
	if err != nil {
		return errors.WrapIfNeeded(err, errors.CategoryInternal, errors.CodeUnexpectedError, "write report")
	}

	// Show completion message
	if viper.GetBool("verbose") {
		s := run.Result.Summary
		fmt.Fprintf(stderr, "\nReconciliation completed successfully.\n")
		fmt.Fprintf(stderr, "Processed %d bank records and %d sales records.\n", s.TotalBank, s.TotalSales)
		fmt.Fprintf(stderr, "Found %d exact and %d fuzzy matches, %d unmatched bank and %d unmatched sales records.\n",
			s.ExactMatches, s.FuzzyMatches, run.Result.UnmatchedBankCount(), run.Result.UnmatchedSalesCount())
		fmt.Fprintf(stderr, "Match rate: %s\n", reporter.Percent(s.MatchRate))
	}

	return nil
}
