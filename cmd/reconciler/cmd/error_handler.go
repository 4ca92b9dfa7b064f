package cmd

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"ledger-reconciliation-service/pkg/errors"
	"ledger-reconciliation-service/pkg/logger"
)

// CLIErrorHandler provides user-friendly error handling for CLI operations
type CLIErrorHandler struct {
	logger  logger.Logger
	out     io.Writer
	verbose bool
}

// NewCLIErrorHandler creates a new CLI error handler writing to out. A nil
// out means stderr.
func NewCLIErrorHandler(out io.Writer) *CLIErrorHandler {
	if out == nil {
		out = os.Stderr
	}
	return &CLIErrorHandler{
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		out:     out,
		verbose: viper.GetBool("verbose"),
	}
}

// HandleError prints err and returns the process exit code for it.
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Debug("Command failed")

	var summary *errors.ErrorSummary
	if stderrors.As(err, &summary) {
		return h.handleSummary(summary)
	}

	if reconcilerErr, ok := errors.AsReconcilerError(err); ok {
		return h.handleReconcilerError(reconcilerErr)
	}

	return h.handleGenericError(err)
}

// GetExitCode returns the exit code for err without printing anything.
// Plain OS file errors map to 2 like FileError does.
func GetExitCode(err error) int {
	if err == nil {
		return 0
	}
	if code := errors.GetExitCode(err); code != 1 {
		return code
	}
	if isFileNotFoundError(err) || isPermissionError(err) {
		return 2
	}
	return 1
}

func (h *CLIErrorHandler) handleReconcilerError(err *errors.ReconcilerError) int {
	fmt.Fprintf(h.out, "Error: %s\n", err.Message)

	if len(err.Context) > 0 {
		keys := make([]string, 0, len(err.Context))
		for key := range err.Context {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		fmt.Fprintf(h.out, "\nContext:\n")
		for _, key := range keys {
			if err.Context[key] == nil {
				continue
			}
			fmt.Fprintf(h.out, "  %s: %v\n", key, err.Context[key])
		}
	}

	if err.Suggestion != "" {
		fmt.Fprintf(h.out, "\nSuggestion: %s\n", err.Suggestion)
	}

	if help := getCategoryHelp(err.Category); help != "" {
		fmt.Fprintf(h.out, "\n%s\n", help)
	}

	if h.verbose && err.Cause != nil {
		fmt.Fprintf(h.out, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.GetExitCode()
}

func (h *CLIErrorHandler) handleSummary(summary *errors.ErrorSummary) int {
	fmt.Fprintf(h.out, "Error: %s\n\n", summary.Error())
	for i, err := range summary.Errors {
		fmt.Fprintf(h.out, "  %d. %s\n", i+1, err.Message)
		if err.Suggestion != "" {
			fmt.Fprintf(h.out, "     Suggestion: %s\n", err.Suggestion)
		}
	}
	return summary.GetExitCode()
}

func (h *CLIErrorHandler) handleGenericError(err error) int {
	if isFileNotFoundError(err) {
		fmt.Fprintf(h.out, "Error: File not found\n")
		fmt.Fprintf(h.out, "Suggestion: Check if the file path is correct and the file exists\n")
		return 2
	}

	if isPermissionError(err) {
		fmt.Fprintf(h.out, "Error: Permission denied\n")
		fmt.Fprintf(h.out, "Suggestion: Check file permissions and ensure you have read access\n")
		return 2
	}

	fmt.Fprintf(h.out, "Error: %v\n", err)
	if !h.verbose {
		fmt.Fprintf(h.out, "\nRun with --verbose for more details\n")
	}
	return 1
}

func getCategoryHelp(category errors.ErrorCategory) string {
	switch category {
	case errors.CategoryFile:
		return `File error help:
• Check if the file exists and is readable
• Verify the file path is correct (use absolute paths if needed)
• Ensure you have proper permissions to access the file`

	case errors.CategoryParse:
		return `Parse error help:
• Supported formats are .csv, .xlsx and .xls
• The first row must hold the column headers
• CSV files may use , ; tab or | as delimiter, in UTF-8 or Latin-1
• Use 'reconciler detect --file <path>' to see how a file is read`

	case errors.CategoryValidation:
		return `Validation error help:
• Sources are 'bank' or 'sales'
• Export types are matched, unmatched_bank, unmatched_sales and all`

	case errors.CategoryConfiguration:
		return `Configuration error help:
• Check your command-line flags and arguments
• Verify configuration file syntax if using --config
• Amount tolerance must be positive and date tolerance non-negative
• Use 'reconciler <command> --help' to see all available options`

	case errors.CategoryReconciliation:
		return `Reconciliation error help:
• Both files must contain at least one usable record
• Check that the amount and date columns were detected
• Try adjusting matching tolerances (--date-tolerance, --amount-tolerance)`

	case errors.CategorySession:
		return `Session error help:
• Sessions expire after --session-ttl of inactivity
• Upload the files again to start a new session`

	default:
		return ""
	}
}

// Error detection helpers

func isFileNotFoundError(err error) bool {
	return stderrors.Is(err, os.ErrNotExist) || strings.Contains(err.Error(), "no such file or directory")
}

func isPermissionError(err error) bool {
	return stderrors.Is(err, os.ErrPermission) ||
		strings.Contains(err.Error(), "permission denied") ||
		strings.Contains(err.Error(), "access denied")
}
