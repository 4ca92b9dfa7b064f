// Package errors defines the categorized error type shared by the decoding,
// session, HTTP and CLI layers. The reconciliation core never returns errors;
// everything that can fail around it reports a *ReconcilerError so callers
// can map failures to exit codes or HTTP statuses.
package errors

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory groups error codes by the layer that raised them.
type ErrorCategory string

const (
	CategoryFile           ErrorCategory = "file"
	CategoryParse          ErrorCategory = "parse"
	CategoryValidation     ErrorCategory = "validation"
	CategoryConfiguration  ErrorCategory = "configuration"
	CategoryReconciliation ErrorCategory = "reconciliation"
	CategorySession        ErrorCategory = "session"
	CategoryInternal       ErrorCategory = "internal"
)

// ErrorCode identifies a specific failure within a category.
type ErrorCode string

const (
	// File errors
	CodeFileNotFound   ErrorCode = "file_not_found"
	CodeFilePermission ErrorCode = "file_permission"
	CodeFileTooLarge   ErrorCode = "file_too_large"

	// Parse errors
	CodeUnsupportedFormat ErrorCode = "unsupported_format"
	CodeMalformedInput    ErrorCode = "malformed_input"
	CodeEmptyInput        ErrorCode = "empty_input"
	CodeEncodingError     ErrorCode = "encoding_error"

	// Validation errors
	CodeInvalidSource ErrorCode = "invalid_source"
	CodeInvalidExport ErrorCode = "invalid_export"
	CodeMissingField  ErrorCode = "missing_field"

	// Configuration errors
	CodeInvalidConfig ErrorCode = "invalid_config"
	CodeMissingConfig ErrorCode = "missing_config"

	// Reconciliation errors
	CodeMissingData     ErrorCode = "missing_data"
	CodeProcessingError ErrorCode = "processing_error"

	// Session errors
	CodeSessionNotFound ErrorCode = "session_not_found"
	CodeSessionExpired  ErrorCode = "session_expired"
	CodeStorageFailure  ErrorCode = "storage_failure"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
)

// ReconcilerError is the base error type for all application errors.
type ReconcilerError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context carries structured details about an error.
type Context map[string]interface{}

func (e *ReconcilerError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

func (e *ReconcilerError) Unwrap() error {
	return e.Cause
}

// GetExitCode maps the error category to a process exit code.
func (e *ReconcilerError) GetExitCode() int {
	switch e.Category {
	case CategoryFile:
		return 2
	case CategoryParse, CategoryValidation:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryReconciliation, CategoryInternal:
		return 5
	case CategorySession:
		return 6
	default:
		return 1
	}
}

// WithContext attaches a key/value pair to the error.
func (e *ReconcilerError) WithContext(key string, value interface{}) *ReconcilerError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion replaces the remediation hint shown to users.
func (e *ReconcilerError) WithSuggestion(suggestion string) *ReconcilerError {
	e.Suggestion = suggestion
	return e
}

// New creates a ReconcilerError with a captured stack trace.
func New(category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	return &ReconcilerError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap annotates err with a category and code. A nil err yields nil.
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	if err == nil {
		return nil
	}

	return &ReconcilerError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

func build(category ErrorCategory, code ErrorCode, message string, err error) *ReconcilerError {
	if err != nil {
		return Wrap(err, category, code, message)
	}
	return New(category, code, message)
}

// FileError reports a problem opening or reading an input file.
func FileError(code ErrorCode, path string, err error) *ReconcilerError {
	var message, suggestion string

	switch code {
	case CodeFileNotFound:
		message = fmt.Sprintf("file not found: %s", path)
		suggestion = "check if the file path is correct and the file exists"
	case CodeFilePermission:
		message = fmt.Sprintf("permission denied accessing file: %s", path)
		suggestion = "check file permissions and ensure you have read access"
	case CodeFileTooLarge:
		message = fmt.Sprintf("file exceeds the upload limit: %s", path)
		suggestion = "split the export into smaller files"
	default:
		message = fmt.Sprintf("file error: %s", path)
		suggestion = "check the file and try again"
	}

	return build(CategoryFile, code, message, err).
		WithSuggestion(suggestion).
		WithContext("file_path", path)
}

// ParseError reports a decoding failure for a named input.
func ParseError(code ErrorCode, file string, detail string, err error) *ReconcilerError {
	var message, suggestion string

	switch code {
	case CodeUnsupportedFormat:
		message = fmt.Sprintf("unsupported file format: %s", file)
		suggestion = "upload a .csv, .xlsx or .xls file"
	case CodeMalformedInput:
		message = fmt.Sprintf("could not decode %s: %s", file, detail)
		suggestion = "verify the file is a valid spreadsheet or CSV export"
	case CodeEmptyInput:
		message = fmt.Sprintf("no rows found in %s", file)
		suggestion = "make sure the file has a header row and at least one data row"
	case CodeEncodingError:
		message = fmt.Sprintf("encoding error in %s: %s", file, detail)
		suggestion = "save the file as UTF-8 or Latin-1 text"
	default:
		message = fmt.Sprintf("parse error in %s: %s", file, detail)
		suggestion = "check the file format and data integrity"
	}

	return build(CategoryParse, code, message, err).
		WithSuggestion(suggestion).
		WithContext("file", file)
}

// ValidationError reports a rejected request value.
func ValidationError(code ErrorCode, field string, value interface{}, err error) *ReconcilerError {
	var message, suggestion string

	switch code {
	case CodeInvalidSource:
		message = fmt.Sprintf("invalid source '%v' for field '%s'", value, field)
		suggestion = "use 'bank' or 'sales'"
	case CodeInvalidExport:
		message = fmt.Sprintf("invalid export type '%v'", value)
		suggestion = "use one of: matched, unmatched_bank, unmatched_sales, all"
	case CodeMissingField:
		message = fmt.Sprintf("required field '%s' is missing or empty", field)
		suggestion = "provide a value for this required field"
	default:
		message = fmt.Sprintf("validation error in field '%s': %v", field, value)
		suggestion = "check the field value and format"
	}

	return build(CategoryValidation, code, message, err).
		WithSuggestion(suggestion).
		WithContext("field", field).
		WithContext("value", value)
}

// ConfigurationError reports an invalid or missing setting.
func ConfigurationError(code ErrorCode, setting string, value interface{}, err error) *ReconcilerError {
	var message, suggestion string

	switch code {
	case CodeInvalidConfig:
		message = fmt.Sprintf("invalid configuration for '%s': %v", setting, value)
		suggestion = "check the configuration documentation for valid values"
	case CodeMissingConfig:
		message = fmt.Sprintf("missing required configuration: %s", setting)
		suggestion = "provide this configuration setting or use a config file"
	default:
		message = fmt.Sprintf("configuration error: %s", setting)
		suggestion = "check your configuration and try again"
	}

	return build(CategoryConfiguration, code, message, err).
		WithSuggestion(suggestion).
		WithContext("setting", setting).
		WithContext("value", value)
}

// ReconciliationError reports a failure of the reconcile workflow.
func ReconciliationError(code ErrorCode, operation string, err error) *ReconcilerError {
	var message, suggestion string

	switch code {
	case CodeMissingData:
		message = fmt.Sprintf("cannot %s: both bank and sales data are required", operation)
		suggestion = "upload a bank file and a sales file first"
	case CodeProcessingError:
		message = fmt.Sprintf("processing error during %s", operation)
		suggestion = "check the input data and try again"
	default:
		message = fmt.Sprintf("reconciliation error during %s", operation)
		suggestion = "review the data and configuration"
	}

	return build(CategoryReconciliation, code, message, err).
		WithSuggestion(suggestion).
		WithContext("operation", operation)
}

// SessionError reports a state transport failure.
func SessionError(code ErrorCode, sessionID string, err error) *ReconcilerError {
	var message, suggestion string

	switch code {
	case CodeSessionNotFound:
		message = fmt.Sprintf("session not found: %s", sessionID)
		suggestion = "upload the files again to start a new session"
	case CodeSessionExpired:
		message = fmt.Sprintf("session expired: %s", sessionID)
		suggestion = "upload the files again to start a new session"
	case CodeStorageFailure:
		message = fmt.Sprintf("session storage failure for %s", sessionID)
		suggestion = "check the session database path and permissions"
	default:
		message = fmt.Sprintf("session error: %s", sessionID)
		suggestion = "try again"
	}

	return build(CategorySession, code, message, err).
		WithSuggestion(suggestion).
		WithContext("session_id", sessionID)
}

// InternalError reports an unexpected condition.
func InternalError(code ErrorCode, operation string, err error) *ReconcilerError {
	message := fmt.Sprintf("internal error during %s", operation)
	if code == CodeUnexpectedError {
		message = fmt.Sprintf("unexpected error during %s", operation)
	}

	return build(CategoryInternal, code, message, err).
		WithSuggestion("this is likely a bug - please report it with the error details").
		WithContext("operation", operation)
}

// ErrorSummary aggregates several errors, e.g. from validating a config.
type ErrorSummary struct {
	Total      int                   `json:"total"`
	ByCategory map[ErrorCategory]int `json:"by_category"`
	ByCode     map[ErrorCode]int     `json:"by_code"`
	Errors     []*ReconcilerError    `json:"errors"`
}

// NewErrorSummary builds a summary over errs.
func NewErrorSummary(errs []*ReconcilerError) *ErrorSummary {
	summary := &ErrorSummary{
		Total:      len(errs),
		ByCategory: make(map[ErrorCategory]int),
		ByCode:     make(map[ErrorCode]int),
		Errors:     errs,
	}
	if summary.Errors == nil {
		summary.Errors = []*ReconcilerError{}
	}

	for _, err := range errs {
		summary.ByCategory[err.Category]++
		summary.ByCode[err.Code]++
	}

	return summary
}

func (es *ErrorSummary) Error() string {
	switch es.Total {
	case 0:
		return "no errors"
	case 1:
		return es.Errors[0].Error()
	}

	categories := make([]string, 0, len(es.ByCategory))
	for category, count := range es.ByCategory {
		categories = append(categories, fmt.Sprintf("%s: %d", category, count))
	}
	sort.Strings(categories)

	return fmt.Sprintf("%d errors occurred (%s)", es.Total, strings.Join(categories, ", "))
}

// HasCode reports whether any error in the summary carries code.
func (es *ErrorSummary) HasCode(code ErrorCode) bool {
	return es.ByCode[code] > 0
}

// GetExitCode returns the highest exit code among the summarized errors.
func (es *ErrorSummary) GetExitCode() int {
	if es.Total == 0 {
		return 0
	}

	maxCode := 1
	for _, err := range es.Errors {
		if code := err.GetExitCode(); code > maxCode {
			maxCode = code
		}
	}

	return maxCode
}

// AsReconcilerError extracts a ReconcilerError from an error chain.
func AsReconcilerError(err error) (*ReconcilerError, bool) {
	var reconcilerErr *ReconcilerError
	if errors.As(err, &reconcilerErr) {
		return reconcilerErr, true
	}
	return nil, false
}

// HasCode reports whether err wraps a ReconcilerError with the given code.
func HasCode(err error, code ErrorCode) bool {
	re, ok := AsReconcilerError(err)
	return ok && re.Code == code
}

// WrapIfNeeded wraps err unless it already is a ReconcilerError.
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	if err == nil {
		return nil
	}

	if reconcilerErr, ok := AsReconcilerError(err); ok {
		return reconcilerErr
	}

	return Wrap(err, category, code, message)
}

// GetExitCode returns the process exit code for err. Errors outside this
// package map to 1.
func GetExitCode(err error) int {
	if err == nil {
		return 0
	}

	var summary *ErrorSummary
	if errors.As(err, &summary) {
		return summary.GetExitCode()
	}
	if reconcilerErr, ok := AsReconcilerError(err); ok {
		return reconcilerErr.GetExitCode()
	}
	return 1
}
