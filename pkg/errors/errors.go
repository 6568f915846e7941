package errors

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryFile          ErrorCategory = "file"
	CategoryParse         ErrorCategory = "parse"
	CategoryValidation    ErrorCategory = "validation"
	CategorySession       ErrorCategory = "session"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryAnalysis      ErrorCategory = "analysis"
	CategoryInternal      ErrorCategory = "internal"
)

// ErrorCode represents specific error codes within categories
type ErrorCode string

const (
	// File errors
	CodeFileNotFound   ErrorCode = "file_not_found"
	CodeFilePermission ErrorCode = "file_permission"

	// Parse errors
	CodeInvalidFormat ErrorCode = "invalid_format"
	CodeMissingColumn ErrorCode = "missing_column"
	CodeInvalidData   ErrorCode = "invalid_data"
	CodeInvalidRegex  ErrorCode = "invalid_regex"

	// Validation errors. These double as machine-readable finding codes.
	CodeInvalidAmount      ErrorCode = "invalid_amount"
	CodeInvalidDate        ErrorCode = "invalid_date"
	CodeMissingField       ErrorCode = "missing_field"
	CodeOutOfRange         ErrorCode = "out_of_range"
	CodeUnknownInstitution ErrorCode = "unknown_institution"
	CodeMissingCategory    ErrorCode = "missing_category"
	CodeLowConfidence      ErrorCode = "low_confidence"
	CodeMissingMerchant    ErrorCode = "missing_merchant"

	// Session errors
	CodeSessionNotFound    ErrorCode = "session_not_found"
	CodeSessionInactive    ErrorCode = "session_inactive"
	CodeTransactionMissing ErrorCode = "transaction_missing"
	CodeUnknownField       ErrorCode = "unknown_field"
	CodeNotSaveReady       ErrorCode = "not_save_ready"

	// Configuration errors
	CodeInvalidConfig  ErrorCode = "invalid_config"
	CodeMissingConfig  ErrorCode = "missing_config"
	CodeConfigConflict ErrorCode = "config_conflict"

	// Analysis errors
	CodeInvalidHistory ErrorCode = "invalid_history"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
	CodeNilInput        ErrorCode = "nil_input"
)

// AutomationError is the base error type for all application errors
type AutomationError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *AutomationError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *AutomationError) Unwrap() error {
	return e.Cause
}

// GetExitCode returns an appropriate exit code for the error
func (e *AutomationError) GetExitCode() int {
	switch e.Category {
	case CategoryFile:
		return 2
	case CategoryParse, CategoryValidation:
		return 3
	case CategoryConfiguration:
		return 4
	case CategorySession, CategoryAnalysis:
		return 5
	case CategoryInternal:
		return 6
	default:
		return 1
	}
}

// WithContext adds context information to the error
func (e *AutomationError) WithContext(key string, value interface{}) *AutomationError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error
func (e *AutomationError) WithSuggestion(suggestion string) *AutomationError {
	e.Suggestion = suggestion
	return e
}

// New creates a new AutomationError
func New(category ErrorCategory, code ErrorCode, message string) *AutomationError {
	return &AutomationError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with AutomationError context
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *AutomationError {
	if err == nil {
		return nil
	}

	return &AutomationError{
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

func build(category ErrorCategory, code ErrorCode, message string, err error) *AutomationError {
	if err != nil {
		return Wrap(err, category, code, message)
	}
	return New(category, code, message)
}

// FileError creates a file-related error
func FileError(code ErrorCode, path string, err error) *AutomationError {
	var message, suggestion string

	switch code {
	case CodeFileNotFound:
		message = fmt.Sprintf("file not found: %s", path)
		suggestion = "check if the file path is correct and the file exists"
	case CodeFilePermission:
		message = fmt.Sprintf("permission denied accessing file: %s", path)
		suggestion = "check file permissions and ensure you have read access"
	default:
		message = fmt.Sprintf("file error: %s", path)
		suggestion = "check the file and try again"
	}

	return build(CategoryFile, code, message, err).
		WithSuggestion(suggestion).
		WithContext("file_path", path)
}

// ParseError creates a parsing-related error for a template or an input record
func ParseError(code ErrorCode, source string, value string, err error) *AutomationError {
	var message, suggestion string

	switch code {
	case CodeInvalidFormat:
		message = fmt.Sprintf("invalid format in %s: '%s'", source, value)
		suggestion = "check the data format and ensure it matches the expected structure"
	case CodeInvalidRegex:
		message = fmt.Sprintf("invalid template pattern in %s: '%s'", source, value)
		suggestion = "templates must be valid RE2 regular expressions"
	case CodeMissingColumn:
		message = fmt.Sprintf("missing required column '%s' in %s", value, source)
		suggestion = "verify the file has all required columns with correct headers"
	case CodeInvalidData:
		message = fmt.Sprintf("invalid data in %s: '%s'", source, value)
		suggestion = "correct the data format or remove the invalid entry"
	default:
		message = fmt.Sprintf("parse error in %s", source)
		suggestion = "check the input format and data integrity"
	}

	return build(CategoryParse, code, message, err).
		WithSuggestion(suggestion).
		WithContext("source", source).
		WithContext("value", value)
}

// ValidationError creates a validation-related error
func ValidationError(code ErrorCode, field string, value interface{}, err error) *AutomationError {
	var message, suggestion string

	switch code {
	case CodeInvalidAmount:
		message = fmt.Sprintf("invalid amount in field '%s': %v", field, value)
		suggestion = "ensure amounts are positive decimal numbers (e.g., '12.34')"
	case CodeInvalidDate:
		message = fmt.Sprintf("invalid date in field '%s': %v", field, value)
		suggestion = "use date format YYYY-MM-DD or DD/MM/YYYY"
	case CodeMissingField:
		message = fmt.Sprintf("required field '%s' is missing or empty", field)
		suggestion = "provide a value for this required field"
	case CodeOutOfRange:
		message = fmt.Sprintf("value out of range in field '%s': %v", field, value)
		suggestion = "ensure the value is within the acceptable range"
	default:
		message = fmt.Sprintf("validation error in field '%s': %v", field, value)
		suggestion = "check the field value and format"
	}

	return build(CategoryValidation, code, message, err).
		WithSuggestion(suggestion).
		WithContext("field", field).
		WithContext("value", value)
}

// SessionError creates an edit-session error. The session is left unchanged
// whenever one of these is returned.
func SessionError(code ErrorCode, sessionID string, err error) *AutomationError {
	var message, suggestion string

	switch code {
	case CodeSessionNotFound:
		message = fmt.Sprintf("edit session not found: %s", sessionID)
		suggestion = "start a new edit session for the transaction"
	case CodeSessionInactive:
		message = fmt.Sprintf("edit session is closed: %s", sessionID)
		suggestion = "closed sessions accept no further changes; start a new session"
	case CodeTransactionMissing:
		message = fmt.Sprintf("transaction for edit session %s can no longer be resolved", sessionID)
		suggestion = "the transaction may have been removed; abandon the session"
	case CodeUnknownField:
		message = fmt.Sprintf("unknown editable field in session %s", sessionID)
		suggestion = "use one of the editable transaction fields"
	case CodeNotSaveReady:
		message = fmt.Sprintf("edit session %s has blocking validation findings", sessionID)
		suggestion = "resolve every error-severity finding before finalizing"
	default:
		message = fmt.Sprintf("edit session error: %s", sessionID)
		suggestion = "check the session state and try again"
	}

	return build(CategorySession, code, message, err).
		WithSuggestion(suggestion).
		WithContext("session_id", sessionID)
}

// ConfigurationError creates a configuration-related error
func ConfigurationError(code ErrorCode, setting string, value interface{}, err error) *AutomationError {
	var message, suggestion string

	switch code {
	case CodeInvalidConfig:
		message = fmt.Sprintf("invalid configuration for '%s': %v", setting, value)
		suggestion = "check the configuration documentation for valid values"
	case CodeMissingConfig:
		message = fmt.Sprintf("missing required configuration: %s", setting)
		suggestion = "provide this configuration setting or use a config file"
	case CodeConfigConflict:
		message = fmt.Sprintf("configuration conflict with setting '%s': %v", setting, value)
		suggestion = "resolve the conflicting settings or use default values"
	default:
		message = fmt.Sprintf("configuration error: %s", setting)
		suggestion = "check your configuration and try again"
	}

	return build(CategoryConfiguration, code, message, err).
		WithSuggestion(suggestion).
		WithContext("setting", setting).
		WithContext("value", value)
}

// AnalysisError creates a pattern-analysis error
func AnalysisError(code ErrorCode, operation string, err error) *AutomationError {
	var message, suggestion string

	switch code {
	case CodeInvalidHistory:
		message = fmt.Sprintf("invalid transaction history during %s", operation)
		suggestion = "every history entry needs a positive amount and a timestamp"
	default:
		message = fmt.Sprintf("analysis error during %s", operation)
		suggestion = "review the history data and detection options"
	}

	return build(CategoryAnalysis, code, message, err).
		WithSuggestion(suggestion).
		WithContext("operation", operation)
}

// InternalError creates an internal error
func InternalError(code ErrorCode, operation string, err error) *AutomationError {
	var message, suggestion string

	switch code {
	case CodeUnexpectedError:
		message = fmt.Sprintf("unexpected error during %s", operation)
		suggestion = "this is likely a bug - please report it with the error details"
	case CodeNilInput:
		message = fmt.Sprintf("nil input passed to %s", operation)
		suggestion = "callers must pass a non-nil value"
	default:
		message = fmt.Sprintf("internal error during %s", operation)
		suggestion = "try again or contact support if the problem persists"
	}

	return build(CategoryInternal, code, message, err).
		WithSuggestion(suggestion).
		WithContext("operation", operation)
}

// ErrorSummary provides a summary of multiple errors
type ErrorSummary struct {
	Total        int                   `json:"total"`
	ByCategory   map[ErrorCategory]int `json:"by_category"`
	ByCode       map[ErrorCode]int     `json:"by_code"`
	Errors       []*AutomationError    `json:"errors"`
	SampleErrors []*AutomationError    `json:"sample_errors,omitempty"`
}

// NewErrorSummary creates a new error summary
func NewErrorSummary(errs []*AutomationError) *ErrorSummary {
	summary := &ErrorSummary{
		Total:      len(errs),
		ByCategory: make(map[ErrorCategory]int),
		ByCode:     make(map[ErrorCode]int),
		Errors:     errs,
	}
	if len(errs) == 0 {
		summary.Errors = []*AutomationError{}
		return summary
	}

	for _, err := range errs {
		summary.ByCategory[err.Category]++
		summary.ByCode[err.Code]++
	}

	maxSamples := 5
	if len(errs) > maxSamples {
		summary.SampleErrors = errs[:maxSamples]
	} else {
		summary.SampleErrors = errs
	}

	return summary
}

// Error returns a formatted error message for the summary
func (es *ErrorSummary) Error() string {
	if es.Total == 0 {
		return "no errors"
	}

	if es.Total == 1 {
		return es.Errors[0].Error()
	}

	var categories []string
	for category, count := range es.ByCategory {
		categories = append(categories, fmt.Sprintf("%s: %d", category, count))
	}
	sort.Strings(categories)

	return fmt.Sprintf("%d errors occurred (%s)", es.Total, strings.Join(categories, ", "))
}

// HasCode checks if the summary contains errors with the given code
func (es *ErrorSummary) HasCode(code ErrorCode) bool {
	return es.ByCode[code] > 0
}

// AsAutomationError extracts an AutomationError from an error chain
func AsAutomationError(err error) (*AutomationError, bool) {
	var automationErr *AutomationError
	if errors.As(err, &automationErr) {
		return automationErr, true
	}
	return nil, false
}

// IsCode reports whether err carries the given code anywhere in its chain
func IsCode(err error, code ErrorCode) bool {
	if automationErr, ok := AsAutomationError(err); ok {
		return automationErr.Code == code
	}
	return false
}

// WrapIfNeeded wraps an error if it's not already an AutomationError
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *AutomationError {
	if err == nil {
		return nil
	}

	if automationErr, ok := AsAutomationError(err); ok {
		return automationErr
	}

	return Wrap(err, category, code, message)
}
