package errors

import (
	"fmt"
	"path/filepath"
	"strings"
)

// RecordContext locates a problem inside a line-oriented input such as a
// history file.
type RecordContext struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Column   string `json:"column"`
	Value    string `json:"value"`
	Expected string `json:"expected,omitempty"`
}

// RecordError is a parse error tied to one record of an input file
type RecordError struct {
	*AutomationError
	Record      *RecordContext `json:"record"`
	Recoverable bool           `json:"recoverable"`
}

// Error implements the error interface with location information
func (e *RecordError) Error() string {
	parts := []string{e.AutomationError.Error()}

	if e.Record != nil {
		location := fmt.Sprintf("at %s", filepath.Base(e.Record.File))
		if e.Record.Line > 0 {
			location += fmt.Sprintf(":%d", e.Record.Line)
		}
		if e.Record.Column != "" {
			location += fmt.Sprintf(" column '%s'", e.Record.Column)
		}
		parts = append(parts, location)
	}

	return strings.Join(parts, " ")
}

// NewRecordError creates a new record error
func NewRecordError(code ErrorCode, record *RecordContext, message string, cause error) *RecordError {
	base := build(CategoryParse, code, message, cause)

	if record != nil {
		base.WithContext("file", record.File).
			WithContext("line", record.Line).
			WithContext("column", record.Column).
			WithContext("value", record.Value)
		if record.Expected != "" {
			base.WithSuggestion(fmt.Sprintf("expected %s", record.Expected))
		}
	}

	return &RecordError{
		AutomationError: base,
		Record:          record,
		Recoverable:     true,
	}
}

// RecordErrorCollector collects record errors while a file is loaded
type RecordErrorCollector struct {
	errors          []*RecordError
	maxErrors       int
	continueOnError bool
}

// NewRecordErrorCollector creates a new error collector
func NewRecordErrorCollector(maxErrors int, continueOnError bool) *RecordErrorCollector {
	return &RecordErrorCollector{
		errors:          make([]*RecordError, 0),
		maxErrors:       maxErrors,
		continueOnError: continueOnError,
	}
}

// Add records err and reports whether loading should continue
func (c *RecordErrorCollector) Add(err *RecordError) bool {
	if err == nil {
		return true
	}

	c.errors = append(c.errors, err)

	if c.maxErrors > 0 && len(c.errors) >= c.maxErrors {
		return false
	}

	return c.continueOnError && err.Recoverable
}

// HasErrors returns true if any errors have been collected
func (c *RecordErrorCollector) HasErrors() bool {
	return len(c.errors) > 0
}

// Errors returns all collected errors
func (c *RecordErrorCollector) Errors() []*RecordError {
	return c.errors
}

// Summary returns an error summary for all collected errors
func (c *RecordErrorCollector) Summary() *ErrorSummary {
	base := make([]*AutomationError, len(c.errors))
	for i, err := range c.errors {
		base[i] = err.AutomationError
	}
	return NewErrorSummary(base)
}
