package cmd

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"testing"

	"transaction-automation-service/pkg/errors"

	"go.uber.org/multierr"
)

func TestCLIErrorHandler_HandleError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		contains []string
	}{
		{
			name:     "nil",
			err:      nil,
			wantCode: 0,
		},
		{
			name:     "file error",
			err:      errors.FileError(errors.CodeFileNotFound, "history.csv", os.ErrNotExist),
			wantCode: 2,
			contains: []string{"Error: file not found: history.csv", "file_path: history.csv", "File error help"},
		},
		{
			name:     "validation error",
			err:      errors.ValidationError(errors.CodeOutOfRange, "source", "email", nil).WithSuggestion("Use one of: message, clipboard, manual"),
			wantCode: 3,
			contains: []string{"Suggestion: Use one of: message, clipboard, manual", "Validation error help"},
		},
		{
			name:     "configuration error",
			err:      errors.ConfigurationError(errors.CodeInvalidConfig, "lookback_days", -1, nil),
			wantCode: 4,
			contains: []string{"lookback_days", "AUTOMATOR_"},
		},
		{
			name: "aggregated errors",
			err: multierr.Combine(
				errors.ConfigurationError(errors.CodeInvalidConfig, "min_occurrences", 1, nil),
				errors.ConfigurationError(errors.CodeInvalidConfig, "lookback_days", 0, nil),
			),
			wantCode: 4,
			contains: []string{"Found 2 errors:", "1. invalid configuration for 'min_occurrences'", "2. invalid configuration for 'lookback_days'"},
		},
		{
			name:     "wrapped os not exist",
			err:      fmt.Errorf("open: %w", os.ErrNotExist),
			wantCode: 2,
			contains: []string{"File not found"},
		},
		{
			name:     "generic",
			err:      fmt.Errorf("something broke"),
			wantCode: 1,
			contains: []string{"Error: something broke", "--verbose"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			h := NewCLIErrorHandler(&out)

			if got := h.HandleError(tt.err); got != tt.wantCode {
				t.Errorf("HandleError() = %d, want %d", got, tt.wantCode)
			}
			for _, want := range tt.contains {
				if !strings.Contains(out.String(), want) {
					t.Errorf("output missing %q:\n%s", want, out.String())
				}
			}
		})
	}
}

func TestFormatErrorList(t *testing.T) {
	if got := FormatErrorList(nil); got != "" {
		t.Errorf("FormatErrorList(nil) = %q, want empty", got)
	}
	if got := FormatErrorList([]error{fmt.Errorf("one")}); got != "Error: one" {
		t.Errorf("single error = %q", got)
	}

	var errs []error
	for i := 0; i < 12; i++ {
		errs = append(errs, fmt.Errorf("problem %d", i+1))
	}
	got := FormatErrorList(errs)
	if !strings.Contains(got, "Found 12 errors:") || !strings.Contains(got, "10. problem 10") {
		t.Errorf("list = %q", got)
	}
	if strings.Contains(got, "problem 11") || !strings.Contains(got, "... and 2 more errors") {
		t.Errorf("list should stop after 10 entries: %q", got)
	}
}
