package cmd

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"syscall"

	"transaction-automation-service/pkg/errors"
	"transaction-automation-service/pkg/logger"

	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

// maxListedErrors bounds how many aggregated errors are printed
const maxListedErrors = 10

// CLIErrorHandler provides user-friendly error handling for CLI operations
type CLIErrorHandler struct {
	logger  logger.Logger
	out     io.Writer
	verbose bool
}

// NewCLIErrorHandler creates a new CLI error handler writing to out
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

// HandleError prints err for the user and returns the process exit code
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Debug("Command failed")

	if errs := multierr.Errors(err); len(errs) > 1 {
		return h.handleAggregate(errs)
	}
	if automationErr, ok := errors.AsAutomationError(err); ok {
		return h.handleAutomationError(automationErr)
	}
	return h.handleGenericError(err)
}

// handleAutomationError handles AutomationError with detailed context
func (h *CLIErrorHandler) handleAutomationError(err *errors.AutomationError) int {
	fmt.Fprintf(h.out, "Error: %s\n", err.Message)

	if len(err.Context) > 0 {
		fmt.Fprintf(h.out, "\nContext:\n")
		keys := make([]string, 0, len(err.Context))
		for key := range err.Context {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(h.out, "  %s: %v\n", key, err.Context[key])
		}
	}

	if err.Suggestion != "" {
		fmt.Fprintf(h.out, "\nSuggestion: %s\n", err.Suggestion)
	}

	fmt.Fprintf(h.out, "\n%s\n", categoryHelp(err.Category))

	if h.verbose && err.Cause != nil {
		fmt.Fprintf(h.out, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.GetExitCode()
}

// handleAggregate prints every collected problem and exits with the code of the first
func (h *CLIErrorHandler) handleAggregate(errs []error) int {
	fmt.Fprintln(h.out, FormatErrorList(errs))

	exitCode := 1
	if first, ok := errors.AsAutomationError(errs[0]); ok {
		exitCode = first.GetExitCode()
		fmt.Fprintf(h.out, "\n%s\n", categoryHelp(first.Category))
	}
	return exitCode
}

// handleGenericError handles errors outside the AutomationError family
func (h *CLIErrorHandler) handleGenericError(err error) int {
	switch {
	case isFileNotFoundError(err):
		fmt.Fprintf(h.out, "Error: File not found\n")
		fmt.Fprintf(h.out, "Suggestion: Check if the file path is correct and the file exists\n")
		return 2
	case isPermissionError(err):
		fmt.Fprintf(h.out, "Error: Permission denied\n")
		fmt.Fprintf(h.out, "Suggestion: Check file permissions and ensure you have read access\n")
		return 2
	case isDiskFullError(err):
		fmt.Fprintf(h.out, "Error: Insufficient disk space\n")
		fmt.Fprintf(h.out, "Suggestion: Free up disk space and try again\n")
		return 2
	}

	fmt.Fprintf(h.out, "Error: %v\n", err)
	if !h.verbose {
		fmt.Fprintf(h.out, "\nRun with --verbose for more details\n")
	}
	return 1
}

// categoryHelp returns category-specific help text
func categoryHelp(category errors.ErrorCategory) string {
	switch category {
	case errors.CategoryFile:
		return `File error help:
• Check if the file exists and is readable
• Verify the file path is correct (use absolute paths if needed)
• Ensure you have proper permissions to access the file`

	case errors.CategoryParse:
		return `Parse error help:
• History files must be .csv, .tsv or .json
• CSV and TSV files need amount and timestamp columns
• Template files must be valid YAML with compilable patterns
• Ensure files use UTF-8 encoding`

	case errors.CategoryValidation:
		return `Validation error help:
• Check that all required values are present
• Dates use YYYY-MM-DD or DD/MM/YYYY
• Sources are message, clipboard or manual; languages are en, am or mixed`

	case errors.CategoryConfiguration:
		return `Configuration error help:
• Check your command-line flags and arguments
• Verify configuration file syntax if using --config
• AUTOMATOR_* environment variables override file settings
• Use 'automator <command> --help' to see all available options`

	case errors.CategorySession, errors.CategoryAnalysis:
		return `Analysis error help:
• Check that the history contains enough payments per counterparty
• Try lowering --min-occurrences or --threshold
• Use --as-of when analysing an old export`

	default:
		return `For more help:
• Use 'automator --help' for general help
• Use 'automator <command> --help' for command-specific help`
	}
}

func isFileNotFoundError(err error) bool {
	return stderrors.Is(err, os.ErrNotExist) || strings.Contains(err.Error(), "no such file or directory")
}

func isPermissionError(err error) bool {
	return stderrors.Is(err, os.ErrPermission) ||
		strings.Contains(err.Error(), "permission denied") ||
		strings.Contains(err.Error(), "access denied")
}

func isDiskFullError(err error) bool {
	if stderrors.Is(err, syscall.ENOSPC) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no space left") || strings.Contains(msg, "disk full")
}

// FormatErrorList formats several errors as a numbered list
func FormatErrorList(errs []error) string {
	if len(errs) == 0 {
		return ""
	}
	if len(errs) == 1 {
		return fmt.Sprintf("Error: %v", errs[0])
	}

	lines := []string{fmt.Sprintf("Found %d errors:", len(errs))}
	for i, err := range errs {
		if i == maxListedErrors {
			lines = append(lines, fmt.Sprintf("  ... and %d more errors", len(errs)-maxListedErrors))
			break
		}
		lines = append(lines, fmt.Sprintf("  %d. %v", i+1, err))
	}
	return strings.Join(lines, "\n")
}
