package cmd

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"transaction-automation-service/cmd/automator/config"
	"transaction-automation-service/internal/automation"
	"transaction-automation-service/internal/parser"
	"transaction-automation-service/internal/recurring"
	"transaction-automation-service/internal/reporter"
	"transaction-automation-service/internal/templates"
	apperrors "transaction-automation-service/pkg/errors"
	"transaction-automation-service/pkg/logger"
)

// loadTemplateBank returns the embedded bank, or the bank stored at path
func loadTemplateBank(path string) (*templates.Bank, error) {
	if path == "" {
		return templates.Default()
	}
	if err := validateFileExists(path, "template file"); err != nil {
		return nil, err
	}
	return templates.Load(path)
}

// newService wires parser, detector and orchestrator from the CLI configuration
func newService(cfg *config.Config, now func() time.Time) (*automation.Service, error) {
	bank, err := loadTemplateBank(cfg.Templates)
	if err != nil {
		return nil, err
	}

	log := logger.WithComponent("cli")
	p, err := parser.NewParser(bank, cfg.Parser, parser.WithClock(now))
	if err != nil {
		return nil, err
	}

	detector, err := recurring.NewDetector(cfg.Detection,
		recurring.WithDetectorClock(now),
		recurring.WithDetectorLogger(logger.WithComponent("recurring")))
	if err != nil {
		return nil, err
	}

	log.WithFields(logger.Fields{
		"templates":    valueOr(cfg.Templates, "embedded"),
		"institutions": len(bank.Institutions()),
	}).Debug("Template bank loaded")

	return automation.NewService(p,
		automation.WithConfig(cfg.Automation),
		automation.WithDetector(detector),
		automation.WithClock(now),
	)
}

// newReportGenerator builds a safe generator for the configured report settings
func newReportGenerator(cfg *config.Config) (*reporter.SafeReportGenerator, error) {
	reportConfig, err := cfg.Report.ReportConfig()
	if err != nil {
		return nil, err
	}
	return reporter.NewSafeReportGenerator(reportConfig, logger.GetGlobalLogger())
}

// openOutput returns stdout, or a created file when path is set
func openOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" {
		return stdout, func() error { return nil }, nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return nil, nil, apperrors.FileError(apperrors.CodeFileNotFound, dir, err).
				WithSuggestion("Create the output directory first")
		}
	}

	f, err := os.Create(path)
	if err != nil {
		code := apperrors.CodeFilePermission
		if os.IsNotExist(err) {
			code = apperrors.CodeFileNotFound
		}
		return nil, nil, apperrors.FileError(code, path, err)
	}
	return f, f.Close, nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return apperrors.ValidationError(apperrors.CodeMissingField, description, filePath, nil)
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return apperrors.FileError(apperrors.CodeFileNotFound, filePath, err).
			WithContext("description", description)
	}
	if err != nil {
		return apperrors.FileError(apperrors.CodeFilePermission, filePath, err).
			WithContext("description", description)
	}
	if info.IsDir() {
		return apperrors.FileError(apperrors.CodeInvalidFormat, filePath, nil).
			WithContext("description", description).
			WithSuggestion("Pass a file, not a directory")
	}

	// Check if file is readable
	file, err := os.Open(filePath)
	if err != nil {
		return apperrors.FileError(apperrors.CodeFilePermission, filePath, err).
			WithContext("description", description)
	}
	file.Close()

	return nil
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
