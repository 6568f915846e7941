package reporter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"transaction-automation-service/internal/automation"
	apperrors "transaction-automation-service/pkg/errors"
	"transaction-automation-service/pkg/logger"
)

// renderFunc writes one report with a given generator
type renderFunc func(*ReportGenerator, io.Writer) error

// SafeReportGenerator wraps ReportGenerator with logging and fallbacks: a
// failed JSON or CSV report is retried as console output, and a report that
// cannot be written to its file is saved next to it.
type SafeReportGenerator struct {
	*ReportGenerator
	logger logger.Logger
}

// NewSafeReportGenerator creates a new safe report generator
func NewSafeReportGenerator(config *ReportConfig, log logger.Logger) (*SafeReportGenerator, error) {
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	generator, err := NewReportGenerator(config)
	if err != nil {
		return nil, err
	}

	return &SafeReportGenerator{
		ReportGenerator: generator,
		logger:          log.WithComponent("reporter"),
	}, nil
}

// WriteAnalysis renders a pattern analysis
func (srg *SafeReportGenerator) WriteAnalysis(analysis *automation.Analysis, writer io.Writer) error {
	if analysis == nil {
		return apperrors.ValidationError(apperrors.CodeMissingField, "analysis", nil, nil)
	}
	return srg.generate("analysis", writer, func(g *ReportGenerator, w io.Writer) error {
		return g.GenerateAnalysisReport(analysis, w)
	})
}

// WriteParseResults renders parse results
func (srg *SafeReportGenerator) WriteParseResults(entries []ParseEntry, writer io.Writer) error {
	return srg.generate("parse", writer, func(g *ReportGenerator, w io.Writer) error {
		return g.GenerateParseReport(entries, w)
	})
}

// WriteStatistics renders processing statistics
func (srg *SafeReportGenerator) WriteStatistics(stats *automation.Statistics, writer io.Writer) error {
	if stats == nil {
		return apperrors.ValidationError(apperrors.CodeMissingField, "statistics", nil, nil)
	}
	return srg.generate("statistics", writer, func(g *ReportGenerator, w io.Writer) error {
		return g.GenerateStatisticsReport(stats, w)
	})
}

func (srg *SafeReportGenerator) generate(report string, writer io.Writer, render renderFunc) error {
	if writer == nil {
		return apperrors.ValidationError(apperrors.CodeMissingField, "writer", nil, nil).
			WithSuggestion("Provide a valid output writer")
	}

	log := srg.logger.WithFields(logger.Fields{
		"report": report,
		"format": srg.config.Format,
		"output": writerDescription(writer),
	})
	log.Debug("Starting report generation")

	err := render(srg.ReportGenerator, writer)
	if err == nil {
		log.Debug("Report generation completed")
		return nil
	}
	log.WithError(err).Warn("Report generation failed, attempting fallback")

	if file, ok := writer.(*os.File); ok && isFileError(err) {
		return srg.outputFallback(file, render, err)
	}
	if srg.config.Format != FormatConsole {
		return srg.formatFallback(writer, render, err)
	}
	return wrapGenerationError(err)
}

func (srg *SafeReportGenerator) formatFallback(writer io.Writer, render renderFunc, originalErr error) error {
	fallbackConfig := *srg.config
	fallbackConfig.Format = FormatConsole

	fallback, err := NewReportGenerator(&fallbackConfig)
	if err != nil {
		return wrapGenerationError(originalErr)
	}

	fmt.Fprintf(writer, "NOTE: Report generated in console format due to an error with %s output\n", srg.config.Format)
	fmt.Fprintf(writer, "Original error: %v\n\n", originalErr)

	if err := render(fallback, writer); err != nil {
		return apperrors.InternalError(apperrors.CodeUnexpectedError, "report_fallback",
			fmt.Errorf("both primary and fallback generation failed: primary=%v, fallback=%v", originalErr, err))
	}

	srg.logger.WithField("fallback_format", FormatConsole).Info("Report generated using format fallback")
	return nil
}

func (srg *SafeReportGenerator) outputFallback(file *os.File, render renderFunc, originalErr error) error {
	backupPath := backupPath(file.Name())
	backup, err := os.Create(backupPath)
	if err != nil {
		return wrapGenerationError(originalErr)
	}
	defer backup.Close()

	if err := render(srg.ReportGenerator, backup); err != nil {
		return apperrors.InternalError(apperrors.CodeUnexpectedError, "report_output_fallback",
			fmt.Errorf("both primary and backup output failed: primary=%v, backup=%v", originalErr, err))
	}

	srg.logger.WithFields(logger.Fields{
		"original_file": file.Name(),
		"backup_file":   backupPath,
	}).Warn("Report saved to backup location")
	return nil
}

func wrapGenerationError(err error) error {
	if automationErr, ok := apperrors.AsAutomationError(err); ok {
		return automationErr
	}
	return apperrors.InternalError(apperrors.CodeUnexpectedError, "report_generation", err).
		WithSuggestion("Check the output destination and report format settings")
}

func backupPath(originalPath string) string {
	dir := filepath.Dir(originalPath)
	base := filepath.Base(originalPath)
	ext := filepath.Ext(base)
	return filepath.Join(dir, fmt.Sprintf("%s_backup%s", strings.TrimSuffix(base, ext), ext))
}

func isFileError(err error) bool {
	if os.IsPermission(err) || os.IsNotExist(err) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "no space left") || strings.Contains(msg, "disk full")
}

func writerDescription(writer io.Writer) string {
	if f, ok := writer.(*os.File); ok {
		return fmt.Sprintf("file:%s", f.Name())
	}
	return fmt.Sprintf("writer:%T", writer)
}
