// Package reporter renders parse results, pattern analyses and processing
// statistics.
//
// Supported output formats:
//   - Console: human-readable output for terminal display
//   - JSON: structured data for programmatic consumption
//   - CSV: one row per item for spreadsheet applications
//
// Example usage:
//
//	gen, err := reporter.NewReportGenerator(&reporter.ReportConfig{Format: reporter.FormatJSON})
//	err = gen.GenerateAnalysisReport(analysis, os.Stdout)
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"go.uber.org/multierr"

	"transaction-automation-service/internal/automation"
	"transaction-automation-service/internal/models"
	apperrors "transaction-automation-service/pkg/errors"
)

// OutputFormat represents the supported report output formats
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	// Analysis detail
	IncludePatterns      bool `json:"include_patterns"`
	IncludeSubscriptions bool `json:"include_subscriptions"`

	// Parse detail
	IncludeFindings    bool `json:"include_findings"`
	IncludeSuggestions bool `json:"include_suggestions"`

	// MaxItems limits console lists. 0 shows everything.
	MaxItems int `json:"max_items"`

	// SortByAmount orders patterns and subscriptions by amount, largest first
	SortByAmount bool `json:"sort_by_amount"`

	CSVDelimiter rune `json:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:               FormatConsole,
		IncludePatterns:      true,
		IncludeSubscriptions: true,
		IncludeFindings:      true,
		IncludeSuggestions:   true,
		MaxItems:             20,
		CSVDelimiter:         ',',
		CSVHeaders:           true,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	var err error
	if !c.Format.IsValid() {
		err = multierr.Append(err, apperrors.ConfigurationError(
			apperrors.CodeInvalidConfig, "format", c.Format,
			fmt.Errorf("must be console, json or csv")))
	}
	if c.MaxItems < 0 {
		err = multierr.Append(err, apperrors.ConfigurationError(
			apperrors.CodeInvalidConfig, "max_items", c.MaxItems,
			fmt.Errorf("cannot be negative")))
	}
	if c.Format == FormatCSV && (c.CSVDelimiter == 0 || c.CSVDelimiter == '"' || c.CSVDelimiter == '\n') {
		err = multierr.Append(err, apperrors.ConfigurationError(
			apperrors.CodeInvalidConfig, "csv_delimiter", string(c.CSVDelimiter),
			fmt.Errorf("must be a printable separator")))
	}
	return err
}

// ParseEntry is one processed input together with its review information
type ParseEntry struct {
	Result      *automation.ProcessResult  `json:"result"`
	Findings    []models.ValidationFinding `json:"findings,omitempty"`
	Suggestions []models.Suggestion        `json:"suggestions,omitempty"`
}

// ReportGenerator generates reports in various formats
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryConfiguration, apperrors.CodeInvalidConfig,
			"invalid report configuration")
	}
	return &ReportGenerator{config: config}, nil
}

// Config returns the generator configuration
func (rg *ReportGenerator) Config() ReportConfig {
	return *rg.config
}

// GenerateAnalysisReport writes a pattern analysis
func (rg *ReportGenerator) GenerateAnalysisReport(analysis *automation.Analysis, writer io.Writer) error {
	if analysis == nil {
		return apperrors.InternalError(apperrors.CodeNilInput, "analysis_report", nil)
	}

	patterns := append([]*models.TransactionPattern(nil), analysis.Patterns...)
	subs := append([]*models.Subscription(nil), analysis.Subscriptions...)
	if rg.config.SortByAmount {
		sort.SliceStable(patterns, func(i, j int) bool {
			return patterns[i].AverageAmount.GreaterThan(patterns[j].AverageAmount)
		})
		sort.SliceStable(subs, func(i, j int) bool {
			return subs[i].Amount.GreaterThan(subs[j].Amount)
		})
	}
	if !rg.config.IncludePatterns {
		patterns = nil
	}
	if !rg.config.IncludeSubscriptions {
		subs = nil
	}

	switch rg.config.Format {
	case FormatJSON:
		return writeJSON(writer, struct {
			Entries       int                          `json:"entries"`
			Threshold     float64                      `json:"threshold"`
			AnalyzedAt    time.Time                    `json:"analyzed_at"`
			PatternCount  int                          `json:"pattern_count"`
			Patterns      []*models.TransactionPattern `json:"patterns,omitempty"`
			Subscriptions []*models.Subscription       `json:"subscriptions,omitempty"`
		}{analysis.Entries, analysis.Threshold, analysis.AnalyzedAt, len(analysis.Patterns), patterns, subs})
	case FormatCSV:
		return rg.analysisCSV(patterns, subs, writer)
	default:
		rg.analysisConsole(analysis, patterns, subs, writer)
		return nil
	}
}

func (rg *ReportGenerator) analysisConsole(analysis *automation.Analysis, patterns []*models.TransactionPattern, subs []*models.Subscription, writer io.Writer) {
	fmt.Fprintf(writer, "RECURRING PAYMENT ANALYSIS\n")
	fmt.Fprintf(writer, "Generated: %s\n", analysis.AnalyzedAt.Format(time.RFC3339))
	fmt.Fprintf(writer, "History Entries: %d\n\n", analysis.Entries)

	fmt.Fprintf(writer, "=== SUMMARY ===\n")
	fmt.Fprintf(writer, "Patterns:            %d\n", len(analysis.Patterns))
	fmt.Fprintf(writer, "Subscriptions:       %d\n", len(analysis.Subscriptions))
	fmt.Fprintf(writer, "Promotion Threshold: %.2f\n", analysis.Threshold)
	if counts := frequencyCounts(analysis.Patterns); counts != "" {
		fmt.Fprintf(writer, "By Frequency:        %s\n", counts)
	}
	fmt.Fprintf(writer, "\n")

	if len(patterns) > 0 {
		fmt.Fprintf(writer, "=== PATTERNS ===\n")
		for i, p := range patterns {
			if rg.truncated(writer, i, len(patterns)) {
				break
			}
			fmt.Fprintf(writer, "  %d. %s: %s %s, %d occurrences, confidence %.1f%%, next %s\n",
				i+1, p.Counterparty, p.AverageAmount.StringFixed(2), p.Frequency,
				p.Occurrences, p.Confidence*100, p.NextExpected.Format("2006-01-02"))
		}
		fmt.Fprintf(writer, "\n")
	}

	if len(subs) > 0 {
		fmt.Fprintf(writer, "=== SUBSCRIPTIONS ===\n")
		for i, s := range subs {
			if rg.truncated(writer, i, len(subs)) {
				break
			}
			fmt.Fprintf(writer, "  %d. %s (%s): %s %s, next billing %s\n",
				i+1, s.Name, s.Category, s.Amount.StringFixed(2), s.Frequency,
				s.NextBillingDate.Format("2006-01-02"))
			fmt.Fprintf(writer, "     %s\n", s.Notes)
		}
	}
}

func (rg *ReportGenerator) analysisCSV(patterns []*models.TransactionPattern, subs []*models.Subscription, writer io.Writer) error {
	w := rg.csvWriter(writer)
	rows := [][]string{}
	if rg.config.CSVHeaders {
		rows = append(rows, []string{
			"Type", "Name", "Counterparty", "Amount", "Frequency", "Occurrences",
			"Confidence", "Next_Date", "Category", "Notes",
		})
	}
	for _, p := range patterns {
		rows = append(rows, []string{
			"Pattern", "", p.Counterparty, p.AverageAmount.StringFixed(2), string(p.Frequency),
			fmt.Sprintf("%d", p.Occurrences), fmt.Sprintf("%.4f", p.Confidence),
			p.NextExpected.Format("2006-01-02"), "",
			fmt.Sprintf("interval %.2f days, interval variation %.4f, amount variation %.4f",
				p.AverageIntervalDays, p.IntervalVariance, p.AmountVariation),
		})
	}
	for _, s := range subs {
		rows = append(rows, []string{
			"Subscription", s.Name, s.Counterparty, s.Amount.StringFixed(2), string(s.Frequency),
			fmt.Sprintf("%d", len(s.TransactionIDs)), fmt.Sprintf("%.4f", s.Confidence),
			s.NextBillingDate.Format("2006-01-02"), s.Category, s.Notes,
		})
	}
	return writeRows(w, rows)
}

// GenerateParseReport writes the outcome of parsing a set of inputs
func (rg *ReportGenerator) GenerateParseReport(entries []ParseEntry, writer io.Writer) error {
	switch rg.config.Format {
	case FormatJSON:
		out := make([]ParseEntry, len(entries))
		for i, e := range entries {
			out[i] = ParseEntry{Result: e.Result}
			if rg.config.IncludeFindings {
				out[i].Findings = e.Findings
			}
			if rg.config.IncludeSuggestions {
				out[i].Suggestions = e.Suggestions
			}
		}
		return writeJSON(writer, out)
	case FormatCSV:
		return rg.parseCSV(entries, writer)
	default:
		rg.parseConsole(entries, writer)
		return nil
	}
}

func (rg *ReportGenerator) parseConsole(entries []ParseEntry, writer io.Writer) {
	matched := 0
	for _, e := range entries {
		if e.Result != nil && e.Result.Matched {
			matched++
		}
	}

	fmt.Fprintf(writer, "PARSE RESULTS\n")
	fmt.Fprintf(writer, "Inputs: %d, Recognised: %d (%.1f%%)\n\n", len(entries), matched, percentage(matched, len(entries)))

	for i, e := range entries {
		r := e.Result
		switch {
		case r == nil:
			fmt.Fprintf(writer, "%d. no result\n", i+1)
			continue
		case r.Err != nil:
			fmt.Fprintf(writer, "%d. [%s] error: %v\n", i+1, r.Input.Source, r.Err)
			continue
		case !r.Matched:
			fmt.Fprintf(writer, "%d. [%s] no transaction recognised\n", i+1, r.Input.Source)
			continue
		}

		tx := r.Transaction
		fmt.Fprintf(writer, "%d. [%s] %s %s %s", i+1, r.Input.Source, tx.Institution, tx.Direction, tx.Amount.StringFixed(2))
		if tx.Merchant != "" {
			fmt.Fprintf(writer, " -> %s", tx.Merchant)
		}
		fmt.Fprintf(writer, " (%s), confidence %.1f%%\n", tx.Category, tx.Confidence*100)
		fmt.Fprintf(writer, "   ID: %s, Date: %s, Language: %s\n", tx.ID, tx.Timestamp.Format("2006-01-02 15:04"), tx.Language)
		if tx.Reference != "" || tx.Balance != nil {
			fmt.Fprintf(writer, "   Reference: %s", valueOr(tx.Reference, "-"))
			if tx.Balance != nil {
				fmt.Fprintf(writer, ", Balance: %s", tx.Balance.StringFixed(2))
			}
			fmt.Fprintf(writer, "\n")
		}

		if rg.config.IncludeFindings {
			for _, f := range e.Findings {
				fmt.Fprintf(writer, "   %s %s: %s\n", strings.ToUpper(string(f.Severity)), f.Code, f.Message)
			}
		}
		if rg.config.IncludeSuggestions {
			for _, s := range e.Suggestions {
				fmt.Fprintf(writer, "   suggest %s = %q (%.2f, %s)\n", s.Field, s.Value, s.Confidence, s.Rationale)
			}
		}
	}
}

func (rg *ReportGenerator) parseCSV(entries []ParseEntry, writer io.Writer) error {
	w := rg.csvWriter(writer)
	rows := [][]string{}
	if rg.config.CSVHeaders {
		rows = append(rows, []string{
			"Index", "Source", "Matched", "ID", "Institution", "Direction", "Amount",
			"Merchant", "Category", "Date", "Confidence", "Findings", "Error",
		})
	}
	for i, e := range entries {
		r := e.Result
		if r == nil {
			continue
		}
		row := []string{fmt.Sprintf("%d", i+1), string(r.Input.Source), fmt.Sprintf("%t", r.Matched)}
		if tx := r.Transaction; tx != nil {
			codes := make([]string, 0, len(e.Findings))
			for _, f := range e.Findings {
				codes = append(codes, f.Code)
			}
			row = append(row, tx.ID, string(tx.Institution), string(tx.Direction), tx.Amount.StringFixed(2),
				tx.Merchant, tx.Category, tx.Timestamp.Format(time.RFC3339),
				fmt.Sprintf("%.4f", tx.Confidence), strings.Join(codes, ";"))
		} else {
			row = append(row, "", "", "", "", "", "", "", "", "")
		}
		if r.Err != nil {
			row = append(row, r.Err.Error())
		} else {
			row = append(row, "")
		}
		rows = append(rows, row)
	}
	return writeRows(w, rows)
}

// GenerateStatisticsReport writes a processing statistics summary
func (rg *ReportGenerator) GenerateStatisticsReport(stats *automation.Statistics, writer io.Writer) error {
	if stats == nil {
		return apperrors.InternalError(apperrors.CodeNilInput, "statistics_report", nil)
	}

	switch rg.config.Format {
	case FormatJSON:
		return writeJSON(writer, stats)
	case FormatCSV:
		w := rg.csvWriter(writer)
		rows := [][]string{}
		if rg.config.CSVHeaders {
			rows = append(rows, []string{"Metric", "Key", "Value"})
		}
		rows = append(rows,
			[]string{"total_processed", "", fmt.Sprintf("%d", stats.TotalProcessed)},
			[]string{"matched", "", fmt.Sprintf("%d", stats.Matched)},
			[]string{"success_rate", "", fmt.Sprintf("%.4f", stats.SuccessRate)},
			[]string{"mean_latency", "", stats.MeanLatency.String()},
		)
		for _, source := range sortedSources(stats.BySource) {
			s := stats.BySource[source]
			rows = append(rows, []string{"source_processed", string(source), fmt.Sprintf("%d", s.Processed)})
		}
		for _, b := range stats.ConfidenceHistogram {
			rows = append(rows, []string{"confidence_bucket", fmt.Sprintf("%.1f-%.1f", b.Lower, b.Upper), fmt.Sprintf("%d", b.Count)})
		}
		for _, c := range stats.TopCounterparties {
			rows = append(rows, []string{"counterparty", c.Counterparty, fmt.Sprintf("%d", c.Count)})
		}
		return writeRows(w, rows)
	default:
		fmt.Fprintf(writer, "=== PROCESSING STATISTICS ===\n")
		fmt.Fprintf(writer, "Processed:    %d\n", stats.TotalProcessed)
		fmt.Fprintf(writer, "Recognised:   %d (%.1f%%)\n", stats.Matched, stats.SuccessRate*100)
		fmt.Fprintf(writer, "Mean Latency: %v\n", stats.MeanLatency)
		for _, source := range sortedSources(stats.BySource) {
			s := stats.BySource[source]
			fmt.Fprintf(writer, "  %-10s %d processed, %d recognised\n", source, s.Processed, s.Matched)
		}
		fmt.Fprintf(writer, "\nConfidence:\n")
		for _, b := range stats.ConfidenceHistogram {
			fmt.Fprintf(writer, "  %.1f-%.1f  %s %d\n", b.Lower, b.Upper, strings.Repeat("#", b.Count), b.Count)
		}
		if len(stats.TopCounterparties) > 0 {
			fmt.Fprintf(writer, "\nTop Counterparties:\n")
			for i, c := range stats.TopCounterparties {
				fmt.Fprintf(writer, "  %d. %s (%d)\n", i+1, c.Counterparty, c.Count)
			}
		}
		return nil
	}
}

func (rg *ReportGenerator) csvWriter(writer io.Writer) *csv.Writer {
	w := csv.NewWriter(writer)
	w.Comma = rg.config.CSVDelimiter
	return w
}

// truncated prints a continuation line and reports true once MaxItems is reached
func (rg *ReportGenerator) truncated(writer io.Writer, i, total int) bool {
	if rg.config.MaxItems > 0 && i >= rg.config.MaxItems {
		fmt.Fprintf(writer, "  ... and %d more\n", total-rg.config.MaxItems)
		return true
	}
	return false
}

func writeJSON(writer io.Writer, v interface{}) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON report: %w", err)
	}
	return nil
}

func writeRows(w *csv.Writer, rows [][]string) error {
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write CSV report: %w", err)
	}
	return nil
}

func frequencyCounts(patterns []*models.TransactionPattern) string {
	counts := make(map[models.Frequency]int)
	for _, p := range patterns {
		counts[p.Frequency]++
	}
	order := []models.Frequency{
		models.FrequencyWeekly, models.FrequencyMonthly, models.FrequencyQuarterly,
		models.FrequencyYearly, models.FrequencyUnknown,
	}
	var parts []string
	for _, f := range order {
		if counts[f] > 0 {
			parts = append(parts, fmt.Sprintf("%s: %d", f, counts[f]))
		}
	}
	return strings.Join(parts, ", ")
}

func sortedSources(m map[models.Source]automation.SourceStats) []models.Source {
	sources := make([]models.Source, 0, len(m))
	for s := range m {
		sources = append(sources, s)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i] < sources[j] })
	return sources
}

func percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
