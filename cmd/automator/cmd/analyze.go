package cmd

import (
	"context"
	"fmt"
	"time"

	"transaction-automation-service/internal/history"
	"transaction-automation-service/internal/recurring"
	apperrors "transaction-automation-service/pkg/errors"
	"transaction-automation-service/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const asOfLayout = "2006-01-02"

// Flags for the analyze command
var (
	historyFile string
	asOf        string
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Find recurring payments in a transaction history",
	Long: `Analyze groups a transaction history by counterparty, detects payments that
repeat at a regular interval and promotes confident patterns to subscriptions.

The history is a CSV, TSV or JSON file. CSV and TSV files need at least an
amount and a timestamp column; common header spellings are recognised.

Examples:
  # Basic analysis
  automator analyze --history transactions.csv

  # Stricter detection, JSON output to a file
  automator analyze --history history.json --min-occurrences 4 --threshold 0.8 \
    --output-format json --output-file patterns.json

  # Analyse an old export as of its last day
  automator analyze --history 2023.csv --as-of 2023-12-31 --lookback 365`,

	PreRunE: validateAnalyzeFlags,
	RunE:    runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVarP(&historyFile, "history", "H", "", "path to transaction history file: csv, tsv or json (required)")
	analyzeCmd.Flags().StringVar(&asOf, "as-of", "", "analysis date (YYYY-MM-DD, default: today)")
	analyzeCmd.Flags().Int("min-occurrences", 3, "minimum payments needed for a pattern")
	analyzeCmd.Flags().Float64("threshold", 0.7, "minimum confidence for subscription promotion (0.0-1.0)")
	analyzeCmd.Flags().Int("lookback", 365, "days of history to analyse")
	analyzeCmd.Flags().Bool("exclude-income", false, "leave incoming payments out of the analysis")

	analyzeCmd.MarkFlagRequired("history")

	viper.BindPFlag("history-file", analyzeCmd.Flags().Lookup("history"))
	viper.BindPFlag("as-of", analyzeCmd.Flags().Lookup("as-of"))
	viper.BindPFlag("detection.min_occurrences", analyzeCmd.Flags().Lookup("min-occurrences"))
	viper.BindPFlag("detection.confidence_threshold", analyzeCmd.Flags().Lookup("threshold"))
	viper.BindPFlag("detection.lookback_days", analyzeCmd.Flags().Lookup("lookback"))
	viper.BindPFlag("detection.exclude_income", analyzeCmd.Flags().Lookup("exclude-income"))
}

func validateAnalyzeFlags(cmd *cobra.Command, args []string) error {
	historyFile = viper.GetString("history-file")
	asOf = viper.GetString("as-of")

	if historyFile == "" {
		return apperrors.ValidationError(apperrors.CodeMissingField, "history", nil, nil).
			WithSuggestion("Pass the history file with --history")
	}
	if err := validateFileExists(historyFile, "history file"); err != nil {
		return err
	}
	if _, ok := history.FormatFor(historyFile); !ok {
		return apperrors.ParseError(apperrors.CodeInvalidFormat, historyFile, "", nil).
			WithSuggestion("Use a .csv, .tsv or .json history file")
	}
	if _, err := analysisClock(asOf); err != nil {
		return err
	}
	return nil
}

// analysisClock returns a clock fixed at the end of the as-of day, or
// time.Now when no date is given
func analysisClock(value string) (func() time.Time, error) {
	if value == "" {
		return time.Now, nil
	}
	day, err := time.ParseInLocation(asOfLayout, value, time.Local)
	if err != nil {
		return nil, apperrors.ValidationError(apperrors.CodeInvalidDate, "as-of", value, err).
			WithSuggestion("Use the YYYY-MM-DD format")
	}
	end := day.Add(24*time.Hour - time.Second)
	return func() time.Time { return end }, nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	clock, err := analysisClock(asOf)
	if err != nil {
		return err
	}

	loaderConfig, err := appConfig.History.LoaderConfig()
	if err != nil {
		return err
	}
	loader, err := history.NewLoader(loaderConfig,
		history.WithClock(clock),
		history.WithLogger(logger.WithComponent("history")))
	if err != nil {
		return err
	}

	entries, stats, err := loader.LoadFile(ctx, historyFile)
	if err != nil {
		return err
	}
	if stats.HasErrors() {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: skipped %d invalid rows in %s\n", len(stats.Errors), historyFile)
		for _, line := range stats.SampleErrors(5) {
			fmt.Fprintf(cmd.ErrOrStderr(), "  %s\n", line)
		}
	}

	svc, err := newService(appConfig, clock)
	if err != nil {
		return err
	}
	analysis := svc.AnalyzeHistory(entries, recurring.DetectionOptions{})

	generator, err := newReportGenerator(appConfig)
	if err != nil {
		return err
	}

	output, closeOutput, err := openOutput(viper.GetString("output-file"), cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer closeOutput()

	if err := generator.WriteAnalysis(analysis, output); err != nil {
		return err
	}

	if viper.GetBool("verbose") {
		fmt.Fprintf(cmd.ErrOrStderr(), "\n%s\n", stats)
		fmt.Fprintf(cmd.ErrOrStderr(), "Found %d patterns and %d subscriptions.\n",
			len(analysis.Patterns), len(analysis.Subscriptions))
	}
	return nil
}
