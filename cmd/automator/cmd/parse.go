package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"transaction-automation-service/internal/automation"
	"transaction-automation-service/internal/models"
	"transaction-automation-service/internal/reporter"
	"transaction-automation-service/internal/suggestion"
	"transaction-automation-service/internal/validation"
	apperrors "transaction-automation-service/pkg/errors"
	"transaction-automation-service/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the parse command
var (
	parseTexts  []string
	parseSource string
	parseLang   string
	parseStats  bool
)

// parseCmd represents the parse command
var parseCmd = &cobra.Command{
	Use:   "parse [message...]",
	Short: "Parse notification messages into transactions",
	Long: `Parse recognises bank and wallet notification messages and prints the
structured transaction, validation findings and edit suggestions for each.

Messages are taken from --text flags and arguments. When neither is given,
every non-empty line of standard input is parsed as one message.

Examples:
  # Single message
  automator parse --text "You have paid ETB 199.00 to Ethio Telecom on 01/06/2024"

  # Several messages from a file, as JSON
  automator parse --output-format json < messages.txt

  # Clipboard text may fall back to keyword extraction
  automator parse --source clipboard "paid 250 birr for lunch"

  # Add processing statistics
  automator parse --stats < messages.txt`,

	PreRunE: validateParseFlags,
	RunE:    runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().StringArrayVarP(&parseTexts, "text", "t", nil, "message text to parse (repeatable)")
	parseCmd.Flags().StringVarP(&parseSource, "source", "s", string(models.SourceMessage), "input source: message, clipboard, manual")
	parseCmd.Flags().StringVarP(&parseLang, "lang", "l", "", "language hint: en, am, mixed (default: detect)")
	parseCmd.Flags().BoolVar(&parseStats, "stats", false, "print processing statistics after the results")
	parseCmd.Flags().Int("concurrency", 4, "maximum messages parsed in parallel")

	viper.BindPFlag("source", parseCmd.Flags().Lookup("source"))
	viper.BindPFlag("lang", parseCmd.Flags().Lookup("lang"))
	viper.BindPFlag("automation.batch_concurrency", parseCmd.Flags().Lookup("concurrency"))
}

func validateParseFlags(cmd *cobra.Command, args []string) error {
	parseSource = viper.GetString("source")
	parseLang = viper.GetString("lang")

	if !models.Source(parseSource).IsValid() {
		return apperrors.ValidationError(apperrors.CodeOutOfRange, "source", parseSource, nil).
			WithSuggestion("Use one of: message, clipboard, manual")
	}
	if parseLang != "" && !models.Language(parseLang).IsValid() {
		return apperrors.ValidationError(apperrors.CodeOutOfRange, "lang", parseLang, nil).
			WithSuggestion("Use one of: en, am, mixed, or leave empty to detect")
	}
	return nil
}

func runParse(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	texts, err := collectMessages(parseTexts, args, cmd.InOrStdin())
	if err != nil {
		return err
	}
	if len(texts) == 0 {
		return apperrors.ValidationError(apperrors.CodeMissingField, "text", nil, nil).
			WithSuggestion("Pass --text, message arguments, or pipe messages on standard input")
	}

	svc, err := newService(appConfig, time.Now)
	if err != nil {
		return err
	}

	now := time.Now()
	inputs := make([]automation.Input, len(texts))
	for i, text := range texts {
		inputs[i] = automation.Input{
			Text:       text,
			Source:     models.Source(parseSource),
			Hint:       models.Language(parseLang),
			ReceivedAt: now,
		}
	}

	results := svc.ProcessBatch(ctx, inputs)
	if err := ctx.Err(); err != nil {
		return apperrors.InternalError(apperrors.CodeUnexpectedError, "parse", err)
	}
	entries := reviewResults(results)

	generator, err := newReportGenerator(appConfig)
	if err != nil {
		return err
	}

	output, closeOutput, err := openOutput(viper.GetString("output-file"), cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer closeOutput()

	if err := generator.WriteParseResults(entries, output); err != nil {
		return err
	}
	if parseStats {
		if generator.Config().Format == reporter.FormatConsole {
			fmt.Fprintln(output)
		}
		if err := generator.WriteStatistics(svc.Statistics(0), output); err != nil {
			return err
		}
	}

	if viper.GetBool("verbose") {
		stats := svc.Statistics(0)
		fmt.Fprintf(cmd.ErrOrStderr(), "Parsed %d messages, recognised %d.\n", stats.TotalProcessed, stats.Matched)
	}
	return nil
}

// reviewResults attaches validation findings and suggestions to every
// recognised transaction
func reviewResults(results []*automation.ProcessResult) []reporter.ParseEntry {
	validator := validation.NewValidator(nil)
	engine := suggestion.NewEngine(suggestion.WithLogger(logger.WithComponent("suggestion")))

	entries := make([]reporter.ParseEntry, len(results))
	for i, result := range results {
		entries[i].Result = result
		if result == nil || result.Transaction == nil {
			continue
		}
		entries[i].Findings = validator.Validate(result.Transaction)
		entries[i].Suggestions = engine.Suggest(result.Transaction)
	}
	return entries
}

// collectMessages returns the flag texts and arguments, or the non-empty
// lines of stdin when neither was given
func collectMessages(texts, args []string, stdin io.Reader) ([]string, error) {
	var messages []string
	for _, s := range append(append([]string{}, texts...), args...) {
		if s = strings.TrimSpace(s); s != "" {
			messages = append(messages, s)
		}
	}
	if len(messages) > 0 || stdin == nil {
		return messages, nil
	}

	scanner := bufio.NewScanner(stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			messages = append(messages, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, apperrors.FileError(apperrors.CodeFilePermission, "stdin", err).
			WithSuggestion("Check the piped input")
	}
	return messages, nil
}
