package cmd

import (
	"encoding/json"
	"fmt"

	"transaction-automation-service/internal/history"
	"transaction-automation-service/internal/reporter"
	apperrors "transaction-automation-service/pkg/errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the generate command
var (
	generateEnd    string
	generateMonths int
	generateSeed   int64
	generateNoise  int
)

// generateCmd represents the generate command
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a synthetic transaction history",
	Long: `Generate writes a reproducible transaction history with a few recurring
payment streams (streaming, telecom, gym, coffee, salary) mixed with one-off
payments. The output can be fed straight back into 'automator analyze'.

CSV is written unless --output-format json is given.

Examples:
  automator generate --output-file history.csv
  automator generate --months 24 --seed 7 --noise 200 --end 2024-06-30 -o history.csv
  automator analyze --history history.csv`,

	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVar(&generateEnd, "end", "", "last day of the history (YYYY-MM-DD, default: today)")
	generateCmd.Flags().IntVar(&generateMonths, "months", 12, "months of history to generate")
	generateCmd.Flags().Int64Var(&generateSeed, "seed", 1, "random seed")
	generateCmd.Flags().IntVar(&generateNoise, "noise", 60, "number of one-off payments")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	if generateMonths < 1 {
		return apperrors.ValidationError(apperrors.CodeOutOfRange, "months", generateMonths, nil).
			WithSuggestion("Generate at least one month")
	}

	clock, err := analysisClock(generateEnd)
	if err != nil {
		return err
	}
	end := clock()

	cfg := history.DefaultGeneratorConfig(end)
	cfg.Start = end.AddDate(0, -generateMonths, 0)
	cfg.Seed = generateSeed
	cfg.NoiseCount = generateNoise

	generator, err := history.NewGenerator(cfg)
	if err != nil {
		return err
	}
	entries := generator.Generate()

	output, closeOutput, err := openOutput(viper.GetString("output-file"), cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer closeOutput()

	if reporter.OutputFormat(appConfig.Report.Format) == reporter.FormatJSON {
		encoder := json.NewEncoder(output)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(entries); err != nil {
			return apperrors.InternalError(apperrors.CodeUnexpectedError, "generate", err)
		}
	} else if err := history.WriteCSV(output, entries); err != nil {
		return err
	}

	if viper.GetBool("verbose") {
		fmt.Fprintf(cmd.ErrOrStderr(), "Generated %d entries from %s to %s (seed %d)\n",
			len(entries), cfg.Start.Format(asOfLayout), end.Format(asOfLayout), generateSeed)
	}
	return nil
}
