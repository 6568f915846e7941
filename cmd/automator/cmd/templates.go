package cmd

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"transaction-automation-service/internal/reporter"
	"transaction-automation-service/internal/templates"
	apperrors "transaction-automation-service/pkg/errors"

	"github.com/spf13/cobra"
)

var templateFields = []string{"name", "debit", "credit", "transfer", "amount", "balance", "reference", "merchant", "reason", "date"}

// templatesCmd represents the templates command
var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List the institutions and patterns in the template bank",
	Long: `Templates prints every institution of the loaded template bank with the
number of patterns per field and language.

Examples:
  automator templates
  automator templates --templates custom.yaml --output-format json`,

	RunE: runTemplates,
}

func init() {
	rootCmd.AddCommand(templatesCmd)
}

func runTemplates(cmd *cobra.Command, args []string) error {
	bank, err := loadTemplateBank(appConfig.Templates)
	if err != nil {
		return err
	}

	format := reporter.OutputFormat(appConfig.Report.Format)
	return writeTemplateSummaries(bank.Document().Summaries(), format, cmd.OutOrStdout())
}

func writeTemplateSummaries(summaries []templates.Summary, format reporter.OutputFormat, w io.Writer) error {
	switch format {
	case reporter.FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(summaries)
	case reporter.FormatConsole, reporter.FormatCSV:
	default:
		return apperrors.ValidationError(apperrors.CodeOutOfRange, "output-format", format, nil)
	}

	header := append([]string{"institution", "display_name", "language"}, templateFields...)
	rows := [][]string{header}
	for _, s := range summaries {
		row := []string{string(s.Institution), s.DisplayName, string(s.Language)}
		for _, field := range templateFields {
			row = append(row, strconv.Itoa(s.Counts[field]))
		}
		rows = append(rows, row)
	}

	if format == reporter.FormatCSV {
		cw := csv.NewWriter(w)
		if err := cw.WriteAll(rows); err != nil {
			return apperrors.InternalError(apperrors.CodeUnexpectedError, "write_templates", err)
		}
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return apperrors.InternalError(apperrors.CodeUnexpectedError, "write_templates", err)
	}
	return nil
}
