package config

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"transaction-automation-service/internal/automation"
	"transaction-automation-service/internal/history"
	"transaction-automation-service/internal/parser"
	"transaction-automation-service/internal/recurring"
	"transaction-automation-service/internal/reporter"
	apperrors "transaction-automation-service/pkg/errors"
	"transaction-automation-service/pkg/logger"

	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

// Config is the complete CLI configuration as read from file, environment and flags
type Config struct {
	// Templates is an optional template bank file replacing the embedded one
	Templates string `mapstructure:"templates"`

	Log        *logger.Config             `mapstructure:"log"`
	Parser     *parser.Config             `mapstructure:"parser"`
	Detection  *recurring.DetectionConfig `mapstructure:"detection"`
	Automation *automation.Config         `mapstructure:"automation"`
	History    HistorySettings            `mapstructure:"history"`
	Report     ReportSettings             `mapstructure:"report"`
}

// HistorySettings mirrors history.Config with text separators so that
// they can be written in YAML or environment variables
type HistorySettings struct {
	HasHeader       bool                `mapstructure:"has_header"`
	Delimiter       string              `mapstructure:"delimiter"`
	Comment         string              `mapstructure:"comment"`
	MaxErrors       int                 `mapstructure:"max_errors"`
	ContinueOnError bool                `mapstructure:"continue_on_error"`
	ColumnAliases   map[string][]string `mapstructure:"column_aliases"`
}

// ReportSettings selects the output format and detail
type ReportSettings struct {
	Format             string `mapstructure:"format"`
	MaxItems           int    `mapstructure:"max_items"`
	SortByAmount       bool   `mapstructure:"sort_by_amount"`
	IncludeFindings    bool   `mapstructure:"include_findings"`
	IncludeSuggestions bool   `mapstructure:"include_suggestions"`
	CSVDelimiter       string `mapstructure:"csv_delimiter"`
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	hist := history.DefaultConfig()
	report := reporter.DefaultReportConfig()

	return &Config{
		Log:        logger.DefaultConfig(),
		Parser:     parser.DefaultConfig(),
		Detection:  recurring.DefaultDetectionConfig(),
		Automation: automation.DefaultConfig(),
		History: HistorySettings{
			HasHeader:       hist.HasHeader,
			Delimiter:       string(hist.Delimiter),
			Comment:         string(hist.Comment),
			MaxErrors:       hist.MaxErrors,
			ContinueOnError: hist.ContinueOnError,
		},
		Report: ReportSettings{
			Format:             string(report.Format),
			MaxItems:           report.MaxItems,
			IncludeFindings:    report.IncludeFindings,
			IncludeSuggestions: report.IncludeSuggestions,
			CSVDelimiter:       string(report.CSVDelimiter),
		},
	}
}

// Load decodes v on top of the defaults and validates the result
func Load(v *viper.Viper) (*Config, error) {
	cfg := Default()
	if v == nil {
		return cfg, nil
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryConfiguration, apperrors.CodeInvalidConfig,
			"failed to decode configuration").
			WithSuggestion("Check the configuration file syntax and value types")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section and reports all problems together
func (c *Config) Validate() error {
	var errs error

	if c.Log != nil {
		if err := c.Log.Validate(); err != nil {
			errs = multierr.Append(errs, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "log", err.Error(), err))
		}
	}
	if c.Parser != nil {
		if err := c.Parser.Validate(); err != nil {
			errs = multierr.Append(errs, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "parser", err.Error(), err))
		}
	}
	if c.Detection != nil {
		errs = multierr.Append(errs, c.Detection.Validate())
	}
	if c.Automation != nil {
		errs = multierr.Append(errs, c.Automation.Validate())
	}
	if loaderCfg, err := c.History.LoaderConfig(); err != nil {
		errs = multierr.Append(errs, err)
	} else {
		errs = multierr.Append(errs, loaderCfg.Validate())
	}
	if reportCfg, err := c.Report.ReportConfig(); err != nil {
		errs = multierr.Append(errs, err)
	} else {
		errs = multierr.Append(errs, reportCfg.Validate())
	}

	return errs
}

// LoaderConfig converts the settings into a history loader configuration
func (h HistorySettings) LoaderConfig() (*history.Config, error) {
	cfg := history.DefaultConfig()
	cfg.HasHeader = h.HasHeader
	cfg.MaxErrors = h.MaxErrors
	cfg.ContinueOnError = h.ContinueOnError

	var errs error
	if r, err := singleRune("history.delimiter", h.Delimiter, ','); err != nil {
		errs = multierr.Append(errs, err)
	} else {
		cfg.Delimiter = r
	}
	if r, err := singleRune("history.comment", h.Comment, 0); err != nil {
		errs = multierr.Append(errs, err)
	} else {
		cfg.Comment = r
	}
	if errs != nil {
		return nil, errs
	}

	for column, aliases := range h.ColumnAliases {
		cfg.ColumnAliases[strings.ToLower(column)] = aliases
	}
	return cfg, nil
}

// ReportConfig converts the settings into a reporter configuration
func (r ReportSettings) ReportConfig() (*reporter.ReportConfig, error) {
	cfg := reporter.DefaultReportConfig()
	cfg.Format = reporter.OutputFormat(strings.ToLower(strings.TrimSpace(r.Format)))
	cfg.MaxItems = r.MaxItems
	cfg.SortByAmount = r.SortByAmount
	cfg.IncludeFindings = r.IncludeFindings
	cfg.IncludeSuggestions = r.IncludeSuggestions

	d, err := singleRune("report.csv_delimiter", r.CSVDelimiter, ',')
	if err != nil {
		return nil, err
	}
	cfg.CSVDelimiter = d
	return cfg, nil
}

// singleRune reads a one-character setting. "\t" and "tab" name a tab.
func singleRune(setting, value string, empty rune) (rune, error) {
	switch value {
	case "":
		return empty, nil
	case `\t`, "tab":
		return '\t', nil
	}
	if utf8.RuneCountInString(value) != 1 {
		return 0, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, setting, value,
			fmt.Errorf("must be a single character"))
	}
	r, _ := utf8.DecodeRuneInString(value)
	return r, nil
}
