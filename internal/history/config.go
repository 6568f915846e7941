// Package history loads externally supplied transaction histories for
// pattern analysis.
package history

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"

	apperrors "transaction-automation-service/pkg/errors"
)

// Canonical column names
const (
	ColumnID           = "id"
	ColumnAmount       = "amount"
	ColumnCounterparty = "counterparty"
	ColumnInstitution  = "institution"
	ColumnTimestamp    = "timestamp"
	ColumnDirection    = "direction"
	ColumnConfidence   = "confidence"
)

// Config controls how history files are read
type Config struct {
	HasHeader        bool `mapstructure:"has_header" json:"has_header"`
	Delimiter        rune `mapstructure:"delimiter" json:"delimiter"`
	Comment          rune `mapstructure:"comment" json:"comment"`
	TrimLeadingSpace bool `mapstructure:"trim_leading_space" json:"trim_leading_space"`
	SkipEmptyRows    bool `mapstructure:"skip_empty_rows" json:"skip_empty_rows"`

	// MaxErrors stops loading once this many bad rows were seen. 0 is unlimited.
	MaxErrors int `mapstructure:"max_errors" json:"max_errors"`

	// ContinueOnError skips bad rows instead of failing the load
	ContinueOnError bool `mapstructure:"continue_on_error" json:"continue_on_error"`

	// ColumnAliases lists the accepted header spellings for each canonical column
	ColumnAliases map[string][]string `mapstructure:"column_aliases" json:"column_aliases"`
}

// DefaultConfig returns the default loader configuration
func DefaultConfig() *Config {
	return &Config{
		HasHeader:        true,
		Delimiter:        ',',
		Comment:          '#',
		TrimLeadingSpace: true,
		SkipEmptyRows:    true,
		MaxErrors:        100,
		ContinueOnError:  true,
		ColumnAliases: map[string][]string{
			ColumnID:           {"id", "transaction_id", "trx_id", "reference", "ref"},
			ColumnAmount:       {"amount", "value", "debit_amount"},
			ColumnCounterparty: {"counterparty", "merchant", "payee", "description", "narration"},
			ColumnInstitution:  {"institution", "bank", "provider"},
			ColumnTimestamp:    {"timestamp", "date", "transaction_date", "time"},
			ColumnDirection:    {"direction", "type", "dr_cr"},
			ColumnConfidence:   {"confidence", "score"},
		},
	}
}

// RequiredColumns are the columns a CSV history must provide
func RequiredColumns() []string {
	return []string{ColumnAmount, ColumnTimestamp}
}

// Validate checks the configuration and reports every problem found
func (c *Config) Validate() error {
	var err error

	if c.Delimiter == 0 || c.Delimiter == '\n' || c.Delimiter == '\r' || c.Delimiter == '"' {
		err = multierr.Append(err, apperrors.ConfigurationError(
			apperrors.CodeInvalidConfig, "delimiter", string(c.Delimiter),
			fmt.Errorf("delimiter must be a printable separator")))
	}
	if c.Comment != 0 && c.Comment == c.Delimiter {
		err = multierr.Append(err, apperrors.ConfigurationError(
			apperrors.CodeConfigConflict, "comment", string(c.Comment),
			fmt.Errorf("comment character cannot equal the delimiter")))
	}
	if c.MaxErrors < 0 {
		err = multierr.Append(err, apperrors.ConfigurationError(
			apperrors.CodeInvalidConfig, "max_errors", c.MaxErrors,
			fmt.Errorf("cannot be negative")))
	}

	owner := make(map[string]string)
	for column, aliases := range c.ColumnAliases {
		for _, alias := range aliases {
			key := strings.ToLower(strings.TrimSpace(alias))
			if prev, ok := owner[key]; ok && prev != column {
				err = multierr.Append(err, apperrors.ConfigurationError(
					apperrors.CodeConfigConflict, "column_aliases", alias,
					fmt.Errorf("alias used by both %s and %s", prev, column)))
				continue
			}
			owner[key] = column
		}
	}

	return err
}

// Clone returns a deep copy of the configuration
func (c *Config) Clone() *Config {
	clone := *c
	clone.ColumnAliases = make(map[string][]string, len(c.ColumnAliases))
	for column, aliases := range c.ColumnAliases {
		clone.ColumnAliases[column] = append([]string(nil), aliases...)
	}
	return &clone
}

// aliasesFor returns the accepted spellings of a canonical column, always
// including the canonical name itself
func (c *Config) aliasesFor(column string) []string {
	aliases := c.ColumnAliases[column]
	for _, a := range aliases {
		if strings.EqualFold(a, column) {
			return aliases
		}
	}
	return append([]string{column}, aliases...)
}
