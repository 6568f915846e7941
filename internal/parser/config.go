// Package parser turns free-form institution notification text into
// ParsedMessage records.
//
// Parsing runs in four stages:
//  1. Language detection by counting Latin and Ethiopic letters
//  2. Institution identification against the template bank
//  3. Field extraction with the identified institution's templates
//  4. Deterministic confidence scoring over the extracted fields
//
// Example usage:
//
//	bank := templates.MustDefault()
//	p, err := parser.NewParser(bank, parser.DefaultConfig())
//	msg, ok := p.Parse("Debit: ETB 1,500.00 from A/C ****1234", "")
package parser

import (
	"fmt"

	"go.uber.org/multierr"
)

// Config holds configuration parameters for message parsing
type Config struct {
	// LanguageMargin is how many letters a script needs, besides outnumbering
	// the other script, before the text is classified as its language
	LanguageMargin int `json:"language_margin" mapstructure:"language_margin"`

	// EnableFallback allows ParseWithFallback to use keyword extraction
	EnableFallback bool `json:"enable_fallback" mapstructure:"enable_fallback"`

	// FallbackPenalty is subtracted from keyword-fallback confidence
	FallbackPenalty float64 `json:"fallback_penalty" mapstructure:"fallback_penalty"`

	Weights ScoreWeights `json:"weights" mapstructure:"weights"`
}

// ScoreWeights are the additive weights of the confidence scorer
type ScoreWeights struct {
	Base                   float64 `json:"base" mapstructure:"base"`
	Institution            float64 `json:"institution" mapstructure:"institution"`
	Amount                 float64 `json:"amount" mapstructure:"amount"`
	Balance                float64 `json:"balance" mapstructure:"balance"`
	Reference              float64 `json:"reference" mapstructure:"reference"`
	Merchant               float64 `json:"merchant" mapstructure:"merchant"`
	Reason                 float64 `json:"reason" mapstructure:"reason"`
	TransferPenalty        float64 `json:"transfer_penalty" mapstructure:"transfer_penalty"`
	AlternateScriptPenalty float64 `json:"alternate_script_penalty" mapstructure:"alternate_script_penalty"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		LanguageMargin:  5,
		EnableFallback:  true,
		FallbackPenalty: 0.3,
		Weights:         DefaultScoreWeights(),
	}
}

// DefaultScoreWeights returns the standard scoring weights
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		Base:                   0.5,
		Institution:            0.2,
		Amount:                 0.2,
		Balance:                0.1,
		Reference:              0.1,
		Merchant:               0.1,
		Reason:                 0.05,
		TransferPenalty:        0.05,
		AlternateScriptPenalty: 0.1,
	}
}

// Validate checks if the parser configuration is valid
func (c *Config) Validate() error {
	var errs error

	if c.LanguageMargin < 0 {
		errs = multierr.Append(errs, fmt.Errorf("language margin cannot be negative: %d", c.LanguageMargin))
	}
	if c.FallbackPenalty < 0.0 || c.FallbackPenalty > 1.0 {
		errs = multierr.Append(errs, fmt.Errorf("fallback penalty must be between 0.0 and 1.0: %f", c.FallbackPenalty))
	}
	if err := c.Weights.Validate(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("invalid weights: %w", err))
	}

	return errs
}

// Validate checks that every weight lies in [0,1]
func (w *ScoreWeights) Validate() error {
	var errs error
	check := func(name string, v float64) {
		if v < 0.0 || v > 1.0 {
			errs = multierr.Append(errs, fmt.Errorf("%s weight must be between 0.0 and 1.0: %f", name, v))
		}
	}

	check("base", w.Base)
	check("institution", w.Institution)
	check("amount", w.Amount)
	check("balance", w.Balance)
	check("reference", w.Reference)
	check("merchant", w.Merchant)
	check("reason", w.Reason)
	check("transfer penalty", w.TransferPenalty)
	check("alternate script penalty", w.AlternateScriptPenalty)

	return errs
}

// Clone creates a copy of the parser configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}
