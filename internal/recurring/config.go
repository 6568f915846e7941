// Package recurring finds recurring payment patterns in transaction history
// and promotes the confident ones to subscriptions.
package recurring

import (
	"fmt"
	"time"

	"go.uber.org/multierr"

	"transaction-automation-service/internal/models"
	apperrors "transaction-automation-service/pkg/errors"
)

// FrequencyBand maps a range of mean day gaps to a billing frequency
type FrequencyBand struct {
	Frequency models.Frequency `mapstructure:"frequency" json:"frequency"`
	MinDays   float64          `mapstructure:"min_days" json:"min_days"`
	MaxDays   float64          `mapstructure:"max_days" json:"max_days"`
}

// Contains reports whether a mean gap falls inside the band, inclusive
func (b FrequencyBand) Contains(days float64) bool {
	return days >= b.MinDays && days <= b.MaxDays
}

// DefaultBands returns the built-in frequency bands
func DefaultBands() []FrequencyBand {
	return []FrequencyBand{
		{Frequency: models.FrequencyWeekly, MinDays: 6, MaxDays: 8},
		{Frequency: models.FrequencyMonthly, MinDays: 27, MaxDays: 33},
		{Frequency: models.FrequencyQuarterly, MinDays: 85, MaxDays: 100},
		{Frequency: models.FrequencyYearly, MinDays: 360, MaxDays: 380},
	}
}

// NextDate advances t by one period of f. Unknown frequencies advance monthly.
func NextDate(t time.Time, f models.Frequency) time.Time {
	switch f {
	case models.FrequencyWeekly:
		return t.AddDate(0, 0, 7)
	case models.FrequencyQuarterly:
		return t.AddDate(0, 3, 0)
	case models.FrequencyYearly:
		return t.AddDate(1, 0, 0)
	default:
		return t.AddDate(0, 1, 0)
	}
}

// DetectionConfig holds the detector's thresholds
type DetectionConfig struct {
	// MinOccurrences is the smallest group size considered
	MinOccurrences int `mapstructure:"min_occurrences" json:"min_occurrences"`

	// ConfidenceThreshold is the promotion threshold for subscriptions
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold" json:"confidence_threshold"`

	// LookbackDays limits analysis to recent history
	LookbackDays int `mapstructure:"lookback_days" json:"lookback_days"`

	// MaxAmountVariation is the largest amount coefficient of variation accepted
	MaxAmountVariation float64 `mapstructure:"max_amount_variation" json:"max_amount_variation"`

	// MinPatternConfidence discards weaker patterns
	MinPatternConfidence float64 `mapstructure:"min_pattern_confidence" json:"min_pattern_confidence"`

	// ExcludeIncome leaves incoming payments out of the analysis
	ExcludeIncome bool `mapstructure:"exclude_income" json:"exclude_income"`

	Bands []FrequencyBand `mapstructure:"bands" json:"bands"`
}

// DefaultDetectionConfig returns the default detection configuration
func DefaultDetectionConfig() *DetectionConfig {
	return &DetectionConfig{
		MinOccurrences:       3,
		ConfidenceThreshold:  0.7,
		LookbackDays:         365,
		MaxAmountVariation:   0.2,
		MinPatternConfidence: 0.5,
		Bands:                DefaultBands(),
	}
}

// Validate checks the configuration and reports every problem found
func (c *DetectionConfig) Validate() error {
	var err error

	if c.MinOccurrences < 2 {
		err = multierr.Append(err, apperrors.ConfigurationError(
			apperrors.CodeInvalidConfig, "min_occurrences", c.MinOccurrences,
			fmt.Errorf("at least two occurrences are needed to measure an interval")))
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		err = multierr.Append(err, apperrors.ConfigurationError(
			apperrors.CodeInvalidConfig, "confidence_threshold", c.ConfidenceThreshold,
			fmt.Errorf("must be between 0 and 1")))
	}
	if c.LookbackDays <= 0 {
		err = multierr.Append(err, apperrors.ConfigurationError(
			apperrors.CodeInvalidConfig, "lookback_days", c.LookbackDays,
			fmt.Errorf("must be positive")))
	}
	if c.MaxAmountVariation < 0 {
		err = multierr.Append(err, apperrors.ConfigurationError(
			apperrors.CodeInvalidConfig, "max_amount_variation", c.MaxAmountVariation,
			fmt.Errorf("cannot be negative")))
	}
	if c.MinPatternConfidence < 0 || c.MinPatternConfidence > 1 {
		err = multierr.Append(err, apperrors.ConfigurationError(
			apperrors.CodeInvalidConfig, "min_pattern_confidence", c.MinPatternConfidence,
			fmt.Errorf("must be between 0 and 1")))
	}

	seen := make(map[models.Frequency]bool)
	for i, band := range c.Bands {
		setting := fmt.Sprintf("bands[%d]", i)
		switch {
		case !band.Frequency.IsValid() || band.Frequency == models.FrequencyUnknown:
			err = multierr.Append(err, apperrors.ConfigurationError(
				apperrors.CodeInvalidConfig, setting, band.Frequency,
				fmt.Errorf("band frequency must be weekly, monthly, quarterly or yearly")))
		case band.MinDays <= 0 || band.MaxDays < band.MinDays:
			err = multierr.Append(err, apperrors.ConfigurationError(
				apperrors.CodeInvalidConfig, setting, fmt.Sprintf("%.1f-%.1f", band.MinDays, band.MaxDays),
				fmt.Errorf("band must have 0 < min_days <= max_days")))
		case seen[band.Frequency]:
			err = multierr.Append(err, apperrors.ConfigurationError(
				apperrors.CodeConfigConflict, setting, band.Frequency,
				fmt.Errorf("frequency listed twice")))
		}
		seen[band.Frequency] = true
	}

	return err
}

// Clone returns a deep copy of the configuration
func (c *DetectionConfig) Clone() *DetectionConfig {
	clone := *c
	clone.Bands = append([]FrequencyBand(nil), c.Bands...)
	return &clone
}

// Classify returns the frequency whose band contains the mean gap
func (c *DetectionConfig) Classify(meanGapDays float64) models.Frequency {
	for _, band := range c.Bands {
		if band.Contains(meanGapDays) {
			return band.Frequency
		}
	}
	return models.FrequencyUnknown
}

// DetectionOptions overrides the configured thresholds for one run.
// Zero values keep the configured value.
type DetectionOptions struct {
	MinOccurrences      int
	ConfidenceThreshold float64
	LookbackDays        int
}

func (c *DetectionConfig) apply(opts DetectionOptions) *DetectionConfig {
	effective := c.Clone()
	if opts.MinOccurrences > 0 {
		effective.MinOccurrences = opts.MinOccurrences
	}
	if opts.ConfidenceThreshold > 0 {
		effective.ConfidenceThreshold = opts.ConfidenceThreshold
	}
	if opts.LookbackDays > 0 {
		effective.LookbackDays = opts.LookbackDays
	}
	return effective
}
