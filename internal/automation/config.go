package automation

import (
	"fmt"

	"go.uber.org/multierr"

	"transaction-automation-service/internal/models"
	apperrors "transaction-automation-service/pkg/errors"
)

// Config holds the orchestrator's settings
type Config struct {
	// FallbackSources lists the sources whose text may use keyword fallback
	FallbackSources []models.Source `mapstructure:"fallback_sources" json:"fallback_sources"`

	// BatchConcurrency bounds the goroutines used by ProcessBatch
	BatchConcurrency int `mapstructure:"batch_concurrency" json:"batch_concurrency"`

	// HistoryCapacity bounds the in-memory history. 0 keeps everything.
	HistoryCapacity int `mapstructure:"history_capacity" json:"history_capacity"`

	// TopCounterparties is the default N for the statistics ranking
	TopCounterparties int `mapstructure:"top_counterparties" json:"top_counterparties"`
}

// DefaultConfig returns the default orchestrator configuration
func DefaultConfig() *Config {
	return &Config{
		FallbackSources:   []models.Source{models.SourceClipboard, models.SourceManual},
		BatchConcurrency:  4,
		HistoryCapacity:   10000,
		TopCounterparties: 5,
	}
}

// Validate checks the configuration and reports every problem found
func (c *Config) Validate() error {
	var err error

	seen := make(map[models.Source]bool)
	for _, source := range c.FallbackSources {
		if !source.IsValid() {
			err = multierr.Append(err, apperrors.ConfigurationError(
				apperrors.CodeInvalidConfig, "fallback_sources", source,
				fmt.Errorf("must be message, clipboard or manual")))
			continue
		}
		if seen[source] {
			err = multierr.Append(err, apperrors.ConfigurationError(
				apperrors.CodeConfigConflict, "fallback_sources", source,
				fmt.Errorf("source listed twice")))
		}
		seen[source] = true
	}
	if c.BatchConcurrency < 1 {
		err = multierr.Append(err, apperrors.ConfigurationError(
			apperrors.CodeInvalidConfig, "batch_concurrency", c.BatchConcurrency,
			fmt.Errorf("must be at least 1")))
	}
	if c.HistoryCapacity < 0 {
		err = multierr.Append(err, apperrors.ConfigurationError(
			apperrors.CodeInvalidConfig, "history_capacity", c.HistoryCapacity,
			fmt.Errorf("cannot be negative")))
	}
	if c.TopCounterparties < 1 {
		err = multierr.Append(err, apperrors.ConfigurationError(
			apperrors.CodeInvalidConfig, "top_counterparties", c.TopCounterparties,
			fmt.Errorf("must be at least 1")))
	}

	return err
}

// Clone returns a deep copy of the configuration
func (c *Config) Clone() *Config {
	clone := *c
	clone.FallbackSources = append([]models.Source(nil), c.FallbackSources...)
	return &clone
}

// AllowsFallback reports whether text from source may use keyword fallback
func (c *Config) AllowsFallback(source models.Source) bool {
	for _, s := range c.FallbackSources {
		if s == source {
			return true
		}
	}
	return false
}
