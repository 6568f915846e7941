// Package suggestion proposes values for missing or low-value transaction
// fields from static keyword tables.
package suggestion

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"

	"transaction-automation-service/internal/extract"
	"transaction-automation-service/internal/models"
	"transaction-automation-service/internal/normalizer"
	apperrors "transaction-automation-service/pkg/errors"
	"transaction-automation-service/pkg/logger"
)

// Weights are the static confidence values attached to each suggestion type
type Weights struct {
	Category float64 `mapstructure:"category" json:"category"`
	Merchant float64 `mapstructure:"merchant" json:"merchant"`
	Reason   float64 `mapstructure:"reason" json:"reason"`
	Location float64 `mapstructure:"location" json:"location"`
}

// DefaultWeights returns the default suggestion weights
func DefaultWeights() Weights {
	return Weights{
		Category: 0.8,
		Merchant: 0.75,
		Reason:   0.7,
		Location: 0.6,
	}
}

// Validate checks that every weight lies in [0,1]
func (w Weights) Validate() error {
	var err error
	check := func(name string, v float64) {
		if v < 0 || v > 1 {
			err = multierr.Append(err, apperrors.ConfigurationError(
				apperrors.CodeInvalidConfig, "suggestion."+name, v,
				fmt.Errorf("weight must be between 0 and 1")))
		}
	}
	check("category", w.Category)
	check("merchant", w.Merchant)
	check("reason", w.Reason)
	check("location", w.Location)
	return err
}

// Engine produces at most one suggestion per field per call
type Engine struct {
	tables      *Tables
	categorizer *normalizer.Categorizer
	weights     Weights
	logger      logger.Logger
}

// Option customises an Engine
type Option func(*Engine)

// WithTables replaces the built-in keyword tables
func WithTables(t *Tables) Option {
	return func(e *Engine) { e.tables = t }
}

// WithCategorizer sets the category table used for category suggestions
func WithCategorizer(c *normalizer.Categorizer) Option {
	return func(e *Engine) { e.categorizer = c }
}

// WithWeights overrides the suggestion weights
func WithWeights(w Weights) Option {
	return func(e *Engine) { e.weights = w }
}

// WithLogger sets the engine's logger
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) { e.logger = l.WithComponent("suggestion") }
}

// NewEngine creates a suggestion engine with the default tables
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		tables:      DefaultTables(),
		categorizer: normalizer.NewCategorizer(nil),
		weights:     DefaultWeights(),
		logger:      logger.WithComponent("suggestion"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Suggest returns suggestions for category, merchant, reason and location,
// in that order. Fields that are already filled are left alone.
func (e *Engine) Suggest(tx *models.Transaction) []models.Suggestion {
	if tx == nil {
		return nil
	}

	var out []models.Suggestion
	category, hasCategory := e.suggestCategory(tx)
	if hasCategory {
		out = append(out, category)
	}
	if s, ok := e.suggestMerchant(tx); ok {
		out = append(out, s)
	}

	effective := tx.Category
	if hasCategory {
		effective = category.Value
	}
	if s, ok := e.suggestReason(tx, effective); ok {
		out = append(out, s)
	}
	if s, ok := e.suggestLocation(tx); ok {
		out = append(out, s)
	}

	if len(out) > 0 {
		e.logger.WithFields(logger.Fields{
			"transaction_id": tx.ID,
			"suggestions":    len(out),
		}).Debug("Generated suggestions")
	}
	return out
}

func lowValueCategory(category string) bool {
	category = strings.TrimSpace(category)
	return category == "" || category == normalizer.CategoryOther
}

func (e *Engine) suggestCategory(tx *models.Transaction) (models.Suggestion, bool) {
	if !lowValueCategory(tx.Category) {
		return models.Suggestion{}, false
	}

	subjects := []struct {
		label string
		text  string
	}{
		{"merchant", tx.Merchant},
		{"reason", tx.Reason},
		{"message", tx.RawText},
	}
	for _, subject := range subjects {
		category, keyword, ok := e.categorizer.Match(subject.text)
		if !ok {
			continue
		}
		return models.Suggestion{
			Kind:       models.SuggestionCategory,
			Field:      models.FieldCategory,
			Value:      category,
			Confidence: e.weights.Category,
			Provenance: models.ProvenanceRuleBased,
			Rationale:  fmt.Sprintf("%s mentions %q", subject.label, keyword),
		}, true
	}
	return models.Suggestion{}, false
}

func (e *Engine) suggestMerchant(tx *models.Transaction) (models.Suggestion, bool) {
	if strings.TrimSpace(tx.Merchant) != "" {
		return models.Suggestion{}, false
	}

	text := tx.RawText + " " + tx.Reason
	for _, rule := range e.tables.Merchants {
		for _, kw := range rule.Keywords {
			if extract.ContainsWord(text, kw) {
				return models.Suggestion{
					Kind:       models.SuggestionMerchant,
					Field:      models.FieldMerchant,
					Value:      rule.Name,
					Confidence: e.weights.Merchant,
					Provenance: models.ProvenanceRuleBased,
					Rationale:  fmt.Sprintf("message mentions %q", kw),
				}, true
			}
		}
	}
	return models.Suggestion{}, false
}

func (e *Engine) suggestReason(tx *models.Transaction, category string) (models.Suggestion, bool) {
	if strings.TrimSpace(tx.Reason) != "" || lowValueCategory(category) {
		return models.Suggestion{}, false
	}

	reason, ok := e.tables.reasonFor(category)
	if !ok {
		return models.Suggestion{}, false
	}
	return models.Suggestion{
		Kind:       models.SuggestionReason,
		Field:      models.FieldReason,
		Value:      reason,
		Confidence: e.weights.Reason,
		Provenance: models.ProvenanceRuleBased,
		Rationale:  fmt.Sprintf("typical reason for %s transactions", category),
	}, true
}

func (e *Engine) suggestLocation(tx *models.Transaction) (models.Suggestion, bool) {
	if strings.TrimSpace(tx.Location) != "" {
		return models.Suggestion{}, false
	}

	text := strings.Join([]string{tx.Merchant, tx.Reason, tx.RawText}, " ")
	for _, rule := range e.tables.Locations {
		for _, kw := range rule.Keywords {
			if extract.ContainsWord(text, kw) {
				return models.Suggestion{
					Kind:       models.SuggestionCompletion,
					Field:      models.FieldLocation,
					Value:      rule.Location,
					Confidence: e.weights.Location,
					Provenance: models.ProvenanceRuleBased,
					Rationale:  fmt.Sprintf("text mentions %q", kw),
				}, true
			}
		}
	}
	return models.Suggestion{}, false
}
