package parser

import (
	"strings"
	"time"

	"transaction-automation-service/internal/extract"
	"transaction-automation-service/internal/models"
	"transaction-automation-service/internal/templates"
	apperrors "transaction-automation-service/pkg/errors"
	"transaction-automation-service/pkg/logger"
)

// miss says why a template pass produced no message
type miss int

const (
	matched miss = iota
	noInstitution
	noAmount
)

// Parser extracts ParsedMessage records from raw text. It holds no mutable
// state and is safe for concurrent use.
type Parser struct {
	bank       *templates.Bank
	config     *Config
	identifier *Identifier
	scorer     *Scorer
	logger     logger.Logger
	now        func() time.Time
}

// Option customises a Parser
type Option func(*Parser)

// WithLogger sets the parser's logger
func WithLogger(l logger.Logger) Option {
	return func(p *Parser) {
		p.logger = l.WithComponent("parser")
	}
}

// WithClock sets the clock used to resolve relative dates
func WithClock(now func() time.Time) Option {
	return func(p *Parser) {
		p.now = now
	}
}

// NewParser creates a parser over a compiled template bank
func NewParser(bank *templates.Bank, config *Config, opts ...Option) (*Parser, error) {
	if bank == nil {
		return nil, apperrors.InternalError(apperrors.CodeNilInput, "create parser", nil)
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "parser", nil, err)
	}

	p := &Parser{
		bank:       bank,
		config:     config.Clone(),
		identifier: NewIdentifier(bank),
		scorer:     NewScorer(config.Weights),
		logger:     logger.WithComponent("parser"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Config returns a copy of the parser configuration
func (p *Parser) Config() *Config {
	return p.config.Clone()
}

// Parse extracts a message using the template bank. A valid hint overrides
// language detection. When the detected single-script language identifies
// no institution, the other language's templates are tried once. A message
// whose institution was identified but whose amount was not is no match.
func (p *Parser) Parse(text string, hint models.Language) (*models.ParsedMessage, bool) {
	clean := extract.CleanText(text)
	if clean == "" {
		return nil, false
	}

	detected := p.detect(clean, hint)
	msg, why := p.parseWith(clean, detected)
	if why == noInstitution && detected != models.LanguageMixed {
		msg, why = p.parseWith(clean, detected.Other())
	}
	if why != matched {
		p.logger.WithFields(logger.Fields{
			"language":    detected,
			"institution": why != noInstitution,
		}).Debug("No template matched message")
		return nil, false
	}

	msg.Language = detected
	msg.RawText = text

	p.logger.WithFields(logger.Fields{
		"institution": msg.Institution,
		"language":    msg.Language,
		"templates":   msg.TemplateLanguage,
		"direction":   msg.Direction,
		"confidence":  msg.Confidence,
	}).Debug("Parsed message")

	return msg, true
}

// ParseWithFallback parses with the template bank and, when that yields no
// result and fallback is enabled, with the keyword fallback.
func (p *Parser) ParseWithFallback(text string, hint models.Language) (*models.ParsedMessage, bool) {
	if msg, ok := p.Parse(text, hint); ok {
		return msg, true
	}
	if !p.config.EnableFallback {
		return nil, false
	}
	return p.parseFallback(text, hint)
}

func (p *Parser) detect(clean string, hint models.Language) models.Language {
	if hint.IsValid() {
		return hint
	}
	return DetectLanguage(clean, p.config.LanguageMargin)
}

func (p *Parser) parseWith(text string, lang models.Language) (*models.ParsedMessage, miss) {
	institution, set, ok := p.identifier.Identify(text, lang)
	if !ok {
		return nil, noInstitution
	}

	raw, ok := templates.Capture(set.Amount, text)
	if !ok {
		return nil, noAmount
	}
	amount, err := extract.ParsePositiveAmount(raw)
	if err != nil {
		p.logger.WithError(err).WithField("institution", institution).Debug("Rejected extracted amount")
		return nil, noAmount
	}

	msg := &models.ParsedMessage{
		Institution:      institution,
		Direction:        resolveDirection(set, text),
		Amount:           amount,
		TemplateLanguage: lang,
	}

	if v, ok := templates.Capture(set.Balance, text); ok {
		if balance, err := extract.ParseAmount(v); err == nil {
			msg.Balance = &balance
		}
	}
	if v, ok := templates.Capture(set.Reference, text); ok {
		msg.Reference = extract.CleanField(v)
	}
	if v, ok := templates.Capture(set.Merchant, text); ok {
		msg.Merchant = extract.CleanField(v)
	}
	if v, ok := templates.Capture(set.Reason, text); ok {
		msg.Reason = extract.CleanField(v)
	}
	if v, ok := templates.Capture(set.Date, text); ok {
		if date, ok := extract.ResolveDate(v, p.now()); ok {
			msg.Date = &date
		}
	}

	msg.Confidence = p.scorer.Score(Signals{
		Institution:     true,
		Amount:          true,
		Balance:         msg.Balance != nil,
		Reference:       msg.Reference != "",
		Merchant:        msg.Merchant != "",
		Reason:          msg.Reason != "",
		Direction:       msg.Direction,
		AlternateScript: lang.IsAlternate(),
	})

	return msg, matched
}

// resolveDirection applies debit, then credit, then transfer markers.
// Messages with none of them are expenses.
func resolveDirection(set *templates.Set, text string) models.Direction {
	switch {
	case templates.MatchAny(set.Debit, text):
		return models.DirectionExpense
	case templates.MatchAny(set.Credit, text):
		return models.DirectionIncome
	case templates.MatchAny(set.Transfer, text):
		return models.DirectionTransfer
	default:
		return models.DirectionExpense
	}
}

// Scorer returns the parser's confidence scorer
func (p *Parser) Scorer() *Scorer {
	return p.scorer
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
