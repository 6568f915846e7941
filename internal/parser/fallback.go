package parser

import (
	"transaction-automation-service/internal/extract"
	"transaction-automation-service/internal/models"
	"transaction-automation-service/internal/templates"
	"transaction-automation-service/pkg/logger"
	"transaction-automation-service/pkg/stats"
)

// parseFallback extracts a best-effort message from casual text such as
// "paid 250 birr for lunch". It needs a currency-qualified amount and a
// direction keyword. The institution is always unknown.
func (p *Parser) parseFallback(text string, hint models.Language) (*models.ParsedMessage, bool) {
	clean := extract.CleanText(text)
	if isBlank(clean) {
		return nil, false
	}

	detected := p.detect(clean, hint)
	fb := p.bank.Fallback(detected)
	if fb == nil {
		fb = p.bank.Fallback(models.LanguageMixed)
	}
	if fb == nil {
		return nil, false
	}

	raw, ok := templates.Capture(fb.Amount, clean)
	if !ok {
		return nil, false
	}
	amount, err := extract.ParsePositiveAmount(raw)
	if err != nil {
		return nil, false
	}

	direction, ok := keywordDirection(fb, clean)
	if !ok {
		p.logger.Debug("Fallback found an amount but no direction keyword")
		return nil, false
	}

	score := p.scorer.Score(Signals{
		Amount:          true,
		Direction:       direction,
		AlternateScript: detected.IsAlternate(),
	})

	msg := &models.ParsedMessage{
		Institution:      models.InstitutionUnknown,
		Direction:        direction,
		Amount:           amount,
		Language:         detected,
		TemplateLanguage: detected,
		Confidence:       stats.Clamp01(stats.Round(score-p.config.FallbackPenalty, 4)),
		RawText:          text,
		Fallback:         true,
	}

	p.logger.WithFields(logger.Fields{
		"direction":  direction,
		"confidence": msg.Confidence,
	}).Debug("Parsed message with keyword fallback")

	return msg, true
}

func keywordDirection(fb *templates.Fallback, text string) (models.Direction, bool) {
	groups := []struct {
		direction models.Direction
		keywords  []string
	}{
		{models.DirectionExpense, fb.Expense},
		{models.DirectionIncome, fb.Income},
		{models.DirectionTransfer, fb.Transfer},
	}
	for _, g := range groups {
		for _, keyword := range g.keywords {
			if extract.ContainsWord(text, keyword) {
				return g.direction, true
			}
		}
	}
	return "", false
}
