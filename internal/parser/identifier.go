package parser

import (
	"transaction-automation-service/internal/models"
	"transaction-automation-service/internal/templates"
)

// Identifier selects the institution whose templates recognise a message
type Identifier struct {
	bank *templates.Bank
}

// NewIdentifier creates an identifier over a template bank
func NewIdentifier(bank *templates.Bank) *Identifier {
	return &Identifier{bank: bank}
}

// Identify returns the first institution whose name templates match, then
// the first whose debit or credit templates match. Institutions are tried
// in bank order. The returned set is the institution's templates for lang.
func (id *Identifier) Identify(text string, lang models.Language) (models.Institution, *templates.Set, bool) {
	institutions := id.bank.Institutions()

	for _, inst := range institutions {
		set := inst.For(lang)
		if set != nil && templates.MatchAny(set.Name, text) {
			return inst.Institution, set, true
		}
	}

	for _, inst := range institutions {
		set := inst.For(lang)
		if set == nil {
			continue
		}
		if templates.MatchAny(set.Debit, text) || templates.MatchAny(set.Credit, text) {
			return inst.Institution, set, true
		}
	}

	return models.InstitutionUnknown, nil, false
}
