package templates

import (
	"fmt"
	"regexp"

	"go.uber.org/multierr"

	"transaction-automation-service/internal/models"
	apperrors "transaction-automation-service/pkg/errors"
)

// Set is the compiled template list for one institution in one language
type Set struct {
	Name      []*regexp.Regexp
	Debit     []*regexp.Regexp
	Credit    []*regexp.Regexp
	Transfer  []*regexp.Regexp
	Amount    []*regexp.Regexp
	Balance   []*regexp.Regexp
	Reference []*regexp.Regexp
	Merchant  []*regexp.Regexp
	Reason    []*regexp.Regexp
	Date      []*regexp.Regexp
}

// Merge returns a new set with s's templates followed by other's
func (s *Set) Merge(other *Set) *Set {
	if s == nil {
		return other
	}
	if other == nil {
		return s
	}
	return &Set{
		Name:      concat(s.Name, other.Name),
		Debit:     concat(s.Debit, other.Debit),
		Credit:    concat(s.Credit, other.Credit),
		Transfer:  concat(s.Transfer, other.Transfer),
		Amount:    concat(s.Amount, other.Amount),
		Balance:   concat(s.Balance, other.Balance),
		Reference: concat(s.Reference, other.Reference),
		Merchant:  concat(s.Merchant, other.Merchant),
		Reason:    concat(s.Reason, other.Reason),
		Date:      concat(s.Date, other.Date),
	}
}

func concat(a, b []*regexp.Regexp) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

// InstitutionTemplates holds the compiled sets of one institution
type InstitutionTemplates struct {
	Institution models.Institution
	DisplayName string
	languages   map[models.Language]*Set
}

// For returns the set for a language. Mixed merges English and Amharic.
func (it *InstitutionTemplates) For(lang models.Language) *Set {
	if lang == models.LanguageMixed {
		return it.languages[models.LanguageEnglish].Merge(it.languages[models.LanguageAmharic])
	}
	return it.languages[lang]
}

// Fallback is the compiled keyword fallback for one language
type Fallback struct {
	Amount   []*regexp.Regexp
	Expense  []string
	Income   []string
	Transfer []string
}

// Bank is a compiled, read-only template bank safe for concurrent use
type Bank struct {
	document     *Document
	institutions []*InstitutionTemplates
	fallback     map[models.Language]*Fallback
}

// Default compiles the embedded template bank
func Default() (*Bank, error) {
	doc, err := DefaultDocument()
	if err != nil {
		return nil, err
	}
	return Compile(doc)
}

// MustDefault compiles the embedded template bank and panics on failure
func MustDefault() *Bank {
	bank, err := Default()
	if err != nil {
		panic(fmt.Sprintf("embedded template bank is invalid: %v", err))
	}
	return bank
}

// Load reads and compiles a template bank file
func Load(path string) (*Bank, error) {
	doc, err := LoadDocument(path)
	if err != nil {
		return nil, err
	}
	return Compile(doc)
}

// Compile validates and compiles a document. Every invalid pattern is reported.
func Compile(doc *Document) (*Bank, error) {
	if doc == nil {
		return nil, apperrors.InternalError(apperrors.CodeNilInput, "compile templates", nil)
	}
	if err := doc.Validate(); err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "templates", nil, err)
	}

	var errs error
	bank := &Bank{
		document: doc,
		fallback: make(map[models.Language]*Fallback),
	}

	for _, inst := range doc.Institutions {
		id := models.ParseInstitution(inst.ID)
		compiled := &InstitutionTemplates{
			Institution: id,
			DisplayName: inst.DisplayName,
			languages:   make(map[models.Language]*Set),
		}
		for _, lang := range []models.Language{models.LanguageEnglish, models.LanguageAmharic} {
			raw, ok := inst.Languages[lang]
			if !ok {
				continue
			}
			c := &compiler{prefix: fmt.Sprintf("%s/%s", id, lang)}
			compiled.languages[lang] = &Set{
				Name:      c.all("name", raw.Name),
				Debit:     c.all("debit", raw.Debit),
				Credit:    c.all("credit", raw.Credit),
				Transfer:  c.all("transfer", raw.Transfer),
				Amount:    c.all("amount", raw.Amount),
				Balance:   c.all("balance", raw.Balance),
				Reference: c.all("reference", raw.Reference),
				Merchant:  c.all("merchant", raw.Merchant),
				Reason:    c.all("reason", raw.Reason),
				Date:      c.all("date", raw.Date),
			}
			errs = multierr.Append(errs, c.errs)
		}
		bank.institutions = append(bank.institutions, compiled)
	}

	for _, lang := range []models.Language{models.LanguageEnglish, models.LanguageAmharic} {
		raw, ok := doc.Fallback[lang]
		if !ok {
			continue
		}
		c := &compiler{prefix: fmt.Sprintf("fallback/%s", lang)}
		bank.fallback[lang] = &Fallback{
			Amount:   c.all("amount", raw.Amount),
			Expense:  raw.Expense,
			Income:   raw.Income,
			Transfer: raw.Transfer,
		}
		errs = multierr.Append(errs, c.errs)
	}

	if errs != nil {
		return nil, apperrors.Wrap(errs, apperrors.CategoryConfiguration, apperrors.CodeInvalidRegex,
			"template bank contains invalid patterns").
			WithSuggestion("check the regular expression syntax (RE2) of the listed templates")
	}
	return bank, nil
}

type compiler struct {
	prefix string
	errs   error
}

func (c *compiler) all(field string, patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for i, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			c.errs = multierr.Append(c.errs, fmt.Errorf("%s/%s[%d]: %w", c.prefix, field, i, err))
			continue
		}
		out = append(out, re)
	}
	return out
}

// Institutions returns the compiled institutions in identification order
func (b *Bank) Institutions() []*InstitutionTemplates {
	return b.institutions
}

// Institution returns the templates for one institution
func (b *Bank) Institution(id models.Institution) (*InstitutionTemplates, bool) {
	for _, inst := range b.institutions {
		if inst.Institution == id {
			return inst, true
		}
	}
	return nil, false
}

// Fallback returns the keyword fallback for a language. Mixed merges both.
func (b *Bank) Fallback(lang models.Language) *Fallback {
	if lang != models.LanguageMixed {
		return b.fallback[lang]
	}
	en, am := b.fallback[models.LanguageEnglish], b.fallback[models.LanguageAmharic]
	switch {
	case en == nil:
		return am
	case am == nil:
		return en
	}
	return &Fallback{
		Amount:   concat(en.Amount, am.Amount),
		Expense:  append(append([]string(nil), en.Expense...), am.Expense...),
		Income:   append(append([]string(nil), en.Income...), am.Income...),
		Transfer: append(append([]string(nil), en.Transfer...), am.Transfer...),
	}
}

// Document returns the source document the bank was compiled from
func (b *Bank) Document() *Document {
	return b.document
}

// Capture returns the value extracted by the first template that matches text
func Capture(patterns []*regexp.Regexp, text string) (string, bool) {
	for _, re := range patterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if idx := re.SubexpIndex("value"); idx > 0 && m[idx] != "" {
			return m[idx], true
		}
		if len(m) > 1 && m[1] != "" {
			return m[1], true
		}
		if len(m) == 1 {
			return m[0], true
		}
	}
	return "", false
}

// MatchAny reports whether any template matches text
func MatchAny(patterns []*regexp.Regexp, text string) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
