// Package templates provides the data-driven template bank used to recognise
// institution notification messages.
//
// The bank is a table of institution → language → field → ordered regular
// expressions. A default bank is embedded in the binary and can be replaced
// by a YAML file with the same layout:
//
//	institutions:
//	  - id: CBE
//	    display_name: Commercial Bank of Ethiopia
//	    languages:
//	      en:
//	        name: ['\bCBE\b']
//	        debit: ['(?i)\bdebit(?:ed)?\b']
//	        amount: ['(?i)ETB\s*(?P<value>\d[\d,]*(?:\.\d{1,2})?)']
//
// Value-bearing templates (amount, balance, reference, merchant, reason, date)
// expose the extracted text through a capture group named "value", or the
// first capture group when no named group exists.
package templates

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"transaction-automation-service/internal/models"
	apperrors "transaction-automation-service/pkg/errors"
)

//go:embed default_templates.yaml
var defaultDocument []byte

// Document is the serialised form of a template bank
type Document struct {
	Version      int                                  `yaml:"version" json:"version"`
	Institutions []InstitutionDocument                `yaml:"institutions" json:"institutions"`
	Fallback     map[models.Language]FallbackDocument `yaml:"fallback" json:"fallback"`
}

// InstitutionDocument holds one institution's templates per language
type InstitutionDocument struct {
	ID          string                               `yaml:"id" json:"id"`
	DisplayName string                               `yaml:"display_name" json:"display_name"`
	Languages   map[models.Language]LanguageDocument `yaml:"languages" json:"languages"`
}

// LanguageDocument lists the raw patterns for each recognised field
type LanguageDocument struct {
	Name      []string `yaml:"name,omitempty" json:"name,omitempty"`
	Debit     []string `yaml:"debit,omitempty" json:"debit,omitempty"`
	Credit    []string `yaml:"credit,omitempty" json:"credit,omitempty"`
	Transfer  []string `yaml:"transfer,omitempty" json:"transfer,omitempty"`
	Amount    []string `yaml:"amount,omitempty" json:"amount,omitempty"`
	Balance   []string `yaml:"balance,omitempty" json:"balance,omitempty"`
	Reference []string `yaml:"reference,omitempty" json:"reference,omitempty"`
	Merchant  []string `yaml:"merchant,omitempty" json:"merchant,omitempty"`
	Reason    []string `yaml:"reason,omitempty" json:"reason,omitempty"`
	Date      []string `yaml:"date,omitempty" json:"date,omitempty"`
}

// FallbackDocument configures the keyword fallback for one language
type FallbackDocument struct {
	Amount   []string `yaml:"amount" json:"amount"`
	Expense  []string `yaml:"expense" json:"expense"`
	Income   []string `yaml:"income" json:"income"`
	Transfer []string `yaml:"transfer" json:"transfer"`
}

// DefaultDocument decodes the embedded template bank
func DefaultDocument() (*Document, error) {
	return ParseDocument(defaultDocument, "embedded")
}

// LoadDocument reads and decodes a template bank file
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.FileError(apperrors.CodeFileNotFound, path, err)
		}
		return nil, apperrors.FileError(apperrors.CodeFilePermission, path, err)
	}
	return ParseDocument(data, path)
}

// ParseDocument decodes YAML into a Document and validates it
func ParseDocument(data []byte, source string) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, apperrors.ParseError(apperrors.CodeInvalidFormat, source, "", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "templates", source, err)
	}
	return &doc, nil
}

// Validate checks the document structure. All problems are reported together.
func (d *Document) Validate() error {
	var errs error

	if len(d.Institutions) == 0 {
		errs = multierr.Append(errs, fmt.Errorf("template bank has no institutions"))
	}

	seen := make(map[models.Institution]bool)
	for i, inst := range d.Institutions {
		id := models.ParseInstitution(inst.ID)
		if id == models.InstitutionUnknown {
			errs = multierr.Append(errs, fmt.Errorf("institution %d: unknown id '%s'", i, inst.ID))
			continue
		}
		if seen[id] {
			errs = multierr.Append(errs, fmt.Errorf("institution %s: declared more than once", id))
		}
		seen[id] = true

		if len(inst.Languages) == 0 {
			errs = multierr.Append(errs, fmt.Errorf("institution %s: no languages", id))
		}
		for lang, set := range inst.Languages {
			if lang != models.LanguageEnglish && lang != models.LanguageAmharic {
				errs = multierr.Append(errs, fmt.Errorf("institution %s: unsupported language '%s'", id, lang))
				continue
			}
			if len(set.Name)+len(set.Debit)+len(set.Credit) == 0 {
				errs = multierr.Append(errs, fmt.Errorf("institution %s/%s: needs at least one name, debit or credit template", id, lang))
			}
			if len(set.Amount) == 0 {
				errs = multierr.Append(errs, fmt.Errorf("institution %s/%s: needs at least one amount template", id, lang))
			}
		}
	}

	for lang, fb := range d.Fallback {
		if lang != models.LanguageEnglish && lang != models.LanguageAmharic {
			errs = multierr.Append(errs, fmt.Errorf("fallback: unsupported language '%s'", lang))
			continue
		}
		if len(fb.Amount) == 0 {
			errs = multierr.Append(errs, fmt.Errorf("fallback/%s: needs at least one amount template", lang))
		}
		if len(fb.Expense)+len(fb.Income)+len(fb.Transfer) == 0 {
			errs = multierr.Append(errs, fmt.Errorf("fallback/%s: needs direction keywords", lang))
		}
	}

	return errs
}

// Summary describes the template counts for one institution and language
type Summary struct {
	Institution models.Institution `json:"institution"`
	DisplayName string             `json:"display_name"`
	Language    models.Language    `json:"language"`
	Counts      map[string]int     `json:"counts"`
}

// Summaries lists template counts in declaration order
func (d *Document) Summaries() []Summary {
	var out []Summary
	for _, inst := range d.Institutions {
		for _, lang := range []models.Language{models.LanguageEnglish, models.LanguageAmharic} {
			set, ok := inst.Languages[lang]
			if !ok {
				continue
			}
			out = append(out, Summary{
				Institution: models.ParseInstitution(inst.ID),
				DisplayName: strings.TrimSpace(inst.DisplayName),
				Language:    lang,
				Counts: map[string]int{
					"name":      len(set.Name),
					"debit":     len(set.Debit),
					"credit":    len(set.Credit),
					"transfer":  len(set.Transfer),
					"amount":    len(set.Amount),
					"balance":   len(set.Balance),
					"reference": len(set.Reference),
					"merchant":  len(set.Merchant),
					"reason":    len(set.Reason),
					"date":      len(set.Date),
				},
			})
		}
	}
	return out
}
