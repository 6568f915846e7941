package models

import (
	"fmt"
	"strings"
)

// Institution identifies the bank or mobile-money operator that sent a message
type Institution string

const (
	InstitutionCBE       Institution = "CBE"
	InstitutionAwash     Institution = "Awash"
	InstitutionDashen    Institution = "Dashen"
	InstitutionAbyssinia Institution = "Abyssinia"
	InstitutionCoop      Institution = "Coop"
	InstitutionTelebirr  Institution = "Telebirr"
	InstitutionMPesa     Institution = "M-Pesa"
	InstitutionUnknown   Institution = "unknown"
)

// Institutions returns every known institution in identification order
func Institutions() []Institution {
	return []Institution{
		InstitutionCBE,
		InstitutionAwash,
		InstitutionDashen,
		InstitutionAbyssinia,
		InstitutionCoop,
		InstitutionTelebirr,
		InstitutionMPesa,
	}
}

// String returns the string representation of Institution
func (i Institution) String() string {
	return string(i)
}

// IsKnown reports whether the institution is one of the enumerated institutions
func (i Institution) IsKnown() bool {
	for _, known := range Institutions() {
		if i == known {
			return true
		}
	}
	return false
}

// ParseInstitution parses an institution name case-insensitively.
// Unrecognised names resolve to InstitutionUnknown.
func ParseInstitution(s string) Institution {
	s = strings.TrimSpace(s)
	for _, known := range Institutions() {
		if strings.EqualFold(s, string(known)) {
			return known
		}
	}
	switch strings.ToLower(s) {
	case "commercial bank of ethiopia":
		return InstitutionCBE
	case "bank of abyssinia", "boa":
		return InstitutionAbyssinia
	case "mpesa", "m pesa":
		return InstitutionMPesa
	case "cooperative bank of oromia", "coopbank":
		return InstitutionCoop
	}
	return InstitutionUnknown
}

// Language is the script family a message is written in
type Language string

const (
	// LanguageEnglish is the Latin-script primary language
	LanguageEnglish Language = "en"
	// LanguageAmharic is the Ethiopic-script alternate language
	LanguageAmharic Language = "am"
	// LanguageMixed marks text without a clear script majority
	LanguageMixed Language = "mixed"
)

// IsValid checks if the language is one of the supported values
func (l Language) IsValid() bool {
	return l == LanguageEnglish || l == LanguageAmharic || l == LanguageMixed
}

// Other returns the opposite single-script language. Mixed has no opposite.
func (l Language) Other() Language {
	switch l {
	case LanguageEnglish:
		return LanguageAmharic
	case LanguageAmharic:
		return LanguageEnglish
	default:
		return ""
	}
}

// IsAlternate reports whether the language uses the non-primary script
func (l Language) IsAlternate() bool {
	return l == LanguageAmharic
}

// Direction classifies the flow of money
type Direction string

const (
	DirectionExpense  Direction = "expense"
	DirectionIncome   Direction = "income"
	DirectionTransfer Direction = "transfer"
)

// IsValid checks if the direction is valid
func (d Direction) IsValid() bool {
	return d == DirectionExpense || d == DirectionIncome || d == DirectionTransfer
}

// ParseDirection parses a direction from common spellings
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "expense", "debit", "dr", "d", "out":
		return DirectionExpense, nil
	case "income", "credit", "cr", "c", "in":
		return DirectionIncome, nil
	case "transfer", "trf", "xfer":
		return DirectionTransfer, nil
	default:
		return "", fmt.Errorf("invalid direction '%s': must be expense, income or transfer", s)
	}
}

// Source tags where a piece of raw text came from
type Source string

const (
	SourceMessage   Source = "message"
	SourceClipboard Source = "clipboard"
	SourceManual    Source = "manual"
)

// IsValid checks if the source is valid
func (s Source) IsValid() bool {
	return s == SourceMessage || s == SourceClipboard || s == SourceManual
}

// Field names an editable transaction attribute
type Field string

const (
	FieldAmount      Field = "amount"
	FieldInstitution Field = "institution"
	FieldMerchant    Field = "merchant"
	FieldDirection   Field = "direction"
	FieldDate        Field = "date"
	FieldReference   Field = "reference"
	FieldBalance     Field = "balance"
	FieldCategory    Field = "category"
	FieldReason      Field = "reason"
	FieldLocation    Field = "location"
	FieldConfidence  Field = "confidence"
)

// EditableFields lists the fields an edit session accepts
func EditableFields() []Field {
	return []Field{
		FieldAmount, FieldInstitution, FieldMerchant, FieldDirection, FieldDate,
		FieldReference, FieldBalance, FieldCategory, FieldReason, FieldLocation,
	}
}

// IsEditable reports whether the field can be changed in an edit session
func (f Field) IsEditable() bool {
	for _, editable := range EditableFields() {
		if f == editable {
			return true
		}
	}
	return false
}

// Severity grades a validation finding
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// SuggestionKind classifies a suggestion
type SuggestionKind string

const (
	SuggestionCategory   SuggestionKind = "category"
	SuggestionMerchant   SuggestionKind = "merchant"
	SuggestionReason     SuggestionKind = "reason"
	SuggestionCompletion SuggestionKind = "completion"
	SuggestionValidation SuggestionKind = "validation"
)

// Provenance records how a suggestion was produced
type Provenance string

const (
	ProvenanceRuleBased   Provenance = "rule-based"
	ProvenanceStatistical Provenance = "statistical"
)

// Frequency is the billing cadence of a recurring pattern
type Frequency string

const (
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
	FrequencyUnknown   Frequency = "unknown"
)

// IsValid checks if the frequency is valid
func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly, FrequencyYearly, FrequencyUnknown:
		return true
	}
	return false
}
