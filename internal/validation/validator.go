// Package validation checks transactions against a fixed rule set.
package validation

import (
	"strings"

	"transaction-automation-service/internal/extract"
	"transaction-automation-service/internal/models"
	apperrors "transaction-automation-service/pkg/errors"
	"transaction-automation-service/pkg/logger"
)

// ReviewThreshold is the confidence below which a review is recommended
const ReviewThreshold = 0.5

// Rule inspects a transaction and returns at most one finding
type Rule struct {
	Name  string
	Check func(tx *models.Transaction) (models.ValidationFinding, bool)
}

// DefaultRules returns the built-in rule set
func DefaultRules() []Rule {
	return []Rule{
		{Name: "positive-amount", Check: checkAmount},
		{Name: "known-institution", Check: checkInstitution},
		{Name: "category-present", Check: checkCategory},
		{Name: "valid-date", Check: checkDate},
		{Name: "confidence", Check: checkConfidence},
		{Name: "merchant-present", Check: checkMerchant},
	}
}

// Validator evaluates every rule on each call. Findings are never cached.
type Validator struct {
	rules  []Rule
	logger logger.Logger
}

// NewValidator creates a validator. A nil rule list uses DefaultRules.
func NewValidator(rules []Rule) *Validator {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Validator{
		rules:  rules,
		logger: logger.WithComponent("validator"),
	}
}

// Validate returns the findings for tx in rule order
func (v *Validator) Validate(tx *models.Transaction) []models.ValidationFinding {
	if tx == nil {
		return []models.ValidationFinding{{
			Message:  "transaction is missing",
			Severity: models.SeverityError,
			Code:     string(apperrors.CodeNilInput),
		}}
	}

	findings := make([]models.ValidationFinding, 0, len(v.rules))
	for _, rule := range v.rules {
		if f, ok := rule.Check(tx); ok {
			findings = append(findings, f)
		}
	}

	if len(findings) > 0 {
		v.logger.WithFields(logger.Fields{
			"transaction_id": tx.ID,
			"findings":       len(findings),
			"errors":         countSeverity(findings, models.SeverityError),
		}).Debug("Validated transaction")
	}
	return findings
}

// HasErrors reports whether any finding blocks saving
func HasErrors(findings []models.ValidationFinding) bool {
	return countSeverity(findings, models.SeverityError) > 0
}

func countSeverity(findings []models.ValidationFinding, severity models.Severity) int {
	n := 0
	for _, f := range findings {
		if f.Severity == severity {
			n++
		}
	}
	return n
}

func finding(field models.Field, severity models.Severity, code apperrors.ErrorCode, message string) (models.ValidationFinding, bool) {
	return models.ValidationFinding{
		Field:    field,
		Message:  message,
		Severity: severity,
		Code:     string(code),
	}, true
}

func checkAmount(tx *models.Transaction) (models.ValidationFinding, bool) {
	if tx.Amount.IsPositive() {
		return models.ValidationFinding{}, false
	}
	return finding(models.FieldAmount, models.SeverityError, apperrors.CodeInvalidAmount,
		"amount must be greater than zero")
}

func checkInstitution(tx *models.Transaction) (models.ValidationFinding, bool) {
	if tx.Institution.IsKnown() {
		return models.ValidationFinding{}, false
	}
	return finding(models.FieldInstitution, models.SeverityWarning, apperrors.CodeUnknownInstitution,
		"institution could not be identified")
}

func checkCategory(tx *models.Transaction) (models.ValidationFinding, bool) {
	if strings.TrimSpace(tx.Category) != "" {
		return models.ValidationFinding{}, false
	}
	return finding(models.FieldCategory, models.SeverityWarning, apperrors.CodeMissingCategory,
		"category is empty")
}

func checkDate(tx *models.Transaction) (models.ValidationFinding, bool) {
	if extract.IsValidDate(tx.Timestamp) {
		return models.ValidationFinding{}, false
	}
	return finding(models.FieldDate, models.SeverityError, apperrors.CodeInvalidDate,
		"date is not a valid calendar date")
}

func checkConfidence(tx *models.Transaction) (models.ValidationFinding, bool) {
	if tx.Confidence >= ReviewThreshold {
		return models.ValidationFinding{}, false
	}
	return finding(models.FieldConfidence, models.SeverityWarning, apperrors.CodeLowConfidence,
		"low extraction confidence, review recommended")
}

func checkMerchant(tx *models.Transaction) (models.ValidationFinding, bool) {
	if strings.TrimSpace(tx.Merchant) != "" {
		return models.ValidationFinding{}, false
	}
	return finding(models.FieldMerchant, models.SeverityInfo, apperrors.CodeMissingMerchant,
		"merchant is not set")
}
