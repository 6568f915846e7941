package validation

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"transaction-automation-service/internal/models"
)

func validTransaction() *models.Transaction {
	return &models.Transaction{
		ID:          "tx-1",
		Amount:      decimal.NewFromInt(150),
		Institution: models.InstitutionCBE,
		Merchant:    "Tomoca Coffee",
		Category:    "Food",
		Timestamp:   time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC),
		Confidence:  0.9,
	}
}

func TestValidator_Validate(t *testing.T) {
	tests := []struct {
		name     string
		modify   func(tx *models.Transaction)
		expected map[string]models.Severity
	}{
		{
			name:     "valid transaction",
			modify:   func(tx *models.Transaction) {},
			expected: map[string]models.Severity{},
		},
		{
			name:     "zero amount",
			modify:   func(tx *models.Transaction) { tx.Amount = decimal.Zero },
			expected: map[string]models.Severity{"invalid_amount": models.SeverityError},
		},
		{
			name:     "negative amount",
			modify:   func(tx *models.Transaction) { tx.Amount = decimal.NewFromInt(-5) },
			expected: map[string]models.Severity{"invalid_amount": models.SeverityError},
		},
		{
			name:     "unknown institution",
			modify:   func(tx *models.Transaction) { tx.Institution = models.InstitutionUnknown },
			expected: map[string]models.Severity{"unknown_institution": models.SeverityWarning},
		},
		{
			name:     "empty category",
			modify:   func(tx *models.Transaction) { tx.Category = " " },
			expected: map[string]models.Severity{"missing_category": models.SeverityWarning},
		},
		{
			name:     "zero date",
			modify:   func(tx *models.Transaction) { tx.Timestamp = time.Time{} },
			expected: map[string]models.Severity{"invalid_date": models.SeverityError},
		},
		{
			name:     "low confidence",
			modify:   func(tx *models.Transaction) { tx.Confidence = 0.49 },
			expected: map[string]models.Severity{"low_confidence": models.SeverityWarning},
		},
		{
			name:     "confidence at threshold",
			modify:   func(tx *models.Transaction) { tx.Confidence = 0.5 },
			expected: map[string]models.Severity{},
		},
		{
			name:     "missing merchant",
			modify:   func(tx *models.Transaction) { tx.Merchant = "" },
			expected: map[string]models.Severity{"missing_merchant": models.SeverityInfo},
		},
		{
			name: "everything wrong",
			modify: func(tx *models.Transaction) {
				*tx = models.Transaction{Institution: models.InstitutionUnknown}
			},
			expected: map[string]models.Severity{
				"invalid_amount":      models.SeverityError,
				"unknown_institution": models.SeverityWarning,
				"missing_category":    models.SeverityWarning,
				"invalid_date":        models.SeverityError,
				"low_confidence":      models.SeverityWarning,
				"missing_merchant":    models.SeverityInfo,
			},
		},
	}

	v := NewValidator(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := validTransaction()
			tt.modify(tx)

			findings := v.Validate(tx)
			if len(findings) != len(tt.expected) {
				t.Fatalf("Validate() returned %d findings, want %d: %+v", len(findings), len(tt.expected), findings)
			}
			for _, f := range findings {
				severity, ok := tt.expected[f.Code]
				if !ok {
					t.Errorf("unexpected finding %s", f.Code)
					continue
				}
				if f.Severity != severity {
					t.Errorf("finding %s severity = %s, want %s", f.Code, f.Severity, severity)
				}
				if f.Message == "" {
					t.Errorf("finding %s has no message", f.Code)
				}
			}
		})
	}
}

func TestValidator_Recomputes(t *testing.T) {
	v := NewValidator(nil)
	tx := validTransaction()
	tx.Amount = decimal.Zero

	if !HasErrors(v.Validate(tx)) {
		t.Fatal("expected an error finding for zero amount")
	}

	tx.Amount = decimal.NewFromInt(10)
	if findings := v.Validate(tx); len(findings) != 0 {
		t.Errorf("findings after fix = %+v, want none", findings)
	}
}

func TestValidator_NilTransaction(t *testing.T) {
	findings := NewValidator(nil).Validate(nil)
	if !HasErrors(findings) {
		t.Errorf("Validate(nil) = %+v, want an error finding", findings)
	}
}

func TestValidator_CustomRules(t *testing.T) {
	v := NewValidator([]Rule{{
		Name: "has-reference",
		Check: func(tx *models.Transaction) (models.ValidationFinding, bool) {
			if tx.Reference == "" {
				return models.ValidationFinding{Field: models.FieldReference, Severity: models.SeverityInfo, Code: "missing_reference"}, true
			}
			return models.ValidationFinding{}, false
		},
	}})

	findings := v.Validate(validTransaction())
	if len(findings) != 1 || findings[0].Code != "missing_reference" {
		t.Errorf("Validate() = %+v, want single missing_reference", findings)
	}
}
