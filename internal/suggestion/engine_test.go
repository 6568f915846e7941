package suggestion

import (
	"testing"

	"github.com/shopspring/decimal"

	"transaction-automation-service/internal/models"
	"transaction-automation-service/internal/normalizer"
	"transaction-automation-service/pkg/logger"
)

func newTestEngine() *Engine {
	return NewEngine(WithLogger(logger.Discard()))
}

func TestEngine_Suggest(t *testing.T) {
	tests := []struct {
		name     string
		tx       models.Transaction
		expected map[models.Field]string
	}{
		{
			name: "category and reason from merchant",
			tx: models.Transaction{
				Merchant: "Tomoca Coffee",
				Category: normalizer.CategoryOther,
				Location: "Piassa",
			},
			expected: map[models.Field]string{
				models.FieldCategory: normalizer.CategoryFood,
				models.FieldReason:   "Meal",
			},
		},
		{
			name: "merchant and location from raw text",
			tx: models.Transaction{
				Category: normalizer.CategoryUtilities,
				Reason:   "monthly bill",
				RawText:  "You paid ETB 300 to Ethio Telecom at Bole branch",
			},
			expected: map[models.Field]string{
				models.FieldMerchant: "Ethio Telecom",
				models.FieldLocation: "Bole",
			},
		},
		{
			name: "complete transaction gets nothing",
			tx: models.Transaction{
				Merchant: "Shoa Supermarket",
				Category: normalizer.CategoryGroceries,
				Reason:   "weekly groceries",
				Location: "Edna Mall",
			},
			expected: map[models.Field]string{},
		},
		{
			name: "no table match yields no suggestion",
			tx: models.Transaction{
				Merchant: "Abebe Kebede",
				Category: normalizer.CategoryOther,
				RawText:  "Debit: ETB 100.00",
			},
			expected: map[models.Field]string{},
		},
		{
			name: "known category drives reason",
			tx: models.Transaction{
				Merchant: "Abebe Kebede",
				Category: normalizer.CategoryHousing,
				Location: "CMC",
			},
			expected: map[models.Field]string{
				models.FieldReason: "Rent",
			},
		},
	}

	engine := newTestEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := engine.Suggest(&tt.tx)
			if len(got) != len(tt.expected) {
				t.Fatalf("Suggest() returned %d suggestions, want %d: %+v", len(got), len(tt.expected), got)
			}
			seen := make(map[models.Field]bool)
			for _, s := range got {
				if seen[s.Field] {
					t.Errorf("duplicate suggestion for %s", s.Field)
				}
				seen[s.Field] = true
				if want := tt.expected[s.Field]; s.Value != want {
					t.Errorf("suggestion for %s = %q, want %q", s.Field, s.Value, want)
				}
				if s.Rationale == "" {
					t.Errorf("suggestion for %s has no rationale", s.Field)
				}
				if s.Provenance != models.ProvenanceRuleBased {
					t.Errorf("suggestion for %s provenance = %s", s.Field, s.Provenance)
				}
			}
		})
	}
}

func TestEngine_Weights(t *testing.T) {
	tx := &models.Transaction{
		Amount:  decimal.NewFromInt(120),
		RawText: "Paid ETB 120 for coffee at Tomoca, Piassa",
	}

	got := newTestEngine().Suggest(tx)
	expected := map[models.Field]struct {
		kind       models.SuggestionKind
		confidence float64
	}{
		models.FieldCategory: {models.SuggestionCategory, 0.8},
		models.FieldMerchant: {models.SuggestionMerchant, 0.75},
		models.FieldReason:   {models.SuggestionReason, 0.7},
		models.FieldLocation: {models.SuggestionCompletion, 0.6},
	}

	if len(got) != len(expected) {
		t.Fatalf("Suggest() returned %d suggestions, want %d: %+v", len(got), len(expected), got)
	}
	order := []models.Field{models.FieldCategory, models.FieldMerchant, models.FieldReason, models.FieldLocation}
	for i, s := range got {
		if s.Field != order[i] {
			t.Errorf("suggestion %d field = %s, want %s", i, s.Field, order[i])
		}
		want := expected[s.Field]
		if s.Kind != want.kind || s.Confidence != want.confidence {
			t.Errorf("suggestion for %s = (%s, %.2f), want (%s, %.2f)", s.Field, s.Kind, s.Confidence, want.kind, want.confidence)
		}
	}
}

func TestEngine_Nil(t *testing.T) {
	if got := newTestEngine().Suggest(nil); got != nil {
		t.Errorf("Suggest(nil) = %v, want nil", got)
	}
}

func TestEngine_CustomTables(t *testing.T) {
	engine := NewEngine(
		WithLogger(logger.Discard()),
		WithTables(&Tables{
			Locations: []LocationRule{{Location: "Adama", Keywords: []string{"nazret"}}},
		}),
		WithCategorizer(normalizer.NewCategorizer([]normalizer.Rule{})),
	)

	got := engine.Suggest(&models.Transaction{RawText: "Coffee in Nazret", Category: normalizer.CategoryOther})
	if len(got) != 1 || got[0].Value != "Adama" {
		t.Errorf("Suggest() = %+v, want single Adama location", got)
	}
}

func TestWeights_Validate(t *testing.T) {
	if err := DefaultWeights().Validate(); err != nil {
		t.Errorf("default weights invalid: %v", err)
	}
	w := DefaultWeights()
	w.Reason = 1.5
	if err := w.Validate(); err == nil {
		t.Error("expected error for weight above 1")
	}
}
