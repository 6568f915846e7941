package templates

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"transaction-automation-service/internal/models"
	apperrors "transaction-automation-service/pkg/errors"
)

func TestDefault_Compiles(t *testing.T) {
	bank, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}

	if len(bank.Institutions()) != len(models.Institutions()) {
		t.Errorf("Institutions() = %d, want %d", len(bank.Institutions()), len(models.Institutions()))
	}

	for i, inst := range bank.Institutions() {
		if inst.Institution != models.Institutions()[i] {
			t.Errorf("institution %d = %s, want %s", i, inst.Institution, models.Institutions()[i])
		}
		for _, lang := range []models.Language{models.LanguageEnglish, models.LanguageAmharic} {
			set := inst.For(lang)
			if set == nil {
				t.Errorf("%s has no %s templates", inst.Institution, lang)
				continue
			}
			if len(set.Amount) == 0 {
				t.Errorf("%s/%s has no amount templates", inst.Institution, lang)
			}
		}
	}
}

func TestInstitutionTemplates_ForMixed(t *testing.T) {
	bank := MustDefault()
	cbe, ok := bank.Institution(models.InstitutionCBE)
	if !ok {
		t.Fatal("CBE templates missing")
	}

	en := cbe.For(models.LanguageEnglish)
	am := cbe.For(models.LanguageAmharic)
	mixed := cbe.For(models.LanguageMixed)

	if len(mixed.Name) != len(en.Name)+len(am.Name) {
		t.Errorf("mixed names = %d, want %d", len(mixed.Name), len(en.Name)+len(am.Name))
	}
	if mixed.Amount[0] != en.Amount[0] {
		t.Error("mixed set should list English templates first")
	}
}

func TestSharedTemplatesAreMerged(t *testing.T) {
	bank := MustDefault()
	awash, _ := bank.Institution(models.InstitutionAwash)
	set := awash.For(models.LanguageEnglish)

	if len(set.Reference) == 0 || len(set.Balance) == 0 {
		t.Errorf("shared templates not merged: reference=%d balance=%d", len(set.Reference), len(set.Balance))
	}
	if len(set.Name) != 1 {
		t.Errorf("Awash names = %d, want 1", len(set.Name))
	}
}

func TestCapture(t *testing.T) {
	patterns := []*regexp.Regexp{
		regexp.MustCompile(`(?i)ref:\s*(?P<value>[A-Z0-9]+)`),
		regexp.MustCompile(`(?i)bal:\s*ETB\s*([\d,.]+)`),
		regexp.MustCompile(`(?i)debit`),
	}

	tests := []struct {
		name     string
		text     string
		expected string
		ok       bool
	}{
		{"named group", "Ref: TXN123.", "TXN123", true},
		{"first group", "Bal: ETB 45,000.00", "45,000.00", true},
		{"whole match", "DEBIT alert", "DEBIT", true},
		{"no match", "nothing", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Capture(patterns, tt.text)
			if ok != tt.ok || got != tt.expected {
				t.Errorf("Capture(%q) = %q, %v; want %q, %v", tt.text, got, ok, tt.expected, tt.ok)
			}
		})
	}
}

func TestParseDocument_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty", "version: 1\n"},
		{"unknown institution", "institutions:\n  - id: Nowhere\n    languages:\n      en:\n        name: ['x']\n        amount: ['(\\d+)']\n"},
		{"missing amount", "institutions:\n  - id: CBE\n    languages:\n      en:\n        name: ['CBE']\n"},
		{"bad language", "institutions:\n  - id: CBE\n    languages:\n      fr:\n        name: ['CBE']\n        amount: ['(\\d+)']\n"},
		{"not yaml", "institutions: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseDocument([]byte(tt.yaml), "test"); err == nil {
				t.Error("ParseDocument() expected error")
			}
		})
	}
}

func TestCompile_InvalidRegex(t *testing.T) {
	doc := &Document{
		Institutions: []InstitutionDocument{{
			ID: "CBE",
			Languages: map[models.Language]LanguageDocument{
				models.LanguageEnglish: {
					Name:   []string{`(unclosed`},
					Amount: []string{`[`},
				},
			},
		}},
	}

	_, err := Compile(doc)
	if err == nil {
		t.Fatal("Compile() expected error for invalid patterns")
	}
	if !apperrors.IsCode(err, apperrors.CodeInvalidRegex) {
		t.Errorf("Compile() error code = %v, want invalid_regex", err)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bank.yaml")
	content := `
institutions:
  - id: Telebirr
    languages:
      en:
        name: ['(?i)telebirr']
        amount: ['(?i)ETB\s*(?P<value>\d+(?:\.\d+)?)']
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write bank: %v", err)
	}

	bank, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(bank.Institutions()) != 1 || bank.Institutions()[0].Institution != models.InstitutionTelebirr {
		t.Errorf("Load() institutions = %+v", bank.Institutions())
	}
	if bank.Fallback(models.LanguageEnglish) != nil {
		t.Error("bank without fallback section should have no fallback")
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !apperrors.IsCode(err, apperrors.CodeFileNotFound) {
		t.Errorf("Load(missing) error = %v, want file_not_found", err)
	}
}

func TestDocument_Summaries(t *testing.T) {
	doc, err := DefaultDocument()
	if err != nil {
		t.Fatalf("DefaultDocument() error = %v", err)
	}

	summaries := doc.Summaries()
	if len(summaries) != 2*len(models.Institutions()) {
		t.Fatalf("Summaries() = %d rows, want %d", len(summaries), 2*len(models.Institutions()))
	}
	first := summaries[0]
	if first.Institution != models.InstitutionCBE || first.Language != models.LanguageEnglish {
		t.Errorf("first summary = %+v", first)
	}
	if first.Counts["name"] != 3 {
		t.Errorf("CBE/en name count = %d, want 3", first.Counts["name"])
	}
}

func TestBank_FallbackMixed(t *testing.T) {
	bank := MustDefault()
	mixed := bank.Fallback(models.LanguageMixed)
	en := bank.Fallback(models.LanguageEnglish)
	am := bank.Fallback(models.LanguageAmharic)

	if len(mixed.Expense) != len(en.Expense)+len(am.Expense) {
		t.Errorf("mixed expense keywords = %d, want %d", len(mixed.Expense), len(en.Expense)+len(am.Expense))
	}
}
