package parser

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"transaction-automation-service/internal/models"
	"transaction-automation-service/internal/templates"
	"transaction-automation-service/pkg/logger"
)

var fixedNow = time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)

func newTestParser(t *testing.T, config *Config) *Parser {
	t.Helper()
	p, err := NewParser(templates.MustDefault(), config,
		WithLogger(logger.Discard()),
		WithClock(func() time.Time { return fixedNow }))
	if err != nil {
		t.Fatalf("NewParser() error = %v", err)
	}
	return p
}

func TestParser_Parse_CBEDebit(t *testing.T) {
	p := newTestParser(t, nil)

	msg, ok := p.Parse("Debit: ETB 1,500.00 from A/C ****1234. Ref: TXN123. Bal: ETB 45,000.00", "")
	if !ok {
		t.Fatal("Parse() returned no result")
	}

	if msg.Institution != models.InstitutionCBE {
		t.Errorf("Institution = %s, want CBE", msg.Institution)
	}
	if msg.Direction != models.DirectionExpense {
		t.Errorf("Direction = %s, want expense", msg.Direction)
	}
	if !msg.Amount.Equal(decimal.RequireFromString("1500.00")) {
		t.Errorf("Amount = %s, want 1500.00", msg.Amount)
	}
	if msg.Balance == nil || !msg.Balance.Equal(decimal.RequireFromString("45000.00")) {
		t.Errorf("Balance = %v, want 45000.00", msg.Balance)
	}
	if msg.Reference != "TXN123" {
		t.Errorf("Reference = %q, want TXN123", msg.Reference)
	}
	if msg.Merchant != "" {
		t.Errorf("Merchant = %q, want empty", msg.Merchant)
	}
	if msg.Language != models.LanguageEnglish || msg.TemplateLanguage != models.LanguageEnglish {
		t.Errorf("Language = %s/%s, want en/en", msg.Language, msg.TemplateLanguage)
	}
	if msg.Confidence != 1.0 {
		t.Errorf("Confidence = %v, want 1.0", msg.Confidence)
	}
}

func TestParser_Parse_Messages(t *testing.T) {
	p := newTestParser(t, nil)

	tests := []struct {
		name        string
		text        string
		hint        models.Language
		institution models.Institution
		direction   models.Direction
		amount      string
		merchant    string
		reference   string
		language    models.Language
		templates   models.Language
		confidence  float64
	}{
		{
			name:        "telebirr payment",
			text:        "Dear Customer, You have paid ETB 250.00 to Ethio Telecom on 12/03/2024 10:15:00. Your transaction number is ABC123XYZ. Your current balance is ETB 1,200.00. Thank you for using telebirr",
			institution: models.InstitutionTelebirr,
			direction:   models.DirectionExpense,
			amount:      "250",
			merchant:    "Ethio Telecom",
			reference:   "ABC123XYZ",
			language:    models.LanguageEnglish,
			templates:   models.LanguageEnglish,
			confidence:  1.0,
		},
		{
			name:        "cbe credit",
			text:        "Dear Customer, your account 1000****5678 has been credited with ETB 2,000.00 from Abebe Kebede. Ref: FT24071ABC. Thank you for banking with CBE.",
			institution: models.InstitutionCBE,
			direction:   models.DirectionIncome,
			amount:      "2000",
			merchant:    "Abebe Kebede",
			reference:   "FT24071ABC",
			language:    models.LanguageEnglish,
			templates:   models.LanguageEnglish,
			confidence:  1.0,
		},
		{
			name:        "telebirr transfer",
			text:        "You have transferred ETB 300.00 to Kebede Alemu on 01/05/2024. Thank you for using telebirr",
			institution: models.InstitutionTelebirr,
			direction:   models.DirectionTransfer,
			amount:      "300",
			merchant:    "Kebede Alemu",
			language:    models.LanguageEnglish,
			templates:   models.LanguageEnglish,
			confidence:  0.95,
		},
		{
			name:        "amharic payment",
			text:        "ቴሌብር 250 ብር ከፍለዋል",
			institution: models.InstitutionTelebirr,
			direction:   models.DirectionExpense,
			amount:      "250",
			language:    models.LanguageAmharic,
			templates:   models.LanguageAmharic,
			confidence:  0.8,
		},
		{
			name:        "amharic numerals",
			text:        "ቴሌብር ፲፭ ብር ከፍለዋል",
			institution: models.InstitutionTelebirr,
			direction:   models.DirectionExpense,
			amount:      "15",
			language:    models.LanguageAmharic,
			templates:   models.LanguageAmharic,
			confidence:  0.8,
		},
		{
			name:        "english text with amharic template",
			text:        "ንግድ ባንክ account update: 500.00 ብር ገቢ ተደርጓል thanks for banking with us today friend",
			institution: models.InstitutionCBE,
			direction:   models.DirectionIncome,
			amount:      "500",
			language:    models.LanguageEnglish,
			templates:   models.LanguageAmharic,
			confidence:  0.8,
		},
		{
			name:        "mixed script",
			text:        "CBE debit ንግድ ባንክ 300 ብር",
			institution: models.InstitutionCBE,
			direction:   models.DirectionExpense,
			amount:      "300",
			language:    models.LanguageMixed,
			templates:   models.LanguageMixed,
			confidence:  0.9,
		},
		{
			name:        "hint overrides detection",
			text:        "Debit: ETB 1,500.00 from A/C ****1234",
			hint:        models.LanguageAmharic,
			institution: models.InstitutionCBE,
			direction:   models.DirectionExpense,
			amount:      "1500",
			language:    models.LanguageAmharic,
			templates:   models.LanguageEnglish,
			confidence:  0.9,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, ok := p.Parse(tt.text, tt.hint)
			if !ok {
				t.Fatal("Parse() returned no result")
			}
			if msg.Institution != tt.institution {
				t.Errorf("Institution = %s, want %s", msg.Institution, tt.institution)
			}
			if msg.Direction != tt.direction {
				t.Errorf("Direction = %s, want %s", msg.Direction, tt.direction)
			}
			if !msg.Amount.Equal(decimal.RequireFromString(tt.amount)) {
				t.Errorf("Amount = %s, want %s", msg.Amount, tt.amount)
			}
			if msg.Merchant != tt.merchant {
				t.Errorf("Merchant = %q, want %q", msg.Merchant, tt.merchant)
			}
			if msg.Reference != tt.reference {
				t.Errorf("Reference = %q, want %q", msg.Reference, tt.reference)
			}
			if msg.Language != tt.language {
				t.Errorf("Language = %s, want %s", msg.Language, tt.language)
			}
			if msg.TemplateLanguage != tt.templates {
				t.Errorf("TemplateLanguage = %s, want %s", msg.TemplateLanguage, tt.templates)
			}
			if msg.Confidence != tt.confidence {
				t.Errorf("Confidence = %v, want %v", msg.Confidence, tt.confidence)
			}
			if msg.RawText != tt.text {
				t.Errorf("RawText = %q, want original text", msg.RawText)
			}
		})
	}
}

func TestParser_Parse_ExtractsDate(t *testing.T) {
	p := newTestParser(t, nil)

	msg, ok := p.Parse("You have paid ETB 250.00 to Ethio Telecom on 12/03/2024 10:15:00. Thank you for using telebirr", "")
	if !ok {
		t.Fatal("Parse() returned no result")
	}
	want := time.Date(2024, 3, 12, 10, 15, 0, 0, time.UTC)
	if msg.Date == nil || !msg.Date.Equal(want) {
		t.Errorf("Date = %v, want %v", msg.Date, want)
	}

	msg, ok = p.Parse("Debit: ETB 100.00 from A/C ****1234", "")
	if !ok {
		t.Fatal("Parse() returned no result")
	}
	if msg.Date != nil {
		t.Errorf("Date = %v, want nil", msg.Date)
	}
}

func TestParser_Parse_NoResult(t *testing.T) {
	p := newTestParser(t, nil)

	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"whitespace", "   \n\t "},
		{"no amount", "Hello from CBE, your statement is ready"},
		{"zero amount", "Debit: ETB 0.00 from A/C ****1234"},
		{"no institution", "Lunch with friends cost 250 ETB"},
		{"plain chat", "see you tomorrow at the cafe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if msg, ok := p.Parse(tt.text, ""); ok {
				t.Errorf("Parse(%q) = %+v, want no result", tt.text, msg)
			}
		})
	}
}

func TestParser_Parse_RetriesOnlyWithoutInstitution(t *testing.T) {
	p := newTestParser(t, nil)

	// English templates identify telebirr but find no ETB amount; the
	// Amharic amount must not be borrowed through a retry.
	text := "Thank you for using telebirr ቴሌብር 250 ብር ከፍለዋል"
	if got := DetectLanguage(text, 5); got != models.LanguageEnglish {
		t.Fatalf("DetectLanguage() = %s, want en", got)
	}
	if msg, ok := p.Parse(text, ""); ok {
		t.Errorf("Parse() = %+v, want no result", msg)
	}

	msg, ok := p.Parse(text, models.LanguageAmharic)
	if !ok || msg.Institution != models.InstitutionTelebirr || msg.TemplateLanguage != models.LanguageAmharic {
		t.Errorf("Parse() with am hint = %+v, %v, want telebirr from am templates", msg, ok)
	}
}

func TestParser_Parse_DebitAmounts(t *testing.T) {
	p := newTestParser(t, nil)

	amounts := []string{"0.50", "12", "99.99", "1,500.00", "45,000", "1,234,567.89"}
	for _, amount := range amounts {
		t.Run(amount, func(t *testing.T) {
			text := fmt.Sprintf("Debit: ETB %s from A/C ****1234", amount)
			msg, ok := p.Parse(text, "")
			if !ok {
				t.Fatalf("Parse(%q) returned no result", text)
			}
			want, _ := decimal.NewFromString(stripCommas(amount))
			if !msg.Amount.Equal(want) {
				t.Errorf("Amount = %s, want %s", msg.Amount, want)
			}
			if msg.Direction != models.DirectionExpense {
				t.Errorf("Direction = %s, want expense", msg.Direction)
			}
			if msg.Confidence < 0 || msg.Confidence > 1 {
				t.Errorf("Confidence %v out of range", msg.Confidence)
			}
		})
	}
}

func stripCommas(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r != ',' {
			out = append(out, r)
		}
	}
	return string(out)
}

func TestParser_Parse_Deterministic(t *testing.T) {
	p := newTestParser(t, nil)
	text := "Dear Customer, You have paid ETB 250.00 to Ethio Telecom. Thank you for using telebirr"

	first, ok := p.Parse(text, "")
	if !ok {
		t.Fatal("Parse() returned no result")
	}
	for i := 0; i < 10; i++ {
		again, _ := p.Parse(text, "")
		if again.Confidence != first.Confidence || !again.Amount.Equal(first.Amount) || again.Merchant != first.Merchant {
			t.Fatalf("run %d differs: %+v vs %+v", i, again, first)
		}
	}
}

func TestParser_ParseWithFallback(t *testing.T) {
	p := newTestParser(t, nil)

	msg, ok := p.ParseWithFallback("paid 250 birr for lunch", "")
	if !ok {
		t.Fatal("ParseWithFallback() returned no result")
	}
	if !msg.Fallback {
		t.Error("Fallback = false, want true")
	}
	if msg.Institution != models.InstitutionUnknown {
		t.Errorf("Institution = %s, want unknown", msg.Institution)
	}
	if msg.Direction != models.DirectionExpense {
		t.Errorf("Direction = %s, want expense", msg.Direction)
	}
	if !msg.Amount.Equal(decimal.NewFromInt(250)) {
		t.Errorf("Amount = %s, want 250", msg.Amount)
	}
	if msg.Confidence != 0.4 {
		t.Errorf("Confidence = %v, want 0.4", msg.Confidence)
	}

	msg, ok = p.ParseWithFallback("received 1,000 ETB salary bonus", "")
	if !ok || msg.Direction != models.DirectionIncome {
		t.Errorf("income fallback = %+v, %v", msg, ok)
	}

	msg, ok = p.ParseWithFallback("Debit: ETB 1,500.00 from A/C ****1234", "")
	if !ok || msg.Fallback || msg.Institution != models.InstitutionCBE {
		t.Errorf("template result should win over fallback: %+v", msg)
	}

	if _, ok := p.ParseWithFallback("lunch 250 birr", ""); ok {
		t.Error("fallback without a direction keyword should not match")
	}
	if _, ok := p.ParseWithFallback("paid for lunch", ""); ok {
		t.Error("fallback without an amount should not match")
	}
}

func TestParser_ParseWithFallback_Disabled(t *testing.T) {
	config := DefaultConfig()
	config.EnableFallback = false
	p := newTestParser(t, config)

	if _, ok := p.ParseWithFallback("paid 250 birr for lunch", ""); ok {
		t.Error("fallback should be disabled")
	}
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected models.Language
	}{
		{"english", "Debit: ETB 1,500.00 from A/C", models.LanguageEnglish},
		{"amharic", "ሂሳብዎ 500 ብር ወጪ ተደርጓል", models.LanguageAmharic},
		{"mixed equal counts", "CBE debit ንግድ ባንክ ብር", models.LanguageMixed},
		{"latin majority under wide gap", "Debit ETB ንግድ ባንክ", models.LanguageEnglish},
		{"ethiopic narrow majority", "Bank Account ሂሳብዎ ብር ወጪ ተደርጓል", models.LanguageAmharic},
		{"both below margin", "CBE ብር", models.LanguageMixed},
		{"digits only", "1234 5678", models.LanguageMixed},
		{"short latin", "ETB 5", models.LanguageMixed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectLanguage(tt.text, 5); got != tt.expected {
				t.Errorf("DetectLanguage(%q) = %s, want %s (counts %+v)", tt.text, got, tt.expected, CountScripts(tt.text))
			}
		})
	}
}

func TestScorer_Score(t *testing.T) {
	scorer := NewScorer(DefaultScoreWeights())

	tests := []struct {
		name     string
		signals  Signals
		expected float64
	}{
		{"amount only", Signals{Amount: true}, 0.7},
		{"institution and amount", Signals{Institution: true, Amount: true}, 0.9},
		{"with reason", Signals{Institution: true, Amount: true, Reason: true}, 0.95},
		{"transfer penalty", Signals{Institution: true, Amount: true, Direction: models.DirectionTransfer}, 0.85},
		{"alternate script", Signals{Institution: true, Amount: true, AlternateScript: true}, 0.8},
		{"clamped high", Signals{Institution: true, Amount: true, Balance: true, Reference: true, Merchant: true, Reason: true}, 1.0},
		{"nothing", Signals{}, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scorer.Score(tt.signals); got != tt.expected {
				t.Errorf("Score() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestScorer_ClampsLow(t *testing.T) {
	scorer := NewScorer(ScoreWeights{Base: 0.1, TransferPenalty: 0.5, AlternateScriptPenalty: 0.5})
	if got := scorer.Score(Signals{Direction: models.DirectionTransfer, AlternateScript: true}); got != 0 {
		t.Errorf("Score() = %v, want 0", got)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(*Config)
		wantError bool
	}{
		{"default", func(c *Config) {}, false},
		{"negative margin", func(c *Config) { c.LanguageMargin = -1 }, true},
		{"penalty above one", func(c *Config) { c.FallbackPenalty = 1.5 }, true},
		{"negative weight", func(c *Config) { c.Weights.Balance = -0.1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.modify(config)
			err := config.Validate()
			if (err != nil) != tt.wantError {
				t.Errorf("Validate() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestNewParser_Errors(t *testing.T) {
	if _, err := NewParser(nil, nil); err == nil {
		t.Error("NewParser(nil bank) should fail")
	}
	config := DefaultConfig()
	config.LanguageMargin = -3
	if _, err := NewParser(templates.MustDefault(), config); err == nil {
		t.Error("NewParser(invalid config) should fail")
	}
}

func TestConfig_Clone(t *testing.T) {
	original := DefaultConfig()
	clone := original.Clone()
	clone.Weights.Base = 0.1
	if original.Weights.Base != 0.5 {
		t.Error("Clone() shares weights with the original")
	}
}
