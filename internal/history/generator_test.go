package history

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"transaction-automation-service/internal/models"
	"transaction-automation-service/internal/recurring"
	"transaction-automation-service/pkg/logger"
)

var generateEnd = time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)

func newTestGenerator(t *testing.T, mutate func(*GeneratorConfig)) *Generator {
	t.Helper()
	cfg := DefaultGeneratorConfig(generateEnd)
	if mutate != nil {
		mutate(cfg)
	}
	g, err := NewGenerator(cfg)
	if err != nil {
		t.Fatalf("NewGenerator() error = %v", err)
	}
	return g
}

func TestGenerator_Generate(t *testing.T) {
	entries := newTestGenerator(t, nil).Generate()

	counts := make(map[string]int)
	for i, e := range entries {
		if i > 0 && e.Timestamp.Before(entries[i-1].Timestamp) {
			t.Fatalf("entries not in chronological order at %d", i)
		}
		if e.Timestamp.Before(generateEnd.AddDate(-1, 0, 0)) || e.Timestamp.After(generateEnd) {
			t.Errorf("entry %s at %v outside the range", e.ID, e.Timestamp)
		}
		counts[e.Counterparty]++
	}

	tests := []struct {
		counterparty string
		min, max     int
	}{
		{"Netflix", 11, 13},
		{"Ethio Telecom", 11, 13},
		{"Bole Fitness Gym", 3, 5},
		{"Kaldi's Coffee", 50, 54},
		{"Employer Payroll", 11, 13},
	}
	for _, tt := range tests {
		if got := counts[tt.counterparty]; got < tt.min || got > tt.max {
			t.Errorf("%s occurs %d times, want %d-%d", tt.counterparty, got, tt.min, tt.max)
		}
	}
	if entries[0].ID != "gen-00001" {
		t.Errorf("first id = %s, want gen-00001", entries[0].ID)
	}
}

func TestGenerator_Reproducible(t *testing.T) {
	a := newTestGenerator(t, nil).Generate()
	b := newTestGenerator(t, nil).Generate()
	c := newTestGenerator(t, func(cfg *GeneratorConfig) { cfg.Seed = 99 }).Generate()

	if len(a) != len(b) {
		t.Fatalf("same seed produced %d and %d entries", len(a), len(b))
	}
	for i := range a {
		if !a[i].Timestamp.Equal(b[i].Timestamp) || !a[i].Amount.Equal(b[i].Amount) || a[i].Counterparty != b[i].Counterparty {
			t.Fatalf("entry %d differs between runs with the same seed", i)
		}
	}

	same := len(a) == len(c)
	for i := 0; same && i < len(a); i++ {
		same = a[i].Timestamp.Equal(c[i].Timestamp)
	}
	if same {
		t.Error("a different seed should produce a different history")
	}
}

func TestGenerator_DetectableSeries(t *testing.T) {
	entries := newTestGenerator(t, nil).Generate()

	detector, err := recurring.NewDetector(nil,
		recurring.WithDetectorClock(func() time.Time { return generateEnd }),
		recurring.WithDetectorLogger(logger.Discard()))
	if err != nil {
		t.Fatalf("NewDetector() error = %v", err)
	}

	found := make(map[string]models.Frequency)
	for _, p := range detector.Detect(entries, recurring.DetectionOptions{}) {
		found[p.Counterparty] = p.Frequency
	}

	if found["netflix"] != models.FrequencyMonthly {
		t.Errorf("netflix frequency = %q, want monthly", found["netflix"])
	}
	if found["ethio telecom"] != models.FrequencyMonthly {
		t.Errorf("ethio telecom frequency = %q, want monthly", found["ethio telecom"])
	}
	if found["employer payroll"] != models.FrequencyMonthly {
		t.Errorf("employer payroll frequency = %q, want monthly", found["employer payroll"])
	}
	if _, ok := found["shoa supermarket"]; ok {
		t.Error("noise payments should not form a pattern")
	}
}

func TestWriteCSV_RoundTrip(t *testing.T) {
	entries := newTestGenerator(t, func(cfg *GeneratorConfig) { cfg.NoiseCount = 5 }).Generate()

	var buf bytes.Buffer
	if err := WriteCSV(&buf, entries); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}

	loaded, stats, err := newTestLoader(t, nil).LoadCSV(context.Background(), &buf, "generated.csv")
	if err != nil {
		t.Fatalf("LoadCSV() error = %v", err)
	}
	if stats.HasErrors() {
		t.Fatalf("round trip produced errors: %v", stats.SampleErrors(3))
	}
	if len(loaded) != len(entries) {
		t.Fatalf("loaded %d entries, wrote %d", len(loaded), len(entries))
	}

	for i := range entries {
		want, got := entries[i], loaded[i]
		if got.ID != want.ID || !got.Amount.Equal(want.Amount) || !got.Timestamp.Equal(want.Timestamp.Truncate(time.Second)) {
			t.Errorf("entry %d = %+v, want %+v", i, got, want)
			break
		}
		if got.Direction != want.Direction || got.Institution != want.Institution {
			t.Errorf("entry %d direction/institution = %s/%s, want %s/%s", i, got.Direction, got.Institution, want.Direction, want.Institution)
			break
		}
	}
}

func TestGeneratorConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*GeneratorConfig)
		wantErr bool
	}{
		{"defaults", func(*GeneratorConfig) {}, false},
		{"end before start", func(c *GeneratorConfig) { c.End = c.Start.AddDate(0, 0, -1) }, true},
		{"negative day jitter", func(c *GeneratorConfig) { c.DayJitter = -1 }, true},
		{"negative noise", func(c *GeneratorConfig) { c.NoiseCount = -1 }, true},
		{"noise without counterparties", func(c *GeneratorConfig) { c.NoiseCounterparties = nil }, true},
		{"inverted amount range", func(c *GeneratorConfig) { c.MaxAmount = decimal.NewFromInt(1) }, true},
		{"no noise ignores range", func(c *GeneratorConfig) { c.NoiseCount, c.MinAmount = 0, decimal.Zero }, false},
		{"unknown frequency", func(c *GeneratorConfig) { c.Series[0].Frequency = models.FrequencyUnknown }, true},
		{"zero amount", func(c *GeneratorConfig) { c.Series[0].Amount = decimal.Zero }, true},
		{"jitter too large", func(c *GeneratorConfig) { c.Series[0].Jitter = 1 }, true},
		{"bad direction", func(c *GeneratorConfig) { c.Series[0].Direction = "refund" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultGeneratorConfig(generateEnd)
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if _, err := NewGenerator(nil); err == nil {
		t.Error("NewGenerator(nil) should fail")
	}
}
