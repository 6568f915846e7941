package recurring

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"transaction-automation-service/internal/models"
	"transaction-automation-service/pkg/logger"
)

var analysisNow = time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

func newTestDetector(t *testing.T, cfg *DetectionConfig) *Detector {
	t.Helper()
	d, err := NewDetector(cfg,
		WithDetectorClock(func() time.Time { return analysisNow }),
		WithDetectorLogger(logger.Discard()))
	if err != nil {
		t.Fatalf("NewDetector() error = %v", err)
	}
	return d
}

func newTestPromoter() *Promoter {
	seq := 0
	return NewPromoter(
		WithPromoterLogger(logger.Discard()),
		WithPromoterClock(func() time.Time { return analysisNow }),
		WithPromoterIDGenerator(func() string {
			seq++
			return fmt.Sprintf("sub-%d", seq)
		}),
	)
}

// series builds entries for one counterparty starting at start with the
// given day gaps between consecutive entries
func series(counterparty string, start time.Time, amounts []string, gaps []int) []models.HistoryEntry {
	entries := make([]models.HistoryEntry, 0, len(gaps)+1)
	ts := start
	for i := 0; i <= len(gaps); i++ {
		if i > 0 {
			ts = ts.AddDate(0, 0, gaps[i-1])
		}
		amount := amounts[0]
		if i < len(amounts) {
			amount = amounts[i]
		}
		entries = append(entries, models.HistoryEntry{
			ID:           fmt.Sprintf("%s-%d", counterparty, i),
			Amount:       decimal.RequireFromString(amount),
			Counterparty: counterparty,
			Institution:  models.InstitutionCBE,
			Timestamp:    ts,
			Direction:    models.DirectionExpense,
			Confidence:   0.9,
		})
	}
	return entries
}

func TestDetector_MonthlySubscription(t *testing.T) {
	start := time.Date(2024, 1, 5, 8, 0, 0, 0, time.UTC)
	history := series("Netflix", start, []string{"99.99"}, []int{30, 31, 29, 30, 31})

	patterns := newTestDetector(t, nil).Detect(history, DetectionOptions{})
	if len(patterns) != 1 {
		t.Fatalf("Detect() returned %d patterns, want 1", len(patterns))
	}

	p := patterns[0]
	if p.Frequency != models.FrequencyMonthly {
		t.Errorf("Frequency = %s, want monthly", p.Frequency)
	}
	if p.Confidence <= 0.8 {
		t.Errorf("Confidence = %.4f, want > 0.8", p.Confidence)
	}
	if p.Occurrences != 6 {
		t.Errorf("Occurrences = %d, want 6", p.Occurrences)
	}
	if p.Counterparty != "netflix" {
		t.Errorf("Counterparty = %q, want netflix", p.Counterparty)
	}
	if !p.AverageAmount.Equal(decimal.RequireFromString("99.99")) {
		t.Errorf("AverageAmount = %s, want 99.99", p.AverageAmount)
	}
	if p.AmountVariation != 0 {
		t.Errorf("AmountVariation = %f, want 0", p.AmountVariation)
	}
	if p.AverageIntervalDays != 30.2 {
		t.Errorf("AverageIntervalDays = %.2f, want 30.2", p.AverageIntervalDays)
	}
	wantNext := time.Date(2024, 7, 4, 8, 0, 0, 0, time.UTC)
	if !p.NextExpected.Equal(wantNext) {
		t.Errorf("NextExpected = %s, want %s", p.NextExpected, wantNext)
	}
	if !p.FirstSeen.Equal(start) || len(p.TransactionIDs) != 6 || p.TransactionIDs[0] != "Netflix-0" {
		t.Errorf("unexpected span or ids: %+v", p)
	}
}

func TestDetector_Rejections(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		history []models.HistoryEntry
	}{
		{
			name:    "two occurrences",
			history: series("Spotify", start, []string{"150"}, []int{30}),
		},
		{
			name:    "amounts vary too much",
			history: series("Shoa", start, []string{"100", "200", "300", "100"}, []int{30, 30, 30}),
		},
		{
			name:    "irregular intervals",
			history: series("Random", start, []string{"50"}, []int{1, 90, 1, 90}),
		},
		{
			name:    "outside lookback window",
			history: series("Old", start.AddDate(-2, 0, 0), []string{"20"}, []int{30, 30, 30}),
		},
		{
			name:    "empty history",
			history: nil,
		},
	}

	d := newTestDetector(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.Detect(tt.history, DetectionOptions{}); len(got) != 0 {
				t.Errorf("Detect() = %v, want no patterns", got)
			}
		})
	}
}

func TestDetector_Income(t *testing.T) {
	start := time.Date(2024, 1, 25, 9, 0, 0, 0, time.UTC)
	history := series("Employer", start, []string{"20000"}, []int{30, 30, 30, 30, 30})
	for i := range history {
		history[i].Direction = models.DirectionIncome
	}

	got := newTestDetector(t, nil).Detect(history, DetectionOptions{})
	if len(got) != 1 {
		t.Fatalf("Detect() returned %d patterns, want 1 for a regular salary", len(got))
	}
	if got[0].Frequency != models.FrequencyMonthly || got[0].Occurrences != 6 {
		t.Errorf("pattern = %s x%d, want monthly x6", got[0].Frequency, got[0].Occurrences)
	}

	cfg := DefaultDetectionConfig()
	cfg.ExcludeIncome = true
	excluding := newTestDetector(t, cfg)
	if got := excluding.Detect(history, DetectionOptions{}); len(got) != 0 {
		t.Errorf("Detect() with ExcludeIncome = %v, want no patterns", got)
	}
}

func TestDetector_Frequencies(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		gaps       []int
		lookback   int
		frequency  models.Frequency
		confidence float64
	}{
		{"weekly", []int{7, 7, 7, 7}, 0, models.FrequencyWeekly, 1},
		{"quarterly", []int{91, 91, 91}, 800, models.FrequencyQuarterly, 1},
		{"yearly", []int{365, 365}, 1200, models.FrequencyYearly, 1},
		{"fortnightly is unknown", []int{14, 14, 14}, 0, models.FrequencyUnknown, 0.7},
	}

	d := newTestDetector(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			history := series("Gym", start.AddDate(0, 0, -sum(tt.gaps)), []string{"500"}, tt.gaps)
			got := d.Detect(history, DetectionOptions{LookbackDays: tt.lookback})
			if len(got) != 1 {
				t.Fatalf("Detect() returned %d patterns, want 1", len(got))
			}
			if got[0].Frequency != tt.frequency {
				t.Errorf("Frequency = %s, want %s", got[0].Frequency, tt.frequency)
			}
			if got[0].Confidence != tt.confidence {
				t.Errorf("Confidence = %.4f, want %.4f", got[0].Confidence, tt.confidence)
			}
			if !got[0].NextExpected.Equal(NextDate(got[0].LastSeen, tt.frequency)) {
				t.Errorf("NextExpected = %s", got[0].NextExpected)
			}
		})
	}
}

func sum(values []int) int {
	total := 0
	for _, v := range values {
		total += v
	}
	return total
}

func TestDetector_GroupsNormalizedCounterparties(t *testing.T) {
	start := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	history := []models.HistoryEntry{
		{ID: "a", Amount: decimal.NewFromInt(300), Counterparty: "ETHIO-TELECOM 0911", Timestamp: start},
		{ID: "b", Amount: decimal.NewFromInt(300), Counterparty: "Ethio Telecom", Timestamp: start.AddDate(0, 1, 0)},
		{ID: "c", Amount: decimal.NewFromInt(300), Counterparty: "ethio telecom.", Timestamp: start.AddDate(0, 2, 0)},
		{ID: "d", Amount: decimal.NewFromInt(45), Institution: models.InstitutionTelebirr, Timestamp: start},
	}

	patterns := newTestDetector(t, nil).Detect(history, DetectionOptions{})
	if len(patterns) != 1 || patterns[0].Counterparty != "ethio telecom" || patterns[0].Occurrences != 3 {
		t.Fatalf("Detect() = %v, want one ethio telecom pattern with 3 occurrences", patterns)
	}
}

func TestDetector_MinOccurrencesOption(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	history := series("Spotify", start, []string{"150"}, []int{30})

	d := newTestDetector(t, nil)
	if got := d.Detect(history, DetectionOptions{}); len(got) != 0 {
		t.Errorf("default options found %d patterns", len(got))
	}
	if got := d.Detect(history, DetectionOptions{MinOccurrences: 2}); len(got) != 1 {
		t.Errorf("MinOccurrences=2 found %d patterns, want 1", len(got))
	}
}

func TestDetector_Deterministic(t *testing.T) {
	start := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	var history []models.HistoryEntry
	history = append(history, series("Netflix", start, []string{"99.99"}, []int{30, 31, 30, 30})...)
	history = append(history, series("Spotify", start, []string{"150"}, []int{31, 30, 31, 30})...)
	history = append(history, series("DStv", start, []string{"700", "720", "700", "710"}, []int{30, 30, 30})...)
	history = append(history, series("Ride", start, []string{"200"}, []int{7, 8, 6, 7, 7})...)

	d := newTestDetector(t, nil)
	first := d.Detect(history, DetectionOptions{})
	for i := 0; i < 5; i++ {
		// Reverse the input to show order does not matter
		reversed := make([]models.HistoryEntry, len(history))
		for j, e := range history {
			reversed[len(history)-1-j] = e
		}
		if got := d.Detect(reversed, DetectionOptions{}); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d differs from the first run", i)
		}
	}

	for i := 1; i < len(first); i++ {
		prev, cur := first[i-1], first[i]
		if prev.Confidence < cur.Confidence ||
			(prev.Confidence == cur.Confidence && prev.Counterparty > cur.Counterparty) {
			t.Errorf("patterns not ordered by confidence then counterparty: %v", first)
		}
	}
}

func TestDetector_PatternInvariant(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	history := append(
		series("Steady", start, []string{"100", "104", "98", "101"}, []int{30, 30, 30}),
		series("Wobbly", start, []string{"100", "150", "60", "100"}, []int{30, 30, 30})...,
	)

	cfg := DefaultDetectionConfig()
	for _, p := range newTestDetector(t, cfg).Detect(history, DetectionOptions{}) {
		if p.Occurrences < cfg.MinOccurrences {
			t.Errorf("%s has %d occurrences", p.Counterparty, p.Occurrences)
		}
		if p.AmountVariation > cfg.MaxAmountVariation {
			t.Errorf("%s amount variation %.4f above limit", p.Counterparty, p.AmountVariation)
		}
		if p.Confidence < cfg.MinPatternConfidence || p.Confidence > 1 {
			t.Errorf("%s confidence %.4f out of range", p.Counterparty, p.Confidence)
		}
		if p.Counterparty == "wobbly" {
			t.Error("wobbly amounts should not form a pattern")
		}
	}
}

func TestDetectionConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *DetectionConfig)
		wantErr bool
	}{
		{"defaults", func(c *DetectionConfig) {}, false},
		{"single occurrence", func(c *DetectionConfig) { c.MinOccurrences = 1 }, true},
		{"threshold above one", func(c *DetectionConfig) { c.ConfidenceThreshold = 1.2 }, true},
		{"zero lookback", func(c *DetectionConfig) { c.LookbackDays = 0 }, true},
		{"negative variation", func(c *DetectionConfig) { c.MaxAmountVariation = -0.1 }, true},
		{"inverted band", func(c *DetectionConfig) { c.Bands[0].MaxDays = 2 }, true},
		{"duplicate band", func(c *DetectionConfig) { c.Bands = append(c.Bands, c.Bands[0]) }, true},
		{"unknown band", func(c *DetectionConfig) { c.Bands[0].Frequency = models.FrequencyUnknown }, true},
		{"custom bands", func(c *DetectionConfig) { c.Bands = []FrequencyBand{{Frequency: models.FrequencyMonthly, MinDays: 25, MaxDays: 35}} }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultDetectionConfig()
			tt.modify(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if _, err := NewDetector(&DetectionConfig{}); err == nil {
		t.Error("NewDetector() accepted an empty configuration")
	}
}

func TestDetectionConfig_CustomBands(t *testing.T) {
	cfg := DefaultDetectionConfig()
	cfg.Bands = []FrequencyBand{{Frequency: models.FrequencyWeekly, MinDays: 10, MaxDays: 16}}

	if got := cfg.Classify(14); got != models.FrequencyWeekly {
		t.Errorf("Classify(14) = %s, want weekly", got)
	}
	if got := cfg.Classify(30); got != models.FrequencyUnknown {
		t.Errorf("Classify(30) = %s, want unknown", got)
	}

	clone := cfg.Clone()
	clone.Bands[0].MinDays = 1
	if cfg.Bands[0].MinDays != 10 {
		t.Error("Clone() shares bands with the original")
	}
}

func TestNormalizeCounterparty(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"NETFLIX.COM", "netflix com"},
		{"  Ethio   Telecom  ", "ethio telecom"},
		{"Shoa #12 Bole", "shoa bole"},
		{"CBE", "cbe"},
		{"12345", ""},
		{"ቡና ቤት", "ቡና ቤት"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := NormalizeCounterparty(tt.input); got != tt.expected {
				t.Errorf("NormalizeCounterparty(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestPromoter_Promote(t *testing.T) {
	last := time.Date(2024, 6, 4, 0, 0, 0, 0, time.UTC)
	patterns := []*models.TransactionPattern{
		{
			Counterparty: "netflix", AverageAmount: decimal.RequireFromString("99.99"),
			Frequency: models.FrequencyMonthly, Confidence: 0.99, Occurrences: 6,
			LastSeen: last, NextExpected: NextDate(last, models.FrequencyMonthly),
			AverageIntervalDays: 30.2, TransactionIDs: []string{"a", "b"},
		},
		{
			Counterparty: "ethio telecom", AverageAmount: decimal.NewFromInt(300),
			Frequency: models.FrequencyWeekly, Confidence: 0.9, Occurrences: 5,
			LastSeen: last, NextExpected: NextDate(last, models.FrequencyWeekly),
			AverageIntervalDays: 7,
		},
		{
			Counterparty: "tomoca coffee plc", AverageAmount: decimal.NewFromInt(120),
			Frequency: models.FrequencyWeekly, Confidence: 0.8, Occurrences: 4,
			LastSeen: last, NextExpected: NextDate(last, models.FrequencyWeekly),
			AverageIntervalDays: 7,
		},
		{
			Counterparty: "abebe kebede", AverageAmount: decimal.NewFromInt(1000),
			Frequency: models.FrequencyUnknown, Confidence: 0.7, Occurrences: 3,
			LastSeen: last, NextExpected: NextDate(last, models.FrequencyUnknown),
			AverageIntervalDays: 15,
		},
		{
			Counterparty: "weak", Confidence: 0.6, Frequency: models.FrequencyMonthly,
		},
	}

	subs := newTestPromoter().Promote(patterns, 0.7)
	if len(subs) != 4 {
		t.Fatalf("Promote() returned %d subscriptions, want 4", len(subs))
	}

	expected := []struct {
		name      string
		category  string
		frequency models.Frequency
	}{
		{"Netflix", "Entertainment", models.FrequencyMonthly},
		{"Ethio Telecom", "Utilities", models.FrequencyWeekly},
		{"Tomoca Coffee", "Food", models.FrequencyWeekly},
		{"Abebe Kebede", "Other", models.FrequencyUnknown},
	}
	for i, want := range expected {
		s := subs[i]
		if s.Name != want.name || s.Category != want.category || s.Frequency != want.frequency {
			t.Errorf("subscription %d = (%s, %s, %s), want (%s, %s, %s)",
				i, s.Name, s.Category, s.Frequency, want.name, want.category, want.frequency)
		}
		if !s.Active || !s.AutoRenew || s.Confidence != patterns[i].Confidence {
			t.Errorf("subscription %d flags or confidence wrong: %+v", i, s)
		}
		if !s.NextBillingDate.Equal(patterns[i].NextExpected) {
			t.Errorf("subscription %d next billing = %s, want %s", i, s.NextBillingDate, patterns[i].NextExpected)
		}
	}

	wantNotes := "Detected from 6 occurrences, average interval 30.2 days, 99% confidence"
	if subs[0].Notes != wantNotes {
		t.Errorf("Notes = %q, want %q", subs[0].Notes, wantNotes)
	}
	if subs[0].ID != "sub-1" || !subs[0].CreatedAt.Equal(analysisNow) {
		t.Errorf("ID or CreatedAt not injected: %+v", subs[0])
	}
	if !reflect.DeepEqual(subs[0].TransactionIDs, []string{"a", "b"}) {
		t.Errorf("TransactionIDs = %v", subs[0].TransactionIDs)
	}
}

func TestPromoter_KnownFrequencyOverrides(t *testing.T) {
	last := time.Date(2024, 6, 4, 0, 0, 0, 0, time.UTC)
	pattern := &models.TransactionPattern{
		Counterparty: "spotify premium", Frequency: models.FrequencyUnknown, Confidence: 0.7,
		LastSeen: last, NextExpected: NextDate(last, models.FrequencyUnknown),
	}

	subs := newTestPromoter().Promote([]*models.TransactionPattern{pattern}, 0.7)
	if len(subs) != 1 || subs[0].Frequency != models.FrequencyMonthly || subs[0].Name != "Spotify" {
		t.Fatalf("Promote() = %+v, want monthly Spotify", subs)
	}
}

func TestPromoter_ThresholdMonotonic(t *testing.T) {
	var patterns []*models.TransactionPattern
	for i := 0; i <= 10; i++ {
		patterns = append(patterns, &models.TransactionPattern{
			Counterparty: fmt.Sprintf("merchant %c", 'a'+i),
			Confidence:   float64(i) / 10,
			Frequency:    models.FrequencyMonthly,
		})
	}

	p := newTestPromoter()
	previous := -1
	for threshold := 1.0; threshold >= 0; threshold -= 0.05 {
		subs := p.Promote(patterns, threshold)
		if len(subs) < previous {
			t.Errorf("lowering threshold to %.2f shrank the set from %d to %d", threshold, previous, len(subs))
		}
		for _, s := range subs {
			if s.Confidence < threshold {
				t.Errorf("promoted %s below threshold %.2f", s.Counterparty, threshold)
			}
		}
		previous = len(subs)
	}
}

func TestPromoter_DisplayName(t *testing.T) {
	p := newTestPromoter()
	tests := []struct {
		input    string
		expected string
	}{
		{"awash bank s.c", "Awash"},
		{"payment to kaldis coffee", "Kaldis Coffee"},
		{"BANK", "Bank"},
		{"fresh corner plc", "Fresh Corner"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := p.DisplayName(tt.input); got != tt.expected {
				t.Errorf("DisplayName(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
