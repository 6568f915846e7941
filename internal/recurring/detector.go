package recurring

import (
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"transaction-automation-service/internal/models"
	apperrors "transaction-automation-service/pkg/errors"
	"transaction-automation-service/pkg/logger"
	"transaction-automation-service/pkg/stats"
)

// Confidence penalties applied to a candidate pattern
const (
	IntervalVariationWeight = 0.3
	AmountVariationWeight   = 0.2
	UnknownFrequencyPenalty = 0.3
)

// Detector groups history by counterparty and measures how regular each
// group is. It holds no state between runs.
type Detector struct {
	config *DetectionConfig
	now    func() time.Time
	logger logger.Logger
}

// DetectorOption customises a Detector
type DetectorOption func(*Detector)

// WithDetectorClock sets the clock that anchors the lookback window
func WithDetectorClock(now func() time.Time) DetectorOption {
	return func(d *Detector) { d.now = now }
}

// WithDetectorLogger sets the detector's logger
func WithDetectorLogger(l logger.Logger) DetectorOption {
	return func(d *Detector) { d.logger = l.WithComponent("detector") }
}

// NewDetector creates a detector. A nil config uses the defaults.
func NewDetector(config *DetectionConfig, opts ...DetectorOption) (*Detector, error) {
	if config == nil {
		config = DefaultDetectionConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryConfiguration, apperrors.CodeInvalidConfig,
			"invalid detection configuration")
	}

	d := &Detector{
		config: config.Clone(),
		now:    time.Now,
		logger: logger.WithComponent("detector"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Config returns a copy of the detector's configuration
func (d *Detector) Config() *DetectionConfig {
	return d.config.Clone()
}

// Detect returns the recurring patterns found in history, ordered by
// confidence then counterparty. Groups that fail a threshold are skipped.
func (d *Detector) Detect(history []models.HistoryEntry, opts DetectionOptions) []*models.TransactionPattern {
	cfg := d.config.apply(opts)
	cutoff := d.now().AddDate(0, 0, -cfg.LookbackDays)

	groups := make(map[string][]models.HistoryEntry)
	for _, entry := range history {
		if entry.Timestamp.Before(cutoff) {
			continue
		}
		if entry.Direction == models.DirectionIncome && cfg.ExcludeIncome {
			continue
		}
		if entry.Amount.IsZero() {
			continue
		}
		key := NormalizeCounterparty(entry.GroupingKey())
		if key == "" {
			continue
		}
		groups[key] = append(groups[key], entry)
	}

	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var patterns []*models.TransactionPattern
	skipped := 0
	for _, key := range keys {
		if p, ok := d.analyzeGroup(key, groups[key], cfg); ok {
			patterns = append(patterns, p)
		} else {
			skipped++
		}
	}

	sort.SliceStable(patterns, func(i, j int) bool {
		if patterns[i].Confidence != patterns[j].Confidence {
			return patterns[i].Confidence > patterns[j].Confidence
		}
		return patterns[i].Counterparty < patterns[j].Counterparty
	})

	d.logger.WithFields(logger.Fields{
		"entries":  len(history),
		"groups":   len(groups),
		"patterns": len(patterns),
		"skipped":  skipped,
	}).Info("Pattern detection completed")

	return patterns
}

func (d *Detector) analyzeGroup(key string, entries []models.HistoryEntry, cfg *DetectionConfig) (*models.TransactionPattern, bool) {
	if len(entries) < cfg.MinOccurrences {
		return nil, false
	}

	sorted := make([]models.HistoryEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].Timestamp.Before(sorted[j].Timestamp)
		}
		return sorted[i].ID < sorted[j].ID
	})

	amounts := make([]float64, len(sorted))
	total := decimal.Zero
	for i, e := range sorted {
		abs := e.Amount.Abs()
		amounts[i] = abs.InexactFloat64()
		total = total.Add(abs)
	}
	amountCV := stats.CoefficientOfVariation(amounts)
	if amountCV > cfg.MaxAmountVariation {
		d.logger.WithFields(logger.Fields{
			"counterparty":     key,
			"amount_variation": amountCV,
		}).Debug("Skipping group with inconsistent amounts")
		return nil, false
	}

	gaps := make([]float64, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		gaps = append(gaps, sorted[i].Timestamp.Sub(sorted[i-1].Timestamp).Hours()/24)
	}
	meanGap := stats.Mean(gaps)
	intervalCV := stats.CoefficientOfVariation(gaps)
	frequency := cfg.Classify(meanGap)

	confidence := 1.0 - intervalCV*IntervalVariationWeight - amountCV*AmountVariationWeight
	if frequency == models.FrequencyUnknown {
		confidence -= UnknownFrequencyPenalty
	}
	confidence = stats.Clamp01(stats.Round(confidence, 4))
	if confidence < cfg.MinPatternConfidence {
		return nil, false
	}

	ids := make([]string, len(sorted))
	for i, e := range sorted {
		ids[i] = e.ID
	}

	first := sorted[0].Timestamp
	last := sorted[len(sorted)-1].Timestamp

	return &models.TransactionPattern{
		Counterparty:        key,
		AverageAmount:       total.Div(decimal.NewFromInt(int64(len(sorted)))).Round(2),
		Frequency:           frequency,
		Confidence:          confidence,
		Occurrences:         len(sorted),
		FirstSeen:           first,
		LastSeen:            last,
		NextExpected:        NextDate(last, frequency),
		AverageIntervalDays: stats.Round(meanGap, 2),
		IntervalVariance:    stats.Round(intervalCV, 4),
		AmountVariation:     stats.Round(amountCV, 4),
		TransactionIDs:      ids,
	}, true
}

// NormalizeCounterparty lower-cases a name, turns punctuation into spaces,
// drops purely numeric tokens and collapses whitespace
func NormalizeCounterparty(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)

	fields := strings.Fields(mapped)
	kept := fields[:0]
	for _, f := range fields {
		if isNumeric(f) {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}
