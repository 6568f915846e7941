package history

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"transaction-automation-service/internal/models"
	"transaction-automation-service/internal/recurring"
	apperrors "transaction-automation-service/pkg/errors"
)

// Series describes one recurring payment stream in a generated history
type Series struct {
	Counterparty string             `yaml:"counterparty" json:"counterparty"`
	Institution  models.Institution `yaml:"institution" json:"institution"`
	Amount       decimal.Decimal    `yaml:"amount" json:"amount"`
	Frequency    models.Frequency   `yaml:"frequency" json:"frequency"`
	Direction    models.Direction   `yaml:"direction" json:"direction"`

	// Jitter is the largest relative amount change per payment, e.g. 0.05
	Jitter float64 `yaml:"jitter" json:"jitter"`
}

// GeneratorConfig controls synthetic history generation
type GeneratorConfig struct {
	Start time.Time
	End   time.Time
	Seed  int64

	Series []Series

	// DayJitter shifts each recurring payment by up to this many days
	DayJitter int

	// NoiseCount one-off payments are spread over the range
	NoiseCount          int
	NoiseCounterparties []string
	MinAmount           decimal.Decimal
	MaxAmount           decimal.Decimal
}

// DefaultGeneratorConfig returns one year of history ending at end
func DefaultGeneratorConfig(end time.Time) *GeneratorConfig {
	return &GeneratorConfig{
		Start: end.AddDate(-1, 0, 0),
		End:   end,
		Seed:  1,
		Series: []Series{
			{Counterparty: "Netflix", Institution: models.InstitutionCBE, Amount: decimal.NewFromInt(450), Frequency: models.FrequencyMonthly, Direction: models.DirectionExpense},
			{Counterparty: "Ethio Telecom", Institution: models.InstitutionTelebirr, Amount: decimal.NewFromInt(199), Frequency: models.FrequencyMonthly, Direction: models.DirectionExpense, Jitter: 0.05},
			{Counterparty: "Bole Fitness Gym", Institution: models.InstitutionDashen, Amount: decimal.NewFromInt(1500), Frequency: models.FrequencyQuarterly, Direction: models.DirectionExpense},
			{Counterparty: "Kaldi's Coffee", Institution: models.InstitutionTelebirr, Amount: decimal.NewFromInt(120), Frequency: models.FrequencyWeekly, Direction: models.DirectionExpense, Jitter: 0.1},
			{Counterparty: "Employer Payroll", Institution: models.InstitutionAwash, Amount: decimal.NewFromInt(25000), Frequency: models.FrequencyMonthly, Direction: models.DirectionIncome},
		},
		DayJitter:           1,
		NoiseCount:          60,
		NoiseCounterparties: []string{"Shoa Supermarket", "Total Fuel Station", "Bole Pharmacy", "Sheger Restaurant", "Merkato Electronics", "Ride Taxi"},
		MinAmount:           decimal.NewFromInt(50),
		MaxAmount:           decimal.NewFromInt(5000),
	}
}

// Validate checks the configuration and reports every problem found
func (c *GeneratorConfig) Validate() error {
	var err error

	if !c.End.After(c.Start) {
		err = multierr.Append(err, apperrors.ConfigurationError(
			apperrors.CodeConfigConflict, "end", c.End.Format(time.RFC3339),
			fmt.Errorf("end must be after start")))
	}
	if c.DayJitter < 0 {
		err = multierr.Append(err, apperrors.ConfigurationError(
			apperrors.CodeInvalidConfig, "day_jitter", c.DayJitter,
			fmt.Errorf("cannot be negative")))
	}
	if c.NoiseCount < 0 {
		err = multierr.Append(err, apperrors.ConfigurationError(
			apperrors.CodeInvalidConfig, "noise_count", c.NoiseCount,
			fmt.Errorf("cannot be negative")))
	}
	if c.NoiseCount > 0 {
		if len(c.NoiseCounterparties) == 0 {
			err = multierr.Append(err, apperrors.ConfigurationError(
				apperrors.CodeMissingConfig, "noise_counterparties", nil, nil))
		}
		if !c.MinAmount.IsPositive() || c.MaxAmount.LessThan(c.MinAmount) {
			err = multierr.Append(err, apperrors.ConfigurationError(
				apperrors.CodeInvalidConfig, "amount_range", fmt.Sprintf("%s-%s", c.MinAmount, c.MaxAmount),
				fmt.Errorf("need 0 < min <= max")))
		}
	}

	for i, s := range c.Series {
		setting := fmt.Sprintf("series[%d]", i)
		if s.Counterparty == "" {
			err = multierr.Append(err, apperrors.ConfigurationError(
				apperrors.CodeMissingConfig, setting+".counterparty", nil, nil))
		}
		if !s.Amount.IsPositive() {
			err = multierr.Append(err, apperrors.ConfigurationError(
				apperrors.CodeInvalidConfig, setting+".amount", s.Amount.String(),
				fmt.Errorf("must be positive")))
		}
		if !s.Frequency.IsValid() || s.Frequency == models.FrequencyUnknown {
			err = multierr.Append(err, apperrors.ConfigurationError(
				apperrors.CodeInvalidConfig, setting+".frequency", s.Frequency,
				fmt.Errorf("must be weekly, monthly, quarterly or yearly")))
		}
		if s.Direction != "" && !s.Direction.IsValid() {
			err = multierr.Append(err, apperrors.ConfigurationError(
				apperrors.CodeInvalidConfig, setting+".direction", s.Direction,
				fmt.Errorf("must be expense, income or transfer")))
		}
		if s.Jitter < 0 || s.Jitter >= 1 {
			err = multierr.Append(err, apperrors.ConfigurationError(
				apperrors.CodeInvalidConfig, setting+".jitter", s.Jitter,
				fmt.Errorf("must be in [0, 1)")))
		}
	}

	return err
}

// Generator produces reproducible synthetic histories for demos and tests
type Generator struct {
	config *GeneratorConfig
	rng    *rand.Rand
}

// NewGenerator validates config and seeds the generator
func NewGenerator(config *GeneratorConfig) (*Generator, error) {
	if config == nil {
		return nil, apperrors.InternalError(apperrors.CodeNilInput, "new_generator", nil)
	}
	if err := config.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryConfiguration, apperrors.CodeInvalidConfig,
			"invalid generator configuration")
	}

	cfg := *config
	return &Generator{
		config: &cfg,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}, nil
}

// Generate returns the recurring series and the noise payments in chronological order
func (g *Generator) Generate() []models.HistoryEntry {
	var entries []models.HistoryEntry
	for _, s := range g.config.Series {
		entries = append(entries, g.series(s)...)
	}
	entries = append(entries, g.noise()...)

	sortEntries(entries)
	for i := range entries {
		entries[i].ID = fmt.Sprintf("gen-%05d", i+1)
	}
	return entries
}

func (g *Generator) series(s Series) []models.HistoryEntry {
	direction := s.Direction
	if direction == "" {
		direction = models.DirectionExpense
	}

	// First payment lands somewhere inside the first period
	periodDays := int(recurring.NextDate(g.config.Start, s.Frequency).Sub(g.config.Start).Hours() / 24)
	due := g.config.Start.AddDate(0, 0, g.rng.Intn(periodDays)).
		Add(time.Duration(8+g.rng.Intn(10)) * time.Hour)

	var out []models.HistoryEntry
	for ; !due.After(g.config.End); due = recurring.NextDate(due, s.Frequency) {
		paid := due
		if g.config.DayJitter > 0 {
			paid = due.AddDate(0, 0, g.rng.Intn(2*g.config.DayJitter+1)-g.config.DayJitter)
		}
		if paid.Before(g.config.Start) || paid.After(g.config.End) {
			continue
		}

		amount := s.Amount
		if s.Jitter > 0 {
			factor := 1 + (g.rng.Float64()*2-1)*s.Jitter
			amount = amount.Mul(decimal.NewFromFloat(factor)).Round(2)
		}

		out = append(out, models.HistoryEntry{
			Amount:       amount,
			Counterparty: s.Counterparty,
			Institution:  s.Institution,
			Timestamp:    paid,
			Direction:    direction,
			Confidence:   1,
		})
	}
	return out
}

func (g *Generator) noise() []models.HistoryEntry {
	span := g.config.End.Sub(g.config.Start)
	amountRange := g.config.MaxAmount.Sub(g.config.MinAmount)

	out := make([]models.HistoryEntry, 0, g.config.NoiseCount)
	for i := 0; i < g.config.NoiseCount; i++ {
		counterparty := g.config.NoiseCounterparties[g.rng.Intn(len(g.config.NoiseCounterparties))]
		amount := decimal.NewFromFloat(g.rng.Float64()).Mul(amountRange).Add(g.config.MinAmount).Round(2)

		out = append(out, models.HistoryEntry{
			Amount:       amount,
			Counterparty: counterparty,
			Institution:  models.InstitutionUnknown,
			Timestamp:    g.config.Start.Add(time.Duration(g.rng.Int63n(int64(span)))),
			Direction:    models.DirectionExpense,
			Confidence:   0.5 + g.rng.Float64()/2,
		})
	}
	return out
}

// WriteCSV writes entries with canonical headers that LoadCSV reads back
func WriteCSV(w io.Writer, entries []models.HistoryEntry) error {
	cw := csv.NewWriter(w)
	header := []string{ColumnID, ColumnTimestamp, ColumnAmount, ColumnCounterparty, ColumnInstitution, ColumnDirection, ColumnConfidence}
	if err := cw.Write(header); err != nil {
		return apperrors.InternalError(apperrors.CodeUnexpectedError, "write_history", err)
	}

	for _, e := range entries {
		record := []string{
			e.ID,
			e.Timestamp.Format(time.RFC3339),
			e.Amount.StringFixed(2),
			e.Counterparty,
			string(e.Institution),
			string(e.Direction),
			fmt.Sprintf("%.2f", e.Confidence),
		}
		if err := cw.Write(record); err != nil {
			return apperrors.InternalError(apperrors.CodeUnexpectedError, "write_history", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return apperrors.InternalError(apperrors.CodeUnexpectedError, "write_history", err)
	}
	return nil
}
