package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionPattern is a recurring payment group found in history.
// Patterns are derived on every analysis run and never edited.
type TransactionPattern struct {
	Counterparty        string          `json:"counterparty"`
	AverageAmount       decimal.Decimal `json:"average_amount"`
	Frequency           Frequency       `json:"frequency"`
	Confidence          float64         `json:"confidence"`
	Occurrences         int             `json:"occurrences"`
	FirstSeen           time.Time       `json:"first_seen"`
	LastSeen            time.Time       `json:"last_seen"`
	NextExpected        time.Time       `json:"next_expected"`
	AverageIntervalDays float64         `json:"average_interval_days"`
	// IntervalVariance is the coefficient of variation of the day gaps
	IntervalVariance float64 `json:"interval_variance"`
	// AmountVariation is the coefficient of variation of the amounts
	AmountVariation float64  `json:"amount_variation"`
	TransactionIDs  []string `json:"transaction_ids"`
}

// String returns a string representation of the pattern
func (p *TransactionPattern) String() string {
	return fmt.Sprintf("Pattern{Counterparty: %s, Amount: %s, Frequency: %s, Occurrences: %d, Confidence: %.2f}",
		p.Counterparty, p.AverageAmount.StringFixed(2), p.Frequency, p.Occurrences, p.Confidence)
}

// Subscription is a tracked recurring payment promoted from a pattern
type Subscription struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Counterparty    string          `json:"counterparty"`
	Amount          decimal.Decimal `json:"amount"`
	Frequency       Frequency       `json:"frequency"`
	NextBillingDate time.Time       `json:"next_billing_date"`
	Category        string          `json:"category"`
	Active          bool            `json:"active"`
	Confidence      float64         `json:"confidence"`
	TransactionIDs  []string        `json:"transaction_ids"`
	CreatedAt       time.Time       `json:"created_at"`
	AutoRenew       bool            `json:"auto_renew"`
	Notes           string          `json:"notes,omitempty"`
}

// String returns a string representation of the subscription
func (s *Subscription) String() string {
	return fmt.Sprintf("Subscription{Name: %s, Amount: %s, Frequency: %s, Next: %s}",
		s.Name, s.Amount.StringFixed(2), s.Frequency, s.NextBillingDate.Format("2006-01-02"))
}
