package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ParsedMessage is the raw extraction result for a single message.
// It is treated as immutable once returned by the parser.
type ParsedMessage struct {
	Institution Institution      `json:"institution"`
	Direction   Direction        `json:"direction"`
	Amount      decimal.Decimal  `json:"amount"`
	Balance     *decimal.Decimal `json:"balance,omitempty"`
	Merchant    string           `json:"merchant,omitempty"`
	Reference   string           `json:"reference,omitempty"`
	Reason      string           `json:"reason,omitempty"`
	Date        *time.Time       `json:"date,omitempty"`
	// Language is the detected language of the text
	Language Language `json:"language"`
	// TemplateLanguage is the language whose templates produced the match
	TemplateLanguage Language `json:"template_language"`
	Confidence       float64  `json:"confidence"`
	RawText          string   `json:"raw_text"`
	Fallback         bool     `json:"fallback,omitempty"`
}

// HasBalance reports whether a balance was extracted
func (p *ParsedMessage) HasBalance() bool {
	return p.Balance != nil
}

// String returns a string representation of the ParsedMessage
func (p *ParsedMessage) String() string {
	return fmt.Sprintf("ParsedMessage{Institution: %s, Direction: %s, Amount: %s, Confidence: %.2f}",
		p.Institution, p.Direction, p.Amount.StringFixed(2), p.Confidence)
}

// Transaction is the canonical, user-correctable transaction record
type Transaction struct {
	ID          string           `json:"id"`
	Amount      decimal.Decimal  `json:"amount"`
	Institution Institution      `json:"institution"`
	Merchant    string           `json:"merchant,omitempty"`
	Direction   Direction        `json:"direction"`
	Timestamp   time.Time        `json:"timestamp"`
	Reference   string           `json:"reference,omitempty"`
	Balance     *decimal.Decimal `json:"balance,omitempty"`
	Category    string           `json:"category"`
	Reason      string           `json:"reason,omitempty"`
	Location    string           `json:"location,omitempty"`
	Tags        []string         `json:"tags"`
	Confidence  float64          `json:"confidence"`
	Language    Language         `json:"language"`
	Source      Source           `json:"source,omitempty"`
	RawText     string           `json:"raw_text"`
	// Provenance is an opaque payload describing how the record was produced
	Provenance map[string]string `json:"provenance,omitempty"`
}

// Counterparty returns the grouping key source: merchant if present, else institution
func (t *Transaction) Counterparty() string {
	if strings.TrimSpace(t.Merchant) != "" {
		return t.Merchant
	}
	return string(t.Institution)
}

// HasTag reports whether the transaction carries the given tag
func (t *Transaction) HasTag(tag string) bool {
	for _, existing := range t.Tags {
		if existing == tag {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the transaction
func (t *Transaction) Clone() *Transaction {
	if t == nil {
		return nil
	}

	clone := *t
	if t.Balance != nil {
		balance := *t.Balance
		clone.Balance = &balance
	}
	if t.Tags != nil {
		clone.Tags = append([]string(nil), t.Tags...)
	}
	if t.Provenance != nil {
		clone.Provenance = make(map[string]string, len(t.Provenance))
		for k, v := range t.Provenance {
			clone.Provenance[k] = v
		}
	}
	return &clone
}

// String returns a string representation of the Transaction
func (t *Transaction) String() string {
	return fmt.Sprintf("Transaction{ID: %s, Institution: %s, Amount: %s, Direction: %s, Category: %s, Time: %s}",
		t.ID, t.Institution, t.Amount.StringFixed(2), t.Direction, t.Category, t.Timestamp.Format(time.RFC3339))
}

// MarshalJSON renders amounts with two decimals and timestamps as RFC3339
func (t *Transaction) MarshalJSON() ([]byte, error) {
	type Alias Transaction
	aux := &struct {
		Amount    string  `json:"amount"`
		Balance   *string `json:"balance,omitempty"`
		Timestamp string  `json:"timestamp"`
		*Alias
	}{
		Amount:    t.Amount.StringFixed(2),
		Timestamp: t.Timestamp.Format(time.RFC3339),
		Alias:     (*Alias)(t),
	}
	if t.Balance != nil {
		balance := t.Balance.StringFixed(2)
		aux.Balance = &balance
	}
	return json.Marshal(aux)
}

// UnmarshalJSON implements custom JSON unmarshaling for Transaction
func (t *Transaction) UnmarshalJSON(data []byte) error {
	type Alias Transaction
	aux := &struct {
		Amount    string  `json:"amount"`
		Balance   *string `json:"balance,omitempty"`
		Timestamp string  `json:"timestamp"`
		*Alias
	}{
		Alias: (*Alias)(t),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	t.Amount, err = decimal.NewFromString(aux.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount format: %w", err)
	}

	t.Balance = nil
	if aux.Balance != nil {
		balance, err := decimal.NewFromString(*aux.Balance)
		if err != nil {
			return fmt.Errorf("invalid balance format: %w", err)
		}
		t.Balance = &balance
	}

	t.Timestamp = time.Time{}
	if aux.Timestamp != "" {
		t.Timestamp, err = time.Parse(time.RFC3339, aux.Timestamp)
		if err != nil {
			return fmt.Errorf("invalid timestamp format: %w", err)
		}
	}

	return nil
}

// HistoryEntry is the minimal tuple consumed by pattern analysis
type HistoryEntry struct {
	ID           string          `json:"id"`
	Amount       decimal.Decimal `json:"amount"`
	Counterparty string          `json:"counterparty"`
	Institution  Institution     `json:"institution"`
	Timestamp    time.Time       `json:"timestamp"`
	Direction    Direction       `json:"direction"`
	Confidence   float64         `json:"confidence"`
}

// GroupingKey returns the counterparty if set, else the institution
func (h HistoryEntry) GroupingKey() string {
	if strings.TrimSpace(h.Counterparty) != "" {
		return h.Counterparty
	}
	return string(h.Institution)
}

// NewHistoryEntry projects a transaction onto a history entry
func NewHistoryEntry(t *Transaction) HistoryEntry {
	return HistoryEntry{
		ID:           t.ID,
		Amount:       t.Amount,
		Counterparty: t.Merchant,
		Institution:  t.Institution,
		Timestamp:    t.Timestamp,
		Direction:    t.Direction,
		Confidence:   t.Confidence,
	}
}
