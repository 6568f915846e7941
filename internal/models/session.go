package models

import "time"

// Change is one append-only entry in an edit session's change log
type Change struct {
	Field     Field       `json:"field"`
	Previous  interface{} `json:"previous"`
	Value     interface{} `json:"value"`
	Reason    string      `json:"reason,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Suggestion is a proposed correction or completion for one field
type Suggestion struct {
	Kind       SuggestionKind `json:"kind"`
	Field      Field          `json:"field"`
	Value      string         `json:"value"`
	Confidence float64        `json:"confidence"`
	Provenance Provenance     `json:"provenance"`
	Rationale  string         `json:"rationale"`
}

// ValidationFinding is one rule violation reported by the validator
type ValidationFinding struct {
	Field    Field    `json:"field"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
}

// EditSession tracks one user's edits to one transaction
type EditSession struct {
	ID            string     `json:"id"`
	TransactionID string     `json:"transaction_id"`
	UserID        string     `json:"user_id"`
	StartedAt     time.Time  `json:"started_at"`
	ClosedAt      *time.Time `json:"closed_at,omitempty"`
	Active        bool       `json:"active"`
	// Completed is set by an explicit completion and cleared by later edits
	Completed bool     `json:"completed"`
	Changes   []Change `json:"changes"`
}

// Clone returns a copy of the session with its own change slice
func (s *EditSession) Clone() *EditSession {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Changes = append([]Change(nil), s.Changes...)
	if s.ClosedAt != nil {
		closed := *s.ClosedAt
		clone.ClosedAt = &closed
	}
	return &clone
}

// PendingEdit is the result of applying changes to a transaction in a session
type PendingEdit struct {
	SessionID   string              `json:"session_id"`
	Original    *Transaction        `json:"original"`
	Updated     *Transaction        `json:"updated"`
	Changes     []Change            `json:"changes"`
	Suggestions []Suggestion        `json:"suggestions"`
	Findings    []ValidationFinding `json:"findings"`
	Completed   bool                `json:"completed"`
}

// HasErrors reports whether any finding has error severity
func (p *PendingEdit) HasErrors() bool {
	for _, f := range p.Findings {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}

// SaveReady reports whether the updated transaction may be persisted
func (p *PendingEdit) SaveReady() bool {
	return p.Updated != nil && !p.HasErrors()
}

// SuggestionsFor returns the suggestions targeting a field
func (p *PendingEdit) SuggestionsFor(field Field) []Suggestion {
	var out []Suggestion
	for _, s := range p.Suggestions {
		if s.Field == field {
			out = append(out, s)
		}
	}
	return out
}
