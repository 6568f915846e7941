// Package normalizer converts parsed messages into canonical transactions.
package normalizer

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"transaction-automation-service/internal/models"
	"transaction-automation-service/pkg/logger"
)

// Confidence bucket bounds used for tagging
const (
	HighConfidenceThreshold = 0.8
	LowConfidenceThreshold  = 0.5
)

// NormalizeOptions carries per-message context that is not part of the text
type NormalizeOptions struct {
	Source     models.Source
	ReceivedAt time.Time
	Provenance map[string]string
}

// Normalizer builds Transactions from ParsedMessages
type Normalizer struct {
	categorizer *Categorizer
	newID       func() string
	now         func() time.Time
	logger      logger.Logger
}

// Option customises a Normalizer
type Option func(*Normalizer)

// WithCategorizer replaces the default keyword table
func WithCategorizer(c *Categorizer) Option {
	return func(n *Normalizer) { n.categorizer = c }
}

// WithIDGenerator replaces the uuid generator
func WithIDGenerator(gen func() string) Option {
	return func(n *Normalizer) { n.newID = gen }
}

// WithClock sets the processing-time clock
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) { n.now = now }
}

// WithLogger sets the normalizer's logger
func WithLogger(l logger.Logger) Option {
	return func(n *Normalizer) { n.logger = l.WithComponent("normalizer") }
}

// NewNormalizer creates a normalizer
func NewNormalizer(opts ...Option) *Normalizer {
	n := &Normalizer{
		categorizer: NewCategorizer(nil),
		newID:       uuid.NewString,
		now:         time.Now,
		logger:      logger.WithComponent("normalizer"),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Categorizer returns the normalizer's categorizer
func (n *Normalizer) Categorizer() *Categorizer {
	return n.categorizer
}

// Normalize converts a parsed message into a new Transaction. The timestamp
// is the message date when present, then opts.ReceivedAt, then now.
func (n *Normalizer) Normalize(msg *models.ParsedMessage, opts NormalizeOptions) *models.Transaction {
	if msg == nil {
		return nil
	}

	tx := &models.Transaction{
		ID:          n.newID(),
		Amount:      msg.Amount,
		Institution: msg.Institution,
		Merchant:    msg.Merchant,
		Direction:   msg.Direction,
		Timestamp:   n.timestamp(msg, opts),
		Reference:   msg.Reference,
		Reason:      msg.Reason,
		Confidence:  msg.Confidence,
		Language:    msg.Language,
		Source:      opts.Source,
		RawText:     msg.RawText,
	}
	if msg.Balance != nil {
		balance := *msg.Balance
		tx.Balance = &balance
	}

	tx.Category = n.CategoryFor(tx)
	tx.Tags = Tags(tx)
	tx.Provenance = provenance(msg, opts)

	n.logger.WithFields(logger.Fields{
		"transaction_id": tx.ID,
		"category":       tx.Category,
		"institution":    tx.Institution,
	}).Debug("Normalized transaction")

	return tx
}

// CategoryFor categorises by merchant, or by institution when no merchant is set
func (n *Normalizer) CategoryFor(tx *models.Transaction) string {
	subject := strings.TrimSpace(tx.Merchant)
	if subject == "" {
		subject = string(tx.Institution)
	}
	return n.categorizer.Categorize(subject)
}

func (n *Normalizer) timestamp(msg *models.ParsedMessage, opts NormalizeOptions) time.Time {
	switch {
	case msg.Date != nil && !msg.Date.IsZero():
		return *msg.Date
	case !opts.ReceivedAt.IsZero():
		return opts.ReceivedAt
	default:
		return n.now()
	}
}

// Tags derives the descriptive tags of a transaction: language, confidence
// bucket, category and institution, in that order.
func Tags(tx *models.Transaction) []string {
	tags := make([]string, 0, 4)
	if tx.Language != "" {
		tags = append(tags, string(tx.Language))
	}
	switch {
	case tx.Confidence > HighConfidenceThreshold:
		tags = append(tags, "high-confidence")
	case tx.Confidence < LowConfidenceThreshold:
		tags = append(tags, "low-confidence")
	}
	if tx.Category != "" {
		tags = append(tags, "category:"+tx.Category)
	}
	tags = append(tags, "institution:"+string(tx.Institution))
	return tags
}

func provenance(msg *models.ParsedMessage, opts NormalizeOptions) map[string]string {
	out := map[string]string{
		"parser":            "template",
		"template_language": string(msg.TemplateLanguage),
		"parse_confidence":  strconv.FormatFloat(msg.Confidence, 'f', 2, 64),
	}
	if msg.Fallback {
		out["parser"] = "keyword-fallback"
	}
	if opts.Source != "" {
		out["source"] = string(opts.Source)
	}
	for k, v := range opts.Provenance {
		out[k] = v
	}
	return out
}
