package recurring

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"transaction-automation-service/internal/extract"
	"transaction-automation-service/internal/models"
	"transaction-automation-service/internal/normalizer"
	"transaction-automation-service/pkg/logger"
)

// KnownSubscription describes a well-known subscription service
type KnownSubscription struct {
	Name      string           `yaml:"name" json:"name"`
	Keywords  []string         `yaml:"keywords" json:"keywords"`
	Category  string           `yaml:"category" json:"category"`
	Frequency models.Frequency `yaml:"frequency" json:"frequency"`
}

// DefaultKnownSubscriptions returns the built-in subscription lookup table
func DefaultKnownSubscriptions() []KnownSubscription {
	return []KnownSubscription{
		{Name: "Netflix", Keywords: []string{"netflix"}, Category: normalizer.CategoryEntertainment, Frequency: models.FrequencyMonthly},
		{Name: "Spotify", Keywords: []string{"spotify"}, Category: normalizer.CategoryEntertainment, Frequency: models.FrequencyMonthly},
		{Name: "DStv", Keywords: []string{"dstv", "multichoice"}, Category: normalizer.CategoryEntertainment, Frequency: models.FrequencyMonthly},
		{Name: "Showmax", Keywords: []string{"showmax"}, Category: normalizer.CategoryEntertainment, Frequency: models.FrequencyMonthly},
		{Name: "YouTube Premium", Keywords: []string{"youtube"}, Category: normalizer.CategoryEntertainment, Frequency: models.FrequencyMonthly},
		{Name: "Canal+", Keywords: []string{"canal"}, Category: normalizer.CategoryEntertainment, Frequency: models.FrequencyMonthly},
		{Name: "Ethio Telecom", Keywords: []string{"ethio telecom", "ethiotelecom"}, Category: normalizer.CategoryUtilities, Frequency: models.FrequencyUnknown},
		{Name: "Safaricom", Keywords: []string{"safaricom"}, Category: normalizer.CategoryUtilities, Frequency: models.FrequencyUnknown},
		{Name: "Ethiopian Electric Utility", Keywords: []string{"eeu", "electric utility"}, Category: normalizer.CategoryUtilities, Frequency: models.FrequencyMonthly},
		{Name: "Microsoft 365", Keywords: []string{"microsoft", "office 365"}, Category: normalizer.CategoryShopping, Frequency: models.FrequencyUnknown},
		{Name: "Google One", Keywords: []string{"google"}, Category: normalizer.CategoryShopping, Frequency: models.FrequencyMonthly},
	}
}

// genericWords are dropped from counterparty names when building a display name
var genericWords = map[string]bool{
	"bank": true, "plc": true, "sc": true, "s": true, "c": true, "ltd": true,
	"inc": true, "share": true, "company": true, "co": true, "the": true,
	"payment": true, "payments": true, "pay": true, "transfer": true,
	"to": true, "from": true, "for": true, "via": true, "ethiopia": true,
}

// Promoter converts confident patterns into subscriptions
type Promoter struct {
	known       []KnownSubscription
	categorizer *normalizer.Categorizer
	lang        language.Tag
	newID       func() string
	now         func() time.Time
	logger      logger.Logger
}

// PromoterOption customises a Promoter
type PromoterOption func(*Promoter)

// WithKnownSubscriptions replaces the subscription lookup table
func WithKnownSubscriptions(known []KnownSubscription) PromoterOption {
	return func(p *Promoter) { p.known = known }
}

// WithPromoterCategorizer sets the secondary category table
func WithPromoterCategorizer(c *normalizer.Categorizer) PromoterOption {
	return func(p *Promoter) { p.categorizer = c }
}

// WithPromoterIDGenerator replaces the subscription id generator
func WithPromoterIDGenerator(gen func() string) PromoterOption {
	return func(p *Promoter) { p.newID = gen }
}

// WithPromoterClock sets the creation clock
func WithPromoterClock(now func() time.Time) PromoterOption {
	return func(p *Promoter) { p.now = now }
}

// WithPromoterLogger sets the promoter's logger
func WithPromoterLogger(l logger.Logger) PromoterOption {
	return func(p *Promoter) { p.logger = l.WithComponent("promoter") }
}

// NewPromoter creates a promoter with the built-in tables
func NewPromoter(opts ...PromoterOption) *Promoter {
	p := &Promoter{
		known:       DefaultKnownSubscriptions(),
		categorizer: normalizer.NewCategorizer(nil),
		lang:        language.English,
		newID:       uuid.NewString,
		now:         time.Now,
		logger:      logger.WithComponent("promoter"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Promote returns a subscription for every pattern whose confidence is at
// least threshold, preserving pattern order
func (p *Promoter) Promote(patterns []*models.TransactionPattern, threshold float64) []*models.Subscription {
	var subs []*models.Subscription
	for _, pattern := range patterns {
		if pattern == nil || pattern.Confidence < threshold {
			continue
		}
		subs = append(subs, p.promote(pattern))
	}

	p.logger.WithFields(logger.Fields{
		"patterns":      len(patterns),
		"subscriptions": len(subs),
		"threshold":     threshold,
	}).Info("Promoted patterns to subscriptions")

	return subs
}

func (p *Promoter) promote(pattern *models.TransactionPattern) *models.Subscription {
	name := p.DisplayName(pattern.Counterparty)
	category := ""
	frequency := pattern.Frequency

	if known, ok := p.lookup(pattern.Counterparty); ok {
		name = known.Name
		category = known.Category
		if known.Frequency != models.FrequencyUnknown && known.Frequency != "" {
			frequency = known.Frequency
		}
	}
	if category == "" {
		category = p.categorizer.Categorize(pattern.Counterparty)
	}

	next := pattern.NextExpected
	if frequency != pattern.Frequency || next.IsZero() {
		next = NextDate(pattern.LastSeen, frequency)
	}

	return &models.Subscription{
		ID:              p.newID(),
		Name:            name,
		Counterparty:    pattern.Counterparty,
		Amount:          pattern.AverageAmount,
		Frequency:       frequency,
		NextBillingDate: next,
		Category:        category,
		Active:          true,
		Confidence:      pattern.Confidence,
		TransactionIDs:  append([]string(nil), pattern.TransactionIDs...),
		CreatedAt:       p.now(),
		AutoRenew:       true,
		Notes: fmt.Sprintf("Detected from %d occurrences, average interval %.1f days, %.0f%% confidence",
			pattern.Occurrences, pattern.AverageIntervalDays, pattern.Confidence*100),
	}
}

func (p *Promoter) lookup(counterparty string) (KnownSubscription, bool) {
	for _, known := range p.known {
		for _, kw := range known.Keywords {
			if extract.ContainsWord(counterparty, kw) {
				return known, true
			}
		}
	}
	return KnownSubscription{}, false
}

// DisplayName strips generic institution words from a counterparty and
// title-cases what remains
func (p *Promoter) DisplayName(counterparty string) string {
	words := strings.Fields(NormalizeCounterparty(counterparty))
	kept := make([]string, 0, len(words))
	for _, w := range words {
		if genericWords[w] {
			continue
		}
		kept = append(kept, w)
	}
	if len(kept) == 0 {
		kept = words
	}
	// Casers are stateful, so each call gets its own
	return cases.Title(p.lang).String(strings.Join(kept, " "))
}
