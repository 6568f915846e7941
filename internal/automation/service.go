// Package automation coordinates message parsing, normalization and history
// analysis behind a single service.
//
// Example usage:
//
//	svc, err := automation.NewService(p)
//	result, err := svc.Process(ctx, automation.Input{Text: sms, Source: models.SourceMessage})
//	analysis := svc.AnalyzePatterns(recurring.DetectionOptions{})
package automation

import (
	"context"
	"time"

	"github.com/sourcegraph/conc/iter"

	"transaction-automation-service/internal/models"
	"transaction-automation-service/internal/normalizer"
	"transaction-automation-service/internal/parser"
	"transaction-automation-service/internal/recurring"
	"transaction-automation-service/internal/session"
	"transaction-automation-service/internal/store"
	apperrors "transaction-automation-service/pkg/errors"
	"transaction-automation-service/pkg/logger"
)

// Input is one piece of raw text to process
type Input struct {
	Text   string        `json:"text"`
	Source models.Source `json:"source"`
	// Hint overrides language detection when valid
	Hint       models.Language `json:"hint,omitempty"`
	ReceivedAt time.Time       `json:"received_at,omitempty"`
}

// ProcessResult is the outcome of processing one Input. Matched is false when
// no template or fallback recognised the text; that is not an error.
type ProcessResult struct {
	Input       Input                 `json:"input"`
	Parsed      *models.ParsedMessage `json:"parsed,omitempty"`
	Transaction *models.Transaction   `json:"transaction,omitempty"`
	Matched     bool                  `json:"matched"`
	Duration    time.Duration         `json:"duration"`
	Err         error                 `json:"-"`
}

// Analysis is the result of one pattern analysis run
type Analysis struct {
	Entries       int                          `json:"entries"`
	Patterns      []*models.TransactionPattern `json:"patterns"`
	Subscriptions []*models.Subscription       `json:"subscriptions"`
	Threshold     float64                      `json:"threshold"`
	AnalyzedAt    time.Time                    `json:"analyzed_at"`
}

// processingRecord is what statistics are computed from
type processingRecord struct {
	source       models.Source
	matched      bool
	confidence   float64
	counterparty string
	duration     time.Duration
}

// Service is the outward-facing orchestrator
type Service struct {
	config       *Config
	parser       *parser.Parser
	normalizer   *normalizer.Normalizer
	detector     *recurring.Detector
	promoter     *recurring.Promoter
	transactions store.TransactionRepository
	history      *store.HistoryBuffer[models.HistoryEntry]
	records      *store.HistoryBuffer[processingRecord]
	now          func() time.Time
	logger       logger.Logger
}

// Option customises a Service
type Option func(*Service)

// WithConfig replaces the default configuration
func WithConfig(cfg *Config) Option {
	return func(s *Service) { s.config = cfg }
}

// WithNormalizer sets the transaction normalizer
func WithNormalizer(n *normalizer.Normalizer) Option {
	return func(s *Service) { s.normalizer = n }
}

// WithDetector sets the pattern detector
func WithDetector(d *recurring.Detector) Option {
	return func(s *Service) { s.detector = d }
}

// WithPromoter sets the subscription promoter
func WithPromoter(p *recurring.Promoter) Option {
	return func(s *Service) { s.promoter = p }
}

// WithTransactionRepository sets where processed transactions are stored
func WithTransactionRepository(repo store.TransactionRepository) Option {
	return func(s *Service) { s.transactions = repo }
}

// WithClock sets the clock used for timestamps and latency
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the service logger
func WithLogger(l logger.Logger) Option {
	return func(s *Service) { s.logger = l.WithComponent("automation") }
}

// NewService creates the orchestrator. Collaborators not supplied through
// options are built with their defaults, sharing the service clock.
func NewService(p *parser.Parser, opts ...Option) (*Service, error) {
	if p == nil {
		return nil, apperrors.InternalError(apperrors.CodeNilInput, "new_service", nil).
			WithSuggestion("provide a parser built with parser.NewParser")
	}

	s := &Service{
		parser: p,
		now:    time.Now,
		logger: logger.WithComponent("automation"),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.config == nil {
		s.config = DefaultConfig()
	}
	if err := s.config.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryConfiguration, apperrors.CodeInvalidConfig,
			"invalid automation configuration")
	}
	s.config = s.config.Clone()

	if s.normalizer == nil {
		s.normalizer = normalizer.NewNormalizer(normalizer.WithClock(s.now), normalizer.WithLogger(s.logger))
	}
	if s.detector == nil {
		d, err := recurring.NewDetector(nil, recurring.WithDetectorClock(s.now), recurring.WithDetectorLogger(s.logger))
		if err != nil {
			return nil, err
		}
		s.detector = d
	}
	if s.promoter == nil {
		s.promoter = recurring.NewPromoter(recurring.WithPromoterClock(s.now), recurring.WithPromoterLogger(s.logger))
	}
	if s.transactions == nil {
		s.transactions = store.NewMemoryTransactions()
	}
	s.history = store.NewHistoryBuffer[models.HistoryEntry](s.config.HistoryCapacity)
	s.records = store.NewHistoryBuffer[processingRecord](s.config.HistoryCapacity)

	return s, nil
}

// Config returns a copy of the service configuration
func (s *Service) Config() *Config {
	return s.config.Clone()
}

// Transactions returns the repository holding processed transactions
func (s *Service) Transactions() store.TransactionRepository {
	return s.transactions
}

// Process parses and normalizes one input. A recognised transaction is
// stored and appended to history.
func (s *Service) Process(ctx context.Context, in Input) (*ProcessResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.InternalError(apperrors.CodeUnexpectedError, "process", err)
	}
	if in.Source == "" {
		in.Source = models.SourceMessage
	}
	if !in.Source.IsValid() {
		return nil, apperrors.ValidationError(apperrors.CodeOutOfRange, "source", in.Source, nil).
			WithSuggestion("source must be message, clipboard or manual")
	}

	start := s.now()
	result := &ProcessResult{Input: in}

	var (
		msg *models.ParsedMessage
		ok  bool
	)
	if s.config.AllowsFallback(in.Source) {
		msg, ok = s.parser.ParseWithFallback(in.Text, in.Hint)
	} else {
		msg, ok = s.parser.Parse(in.Text, in.Hint)
	}

	if !ok {
		result.Duration = s.now().Sub(start)
		s.records.Append(processingRecord{source: in.Source, duration: result.Duration})
		s.logger.WithField("source", in.Source).Debug("Input not recognised as a transaction")
		return result, nil
	}

	tx := s.normalizer.Normalize(msg, normalizer.NormalizeOptions{
		Source:     in.Source,
		ReceivedAt: in.ReceivedAt,
	})
	if err := s.transactions.Put(ctx, tx); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryInternal, apperrors.CodeUnexpectedError,
			"failed to store processed transaction")
	}
	s.history.Append(models.NewHistoryEntry(tx))

	result.Parsed = msg
	result.Transaction = tx
	result.Matched = true
	result.Duration = s.now().Sub(start)

	s.records.Append(processingRecord{
		source:       in.Source,
		matched:      true,
		confidence:   tx.Confidence,
		counterparty: tx.Counterparty(),
		duration:     result.Duration,
	})

	s.logger.WithFields(logger.Fields{
		"transaction_id": tx.ID,
		"institution":    tx.Institution,
		"category":       tx.Category,
		"confidence":     tx.Confidence,
		"source":         in.Source,
	}).Debug("Processed transaction")

	return result, nil
}

// ProcessBatch processes inputs concurrently, bounded by BatchConcurrency.
// Results are in input order; a failed input carries its error in Err.
func (s *Service) ProcessBatch(ctx context.Context, inputs []Input) []*ProcessResult {
	tracker := logger.NewProgressTracker(logger.ProgressConfig{
		Operation: "process_batch",
		Total:     int64(len(inputs)),
		Logger:    s.logger,
		Clock:     s.now,
	})

	mapper := iter.Mapper[Input, *ProcessResult]{MaxGoroutines: s.config.BatchConcurrency}
	results := mapper.Map(inputs, func(in *Input) *ProcessResult {
		res, err := s.Process(ctx, *in)
		if err != nil {
			res = &ProcessResult{Input: *in, Err: err}
		}
		tracker.Record(res.Matched)
		return res
	})

	tracker.Complete()
	return results
}

// RecordEdit stores a corrected transaction and refreshes its history entry
// so that later analyses see the correction. Entries already evicted from
// the history are not re-added.
func (s *Service) RecordEdit(ctx context.Context, tx *models.Transaction) error {
	if tx == nil {
		return apperrors.InternalError(apperrors.CodeNilInput, "record_edit", nil)
	}
	if err := s.transactions.Put(ctx, tx); err != nil {
		return apperrors.Wrap(err, apperrors.CategoryInternal, apperrors.CodeUnexpectedError,
			"failed to store edited transaction")
	}

	entry := models.NewHistoryEntry(tx)
	replaced := s.history.Replace(func(e models.HistoryEntry) bool { return e.ID == tx.ID }, entry)

	s.logger.WithFields(logger.Fields{
		"transaction_id": tx.ID,
		"history_hits":   replaced,
	}).Debug("Recorded edited transaction")
	return nil
}

// NewSessionManager returns an edit session manager over the service's
// transactions. Finalized edits flow back into the history through RecordEdit.
func (s *Service) NewSessionManager(sessions store.SessionRepository, opts ...session.Option) *session.Manager {
	base := []session.Option{
		session.WithClock(s.now),
		session.WithLogger(s.logger),
		session.OnFinalize(s.RecordEdit),
	}
	return session.NewManager(s.transactions, sessions, append(base, opts...)...)
}

// History returns a snapshot of the accumulated history
func (s *Service) History() []models.HistoryEntry {
	return s.history.Snapshot()
}

// AnalyzePatterns analyses a snapshot of the accumulated history. Appends
// made while the analysis runs are not seen by it.
func (s *Service) AnalyzePatterns(opts recurring.DetectionOptions) *Analysis {
	return s.AnalyzeHistory(s.history.Snapshot(), opts)
}

// AnalyzeHistory detects patterns in an externally supplied history and
// promotes those at or above the confidence threshold
func (s *Service) AnalyzeHistory(entries []models.HistoryEntry, opts recurring.DetectionOptions) *Analysis {
	threshold := opts.ConfidenceThreshold
	if threshold <= 0 {
		threshold = s.detector.Config().ConfidenceThreshold
	}

	patterns := s.detector.Detect(entries, opts)
	subs := s.promoter.Promote(patterns, threshold)

	return &Analysis{
		Entries:       len(entries),
		Patterns:      patterns,
		Subscriptions: subs,
		Threshold:     threshold,
		AnalyzedAt:    s.now(),
	}
}
