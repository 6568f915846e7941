// Package session manages edit sessions: a bounded sequence of field edits
// one user applies to one transaction before it is saved.
//
// A session is either active or closed. Active sessions accept changes;
// closed sessions are terminal. The edited view of a transaction is always
// rebuilt by replaying the session's change log over the stored original.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"transaction-automation-service/internal/models"
	"transaction-automation-service/internal/normalizer"
	"transaction-automation-service/internal/store"
	"transaction-automation-service/internal/suggestion"
	"transaction-automation-service/internal/validation"
	apperrors "transaction-automation-service/pkg/errors"
	"transaction-automation-service/pkg/logger"
)

// CompletionReason is recorded on changes made by CompleteTransaction
const CompletionReason = "completion"

// Manager runs edit sessions against the transaction and session repositories
type Manager struct {
	transactions store.TransactionRepository
	sessions     store.SessionRepository
	suggester    *suggestion.Engine
	validator    *validation.Validator
	newID        func() string
	now          func() time.Time
	logger       logger.Logger
	onFinalize   []func(context.Context, *models.Transaction) error

	startMu sync.Mutex
	locks   sync.Map
}

// Option customises a Manager
type Option func(*Manager)

// WithSuggester replaces the suggestion engine
func WithSuggester(e *suggestion.Engine) Option {
	return func(m *Manager) { m.suggester = e }
}

// WithValidator replaces the validator
func WithValidator(v *validation.Validator) Option {
	return func(m *Manager) { m.validator = v }
}

// WithIDGenerator replaces the session id generator
func WithIDGenerator(gen func() string) Option {
	return func(m *Manager) { m.newID = gen }
}

// WithClock sets the clock used for change timestamps
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the manager's logger
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) { m.logger = l.WithComponent("session") }
}

// OnFinalize registers fn to run with every saved transaction after the
// repository write. A failing fn leaves the session active so that
// Finalize can be retried.
func OnFinalize(fn func(context.Context, *models.Transaction) error) Option {
	return func(m *Manager) { m.onFinalize = append(m.onFinalize, fn) }
}

// NewManager creates a session manager
func NewManager(transactions store.TransactionRepository, sessions store.SessionRepository, opts ...Option) *Manager {
	m := &Manager{
		transactions: transactions,
		sessions:     sessions,
		suggester:    suggestion.NewEngine(),
		validator:    validation.NewValidator(nil),
		newID:        uuid.NewString,
		now:          time.Now,
		logger:       logger.WithComponent("session"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) lock(sessionID string) func() {
	mu, _ := m.locks.LoadOrStore(sessionID, &sync.Mutex{})
	mu.(*sync.Mutex).Lock()
	return mu.(*sync.Mutex).Unlock
}

// forget drops the writer lock of a session that is unknown or closed.
// Callers hold that lock.
func (m *Manager) forget(sessionID string, err error) {
	if apperrors.IsCode(err, apperrors.CodeSessionNotFound) || apperrors.IsCode(err, apperrors.CodeSessionInactive) {
		m.locks.Delete(sessionID)
	}
}

// StartSession opens an active session for a user on a transaction. If the
// user already has an active session on that transaction it is returned.
func (m *Manager) StartSession(ctx context.Context, transactionID, userID string) (*models.EditSession, error) {
	if _, err := m.transactions.Get(ctx, transactionID); err != nil {
		if store.IsNotFound(err) {
			return nil, apperrors.Wrap(err, apperrors.CategorySession, apperrors.CodeTransactionMissing,
				fmt.Sprintf("cannot start edit session: transaction %s not found", transactionID)).
				WithContext("transaction_id", transactionID)
		}
		return nil, apperrors.InternalError(apperrors.CodeUnexpectedError, "start session", err)
	}

	m.startMu.Lock()
	defer m.startMu.Unlock()

	existing, err := m.sessions.ListBySubject(ctx, userID)
	if err != nil {
		return nil, apperrors.InternalError(apperrors.CodeUnexpectedError, "list sessions", err)
	}
	for _, s := range existing {
		if s.Active && s.TransactionID == transactionID {
			return s, nil
		}
	}

	session := &models.EditSession{
		ID:            m.newID(),
		TransactionID: transactionID,
		UserID:        userID,
		StartedAt:     m.now(),
		Active:        true,
	}
	if err := m.sessions.Put(ctx, session); err != nil {
		return nil, apperrors.InternalError(apperrors.CodeUnexpectedError, "save session", err)
	}

	m.logger.WithFields(logger.Fields{
		"session_id":     session.ID,
		"transaction_id": transactionID,
		"user_id":        userID,
	}).Info("Started edit session")

	return session.Clone(), nil
}

// ApplyChange records one field edit and returns the re-validated view.
// On error the session is left unchanged.
func (m *Manager) ApplyChange(ctx context.Context, sessionID string, field models.Field, value interface{}, reason string) (*models.PendingEdit, error) {
	unlock := m.lock(sessionID)
	defer unlock()

	session, original, err := m.loadActive(ctx, sessionID)
	if err != nil {
		m.forget(sessionID, err)
		return nil, err
	}
	if !field.IsEditable() {
		return nil, apperrors.SessionError(apperrors.CodeUnknownField, sessionID, nil).
			WithContext("field", string(field))
	}

	view := replay(original, session.Changes)
	change, err := m.change(view, field, value, reason)
	if err != nil {
		return nil, err
	}

	session.Changes = append(session.Changes, change)
	session.Completed = false
	if err := m.sessions.Put(ctx, session); err != nil {
		return nil, apperrors.InternalError(apperrors.CodeUnexpectedError, "save session", err)
	}

	m.logger.WithFields(logger.Fields{
		"session_id": sessionID,
		"field":      field,
		"changes":    len(session.Changes),
	}).Debug("Applied change")

	return m.pending(session, original), nil
}

// CompleteTransaction merges completion fields on top of every prior change,
// clears suggestions and re-validates. Fields are applied in EditableFields
// order and each is logged as a change with CompletionReason.
func (m *Manager) CompleteTransaction(ctx context.Context, pending *models.PendingEdit, fields map[models.Field]interface{}) (*models.PendingEdit, error) {
	if pending == nil {
		return nil, apperrors.InternalError(apperrors.CodeNilInput, "complete transaction", nil)
	}
	sessionID := pending.SessionID

	unlock := m.lock(sessionID)
	defer unlock()

	session, original, err := m.loadActive(ctx, sessionID)
	if err != nil {
		m.forget(sessionID, err)
		return nil, err
	}
	for field := range fields {
		if !field.IsEditable() {
			return nil, apperrors.SessionError(apperrors.CodeUnknownField, sessionID, nil).
				WithContext("field", string(field))
		}
	}

	view := replay(original, session.Changes)
	changes := make([]models.Change, 0, len(fields))
	for _, field := range models.EditableFields() {
		value, ok := fields[field]
		if !ok {
			continue
		}
		change, err := m.change(view, field, value, CompletionReason)
		if err != nil {
			return nil, err
		}
		setField(view, field, change.Value)
		changes = append(changes, change)
	}

	session.Changes = append(session.Changes, changes...)
	session.Completed = true
	if err := m.sessions.Put(ctx, session); err != nil {
		return nil, apperrors.InternalError(apperrors.CodeUnexpectedError, "save session", err)
	}

	m.logger.WithFields(logger.Fields{
		"session_id": sessionID,
		"fields":     len(changes),
	}).Debug("Completed transaction")

	return m.pending(session, original), nil
}

// Current returns the edited view of a session without changing it
func (m *Manager) Current(ctx context.Context, sessionID string) (*models.PendingEdit, error) {
	session, original, err := m.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return m.pending(session, original), nil
}

// Finalize saves the edited transaction and closes the session. It refuses
// while any error-severity finding remains.
func (m *Manager) Finalize(ctx context.Context, sessionID string) (*models.Transaction, error) {
	unlock := m.lock(sessionID)
	defer unlock()

	session, original, err := m.loadActive(ctx, sessionID)
	if err != nil {
		m.forget(sessionID, err)
		return nil, err
	}

	edit := m.pending(session, original)
	if !edit.SaveReady() {
		return nil, apperrors.SessionError(apperrors.CodeNotSaveReady, sessionID, nil).
			WithContext("findings", len(edit.Findings))
	}

	updated := edit.Updated
	if len(session.Changes) > 0 {
		if updated.Provenance == nil {
			updated.Provenance = make(map[string]string)
		}
		updated.Provenance["edit_session"] = session.ID
		updated.Provenance["edited_by"] = session.UserID
	}
	if err := m.transactions.Put(ctx, updated); err != nil {
		return nil, apperrors.InternalError(apperrors.CodeUnexpectedError, "save transaction", err)
	}
	for _, fn := range m.onFinalize {
		if err := fn(ctx, updated.Clone()); err != nil {
			return nil, apperrors.WrapIfNeeded(err, apperrors.CategoryInternal, apperrors.CodeUnexpectedError,
				"finalize listener failed").WithContext("session_id", sessionID)
		}
	}
	if err := m.close(ctx, session); err != nil {
		return nil, err
	}

	m.logger.WithFields(logger.Fields{
		"session_id":     sessionID,
		"transaction_id": updated.ID,
		"changes":        len(session.Changes),
	}).Info("Finalized edit session")

	return updated.Clone(), nil
}

// Abandon closes a session without saving its changes
func (m *Manager) Abandon(ctx context.Context, sessionID string) error {
	unlock := m.lock(sessionID)
	defer unlock()

	session, err := m.getSession(ctx, sessionID)
	if err != nil {
		m.forget(sessionID, err)
		return err
	}
	if !session.Active {
		m.locks.Delete(sessionID)
		return apperrors.SessionError(apperrors.CodeSessionInactive, sessionID, nil)
	}
	if err := m.close(ctx, session); err != nil {
		return err
	}

	m.logger.WithField("session_id", sessionID).Info("Abandoned edit session")
	return nil
}

// ListSessions returns a user's sessions ordered by start time
func (m *Manager) ListSessions(ctx context.Context, userID string) ([]*models.EditSession, error) {
	sessions, err := m.sessions.ListBySubject(ctx, userID)
	if err != nil {
		return nil, apperrors.InternalError(apperrors.CodeUnexpectedError, "list sessions", err)
	}
	return sessions, nil
}

func (m *Manager) close(ctx context.Context, session *models.EditSession) error {
	closed := m.now()
	session.Active = false
	session.ClosedAt = &closed
	if err := m.sessions.Put(ctx, session); err != nil {
		return apperrors.InternalError(apperrors.CodeUnexpectedError, "save session", err)
	}
	// Closed sessions never take the lock again
	m.locks.Delete(session.ID)
	return nil
}

func (m *Manager) getSession(ctx context.Context, sessionID string) (*models.EditSession, error) {
	session, err := m.sessions.Get(ctx, sessionID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, apperrors.SessionError(apperrors.CodeSessionNotFound, sessionID, err)
		}
		return nil, apperrors.InternalError(apperrors.CodeUnexpectedError, "load session", err)
	}
	return session, nil
}

func (m *Manager) load(ctx context.Context, sessionID string) (*models.EditSession, *models.Transaction, error) {
	session, err := m.getSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	original, err := m.transactions.Get(ctx, session.TransactionID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, nil, apperrors.SessionError(apperrors.CodeTransactionMissing, sessionID, err).
				WithContext("transaction_id", session.TransactionID)
		}
		return nil, nil, apperrors.InternalError(apperrors.CodeUnexpectedError, "load transaction", err)
	}
	return session, original, nil
}

func (m *Manager) loadActive(ctx context.Context, sessionID string) (*models.EditSession, *models.Transaction, error) {
	session, err := m.getSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if !session.Active {
		return nil, nil, apperrors.SessionError(apperrors.CodeSessionInactive, sessionID, nil)
	}
	return m.load(ctx, sessionID)
}

func (m *Manager) change(view *models.Transaction, field models.Field, value interface{}, reason string) (models.Change, error) {
	now := m.now()
	coerced, err := coerce(field, value, now)
	if err != nil {
		return models.Change{}, err
	}
	return models.Change{
		Field:     field,
		Previous:  fieldValue(view, field),
		Value:     coerced,
		Reason:    reason,
		Timestamp: now,
	}, nil
}

// pending builds the edit result for the current state of a session
func (m *Manager) pending(session *models.EditSession, original *models.Transaction) *models.PendingEdit {
	updated := replay(original, session.Changes)

	edit := &models.PendingEdit{
		SessionID: session.ID,
		Original:  original,
		Updated:   updated,
		Changes:   append([]models.Change(nil), session.Changes...),
		Findings:  m.validator.Validate(updated),
		Completed: session.Completed,
	}
	if !session.Completed {
		edit.Suggestions = m.suggester.Suggest(updated)
	}
	return edit
}

// replay layers changes over a copy of the original in log order
func replay(original *models.Transaction, changes []models.Change) *models.Transaction {
	view := original.Clone()
	for _, c := range changes {
		setField(view, c.Field, c.Value)
	}
	if len(changes) > 0 {
		view.Tags = normalizer.Tags(view)
	}
	return view
}
