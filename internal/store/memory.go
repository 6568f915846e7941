package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"transaction-automation-service/internal/models"
)

// MemoryTransactions is an in-memory TransactionRepository.
// Records are copied on the way in and on the way out.
type MemoryTransactions struct {
	mu           sync.RWMutex
	transactions map[string]*models.Transaction
}

// NewMemoryTransactions creates an empty transaction repository
func NewMemoryTransactions() *MemoryTransactions {
	return &MemoryTransactions{
		transactions: make(map[string]*models.Transaction),
	}
}

// Get returns a copy of the transaction with the given id
func (m *MemoryTransactions) Get(ctx context.Context, id string) (*models.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tx, ok := m.transactions[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "transaction %s", id)
	}
	return tx.Clone(), nil
}

// Put saves or replaces a transaction
func (m *MemoryTransactions) Put(ctx context.Context, tx *models.Transaction) error {
	if tx == nil || tx.ID == "" {
		return errors.New("transaction ID is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions[tx.ID] = tx.Clone()
	return nil
}

// ListBySubject returns the transactions whose counterparty matches,
// case-insensitively, ordered by timestamp then id
func (m *MemoryTransactions) ListBySubject(ctx context.Context, counterparty string) ([]*models.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*models.Transaction
	for _, tx := range m.transactions {
		if strings.EqualFold(tx.Counterparty(), counterparty) {
			result = append(result, tx.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].Timestamp.Before(result[j].Timestamp)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// Len returns the number of stored transactions
func (m *MemoryTransactions) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.transactions)
}

// MemorySessions is an in-memory SessionRepository
type MemorySessions struct {
	mu       sync.RWMutex
	sessions map[string]*models.EditSession
}

// NewMemorySessions creates an empty session repository
func NewMemorySessions() *MemorySessions {
	return &MemorySessions{
		sessions: make(map[string]*models.EditSession),
	}
}

// Get returns a copy of the session with the given id
func (m *MemorySessions) Get(ctx context.Context, id string) (*models.EditSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "session %s", id)
	}
	return s.Clone(), nil
}

// Put saves or replaces a session
func (m *MemorySessions) Put(ctx context.Context, session *models.EditSession) error {
	if session == nil || session.ID == "" {
		return errors.New("session ID is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session.Clone()
	return nil
}

// ListBySubject returns a user's sessions ordered by start time then id
func (m *MemorySessions) ListBySubject(ctx context.Context, userID string) ([]*models.EditSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*models.EditSession
	for _, s := range m.sessions {
		if s.UserID == userID {
			result = append(result, s.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].StartedAt.Equal(result[j].StartedAt) {
			return result[i].StartedAt.Before(result[j].StartedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

var (
	_ TransactionRepository = (*MemoryTransactions)(nil)
	_ SessionRepository     = (*MemorySessions)(nil)
)
