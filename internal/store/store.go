// Package store defines the repositories the core depends on and provides
// in-memory implementations of them.
package store

import (
	"context"

	"github.com/pkg/errors"

	"transaction-automation-service/internal/models"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("record not found")

// TransactionRepository stores transactions by id. Subjects are counterparties.
type TransactionRepository interface {
	Get(ctx context.Context, id string) (*models.Transaction, error)
	Put(ctx context.Context, tx *models.Transaction) error
	ListBySubject(ctx context.Context, counterparty string) ([]*models.Transaction, error)
}

// SessionRepository stores edit sessions by id. Subjects are user ids.
type SessionRepository interface {
	Get(ctx context.Context, id string) (*models.EditSession, error)
	Put(ctx context.Context, session *models.EditSession) error
	ListBySubject(ctx context.Context, userID string) ([]*models.EditSession, error)
}

// IsNotFound reports whether err wraps ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
