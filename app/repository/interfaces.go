package repository

import (
	"errors"
	"time"

	"github.com/rkoehler/txnflow/app/models"
	"gorm.io/gorm"
)

var (
	// ErrTransactionNotFound is returned when a transaction id has no stored record.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrInvalidTransition is returned when a terminal transition is attempted
	// on a transaction that is no longer PROCESSING. Callers racing on duplicate
	// task delivery are expected to absorb this as a no-op.
	ErrInvalidTransition = errors.New("transaction is already in a terminal state")
)

// TransactionRepository defines the interface for transaction-related database operations
type TransactionRepository interface {
	CreateIfAbsent(txn *models.Transaction) (bool, *models.Transaction, error)
	GetByTransactionID(id string) (*models.Transaction, error)
	MarkTerminal(id string, status string, processedAt time.Time) (*models.Transaction, error)
	FindStaleProcessing(olderThan time.Time, limit int) ([]models.Transaction, error)
	CountByStatus(status string) (int64, error)
}

// QueueRepository defines the interface for inspecting the Redis-backed job
// queue. It is read-mostly and used by the ops endpoints.
type QueueRepository interface {
	FindKeysByPatterns(patterns []string) ([]string, error)
	GetValue(key string) (string, error)
	GetTTL(key string) (time.Duration, error)
	GetListLength(key string) (int64, error)
	DeleteKey(key string) (int64, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	Transaction TransactionRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Transaction: NewTransactionRepository(db),
	}
}
