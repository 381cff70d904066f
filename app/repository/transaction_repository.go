package repository

import (
	"errors"
	"time"

	"github.com/rkoehler/txnflow/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// transactionRepository implements the TransactionRepository interface
type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a new transaction repository instance
func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

// CreateIfAbsent inserts a new PROCESSING record unless one already exists for
// the same transaction id. The insert rides on the primary key constraint via
// ON CONFLICT DO NOTHING, so concurrent callers with the same id resolve to
// exactly one created=true; everyone else receives the stored record untouched.
func (r *transactionRepository) CreateIfAbsent(txn *models.Transaction) (bool, *models.Transaction, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "transaction_id"}},
		DoNothing: true,
	}).Create(txn)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0

	var stored models.Transaction
	if err := r.db.Where("transaction_id = ?", txn.TransactionID).First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

// GetByTransactionID retrieves a transaction by its external id
func (r *transactionRepository) GetByTransactionID(id string) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.db.Where("transaction_id = ?", id).First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &txn, nil
}

// MarkTerminal moves a PROCESSING transaction into PROCESSED or FAILED and
// stamps processed_at. The update is guarded by the current status so a second
// caller losing the race observes ErrInvalidTransition instead of overwriting
// the terminal state.
func (r *transactionRepository) MarkTerminal(id string, status string, processedAt time.Time) (*models.Transaction, error) {
	tx := r.db.Model(&models.Transaction{}).
		Where("transaction_id = ? AND status = ?", id, models.STATUS_PROCESSING).
		Updates(map[string]interface{}{
			"status":       status,
			"processed_at": &processedAt,
		})
	if tx.Error != nil {
		return nil, tx.Error
	}

	if tx.RowsAffected == 0 {
		stored, err := r.GetByTransactionID(id)
		if err != nil {
			return nil, err
		}
		return stored, ErrInvalidTransition
	}

	return r.GetByTransactionID(id)
}

// FindStaleProcessing returns PROCESSING transactions created before olderThan,
// oldest first. Used by the reconciliation sweep to redispatch completions
// whose original enqueue was lost.
func (r *transactionRepository) FindStaleProcessing(olderThan time.Time, limit int) ([]models.Transaction, error) {
	var txns []models.Transaction
	err := r.db.Where("status = ? AND created_at < ?", models.STATUS_PROCESSING, olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&txns).Error
	return txns, err
}

// CountByStatus returns the number of transactions currently in the given status
func (r *transactionRepository) CountByStatus(status string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Transaction{}).Where("status = ?", status).Count(&count).Error
	return count, err
}
