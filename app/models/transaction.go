package models

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const (
	STATUS_PROCESSING = "PROCESSING"
	STATUS_PROCESSED  = "PROCESSED"
	STATUS_FAILED     = "FAILED"
)

// ErrAmountNotPositive is returned by WebhookRequest.Validate when the amount
// is zero or negative. Decimal amounts are checked explicitly because the
// validator package cannot compare decimal.Decimal values.
var ErrAmountNotPositive = errors.New("amount must be greater than 0")

// Transaction is the durable record of a single webhook-delivered transaction.
// TransactionID is both the business key and the idempotency key; the primary
// key constraint is what makes concurrent first-seen inserts collapse to one row.
type Transaction struct {
	TransactionID      string          `gorm:"primaryKey;type:varchar(191)" json:"transaction_id"`
	SourceAccount      string          `gorm:"type:varchar(191);not null" json:"source_account"`
	DestinationAccount string          `gorm:"type:varchar(191);not null" json:"destination_account"`
	Amount             decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"amount"`
	Currency           string          `gorm:"type:varchar(3);not null" json:"currency"`
	Status             string          `gorm:"type:varchar(20);not null;default:'PROCESSING';index" json:"status"`
	CreatedAt          time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	ProcessedAt        *time.Time      `gorm:"type:timestamp;default:null" json:"processed_at"`
}

// IsTerminal reports whether no further status transition is allowed.
func (t *Transaction) IsTerminal() bool {
	return t.Status == STATUS_PROCESSED || t.Status == STATUS_FAILED
}

// MarshalJSON emits the amount as a plain JSON number. decimal.Decimal quotes
// its value by default, but external clients parse `amount` as a number.
func (t Transaction) MarshalJSON() ([]byte, error) {
	type alias Transaction
	return json.Marshal(struct {
		alias
		Amount json.RawMessage `json:"amount"`
	}{
		alias:  alias(t),
		Amount: json.RawMessage(t.Amount.String()),
	})
}

// WebhookRequest is the inbound payload of POST /v1/webhooks/transactions.
type WebhookRequest struct {
	TransactionID      string          `json:"transaction_id" validate:"required,min=1,max=191"`
	SourceAccount      string          `json:"source_account" validate:"required,min=1,max=191"`
	DestinationAccount string          `json:"destination_account" validate:"required,min=1,max=191"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency" validate:"required,min=3,max=3"`
}

func (r *WebhookRequest) Validate() error {
	v := validator.New()

	if err := v.Struct(r); err != nil {
		return err
	}
	if !r.Amount.IsPositive() {
		return ErrAmountNotPositive
	}
	return nil
}

// ToTransaction builds the initial PROCESSING record from a validated payload.
func (r *WebhookRequest) ToTransaction() *Transaction {
	return &Transaction{
		TransactionID:      r.TransactionID,
		SourceAccount:      r.SourceAccount,
		DestinationAccount: r.DestinationAccount,
		Amount:             r.Amount,
		Currency:           r.Currency,
		Status:             STATUS_PROCESSING,
	}
}
