package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/rkoehler/txnflow/app/models"
)

// Completer performs the downstream completion effect for a transaction.
// Implementations report failures through the transient/permanent error types
// below; anything else is treated as transient.
type Completer interface {
	Complete(ctx context.Context, txn *models.Transaction) error
}

// TransientError marks a completion failure worth retrying (timeout, temporary
// unavailability of the downstream system).
type TransientError struct {
	Reason string
	Err    error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transient settlement failure: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("transient settlement failure: %s", e.Reason)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a completion failure that will never succeed on retry.
// The worker short-circuits these straight to FAILED.
type PermanentError struct {
	Reason string
	Err    error
}

func (e *PermanentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("permanent settlement failure: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("permanent settlement failure: %s", e.Reason)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// IsPermanent reports whether err carries a PermanentError anywhere in its chain.
func IsPermanent(err error) bool {
	var perm *PermanentError
	return errors.As(err, &perm)
}

// Client is the production Completer. The downstream settlement system is
// simulated: the call always succeeds. The externally observable latency lives
// in the worker's delay phase, not here.
type Client struct{}

func NewClient() *Client {
	return &Client{}
}

func (c *Client) Complete(ctx context.Context, txn *models.Transaction) error {
	if err := ctx.Err(); err != nil {
		return &TransientError{Reason: "completion cancelled", Err: err}
	}

	log.Infof("[Settlement] Completed transaction %s (%s %s -> %s)",
		txn.TransactionID, txn.Amount.String(), txn.SourceAccount, txn.DestinationAccount)
	return nil
}

var _ Completer = (*Client)(nil)
