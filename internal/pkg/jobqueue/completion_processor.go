package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/rkoehler/txnflow/app/models"
	"github.com/rkoehler/txnflow/app/repository"
	"github.com/rkoehler/txnflow/internal/pkg/settlement"
)

// ErrShutdown signals that a job was requeued because the queue is stopping.
// The job is left pending for the next start cycle.
var ErrShutdown = errors.New("queue shutting down")

// processTransactionCompletionJob runs one completion attempt for a
// transaction. The attempt waits out the simulated settlement latency, invokes
// the completion effect, and transitions the transaction to PROCESSED. The
// delay is a timer suspension local to this worker; other in-flight jobs keep
// running.
func (q *Queue) processTransactionCompletionJob(ctx context.Context, job *Job) error {
	payload, err := TransactionCompletionJobPayloadFromMap(job.Payload)
	if err != nil {
		// A malformed payload never improves on retry
		return &settlement.PermanentError{Reason: "invalid completion job payload", Err: err}
	}

	txn, err := q.repo.GetByTransactionID(payload.TransactionID)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			// Enqueue happens strictly after the durable insert, so a missing
			// row points at a store hiccup; retry.
			return fmt.Errorf("transaction %s not found in store: %w", payload.TransactionID, err)
		}
		return fmt.Errorf("failed to load transaction %s: %w", payload.TransactionID, err)
	}

	if txn.IsTerminal() {
		log.Infof("[CompletionWorker] Transaction %s is already %s, skipping duplicate delivery", txn.TransactionID, txn.Status)
		return nil
	}

	// Delaying: simulated latency of the downstream settlement system
	timer := time.NewTimer(q.cfg.ProcessingDelay)
	defer timer.Stop()
	select {
	case <-q.stopCh:
		if rerr := q.requeueJob(ctx, job); rerr != nil {
			log.Errorf("[CompletionWorker] Failed to requeue job %s during shutdown: %v", job.ID, rerr)
		}
		return ErrShutdown
	case <-timer.C:
	}

	// Completing: invoke the completion effect
	if err := q.completer.Complete(ctx, txn); err != nil {
		return fmt.Errorf("completion effect failed for transaction %s: %w", txn.TransactionID, err)
	}

	if _, err := q.repo.MarkTerminal(txn.TransactionID, models.STATUS_PROCESSED, time.Now().UTC()); err != nil {
		if errors.Is(err, repository.ErrInvalidTransition) {
			// A concurrent duplicate delivery won the transition; absorb as a no-op
			log.Warnf("[CompletionWorker] Transaction %s reached a terminal state concurrently, absorbing duplicate completion", txn.TransactionID)
			return nil
		}
		return fmt.Errorf("failed to mark transaction %s processed: %w", txn.TransactionID, err)
	}

	log.Infof("[CompletionWorker] Transaction %s processed", txn.TransactionID)
	return nil
}

// failTransaction terminalizes a transaction as FAILED once its completion job
// is exhausted or permanently rejected. Internal consistency faults
// (already-terminal rows) are logged and absorbed.
func (q *Queue) failTransaction(job *Job) {
	payload, err := TransactionCompletionJobPayloadFromMap(job.Payload)
	if err != nil {
		log.Errorf("[CompletionWorker] Cannot terminalize job %s, payload unreadable: %v", job.ID, err)
		return
	}

	if _, err := q.repo.MarkTerminal(payload.TransactionID, models.STATUS_FAILED, time.Now().UTC()); err != nil {
		if errors.Is(err, repository.ErrInvalidTransition) {
			log.Warnf("[CompletionWorker] Transaction %s already terminal, skipping FAILED transition", payload.TransactionID)
			return
		}
		log.Errorf("[CompletionWorker] Failed to mark transaction %s failed: %v", payload.TransactionID, err)
		return
	}

	log.Warnf("[CompletionWorker] Transaction %s marked FAILED after %d attempts", payload.TransactionID, job.RetryCount)
}
