package ingest

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/rkoehler/txnflow/app/models"
	"github.com/rkoehler/txnflow/app/repository"
	"github.com/rkoehler/txnflow/internal/pkg/jobqueue"
)

// Dispatcher hands a completion task to the asynchronous execution path.
type Dispatcher interface {
	Dispatch(ctx context.Context, transactionID string) error
}

// QueueDispatcher dispatches completion tasks onto the Redis-backed job queue.
type QueueDispatcher struct {
	queue *jobqueue.Queue
}

func NewQueueDispatcher(queue *jobqueue.Queue) *QueueDispatcher {
	return &QueueDispatcher{queue: queue}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, transactionID string) error {
	_, err := d.queue.EnqueueTransactionCompletion(transactionID)
	return err
}

var _ Dispatcher = (*QueueDispatcher)(nil)

// IngestResult reports the outcome of a webhook ingestion.
type IngestResult struct {
	TransactionID string
	Created       bool
}

// Service decides, for each validated webhook, whether it is a first-seen
// transaction (persist + dispatch) or a duplicate delivery (accept silently).
type Service struct {
	repo       repository.TransactionRepository
	dispatcher Dispatcher
}

// NewService wires the guard with its collaborators. Handles are passed in
// explicitly; the service holds no global state.
func NewService(repo repository.TransactionRepository, dispatcher Dispatcher) *Service {
	return &Service{repo: repo, dispatcher: dispatcher}
}

// Ingest persists a first-seen transaction as PROCESSING and dispatches its
// completion task. Duplicates succeed without creating new work; the single
// originally-dispatched task (or the reconciliation sweep) carries them to a
// terminal state.
func (s *Service) Ingest(ctx context.Context, req *models.WebhookRequest) (*IngestResult, error) {
	created, stored, err := s.repo.CreateIfAbsent(req.ToTransaction())
	if err != nil {
		return nil, fmt.Errorf("failed to persist transaction %s: %w", req.TransactionID, err)
	}

	if !created {
		log.Infof("[Ingest] Duplicate webhook for transaction %s, suppressing redispatch", stored.TransactionID)
		return &IngestResult{TransactionID: stored.TransactionID, Created: false}, nil
	}

	log.Infof("[Ingest] Created transaction %s", stored.TransactionID)

	if err := s.dispatcher.Dispatch(ctx, stored.TransactionID); err != nil {
		// The record is already durable; the reconciliation sweep will
		// redispatch it, so the webhook contract is still fulfilled.
		log.Warnf("[Ingest] Could not dispatch completion task for %s: %v", stored.TransactionID, err)
	}

	return &IngestResult{TransactionID: stored.TransactionID, Created: true}, nil
}
