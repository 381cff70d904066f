package jobqueue

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/rkoehler/txnflow/app/models"
	"github.com/rkoehler/txnflow/app/repository"
	"github.com/rkoehler/txnflow/internal/pkg/env"
)

const reconcileBatchSize = 100

// ManagerConfig carries the reconciliation tunables.
type ManagerConfig struct {
	ReconcileInterval time.Duration
	StaleAfter        time.Duration
}

// ManagerConfigFromEnv reads reconciliation settings from the environment.
// StaleAfter defaults to 5 minutes, comfortably past a full retry cycle
// (delay + backoff per attempt), so only genuinely lost dispatches qualify.
func ManagerConfigFromEnv() ManagerConfig {
	return ManagerConfig{
		ReconcileInterval: time.Duration(env.GetEnvInt("RECONCILE_INTERVAL_SECONDS", 60)) * time.Second,
		StaleAfter:        time.Duration(env.GetEnvInt("RECONCILE_STALE_AFTER_SECONDS", 300)) * time.Second,
	}
}

// Manager owns the job queue plus the reconciliation sweep that redispatches
// PROCESSING transactions whose completion task was lost at enqueue time.
// Redispatching an already-tracked transaction is harmless: the store's
// guarded terminal transition absorbs the duplicate.
type Manager struct {
	queue           *Queue
	repo            repository.TransactionRepository
	cfg             ManagerConfig
	reconcileTicker *time.Ticker
	stopCh          chan struct{}
	wg              sync.WaitGroup
	mu              sync.Mutex
	running         bool
}

// NewManager creates a manager around an existing queue. Collaborators are
// passed in explicitly; there is no global instance.
func NewManager(queue *Queue, repo repository.TransactionRepository, cfg ManagerConfig) *Manager {
	if cfg.ReconcileInterval <= 0 {
		cfg.ReconcileInterval = time.Minute
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 5 * time.Minute
	}

	return &Manager{
		queue:  queue,
		repo:   repo,
		cfg:    cfg,
		stopCh: make(chan struct{}),
	}
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the job queue and the reconciliation sweep
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so the manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and reconciliation sweep")

	m.queue.Start()

	m.reconcileTicker = time.NewTicker(m.cfg.ReconcileInterval)
	m.wg.Add(1)
	go m.reconcileWorker()

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the job queue and the reconciliation sweep
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and reconciliation sweep...")

	if m.reconcileTicker != nil {
		m.reconcileTicker.Stop()
	}

	close(m.stopCh)
	m.running = false
	m.wg.Wait()

	m.queue.Stop()

	log.Info("[JobQueue Manager] Stopped successfully")
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// reconcileWorker runs the periodic sweep for stale PROCESSING transactions
func (m *Manager) reconcileWorker() {
	defer m.wg.Done()
	log.Infof("[JobQueue Manager] Started reconciliation worker (interval: %s, staleAfter: %s)", m.cfg.ReconcileInterval, m.cfg.StaleAfter)

	for {
		select {
		case <-m.stopCh:
			log.Info("[JobQueue Manager] Reconciliation worker stopping")
			return
		case <-m.reconcileTicker.C:
			if err := m.reconcileOnce(); err != nil {
				log.Errorf("[JobQueue Manager] Reconciliation error: %v", err)
			}
		}
	}
}

// reconcileOnce redispatches completion jobs for transactions stuck in
// PROCESSING past the staleness threshold.
func (m *Manager) reconcileOnce() error {
	cutoff := time.Now().UTC().Add(-m.cfg.StaleAfter)
	stale, err := m.repo.FindStaleProcessing(cutoff, reconcileBatchSize)
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		return nil
	}

	pending, _ := m.repo.CountByStatus(models.STATUS_PROCESSING)
	log.Warnf("[JobQueue Manager] Redispatching %d stale transactions (%d in PROCESSING overall)", len(stale), pending)

	for _, txn := range stale {
		if _, err := m.queue.EnqueueTransactionCompletion(txn.TransactionID); err != nil {
			log.Errorf("[JobQueue Manager] Failed to redispatch transaction %s: %v", txn.TransactionID, err)
		}
	}
	return nil
}

// RunReconcileOnce exposes a manual trigger for a single reconciliation sweep.
func (m *Manager) RunReconcileOnce() error {
	return m.reconcileOnce()
}
