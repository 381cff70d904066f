package controllers

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/rkoehler/txnflow/app/repository"
	"github.com/rkoehler/txnflow/internal/pkg/jobqueue"
)

// OpsQueueController exposes the state of the completion job queue for
// operators. All responses are JSON snapshots, nothing here mutates the
// transaction store.
type OpsQueueController struct {
	queue     *jobqueue.Queue
	queueRepo repository.QueueRepository
}

// NewOpsQueueController creates a new ops queue controller
func NewOpsQueueController(queue *jobqueue.Queue, queueRepo repository.QueueRepository) *OpsQueueController {
	return &OpsQueueController{
		queue:     queue,
		queueRepo: queueRepo,
	}
}

// QueueEntry describes a single job record currently held in Redis
type QueueEntry struct {
	JobID      string `json:"job_id"`
	Type       string `json:"type"`
	Status     string `json:"status"`
	RetryCount int    `json:"retry_count"`
	TTLSeconds int64  `json:"ttl_seconds"`
	SizeBytes  int64  `json:"size_bytes"`
}

// HandleQueueOverview returns queue depths, lifetime counters and the job
// records currently held in Redis
func (oqc *OpsQueueController) HandleQueueOverview(c *fiber.Ctx) error {
	ctx := c.Context()

	stats, err := oqc.queue.GetJobStats(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"detail": "failed to read queue stats: " + err.Error(),
		})
	}

	pending, err := oqc.queue.GetQueueSize(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"detail": "failed to read queue size: " + err.Error(),
		})
	}
	processing, _ := oqc.queue.GetProcessingSize(ctx)

	entries, err := oqc.getQueueEntries()
	if err != nil {
		entries = []QueueEntry{}
	}

	return c.JSON(fiber.Map{
		"pending":     pending,
		"processing":  processing,
		"stats":       stats,
		"jobs":        entries,
		"observed_at": time.Now().UTC(),
	})
}

// HandleQueueJobDelete removes a single job record, e.g. one stuck after a
// Redis failover. The queued job id itself is left alone; the worker drops
// ids without a record.
func (oqc *OpsQueueController) HandleQueueJobDelete(c *fiber.Ctx) error {
	jobID := c.Params("job_id")
	if jobID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"detail": "job id is required",
		})
	}

	deleted, err := oqc.queueRepo.DeleteKey(jobqueue.JobKeyPrefix + jobID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"detail": "failed to delete job: " + err.Error(),
		})
	}
	if deleted == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"detail": "Job " + jobID + " not found",
		})
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// getQueueEntries loads every job record and its metadata from Redis
func (oqc *OpsQueueController) getQueueEntries() ([]QueueEntry, error) {
	keys, err := oqc.queueRepo.FindKeysByPatterns([]string{jobqueue.JobKeyPrefix + "*"})
	if err != nil {
		return nil, err
	}

	entries := make([]QueueEntry, 0, len(keys))
	for _, key := range keys {
		value, err := oqc.queueRepo.GetValue(key)
		if err != nil {
			continue
		}

		ttl, err := oqc.queueRepo.GetTTL(key)
		if err != nil {
			ttl = -1
		}

		var job jobqueue.Job
		if err := json.Unmarshal([]byte(value), &job); err != nil {
			continue
		}

		entries = append(entries, QueueEntry{
			JobID:      job.ID,
			Type:       string(job.Type),
			Status:     string(job.Status),
			RetryCount: job.RetryCount,
			TTLSeconds: int64(ttl / time.Second),
			SizeBytes:  int64(len(value)),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Status != entries[j].Status {
			return entries[i].Status < entries[j].Status
		}
		return entries[i].JobID < entries[j].JobID
	})

	return entries, nil
}
