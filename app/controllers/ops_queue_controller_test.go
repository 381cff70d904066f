package controllers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rkoehler/txnflow/internal/pkg/jobqueue"
)

type stubQueueRepo struct {
	deletedKeys []string
	deleteCount int64
	deleteErr   error
}

func (s *stubQueueRepo) FindKeysByPatterns(patterns []string) ([]string, error) { return nil, nil }
func (s *stubQueueRepo) GetValue(key string) (string, error)                   { return "", nil }
func (s *stubQueueRepo) GetTTL(key string) (time.Duration, error)              { return -1, nil }
func (s *stubQueueRepo) GetListLength(key string) (int64, error)               { return 0, nil }

func (s *stubQueueRepo) DeleteKey(key string) (int64, error) {
	s.deletedKeys = append(s.deletedKeys, key)
	return s.deleteCount, s.deleteErr
}

func newOpsTestApp(repo *stubQueueRepo) *fiber.App {
	app := fiber.New()
	controller := NewOpsQueueController(nil, repo)
	app.Delete("/v1/ops/queue/jobs/:job_id", controller.HandleQueueJobDelete)
	return app
}

func TestOpsQueueJobDelete(t *testing.T) {
	repo := &stubQueueRepo{deleteCount: 1}
	app := newOpsTestApp(repo)

	req := httptest.NewRequest(http.MethodDelete, "/v1/ops/queue/jobs/abc123", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// The delete targets the job record key, not the bare id
	require.Len(t, repo.deletedKeys, 1)
	assert.Equal(t, jobqueue.JobKeyPrefix+"abc123", repo.deletedKeys[0])
}

func TestOpsQueueJobDeleteNotFound(t *testing.T) {
	repo := &stubQueueRepo{deleteCount: 0}
	app := newOpsTestApp(repo)

	req := httptest.NewRequest(http.MethodDelete, "/v1/ops/queue/jobs/missing", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body map[string]interface{}
	decodeBody(t, resp, &body)
	assert.Equal(t, "Job missing not found", body["detail"])
}

func TestOpsQueueJobDeleteRedisError(t *testing.T) {
	repo := &stubQueueRepo{deleteErr: errors.New("connection refused")}
	app := newOpsTestApp(repo)

	req := httptest.NewRequest(http.MethodDelete, "/v1/ops/queue/jobs/abc123", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}
