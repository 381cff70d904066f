package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rkoehler/txnflow/app/models"
	"github.com/rkoehler/txnflow/app/repository"
	"github.com/rkoehler/txnflow/internal/pkg/ingest"
)

type recordingDispatcher struct {
	mu         sync.Mutex
	dispatched []string
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, transactionID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dispatched = append(d.dispatched, transactionID)
	return nil
}

func (d *recordingDispatcher) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.dispatched)
}

func newTestApp(t *testing.T) (*fiber.App, repository.TransactionRepository, *recordingDispatcher) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.Transaction{}))

	repo := repository.NewTransactionRepository(db)
	dispatcher := &recordingDispatcher{}
	svc := ingest.NewService(repo, dispatcher)

	app := fiber.New()
	app.Get("/", HandleHealthCheck)
	v1 := app.Group("/v1")
	v1.Post("/webhooks/transactions", NewWebhookController(svc).HandleTransactionWebhook)
	v1.Get("/transactions/:transaction_id", NewTransactionController(repo).HandleGetTransaction)

	return app, repo, dispatcher
}

func postWebhook(t *testing.T, app *fiber.App, payload string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/transactions", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, out))
}

const webhookPayload = `{"transaction_id":"txn_001","source_account":"a","destination_account":"b","amount":1500,"currency":"INR"}`

func TestHealthCheck(t *testing.T) {
	app, _, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	decodeBody(t, resp, &body)
	assert.Equal(t, "HEALTHY", body["status"])

	_, err = time.Parse(time.RFC3339, body["current_time"].(string))
	assert.NoError(t, err, "current_time must be an ISO-8601 timestamp")
}

func TestWebhookAcceptedAndQueryable(t *testing.T) {
	app, _, dispatcher := newTestApp(t)

	resp := postWebhook(t, app, webhookPayload)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var ack map[string]interface{}
	decodeBody(t, resp, &ack)
	assert.Equal(t, "Webhook received", ack["message"])
	assert.Equal(t, "txn_001", ack["transaction_id"])
	assert.Equal(t, 1, dispatcher.Count())

	// Immediate query: PROCESSING, processed_at null, collection shape preserved
	req := httptest.NewRequest(http.MethodGet, "/v1/transactions/txn_001", nil)
	qresp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, qresp.StatusCode)

	var txns []map[string]interface{}
	decodeBody(t, qresp, &txns)
	require.Len(t, txns, 1)
	assert.Equal(t, "txn_001", txns[0]["transaction_id"])
	assert.Equal(t, models.STATUS_PROCESSING, txns[0]["status"])
	assert.Nil(t, txns[0]["processed_at"])

	// amount goes over the wire as a JSON number, not a quoted decimal
	require.IsType(t, float64(0), txns[0]["amount"])
	assert.Equal(t, float64(1500), txns[0]["amount"])
}

func TestWebhookIdempotentResubmission(t *testing.T) {
	app, repo, dispatcher := newTestApp(t)

	var bodies []string
	for i := 0; i < 3; i++ {
		resp := postWebhook(t, app, webhookPayload)
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		bodies = append(bodies, string(raw))
	}

	// Responses are behaviorally identical across deliveries
	assert.Equal(t, bodies[0], bodies[1])
	assert.Equal(t, bodies[0], bodies[2])

	// Exactly one row, exactly one dispatched task
	count, err := repo.CountByStatus(models.STATUS_PROCESSING)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, 1, dispatcher.Count())
}

func TestWebhookConcurrentDuplicates(t *testing.T) {
	app, repo, _ := newTestApp(t)

	const callers = 3
	statuses := make([]int, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/transactions", bytes.NewBufferString(webhookPayload))
			req.Header.Set("Content-Type", "application/json")
			resp, err := app.Test(req, -1)
			assert.NoError(t, err)
			statuses[i] = resp.StatusCode
		}(i)
	}
	wg.Wait()

	for _, status := range statuses {
		assert.Equal(t, http.StatusAccepted, status)
	}

	count, err := repo.CountByStatus(models.STATUS_PROCESSING)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestWebhookNegativeAmountRejected(t *testing.T) {
	app, repo, dispatcher := newTestApp(t)

	payload := `{"transaction_id":"txn_bad","source_account":"a","destination_account":"b","amount":-5,"currency":"INR"}`
	resp := postWebhook(t, app, payload)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var body map[string]interface{}
	decodeBody(t, resp, &body)
	assert.NotEmpty(t, body["detail"])

	// Nothing persisted, nothing dispatched
	count, err := repo.CountByStatus(models.STATUS_PROCESSING)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
	assert.Equal(t, 0, dispatcher.Count())
}

func TestWebhookMalformedBodyRejected(t *testing.T) {
	app, _, _ := newTestApp(t)

	resp := postWebhook(t, app, `{"transaction_id":`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestWebhookMissingFieldsRejected(t *testing.T) {
	app, _, _ := newTestApp(t)

	resp := postWebhook(t, app, `{"transaction_id":"txn_x","amount":10}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var body map[string]interface{}
	decodeBody(t, resp, &body)
	details, ok := body["detail"].([]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, details)
}

func TestWebhookLatencyBound(t *testing.T) {
	app, _, _ := newTestApp(t)

	start := time.Now()
	resp := postWebhook(t, app, webhookPayload)
	elapsed := time.Since(start)

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Less(t, elapsed, 500*time.Millisecond, "acknowledgement must not wait for completion")
}

func TestGetTransactionNotFound(t *testing.T) {
	app, _, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/transactions/txn_missing", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body map[string]interface{}
	decodeBody(t, resp, &body)
	assert.Equal(t, "Transaction txn_missing not found", body["detail"])
}

func TestGetTransactionTerminalState(t *testing.T) {
	app, repo, _ := newTestApp(t)

	resp := postWebhook(t, app, webhookPayload)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	_, err := repo.MarkTerminal("txn_001", models.STATUS_PROCESSED, time.Now().UTC())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/transactions/txn_001", nil)
	qresp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, qresp.StatusCode)

	var txns []map[string]interface{}
	decodeBody(t, qresp, &txns)
	require.Len(t, txns, 1)
	assert.Equal(t, models.STATUS_PROCESSED, txns[0]["status"])
	assert.NotNil(t, txns[0]["processed_at"])
}
