package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/rkoehler/txnflow/app/controllers"
	"github.com/rkoehler/txnflow/app/repository"
	"github.com/rkoehler/txnflow/internal/pkg/ingest"
	"github.com/rkoehler/txnflow/internal/pkg/jobqueue"
)

// InstallRouter wires the HTTP surface onto the Fiber app. Collaborator
// handles come in from the caller; routes delegate to controllers built
// around them.
func InstallRouter(app *fiber.App, repos *repository.Repositories, svc *ingest.Service, queue *jobqueue.Queue, queueRepo repository.QueueRepository) {
	webhookController := controllers.NewWebhookController(svc)
	transactionController := controllers.NewTransactionController(repos.Transaction)
	opsQueueController := controllers.NewOpsQueueController(queue, queueRepo)

	app.Get("/", controllers.HandleHealthCheck)

	v1 := app.Group("/v1")
	v1.Post("/webhooks/transactions", webhookController.HandleTransactionWebhook)
	v1.Get("/transactions/:transaction_id", transactionController.HandleGetTransaction)

	ops := v1.Group("/ops")
	ops.Get("/queue", opsQueueController.HandleQueueOverview)
	ops.Delete("/queue/jobs/:job_id", opsQueueController.HandleQueueJobDelete)
}
