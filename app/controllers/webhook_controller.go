package controllers

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/rkoehler/txnflow/app/models"
	"github.com/rkoehler/txnflow/internal/pkg/ingest"
)

// WebhookController receives transaction webhooks and acknowledges them within
// the caller-facing latency budget: the only synchronous work is the store
// write and the queue hand-off.
type WebhookController struct {
	svc *ingest.Service
}

func NewWebhookController(svc *ingest.Service) *WebhookController {
	return &WebhookController{svc: svc}
}

// HandleTransactionWebhook handles POST /v1/webhooks/transactions
func (wc *WebhookController) HandleTransactionWebhook(c *fiber.Ctx) error {
	var req models.WebhookRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"detail": []fiber.Map{{"field": "body", "message": "invalid request body"}},
		})
	}

	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"detail": validationDetails(err),
		})
	}

	result, err := wc.svc.Ingest(c.Context(), &req)
	if err != nil {
		log.Errorf("[Webhook] Failed to ingest transaction %s: %v", req.TransactionID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"detail": "Failed to process webhook",
		})
	}

	// Duplicates are acknowledged identically to first-seen deliveries
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message":        "Webhook received",
		"transaction_id": result.TransactionID,
	})
}

// validationDetails flattens a validation error into the structured 422 body.
func validationDetails(err error) []fiber.Map {
	if errors.Is(err, models.ErrAmountNotPositive) {
		return []fiber.Map{{"field": "amount", "message": models.ErrAmountNotPositive.Error()}}
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		details := make([]fiber.Map, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			details = append(details, fiber.Map{
				"field":   fe.Field(),
				"message": "failed validation on '" + fe.Tag() + "'",
			})
		}
		return details
	}

	return []fiber.Map{{"field": "body", "message": err.Error()}}
}
