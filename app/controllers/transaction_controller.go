package controllers

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/rkoehler/txnflow/app/models"
	"github.com/rkoehler/txnflow/app/repository"
)

// TransactionController answers status queries straight from the store, no
// caching layer in between.
type TransactionController struct {
	repo repository.TransactionRepository
}

func NewTransactionController(repo repository.TransactionRepository) *TransactionController {
	return &TransactionController{repo: repo}
}

// HandleGetTransaction handles GET /v1/transactions/:transaction_id.
// The response is a single-element array: external clients depend on the
// collection shape even though transaction ids are unique.
func (tc *TransactionController) HandleGetTransaction(c *fiber.Ctx) error {
	transactionID := c.Params("transaction_id")

	txn, err := tc.repo.GetByTransactionID(transactionID)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"detail": fmt.Sprintf("Transaction %s not found", transactionID),
			})
		}
		log.Errorf("[Transactions] Failed to load transaction %s: %v", transactionID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"detail": "Internal server error",
		})
	}

	return c.Status(fiber.StatusOK).JSON([]models.Transaction{*txn})
}
