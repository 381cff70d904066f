package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// HandleHealthCheck handles GET / and reports service liveness.
func HandleHealthCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":       "HEALTHY",
		"current_time": time.Now().UTC(),
	})
}
