package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/grantdesk/backend/internal/auth"
)

// respondError maps the service rejection taxonomy onto the JSON error
// shape. Persistence and upstream failures surface as 500 with the
// underlying message attached as details for diagnostics.
func respondError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	case errors.Is(err, auth.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Access denied",
		})
	case errors.Is(err, auth.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Resource not found",
		})
	case errors.Is(err, auth.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Internal server error",
			"details": err.Error(),
		})
	}
}
