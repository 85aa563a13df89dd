package handlers

import (
	"crypto/subtle"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/grantdesk/backend/internal/deadline"
	"github.com/grantdesk/backend/internal/metrics"
	"github.com/grantdesk/backend/pkg/logger"
)

// CronHandler exposes the deadline sweep to an external scheduler. The
// route is protected by a static bearer token, not a user session.
type CronHandler struct {
	detector   *deadline.Detector
	token      string
	windowDays int
}

func NewCronHandler(detector *deadline.Detector, token string, windowDays int) *CronHandler {
	if windowDays <= 0 {
		windowDays = 14
	}
	return &CronHandler{
		detector:   detector,
		token:      token,
		windowDays: windowDays,
	}
}

func (h *CronHandler) CheckDeadlines(c *fiber.Ctx) error {
	if h.token == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Cron endpoint is not configured",
		})
	}

	supplied := strings.TrimPrefix(c.Get("Authorization"), "Bearer ")
	if subtle.ConstantTimeCompare([]byte(supplied), []byte(h.token)) != 1 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid cron token",
		})
	}

	window := time.Duration(h.windowDays) * 24 * time.Hour
	notifications, err := h.detector.CheckUpcomingDeadlines(c.Context(), window)
	if err != nil {
		logger.Error("Deadline sweep failed", zap.Error(err))
		return respondError(c, err)
	}

	metrics.DeadlineSweepUpcoming.Set(float64(len(notifications)))

	return c.JSON(fiber.Map{
		"upcoming":   notifications,
		"total":      len(notifications),
		"windowDays": h.windowDays,
	})
}
