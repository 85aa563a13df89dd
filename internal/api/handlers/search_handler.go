package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/grantdesk/backend/internal/metrics"
	"github.com/grantdesk/backend/internal/search/web"
	"github.com/grantdesk/backend/pkg/logger"
)

type SearchHandler struct {
	client     *web.Client
	maxResults int
}

func NewSearchHandler(client *web.Client, maxResults int) *SearchHandler {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &SearchHandler{
		client:     client,
		maxResults: maxResults,
	}
}

func (h *SearchHandler) WebSearch(c *fiber.Ctx) error {
	var req struct {
		Query      string `json:"query"`
		MaxResults int    `json:"maxResults"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Query is required",
		})
	}

	maxResults := req.MaxResults
	if maxResults <= 0 || maxResults > h.maxResults {
		maxResults = h.maxResults
	}

	results, err := h.client.Search(c.Context(), req.Query, maxResults)
	if err != nil {
		logger.Error("Web search failed", zap.String("query", req.Query), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Web search is temporarily unavailable",
			"details": err.Error(),
		})
	}

	metrics.WebSearchTotal.Inc()

	return c.JSON(fiber.Map{"results": results})
}

func (h *SearchHandler) WebFetch(c *fiber.Ctx) error {
	var req struct {
		URL string `json:"url"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.URL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "URL is required",
		})
	}

	content, err := h.client.Fetch(c.Context(), req.URL)
	if err != nil {
		logger.Error("Web fetch failed", zap.String("url", req.URL), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to fetch page",
			"details": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"url":     req.URL,
		"content": content,
	})
}
