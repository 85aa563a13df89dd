package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/grantdesk/backend/internal/auth"
	"github.com/grantdesk/backend/internal/chat"
	"github.com/grantdesk/backend/internal/metrics"
	"github.com/grantdesk/backend/pkg/logger"
)

type ChatHandler struct {
	orchestrator *chat.Orchestrator
}

func NewChatHandler(orchestrator *chat.Orchestrator) *ChatHandler {
	return &ChatHandler{orchestrator: orchestrator}
}

func (h *ChatHandler) ListChats(c *fiber.Ctx) error {
	user := auth.CurrentUser(c)

	chats, err := h.orchestrator.ListChats(user.ID)
	if err != nil {
		logger.Error("Failed to list chats", zap.String("user_id", user.ID), zap.Error(err))
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"chats": chats})
}

func (h *ChatHandler) CreateChat(c *fiber.Ctx) error {
	var req struct {
		Title string `json:"title"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	user := auth.CurrentUser(c)
	created, err := h.orchestrator.CreateChat(user.ID, req.Title)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"chat": created})
}

func (h *ChatHandler) GetChat(c *fiber.Ctx) error {
	user := auth.CurrentUser(c)

	found, err := h.orchestrator.GetChat(user.ID, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"chat": found})
}

func (h *ChatHandler) ListMessages(c *fiber.Ctx) error {
	user := auth.CurrentUser(c)

	messages, err := h.orchestrator.ListMessages(user.ID, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"messages": messages})
}

func (h *ChatHandler) PostMessage(c *fiber.Ctx) error {
	var req struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	user := auth.CurrentUser(c)
	msg, err := h.orchestrator.PostMessage(user.ID, c.Params("id"), req.Role, req.Content)
	if err != nil {
		return respondError(c, err)
	}

	metrics.MessagesPosted.WithLabelValues(msg.Role).Inc()

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": msg})
}

func (h *ChatHandler) Analyze(c *fiber.Ctx) error {
	var req struct {
		Question string `json:"question"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	user := auth.CurrentUser(c)
	reply, err := h.orchestrator.Analyze(c.Context(), user.ID, c.Params("id"), req.Question)
	if err != nil {
		logger.Error("Failed to analyze chat", zap.String("chat_id", c.Params("id")), zap.Error(err))
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"message": reply})
}
