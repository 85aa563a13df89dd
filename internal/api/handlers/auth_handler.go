package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/grantdesk/backend/internal/auth"
	"github.com/grantdesk/backend/pkg/logger"
)

type AuthHandler struct {
	service *auth.Service
}

func NewAuthHandler(service *auth.Service) *AuthHandler {
	return &AuthHandler{service: service}
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	user, session, err := h.service.Login(req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}

	c.Cookie(&fiber.Cookie{
		Name:     auth.SessionCookie,
		Value:    session.Token,
		Expires:  session.ExpiresAt,
		HTTPOnly: true,
		SameSite: "Lax",
		Path:     "/",
	})

	return c.JSON(fiber.Map{"user": user})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if err := h.service.Logout(c.Cookies(auth.SessionCookie)); err != nil {
		logger.Warn("Failed to delete session", zap.Error(err))
	}

	c.Cookie(&fiber.Cookie{
		Name:    auth.SessionCookie,
		Value:   "",
		Expires: time.Now().Add(-time.Hour),
		Path:    "/",
	})

	return c.JSON(fiber.Map{"message": "Logged out"})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"user": auth.CurrentUser(c)})
}

func (h *AuthHandler) UpdateSettings(c *fiber.Ctx) error {
	var req struct {
		Name     string `json:"name"`
		Password string `json:"password"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	user := auth.CurrentUser(c)
	updated, err := h.service.UpdateSettings(user.ID, req.Name, req.Password)
	if err != nil {
		logger.Error("Failed to update settings", zap.String("user_id", user.ID), zap.Error(err))
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"user": updated})
}
