package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/grantdesk/backend/internal/storage/models"
)

const (
	SessionCookie = "session"
	userLocal     = "current_user"
)

// CurrentUser returns the user loaded by RequireSession, or nil.
func CurrentUser(c *fiber.Ctx) *models.User {
	if u, ok := c.Locals(userLocal).(*models.User); ok {
		return u
	}
	return nil
}

// RequireSession rejects requests without a valid session cookie and
// stores the resolved user in the request locals.
func (s *Service) RequireSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := s.Resolve(c.Cookies(SessionCookie))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authentication required",
			})
		}
		c.Locals(userLocal, user)
		return c.Next()
	}
}

// RequireAdmin gates admin-only routes; must run after RequireSession.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		if user == nil || user.Role != models.RoleAdmin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Admin role required",
			})
		}
		return c.Next()
	}
}
