// Package middleware provides the fiber session-validator guarding
// protected routes.
package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/MrEthical07/mpass"
)

// StatusSessionInvalid is returned for a well-formed token whose session
// has been revoked or expired server-side, so clients can distinguish
// "log in again" from "bad token".
const StatusSessionInvalid = 498

const localsSessionKey = "mpass.session"

// Session validates the bearer token on every request and stashes the
// session in the request locals. Paths under adminPrefix additionally
// require the identity's admin flag.
func Session(engine *mpass.Engine, adminPrefix string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			return unauthorized(c)
		}

		info, err := engine.ValidateSession(c.UserContext(), token)
		if err != nil {
			switch {
			case errors.Is(err, mpass.ErrInvalidSession):
				return c.Status(StatusSessionInvalid).JSON(fiber.Map{
					"error": "session invalid",
				})
			case errors.Is(err, mpass.ErrUnauthorized):
				return unauthorized(c)
			}
			return fiber.ErrInternalServerError
		}

		if adminPrefix != "" && strings.HasPrefix(c.Path(), adminPrefix) {
			admin, err := engine.IsAdmin(c.UserContext(), info.Email)
			if err != nil && !errors.Is(err, mpass.ErrUserNotFound) {
				return fiber.ErrInternalServerError
			}
			if !admin {
				return unauthorized(c)
			}
		}

		c.Locals(localsSessionKey, info)
		return c.Next()
	}
}

// SessionFromCtx returns the session stashed by the validator, or nil when
// the route is not guarded.
func SessionFromCtx(c *fiber.Ctx) *mpass.SessionInfo {
	info, _ := c.Locals(localsSessionKey).(*mpass.SessionInfo)
	return info
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": "unauthorized",
	})
}
