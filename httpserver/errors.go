package httpserver

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/MrEthical07/mpass"
)

// requestError carries a fully-formed client response out of a handler.
// It is turned into the wire response by the app's error handler, so a
// handler can simply return it and stop.
type requestError struct {
	status int
	body   fiber.Map
}

func (e *requestError) Error() string { return "request rejected" }

// errorHandler renders requestError responses and falls back to a bare
// status for anything else.
func errorHandler(c *fiber.Ctx, err error) error {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		return c.Status(reqErr.status).JSON(reqErr.body)
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(fiber.Map{"error": fiberErr.Message})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "internal server error",
	})
}

// parseBody decodes the JSON body and runs its Validate method. The
// returned error is non-nil on any problem, so the caller's early return
// actually stops the request before it reaches the engine.
func parseBody(c *fiber.Ctx, out interface{ Validate() error }) error {
	if err := c.BodyParser(out); err != nil {
		return &requestError{
			status: fiber.StatusBadRequest,
			body:   fiber.Map{"error": "malformed request body"},
		}
	}
	if err := out.Validate(); err != nil {
		return &requestError{
			status: fiber.StatusBadRequest,
			body:   fiber.Map{"error": "validation failed", "fields": err},
		}
	}
	return nil
}

func paramString(c *fiber.Ctx, name string) (string, error) {
	v := c.Params(name)
	if v == "" {
		return "", &requestError{
			status: fiber.StatusBadRequest,
			body:   fiber.Map{"error": "missing " + name},
		}
	}
	return v, nil
}

// mapError converts engine errors to responses. The salt step overrides the
// locked case before calling this; everywhere else a locked account answers
// 400, matching the credential-failure shape.
func mapError(c *fiber.Ctx, err error) error {
	var remaining *mpass.RemainingAttemptsError
	switch {
	case errors.As(err, &remaining):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":             "invalid credentials",
			"remainingAttempts": remaining.Remaining,
		})
	case errors.Is(err, mpass.ErrAccountLocked):
		return badRequest(c, "account locked")
	case errors.Is(err, mpass.ErrInvalidCredentials):
		return badRequest(c, "invalid credentials")
	case errors.Is(err, mpass.ErrUserNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "user not found",
		})
	case errors.Is(err, mpass.ErrEmailRegistered):
		return conflict(c, "email already registered")
	case errors.Is(err, mpass.ErrUsernameTaken):
		return conflict(c, "username already taken")
	case errors.Is(err, mpass.ErrEmailAlreadyVerified):
		return badRequest(c, "email already verified")
	case errors.Is(err, mpass.ErrVerificationCodeInvalid):
		return badRequest(c, "verification code invalid")
	case errors.Is(err, mpass.ErrVerificationThrottled):
		return badRequest(c, "verification code already sent")
	case errors.Is(err, mpass.ErrUnlockTokenInvalid):
		return badRequest(c, "unlock token invalid")
	case errors.Is(err, mpass.ErrMalformedPayload):
		return badRequest(c, "malformed payload")
	case errors.Is(err, mpass.ErrUnauthorized):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "unauthorized",
		})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "internal server error",
	})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func conflict(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": msg})
}
