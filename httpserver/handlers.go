package httpserver

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"

	"github.com/MrEthical07/mpass"
	"github.com/MrEthical07/mpass/middleware"
)

type handlers struct {
	engine *mpass.Engine
}

// ---- registration and verification ----

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Salt     string `json:"salt"`
	Verifier string `json:"verifier"`
}

func (r registerRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Username, validation.Length(0, 64)),
		validation.Field(&r.Salt, validation.Required, is.Base64),
		validation.Field(&r.Verifier, validation.Required, is.Base64),
	)
}

func (h *handlers) register(c *fiber.Ctx) error {
	var req registerRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	res, err := h.engine.Register(c.UserContext(), mpass.RegisterRequest{
		Email:    req.Email,
		Username: req.Username,
		Salt:     req.Salt,
		Verifier: req.Verifier,
	})
	if err != nil {
		return mapError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"verificationRequired": res.VerificationRequired,
		"admin":                res.Admin,
	})
}

type verifyEmailRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (r verifyEmailRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Code, validation.Required, is.Digit, validation.Length(6, 10)),
	)
}

func (h *handlers) verifyEmail(c *fiber.Ctx) error {
	var req verifyEmailRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.engine.VerifyEmail(c.UserContext(), req.Email, req.Code); err != nil {
		return mapError(c, err)
	}
	return c.JSON(fiber.Map{"message": "email verified"})
}

type emailRequest struct {
	Email string `json:"email"`
}

func (r emailRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

func (h *handlers) resendCode(c *fiber.Ctx) error {
	var req emailRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.engine.ResendVerificationCode(c.UserContext(), req.Email); err != nil {
		return mapError(c, err)
	}
	return c.JSON(fiber.Map{"message": "verification code sent"})
}

// ---- the three-step login ----

func (h *handlers) requestSalt(c *fiber.Ctx) error {
	var req emailRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	salt, err := h.engine.RequestSalt(c.UserContext(), req.Email)
	if err != nil {
		// The salt step is the only one gated by the lock, and the only
		// one that reports it as a rate-limit condition.
		if errors.Is(err, mpass.ErrAccountLocked) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "account locked",
			})
		}
		return mapError(c, err)
	}
	return c.JSON(fiber.Map{"salt": salt})
}

type credentialsRequest struct {
	Email        string `json:"email"`
	ClientPublic string `json:"clientPublic"`
}

func (r credentialsRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.ClientPublic, validation.Required, is.Hexadecimal),
	)
}

func (h *handlers) sendCredentials(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	serverPublic, err := h.engine.BeginExchange(c.UserContext(), req.Email, req.ClientPublic)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(fiber.Map{"serverPublic": serverPublic})
}

type proofRequest struct {
	Email          string `json:"email"`
	ClientEvidence string `json:"clientEvidence"`
}

func (r proofRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.ClientEvidence, validation.Required, is.Hexadecimal),
	)
}

func (h *handlers) verifyProof(c *fiber.Ctx) error {
	var req proofRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	res, err := h.engine.CompleteExchange(c.UserContext(), req.Email, req.ClientEvidence)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(fiber.Map{
		"serverEvidence": res.ServerEvidence,
		"token":          res.Token,
		"sessionId":      res.SessionID,
		"expiresAt":      res.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (h *handlers) unlock(c *fiber.Ctx) error {
	email, err := paramString(c, "email")
	if err != nil {
		return err
	}
	token, err := paramString(c, "token")
	if err != nil {
		return err
	}

	if err := h.engine.Unlock(c.UserContext(), email, token); err != nil {
		return mapError(c, err)
	}
	return c.JSON(fiber.Map{"message": "account unlocked"})
}

// ---- session-guarded routes ----

func (h *handlers) me(c *fiber.Ctx) error {
	info := middleware.SessionFromCtx(c)
	id, err := h.engine.Account(c.UserContext(), info.Email)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(identityView(id))
}

func (h *handlers) deauthorizeSessions(c *fiber.Ctx) error {
	info := middleware.SessionFromCtx(c)
	revoked, err := h.engine.DeauthorizeAll(c.UserContext(), info.Email)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(fiber.Map{"revoked": revoked})
}

func (h *handlers) listUsers(c *fiber.Ctx) error {
	list, err := h.engine.ListAccounts(c.UserContext())
	if err != nil {
		return mapError(c, err)
	}
	views := make([]fiber.Map, 0, len(list))
	for i := range list {
		views = append(views, identityView(&list[i]))
	}
	return c.JSON(fiber.Map{"users": views})
}

// identityView omits the credential material; salt travels only through the
// login flow and the verifier never leaves the server.
func identityView(id *mpass.Identity) fiber.Map {
	view := fiber.Map{
		"id":            id.ID,
		"email":         id.Email,
		"username":      id.Username,
		"admin":         id.Admin,
		"emailVerified": id.EmailVerified,
		"createdAt":     id.CreatedAt.UTC().Format(time.RFC3339),
	}
	if id.LastLogin != nil {
		view["lastLogin"] = id.LastLogin.UTC().Format(time.RFC3339)
	}
	return view
}
