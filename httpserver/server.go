// Package httpserver exposes the engine over HTTP.
package httpserver

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/MrEthical07/mpass"
	"github.com/MrEthical07/mpass/middleware"
)

const adminPrefix = "/admin"

// Config holds the HTTP-layer settings.
type Config struct {
	// CORSOrigins is the comma-separated allow list; empty allows any.
	CORSOrigins string

	// RateLimit is the per-IP request budget per RateWindow; 0 disables
	// the limiter.
	RateLimit  int
	RateWindow time.Duration
}

// New builds the fiber application with every route wired to the engine.
func New(engine *mpass.Engine, cfg Config) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "mpass",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	app.Use(cors.New(cors.Config{AllowOrigins: corsOrigins(cfg)}))
	if cfg.RateLimit > 0 {
		window := cfg.RateWindow
		if window <= 0 {
			window = time.Minute
		}
		app.Use(limiter.New(limiter.Config{
			Max:        cfg.RateLimit,
			Expiration: window,
		}))
	}

	h := &handlers{engine: engine}

	auth := app.Group("/auth")
	auth.Post("/register", h.register)
	auth.Post("/email/verify", h.verifyEmail)
	auth.Post("/email/resend", h.resendCode)

	login := auth.Group("/login")
	login.Post("/request-salt", h.requestSalt)
	login.Post("/send-credentials", h.sendCredentials)
	login.Post("/verify-proof", h.verifyProof)

	// Reached from the emailed link, so it must work without a session.
	app.Get("/account/:email/unlock/:token", h.unlock)

	guarded := app.Group("", middleware.Session(engine, adminPrefix))
	guarded.Get("/@me", h.me)
	guarded.Post("/@me/deauthorize-sessions", h.deauthorizeSessions)
	guarded.Get(adminPrefix+"/users", h.listUsers)

	return app
}

func corsOrigins(cfg Config) string {
	if cfg.CORSOrigins == "" {
		return "*"
	}
	return cfg.CORSOrigins
}
