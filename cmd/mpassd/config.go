package main

import (
	"errors"
	"flag"
	"os"
	"strconv"
	"time"
)

// serverConfig is the binary's full configuration. Defaults are overlaid
// with environment variables, which are overlaid with flags.
type serverConfig struct {
	ListenAddr string
	BaseURL    string

	DatabaseDSN string
	RedisAddr   string
	RedisDB     int

	SigningKey string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPSender   string
	SMTPSSL      bool

	SessionTTL       time.Duration
	LockoutThreshold int

	RateLimit  int
	RateWindow time.Duration
	CORS       string
}

func defaultServerConfig() serverConfig {
	return serverConfig{
		ListenAddr:       ":8080",
		BaseURL:          "http://localhost:8080",
		RedisAddr:        "localhost:6379",
		SMTPPort:         587,
		SessionTTL:       30 * time.Minute,
		LockoutThreshold: 3,
		RateLimit:        100,
		RateWindow:       time.Minute,
	}
}

func loadConfig(args []string) (serverConfig, error) {
	cfg := defaultServerConfig()
	cfg.applyEnv()

	fs := flag.NewFlagSet("mpassd", flag.ContinueOnError)
	fs.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "listen address")
	fs.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "public base URL used in unlock links")
	fs.StringVar(&cfg.DatabaseDSN, "database-dsn", cfg.DatabaseDSN, "postgres connection string")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "redis address")
	fs.IntVar(&cfg.RedisDB, "redis-db", cfg.RedisDB, "redis database number")
	fs.StringVar(&cfg.SigningKey, "signing-key", cfg.SigningKey, "session token signing key")
	fs.StringVar(&cfg.SMTPHost, "smtp-host", cfg.SMTPHost, "smtp host")
	fs.IntVar(&cfg.SMTPPort, "smtp-port", cfg.SMTPPort, "smtp port")
	fs.StringVar(&cfg.SMTPSender, "smtp-sender", cfg.SMTPSender, "mail from address")
	fs.DurationVar(&cfg.SessionTTL, "session-ttl", cfg.SessionTTL, "session lifetime")
	fs.IntVar(&cfg.LockoutThreshold, "lockout-threshold", cfg.LockoutThreshold, "failed logins before lock")
	fs.IntVar(&cfg.RateLimit, "rate-limit", cfg.RateLimit, "requests per window per IP, 0 disables")
	fs.DurationVar(&cfg.RateWindow, "rate-window", cfg.RateWindow, "rate limiter window")
	fs.StringVar(&cfg.CORS, "cors-origins", cfg.CORS, "comma-separated CORS allow list")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	return cfg, cfg.validate()
}

func (c *serverConfig) applyEnv() {
	envString("MPASS_LISTEN", &c.ListenAddr)
	envString("MPASS_BASE_URL", &c.BaseURL)
	envString("MPASS_DATABASE_DSN", &c.DatabaseDSN)
	envString("MPASS_REDIS_ADDR", &c.RedisAddr)
	envInt("MPASS_REDIS_DB", &c.RedisDB)
	envString("MPASS_SIGNING_KEY", &c.SigningKey)
	envString("MPASS_SMTP_HOST", &c.SMTPHost)
	envInt("MPASS_SMTP_PORT", &c.SMTPPort)
	envString("MPASS_SMTP_USERNAME", &c.SMTPUsername)
	envString("MPASS_SMTP_PASSWORD", &c.SMTPPassword)
	envString("MPASS_SMTP_SENDER", &c.SMTPSender)
	envBool("MPASS_SMTP_SSL", &c.SMTPSSL)
	envDuration("MPASS_SESSION_TTL", &c.SessionTTL)
	envInt("MPASS_LOCKOUT_THRESHOLD", &c.LockoutThreshold)
	envInt("MPASS_RATE_LIMIT", &c.RateLimit)
	envDuration("MPASS_RATE_WINDOW", &c.RateWindow)
	envString("MPASS_CORS_ORIGINS", &c.CORS)
}

func (c serverConfig) validate() error {
	if c.DatabaseDSN == "" {
		return errors.New("database DSN is required (MPASS_DATABASE_DSN or -database-dsn)")
	}
	if c.SigningKey == "" {
		return errors.New("signing key is required (MPASS_SIGNING_KEY or -signing-key)")
	}
	if c.SMTPHost == "" {
		return errors.New("smtp host is required (MPASS_SMTP_HOST or -smtp-host)")
	}
	if c.SMTPSender == "" {
		return errors.New("smtp sender is required (MPASS_SMTP_SENDER or -smtp-sender)")
	}
	return nil
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(key string, dst *bool) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
