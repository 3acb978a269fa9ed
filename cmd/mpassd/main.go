// Command mpassd runs the credential-store server: Postgres for identities,
// Redis for login state and sessions, SMTP for account mail.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/mpass"
	"github.com/MrEthical07/mpass/httpserver"
	"github.com/MrEthical07/mpass/notify"
	"github.com/MrEthical07/mpass/postgres"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := run(log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgres.RunMigrations(ctx, db); err != nil {
		return err
	}
	log.Info("database ready")

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return err
	}
	log.Info("redis ready", "addr", cfg.RedisAddr)

	notifier, err := notify.NewSMTP(notify.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		Sender:   cfg.SMTPSender,
		SSL:      cfg.SMTPSSL,
	})
	if err != nil {
		return err
	}

	engineCfg := mpass.DefaultConfig()
	engineCfg.SigningKey = []byte(cfg.SigningKey)
	engineCfg.SessionTTL = cfg.SessionTTL
	engineCfg.LockoutThreshold = cfg.LockoutThreshold
	engineCfg.BaseURL = cfg.BaseURL

	engine, err := mpass.New().
		WithConfig(engineCfg).
		WithRedis(rdb).
		WithIdentityStore(postgres.NewIdentityStore(db)).
		WithNotifier(notifier).
		WithLogger(log).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	app := httpserver.New(engine, httpserver.Config{
		CORSOrigins: cfg.CORS,
		RateLimit:   cfg.RateLimit,
		RateWindow:  cfg.RateWindow,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.ListenAddr)
		errCh <- app.Listen(cfg.ListenAddr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	return app.ShutdownWithTimeout(10 * time.Second)
}
