package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lecsy-server/internal/db"
	"lecsy-server/internal/server"
)

func main() {
	cfg := server.LoadConfig()

	// Safety: refuse to start on a broken configuration.
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			server.Error("config_invalid", map[string]any{"field": e.Field, "message": e.Message}, nil)
		}
		os.Exit(1)
	}

	build := server.BuildInfo{
		Version: getenvDefault("LECSY_VERSION", "dev"),
		Commit:  getenvDefault("LECSY_COMMIT", "unknown"),
	}

	dbConn, err := server.OpenDB(cfg.DatabaseURL)
	if err != nil {
		server.Error("db_connect_failed", nil, err)
		os.Exit(1)
	}
	defer func() { _ = dbConn.Close() }()

	server.Info("running_migrations", nil)
	if err := db.RunMigrations(dbConn); err != nil {
		server.Error("migration_failed", nil, err)
		os.Exit(1)
	}
	server.Info("migrations_complete", nil)

	audio, err := server.NewMinioAudioStore(cfg)
	if err != nil {
		if cfg.DevMode() {
			// Local development without MinIO: metadata still works,
			// audio upload/playback URLs come back empty.
			server.Warn("object_storage_unavailable", map[string]any{"err": err.Error()})
			audio = server.NewNullAudioStore()
		} else {
			server.Error("object_storage_connect_failed", nil, err)
			os.Exit(1)
		}
	}

	auth := server.AuthConfig{
		SessionSecret: cfg.SessionSecret,
		SessionTTL:    cfg.SessionTTL,
		CookieName:    cfg.CookieName,
		DB:            dbConn,
		Lockout:       server.NewAccountLockout(5, 15*time.Minute, 10*time.Minute),
	}

	srv := server.New(server.Config{
		App:                  cfg,
		Build:                build,
		Auth:                 auth,
		Origins:              server.NewOriginPolicy(cfg.AllowedOrigins, cfg.ExtraOrigins, cfg.DevMode()),
		Limiter:              server.NewRateLimiter(nil),
		Transcripts:          server.NewPostgresTranscriptStore(dbConn),
		Subscriptions:        server.NewPostgresSubscriptionStore(dbConn),
		Summaries:            server.NewPostgresSummaryStore(dbConn),
		Audio:                audio,
		Completion:           server.NewHTTPCompletionClient(cfg),
		Audit:                server.NewAuditLogger(dbConn),
		BillingWebhookSecret: os.Getenv("LECSY_BILLING_WEBHOOK_SECRET"),
		DB:                   dbConn,
	})

	errCh := make(chan error, 1)
	go func() {
		server.Info("starting", map[string]any{
			"addr":    cfg.Addr,
			"env":     cfg.Env,
			"version": build.Version,
			"commit":  build.Commit,
		})
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		server.Info("shutting_down", map[string]any{"signal": sig.String()})
		// Give the server 5 seconds to finish in-flight requests.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			server.Error("shutdown_error", nil, err)
			os.Exit(1)
		}
		server.Info("shutdown_complete", nil)
	case err := <-errCh:
		if err != nil {
			server.Error("server_error", nil, err)
			os.Exit(1)
		}
	}
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}
