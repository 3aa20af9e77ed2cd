// server.go - HTTP server assembly and routing.
package server

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"time"
)

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version string
	Commit  string
}

// Config carries every dependency the handlers need. main wires the
// production implementations; tests substitute memory stores and a stub
// completion client.
type Config struct {
	App   AppConfig
	Build BuildInfo

	Auth    AuthConfig
	Origins *OriginPolicy
	Limiter *RateLimiter

	Transcripts   TranscriptStore
	Subscriptions SubscriptionStore
	Summaries     SummaryStore
	Audio         AudioStore
	Completion    CompletionClient
	Audit         *AuditLogger

	BillingWebhookSecret string

	DB *sql.DB
}

// Server wraps the http.Server plus background workers.
type Server struct {
	httpServer  *http.Server
	cfg         Config
	stopCleanup func()
}

// New assembles the route table and middleware chain.
func New(cfg Config) *Server {
	if cfg.Auth.Limiter == nil {
		cfg.Auth.Limiter = cfg.Limiter
	}
	if cfg.Auth.Audit == nil {
		cfg.Auth.Audit = cfg.Audit
	}

	mux := http.NewServeMux()

	// Probes and metrics
	mux.HandleFunc("/health", healthHandler)
	mux.Handle("/ready", readyHandler(cfg.DB, cfg.Audio, cfg.Build.Version))
	mux.Handle("/metrics", metricsHandler(cfg.Build.Version))

	// Auth
	mux.Handle("/auth/login", cfg.Origins.requireOrigin(cfg.Auth.loginHandler()))
	mux.Handle("/auth/logout", cfg.Origins.requireOrigin(cfg.Auth.logoutHandler()))

	// Transcripts: origin validation runs first on every mutating
	// method, before the handler's own id/identity/rate-limit steps.
	mux.Handle("/api/transcripts", cfg.Origins.requireOrigin(cfg.transcriptsHandler()))
	mux.Handle("/api/transcripts/", cfg.Origins.requireOrigin(cfg.transcriptsHandler()))

	// AI summarization
	mux.Handle("/api/summarize", cfg.Origins.requireOrigin(cfg.summarizeHandler()))
	mux.Handle("/api/usage", cfg.usageHandler())

	// Billing webhooks are server-to-server: authenticated by the
	// signature header, not by browser origin.
	billing := BillingConfig{
		WebhookSecret: cfg.BillingWebhookSecret,
		Subscriptions: cfg.Subscriptions,
		Audit:         cfg.Audit,
	}
	mux.Handle("/webhooks/billing", billing.webhookHandler())

	// Wrap middleware: requestID -> logging -> recover -> headers -> mux
	var handler http.Handler = mux
	handler = securityHeadersMiddleware(handler)
	handler = recoverMiddleware(handler)
	handler = loggingMiddleware(handler)
	handler = requestIDMiddleware(handler)

	s := &http.Server{
		Addr:              cfg.App.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv := &Server{httpServer: s, cfg: cfg}
	if cfg.Summaries != nil {
		srv.stopCleanup = startSummaryCleanup(cfg.Summaries)
	}
	return srv
}

// Handler exposes the composed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.httpServer.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.stopCleanup != nil {
		s.stopCleanup()
	}
	if s.cfg.Limiter != nil {
		s.cfg.Limiter.Close()
	}
	return s.httpServer.Shutdown(ctx)
}
