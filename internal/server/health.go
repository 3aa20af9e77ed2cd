// health.go - Liveness and readiness checks.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// HealthStatus represents the overall health of the system
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ComponentHealth represents the health of a single system component
type ComponentHealth struct {
	Status    string `json:"status"` // "up" or "down"
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// Health is the readiness response body.
type Health struct {
	Status     HealthStatus               `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components"`
}

// healthHandler is the liveness probe: the process is up.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
}

// readyHandler probes the database and object storage. Postgres down
// means unhealthy (nothing works without it); object storage down only
// degrades, since reads of metadata still function.
func readyHandler(db *sql.DB, audio AudioStore, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		h := Health{
			Status:     HealthStatusHealthy,
			Timestamp:  time.Now().UTC(),
			Version:    version,
			Components: make(map[string]ComponentHealth),
		}

		h.Components["postgres"] = probe(func() error {
			if db == nil {
				return errors.New("not configured")
			}
			return db.PingContext(ctx)
		})
		if h.Components["postgres"].Status == "down" {
			h.Status = HealthStatusUnhealthy
		}

		h.Components["object_storage"] = probe(func() error { return audio.Healthy(ctx) })
		if h.Components["object_storage"].Status == "down" && h.Status == HealthStatusHealthy {
			h.Status = HealthStatusDegraded
		}

		code := http.StatusOK
		if h.Status == HealthStatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(h)
	}
}

func probe(fn func() error) ComponentHealth {
	start := time.Now()
	err := fn()
	c := ComponentHealth{
		Status:    "up",
		LatencyMS: time.Since(start).Milliseconds(),
	}
	if err != nil {
		c.Status = "down"
		c.Error = err.Error()
	}
	return c
}
