// audit.go - Durable audit trail for state-changing actions.
package server

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of action being audited
type AuditAction string

const (
	AuditActionLogin              AuditAction = "login"
	AuditActionTranscriptCreate   AuditAction = "transcript_create"
	AuditActionTranscriptDelete   AuditAction = "transcript_delete"
	AuditActionTitleUpdate        AuditAction = "title_update"
	AuditActionSubscriptionChange AuditAction = "subscription_change"
	AuditActionSummaryGenerate    AuditAction = "summary_generate"
)

// AuditLogger writes audit rows. A nil receiver or nil DB disables
// auditing (tests, local development), so callers never guard for it.
type AuditLogger struct {
	db *sql.DB
}

// NewAuditLogger wraps a connection pool.
func NewAuditLogger(db *sql.DB) *AuditLogger {
	return &AuditLogger{db: db}
}

// Record persists one audit entry. Failures are logged, never surfaced:
// an audit write must not fail the action it describes.
func (a *AuditLogger) Record(r *http.Request, action AuditAction, userID, resource string, success bool, detail string) {
	if a == nil || a.db == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := a.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, action, user_id, ip_address, user_agent, resource, success, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, uuid.New(), string(action), userID, getClientIP(r), r.UserAgent(), resource, success, detail, time.Now().UTC())
	if err != nil {
		Error("audit_write_failed", map[string]any{"action": string(action)}, err)
	}
}
