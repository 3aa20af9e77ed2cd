// store.go - Data access contracts for transcripts, subscriptions and
// the summary cache.
//
// Handlers depend on these interfaces, not on *sql.DB, so the policy
// tests can run against the in-memory implementations while production
// wires the Postgres ones.
package server

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is the structured not-found signal from any store. The
// route layer maps it to a single 404 regardless of whether the row is
// missing or owned by someone else, so callers cannot probe existence.
var ErrNotFound = errors.New("not found")

// Transcript is one recorded lecture and its transcription metadata.
// The audio itself lives in object storage under AudioObjectKey.
type Transcript struct {
	ID              uuid.UUID `json:"id"`
	UserID          string    `json:"user_id"`
	Title           string    `json:"title"`
	Course          string    `json:"course,omitempty"`
	DurationSeconds int       `json:"duration_seconds"`
	AudioObjectKey  string    `json:"-"`
	Status          string    `json:"status"` // "processing" or "ready"
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TranscriptStore persists transcripts. Every mutation takes both the
// row id and the acting user's id; implementations must filter on both
// (WHERE id = $1 AND user_id = $2) and return ErrNotFound on zero rows.
// An id-only mutation would let one account modify another's rows.
type TranscriptStore interface {
	Create(ctx context.Context, t *Transcript) error
	Get(ctx context.Context, id uuid.UUID, userID string) (Transcript, error)
	ListByUser(ctx context.Context, userID string) ([]Transcript, error)
	UpdateTitle(ctx context.Context, id uuid.UUID, userID, title string) error
	// Delete removes the row and returns its audio object key so the
	// caller can clean up object storage.
	Delete(ctx context.Context, id uuid.UUID, userID string) (string, error)
}

// Subscription is the locally mirrored billing state for one user,
// updated from payment-provider webhook events.
type Subscription struct {
	UserID           string    `json:"user_id"`
	CustomerID       string    `json:"customer_id"`
	SubscriptionID   string    `json:"subscription_id"`
	Plan             string    `json:"plan"`   // "free" or "pro"
	Status           string    `json:"status"` // active, trialing, past_due, canceled
	CurrentPeriodEnd time.Time `json:"current_period_end"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Active reports whether the subscription currently grants Pro access.
func (s Subscription) Active() bool {
	return s.Plan == "pro" && (s.Status == "active" || s.Status == "trialing")
}

// SubscriptionStore mirrors provider billing state.
type SubscriptionStore interface {
	Upsert(ctx context.Context, sub Subscription) error
	GetByUser(ctx context.Context, userID string) (Subscription, error)
}

// Summary is a cached completion-provider result for one transcript and
// mode. Cached rows are served instead of re-calling the provider.
type Summary struct {
	TranscriptID uuid.UUID `json:"transcript_id"`
	UserID       string    `json:"user_id"`
	Mode         string    `json:"mode"` // "summary" or "exam"
	Content      string    `json:"content"`
	Model        string    `json:"model"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// SummaryStore caches generated summaries and tracks monthly usage for
// free-tier quota enforcement.
type SummaryStore interface {
	GetCached(ctx context.Context, transcriptID uuid.UUID, mode string) (Summary, error)
	Put(ctx context.Context, s Summary) error
	CountForUserSince(ctx context.Context, userID string, since time.Time) (int, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
