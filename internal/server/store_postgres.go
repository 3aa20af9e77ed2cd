// store_postgres.go - Postgres implementations of the data stores.
package server

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// pgTranscriptStore implements TranscriptStore over database/sql with
// the pgx stdlib driver.
type pgTranscriptStore struct {
	db *sql.DB
}

// NewPostgresTranscriptStore wraps a connection pool.
func NewPostgresTranscriptStore(db *sql.DB) TranscriptStore {
	return &pgTranscriptStore{db: db}
}

func (s *pgTranscriptStore) Create(ctx context.Context, t *Transcript) error {
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transcripts (id, user_id, title, course, duration_seconds, audio_object_key, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, t.ID, t.UserID, t.Title, t.Course, t.DurationSeconds, t.AudioObjectKey, t.Status, t.CreatedAt, t.UpdatedAt)
	return err
}

func (s *pgTranscriptStore) Get(ctx context.Context, id uuid.UUID, userID string) (Transcript, error) {
	var t Transcript
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, course, duration_seconds, audio_object_key, status, created_at, updated_at
		FROM transcripts
		WHERE id = $1 AND user_id = $2
	`, id, userID).Scan(&t.ID, &t.UserID, &t.Title, &t.Course, &t.DurationSeconds,
		&t.AudioObjectKey, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return Transcript{}, ErrNotFound
	}
	return t, err
}

func (s *pgTranscriptStore) ListByUser(ctx context.Context, userID string) ([]Transcript, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, course, duration_seconds, audio_object_key, status, created_at, updated_at
		FROM transcripts
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Transcript, 0)
	for rows.Next() {
		var t Transcript
		if err := rows.Scan(&t.ID, &t.UserID, &t.Title, &t.Course, &t.DurationSeconds,
			&t.AudioObjectKey, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *pgTranscriptStore) UpdateTitle(ctx context.Context, id uuid.UUID, userID, title string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE transcripts SET title = $3, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
	`, id, userID, title)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgTranscriptStore) Delete(ctx context.Context, id uuid.UUID, userID string) (string, error) {
	var objectKey string
	err := s.db.QueryRowContext(ctx, `
		DELETE FROM transcripts
		WHERE id = $1 AND user_id = $2
		RETURNING audio_object_key
	`, id, userID).Scan(&objectKey)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return objectKey, err
}

// pgSubscriptionStore implements SubscriptionStore.
type pgSubscriptionStore struct {
	db *sql.DB
}

// NewPostgresSubscriptionStore wraps a connection pool.
func NewPostgresSubscriptionStore(db *sql.DB) SubscriptionStore {
	return &pgSubscriptionStore{db: db}
}

func (s *pgSubscriptionStore) Upsert(ctx context.Context, sub Subscription) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (user_id, customer_id, subscription_id, plan, status, current_period_end, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			customer_id = EXCLUDED.customer_id,
			subscription_id = EXCLUDED.subscription_id,
			plan = EXCLUDED.plan,
			status = EXCLUDED.status,
			current_period_end = EXCLUDED.current_period_end,
			updated_at = NOW()
	`, sub.UserID, sub.CustomerID, sub.SubscriptionID, sub.Plan, sub.Status, sub.CurrentPeriodEnd)
	return err
}

func (s *pgSubscriptionStore) GetByUser(ctx context.Context, userID string) (Subscription, error) {
	var sub Subscription
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, customer_id, subscription_id, plan, status, current_period_end, updated_at
		FROM subscriptions
		WHERE user_id = $1
	`, userID).Scan(&sub.UserID, &sub.CustomerID, &sub.SubscriptionID, &sub.Plan,
		&sub.Status, &sub.CurrentPeriodEnd, &sub.UpdatedAt)
	if err == sql.ErrNoRows {
		return Subscription{}, ErrNotFound
	}
	return sub, err
}

// pgSummaryStore implements SummaryStore.
type pgSummaryStore struct {
	db *sql.DB
}

// NewPostgresSummaryStore wraps a connection pool.
func NewPostgresSummaryStore(db *sql.DB) SummaryStore {
	return &pgSummaryStore{db: db}
}

func (s *pgSummaryStore) GetCached(ctx context.Context, transcriptID uuid.UUID, mode string) (Summary, error) {
	var sum Summary
	err := s.db.QueryRowContext(ctx, `
		SELECT transcript_id, user_id, mode, content, model, created_at, expires_at
		FROM summaries
		WHERE transcript_id = $1 AND mode = $2 AND expires_at > NOW()
	`, transcriptID, mode).Scan(&sum.TranscriptID, &sum.UserID, &sum.Mode,
		&sum.Content, &sum.Model, &sum.CreatedAt, &sum.ExpiresAt)
	if err == sql.ErrNoRows {
		return Summary{}, ErrNotFound
	}
	return sum, err
}

func (s *pgSummaryStore) Put(ctx context.Context, sum Summary) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO summaries (transcript_id, user_id, mode, content, model, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (transcript_id, mode) DO UPDATE SET
			content = EXCLUDED.content,
			model = EXCLUDED.model,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at
	`, sum.TranscriptID, sum.UserID, sum.Mode, sum.Content, sum.Model, sum.CreatedAt, sum.ExpiresAt)
	return err
}

func (s *pgSummaryStore) CountForUserSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM summaries WHERE user_id = $1 AND created_at >= $2
	`, userID, since).Scan(&n)
	return n, err
}

func (s *pgSummaryStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM summaries WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
