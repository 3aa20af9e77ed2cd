// store_memory.go - In-memory store implementations.
//
// Used by the handler tests and by local development without Postgres.
// Semantics mirror the Postgres stores, including the dual-key filter
// on mutations and ErrNotFound on zero matching rows.
package server

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memTranscriptStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]Transcript
}

// NewMemoryTranscriptStore returns an empty in-memory TranscriptStore.
func NewMemoryTranscriptStore() TranscriptStore {
	return &memTranscriptStore{rows: make(map[uuid.UUID]Transcript)}
}

func (s *memTranscriptStore) Create(_ context.Context, t *Transcript) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	s.rows[t.ID] = *t
	return nil
}

func (s *memTranscriptStore) Get(_ context.Context, id uuid.UUID, userID string) (Transcript, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.rows[id]
	if !ok || t.UserID != userID {
		return Transcript{}, ErrNotFound
	}
	return t, nil
}

func (s *memTranscriptStore) ListByUser(_ context.Context, userID string) ([]Transcript, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Transcript, 0)
	for _, t := range s.rows {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *memTranscriptStore) UpdateTitle(_ context.Context, id uuid.UUID, userID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.rows[id]
	if !ok || t.UserID != userID {
		return ErrNotFound
	}
	t.Title = title
	t.UpdatedAt = time.Now().UTC()
	s.rows[id] = t
	return nil
}

func (s *memTranscriptStore) Delete(_ context.Context, id uuid.UUID, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.rows[id]
	if !ok || t.UserID != userID {
		return "", ErrNotFound
	}
	delete(s.rows, id)
	return t.AudioObjectKey, nil
}

type memSubscriptionStore struct {
	mu   sync.Mutex
	subs map[string]Subscription
}

// NewMemorySubscriptionStore returns an empty in-memory SubscriptionStore.
func NewMemorySubscriptionStore() SubscriptionStore {
	return &memSubscriptionStore{subs: make(map[string]Subscription)}
}

func (s *memSubscriptionStore) Upsert(_ context.Context, sub Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub.UpdatedAt = time.Now().UTC()
	s.subs[sub.UserID] = sub
	return nil
}

func (s *memSubscriptionStore) GetByUser(_ context.Context, userID string) (Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[userID]
	if !ok {
		return Subscription{}, ErrNotFound
	}
	return sub, nil
}

type summaryKey struct {
	id   uuid.UUID
	mode string
}

type memSummaryStore struct {
	mu   sync.Mutex
	rows map[summaryKey]Summary
}

// NewMemorySummaryStore returns an empty in-memory SummaryStore.
func NewMemorySummaryStore() SummaryStore {
	return &memSummaryStore{rows: make(map[summaryKey]Summary)}
}

func (s *memSummaryStore) GetCached(_ context.Context, transcriptID uuid.UUID, mode string) (Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum, ok := s.rows[summaryKey{transcriptID, mode}]
	if !ok || !time.Now().Before(sum.ExpiresAt) {
		return Summary{}, ErrNotFound
	}
	return sum, nil
}

func (s *memSummaryStore) Put(_ context.Context, sum Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[summaryKey{sum.TranscriptID, sum.Mode}] = sum
	return nil
}

func (s *memSummaryStore) CountForUserSince(_ context.Context, userID string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sum := range s.rows {
		if sum.UserID == userID && !sum.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *memSummaryStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, sum := range s.rows {
		if !now.Before(sum.ExpiresAt) {
			delete(s.rows, k)
			n++
		}
	}
	return n, nil
}
