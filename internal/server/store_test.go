package server

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestMemoryTranscriptStore_OwnershipFilter(t *testing.T) {
	s := NewMemoryTranscriptStore()
	ctx := context.Background()

	id := uuid.New()
	err := s.Create(ctx, &Transcript{ID: id, UserID: "u1", Title: "t", AudioObjectKey: "audio/x"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Reads and mutations by a non-owner behave exactly like a missing row.
	if _, err := s.Get(ctx, id, "u2"); err != ErrNotFound {
		t.Errorf("non-owner get: err = %v, want ErrNotFound", err)
	}
	if err := s.UpdateTitle(ctx, id, "u2", "x"); err != ErrNotFound {
		t.Errorf("non-owner update: err = %v, want ErrNotFound", err)
	}
	if _, err := s.Delete(ctx, id, "u2"); err != ErrNotFound {
		t.Errorf("non-owner delete: err = %v, want ErrNotFound", err)
	}

	key, err := s.Delete(ctx, id, "u1")
	if err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if key != "audio/x" {
		t.Errorf("delete returned object key %q, want audio/x", key)
	}
}

func TestMemorySummaryStore_ExpiryAndCleanup(t *testing.T) {
	s := NewMemorySummaryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	live := Summary{TranscriptID: uuid.New(), UserID: "u1", Mode: "summary",
		Content: "a", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	stale := Summary{TranscriptID: uuid.New(), UserID: "u1", Mode: "summary",
		Content: "b", CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)}
	_ = s.Put(ctx, live)
	_ = s.Put(ctx, stale)

	if _, err := s.GetCached(ctx, stale.TranscriptID, "summary"); err != ErrNotFound {
		t.Errorf("expired row should read as absent, got err = %v", err)
	}
	if _, err := s.GetCached(ctx, live.TranscriptID, "summary"); err != nil {
		t.Errorf("live row should be readable: %v", err)
	}

	n, err := s.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}

	// Usage counting only sees rows created in the window.
	used, err := s.CountForUserSince(ctx, "u1", now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("CountForUserSince: %v", err)
	}
	if used != 1 {
		t.Errorf("used = %d, want 1", used)
	}
}
