package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestSummarize_GeneratesAndCaches(t *testing.T) {
	h := newTestHarness(t)
	id := h.seed(t, "user-1", "Linear Algebra, week 2")

	rr := h.do(t, http.MethodPost, "/api/summarize", "user-1",
		summarizeReq{TranscriptID: id.String(), Mode: "summary"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp summarizeResp
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Cached {
		t.Error("first call should not be served from cache")
	}
	if resp.Content == "" {
		t.Error("content should not be empty")
	}
	if h.completion.calls != 1 {
		t.Fatalf("provider calls = %d, want 1", h.completion.calls)
	}

	// Second call for the same transcript+mode hits the cache.
	rr = h.do(t, http.MethodPost, "/api/summarize", "user-1",
		summarizeReq{TranscriptID: id.String(), Mode: "summary"})
	if rr.Code != http.StatusOK {
		t.Fatalf("second call: expected 200, got %d", rr.Code)
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Cached {
		t.Error("second call should be served from cache")
	}
	if h.completion.calls != 1 {
		t.Errorf("provider calls = %d, want still 1", h.completion.calls)
	}

	// A different mode is a different cache entry.
	rr = h.do(t, http.MethodPost, "/api/summarize", "user-1",
		summarizeReq{TranscriptID: id.String(), Mode: "exam"})
	if rr.Code != http.StatusOK {
		t.Fatalf("exam mode: expected 200, got %d", rr.Code)
	}
	if h.completion.calls != 2 {
		t.Errorf("provider calls = %d, want 2", h.completion.calls)
	}
}

func TestSummarize_Validation(t *testing.T) {
	h := newTestHarness(t)
	id := h.seed(t, "user-1", "lecture")

	rr := h.do(t, http.MethodPost, "/api/summarize", "user-1",
		summarizeReq{TranscriptID: "nope", Mode: "summary"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("malformed id: expected 400, got %d", rr.Code)
	}

	rr = h.do(t, http.MethodPost, "/api/summarize", "user-1",
		summarizeReq{TranscriptID: id.String(), Mode: "poem"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("unknown mode: expected 400, got %d", rr.Code)
	}

	// Someone else's transcript answers 404, same as a missing one.
	rr = h.do(t, http.MethodPost, "/api/summarize", "user-2",
		summarizeReq{TranscriptID: id.String(), Mode: "summary"})
	if rr.Code != http.StatusNotFound {
		t.Errorf("not-owned transcript: expected 404, got %d", rr.Code)
	}
}

func TestSummarize_FreeTierAllowance(t *testing.T) {
	h := newTestHarness(t)

	// Burn the monthly allowance (5 in the test config) on distinct
	// transcripts so the cache cannot absorb the calls.
	for i := 0; i < 5; i++ {
		id := h.seed(t, "user-1", "lecture")
		rr := h.do(t, http.MethodPost, "/api/summarize", "user-1",
			summarizeReq{TranscriptID: id.String()})
		if rr.Code != http.StatusOK {
			t.Fatalf("summary %d: expected 200, got %d", i+1, rr.Code)
		}
	}

	id := h.seed(t, "user-1", "lecture")
	rr := h.do(t, http.MethodPost, "/api/summarize", "user-1",
		summarizeReq{TranscriptID: id.String()})
	if rr.Code != http.StatusPaymentRequired {
		t.Fatalf("over allowance: expected 402, got %d", rr.Code)
	}

	// An active Pro subscription lifts the allowance.
	err := h.subs.Upsert(context.Background(), Subscription{
		UserID: "user-1", Plan: "pro", Status: "active",
		CurrentPeriodEnd: time.Now().Add(30 * 24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("upsert subscription: %v", err)
	}
	rr = h.do(t, http.MethodPost, "/api/summarize", "user-1",
		summarizeReq{TranscriptID: id.String()})
	if rr.Code != http.StatusOK {
		t.Errorf("pro user: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestSummarize_ProviderFailure(t *testing.T) {
	h := newTestHarness(t)
	h.completion.err = errors.New("provider is down")
	id := h.seed(t, "user-1", "lecture")

	rr := h.do(t, http.MethodPost, "/api/summarize", "user-1",
		summarizeReq{TranscriptID: id.String()})
	if rr.Code != http.StatusBadGateway {
		t.Errorf("provider failure: expected 502, got %d", rr.Code)
	}
	// The provider error text must not leak to the client.
	if body := rr.Body.String(); body != "server error\n" {
		t.Errorf("client-visible body = %q, want generic message", body)
	}
}

func TestUsageEndpoint(t *testing.T) {
	h := newTestHarness(t)
	id := h.seed(t, "user-1", "lecture")

	rr := h.do(t, http.MethodPost, "/api/summarize", "user-1",
		summarizeReq{TranscriptID: id.String()})
	if rr.Code != http.StatusOK {
		t.Fatalf("summarize: expected 200, got %d", rr.Code)
	}

	rr = h.do(t, http.MethodGet, "/api/usage", "user-1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("usage: expected 200, got %d", rr.Code)
	}
	var usage struct {
		Plan  string `json:"plan"`
		Used  int    `json:"summaries_used_month"`
		Limit int    `json:"summaries_limit_month"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &usage); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if usage.Plan != "free" || usage.Used != 1 || usage.Limit != 5 {
		t.Errorf("usage = %+v, want free/1/5", usage)
	}
}

func TestStartOfMonth(t *testing.T) {
	ts := time.Date(2025, 6, 17, 13, 45, 0, 0, time.UTC)
	want := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	if got := startOfMonth(ts); !got.Equal(want) {
		t.Errorf("startOfMonth = %v, want %v", got, want)
	}
}

func TestSummaryPrompt_Modes(t *testing.T) {
	tr := Transcript{ID: uuid.New(), Title: "Sorting", Course: "CS101"}
	if p := summaryPrompt("summary", tr); p == summaryPrompt("exam", tr) {
		t.Error("summary and exam prompts should differ")
	}
}
