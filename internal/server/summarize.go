// summarize.go - AI summarization and exam generation.
//
// One endpoint feeds a transcript to the completion provider and caches
// the result. The pipeline mirrors the transcript mutation policy, with
// an entitlement step in front of the rate limit: Pro subscribers are
// limited only by rate, free accounts also by a monthly allowance.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Summarization rate limit, per authenticated user.
const (
	summarizeLimit  = 10
	summarizeWindow = 60 * time.Minute
)

// summaryCacheTTL bounds how long a generated summary is served from
// cache before the provider is consulted again.
const summaryCacheTTL = 30 * 24 * time.Hour

// CompletionClient is the completion provider consumed by the
// summarization flow. Implementations own their own timeouts/retries.
type CompletionClient interface {
	Complete(ctx context.Context, prompt string) (content string, model string, err error)
}

// httpCompletionClient calls an OpenAI-compatible chat completions API.
type httpCompletionClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewHTTPCompletionClient builds the production CompletionClient from
// config.
func NewHTTPCompletionClient(cfg AppConfig) CompletionClient {
	return &httpCompletionClient{
		baseURL: cfg.CompletionBaseURL,
		apiKey:  cfg.CompletionAPIKey,
		model:   cfg.CompletionModel,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *httpCompletionClient) Complete(ctx context.Context, prompt string) (string, string, error) {
	payload := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", "", fmt.Errorf("completion provider returned %d: %s", resp.StatusCode, string(b))
	}

	var out struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", "", err
	}
	if len(out.Choices) == 0 {
		return "", "", errors.New("completion provider returned no choices")
	}
	return out.Choices[0].Message.Content, out.Model, nil
}

type summarizeReq struct {
	TranscriptID string `json:"transcript_id"`
	Mode         string `json:"mode"` // "summary" or "exam"
}

type summarizeResp struct {
	TranscriptID string `json:"transcript_id"`
	Mode         string `json:"mode"`
	Content      string `json:"content"`
	Cached       bool   `json:"cached"`
}

func summaryPrompt(mode string, t Transcript) string {
	switch mode {
	case "exam":
		return fmt.Sprintf(
			"Write a practice exam (8 questions with answers) for the lecture %q (course: %s).",
			t.Title, t.Course)
	default:
		return fmt.Sprintf(
			"Summarize the lecture %q (course: %s) into concise study notes with key concepts first.",
			t.Title, t.Course)
	}
}

// summarizeHandler handles POST /api/summarize.
func (cfg Config) summarizeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req summarizeReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		id, err := parseResourceID(req.TranscriptID)
		if err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		mode := req.Mode
		if mode == "" {
			mode = "summary"
		}
		if mode != "summary" && mode != "exam" {
			http.Error(w, "mode must be summary or exam", http.StatusBadRequest)
			return
		}

		userID, err := cfg.Auth.currentUser(r)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		// Entitlement: active Pro skips the monthly allowance.
		if !cfg.isPro(r.Context(), userID) {
			monthStart := startOfMonth(time.Now().UTC())
			used, err := cfg.Summaries.CountForUserSince(r.Context(), userID, monthStart)
			if err != nil {
				Error("summary_quota_check_failed", map[string]any{"user_id": userID}, err)
				http.Error(w, "server error", http.StatusInternalServerError)
				return
			}
			if used >= cfg.App.FreeSummariesPerMonth {
				http.Error(w, "monthly summary allowance used, upgrade to Pro", http.StatusPaymentRequired)
				return
			}
		}

		res := cfg.Limiter.CheckAndIncrement(userKey(userID, "summarize"), summarizeLimit, summarizeWindow)
		if !res.Allowed {
			tooManyRequests(w, res)
			return
		}

		// Ownership-scoped read; missing and not-owned both answer 404.
		t, err := cfg.Transcripts.Get(r.Context(), id, userID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			Error("summary_transcript_lookup_failed", map[string]any{"transcript_id": id.String()}, err)
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}

		if cached, err := cfg.Summaries.GetCached(r.Context(), id, mode); err == nil {
			GetMetrics().IncSummaryCacheHit()
			writeSummary(w, summarizeResp{
				TranscriptID: id.String(),
				Mode:         mode,
				Content:      cached.Content,
				Cached:       true,
			})
			return
		} else if !errors.Is(err, ErrNotFound) {
			Error("summary_cache_read_failed", map[string]any{"transcript_id": id.String()}, err)
		}

		content, model, err := cfg.Completion.Complete(r.Context(), summaryPrompt(mode, t))
		if err != nil {
			Error("completion_call_failed", map[string]any{"transcript_id": id.String(), "mode": mode}, err)
			http.Error(w, "server error", http.StatusBadGateway)
			return
		}

		now := time.Now().UTC()
		sum := Summary{
			TranscriptID: id,
			UserID:       userID,
			Mode:         mode,
			Content:      content,
			Model:        model,
			CreatedAt:    now,
			ExpiresAt:    now.Add(summaryCacheTTL),
		}
		if err := cfg.Summaries.Put(r.Context(), sum); err != nil {
			// Serve the result anyway; only caching failed.
			Error("summary_cache_write_failed", map[string]any{"transcript_id": id.String()}, err)
		}

		GetMetrics().IncSummaryGenerated()
		cfg.Audit.Record(r, AuditActionSummaryGenerate, userID, id.String(), true, mode)

		writeSummary(w, summarizeResp{
			TranscriptID: id.String(),
			Mode:         mode,
			Content:      content,
			Cached:       false,
		})
	}
}

func writeSummary(w http.ResponseWriter, resp summarizeResp) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// isPro reports whether the user holds an active Pro subscription. A
// store error degrades to free tier rather than failing the request.
func (cfg Config) isPro(ctx context.Context, userID string) bool {
	sub, err := cfg.Subscriptions.GetByUser(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			Error("subscription_lookup_failed", map[string]any{"user_id": userID}, err)
		}
		return false
	}
	return sub.Active()
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
