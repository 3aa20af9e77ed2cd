// transcripts.go - Transcript CRUD handlers and the mutation policy.
//
// Every mutating route runs the same fixed pipeline and short-circuits
// at the first failure:
//
//	origin check -> id format check -> identity -> rate limit -> mutation
//
// The mutation itself is always scoped by both the row id and the
// authenticated owner; a zero-row match answers 404 whether the row is
// missing or belongs to someone else, so the two cases are
// indistinguishable to the caller.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Rate limit policy for transcript mutations, per authenticated user.
const (
	deleteTranscriptLimit  = 20
	deleteTranscriptWindow = 60 * time.Minute

	updateTitleLimit  = 30
	updateTitleWindow = time.Minute
)

type createTranscriptReq struct {
	Title           string `json:"title"`
	Course          string `json:"course,omitempty"`
	DurationSeconds int    `json:"duration_seconds"`
}

type createTranscriptResp struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	UploadURL string `json:"upload_url,omitempty"`
}

// transcriptsHandler dispatches /api/transcripts and /api/transcripts/{id}.
func (cfg Config) transcriptsHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/transcripts")
		rest = strings.TrimPrefix(rest, "/")

		if rest == "" {
			switch r.Method {
			case http.MethodPost:
				cfg.createTranscript(w, r)
			case http.MethodGet:
				cfg.listTranscripts(w, r)
			default:
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			}
			return
		}

		// Id format is validated before identity resolution: a malformed
		// id is a caller bug and answers 400 no matter who asks.
		id, err := parseResourceID(rest)
		if err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		switch r.Method {
		case http.MethodGet:
			cfg.getTranscript(w, r, id)
		case http.MethodPatch:
			cfg.updateTranscriptTitle(w, r, id)
		case http.MethodDelete:
			cfg.deleteTranscript(w, r, id)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
}

func (cfg Config) createTranscript(w http.ResponseWriter, r *http.Request) {
	userID, err := cfg.Auth.currentUser(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req createTranscriptReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	title, err := validateTitle(req.Title)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	course, err := validateCourse(req.Course)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.DurationSeconds < 0 {
		http.Error(w, "duration must not be negative", http.StatusBadRequest)
		return
	}

	id := uuid.New()
	t := Transcript{
		ID:              id,
		UserID:          userID,
		Title:           title,
		Course:          course,
		DurationSeconds: req.DurationSeconds,
		AudioObjectKey:  audioObjectKey(id.String()),
		Status:          "processing",
	}

	if err := cfg.Transcripts.Create(r.Context(), &t); err != nil {
		Error("transcript_create_failed", map[string]any{"user_id": userID}, err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	uploadURL, err := cfg.Audio.UploadURL(r.Context(), t.AudioObjectKey)
	if err != nil {
		// The row exists; the client can retry the upload separately.
		Error("audio_upload_url_failed", map[string]any{"transcript_id": id.String()}, err)
	}

	GetMetrics().IncTranscriptCreated()
	cfg.Audit.Record(r, AuditActionTranscriptCreate, userID, id.String(), true, "")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(createTranscriptResp{
		ID:        id.String(),
		Status:    t.Status,
		UploadURL: uploadURL,
	})
}

func (cfg Config) listTranscripts(w http.ResponseWriter, r *http.Request) {
	userID, err := cfg.Auth.currentUser(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	list, err := cfg.Transcripts.ListByUser(r.Context(), userID)
	if err != nil {
		Error("transcript_list_failed", map[string]any{"user_id": userID}, err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"transcripts": list})
}

func (cfg Config) getTranscript(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	userID, err := cfg.Auth.currentUser(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	t, err := cfg.Transcripts.Get(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		Error("transcript_get_failed", map[string]any{"transcript_id": id.String()}, err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	playback, err := cfg.Audio.PlaybackURL(r.Context(), t.AudioObjectKey)
	if err != nil {
		Error("audio_playback_url_failed", map[string]any{"transcript_id": id.String()}, err)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"transcript":   t,
		"playback_url": playback,
	})
}

type updateTitleReq struct {
	Title string `json:"title"`
}

func (cfg Config) updateTranscriptTitle(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	userID, err := cfg.Auth.currentUser(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	res := cfg.Limiter.CheckAndIncrement(userKey(userID, "update_title"), updateTitleLimit, updateTitleWindow)
	if !res.Allowed {
		tooManyRequests(w, res)
		return
	}

	var req updateTitleReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	title, err := validateTitle(req.Title)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = cfg.Transcripts.UpdateTitle(r.Context(), id, userID, title)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Missing and not-owned are deliberately the same answer.
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		Error("title_update_failed", map[string]any{"transcript_id": id.String()}, err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	cfg.Audit.Record(r, AuditActionTitleUpdate, userID, id.String(), true, "")

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":    id.String(),
		"title": title,
	})
}

func (cfg Config) deleteTranscript(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	userID, err := cfg.Auth.currentUser(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	res := cfg.Limiter.CheckAndIncrement(userKey(userID, "delete_transcript"), deleteTranscriptLimit, deleteTranscriptWindow)
	if !res.Allowed {
		tooManyRequests(w, res)
		return
	}

	objectKey, err := cfg.Transcripts.Delete(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		Error("transcript_delete_failed", map[string]any{"transcript_id": id.String()}, err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	// Audio cleanup is best-effort: the row is gone, an orphaned object
	// only costs storage and the bucket lifecycle policy will reap it.
	if objectKey != "" {
		if err := cfg.Audio.Remove(r.Context(), objectKey); err != nil {
			Warn("audio_remove_failed", map[string]any{"object_key": objectKey, "err": err.Error()})
		}
	}

	GetMetrics().IncTranscriptDeleted()
	cfg.Audit.Record(r, AuditActionTranscriptDelete, userID, id.String(), true, "")

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":     id.String(),
		"status": "deleted",
	})
}
