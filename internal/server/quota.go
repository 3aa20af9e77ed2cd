// quota.go - Per-user AI usage reporting endpoint.
//
// Exposes the month's summary usage and plan so the study UI can show
// remaining allowance and an upgrade prompt.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// usageHandler handles GET /api/usage.
func (cfg Config) usageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		userID, err := cfg.Auth.currentUser(r)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		used, err := cfg.Summaries.CountForUserSince(r.Context(), userID, startOfMonth(time.Now().UTC()))
		if err != nil {
			Error("usage_query_failed", map[string]any{"user_id": userID}, err)
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}

		plan := "free"
		limit := cfg.App.FreeSummariesPerMonth
		sub, err := cfg.Subscriptions.GetByUser(r.Context(), userID)
		if err == nil && sub.Active() {
			plan = sub.Plan
			limit = 0 // 0 means unlimited in the response
		} else if err != nil && !errors.Is(err, ErrNotFound) {
			Error("usage_subscription_lookup_failed", map[string]any{"user_id": userID}, err)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"plan":                  plan,
			"summaries_used_month":  used,
			"summaries_limit_month": limit,
			"window_resets_at":      startOfMonth(time.Now().UTC()).AddDate(0, 1, 0),
		})
	}
}
