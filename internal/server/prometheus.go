// prometheus.go - Text-format metrics exporter for /metrics.
package server

import (
	"fmt"
	"net/http"
	"strings"
)

// metricsHandler renders the counter snapshot in Prometheus text format.
func metricsHandler(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		s := GetMetrics().Snapshot()

		var out strings.Builder
		out.WriteString("# HELP lecsy_info Application version info\n")
		out.WriteString("# TYPE lecsy_info gauge\n")
		fmt.Fprintf(&out, "lecsy_info{version=%q} 1\n\n", version)

		writeCounter(&out, "lecsy_requests_total", "Total HTTP requests", s.RequestsTotal)
		writeCounter(&out, "lecsy_request_errors_4xx_total", "Requests answered with 4xx", s.RequestErrors4xx)
		writeCounter(&out, "lecsy_request_errors_5xx_total", "Requests answered with 5xx", s.RequestErrors5xx)
		writeCounter(&out, "lecsy_login_success_total", "Successful logins", s.LoginSuccessTotal)
		writeCounter(&out, "lecsy_login_failure_total", "Failed logins", s.LoginFailureTotal)
		writeCounter(&out, "lecsy_transcripts_created_total", "Transcripts created", s.TranscriptsCreatedTotal)
		writeCounter(&out, "lecsy_transcripts_deleted_total", "Transcripts deleted", s.TranscriptsDeletedTotal)
		writeCounter(&out, "lecsy_summaries_generated_total", "AI summaries generated", s.SummariesGeneratedTotal)
		writeCounter(&out, "lecsy_summary_cache_hits_total", "Summaries served from cache", s.SummaryCacheHitsTotal)
		writeCounter(&out, "lecsy_rate_limited_total", "Requests rejected by the rate limiter", s.RateLimitedTotal)
		writeCounter(&out, "lecsy_webhook_events_total", "Billing webhook events processed", s.WebhookEventsTotal)

		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(out.String()))
	}
}

func writeCounter(out *strings.Builder, name, help string, v int64) {
	fmt.Fprintf(out, "# HELP %s %s\n", name, help)
	fmt.Fprintf(out, "# TYPE %s counter\n", name)
	fmt.Fprintf(out, "%s %d\n\n", name, v)
}
