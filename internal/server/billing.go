// billing.go - Payment provider webhook intake.
//
// The payment provider is the source of truth for billing state; this
// handler only mirrors it into the subscriptions table. Events are
// authenticated with an HMAC-SHA256 signature over the raw body before
// any parsing happens. Unknown event types are acknowledged with 200 so
// the provider does not retry them forever.
package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
)

// BillingEvent types consumed from the provider.
const (
	BillingEventCheckoutCompleted   = "checkout.session.completed"
	BillingEventSubscriptionUpdated = "customer.subscription.updated"
	BillingEventSubscriptionDeleted = "customer.subscription.deleted"
	BillingEventPaymentFailed       = "invoice.payment_failed"
)

// billingSignatureHeader carries "sha256=<hex hmac>" computed over the
// raw request body with the shared webhook secret.
const billingSignatureHeader = "X-Billing-Signature"

// maxWebhookBody caps event payload size.
const maxWebhookBody = 1 << 20

type billingEvent struct {
	Type string `json:"type"`
	Data struct {
		UserID           string `json:"client_reference_id"`
		CustomerID       string `json:"customer"`
		SubscriptionID   string `json:"subscription"`
		Plan             string `json:"plan"`
		Status           string `json:"status"`
		CurrentPeriodEnd int64  `json:"current_period_end"`
	} `json:"data"`
}

// BillingConfig holds the webhook shared secret and the store updated
// from events.
type BillingConfig struct {
	WebhookSecret string
	Subscriptions SubscriptionStore
	Audit         *AuditLogger
}

// verifyBillingSignature checks the signature header against the raw
// body. Constant-time comparison; any malformed header fails closed.
func verifyBillingSignature(secret string, body []byte, header string) bool {
	if secret == "" || header == "" {
		return false
	}
	sig := strings.TrimPrefix(header, "sha256=")
	if sig == header {
		return false
	}
	m := hmac.New(sha256.New, []byte(secret))
	_, _ = m.Write(body)
	want := hex.EncodeToString(m.Sum(nil))
	return hmac.Equal([]byte(sig), []byte(want))
}

// webhookHandler receives provider events. Signature failures answer
// 400 without detail; handler failures answer 500 so the provider
// retries the delivery.
func (b BillingConfig) webhookHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		if !verifyBillingSignature(b.WebhookSecret, body, r.Header.Get(billingSignatureHeader)) {
			Warn("billing_signature_rejected", map[string]any{"ip": getClientIP(r)})
			http.Error(w, "bad signature", http.StatusBadRequest)
			return
		}

		var ev billingEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		if err := b.handleEvent(r, ev); err != nil {
			Error("billing_event_failed", map[string]any{"type": ev.Type}, err)
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}

		GetMetrics().IncWebhookEvent()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"received": true})
	}
}

// handleEvent dispatches on the event type and upserts the mirrored
// subscription row. Retry/ordering/idempotency are the provider's
// concern; upserts make replays harmless here.
func (b BillingConfig) handleEvent(r *http.Request, ev billingEvent) error {
	if ev.Data.UserID == "" {
		// Nothing to attribute the event to; acknowledge and move on.
		Warn("billing_event_without_user", map[string]any{"type": ev.Type})
		return nil
	}

	sub := Subscription{
		UserID:           ev.Data.UserID,
		CustomerID:       ev.Data.CustomerID,
		SubscriptionID:   ev.Data.SubscriptionID,
		Plan:             ev.Data.Plan,
		Status:           ev.Data.Status,
		CurrentPeriodEnd: time.Unix(ev.Data.CurrentPeriodEnd, 0).UTC(),
	}

	switch ev.Type {
	case BillingEventCheckoutCompleted:
		if sub.Plan == "" {
			sub.Plan = "pro"
		}
		if sub.Status == "" {
			sub.Status = "active"
		}

	case BillingEventSubscriptionUpdated:
		// Provider state carried in the event; mirror as-is.

	case BillingEventSubscriptionDeleted:
		sub.Status = "canceled"

	case BillingEventPaymentFailed:
		sub.Status = "past_due"

	default:
		Info("billing_event_ignored", map[string]any{"type": ev.Type})
		return nil
	}

	if err := b.Subscriptions.Upsert(r.Context(), sub); err != nil {
		return err
	}

	b.Audit.Record(r, AuditActionSubscriptionChange, sub.UserID, sub.SubscriptionID, true, ev.Type)
	return nil
}
