package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func signBody(secret string, body []byte) string {
	m := hmac.New(sha256.New, []byte(secret))
	m.Write(body)
	return "sha256=" + hex.EncodeToString(m.Sum(nil))
}

func postWebhook(t *testing.T, h *testHarness, secret string, event map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/webhooks/billing", bytes.NewReader(body))
	if secret != "" {
		req.Header.Set(billingSignatureHeader, signBody(secret, body))
	}
	rr := httptest.NewRecorder()
	h.handler.ServeHTTP(rr, req)
	return rr
}

func TestBillingWebhook_SignatureRequired(t *testing.T) {
	h := newTestHarness(t)
	event := map[string]any{
		"type": BillingEventCheckoutCompleted,
		"data": map[string]any{"client_reference_id": "user-1"},
	}

	// No signature.
	rr := postWebhook(t, h, "", event)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing signature: expected 400, got %d", rr.Code)
	}

	// Wrong secret.
	rr = postWebhook(t, h, "wrong-secret", event)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad signature: expected 400, got %d", rr.Code)
	}

	// Nothing was written.
	if _, err := h.subs.GetByUser(context.Background(), "user-1"); err != ErrNotFound {
		t.Errorf("unsigned event must not touch the store, got err = %v", err)
	}
}

func TestBillingWebhook_CheckoutCompleted(t *testing.T) {
	h := newTestHarness(t)
	periodEnd := time.Now().Add(30 * 24 * time.Hour).Unix()

	rr := postWebhook(t, h, "whsec_test", map[string]any{
		"type": BillingEventCheckoutCompleted,
		"data": map[string]any{
			"client_reference_id": "user-1",
			"customer":            "cus_123",
			"subscription":        "sub_456",
			"current_period_end":  periodEnd,
		},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	sub, err := h.subs.GetByUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("subscription not stored: %v", err)
	}
	if sub.Plan != "pro" || sub.Status != "active" {
		t.Errorf("subscription = %s/%s, want pro/active", sub.Plan, sub.Status)
	}
	if !sub.Active() {
		t.Error("checkout-completed subscription should grant Pro")
	}
}

func TestBillingWebhook_LifecycleEvents(t *testing.T) {
	h := newTestHarness(t)

	post := func(evType, status string) {
		t.Helper()
		rr := postWebhook(t, h, "whsec_test", map[string]any{
			"type": evType,
			"data": map[string]any{
				"client_reference_id": "user-1",
				"plan":                "pro",
				"status":              status,
			},
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", evType, rr.Code)
		}
	}

	post(BillingEventSubscriptionUpdated, "trialing")
	sub, _ := h.subs.GetByUser(context.Background(), "user-1")
	if !sub.Active() {
		t.Error("trialing pro subscription should grant access")
	}

	post(BillingEventPaymentFailed, "")
	sub, _ = h.subs.GetByUser(context.Background(), "user-1")
	if sub.Status != "past_due" {
		t.Errorf("after payment failure status = %q, want past_due", sub.Status)
	}
	if sub.Active() {
		t.Error("past_due subscription should not grant access")
	}

	post(BillingEventSubscriptionDeleted, "")
	sub, _ = h.subs.GetByUser(context.Background(), "user-1")
	if sub.Status != "canceled" {
		t.Errorf("after deletion status = %q, want canceled", sub.Status)
	}
}

func TestBillingWebhook_UnknownEventAcknowledged(t *testing.T) {
	h := newTestHarness(t)

	rr := postWebhook(t, h, "whsec_test", map[string]any{
		"type": "invoice.created",
		"data": map[string]any{"client_reference_id": "user-1"},
	})
	if rr.Code != http.StatusOK {
		t.Errorf("unknown event: expected 200 ack, got %d", rr.Code)
	}
	if _, err := h.subs.GetByUser(context.Background(), "user-1"); err != ErrNotFound {
		t.Errorf("unknown event must not write state, got err = %v", err)
	}
}

func TestVerifyBillingSignature(t *testing.T) {
	body := []byte(`{"type":"x"}`)

	if !verifyBillingSignature("s", body, signBody("s", body)) {
		t.Error("valid signature should verify")
	}
	if verifyBillingSignature("s", body, "sha256=deadbeef") {
		t.Error("wrong digest should fail")
	}
	if verifyBillingSignature("s", body, hex.EncodeToString(body)) {
		t.Error("header without prefix should fail")
	}
	if verifyBillingSignature("", body, signBody("", body)) {
		t.Error("empty secret should always fail")
	}
}
