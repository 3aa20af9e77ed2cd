package server

import (
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestRateLimiter_CountsDown(t *testing.T) {
	rl := NewRateLimiter(nil)
	defer rl.Close()

	for i, want := range []int{2, 1, 0} {
		res := rl.CheckAndIncrement("user:1:delete_transcript", 3, time.Second)
		if !res.Allowed {
			t.Fatalf("call %d should be allowed", i+1)
		}
		if res.Remaining != want {
			t.Errorf("call %d: remaining = %d, want %d", i+1, res.Remaining, want)
		}
	}

	res := rl.CheckAndIncrement("user:1:delete_transcript", 3, time.Second)
	if res.Allowed {
		t.Error("4th call should be denied")
	}
	if res.Remaining != 0 {
		t.Errorf("denied call: remaining = %d, want 0", res.Remaining)
	}
	if res.ResetAt.IsZero() || !res.ResetAt.After(time.Now()) {
		t.Error("denied call should carry the existing future resetAt")
	}
}

func TestRateLimiter_WindowReset(t *testing.T) {
	rl := NewRateLimiter(nil)
	defer rl.Close()

	first := rl.CheckAndIncrement("k", 2, 100*time.Millisecond)
	rl.CheckAndIncrement("k", 2, 100*time.Millisecond)
	if res := rl.CheckAndIncrement("k", 2, 100*time.Millisecond); res.Allowed {
		t.Error("third call inside window should be denied")
	}

	time.Sleep(110 * time.Millisecond)

	res := rl.CheckAndIncrement("k", 2, 100*time.Millisecond)
	if !res.Allowed {
		t.Error("call after window should be allowed")
	}
	if res.Remaining != 1 {
		t.Errorf("fresh window: remaining = %d, want 1", res.Remaining)
	}
	if !res.ResetAt.After(first.ResetAt) {
		t.Error("fresh window should carry a new resetAt")
	}
}

func TestRateLimiter_PerKeyIsolation(t *testing.T) {
	rl := NewRateLimiter(nil)
	defer rl.Close()

	for i := 0; i < 3; i++ {
		rl.CheckAndIncrement("user:1:delete", 3, time.Minute)
	}
	if res := rl.CheckAndIncrement("user:1:delete", 3, time.Minute); res.Allowed {
		t.Error("user 1 should be exhausted")
	}
	if res := rl.CheckAndIncrement("user:2:delete", 3, time.Minute); !res.Allowed {
		t.Error("user 2 should be unaffected by user 1's limit")
	}
}

func TestRateLimiter_ConcurrentNeverOvershoots(t *testing.T) {
	rl := NewRateLimiter(nil)
	defer rl.Close()

	const limit = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0

	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rl.CheckAndIncrement("k", limit, time.Minute).Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != limit {
		t.Errorf("allowed = %d, want exactly %d", allowed, limit)
	}
}

func TestRateLimitKeys(t *testing.T) {
	if got := userKey("u-1", "delete_transcript"); got != "user:u-1:delete_transcript" {
		t.Errorf("userKey = %q", got)
	}

	req := httptest.NewRequest("DELETE", "/", nil)
	req.RemoteAddr = ""
	req.Header.Set("X-Forwarded-For", "203.0.113.1, 198.51.100.1")
	if got := ipKey(req); got != "ip:203.0.113.1" {
		t.Errorf("ipKey with XFF = %q", got)
	}

	req = httptest.NewRequest("DELETE", "/", nil)
	req.RemoteAddr = ""
	if got := ipKey(req); got != "ip:unknown" {
		t.Errorf("ipKey without address = %q", got)
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		expected   string
	}{
		{
			name:       "RemoteAddr only",
			remoteAddr: "192.168.1.1:12345",
			expected:   "192.168.1.1",
		},
		{
			name:       "X-Forwarded-For single IP",
			remoteAddr: "127.0.0.1:12345",
			xff:        "203.0.113.1",
			expected:   "203.0.113.1",
		},
		{
			name:       "X-Forwarded-For multiple IPs",
			remoteAddr: "127.0.0.1:12345",
			xff:        "203.0.113.1, 198.51.100.1, 192.0.2.1",
			expected:   "203.0.113.1",
		},
		{
			name:       "X-Real-IP",
			remoteAddr: "127.0.0.1:12345",
			xri:        "203.0.113.5",
			expected:   "203.0.113.5",
		},
		{
			name:       "X-Forwarded-For takes precedence",
			remoteAddr: "127.0.0.1:12345",
			xff:        "203.0.113.1",
			xri:        "203.0.113.5",
			expected:   "203.0.113.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}

			got := getClientIP(req)
			if got != tt.expected {
				t.Errorf("got %q, expected %q", got, tt.expected)
			}
		})
	}
}
