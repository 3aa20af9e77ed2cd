// ratelimit.go - Fixed-window rate limiting for sensitive mutations.
//
// Bounds per-user (or per-IP, when unauthenticated) frequency of the
// expensive or abusable operations: transcript deletion, title updates
// and AI summarization. The counter is process-local; with horizontal
// scaling each instance enforces its own window, so the guarantee is
// best-effort per instance, not a global bound. That limitation is
// accepted rather than papered over with cross-process coordination.
package server

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// rateLimitEntry is one (key, window) counter. An entry is valid only
// while now < resetAt; an expired entry is logically absent.
type rateLimitEntry struct {
	count   int
	resetAt time.Time
}

// RateLimitStore abstracts the entry map so the single-process default
// can be swapped for a shared store in deployments that scale out,
// without touching the limiter algorithm.
type RateLimitStore interface {
	Get(key string) (rateLimitEntry, bool)
	Set(key string, e rateLimitEntry)
	Delete(key string)
	// Keys returns a snapshot of current keys, used by the sweep.
	Keys() []string
}

// memoryStore is the default in-process store.
type memoryStore struct {
	mu      sync.Mutex
	entries map[string]rateLimitEntry
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: make(map[string]rateLimitEntry)}
}

func (m *memoryStore) Get(key string) (rateLimitEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	return e, ok
}

func (m *memoryStore) Set(key string, e rateLimitEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = e
}

func (m *memoryStore) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

func (m *memoryStore) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	return keys
}

// RateLimitResult is what a check returns to the caller. ResetAt is
// surfaced so handlers can compute a Retry-After hint.
type RateLimitResult struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// sweepInterval controls how often expired entries are collected. The
// sweep only bounds memory; limiter correctness never depends on it.
const sweepInterval = 5 * time.Minute

// RateLimiter is a fixed-window counter keyed by opaque strings such as
// "user:<id>:delete_transcript". Fixed window means window-reset, not
// sliding: a burst of limit requests at the end of one window followed
// by limit more at the start of the next is permitted. That imprecision
// is a known, accepted property of the algorithm.
type RateLimiter struct {
	mu    sync.Mutex
	store RateLimitStore
	stop  chan struct{}
}

// NewRateLimiter creates a limiter over the given store (nil means the
// in-process map) and starts the background sweep.
func NewRateLimiter(store RateLimitStore) *RateLimiter {
	if store == nil {
		store = newMemoryStore()
	}
	rl := &RateLimiter{store: store, stop: make(chan struct{})}
	go rl.sweep()
	return rl
}

// CheckAndIncrement atomically applies the fixed-window step for key:
// fresh or expired entry -> new window with count 1; count under the
// limit -> increment; otherwise deny, keeping the existing resetAt so
// callers can tell clients when to retry. The mutex keeps two concurrent
// requests from both observing count < limit and both passing.
func (rl *RateLimiter) CheckAndIncrement(key string, limit int, window time.Duration) RateLimitResult {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	e, ok := rl.store.Get(key)
	if !ok || !now.Before(e.resetAt) {
		e = rateLimitEntry{count: 1, resetAt: now.Add(window)}
		rl.store.Set(key, e)
		return RateLimitResult{Allowed: true, Remaining: limit - 1, ResetAt: e.resetAt}
	}

	if e.count < limit {
		e.count++
		rl.store.Set(key, e)
		return RateLimitResult{Allowed: true, Remaining: limit - e.count, ResetAt: e.resetAt}
	}

	return RateLimitResult{Allowed: false, Remaining: 0, ResetAt: e.resetAt}
}

// sweep periodically drops expired entries to bound memory growth.
func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			now := time.Now()
			for _, k := range rl.store.Keys() {
				rl.mu.Lock()
				if e, ok := rl.store.Get(k); ok && !now.Before(e.resetAt) {
					rl.store.Delete(k)
				}
				rl.mu.Unlock()
			}
		}
	}
}

// Close stops the sweep goroutine.
func (rl *RateLimiter) Close() {
	close(rl.stop)
}

// userKey builds the per-identity rate limit key. Authenticated limiting
// is always per user, never per IP, once identity is known.
func userKey(userID, action string) string {
	return "user:" + userID + ":" + action
}

// ipKey builds the unauthenticated fallback key from the client IP.
func ipKey(r *http.Request) string {
	ip := getClientIP(r)
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}

// getClientIP extracts the client's IP address from the request. It
// checks X-Forwarded-For first (taking the first entry), then X-Real-IP,
// then falls back to RemoteAddr with the port stripped.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for i, c := range xff {
			if c == ',' {
				return xff[:i]
			}
		}
		return xff
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	for i := len(r.RemoteAddr) - 1; i >= 0; i-- {
		if r.RemoteAddr[i] == ':' {
			return r.RemoteAddr[:i]
		}
	}

	return r.RemoteAddr
}

// tooManyRequests writes the 429 response with a Retry-After hint
// computed from the entry's resetAt.
func tooManyRequests(w http.ResponseWriter, res RateLimitResult) {
	retry := time.Until(res.ResetAt).Seconds()
	if retry < 1 {
		retry = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(retry)))
	GetMetrics().IncRateLimited()
	http.Error(w, "rate limit exceeded, try again later", http.StatusTooManyRequests)
}
