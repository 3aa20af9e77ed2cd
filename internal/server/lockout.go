// lockout.go - Account lockout to slow credential stuffing on login.
package server

import (
	"strings"
	"sync"
	"time"
)

// loginAttempt tracks failed login attempts for one account.
type loginAttempt struct {
	count       int
	lastAttempt time.Time
	lockedUntil time.Time
}

// AccountLockout locks an account after repeated failed logins. It is
// keyed by normalized email and, like the rate limiter, is per-process.
type AccountLockout struct {
	mu              sync.Mutex
	attempts        map[string]*loginAttempt
	maxAttempts     int
	lockoutDuration time.Duration
	windowDuration  time.Duration
	stop            chan struct{}
}

// NewAccountLockout creates a lockout manager. Defaults used by the
// server: 5 attempts in a 10 minute window locks for 15 minutes.
func NewAccountLockout(maxAttempts int, lockoutDuration, windowDuration time.Duration) *AccountLockout {
	al := &AccountLockout{
		attempts:        make(map[string]*loginAttempt),
		maxAttempts:     maxAttempts,
		lockoutDuration: lockoutDuration,
		windowDuration:  windowDuration,
		stop:            make(chan struct{}),
	}

	go al.cleanup()

	return al
}

func normalizeAccount(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RecordFailedAttempt records a failed login. Returns whether the
// account is now locked and until when.
func (al *AccountLockout) RecordFailedAttempt(email string) (locked bool, lockedUntil time.Time) {
	al.mu.Lock()
	defer al.mu.Unlock()

	now := time.Now()
	key := normalizeAccount(email)

	attempt, exists := al.attempts[key]
	if !exists {
		attempt = &loginAttempt{}
		al.attempts[key] = attempt
	}

	// Reset count if outside window
	if now.Sub(attempt.lastAttempt) > al.windowDuration {
		attempt.count = 0
	}

	attempt.count++
	attempt.lastAttempt = now

	if attempt.count >= al.maxAttempts {
		attempt.lockedUntil = now.Add(al.lockoutDuration)
		return true, attempt.lockedUntil
	}

	return false, time.Time{}
}

// RecordSuccessfulLogin resets failed attempts for the account.
func (al *AccountLockout) RecordSuccessfulLogin(email string) {
	al.mu.Lock()
	defer al.mu.Unlock()
	delete(al.attempts, normalizeAccount(email))
}

// IsLocked reports whether the account is currently locked out.
func (al *AccountLockout) IsLocked(email string) (bool, time.Time) {
	al.mu.Lock()
	defer al.mu.Unlock()

	attempt, ok := al.attempts[normalizeAccount(email)]
	if !ok {
		return false, time.Time{}
	}
	if time.Now().Before(attempt.lockedUntil) {
		return true, attempt.lockedUntil
	}
	return false, time.Time{}
}

// cleanup removes stale entries hourly.
func (al *AccountLockout) cleanup() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-al.stop:
			return
		case <-ticker.C:
			al.mu.Lock()
			now := time.Now()
			for key, attempt := range al.attempts {
				if now.Sub(attempt.lastAttempt) > al.windowDuration && now.After(attempt.lockedUntil) {
					delete(al.attempts, key)
				}
			}
			al.mu.Unlock()
		}
	}
}

// Close stops the cleanup goroutine.
func (al *AccountLockout) Close() {
	close(al.stop)
}
