// auth.go - Stateless session cookies and authentication helpers.
//
// Implements HMAC-signed cookie sessions and DB-backed user login.
// Session lifecycle is self-contained: the cookie carries the signed
// payload, so no server-side session table exists.
package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// AuthConfig holds authentication-related configuration used by HTTP
// handlers (session secret, cookie settings, and DB for user auth).
type AuthConfig struct {
	SessionSecret string
	SessionTTL    time.Duration
	CookieName    string
	DB            *sql.DB
	Lockout       *AccountLockout
	Limiter       *RateLimiter
	Audit         *AuditLogger
}

// Login attempts are limited per client IP; identity is unknown until
// the credentials check succeeds. The per-email lockout runs on top.
const (
	loginAttemptLimit  = 10
	loginAttemptWindow = 15 * time.Minute
)

type sessionPayload struct {
	Sub string `json:"sub"`
	Eml string `json:"eml,omitempty"`
	Exp int64  `json:"exp"`
}

func (a AuthConfig) cookieName() string {
	if a.CookieName == "" {
		return "lecsy_session"
	}
	return a.CookieName
}

func (a AuthConfig) ttl() time.Duration {
	if a.SessionTTL <= 0 {
		return 12 * time.Hour
	}
	return a.SessionTTL
}

func signPayload(secret []byte, msg string) string {
	m := hmac.New(sha256.New, secret)
	_, _ = m.Write([]byte(msg))
	return hex.EncodeToString(m.Sum(nil))
}

func encodeSession(p sessionPayload) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func decodeSession(token string) (sessionPayload, error) {
	var p sessionPayload
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(b, &p); err != nil {
		return p, err
	}
	return p, nil
}

// makeToken returns "payload.signature"
func (a AuthConfig) makeToken(sub, email string) (string, time.Time, error) {
	exp := time.Now().Add(a.ttl())
	p := sessionPayload{Sub: sub, Eml: email, Exp: exp.Unix()}
	payload, err := encodeSession(p)
	if err != nil {
		return "", time.Time{}, err
	}
	sig := signPayload([]byte(a.SessionSecret), payload)
	return payload + "." + sig, exp, nil
}

func (a AuthConfig) verifyToken(tok string) (sessionPayload, error) {
	var p sessionPayload
	parts := strings.Split(tok, ".")
	if len(parts) != 2 {
		return p, errors.New("invalid token format")
	}
	payload, sig := parts[0], parts[1]
	want := signPayload([]byte(a.SessionSecret), payload)
	if !hmac.Equal([]byte(sig), []byte(want)) {
		return p, errors.New("invalid signature")
	}
	decoded, err := decodeSession(payload)
	if err != nil {
		return p, err
	}
	if decoded.Exp <= time.Now().Unix() {
		return p, errors.New("expired")
	}
	return decoded, nil
}

// authenticateUser checks credentials against the users table and
// returns (userID, email, ok).
func authenticateUser(db *sql.DB, email, password string) (string, string, bool) {
	var id, storedEmail, hash string
	err := db.QueryRow(
		`SELECT id, email, password_hash FROM users WHERE email = $1 AND is_active = TRUE`,
		strings.ToLower(strings.TrimSpace(email)),
	).Scan(&id, &storedEmail, &hash)
	if err != nil {
		if err != sql.ErrNoRows {
			Error("auth_query_failed", nil, err)
		}
		return "", "", false
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return "", "", false
	}
	return id, storedEmail, true
}

// loginHandler authenticates against the users table and issues a signed
// session cookie (HttpOnly, SameSite=Lax, Secure). The optional "next"
// query parameter names a post-login redirect target; it is resolved
// through the redirect validator so only same-origin relative paths
// survive, anything else degrades to /app.
func (a AuthConfig) loginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		if a.Limiter != nil {
			res := a.Limiter.CheckAndIncrement(ipKey(r), loginAttemptLimit, loginAttemptWindow)
			if !res.Allowed {
				tooManyRequests(w, res)
				return
			}
		}

		if a.Lockout != nil {
			if locked, until := a.Lockout.IsLocked(body.Email); locked {
				w.Header().Set("Retry-After", until.UTC().Format(http.TimeFormat))
				http.Error(w, "account temporarily locked", http.StatusTooManyRequests)
				return
			}
		}

		userID, email, ok := authenticateUser(a.DB, body.Email, body.Password)
		if !ok {
			if a.Lockout != nil {
				a.Lockout.RecordFailedAttempt(body.Email)
			}
			GetMetrics().IncLoginFailure()
			a.Audit.Record(r, AuditActionLogin, "", body.Email, false, "bad credentials")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if a.Lockout != nil {
			a.Lockout.RecordSuccessfulLogin(body.Email)
		}
		GetMetrics().IncLoginSuccess()
		a.Audit.Record(r, AuditActionLogin, userID, "", true, "")

		tok, exp, err := a.makeToken(userID, email)
		if err != nil {
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     a.cookieName(),
			Value:    tok,
			Path:     "/",
			Expires:  exp,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			Secure:   true,
		})

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":   "ok",
			"redirect": resolveRedirect(r.URL.Query().Get("next"), "/app"),
		})
	}
}

// logoutHandler clears the session cookie by setting an expired cookie
func (a AuthConfig) logoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     a.cookieName(),
			Value:    "",
			Path:     "/",
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			Secure:   true,
		})
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
	}
}

// currentUser extracts the authenticated identity from the session
// cookie. Absent or invalid sessions fail; handlers map that to 401.
func (a AuthConfig) currentUser(r *http.Request) (string, error) {
	c, err := r.Cookie(a.cookieName())
	if err != nil {
		return "", errors.New("no session cookie")
	}
	payload, err := a.verifyToken(c.Value)
	if err != nil {
		return "", err
	}
	return payload.Sub, nil
}

func (a AuthConfig) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := a.currentUser(r); err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
