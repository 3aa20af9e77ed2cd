// origin.go - Origin/Referer validation for state-changing requests.
//
// CSRF mitigation for the API: mutating routes are only served when the
// request demonstrably comes from an allowed web origin. The allow-list
// is built once at startup; there is no ad-hoc env reading at call time.
package server

import (
	"net/http"
	"net/url"
	"strings"
)

// OriginPolicy decides whether a request may perform a state-changing
// operation, based on its Origin/Referer headers and a fixed allow-list
// of origins (scheme+host+port). The set is immutable after construction.
type OriginPolicy struct {
	allowed map[string]bool
	devMode bool
}

// NewOriginPolicy builds the allow-list from the configured base origins
// plus any extra origins (comma-separated env value, already split by the
// caller). In dev mode the usual localhost variants are included so local
// frontends work without configuration.
func NewOriginPolicy(base []string, extra []string, devMode bool) *OriginPolicy {
	p := &OriginPolicy{
		allowed: make(map[string]bool),
		devMode: devMode,
	}
	for _, o := range base {
		p.add(o)
	}
	for _, o := range extra {
		p.add(o)
	}
	if devMode {
		p.add("http://localhost:3000")
		p.add("http://127.0.0.1:3000")
		p.add("http://localhost:8080")
	}
	return p
}

func (p *OriginPolicy) add(origin string) {
	origin = strings.TrimSuffix(strings.TrimSpace(origin), "/")
	if origin == "" {
		return
	}
	p.allowed[origin] = true
}

// Allows reports whether a request carrying the given Origin and Referer
// header values may proceed. Decision order:
//
//  1. Origin header present: allowed iff it is an exact member of the
//     allow-list. Browsers attach Origin on all non-GET cross-origin
//     capable requests, so this is the primary signal.
//  2. Origin absent, Referer present: allowed iff the Referer parses as
//     a URL whose origin component is a member. A parse failure denies.
//  3. Neither header present: the default-deny branch. Allowed only in
//     dev mode (curl, tests); denied in production.
//
// The policy trusts the platform to prevent header spoofing from browser
// contexts; it makes no guarantee against non-browser clients forging an
// Origin header.
func (p *OriginPolicy) Allows(origin, referer string) bool {
	if origin != "" {
		return p.allowed[strings.TrimSuffix(origin, "/")]
	}

	if referer != "" {
		u, err := url.Parse(referer)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return false
		}
		return p.allowed[u.Scheme+"://"+u.Host]
	}

	// Default-deny: no origin information at all.
	return p.devMode
}

// AllowsRequest is the http.Request convenience form of Allows.
func (p *OriginPolicy) AllowsRequest(r *http.Request) bool {
	return p.Allows(r.Header.Get("Origin"), r.Header.Get("Referer"))
}

// requireOrigin wraps a handler and rejects state-changing requests from
// disallowed origins with 403. Safe methods pass through untouched.
func (p *OriginPolicy) requireOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			if !p.AllowsRequest(r) {
				Warn("origin_rejected", map[string]any{
					"origin":  r.Header.Get("Origin"),
					"referer": r.Header.Get("Referer"),
					"path":    r.URL.Path,
				})
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
