// redirect.go - Post-login redirect path validation.
//
// Guards the "next" parameter on login so the app only ever redirects
// to same-origin relative paths, never to attacker-supplied URLs.
package server

import "strings"

// isSafeRedirect reports whether a candidate redirect target is a safe,
// same-origin relative path. Safe means: non-empty, starts with "/",
// and contains neither "//" nor ":" anywhere. This rejects absolute URLs
// (https://evil.example), protocol-relative URLs (//evil.example) and
// scheme-prefixed strings (javascript:...), while accepting ordinary
// paths with query strings or fragments.
func isSafeRedirect(candidate string) bool {
	if candidate == "" {
		return false
	}
	if candidate[0] != '/' {
		return false
	}
	if strings.Contains(candidate, "//") {
		return false
	}
	if strings.Contains(candidate, ":") {
		return false
	}
	return true
}

// resolveRedirect returns the trimmed candidate when it is safe, otherwise
// the fallback unchanged. It never fails; malformed input degrades to the
// fallback.
func resolveRedirect(candidate, fallback string) string {
	candidate = strings.TrimSpace(candidate)
	if isSafeRedirect(candidate) {
		return candidate
	}
	return fallback
}
