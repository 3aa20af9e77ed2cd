// validation.go - Input validation helpers for API payloads.
package server

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const maxTitleLength = 300

// parseResourceID validates that a path or payload id is a well-formed
// UUID (8-4-4-4-12 hex grouping). Format failures are caller errors and
// map to 400, before any identity or data work happens.
func parseResourceID(raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.UUID{}, fmt.Errorf("missing id")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("malformed id")
	}
	return id, nil
}

// validateTitle normalizes and checks a transcript title. Titles are
// user-facing strings shown in the study UI; we trim, strip control
// characters and cap the length.
func validateTitle(raw string) (string, error) {
	title := strings.TrimSpace(raw)
	if title == "" {
		return "", fmt.Errorf("title must not be empty")
	}
	if len(title) > maxTitleLength {
		return "", fmt.Errorf("title must be at most %d characters", maxTitleLength)
	}
	// Strip null bytes and other C0 controls; keep everything printable.
	cleaned := strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, title)
	if cleaned == "" {
		return "", fmt.Errorf("title must not be empty")
	}
	return cleaned, nil
}

// validateCourse checks the optional course label on a transcript.
func validateCourse(raw string) (string, error) {
	course := strings.TrimSpace(raw)
	if len(course) > 120 {
		return "", fmt.Errorf("course must be at most 120 characters")
	}
	return course, nil
}
