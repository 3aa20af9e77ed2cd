package server

import (
	"strings"
	"testing"
)

func TestParseResourceID(t *testing.T) {
	if _, err := parseResourceID("b3a4f1a0-1c2d-4e5f-8a9b-0c1d2e3f4a5b"); err != nil {
		t.Errorf("well-formed UUID should parse: %v", err)
	}

	bad := []string{
		"",
		"   ",
		"not-a-uuid",
		"b3a4f1a0-1c2d-4e5f-8a9b",              // truncated
		"b3a4f1a01c2d4e5f8a9b0c1d2e3f4a5bzzzz", // wrong length
	}
	for _, s := range bad {
		if _, err := parseResourceID(s); err == nil {
			t.Errorf("parseResourceID(%q) should fail", s)
		}
	}
}

func TestValidateTitle(t *testing.T) {
	got, err := validateTitle("  Week 1: Intro  ")
	if err != nil {
		t.Fatalf("valid title rejected: %v", err)
	}
	if got != "Week 1: Intro" {
		t.Errorf("title = %q, want trimmed", got)
	}

	if _, err := validateTitle(""); err == nil {
		t.Error("empty title should fail")
	}
	if _, err := validateTitle("   "); err == nil {
		t.Error("whitespace-only title should fail")
	}
	if _, err := validateTitle(strings.Repeat("a", maxTitleLength+1)); err == nil {
		t.Error("oversized title should fail")
	}

	got, err = validateTitle("notes\x00with\x01controls")
	if err != nil {
		t.Fatalf("control characters should be stripped, not rejected: %v", err)
	}
	if strings.ContainsAny(got, "\x00\x01") {
		t.Errorf("control characters survived: %q", got)
	}
}

func TestValidateCourse(t *testing.T) {
	if _, err := validateCourse(strings.Repeat("c", 121)); err == nil {
		t.Error("oversized course should fail")
	}
	got, err := validateCourse("  CS101 ")
	if err != nil {
		t.Fatalf("valid course rejected: %v", err)
	}
	if got != "CS101" {
		t.Errorf("course = %q, want trimmed", got)
	}
}
