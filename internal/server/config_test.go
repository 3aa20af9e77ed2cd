package server

import "testing"

func validTestConfig() AppConfig {
	return AppConfig{
		Addr:                  ":8080",
		Env:                   "production",
		BaseURL:               "https://api.lecsy.app",
		SessionSecret:         "0123456789abcdef0123456789abcdef",
		DatabaseURL:           "postgres://lecsy@localhost/lecsy",
		MinioAccessKey:        "ak",
		MinioSecretKey:        "sk",
		CompletionAPIKey:      "key",
		FreeSummariesPerMonth: 5,
	}
}

func TestConfigValidate_OK(t *testing.T) {
	if errs := validTestConfig().Validate(); len(errs) != 0 {
		t.Fatalf("valid config rejected: %v", errs)
	}
}

func TestConfigValidate_CollectsAllErrors(t *testing.T) {
	cfg := validTestConfig()
	cfg.SessionSecret = "short"
	cfg.DatabaseURL = ""
	cfg.Env = "staging"

	errs := cfg.Validate()
	if len(errs) != 3 {
		t.Fatalf("expected 3 errors, got %d: %v", len(errs), errs)
	}
}

func TestConfigValidate_ProductionRequiresProviders(t *testing.T) {
	cfg := validTestConfig()
	cfg.CompletionAPIKey = ""
	cfg.MinioAccessKey = ""
	if errs := cfg.Validate(); len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %d: %v", len(errs), errs)
	}

	// Development tolerates missing provider credentials.
	cfg.Env = "development"
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Fatalf("dev config rejected: %v", errs)
	}
}

func TestConfigValidate_BadExtraOrigin(t *testing.T) {
	cfg := validTestConfig()
	cfg.ExtraOrigins = []string{"not a url"}
	errs := cfg.Validate()
	if len(errs) != 1 || errs[0].Field != "LECSY_EXTRA_ORIGINS" {
		t.Fatalf("expected an extra-origins error, got %v", errs)
	}
}
