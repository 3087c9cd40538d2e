package ark

import (
	"testing"
	"time"
)

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig("main", map[string]any{
		"api_key":       "ark-test",
		"default_model": "ep-20240101000000-abcde",
		"timeout":       30,
	})
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.APIKey != "ark-test" || cfg.DefaultModel != "ep-20240101000000-abcde" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Timeout != 30*time.Second {
		t.Fatalf("timeout: got %v", cfg.Timeout)
	}
	if cfg.BaseURL == "" || cfg.MaxRetries == 0 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestParseConfigRequiresEndpoint(t *testing.T) {
	if _, err := ParseConfig("main", map[string]any{"api_key": "ark-test"}); err == nil {
		t.Fatal("expected error when default_model missing")
	}

	cfg, err := ParseConfig("main", map[string]any{
		"secret_key":    "ark-alias",
		"default_model": "ep-1",
	})
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.APIKey != "ark-alias" {
		t.Fatalf("alias not honored: %+v", cfg)
	}
}
