package openai

import (
	"context"
	"os"
	"regexp"
	"testing"
	"time"
)

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig("main", map[string]any{
		"api_key":       "sk-test",
		"default_model": "gpt-4o-mini",
		"timeout":       30,
	})
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.APIKey != "sk-test" || cfg.DefaultModel != "gpt-4o-mini" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Timeout != 30*time.Second {
		t.Fatalf("timeout: got %v", cfg.Timeout)
	}
	if cfg.BaseURL == "" || cfg.MaxRetries == 0 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestParseConfigSecretKeyAlias(t *testing.T) {
	cfg, err := ParseConfig("main", map[string]any{"secret_key": "sk-alias"})
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.APIKey != "sk-alias" {
		t.Fatalf("alias not honored: %+v", cfg)
	}

	if _, err := ParseConfig("main", map[string]any{}); err == nil {
		t.Fatal("expected error when api_key missing")
	}
}

// Remote listing checks run only when a real key is present.
func TestListModels(t *testing.T) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("OPENAI_API_KEY not set, skipping")
	}

	ctx := context.Background()
	p, err := NewProvider(ctx, "test-openai", map[string]any{
		"api_key": apiKey,
		"timeout": 30,
	})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	defer p.Close()

	models, err := p.ListModels(ctx)
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(models) == 0 {
		t.Fatal("expected at least one model")
	}

	idPattern := regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
	for _, m := range models {
		if m.ID == "" || m.Name != m.ID {
			t.Errorf("malformed model entry: %+v", m)
		}
		if !idPattern.MatchString(m.ID) {
			t.Errorf("unexpected model id format: %q", m.ID)
		}
	}
}
