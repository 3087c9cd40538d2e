package anthropic

import (
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/gg/gconv"
)

type Config struct {
	ID           string
	APIKey       string
	BaseURL      string
	DefaultModel string
	MaxTokens    int
	Timeout      time.Duration
	MaxRetries   int
}

// Validate checks required fields and fills defaults in place.
func (c *Config) Validate() error {
	if c.ID == "" {
		return errors.New("provider ID cannot be empty")
	}
	if c.APIKey == "" {
		return errors.New("API key cannot be empty")
	}
	if c.BaseURL == "" {
		c.BaseURL = "https://api.anthropic.com"
	}
	if c.DefaultModel == "" {
		c.DefaultModel = "claude-3-5-sonnet-20241022"
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 4096
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	return nil
}

// ParseConfig builds a Config from the raw per-provider config map;
// "secret_key" is accepted as an alias for "api_key".
func ParseConfig(id string, configMap map[string]interface{}) (*Config, error) {
	apiKey := gconv.To[string](configMap["api_key"])
	if apiKey == "" {
		apiKey = gconv.To[string](configMap["secret_key"])
	}
	if apiKey == "" {
		return nil, errors.New("anthropic api_key is required")
	}

	config := &Config{
		ID:           id,
		APIKey:       apiKey,
		BaseURL:      gconv.To[string](configMap["base_url"]),
		DefaultModel: gconv.To[string](configMap["default_model"]),
		MaxTokens:    gconv.To[int](configMap["max_tokens"]),
		Timeout:      time.Duration(gconv.To[int](configMap["timeout"])) * time.Second,
		MaxRetries:   gconv.To[int](configMap["max_retries"]),
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid anthropic config: %w", err)
	}
	return config, nil
}
