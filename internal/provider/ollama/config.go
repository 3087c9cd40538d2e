package ollama

import (
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/gg/gconv"
)

// Config for a local ollama daemon; no API key involved.
type Config struct {
	ID           string
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
}

// Validate checks required fields and fills defaults in place.
func (c *Config) Validate() error {
	if c.ID == "" {
		return errors.New("provider ID cannot be empty")
	}
	if c.BaseURL == "" {
		c.BaseURL = "http://127.0.0.1:11434"
	}
	if c.DefaultModel == "" {
		c.DefaultModel = "llama3.1"
	}
	if c.Timeout <= 0 {
		c.Timeout = 120 * time.Second
	}
	return nil
}

// ParseConfig builds a Config from the raw per-provider config map.
func ParseConfig(id string, configMap map[string]interface{}) (*Config, error) {
	config := &Config{
		ID:           id,
		BaseURL:      gconv.To[string](configMap["base_url"]),
		DefaultModel: gconv.To[string](configMap["default_model"]),
		Timeout:      time.Duration(gconv.To[int](configMap["timeout"])) * time.Second,
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ollama config: %w", err)
	}
	return config, nil
}
