package ark

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
		c.BaseURL = "https://ark.cn-beijing.volces.com/api/v3"
	}
	if c.DefaultModel == "" {
		return errors.New("default_model (Ark endpoint ID) is required")
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
// "secret_key" is accepted as an alias for "api_key". Ark addresses
// models by endpoint ID, so default_model is mandatory here.
func ParseConfig(id string, configMap map[string]interface{}) (*Config, error) {
	apiKey := gconv.To[string](configMap["api_key"])
	if apiKey == "" {
		apiKey = gconv.To[string](configMap["secret_key"])
	}
	if apiKey == "" {
		return nil, errors.New("ark api_key is required")
	}

	config := &Config{
		ID:           id,
		APIKey:       apiKey,
		BaseURL:      gconv.To[string](configMap["base_url"]),
		DefaultModel: gconv.To[string](configMap["default_model"]),
		Timeout:      time.Duration(gconv.To[int](configMap["timeout"])) * time.Second,
		MaxRetries:   gconv.To[int](configMap["max_retries"]),
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ark config: %w", err)
	}
	return config, nil
}
