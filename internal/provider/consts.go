package provider

import (
	"fmt"
	"strings"
)

// Type is a provider backend family.
type Type string

const (
	OpenAI    Type = "openai"
	Anthropic Type = "anthropic"
	Gemini    Type = "gemini"
	Ollama    Type = "ollama"
	Qwen      Type = "qwen"
	Ark       Type = "ark"
)

var SupportedProviders = []Type{
	OpenAI,
	Anthropic,
	Gemini,
	Ollama,
	Qwen,
	Ark,
}

// ModelInfo is one model as reported by a backend's listing endpoint.
type ModelInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Provider Type   `json:"provider"`
}

// ModelSpec addresses one model on one configured provider instance,
// written "provider_id:model_name".
type ModelSpec struct {
	ProviderID string
	ModelName  string
}

func (m *ModelSpec) Parse(str string) error {
	id, name, ok := strings.Cut(str, ":")
	if !ok || id == "" || name == "" {
		return fmt.Errorf("invalid model spec format: %s (expected provider_id:model_name)", str)
	}
	m.ProviderID = id
	m.ModelName = name
	return nil
}

func ParseModelSpec(str string) (*ModelSpec, error) {
	m := &ModelSpec{}
	if err := m.Parse(str); err != nil {
		return nil, err
	}
	return m, nil
}
