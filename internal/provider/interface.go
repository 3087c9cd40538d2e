package provider

import (
	"context"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Provider is one configured model backend instance. Implementations
// wrap an eino chat model; the orchestration core reaches them only
// through the modeladapter layer.
type Provider interface {
	// ID is the configured instance identifier, the registry lookup key.
	ID() string

	// Type is the backend family (openai, anthropic, gemini, ollama, qwen, ark).
	Type() Type

	// IsAvailable reports whether the backend is currently healthy for
	// inference. Implementations typically do a lightweight remote check.
	IsAvailable() bool

	// Close releases provider-owned resources (clients, background
	// workers). Safe to call during shutdown.
	Close() error

	// ListModels returns model metadata available from the remote
	// backend, used for health checks and model discovery.
	ListModels(ctx context.Context) ([]ModelInfo, error)

	// Generate performs one non-streaming chat completion. An empty
	// modelName selects the instance's configured default model; opts
	// pass through to the underlying eino call.
	Generate(context.Context, string, []*schema.Message, ...model.Option) (*schema.Message, error)

	// Stream is Generate's streaming counterpart, same contract.
	Stream(context.Context, string, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error)
}
