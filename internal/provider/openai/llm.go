package openai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

func (p *Provider) Generate(ctx context.Context, modelName string, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	ctx, chatModel, cancel, err := p.prepare(ctx, modelName)
	if err != nil {
		return nil, err
	}
	defer cancel()

	resp, err := chatModel.Generate(ctx, input, opts...)
	if err != nil {
		return nil, fmt.Errorf("openai API call failed: %w", err)
	}
	return resp, nil
}

func (p *Provider) Stream(ctx context.Context, modelName string, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	ctx, chatModel, cancel, err := p.prepare(ctx, modelName)
	if err != nil {
		return nil, err
	}
	defer cancel()

	streamReader, err := chatModel.Stream(ctx, input, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}
	return streamReader, nil
}

// prepare resolves the default model, applies the configured request
// timeout, and returns a cached chat model for modelName.
func (p *Provider) prepare(ctx context.Context, modelName string) (context.Context, *openai.ChatModel, context.CancelFunc, error) {
	if modelName == "" {
		modelName = p.config.DefaultModel
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	chatModel, err := p.getOrCreateModel(ctx, modelName)
	if err != nil {
		cancel()
		return nil, nil, nil, fmt.Errorf("failed to get chat model for %s: %w", modelName, err)
	}
	return ctx, chatModel, cancel, nil
}

// getOrCreateModel returns the memoized chat model for modelName,
// creating it under the write lock on first use.
func (p *Provider) getOrCreateModel(ctx context.Context, modelName string) (*openai.ChatModel, error) {
	p.mu.RLock()
	if m, exists := p.modelMap[modelName]; exists {
		p.mu.RUnlock()
		return m, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	if m, exists := p.modelMap[modelName]; exists {
		return m, nil
	}

	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  p.config.APIKey,
		Model:   modelName,
		BaseURL: p.config.BaseURL,
		ByAzure: false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model for %s: %w", modelName, err)
	}

	p.modelMap[modelName] = chatModel
	return chatModel, nil
}
