// Package configadapter adapts internal/config's on-disk YAML config
// (loaded once at startup via config.Get/config.Save, guarded by the
// file-lock + atomic-rename InstanceManager) to the
// core's ports.ConfigStore, so the Chat Pipeline's pending-credential
// flows (brain/orchestrator API key, Claude OAuth) can persist what the
// user types without chatpipeline importing internal/config directly.
//
// internal/config.Config has no flat credential map — only a
// map[string]ProviderConfig whose nested Config is per-provider. There
// is also no notion of "the currently selected brain provider" the way
// the pending-key flow assumes (a single provider/model pair the bot
// falls back to once configured live, rather than one of many named
// agent providers). Both are modeled here as one reserved
// provider entry, id "default", whose nested Config map accumulates
// whatever credential names the pipeline asks to save — the same
// map[string]any shape internal/config.ProviderConfig already uses for
// every other provider.
package configadapter

import (
	"context"

	"github.com/orchestrator/core/internal/config"
)

const defaultProviderID = "default"

type Adapter struct{}

func New() *Adapter { return &Adapter{} }

func (a *Adapter) SaveProvider(ctx context.Context, kind, model string) error {
	cfg, err := config.Get()
	if err != nil {
		return err
	}

	next := make(map[string]config.ProviderConfig, len(cfg.Providers)+1)
	for k, v := range cfg.Providers {
		next[k] = v
	}
	existing, ok := next[defaultProviderID]
	providerCfg := make(map[string]any, len(existing.Config)+1)
	if ok {
		for k, v := range existing.Config {
			providerCfg[k] = v
		}
	}
	providerCfg["model"] = model
	next[defaultProviderID] = config.ProviderConfig{ID: defaultProviderID, Type: kind, Config: providerCfg}

	if err := config.Apply("providers", &next); err != nil {
		return err
	}
	return config.Save()
}

func (a *Adapter) SaveCredential(ctx context.Context, name, value string) error {
	cfg, err := config.Get()
	if err != nil {
		return err
	}

	next := make(map[string]config.ProviderConfig, len(cfg.Providers)+1)
	for k, v := range cfg.Providers {
		next[k] = v
	}
	existing := next[defaultProviderID]
	providerCfg := make(map[string]any, len(existing.Config)+1)
	for k, v := range existing.Config {
		providerCfg[k] = v
	}
	providerCfg[name] = value
	if existing.Type == "" {
		existing.Type = defaultProviderID
	}
	next[defaultProviderID] = config.ProviderConfig{ID: defaultProviderID, Type: existing.Type, Config: providerCfg}

	if err := config.Apply("providers", &next); err != nil {
		return err
	}
	return config.Save()
}
