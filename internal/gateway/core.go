package gateway

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/orchestrator/core/internal/agent/tool"
	"github.com/orchestrator/core/internal/agent/tool/agentx"
	"github.com/orchestrator/core/internal/agent/tool/cronx"
	"github.com/orchestrator/core/internal/agent/tool/filex"
	"github.com/orchestrator/core/internal/agent/tool/httpx"
	"github.com/orchestrator/core/internal/agent/tool/msgx"
	"github.com/orchestrator/core/internal/agent/tool/qmdx"
	"github.com/orchestrator/core/internal/agent/tool/shellx"
	"github.com/orchestrator/core/internal/agent/tool/webx"
	"github.com/orchestrator/core/internal/channel"
	"github.com/orchestrator/core/internal/config"
	"github.com/orchestrator/core/internal/core/automation"
	"github.com/orchestrator/core/internal/core/chatpipeline"
	"github.com/orchestrator/core/internal/core/clockwork"
	"github.com/orchestrator/core/internal/core/configadapter"
	"github.com/orchestrator/core/internal/core/convstore"
	"github.com/orchestrator/core/internal/core/jobmanager"
	"github.com/orchestrator/core/internal/core/lifeengine"
	"github.com/orchestrator/core/internal/core/modeladapter"
	"github.com/orchestrator/core/internal/core/orchestrator"
	"github.com/orchestrator/core/internal/core/ports"
	"github.com/orchestrator/core/internal/core/toolcatalog"
	"github.com/orchestrator/core/internal/core/transportadapter"
	"github.com/orchestrator/core/internal/core/workerruntime"
	"github.com/orchestrator/core/internal/pkg/logs"
	"github.com/orchestrator/core/internal/provider"
	"github.com/orchestrator/core/internal/security/pairing"
)

// adaptProcessFunc wraps an orchestrator.Loop's ProcessMessage as a
// chatpipeline.ProcessFunc: the callback types have identical
// underlying signatures but are distinct named types across packages.
func adaptProcessFunc(loop *orchestrator.Loop) chatpipeline.ProcessFunc {
	return func(ctx context.Context, chat, text, user string, onUpdate chatpipeline.UpdateFunc, edit chatpipeline.EditFunc, sendPhoto chatpipeline.SendPhotoFunc) (string, error) {
		return loop.ProcessMessage(ctx, chat, text, user, orchestrator.UpdateFunc(onUpdate), orchestrator.EditFunc(edit), orchestrator.SendPhotoFunc(sendPhoto))
	}
}

// core bundles the orchestrator pipeline built on top of
// internal/core/*, shared across every configured channel: one
// Conversation Store, one Job Manager, one Orchestrator Loop, one
// Automation Manager, one Life Engine. Each enabled channel gets its
// own chatpipeline.Pipeline (lanes, batching, authorization are
// per-chat and per-channel) and its own transportadapter, whose
// channel-qualified chat keys keep cross-channel chat IDs apart.
type core struct {
	loop    *orchestrator.Loop
	auto    *automation.Manager
	life    *lifeengine.Engine
	jobs    *jobmanager.Manager
	conv    *convstore.Store
	tools   *tool.Registry
	workdir string

	transports map[string]*transportadapter.Adapter
	pipelines  map[string]*chatpipeline.Pipeline

	// synthetic is a transportless pipeline whose only job is lane
	// discipline for chats no attached channel owns (the life engine's
	// reserved chat, cron fires before any channel is up). Prompts run
	// through it get the same per-chat FIFO serialization as live
	// traffic, with no delivery surface.
	synthetic *chatpipeline.Pipeline
}

// initCore builds the single shared orchestrator core. The first
// configured agent (sorted by ID for determinism) lends its workspace
// and model chain; every enabled channel is then attached to this one
// core rather than to a per-agent instance.
func (gw *Gateway) initCore(ctx context.Context, cfg *config.Config) error {
	if len(cfg.Agents) == 0 {
		logs.CtxWarn(ctx, "[gateway] no agents configured, orchestrator core not started")
		return nil
	}

	ids := make([]string, 0, len(cfg.Agents))
	for id := range cfg.Agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	primary := cfg.Agents[ids[0]]

	workdir := primary.Workspace
	if workdir == "" {
		workdir = "."
	}

	registry := tool.NewRegistry()
	registerCoreTools(registry, workdir)

	providers, err := modelChain(primary, registry)
	if err != nil {
		return fmt.Errorf("build model chain for agent %s: %w", ids[0], err)
	}
	if len(providers) == 0 {
		return fmt.Errorf("agent %s has no usable model spec", ids[0])
	}

	clock := clockwork.System{}
	catalog := toolcatalog.New(registry)
	conv := convstore.New(clock, filepath.Join(workdir, "conversations.json"), 200)
	jobs := jobmanager.New(clock, 4)
	runtime := workerruntime.New(providers, catalog, clock)

	// Both fire funcs route through runSerializedTurn so automation and
	// life-engine prompts share the per-chat FIFO lane live traffic
	// uses; they only fire after Load below, by which point the core is
	// fully assembled.
	autoFire := func(ctx context.Context, chat, prompt string) error {
		_, err := gw.runSerializedTurn(ctx, chat, prompt, "automation", true)
		return err
	}
	qhCfg := cfg.Life.QuietHours
	hasQuietCfg := qhCfg.Start != nil && qhCfg.End != nil
	startHour, endHour := 0, 0
	if hasQuietCfg {
		startHour, endHour = *qhCfg.Start, *qhCfg.End
	}
	quiet := clockwork.ResolveQuietHours(startHour, endHour, hasQuietCfg)
	autos := automation.New(clock, quiet, filepath.Join(workdir, "automations.json"), autoFire, nil)

	loop := orchestrator.New(orchestrator.Loop{
		Clock:       clock,
		Conv:        conv,
		Jobs:        jobs,
		Runtime:     runtime,
		Automations: autos,
		Providers:   providers,
		Notify: func(ctx context.Context, chat, text string) error {
			gw.deliverCorePrompt(ctx, chat, text)
			return nil
		},
	})

	lifeFire := func(ctx context.Context, chat, prompt string) error {
		_, err := gw.runSerializedTurn(ctx, chat, prompt, "system", false)
		return err
	}
	life := lifeengine.New(clock, lifeFire, time.Hour, 10*time.Minute)

	gw.core = &core{
		loop:       loop,
		auto:       autos,
		life:       life,
		jobs:       jobs,
		conv:       conv,
		tools:      registry,
		workdir:    workdir,
		transports: make(map[string]*transportadapter.Adapter),
		pipelines:  make(map[string]*chatpipeline.Pipeline),
		synthetic:  chatpipeline.New(chatpipeline.Pipeline{Process: adaptProcessFunc(loop)}),
	}

	// Load only after gw.core is assigned: Load arms persisted
	// automations, and an armed timer firing immediately must find the
	// serialization surface in place.
	if err := conv.Load(); err != nil {
		logs.CtxWarn(ctx, "[gateway] load conversations: %v", err)
	}
	if err := autos.Load(); err != nil {
		logs.CtxWarn(ctx, "[gateway] load automations: %v", err)
	}

	logs.CtxInfo(ctx, "[gateway] orchestrator core started (workspace=%s, providers=%d)", workdir, len(providers))
	return nil
}

// registerCoreTools populates the registry dispatched workers draw
// their scoped tool sets from: file read/write/list/delete/edit,
// messaging, shell exec and process control, document search when the
// qmd binary is present, web fetch/search, raw HTTP, cron, and the
// external coding-agent bridge.
func registerCoreTools(registry *tool.Registry, workspace string) {
	allowedPaths := []string{workspace}
	_ = registry.Register(filex.NewFileTool(workspace, allowedPaths))
	_ = registry.Register(filex.NewReadTool(workspace, allowedPaths))
	_ = registry.Register(filex.NewWriteTool(workspace, allowedPaths))
	_ = registry.Register(filex.NewListTool(workspace, allowedPaths))
	_ = registry.Register(filex.NewDeleteTool(workspace, allowedPaths))
	_ = registry.Register(filex.NewEditTool(workspace, allowedPaths))
	_ = registry.Register(msgx.NewMessageTool())
	_ = registry.Register(shellx.NewExecTool(workspace))
	_ = registry.Register(shellx.NewProcessTool(workspace))
	if qmdx.Available() {
		_ = registry.Register(qmdx.NewSearchTool())
		_ = registry.Register(qmdx.NewGetTool())
	}
	_ = registry.Register(webx.NewFetchTool())
	_ = registry.Register(webx.NewSearchTool())
	_ = registry.Register(httpx.NewRequestTool())
	_ = registry.Register(cronx.NewCronTool())
	_ = registry.Register(agentx.NewAgentTool(workspace))
}

// modelChain parses an agent's primary+fallback model specs
// ("providerID:modelName") into the ordered ports.ModelProvider chain
// workerruntime.Runtime and orchestrator.Loop try in turn.
func modelChain(agCfg config.AgentConfig, registry *tool.Registry) ([]ports.ModelProvider, error) {
	specs := append([]string{agCfg.Models.Primary}, agCfg.Models.Fallback...)
	out := make([]ports.ModelProvider, 0, len(specs))
	for _, spec := range specs {
		if spec == "" {
			continue
		}
		ms, err := provider.ParseModelSpec(spec)
		if err != nil {
			return nil, fmt.Errorf("invalid model spec %q: %w", spec, err)
		}
		prov, err := provider.Get(ms.ProviderID)
		if err != nil {
			continue
		}
		out = append(out, modeladapter.New(prov, ms.ModelName, registry))
	}
	return out, nil
}

// attachChannel wires one registered channel into the shared
// orchestrator core: a transportadapter.Adapter for send/receive and a
// dedicated chatpipeline.Pipeline for its lanes, batching, and
// authorization state.
func (gw *Gateway) attachChannel(ch channel.Channel) *chatpipeline.Pipeline {
	c := gw.core
	tr := transportadapter.New(ch)
	c.transports[ch.ID()] = tr

	router := &chatpipeline.Router{
		Jobs:        c.jobs,
		Automations: c.auto,
		Conv:        c.conv,
		Life:        c.life,
	}

	pipeline := chatpipeline.New(chatpipeline.Pipeline{
		Transport: tr,
		Process:   adaptProcessFunc(c.loop),
		Auth:      pairing.Get(pairing.GetKey(string(ch.Type()), ch.ID())),
		Owner:     chatpipeline.NewFileOwnerStore(filepath.Join(c.workdir, "owner_"+ch.ID()+".json")),
		Config:    configadapter.New(),
		Commands:  router,
	})

	c.pipelines[ch.ID()] = pipeline
	return pipeline
}

// runChannelPump registers the pipeline's transport handler and
// forwards every inbound event to HandleInbound until ctx is canceled.
func runChannelPump(ctx context.Context, tr *transportadapter.Adapter, pipeline *chatpipeline.Pipeline) {
	go func() {
		for {
			select {
			case ev, ok := <-tr.Events():
				if !ok {
					return
				}
				pipeline.HandleInbound(ctx, ev)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// runSerializedTurn routes a synthetic prompt (automation fire,
// life-engine tick, cron message) through the same per-chat FIFO lane
// live traffic for that chat uses, so it can never interleave with a
// user turn and corrupt the chat's history. Chats no attached channel
// owns (the life engine's reserved chat) run through the core's
// transportless synthetic pipeline, which provides the same lane
// discipline without a delivery surface.
func (gw *Gateway) runSerializedTurn(ctx context.Context, chat, prompt, user string, deliver bool) (string, error) {
	c := gw.core
	if c == nil {
		return "", fmt.Errorf("orchestrator core not running")
	}
	for id, pl := range c.pipelines {
		if len(chat) > len(id) && chat[:len(id)] == id && chat[len(id)] == '|' {
			return pl.RunSynthetic(ctx, chat, prompt, user, deliver)
		}
	}
	return c.synthetic.RunSynthetic(ctx, chat, prompt, user, false)
}

// deliverCorePrompt delivers an out-of-turn message (job completion)
// to whichever channel the chat key was qualified against. Chat keys
// produced by transportadapter are "channelID|localChatID"; the
// orchestrator's Notify callback routes through here instead of
// holding a direct channel reference.
func (gw *Gateway) deliverCorePrompt(ctx context.Context, chat, text string) {
	if gw.core == nil || text == "" {
		return
	}
	for id, tr := range gw.core.transports {
		if len(chat) > len(id) && chat[:len(id)] == id && chat[len(id)] == '|' {
			if _, err := tr.SendMessage(ctx, chat, text); err != nil {
				logs.CtxWarn(ctx, "[gateway] deliver to %s failed: %v", chat, err)
			}
			return
		}
	}
	logs.CtxWarn(ctx, "[gateway] deliverCorePrompt: no channel matches chat %q", chat)
}
