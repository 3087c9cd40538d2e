// Package modeladapter adapts internal/provider.Provider (an eino
// chat model wrapper) to the core's ports.ModelProvider, so the Worker
// Runtime and Orchestrator Loop can drive the registered
// OpenAI/Anthropic/Gemini/Ollama/Qwen/Ark providers: the
// model.WithTools/model.WithToolChoice(schema.ToolChoiceAllowed) call
// shape, the schema.Message role mapping, and the
// ToolCalls-non-empty-means-tool_use branch.
package modeladapter

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/orchestrator/core/internal/agent/tool"
	"github.com/orchestrator/core/internal/core/ports"
	"github.com/orchestrator/core/internal/provider"
)

// Adapter wraps one provider.Provider bound to a fixed model name.
//
// req.Tools decides what gets advertised each turn. Names found in the
// bound Registry use the registry's full ToolInfo (its ParamsOneOf
// carries schema detail a ports.ToolSpec map may flatten); names the
// registry does not know (the orchestrator's own dispatch_task family
// lives outside the registry) are converted from the ToolSpec's
// JSON-schema parameter map instead.
type Adapter struct {
	Provider  provider.Provider
	ModelName string
	Tools     *tool.Registry
}

func New(p provider.Provider, modelName string, tools *tool.Registry) *Adapter {
	return &Adapter{Provider: p, ModelName: modelName, Tools: tools}
}

func (a *Adapter) Chat(ctx context.Context, req ports.ChatRequest) (*ports.ChatResult, error) {
	msgs := make([]*schema.Message, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, &schema.Message{Role: schema.System, Content: req.System})
	}
	for _, m := range req.Messages {
		switch m.Role {
		case "assistant":
			msgs = append(msgs, &schema.Message{Role: schema.Assistant, Content: m.Content})
		case "tool":
			msgs = append(msgs, &schema.Message{Role: schema.Tool, Content: m.Content})
		default:
			msgs = append(msgs, &schema.Message{Role: schema.User, Content: m.Content})
		}
	}

	var opts []model.Option
	if infos := a.toolInfos(req.Tools); len(infos) > 0 {
		opts = append(opts,
			model.WithTools(infos),
			model.WithToolChoice(schema.ToolChoiceAllowed),
		)
	}

	resp, err := a.Provider.Generate(ctx, a.ModelName, msgs, opts...)
	if err != nil {
		return nil, fmt.Errorf("provider %s generate: %w", a.Provider.ID(), err)
	}
	if resp == nil {
		return nil, fmt.Errorf("provider %s returned no response", a.Provider.ID())
	}

	if len(resp.ToolCalls) > 0 {
		calls := make([]ports.ToolCall, 0, len(resp.ToolCalls))
		for _, tc := range resp.ToolCalls {
			args := map[string]any{}
			if tc.Function.Arguments != "" {
				_ = sonic.UnmarshalString(tc.Function.Arguments, &args)
			}
			calls = append(calls, ports.ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: args})
		}
		return &ports.ChatResult{ToolCalls: calls, StopReason: ports.StopToolUse, RawContent: resp}, nil
	}

	return &ports.ChatResult{Text: resp.Content, StopReason: ports.StopEndTurn, RawContent: resp}, nil
}

// toolInfos materializes the eino descriptors for the requested tool
// set. An empty request means a plain, tool-free turn.
func (a *Adapter) toolInfos(specs []ports.ToolSpec) []*schema.ToolInfo {
	if len(specs) == 0 {
		return nil
	}
	infos := make([]*schema.ToolInfo, 0, len(specs))
	for _, s := range specs {
		if a.Tools != nil {
			if t, err := a.Tools.Get(s.Name); err == nil {
				infos = append(infos, t.ToolInfo())
				continue
			}
		}
		infos = append(infos, specToolInfo(s))
	}
	return infos
}

// specToolInfo converts a flat JSON-schema parameter map (the only
// shape the orchestrator's tool catalog produces) into an eino
// ToolInfo.
func specToolInfo(s ports.ToolSpec) *schema.ToolInfo {
	return &schema.ToolInfo{
		Name:        s.Name,
		Desc:        s.Description,
		ParamsOneOf: schema.NewParamsOneOfByParams(specParams(s.Parameters)),
	}
}

func specParams(jsonSchema map[string]any) map[string]*schema.ParameterInfo {
	params := make(map[string]*schema.ParameterInfo)
	props, _ := jsonSchema["properties"].(map[string]any)
	required := map[string]bool{}
	switch reqList := jsonSchema["required"].(type) {
	case []string:
		for _, r := range reqList {
			required[r] = true
		}
	case []any:
		for _, r := range reqList {
			if name, ok := r.(string); ok {
				required[name] = true
			}
		}
	}
	for name, raw := range props {
		prop, _ := raw.(map[string]any)
		params[name] = propParam(prop, required[name])
	}
	return params
}

func propParam(prop map[string]any, required bool) *schema.ParameterInfo {
	p := &schema.ParameterInfo{Required: required}
	typ, _ := prop["type"].(string)
	switch typ {
	case "integer":
		p.Type = schema.Integer
	case "number":
		p.Type = schema.Number
	case "boolean":
		p.Type = schema.Boolean
	case "array":
		p.Type = schema.Array
		if items, ok := prop["items"].(map[string]any); ok {
			p.ElemInfo = propParam(items, false)
		} else {
			p.ElemInfo = &schema.ParameterInfo{Type: schema.String}
		}
	case "object":
		p.Type = schema.Object
	default:
		p.Type = schema.String
	}
	if desc, ok := prop["description"].(string); ok {
		p.Desc = desc
	}
	switch rawEnum := prop["enum"].(type) {
	case []string:
		p.Enum = rawEnum
	case []any:
		for _, v := range rawEnum {
			if s, ok := v.(string); ok {
				p.Enum = append(p.Enum, s)
			}
		}
	}
	return p
}

func (a *Adapter) Ping(ctx context.Context) error {
	if !a.Provider.IsAvailable() {
		return fmt.Errorf("provider %s unavailable", a.Provider.ID())
	}
	return nil
}

var _ ports.ModelProvider = (*Adapter)(nil)
