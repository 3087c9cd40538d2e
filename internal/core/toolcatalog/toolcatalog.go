// Package toolcatalog adapts internal/agent/tool.Registry to the
// core's ports.ToolCatalog interface, so the Worker Runtime and
// Orchestrator Loop can execute the registered read/write/edit/exec/
// web tools, scoped per worker type via
// workertype.Type.ToolAllowList.
package toolcatalog

import (
	"context"

	"github.com/orchestrator/core/internal/agent/tool"
	"github.com/orchestrator/core/internal/core/ports"
)

// Adapter wraps a *tool.Registry. Execute's argument/return types are
// already identical to ports.ToolCatalog's (map[string]any is
// map[string]interface{}), so no value translation is needed there —
// only the Specs listing requires adapting tool.Tool.ToolInfo() into
// ports.ToolSpec.
type Adapter struct {
	Registry *tool.Registry
}

func New(reg *tool.Registry) *Adapter {
	return &Adapter{Registry: reg}
}

func (a *Adapter) Execute(ctx context.Context, name string, input map[string]any) (any, error) {
	return a.Registry.Execute(ctx, name, input)
}

// Specs lists the tool definitions visible under allow (nil means every
// registered tool). Parameter schemas are left minimal: eino's
// schema.ParamsOneOf exposes no reverse accessor, so round-tripping it
// into a JSON-schema map is not attempted here. Name/Description
// carry everything a ports.ModelProvider needs to advertise the tool;
// internal/core/modeladapter looks registered tools up by name and
// advertises the registry's full ToolInfo instead of this map.
func (a *Adapter) Specs(allow []string) []ports.ToolSpec {
	allowed := func(string) bool { return true }
	if allow != nil {
		set := make(map[string]struct{}, len(allow))
		for _, n := range allow {
			set[n] = struct{}{}
		}
		allowed = func(name string) bool {
			_, ok := set[name]
			return ok
		}
	}

	tools := a.Registry.List()
	out := make([]ports.ToolSpec, 0, len(tools))
	for _, t := range tools {
		if !allowed(t.Name()) {
			continue
		}
		out = append(out, ports.ToolSpec{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  map[string]any{"type": "object"},
		})
	}
	return out
}

var _ ports.ToolCatalog = (*Adapter)(nil)
