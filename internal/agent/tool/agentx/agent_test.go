package agentx

import (
	"context"
	"strings"
	"testing"
)

func TestAgentToolInfo(t *testing.T) {
	tool := NewAgentTool("")
	if tool.Name() != "agent" {
		t.Fatalf("expected name 'agent', got %q", tool.Name())
	}
	info := tool.ToolInfo()
	if info.Name != "agent" {
		t.Fatalf("ToolInfo name = %q", info.Name)
	}
	if info.ParamsOneOf == nil {
		t.Fatal("expected ParamsOneOf to be set")
	}
}

func TestAgentToolExecuteErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    map[string]interface{}
		wantErr string
	}{
		{"missing action", map[string]interface{}{}, "action is required"},
		{"unknown action", map[string]interface{}{"action": "fly"}, "unsupported action"},
		{"create without backend", map[string]interface{}{"action": "create", "prompt": "hello"}, "backend is required"},
		{"create with unknown backend", map[string]interface{}{"action": "create", "backend": "nonexistent", "prompt": "hello"}, "unknown backend"},
		{"status of unknown session", map[string]interface{}{"action": "status", "session_id": "as-999"}, "not found"},
		{"destroy of unknown session", map[string]interface{}{"action": "destroy", "session_id": "as-999"}, "not found"},
	}

	tool := NewAgentTool("")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tool.Execute(context.Background(), tt.args)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestAgentToolExecuteList(t *testing.T) {
	tool := NewAgentTool("")
	res, err := tool.Execute(context.Background(), map[string]interface{}{"action": "list"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m, ok := res.(map[string]interface{})
	if !ok {
		t.Fatalf("expected map result, got %T", res)
	}
	sessions, ok := m["sessions"]
	if !ok {
		t.Fatal("expected 'sessions' key in result")
	}
	list, ok := sessions.([]map[string]interface{})
	if !ok {
		t.Fatalf("expected []map[string]interface{}, got %T", sessions)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty session list, got %d", len(list))
	}
}
