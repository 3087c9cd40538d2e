package sandbox

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestNewExecutorForToolDisabled(t *testing.T) {
	exec, enabled, err := NewExecutorForTool("", SandboxConfig{}, "exec")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if enabled || exec != nil {
		t.Fatalf("disabled sandbox should yield (nil, false), got (%v, %v)", exec, enabled)
	}
}

func TestNewExecutorForToolUnlistedTool(t *testing.T) {
	exec, enabled, err := NewExecutorForTool("", SandboxConfig{
		Enable:       true,
		Runtime:      "local",
		ApplyToTools: []string{"exec"},
	}, "read")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if enabled || exec != nil {
		t.Fatal("tool outside apply_to_tools should run unsandboxed")
	}
}

func TestNewExecutorForToolLocalBackbone(t *testing.T) {
	workspace := t.TempDir()
	exec, enabled, err := NewExecutorForTool(workspace, SandboxConfig{
		Enable:       true,
		Runtime:      "local",
		ApplyToTools: []string{"exec"},
	}, "exec")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !enabled {
		t.Fatal("expected sandbox enabled")
	}

	res, err := exec.Execute(context.Background(), &ExecRequest{
		WorkingDir: workspace,
		Timeout:    2 * time.Second,
		Command: Command{
			Display:  "echo local-backbone",
			UseShell: true,
		},
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if res.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %d", res.ExitCode)
	}
	if !strings.Contains(string(res.Stdout), "local-backbone") {
		t.Fatalf("unexpected stdout: %q", string(res.Stdout))
	}
}

func TestNewExecutorForToolUnsupportedBackbone(t *testing.T) {
	_, _, err := NewExecutorForTool("", SandboxConfig{
		Enable:       true,
		Runtime:      "unknown",
		ApplyToTools: []string{"exec"},
	}, "exec")
	if err == nil || !strings.Contains(err.Error(), "unsupported sandbox backbone") {
		t.Fatalf("expected unsupported-backbone error, got %v", err)
	}
}
