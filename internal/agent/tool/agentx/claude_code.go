package agentx

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
)

const maxOutputBytes = 1 << 20 // 1 MiB

// ClaudeCodeBackend wraps the claude CLI in non-interactive pipe mode.
type ClaudeCodeBackend struct{}

var _ Backend = (*ClaudeCodeBackend)(nil)

func (b *ClaudeCodeBackend) Name() string { return "claude-code" }

func (b *ClaudeCodeBackend) Available() bool {
	_, err := exec.LookPath("claude")
	return err == nil
}

func (b *ClaudeCodeBackend) buildArgs(req *RunRequest) []string {
	args := []string{"-p", req.Prompt, "--dangerously-skip-permissions", "--output-format", "json"}
	if req.ResumeID != "" {
		args = append(args, "--resume", req.ResumeID)
	}
	if req.SystemPrompt != "" {
		args = append(args, "--append-system-prompt", req.SystemPrompt)
	}
	if req.MaxTurns > 0 {
		args = append(args, "--max-turns", strconv.Itoa(req.MaxTurns))
	}
	return args
}

// claudeOutput is the JSON document claude --output-format json emits.
type claudeOutput struct {
	Result    string `json:"result"`
	SessionID string `json:"session_id"`
}

func (b *ClaudeCodeBackend) ParseOutput(raw string, exitCode int) *RunResult {
	var out claudeOutput
	if err := sonic.UnmarshalString(raw, &out); err != nil || out.Result == "" {
		// Not the expected JSON document: hand back the raw text.
		return &RunResult{
			Output:   strings.TrimSpace(raw),
			ExitCode: exitCode,
		}
	}
	return &RunResult{
		CLISessionID: out.SessionID,
		Output:       out.Result,
		ExitCode:     exitCode,
	}
}

func (b *ClaudeCodeBackend) Run(ctx context.Context, req *RunRequest) (*RunResult, error) {
	stdout, _, exitCode, err := runCLI(ctx, "claude", b.buildArgs(req), req.WorkingDir)
	if err != nil {
		return nil, fmt.Errorf("claude-code run: %w", err)
	}
	return b.ParseOutput(stdout.String(), exitCode), nil
}

func (b *ClaudeCodeBackend) Start(ctx context.Context, req *RunRequest) (*Process, error) {
	p, err := startCLI(ctx, "claude", b.buildArgs(req), req.WorkingDir)
	if err != nil {
		return nil, fmt.Errorf("claude-code start: %w", err)
	}
	return p, nil
}
