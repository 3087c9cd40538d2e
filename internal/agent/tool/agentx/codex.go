package agentx

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/bytedance/sonic"
)

// CodexBackend wraps the codex CLI in non-interactive exec mode.
type CodexBackend struct{}

var _ Backend = (*CodexBackend)(nil)

func (b *CodexBackend) Name() string { return "codex" }

func (b *CodexBackend) Available() bool {
	_, err := exec.LookPath("codex")
	return err == nil
}

func (b *CodexBackend) buildArgs(req *RunRequest) []string {
	args := []string{"exec"}
	if req.ResumeID != "" {
		args = append(args, "resume", req.ResumeID)
	}
	args = append(args, req.Prompt)
	args = append(args, "--json", "--dangerously-bypass-approvals-and-sandbox")
	return args
}

// codexEvent is one JSONL event off the codex CLI stream.
type codexEvent struct {
	Type     string     `json:"type"`
	ThreadID string     `json:"thread_id,omitempty"`
	Item     *codexItem `json:"item,omitempty"`
}

type codexItem struct {
	Type    string         `json:"type"`
	Role    string         `json:"role"`
	Content []codexContent `json:"content"`
}

type codexContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ParseOutput scans the JSONL stream for the thread id and the last
// assistant text; an unparseable stream falls back to the raw text.
func (b *CodexBackend) ParseOutput(raw string, exitCode int) *RunResult {
	result := &RunResult{ExitCode: exitCode}

	var lastAssistantText string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var ev codexEvent
		if err := sonic.UnmarshalString(line, &ev); err != nil {
			continue
		}
		if ev.ThreadID != "" {
			result.CLISessionID = ev.ThreadID
		}
		if ev.Item != nil && ev.Item.Role == "assistant" {
			for _, c := range ev.Item.Content {
				if c.Type == "text" && c.Text != "" {
					lastAssistantText = c.Text
				}
			}
		}
	}

	if lastAssistantText != "" {
		result.Output = lastAssistantText
	} else {
		result.Output = raw
	}
	return result
}

func (b *CodexBackend) Run(ctx context.Context, req *RunRequest) (*RunResult, error) {
	stdout, _, exitCode, err := runCLI(ctx, "codex", b.buildArgs(req), req.WorkingDir)
	if err != nil {
		return nil, fmt.Errorf("codex run: %w", err)
	}
	return b.ParseOutput(stdout.String(), exitCode), nil
}

func (b *CodexBackend) Start(ctx context.Context, req *RunRequest) (*Process, error) {
	p, err := startCLI(ctx, "codex", b.buildArgs(req), req.WorkingDir)
	if err != nil {
		return nil, fmt.Errorf("codex start: %w", err)
	}
	return p, nil
}
