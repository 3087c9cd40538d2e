package agentx

import (
	"os/exec"
	"reflect"
	"testing"
)

func TestClaudeCodeBackendIdentity(t *testing.T) {
	b := &ClaudeCodeBackend{}
	if got := b.Name(); got != "claude-code" {
		t.Fatalf("Name() = %q", got)
	}

	_, lookErr := exec.LookPath("claude")
	if got, want := b.Available(), lookErr == nil; got != want {
		t.Fatalf("Available() = %v, want %v (LookPath error: %v)", got, want, lookErr)
	}
}

func TestClaudeCodeBuildArgs(t *testing.T) {
	base := []string{"-p", "hello", "--dangerously-skip-permissions", "--output-format", "json"}
	tests := []struct {
		name string
		req  *RunRequest
		want []string
	}{
		{"basic", &RunRequest{Prompt: "hello"}, base},
		{"with resume", &RunRequest{Prompt: "hello", ResumeID: "sess-1"},
			append(append([]string{}, base...), "--resume", "sess-1")},
		{"with system prompt", &RunRequest{Prompt: "hello", SystemPrompt: "be safe"},
			append(append([]string{}, base...), "--append-system-prompt", "be safe")},
		{"with max turns", &RunRequest{Prompt: "hello", MaxTurns: 10},
			append(append([]string{}, base...), "--max-turns", "10")},
	}

	b := &ClaudeCodeBackend{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.buildArgs(tt.req); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("buildArgs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClaudeCodeParseOutput(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		exitCode int
		want     *RunResult
	}{
		{
			name:     "valid json",
			raw:      `{"result":"all fixed","session_id":"abc-123"}`,
			exitCode: 0,
			want:     &RunResult{CLISessionID: "abc-123", Output: "all fixed"},
		},
		{
			name:     "invalid json falls back to raw",
			raw:      "some raw output text",
			exitCode: 0,
			want:     &RunResult{Output: "some raw output text"},
		},
		{
			name:     "non-zero exit keeps exit code",
			raw:      `{"result":"partial","session_id":"def-456"}`,
			exitCode: 1,
			want:     &RunResult{CLISessionID: "def-456", Output: "partial", ExitCode: 1},
		},
	}

	b := &ClaudeCodeBackend{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.ParseOutput(tt.raw, tt.exitCode); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("ParseOutput() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
