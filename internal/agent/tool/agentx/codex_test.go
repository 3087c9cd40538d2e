package agentx

import (
	"os/exec"
	"reflect"
	"testing"
)

func TestCodexBackendIdentity(t *testing.T) {
	b := &CodexBackend{}
	if got := b.Name(); got != "codex" {
		t.Fatalf("Name() = %q", got)
	}

	_, lookErr := exec.LookPath("codex")
	if got, want := b.Available(), lookErr == nil; got != want {
		t.Fatalf("Available() = %v, want %v (LookPath error: %v)", got, want, lookErr)
	}
}

func TestCodexBuildArgs(t *testing.T) {
	b := &CodexBackend{}

	got := b.buildArgs(&RunRequest{Prompt: "hello"})
	want := []string{"exec", "hello", "--json", "--dangerously-bypass-approvals-and-sandbox"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("buildArgs() = %v, want %v", got, want)
	}

	got = b.buildArgs(&RunRequest{Prompt: "hello", ResumeID: "sess-1"})
	want = []string{"exec", "resume", "sess-1", "hello", "--json", "--dangerously-bypass-approvals-and-sandbox"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("buildArgs() with resume = %v, want %v", got, want)
	}
}

func TestCodexParseOutput(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		exitCode int
		want     *RunResult
	}{
		{
			name: "last assistant message wins",
			raw: `{"type":"thread.started","thread_id":"t-1"}
{"type":"item.created","item":{"type":"message","role":"assistant","content":[{"type":"text","text":"working..."}]}}
{"type":"item.created","item":{"type":"message","role":"assistant","content":[{"type":"text","text":"all done!"}]}}
{"type":"turn.completed"}`,
			want: &RunResult{CLISessionID: "t-1", Output: "all done!"},
		},
		{
			name: "thread_id recorded as session",
			raw: `{"type":"thread.started","thread_id":"sess-abc"}
{"type":"item.created","item":{"type":"message","role":"assistant","content":[{"type":"text","text":"hello"}]}}`,
			want: &RunResult{CLISessionID: "sess-abc", Output: "hello"},
		},
		{
			name:     "no assistant messages falls back to raw",
			raw:      `{"type":"thread.started","thread_id":"t-2"}`,
			exitCode: 1,
			want:     &RunResult{CLISessionID: "t-2", Output: `{"type":"thread.started","thread_id":"t-2"}`, ExitCode: 1},
		},
		{
			name: "invalid json falls back to raw",
			raw:  "not json at all",
			want: &RunResult{Output: "not json at all"},
		},
	}

	b := &CodexBackend{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.ParseOutput(tt.raw, tt.exitCode); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("ParseOutput() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
