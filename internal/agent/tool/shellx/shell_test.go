package shellx

import (
	"context"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestParseCommandArg(t *testing.T) {
	t.Run("string runs through the shell", func(t *testing.T) {
		cmd, err := parseCommandArg("echo hello")
		if err != nil {
			t.Fatalf("parseCommandArg(string) error: %v", err)
		}
		if cmd == nil || !cmd.useShell || cmd.display != "echo hello" {
			t.Fatalf("unexpected parsed command: %+v", cmd)
		}
	})

	t.Run("slice runs argv directly", func(t *testing.T) {
		cmd, err := parseCommandArg([]interface{}{"echo", "hello"})
		if err != nil {
			t.Fatalf("parseCommandArg([]interface{}) error: %v", err)
		}
		if cmd == nil || cmd.useShell || cmd.program != "echo" {
			t.Fatalf("unexpected parsed command: %+v", cmd)
		}
		if len(cmd.argv) != 1 || cmd.argv[0] != "hello" {
			t.Fatalf("unexpected argv: %+v", cmd.argv)
		}
	})
}

func TestExecToolCommandArray(t *testing.T) {
	echoPath, err := exec.LookPath("echo")
	if err != nil {
		t.Fatalf("echo not found in PATH: %v", err)
	}

	tl := NewExecTool("")
	out, err := tl.Execute(context.Background(), map[string]interface{}{
		"command": []interface{}{echoPath, "hello-from-array"},
	})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	res, ok := out.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected output type: %T", out)
	}
	if !res["success"].(bool) {
		t.Fatalf("expected success=true, got %+v", res)
	}
	if stdout := res["stdout"].(string); !strings.Contains(stdout, "hello-from-array") {
		t.Fatalf("unexpected stdout: %q", stdout)
	}
}

func TestExecToolTimeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("sleep command test is unix-focused")
	}

	tl := NewExecTool("")
	_, err := tl.Execute(context.Background(), map[string]interface{}{
		"command": "sleep 2",
		"timeout": 0.1,
	})
	if err == nil || !strings.Contains(err.Error(), "command timeout") {
		t.Fatalf("expected timeout error, got: %v", err)
	}
}

func TestExecToolCapturesStreamsAndExitCode(t *testing.T) {
	tl := NewExecTool("")
	out, err := tl.Execute(context.Background(), map[string]interface{}{
		"command": "echo out; echo err >&2; exit 7",
	})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	res := out.(map[string]interface{})
	if res["success"].(bool) {
		t.Fatalf("expected success=false, got %+v", res)
	}
	if res["exit_code"].(int) != 7 {
		t.Fatalf("expected exit code 7, got %+v", res["exit_code"])
	}
	if !strings.Contains(res["stdout"].(string), "out") {
		t.Fatalf("unexpected stdout: %q", res["stdout"])
	}
	if !strings.Contains(res["stderr"].(string), "err") {
		t.Fatalf("unexpected stderr: %q", res["stderr"])
	}
}

func TestExecToolTimeoutCap(t *testing.T) {
	tl := NewExecTool("")
	if timeout := tl.resolveTimeout(map[string]interface{}{"timeout": 9999}); timeout != maxTimeout {
		t.Fatalf("expected timeout capped at %v, got %v", maxTimeout, timeout)
	}
}

func TestExecToolOutputTruncation(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix-focused")
	}

	tl := NewExecTool("")
	// ~80 chars per line, 20000 lines is well past the 1 MiB cap.
	out, err := tl.Execute(context.Background(), map[string]interface{}{
		"command": "yes 'aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa' | head -n 20000",
		"timeout": 10,
	})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	res := out.(map[string]interface{})
	if res["truncated"] != true {
		t.Fatal("expected truncated=true for large output")
	}
	if stdout := res["stdout"].(string); len(stdout) > maxExecOutputBytes {
		t.Fatalf("stdout should be capped at %d bytes, got %d", maxExecOutputBytes, len(stdout))
	}
}

func TestResolveWorkDir(t *testing.T) {
	workspace := t.TempDir()

	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{"empty returns workspace", map[string]interface{}{}, workspace},
		{"relative joined with workspace", map[string]interface{}{"working_dir": "sub"}, filepath.Join(workspace, "sub")},
		{"absolute outside workspace rejected", map[string]interface{}{"working_dir": "/tmp"}, workspace},
		{"absolute inside workspace allowed", map[string]interface{}{"working_dir": filepath.Join(workspace, "inner")}, filepath.Join(workspace, "inner")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveWorkDir(workspace, tt.args); got != tt.want {
				t.Fatalf("resolveWorkDir = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProcessToolLifecycle(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("process lifecycle test is unix-focused")
	}

	tl := NewProcessTool("")

	startOut, err := tl.Execute(context.Background(), map[string]interface{}{
		"action":  "start",
		"command": "echo started; sleep 1",
	})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	processID := startOut.(map[string]interface{})["process_id"].(string)
	if processID == "" {
		t.Fatal("empty process_id")
	}

	waitNotRunning(t, tl, processID, 4*time.Second)

	logOut, err := tl.Execute(context.Background(), map[string]interface{}{
		"action":     "log",
		"process_id": processID,
	})
	if err != nil {
		t.Fatalf("log failed: %v", err)
	}
	if stdout := logOut.(map[string]interface{})["stdout"].(string); !strings.Contains(stdout, "started") {
		t.Fatalf("unexpected process stdout: %q", stdout)
	}

	listOut, err := tl.Execute(context.Background(), map[string]interface{}{"action": "list"})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	found := false
	for _, item := range listOut.([]map[string]interface{}) {
		if item["process_id"] == processID {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("process %s not found in list", processID)
	}
}

func TestProcessToolActiveLimit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix-focused")
	}

	tl := NewProcessTool("")

	started := make([]string, 0, maxActiveProcesses)
	for i := 0; i < maxActiveProcesses; i++ {
		out, err := tl.Execute(context.Background(), map[string]interface{}{
			"action":  "start",
			"command": "sleep 30",
		})
		if err != nil {
			t.Fatalf("start #%d failed: %v", i, err)
		}
		started = append(started, out.(map[string]interface{})["process_id"].(string))
	}

	_, err := tl.Execute(context.Background(), map[string]interface{}{
		"action":  "start",
		"command": "echo should-fail",
	})
	if err == nil || !strings.Contains(err.Error(), "too many active processes") {
		t.Fatalf("expected active-limit error, got %v", err)
	}

	for _, id := range started {
		_, _ = tl.Execute(context.Background(), map[string]interface{}{
			"action":     "kill",
			"process_id": id,
		})
	}
}

func TestProcessToolKill(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("process kill test is unix-focused")
	}

	tl := NewProcessTool("")
	startOut, err := tl.Execute(context.Background(), map[string]interface{}{
		"action":  "start",
		"command": "sleep 5",
	})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	processID := startOut.(map[string]interface{})["process_id"].(string)

	if _, err = tl.Execute(context.Background(), map[string]interface{}{
		"action":     "kill",
		"process_id": processID,
	}); err != nil {
		t.Fatalf("kill failed: %v", err)
	}

	waitNotRunning(t, tl, processID, 4*time.Second)
}

// waitNotRunning polls status until the process reports not running.
func waitNotRunning(t *testing.T, tl *ProcessTool, processID string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		statusOut, err := tl.Execute(context.Background(), map[string]interface{}{
			"action":     "status",
			"process_id": processID,
		})
		if err != nil {
			t.Fatalf("status failed: %v", err)
		}
		status := statusOut.(map[string]interface{})
		if running, _ := status["running"].(bool); !running {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("process %s still running, status=%+v", processID, status)
		}
		time.Sleep(50 * time.Millisecond)
	}
}
