package sandbox

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
)

func testGoJudgeConfig(endpoint string) GoJudgeConfig {
	return GoJudgeConfig{
		Endpoint:          endpoint,
		RequestTimeoutSec: 10,
		WorkdirMount:      "/w",
		CPULimitMS:        4000,
		WallLimitMS:       10000,
		MemoryLimitKB:     262144,
		ProcLimit:         128,
		MaxStdoutBytes:    1024,
		MaxStderrBytes:    1024,
	}
}

func TestGoJudgeExecuteSuccess(t *testing.T) {
	workspace := t.TempDir()
	if err := os.MkdirAll(filepath.Join(workspace, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir subdir: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/run" {
			http.Error(w, "unexpected path", http.StatusNotFound)
			return
		}

		var payload map[string]interface{}
		if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		cmds, _ := payload["cmd"].([]interface{})
		if len(cmds) != 1 {
			http.Error(w, "missing cmd", http.StatusBadRequest)
			return
		}
		cmd, _ := cmds[0].(map[string]interface{})
		// The host subdirectory must have been remapped under the mount.
		if cwd, _ := cmd["cwd"].(string); cwd != "/w/sub" {
			http.Error(w, "unexpected cwd: "+cwd, http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"status":"Accepted","exitStatus":0,"files":{"stdout":"ok\n","stderr":""}}]}`))
	}))
	defer srv.Close()

	exec := NewGoJudgeExecutor(workspace, testGoJudgeConfig(srv.URL))
	res, err := exec.Execute(context.Background(), &ExecRequest{
		WorkingDir: filepath.Join(workspace, "sub"),
		Timeout:    4 * time.Second,
		Command: Command{
			Display:  "echo hello",
			UseShell: true,
		},
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if res.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %d", res.ExitCode)
	}
	if string(res.Stdout) != "ok\n" {
		t.Fatalf("unexpected stdout: %q", string(res.Stdout))
	}
}

func TestGoJudgeExecuteTimeoutStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"status":"Time Limit Exceeded","exitStatus":0,"files":{"stdout":"","stderr":"timeout"}}]`))
	}))
	defer srv.Close()

	exec := NewGoJudgeExecutor(t.TempDir(), testGoJudgeConfig(srv.URL))
	res, err := exec.Execute(context.Background(), &ExecRequest{
		Timeout: 2 * time.Second,
		Command: Command{
			Display:  "sleep 3",
			UseShell: true,
		},
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if !res.TimedOut {
		t.Fatal("expected timeout=true")
	}
	if res.ExitCode != -1 {
		t.Fatalf("expected timeout exit code -1, got %d", res.ExitCode)
	}
	if !strings.Contains(string(res.Stderr), "timeout") {
		t.Fatalf("unexpected stderr: %q", string(res.Stderr))
	}
}

func TestGoJudgeRejectsWorkingDirOutsideWorkspace(t *testing.T) {
	exec := NewGoJudgeExecutor(t.TempDir(), testGoJudgeConfig("http://127.0.0.1:5050"))

	_, err := exec.Execute(context.Background(), &ExecRequest{
		WorkingDir: "/tmp",
		Timeout:    time.Second,
		Command: Command{
			Display:  "echo test",
			UseShell: true,
		},
	})
	if err == nil || !strings.Contains(err.Error(), "within workspace") {
		t.Fatalf("expected within-workspace error, got %v", err)
	}
}

func TestGoJudgeBuildArgs(t *testing.T) {
	exec := NewGoJudgeExecutor("", testGoJudgeConfig("http://127.0.0.1:5050"))

	args, err := exec.buildArgs(Command{Program: "ls", Args: []string{"-la"}})
	if err != nil {
		t.Fatalf("buildArgs: %v", err)
	}
	if len(args) != 2 || args[0] != "ls" || args[1] != "-la" {
		t.Fatalf("unexpected args: %v", args)
	}

	args, err = exec.buildArgs(Command{Display: "echo hi | wc -c", UseShell: true})
	if err != nil {
		t.Fatalf("buildArgs shell: %v", err)
	}
	if args[0] != "/bin/sh" || args[1] != "-lc" {
		t.Fatalf("unexpected shell args: %v", args)
	}

	if _, err := exec.buildArgs(Command{}); err == nil {
		t.Fatal("expected error for empty command")
	}
}
