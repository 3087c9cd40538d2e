package agentx

import (
	"context"
	"strings"
	"testing"
)

// mockBackend pins the Backend interface shape at compile time.
type mockBackend struct{}

func (m *mockBackend) Name() string    { return "mock" }
func (m *mockBackend) Available() bool { return true }
func (m *mockBackend) Run(_ context.Context, _ *RunRequest) (*RunResult, error) {
	return &RunResult{}, nil
}
func (m *mockBackend) Start(_ context.Context, _ *RunRequest) (*Process, error) {
	return &Process{}, nil
}
func (m *mockBackend) ParseOutput(raw string, exitCode int) *RunResult {
	return &RunResult{Output: raw, ExitCode: exitCode}
}

var _ Backend = (*mockBackend)(nil)

func TestProcessZeroValue(t *testing.T) {
	// Mocks build Process as a bare zero value; every method must cope
	// with nil done, stdout, and cmd.
	p := &Process{}

	if p.Done() != nil {
		t.Fatal("expected nil done channel for zero-value Process")
	}

	res := p.Result()
	if res.Output != "" || res.ExitCode != 0 {
		t.Fatalf("unexpected zero-value result: %+v", res)
	}

	p.Kill() // must not panic
}

func TestLimitedBuffer(t *testing.T) {
	b := newLimitedBuffer(10)

	n, err := b.Write([]byte("hello"))
	if err != nil || n != 5 {
		t.Fatalf("Write = (%d, %v)", n, err)
	}

	// Overflow: the write "succeeds" but only the first 10 bytes stick.
	n, err = b.Write([]byte(" world and more"))
	if err != nil || n != 15 {
		t.Fatalf("overflow Write = (%d, %v)", n, err)
	}
	if got := b.String(); got != "hello worl" {
		t.Fatalf("buffer = %q", got)
	}
	if !b.truncated {
		t.Fatal("expected truncated flag")
	}

	// Further writes are discarded outright.
	_, _ = b.Write([]byte("xxxx"))
	if len(b.Bytes()) != 10 {
		t.Fatalf("post-truncation length = %d", len(b.Bytes()))
	}
}

func TestLimitedBufferExactFit(t *testing.T) {
	b := newLimitedBuffer(4)
	_, _ = b.Write([]byte("abcd"))
	if b.String() != "abcd" || b.truncated {
		t.Fatalf("exact-fit write: %q truncated=%v", b.String(), b.truncated)
	}
	_, _ = b.Write([]byte("e"))
	if !strings.HasPrefix(b.String(), "abcd") || len(b.String()) != 4 {
		t.Fatalf("after overflow: %q", b.String())
	}
}
