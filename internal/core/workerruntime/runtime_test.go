package workerruntime

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/orchestrator/core/internal/core/clockwork"
	"github.com/orchestrator/core/internal/core/jobmanager"
	"github.com/orchestrator/core/internal/core/ports"
	"github.com/orchestrator/core/internal/core/workertype"
)

type scriptedProvider struct {
	turns []ports.ChatResult
	i     int
}

func (p *scriptedProvider) Chat(ctx context.Context, req ports.ChatRequest) (*ports.ChatResult, error) {
	if p.i >= len(p.turns) {
		return &ports.ChatResult{StopReason: ports.StopEndTurn, Text: "done"}, nil
	}
	r := p.turns[p.i]
	p.i++
	return &r, nil
}
func (p *scriptedProvider) Ping(ctx context.Context) error { return nil }

type stubCatalog struct{ called int }

func (c *stubCatalog) Execute(ctx context.Context, name string, input map[string]any) (any, error) {
	c.called++
	return map[string]any{"ok": true}, nil
}
func (c *stubCatalog) Specs(allow []string) []ports.ToolSpec { return nil }

func TestRunEndTurn(t *testing.T) {
	p := &scriptedProvider{turns: []ports.ChatResult{{StopReason: ports.StopEndTurn, Text: "hi!"}}}
	rt := New([]ports.ModelProvider{p}, &stubCatalog{}, clockwork.NewFake(time.Now()))

	var completed string
	rt.Run(context.Background(), workertype.Type{ID: "coding", Timeout: time.Second}, "", "task", newToken(), Callbacks{
		OnComplete: func(text string) { completed = text },
		OnError:    func(string) { t.Fatalf("unexpected error callback") },
	})
	if completed != "hi!" {
		t.Fatalf("expected completion text 'hi!', got %q", completed)
	}
}

func TestRunToolUseThenComplete(t *testing.T) {
	p := &scriptedProvider{turns: []ports.ChatResult{
		{StopReason: ports.StopToolUse, ToolCalls: []ports.ToolCall{{ID: "1", Name: "shell_exec"}}},
		{StopReason: ports.StopEndTurn, Text: "finished"},
	}}
	cat := &stubCatalog{}
	rt := New([]ports.ModelProvider{p}, cat, clockwork.NewFake(time.Now()))

	var progressLines []string
	var completed string
	rt.Run(context.Background(), workertype.Type{ID: "coding", Emoji: "💻", Timeout: time.Second}, "", "task", newToken(), Callbacks{
		OnProgress: func(line string) { progressLines = append(progressLines, line) },
		OnComplete: func(text string) { completed = text },
		OnError:    func(string) { t.Fatalf("unexpected error callback") },
	})
	if completed != "finished" {
		t.Fatalf("expected completion 'finished', got %q", completed)
	}
	if cat.called != 1 {
		t.Fatalf("expected exactly one tool execution, got %d", cat.called)
	}
	if len(progressLines) != 1 {
		t.Fatalf("expected one progress line, got %v", progressLines)
	}
}

func TestRunCancelPropagates(t *testing.T) {
	p := &blockingProvider{}
	rt := New([]ports.ModelProvider{p}, &stubCatalog{}, clockwork.NewFake(time.Now()))

	tok := newToken()
	errCh := make(chan string, 1)
	go rt.Run(context.Background(), workertype.Type{ID: "coding", Timeout: time.Minute}, "", "task", tok, Callbacks{
		OnComplete: func(string) { t.Errorf("should not complete") },
		OnError:    func(kind string) { errCh <- kind },
	})

	time.Sleep(20 * time.Millisecond)
	tok.Trip()

	select {
	case kind := <-errCh:
		if kind != "cancelled" {
			t.Fatalf("expected cancelled, got %q", kind)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected cancellation to propagate within 2s")
	}
}

type blockingProvider struct{}

func (p *blockingProvider) Chat(ctx context.Context, req ports.ChatRequest) (*ports.ChatResult, error) {
	<-ctx.Done()
	return nil, fmt.Errorf("context done: %w", ctx.Err())
}
func (p *blockingProvider) Ping(ctx context.Context) error { return nil }

func newToken() *jobmanager.CancelToken {
	m := jobmanager.New(clockwork.NewFake(time.Now()), 4)
	job := m.Create("c", "coding", "t", nil)
	return job.CancelToken()
}
