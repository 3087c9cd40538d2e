package orchestrator

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/orchestrator/core/internal/core/automation"
	"github.com/orchestrator/core/internal/core/clockwork"
	"github.com/orchestrator/core/internal/core/convstore"
	"github.com/orchestrator/core/internal/core/jobmanager"
	"github.com/orchestrator/core/internal/core/ports"
	"github.com/orchestrator/core/internal/core/workerruntime"
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

type stubCatalog struct{}

func (stubCatalog) Execute(ctx context.Context, name string, input map[string]any) (any, error) {
	return map[string]any{"ok": true}, nil
}
func (stubCatalog) Specs(allow []string) []ports.ToolSpec { return nil }

func newLoop(t *testing.T, provider ports.ModelProvider) (*Loop, *jobmanager.Manager) {
	t.Helper()
	clock := clockwork.NewFake(time.Now())
	conv := convstore.New(clock, t.TempDir()+"/conv.json", 200)
	jobs := jobmanager.New(clock, 4)
	rt := workerruntime.New([]ports.ModelProvider{&scriptedProvider{turns: []ports.ChatResult{
		{StopReason: ports.StopEndTurn, Text: "worker done"},
	}}}, stubCatalog{}, clock)
	autos := automation.New(clock, clockwork.QuietHours{}, t.TempDir()+"/auto.json", noopFire, nil)

	l := New(Loop{
		Clock:       clock,
		Conv:        conv,
		Jobs:        jobs,
		Runtime:     rt,
		Automations: autos,
		Providers:   []ports.ModelProvider{provider},
	})
	return l, jobs
}

func noopFire(ctx context.Context, chat, prompt string) error { return nil }

func TestProcessMessageEndTurn(t *testing.T) {
	p := &scriptedProvider{turns: []ports.ChatResult{{StopReason: ports.StopEndTurn, Text: "hello there"}}}
	l, _ := newLoop(t, p)

	reply, err := l.ProcessMessage(context.Background(), "chat1", "hi", "user1", nil, nil, nil)
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if reply != "hello there" {
		t.Fatalf("expected 'hello there', got %q", reply)
	}
	hist := l.Conv.History("chat1")
	if len(hist) != 2 || hist[0].Role != convstore.RoleUser || hist[1].Role != convstore.RoleAssistant {
		t.Fatalf("expected [user, assistant] history, got %+v", hist)
	}
}

func TestProcessMessageDispatchesJobNonBlocking(t *testing.T) {
	p := &scriptedProvider{turns: []ports.ChatResult{
		{
			StopReason: ports.StopToolUse,
			Text:       "dispatching",
			ToolCalls: []ports.ToolCall{{
				ID:   "1",
				Name: "dispatch_task",
				Arguments: map[string]any{
					"worker_type": "coding",
					"task":        "fix the bug",
				},
			}},
		},
		{StopReason: ports.StopEndTurn, Text: "started your job"},
	}}
	l, jobs := newLoop(t, p)

	var updates []string
	onUpdate := func(ctx context.Context, text string) (string, error) {
		updates = append(updates, text)
		return "msg-1", nil
	}
	edit := func(ctx context.Context, msgID, text string) error { return nil }

	reply, err := l.ProcessMessage(context.Background(), "chat1", "please fix it", "user1", onUpdate, edit, nil)
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if reply != "started your job" {
		t.Fatalf("expected final text, got %q", reply)
	}

	jobList := jobs.List("chat1")
	if len(jobList) != 1 {
		t.Fatalf("expected exactly one job, got %d", len(jobList))
	}
	if jobList[0].WorkerType != "coding" {
		t.Fatalf("expected coding worker type, got %q", jobList[0].WorkerType)
	}

	foundStarting := false
	for _, u := range updates {
		if strings.Contains(u, "starting") {
			foundStarting = true
		}
	}
	if !foundStarting {
		t.Fatalf("expected a status message announcing job start, got %v", updates)
	}
}

func TestProcessMessageUnknownWorkerTypeFails(t *testing.T) {
	p := &scriptedProvider{turns: []ports.ChatResult{
		{
			StopReason: ports.StopToolUse,
			Text:       "dispatching",
			ToolCalls: []ports.ToolCall{{
				ID: "1", Name: "dispatch_task",
				Arguments: map[string]any{"worker_type": "not_a_type", "task": "do something"},
			}},
		},
		{StopReason: ports.StopEndTurn, Text: "couldn't dispatch"},
	}}
	l, jobs := newLoop(t, p)

	var kinds []jobmanager.EventKind
	jobs.Subscribe(func(ev jobmanager.Event) { kinds = append(kinds, ev.Kind) })

	_, err := l.ProcessMessage(context.Background(), "chat1", "do it", "user1", nil, nil, nil)
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	jobList := jobs.List("chat1")
	if len(jobList) != 1 || jobList[0].Status != jobmanager.StatusFailed {
		t.Fatalf("expected one failed job, got %+v", jobList)
	}
	// Even this immediate failure reads as a full lifecycle.
	if len(kinds) != 2 || kinds[0] != jobmanager.EventStarted || kinds[1] != jobmanager.EventFailed {
		t.Fatalf("unexpected event sequence: %v", kinds)
	}
}

func TestProcessMessageDepthExhausted(t *testing.T) {
	turns := make([]ports.ChatResult, 0, DefaultMaxToolDepth)
	for i := 0; i < DefaultMaxToolDepth; i++ {
		turns = append(turns, ports.ChatResult{StopReason: ports.StopToolUse, Text: "thinking", ToolCalls: []ports.ToolCall{
			{ID: "x", Name: "list_jobs"},
		}})
	}
	p := &scriptedProvider{turns: turns}
	l, _ := newLoop(t, p)

	reply, err := l.ProcessMessage(context.Background(), "chat1", "loop forever", "user1", nil, nil, nil)
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if !strings.Contains(reply, "maximum orchestrator depth") {
		t.Fatalf("expected depth-exhaustion message, got %q", reply)
	}
}

func TestJobCompletionDeliversNotifyAndConversation(t *testing.T) {
	p := &scriptedProvider{turns: []ports.ChatResult{
		{
			StopReason: ports.StopToolUse,
			Text:       "dispatching",
			ToolCalls: []ports.ToolCall{{
				ID: "1", Name: "dispatch_task",
				Arguments: map[string]any{"worker_type": "coding", "task": "ship it"},
			}},
		},
		{StopReason: ports.StopEndTurn, Text: "on it"},
	}}
	l, jobs := newLoop(t, p)

	var mu sync.Mutex
	var notified []string
	l.Notify = func(ctx context.Context, chat, text string) error {
		mu.Lock()
		defer mu.Unlock()
		notified = append(notified, text)
		return nil
	}

	if _, err := l.ProcessMessage(context.Background(), "chat1", "ship it please", "user1", nil, nil, nil); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		jobList := jobs.List("chat1")
		if len(jobList) == 1 && jobList[0].Status == jobmanager.StatusCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job never completed: %+v", jobList)
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(notified) != 1 {
		t.Fatalf("expected exactly one notify call, got %v", notified)
	}
	if !strings.Contains(notified[0], "finished") {
		t.Fatalf("expected a completion chunk, got %q", notified[0])
	}

	hist := l.Conv.History("chat1")
	foundChunk := false
	for _, m := range hist {
		if strings.Contains(m.Content, "worker done") {
			foundChunk = true
		}
	}
	if !foundChunk {
		t.Fatalf("expected the job result to be appended to conversation history, got %+v", hist)
	}
}
