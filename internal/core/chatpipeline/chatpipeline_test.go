package chatpipeline

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/orchestrator/core/internal/core/clockwork"
	"github.com/orchestrator/core/internal/core/jobmanager"
	"github.com/orchestrator/core/internal/core/ports"
)

type fakeTransport struct {
	mu       sync.Mutex
	sent     []string
	actions  []string
	msgCount int
}

func (f *fakeTransport) SendMessage(ctx context.Context, chat, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	f.msgCount++
	return "msg", nil
}
func (f *fakeTransport) EditMessage(ctx context.Context, chat, msgID, text string) error { return nil }
func (f *fakeTransport) SendPhoto(ctx context.Context, chat, path, caption string) error { return nil }
func (f *fakeTransport) SendChatAction(ctx context.Context, chat string, action ports.ChatAction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, string(action))
	return nil
}
func (f *fakeTransport) SendReaction(ctx context.Context, chat, msgID, emoji string, big bool) error {
	return nil
}
func (f *fakeTransport) DownloadFile(ctx context.Context, fileID string) (string, error) {
	return "", nil
}
func (f *fakeTransport) Events() <-chan ports.InboundEvent { return nil }

func (f *fakeTransport) lastSent() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type memOwnerStore struct {
	mu sync.Mutex
	id string
	ok bool
}

func (s *memOwnerStore) Owner() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id, s.ok
}
func (s *memOwnerStore) SetOwner(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id, s.ok = id, true
	return nil
}

func TestMergeBatchSingleVerbatim(t *testing.T) {
	if got := mergeBatch([]string{"hello"}); got != "hello" {
		t.Fatalf("expected verbatim passthrough, got %q", got)
	}
}

func TestMergeBatchMultipleTagged(t *testing.T) {
	got := mergeBatch([]string{"a", "b"})
	if !strings.Contains(got, "[1]: a") || !strings.Contains(got, "[2]: b") {
		t.Fatalf("expected tagged chunks, got %q", got)
	}
}

func TestSplitMessageUnderLimit(t *testing.T) {
	chunks := splitMessage("short text", 4096)
	if len(chunks) != 1 || chunks[0] != "short text" {
		t.Fatalf("expected single chunk passthrough, got %v", chunks)
	}
}

func TestSplitMessageOnNewline(t *testing.T) {
	limit := 20
	text := strings.Repeat("a", 15) + "\n" + strings.Repeat("b", 15)
	chunks := splitMessage(text, limit)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %v", len(chunks), chunks)
	}
	if chunks[0] != strings.Repeat("a", 15) {
		t.Fatalf("expected split at newline, got %q", chunks[0])
	}
}

func TestSplitMessageHardSplitWhenNewlineTooEarly(t *testing.T) {
	limit := 20
	// newline appears at index 2, well under half the limit -> hard split.
	text := "ab\n" + strings.Repeat("c", 30)
	chunks := splitMessage(text, limit)
	if len(chunks[0]) != limit {
		t.Fatalf("expected hard split at limit, got first chunk len %d", len(chunks[0]))
	}
}

func TestHumanDelayClampsAndJitters(t *testing.T) {
	d := humanDelay(0, firstChunkPerChar, firstChunkMin, firstChunkMax)
	if d < firstChunkMin*85/100 || d > firstChunkMin*115/100 {
		t.Fatalf("expected delay near min with jitter, got %v", d)
	}
	d = humanDelay(100000, firstChunkPerChar, firstChunkMin, firstChunkMax)
	if d < firstChunkMax*85/100 || d > firstChunkMax*115/100 {
		t.Fatalf("expected delay near max with jitter, got %v", d)
	}
}

func TestAuthorizeFirstUserBecomesOwner(t *testing.T) {
	owner := &memOwnerStore{}
	p := New(Pipeline{Owner: owner})

	ok := p.authorize(context.Background(), ports.InboundEvent{Chat: "c1", User: "u1"})
	if !ok {
		t.Fatalf("first user should be authorized as owner")
	}
	id, has := owner.Owner()
	if !has || id != "u1" {
		t.Fatalf("expected owner u1, got %q (has=%v)", id, has)
	}

	ok = p.authorize(context.Background(), ports.InboundEvent{Chat: "c1", User: "u2"})
	if ok {
		t.Fatalf("second user with no ACL/Auth configured should be rejected")
	}
}

func TestBatchingCoalescesWithinWindow(t *testing.T) {
	transport := &fakeTransport{}
	var mu sync.Mutex
	var seen []string
	process := func(ctx context.Context, chat, text, user string, onUpdate UpdateFunc, edit EditFunc, sendPhoto SendPhotoFunc) (string, error) {
		mu.Lock()
		seen = append(seen, text)
		mu.Unlock()
		return "ok", nil
	}
	p := New(Pipeline{Transport: transport, Process: process, BatchWindow: 20 * time.Millisecond})

	p.batch(context.Background(), ports.InboundEvent{Chat: "c1", User: "u1", Text: "first"})
	p.batch(context.Background(), ports.InboundEvent{Chat: "c1", User: "u1", Text: "second"})

	time.Sleep(120 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 {
		t.Fatalf("expected exactly one merged turn, got %d: %v", len(seen), seen)
	}
	if !strings.Contains(seen[0], "first") || !strings.Contains(seen[0], "second") {
		t.Fatalf("expected merged text to contain both parts, got %q", seen[0])
	}
}

func TestBareCancelCommandCancelsAllChatJobs(t *testing.T) {
	clock := clockwork.NewFake(time.Now())
	jobs := jobmanager.New(clock, 4)
	running := jobs.Create("c1", "coding", "long task", nil)
	jobs.Start(running.ID)
	other := jobs.Create("c2", "coding", "unrelated", nil)
	jobs.Start(other.ID)

	r := &Router{Jobs: jobs}
	reply, forward := r.dispatch(context.Background(), nil, ports.InboundEvent{Chat: "c1", User: "u1"}, "cancel", "")
	if forward {
		t.Fatalf("cancel must not fall through to the orchestrator")
	}
	if !strings.Contains(reply, running.ID) {
		t.Fatalf("expected reply to name the cancelled job, got %q", reply)
	}

	got, _ := jobs.Get(running.ID)
	if got.Status != jobmanager.StatusCancelled {
		t.Fatalf("expected running job cancelled, got %s", got.Status)
	}
	untouched, _ := jobs.Get(other.ID)
	if untouched.Status != jobmanager.StatusRunning {
		t.Fatalf("other chat's job must be untouched, got %s", untouched.Status)
	}

	reply, _ = r.dispatch(context.Background(), nil, ports.InboundEvent{Chat: "c1", User: "u1"}, "cancel", "")
	if reply != "no active jobs to cancel." {
		t.Fatalf("expected empty-chat reply, got %q", reply)
	}
}

func TestPendingBrainKeyFlowCancel(t *testing.T) {
	transport := &fakeTransport{}
	p := New(Pipeline{Transport: transport})
	p.BeginPending("c1", Pending{Kind: PendingBrainKey, Provider: "openai", Model: "gpt"})

	handled := p.tryPending(context.Background(), ports.InboundEvent{Chat: "c1", User: "u1", Text: "cancel"})
	if !handled {
		t.Fatalf("expected pending handler to consume the message")
	}
	if transport.lastSent() != "cancelled." {
		t.Fatalf("expected cancellation reply, got %q", transport.lastSent())
	}
	p.mu.Lock()
	_, stillPending := p.pendings["c1"]
	p.mu.Unlock()
	if stillPending {
		t.Fatalf("pending state should be cleared after cancel")
	}
}

func TestPerChatFIFOOrdering(t *testing.T) {
	transport := &fakeTransport{}
	var mu sync.Mutex
	var order []string
	process := func(ctx context.Context, chat, text, user string, onUpdate UpdateFunc, edit EditFunc, sendPhoto SendPhotoFunc) (string, error) {
		if text == "slow" {
			time.Sleep(30 * time.Millisecond)
		}
		mu.Lock()
		order = append(order, text)
		mu.Unlock()
		return "", nil
	}
	p := New(Pipeline{Transport: transport, Process: process})

	done := make(chan struct{})
	p.enqueue("c1", func() { p.runTurn(context.Background(), "c1", "slow", "u1") })
	p.enqueue("c1", func() { p.runTurn(context.Background(), "c1", "fast", "u1") })
	p.enqueue("c1", func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("lane never drained")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "slow" || order[1] != "fast" {
		t.Fatalf("expected strict send-order processing, got %v", order)
	}

	// The lane map entry must be purged once the chain goes idle.
	deadline := time.Now().Add(time.Second)
	for {
		p.mu.Lock()
		_, alive := p.lanes["c1"]
		p.mu.Unlock()
		if !alive {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected drained lane to be removed from the map")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRunSyntheticSerializesWithUserTurns(t *testing.T) {
	transport := &fakeTransport{}
	turnRunning := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	var order []string
	process := func(ctx context.Context, chat, text, user string, onUpdate UpdateFunc, edit EditFunc, sendPhoto SendPhotoFunc) (string, error) {
		if text == "user turn" {
			close(turnRunning)
			<-release
		}
		mu.Lock()
		order = append(order, text)
		mu.Unlock()
		return "", nil
	}
	p := New(Pipeline{Transport: transport, Process: process})

	p.enqueue("c1", func() { p.runTurn(context.Background(), "c1", "user turn", "u1") })
	<-turnRunning

	// The synthetic fire must block behind the in-flight user turn.
	fired := make(chan struct{})
	go func() {
		if _, err := p.RunSynthetic(context.Background(), "c1", "[AUTOMATION: ping] x", "automation", false); err != nil {
			t.Errorf("RunSynthetic: %v", err)
		}
		close(fired)
	}()

	select {
	case <-fired:
		t.Fatalf("synthetic fire ran while a user turn was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatalf("synthetic fire never ran after the user turn finished")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "user turn" || order[1] != "[AUTOMATION: ping] x" {
		t.Fatalf("expected user turn strictly before synthetic fire, got %v", order)
	}
}
