// Package chatpipeline implements the Chat Pipeline: the
// per-chat FIFO queue, the sliding batch window, the pending-input
// state machines, authorization, typing indicators with human-like
// send delays, and message splitting that sit between a Transport and
// the Orchestrator Loop.
package chatpipeline

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/orchestrator/core/internal/core/ports"
	"github.com/orchestrator/core/internal/pkg/logs"
	"github.com/orchestrator/core/internal/pkg/metrics"
)

// DefaultBatchWindow is the sliding coalescing window, configurable
// per deployment.
const DefaultBatchWindow = 3 * time.Second

const (
	laneBuffer     = 32
	typingInterval = 4 * time.Second
	maxMessageLen  = 4096
)

const (
	firstChunkPerChar = 25 * time.Millisecond
	firstChunkMin     = 400 * time.Millisecond
	firstChunkMax     = 4000 * time.Millisecond

	interChunkPerChar = 8 * time.Millisecond
	interChunkMin     = 300 * time.Millisecond
	interChunkMax     = 1500 * time.Millisecond
)

// ProcessFunc is the pipeline's one collaborator call into the
// Orchestrator Loop. Declared as a narrow func type rather than
// an import of package orchestrator so either package may be tested
// and reasoned about in isolation; the gateway wiring binds the two.
type ProcessFunc func(ctx context.Context, chat, text, user string, onUpdate UpdateFunc, edit EditFunc, sendPhoto SendPhotoFunc) (string, error)

type UpdateFunc func(ctx context.Context, text string) (msgID string, err error)
type EditFunc func(ctx context.Context, msgID, text string) error
type SendPhotoFunc func(ctx context.Context, path, caption string) error

// Authorizer backs the allow-list half of the authorization step.
// Satisfied by *internal/security/pairing.Manager.
type Authorizer interface {
	IsAllowed(chatKey, userID string) (bool, error)
	GrantACL(chatKey, userID string) (bool, error)
}

// OwnerStore persists the first-ever user as owner.
type OwnerStore interface {
	Owner() (id string, ok bool)
	SetOwner(id string) error
}

// Pipeline is the Chat Pipeline. It owns the per-chat FIFO lanes, the
// batch accumulators, and the pending-input map; it never imports a
// concrete transport or model-provider package.
type Pipeline struct {
	Transport   ports.Transport
	Process     ProcessFunc
	Auth        Authorizer
	Owner       OwnerStore
	Config      ports.ConfigStore
	Commands    *Router
	BatchWindow time.Duration

	// OnSkillCreate and OnCharacterComplete are invoked once their
	// respective pending flow collects all required input.
	OnSkillCreate       SkillCreateFunc
	OnCharacterComplete CharacterCreateFunc

	mu       sync.Mutex
	lanes    map[string]*chatLane
	batches  map[string]*pendingBatch
	pendings map[string]*Pending
}

type chatLane struct {
	tasks chan func()
}

type pendingBatch struct {
	parts        []string
	timer        *time.Timer
	firstArrival time.Time
}

// New builds a ready Pipeline. Commands may be nil if no slash-style
// command surface is wired.
func New(deps Pipeline) *Pipeline {
	p := deps
	if p.BatchWindow <= 0 {
		p.BatchWindow = DefaultBatchWindow
	}
	p.lanes = make(map[string]*chatLane)
	p.batches = make(map[string]*pendingBatch)
	p.pendings = make(map[string]*Pending)
	return &p
}

// HandleInbound is the Transport event-stream consumer's entry point.
// Pending-input handlers run first (spec "Apply pending-input handlers
// first"), then authorization, then command bypass / batching.
func (p *Pipeline) HandleInbound(ctx context.Context, ev ports.InboundEvent) {
	if ev.Type != ports.EventMessage {
		return
	}
	if p.tryPending(ctx, ev) {
		return
	}
	if !p.authorize(ctx, ev) {
		return
	}
	if p.Commands != nil && p.Commands.IsCommand(ev.Text) {
		p.enqueue(ev.Chat, func() { p.runCommand(ctx, ev) })
		return
	}
	p.batch(ctx, ev)
}

// BeginPending installs a pending-input state machine for chat. Called
// by the command router (e.g. "brain <provider> <model>" arms
// PendingBrainKey) and by the pending handlers themselves when a
// multi-step flow advances to its next step.
func (p *Pipeline) BeginPending(chat string, pend Pending) {
	p.mu.Lock()
	p.pendings[chat] = &pend
	p.mu.Unlock()
}

func (p *Pipeline) clearPending(chat string) {
	p.mu.Lock()
	delete(p.pendings, chat)
	p.mu.Unlock()
}

func (p *Pipeline) authorize(ctx context.Context, ev ports.InboundEvent) bool {
	if p.Owner == nil {
		return true
	}
	ownerID, hasOwner := p.Owner.Owner()
	if !hasOwner {
		if err := p.Owner.SetOwner(ev.User); err != nil {
			logs.Warn("[chatpipeline] failed to register owner: %v", err)
			return false
		}
		if p.Auth != nil {
			if _, err := p.Auth.GrantACL(ev.Chat, ev.User); err != nil {
				logs.Warn("[chatpipeline] failed to grant owner ACL: %v", err)
			}
		}
		return true
	}
	if ev.User == ownerID {
		return true
	}
	if p.Auth == nil {
		return false
	}
	allowed, err := p.Auth.IsAllowed(ev.Chat, ev.User)
	if err != nil {
		logs.Warn("[chatpipeline] authorization check failed: %v", err)
		return false
	}
	return allowed
}

// batch implements the sliding coalescing window: each arrival resets
// the timer; when it fires, the accumulated parts are merged and
// handed to the per-chat FIFO exactly once.
func (p *Pipeline) batch(ctx context.Context, ev ports.InboundEvent) {
	chat := ev.Chat
	p.mu.Lock()
	b, ok := p.batches[chat]
	if !ok {
		b = &pendingBatch{firstArrival: time.Now()}
		p.batches[chat] = b
	}
	b.parts = append(b.parts, ev.Text)
	if b.timer != nil {
		b.timer.Stop()
	}
	user := ev.User
	b.timer = time.AfterFunc(p.BatchWindow, func() { p.fireBatch(ctx, chat, user) })
	p.mu.Unlock()
}

func (p *Pipeline) fireBatch(ctx context.Context, chat, user string) {
	p.mu.Lock()
	b, ok := p.batches[chat]
	if !ok {
		p.mu.Unlock()
		return
	}
	delete(p.batches, chat)
	parts := b.parts
	p.mu.Unlock()

	metrics.BatchWindowSeconds.Observe(time.Since(b.firstArrival).Seconds())
	merged := mergeBatch(parts)
	p.enqueue(chat, func() { p.runTurn(ctx, chat, merged, user) })
}

func mergeBatch(parts []string) string {
	if len(parts) == 1 {
		return parts[0]
	}
	chunks := make([]string, len(parts))
	for i, t := range parts {
		chunks[i] = fmt.Sprintf("[%d]: %s", i+1, t)
	}
	return strings.Join(chunks, "\n\n")
}

// enqueue appends a FIFO task for chat, spawning the lane's goroutine
// if this is the first outstanding task. The lane exits, and its map
// entry is removed, once it drains, keeping the lane map bounded.
func (p *Pipeline) enqueue(chat string, task func()) {
	p.mu.Lock()
	l, ok := p.lanes[chat]
	if !ok {
		l = &chatLane{tasks: make(chan func(), laneBuffer)}
		p.lanes[chat] = l
		go p.runLane(chat, l)
	}
	l.tasks <- task
	p.mu.Unlock()
	metrics.ChatQueueDepth.WithLabelValues(chat).Set(float64(len(l.tasks)))
}

func (p *Pipeline) runLane(chat string, l *chatLane) {
	for {
		task := <-l.tasks
		task()

		p.mu.Lock()
		if len(l.tasks) == 0 {
			delete(p.lanes, chat)
			p.mu.Unlock()
			metrics.ChatQueueDepth.DeleteLabelValues(chat)
			return
		}
		p.mu.Unlock()
		metrics.ChatQueueDepth.WithLabelValues(chat).Set(float64(len(l.tasks)))
	}
}

// runTurn processes one resolved (post-batching) user turn: typing
// indicator while the orchestrator runs, then human-paced delivery of
// the reply.
func (p *Pipeline) runTurn(ctx context.Context, chat, text, user string) {
	reply, err := p.processTurn(ctx, chat, text, user)
	if err != nil {
		logs.Warn("[chatpipeline] process message failed for chat %s: %v", chat, err)
		return
	}
	p.deliver(ctx, chat, reply)
}

// processTurn drives one orchestrator turn with the transport-backed
// callbacks, keeping the typing indicator alive for its duration.
func (p *Pipeline) processTurn(ctx context.Context, chat, text, user string) (string, error) {
	stopTyping := p.startTyping(ctx, chat)
	defer stopTyping()

	onUpdate := func(ctx context.Context, t string) (string, error) {
		return p.Transport.SendMessage(ctx, chat, t)
	}
	edit := func(ctx context.Context, msgID, t string) error {
		return p.Transport.EditMessage(ctx, chat, msgID, t)
	}
	sendPhoto := func(ctx context.Context, path, caption string) error {
		return p.Transport.SendPhoto(ctx, chat, path, caption)
	}

	return p.Process(ctx, chat, text, user, onUpdate, edit, sendPhoto)
}

// RunSynthetic serializes a non-user prompt (automation fire,
// life-engine tick) through chat's FIFO lane, so it can never
// interleave with a live user turn for the same chat, and blocks until
// the orchestrator turn completes. With deliver set the reply takes
// the same typing-indicator and paced-delivery path a user turn's
// reply takes; without it the turn runs silently (the reply is
// returned and still lands in the conversation store).
func (p *Pipeline) RunSynthetic(ctx context.Context, chat, prompt, user string, deliver bool) (string, error) {
	type result struct {
		reply string
		err   error
	}
	done := make(chan result, 1)
	p.enqueue(chat, func() {
		if !deliver {
			reply, err := p.Process(ctx, chat, prompt, user, nil, nil, nil)
			done <- result{reply, err}
			return
		}
		reply, err := p.processTurn(ctx, chat, prompt, user)
		if err == nil {
			p.deliver(ctx, chat, reply)
		}
		done <- result{reply, err}
	})
	r := <-done
	return r.reply, r.err
}

func (p *Pipeline) startTyping(ctx context.Context, chat string) func() {
	stop := make(chan struct{})
	go func() {
		_ = p.Transport.SendChatAction(ctx, chat, ports.ChatActionTyping)
		t := time.NewTicker(typingInterval)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				_ = p.Transport.SendChatAction(ctx, chat, ports.ChatActionTyping)
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(stop) }) }
}

// deliver splits text into transport-sized chunks and paces delivery
// with the human-like delay formula.
func (p *Pipeline) deliver(ctx context.Context, chat, text string) {
	if text == "" {
		return
	}
	chunks := splitMessage(text, maxMessageLen)
	time.Sleep(humanDelay(len(chunks[0]), firstChunkPerChar, firstChunkMin, firstChunkMax))
	for i, c := range chunks {
		if i > 0 {
			time.Sleep(humanDelay(len(c), interChunkPerChar, interChunkMin, interChunkMax))
		}
		if _, err := p.Transport.SendMessage(ctx, chat, c); err != nil {
			logs.Warn("[chatpipeline] send chunk %d/%d failed for chat %s: %v", i+1, len(chunks), chat, err)
			return
		}
	}
}

// humanDelay implements clamp(n*perChar, min, max) with ±15% jitter.
func humanDelay(n int, perChar, min, max time.Duration) time.Duration {
	d := time.Duration(n) * perChar
	if d < min {
		d = min
	}
	if d > max {
		d = max
	}
	jitter := rand.Float64()*0.30 - 0.15
	return time.Duration(float64(d) * (1 + jitter))
}

// splitMessage splits oversized replies: split on the
// last newline before limit when that yields a first chunk at least
// half the limit; otherwise hard-split at limit.
func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	var chunks []string
	for len(text) > limit {
		window := text[:limit]
		cut := strings.LastIndex(window, "\n")
		if cut < limit/2 {
			cut = limit
		}
		chunks = append(chunks, text[:cut])
		text = strings.TrimPrefix(text[cut:], "\n")
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
