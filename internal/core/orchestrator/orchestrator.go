// Package orchestrator implements the Orchestrator Loop: it builds
// the orchestrator prompt, runs a bounded tool-use loop against an
// orchestrator model, and dispatches long-running work to the Job
// Manager via dispatch_task. Each dispatched job gets a live status
// reporter (status.go) that keeps one transport message updated while
// the job runs.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/orchestrator/core/internal/core/automation"
	"github.com/orchestrator/core/internal/core/clockwork"
	"github.com/orchestrator/core/internal/core/convstore"
	"github.com/orchestrator/core/internal/core/jobmanager"
	"github.com/orchestrator/core/internal/core/ports"
	"github.com/orchestrator/core/internal/core/trunc"
	"github.com/orchestrator/core/internal/core/workertype"
	"github.com/orchestrator/core/internal/core/workerruntime"
	"github.com/orchestrator/core/internal/pkg/logs"
)

// DefaultMaxToolDepth bounds the orchestrator tool-use loop.
const DefaultMaxToolDepth = 15

// DefaultRecentWindow is passed to convstore.GetSummarizedHistory.
const DefaultRecentWindow = 20

// UpdateFunc opens or appends a transport message for the current
// chat, returning its id for later edits.
type UpdateFunc func(ctx context.Context, text string) (msgID string, err error)

// EditFunc mutates a previously opened transport message.
type EditFunc func(ctx context.Context, msgID, text string) error

// SendPhotoFunc delivers a photo reply.
type SendPhotoFunc func(ctx context.Context, path, caption string) error

// Loop is the Orchestrator Loop. It never imports a concrete model
// provider or transport package — only the ports interfaces and the
// sibling core packages it coordinates.
type Loop struct {
	Clock        ports.Clock
	Conv         *convstore.Store
	Jobs         *jobmanager.Manager
	Runtime      *workerruntime.Runtime
	Automations  *automation.Manager
	Providers    []ports.ModelProvider
	Persona      ports.PersonaManager
	Memory       ports.MemoryManager
	MaxToolDepth int
	RecentWindow int

	// Notify delivers a message to chat outside the scope of any one
	// ProcessMessage call — used by the job-completion event
	// subscriber installed once at construction.
	Notify func(ctx context.Context, chat, text string) error

	mu        sync.Mutex
	reporters map[string]*statusReporter // jobID -> live status reporter
}

// New installs the job-event subscriber exactly once and returns a
// ready Loop.
func New(deps Loop) *Loop {
	l := deps
	if l.Clock == nil {
		l.Clock = clockwork.System{}
	}
	if l.MaxToolDepth <= 0 {
		l.MaxToolDepth = DefaultMaxToolDepth
	}
	if l.RecentWindow <= 0 {
		l.RecentWindow = DefaultRecentWindow
	}
	l.reporters = make(map[string]*statusReporter)

	if l.Jobs != nil {
		l.Jobs.Subscribe(l.onJobEvent)
	}
	return &l
}

// onJobEvent is the subscriber installed at construction: it
// formats a result chunk, appends it to the conversation store under
// the originating chat, delivers it through Notify, and finalizes the
// job's live status message.
func (l *Loop) onJobEvent(ev jobmanager.Event) {
	ctx := context.Background()
	j := ev.Job

	l.mu.Lock()
	reporter := l.reporters[j.ID]
	delete(l.reporters, j.ID)
	l.mu.Unlock()

	switch ev.Kind {
	case jobmanager.EventStarted:
		return
	case jobmanager.EventCompleted:
		chunk := fmt.Sprintf("✅ %s finished (%s, %.1fs)\n%s", j.WorkerType, j.ID, j.DurationS, j.Result)
		l.deliver(ctx, j, chunk)
		if reporter != nil {
			reporter.Finish(ctx, fmt.Sprintf("✅ %s %s: Done", j.WorkerType, j.ID))
		}
	case jobmanager.EventFailed:
		chunk := fmt.Sprintf("❌ %s failed (%s): %s", j.WorkerType, j.ID, j.Error)
		l.deliver(ctx, j, chunk)
		if reporter != nil {
			reporter.Finish(ctx, fmt.Sprintf("❌ %s %s: Failed", j.WorkerType, j.ID))
		}
	case jobmanager.EventCancelled:
		chunk := fmt.Sprintf("🚫 Cancelled job %s", j.ID)
		l.deliver(ctx, j, chunk)
		if reporter != nil {
			reporter.Finish(ctx, fmt.Sprintf("🚫 %s %s: Cancelled", j.WorkerType, j.ID))
		}
	}

	l.drainQueued(j.ChatID)
}

func (l *Loop) deliver(ctx context.Context, j jobmanager.Job, chunk string) {
	if l.Conv != nil {
		l.Conv.AddMessage(j.ChatID, convstore.RoleUser, chunk)
	}
	if l.Notify != nil {
		if err := l.Notify(ctx, j.ChatID, chunk); err != nil {
			logs.Warn("[orchestrator] notify chat %s failed: %v", j.ChatID, err)
		}
	}
}

// drainQueued attempts to start queued jobs now that capacity may have
// freed up. Jobs started this way have no live status reporter since
// their dispatch_task call already returned.
func (l *Loop) drainQueued(chat string) {
	for _, j := range l.Jobs.List(chat) {
		if j.Status != jobmanager.StatusQueued {
			continue
		}
		if started, ok := l.Jobs.Start(j.ID); ok {
			go l.runWorker(context.Background(), started, "")
		}
	}
}

// ProcessMessage is the top-level entry point. Pending-input handling
// happens in the Chat Pipeline before this is called; by the time
// ProcessMessage runs, text is the resolved user turn for chat.
func (l *Loop) ProcessMessage(ctx context.Context, chat, text, user string, onUpdate UpdateFunc, edit EditFunc, sendPhoto SendPhotoFunc) (string, error) {
	l.Conv.AddMessage(chat, convstore.RoleUser, text)

	history := l.Conv.GetSummarizedHistory(chat, l.RecentWindow)
	messages := make([]ports.Message, 0, len(history))
	for _, m := range history {
		messages = append(messages, ports.Message{Role: string(m.Role), Content: m.Content})
	}

	system := l.buildSystemPrompt(ctx, chat)
	tools := toolCatalog()

	var lastText string
	for depth := 0; depth < l.MaxToolDepth; depth++ {
		result, err := l.chat(ctx, ports.ChatRequest{System: system, Messages: messages, Tools: tools})
		if err != nil {
			return "", fmt.Errorf("orchestrator model call failed: %w", err)
		}
		lastText = result.Text

		switch result.StopReason {
		case ports.StopEndTurn:
			l.Conv.AddMessage(chat, convstore.RoleAssistant, result.Text)
			return result.Text, nil
		case ports.StopToolUse:
			messages = append(messages, ports.Message{Role: "assistant", Content: result.Text})
			for _, call := range result.ToolCalls {
				out, summary, err := l.executeTool(ctx, chat, call, onUpdate, edit)
				if err != nil {
					out = map[string]any{"error": err.Error()}
					summary = "tool error: " + err.Error()
				}
				messages = append(messages, ports.Message{Role: "user", Content: trunc.Result(out)})
				if onUpdate != nil {
					_, _ = onUpdate(ctx, "⚡ "+summary)
				}
			}
		default:
			if lastText != "" {
				l.Conv.AddMessage(chat, convstore.RoleAssistant, lastText)
				return lastText, nil
			}
			const fallback = "unexpected response"
			l.Conv.AddMessage(chat, convstore.RoleAssistant, fallback)
			return fallback, nil
		}
	}

	msg := fmt.Sprintf("Reached maximum orchestrator depth (%d).", l.MaxToolDepth)
	l.Conv.AddMessage(chat, convstore.RoleAssistant, msg)
	return msg, nil
}

func (l *Loop) chat(ctx context.Context, req ports.ChatRequest) (*ports.ChatResult, error) {
	var lastErr error
	for _, p := range l.Providers {
		if p == nil {
			continue
		}
		res, err := p.Chat(ctx, req)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if pingErr := p.Ping(ctx); pingErr != nil {
			logs.Warn("[orchestrator] provider unresponsive, trying next: %v", pingErr)
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no orchestrator model provider configured")
	}
	return nil, lastErr
}

func (l *Loop) buildSystemPrompt(ctx context.Context, chat string) string {
	prompt := "You are the orchestrator for a conversational agent platform. " +
		"Reply directly for simple requests; dispatch_task for anything requiring a scoped worker."
	if l.Persona != nil {
		if p, err := l.Persona.ActivePrompt(ctx, chat); err == nil && p != "" {
			prompt += "\n\n" + p
		}
	}
	if l.Memory != nil {
		if notes, err := l.Memory.ListRecent(ctx, chat, 2); err == nil && len(notes) > 0 {
			prompt += "\n\nRecent memory notes:\n"
			for _, n := range notes {
				prompt += "- " + n + "\n"
			}
		}
	}
	return prompt
}

// dispatch implements the non-blocking half of dispatch_task:
// register a job, synchronously start a worker for it, and return. The
// live status message is opened here if onUpdate/edit were supplied by
// the in-flight ProcessMessage call that triggered this dispatch.
func (l *Loop) dispatch(ctx context.Context, chat, workerTypeID, task string, dependsOn []string, onUpdate UpdateFunc, edit EditFunc) jobmanager.Job {
	_, known := workertype.Get(workerTypeID)
	id := l.Jobs.Create(chat, workerTypeID, task, dependsOn).ID

	if !known {
		l.Jobs.Fail(id, fmt.Sprintf("unknown worker type: %s", workerTypeID))
		j, _ := l.Jobs.Get(id)
		return j
	}

	started, ok := l.Jobs.Start(id)
	if !ok {
		j, _ := l.Jobs.Get(id)
		return j // stays queued; drainQueued will pick it up later
	}
	l.openJobStatus(ctx, started.ID, workerTypeID, onUpdate, edit)
	go l.runWorker(ctx, started, "")
	return started
}

// runWorker executes a started job to completion via the Worker
// Runtime, reporting progress/completion back into the Job Manager.
func (l *Loop) runWorker(ctx context.Context, job jobmanager.Job, skillPrompt string) {
	wt, _ := workertype.Get(job.WorkerType)

	l.Runtime.Run(ctx, wt, skillPrompt, job.Task, job.CancelToken(), workerruntime.Callbacks{
		OnProgress: func(line string) {
			l.Jobs.AppendProgress(job.ID, line, 1, 1)
			l.mu.Lock()
			reporter := l.reporters[job.ID]
			l.mu.Unlock()
			if reporter != nil {
				reporter.Append(ctx, line)
			}
		},
		OnComplete: func(text string) {
			l.Jobs.Complete(job.ID, text, nil)
		},
		OnError: func(kind string) {
			l.Jobs.Fail(job.ID, kind)
		},
	})
}

// openJobStatus registers a live status reporter for a just-started
// job, opening its transport message before the job's first tool call
// and recording the message id on the job.
func (l *Loop) openJobStatus(ctx context.Context, jobID, workerTypeID string, onUpdate UpdateFunc, edit EditFunc) {
	if onUpdate == nil || edit == nil {
		return
	}
	wt, _ := workertype.Get(workerTypeID)
	msgID, err := onUpdate(ctx, fmt.Sprintf("%s %s: starting…", wt.Emoji, wt.Label))
	if err != nil || msgID == "" {
		return
	}
	l.Jobs.SetStatusMessageID(jobID, msgID)
	reporter := newStatusReporter(edit, msgID, fmt.Sprintf("%s %s: running", wt.Emoji, wt.Label), func() time.Time { return l.Clock.Now() })
	l.mu.Lock()
	l.reporters[jobID] = reporter
	l.mu.Unlock()
}
