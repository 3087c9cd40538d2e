// Package workerruntime drives a single job's worker model through a
// scoped tool-use loop, enforcing the worker type's timeout and
// cancellation and emitting progress as it goes. Providers form a
// primary/fallback chain; a transient failure on one falls through to
// the next.
package workerruntime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/orchestrator/core/internal/core/jobmanager"
	"github.com/orchestrator/core/internal/core/ports"
	"github.com/orchestrator/core/internal/core/trunc"
	"github.com/orchestrator/core/internal/core/workertype"
	"github.com/orchestrator/core/internal/pkg/logs"
)

// DefaultMaxToolDepth bounds the worker tool-use loop absent an
// explicit override.
const DefaultMaxToolDepth = 25

// Callbacks are the worker's observable effects.
type Callbacks struct {
	// OnProgress is called once per executed tool with a one-line summary.
	OnProgress func(line string)
	// OnComplete is called exactly once, on end_turn, with the final text.
	OnComplete func(text string)
	// OnError is called exactly once for any unhandled stop reason,
	// timeout, or cancellation. kind is "cancelled", "timeout", or a
	// short error message.
	OnError func(kind string)
}

// Runtime drives worker model turns against a scoped tool catalog.
type Runtime struct {
	Providers    []ports.ModelProvider // primary first, fallbacks after
	Tools        ports.ToolCatalog
	Clock        ports.Clock
	MaxToolDepth int
}

func New(providers []ports.ModelProvider, tools ports.ToolCatalog, clock ports.Clock) *Runtime {
	return &Runtime{Providers: providers, Tools: tools, Clock: clock, MaxToolDepth: DefaultMaxToolDepth}
}

// Run executes task to completion (or abort) for the given worker
// type, skill prompt fragment, and job cancel token.
func (r *Runtime) Run(ctx context.Context, wt workertype.Type, skillPrompt, task string, cancel *jobmanager.CancelToken, cb Callbacks) {
	maxDepth := r.MaxToolDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxToolDepth
	}

	timeout := wt.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	// runCtx carries the worker timeout and is additionally cancelled
	// the moment the job's cancel token trips, so an in-flight model
	// call or tool aborts immediately rather than at the next loop
	// iteration.
	timeoutCtx, stop := context.WithTimeout(ctx, timeout)
	defer stop()
	runCtx, abortRun := context.WithCancel(timeoutCtx)
	defer abortRun()

	aborted := make(chan string, 1)
	go func() {
		select {
		case <-cancel.Done():
			aborted <- "cancelled"
			abortRun()
		case <-runCtx.Done():
			if errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
				aborted <- "timeout"
			} else {
				aborted <- "cancelled"
			}
		}
	}()

	system := buildSystemPrompt(wt, skillPrompt)
	messages := []ports.Message{{Role: "user", Content: task}}
	tools := r.Tools.Specs(wt.ToolAllowList)

	for depth := 0; depth < maxDepth; depth++ {
		select {
		case reason := <-aborted:
			cb.OnError(reason)
			return
		default:
		}

		result, err := r.chat(runCtx, ports.ChatRequest{System: system, Messages: messages, Tools: tools})
		if err != nil {
			select {
			case reason := <-aborted:
				cb.OnError(reason)
			default:
				cb.OnError(err.Error())
			}
			return
		}

		switch result.StopReason {
		case ports.StopEndTurn:
			cb.OnComplete(result.Text)
			return
		case ports.StopToolUse:
			messages = append(messages, ports.Message{Role: "assistant", Content: result.Text})
			for _, call := range result.ToolCalls {
				select {
				case reason := <-aborted:
					cb.OnError(reason)
					return
				default:
				}

				out, execErr := r.Tools.Execute(runCtx, call.Name, call.Arguments)
				var resultText string
				if execErr != nil {
					resultText = trunc.Result(map[string]any{"error": execErr.Error()})
				} else {
					resultText = trunc.Result(out)
				}
				messages = append(messages, ports.Message{Role: "user", Content: resultText})
				if cb.OnProgress != nil {
					cb.OnProgress(fmt.Sprintf("%s %s", wt.Emoji, call.Name))
				}
			}
		default:
			cb.OnError(fmt.Sprintf("unexpected stop reason: %s", result.StopReason))
			return
		}
	}

	// Depth exhausted without end_turn: surfaced as a worker failure,
	// distinct from the orchestrator's own fixed depth-cap message.
	cb.OnError(fmt.Sprintf("worker reached maximum tool depth (%d)", maxDepth))
}

// chat tries each configured provider in order: a transient failure on
// one provider pings it for diagnostics and falls through to the next
// instead of failing the whole job immediately.
func (r *Runtime) chat(ctx context.Context, req ports.ChatRequest) (*ports.ChatResult, error) {
	var lastErr error
	for _, p := range r.Providers {
		if p == nil {
			continue
		}
		res, err := p.Chat(ctx, req)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if pingErr := p.Ping(ctx); pingErr != nil {
			logs.Warn("[workerruntime] provider unresponsive, trying next: %v", pingErr)
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no model provider configured")
	}
	return nil, lastErr
}

// buildSystemPrompt combines the worker type's template with an
// optional skill prompt fragment.
func buildSystemPrompt(wt workertype.Type, skillPrompt string) string {
	prompt := fmt.Sprintf("You are a %s worker (%s %s). %s\nUse only the tools you have been given.",
		wt.ID, wt.Emoji, wt.Label, wt.Description)
	if skillPrompt != "" {
		prompt += "\n\n" + skillPrompt
	}
	return prompt
}
