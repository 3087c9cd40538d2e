package chatpipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/orchestrator/core/internal/core/automation"
	"github.com/orchestrator/core/internal/core/convstore"
	"github.com/orchestrator/core/internal/core/jobmanager"
	"github.com/orchestrator/core/internal/core/ports"
)

// commandNames is the bare-word command surface that bypasses
// batching. Matching is case-insensitive and tolerates an optional
// leading '/'.
var commandNames = map[string]struct{}{
	"character": {}, "brain": {}, "orchestrator": {}, "claudemodel": {}, "claude": {},
	"skills": {}, "jobs": {}, "cancel": {}, "auto": {}, "life": {}, "journal": {},
	"memories": {}, "evolution": {}, "linkedin": {}, "context": {}, "clean": {},
	"clear": {}, "reset": {}, "history": {}, "browse": {}, "screenshot": {},
	"extract": {}, "help": {},
}

// LifeController is the narrow surface the "life" command needs from
// the Life Engine. Declared locally so chatpipeline does not
// import the lifeengine package; the gateway wiring binds the two.
type LifeController interface {
	Pause()
	Resume()
	TriggerNow(kind string) error
}

// Router dispatches the bare-word command surface. It holds direct
// references to the sibling core managers rather than going through
// the orchestrator, since these are administrative actions on the
// pipeline's own state, not conversational turns for the model.
type Router struct {
	Jobs        *jobmanager.Manager
	Automations *automation.Manager
	Conv        *convstore.Store
	Life        LifeController
	Memory      ports.MemoryManager
	Journal     ports.JournalManager
	Shares      ports.ShareQueue
	Evolve      ports.EvolutionTracker
}

// IsCommand reports whether text's first word names a command.
func (r *Router) IsCommand(text string) bool {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return false
	}
	word := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	_, ok := commandNames[word]
	return ok
}

// runCommand executes a matched command on the FIFO lane and, if it
// produces a reply, delivers it directly (commands bypass the batch
// window but still use the pipeline's reply path, not the human-paced
// delivery used for orchestrator turns).
func (p *Pipeline) runCommand(ctx context.Context, ev ports.InboundEvent) {
	fields := strings.Fields(ev.Text)
	word := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	args := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(ev.Text), fields[0]))

	reply, forward := p.Commands.dispatch(ctx, p, ev, word, args)
	if forward {
		p.runTurn(ctx, ev.Chat, ev.Text, ev.User)
		return
	}
	if reply != "" {
		p.reply(ctx, ev.Chat, reply)
	}
}

// dispatch executes one command. forward=true tells the caller to fall
// through to a normal orchestrator turn (used for free-form commands
// like browse/screenshot/extract that are best handled as dispatch_task
// prompts rather than re-implemented here).
func (r *Router) dispatch(ctx context.Context, p *Pipeline, ev ports.InboundEvent, word, args string) (reply string, forward bool) {
	switch word {
	case "help":
		return helpText(), false

	case "jobs":
		if r.Jobs == nil {
			return "job manager not configured.", false
		}
		jobs := r.Jobs.List(ev.Chat)
		if len(jobs) == 0 {
			return "no jobs for this chat.", false
		}
		var b strings.Builder
		for _, j := range jobs {
			fmt.Fprintf(&b, "%s  %s  %s\n", j.ID, j.WorkerType, j.Status)
		}
		return b.String(), false

	case "cancel":
		if r.Jobs == nil {
			return "job manager not configured.", false
		}
		if args == "" {
			// Bare cancel takes down everything live for this chat; the
			// per-job cancellation notices arrive through the job-event
			// subscriber.
			cancelled := r.Jobs.CancelAllForChat(ev.Chat)
			if len(cancelled) == 0 {
				return "no active jobs to cancel.", false
			}
			ids := make([]string, 0, len(cancelled))
			for _, j := range cancelled {
				ids = append(ids, j.ID)
			}
			return fmt.Sprintf("cancelled %s.", strings.Join(ids, ", ")), false
		}
		if j := r.Jobs.Cancel(args); j != nil {
			return fmt.Sprintf("cancelled %s.", args), false
		}
		return fmt.Sprintf("job %s not found or already finished.", args), false

	case "auto":
		return r.dispatchAuto(ev.Chat, args)

	case "life":
		return r.dispatchLife(args)

	case "context", "history":
		if r.Conv == nil {
			return "conversation store not configured.", false
		}
		hist := r.Conv.History(ev.Chat)
		if len(hist) == 0 {
			return "no history yet.", false
		}
		var b strings.Builder
		for _, m := range hist {
			fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
		}
		return b.String(), false

	case "clean", "clear", "reset":
		if r.Conv != nil {
			r.Conv.Clear(ev.Chat)
		}
		return "conversation cleared.", false

	case "brain":
		return r.beginProviderPending(p, ev.Chat, PendingBrainKey, args)
	case "orchestrator":
		return r.beginProviderPending(p, ev.Chat, PendingOrchestratorKey, args)

	case "claude", "claudemodel":
		authType := "api_key"
		if strings.EqualFold(strings.TrimSpace(args), "oauth") {
			authType = "oauth_token"
		}
		p.BeginPending(ev.Chat, Pending{Kind: PendingClaudeAuth, AuthType: authType})
		return fmt.Sprintf("send your %s, or \"cancel\".", authType), false

	case "character":
		if strings.EqualFold(strings.TrimSpace(args), "custom") {
			p.BeginPending(ev.Chat, Pending{Kind: PendingCustomCharacter})
			return characterQuestions[0], false
		}
		return "usage: character custom", false

	case "skills":
		if strings.EqualFold(strings.TrimSpace(args), "reset") {
			p.BeginPending(ev.Chat, Pending{Kind: PendingCustomSkill, Step: "name"})
			return "what should the new skill be called?", false
		}
		return "usage: skills reset", false

	case "journal":
		return r.dispatchJournal(ctx, args)
	case "memories":
		return r.dispatchMemories(ctx, ev.Chat, args)
	case "evolution":
		return r.dispatchEvolution(ctx, args)

	case "linkedin", "browse", "screenshot", "extract":
		// These need collaborators the orchestrator already has wired
		// (a sharing credential store, worker dispatch for
		// browse/screenshot/extract) — forward as a normal turn so
		// dispatch_task or the relevant ports collaborator handles it,
		// while still honoring the "commands bypass batching" rule.
		return "", true

	default:
		return "", true
	}
}

func (r *Router) beginProviderPending(p *Pipeline, chat string, kind PendingKind, args string) (string, bool) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return "usage: brain|orchestrator <provider> <model>", false
	}
	p.BeginPending(chat, Pending{Kind: kind, Provider: fields[0], Model: fields[1]})
	return fmt.Sprintf("send the API key for %s/%s, or \"cancel\".", fields[0], fields[1]), false
}

func (r *Router) dispatchAuto(chat, args string) (string, bool) {
	if r.Automations == nil {
		return "automation manager not configured.", false
	}
	fields := strings.Fields(args)
	if len(fields) == 0 || strings.EqualFold(fields[0], "list") {
		autos := r.Automations.List(chat)
		if len(autos) == 0 {
			return "no automations for this chat.", false
		}
		var b strings.Builder
		for _, a := range autos {
			fmt.Fprintf(&b, "%s  %s  enabled=%v  runs=%d\n", a.ID, a.Name, a.Enabled, a.RunCount)
		}
		return b.String(), false
	}

	sub := strings.ToLower(fields[0])
	if len(fields) < 2 && sub != "list" {
		return "usage: auto pause|resume|delete|run <id>", false
	}
	id := ""
	if len(fields) > 1 {
		id = fields[1]
	}
	switch sub {
	case "pause", "resume":
		enabled := sub == "resume"
		if _, err := r.Automations.Update(id, automation.UpdateRequest{Enabled: &enabled}); err != nil {
			return fmt.Sprintf("auto %s failed: %v", sub, err), false
		}
		return fmt.Sprintf("automation %s %sd.", id, sub), false
	case "delete":
		if err := r.Automations.Delete(id); err != nil {
			return fmt.Sprintf("auto delete failed: %v", err), false
		}
		return fmt.Sprintf("automation %s deleted.", id), false
	case "run":
		if err := r.Automations.RunNow(id); err != nil {
			return fmt.Sprintf("auto run failed: %v", err), false
		}
		return fmt.Sprintf("automation %s triggered.", id), false
	default:
		// "auto <natural-language request>" — let the orchestrator
		// interpret it and call create_automation itself.
		return "", true
	}
}

func (r *Router) dispatchJournal(ctx context.Context, args string) (string, bool) {
	if r.Journal == nil {
		return "journal manager not configured.", false
	}
	entries, err := r.Journal.ListRecent(ctx, 10)
	if err != nil {
		return fmt.Sprintf("journal lookup failed: %v", err), false
	}
	if len(entries) == 0 {
		return "no journal entries yet.", false
	}
	return strings.Join(entries, "\n---\n"), false
}

func (r *Router) dispatchMemories(ctx context.Context, chat, args string) (string, bool) {
	if r.Memory == nil {
		return "memory manager not configured.", false
	}
	query := strings.TrimSpace(strings.TrimPrefix(args, "about"))
	var (
		results []string
		err     error
	)
	if query != "" {
		results, err = r.Memory.Search(ctx, chat, query)
	} else {
		results, err = r.Memory.ListRecent(ctx, chat, 10)
	}
	if err != nil {
		return fmt.Sprintf("memory lookup failed: %v", err), false
	}
	if len(results) == 0 {
		return "no matching memories.", false
	}
	return strings.Join(results, "\n"), false
}

func (r *Router) dispatchEvolution(ctx context.Context, args string) (string, bool) {
	if r.Evolve == nil {
		return "evolution tracker not configured.", false
	}
	switch strings.ToLower(strings.TrimSpace(args)) {
	case "", "history", "lessons":
		history, err := r.Evolve.History(ctx, 20)
		if err != nil {
			return fmt.Sprintf("evolution history failed: %v", err), false
		}
		if len(history) == 0 {
			return "no recorded lessons yet.", false
		}
		return strings.Join(history, "\n"), false
	case "trigger", "scan":
		// A deliberate scan/trigger is a conversational request best
		// served by the orchestrator's own tool loop.
		return "", true
	default:
		return "usage: evolution [history|lessons|trigger|scan]", false
	}
}

func (r *Router) dispatchLife(args string) (string, bool) {
	if r.Life == nil {
		return "life engine not configured.", false
	}
	switch strings.ToLower(strings.TrimSpace(args)) {
	case "pause":
		r.Life.Pause()
		return "life engine paused.", false
	case "resume":
		r.Life.Resume()
		return "life engine resumed.", false
	case "", "trigger":
		if err := r.Life.TriggerNow(""); err != nil {
			return fmt.Sprintf("trigger failed: %v", err), false
		}
		return "triggered.", false
	default:
		kind := strings.Fields(args)[0]
		if strings.EqualFold(kind, "trigger") && len(strings.Fields(args)) > 1 {
			kind = strings.Fields(args)[1]
		}
		if err := r.Life.TriggerNow(kind); err != nil {
			return fmt.Sprintf("trigger failed: %v", err), false
		}
		return fmt.Sprintf("triggered %s.", kind), false
	}
}

func helpText() string {
	return "character, brain, orchestrator, claudemodel, claude, skills [reset], jobs, cancel, " +
		"auto [pause|resume|delete|run <id>|<natural-language>], life [pause|resume|trigger [kind]], " +
		"journal (10 most recent entries; no date lookup), memories [about <q>], evolution [history|lessons|trigger|scan], " +
		"linkedin [link <token>|unlink], context, clean|clear|reset, history, browse <url>, " +
		"screenshot <url>, extract <url> <sel>, help"
}
