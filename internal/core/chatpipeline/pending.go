package chatpipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/orchestrator/core/internal/core/ports"
	"github.com/orchestrator/core/internal/pkg/logs"
)

// PendingKind discriminates the five pending-input state machines.
type PendingKind string

const (
	PendingBrainKey        PendingKind = "brain_key"
	PendingOrchestratorKey PendingKind = "orchestrator_key"
	PendingClaudeAuth      PendingKind = "claude_auth"
	PendingCustomSkill     PendingKind = "custom_skill"
	PendingCustomCharacter PendingKind = "custom_character"
)

// Pending is the union of state carried by any one of the five pending
// machines; each chat owns at most one at a time.
type Pending struct {
	Kind PendingKind

	// brain_key / orchestrator_key
	Provider string
	Model    string

	// claude_auth: "api_key" or "oauth_token"
	AuthType string

	// custom_skill: "name" then "prompt"
	Step string
	Name string

	// custom_character: accumulated answers, one per question
	Answers []string
}

// SkillCreateFunc materializes a custom skill once its two-step
// pending flow completes. attachment is non-nil when the prompt step
// arrived as a file upload.
type SkillCreateFunc func(ctx context.Context, chat, name, prompt string, attachment *ports.Attachment) error

// CharacterCreateFunc invokes the character generator once the fixed
// question list is exhausted.
type CharacterCreateFunc func(ctx context.Context, chat string, answers []string) error

// characterQuestions is the fixed Q/A sequence for custom_character.
var characterQuestions = []string{
	"What's this character's name?",
	"Describe their personality in a sentence or two.",
	"How do they speak — tone, vocabulary, any verbal tics?",
	"What's their backstory or role?",
	"Any catchphrase or recurring behavior?",
}

// tryPending consumes ev as the next answer for chat's pending machine,
// if one is armed. Returns false when no machine was pending, meaning
// the caller should continue on to authorization/batching.
func (p *Pipeline) tryPending(ctx context.Context, ev ports.InboundEvent) bool {
	p.mu.Lock()
	pend, ok := p.pendings[ev.Chat]
	p.mu.Unlock()
	if !ok {
		return false
	}

	text := strings.TrimSpace(ev.Text)

	switch pend.Kind {
	case PendingBrainKey, PendingOrchestratorKey:
		p.resolveProviderKey(ctx, ev.Chat, pend, text)
		return true
	case PendingClaudeAuth:
		p.resolveClaudeAuth(ctx, ev.Chat, pend, text)
		return true
	case PendingCustomSkill:
		p.advanceCustomSkill(ctx, ev, pend, text)
		return true
	case PendingCustomCharacter:
		p.advanceCustomCharacter(ctx, ev.Chat, pend, text)
		return true
	default:
		p.clearPending(ev.Chat)
		return true
	}
}

func (p *Pipeline) resolveProviderKey(ctx context.Context, chat string, pend *Pending, text string) {
	p.clearPending(chat)
	if strings.EqualFold(text, "cancel") {
		p.reply(ctx, chat, "cancelled.")
		return
	}
	if p.Config != nil {
		if err := p.Config.SaveProvider(ctx, pend.Provider, pend.Model); err != nil {
			p.reply(ctx, chat, fmt.Sprintf("failed to save provider: %v", err))
			return
		}
		credName := "brain_api_key"
		if pend.Kind == PendingOrchestratorKey {
			credName = "orchestrator_api_key"
		}
		if err := p.Config.SaveCredential(ctx, credName, text); err != nil {
			p.reply(ctx, chat, fmt.Sprintf("failed to save key: %v", err))
			return
		}
	}
	p.reply(ctx, chat, fmt.Sprintf("%s/%s configured.", pend.Provider, pend.Model))
}

func (p *Pipeline) resolveClaudeAuth(ctx context.Context, chat string, pend *Pending, text string) {
	p.clearPending(chat)
	if strings.EqualFold(text, "cancel") {
		p.reply(ctx, chat, "cancelled.")
		return
	}
	if p.Config != nil {
		if err := p.Config.SaveCredential(ctx, "claude_"+pend.AuthType, text); err != nil {
			p.reply(ctx, chat, fmt.Sprintf("failed to save credential: %v", err))
			return
		}
	}
	p.reply(ctx, chat, "claude credential saved.")
}

func (p *Pipeline) advanceCustomSkill(ctx context.Context, ev ports.InboundEvent, pend *Pending, text string) {
	switch pend.Step {
	case "name":
		pend.Step = "prompt"
		pend.Name = text
		p.BeginPending(ev.Chat, *pend)
		p.reply(ctx, ev.Chat, "now send the skill prompt (text or a file upload).")
	default: // "prompt"
		p.clearPending(ev.Chat)
		var attachment *ports.Attachment
		if len(ev.Attachments) > 0 {
			attachment = &ev.Attachments[0]
		}
		if p.OnSkillCreate != nil {
			if err := p.OnSkillCreate(ctx, ev.Chat, pend.Name, text, attachment); err != nil {
				p.reply(ctx, ev.Chat, fmt.Sprintf("failed to create skill: %v", err))
				return
			}
		}
		p.reply(ctx, ev.Chat, fmt.Sprintf("skill %q created.", pend.Name))
	}
}

func (p *Pipeline) advanceCustomCharacter(ctx context.Context, chat string, pend *Pending, text string) {
	pend.Answers = append(pend.Answers, text)
	if len(pend.Answers) < len(characterQuestions) {
		next := characterQuestions[len(pend.Answers)]
		p.BeginPending(chat, *pend)
		p.reply(ctx, chat, next)
		return
	}
	p.clearPending(chat)
	if p.OnCharacterComplete != nil {
		if err := p.OnCharacterComplete(ctx, chat, pend.Answers); err != nil {
			p.reply(ctx, chat, fmt.Sprintf("failed to generate character: %v", err))
			return
		}
	}
	p.reply(ctx, chat, "character created.")
}

// reply sends a message immediately, bypassing batching and the FIFO
// queue — pending-input replies are direct acknowledgements, not
// orchestrator turns.
func (p *Pipeline) reply(ctx context.Context, chat, text string) {
	if p.Transport == nil {
		return
	}
	if _, err := p.Transport.SendMessage(ctx, chat, text); err != nil {
		logs.Warn("[chatpipeline] pending-input reply failed for chat %s: %v", chat, err)
	}
}
