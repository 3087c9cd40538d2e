// Package ports declares the narrow collaborator interfaces the
// orchestration core depends on. The core never imports a concrete
// model provider, transport, or storage package directly — only these
// interfaces, satisfied by the adapters in internal/core (modeladapter,
// transportadapter, configadapter, toolcatalog) that wrap
// internal/provider, internal/channel, internal/config, and
// internal/agent/tool.
package ports

import (
	"context"
	"time"
)

// Clock is the single injected source of time. Production code uses
// clockwork.System; tests use a fake they can advance deterministically.
type Clock interface {
	Now() time.Time
}

// StopReason mirrors the three terminal states a model turn can end in.
type StopReason string

const (
	StopEndTurn StopReason = "end_turn"
	StopToolUse StopReason = "tool_use"
	StopOther   StopReason = "other"
)

// Message is one turn of chat history handed to a ModelProvider.
type Message struct {
	Role    string // "user", "assistant", "tool"
	Content string
}

// ToolSpec describes one callable tool in a ModelProvider request.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolCall is one tool invocation requested by a model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// ChatRequest is the input to ModelProvider.Chat.
type ChatRequest struct {
	System   string
	Messages []Message
	Tools    []ToolSpec
}

// ChatResult is the output of ModelProvider.Chat.
type ChatResult struct {
	Text       string
	ToolCalls  []ToolCall
	RawContent any
	StopReason StopReason
}

// ModelProvider is the core's only way to talk to an LLM. Concrete
// adapters wrap eino chat models (internal/provider/*).
type ModelProvider interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResult, error)
	Ping(ctx context.Context) error
}

// ToolCatalog executes a named tool with a scoped view of the caller's
// context (chat id, job id, allow-list already applied by the caller).
type ToolCatalog interface {
	Execute(ctx context.Context, name string, input map[string]any) (any, error)
	// Specs returns the tool definitions visible to the given allow-list.
	// A nil allow-list means "all tools the catalog exposes".
	Specs(allow []string) []ToolSpec
}

// ChatAction is a transport-level typing/presence indicator.
type ChatAction string

const ChatActionTyping ChatAction = "typing"

// InboundEventType discriminates the Transport event stream.
type InboundEventType string

const (
	EventMessage       InboundEventType = "message"
	EventCallbackQuery InboundEventType = "callback_query"
	EventReaction      InboundEventType = "reaction"
)

// Attachment is a transport-neutral inbound file reference.
type Attachment struct {
	Type     string // "image", "voice", "document"
	FileID   string
	FileName string
	MIMEType string
	Data     []byte
}

// InboundEvent is one item off Transport.Events().
type InboundEvent struct {
	Type        InboundEventType
	Chat        string
	User        string
	MessageID   string
	Text        string
	Data        string // callback_query payload or reaction emoji
	Attachments []Attachment
}

// Transport is the chat-transport collaborator. The adapter lives in
// internal/core/transportadapter and wraps internal/channel/*.
type Transport interface {
	SendMessage(ctx context.Context, chat, text string) (msgID string, err error)
	EditMessage(ctx context.Context, chat, msgID, text string) error
	SendPhoto(ctx context.Context, chat, path, caption string) error
	SendChatAction(ctx context.Context, chat string, action ChatAction) error
	SendReaction(ctx context.Context, chat, msgID, emoji string, big bool) error
	DownloadFile(ctx context.Context, fileID string) (path string, err error)
	Events() <-chan InboundEvent
}

// ConfigStore persists credentials and provider selection. The adapter
// lives in internal/core/configadapter and wraps internal/config.
type ConfigStore interface {
	SaveCredential(ctx context.Context, name, value string) error
	SaveProvider(ctx context.Context, kind, model string) error
}

// MemoryManager, JournalManager, ShareQueue, EvolutionTracker,
// PersonaManager, and CharacterManager are queried via narrow method
// sets by the Orchestrator Loop and the Chat Pipeline's command router;
// the Life Engine does not query them. The core neither creates nor
// inspects their on-disk shape.

type MemoryManager interface {
	Add(ctx context.Context, chat, text string) error
	ListRecent(ctx context.Context, chat string, n int) ([]string, error)
	Search(ctx context.Context, chat, query string) ([]string, error)
}

type JournalManager interface {
	Add(ctx context.Context, entry string) error
	ListRecent(ctx context.Context, n int) ([]string, error)
}

type ShareQueue interface {
	Enqueue(ctx context.Context, payload string) error
	ListRecent(ctx context.Context, n int) ([]string, error)
}

type EvolutionTracker interface {
	RecordLesson(ctx context.Context, lesson string) error
	History(ctx context.Context, n int) ([]string, error)
}

type PersonaManager interface {
	ActivePrompt(ctx context.Context, chat string) (string, error)
	Update(ctx context.Context, chat, instructions string) error
}

type CharacterManager interface {
	ActiveContext(ctx context.Context) (CharacterContext, error)
}

// CharacterContext bundles every manager belonging to one character
// identity: swapping a character atomically replaces this bundle
// rather than mutating individual managers from the outside.
type CharacterContext struct {
	Name    string
	Memory  MemoryManager
	Journal JournalManager
	Shares  ShareQueue
	Evolve  EvolutionTracker
	Persona PersonaManager
}
