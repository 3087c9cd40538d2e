package channel

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
)

// Route is one HTTP endpoint a channel asks the gateway to mount on
// its shared hertz server.
type Route struct {
	Method  string
	Path    string
	Handler app.HandlerFunc
}

// RouteProvider is implemented by channels that serve inbound HTTP
// (webhooks, request/response APIs).
type RouteProvider interface {
	Routes() []Route
}

// Channel adapts one chat platform to the runtime: it receives inbound
// events and sends outbound replies for a single configured provider
// instance (a Telegram bot, a Lark app, ...).
type Channel interface {
	// ID is the unique configured channel identifier.
	ID() string

	// Type is the provider family, used for routing.
	Type() Type

	// Start begins the receive loop and blocks until the context is
	// canceled or a fatal error occurs.
	Start(ctx context.Context) error

	// Stop gracefully shuts down channel resources.
	Stop(ctx context.Context) error

	// SendMessage delivers text to the target chat and returns the
	// provider's message ID so the caller can edit or react to it
	// later. chatID is provider-specific, passed as a string for
	// portability; providers without addressable messages may return
	// an empty ID.
	SendMessage(ctx context.Context, chatID string, content string) (messageID string, err error)

	// EditMessage rewrites a previously sent message in place.
	// Platforms without message editing return
	// ErrUnsupportedOperation.
	EditMessage(ctx context.Context, chatID string, messageID string, content string) error

	// SendChatAction shows a transient activity state ("typing") in the
	// target chat. Platforms without the concept return
	// ErrUnsupportedOperation.
	SendChatAction(ctx context.Context, chatID string, action ChatAction) error

	// ReactMessage adds or updates a reaction on a message. messageID
	// and reaction format are provider-specific; platforms without
	// reactions return ErrUnsupportedOperation.
	ReactMessage(ctx context.Context, chatID string, messageID string, reaction string) error

	// RegisterMessageHandler installs the inbound callback, invoked once
	// per normalized Message.
	RegisterMessageHandler(handler func(ctx context.Context, msg *Message) error) error
}
