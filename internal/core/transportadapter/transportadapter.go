// Package transportadapter adapts internal/channel.Channel
// (Telegram/Lark/HTTP) to ports.Transport, so the Chat Pipeline can
// drive any registered channel without internal/core ever importing a
// concrete channel package. Operations a Channel genuinely cannot
// perform (photo send, file download by ID) are reported via
// channel.ErrUnsupportedOperation.
package transportadapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/orchestrator/core/internal/channel"
	"github.com/orchestrator/core/internal/core/ports"
)

// chatSep joins a channel ID to its provider-local chat ID so chats from
// different channels sharing one orchestrator core never collide (two
// Telegram and Lark chats can both be named "123").
const chatSep = "|"

// QualifyChat builds the same "channelID|localChatID" key an Adapter
// produces internally, for callers (cron delivery) that address a chat
// without going through an Adapter's own inbound event.
func QualifyChat(channelID, chatID string) string {
	return channelID + chatSep + chatID
}

// Adapter wraps one channel.Channel. Events must be called once, before
// Start, so the handler is registered before inbound traffic can arrive.
type Adapter struct {
	ch     channel.Channel
	events chan ports.InboundEvent
}

func New(ch channel.Channel) *Adapter {
	return &Adapter{ch: ch, events: make(chan ports.InboundEvent, 64)}
}

// qualify prefixes a provider-local chat ID with this adapter's channel
// ID; unqualify reverses it. Every ports.Transport method below receives
// a qualified chat from the Chat Pipeline and must strip the prefix
// before calling into the underlying Channel.
func (a *Adapter) qualify(chatID string) string {
	return a.ch.ID() + chatSep + chatID
}

func (a *Adapter) unqualify(chat string) string {
	if id, local, ok := strings.Cut(chat, chatSep); ok && id == a.ch.ID() {
		return local
	}
	return chat
}

// Start registers the inbound handler and begins the channel's receive
// loop. It blocks until ctx is canceled, matching Channel.Start.
func (a *Adapter) Start(ctx context.Context) error {
	if err := a.ch.RegisterMessageHandler(a.onMessage); err != nil {
		return fmt.Errorf("register handler on channel %s: %w", a.ch.ID(), err)
	}
	return a.ch.Start(ctx)
}

func (a *Adapter) Stop(ctx context.Context) error {
	return a.ch.Stop(ctx)
}

// ChannelID returns the wrapped channel's ID, the prefix used in every
// qualified chat key this adapter produces or accepts.
func (a *Adapter) ChannelID() string {
	return a.ch.ID()
}

func (a *Adapter) onMessage(ctx context.Context, msg *channel.Message) error {
	atts := make([]ports.Attachment, 0, len(msg.Attachments))
	for _, at := range msg.Attachments {
		atts = append(atts, ports.Attachment{
			Type:     string(at.Type),
			FileName: at.FileName,
			MIMEType: at.MIMEType,
			Data:     at.Data,
		})
	}
	ev := ports.InboundEvent{
		Type:        ports.EventMessage,
		Chat:        a.qualify(msg.ChatID),
		User:        msg.UserID,
		MessageID:   msg.ID,
		Text:        msg.Content,
		Attachments: atts,
	}
	select {
	case a.events <- ev:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (a *Adapter) Events() <-chan ports.InboundEvent {
	return a.events
}

// SendMessage sends text and returns the provider's message ID so
// callers can edit the message later. Providers that cannot report one
// (the HTTP channel's dropped-response path) get a synthesized local
// ID, good only for the caller's own bookkeeping.
func (a *Adapter) SendMessage(ctx context.Context, chat, text string) (string, error) {
	msgID, err := a.ch.SendMessage(ctx, a.unqualify(chat), text)
	if err != nil {
		return "", err
	}
	if msgID == "" {
		msgID = uuid.NewString()
	}
	return msgID, nil
}

// EditMessage rewrites a previously sent message in place.
func (a *Adapter) EditMessage(ctx context.Context, chat, msgID, text string) error {
	return a.ch.EditMessage(ctx, a.unqualify(chat), msgID, text)
}

// SendPhoto is not supported by any Channel implementation in this tree.
func (a *Adapter) SendPhoto(ctx context.Context, chat, path, caption string) error {
	return fmt.Errorf("transportadapter: send photo on channel %s: %w", a.ch.ID(), channel.ErrUnsupportedOperation)
}

func (a *Adapter) SendChatAction(ctx context.Context, chat string, action ports.ChatAction) error {
	return a.ch.SendChatAction(ctx, a.unqualify(chat), channel.ChatAction(action))
}

func (a *Adapter) SendReaction(ctx context.Context, chat, msgID, emoji string, big bool) error {
	return a.ch.ReactMessage(ctx, a.unqualify(chat), msgID, emoji)
}

// DownloadFile is not supported: Channel downloads attachments eagerly
// and inlines them into the Message it hands to RegisterMessageHandler,
// so there is no file-ID-addressed fetch to adapt.
func (a *Adapter) DownloadFile(ctx context.Context, fileID string) (string, error) {
	return "", fmt.Errorf("transportadapter: download file on channel %s: %w", a.ch.ID(), channel.ErrUnsupportedOperation)
}

var _ ports.Transport = (*Adapter)(nil)
