package channel

import (
	"errors"
)

// ErrUnsupportedOperation is returned by channels for verbs their
// platform cannot express (reactions on HTTP, chat actions on Lark, ...).
var ErrUnsupportedOperation = errors.New("channel operation is not supported")

// Type names a channel provider family.
type Type string

const (
	Telegram Type = "telegram"
	Lark     Type = "lark"
	HTTP     Type = "http"
)

var SupportedChannels = []Type{
	Telegram,
	Lark,
	HTTP,
}

// AttachmentType identifies the kind of media attached to a message.
type AttachmentType string

const (
	AttachmentImage AttachmentType = "image"
	AttachmentVoice AttachmentType = "voice"
)

// Attachment holds media already downloaded from a channel message.
// Data is raw bytes; consumers base64-encode before handing to a
// model. Attachments are never persisted to conversation history.
type Attachment struct {
	Type     AttachmentType
	Data     []byte
	MIMEType string // e.g. "image/jpeg", "audio/ogg"
	FileName string
}

// Message is the normalized inbound unit every channel produces.
type Message struct {
	ID          string
	ChannelID   string
	ChannelType Type
	UserID      string
	ChatID      string
	Content     string
	SessionKey  string
	Metadata    map[string]string
	Attachments []Attachment
}

// Response is the normalized outbound unit handed back to a channel.
type Response struct {
	ID       string
	ChatID   string
	Content  string
	Error    error
	Metadata map[string]string
	Model    string
	Provider string
}

// ChatAction is a transient activity state shown to the chat.
type ChatAction string

const (
	ChatActionTyping          ChatAction = "typing"
	ChatActionUploadPhoto     ChatAction = "upload_photo"
	ChatActionRecordVideo     ChatAction = "record_video"
	ChatActionUploadVideo     ChatAction = "upload_video"
	ChatActionRecordVoice     ChatAction = "record_voice"
	ChatActionUploadVoice     ChatAction = "upload_voice"
	ChatActionUploadDocument  ChatAction = "upload_document"
	ChatActionChooseSticker   ChatAction = "choose_sticker"
	ChatActionFindLocation    ChatAction = "find_location"
	ChatActionRecordVideoNote ChatAction = "record_video_note"
	ChatActionUploadVideoNote ChatAction = "upload_video_note"
)
