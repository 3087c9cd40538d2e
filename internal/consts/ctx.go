package consts

// CtxKey types the context value keys shared across the runtime.
type CtxKey string

const (
	CtxKeyLogID     CtxKey = "log_id"
	CtxKeyAgentID   CtxKey = "agent_id"
	CtxKeyChannelID CtxKey = "channel_id"
	CtxKeyChatID    CtxKey = "chat_id"
)
