package cronjob

import "time"

// ScheduleType selects how a job's next execution time is computed.
type ScheduleType string

const (
	// ScheduleEvery repeats at a fixed interval given as a Go duration
	// string ("5m", "1h30m").
	ScheduleEvery ScheduleType = "every"
	// ScheduleCron repeats per a standard 5-field cron expression.
	ScheduleCron ScheduleType = "cron"
	// ScheduleAt fires once at an ISO 8601 timestamp, then is spent.
	ScheduleAt ScheduleType = "at"
)

// SessionTarget selects the queue lane key the scheduler gives a job's
// message.
type SessionTarget string

const (
	// SessionMain keys the lane "agent:<agentId>:cron:<agentId>:<jobId>".
	SessionMain SessionTarget = "main"
	// SessionIsolated keys the lane "cron:<jobId>". The lane key is the
	// only difference between the targets: either way the turn runs in
	// the conversation of the chat that ChannelID and ChatID name.
	SessionIsolated SessionTarget = "isolated"
)

// Job is one scheduled unit of work.
type Job struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	AgentID       string        `json:"agent_id"`
	ScheduleType  ScheduleType  `json:"schedule_type"`
	Schedule      string        `json:"schedule"`       // "5m" | "0 9 * * *" | "2026-03-01T09:00:00Z"
	Prompt        string        `json:"prompt"`         // message content sent to the agent
	SessionTarget SessionTarget `json:"session_target"` // "main" or "isolated"
	ChannelID     string        `json:"channel_id"`     // delivery channel
	ChatID        string        `json:"chat_id"`        // delivery chat
	Enabled       bool          `json:"enabled"`

	// Workspace is set at runtime for heartbeat jobs; not persisted.
	Workspace string `json:"-"`

	// Runtime state, maintained by the scheduler.
	LastRunAt      *time.Time `json:"last_run_at,omitempty"`
	NextRunAt      *time.Time `json:"next_run_at,omitempty"`
	ConsecutiveErr int        `json:"consecutive_err,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
