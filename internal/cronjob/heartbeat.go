package cronjob

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// HeartbeatJobID is the reserved ID prefix for built-in heartbeats.
	HeartbeatJobID = "__heartbeat__"
	// HeartbeatJobName is the human-readable name for the heartbeat job.
	HeartbeatJobName = "heartbeat"

	defaultHeartbeatInterval = 30 * time.Minute

	// heartbeatMaxJitter spreads the first fire time so a fleet of
	// agents restarting together does not heartbeat in lockstep.
	heartbeatMaxJitter = 60 * time.Second

	// heartbeatFile is the workspace-relative path to the heartbeat prompt.
	heartbeatFile = "HEARTBEAT.md"
)

// HeartbeatOK is the sentinel reply meaning "checked, nothing to do";
// the gateway suppresses delivery when it sees it.
const HeartbeatOK = "HEARTBEAT_OK"

// NewHeartbeatJob creates the built-in heartbeat job for one agent.
// interval <= 0 selects the default. The job targets the main session.
// Any Save after registration writes it to jobs.json with the other
// jobs; Store.Load drops it again on the next start.
func NewHeartbeatJob(agentID, workspace string, interval time.Duration) Job {
	if interval <= 0 {
		interval = defaultHeartbeatInterval
	}

	now := time.Now()
	next := now.Add(interval).Add(time.Duration(rand.Int64N(int64(heartbeatMaxJitter))))
	return Job{
		ID:            heartbeatJobID(agentID),
		Name:          HeartbeatJobName,
		AgentID:       agentID,
		ScheduleType:  ScheduleEvery,
		Schedule:      interval.String(),
		SessionTarget: SessionMain,
		Enabled:       true,
		Workspace:     workspace,
		NextRunAt:     &next,
		CreatedAt:     now,
	}
}

func heartbeatJobID(agentID string) string {
	return HeartbeatJobID + ":" + agentID
}

// IsHeartbeatJob reports whether the job ID belongs to a built-in heartbeat.
func IsHeartbeatJob(jobID string) bool {
	return strings.HasPrefix(jobID, HeartbeatJobID)
}

// BuildHeartbeatPrompt reads HEARTBEAT.md from the workspace and
// decides whether it holds actionable work. Missing or empty files,
// and files containing nothing but markdown headings and HTML
// comments, return ("", false) so the scheduler can skip the model
// call entirely.
func BuildHeartbeatPrompt(workspace string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(workspace, heartbeatFile))
	if err != nil {
		return "", false
	}

	content := strings.TrimSpace(string(data))
	if content == "" {
		return "", false
	}
	if !hasWorkItems(content) {
		return "", false
	}
	return content, true
}

// hasWorkItems reports whether any non-blank line is something other
// than a heading or an HTML comment.
func hasWorkItems(content string) bool {
	inComment := false
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if inComment {
			if strings.Contains(trimmed, "-->") {
				inComment = false
			}
			continue
		}
		if strings.HasPrefix(trimmed, "<!--") {
			if !strings.Contains(trimmed, "-->") {
				inComment = true
			}
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			continue
		}
		return true
	}
	return false
}
