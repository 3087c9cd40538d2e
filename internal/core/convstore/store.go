// Package convstore implements the Conversation Store: a
// per-chat ordered message log with truncation, stale-prefix
// summarization, and an active-skill pointer. Everything persists as
// a single JSON document keyed by chat id plus a reserved "_skills"
// sub-object, written atomically (tmp file + rename).
package convstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"github.com/orchestrator/core/internal/core/ports"
	"github.com/orchestrator/core/internal/pkg/logs"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in a chat's history.
type Message struct {
	Role        Role   `json:"role"`
	Content     string `json:"content"`
	TimestampMs int64  `json:"timestamp_ms"`
}

// Store owns the per-chat message log and active-skill pointers; all
// mutation goes through its API.
type Store struct {
	mu          sync.RWMutex
	clock       ports.Clock
	path        string
	maxHistory  int
	chats       map[string][]Message
	activeSkill map[string]string
}

func New(clock ports.Clock, path string, maxHistory int) *Store {
	if maxHistory <= 0 {
		maxHistory = 200
	}
	return &Store{
		clock:       clock,
		path:        path,
		maxHistory:  maxHistory,
		chats:       make(map[string][]Message),
		activeSkill: make(map[string]string),
	}
}

// AddMessage appends with the current timestamp, trims to maxHistory,
// and drops any leading non-user messages so the invariant "a
// persisted history starts with a user role" always holds.
func (s *Store) AddMessage(chat string, role Role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := append(s.chats[chat], Message{
		Role:        role,
		Content:     content,
		TimestampMs: s.clock.Now().UnixMilli(),
	})
	if len(msgs) > s.maxHistory {
		msgs = msgs[len(msgs)-s.maxHistory:]
	}
	msgs = trimLeadingNonUser(msgs)
	s.chats[chat] = msgs
}

func trimLeadingNonUser(msgs []Message) []Message {
	for len(msgs) > 0 && msgs[0].Role != RoleUser {
		msgs = msgs[1:]
	}
	return msgs
}

// Clear deletes history and the active skill for chat.
func (s *Store) Clear(chat string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chats, chat)
	delete(s.activeSkill, chat)
}

// History returns a defensive copy of chat's message log.
func (s *Store) History(chat string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.chats[chat]
	out := make([]Message, len(src))
	copy(out, src)
	return out
}

func (s *Store) SetActiveSkill(chat, skillID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if skillID == "" {
		delete(s.activeSkill, chat)
		return
	}
	s.activeSkill[chat] = skillID
}

func (s *Store) ActiveSkill(chat string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.activeSkill[chat]
	return id, ok
}

const summaryTag = "[CONVERSATION SUMMARY - %d earlier messages]"

// GetSummarizedHistory prepares the model-facing history: if the log fits within
// recentWindow it is returned verbatim with relative-time markers; else
// a single synthetic user message carrying the literal summary tag plus
// one truncated line per older message is prepended to the annotated
// recent window. The result always starts with a user-role message.
func (s *Store) GetSummarizedHistory(chat string, recentWindow int) []Message {
	s.mu.RLock()
	msgs := make([]Message, len(s.chats[chat]))
	copy(msgs, s.chats[chat])
	now := s.clock.Now()
	s.mu.RUnlock()

	if len(msgs) <= recentWindow {
		out := make([]Message, len(msgs))
		for i, m := range msgs {
			out[i] = annotate(m, now)
		}
		return out
	}

	older := msgs[:len(msgs)-recentWindow]
	recent := msgs[len(msgs)-recentWindow:]

	var b []byte
	b = append(b, []byte(fmt.Sprintf(summaryTag, len(older)))...)
	for _, m := range older {
		b = append(b, '\n')
		b = append(b, []byte(fmt.Sprintf("[%s][%s]: %s", m.Role, relativeTag(m, now), first200(m.Content)))...)
	}

	summary := Message{Role: RoleUser, Content: string(b), TimestampMs: now.UnixMilli()}
	out := make([]Message, 0, 1+len(recent))
	out = append(out, summary)
	for _, m := range recent {
		out = append(out, annotate(m, now))
	}
	return out
}

func first200(s string) string {
	r := []rune(s)
	if len(r) <= 200 {
		return s
	}
	return string(r[:200])
}

func annotate(m Message, now time.Time) Message {
	if m.Role != RoleUser && m.Role != RoleAssistant {
		return m
	}
	return Message{
		Role:        m.Role,
		Content:     fmt.Sprintf("[%s] %s", relativeTag(m, now), m.Content),
		TimestampMs: m.TimestampMs,
	}
}

func relativeTag(m Message, now time.Time) string {
	elapsed := now.Sub(time.UnixMilli(m.TimestampMs))
	switch {
	case elapsed < time.Minute:
		return "just now"
	case elapsed < time.Hour:
		return fmt.Sprintf("%dm ago", int(elapsed.Minutes()))
	case elapsed < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(elapsed.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(elapsed.Hours()/24))
	}
}

// Save persists the whole store atomically (tmp + rename). Failures
// are logged, never propagated into callers.
func (s *Store) Save() {
	s.mu.RLock()
	doc := make(map[string]any, len(s.chats)+1)
	for chat, msgs := range s.chats {
		doc[chat] = msgs
	}
	skills := make(map[string]string, len(s.activeSkill))
	for k, v := range s.activeSkill {
		skills[k] = v
	}
	doc["_skills"] = skills
	s.mu.RUnlock()

	data, err := sonic.Marshal(doc)
	if err != nil {
		logs.Warn("[convstore] marshal failed: %v", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		logs.Warn("[convstore] create directory failed: %v", err)
		return
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		logs.Warn("[convstore] write tmp failed: %v", err)
		return
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		logs.Warn("[convstore] rename failed: %v", err)
	}
}

// Load reads a persisted document. Safe to call on a missing file.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read conversation store: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var raw map[string]json.RawMessage
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshal conversation store: %w", err)
	}

	chats := make(map[string][]Message, len(raw))
	skills := make(map[string]string)
	for key, v := range raw {
		if key == "_skills" {
			if err := sonic.Unmarshal(v, &skills); err != nil {
				return fmt.Errorf("unmarshal skills: %w", err)
			}
			continue
		}
		var msgs []Message
		if err := sonic.Unmarshal(v, &msgs); err != nil {
			return fmt.Errorf("unmarshal chat %s: %w", key, err)
		}
		chats[key] = msgs
	}

	s.mu.Lock()
	s.chats = chats
	s.activeSkill = skills
	s.mu.Unlock()
	return nil
}

// Chats returns a sorted snapshot of known chat ids.
func (s *Store) Chats() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.chats))
	for k := range s.chats {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
