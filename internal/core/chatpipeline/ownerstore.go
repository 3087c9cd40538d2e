package chatpipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bytedance/sonic"

	"github.com/orchestrator/core/internal/pkg/logs"
)

// FileOwnerStore is the reference OwnerStore: the owner id lives in a
// single small JSON file, written atomically (tmp + rename), the same
// pattern convstore.Store and automation.Manager use for their own
// persistence. Kept separate from the credential file internal/config
// already owns so pipeline state never mixes into it.
type FileOwnerStore struct {
	mu   sync.Mutex
	path string
	id   string
	ok   bool
}

type ownerDoc struct {
	OwnerID string `json:"owner_id"`
}

// NewFileOwnerStore loads any existing owner record at path; a missing
// file is not an error, it just means no owner has registered yet. An
// OWNER_TELEGRAM_ID environment variable pre-seeds the owner when no
// record exists, so a redeployed instance does not re-open the
// first-user-wins window.
func NewFileOwnerStore(path string) *FileOwnerStore {
	s := &FileOwnerStore{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if envOwner := os.Getenv("OWNER_TELEGRAM_ID"); envOwner != "" {
			s.id, s.ok = envOwner, true
		}
		return s
	}
	var doc ownerDoc
	if err := sonic.Unmarshal(data, &doc); err != nil {
		logs.Warn("[chatpipeline] owner store decode failed: %v", err)
		return s
	}
	if doc.OwnerID != "" {
		s.id, s.ok = doc.OwnerID, true
	}
	return s
}

func (s *FileOwnerStore) Owner() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id, s.ok
}

func (s *FileOwnerStore) SetOwner(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ok {
		return nil // owner already registered; first-ever user wins
	}
	data, err := sonic.Marshal(ownerDoc{OwnerID: id})
	if err != nil {
		return fmt.Errorf("marshal owner record: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create owner store directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write owner store tmp: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename owner store: %w", err)
	}
	s.id, s.ok = id, true
	return nil
}
