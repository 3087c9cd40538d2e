package pairing

import (
	"strings"
	"sync"
)

var (
	defaultRegistry = &managerRegistry{managers: make(map[string]*Manager, 8)}

	Get    = defaultRegistry.Get
	Delete = defaultRegistry.Delete
)

// managerRegistry hands out one pairing Manager per channel key,
// creating it lazily on first request.
type managerRegistry struct {
	mu       sync.RWMutex
	managers map[string]*Manager
}

func (r *managerRegistry) Get(channelKey string) *Manager {
	channelKey = strings.TrimSpace(channelKey)
	if channelKey == "" {
		// Unkeyed callers get a throwaway manager rather than a nil.
		return newManager("")
	}

	r.mu.RLock()
	manager, ok := r.managers[channelKey]
	r.mu.RUnlock()
	if ok && manager != nil {
		return manager
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if manager, ok = r.managers[channelKey]; ok && manager != nil {
		return manager
	}

	channelID := parsePairingChannelID(channelKey)
	created := newManager(channelID)
	created.chanId = channelID
	r.managers[channelKey] = created
	return created
}

func (r *managerRegistry) Delete(channelKey string) {
	channelKey = strings.TrimSpace(channelKey)
	if channelKey == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.managers, channelKey)
}

// GetKey builds the registry key "type:id" for one channel instance.
func GetKey(chType string, chanID string) string {
	chanType := strings.ToLower(strings.TrimSpace(chType))
	chanID = strings.TrimSpace(chanID)
	if chanType == "" || chanID == "" {
		return ""
	}
	return chanType + ":" + chanID
}

func parsePairingChannelID(channelKey string) string {
	if _, id, ok := strings.Cut(strings.TrimSpace(channelKey), ":"); ok {
		return strings.TrimSpace(id)
	}
	return strings.TrimSpace(channelKey)
}
