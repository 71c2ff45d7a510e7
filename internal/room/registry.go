package room

import "sync"

// Registry holds ephemeral per-session moderation state: the set of
// currently muted participants. It is process-local and unreplicated;
// a restart silently unmutes everyone. Kept behind an interface so a
// shared external store can back it for horizontally-scaled deployments.
type Registry interface {
	Mute(sessionID, userID string)
	Unmute(sessionID, userID string)
	IsMuted(sessionID, userID string) bool
	MutedUsers(sessionID string) []string
	Clear(sessionID string)
}

type memoryRegistry struct {
	mu    sync.RWMutex
	muted map[string]map[string]struct{} // sessionID -> set of userIDs
}

func NewMemoryRegistry() Registry {
	return &memoryRegistry{
		muted: make(map[string]map[string]struct{}),
	}
}

func (r *memoryRegistry) Mute(sessionID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.muted[sessionID] == nil {
		r.muted[sessionID] = make(map[string]struct{})
	}
	r.muted[sessionID][userID] = struct{}{}
}

func (r *memoryRegistry) Unmute(sessionID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if set, ok := r.muted[sessionID]; ok {
		delete(set, userID)
		if len(set) == 0 {
			delete(r.muted, sessionID)
		}
	}
}

func (r *memoryRegistry) IsMuted(sessionID, userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.muted[sessionID][userID]
	return ok
}

func (r *memoryRegistry) MutedUsers(sessionID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.muted[sessionID]
	users := make([]string, 0, len(set))
	for id := range set {
		users = append(users, id)
	}
	return users
}

func (r *memoryRegistry) Clear(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.muted, sessionID)
}
