package chatws

import (
	"log/slog"
	"sync"
)

// Registry maps live connection ids to authenticated user ids and tracks
// room membership. State is in-process only; a restart drops everything
// along with the connections themselves.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]int64
	rooms    map[int64]map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]int64),
		rooms:    make(map[int64]map[string]struct{}),
	}
}

// Register records an authenticated connection. Called only after the
// handshake credential has been verified.
func (r *Registry) Register(connID string, userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[connID] = userID
	slog.Info("Chat session registered", "conn_id", connID, "user_id", userID)
}

// Lookup returns the user id bound to a connection, if any.
func (r *Registry) Lookup(connID string) (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.sessions[connID]
	return userID, ok
}

// Unregister removes a connection's session and its room memberships.
// Idempotent: unregistering an unknown connection is a no-op.
func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[connID]; !ok {
		return
	}
	delete(r.sessions, connID)

	for chatID, members := range r.rooms {
		if _, ok := members[connID]; ok {
			delete(members, connID)
			if len(members) == 0 {
				delete(r.rooms, chatID)
			}
		}
	}
	slog.Info("Chat session unregistered", "conn_id", connID)
}

// JoinRoom adds a connection to a chat's broadcast room.
func (r *Registry) JoinRoom(connID string, chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[chatID]
	if !ok {
		members = make(map[string]struct{})
		r.rooms[chatID] = members
	}
	members[connID] = struct{}{}
	slog.Info("Connection joined chat room", "conn_id", connID, "chat_id", chatID)
}

// RoomMembers returns the connections currently in a chat's room.
func (r *Registry) RoomMembers(chatID int64) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[chatID]
	out := make([]string, 0, len(members))
	for connID := range members {
		out = append(out, connID)
	}
	return out
}
