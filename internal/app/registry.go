package app

import "sync"

// identitySession records which room an owner display name currently drives,
// plus the ids of rooms it has retired.
type identitySession struct {
	currentRoomID string
	history       []string
}

// IdentityRegistry maps an owner display name to its most recent room so that
// opening a new room automatically retires the previous one. It is the only
// state shared across room boundaries; the swap runs atomically under the
// registry lock so two joins for the same owner name cannot interleave.
type IdentityRegistry struct {
	mu       sync.Mutex
	sessions map[string]*identitySession
}

func NewIdentityRegistry() *IdentityRegistry {
	return &IdentityRegistry{sessions: make(map[string]*identitySession)}
}

// Register points the owner at roomID and returns the previously registered
// room id, if it differs. The caller is responsible for closing the old room.
func (reg *IdentityRegistry) Register(displayName, roomID string) (oldRoomID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	sess, ok := reg.sessions[displayName]
	if !ok {
		reg.sessions[displayName] = &identitySession{currentRoomID: roomID}
		return ""
	}
	if sess.currentRoomID == roomID {
		return ""
	}
	old := sess.currentRoomID
	sess.history = append(sess.history, old)
	sess.currentRoomID = roomID
	return old
}

// Remove deletes the owner's record only if it still points at roomID. This
// guards against a stale removal racing a newer room registration.
func (reg *IdentityRegistry) Remove(displayName, roomID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if sess, ok := reg.sessions[displayName]; ok && sess.currentRoomID == roomID {
		delete(reg.sessions, displayName)
	}
}

// CurrentRoom reports the room currently registered for the owner name.
func (reg *IdentityRegistry) CurrentRoom(displayName string) (string, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	sess, ok := reg.sessions[displayName]
	if !ok {
		return "", false
	}
	return sess.currentRoomID, true
}
