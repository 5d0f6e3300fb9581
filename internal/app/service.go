package app

import (
	"context"
	"log"
	"time"

	"pairlearn-service/internal/domain"
)

// Options carries the timing and content knobs for a RoomService.
type Options struct {
	// GraceWindow bounds how long an owner's disconnect is tolerated after
	// proceed_to_mode_select before it counts as a real departure.
	GraceWindow time.Duration
	// QuestionTime is the per-question answer limit sent with new_question.
	QuestionTime time.Duration
	// RevealDelay is how long question results stay on screen before the next
	// round is advanced.
	RevealDelay time.Duration
	// QuestionSet names the question set played by every room.
	QuestionSet string
}

// RoomService is the session orchestrator: it dispatches inbound events to
// rooms, enforces role-based authorization, and owns the registry, guard, and
// quiz engine.
type RoomService struct {
	rooms    RoomRepository
	notifier Notifier
	registry *IdentityRegistry
	guard    *TransitionGuard
	engine   *quizEngine
}

func NewRoomService(rooms RoomRepository, questions QuestionRepository, notifier Notifier, opts Options) *RoomService {
	s := &RoomService{
		rooms:    rooms,
		notifier: notifier,
		registry: NewIdentityRegistry(),
	}
	s.guard = NewTransitionGuard(opts.GraceWindow, s.expireTransition)
	s.engine = newQuizEngine(rooms, questions, notifier, opts)
	return s
}

// Join handles join_room: a fresh join by (displayName, role). A participant
// already holding that identity is replaced outright, which resets its ready
// flag and score; score-preserving re-entry goes through Reconnect instead.
// An owner is registered only once the join is accepted, so a rejected join
// leaves both the registry and the owner's previous room untouched.
func (s *RoomService) Join(ctx context.Context, connID, roomID, displayName string, role domain.Role) error {
	room := s.rooms.GetOrCreate(roomID)
	room.mu.Lock()
	room.ensureStateLocked()

	if idx := room.indexOfIdentity(displayName, role); idx >= 0 {
		room.removeParticipantLocked(idx)
	}
	if len(room.participants) >= 2 {
		s.notifier.Send(connID, EventRoomFull, map[string]any{"roomId": roomID})
		room.mu.Unlock()
		return domain.ErrRoomFull
	}

	p := &domain.Participant{
		ConnectionID: connID,
		DisplayName:  displayName,
		Role:         role,
	}
	room.participants = append(room.participants, p)
	room.quiz.Scores[connID] = 0

	var retired string
	if role == domain.RoleOwner {
		retired = s.registry.Register(displayName, roomID)
	}

	s.notifier.Send(connID, EventRoomJoined, map[string]any{
		"roomId":      roomID,
		"displayName": displayName,
		"role":        role,
	})
	notifyRoomLocked(s.notifier, room, EventRoomStatus, room.statusPayload())
	s.notifier.Send(connID, EventLearningStorySnapshot, room.snapshotPayload())
	if len(room.participants) == 2 {
		notifyRoomLocked(s.notifier, room, EventMatchFound, map[string]any{"roomId": roomID})
	}
	room.mu.Unlock()

	if retired != "" {
		s.closeRoom(retired)
	}
	return nil
}

// Reconnect handles mode_select_join: a client re-establishing its connection
// on a new screen. It binds the new connection id in place and migrates the
// score entry, so accumulated score survives the handle change.
func (s *RoomService) Reconnect(ctx context.Context, connID, roomID, displayName string, role domain.Role, recovery bool) error {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		if !recovery {
			s.notifier.Send(connID, EventRoomNotFound, map[string]any{"roomId": roomID})
			return domain.ErrRoomNotFound
		}
		room = s.rooms.GetOrCreate(roomID)
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	room.ensureStateLocked()

	if role == domain.RoleOwner {
		s.guard.Clear(roomID, displayName)
	}

	if idx := room.indexOfIdentity(displayName, role); idx >= 0 {
		p := room.participants[idx]
		oldConn := p.ConnectionID
		p.ConnectionID = connID
		if score, ok := room.quiz.Scores[oldConn]; ok {
			delete(room.quiz.Scores, oldConn)
			room.quiz.Scores[connID] = score
		} else {
			room.quiz.Scores[connID] = 0
		}
		if ans, ok := room.quiz.Answers[oldConn]; ok {
			delete(room.quiz.Answers, oldConn)
			room.quiz.Answers[connID] = ans
		}
	} else if !room.roleOccupied(role) && len(room.participants) < 2 {
		room.participants = append(room.participants, &domain.Participant{
			ConnectionID: connID,
			DisplayName:  displayName,
			Role:         role,
		})
		room.quiz.Scores[connID] = 0
	} else {
		log.Printf("rejected reconnect to room %s: role %s already held by another identity (name=%s)", roomID, role, displayName)
		return nil
	}

	s.notifier.Send(connID, EventModeSelectConnected, room.statusPayload())
	if peer := room.peerOf(connID); peer != nil {
		s.notifier.Send(peer.ConnectionID, EventPlayerReconnected, map[string]any{
			"displayName": displayName,
			"role":        role,
		})
	}
	return nil
}

// Ready handles player_ready and starts the quiz once both participants are
// ready.
func (s *RoomService) Ready(ctx context.Context, connID, roomID string) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return
	}

	room.mu.Lock()
	idx := room.indexOfConn(connID)
	if idx < 0 {
		room.mu.Unlock()
		return
	}
	room.participants[idx].Ready = true
	notifyRoomLocked(s.notifier, room, EventRoomStatus, room.statusPayload())
	start := len(room.participants) == 2 && !room.quiz.Active
	if start {
		for _, p := range room.participants {
			if !p.Ready {
				start = false
				break
			}
		}
	}
	room.mu.Unlock()

	if start {
		s.engine.start(ctx, room)
	}
}

// SubmitAnswer handles submit_answer for the current round.
func (s *RoomService) SubmitAnswer(connID, roomID string, selectedOption *int, remainingTime int) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return
	}
	s.engine.submitAnswer(room, connID, selectedOption, remainingTime)
}

// ChangeCategory handles learning_category_change (owner only).
func (s *RoomService) ChangeCategory(connID, roomID, category string) {
	s.withOwner(connID, roomID, func(room *Room) {
		room.nav.CurrentCategory = category
		notifyRoomLocked(s.notifier, room, EventLearningCategoryChanged, map[string]any{
			"roomId":   roomID,
			"category": category,
		})
	})
}

// ChangeScroll handles learning_scroll_change (owner only); the offset is
// mirrored to the guest only, the owner already sees its own position.
func (s *RoomService) ChangeScroll(connID, roomID, category string, offset int) {
	s.withOwner(connID, roomID, func(room *Room) {
		room.nav.ScrollByCategory[category] = offset
		if peer := room.peerOf(connID); peer != nil {
			s.notifier.Send(peer.ConnectionID, EventLearningScrollSync, map[string]any{
				"roomId":   roomID,
				"category": category,
				"offset":   offset,
			})
		}
	})
}

// ChangeStory handles learning_story_change (owner only).
func (s *RoomService) ChangeStory(connID, roomID, category, storyID string) {
	s.withOwner(connID, roomID, func(room *Room) {
		room.nav.StoryByCategory[category] = storyID
		notifyRoomLocked(s.notifier, room, EventLearningStoryChanged, map[string]any{
			"roomId":   roomID,
			"category": category,
			"storyId":  storyID,
		})
	})
}

// ProceedToModeSelect handles proceed_to_mode_select (owner only): it opens
// the grace window before the owner's client tears its connection down, and
// tells the guest to follow.
func (s *RoomService) ProceedToModeSelect(connID, roomID string) {
	s.withOwner(connID, roomID, func(room *Room) {
		owner := room.participants[room.indexOfConn(connID)]
		s.guard.Begin(roomID, owner.DisplayName, connID)
		if peer := room.peerOf(connID); peer != nil {
			s.notifier.Send(peer.ConnectionID, EventOwnerProceededModeSelect, map[string]any{"roomId": roomID})
		}
	})
}

// SelectLearningMode handles select_learning_mode (owner only).
func (s *RoomService) SelectLearningMode(connID, roomID string) {
	s.withOwner(connID, roomID, func(room *Room) {
		room.nav.Active = true
		notifyRoomLocked(s.notifier, room, EventRedirectToLearning, map[string]any{"roomId": roomID})
	})
}

// SelectQuizMode handles select_quiz_mode (owner only).
func (s *RoomService) SelectQuizMode(connID, roomID string) {
	s.withOwner(connID, roomID, func(room *Room) {
		room.nav.Active = false
		notifyRoomLocked(s.notifier, room, EventRedirectToMatching, map[string]any{"roomId": roomID})
	})
}

// Leave handles an explicit leave_room.
func (s *RoomService) Leave(connID, roomID string) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return
	}

	room.mu.Lock()
	idx := room.indexOfConn(connID)
	if idx < 0 {
		room.mu.Unlock()
		return
	}
	p := room.removeParticipantLocked(idx)
	if p.Role == domain.RoleOwner {
		s.registry.Remove(p.DisplayName, roomID)
	}
	empty := room.isEmpty()
	if !empty {
		notifyRoomLocked(s.notifier, room, EventPlayerLeft, map[string]any{
			"displayName": p.DisplayName,
			"role":        p.Role,
		})
		notifyRoomLocked(s.notifier, room, EventRoomStatus, room.statusPayload())
	}
	room.mu.Unlock()

	if empty {
		s.deleteRoom(roomID)
	}
}

// Disconnect handles a transport-initiated connection close. An owner with a
// transition in flight is left in place untouched; that is the defense
// against false-positive disconnects during client-side screen navigation.
func (s *RoomService) Disconnect(connID, roomID, displayName string, role domain.Role) {
	if role == domain.RoleOwner && s.guard.Pending(roomID, displayName) {
		return
	}

	room, ok := s.rooms.Get(roomID)
	if !ok {
		return
	}

	room.mu.Lock()
	idx := room.indexOfConn(connID)
	if idx < 0 {
		room.mu.Unlock()
		return
	}
	p := room.removeParticipantLocked(idx)
	if p.Role == domain.RoleOwner {
		s.registry.Remove(p.DisplayName, roomID)
	}
	empty := room.isEmpty()
	if !empty {
		notifyRoomLocked(s.notifier, room, EventPlayerDisconnected, map[string]any{
			"displayName": p.DisplayName,
			"role":        p.Role,
		})
		notifyRoomLocked(s.notifier, room, EventRoomStatus, room.statusPayload())
	}
	room.mu.Unlock()

	if empty {
		s.deleteRoom(roomID)
	}
}

// expireTransition fires when the grace window elapses without a reconnect:
// the owner genuinely left. Guarded against rooms already deleted, and
// against an owner that came back on a fresh connection after the timer
// already fired; such an owner is left in place.
func (s *RoomService) expireTransition(roomID, ownerName, connID string) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return
	}

	room.mu.Lock()
	idx := room.indexOfIdentity(ownerName, domain.RoleOwner)
	if idx < 0 {
		room.mu.Unlock()
		return
	}
	if room.participants[idx].ConnectionID != connID {
		room.mu.Unlock()
		return
	}
	p := room.removeParticipantLocked(idx)
	s.registry.Remove(ownerName, roomID)
	empty := room.isEmpty()
	if !empty {
		notifyRoomLocked(s.notifier, room, EventPlayerDisconnected, map[string]any{
			"displayName": p.DisplayName,
			"role":        p.Role,
		})
		notifyRoomLocked(s.notifier, room, EventRoomStatus, room.statusPayload())
	}
	room.mu.Unlock()

	if empty {
		s.deleteRoom(roomID)
	}
	log.Printf("transition window expired for room %s, owner %s evicted", roomID, ownerName)
}

// closeRoom force-retires a room whose owner opened a newer one. The
// room_closed_by_owner notice goes out before any connection is closed or the
// store entry removed.
func (s *RoomService) closeRoom(roomID string) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return
	}

	room.mu.Lock()
	notifyRoomLocked(s.notifier, room, EventRoomClosedByOwner, map[string]any{"roomId": roomID})
	conns := make([]string, 0, len(room.participants))
	for _, p := range room.participants {
		conns = append(conns, p.ConnectionID)
	}
	room.participants = nil
	room.mu.Unlock()

	s.deleteRoom(roomID)
	for _, connID := range conns {
		s.notifier.CloseConn(connID)
	}
	log.Printf("room %s closed: owner opened a new room", roomID)
}

// deleteRoom removes the room and cancels its pending timers.
func (s *RoomService) deleteRoom(roomID string) {
	s.guard.Cancel(roomID)
	s.engine.cancelPending(roomID)
	s.rooms.Delete(roomID)
}

// withOwner runs fn with the room locked if connID belongs to the room's
// owner. Anything else is a silent no-op so unauthorized senders learn
// nothing about the room.
func (s *RoomService) withOwner(connID, roomID string, fn func(room *Room)) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	idx := room.indexOfConn(connID)
	if idx < 0 || room.participants[idx].Role != domain.RoleOwner {
		return
	}
	fn(room)
}
