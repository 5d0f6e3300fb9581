package app

import (
	"context"
	"sync"
	"time"

	"pairlearn-service/internal/domain"
)

// RoomRepository abstracts how rooms are stored (in-memory, Redis-marked, etc).
type RoomRepository interface {
	GetOrCreate(roomID string) *Room
	Get(roomID string) (*Room, bool)
	Delete(roomID string)
}

// QuestionRepository loads quiz content (from cache/backing store).
type QuestionRepository interface {
	GetSet(ctx context.Context, setID string) (domain.QuestionSet, error)
}

// NavigationState is the owner-driven content position mirrored to the guest.
type NavigationState struct {
	CurrentCategory  string
	ScrollByCategory map[string]int
	StoryByCategory  map[string]string
	Active           bool
}

// QuizState tracks the round state machine for one room. Answers is cleared
// each round; Scores is keyed by current connection id and migrated on
// reconnect. Revealed latches once the round has been scored so late
// submissions cannot score it again.
type QuizState struct {
	Active    bool
	Round     int
	Revealed  bool
	Questions []domain.Question
	Answers   map[string]domain.Answer
	Scores    map[string]int
}

// Room is the unit of a paired session: at most two participants, shared
// navigation state, and quiz state. The room mutex is the unit of mutual
// exclusion; every event addressed to a room serializes on it, so there is no
// cross-room contention.
type Room struct {
	ID        string
	CreatedAt time.Time

	mu           sync.Mutex
	participants []*domain.Participant
	nav          NavigationState
	quiz         QuizState
	now          func() time.Time
}

// NewRoom is exported for repository implementations that need to seed rooms.
func NewRoom(id string) *Room {
	return newRoomWithClock(id, time.Now)
}

// newRoomWithClock allows deterministic timestamps in tests.
func newRoomWithClock(id string, now func() time.Time) *Room {
	r := &Room{
		ID:        id,
		CreatedAt: now(),
		now:       now,
	}
	r.ensureStateLocked()
	return r
}

// ensureStateLocked backfills missing substructures. Rooms recreated through
// the recovery path, or built by older flows, may land here with nil maps;
// those are repaired in place rather than treated as errors.
func (r *Room) ensureStateLocked() {
	if r.nav.ScrollByCategory == nil {
		r.nav.ScrollByCategory = make(map[string]int)
	}
	if r.nav.StoryByCategory == nil {
		r.nav.StoryByCategory = make(map[string]string)
	}
	if r.quiz.Answers == nil {
		r.quiz.Answers = make(map[string]domain.Answer)
	}
	if r.quiz.Scores == nil {
		r.quiz.Scores = make(map[string]int)
	}
}

// indexOfIdentity finds a participant by stable identity (displayName, role).
func (r *Room) indexOfIdentity(displayName string, role domain.Role) int {
	for i, p := range r.participants {
		if p.DisplayName == displayName && p.Role == role {
			return i
		}
	}
	return -1
}

// indexOfConn finds a participant by its current connection handle.
func (r *Room) indexOfConn(connID string) int {
	for i, p := range r.participants {
		if p.ConnectionID == connID {
			return i
		}
	}
	return -1
}

func (r *Room) roleOccupied(role domain.Role) bool {
	for _, p := range r.participants {
		if p.Role == role {
			return true
		}
	}
	return false
}

// removeParticipantLocked drops the participant at idx along with its score
// and pending answer entries.
func (r *Room) removeParticipantLocked(idx int) *domain.Participant {
	p := r.participants[idx]
	r.participants = append(r.participants[:idx], r.participants[idx+1:]...)
	delete(r.quiz.Scores, p.ConnectionID)
	delete(r.quiz.Answers, p.ConnectionID)
	return p
}

// statusPayload is the room_status snapshot broadcast after membership or
// readiness changes.
func (r *Room) statusPayload() map[string]any {
	participants := make([]domain.Participant, 0, len(r.participants))
	for _, p := range r.participants {
		participants = append(participants, *p)
	}
	return map[string]any{
		"roomId":       r.ID,
		"participants": participants,
		"full":         len(r.participants) == 2,
	}
}

// snapshotPayload gives a late joiner the current navigation position.
func (r *Room) snapshotPayload() map[string]any {
	stories := make(map[string]string, len(r.nav.StoryByCategory))
	for category, story := range r.nav.StoryByCategory {
		stories[category] = story
	}
	return map[string]any{
		"roomId":          r.ID,
		"category":        r.nav.CurrentCategory,
		"storyByCategory": stories,
	}
}

// peerOf returns the other participant, if any.
func (r *Room) peerOf(connID string) *domain.Participant {
	for _, p := range r.participants {
		if p.ConnectionID != connID {
			return p
		}
	}
	return nil
}

func (r *Room) isEmpty() bool {
	return len(r.participants) == 0
}

// notifyRoomLocked fans an event out to every participant. Called with the
// room lock held so that sends for a given room are enqueued in event order.
func notifyRoomLocked(n Notifier, r *Room, event string, payload any) {
	for _, p := range r.participants {
		n.Send(p.ConnectionID, event, payload)
	}
}
