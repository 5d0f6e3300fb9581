package app

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"pairlearn-service/internal/domain"
)

// quizEngine drives the per-room round state machine:
// idle -> active(round=1..N) -> finished.
type quizEngine struct {
	rooms     RoomRepository
	questions QuestionRepository
	notifier  Notifier
	setID     string

	questionTime time.Duration
	revealDelay  time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
}

func newQuizEngine(rooms RoomRepository, questions QuestionRepository, notifier Notifier, opts Options) *quizEngine {
	return &quizEngine{
		rooms:        rooms,
		questions:    questions,
		notifier:     notifier,
		setID:        opts.QuestionSet,
		questionTime: opts.QuestionTime,
		revealDelay:  opts.RevealDelay,
		pending:      make(map[string]*time.Timer),
	}
}

// start activates the quiz for a room with two ready participants. Content is
// loaded before taking the room lock, and the readiness precondition is
// re-checked afterwards in case membership changed during the load.
func (e *quizEngine) start(ctx context.Context, room *Room) {
	set, err := e.questions.GetSet(ctx, e.setID)
	if err != nil {
		log.Printf("quiz start failed for room %s: %v", room.ID, err)
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if room.quiz.Active || len(room.participants) != 2 {
		return
	}
	for _, p := range room.participants {
		if !p.Ready {
			return
		}
	}

	room.quiz.Active = true
	room.quiz.Round = 0
	room.quiz.Questions = set.Questions
	e.advanceLocked(room)
}

// advanceLocked moves the room to the next round, or to finished when no
// question remains. Caller holds the room lock.
func (e *quizEngine) advanceLocked(room *Room) {
	if !room.quiz.Active {
		return
	}
	if room.quiz.Round >= len(room.quiz.Questions) {
		e.finishLocked(room)
		return
	}

	q := room.quiz.Questions[room.quiz.Round]
	room.quiz.Round++
	room.quiz.Revealed = false
	room.quiz.Answers = make(map[string]domain.Answer)

	// Correct index and explanation stay server-side until reveal.
	notifyRoomLocked(e.notifier, room, EventNewQuestion, map[string]any{
		"roomId":    room.ID,
		"round":     room.quiz.Round,
		"prompt":    q.Prompt,
		"options":   q.Options,
		"timeLimit": int(e.questionTime.Seconds()),
	})
}

// submitAnswer records one answer per connection id; a later write for the
// same connection overwrites the earlier one. Both current participants
// answering triggers the reveal. Once the round is revealed, submissions for
// it are dropped until the deferred advance opens the next one.
func (e *quizEngine) submitAnswer(room *Room, connID string, selectedOption *int, remainingTime int) {
	room.mu.Lock()
	defer room.mu.Unlock()

	if !room.quiz.Active || room.quiz.Round == 0 || room.quiz.Revealed {
		return
	}
	if room.indexOfConn(connID) < 0 {
		return
	}

	room.quiz.Answers[connID] = domain.Answer{
		SelectedOption: selectedOption,
		RemainingTime:  remainingTime,
		SubmittedAt:    room.now(),
	}

	if len(room.participants) == 2 && e.allAnsweredLocked(room) {
		e.revealLocked(room)
	}
}

func (e *quizEngine) allAnsweredLocked(room *Room) bool {
	for _, p := range room.participants {
		if _, ok := room.quiz.Answers[p.ConnectionID]; !ok {
			return false
		}
	}
	return true
}

// revealLocked scores the round and broadcasts per-participant results along
// with the correct answer and its explanation, then schedules the next
// advance so clients have time to display the result.
func (e *quizEngine) revealLocked(room *Room) {
	room.quiz.Revealed = true
	q := room.quiz.Questions[room.quiz.Round-1]

	results := make([]map[string]any, 0, len(room.participants))
	for _, p := range room.participants {
		ans, answered := room.quiz.Answers[p.ConnectionID]
		correct := answered && ans.SelectedOption != nil && *ans.SelectedOption == q.CorrectIndex
		if correct {
			bonus := ans.RemainingTime
			if bonus < 0 {
				bonus = 0
			}
			room.quiz.Scores[p.ConnectionID] += 100 + bonus
		}
		results = append(results, map[string]any{
			"displayName":    p.DisplayName,
			"role":           p.Role,
			"selectedOption": ans.SelectedOption,
			"correct":        correct,
			"score":          room.quiz.Scores[p.ConnectionID],
		})
	}

	notifyRoomLocked(e.notifier, room, EventQuestionResult, map[string]any{
		"roomId":       room.ID,
		"round":        room.quiz.Round,
		"correctIndex": q.CorrectIndex,
		"explanation":  q.Explanation,
		"results":      results,
	})
	e.scheduleAdvance(room.ID)
}

// finishLocked computes final standings: sorted by descending score with join
// order preserved on ties. Caller holds the room lock.
func (e *quizEngine) finishLocked(room *Room) {
	standings := make([]domain.Standing, 0, len(room.participants))
	for _, p := range room.participants {
		standings = append(standings, domain.Standing{
			DisplayName: p.DisplayName,
			Role:        p.Role,
			Score:       room.quiz.Scores[p.ConnectionID],
		})
	}
	sort.SliceStable(standings, func(i, j int) bool {
		return standings[i].Score > standings[j].Score
	})

	payload := map[string]any{
		"roomId":    room.ID,
		"standings": standings,
	}
	if len(standings) > 0 {
		payload["winner"] = standings[0].DisplayName
	}
	notifyRoomLocked(e.notifier, room, EventQuizFinished, payload)

	room.quiz.Active = false
	room.quiz.Questions = nil
	room.quiz.Answers = make(map[string]domain.Answer)
}

// scheduleAdvance arms the deferred round advance, replacing any timer still
// pending for the room.
func (e *quizEngine) scheduleAdvance(roomID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if t, ok := e.pending[roomID]; ok {
		t.Stop()
	}
	e.pending[roomID] = time.AfterFunc(e.revealDelay, func() {
		e.advanceDeferred(roomID)
	})
}

// advanceDeferred runs on timer expiry; it is a no-op if the room is gone or
// the quiz went inactive in the meantime.
func (e *quizEngine) advanceDeferred(roomID string) {
	e.mu.Lock()
	delete(e.pending, roomID)
	e.mu.Unlock()

	room, ok := e.rooms.Get(roomID)
	if !ok {
		return
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	e.advanceLocked(room)
}

// cancelPending drops a scheduled advance, used when the room is deleted.
func (e *quizEngine) cancelPending(roomID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if t, ok := e.pending[roomID]; ok {
		t.Stop()
		delete(e.pending, roomID)
	}
}
