package app_test

import (
	"sync"
	"testing"
	"time"

	"pairlearn-service/internal/app"
	"pairlearn-service/internal/domain"
	"pairlearn-service/internal/infra/memory"
)

// notice is one recorded outbound event.
type notice struct {
	ConnID  string
	Event   string
	Payload any
}

// fakeNotifier records every Send and CloseConn so tests can assert on the
// outbound traffic without a real transport.
type fakeNotifier struct {
	mu     sync.Mutex
	events []notice
	closed []string
}

func (f *fakeNotifier) Send(connID, event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, notice{ConnID: connID, Event: event, Payload: payload})
}

func (f *fakeNotifier) CloseConn(connID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, connID)
}

func (f *fakeNotifier) count(connID, event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e.ConnID == connID && e.Event == event {
			n++
		}
	}
	return n
}

func (f *fakeNotifier) last(connID, event string) (notice, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.events) - 1; i >= 0; i-- {
		e := f.events[i]
		if e.ConnID == connID && e.Event == event {
			return e, true
		}
	}
	return notice{}, false
}

func (f *fakeNotifier) closedConns() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.closed...)
}

// waitFor polls until the event shows up for the connection; timer-driven
// paths (grace expiry, deferred advance) need this.
func (f *fakeNotifier) waitFor(t *testing.T, connID, event string, timeout time.Duration) notice {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if e, ok := f.last(connID, event); ok {
			return e
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s on %s", event, connID)
	return notice{}
}

func payloadMap(t *testing.T, e notice) map[string]any {
	t.Helper()
	m, ok := e.Payload.(map[string]any)
	if !ok {
		t.Fatalf("expected map payload for %s, got %T", e.Event, e.Payload)
	}
	return m
}

type fixture struct {
	svc      *app.RoomService
	notifier *fakeNotifier
}

func newFixture(grace, reveal time.Duration) fixture {
	notifier := &fakeNotifier{}
	questions := memory.NewQuestionRepository(memory.NewStaticQuestionLoader(testQuestionSets()), 5*time.Minute)
	svc := app.NewRoomService(memory.NewRoomStore(), questions, notifier, app.Options{
		GraceWindow:  grace,
		QuestionTime: 20 * time.Second,
		RevealDelay:  reveal,
		QuestionSet:  "set-1",
	})
	return fixture{svc: svc, notifier: notifier}
}

func testQuestionSets() map[string]domain.QuestionSet {
	return map[string]domain.QuestionSet{
		"set-1": {
			ID: "set-1",
			Questions: []domain.Question{
				{
					ID:           "q1",
					Prompt:       "What is 2 + 2?",
					Options:      []string{"3", "4", "5"},
					CorrectIndex: 1,
					Explanation:  "Two plus two equals four.",
				},
				{
					ID:           "q2",
					Prompt:       "Which planet is closest to the sun?",
					Options:      []string{"Venus", "Earth", "Mercury"},
					CorrectIndex: 2,
					Explanation:  "Mercury orbits closest to the sun.",
				},
			},
		},
	}
}

func opt(i int) *int {
	return &i
}
