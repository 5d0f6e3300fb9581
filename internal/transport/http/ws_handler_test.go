package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pairlearn-service/internal/app"
	"pairlearn-service/internal/domain"
	"pairlearn-service/internal/infra/memory"

	"github.com/gorilla/websocket"
)

func TestWebSocketPairedQuizFlow(t *testing.T) {
	server, wsURL := newTestServer(t)
	defer server.Close()

	owner := dial(t, wsURL)
	defer owner.Close()
	guest := dial(t, wsURL)
	defer guest.Close()

	send(t, owner, "join_room", map[string]any{
		"roomId": "R1", "displayName": "Aki", "role": "owner",
	})
	readUntil(t, owner, "room_joined")

	send(t, guest, "join_room", map[string]any{
		"roomId": "R1", "displayName": "Sora", "role": "guest",
	})
	readUntil(t, owner, "match_found")
	readUntil(t, guest, "match_found")

	send(t, owner, "player_ready", map[string]any{})
	send(t, guest, "player_ready", map[string]any{})

	q := readUntil(t, owner, "new_question")
	if q["round"].(float64) != 1 {
		t.Fatalf("expected round 1, got %v", q["round"])
	}
	if _, leaked := q["correctIndex"]; leaked {
		t.Fatalf("correct index leaked to clients")
	}
	readUntil(t, guest, "new_question")

	send(t, owner, "submit_answer", map[string]any{
		"questionIndex": 0, "selectedOption": 0, "remainingTime": 10,
	})
	send(t, guest, "submit_answer", map[string]any{
		"questionIndex": 0, "selectedOption": 1, "remainingTime": 5,
	})

	result := readUntil(t, guest, "question_result")
	if result["correctIndex"].(float64) != 1 {
		t.Fatalf("expected correct index revealed, got %v", result["correctIndex"])
	}
	for _, raw := range result["results"].([]any) {
		row := raw.(map[string]any)
		switch row["displayName"] {
		case "Sora":
			if row["score"].(float64) != 105 {
				t.Fatalf("expected Sora at 105, got %v", row["score"])
			}
		case "Aki":
			if row["score"].(float64) != 0 {
				t.Fatalf("expected Aki at 0, got %v", row["score"])
			}
		}
	}
}

func TestWebSocketGuestNavigationMirrored(t *testing.T) {
	server, wsURL := newTestServer(t)
	defer server.Close()

	owner := dial(t, wsURL)
	defer owner.Close()
	guest := dial(t, wsURL)
	defer guest.Close()

	send(t, owner, "join_room", map[string]any{
		"roomId": "R1", "displayName": "Aki", "role": "owner",
	})
	readUntil(t, owner, "room_joined")
	send(t, guest, "join_room", map[string]any{
		"roomId": "R1", "displayName": "Sora", "role": "guest",
	})
	readUntil(t, guest, "room_joined")

	send(t, owner, "learning_category_change", map[string]any{
		"roomId": "R1", "category": "science",
	})
	changed := readUntil(t, guest, "learning_category_changed")
	if changed["category"] != "science" {
		t.Fatalf("expected category mirrored, got %v", changed["category"])
	}

	// Guest-driven navigation is dropped silently; the owner must see
	// nothing beyond its own earlier events.
	send(t, guest, "learning_category_change", map[string]any{
		"roomId": "R1", "category": "history",
	})
	send(t, owner, "learning_story_change", map[string]any{
		"roomId": "R1", "category": "science", "storyId": "story-3",
	})
	story := readUntil(t, owner, "learning_story_changed")
	if story["storyId"] != "story-3" {
		t.Fatalf("expected story change, got %v", story)
	}
}

func newTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	hub := NewHub()
	questions := memory.NewQuestionRepository(memory.NewStaticQuestionLoader(sampleQuestionSets()), time.Minute)
	service := app.NewRoomService(memory.NewRoomStore(), questions, hub, app.Options{
		GraceWindow:  time.Second,
		QuestionTime: 20 * time.Second,
		RevealDelay:  50 * time.Millisecond,
		QuestionSet:  "set-1",
	})
	wsHandler := NewWSHandler(service, hub)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	server := httptest.NewServer(mux)
	return server, "ws" + server.URL[len("http"):] + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msgType string, payload map[string]any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": msgType, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", msgType, err)
	}
}

// readUntil drains messages until one of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, want string) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg struct {
			Type    string         `json:"type"`
			Payload map[string]any `json:"payload"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read waiting for %s: %v", want, err)
		}
		if msg.Type == want {
			return msg.Payload
		}
	}
}

func sampleQuestionSets() map[string]domain.QuestionSet {
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
			},
		},
	}
}
