package http

import (
	"encoding/json"
	"log"
	"net/http"

	"pairlearn-service/internal/app"
	"pairlearn-service/internal/domain"

	"github.com/gorilla/websocket"
)

type WSHandler struct {
	service  *app.RoomService
	hub      *Hub
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.RoomService, hub *Hub) *WSHandler {
	return &WSHandler{
		service: service,
		hub:     hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type joinPayload struct {
	RoomID      string `json:"roomId"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
	Mode        string `json:"mode"`
}

type modeSelectJoinPayload struct {
	RoomID      string `json:"roomId"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
	Recovery    bool   `json:"recovery"`
}

type navigationPayload struct {
	RoomID   string `json:"roomId"`
	Category string `json:"category"`
	Offset   int    `json:"offset"`
	StoryID  string `json:"storyId"`
}

type roomPayload struct {
	RoomID string `json:"roomId"`
}

type answerPayload struct {
	QuestionIndex  int  `json:"questionIndex"`
	SelectedOption *int `json:"selectedOption"`
	RemainingTime  int  `json:"remainingTime"`
}

// sessionContext binds a connection to the room and identity it joined with.
// The handler populates it at the transport boundary and validates it before
// dispatching room-scoped events.
type sessionContext struct {
	roomID      string
	displayName string
	role        domain.Role
}

// ServeWS upgrades the request and runs the read loop, dispatching inbound
// events to the room service.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}

	ctx := r.Context()
	c := h.hub.register(conn)
	var sess *sessionContext

	defer func() {
		h.hub.unregister(c.connID)
		if sess != nil {
			h.service.Disconnect(c.connID, sess.roomID, sess.displayName, sess.role)
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}

		switch inbound.Type {
		case "join_room":
			var p joinPayload
			if err := json.Unmarshal(inbound.Payload, &p); err != nil {
				continue
			}
			role := domain.Role(p.Role)
			if p.RoomID == "" || p.DisplayName == "" || !role.Valid() {
				continue
			}
			if err := h.service.Join(ctx, c.connID, p.RoomID, p.DisplayName, role); err != nil {
				continue
			}
			sess = &sessionContext{roomID: p.RoomID, displayName: p.DisplayName, role: role}

		case "mode_select_join":
			var p modeSelectJoinPayload
			if err := json.Unmarshal(inbound.Payload, &p); err != nil {
				continue
			}
			role := domain.Role(p.Role)
			if p.RoomID == "" || p.DisplayName == "" || !role.Valid() {
				continue
			}
			if err := h.service.Reconnect(ctx, c.connID, p.RoomID, p.DisplayName, role, p.Recovery); err != nil {
				continue
			}
			sess = &sessionContext{roomID: p.RoomID, displayName: p.DisplayName, role: role}

		case "player_ready":
			if sess == nil {
				continue
			}
			h.service.Ready(ctx, c.connID, sess.roomID)

		case "learning_category_change":
			p, ok := h.boundNavigation(sess, inbound.Payload)
			if !ok {
				continue
			}
			h.service.ChangeCategory(c.connID, sess.roomID, p.Category)

		case "learning_scroll_change":
			p, ok := h.boundNavigation(sess, inbound.Payload)
			if !ok {
				continue
			}
			h.service.ChangeScroll(c.connID, sess.roomID, p.Category, p.Offset)

		case "learning_story_change":
			p, ok := h.boundNavigation(sess, inbound.Payload)
			if !ok {
				continue
			}
			h.service.ChangeStory(c.connID, sess.roomID, p.Category, p.StoryID)

		case "proceed_to_mode_select":
			if !h.boundRoom(sess, inbound.Payload) {
				continue
			}
			h.service.ProceedToModeSelect(c.connID, sess.roomID)

		case "select_learning_mode":
			if !h.boundRoom(sess, inbound.Payload) {
				continue
			}
			h.service.SelectLearningMode(c.connID, sess.roomID)

		case "select_quiz_mode":
			if !h.boundRoom(sess, inbound.Payload) {
				continue
			}
			h.service.SelectQuizMode(c.connID, sess.roomID)

		case "submit_answer":
			if sess == nil {
				continue
			}
			var p answerPayload
			if err := json.Unmarshal(inbound.Payload, &p); err != nil {
				continue
			}
			h.service.SubmitAnswer(c.connID, sess.roomID, p.SelectedOption, p.RemainingTime)

		case "leave_room":
			if !h.boundRoom(sess, inbound.Payload) {
				continue
			}
			h.service.Leave(c.connID, sess.roomID)
			sess = nil

		default:
			log.Printf("unsupported message type %q from %s", inbound.Type, c.connID)
		}
	}
}

// boundNavigation parses a navigation payload and checks it addresses the
// room this connection is bound to. Mismatches are silent no-ops.
func (h *WSHandler) boundNavigation(sess *sessionContext, raw json.RawMessage) (navigationPayload, bool) {
	var p navigationPayload
	if sess == nil {
		return p, false
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, false
	}
	if p.RoomID != "" && p.RoomID != sess.roomID {
		return p, false
	}
	return p, true
}

func (h *WSHandler) boundRoom(sess *sessionContext, raw json.RawMessage) bool {
	if sess == nil {
		return false
	}
	var p roomPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return false
	}
	return p.RoomID == "" || p.RoomID == sess.roomID
}
