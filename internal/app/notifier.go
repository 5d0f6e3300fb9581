package app

// Notifier is the outbound side of the transport: it delivers a single event
// to one connection and can force a connection closed. Delivery is
// fire-and-forget; the core never waits for acknowledgment and relies on the
// transport to preserve per-connection ordering.
type Notifier interface {
	Send(connID, event string, payload any)
	CloseConn(connID string)
}

// Outbound event names. Payloads are plain JSON objects assembled by the
// service and engine.
const (
	EventRoomJoined               = "room_joined"
	EventRoomStatus               = "room_status"
	EventMatchFound               = "match_found"
	EventRoomFull                 = "room_full"
	EventRoomNotFound             = "room_not_found"
	EventLearningStorySnapshot    = "learning_story_snapshot"
	EventLearningCategoryChanged  = "learning_category_changed"
	EventLearningScrollSync       = "learning_scroll_sync"
	EventLearningStoryChanged     = "learning_story_changed"
	EventOwnerProceededModeSelect = "owner_proceeded_to_mode_select"
	EventModeSelectConnected      = "mode_select_connected"
	EventPlayerReconnected        = "player_reconnected"
	EventPlayerDisconnected       = "player_disconnected"
	EventPlayerLeft               = "player_left"
	EventRoomClosedByOwner        = "room_closed_by_owner"
	EventRedirectToLearning       = "redirect_to_learning"
	EventRedirectToMatching       = "redirect_to_matching"
	EventNewQuestion              = "new_question"
	EventQuestionResult           = "question_result"
	EventQuizFinished             = "quiz_finished"
)
