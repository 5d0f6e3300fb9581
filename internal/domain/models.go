package domain

import "time"

// Role identifies which side of a paired room a participant drives.
type Role string

const (
	// RoleOwner drives navigation and content; one per room.
	RoleOwner Role = "owner"
	// RoleGuest mirrors the owner's navigation; one per room.
	RoleGuest Role = "guest"
)

// Valid reports whether the role is one of the two fixed roles.
func (r Role) Valid() bool {
	return r == RoleOwner || r == RoleGuest
}

// Participant is one of the at-most-two members of a room. ConnectionID is a
// volatile transport handle that changes on reconnect; identity within a room
// is (DisplayName, Role).
type Participant struct {
	ConnectionID string `json:"connectionId"`
	DisplayName  string `json:"displayName"`
	Role         Role   `json:"role"`
	Ready        bool   `json:"ready"`
}

// Answer models one participant's submission for the current quiz round.
type Answer struct {
	SelectedOption *int      `json:"selectedOption"`
	RemainingTime  int       `json:"remainingTime"`
	SubmittedAt    time.Time `json:"submittedAt"`
}

// Question is an MCQ question; CorrectIndex points into Options.
type Question struct {
	ID           string   `json:"id"`
	Prompt       string   `json:"prompt"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
	Explanation  string   `json:"explanation"`
}

// QuestionSet is an ordered sequence of questions played one per round.
type QuestionSet struct {
	ID        string     `json:"id"`
	Questions []Question `json:"questions"`
}

// Standing is one row of the final scoreboard.
type Standing struct {
	DisplayName string `json:"displayName"`
	Role        Role   `json:"role"`
	Score       int    `json:"score"`
}
