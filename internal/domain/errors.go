package domain

import "errors"

var (
	// ErrRoomNotFound is returned when a room id is unknown and the caller did
	// not ask for recovery.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomFull is returned when a room already has two participants.
	ErrRoomFull = errors.New("room is full")
	// ErrParticipantNotFound is returned when a connection acts on a room it
	// does not belong to.
	ErrParticipantNotFound = errors.New("participant not found in room")
	// ErrQuestionSetNotFound indicates the quiz content could not be loaded.
	ErrQuestionSetNotFound = errors.New("question set not found")
)
