package game

import "errors"

// Errors returned to the caller that issued an action. None of them change
// room state.
var (
	ErrRoomFull        = errors.New("room is full")
	ErrNotYourTurn     = errors.New("not your turn")
	ErrCellOccupied    = errors.New("cell already occupied")
	ErrOutOfBounds     = errors.New("move out of bounds")
	ErrRoomNotFound    = errors.New("room not found")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrInvalidCode     = errors.New("invalid room code")
	ErrInvalidSettings = errors.New("invalid room settings")
	ErrAlreadyJoined   = errors.New("already joined this room")
	ErrGameNotStarted  = errors.New("game has not started")
)

// errRoomClosed is returned by a room whose roster emptied while a join was
// in flight. The registry retries against a fresh room.
var errRoomClosed = errors.New("room closed")
