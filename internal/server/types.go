package server

import (
	"encoding/json"
	"strings"
)

// Inbound event names.
const (
	EventJoinRoom  = "join_room"
	EventMakeMove  = "make_move"
	EventResetGame = "reset_game"
)

// Message is the envelope for every frame in either direction.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// JoinRoomData is the payload of join_room.
type JoinRoomData struct {
	RoomCode   string `json:"room_code"`
	PlayerName string `json:"player_name"`
}

// MakeMoveData is the payload of make_move. Row and Col are pointers so a
// missing coordinate can be told apart from zero.
type MakeMoveData struct {
	RoomCode string `json:"room_code"`
	Row      *int   `json:"row"`
	Col      *int   `json:"col"`
}

// ResetGameData is the payload of reset_game.
type ResetGameData struct {
	RoomCode string `json:"room_code"`
}

// BroadcastMessage is an encoded frame and the clients it is addressed to.
type BroadcastMessage struct {
	Room    string
	Targets []*Client
	Payload []byte
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
