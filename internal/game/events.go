package game

// EventType names an outbound signal.
type EventType string

const (
	EventPlayerJoined EventType = "player_joined"
	EventGameStarted  EventType = "game_started"
	EventPlayerLeft   EventType = "player_left"
	EventMoveMade     EventType = "move_made"
	EventTurnSkipped  EventType = "turn_skipped"
	EventTimerStarted EventType = "timer_started"
	EventGameReset    EventType = "game_reset"
	EventError        EventType = "error"
)

// Event is a signal emitted by a room. Data is JSON-encodable.
type Event struct {
	Type EventType `json:"event"`
	Data any       `json:"data"`
}

// ConnID is an opaque handle for a player's live connection.
type ConnID string

// Notifier delivers room events to the connections subscribed to a room.
// Implementations must not call back into the room.
type Notifier interface {
	Subscribe(code string, conn ConnID)
	Unsubscribe(code string, conn ConnID)
	Broadcast(code string, ev Event)
}

type nopNotifier struct{}

func (nopNotifier) Subscribe(string, ConnID)   {}
func (nopNotifier) Unsubscribe(string, ConnID) {}
func (nopNotifier) Broadcast(string, Event)    {}

// Player is a seat in a room.
type Player struct {
	ID   ConnID `json:"id"`
	Name string `json:"name"`
	Mark Mark   `json:"symbol"`
}

type playerJoinedData struct {
	PlayerName string   `json:"player_name"`
	Symbol     Mark     `json:"symbol"`
	Players    []Player `json:"players"`
}

type gameStartedData struct {
	Board         Board    `json:"board"`
	CurrentPlayer Mark     `json:"current_player"`
	Players       []Player `json:"players"`
	MoveTimeLimit int      `json:"move_time_limit"`
}

type playerLeftData struct {
	Players []Player `json:"players"`
}

type moveMadeData struct {
	Row           int    `json:"row"`
	Col           int    `json:"col"`
	Symbol        Mark   `json:"symbol"`
	CurrentPlayer Mark   `json:"current_player"`
	GameStatus    Status `json:"game_status"`
	Winner        Winner `json:"winner"`
	WinningCells  []Cell `json:"winning_cells"`
}

type turnSkippedData struct {
	CurrentPlayer Mark `json:"current_player"`
}

type timerStartedData struct {
	MoveTimeLimit int `json:"move_time_limit"`
}

type gameResetData struct {
	Board         Board `json:"board"`
	CurrentPlayer Mark  `json:"current_player"`
}

// ErrorData is the payload of an error event sent to a single connection.
type ErrorData struct {
	Message string `json:"message"`
}

// ErrorEvent builds the error signal for the originating connection.
func ErrorEvent(message string) Event {
	return Event{Type: EventError, Data: ErrorData{Message: message}}
}
