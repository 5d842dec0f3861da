package game

import (
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
)

// Status is the room's lifecycle state.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// MaxPlayers is the room capacity.
const MaxPlayers = 2

// Settings fixes a room's board size and move time limit at creation.
type Settings struct {
	BoardSize     int
	MoveTimeLimit time.Duration
}

// Room is one game session. All state is guarded by mu.
//
// Events are delivered with publishMu held, and publishMu is acquired
// before mu is released. Events therefore reach the notifier in the same
// order as the state changes that produced them, and nothing is sent while
// mu is held.
type Room struct {
	code          string
	size          int
	winLength     int
	moveTimeLimit time.Duration

	mu        sync.Mutex
	publishMu sync.Mutex

	board   Board
	players []Player
	status  Status
	turn    Mark
	result  Result
	timer   *TurnTimer
	closed  bool

	notifier Notifier
	log      zerolog.Logger
}

// outbox collects the side effects of one operation.
type outbox struct {
	subscribe   ConnID
	unsubscribe ConnID
	events      []Event
}

func newRoom(code string, s Settings, n Notifier, c clock.Clock, log zerolog.Logger) *Room {
	if n == nil {
		n = nopNotifier{}
	}
	return &Room{
		code:          code,
		size:          s.BoardSize,
		winLength:     WinLengthFor(s.BoardSize),
		moveTimeLimit: s.MoveTimeLimit,
		board:         NewBoard(s.BoardSize),
		players:       make([]Player, 0, MaxPlayers),
		status:        StatusWaiting,
		turn:          MarkX,
		timer:         NewTurnTimer(c),
		notifier:      n,
		log:           log.With().Str("room", code).Logger(),
	}
}

// Code returns the room's normalized code.
func (r *Room) Code() string {
	return r.code
}

// Join seats a player. The first seat gets X, the second the remaining mark.
// Filling the second seat starts a fresh game.
func (r *Room) Join(conn ConnID, name string) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return errRoomClosed
	}
	if r.seat(conn) >= 0 {
		r.mu.Unlock()
		return ErrAlreadyJoined
	}
	if len(r.players) >= MaxPlayers {
		r.mu.Unlock()
		r.log.Warn().Str("conn", string(conn)).Msg("join rejected, room is full")
		return ErrRoomFull
	}

	if name == "" {
		name = fmt.Sprintf("Player %d", len(r.players)+1)
	}
	mark := MarkX
	if len(r.players) == 1 {
		mark = r.players[0].Mark.Opponent()
	}
	r.players = append(r.players, Player{ID: conn, Name: name, Mark: mark})
	r.log.Info().Str("conn", string(conn)).Str("player", name).Str("symbol", string(mark)).Msg("player joined")

	out := outbox{subscribe: conn}
	out.events = append(out.events, Event{Type: EventPlayerJoined, Data: playerJoinedData{
		PlayerName: name,
		Symbol:     mark,
		Players:    r.roster(),
	}})
	if len(r.players) == MaxPlayers {
		out.events = append(out.events, r.start())
	}
	r.unlockAndPublish(out)
	return nil
}

// Move places the caller's mark at (row, col).
func (r *Room) Move(conn ConnID, row, col int) error {
	r.mu.Lock()
	idx := r.seat(conn)
	if r.status != StatusPlaying || idx < 0 || r.players[idx].Mark != r.turn {
		r.mu.Unlock()
		return ErrNotYourTurn
	}
	if !r.board.InBounds(row, col) {
		r.mu.Unlock()
		return ErrOutOfBounds
	}
	if r.board[row][col] != Empty {
		r.mu.Unlock()
		return ErrCellOccupied
	}

	mark := r.turn
	r.board[row][col] = mark
	r.log.Debug().Int("row", row).Int("col", col).Str("symbol", string(mark)).Msg("move made")

	if res := Detect(r.board, r.winLength); res.Over() {
		r.status = StatusFinished
		r.result = res
		r.timer.Disarm()
		r.log.Info().Str("winner", string(res.Winner)).Msg("game finished")
	} else {
		r.turn = mark.Opponent()
		r.armTimer()
	}

	var out outbox
	out.events = append(out.events, Event{Type: EventMoveMade, Data: moveMadeData{
		Row:           row,
		Col:           col,
		Symbol:        mark,
		CurrentPlayer: r.turn,
		GameStatus:    r.status,
		Winner:        r.result.Winner,
		WinningCells:  r.winningCells(),
	}})
	if r.status == StatusPlaying {
		out.events = append(out.events, r.timerStarted())
	}
	r.unlockAndPublish(out)
	return nil
}

// Reset clears the board and starts a new game with X to move. It needs two
// seated players.
func (r *Room) Reset() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRoomNotFound
	}
	if r.status == StatusWaiting || len(r.players) < MaxPlayers {
		r.mu.Unlock()
		return ErrGameNotStarted
	}

	r.board = NewBoard(r.size)
	r.turn = MarkX
	r.status = StatusPlaying
	r.result = Result{}
	r.armTimer()
	r.log.Info().Msg("game reset")

	var out outbox
	out.events = append(out.events,
		Event{Type: EventGameReset, Data: gameResetData{Board: r.board.Clone(), CurrentPlayer: r.turn}},
		r.timerStarted(),
	)
	r.unlockAndPublish(out)
	return nil
}

// Leave removes conn from the roster. It reports whether the connection was
// seated and whether the room is now empty. An empty room is closed and
// refuses further joins. Status, turn and timer are otherwise left alone.
func (r *Room) Leave(conn ConnID) (removed, empty bool) {
	r.mu.Lock()
	idx := r.seat(conn)
	if idx < 0 {
		r.mu.Unlock()
		return false, false
	}
	r.players = append(r.players[:idx], r.players[idx+1:]...)
	r.log.Info().Str("conn", string(conn)).Int("remaining", len(r.players)).Msg("player left")

	out := outbox{unsubscribe: conn}
	if len(r.players) == 0 {
		r.closed = true
		r.timer.Disarm()
	} else {
		out.events = append(out.events, Event{Type: EventPlayerLeft, Data: playerLeftData{Players: r.roster()}})
	}
	empty = r.closed
	r.unlockAndPublish(out)
	return true, empty
}

// expire runs when a countdown elapses. Stale handles and finished games are
// ignored.
func (r *Room) expire(handle uint64) {
	r.mu.Lock()
	if r.closed || r.status != StatusPlaying || r.timer.Current() != handle {
		r.mu.Unlock()
		return
	}

	r.turn = r.turn.Opponent()
	r.armTimer()
	r.log.Info().Str("current_player", string(r.turn)).Msg("move timer expired, turn skipped")

	var out outbox
	out.events = append(out.events,
		Event{Type: EventTurnSkipped, Data: turnSkippedData{CurrentPlayer: r.turn}},
		r.timerStarted(),
	)
	r.unlockAndPublish(out)
}

// close disarms the timer and marks the room dead.
func (r *Room) close() {
	r.mu.Lock()
	r.closed = true
	r.timer.Disarm()
	r.mu.Unlock()
}

func (r *Room) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// start begins a fresh game. Caller holds mu.
func (r *Room) start() Event {
	r.board = NewBoard(r.size)
	r.turn = MarkX
	r.status = StatusPlaying
	r.result = Result{}
	r.armTimer()
	r.log.Info().Msg("game started")

	return Event{Type: EventGameStarted, Data: gameStartedData{
		Board:         r.board.Clone(),
		CurrentPlayer: r.turn,
		Players:       r.roster(),
		MoveTimeLimit: r.limitSeconds(),
	}}
}

func (r *Room) armTimer() {
	r.timer.Arm(r.moveTimeLimit, r.expire)
}

func (r *Room) timerStarted() Event {
	return Event{Type: EventTimerStarted, Data: timerStartedData{MoveTimeLimit: r.limitSeconds()}}
}

func (r *Room) limitSeconds() int {
	return int(r.moveTimeLimit / time.Second)
}

func (r *Room) seat(conn ConnID) int {
	for i, p := range r.players {
		if p.ID == conn {
			return i
		}
	}
	return -1
}

func (r *Room) roster() []Player {
	return append([]Player(nil), r.players...)
}

func (r *Room) winningCells() []Cell {
	return append([]Cell{}, r.result.Cells...)
}

// unlockAndPublish hands the publish lock over from the state lock and
// delivers the outbox.
func (r *Room) unlockAndPublish(out outbox) {
	r.publishMu.Lock()
	r.mu.Unlock()
	defer r.publishMu.Unlock()

	if out.subscribe != "" {
		r.notifier.Subscribe(r.code, out.subscribe)
	}
	if out.unsubscribe != "" {
		r.notifier.Unsubscribe(r.code, out.unsubscribe)
	}
	for _, ev := range out.events {
		r.notifier.Broadcast(r.code, ev)
	}
}

// Snapshot is a consistent copy of a room's state.
type Snapshot struct {
	Code          string
	BoardSize     int
	WinLength     int
	MoveTimeLimit time.Duration
	Board         Board
	Players       []Player
	Status        Status
	CurrentTurn   Mark
	Winner        Winner
	WinningCells  []Cell
	TimerArmed    bool
	Closed        bool
}

// Snapshot returns a copy of the room's state.
func (r *Room) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		Code:          r.code,
		BoardSize:     r.size,
		WinLength:     r.winLength,
		MoveTimeLimit: r.moveTimeLimit,
		Board:         r.board.Clone(),
		Players:       r.roster(),
		Status:        r.status,
		CurrentTurn:   r.turn,
		Winner:        r.result.Winner,
		WinningCells:  r.winningCells(),
		TimerArmed:    r.timer.Armed(),
		Closed:        r.closed,
	}
}
