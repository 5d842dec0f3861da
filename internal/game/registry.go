package game

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
)

const (
	// CodeLength is the number of characters in a room code.
	CodeLength = 6
	// MinBoardSize is the smallest playable board.
	MinBoardSize = 3

	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Options configures a Registry. Zero numeric fields take the defaults from
// DefaultOptions; AutoCreate is used as given.
type Options struct {
	DefaultBoardSize     int
	MaxBoardSize         int
	DefaultMoveTimeLimit time.Duration
	MaxMoveTimeLimit     time.Duration
	// AutoCreate lets Join create a room for an unknown code.
	AutoCreate bool

	Notifier Notifier
	Clock    clock.Clock
	Logger   zerolog.Logger
	// CodeSource draws candidate room codes. Defaults to random A-Z0-9.
	CodeSource func() string
}

// DefaultOptions returns a 3x3 board with a five second move limit, with
// rooms created on first access.
func DefaultOptions() Options {
	return Options{
		DefaultBoardSize:     3,
		MaxBoardSize:         10,
		DefaultMoveTimeLimit: 5 * time.Second,
		MaxMoveTimeLimit:     5 * time.Minute,
		AutoCreate:           true,
		Logger:               zerolog.Nop(),
	}
}

// Registry maps room codes to rooms. Its own lock guards the maps; rooms
// guard their state. The lock order is registry, then room.
type Registry struct {
	mu      sync.RWMutex
	rooms   map[string]*Room
	members map[ConnID]map[string]struct{}

	opts Options
	log  zerolog.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(opts Options) *Registry {
	def := DefaultOptions()
	if opts.DefaultBoardSize == 0 {
		opts.DefaultBoardSize = def.DefaultBoardSize
	}
	if opts.MaxBoardSize == 0 {
		opts.MaxBoardSize = def.MaxBoardSize
	}
	if opts.DefaultMoveTimeLimit == 0 {
		opts.DefaultMoveTimeLimit = def.DefaultMoveTimeLimit
	}
	if opts.MaxMoveTimeLimit == 0 {
		opts.MaxMoveTimeLimit = def.MaxMoveTimeLimit
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.CodeSource == nil {
		opts.CodeSource = randomCode
	}
	return &Registry{
		rooms:   make(map[string]*Room),
		members: make(map[ConnID]map[string]struct{}),
		opts:    opts,
		log:     opts.Logger,
	}
}

// NormalizeCode trims and upper-cases a code and checks its format.
func NormalizeCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != CodeLength {
		return "", fmt.Errorf("%w: %q", ErrInvalidCode, code)
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(codeAlphabet, code[i]) < 0 {
			return "", fmt.Errorf("%w: %q", ErrInvalidCode, code)
		}
	}
	return code, nil
}

func randomCode() string {
	b := make([]byte, CodeLength)
	for i := range b {
		b[i] = codeAlphabet[rand.IntN(len(codeAlphabet))]
	}
	return string(b)
}

// Resolve fills zero fields of s with the registry defaults and checks the
// bounds.
func (g *Registry) Resolve(s Settings) (Settings, error) {
	if s.BoardSize == 0 {
		s.BoardSize = g.opts.DefaultBoardSize
	}
	if s.MoveTimeLimit == 0 {
		s.MoveTimeLimit = g.opts.DefaultMoveTimeLimit
	}
	if s.BoardSize < MinBoardSize || s.BoardSize > g.opts.MaxBoardSize {
		return Settings{}, fmt.Errorf("%w: board size %d not in [%d, %d]",
			ErrInvalidSettings, s.BoardSize, MinBoardSize, g.opts.MaxBoardSize)
	}
	if s.MoveTimeLimit < time.Second || s.MoveTimeLimit > g.opts.MaxMoveTimeLimit {
		return Settings{}, fmt.Errorf("%w: move time limit %s not in [1s, %s]",
			ErrInvalidSettings, s.MoveTimeLimit, g.opts.MaxMoveTimeLimit)
	}
	return s, nil
}

// GetOrCreate returns the room for code, creating it with s if it does not
// exist. Zero settings mean the registry defaults.
func (g *Registry) GetOrCreate(code string, s Settings) (*Room, error) {
	code, err := NormalizeCode(code)
	if err != nil {
		return nil, err
	}
	s, err = g.Resolve(s)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if r, ok := g.rooms[code]; ok && !r.isClosed() {
		return r, nil
	}
	return g.insertLocked(code, s), nil
}

// Create makes a room under a freshly generated code.
func (g *Registry) Create(s Settings) (*Room, error) {
	s, err := g.Resolve(s)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.insertLocked(g.uniqueCodeLocked(), s), nil
}

// GenerateUniqueCode returns a code not used by any live room.
func (g *Registry) GenerateUniqueCode() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.uniqueCodeLocked()
}

func (g *Registry) uniqueCodeLocked() string {
	for {
		code := g.opts.CodeSource()
		if _, taken := g.rooms[code]; !taken {
			return code
		}
		g.log.Debug().Str("room", code).Msg("room code collision, retrying")
	}
}

func (g *Registry) insertLocked(code string, s Settings) *Room {
	r := newRoom(code, s, g.opts.Notifier, g.opts.Clock, g.log)
	g.rooms[code] = r
	g.log.Info().
		Str("room", code).
		Int("board_size", s.BoardSize).
		Dur("move_time_limit", s.MoveTimeLimit).
		Msg("room created")
	return r
}

// Lookup returns the room for code or ErrRoomNotFound.
func (g *Registry) Lookup(code string) (*Room, error) {
	code, err := NormalizeCode(code)
	if err != nil {
		return nil, err
	}

	g.mu.RLock()
	r, ok := g.rooms[code]
	g.mu.RUnlock()
	if !ok || r.isClosed() {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, code)
	}
	return r, nil
}

// Remove deletes a room and disarms its timer.
func (g *Registry) Remove(code string) {
	if normalized, err := NormalizeCode(code); err == nil {
		code = normalized
	}

	g.mu.Lock()
	r, ok := g.rooms[code]
	delete(g.rooms, code)
	g.mu.Unlock()

	if ok {
		r.close()
		g.log.Info().Str("room", code).Msg("room removed")
	}
}

// Open returns the room for code. With AutoCreate a missing room is created
// with s; otherwise ErrRoomNotFound is returned.
func (g *Registry) Open(code string, s Settings) (*Room, error) {
	if g.opts.AutoCreate {
		return g.GetOrCreate(code, s)
	}
	return g.Lookup(code)
}

// Join seats conn in the room for code. With AutoCreate the room is created
// with s when missing; otherwise ErrRoomNotFound is returned.
func (g *Registry) Join(code string, conn ConnID, name string, s Settings) (*Room, error) {
	for {
		r, err := g.Open(code, s)
		if err != nil {
			return nil, err
		}

		err = r.Join(conn, name)
		if errors.Is(err, errRoomClosed) {
			continue
		}
		if err != nil {
			return r, err
		}

		g.mu.Lock()
		codes, ok := g.members[conn]
		if !ok {
			codes = make(map[string]struct{})
			g.members[conn] = codes
		}
		codes[r.code] = struct{}{}
		g.mu.Unlock()
		return r, nil
	}
}

// Move applies a move in the room for code.
func (g *Registry) Move(code string, conn ConnID, row, col int) error {
	r, err := g.Lookup(code)
	if err != nil {
		return err
	}
	return r.Move(conn, row, col)
}

// Reset restarts the game in the room for code. A missing room is logged
// and reported as ErrRoomNotFound.
func (g *Registry) Reset(code string) error {
	r, err := g.Lookup(code)
	if err != nil {
		g.log.Warn().Str("room", code).Err(err).Msg("reset ignored")
		return err
	}
	return r.Reset()
}

// Disconnect removes conn from every room it joined. Rooms left empty are
// removed from the registry.
func (g *Registry) Disconnect(conn ConnID) {
	g.mu.Lock()
	codes := g.members[conn]
	delete(g.members, conn)
	rooms := make([]*Room, 0, len(codes))
	for code := range codes {
		if r, ok := g.rooms[code]; ok {
			rooms = append(rooms, r)
		}
	}
	g.mu.Unlock()

	for _, r := range rooms {
		if _, empty := r.Leave(conn); empty {
			g.mu.Lock()
			if g.rooms[r.code] == r {
				delete(g.rooms, r.code)
			}
			g.mu.Unlock()
			g.log.Info().Str("room", r.code).Msg("deleted empty room")
		}
	}
}

// StatusSnapshot is the read-only view served to polling clients.
type StatusSnapshot struct {
	Exists      bool
	PlayerCount int
	GameStatus  Status
	BoardSize   int
}

// MarshalJSON encodes a missing room as {"exists": false}.
func (s StatusSnapshot) MarshalJSON() ([]byte, error) {
	if !s.Exists {
		return []byte(`{"exists":false}`), nil
	}
	return json.Marshal(struct {
		Exists      bool   `json:"exists"`
		PlayerCount int    `json:"player_count"`
		GameStatus  Status `json:"game_status"`
		BoardSize   int    `json:"board_size"`
	}{true, s.PlayerCount, s.GameStatus, s.BoardSize})
}

// Status reports whether a room exists and, if so, its headline state.
func (g *Registry) Status(code string) StatusSnapshot {
	r, err := g.Lookup(code)
	if err != nil {
		return StatusSnapshot{}
	}
	snap := r.Snapshot()
	if snap.Closed {
		return StatusSnapshot{}
	}
	return StatusSnapshot{
		Exists:      true,
		PlayerCount: len(snap.Players),
		GameStatus:  snap.Status,
		BoardSize:   snap.BoardSize,
	}
}

// Stats counts live rooms and seated players.
type Stats struct {
	Rooms   int `json:"rooms"`
	Players int `json:"players"`
}

// Stats returns current totals.
func (g *Registry) Stats() Stats {
	g.mu.RLock()
	rooms := make([]*Room, 0, len(g.rooms))
	for _, r := range g.rooms {
		rooms = append(rooms, r)
	}
	g.mu.RUnlock()

	st := Stats{Rooms: len(rooms)}
	for _, r := range rooms {
		r.mu.Lock()
		st.Players += len(r.players)
		r.mu.Unlock()
	}
	return st
}

// Len returns the number of rooms in the registry.
func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}

// Close disarms every room's timer and empties the registry.
func (g *Registry) Close() {
	g.mu.Lock()
	rooms := g.rooms
	g.rooms = make(map[string]*Room)
	g.members = make(map[ConnID]map[string]struct{})
	g.mu.Unlock()

	for _, r := range rooms {
		r.close()
	}
	g.log.Info().Int("rooms", len(rooms)).Msg("registry closed")
}
