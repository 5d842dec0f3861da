package server

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Tyrowin/gridduel/internal/game"
)

// Handler serves the HTTP API, the game page and the WebSocket endpoint.
type Handler struct {
	registry *game.Registry
	hub      *Hub
	gateway  *Gateway
	upgrader websocket.Upgrader
}

// NewHandler wires the handlers to a registry and the hub that carries its
// events.
func NewHandler(registry *game.Registry, hub *Hub) *Handler {
	return &Handler{
		registry: registry,
		hub:      hub,
		gateway:  NewGateway(registry, hub),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// WebSocket upgrades the request and registers the new client with the hub,
// which starts its pumps.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("addr", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	h.hub.Register(NewClient(conn, h.hub, h.gateway, r.RemoteAddr))
}

type healthResponse struct {
	Status  string `json:"status"`
	Rooms   int    `json:"rooms"`
	Players int    `json:"players"`
	Clients int    `json:"clients"`
}

// Health reports liveness with room and connection counts.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	st := h.registry.Stats()
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Rooms:   st.Rooms,
		Players: st.Players,
		Clients: h.hub.ClientCount(),
	})
}

type createRoomRequest struct {
	BoardSize     int `json:"board_size"`
	MoveTimeLimit int `json:"move_time_limit"`
}

type createRoomResponse struct {
	RoomCode string `json:"room_code"`
}

// CreateRoom makes a room under a fresh code. Omitted settings take the
// configured defaults; the move time limit is in seconds.
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	room, err := h.registry.Create(game.Settings{
		BoardSize:     req.BoardSize,
		MoveTimeLimit: time.Duration(req.MoveTimeLimit) * time.Second,
	})
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, createRoomResponse{RoomCode: room.Code()})
}

type joinRoomRequest struct {
	RoomCode string `json:"room_code"`
}

type joinRoomResponse struct {
	Success  bool   `json:"success"`
	RoomCode string `json:"room_code"`
}

// JoinRoom checks that a room can take another player before the page
// connects. Seating happens over the WebSocket.
func (h *Handler) JoinRoom(w http.ResponseWriter, r *http.Request) {
	var req joinRoomRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.RoomCode) == "" {
		writeError(w, http.StatusBadRequest, "Room code is required")
		return
	}

	room, err := h.registry.Open(req.RoomCode, game.Settings{})
	if err != nil {
		writeOperationError(w, err)
		return
	}
	if len(room.Snapshot().Players) >= game.MaxPlayers {
		writeOperationError(w, game.ErrRoomFull)
		return
	}
	writeJSON(w, http.StatusOK, joinRoomResponse{Success: true, RoomCode: room.Code()})
}

// RoomStatus serves the polling view of a room.
func (h *Handler) RoomStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.Status(chi.URLParam(r, "code")))
}

// Index serves the game page without a room.
func (h *Handler) Index(w http.ResponseWriter, _ *http.Request) {
	renderPage(w, pageData{})
}

// RoomPage opens the room for the code in the path and serves the game page
// bound to it.
func (h *Handler) RoomPage(w http.ResponseWriter, r *http.Request) {
	room, err := h.registry.Open(chi.URLParam(r, "code"), game.Settings{})
	if err != nil {
		writeOperationError(w, err)
		return
	}
	snap := room.Snapshot()
	renderPage(w, pageData{RoomCode: snap.Code, BoardSize: snap.BoardSize})
}

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeOperationError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, game.ErrRoomNotFound):
		status = http.StatusNotFound
	case errors.Is(err, game.ErrRoomFull),
		errors.Is(err, game.ErrInvalidCode),
		errors.Is(err, game.ErrInvalidSettings),
		errors.Is(err, game.ErrInvalidRequest):
		status = http.StatusBadRequest
	default:
		log.Error().Err(err).Msg("request failed")
	}
	writeError(w, status, ErrorMessage(err))
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("write json response")
	}
}

type pageData struct {
	RoomCode  string
	BoardSize int
}

func renderPage(w http.ResponseWriter, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, data); err != nil {
		log.Warn().Err(err).Msg("render page")
	}
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>Grid Duel</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #board { display: inline-grid; gap: 4px; margin: 10px 0; }
        .cell {
            width: 48px; height: 48px;
            border: 1px solid #888;
            font-size: 28px; text-align: center; line-height: 48px;
            cursor: pointer; background-color: #f9f9f9;
        }
        .cell.win { background-color: #d4edda; }
        input[type="text"] { padding: 5px; margin-right: 10px; }
        button {
            padding: 5px 15px;
            background-color: #007cba; color: white;
            border: none; cursor: pointer;
        }
        button:hover { background-color: #005a87; }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .error { background-color: #f8d7da; color: #721c24; }
    </style>
</head>
<body>
    <h1>Grid Duel</h1>

    <div>
        <input type="text" id="room" placeholder="Room code" value="{{.RoomCode}}">
        <input type="text" id="name" placeholder="Your name">
        <button onclick="join()">Join</button>
        <button onclick="createRoom()">New room</button>
        <button onclick="resetGame()">Reset</button>
    </div>

    <div id="status" class="status">Not connected</div>
    <div id="timer"></div>
    <div id="players"></div>
    <div id="board"></div>

    <script>
        let ws = null;
        let board = [];
        let countdown = null;
        const statusDiv = document.getElementById('status');

        function roomCode() {
            return document.getElementById('room').value.trim().toUpperCase();
        }

        function send(event, data) {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.send(JSON.stringify({event: event, data: data}));
            }
        }

        function setStatus(text, isError) {
            statusDiv.textContent = text;
            statusDiv.className = isError ? 'status error' : 'status';
        }

        function render(winning) {
            const el = document.getElementById('board');
            el.innerHTML = '';
            el.style.gridTemplateColumns = 'repeat(' + board.length + ', 48px)';
            const wins = new Set((winning || []).map(c => c[0] + ',' + c[1]));
            board.forEach((row, r) => row.forEach((mark, c) => {
                const cell = document.createElement('div');
                cell.className = wins.has(r + ',' + c) ? 'cell win' : 'cell';
                cell.textContent = mark || '';
                cell.onclick = () => send('make_move', {room_code: roomCode(), row: r, col: c});
                el.appendChild(cell);
            }));
        }

        function startCountdown(seconds) {
            clearInterval(countdown);
            let left = seconds;
            const el = document.getElementById('timer');
            el.textContent = left + 's';
            countdown = setInterval(() => {
                left = Math.max(0, left - 1);
                el.textContent = left + 's';
            }, 1000);
        }

        function showPlayers(players) {
            document.getElementById('players').textContent =
                (players || []).map(p => p.name + ' (' + p.symbol + ')').join(' vs ');
        }

        function handle(msg) {
            const d = msg.data || {};
            switch (msg.event) {
            case 'player_joined':
            case 'player_left':
                showPlayers(d.players);
                break;
            case 'game_started':
                board = d.board; render();
                showPlayers(d.players);
                setStatus(d.current_player + ' to move');
                break;
            case 'move_made':
                board[d.row][d.col] = d.symbol;
                render(d.winning_cells);
                if (d.game_status === 'finished') {
                    clearInterval(countdown);
                    setStatus(d.winner === 'draw' ? 'Draw' : d.winner + ' wins');
                } else {
                    setStatus(d.current_player + ' to move');
                }
                break;
            case 'turn_skipped':
                setStatus('Time up, ' + d.current_player + ' to move');
                break;
            case 'timer_started':
                startCountdown(d.move_time_limit);
                break;
            case 'game_reset':
                board = d.board; render();
                setStatus(d.current_player + ' to move');
                break;
            case 'error':
                setStatus(d.message, true);
                break;
            }
        }

        function join() {
            const code = roomCode();
            if (!code) { setStatus('Enter a room code', true); return; }
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(scheme + location.host + '/ws');
            ws.onopen = () => {
                setStatus('Waiting for opponent');
                send('join_room', {room_code: code, player_name: document.getElementById('name').value});
            };
            ws.onmessage = (e) => handle(JSON.parse(e.data));
            ws.onclose = () => setStatus('Connection closed', true);
        }

        function resetGame() {
            send('reset_game', {room_code: roomCode()});
        }

        async function createRoom() {
            const resp = await fetch('/api/create-room', {
                method: 'POST',
                headers: {'Content-Type': 'application/json'},
                body: JSON.stringify({board_size: {{if .BoardSize}}{{.BoardSize}}{{else}}3{{end}}})
            });
            const body = await resp.json();
            if (body.room_code) { location.href = '/room/' + body.room_code; }
            else { setStatus(body.error, true); }
        }
    </script>
</body>
</html>`))
