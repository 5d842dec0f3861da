package server_test

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/gridduel/internal/game"
	"github.com/Tyrowin/gridduel/internal/testhelpers"
)

// TestHealthHandler verifies the health endpoint reports status and counts.
func TestHealthHandler(t *testing.T) {
	app := newTestApp(t, nil)
	_, err := app.registry.Join("ABC123", "c1", "alice", game.Settings{})
	require.NoError(t, err)

	resp := testhelpers.MakeRequest(t, http.MethodGet, app.url("/health"))
	testhelpers.AssertStatusCode(t, resp, http.StatusOK)
	testhelpers.AssertContentType(t, resp, "application/json")

	body := testhelpers.DecodeJSON(t, resp)
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 1, body["rooms"])
	assert.EqualValues(t, 1, body["players"])
	assert.EqualValues(t, 0, body["clients"])
}

func TestCreateRoom(t *testing.T) {
	app := newTestApp(t, nil)

	resp := testhelpers.PostJSON(t, app.url("/api/create-room"), map[string]any{})
	testhelpers.AssertStatusCode(t, resp, http.StatusOK)
	code, _ := testhelpers.DecodeJSON(t, resp)["room_code"].(string)
	normalized, err := game.NormalizeCode(code)
	require.NoError(t, err)
	assert.Equal(t, code, normalized)

	room, err := app.registry.Lookup(code)
	require.NoError(t, err)
	snap := room.Snapshot()
	assert.Equal(t, 3, snap.BoardSize)
	assert.Equal(t, game.StatusWaiting, snap.Status)

	resp = testhelpers.PostJSON(t, app.url("/api/create-room"), map[string]any{"board_size": 7, "move_time_limit": 30})
	testhelpers.AssertStatusCode(t, resp, http.StatusOK)
	code, _ = testhelpers.DecodeJSON(t, resp)["room_code"].(string)
	room, err = app.registry.Lookup(code)
	require.NoError(t, err)
	assert.Equal(t, 7, room.Snapshot().BoardSize)
	assert.Equal(t, 4, room.Snapshot().WinLength)
}

func TestCreateRoomRejectsBadInput(t *testing.T) {
	app := newTestApp(t, nil)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"board too small", `{"board_size": 2}`, "Invalid room settings"},
		{"board too large", `{"board_size": 50}`, "Invalid room settings"},
		{"negative time limit", `{"move_time_limit": -5}`, "Invalid room settings"},
		{"not json", `{board`, "Invalid request body"},
		{"empty body", ``, "Invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(app.url("/api/create-room"), "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			testhelpers.AssertStatusCode(t, resp, http.StatusBadRequest)
			assert.Equal(t, tt.want, testhelpers.DecodeJSON(t, resp)["error"])
		})
	}
	assert.Equal(t, 0, app.registry.Len())
}

func TestJoinRoomAPI(t *testing.T) {
	app := newTestApp(t, nil)

	resp := testhelpers.PostJSON(t, app.url("/api/join-room"), map[string]string{"room_code": "abc123"})
	testhelpers.AssertStatusCode(t, resp, http.StatusOK)
	body := testhelpers.DecodeJSON(t, resp)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "ABC123", body["room_code"])
	assert.Equal(t, 1, app.registry.Len())

	resp = testhelpers.PostJSON(t, app.url("/api/join-room"), map[string]string{"room_code": "  "})
	testhelpers.AssertStatusCode(t, resp, http.StatusBadRequest)
	assert.Equal(t, "Room code is required", testhelpers.DecodeJSON(t, resp)["error"])

	resp = testhelpers.PostJSON(t, app.url("/api/join-room"), map[string]string{"room_code": "bad"})
	testhelpers.AssertStatusCode(t, resp, http.StatusBadRequest)

	for _, conn := range []game.ConnID{"c1", "c2"} {
		_, err := app.registry.Join("ABC123", conn, "", game.Settings{})
		require.NoError(t, err)
	}
	resp = testhelpers.PostJSON(t, app.url("/api/join-room"), map[string]string{"room_code": "ABC123"})
	testhelpers.AssertStatusCode(t, resp, http.StatusBadRequest)
	assert.Equal(t, "Room is full", testhelpers.DecodeJSON(t, resp)["error"])
}

func TestJoinRoomAPIWithoutAutoCreate(t *testing.T) {
	app := newTestApp(t, func(o *game.Options) { o.AutoCreate = false })

	resp := testhelpers.PostJSON(t, app.url("/api/join-room"), map[string]string{"room_code": "ABC123"})
	testhelpers.AssertStatusCode(t, resp, http.StatusNotFound)
	assert.Equal(t, "Room not found", testhelpers.DecodeJSON(t, resp)["error"])

	resp = testhelpers.MakeRequest(t, http.MethodGet, app.url("/room/ABC123"))
	testhelpers.AssertStatusCode(t, resp, http.StatusNotFound)
	assert.Equal(t, 0, app.registry.Len())
}

func TestRoomStatus(t *testing.T) {
	app := newTestApp(t, nil)

	resp := testhelpers.MakeRequest(t, http.MethodGet, app.url("/api/room-status/ABC123"))
	testhelpers.AssertStatusCode(t, resp, http.StatusOK)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"exists": false}`, string(raw))

	_, err = app.registry.Join("ABC123", "c1", "alice", game.Settings{BoardSize: 5})
	require.NoError(t, err)

	resp = testhelpers.MakeRequest(t, http.MethodGet, app.url("/api/room-status/abc123"))
	raw, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"exists": true, "player_count": 1, "game_status": "waiting", "board_size": 5}`, string(raw))
}

// TestGamePages verifies the index and room pages render and that opening a
// room page creates the room.
func TestGamePages(t *testing.T) {
	app := newTestApp(t, nil)

	resp := testhelpers.MakeRequest(t, http.MethodGet, app.url("/"))
	testhelpers.AssertStatusCode(t, resp, http.StatusOK)
	testhelpers.AssertContentType(t, resp, "text/html")
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Grid Duel")

	resp = testhelpers.MakeRequest(t, http.MethodGet, app.url("/room/xyz789"))
	testhelpers.AssertStatusCode(t, resp, http.StatusOK)
	raw, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `value="XYZ789"`)
	assert.True(t, app.registry.Status("XYZ789").Exists)

	resp = testhelpers.MakeRequest(t, http.MethodGet, app.url("/room/toolongcode"))
	testhelpers.AssertStatusCode(t, resp, http.StatusBadRequest)
}

func TestRouterMethodsAndNotFound(t *testing.T) {
	app := newTestApp(t, nil)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodPost, "/ws", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/create-room", http.StatusMethodNotAllowed},
		{http.MethodGet, "/nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		resp := testhelpers.MakeRequest(t, tt.method, app.url(tt.path))
		testhelpers.AssertStatusCode(t, resp, tt.want)
	}
}
