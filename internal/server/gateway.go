package server

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Tyrowin/gridduel/internal/game"
)

// Gateway turns inbound frames into registry operations. Room events are
// delivered by the registry's notifier; failures go back to the originating
// connection as an error event.
type Gateway struct {
	registry *game.Registry
	hub      *Hub
}

var _ FrameHandler = (*Gateway)(nil)

// NewGateway returns a gateway bound to registry and hub.
func NewGateway(registry *game.Registry, hub *Hub) *Gateway {
	return &Gateway{registry: registry, hub: hub}
}

// HandleFrame decodes and dispatches one frame. A panic while handling it is
// logged and answered with an internal error; the connection stays open.
func (g *Gateway) HandleFrame(c *Client, raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("conn", string(c.id)).Msg("recovered while handling frame")
			g.reply(c, errInternal)
		}
	}()

	if err := g.dispatch(c.id, raw); err != nil {
		g.reply(c, err)
	}
}

// HandleDisconnect removes the connection from every room it joined.
func (g *Gateway) HandleDisconnect(c *Client) {
	g.registry.Disconnect(c.id)
}

func (g *Gateway) dispatch(conn game.ConnID, raw []byte) error {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Debug().Err(err).Str("conn", string(conn)).Msg("malformed frame")
		return game.ErrInvalidRequest
	}

	switch msg.Event {
	case EventJoinRoom:
		var data JoinRoomData
		if err := decodeData(msg.Data, &data); err != nil || data.RoomCode == "" {
			return game.ErrInvalidRequest
		}
		_, err := g.registry.Join(data.RoomCode, conn, strings.TrimSpace(data.PlayerName), game.Settings{})
		return err

	case EventMakeMove:
		var data MakeMoveData
		if err := decodeData(msg.Data, &data); err != nil || data.RoomCode == "" || data.Row == nil || data.Col == nil {
			return game.ErrInvalidRequest
		}
		return g.registry.Move(data.RoomCode, conn, *data.Row, *data.Col)

	case EventResetGame:
		var data ResetGameData
		if err := decodeData(msg.Data, &data); err != nil || data.RoomCode == "" {
			return game.ErrInvalidRequest
		}
		err := g.registry.Reset(data.RoomCode)
		if errors.Is(err, game.ErrRoomNotFound) || errors.Is(err, game.ErrInvalidCode) {
			// the registry has already logged it
			return nil
		}
		return err

	default:
		log.Debug().Str("conn", string(conn)).Str("event", msg.Event).Msg("unknown event")
		return game.ErrInvalidRequest
	}
}

func decodeData(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return game.ErrInvalidRequest
	}
	return json.Unmarshal(raw, v)
}

var errInternal = errors.New("internal error")

// ErrorMessage maps an operation error to the text sent to the player.
func ErrorMessage(err error) string {
	switch {
	case errors.Is(err, game.ErrRoomFull):
		return "Room is full"
	case errors.Is(err, game.ErrNotYourTurn):
		return "Not your turn"
	case errors.Is(err, game.ErrCellOccupied):
		return "Cell already occupied"
	case errors.Is(err, game.ErrOutOfBounds):
		return "Move out of bounds"
	case errors.Is(err, game.ErrRoomNotFound):
		return "Room not found"
	case errors.Is(err, game.ErrInvalidCode):
		return "Invalid room code"
	case errors.Is(err, game.ErrInvalidSettings):
		return "Invalid room settings"
	case errors.Is(err, game.ErrAlreadyJoined):
		return "Already in this room"
	case errors.Is(err, game.ErrGameNotStarted):
		return "Game has not started"
	case errors.Is(err, game.ErrInvalidRequest):
		return "Invalid request"
	default:
		return "Internal error"
	}
}

func (g *Gateway) reply(c *Client, err error) {
	if !errors.Is(err, errInternal) {
		log.Debug().Err(err).Str("conn", string(c.id)).Msg("operation rejected")
	}
	g.hub.SendTo(c.id, game.ErrorEvent(ErrorMessage(err)))
}
