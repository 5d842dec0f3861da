package server

import (
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/Tyrowin/gridduel/internal/game"
)

const (
	pongWait     = 60 * time.Second
	pingPeriod   = 54 * time.Second
	writeWait    = 10 * time.Second
	sendBuffered = 256
)

// FrameHandler processes the frames a client reads and its departure.
type FrameHandler interface {
	HandleFrame(c *Client, raw []byte)
	HandleDisconnect(c *Client)
}

// Client represents one player's WebSocket connection. It owns the read and
// write pumps and a per-connection rate limiter.
type Client struct {
	id             game.ConnID
	conn           *websocket.Conn
	send           chan []byte
	hub            *Hub
	handler        FrameHandler
	addr           string
	closed         bool
	maxMessageSize int64
	rateLimiter    *rate.Limiter
	rateLimit      RateLimitConfig
}

// NewClient creates a Client for conn with a fresh connection ID. Frames are
// passed to handler; the send channel is buffered to absorb bursts.
func NewClient(conn *websocket.Conn, hub *Hub, handler FrameHandler, addr string) *Client {
	cfg := CurrentConfig()
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	return &Client{
		id:             game.ConnID(uuid.NewString()),
		conn:           conn,
		send:           make(chan []byte, sendBuffered),
		hub:            hub,
		handler:        handler,
		addr:           addr,
		maxMessageSize: cfg.MaxMessageSize,
		rateLimiter:    newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval),
		rateLimit:      cfg.RateLimit,
	}
}

// ID returns the connection's identity within rooms.
func (c *Client) ID() game.ConnID {
	return c.id
}

// Addr returns the remote address the client connected from.
func (c *Client) Addr() string {
	return c.addr
}

// GetSendChan returns the client's send channel for reading outgoing messages.
func (c *Client) GetSendChan() <-chan []byte {
	return c.send
}

func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Warn().Err(err).Str("addr", c.addr).Msg("set initial read deadline")
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			log.Warn().Err(err).Str("addr", c.addr).Msg("set read deadline in pong handler")
		}
		return nil
	})
}

// handleReadError logs the read failure and reports whether the read loop
// should stop.
func (c *Client) handleReadError(err error) bool {
	if err == nil {
		return false
	}
	l := log.With().Str("addr", c.addr).Str("conn", string(c.id)).Logger()

	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		l.Warn().Int64("limit", c.maxMessageSize).Msg("message exceeded maximum size")
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		l.Info().Err(err).Msg("client disconnected")
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		l.Info().Err(err).Msg("client connection closed")
	case websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig):
		l.Warn().Err(err).Msg("unexpected websocket close")
	default:
		l.Warn().Err(err).Msg("websocket read error")
	}
	return true
}

// checkRateLimit reports whether the next frame may be processed.
func (c *Client) checkRateLimit() bool {
	if c.rateLimiter != nil && !c.rateLimiter.Allow() {
		log.Warn().
			Str("addr", c.addr).
			Int("burst", c.rateLimit.Burst).
			Dur("interval", c.rateLimit.RefillInterval).
			Msg("rate limit exceeded; discarding message")
		return false
	}
	return true
}

func (c *Client) readPump() {
	defer func() {
		if c.handler != nil {
			c.handler.HandleDisconnect(c)
		}
		c.hub.unregisterClient(c)
		c.closeConnection()
	}()

	c.setupReadConnection()

	for {
		_, rawMessage, err := c.conn.ReadMessage()
		if c.handleReadError(err) {
			break
		}
		if !c.checkRateLimit() {
			continue
		}
		if c.handler != nil {
			c.handler.HandleFrame(c, rawMessage)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case message, ok := <-c.send:
		return c.handleMessage(message, ok)
	case <-ticker.C:
		return c.handlePing()
	}
}

func (c *Client) closeConnection() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		log.Warn().Err(err).Str("addr", c.addr).Msg("close connection")
	}
}

// handleMessage writes one outgoing frame and returns false if the connection should be closed.
func (c *Client) handleMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		log.Warn().Err(err).Str("addr", c.addr).Msg("set write deadline")
		return false
	}
	if !ok {
		return c.writeCloseMessage()
	}
	return c.writeTextMessage(message)
}

func (c *Client) writeCloseMessage() bool {
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil && !isExpectedCloseError(err) {
		log.Warn().Err(err).Str("addr", c.addr).Msg("write close message")
	}
	return false
}

// writeTextMessage sends each event as its own text frame so clients can
// decode frames independently.
func (c *Client) writeTextMessage(message []byte) bool {
	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		log.Warn().Err(err).Str("addr", c.addr).Msg("write message")
		return false
	}
	return true
}

// handlePing sends a ping message to keep the connection alive.
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		log.Warn().Err(err).Str("addr", c.addr).Msg("set write deadline for ping")
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		log.Warn().Err(err).Str("addr", c.addr).Msg("write ping")
		return false
	}
	return true
}
