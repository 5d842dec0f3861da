package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Tyrowin/gridduel/internal/game"
)

// Hub manages all WebSocket client connections and delivers room events to
// them. It implements game.Notifier: rooms subscribe connections by ConnID and
// broadcast to every subscriber.
type Hub struct {
	clients    map[*Client]bool
	byID       map[game.ConnID]*Client
	rooms      map[string]map[game.ConnID]struct{}
	broadcast  chan BroadcastMessage
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

var _ game.Notifier = (*Hub)(nil)

// NewHub creates and initializes a new Hub instance with all necessary channels
// and client maps. Run must be started before clients are registered.
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[*Client]bool),
		byID:       make(map[game.ConnID]*Client),
		rooms:      make(map[string]map[game.ConnID]struct{}),
		broadcast:  make(chan BroadcastMessage),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Register hands a client to the run loop, which starts its pumps.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
		client.closeConnection()
	}
}

func (h *Hub) unregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// Subscribe adds conn to the room's audience.
func (h *Hub) Subscribe(code string, conn game.ConnID) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	members, ok := h.rooms[code]
	if !ok {
		members = make(map[game.ConnID]struct{})
		h.rooms[code] = members
	}
	members[conn] = struct{}{}
}

// Unsubscribe removes conn from the room's audience.
func (h *Hub) Unsubscribe(code string, conn game.ConnID) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.unsubscribeLocked(code, conn)
}

func (h *Hub) unsubscribeLocked(code string, conn game.ConnID) {
	members, ok := h.rooms[code]
	if !ok {
		return
	}
	delete(members, conn)
	if len(members) == 0 {
		delete(h.rooms, code)
	}
}

// Broadcast encodes ev and queues it for every connection subscribed to the
// room. The audience is fixed when Broadcast is called.
func (h *Hub) Broadcast(code string, ev game.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("room", code).Str("event", string(ev.Type)).Msg("encode event")
		return
	}
	h.enqueue(BroadcastMessage{Room: code, Targets: h.roomTargets(code), Payload: payload})
}

// SendTo queues ev for a single connection.
func (h *Hub) SendTo(conn game.ConnID, ev game.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("conn", string(conn)).Msg("encode event")
		return
	}

	h.mutex.RLock()
	client, ok := h.byID[conn]
	h.mutex.RUnlock()
	if !ok {
		return
	}
	h.enqueue(BroadcastMessage{Targets: []*Client{client}, Payload: payload})
}

func (h *Hub) enqueue(msg BroadcastMessage) {
	if len(msg.Targets) == 0 {
		return
	}
	select {
	case h.broadcast <- msg:
	case <-h.ctx.Done():
	}
}

func (h *Hub) roomTargets(code string) []*Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	members := h.rooms[code]
	targets := make([]*Client, 0, len(members))
	for id := range members {
		if client, ok := h.byID[id]; ok {
			targets = append(targets, client)
		}
	}
	return targets
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Audience returns the number of connections subscribed to a room.
func (h *Hub) Audience(code string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.rooms[code])
}

func (h *Hub) safeSend(client *Client, message []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered in safeSend")
		}
	}()

	// Hold the lock during the entire send so the channel cannot be closed under us.
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	_, exists := h.clients[client]
	if !exists || client.closed {
		return false
	}

	select {
	case client.send <- message:
		return true
	default:
		return false
	}
}

// Run starts the hub's main event loop, handling client registration, unregistration,
// and event delivery. It returns after Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				log.Warn().Msg("received nil client registration; skipping")
				continue
			}

			h.mutex.Lock()
			client.closed = false
			h.clients[client] = true
			h.byID[client.id] = client
			clientCount := len(h.clients)
			h.mutex.Unlock()
			log.Info().Str("addr", client.addr).Str("conn", string(client.id)).Int("clients", clientCount).Msg("client registered")

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				client.writePump()
			}()
			go func() {
				defer h.wg.Done()
				client.readPump()
			}()

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				h.dropLocked(client)
				clientCount := len(h.clients)
				h.mutex.Unlock()
				close(client.send)
				log.Info().Str("addr", client.addr).Str("conn", string(client.id)).Int("clients", clientCount).Msg("client unregistered")
			} else {
				h.mutex.Unlock()
			}

		case msg := <-h.broadcast:
			h.handleBroadcast(msg)
		}
	}
}

// dropLocked forgets a client and its room subscriptions. Caller holds the
// write lock and closes client.send afterwards.
func (h *Hub) dropLocked(client *Client) {
	delete(h.clients, client)
	if h.byID[client.id] == client {
		delete(h.byID, client.id)
	}
	for code := range h.rooms {
		h.unsubscribeLocked(code, client.id)
	}
	client.closed = true
}

func (h *Hub) handleBroadcast(msg BroadcastMessage) {
	log.Debug().Str("room", msg.Room).Int("targets", len(msg.Targets)).Msg("delivering event")

	var failed []*Client
	for _, client := range msg.Targets {
		if !h.safeSend(client, msg.Payload) {
			failed = append(failed, client)
		}
	}
	h.removeFailedClients(failed)
}

// removeFailedClients drops clients whose send buffer is full and closes
// their channels; their write pumps then close the connection.
func (h *Hub) removeFailedClients(clientsToRemove []*Client) {
	if len(clientsToRemove) == 0 {
		return
	}

	h.mutex.Lock()
	var channelsToClose []chan []byte
	for _, client := range clientsToRemove {
		if _, exists := h.clients[client]; exists {
			h.dropLocked(client)
			channelsToClose = append(channelsToClose, client.send)
			log.Warn().Str("addr", client.addr).Str("conn", string(client.id)).Msg("client removed due to full send buffer")
		}
	}
	h.mutex.Unlock()

	for _, ch := range channelsToClose {
		close(ch)
	}
}

// shutdownClients closes every active client connection.
func (h *Hub) shutdownClients() {
	log.Info().Msg("shutting down all client connections")

	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	for _, client := range clients {
		h.dropLocked(client)
	}
	h.mutex.Unlock()

	for _, client := range clients {
		client.closeConnection()
		close(client.send)
	}

	log.Info().Int("clients", len(clients)).Msg("closed client connections")
}

// Shutdown initiates graceful shutdown of the hub and waits for all goroutines to complete.
// It returns after all client connections are closed and goroutines have finished,
// or when the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	log.Info().Msg("initiating hub shutdown")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		log.Warn().Msg("hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
