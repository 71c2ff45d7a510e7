package gateway

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/classbeam/liveclass-server-go/internal/access"
	"github.com/classbeam/liveclass-server-go/internal/auth"
	"github.com/classbeam/liveclass-server-go/internal/config"
	"github.com/classbeam/liveclass-server-go/internal/model"
)

// wsConn is the subset of *websocket.Conn the gateway uses, extracted so
// tests can drive the dispatch loop without real sockets.
type wsConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	Close() error
}

// Client is one websocket participant. All writes to the socket go through
// the send channel and a single writer goroutine; slow consumers are
// disconnected rather than allowed to block the room.
type Client struct {
	conn     wsConn
	send     chan []byte
	done     chan struct{}
	identity auth.Identity

	// Mutated only by the client's own read loop.
	session *model.Session
	grant   *access.Grant

	// Set before a server-initiated disconnect so the read loop's teardown
	// does not record a duplicate departure.
	suppressLeave atomic.Bool

	closeOnce sync.Once
}

func newClient(conn wsConn, identity auth.Identity) *Client {
	return &Client{
		conn:     conn,
		send:     make(chan []byte, config.WSSendBufferSize),
		done:     make(chan struct{}),
		identity: identity,
	}
}

// enqueue hands a frame to the writer goroutine. It reports false when the
// client is shut down or has stopped reading; the send channel is never
// closed, so a concurrent broadcast cannot panic on a departed client.
func (c *Client) enqueue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	case <-c.done:
		return false
	default:
		log.Warn().Str("userId", c.identity.UserID).Msg("client send buffer full, dropping connection")
		return false
	}
}

// shutdown signals the writer goroutine to close the socket. Safe to call
// from any goroutine, any number of times.
func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

func (c *Client) isShutdown() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// writePump is the connection's single writer. It drains the send channel
// and keeps the connection alive with pings until shutdown.
func (c *Client) writePump() {
	ticker := time.NewTicker(config.WSPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(config.WSWriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(config.WSWriteTimeout))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(config.WSWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Hub tracks which clients are in which room. It is process-local, like
// the mute registry; both hold only ephemeral state. Membership mutations
// go through the hub so a client can never be broadcast to after removal.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]bool
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Client]bool)}
}

func (h *Hub) Join(sessionID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[sessionID] == nil {
		h.rooms[sessionID] = make(map[*Client]bool)
	}
	h.rooms[sessionID][c] = true
}

// Leave removes the client from a room and reports whether it was present.
func (h *Hub) Leave(sessionID string, c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.rooms[sessionID]
	if !ok || !clients[c] {
		return false
	}
	delete(clients, c)
	if len(clients) == 0 {
		delete(h.rooms, sessionID)
	}
	return true
}

// InRoom reports current room membership. Eviction happens on the hub, so
// this is the authority, not the client's own session pointer.
func (h *Hub) InRoom(sessionID string, c *Client) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[sessionID][c]
}

// remove drops the client from every room it is still in.
func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sessionID, clients := range h.rooms {
		if clients[c] {
			delete(clients, c)
			if len(clients) == 0 {
				delete(h.rooms, sessionID)
			}
		}
	}
}

// Broadcast pushes an event to every participant of a room. Clients whose
// buffers are full get removed and disconnected after the fan-out; removal
// happens under the hub lock so later broadcasts no longer see them.
func (h *Hub) Broadcast(sessionID string, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("event", event.Event).Msg("failed to encode event")
		return
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.rooms[sessionID]))
	for c := range h.rooms[sessionID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	var stalled []*Client
	for _, c := range clients {
		if !c.enqueue(data) {
			stalled = append(stalled, c)
		}
	}
	for _, c := range stalled {
		h.remove(c)
		c.suppressLeave.Store(true)
		c.shutdown()
	}
}

// EvictUser forces every connection a user holds out of the room. The
// underlying connections stay open; the user can rejoin other rooms. The
// caller broadcasts the removal event first.
func (h *Hub) EvictUser(sessionID, userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for c := range h.rooms[sessionID] {
		if c.identity.UserID == userID {
			delete(h.rooms[sessionID], c)
			n++
		}
	}
	if len(h.rooms[sessionID]) == 0 {
		delete(h.rooms, sessionID)
	}
	return n
}

// CloseRoom disconnects every participant and drops the room.
func (h *Hub) CloseRoom(sessionID string) {
	h.mu.Lock()
	clients := h.rooms[sessionID]
	delete(h.rooms, sessionID)
	h.mu.Unlock()

	for c := range clients {
		c.suppressLeave.Store(true)
		c.shutdown()
	}
}

// Participants returns a snapshot of who is in the room.
func (h *Hub) Participants(sessionID string) []Participant {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Participant, 0, len(h.rooms[sessionID]))
	for c := range h.rooms[sessionID] {
		out = append(out, Participant{
			UserID: c.identity.UserID,
			Name:   c.identity.Name,
			Role:   c.identity.Role,
		})
	}
	return out
}
