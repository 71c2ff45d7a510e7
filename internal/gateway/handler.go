package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/classbeam/liveclass-server-go/internal/auth"
	"github.com/classbeam/liveclass-server-go/internal/config"
	"github.com/classbeam/liveclass-server-go/internal/model"
	"github.com/classbeam/liveclass-server-go/internal/repository"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Browser clients authenticate with a bearer token, not cookies, so
	// cross-origin upgrades carry no ambient credentials.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades authenticated HTTP requests into gateway connections.
type Handler struct {
	gateway  *Gateway
	verifier *auth.Verifier
	userRepo repository.UserRepository
}

func NewHandler(gateway *Gateway, verifier *auth.Verifier, userRepo repository.UserRepository) *Handler {
	return &Handler{gateway: gateway, verifier: verifier, userRepo: userRepo}
}

// ServeWS is the websocket entrypoint. The token travels in the query
// string or the Authorization header; the identity is resolved before the
// upgrade so an invalid token costs no socket.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	identity, err := h.verifier.Verify(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	if err := h.hydrate(r.Context(), identity); err != nil {
		http.Error(w, "unknown user", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := newClient(conn, *identity)
	go client.writePump()
	go h.readPump(client)

	log.Info().
		Str("userId", identity.UserID).
		Str("role", string(identity.Role)).
		Msg("gateway connection opened")
}

// hydrate fills identity fields older tokens omit from storage.
func (h *Handler) hydrate(ctx context.Context, identity *auth.Identity) error {
	if identity.TenantID != "" && identity.Name != "" {
		return nil
	}
	user, err := h.userRepo.FindByID(ctx, identity.UserID)
	if err != nil {
		return err
	}
	if user == nil {
		return errUnknownUser
	}
	if identity.Name == "" {
		identity.Name = user.Name
	}
	if identity.Role == "" {
		identity.Role = user.Role
	}
	if identity.TenantID == "" && user.TenantID != nil {
		identity.TenantID = *user.TenantID
	}
	return nil
}

var errUnknownUser = &unknownUserError{}

type unknownUserError struct{}

func (e *unknownUserError) Error() string { return "unknown user" }

// readPump drives the client's dispatch loop. Frames run sequentially per
// connection; the writer goroutine keeps pings flowing while a handler
// blocks on storage.
func (h *Handler) readPump(c *Client) {
	defer h.teardown(c)

	c.conn.SetReadLimit(config.WSMaxMessageBytes)
	c.conn.SetReadDeadline(time.Now().Add(config.WSPongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(config.WSPongTimeout))
	})

	ctx := context.Background()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		ack := h.gateway.dispatch(ctx, c, frame)
		if frame.ID == "" {
			continue
		}
		encoded, err := json.Marshal(ack)
		if err != nil {
			log.Error().Err(err).Str("action", frame.Action).Msg("failed to encode ack")
			continue
		}
		c.enqueue(encoded)
	}
}

// teardown records an implicit departure when the socket drops while the
// client is still in a room. Server-initiated evictions already recorded
// the reason and suppress this.
func (h *Handler) teardown(c *Client) {
	c.shutdown()
	if c.session == nil || c.suppressLeave.Load() {
		return
	}
	session := c.session
	c.session = nil

	if !h.gateway.hub.Leave(session.ID, c) {
		return
	}
	ctx := context.Background()
	if _, err := h.gateway.transcripts.RecordSystem(ctx, session, c.identity, model.SystemUserLeft); err != nil {
		log.Error().Err(err).Str("sessionId", session.ID).Msg("failed to record disconnect")
	}
	h.gateway.hub.Broadcast(session.ID, Event{Event: EventUserLeft, Data: participantOf(c.identity)})

	log.Info().
		Str("userId", c.identity.UserID).
		Str("sessionId", session.ID).
		Msg("gateway connection closed")
}
