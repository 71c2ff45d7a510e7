package gateway

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/classbeam/liveclass-server-go/internal/access"
	"github.com/classbeam/liveclass-server-go/internal/audit"
	"github.com/classbeam/liveclass-server-go/internal/auth"
	apperrors "github.com/classbeam/liveclass-server-go/internal/errors"
	"github.com/classbeam/liveclass-server-go/internal/model"
	"github.com/classbeam/liveclass-server-go/internal/repository"
	"github.com/classbeam/liveclass-server-go/internal/room"
	"github.com/classbeam/liveclass-server-go/internal/service"
)

// Gateway dispatches room actions arriving over websockets. Authorization
// runs per action; room membership and mute state are process-local while
// transcripts and lifecycle transitions are durable.
type Gateway struct {
	liveclass   *service.LiveClassService
	transcripts *service.TranscriptService
	gate        *access.Gate
	registry    room.Registry
	stateRepo   repository.SessionStateRepository
	noteRepo    repository.NoteRepository
	hub         *Hub
}

func NewGateway(
	liveclass *service.LiveClassService,
	transcripts *service.TranscriptService,
	gate *access.Gate,
	registry room.Registry,
	stateRepo repository.SessionStateRepository,
	noteRepo repository.NoteRepository,
	hub *Hub,
) *Gateway {
	return &Gateway{
		liveclass:   liveclass,
		transcripts: transcripts,
		gate:        gate,
		registry:    registry,
		stateRepo:   stateRepo,
		noteRepo:    noteRepo,
		hub:         hub,
	}
}

func (g *Gateway) Hub() *Hub {
	return g.hub
}

func (g *Gateway) dispatch(ctx context.Context, c *Client, frame Frame) Ack {
	switch frame.Action {
	case ActionJoinRoom:
		return g.handleJoin(ctx, c, frame)
	case ActionLeaveRoom:
		return g.handleLeave(ctx, c, frame)
	case ActionSendMessage:
		return g.handleSend(ctx, c, frame)
	case ActionMuteUser:
		return g.handleMute(ctx, c, frame)
	case ActionUnmuteUser:
		return g.handleUnmute(ctx, c, frame)
	case ActionRemoveUser:
		return g.handleRemove(ctx, c, frame)
	case ActionClearChat:
		return g.handleClear(ctx, c, frame)
	case ActionEndClass:
		return g.handleEnd(ctx, c, frame)
	default:
		return errAck(frame.ID, apperrors.InvalidInput("action", "unknown action"))
	}
}

// openSession loads the session and rejects actions against a closed room.
// The persisted read-only marker is authoritative; it survives restarts
// and is set before the in-memory room is torn down.
func (g *Gateway) openSession(ctx context.Context, actor auth.Identity, sessionID string) (*model.Session, error) {
	session, err := g.liveclass.Get(ctx, actor, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status.IsTerminal() {
		return nil, apperrors.ClassEnded()
	}
	state, err := g.stateRepo.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if state.Closed() {
		return nil, apperrors.ClassEnded()
	}
	return session, nil
}

func (g *Gateway) handleJoin(ctx context.Context, c *Client, frame Frame) Ack {
	var p JoinPayload
	if err := json.Unmarshal(frame.Data, &p); err != nil || p.SessionID == "" {
		return errAck(frame.ID, apperrors.MissingRequired("sessionId"))
	}

	session, err := g.openSession(ctx, c.identity, p.SessionID)
	if err != nil {
		return errAck(frame.ID, err)
	}

	grant, err := g.gate.Authorize(ctx, c.identity, session, p.BatchID)
	if err != nil {
		return errAck(frame.ID, err)
	}

	g.promoteIfTeacher(ctx, c.identity, session, grant)

	// A connection holds one room at a time; switching rooms departs the
	// old one with full bookkeeping first.
	if c.session != nil && c.session.ID != session.ID {
		g.leaveRoom(ctx, c)
	}

	c.session = session
	c.grant = grant
	g.hub.Join(session.ID, c)

	if _, err := g.transcripts.RecordSystem(ctx, session, c.identity, model.SystemUserJoined); err != nil {
		log.Error().Err(err).Str("sessionId", session.ID).Msg("failed to record join")
	}
	g.hub.Broadcast(session.ID, Event{Event: EventUserJoined, Data: participantOf(c.identity)})

	history, err := g.transcripts.History(ctx, session.TenantID, session.ID, p.HistoryLimit)
	if err != nil {
		log.Error().Err(err).Str("sessionId", session.ID).Msg("failed to load history")
		history = nil
	}

	return okAck(frame.ID, JoinResult{
		Session: session,
		History: history,
		Muted:   g.registry.MutedUsers(session.ID),
	})
}

func (g *Gateway) handleLeave(ctx context.Context, c *Client, frame Frame) Ack {
	g.leaveRoom(ctx, c)
	return okAck(frame.ID, nil)
}

// leaveRoom departs the client's current room with user-left bookkeeping.
// A client a moderator already evicted is out of the hub and departs
// silently.
func (g *Gateway) leaveRoom(ctx context.Context, c *Client) {
	if c.session == nil {
		return
	}
	session := c.session
	c.session = nil
	c.grant = nil

	if !g.hub.Leave(session.ID, c) {
		return
	}
	if _, err := g.transcripts.RecordSystem(ctx, session, c.identity, model.SystemUserLeft); err != nil {
		log.Error().Err(err).Str("sessionId", session.ID).Msg("failed to record leave")
	}
	g.hub.Broadcast(session.ID, Event{Event: EventUserLeft, Data: participantOf(c.identity)})
}

func (g *Gateway) handleSend(ctx context.Context, c *Client, frame Frame) Ack {
	var p SendMessagePayload
	if err := json.Unmarshal(frame.Data, &p); err != nil {
		return errAck(frame.ID, apperrors.InvalidInput("data", "malformed payload"))
	}
	if c.session == nil || c.session.ID != p.SessionID {
		return errAck(frame.ID, apperrors.Forbidden("Join the room before sending"))
	}
	if !g.hub.InRoom(p.SessionID, c) {
		// Evicted by a moderator since the join; drop the stale membership.
		c.session = nil
		c.grant = nil
		return errAck(frame.ID, apperrors.Forbidden("Join the room before sending"))
	}

	// Re-check the marker: the class may have ended since this client joined.
	state, err := g.stateRepo.FindBySessionID(ctx, p.SessionID)
	if err != nil {
		return errAck(frame.ID, apperrors.Database(err))
	}
	if state.Closed() {
		return errAck(frame.ID, apperrors.ClassEnded())
	}
	if !c.grant.CanSend {
		return errAck(frame.ID, apperrors.Forbidden("Role cannot post messages"))
	}
	if g.registry.IsMuted(p.SessionID, c.identity.UserID) {
		return errAck(frame.ID, apperrors.Muted())
	}

	g.promoteIfTeacher(ctx, c.identity, c.session, c.grant)

	entry, err := g.transcripts.ComposeMessage(c.session, c.identity, p.Text)
	if err != nil {
		return errAck(frame.ID, err)
	}
	// Fan-out never waits on the store; persistence failures are logged
	// and never surfaced to the room.
	g.hub.Broadcast(p.SessionID, Event{Event: EventMessage, Data: entry})
	go g.transcripts.Persist(context.Background(), entry)
	return okAck(frame.ID, entry)
}

func (g *Gateway) handleMute(ctx context.Context, c *Client, frame Frame) Ack {
	return g.moderate(ctx, c, frame, model.SystemMuted, EventUserMuted, audit.EventUserMute, func(p ModeratePayload) {
		g.registry.Mute(p.SessionID, p.UserID)
	})
}

func (g *Gateway) handleUnmute(ctx context.Context, c *Client, frame Frame) Ack {
	return g.moderate(ctx, c, frame, model.SystemUnmuted, EventUserUnmuted, audit.EventUserUnmute, func(p ModeratePayload) {
		g.registry.Unmute(p.SessionID, p.UserID)
	})
}

func (g *Gateway) handleRemove(ctx context.Context, c *Client, frame Frame) Ack {
	ack := g.moderate(ctx, c, frame, model.SystemRemoved, EventUserRemoved, audit.EventUserRemove, nil)
	if !ack.Ok {
		return ack
	}
	var p ModeratePayload
	json.Unmarshal(frame.Data, &p)
	g.hub.EvictUser(p.SessionID, p.UserID)
	return ack
}

// moderate runs the shared moderation pipeline: authorize, apply the
// registry mutation, record the system entry and broadcast the event.
func (g *Gateway) moderate(ctx context.Context, c *Client, frame Frame, systemText, event string, auditType audit.EventType, apply func(ModeratePayload)) Ack {
	var p ModeratePayload
	if err := json.Unmarshal(frame.Data, &p); err != nil || p.SessionID == "" || p.UserID == "" {
		return errAck(frame.ID, apperrors.MissingRequired("sessionId and userId"))
	}

	session, err := g.openSession(ctx, c.identity, p.SessionID)
	if err != nil {
		return errAck(frame.ID, err)
	}
	if _, err := g.gate.AuthorizeModeration(ctx, c.identity, session); err != nil {
		return errAck(frame.ID, err)
	}

	if apply != nil {
		apply(p)
	}

	subject := g.subjectIdentity(p.SessionID, p.UserID)
	if _, err := g.transcripts.RecordSystem(ctx, session, subject, systemText); err != nil {
		log.Error().Err(err).Str("sessionId", session.ID).Str("action", systemText).Msg("failed to record moderation")
	}
	g.hub.Broadcast(p.SessionID, Event{Event: event, Data: ModerationEvent{
		UserID: p.UserID,
		By:     participantOf(c.identity),
	}})
	audit.Log(ctx, audit.Event{
		Type:      auditType,
		UserID:    c.identity.UserID,
		SessionID: p.SessionID,
		TenantID:  session.TenantID,
		Details:   map[string]interface{}{"targetUserId": p.UserID},
	})
	return okAck(frame.ID, nil)
}

func (g *Gateway) handleClear(ctx context.Context, c *Client, frame Frame) Ack {
	var p ClearChatPayload
	if err := json.Unmarshal(frame.Data, &p); err != nil || p.SessionID == "" {
		return errAck(frame.ID, apperrors.MissingRequired("sessionId"))
	}

	session, err := g.openSession(ctx, c.identity, p.SessionID)
	if err != nil {
		return errAck(frame.ID, err)
	}
	if _, err := g.gate.AuthorizeModeration(ctx, c.identity, session); err != nil {
		return errAck(frame.ID, err)
	}

	if _, err := g.transcripts.RecordSystem(ctx, session, c.identity, model.SystemChatCleared); err != nil {
		log.Error().Err(err).Str("sessionId", session.ID).Msg("failed to record clear")
	}
	g.hub.Broadcast(p.SessionID, Event{Event: EventChatCleared, Data: ModerationEvent{
		By: participantOf(c.identity),
	}})
	audit.Log(ctx, audit.Event{
		Type:      audit.EventChatClear,
		UserID:    c.identity.UserID,
		SessionID: p.SessionID,
		TenantID:  session.TenantID,
	})
	return okAck(frame.ID, nil)
}

func (g *Gateway) handleEnd(ctx context.Context, c *Client, frame Frame) Ack {
	var p EndClassPayload
	if err := json.Unmarshal(frame.Data, &p); err != nil || p.SessionID == "" {
		return errAck(frame.ID, apperrors.MissingRequired("sessionId"))
	}

	session, err := g.liveclass.Get(ctx, c.identity, p.SessionID)
	if err != nil {
		return errAck(frame.ID, err)
	}
	grant, err := g.gate.AuthorizeEnd(ctx, c.identity, session)
	if err != nil {
		return errAck(frame.ID, err)
	}

	ended, err := g.liveclass.End(ctx, session)
	if err != nil {
		return errAck(frame.ID, err)
	}

	g.publishNotes(ctx, c.identity, grant, p)
	g.CloseClass(ctx, ended, c.identity)
	audit.Log(ctx, audit.Event{
		Type:      audit.EventClassEnd,
		UserID:    c.identity.UserID,
		SessionID: ended.ID,
		TenantID:  ended.TenantID,
	})

	return okAck(frame.ID, ended)
}

// CloseClass broadcasts the end of a class and tears down its in-memory
// room state. The durable transition must already have happened.
func (g *Gateway) CloseClass(ctx context.Context, session *model.Session, by auth.Identity) {
	if _, err := g.transcripts.RecordSystem(ctx, session, by, model.SystemClassEnded); err != nil {
		log.Error().Err(err).Str("sessionId", session.ID).Msg("failed to record end")
	}
	g.hub.Broadcast(session.ID, Event{Event: EventClassEnded, Data: participantOf(by)})

	g.registry.Clear(session.ID)
	g.hub.CloseRoom(session.ID)
}

// publishNotes inserts the study materials attached to end-class. Invalid
// attachments are skipped; the class is already over and a bad note must
// not undo that.
func (g *Gateway) publishNotes(ctx context.Context, actor auth.Identity, grant *access.Grant, p EndClassPayload) {
	if len(p.Notes) == 0 {
		return
	}
	notes := make([]model.Note, 0, len(p.Notes))
	for _, n := range p.Notes {
		if n.Title == "" || n.FileURL == "" || !model.ValidNoteFileKind(n.FileKind) {
			log.Warn().Str("title", n.Title).Msg("skipping invalid note attachment")
			continue
		}
		sessionID := p.SessionID
		notes = append(notes, model.Note{
			ID:           newNoteID(),
			TenantID:     grant.Slot.TenantID,
			SubjectLabel: grant.Slot.Subject,
			BatchID:      grant.Slot.BatchID,
			TeacherID:    actor.UserID,
			SessionID:    &sessionID,
			Title:        n.Title,
			FileURL:      n.FileURL,
			FileKind:     n.FileKind,
		})
	}
	if len(notes) == 0 {
		return
	}
	if err := g.noteRepo.InsertMany(ctx, notes); err != nil {
		log.Error().Err(err).Str("sessionId", p.SessionID).Msg("failed to publish notes")
	}
}

// promoteIfTeacher flips a Scheduled session to Live when the assigned
// teacher shows activity in the room.
func (g *Gateway) promoteIfTeacher(ctx context.Context, actor auth.Identity, session *model.Session, grant *access.Grant) {
	if actor.Role != model.RoleTeacher || session.Status != model.SessionStatusScheduled {
		return
	}
	if grant.Slot == nil || grant.Slot.TeacherID != actor.UserID {
		return
	}
	if err := g.liveclass.MarkLive(ctx, session.ID); err != nil {
		log.Error().Err(err).Str("sessionId", session.ID).Msg("failed to mark session live")
		return
	}
	session.Status = model.SessionStatusLive
}

// subjectIdentity resolves the identity a moderation entry is recorded
// against. A connected target yields full identity; otherwise only the id.
func (g *Gateway) subjectIdentity(sessionID, userID string) auth.Identity {
	for _, part := range g.hub.Participants(sessionID) {
		if part.UserID == userID {
			return auth.Identity{UserID: part.UserID, Name: part.Name, Role: part.Role}
		}
	}
	return auth.Identity{UserID: userID}
}

func newNoteID() string {
	return uuid.NewString()
}

func participantOf(id auth.Identity) Participant {
	return Participant{UserID: id.UserID, Name: id.Name, Role: id.Role}
}

// ModerationEvent is the payload for mute/unmute/remove/clear pushes.
type ModerationEvent struct {
	UserID string      `json:"userId,omitempty"`
	By     Participant `json:"by"`
}
