package gateway

import (
	"encoding/json"

	apperrors "github.com/classbeam/liveclass-server-go/internal/errors"
	"github.com/classbeam/liveclass-server-go/internal/model"
)

// Client-initiated actions.
const (
	ActionJoinRoom    = "join-room"
	ActionLeaveRoom   = "leave-room"
	ActionSendMessage = "send-message"
	ActionMuteUser    = "mute-user"
	ActionUnmuteUser  = "unmute-user"
	ActionRemoveUser  = "remove-user"
	ActionClearChat   = "clear-chat"
	ActionEndClass    = "end-class"
)

// Server-pushed events.
const (
	EventMessage     = "message"
	EventUserJoined  = "user-joined"
	EventUserLeft    = "user-left"
	EventUserMuted   = "user-muted"
	EventUserUnmuted = "user-unmuted"
	EventUserRemoved = "user-removed"
	EventChatCleared = "chat-cleared"
	EventClassEnded  = "class-ended"
)

// Frame is one client request. ID correlates the ack; actions without an
// ID are fire-and-forget.
type Frame struct {
	ID     string          `json:"id,omitempty"`
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Ack is the per-frame response. Exactly one of Error or Data is set on
// failure/success respectively; Ok mirrors which.
type Ack struct {
	ID    string    `json:"id,omitempty"`
	Ok    bool      `json:"ok"`
	Error *AckError `json:"error,omitempty"`
	Data  any       `json:"data,omitempty"`
}

type AckError struct {
	Code    apperrors.ErrorCode `json:"code"`
	Message string              `json:"message"`
}

// Event is a server push to every participant of a room.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type JoinPayload struct {
	SessionID    string `json:"sessionId"`
	BatchID      string `json:"batchId,omitempty"`
	HistoryLimit int    `json:"historyLimit,omitempty"`
}

type JoinResult struct {
	Session *model.Session          `json:"session"`
	History []model.TranscriptEntry `json:"history"`
	Muted   []string                `json:"muted,omitempty"`
}

type LeavePayload struct {
	SessionID string `json:"sessionId"`
}

type SendMessagePayload struct {
	SessionID string `json:"sessionId"`
	Text      string `json:"text"`
}

type ModeratePayload struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
}

type ClearChatPayload struct {
	SessionID string `json:"sessionId"`
}

type EndClassPayload struct {
	SessionID string        `json:"sessionId"`
	Notes     []NotePayload `json:"notes,omitempty"`
}

// NotePayload is a study-material attachment published alongside end-class.
type NotePayload struct {
	Title    string             `json:"title"`
	FileURL  string             `json:"fileUrl"`
	FileKind model.NoteFileKind `json:"fileKind"`
}

// Participant identifies an actor in room events.
type Participant struct {
	UserID string     `json:"userId"`
	Name   string     `json:"name"`
	Role   model.Role `json:"role"`
}

func errAck(id string, err error) Ack {
	if appErr, ok := apperrors.AsAppError(err); ok {
		return Ack{ID: id, Ok: false, Error: &AckError{Code: appErr.Code, Message: appErr.Message}}
	}
	return Ack{ID: id, Ok: false, Error: &AckError{Code: apperrors.ErrCodeInternal, Message: "Internal error"}}
}

func okAck(id string, data any) Ack {
	return Ack{ID: id, Ok: true, Data: data}
}
