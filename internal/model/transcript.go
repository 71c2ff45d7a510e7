package model

import "time"

type TranscriptKind string

const (
	TranscriptKindMessage TranscriptKind = "message"
	TranscriptKindSystem  TranscriptKind = "system"
)

// System event texts recorded in the transcript.
const (
	SystemUserJoined  = "user-joined"
	SystemUserLeft    = "user-left"
	SystemMuted       = "muted"
	SystemUnmuted     = "unmuted"
	SystemRemoved     = "removed"
	SystemChatCleared = "chat-cleared"
	SystemClassEnded  = "class-ended"
)

// TranscriptEntry is one immutable line of a session's durable event log.
// Sender identity is snapshotted at write time and never re-resolved.
type TranscriptEntry struct {
	ID         string         `db:"id" json:"id"`
	TenantID   string         `db:"tenant_id" json:"tenantId"`
	SessionID  string         `db:"session_id" json:"sessionId"`
	Kind       TranscriptKind `db:"kind" json:"kind"`
	Text       string         `db:"text" json:"text"`
	SenderID   string         `db:"sender_id" json:"senderId"`
	SenderName string         `db:"sender_name" json:"senderName"`
	SenderRole Role           `db:"sender_role" json:"senderRole"`
	TS         time.Time      `db:"ts" json:"ts"`
}

type AppendTranscriptParams struct {
	ID         string
	TenantID   string
	SessionID  string
	Kind       TranscriptKind
	Text       string
	SenderID   string
	SenderName string
	SenderRole Role
	TS         time.Time
}
