package model

import (
	"time"

	"github.com/lib/pq"
)

type SessionStatus string

const (
	SessionStatusScheduled SessionStatus = "Scheduled"
	SessionStatusLive      SessionStatus = "Live"
	SessionStatusCompleted SessionStatus = "Completed"
	SessionStatusCancelled SessionStatus = "Cancelled"
)

// IsTerminal reports whether the session can no longer accept joins or sends.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusCancelled
}

// Session is a live-class instance bound 1:1 to a timetable slot.
// Ingestion credentials are persisted but never serialized to clients.
type Session struct {
	ID       string        `db:"id" json:"id"`
	TenantID string        `db:"tenant_id" json:"tenantId"`
	SlotID   string        `db:"slot_id" json:"slotId"`
	Status   SessionStatus `db:"status" json:"status"`

	// Broadcast handle (provider-side identifiers)
	StreamID               *string    `db:"stream_id" json:"streamId,omitempty"`
	BroadcastID            *string    `db:"broadcast_id" json:"broadcastId,omitempty"`
	StreamKey              *string    `db:"stream_key" json:"-"`
	IngestionAddress       *string    `db:"ingestion_address" json:"-"`
	BackupIngestionAddress *string    `db:"backup_ingestion_address" json:"-"`
	WatchURL               *string    `db:"watch_url" json:"watchUrl,omitempty"`
	Privacy                *string    `db:"privacy" json:"privacy,omitempty"`
	ScheduledStartAt       *time.Time `db:"scheduled_start_at" json:"scheduledStartAt,omitempty"`
	ActualStartAt          *time.Time `db:"actual_start_at" json:"actualStartAt,omitempty"`
	ActualEndAt            *time.Time `db:"actual_end_at" json:"actualEndAt,omitempty"`

	// Moderation configuration consumed by the gateway
	ChatEnabled     bool           `db:"chat_enabled" json:"chatEnabled"`
	SlowModeSeconds int            `db:"slow_mode_seconds" json:"slowModeSeconds"`
	BlockLinks      bool           `db:"block_links" json:"blockLinks"`
	BlockedWords    pq.StringArray `db:"blocked_words" json:"blockedWords"`
	SubscriberOnly  bool           `db:"subscriber_only" json:"subscriberOnly"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// HasBroadcast reports whether provider assets were created for this session.
func (s *Session) HasBroadcast() bool {
	return s.BroadcastID != nil && *s.BroadcastID != ""
}

type CreateSessionParams struct {
	TenantID string
	SlotID   string
}

type BroadcastHandleParams struct {
	StreamID               string
	BroadcastID            string
	StreamKey              *string
	IngestionAddress       *string
	BackupIngestionAddress *string
	WatchURL               string
	Privacy                string
	ScheduledStartAt       time.Time
}

// Recording is a provider video reference appended when a session ends.
type Recording struct {
	ID          string    `db:"id" json:"id"`
	SessionID   string    `db:"session_id" json:"sessionId"`
	VideoID     string    `db:"video_id" json:"videoId"`
	Title       string    `db:"title" json:"title"`
	URL         string    `db:"url" json:"url"`
	PublishedAt time.Time `db:"published_at" json:"publishedAt"`
}
