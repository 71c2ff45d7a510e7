package broadcast

import (
	"context"
	"time"
)

// Lifecycle stages reported by the provider for a broadcast.
const (
	LifecycleCreated  = "created"
	LifecycleReady    = "ready"
	LifecycleTesting  = "testing"
	LifecycleLive     = "live"
	LifecycleComplete = "complete"
)

// Stream is a provider ingest endpoint. StreamKey and the ingestion
// addresses are credentials and must never reach non-privileged callers.
type Stream struct {
	ID                     string
	StreamKey              string
	IngestionAddress       string
	BackupIngestionAddress string
}

// Broadcast is a provider-side viewing surface bound to a stream.
type Broadcast struct {
	ID               string
	WatchURL         string
	Privacy          string
	ScheduledStartAt time.Time
}

// Status is a point-in-time snapshot of a broadcast's provider state.
type Status struct {
	Lifecycle    string
	StreamHealth string
}

// Bridge adapts the external live-video provider. All calls are remote and
// can fail independently; callers on non-critical paths wrap them with
// BestEffort.
type Bridge interface {
	CreateStream(ctx context.Context, title string) (*Stream, error)
	CreateBroadcast(ctx context.Context, title string, scheduledStart time.Time) (*Broadcast, error)
	Bind(ctx context.Context, streamID, broadcastID string) error
	Status(ctx context.Context, broadcastID string) (*Status, error)
	End(ctx context.Context, broadcastID string) error
	SetPrivacy(ctx context.Context, broadcastID, privacy string) error
}
