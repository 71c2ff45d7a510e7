package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/classbeam/liveclass-server-go/internal/broadcast"
	"github.com/classbeam/liveclass-server-go/internal/database"
	"github.com/classbeam/liveclass-server-go/internal/model"
	"github.com/classbeam/liveclass-server-go/internal/repository"
)

// In-memory repository fakes driving full dispatch scenarios without a
// database.

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*model.Session)}
}

func (f *fakeSessionRepo) put(s *model.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[s.ID] = s
}

func (f *fakeSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[id]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeSessionRepo) FindBySlotID(ctx context.Context, slotID string) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.SlotID == slotID {
			copied := *s
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeSessionRepo) FindActiveWithBroadcast(ctx context.Context) ([]model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Session
	for _, s := range f.sessions {
		if !s.Status.IsTerminal() && s.HasBroadcast() {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeSessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error) {
	s := &model.Session{
		ID:       "sess-" + params.SlotID,
		TenantID: params.TenantID,
		SlotID:   params.SlotID,
		Status:   model.SessionStatusScheduled,
	}
	f.put(s)
	return s, nil
}

func (f *fakeSessionRepo) SaveBroadcastHandle(ctx context.Context, id string, params model.BroadcastHandleParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.sessions[id]
	s.StreamID = &params.StreamID
	s.BroadcastID = &params.BroadcastID
	s.StreamKey = params.StreamKey
	s.IngestionAddress = params.IngestionAddress
	s.WatchURL = &params.WatchURL
	return nil
}

func (f *fakeSessionRepo) MarkLive(ctx context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[id]; ok && s.Status == model.SessionStatusScheduled {
		s.Status = model.SessionStatusLive
		s.ActualStartAt = &at
	}
	return nil
}

func (f *fakeSessionRepo) MarkCompleted(ctx context.Context, id string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok || s.Status.IsTerminal() {
		return false, nil
	}
	s.Status = model.SessionStatusCompleted
	s.ActualEndAt = &at
	return true, nil
}

func (f *fakeSessionRepo) MarkCancelledBySlotIDs(ctx context.Context, slotIDs []string, tenantID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, s := range f.sessions {
		if tenantID != "" && s.TenantID != tenantID {
			continue
		}
		for _, slotID := range slotIDs {
			if s.SlotID == slotID && !s.Status.IsTerminal() {
				s.Status = model.SessionStatusCancelled
				ids = append(ids, s.ID)
			}
		}
	}
	return ids, nil
}

func (f *fakeSessionRepo) WithTx(tx *sqlx.Tx) repository.SessionRepository { return f }

type nopTxRunner struct{}

func (nopTxRunner) WithTx(ctx context.Context, fn database.TxFunc) error { return fn(nil) }

type fakeStateRepo struct {
	mu     sync.Mutex
	states map[string]*model.SessionState
}

func newFakeStateRepo() *fakeStateRepo {
	return &fakeStateRepo{states: make(map[string]*model.SessionState)}
}

func (f *fakeStateRepo) FindBySessionID(ctx context.Context, sessionID string) (*model.SessionState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.states[sessionID]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeStateRepo) UpsertEnded(ctx context.Context, sessionID, tenantID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.states[sessionID]; ok {
		existing.ReadOnly = true
		return nil
	}
	f.states[sessionID] = &model.SessionState{
		SessionID: sessionID,
		TenantID:  tenantID,
		ReadOnly:  true,
		EndedAt:   &at,
	}
	return nil
}

type fakeSlotRepo struct {
	mu    sync.Mutex
	slots map[string]*model.Slot
}

func newFakeSlotRepo() *fakeSlotRepo {
	return &fakeSlotRepo{slots: make(map[string]*model.Slot)}
}

func (f *fakeSlotRepo) FindByID(ctx context.Context, id string) (*model.Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.slots[id]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeSlotRepo) LinkSession(ctx context.Context, slotID, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.slots[slotID]; ok {
		s.SessionID = &sessionID
	}
	return nil
}

func (f *fakeSlotRepo) MarkCancelled(ctx context.Context, slotIDs []string, tenantID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, id := range slotIDs {
		if s, ok := f.slots[id]; ok && (tenantID == "" || s.TenantID == tenantID) {
			s.Status = model.SlotStatusCancelled
			n++
		}
	}
	return n, nil
}

func (f *fakeSlotRepo) WithTx(tx *sqlx.Tx) repository.SlotRepository { return f }

type fakeTranscriptRepo struct {
	mu       sync.Mutex
	entries  []model.TranscriptEntry
	appends  int
	writeErr error
}

func (f *fakeTranscriptRepo) failWrites(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeErr = err
}

func (f *fakeTranscriptRepo) appendAttempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.appends
}

func (f *fakeTranscriptRepo) Append(ctx context.Context, params model.AppendTranscriptParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appends++
	if f.writeErr != nil {
		return f.writeErr
	}
	f.entries = append(f.entries, model.TranscriptEntry{
		ID:         params.ID,
		TenantID:   params.TenantID,
		SessionID:  params.SessionID,
		Kind:       params.Kind,
		Text:       params.Text,
		SenderID:   params.SenderID,
		SenderName: params.SenderName,
		SenderRole: params.SenderRole,
		TS:         params.TS,
	})
	return nil
}

func (f *fakeTranscriptRepo) FindRecentBySessionID(ctx context.Context, tenantID, sessionID string, limit int) ([]model.TranscriptEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []model.TranscriptEntry
	for i := len(f.entries) - 1; i >= 0 && len(matched) < limit; i-- {
		e := f.entries[i]
		if e.TenantID == tenantID && e.SessionID == sessionID {
			matched = append(matched, e)
		}
	}
	return matched, nil
}

func (f *fakeTranscriptRepo) CountBySessionID(ctx context.Context, sessionID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.entries {
		if e.SessionID == sessionID {
			n++
		}
	}
	return n, nil
}

func (f *fakeTranscriptRepo) count(sessionID string) int {
	n, _ := f.CountBySessionID(context.Background(), sessionID)
	return n
}

func (f *fakeTranscriptRepo) lastText(sessionID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.entries) - 1; i >= 0; i-- {
		if f.entries[i].SessionID == sessionID {
			return f.entries[i].Text
		}
	}
	return ""
}

type fakeRecordingRepo struct {
	mu         sync.Mutex
	recordings []model.Recording
}

func (f *fakeRecordingRepo) Append(ctx context.Context, sessionID, videoID, title, url string, publishedAt time.Time) (*model.Recording, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := model.Recording{ID: videoID, SessionID: sessionID, VideoID: videoID, Title: title, URL: url, PublishedAt: publishedAt}
	f.recordings = append(f.recordings, rec)
	return &rec, nil
}

func (f *fakeRecordingRepo) FindBySessionID(ctx context.Context, sessionID string) ([]model.Recording, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Recording
	for _, r := range f.recordings {
		if r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeNoteRepo struct {
	mu    sync.Mutex
	notes []model.Note
}

func (f *fakeNoteRepo) InsertMany(ctx context.Context, notes []model.Note) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = append(f.notes, notes...)
	return nil
}

type fakeBridge struct {
	mu       sync.Mutex
	ended    []string
	privated []string
	endErr   error
}

func (f *fakeBridge) CreateStream(ctx context.Context, title string) (*broadcast.Stream, error) {
	return &broadcast.Stream{ID: "stream-1", StreamKey: "key-1", IngestionAddress: "rtmp://in"}, nil
}

func (f *fakeBridge) CreateBroadcast(ctx context.Context, title string, scheduledStart time.Time) (*broadcast.Broadcast, error) {
	return &broadcast.Broadcast{ID: "bc-1", WatchURL: broadcast.WatchURL("bc-1"), Privacy: "unlisted"}, nil
}

func (f *fakeBridge) Bind(ctx context.Context, streamID, broadcastID string) error { return nil }

func (f *fakeBridge) Status(ctx context.Context, broadcastID string) (*broadcast.Status, error) {
	return &broadcast.Status{Lifecycle: broadcast.LifecycleLive}, nil
}

func (f *fakeBridge) End(ctx context.Context, broadcastID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.endErr != nil {
		return f.endErr
	}
	f.ended = append(f.ended, broadcastID)
	return nil
}

func (f *fakeBridge) SetPrivacy(ctx context.Context, broadcastID, privacy string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.privated = append(f.privated, broadcastID+":"+privacy)
	return nil
}
