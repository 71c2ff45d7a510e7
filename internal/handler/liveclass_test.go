package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classbeam/liveclass-server-go/internal/access"
	"github.com/classbeam/liveclass-server-go/internal/auth"
	"github.com/classbeam/liveclass-server-go/internal/database"
	"github.com/classbeam/liveclass-server-go/internal/gateway"
	"github.com/classbeam/liveclass-server-go/internal/middleware"
	"github.com/classbeam/liveclass-server-go/internal/model"
	"github.com/classbeam/liveclass-server-go/internal/repository"
	"github.com/classbeam/liveclass-server-go/internal/room"
	"github.com/classbeam/liveclass-server-go/internal/service"
)

// Minimal in-memory stores backing the handler through the real services.

type memSessions struct {
	mu sync.Mutex
	m  map[string]*model.Session
}

func (f *memSessions) FindByID(ctx context.Context, id string) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.m[id]; ok {
		c := *s
		return &c, nil
	}
	return nil, nil
}

func (f *memSessions) FindBySlotID(ctx context.Context, slotID string) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.m {
		if s.SlotID == slotID {
			c := *s
			return &c, nil
		}
	}
	return nil, nil
}

func (f *memSessions) FindActiveWithBroadcast(ctx context.Context) ([]model.Session, error) {
	return nil, nil
}

func (f *memSessions) Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &model.Session{
		ID:       "sess-" + params.SlotID,
		TenantID: params.TenantID,
		SlotID:   params.SlotID,
		Status:   model.SessionStatusScheduled,
	}
	f.m[s.ID] = s
	return s, nil
}

func (f *memSessions) SaveBroadcastHandle(ctx context.Context, id string, params model.BroadcastHandleParams) error {
	return nil
}

func (f *memSessions) MarkLive(ctx context.Context, id string, at time.Time) error { return nil }

func (f *memSessions) MarkCompleted(ctx context.Context, id string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.m[id]
	if !ok || s.Status.IsTerminal() {
		return false, nil
	}
	s.Status = model.SessionStatusCompleted
	return true, nil
}

func (f *memSessions) MarkCancelledBySlotIDs(ctx context.Context, slotIDs []string, tenantID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, s := range f.m {
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

func (f *memSessions) WithTx(tx *sqlx.Tx) repository.SessionRepository { return f }

type memStates struct {
	mu sync.Mutex
	m  map[string]*model.SessionState
}

func (f *memStates) FindBySessionID(ctx context.Context, id string) (*model.SessionState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.m[id]; ok {
		c := *s
		return &c, nil
	}
	return nil, nil
}

func (f *memStates) UpsertEnded(ctx context.Context, sessionID, tenantID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.m[sessionID]; !ok {
		f.m[sessionID] = &model.SessionState{SessionID: sessionID, TenantID: tenantID, ReadOnly: true, EndedAt: &at}
	}
	return nil
}

type memSlots struct {
	m map[string]*model.Slot
}

func (f *memSlots) FindByID(ctx context.Context, id string) (*model.Slot, error) {
	if s, ok := f.m[id]; ok {
		c := *s
		return &c, nil
	}
	return nil, nil
}

func (f *memSlots) LinkSession(ctx context.Context, slotID, sessionID string) error { return nil }

func (f *memSlots) MarkCancelled(ctx context.Context, slotIDs []string, tenantID string) (int64, error) {
	var n int64
	for _, id := range slotIDs {
		if s, ok := f.m[id]; ok && (tenantID == "" || s.TenantID == tenantID) {
			n++
		}
	}
	return n, nil
}

func (f *memSlots) WithTx(tx *sqlx.Tx) repository.SlotRepository { return f }

type memTx struct{}

func (memTx) WithTx(ctx context.Context, fn database.TxFunc) error { return fn(nil) }

type memTranscripts struct {
	mu      sync.Mutex
	entries []model.TranscriptEntry
}

func (f *memTranscripts) Append(ctx context.Context, p model.AppendTranscriptParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, model.TranscriptEntry{
		ID: p.ID, TenantID: p.TenantID, SessionID: p.SessionID,
		Kind: p.Kind, Text: p.Text, SenderID: p.SenderID, TS: p.TS,
	})
	return nil
}

func (f *memTranscripts) FindRecentBySessionID(ctx context.Context, tenantID, sessionID string, limit int) ([]model.TranscriptEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.TranscriptEntry
	for i := len(f.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if f.entries[i].SessionID == sessionID && f.entries[i].TenantID == tenantID {
			out = append(out, f.entries[i])
		}
	}
	return out, nil
}

func (f *memTranscripts) CountBySessionID(ctx context.Context, sessionID string) (int, error) {
	return len(f.entries), nil
}

type memRecordings struct{}

func (memRecordings) Append(ctx context.Context, sessionID, videoID, title, url string, publishedAt time.Time) (*model.Recording, error) {
	return &model.Recording{ID: videoID}, nil
}

func (memRecordings) FindBySessionID(ctx context.Context, sessionID string) ([]model.Recording, error) {
	return nil, nil
}

type memNotes struct{}

func (memNotes) InsertMany(ctx context.Context, notes []model.Note) error { return nil }

type testServer struct {
	router   chi.Router
	sessions *memSessions
}

func newTestServer() *testServer {
	sessions := &memSessions{m: map[string]*model.Session{
		"sess-1": {ID: "sess-1", TenantID: "tenant-x", SlotID: "slot-1", Status: model.SessionStatusScheduled},
	}}
	key := "key-1"
	watch := "https://www.youtube.com/watch?v=bc-1"
	bcID := "bc-1"
	sessions.m["sess-1"].BroadcastID = &bcID
	sessions.m["sess-1"].WatchURL = &watch
	sessions.m["sess-1"].StreamKey = &key

	slots := &memSlots{m: map[string]*model.Slot{
		"slot-1": {ID: "slot-1", TenantID: "tenant-x", Subject: "Physics", BatchID: "batch-1", TeacherID: "teacher-1"},
		"slot-2": {ID: "slot-2", TenantID: "tenant-x", Subject: "Algebra", BatchID: "batch-1", TeacherID: "teacher-1"},
	}}
	states := &memStates{m: map[string]*model.SessionState{}}
	transcripts := &memTranscripts{}

	liveclass := service.NewLiveClassService(memTx{}, sessions, states, slots, memRecordings{}, nil, nil, 5*time.Minute)
	transcriptSvc := service.NewTranscriptService(transcripts)
	gate := access.NewGate(slots)
	gw := gateway.NewGateway(liveclass, transcriptSvc, gate, room.NewMemoryRegistry(), states, memNotes{}, gateway.NewHub())

	h := NewLiveClassHandler(liveclass, transcriptSvc, gate, gw)
	r := chi.NewRouter()
	r.Mount("/v1/live-classes", h.Routes())
	return &testServer{router: r, sessions: sessions}
}

func (ts *testServer) do(method, path string, body string, identity auth.Identity) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	ctx := context.WithValue(req.Context(), middleware.IdentityContextKey, &identity)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req.WithContext(ctx))
	return rec
}

func teacher() auth.Identity {
	return auth.Identity{UserID: "teacher-1", Name: "Ms. Roy", Role: model.RoleTeacher, TenantID: "tenant-x"}
}

func student() auth.Identity {
	return auth.Identity{UserID: "student-1", Name: "Anik", Role: model.RoleStudent, TenantID: "tenant-x"}
}

func admin() auth.Identity {
	return auth.Identity{UserID: "admin-1", Name: "Ops", Role: model.RoleAdmin, TenantID: "tenant-x"}
}

func TestLiveClassHandler_GetOrCreateBySlot(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(http.MethodGet, "/v1/live-classes/by-slot/slot-2", "", teacher())
	require.Equal(t, http.StatusOK, rec.Code)

	var created model.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "slot-2", created.SlotID)
	assert.Equal(t, model.SessionStatusScheduled, created.Status)

	// Repeat access returns the same session.
	rec = ts.do(http.MethodGet, "/v1/live-classes/by-slot/slot-2", "", teacher())
	var again model.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &again))
	assert.Equal(t, created.ID, again.ID)
}

func TestLiveClassHandler_Get(t *testing.T) {
	ts := newTestServer()

	t.Run("found", func(t *testing.T) {
		rec := ts.do(http.MethodGet, "/v1/live-classes/sess-1", "", student())
		assert.Equal(t, http.StatusOK, rec.Code)
		// Ingestion credentials never serialize.
		assert.NotContains(t, rec.Body.String(), "key-1")
	})

	t.Run("missing", func(t *testing.T) {
		rec := ts.do(http.MethodGet, "/v1/live-classes/ghost", "", student())
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("cross tenant", func(t *testing.T) {
		outsider := student()
		outsider.TenantID = "tenant-y"
		rec := ts.do(http.MethodGet, "/v1/live-classes/sess-1", "", outsider)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestLiveClassHandler_StreamKey(t *testing.T) {
	ts := newTestServer()

	t.Run("assigned teacher", func(t *testing.T) {
		rec := ts.do(http.MethodGet, "/v1/live-classes/sess-1/stream-key", "", teacher())
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "key-1")
	})

	t.Run("student is refused", func(t *testing.T) {
		rec := ts.do(http.MethodGet, "/v1/live-classes/sess-1/stream-key", "", student())
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestLiveClassHandler_JoinLink(t *testing.T) {
	ts := newTestServer()
	rec := ts.do(http.MethodGet, "/v1/live-classes/sess-1/join-link", "", student())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "watch?v=bc-1")
}

func TestLiveClassHandler_Schedule(t *testing.T) {
	ts := newTestServer()

	t.Run("student cannot schedule", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/v1/live-classes/sess-1/schedule", `{}`, student())
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("already provisioned is idempotent", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/v1/live-classes/sess-1/schedule", `{}`, teacher())
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unconfigured provider is a bad gateway", func(t *testing.T) {
		// slot-2's session has no broadcast handle and no bridge is wired.
		ts.do(http.MethodGet, "/v1/live-classes/by-slot/slot-2", "", teacher())
		rec := ts.do(http.MethodPost, "/v1/live-classes/sess-slot-2/schedule", `{}`, teacher())
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestLiveClassHandler_End(t *testing.T) {
	ts := newTestServer()

	t.Run("student cannot end", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/v1/live-classes/sess-1/end", "", student())
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("teacher ends once, repeat conflicts", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/v1/live-classes/sess-1/end", "", teacher())
		require.Equal(t, http.StatusOK, rec.Code)

		var ended model.Session
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ended))
		assert.Equal(t, model.SessionStatusCompleted, ended.Status)

		rec = ts.do(http.MethodPost, "/v1/live-classes/sess-1/end", "", teacher())
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), "ALREADY_ENDED")
	})
}

func TestLiveClassHandler_Status(t *testing.T) {
	ts := newTestServer()
	rec := ts.do(http.MethodGet, "/v1/live-classes/sess-1/status", "", student())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Scheduled")
}

func TestLiveClassHandler_Transcript(t *testing.T) {
	ts := newTestServer()

	t.Run("bad limit", func(t *testing.T) {
		rec := ts.do(http.MethodGet, "/v1/live-classes/sess-1/transcript?limit=abc", "", student())
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty transcript", func(t *testing.T) {
		rec := ts.do(http.MethodGet, "/v1/live-classes/sess-1/transcript", "", student())
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "entries")
	})
}

func TestLiveClassHandler_CancelForSlots(t *testing.T) {
	ts := newTestServer()

	t.Run("teacher cannot cancel", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/v1/live-classes/cancel-for-slots", `{"slotIds":["slot-1"]}`, teacher())
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("admin from another tenant cancels nothing", func(t *testing.T) {
		outsider := admin()
		outsider.TenantID = "tenant-other"
		rec := ts.do(http.MethodPost, "/v1/live-classes/cancel-for-slots", `{"slotIds":["slot-1"]}`, outsider)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), "sess-1")

		s, _ := ts.sessions.FindByID(context.Background(), "sess-1")
		assert.Equal(t, model.SessionStatusScheduled, s.Status)
	})

	t.Run("admin cancels sessions for slots", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/v1/live-classes/cancel-for-slots", `{"slotIds":["slot-1"]}`, admin())
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "sess-1")

		s, _ := ts.sessions.FindByID(context.Background(), "sess-1")
		assert.Equal(t, model.SessionStatusCancelled, s.Status)
	})

	t.Run("missing slot ids", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/v1/live-classes/cancel-for-slots", `{}`, admin())
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
