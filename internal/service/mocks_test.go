package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"

	"github.com/classbeam/liveclass-server-go/internal/broadcast"
	"github.com/classbeam/liveclass-server-go/internal/database"
	"github.com/classbeam/liveclass-server-go/internal/model"
	"github.com/classbeam/liveclass-server-go/internal/repository"
)

type mockSessionRepo struct {
	mock.Mock
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionRepo) FindBySlotID(ctx context.Context, slotID string) (*model.Session, error) {
	args := m.Called(ctx, slotID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionRepo) FindActiveWithBroadcast(ctx context.Context) ([]model.Session, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Session), args.Error(1)
}

func (m *mockSessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionRepo) SaveBroadcastHandle(ctx context.Context, id string, params model.BroadcastHandleParams) error {
	args := m.Called(ctx, id, params)
	return args.Error(0)
}

func (m *mockSessionRepo) MarkLive(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *mockSessionRepo) MarkCompleted(ctx context.Context, id string, at time.Time) (bool, error) {
	args := m.Called(ctx, id, at)
	return args.Bool(0), args.Error(1)
}

func (m *mockSessionRepo) MarkCancelledBySlotIDs(ctx context.Context, slotIDs []string, tenantID string) ([]string, error) {
	args := m.Called(ctx, slotIDs, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockSessionRepo) WithTx(tx *sqlx.Tx) repository.SessionRepository {
	return m
}

type mockStateRepo struct {
	mock.Mock
}

func (m *mockStateRepo) FindBySessionID(ctx context.Context, sessionID string) (*model.SessionState, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SessionState), args.Error(1)
}

func (m *mockStateRepo) UpsertEnded(ctx context.Context, sessionID, tenantID string, at time.Time) error {
	args := m.Called(ctx, sessionID, tenantID, at)
	return args.Error(0)
}

type mockSlotRepo struct {
	mock.Mock
}

func (m *mockSlotRepo) FindByID(ctx context.Context, id string) (*model.Slot, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Slot), args.Error(1)
}

func (m *mockSlotRepo) LinkSession(ctx context.Context, slotID, sessionID string) error {
	args := m.Called(ctx, slotID, sessionID)
	return args.Error(0)
}

func (m *mockSlotRepo) MarkCancelled(ctx context.Context, slotIDs []string, tenantID string) (int64, error) {
	args := m.Called(ctx, slotIDs, tenantID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockSlotRepo) WithTx(tx *sqlx.Tx) repository.SlotRepository {
	return m
}

// nopTxRunner runs the transaction function against the repositories
// directly; the mocks return themselves from WithTx.
type nopTxRunner struct{}

func (nopTxRunner) WithTx(ctx context.Context, fn database.TxFunc) error {
	return fn(nil)
}

type txRunnerFunc func(ctx context.Context, fn database.TxFunc) error

func (f txRunnerFunc) WithTx(ctx context.Context, fn database.TxFunc) error {
	return f(ctx, fn)
}

type mockRecordingRepo struct {
	mock.Mock
}

func (m *mockRecordingRepo) Append(ctx context.Context, sessionID, videoID, title, url string, publishedAt time.Time) (*model.Recording, error) {
	args := m.Called(ctx, sessionID, videoID, title, url, publishedAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Recording), args.Error(1)
}

func (m *mockRecordingRepo) FindBySessionID(ctx context.Context, sessionID string) ([]model.Recording, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Recording), args.Error(1)
}

type mockTranscriptRepo struct {
	mock.Mock
}

func (m *mockTranscriptRepo) Append(ctx context.Context, params model.AppendTranscriptParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

func (m *mockTranscriptRepo) FindRecentBySessionID(ctx context.Context, tenantID, sessionID string, limit int) ([]model.TranscriptEntry, error) {
	args := m.Called(ctx, tenantID, sessionID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.TranscriptEntry), args.Error(1)
}

func (m *mockTranscriptRepo) CountBySessionID(ctx context.Context, sessionID string) (int, error) {
	args := m.Called(ctx, sessionID)
	return args.Int(0), args.Error(1)
}

type mockBridge struct {
	mock.Mock
}

func (m *mockBridge) CreateStream(ctx context.Context, title string) (*broadcast.Stream, error) {
	args := m.Called(ctx, title)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*broadcast.Stream), args.Error(1)
}

func (m *mockBridge) CreateBroadcast(ctx context.Context, title string, scheduledStart time.Time) (*broadcast.Broadcast, error) {
	args := m.Called(ctx, title, scheduledStart)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*broadcast.Broadcast), args.Error(1)
}

func (m *mockBridge) Bind(ctx context.Context, streamID, broadcastID string) error {
	args := m.Called(ctx, streamID, broadcastID)
	return args.Error(0)
}

func (m *mockBridge) Status(ctx context.Context, broadcastID string) (*broadcast.Status, error) {
	args := m.Called(ctx, broadcastID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*broadcast.Status), args.Error(1)
}

func (m *mockBridge) End(ctx context.Context, broadcastID string) error {
	args := m.Called(ctx, broadcastID)
	return args.Error(0)
}

func (m *mockBridge) SetPrivacy(ctx context.Context, broadcastID, privacy string) error {
	args := m.Called(ctx, broadcastID, privacy)
	return args.Error(0)
}
