package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/classbeam/liveclass-server-go/internal/model"
)

type SessionRepository interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
	FindBySlotID(ctx context.Context, slotID string) (*model.Session, error)
	FindActiveWithBroadcast(ctx context.Context) ([]model.Session, error)
	Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error)
	SaveBroadcastHandle(ctx context.Context, id string, params model.BroadcastHandleParams) error
	// MarkLive transitions Scheduled -> Live, recording the actual start time
	// once. Repeating the call is a no-op.
	MarkLive(ctx context.Context, id string, at time.Time) error
	// MarkCompleted transitions a non-terminal session to Completed and
	// reports whether this call performed the transition.
	MarkCompleted(ctx context.Context, id string, at time.Time) (bool, error)
	// MarkCancelledBySlotIDs cancels every non-terminal session bound to the
	// given slots, returning the affected session ids. A non-empty tenantID
	// restricts the update to that tenant's rows.
	MarkCancelledBySlotIDs(ctx context.Context, slotIDs []string, tenantID string) ([]string, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) SessionRepository
}

// sessionDB is an interface satisfied by both *sqlx.DB and *sqlx.Tx
type sessionDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type sessionRepo struct {
	db sessionDB
}

func NewSessionRepository(db *sqlx.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) WithTx(tx *sqlx.Tx) SessionRepository {
	return &sessionRepo{db: tx}
}

func (r *sessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `SELECT * FROM sessions WHERE id = $1`, id)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) FindBySlotID(ctx context.Context, slotID string) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `SELECT * FROM sessions WHERE slot_id = $1`, slotID)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) FindActiveWithBroadcast(ctx context.Context) ([]model.Session, error) {
	var sessions []model.Session
	err := r.db.SelectContext(ctx, &sessions, `
		SELECT * FROM sessions
		WHERE status IN ('Scheduled', 'Live')
		AND broadcast_id IS NOT NULL
		ORDER BY created_at ASC
	`)
	return sessions, err
}

func (r *sessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		INSERT INTO sessions (tenant_id, slot_id)
		VALUES ($1, $2)
		RETURNING *
	`, params.TenantID, params.SlotID)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) SaveBroadcastHandle(ctx context.Context, id string, params model.BroadcastHandleParams) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET
			stream_id = $2,
			broadcast_id = $3,
			stream_key = $4,
			ingestion_address = $5,
			backup_ingestion_address = $6,
			watch_url = $7,
			privacy = $8,
			scheduled_start_at = $9,
			updated_at = $10
		WHERE id = $1
	`, id, params.StreamID, params.BroadcastID, params.StreamKey,
		params.IngestionAddress, params.BackupIngestionAddress,
		params.WatchURL, params.Privacy, params.ScheduledStartAt, time.Now())
	return err
}

func (r *sessionRepo) MarkLive(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET
			status = 'Live',
			actual_start_at = COALESCE(actual_start_at, $2),
			updated_at = $2
		WHERE id = $1 AND status = 'Scheduled'
	`, id, at)
	return err
}

func (r *sessionRepo) MarkCompleted(ctx context.Context, id string, at time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET
			status = 'Completed',
			actual_end_at = $2,
			updated_at = $2
		WHERE id = $1 AND status NOT IN ('Completed', 'Cancelled')
	`, id, at)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *sessionRepo) MarkCancelledBySlotIDs(ctx context.Context, slotIDs []string, tenantID string) ([]string, error) {
	var ids []string
	err := r.db.SelectContext(ctx, &ids, `
		UPDATE sessions SET
			status = 'Cancelled',
			actual_end_at = COALESCE(actual_end_at, $2),
			updated_at = $2
		WHERE slot_id = ANY($1)
		AND status NOT IN ('Completed', 'Cancelled')
		AND ($3 = '' OR tenant_id = $3)
		RETURNING id
	`, pq.Array(slotIDs), time.Now(), tenantID)
	return ids, err
}
