package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/classbeam/liveclass-server-go/internal/model"
)

type SessionStateRepository interface {
	FindBySessionID(ctx context.Context, sessionID string) (*model.SessionState, error)
	// UpsertEnded sets the read-only marker for a session. The first call
	// records the end time; later calls are no-op updates.
	UpsertEnded(ctx context.Context, sessionID, tenantID string, at time.Time) error
}

type sessionStateRepo struct {
	db *sqlx.DB
}

func NewSessionStateRepository(db *sqlx.DB) SessionStateRepository {
	return &sessionStateRepo{db: db}
}

func (r *sessionStateRepo) FindBySessionID(ctx context.Context, sessionID string) (*model.SessionState, error) {
	var state model.SessionState
	err := r.db.GetContext(ctx, &state, `
		SELECT * FROM session_states WHERE session_id = $1
	`, sessionID)
	return HandleNotFound(&state, err)
}

func (r *sessionStateRepo) UpsertEnded(ctx context.Context, sessionID, tenantID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO session_states (session_id, tenant_id, read_only, ended_at)
		VALUES ($1, $2, TRUE, $3)
		ON CONFLICT (session_id) DO UPDATE SET
			read_only = TRUE,
			ended_at = COALESCE(session_states.ended_at, EXCLUDED.ended_at),
			updated_at = $3
	`, sessionID, tenantID, at)
	return err
}
