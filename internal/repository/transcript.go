package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/classbeam/liveclass-server-go/internal/model"
)

type TranscriptRepository interface {
	Append(ctx context.Context, params model.AppendTranscriptParams) error
	// FindRecentBySessionID returns the newest entries first, scoped to the
	// session's tenant. Callers reverse for chronological replay.
	FindRecentBySessionID(ctx context.Context, tenantID, sessionID string, limit int) ([]model.TranscriptEntry, error)
	CountBySessionID(ctx context.Context, sessionID string) (int, error)
}

type transcriptRepo struct {
	db *sqlx.DB
}

func NewTranscriptRepository(db *sqlx.DB) TranscriptRepository {
	return &transcriptRepo{db: db}
}

func (r *transcriptRepo) Append(ctx context.Context, params model.AppendTranscriptParams) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transcript_entries
			(id, tenant_id, session_id, kind, text, sender_id, sender_name, sender_role, ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, params.ID, params.TenantID, params.SessionID, params.Kind, params.Text,
		params.SenderID, params.SenderName, params.SenderRole, params.TS)
	return err
}

func (r *transcriptRepo) FindRecentBySessionID(ctx context.Context, tenantID, sessionID string, limit int) ([]model.TranscriptEntry, error) {
	var entries []model.TranscriptEntry
	err := r.db.SelectContext(ctx, &entries, `
		SELECT * FROM transcript_entries
		WHERE tenant_id = $1 AND session_id = $2
		ORDER BY ts DESC
		LIMIT $3
	`, tenantID, sessionID, limit)
	return entries, err
}

func (r *transcriptRepo) CountBySessionID(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM transcript_entries WHERE session_id = $1
	`, sessionID)
	return count, err
}
