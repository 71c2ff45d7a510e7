package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/classbeam/liveclass-server-go/internal/model"
)

type RecordingRepository interface {
	Append(ctx context.Context, sessionID, videoID, title, url string, publishedAt time.Time) (*model.Recording, error)
	FindBySessionID(ctx context.Context, sessionID string) ([]model.Recording, error)
}

type recordingRepo struct {
	db *sqlx.DB
}

func NewRecordingRepository(db *sqlx.DB) RecordingRepository {
	return &recordingRepo{db: db}
}

func (r *recordingRepo) Append(ctx context.Context, sessionID, videoID, title, url string, publishedAt time.Time) (*model.Recording, error) {
	var rec model.Recording
	err := r.db.GetContext(ctx, &rec, `
		INSERT INTO recordings (session_id, video_id, title, url, published_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, sessionID, videoID, title, url, publishedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *recordingRepo) FindBySessionID(ctx context.Context, sessionID string) ([]model.Recording, error) {
	var recs []model.Recording
	err := r.db.SelectContext(ctx, &recs, `
		SELECT * FROM recordings
		WHERE session_id = $1
		ORDER BY published_at ASC
	`, sessionID)
	return recs, err
}
