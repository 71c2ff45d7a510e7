package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/classbeam/liveclass-server-go/internal/model"
)

type NoteRepository interface {
	InsertMany(ctx context.Context, notes []model.Note) error
}

type noteRepo struct {
	db *sqlx.DB
}

func NewNoteRepository(db *sqlx.DB) NoteRepository {
	return &noteRepo{db: db}
}

func (r *noteRepo) InsertMany(ctx context.Context, notes []model.Note) error {
	if len(notes) == 0 {
		return nil
	}
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO notes
			(id, tenant_id, subject_label, batch_id, teacher_id, session_id, title, file_url, file_kind)
		VALUES
			(:id, :tenant_id, :subject_label, :batch_id, :teacher_id, :session_id, :title, :file_url, :file_kind)
	`, notes)
	return err
}
