package model

import "time"

type NoteFileKind string

const (
	NoteFilePDF   NoteFileKind = "pdf"
	NoteFileImage NoteFileKind = "image"
	NoteFileDoc   NoteFileKind = "doc"
)

// ValidNoteFileKind reports whether k is an accepted attachment kind.
func ValidNoteFileKind(k NoteFileKind) bool {
	switch k {
	case NoteFilePDF, NoteFileImage, NoteFileDoc:
		return true
	}
	return false
}

// Note is a study-material attachment published to a batch when a class
// ends, scoped to the slot's subject and batch.
type Note struct {
	ID           string       `db:"id" json:"id"`
	TenantID     string       `db:"tenant_id" json:"tenantId"`
	SubjectLabel string       `db:"subject_label" json:"subjectLabel"`
	BatchID      string       `db:"batch_id" json:"batchId"`
	TeacherID    string       `db:"teacher_id" json:"teacherId"`
	SessionID    *string      `db:"session_id" json:"sessionId,omitempty"`
	Title        string       `db:"title" json:"title"`
	FileURL      string       `db:"file_url" json:"fileUrl"`
	FileKind     NoteFileKind `db:"file_kind" json:"fileKind"`
	CreatedAt    time.Time    `db:"created_at" json:"createdAt"`
}
