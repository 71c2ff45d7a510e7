package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/classbeam/liveclass-server-go/internal/auth"
	"github.com/classbeam/liveclass-server-go/internal/config"
	apperrors "github.com/classbeam/liveclass-server-go/internal/errors"
	"github.com/classbeam/liveclass-server-go/internal/model"
	"github.com/classbeam/liveclass-server-go/internal/repository"
)

// TranscriptService writes and reads the durable per-session event log.
// Sender identity is snapshotted into each entry at write time.
type TranscriptService struct {
	transcriptRepo repository.TranscriptRepository
}

func NewTranscriptService(transcriptRepo repository.TranscriptRepository) *TranscriptService {
	return &TranscriptService{transcriptRepo: transcriptRepo}
}

// ComposeMessage validates a chat message and builds its entry without
// persisting it. The entry id and timestamp are assigned here so the room
// can see the message before the store does.
func (s *TranscriptService) ComposeMessage(session *model.Session, sender auth.Identity, text string) (*model.TranscriptEntry, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.MissingRequired("text")
	}
	return s.build(session, model.TranscriptKindMessage, text, sender), nil
}

// Persist appends a composed entry. Failures are logged and swallowed; the
// room has already seen the message.
func (s *TranscriptService) Persist(ctx context.Context, entry *model.TranscriptEntry) {
	if err := s.transcriptRepo.Append(ctx, appendParamsOf(entry)); err != nil {
		log.Error().Err(err).
			Str("sessionId", entry.SessionID).
			Str("entryId", entry.ID).
			Msg("failed to persist transcript entry")
	}
}

// RecordSystem appends a system event (join, leave, moderation action)
// attributed to the user it concerns.
func (s *TranscriptService) RecordSystem(ctx context.Context, session *model.Session, subject auth.Identity, text string) (*model.TranscriptEntry, error) {
	return s.append(ctx, session, model.TranscriptKindSystem, text, subject)
}

func (s *TranscriptService) append(ctx context.Context, session *model.Session, kind model.TranscriptKind, text string, sender auth.Identity) (*model.TranscriptEntry, error) {
	entry := s.build(session, kind, text, sender)
	if err := s.transcriptRepo.Append(ctx, appendParamsOf(entry)); err != nil {
		return nil, apperrors.Database(err)
	}
	return entry, nil
}

func (s *TranscriptService) build(session *model.Session, kind model.TranscriptKind, text string, sender auth.Identity) *model.TranscriptEntry {
	return &model.TranscriptEntry{
		ID:         uuid.NewString(),
		TenantID:   session.TenantID,
		SessionID:  session.ID,
		Kind:       kind,
		Text:       text,
		SenderID:   sender.UserID,
		SenderName: sender.Name,
		SenderRole: sender.Role,
		TS:         time.Now(),
	}
}

func appendParamsOf(entry *model.TranscriptEntry) model.AppendTranscriptParams {
	return model.AppendTranscriptParams{
		ID:         entry.ID,
		TenantID:   entry.TenantID,
		SessionID:  entry.SessionID,
		Kind:       entry.Kind,
		Text:       entry.Text,
		SenderID:   entry.SenderID,
		SenderName: entry.SenderName,
		SenderRole: entry.SenderRole,
		TS:         entry.TS,
	}
}

// History returns the newest entries in chronological order. A limit of
// zero or less falls back to the default; the cap bounds worst-case reads.
func (s *TranscriptService) History(ctx context.Context, tenantID, sessionID string, limit int) ([]model.TranscriptEntry, error) {
	if limit <= 0 {
		limit = config.HistoryDefaultLimit
	}
	if limit > config.HistoryMaxLimit {
		limit = config.HistoryMaxLimit
	}

	entries, err := s.transcriptRepo.FindRecentBySessionID(ctx, tenantID, sessionID, limit)
	if err != nil {
		return nil, apperrors.Database(err)
	}

	// Fetched newest-first; replayed oldest-first.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}
