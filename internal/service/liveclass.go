package service

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/classbeam/liveclass-server-go/internal/auth"
	"github.com/classbeam/liveclass-server-go/internal/broadcast"
	"github.com/classbeam/liveclass-server-go/internal/database"
	apperrors "github.com/classbeam/liveclass-server-go/internal/errors"
	"github.com/classbeam/liveclass-server-go/internal/model"
	"github.com/classbeam/liveclass-server-go/internal/repository"
	"github.com/classbeam/liveclass-server-go/internal/util"
)

// TxRunner executes a function inside a database transaction. Implemented
// by *database.DB.
type TxRunner interface {
	WithTx(ctx context.Context, fn database.TxFunc) error
}

// LiveClassService owns the session lifecycle: creation against a timetable
// slot, broadcast provisioning, the Live transition, and the terminal
// Completed/Cancelled transitions. The database row is the single source of
// truth for lifecycle state; provider calls on the ending paths are best
// effort and never block a local transition.
type LiveClassService struct {
	db            TxRunner
	sessionRepo   repository.SessionRepository
	stateRepo     repository.SessionStateRepository
	slotRepo      repository.SlotRepository
	recordingRepo repository.RecordingRepository
	bridge        broadcast.Bridge
	cipher        *util.SecretCipher
	leadTime      time.Duration
}

func NewLiveClassService(
	db TxRunner,
	sessionRepo repository.SessionRepository,
	stateRepo repository.SessionStateRepository,
	slotRepo repository.SlotRepository,
	recordingRepo repository.RecordingRepository,
	bridge broadcast.Bridge,
	cipher *util.SecretCipher,
	leadTime time.Duration,
) *LiveClassService {
	return &LiveClassService{
		db:            db,
		sessionRepo:   sessionRepo,
		stateRepo:     stateRepo,
		slotRepo:      slotRepo,
		recordingRepo: recordingRepo,
		bridge:        bridge,
		cipher:        cipher,
		leadTime:      leadTime,
	}
}

// GetOrCreateBySlot returns the session bound to a slot, creating it on
// first access. Creation races resolve to the row that won the unique
// slot binding.
func (s *LiveClassService) GetOrCreateBySlot(ctx context.Context, actor auth.Identity, slotID string) (*model.Session, error) {
	slot, err := s.slotRepo.FindByID(ctx, slotID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if slot == nil {
		return nil, apperrors.NotFound("Slot")
	}
	if err := checkTenant(actor, slot.TenantID); err != nil {
		return nil, err
	}

	existing, err := s.sessionRepo.FindBySlotID(ctx, slotID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if existing != nil {
		return existing, nil
	}

	// Create and back-link atomically; a slot must never point at a
	// session row that was not committed.
	var session *model.Session
	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		created, err := s.sessionRepo.WithTx(tx).Create(ctx, model.CreateSessionParams{
			TenantID: slot.TenantID,
			SlotID:   slotID,
		})
		if err != nil {
			return err
		}
		session = created
		return s.slotRepo.WithTx(tx).LinkSession(ctx, slotID, created.ID)
	})
	if err != nil {
		// A concurrent creator may have won the unique slot binding.
		if winner, ferr := s.sessionRepo.FindBySlotID(ctx, slotID); ferr == nil && winner != nil {
			return winner, nil
		}
		return nil, apperrors.Database(err)
	}

	log.Info().
		Str("sessionId", session.ID).
		Str("slotId", slotID).
		Str("tenantId", slot.TenantID).
		Msg("live class session created")

	return session, nil
}

// Get returns a session scoped to the actor's tenant.
func (s *LiveClassService) Get(ctx context.Context, actor auth.Identity, sessionID string) (*model.Session, error) {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if session == nil {
		return nil, apperrors.NotFound("Session")
	}
	if err := checkTenant(actor, session.TenantID); err != nil {
		return nil, err
	}
	return session, nil
}

// ScheduleBroadcast provisions provider assets for a session: an ingest
// stream, a broadcast scheduled leadTime in the future, and the bind between
// them. Any provider failure fails the whole operation; a session that
// already holds a broadcast handle is returned unchanged.
func (s *LiveClassService) ScheduleBroadcast(ctx context.Context, actor auth.Identity, sessionID, title string) (*model.Session, error) {
	session, err := s.Get(ctx, actor, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status.IsTerminal() {
		return nil, apperrors.ClassEnded()
	}
	if session.HasBroadcast() {
		return session, nil
	}
	if s.bridge == nil {
		return nil, apperrors.New(apperrors.ErrCodeUpstreamProvider, "Broadcast provider is not configured")
	}

	if strings.TrimSpace(title) == "" {
		slot, err := s.slotRepo.FindByID(ctx, session.SlotID)
		if err != nil {
			return nil, apperrors.Database(err)
		}
		if slot == nil {
			return nil, apperrors.NotFound("Linked slot")
		}
		title = slot.DefaultSessionTitle()
	}

	scheduledStart := time.Now().Add(s.leadTime)

	stream, err := s.bridge.CreateStream(ctx, title)
	if err != nil {
		return nil, apperrors.UpstreamProvider("create stream", err)
	}
	bc, err := s.bridge.CreateBroadcast(ctx, title, scheduledStart)
	if err != nil {
		return nil, apperrors.UpstreamProvider("create broadcast", err)
	}
	if err := s.bridge.Bind(ctx, stream.ID, bc.ID); err != nil {
		return nil, apperrors.UpstreamProvider("bind stream", err)
	}

	// Stream keys are sealed at rest when an encryption key is configured.
	storedKey, err := s.cipher.Seal(stream.StreamKey)
	if err != nil {
		return nil, apperrors.Internal("Failed to seal stream key").WithCause(err)
	}

	err = s.sessionRepo.SaveBroadcastHandle(ctx, session.ID, model.BroadcastHandleParams{
		StreamID:               stream.ID,
		BroadcastID:            bc.ID,
		StreamKey:              &storedKey,
		IngestionAddress:       &stream.IngestionAddress,
		BackupIngestionAddress: &stream.BackupIngestionAddress,
		WatchURL:               bc.WatchURL,
		Privacy:                bc.Privacy,
		ScheduledStartAt:       scheduledStart,
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}

	log.Info().
		Str("sessionId", session.ID).
		Str("broadcastId", bc.ID).
		Time("scheduledStartAt", scheduledStart).
		Msg("broadcast scheduled")

	return s.Get(ctx, actor, sessionID)
}

// JoinLink returns the public watch URL for a session's broadcast.
func (s *LiveClassService) JoinLink(ctx context.Context, actor auth.Identity, sessionID string) (string, error) {
	session, err := s.Get(ctx, actor, sessionID)
	if err != nil {
		return "", err
	}
	if !session.HasBroadcast() || session.WatchURL == nil {
		return "", apperrors.NotFound("Broadcast")
	}
	return *session.WatchURL, nil
}

// StreamKeyInfo carries ingestion credentials. It is only handed to the
// slot's assigned teacher or a moderation-capable role.
type StreamKeyInfo struct {
	StreamKey              string `json:"streamKey"`
	IngestionAddress       string `json:"ingestionAddress"`
	BackupIngestionAddress string `json:"backupIngestionAddress,omitempty"`
}

func (s *LiveClassService) StreamKey(ctx context.Context, actor auth.Identity, sessionID string) (*StreamKeyInfo, error) {
	session, err := s.Get(ctx, actor, sessionID)
	if err != nil {
		return nil, err
	}

	switch {
	case actor.Role == model.RoleTeacher:
		slot, err := s.slotRepo.FindByID(ctx, session.SlotID)
		if err != nil {
			return nil, apperrors.Database(err)
		}
		if slot == nil {
			return nil, apperrors.NotFound("Linked slot")
		}
		if slot.TeacherID != actor.UserID {
			return nil, apperrors.NotAssignedTeacher()
		}
	case actor.Role.IsModerationCapable():
		// Admin roles may retrieve credentials for operational recovery.
	default:
		return nil, apperrors.Forbidden("Stream credentials are restricted")
	}

	if !session.HasBroadcast() || session.StreamKey == nil {
		return nil, apperrors.NotFound("Broadcast")
	}
	streamKey, err := s.cipher.Open(*session.StreamKey)
	if err != nil {
		return nil, apperrors.Internal("Failed to unseal stream key").WithCause(err)
	}
	info := &StreamKeyInfo{StreamKey: streamKey}
	if session.IngestionAddress != nil {
		info.IngestionAddress = *session.IngestionAddress
	}
	if session.BackupIngestionAddress != nil {
		info.BackupIngestionAddress = *session.BackupIngestionAddress
	}
	return info, nil
}

// MarkLive promotes a Scheduled session to Live. Repeat calls and calls
// against terminal sessions are no-ops.
func (s *LiveClassService) MarkLive(ctx context.Context, sessionID string) error {
	if err := s.sessionRepo.MarkLive(ctx, sessionID, time.Now()); err != nil {
		return apperrors.Database(err)
	}
	return nil
}

// End performs the Completed transition. The local row flips first and
// authoritatively; exactly one caller wins the race and everyone else gets
// ALREADY_ENDED. The read-only marker is set before any provider call so
// the room closes even if the provider is down. Ending the provider
// broadcast and appending the recording are best effort.
func (s *LiveClassService) End(ctx context.Context, session *model.Session) (*model.Session, error) {
	now := time.Now()

	transitioned, err := s.sessionRepo.MarkCompleted(ctx, session.ID, now)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if !transitioned {
		return nil, apperrors.AlreadyEnded()
	}

	if err := s.stateRepo.UpsertEnded(ctx, session.ID, session.TenantID, now); err != nil {
		return nil, apperrors.Database(err)
	}

	if session.HasBroadcast() {
		broadcastID := *session.BroadcastID
		broadcast.BestEffort(ctx, "end broadcast", func(ctx context.Context) error {
			return s.bridgeEnd(ctx, broadcastID)
		})
		s.appendRecording(ctx, session, now)
	}

	log.Info().
		Str("sessionId", session.ID).
		Str("tenantId", session.TenantID).
		Msg("live class ended")

	updated, err := s.sessionRepo.FindByID(ctx, session.ID)
	if err != nil || updated == nil {
		return session, nil
	}
	return updated, nil
}

// CancelForSlots cancels every non-terminal session bound to the given
// slots, typically when a leave of absence voids a teacher's timetable.
// Cancellation is scoped to the actor's tenant; slot ids belonging to
// another tenant do not match. Slots flip to Cancelled alongside their
// sessions. Provider teardown is best effort and additionally flips the
// recordings private.
func (s *LiveClassService) CancelForSlots(ctx context.Context, actor auth.Identity, slotIDs []string) ([]string, error) {
	if len(slotIDs) == 0 {
		return nil, nil
	}

	tenantID := actor.TenantID
	if actor.IsSuperUser() {
		tenantID = ""
	} else if tenantID == "" {
		return nil, apperrors.CrossTenantForbidden()
	}

	sessionIDs, err := s.sessionRepo.MarkCancelledBySlotIDs(ctx, slotIDs, tenantID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if _, err := s.slotRepo.MarkCancelled(ctx, slotIDs, tenantID); err != nil {
		return nil, apperrors.Database(err)
	}

	now := time.Now()
	for _, id := range sessionIDs {
		session, err := s.sessionRepo.FindByID(ctx, id)
		if err != nil || session == nil {
			log.Error().Err(err).Str("sessionId", id).Msg("failed to load cancelled session")
			continue
		}
		if err := s.stateRepo.UpsertEnded(ctx, id, session.TenantID, now); err != nil {
			log.Error().Err(err).Str("sessionId", id).Msg("failed to set read-only marker")
		}
		if session.HasBroadcast() {
			broadcastID := *session.BroadcastID
			broadcast.BestEffort(ctx, "end broadcast", func(ctx context.Context) error {
				return s.bridgeEnd(ctx, broadcastID)
			})
			broadcast.BestEffort(ctx, "set privacy", func(ctx context.Context) error {
				if s.bridge == nil {
					return nil
				}
				return s.bridge.SetPrivacy(ctx, broadcastID, "private")
			})
		}
	}

	log.Info().
		Strs("slotIds", slotIDs).
		Int("cancelledSessions", len(sessionIDs)).
		Msg("sessions cancelled for slots")

	return sessionIDs, nil
}

// Status reports the session's lifecycle plus, when a broadcast exists and
// the provider is reachable, the provider-side snapshot.
type StatusInfo struct {
	SessionID    string              `json:"sessionId"`
	Status       model.SessionStatus `json:"status"`
	Lifecycle    string              `json:"lifecycle,omitempty"`
	StreamHealth string              `json:"streamHealth,omitempty"`
}

func (s *LiveClassService) Status(ctx context.Context, actor auth.Identity, sessionID string) (*StatusInfo, error) {
	session, err := s.Get(ctx, actor, sessionID)
	if err != nil {
		return nil, err
	}
	info := &StatusInfo{SessionID: session.ID, Status: session.Status}
	if session.HasBroadcast() && s.bridge != nil {
		st, err := s.bridge.Status(ctx, *session.BroadcastID)
		if err != nil {
			log.Warn().Err(err).Str("sessionId", session.ID).Msg("provider status unavailable")
		} else {
			info.Lifecycle = st.Lifecycle
			info.StreamHealth = st.StreamHealth
		}
	}
	return info, nil
}

// SyncStatus reconciles local lifecycle state against the provider for
// every active session that holds a broadcast. A session whose broadcast
// went live is promoted; one whose broadcast completed (teacher closed it
// from the studio, or auto-stop fired) is ended locally.
func (s *LiveClassService) SyncStatus(ctx context.Context) error {
	if s.bridge == nil {
		return nil
	}
	sessions, err := s.sessionRepo.FindActiveWithBroadcast(ctx)
	if err != nil {
		return apperrors.Database(err)
	}

	for i := range sessions {
		session := &sessions[i]
		st, err := s.bridge.Status(ctx, *session.BroadcastID)
		if err != nil {
			log.Warn().Err(err).Str("sessionId", session.ID).Msg("status poll failed")
			continue
		}
		switch st.Lifecycle {
		case broadcast.LifecycleLive:
			if session.Status == model.SessionStatusScheduled {
				if err := s.MarkLive(ctx, session.ID); err != nil {
					log.Error().Err(err).Str("sessionId", session.ID).Msg("failed to promote session to live")
				}
			}
		case broadcast.LifecycleComplete:
			if _, err := s.End(ctx, session); err != nil && apperrors.GetCode(err) != apperrors.ErrCodeAlreadyEnded {
				log.Error().Err(err).Str("sessionId", session.ID).Msg("failed to complete session from poll")
			}
		}
	}
	return nil
}

func (s *LiveClassService) bridgeEnd(ctx context.Context, broadcastID string) error {
	if s.bridge == nil {
		return nil
	}
	return s.bridge.End(ctx, broadcastID)
}

func (s *LiveClassService) appendRecording(ctx context.Context, session *model.Session, publishedAt time.Time) {
	title := ""
	if slot, err := s.slotRepo.FindByID(ctx, session.SlotID); err == nil && slot != nil {
		title = slot.DefaultSessionTitle()
	}
	url := ""
	if session.WatchURL != nil {
		url = *session.WatchURL
	}
	if _, err := s.recordingRepo.Append(ctx, session.ID, *session.BroadcastID, title, url, publishedAt); err != nil {
		log.Error().Err(err).Str("sessionId", session.ID).Msg("failed to append recording")
	}
}

func checkTenant(actor auth.Identity, tenantID string) error {
	if actor.IsSuperUser() {
		return nil
	}
	if actor.TenantID == "" || actor.TenantID != tenantID {
		return apperrors.CrossTenantForbidden()
	}
	return nil
}
