package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/classbeam/liveclass-server-go/internal/access"
	"github.com/classbeam/liveclass-server-go/internal/audit"
	apperrors "github.com/classbeam/liveclass-server-go/internal/errors"
	"github.com/classbeam/liveclass-server-go/internal/gateway"
	"github.com/classbeam/liveclass-server-go/internal/httputil"
	"github.com/classbeam/liveclass-server-go/internal/middleware"
	"github.com/classbeam/liveclass-server-go/internal/model"
	"github.com/classbeam/liveclass-server-go/internal/service"
	"github.com/classbeam/liveclass-server-go/internal/util"
)

// LiveClassHandler exposes the session lifecycle over REST. Room actions
// (chat, moderation) live on the websocket gateway; this surface covers
// scheduling, credentials and lifecycle control.
type LiveClassHandler struct {
	liveclass   *service.LiveClassService
	transcripts *service.TranscriptService
	gate        *access.Gate
	gateway     *gateway.Gateway
}

func NewLiveClassHandler(
	liveclass *service.LiveClassService,
	transcripts *service.TranscriptService,
	gate *access.Gate,
	gw *gateway.Gateway,
) *LiveClassHandler {
	return &LiveClassHandler{
		liveclass:   liveclass,
		transcripts: transcripts,
		gate:        gate,
		gateway:     gw,
	}
}

func (h *LiveClassHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/by-slot/{slotID}", h.GetOrCreateBySlot)
	r.Post("/cancel-for-slots", h.CancelForSlots)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/schedule", h.Schedule)
	r.Get("/{id}/join-link", h.JoinLink)
	r.Get("/{id}/stream-key", h.StreamKey)
	r.Post("/{id}/end", h.End)
	r.Get("/{id}/status", h.Status)
	r.Get("/{id}/transcript", h.Transcript)
	return r
}

func (h *LiveClassHandler) GetOrCreateBySlot(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	session, err := h.liveclass.GetOrCreateBySlot(r.Context(), *identity, chi.URLParam(r, "slotID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, session)
}

func (h *LiveClassHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	session, err := h.liveclass.Get(r.Context(), *identity, chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, session)
}

type scheduleRequest struct {
	Title string `json:"title"`
}

func (h *LiveClassHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	var req scheduleRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.WriteError(w, apperrors.InvalidInput("body", "malformed JSON"))
			return
		}
	}

	// Only the assigned teacher or a moderation-capable role may provision.
	session, err := h.liveclass.Get(r.Context(), *identity, chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if _, err := h.gate.AuthorizeModeration(r.Context(), *identity, session); err != nil {
		httputil.WriteError(w, err)
		return
	}

	scheduled, err := h.liveclass.ScheduleBroadcast(r.Context(), *identity, session.ID, req.Title)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, scheduled)
}

func (h *LiveClassHandler) JoinLink(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	url, err := h.liveclass.JoinLink(r.Context(), *identity, chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"watchUrl": url})
}

func (h *LiveClassHandler) StreamKey(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	info, err := h.liveclass.StreamKey(r.Context(), *identity, chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	// Ingestion credentials are sensitive; every successful handoff is audited.
	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventStreamKeyAccess,
		UserID:    identity.UserID,
		SessionID: chi.URLParam(r, "id"),
		TenantID:  identity.TenantID,
		Details:   map[string]interface{}{"streamKey": util.MaskSecret(info.StreamKey)},
	})
	httputil.WriteJSON(w, http.StatusOK, info)
}

func (h *LiveClassHandler) End(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	session, err := h.liveclass.Get(r.Context(), *identity, chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if _, err := h.gate.AuthorizeEnd(r.Context(), *identity, session); err != nil {
		httputil.WriteError(w, err)
		return
	}

	ended, err := h.liveclass.End(r.Context(), session)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.gateway.CloseClass(r.Context(), ended, *identity)
	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventClassEnd,
		UserID:    identity.UserID,
		SessionID: ended.ID,
		TenantID:  ended.TenantID,
	})
	httputil.WriteJSON(w, http.StatusOK, ended)
}

func (h *LiveClassHandler) Status(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	info, err := h.liveclass.Status(r.Context(), *identity, chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, info)
}

func (h *LiveClassHandler) Transcript(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	session, err := h.liveclass.Get(r.Context(), *identity, chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			httputil.WriteError(w, apperrors.InvalidInput("limit", "must be an integer"))
			return
		}
		limit = parsed
	}

	entries, err := h.transcripts.History(r.Context(), session.TenantID, session.ID, limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

type cancelForSlotsRequest struct {
	SlotIDs []string `json:"slotIds"`
}

// CancelForSlots voids the sessions of slots removed from the timetable,
// typically after an approved leave of absence.
func (h *LiveClassHandler) CancelForSlots(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity.Role != model.RoleAdmin && identity.Role != model.RoleSuperAdmin {
		httputil.WriteError(w, apperrors.Forbidden("Admin role required"))
		return
	}

	var req cancelForSlotsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, apperrors.InvalidInput("body", "malformed JSON"))
		return
	}
	if len(req.SlotIDs) == 0 {
		httputil.WriteError(w, apperrors.MissingRequired("slotIds"))
		return
	}

	sessionIDs, err := h.liveclass.CancelForSlots(r.Context(), *identity, req.SlotIDs)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	for _, id := range sessionIDs {
		if session, err := h.liveclass.Get(r.Context(), *identity, id); err == nil {
			h.gateway.CloseClass(r.Context(), session, *identity)
		}
		audit.LogFromRequest(r, audit.Event{
			Type:      audit.EventClassCancel,
			UserID:    identity.UserID,
			SessionID: id,
			TenantID:  identity.TenantID,
		})
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{"cancelledSessionIds": sessionIDs})
}
