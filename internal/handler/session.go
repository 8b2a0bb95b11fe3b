package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/openimaging/archivepipe/internal/errors"
	"github.com/openimaging/archivepipe/internal/model"
	"github.com/openimaging/archivepipe/internal/service"
)

type SessionHandler struct {
	intakeService *service.IntakeService
	adminService  *service.AdminService
}

func NewSessionHandler(intakeService *service.IntakeService, adminService *service.AdminService) *SessionHandler {
	return &SessionHandler{
		intakeService: intakeService,
		adminService:  adminService,
	}
}

func (h *SessionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Get("/{id}/history", h.History)
	r.Post("/{id}/reset", h.Reset)
	r.Delete("/{id}", h.Delete)

	return r
}

type createSessionRequest struct {
	Project    string     `json:"project"`
	Subject    string     `json:"subject"`
	Name       string     `json:"name"`
	Timestamp  string     `json:"timestamp"`
	FolderName string     `json:"folderName"`
	Tag        *string    `json:"tag,omitempty"`
	Visit      *string    `json:"visit,omitempty"`
	Protocol   *string    `json:"protocol,omitempty"`
	TimeZone   *string    `json:"timeZone,omitempty"`
	Source     *string    `json:"source,omitempty"`
	ScanDate   *time.Time `json:"scanDate,omitempty"`
	ScanTime   *string    `json:"scanTime,omitempty"`
	Location   string     `json:"location"`
}

// POST /v1/sessions
// Registers a session whose files are arriving at a staging location.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidInput("body", "malformed JSON"))
		return
	}

	rec, err := h.intakeService.CreateSession(r.Context(), model.CreateSessionParams{
		Project:    req.Project,
		Subject:    req.Subject,
		Name:       req.Name,
		Timestamp:  req.Timestamp,
		FolderName: req.FolderName,
		Tag:        req.Tag,
		Visit:      req.Visit,
		Protocol:   req.Protocol,
		TimeZone:   req.TimeZone,
		Source:     req.Source,
		ScanDate:   req.ScanDate,
		ScanTime:   req.ScanTime,
		Location:   req.Location,
	})
	if err != nil {
		if !apperrors.IsAppError(err) {
			log.Error().Err(err).Msg("create session failed")
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, rec)
}

// GET /v1/sessions?status=ERROR&limit=50&offset=0
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	var status *model.SessionStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed := model.ParseSessionStatus(raw)
		if parsed == "" {
			writeError(w, apperrors.InvalidInput("status", "unknown session status"))
			return
		}
		status = &parsed
	}

	limit := intParam(r, "limit", 50)
	offset := intParam(r, "offset", 0)

	recs, err := h.intakeService.ListSessions(r.Context(), status, limit, offset)
	if err != nil {
		log.Error().Err(err).Msg("list sessions failed")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": recs,
		"count":    len(recs),
	})
}

// GET /v1/sessions/{id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.intakeService.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// GET /v1/sessions/{id}/history
func (h *SessionHandler) History(w http.ResponseWriter, r *http.Request) {
	wfs, err := h.adminService.SessionHistory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		log.Error().Err(err).Msg("session history failed")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"workflows": wfs})
}

type resetSessionRequest struct {
	User   string `json:"user"`
	Reason string `json:"reason"`
}

// POST /v1/sessions/{id}/reset
// Explicit administrative reset back to RECEIVING.
func (h *SessionHandler) Reset(w http.ResponseWriter, r *http.Request) {
	var req resetSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidInput("body", "malformed JSON"))
		return
	}

	rec, err := h.adminService.ResetSession(r.Context(), chi.URLParam(r, "id"), req.User, req.Reason)
	if err != nil {
		if !apperrors.IsAppError(err) {
			log.Error().Err(err).Msg("reset session failed")
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// DELETE /v1/sessions/{id}
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	if err := h.adminService.DeleteSession(r.Context(), chi.URLParam(r, "id"), user); err != nil {
		if !apperrors.IsAppError(err) {
			log.Error().Err(err).Msg("delete session failed")
		}
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func intParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
