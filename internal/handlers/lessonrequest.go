package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/picourse/apiserver/internal/services"
	"github.com/picourse/apiserver/internal/store"
	"github.com/picourse/apiserver/types"
)

// LessonRequestHandler serves the lesson request lifecycle.
type LessonRequestHandler struct {
	requestService *services.LessonRequestService
	userService    *services.UserService
}

func NewLessonRequestHandler(requestService *services.LessonRequestService, userService *services.UserService) *LessonRequestHandler {
	return &LessonRequestHandler{
		requestService: requestService,
		userService:    userService,
	}
}

// LessonRequestRouter registers lesson request routes on the given
// router. All routes require authentication.
func LessonRequestRouter(r chi.Router, requestService *services.LessonRequestService, userService *services.UserService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewLessonRequestHandler(requestService, userService)

	r.Use(authMiddleware)
	r.Get("/", handler.ListLessonRequests)
	r.Post("/", handler.CreateLessonRequest)
	r.Patch("/{requestID}", handler.UpdateLessonRequestStatus)
}

// ListLessonRequests returns the principal's requests, newest first.
// The perspective follows the principal's role unless overridden with
// ?role=; ?status= applies an exact-match filter.
func (h *LessonRequestHandler) ListLessonRequests(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	role := strings.TrimSpace(r.URL.Query().Get("role"))
	status := strings.TrimSpace(r.URL.Query().Get("status"))

	requests, err := h.requestService.ListMine(r.Context(), principal, role, status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list lesson requests")
		return
	}

	writeJSON(w, http.StatusOK, requests)
}

type createLessonRequestRequest struct {
	Tutor           int       `json:"tutor"`
	Subject         int       `json:"subject"`
	StartTime       time.Time `json:"start_time"`
	DurationMinutes int       `json:"duration_minutes"`
	Note            string    `json:"note"`
}

// CreateLessonRequest creates a pending request. Only students may
// call it; the student reference is always the principal, regardless
// of the payload.
func (h *LessonRequestHandler) CreateLessonRequest(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req createLessonRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	created, err := h.requestService.Create(r.Context(), principal, services.CreateLessonRequestInput{
		TutorID:         req.Tutor,
		SubjectID:       req.Subject,
		StartTime:       req.StartTime,
		DurationMinutes: req.DurationMinutes,
		Note:            req.Note,
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

type updateLessonRequestRequest struct {
	Status *string `json:"status"`
}

// UpdateLessonRequestStatus overwrites the status of a request. Only
// the referenced tutor may call it, and status is the only field the
// body may set. Existence and ownership are checked before the body:
// a statusless PATCH still reports 404 for a missing record and 403
// for a non-tutor caller.
func (h *LessonRequestHandler) UpdateLessonRequestStatus(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	id, err := parseLessonRequestID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req updateLessonRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	updated, err := h.requestService.UpdateStatus(r.Context(), principal, id, req.Status)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *LessonRequestHandler) principal(w http.ResponseWriter, r *http.Request) (types.User, bool) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return types.User{}, false
	}

	user, err := h.userService.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return types.User{}, false
		}
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return types.User{}, false
	}
	return user, true
}

func (h *LessonRequestHandler) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrOnlyStudentsCreate),
		errors.Is(err, services.ErrOnlyTutorUpdates):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrTutorNotFound),
		errors.Is(err, services.ErrSubjectNotFound),
		errors.Is(err, services.ErrSubjectNotTaught),
		errors.Is(err, services.ErrInvalidDuration),
		errors.Is(err, services.ErrInvalidStartTime),
		errors.Is(err, services.ErrStatusRequired),
		errors.Is(err, services.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "lesson request not found")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func parseLessonRequestID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "requestID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, errors.New("invalid lesson request id")
	}
	return id, nil
}
