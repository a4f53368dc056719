package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/picourse/apiserver/internal/services"
	"github.com/picourse/apiserver/internal/storage"
	"github.com/picourse/apiserver/internal/store"
	"github.com/picourse/apiserver/types"
)

// TutorHandler serves the public tutor directory.
type TutorHandler struct {
	tutorService *services.TutorService
	userService  *services.UserService
	storage      *storage.Storage
}

// NewTutorHandler constructs a handler. storage may be nil, which
// disables the avatar route.
func NewTutorHandler(tutorService *services.TutorService, userService *services.UserService, store *storage.Storage) *TutorHandler {
	return &TutorHandler{
		tutorService: tutorService,
		userService:  userService,
		storage:      store,
	}
}

// TutorRouter registers tutor directory routes on the given router.
func TutorRouter(r chi.Router, tutorService *services.TutorService, userService *services.UserService, store *storage.Storage) {
	handler := NewTutorHandler(tutorService, userService, store)

	r.Get("/", handler.ListTutors)
	r.Route("/{tutorID}", func(r chi.Router) {
		r.Get("/", handler.GetTutor)
		if store != nil {
			r.Get("/avatar", handler.GetTutorAvatar)
		}
	})
}

// TutorListResponse is the paginated directory payload.
type TutorListResponse struct {
	Items []types.TutorSummary `json:"items"`
	Page  int                  `json:"page"`
	Limit int                  `json:"limit"`
	Total int                  `json:"total"`
}

// ListTutors returns the directory filtered by subject and search
// text, ordered by rating descending unless ordering=rating is given.
func (h *TutorHandler) ListTutors(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	filter, err := parseTutorFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.tutorService.List(r.Context(), filter, offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list tutors")
		return
	}

	writeJSON(w, http.StatusOK, TutorListResponse{
		Items: items,
		Page:  page,
		Limit: limit,
		Total: total,
	})
}

// GetTutor returns the summary for one tutor, 404 when the id does not
// belong to a tutor.
func (h *TutorHandler) GetTutor(w http.ResponseWriter, r *http.Request) {
	id, err := parseTutorID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tutor, err := h.tutorService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "tutor not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch tutor")
		return
	}

	writeJSON(w, http.StatusOK, tutor)
}

// GetTutorAvatar streams the tutor's stored avatar.
func (h *TutorHandler) GetTutorAvatar(w http.ResponseWriter, r *http.Request) {
	id, err := parseTutorID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.userService.GetByID(r.Context(), id)
	if err != nil || user.Role != types.RoleTutor {
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusInternalServerError, "failed to fetch tutor")
			return
		}
		writeError(w, http.StatusNotFound, "tutor not found")
		return
	}
	if user.AvatarKey == "" {
		writeError(w, http.StatusNotFound, "avatar not found")
		return
	}

	object, err := h.storage.Get(r.Context(), user.AvatarKey)
	if err != nil {
		writeError(w, http.StatusNotFound, "avatar not found")
		return
	}
	defer object.Close()

	_, _ = io.Copy(w, object)
}

func parseTutorID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "tutorID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid tutor id")
	}
	return id, nil
}

func parseTutorFilter(r *http.Request) (store.TutorFilter, error) {
	var filter store.TutorFilter

	if raw := strings.TrimSpace(r.URL.Query().Get("subject")); raw != "" {
		subjectID, err := strconv.Atoi(raw)
		if err != nil || subjectID < 1 {
			return store.TutorFilter{}, errors.New("invalid subject filter")
		}
		filter.SubjectID = &subjectID
	}

	filter.Search = strings.TrimSpace(r.URL.Query().Get("search"))

	switch ordering := strings.TrimSpace(r.URL.Query().Get("ordering")); ordering {
	case "", "-rating":
	case "rating":
		filter.RatingAscending = true
	default:
		return store.TutorFilter{}, errors.New("invalid ordering")
	}

	return filter, nil
}
