package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/picourse/apiserver/internal/services"
	"github.com/picourse/apiserver/types"
)

// SubjectHandler serves the public subject catalog.
type SubjectHandler struct {
	subjectService *services.SubjectService
}

func NewSubjectHandler(subjectService *services.SubjectService) *SubjectHandler {
	return &SubjectHandler{subjectService: subjectService}
}

// SubjectRouter registers subject routes on the given router.
func SubjectRouter(r chi.Router, subjectService *services.SubjectService) {
	handler := NewSubjectHandler(subjectService)

	r.Get("/", handler.ListSubjects)
}

// SubjectListResponse is the paginated catalog payload.
type SubjectListResponse struct {
	Items []types.Subject `json:"items"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
	Total int             `json:"total"`
}

// ListSubjects returns the catalog ordered by name. No authentication
// required.
func (h *SubjectHandler) ListSubjects(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.subjectService.List(r.Context(), offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list subjects")
		return
	}

	writeJSON(w, http.StatusOK, SubjectListResponse{
		Items: items,
		Page:  page,
		Limit: limit,
		Total: total,
	})
}
