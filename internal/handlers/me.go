package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/picourse/apiserver/internal/services"
	"github.com/picourse/apiserver/internal/storage"
	"github.com/picourse/apiserver/internal/store"
	"github.com/picourse/apiserver/types"
)

const (
	maxAvatarBytes  = 5 << 20
	formFieldAvatar = "avatar"
	avatarKeyPrefix = "avatars"
)

// MeHandler serves the authenticated user's own account and profile.
type MeHandler struct {
	userService *services.UserService
	storage     *storage.Storage
}

// NewMeHandler constructs a handler. storage may be nil, which
// disables avatar uploads.
func NewMeHandler(userService *services.UserService, store *storage.Storage) *MeHandler {
	return &MeHandler{userService: userService, storage: store}
}

// MeRouter registers the /me routes. All routes require authentication.
func MeRouter(r chi.Router, userService *services.UserService, store *storage.Storage, authMiddleware func(http.Handler) http.Handler) {
	handler := NewMeHandler(userService, store)

	r.Use(authMiddleware)
	r.Get("/", handler.Me)
	r.Patch("/", handler.UpdateMe)
	if store != nil {
		r.Post("/avatar", handler.UploadAvatar)
	}
}

// MeResponse is the self view: account fields plus the role profile.
type MeResponse struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Profile  any    `json:"profile,omitempty"`
}

// Me returns the current authenticated user with its role profile.
func (h *MeHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := h.principal(w, r)
	if !ok {
		return
	}

	resp := MeResponse{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Role:     user.Role,
	}

	switch user.Role {
	case types.RoleTutor:
		profile, err := h.userService.TutorProfileOf(r.Context(), user.ID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusInternalServerError, "failed to load profile")
			return
		}
		if err == nil {
			resp.Profile = profile
		}
	case types.RoleStudent:
		profile, err := h.userService.StudentProfileOf(r.Context(), user.ID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusInternalServerError, "failed to load profile")
			return
		}
		if err == nil {
			resp.Profile = profile
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

type meUpdateRequest struct {
	FirstName *string         `json:"first_name"`
	LastName  *string         `json:"last_name"`
	Profile   json.RawMessage `json:"profile"`
}

type tutorProfilePatch struct {
	Bio        *string  `json:"bio"`
	HourlyRate *string  `json:"hourly_rate"`
	Rating     *float64 `json:"rating"`
	Subjects   *[]int   `json:"subjects"`
}

type studentProfilePatch struct {
	GradeLevel *string `json:"grade_level"`
}

// UpdateMe applies a self-update. The profile payload is decoded as
// the patch type matching the principal's role; the other shape is
// never consulted.
func (h *MeHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req meUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	switch user.Role {
	case types.RoleTutor:
		patch := services.TutorPatch{
			FirstName: req.FirstName,
			LastName:  req.LastName,
		}
		if len(req.Profile) > 0 {
			var profilePatch tutorProfilePatch
			if err := json.Unmarshal(req.Profile, &profilePatch); err != nil {
				writeError(w, http.StatusBadRequest, "invalid profile payload")
				return
			}
			patch.Bio = profilePatch.Bio
			patch.HourlyRate = profilePatch.HourlyRate
			patch.Rating = profilePatch.Rating
			patch.Subjects = profilePatch.Subjects
		}
		if err := h.userService.ApplyTutorPatch(r.Context(), user, patch); err != nil {
			h.writeUpdateError(w, err)
			return
		}
	case types.RoleStudent:
		var patch services.StudentPatch
		if len(req.Profile) > 0 {
			var profilePatch studentProfilePatch
			if err := json.Unmarshal(req.Profile, &profilePatch); err != nil {
				writeError(w, http.StatusBadRequest, "invalid profile payload")
				return
			}
			patch.GradeLevel = profilePatch.GradeLevel
		}
		if err := h.userService.ApplyStudentPatch(r.Context(), user, patch); err != nil {
			h.writeUpdateError(w, err)
			return
		}
	default:
		writeError(w, http.StatusBadRequest, "profile not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Profile updated"})
}

// UploadAvatar stores a multipart image upload under a fresh object
// key and records the key on the user.
func (h *MeHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	user, ok := h.principal(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAvatarBytes)
	if err := r.ParseMultipartForm(maxAvatarBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	files := r.MultipartForm.File[formFieldAvatar]
	if len(files) != 1 {
		writeError(w, http.StatusBadRequest, "exactly one avatar file is required")
		return
	}
	fileHeader := files[0]

	contentType := fileHeader.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		writeError(w, http.StatusBadRequest, "avatar must be an image")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read avatar file")
		return
	}
	defer file.Close()

	key := fmt.Sprintf("%s/%s%s", avatarKeyPrefix, uuid.NewString(), path.Ext(fileHeader.Filename))
	if err := h.storage.Put(r.Context(), key, file, fileHeader.Size, contentType); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store avatar")
		return
	}

	oldKey := user.AvatarKey
	if err := h.userService.SetAvatarKey(r.Context(), user.ID, key); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update avatar")
		return
	}
	if oldKey != "" {
		_ = h.storage.Delete(r.Context(), oldKey)
	}

	writeJSON(w, http.StatusCreated, map[string]string{"message": "Avatar updated"})
}

func (h *MeHandler) principal(w http.ResponseWriter, r *http.Request) (types.User, bool) {
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

func (h *MeHandler) writeUpdateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidHourlyRate):
		writeError(w, http.StatusBadRequest, "invalid hourly rate")
	case errors.Is(err, services.ErrSubjectNotFound):
		writeError(w, http.StatusBadRequest, "subject not found")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusBadRequest, "profile not found")
	default:
		writeError(w, http.StatusInternalServerError, "failed to update profile")
	}
}
