package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/picourse/apiserver/internal/services"
	"github.com/picourse/apiserver/internal/store"
	"github.com/picourse/apiserver/types"
)

const testSecret = "handler-test-secret"

// memStore backs every repository interface the services need, so the
// handlers run against the real service layer end to end.
type memStore struct {
	users           map[int]types.User
	nextUserID      int
	tutorProfiles   map[int]types.TutorProfile
	studentProfiles map[int]types.StudentProfile
	nextProfileID   int
	subjects        map[int]types.Subject
	teaching        map[int]map[int]bool
	requests        map[int64]types.LessonRequest
	nextRequestID   int64
}

func newMemStore() *memStore {
	return &memStore{
		users:           map[int]types.User{},
		tutorProfiles:   map[int]types.TutorProfile{},
		studentProfiles: map[int]types.StudentProfile{},
		subjects:        map[int]types.Subject{},
		teaching:        map[int]map[int]bool{},
		requests:        map[int64]types.LessonRequest{},
	}
}

func (m *memStore) addSubject(id int, name string) {
	m.subjects[id] = types.Subject{ID: id, Name: name}
}

func (m *memStore) GetByID(ctx context.Context, id int) (types.User, error) {
	user, ok := m.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (m *memStore) GetByUsername(ctx context.Context, username string) (types.User, error) {
	for _, user := range m.users {
		if user.Username == username {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *memStore) GetByEmail(ctx context.Context, email string) (types.User, error) {
	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *memStore) CreateWithProfile(ctx context.Context, user types.User) (types.User, error) {
	for _, existing := range m.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return types.User{}, store.ErrDuplicate
		}
	}
	m.nextUserID++
	user.ID = m.nextUserID
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	m.users[user.ID] = user

	m.nextProfileID++
	switch user.Role {
	case types.RoleTutor:
		m.tutorProfiles[user.ID] = types.TutorProfile{ID: m.nextProfileID, UserID: user.ID, HourlyRate: "0.00"}
	case types.RoleStudent:
		m.studentProfiles[user.ID] = types.StudentProfile{ID: m.nextProfileID, UserID: user.ID}
	}
	return user, nil
}

func (m *memStore) Update(ctx context.Context, user types.User) (types.User, error) {
	if _, ok := m.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	user.UpdatedAt = time.Now()
	m.users[user.ID] = user
	return user, nil
}

func (m *memStore) TutorProfileByUserID(ctx context.Context, userID int) (types.TutorProfile, error) {
	profile, ok := m.tutorProfiles[userID]
	if !ok {
		return types.TutorProfile{}, store.ErrNotFound
	}
	for subjectID := range m.teaching[userID] {
		profile.Subjects = append(profile.Subjects, m.subjects[subjectID])
	}
	return profile, nil
}

func (m *memStore) StudentProfileByUserID(ctx context.Context, userID int) (types.StudentProfile, error) {
	profile, ok := m.studentProfiles[userID]
	if !ok {
		return types.StudentProfile{}, store.ErrNotFound
	}
	return profile, nil
}

func (m *memStore) UpdateTutorProfile(ctx context.Context, userID int, bio, hourlyRate string, rating float64) error {
	profile, ok := m.tutorProfiles[userID]
	if !ok {
		return store.ErrNotFound
	}
	profile.Bio = bio
	profile.HourlyRate = hourlyRate
	profile.Rating = rating
	m.tutorProfiles[userID] = profile
	return nil
}

func (m *memStore) ReplaceTutorSubjects(ctx context.Context, userID int, subjectIDs []int) error {
	if _, ok := m.tutorProfiles[userID]; !ok {
		return store.ErrNotFound
	}
	set := map[int]bool{}
	for _, id := range subjectIDs {
		set[id] = true
	}
	m.teaching[userID] = set
	return nil
}

func (m *memStore) UpdateStudentProfile(ctx context.Context, userID int, gradeLevel *string) error {
	profile, ok := m.studentProfiles[userID]
	if !ok {
		return store.ErrNotFound
	}
	profile.GradeLevel = gradeLevel
	m.studentProfiles[userID] = profile
	return nil
}

func (m *memStore) GetSubjectByID(ctx context.Context, id int) (types.Subject, error) {
	subject, ok := m.subjects[id]
	if !ok {
		return types.Subject{}, store.ErrNotFound
	}
	return subject, nil
}

func (m *memStore) TutorTeaches(ctx context.Context, userID, subjectID int) (bool, error) {
	return m.teaching[userID][subjectID], nil
}

func (m *memStore) GetRequestByID(ctx context.Context, id int64) (types.LessonRequest, error) {
	request, ok := m.requests[id]
	if !ok {
		return types.LessonRequest{}, store.ErrNotFound
	}
	return request, nil
}

func (m *memStore) CreateRequest(ctx context.Context, request types.LessonRequest) (types.LessonRequest, error) {
	m.nextRequestID++
	request.ID = m.nextRequestID
	now := time.Now()
	request.CreatedAt = now
	request.UpdatedAt = now
	m.requests[request.ID] = request
	return request, nil
}

func (m *memStore) ListByStudent(ctx context.Context, studentID int, status string) ([]types.LessonRequest, error) {
	return m.listRequests(func(r types.LessonRequest) bool { return r.StudentID == studentID }, status), nil
}

func (m *memStore) ListByTutor(ctx context.Context, tutorID int, status string) ([]types.LessonRequest, error) {
	return m.listRequests(func(r types.LessonRequest) bool { return r.TutorID == tutorID }, status), nil
}

func (m *memStore) listRequests(match func(types.LessonRequest) bool, status string) []types.LessonRequest {
	out := []types.LessonRequest{}
	for _, request := range m.requests {
		if !match(request) {
			continue
		}
		if status != "" && request.Status != status {
			continue
		}
		out = append(out, request)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (m *memStore) UpdateRequestStatus(ctx context.Context, id int64, status string) (types.LessonRequest, error) {
	request, ok := m.requests[id]
	if !ok {
		return types.LessonRequest{}, store.ErrNotFound
	}
	request.Status = status
	request.UpdatedAt = time.Now()
	m.requests[id] = request
	return request, nil
}

// subjectRepo adapts memStore to the service-side subject interfaces.
type subjectRepo struct{ m *memStore }

func (r subjectRepo) GetByID(ctx context.Context, id int) (types.Subject, error) {
	return r.m.GetSubjectByID(ctx, id)
}

func (r subjectRepo) List(ctx context.Context, offset, limit int) ([]types.Subject, int, error) {
	all := make([]types.Subject, 0, len(r.m.subjects))
	for _, subject := range r.m.subjects {
		all = append(all, subject)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })

	total := len(all)
	if offset >= total {
		return []types.Subject{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

// tutorRepo adapts memStore to the tutor directory repository.
type tutorRepo struct{ m *memStore }

func (r tutorRepo) List(ctx context.Context, filter store.TutorFilter, offset, limit int) ([]types.TutorSummary, int, error) {
	out := []types.TutorSummary{}
	for _, user := range r.m.users {
		if user.Role != types.RoleTutor {
			continue
		}
		if filter.SubjectID != nil && !r.m.teaching[user.ID][*filter.SubjectID] {
			continue
		}
		if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
			profile := r.m.tutorProfiles[user.ID]
			if !strings.Contains(strings.ToLower(user.FirstName), search) &&
				!strings.Contains(strings.ToLower(user.LastName), search) &&
				!strings.Contains(strings.ToLower(profile.Bio), search) {
				continue
			}
		}
		out = append(out, r.summary(user))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rating != out[j].Rating {
			if filter.RatingAscending {
				return out[i].Rating < out[j].Rating
			}
			return out[i].Rating > out[j].Rating
		}
		return out[i].ID < out[j].ID
	})

	total := len(out)
	if offset >= total {
		return []types.TutorSummary{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return out[offset:end], total, nil
}

func (r tutorRepo) Get(ctx context.Context, id int) (types.TutorSummary, error) {
	user, ok := r.m.users[id]
	if !ok || user.Role != types.RoleTutor {
		return types.TutorSummary{}, store.ErrNotFound
	}
	return r.summary(user), nil
}

func (r tutorRepo) summary(user types.User) types.TutorSummary {
	profile := r.m.tutorProfiles[user.ID]
	subjects := []types.Subject{}
	for subjectID := range r.m.teaching[user.ID] {
		subjects = append(subjects, r.m.subjects[subjectID])
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i].Name < subjects[j].Name })
	return types.TutorSummary{
		ID:         user.ID,
		Name:       user.DisplayName(),
		Subjects:   subjects,
		HourlyRate: profile.HourlyRate,
		Rating:     profile.Rating,
		Bio:        profile.Bio,
	}
}

// requestRepo adapts memStore to the lesson request repository.
type requestRepo struct{ m *memStore }

func (r requestRepo) GetByID(ctx context.Context, id int64) (types.LessonRequest, error) {
	return r.m.GetRequestByID(ctx, id)
}

func (r requestRepo) Create(ctx context.Context, request types.LessonRequest) (types.LessonRequest, error) {
	return r.m.CreateRequest(ctx, request)
}

func (r requestRepo) ListByStudent(ctx context.Context, studentID int, status string) ([]types.LessonRequest, error) {
	return r.m.ListByStudent(ctx, studentID, status)
}

func (r requestRepo) ListByTutor(ctx context.Context, tutorID int, status string) ([]types.LessonRequest, error) {
	return r.m.ListByTutor(ctx, tutorID, status)
}

func (r requestRepo) UpdateStatus(ctx context.Context, id int64, status string) (types.LessonRequest, error) {
	return r.m.UpdateRequestStatus(ctx, id, status)
}

func newTestRouter(t *testing.T) (chi.Router, *memStore) {
	t.Helper()

	mem := newMemStore()
	userService := services.NewUserService(mem, mem, subjectRepo{mem})
	subjectService := services.NewSubjectService(subjectRepo{mem})
	tutorService := services.NewTutorService(tutorRepo{mem})
	requestService := services.NewLessonRequestService(requestRepo{mem}, mem, subjectRepo{mem}, mem, nil)

	r := chi.NewRouter()
	r.Route("/auth", func(r chi.Router) {
		AuthRouter(r, userService, testSecret)
	})
	r.Route("/me", func(r chi.Router) {
		MeRouter(r, userService, nil, RequireAuth(testSecret))
	})
	r.Route("/subjects", func(r chi.Router) {
		SubjectRouter(r, subjectService)
	})
	r.Route("/tutors", func(r chi.Router) {
		TutorRouter(r, tutorService, userService, nil)
	})
	r.Route("/lesson-requests", func(r chi.Router) {
		LessonRequestRouter(r, requestService, userService, RequireAuth(testSecret))
	})
	return r, mem
}

func doJSON(t *testing.T, router http.Handler, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func register(t *testing.T, router http.Handler, email, password, role string) RegisterResponse {
	t.Helper()

	rec := doJSON(t, router, http.MethodPost, "/auth/register", "", RegisterRequest{
		Email:    email,
		Password: password,
		Role:     role,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d, body %s", email, rec.Code, rec.Body.String())
	}

	var resp RegisterResponse
	decodeBody(t, rec, &resp)
	return resp
}
