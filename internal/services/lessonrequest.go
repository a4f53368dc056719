package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/picourse/apiserver/internal/store"
	"github.com/picourse/apiserver/types"
)

// LessonRequestRepository defines persistence operations for lesson requests.
type LessonRequestRepository interface {
	GetByID(ctx context.Context, id int64) (types.LessonRequest, error)
	Create(ctx context.Context, request types.LessonRequest) (types.LessonRequest, error)
	ListByStudent(ctx context.Context, studentID int, status string) ([]types.LessonRequest, error)
	ListByTutor(ctx context.Context, tutorID int, status string) ([]types.LessonRequest, error)
	UpdateStatus(ctx context.Context, id int64, status string) (types.LessonRequest, error)
}

// TutorSubjectChecker reports whether a tutor teaches a subject.
type TutorSubjectChecker interface {
	TutorTeaches(ctx context.Context, userID, subjectID int) (bool, error)
}

// EventPublisher receives lesson request lifecycle events. Publishing
// is best-effort; implementations must not fail the calling operation.
type EventPublisher interface {
	LessonRequestCreated(ctx context.Context, request types.LessonRequest)
	LessonRequestStatusChanged(ctx context.Context, request types.LessonRequest, oldStatus string)
}

// Failures surfaced by the lesson request engine. Handlers map these
// onto 403 (the two permission errors) and 400 (the rest).
var (
	ErrOnlyStudentsCreate = errors.New("only students can create requests")
	ErrOnlyTutorUpdates   = errors.New("only tutor can update")
	ErrStatusRequired     = errors.New("only status can be updated")
	ErrTutorNotFound      = errors.New("tutor not found")
	ErrSubjectNotTaught   = errors.New("tutor does not teach this subject")
	ErrInvalidDuration    = errors.New("duration_minutes must be a positive integer")
	ErrInvalidStartTime   = errors.New("start_time is required")
	ErrInvalidStatus      = errors.New("status must be one of: " + strings.Join(types.LessonRequestStatuses, ", "))
)

// CreateLessonRequestInput carries the client-supplied fields of a new
// request. The student is never part of the input; it is forced to the
// creating principal.
type CreateLessonRequestInput struct {
	TutorID         int
	SubjectID       int
	StartTime       time.Time
	DurationMinutes int
	Note            string
}

// LessonRequestService owns the lesson request lifecycle: who may
// create, who may transition status, and the validity of both.
type LessonRequestService struct {
	requests LessonRequestRepository
	users    UserRepository
	subjects SubjectGetter
	teaches  TutorSubjectChecker
	events   EventPublisher
}

func NewLessonRequestService(
	requests LessonRequestRepository,
	users UserRepository,
	subjects SubjectGetter,
	teaches TutorSubjectChecker,
	events EventPublisher,
) *LessonRequestService {
	return &LessonRequestService{
		requests: requests,
		users:    users,
		subjects: subjects,
		teaches:  teaches,
		events:   events,
	}
}

// ListMine returns the principal's requests from the perspective of
// roleOverride when given, otherwise the principal's own role: the
// student perspective matches on the student field, every other role
// on the tutor field. An exact-match status filter is applied when
// non-empty. Ordering is newest first.
func (s *LessonRequestService) ListMine(ctx context.Context, principal types.User, roleOverride, status string) ([]types.LessonRequest, error) {
	role := principal.Role
	if roleOverride != "" {
		role = roleOverride
	}
	if role == types.RoleStudent {
		return s.requests.ListByStudent(ctx, principal.ID, status)
	}
	return s.requests.ListByTutor(ctx, principal.ID, status)
}

// Create validates the preconditions in order and inserts the request
// with the student forced to the principal and status pending.
func (s *LessonRequestService) Create(ctx context.Context, principal types.User, input CreateLessonRequestInput) (types.LessonRequest, error) {
	if principal.Role != types.RoleStudent {
		return types.LessonRequest{}, ErrOnlyStudentsCreate
	}

	tutor, err := s.users.GetByID(ctx, input.TutorID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.LessonRequest{}, ErrTutorNotFound
		}
		return types.LessonRequest{}, err
	}
	if tutor.Role != types.RoleTutor {
		return types.LessonRequest{}, ErrTutorNotFound
	}

	if _, err := s.subjects.GetByID(ctx, input.SubjectID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.LessonRequest{}, ErrSubjectNotFound
		}
		return types.LessonRequest{}, err
	}

	teaches, err := s.teaches.TutorTeaches(ctx, tutor.ID, input.SubjectID)
	if err != nil {
		return types.LessonRequest{}, err
	}
	if !teaches {
		return types.LessonRequest{}, ErrSubjectNotTaught
	}

	if input.DurationMinutes <= 0 {
		return types.LessonRequest{}, ErrInvalidDuration
	}
	if input.StartTime.IsZero() {
		return types.LessonRequest{}, ErrInvalidStartTime
	}

	created, err := s.requests.Create(ctx, types.LessonRequest{
		TutorID:         tutor.ID,
		StudentID:       principal.ID,
		SubjectID:       input.SubjectID,
		StartTime:       input.StartTime,
		DurationMinutes: input.DurationMinutes,
		Status:          types.StatusPending,
		Note:            input.Note,
	})
	if err != nil {
		return types.LessonRequest{}, err
	}

	if s.events != nil {
		s.events.LessonRequestCreated(ctx, created)
	}
	return created, nil
}

// UpdateStatus overwrites the status of an existing request. Only the
// referenced tutor may do so, and only with a valid status value. The
// checks run in that order: a missing record reports not-found and a
// non-tutor caller is rejected before the body is inspected, so status
// may be nil up to that point.
func (s *LessonRequestService) UpdateStatus(ctx context.Context, principal types.User, id int64, status *string) (types.LessonRequest, error) {
	request, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return types.LessonRequest{}, err
	}

	if principal.ID != request.TutorID {
		return types.LessonRequest{}, ErrOnlyTutorUpdates
	}

	if status == nil {
		return types.LessonRequest{}, ErrStatusRequired
	}
	if !types.IsValidStatus(*status) {
		return types.LessonRequest{}, ErrInvalidStatus
	}

	oldStatus := request.Status
	updated, err := s.requests.UpdateStatus(ctx, id, *status)
	if err != nil {
		return types.LessonRequest{}, err
	}

	if s.events != nil {
		s.events.LessonRequestStatusChanged(ctx, updated, oldStatus)
	}
	return updated, nil
}
