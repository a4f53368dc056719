package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/picourse/apiserver/internal/store"
	"github.com/picourse/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	CreateWithProfile(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
}

// ProfileRepository defines persistence operations for role profiles.
type ProfileRepository interface {
	TutorProfileByUserID(ctx context.Context, userID int) (types.TutorProfile, error)
	StudentProfileByUserID(ctx context.Context, userID int) (types.StudentProfile, error)
	UpdateTutorProfile(ctx context.Context, userID int, bio, hourlyRate string, rating float64) error
	ReplaceTutorSubjects(ctx context.Context, userID int, subjectIDs []int) error
	UpdateStudentProfile(ctx context.Context, userID int, gradeLevel *string) error
}

// SubjectGetter resolves subject references during profile updates.
type SubjectGetter interface {
	GetByID(ctx context.Context, id int) (types.Subject, error)
}

// Validation failures surfaced by the user service.
var (
	ErrInvalidHourlyRate = errors.New("invalid hourly rate")
	ErrSubjectNotFound   = errors.New("subject not found")
)

// TutorPatch is the tutor half of the self-update union. Nil fields
// are left untouched; Subjects replaces the taught set wholesale.
type TutorPatch struct {
	FirstName  *string
	LastName   *string
	Bio        *string
	HourlyRate *string
	Rating     *float64
	Subjects   *[]int
}

// StudentPatch is the student half of the self-update union.
type StudentPatch struct {
	GradeLevel *string
}

// UserService encapsulates account and profile use-cases.
type UserService struct {
	users    UserRepository
	profiles ProfileRepository
	subjects SubjectGetter
}

func NewUserService(users UserRepository, profiles ProfileRepository, subjects SubjectGetter) *UserService {
	return &UserService{users: users, profiles: profiles, subjects: subjects}
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (types.User, error) {
	return s.users.GetByUsername(ctx, username)
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return s.users.GetByEmail(ctx, email)
}

// Register creates the user and its role profile in one step.
// The username is derived from the email local part.
func (s *UserService) Register(ctx context.Context, email, passwordHash, role string) (types.User, error) {
	user := types.User{
		Username:     UsernameFromEmail(email),
		Email:        email,
		Role:         role,
		PasswordHash: passwordHash,
	}
	return s.users.CreateWithProfile(ctx, user)
}

// TutorProfileOf loads the tutor profile owned by the user.
func (s *UserService) TutorProfileOf(ctx context.Context, userID int) (types.TutorProfile, error) {
	return s.profiles.TutorProfileByUserID(ctx, userID)
}

// StudentProfileOf loads the student profile owned by the user.
func (s *UserService) StudentProfileOf(ctx context.Context, userID int) (types.StudentProfile, error) {
	return s.profiles.StudentProfileByUserID(ctx, userID)
}

// ApplyTutorPatch updates the tutor's name fields and profile.
func (s *UserService) ApplyTutorPatch(ctx context.Context, user types.User, patch TutorPatch) error {
	if patch.FirstName != nil || patch.LastName != nil {
		if patch.FirstName != nil {
			user.FirstName = strings.TrimSpace(*patch.FirstName)
		}
		if patch.LastName != nil {
			user.LastName = strings.TrimSpace(*patch.LastName)
		}
		if _, err := s.users.Update(ctx, user); err != nil {
			return err
		}
	}

	if patch.Bio != nil || patch.HourlyRate != nil || patch.Rating != nil {
		profile, err := s.profiles.TutorProfileByUserID(ctx, user.ID)
		if err != nil {
			return err
		}
		if patch.Bio != nil {
			profile.Bio = *patch.Bio
		}
		if patch.HourlyRate != nil {
			rate, err := NormalizeHourlyRate(*patch.HourlyRate)
			if err != nil {
				return err
			}
			profile.HourlyRate = rate
		}
		if patch.Rating != nil {
			profile.Rating = *patch.Rating
		}
		if err := s.profiles.UpdateTutorProfile(ctx, user.ID, profile.Bio, profile.HourlyRate, profile.Rating); err != nil {
			return err
		}
	}

	if patch.Subjects != nil {
		for _, subjectID := range *patch.Subjects {
			if _, err := s.subjects.GetByID(ctx, subjectID); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("%w: %d", ErrSubjectNotFound, subjectID)
				}
				return err
			}
		}
		if err := s.profiles.ReplaceTutorSubjects(ctx, user.ID, *patch.Subjects); err != nil {
			return err
		}
	}

	return nil
}

// ApplyStudentPatch updates the student's profile.
func (s *UserService) ApplyStudentPatch(ctx context.Context, user types.User, patch StudentPatch) error {
	if patch.GradeLevel == nil {
		return nil
	}
	return s.profiles.UpdateStudentProfile(ctx, user.ID, patch.GradeLevel)
}

// SetAvatarKey records the object-storage key of the user's avatar.
func (s *UserService) SetAvatarKey(ctx context.Context, userID int, key string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	user.AvatarKey = key
	_, err = s.users.Update(ctx, user)
	return err
}

// UsernameFromEmail derives the login name from the email local part.
func UsernameFromEmail(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}

// NormalizeHourlyRate validates a fixed-point decimal rate and returns
// it formatted with two decimal places. The rate must be >= 0 and fit
// NUMERIC(8,2).
func NormalizeHourlyRate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw[0] == '-' || raw[0] == '+' {
		return "", ErrInvalidHourlyRate
	}

	whole, frac := raw, ""
	if dot := strings.Index(raw, "."); dot >= 0 {
		whole, frac = raw[:dot], raw[dot+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 2 {
		return "", ErrInvalidHourlyRate
	}
	for len(frac) < 2 {
		frac += "0"
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || units < 0 {
		return "", ErrInvalidHourlyRate
	}
	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil || cents < 0 {
		return "", ErrInvalidHourlyRate
	}
	if units > 999999 {
		return "", ErrInvalidHourlyRate
	}

	return fmt.Sprintf("%d.%02d", units, cents), nil
}
