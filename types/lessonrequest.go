package types

import "time"

// Lesson request statuses. A request starts as pending; the referenced
// tutor may overwrite the status with any of the valid values.
const (
	StatusPending   = "pending"
	StatusAccepted  = "accepted"
	StatusRejected  = "rejected"
	StatusCompleted = "completed"
)

// LessonRequestStatuses lists the valid status values in declaration order.
var LessonRequestStatuses = []string{
	StatusPending,
	StatusAccepted,
	StatusRejected,
	StatusCompleted,
}

// IsValidStatus reports whether status is one of the valid lesson
// request statuses.
func IsValidStatus(status string) bool {
	for _, s := range LessonRequestStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// LessonRequest is a proposed tutoring session between a student and a
// tutor for a subject and time slot.
type LessonRequest struct {
	// ID is the unique identifier of the request.
	ID int64 `json:"id" db:"id"`

	// TutorID references the user (role "tutor") asked to give the lesson.
	TutorID int `json:"tutor" db:"tutor_id"`

	// StudentID references the user (role "student") who created the
	// request. Always forced to the creating principal.
	StudentID int `json:"student" db:"student_id"`

	// SubjectID references the subject to be taught.
	SubjectID int `json:"subject" db:"subject_id"`

	// StartTime is the scheduled start of the lesson.
	StartTime time.Time `json:"start_time" db:"start_time"`

	// DurationMinutes is the lesson length; always positive.
	DurationMinutes int `json:"duration_minutes" db:"duration_minutes"`

	// Status is one of the lesson request statuses above.
	Status string `json:"status" db:"status"`

	// Note is optional free text from the student.
	Note string `json:"note" db:"note"`

	// CreatedAt is set once at creation and never changes.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is refreshed on every mutation.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	// Denormalized display names resolved from the referenced rows.
	TutorName   string `json:"tutor_name" db:"-"`
	StudentName string `json:"student_name" db:"-"`
	SubjectName string `json:"subject_name" db:"-"`
}
