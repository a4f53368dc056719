package types

// TutorProfile holds the tutor-specific attributes of a user with role
// "tutor". It is created together with the user row and only ever
// mutated by its owner.
type TutorProfile struct {
	ID     int `json:"-" db:"id"`
	UserID int `json:"-" db:"user_id"`

	Bio string `json:"bio" db:"bio"`

	// HourlyRate carries the NUMERIC(8,2) column as a fixed-point
	// decimal string, e.g. "25.00".
	HourlyRate string `json:"hourly_rate" db:"hourly_rate"`

	Rating float64 `json:"rating" db:"rating"`

	// Subjects is the set of subjects the tutor teaches.
	Subjects []Subject `json:"subjects"`
}

// StudentProfile holds the student-specific attributes of a user with
// role "student".
type StudentProfile struct {
	ID     int `json:"-" db:"id"`
	UserID int `json:"-" db:"user_id"`

	// GradeLevel is optional free text, e.g. "10th Grade".
	GradeLevel *string `json:"grade_level" db:"grade_level"`
}

// TutorSummary is the public directory view of a tutor: the user's
// display name combined with the profile fields clients may see.
type TutorSummary struct {
	ID         int       `json:"id"`
	Name       string    `json:"name"`
	Subjects   []Subject `json:"subjects"`
	HourlyRate string    `json:"hourly_rate"`
	Rating     float64   `json:"rating"`
	Bio        string    `json:"bio"`
}
