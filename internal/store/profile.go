package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/picourse/apiserver/types"
)

// ProfileRepository handles persistence for tutor and student profiles.
type ProfileRepository struct {
	db *sql.DB
}

func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// TutorProfileByUserID loads a tutor profile with its subject set.
func (r *ProfileRepository) TutorProfileByUserID(ctx context.Context, userID int) (types.TutorProfile, error) {
	const query = `
		SELECT id, user_id, bio, hourly_rate, rating
		FROM tutor_profiles
		WHERE user_id = $1`
	var profile types.TutorProfile
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&profile.ID,
		&profile.UserID,
		&profile.Bio,
		&profile.HourlyRate,
		&profile.Rating,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.TutorProfile{}, ErrNotFound
		}
		return types.TutorProfile{}, err
	}

	subjects, err := subjectsForProfiles(ctx, r.db, []int{profile.ID})
	if err != nil {
		return types.TutorProfile{}, err
	}
	profile.Subjects = subjects[profile.ID]
	if profile.Subjects == nil {
		profile.Subjects = []types.Subject{}
	}
	return profile, nil
}

func (r *ProfileRepository) StudentProfileByUserID(ctx context.Context, userID int) (types.StudentProfile, error) {
	const query = `
		SELECT id, user_id, grade_level
		FROM student_profiles
		WHERE user_id = $1`
	var profile types.StudentProfile
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&profile.ID,
		&profile.UserID,
		&profile.GradeLevel,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.StudentProfile{}, ErrNotFound
		}
		return types.StudentProfile{}, err
	}
	return profile, nil
}

// UpdateTutorProfile persists bio, hourly rate, and rating for the
// tutor owned by userID.
func (r *ProfileRepository) UpdateTutorProfile(ctx context.Context, userID int, bio, hourlyRate string, rating float64) error {
	const query = `
		UPDATE tutor_profiles
		SET bio = $1, hourly_rate = $2, rating = $3
		WHERE user_id = $4`
	result, err := r.db.ExecContext(ctx, query, bio, hourlyRate, rating, userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceTutorSubjects replaces the tutor's subject set wholesale.
func (r *ProfileRepository) ReplaceTutorSubjects(ctx context.Context, userID int, subjectIDs []int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var profileID int
	const lookup = `SELECT id FROM tutor_profiles WHERE user_id = $1`
	if err := tx.QueryRowContext(ctx, lookup, userID).Scan(&profileID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	const clear = `DELETE FROM tutor_subjects WHERE tutor_profile_id = $1`
	if _, err := tx.ExecContext(ctx, clear, profileID); err != nil {
		return err
	}

	const insert = `INSERT INTO tutor_subjects (tutor_profile_id, subject_id) VALUES ($1, $2)`
	for _, subjectID := range subjectIDs {
		if _, err := tx.ExecContext(ctx, insert, profileID, subjectID); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *ProfileRepository) UpdateStudentProfile(ctx context.Context, userID int, gradeLevel *string) error {
	const query = `
		UPDATE student_profiles
		SET grade_level = $1
		WHERE user_id = $2`
	result, err := r.db.ExecContext(ctx, query, gradeLevel, userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// TutorTeaches reports whether the tutor owned by userID has subjectID
// in its subject set.
func (r *ProfileRepository) TutorTeaches(ctx context.Context, userID, subjectID int) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1
			FROM tutor_subjects ts
			JOIN tutor_profiles tp ON tp.id = ts.tutor_profile_id
			WHERE tp.user_id = $1 AND ts.subject_id = $2
		)`
	var teaches bool
	if err := r.db.QueryRowContext(ctx, query, userID, subjectID).Scan(&teaches); err != nil {
		return false, err
	}
	return teaches, nil
}

// subjectsForProfiles loads the subject sets for a batch of profile ids.
// Shared with the tutor directory queries.
func subjectsForProfiles(ctx context.Context, db *sql.DB, profileIDs []int) (map[int][]types.Subject, error) {
	if len(profileIDs) == 0 {
		return map[int][]types.Subject{}, nil
	}

	const query = `
		SELECT ts.tutor_profile_id, s.id, s.name
		FROM tutor_subjects ts
		JOIN subjects s ON s.id = ts.subject_id
		WHERE ts.tutor_profile_id = ANY($1)
		ORDER BY s.name`
	rows, err := db.QueryContext(ctx, query, pq.Array(profileIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	subjects := make(map[int][]types.Subject, len(profileIDs))
	for rows.Next() {
		var profileID int
		var subject types.Subject
		if err := rows.Scan(&profileID, &subject.ID, &subject.Name); err != nil {
			return nil, err
		}
		subjects[profileID] = append(subjects[profileID], subject)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return subjects, nil
}
