package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/picourse/apiserver/types"
)

// TutorFilter narrows and orders the tutor directory listing.
type TutorFilter struct {
	// SubjectID, when non-nil, keeps only tutors teaching that subject.
	SubjectID *int

	// Search, when non-empty, substring-matches first name, last name,
	// and bio (case-insensitive).
	Search string

	// RatingAscending flips the default rating-descending order.
	RatingAscending bool
}

// TutorRepository handles read access to the public tutor directory.
type TutorRepository struct {
	db *sql.DB
}

func NewTutorRepository(db *sql.DB) *TutorRepository {
	return &TutorRepository{db: db}
}

// List returns a page of tutor summaries plus the total match count.
func (r *TutorRepository) List(ctx context.Context, filter TutorFilter, offset, limit int) ([]types.TutorSummary, int, error) {
	where, args := buildTutorWhere(filter)

	countQuery := `
		SELECT COUNT(*)
		FROM users u
		JOIN tutor_profiles tp ON tp.user_id = u.id
		` + where
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	order := "tp.rating DESC"
	if filter.RatingAscending {
		order = "tp.rating ASC"
	}

	query := fmt.Sprintf(`
		SELECT u.id, u.username, u.first_name, u.last_name, tp.id, tp.bio, tp.hourly_rate, tp.rating
		FROM users u
		JOIN tutor_profiles tp ON tp.user_id = u.id
		%s
		ORDER BY %s, u.id
		LIMIT $%d OFFSET $%d`, where, order, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	summaries := make([]types.TutorSummary, 0, limit)
	profileIDs := make([]int, 0, limit)
	for rows.Next() {
		var user types.User
		var profileID int
		var summary types.TutorSummary
		if err := rows.Scan(
			&user.ID,
			&user.Username,
			&user.FirstName,
			&user.LastName,
			&profileID,
			&summary.Bio,
			&summary.HourlyRate,
			&summary.Rating,
		); err != nil {
			return nil, 0, err
		}
		summary.ID = user.ID
		summary.Name = user.DisplayName()
		summary.Subjects = []types.Subject{}
		summaries = append(summaries, summary)
		profileIDs = append(profileIDs, profileID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	subjects, err := subjectsForProfiles(ctx, r.db, profileIDs)
	if err != nil {
		return nil, 0, err
	}
	for i, profileID := range profileIDs {
		if taught, ok := subjects[profileID]; ok {
			summaries[i].Subjects = taught
		}
	}

	return summaries, total, nil
}

// Get returns the summary for a single tutor, or ErrNotFound when no
// user with that id has role tutor.
func (r *TutorRepository) Get(ctx context.Context, id int) (types.TutorSummary, error) {
	const query = `
		SELECT u.id, u.username, u.first_name, u.last_name, tp.id, tp.bio, tp.hourly_rate, tp.rating
		FROM users u
		JOIN tutor_profiles tp ON tp.user_id = u.id
		WHERE u.role = 'tutor' AND u.id = $1`
	var user types.User
	var profileID int
	var summary types.TutorSummary
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Username,
		&user.FirstName,
		&user.LastName,
		&profileID,
		&summary.Bio,
		&summary.HourlyRate,
		&summary.Rating,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.TutorSummary{}, ErrNotFound
		}
		return types.TutorSummary{}, err
	}
	summary.ID = user.ID
	summary.Name = user.DisplayName()
	summary.Subjects = []types.Subject{}

	subjects, err := subjectsForProfiles(ctx, r.db, []int{profileID})
	if err != nil {
		return types.TutorSummary{}, err
	}
	if taught, ok := subjects[profileID]; ok {
		summary.Subjects = taught
	}
	return summary, nil
}

func buildTutorWhere(filter TutorFilter) (string, []any) {
	clauses := []string{"u.role = 'tutor'"}
	args := []any{}

	if filter.SubjectID != nil {
		args = append(args, *filter.SubjectID)
		clauses = append(clauses, fmt.Sprintf(
			"tp.id IN (SELECT tutor_profile_id FROM tutor_subjects WHERE subject_id = $%d)", len(args)))
	}

	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+search+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf(
			"(u.first_name ILIKE $%d OR u.last_name ILIKE $%d OR tp.bio ILIKE $%d)", n, n, n))
	}

	return "WHERE " + strings.Join(clauses, " AND "), args
}
