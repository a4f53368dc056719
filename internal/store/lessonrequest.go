package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/picourse/apiserver/types"
)

// LessonRequestRepository handles persistence for lesson requests.
type LessonRequestRepository struct {
	db *sql.DB
}

func NewLessonRequestRepository(db *sql.DB) *LessonRequestRepository {
	return &LessonRequestRepository{db: db}
}

const lessonRequestSelect = `
	SELECT lr.id, lr.tutor_id, lr.student_id, lr.subject_id,
	       lr.start_time, lr.duration_minutes, lr.status, lr.note,
	       lr.created_at, lr.updated_at,
	       tu.first_name, tu.last_name, tu.username,
	       su.first_name, su.last_name, su.username,
	       s.name
	FROM lesson_requests lr
	JOIN users tu ON tu.id = lr.tutor_id
	JOIN users su ON su.id = lr.student_id
	JOIN subjects s ON s.id = lr.subject_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLessonRequest(row rowScanner) (types.LessonRequest, error) {
	var request types.LessonRequest
	var tutor, student types.User
	err := row.Scan(
		&request.ID,
		&request.TutorID,
		&request.StudentID,
		&request.SubjectID,
		&request.StartTime,
		&request.DurationMinutes,
		&request.Status,
		&request.Note,
		&request.CreatedAt,
		&request.UpdatedAt,
		&tutor.FirstName,
		&tutor.LastName,
		&tutor.Username,
		&student.FirstName,
		&student.LastName,
		&student.Username,
		&request.SubjectName,
	)
	if err != nil {
		return types.LessonRequest{}, err
	}
	request.TutorName = tutor.DisplayName()
	request.StudentName = student.DisplayName()
	return request, nil
}

func (r *LessonRequestRepository) GetByID(ctx context.Context, id int64) (types.LessonRequest, error) {
	const query = lessonRequestSelect + `
	WHERE lr.id = $1`
	request, err := scanLessonRequest(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.LessonRequest{}, ErrNotFound
		}
		return types.LessonRequest{}, err
	}
	return request, nil
}

func (r *LessonRequestRepository) Create(ctx context.Context, request types.LessonRequest) (types.LessonRequest, error) {
	now := time.Now()
	request.CreatedAt = now
	request.UpdatedAt = now

	const query = `
		INSERT INTO lesson_requests (tutor_id, student_id, subject_id, start_time, duration_minutes, status, note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		request.TutorID,
		request.StudentID,
		request.SubjectID,
		request.StartTime,
		request.DurationMinutes,
		request.Status,
		request.Note,
		request.CreatedAt,
		request.UpdatedAt,
	).Scan(&request.ID); err != nil {
		return types.LessonRequest{}, err
	}

	return r.GetByID(ctx, request.ID)
}

// ListByStudent returns the student's requests newest first, optionally
// filtered by exact status.
func (r *LessonRequestRepository) ListByStudent(ctx context.Context, studentID int, status string) ([]types.LessonRequest, error) {
	return r.list(ctx, "lr.student_id", studentID, status)
}

// ListByTutor returns the tutor's requests newest first, optionally
// filtered by exact status.
func (r *LessonRequestRepository) ListByTutor(ctx context.Context, tutorID int, status string) ([]types.LessonRequest, error) {
	return r.list(ctx, "lr.tutor_id", tutorID, status)
}

func (r *LessonRequestRepository) list(ctx context.Context, column string, userID int, status string) ([]types.LessonRequest, error) {
	query := lessonRequestSelect + `
	WHERE ` + column + ` = $1`
	args := []any{userID}
	if status != "" {
		query += ` AND lr.status = $2`
		args = append(args, status)
	}
	query += `
	ORDER BY lr.created_at DESC, lr.id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := []types.LessonRequest{}
	for rows.Next() {
		request, err := scanLessonRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, request)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return requests, nil
}

// UpdateStatus overwrites the status column and refreshes updated_at.
func (r *LessonRequestRepository) UpdateStatus(ctx context.Context, id int64, status string) (types.LessonRequest, error) {
	const query = `
		UPDATE lesson_requests
		SET status = $1, updated_at = $2
		WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		return types.LessonRequest{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.LessonRequest{}, err
	}
	if affected == 0 {
		return types.LessonRequest{}, ErrNotFound
	}
	return r.GetByID(ctx, id)
}
