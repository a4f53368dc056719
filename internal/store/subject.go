package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/picourse/apiserver/types"
)

// SubjectRepository handles persistence for subjects.
type SubjectRepository struct {
	db *sql.DB
}

func NewSubjectRepository(db *sql.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// List returns a page of subjects ordered by name, plus the total count.
func (r *SubjectRepository) List(ctx context.Context, offset, limit int) ([]types.Subject, int, error) {
	const countQuery = `SELECT COUNT(*) FROM subjects`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, err
	}

	const query = `
		SELECT id, name
		FROM subjects
		ORDER BY name
		LIMIT $1 OFFSET $2`
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	subjects := make([]types.Subject, 0, limit)
	for rows.Next() {
		var subject types.Subject
		if err := rows.Scan(&subject.ID, &subject.Name); err != nil {
			return nil, 0, err
		}
		subjects = append(subjects, subject)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return subjects, total, nil
}

func (r *SubjectRepository) GetByID(ctx context.Context, id int) (types.Subject, error) {
	const query = `SELECT id, name FROM subjects WHERE id = $1`
	var subject types.Subject
	err := r.db.QueryRowContext(ctx, query, id).Scan(&subject.ID, &subject.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Subject{}, ErrNotFound
		}
		return types.Subject{}, err
	}
	return subject, nil
}

func (r *SubjectRepository) GetByName(ctx context.Context, name string) (types.Subject, error) {
	const query = `SELECT id, name FROM subjects WHERE name = $1`
	var subject types.Subject
	err := r.db.QueryRowContext(ctx, query, name).Scan(&subject.ID, &subject.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Subject{}, ErrNotFound
		}
		return types.Subject{}, err
	}
	return subject, nil
}

func (r *SubjectRepository) Create(ctx context.Context, name string) (types.Subject, error) {
	const query = `INSERT INTO subjects (name) VALUES ($1) RETURNING id`
	subject := types.Subject{Name: name}
	if err := r.db.QueryRowContext(ctx, query, name).Scan(&subject.ID); err != nil {
		return types.Subject{}, err
	}
	return subject, nil
}
