package services

import (
	"context"

	"github.com/picourse/apiserver/types"
)

// SubjectRepository defines persistence operations for subjects.
type SubjectRepository interface {
	List(ctx context.Context, offset, limit int) ([]types.Subject, int, error)
	GetByID(ctx context.Context, id int) (types.Subject, error)
}

// SubjectService encapsulates catalog use-cases.
type SubjectService struct {
	repo SubjectRepository
}

func NewSubjectService(repo SubjectRepository) *SubjectService {
	return &SubjectService{repo: repo}
}

func (s *SubjectService) List(ctx context.Context, offset, limit int) ([]types.Subject, int, error) {
	return s.repo.List(ctx, offset, limit)
}

func (s *SubjectService) GetByID(ctx context.Context, id int) (types.Subject, error) {
	return s.repo.GetByID(ctx, id)
}
