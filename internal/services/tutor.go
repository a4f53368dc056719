package services

import (
	"context"

	"github.com/picourse/apiserver/internal/store"
	"github.com/picourse/apiserver/types"
)

// TutorRepository defines read access to the tutor directory.
type TutorRepository interface {
	List(ctx context.Context, filter store.TutorFilter, offset, limit int) ([]types.TutorSummary, int, error)
	Get(ctx context.Context, id int) (types.TutorSummary, error)
}

// TutorService encapsulates the public tutor directory use-cases.
type TutorService struct {
	repo TutorRepository
}

func NewTutorService(repo TutorRepository) *TutorService {
	return &TutorService{repo: repo}
}

func (s *TutorService) List(ctx context.Context, filter store.TutorFilter, offset, limit int) ([]types.TutorSummary, int, error) {
	return s.repo.List(ctx, filter, offset, limit)
}

func (s *TutorService) Get(ctx context.Context, id int) (types.TutorSummary, error) {
	return s.repo.Get(ctx, id)
}
