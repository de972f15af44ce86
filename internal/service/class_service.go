package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/edupanel/school-admin-api/internal/models"
	appErrors "github.com/edupanel/school-admin-api/pkg/errors"
)

type classRepository interface {
	ListBySchool(ctx context.Context, schoolID string) ([]models.Class, error)
	Sections(ctx context.Context, classID string) ([]models.Section, error)
}

// ClassService exposes class and section lookups for announcement targeting.
type ClassService struct {
	repo   classRepository
	logger *zap.Logger
}

// NewClassService constructs the service.
func NewClassService(repo classRepository, logger *zap.Logger) *ClassService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{repo: repo, logger: logger}
}

// List returns the school's classes for targeting dropdowns.
func (s *ClassService) List(ctx context.Context, schoolID string) ([]models.Class, error) {
	classes, err := s.repo.ListBySchool(ctx, schoolID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	return classes, nil
}

// Sections returns the sections of one class.
func (s *ClassService) Sections(ctx context.Context, classID string) ([]models.Section, error) {
	sections, err := s.repo.Sections(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sections")
	}
	return sections, nil
}
