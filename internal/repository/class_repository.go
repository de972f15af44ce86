package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/edupanel/school-admin-api/internal/models"
)

// ClassRepository reads the class and section lookups used by the
// announcement form.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository creates the repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// ListBySchool returns the school's classes ordered by name.
func (r *ClassRepository) ListBySchool(ctx context.Context, schoolID string) ([]models.Class, error) {
	var classes []models.Class
	err := r.db.SelectContext(ctx, &classes,
		"SELECT id, school_id, name, level, created_at FROM classes WHERE school_id = $1 ORDER BY name", schoolID)
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	return classes, nil
}

// Sections returns the sections of one class.
func (r *ClassRepository) Sections(ctx context.Context, classID string) ([]models.Section, error) {
	var sections []models.Section
	err := r.db.SelectContext(ctx, &sections,
		"SELECT id, class_id, name FROM sections WHERE class_id = $1 ORDER BY name", classID)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	return sections, nil
}
