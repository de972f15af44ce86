package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/edupanel/school-admin-api/internal/models"
)

// TermRepository resolves the school's active academic year and term.
type TermRepository struct {
	db *sqlx.DB
}

// NewTermRepository instantiates a term repository.
func NewTermRepository(db *sqlx.DB) *TermRepository {
	return &TermRepository{db: db}
}

// ActiveYear returns the most recent active academic year for the school.
// Ties on status are broken by the is_current flag, then start_date.
func (r *TermRepository) ActiveYear(ctx context.Context, schoolID string) (*models.AcademicYear, error) {
	query := `SELECT id, school_id, name, status, is_current, start_date, end_date
FROM academic_years
WHERE school_id = $1 AND status = 'active'
ORDER BY is_current DESC, start_date DESC
LIMIT 1`
	var year models.AcademicYear
	if err := r.db.GetContext(ctx, &year, query, schoolID); err != nil {
		return nil, err
	}
	return &year, nil
}

// ActiveTerm returns the most recent active term within the given year.
func (r *TermRepository) ActiveTerm(ctx context.Context, schoolID, yearID string) (*models.AcademicTerm, error) {
	query := `SELECT id, school_id, academic_year_id, name, status, is_current, start_date, end_date
FROM academic_terms
WHERE school_id = $1 AND academic_year_id = $2 AND status = 'active'
ORDER BY is_current DESC, start_date DESC
LIMIT 1`
	var term models.AcademicTerm
	if err := r.db.GetContext(ctx, &term, query, schoolID, yearID); err != nil {
		return nil, err
	}
	return &term, nil
}
