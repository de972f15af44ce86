package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edupanel/school-admin-api/internal/models"
)

// priorityRankSQL orders rows by severity: high first, unknown values last.
const priorityRankSQL = "CASE priority WHEN 'high' THEN 1 WHEN 'medium' THEN 2 WHEN 'low' THEN 3 ELSE 4 END"

// AnnouncementRepository provides persistence for announcements. Every query
// is scoped by school_id.
type AnnouncementRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewAnnouncementRepository creates the repository.
func NewAnnouncementRepository(db *sqlx.DB) *AnnouncementRepository {
	return &AnnouncementRepository{db: db, now: time.Now}
}

const announcementColumns = "id, school_id, title, description, priority, target_audience, category, is_published, start_date, end_date, class_id, section_id, created_by, created_at, updated_at"

// List returns one page of announcements matching the filter plus the total
// match count. Requesting a page past the last yields an empty slice, not an
// error.
func (r *AnnouncementRepository) List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error) {
	base := "FROM announcements WHERE school_id = $1"
	args := []interface{}{filter.SchoolID}

	var conditions []string
	switch filter.Status {
	case models.AnnouncementStatusPublished:
		conditions = append(conditions, "is_published = TRUE")
	case models.AnnouncementStatusDrafts:
		conditions = append(conditions, "is_published = FALSE")
	case models.AnnouncementStatusScheduled:
		args = append(args, r.now().UTC())
		conditions = append(conditions, fmt.Sprintf("start_date > $%d", len(args)))
	case models.AnnouncementStatusArchived:
		args = append(args, r.now().UTC())
		conditions = append(conditions, fmt.Sprintf("(end_date IS NOT NULL AND end_date < $%d)", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(title) LIKE $%d OR LOWER(description) LIKE $%d)", len(args), len(args)))
	}
	if filter.Priority != "" {
		args = append(args, filter.Priority)
		conditions = append(conditions, fmt.Sprintf("priority = $%d", len(args)))
	}
	if filter.Audience != "" {
		args = append(args, filter.Audience)
		conditions = append(conditions, fmt.Sprintf("target_audience = $%d", len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 10
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s, created_at DESC LIMIT %d OFFSET %d",
		announcementColumns, base, priorityRankSQL, size, offset)

	var announcements []models.Announcement
	if err := r.db.SelectContext(ctx, &announcements, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list announcements: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count announcements: %w", err)
	}
	return announcements, total, nil
}

// GetByID returns an announcement belonging to the school.
func (r *AnnouncementRepository) GetByID(ctx context.Context, schoolID, id string) (*models.Announcement, error) {
	query := fmt.Sprintf("SELECT %s FROM announcements WHERE school_id = $1 AND id = $2", announcementColumns)
	var announcement models.Announcement
	if err := r.db.GetContext(ctx, &announcement, query, schoolID, id); err != nil {
		return nil, err
	}
	return &announcement, nil
}

// Stats aggregates the dashboard counters in a single pass. The derived
// scheduled/archived buckets intentionally overlap published/drafts.
func (r *AnnouncementRepository) Stats(ctx context.Context, schoolID string) (*models.AnnouncementStats, error) {
	query := `SELECT
    COUNT(*) AS total,
    SUM(CASE WHEN is_published THEN 1 ELSE 0 END) AS published,
    SUM(CASE WHEN NOT is_published THEN 1 ELSE 0 END) AS drafts,
    SUM(CASE WHEN start_date > $2 THEN 1 ELSE 0 END) AS scheduled,
    SUM(CASE WHEN end_date IS NOT NULL AND end_date < $2 THEN 1 ELSE 0 END) AS archived,
    SUM(CASE WHEN priority = 'high' THEN 1 ELSE 0 END) AS high,
    SUM(CASE WHEN priority = 'medium' THEN 1 ELSE 0 END) AS medium,
    SUM(CASE WHEN priority = 'low' THEN 1 ELSE 0 END) AS low
FROM announcements WHERE school_id = $1`
	var stats models.AnnouncementStats
	if err := r.db.GetContext(ctx, &stats, query, schoolID, r.now().UTC()); err != nil {
		return nil, fmt.Errorf("announcement stats: %w", err)
	}
	return &stats, nil
}

// Create inserts a new announcement.
func (r *AnnouncementRepository) Create(ctx context.Context, announcement *models.Announcement) error {
	if announcement.ID == "" {
		announcement.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if announcement.CreatedAt.IsZero() {
		announcement.CreatedAt = now
	}
	announcement.UpdatedAt = now
	query := `INSERT INTO announcements (id, school_id, title, description, priority, target_audience, category, is_published, start_date, end_date, class_id, section_id, created_by, created_at, updated_at)
VALUES (:id, :school_id, :title, :description, :priority, :target_audience, :category, :is_published, :start_date, :end_date, :class_id, :section_id, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, announcement); err != nil {
		return fmt.Errorf("create announcement: %w", err)
	}
	return nil
}

// Update modifies an existing announcement within its school.
func (r *AnnouncementRepository) Update(ctx context.Context, announcement *models.Announcement) error {
	announcement.UpdatedAt = time.Now().UTC()
	query := `UPDATE announcements SET title = :title, description = :description, priority = :priority,
target_audience = :target_audience, category = :category, is_published = :is_published,
start_date = :start_date, end_date = :end_date, class_id = :class_id, section_id = :section_id, updated_at = :updated_at
WHERE school_id = :school_id AND id = :id`
	res, err := r.db.NamedExecContext(ctx, query, announcement)
	if err != nil {
		return fmt.Errorf("update announcement: %w", err)
	}
	return requireRow(res)
}

// Delete removes an announcement. Deleting an id outside the school (or a
// missing one) reports sql.ErrNoRows.
func (r *AnnouncementRepository) Delete(ctx context.Context, schoolID, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM announcements WHERE school_id = $1 AND id = $2", schoolID, id)
	if err != nil {
		return fmt.Errorf("delete announcement: %w", err)
	}
	return requireRow(res)
}

// SetPublished flips the publish flag.
func (r *AnnouncementRepository) SetPublished(ctx context.Context, schoolID, id string, published bool) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE announcements SET is_published = $3, updated_at = $4 WHERE school_id = $1 AND id = $2",
		schoolID, id, published, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set announcement published: %w", err)
	}
	return requireRow(res)
}

// Archive closes the announcement by ending it now. Archived stays a derived
// classification: the row keeps its publish flag.
func (r *AnnouncementRepository) Archive(ctx context.Context, schoolID, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE announcements SET end_date = $3, updated_at = $3 WHERE school_id = $1 AND id = $2",
		schoolID, id, at.UTC())
	if err != nil {
		return fmt.Errorf("archive announcement: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
