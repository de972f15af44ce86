package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edupanel/school-admin-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func announcementRows(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "school_id", "title", "description", "priority", "target_audience", "category", "is_published", "start_date", "end_date", "class_id", "section_id", "created_by", "created_at", "updated_at"}).
		AddRow("a1", "s1", "Exam schedule", "Mid-term exams start Monday", "high", "students", "exam", true, now, nil, nil, nil, "u1", now, now)
}

func TestAnnouncementListPublishedWithPriority(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + announcementColumns + " FROM announcements WHERE school_id = $1 AND is_published = TRUE AND priority = $2 ORDER BY " + priorityRankSQL + ", created_at DESC LIMIT 10 OFFSET 0")).
		WithArgs("s1", "high").
		WillReturnRows(announcementRows(now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM announcements WHERE school_id = $1 AND is_published = TRUE AND priority = $2")).
		WithArgs("s1", "high").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	items, total, err := repo.List(context.Background(), models.AnnouncementFilter{
		SchoolID: "s1",
		Status:   models.AnnouncementStatusPublished,
		Priority: models.AnnouncementPriorityHigh,
		Page:     1,
		PageSize: 10,
	})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementListScheduledUsesClock(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)
	fixed := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return fixed }

	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + announcementColumns + " FROM announcements WHERE school_id = $1 AND start_date > $2 ORDER BY " + priorityRankSQL + ", created_at DESC LIMIT 10 OFFSET 0")).
		WithArgs("s1", fixed).
		WillReturnRows(announcementRows(fixed))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM announcements WHERE school_id = $1 AND start_date > $2")).
		WithArgs("s1", fixed).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	_, total, err := repo.List(context.Background(), models.AnnouncementFilter{
		SchoolID: "s1",
		Status:   models.AnnouncementStatusScheduled,
		Page:     1,
		PageSize: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementListPageBeyondEnd(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + announcementColumns + " FROM announcements WHERE school_id = $1 ORDER BY " + priorityRankSQL + ", created_at DESC LIMIT 10 OFFSET 40")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM announcements WHERE school_id = $1")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	items, total, err := repo.List(context.Background(), models.AnnouncementFilter{SchoolID: "s1", Page: 5, PageSize: 10})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, 12, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementStats(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	rows := sqlmock.NewRows([]string{"total", "published", "drafts", "scheduled", "archived", "high", "medium", "low"}).
		AddRow(10, 6, 4, 2, 3, 1, 5, 4)
	mock.ExpectQuery("SELECT\\s+COUNT\\(\\*\\) AS total").
		WillReturnRows(rows)

	stats, err := repo.Stats(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 10, stats.Total)
	assert.Equal(t, 6, stats.Published)
	assert.Equal(t, 3, stats.Archived)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementDeleteMissingRow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM announcements WHERE school_id = $1 AND id = $2")).
		WithArgs("s1", "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "s1", "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementDeleteScopedToSchool(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM announcements WHERE school_id = $1 AND id = $2")).
		WithArgs("other-school", "a1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "other-school", "a1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementSetPublished(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE announcements SET is_published = $3, updated_at = $4 WHERE school_id = $1 AND id = $2")).
		WithArgs("s1", "a1", true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetPublished(context.Background(), "s1", "a1", true))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementArchiveSetsEndDate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	at := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE announcements SET end_date = $3, updated_at = $3 WHERE school_id = $1 AND id = $2")).
		WithArgs("s1", "a1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Archive(context.Background(), "s1", "a1", at))
	assert.NoError(t, mock.ExpectationsWereMet())
}
