package models

import "time"

// AcademicYear partitions a school's calendar. At most one row per school is
// expected to carry status 'active'; ties are broken by is_current then
// start_date.
type AcademicYear struct {
	ID        string    `db:"id" json:"id"`
	SchoolID  string    `db:"school_id" json:"school_id"`
	Name      string    `db:"name" json:"name"`
	Status    string    `db:"status" json:"status"`
	IsCurrent bool      `db:"is_current" json:"is_current"`
	StartDate time.Time `db:"start_date" json:"start_date"`
	EndDate   time.Time `db:"end_date" json:"end_date"`
}

// AcademicTerm subdivides an academic year.
type AcademicTerm struct {
	ID             string    `db:"id" json:"id"`
	SchoolID       string    `db:"school_id" json:"school_id"`
	AcademicYearID string    `db:"academic_year_id" json:"academic_year_id"`
	Name           string    `db:"name" json:"name"`
	Status         string    `db:"status" json:"status"`
	IsCurrent      bool      `db:"is_current" json:"is_current"`
	StartDate      time.Time `db:"start_date" json:"start_date"`
	EndDate        time.Time `db:"end_date" json:"end_date"`
}
