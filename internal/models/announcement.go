package models

import "time"

// AnnouncementPriority orders announcements by severity.
type AnnouncementPriority string

const (
	AnnouncementPriorityHigh   AnnouncementPriority = "high"
	AnnouncementPriorityMedium AnnouncementPriority = "medium"
	AnnouncementPriorityLow    AnnouncementPriority = "low"
)

// AnnouncementAudience defines who an announcement targets.
type AnnouncementAudience string

const (
	AnnouncementAudienceAll      AnnouncementAudience = "all"
	AnnouncementAudienceStudents AnnouncementAudience = "students"
	AnnouncementAudienceTeachers AnnouncementAudience = "teachers"
	AnnouncementAudienceParents  AnnouncementAudience = "parents"
	AnnouncementAudienceStaff    AnnouncementAudience = "staff"
)

// AnnouncementCategories is the fixed category set accepted by filters and
// mutation payloads.
var AnnouncementCategories = []string{"general", "academic", "event", "holiday", "exam", "fee", "sports", "urgent"}

// AnnouncementStatus names the derived listing filters. Published and drafts
// partition rows on is_published alone; scheduled and archived are computed
// from dates and may overlap with either.
type AnnouncementStatus string

const (
	AnnouncementStatusPublished AnnouncementStatus = "published"
	AnnouncementStatusDrafts    AnnouncementStatus = "drafts"
	AnnouncementStatusScheduled AnnouncementStatus = "scheduled"
	AnnouncementStatusArchived  AnnouncementStatus = "archived"
)

// Announcement represents a persisted announcement row.
type Announcement struct {
	ID          string               `db:"id" json:"id"`
	SchoolID    string               `db:"school_id" json:"school_id"`
	Title       string               `db:"title" json:"title"`
	Description string               `db:"description" json:"description"`
	Priority    AnnouncementPriority `db:"priority" json:"priority"`
	Audience    AnnouncementAudience `db:"target_audience" json:"target_audience"`
	Category    string               `db:"category" json:"category"`
	IsPublished bool                 `db:"is_published" json:"is_published"`
	StartDate   *time.Time           `db:"start_date" json:"start_date,omitempty"`
	EndDate     *time.Time           `db:"end_date" json:"end_date,omitempty"`
	ClassID     *string              `db:"class_id" json:"class_id,omitempty"`
	SectionID   *string              `db:"section_id" json:"section_id,omitempty"`
	CreatedBy   string               `db:"created_by" json:"created_by"`
	CreatedAt   time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time            `db:"updated_at" json:"updated_at"`
}

// IsScheduled reports whether the announcement starts after the given time.
// Independent of the publish flag: a draft can be scheduled.
func (a *Announcement) IsScheduled(at time.Time) bool {
	return a.StartDate != nil && a.StartDate.After(at)
}

// IsArchived reports whether the announcement has ended. Archived is not a
// stored flag; it co-exists with published/draft.
func (a *Announcement) IsArchived(at time.Time) bool {
	return a.EndDate != nil && a.EndDate.Before(at)
}

// PriorityRank maps priorities onto a sortable severity rank. Unknown
// priorities sort last.
func PriorityRank(p AnnouncementPriority) int {
	switch p {
	case AnnouncementPriorityHigh:
		return 1
	case AnnouncementPriorityMedium:
		return 2
	case AnnouncementPriorityLow:
		return 3
	default:
		return 4
	}
}

// AnnouncementFilter captures validated listing criteria. Zero values mean
// the dimension is unfiltered.
type AnnouncementFilter struct {
	SchoolID string
	Status   AnnouncementStatus
	Search   string
	Priority AnnouncementPriority
	Audience AnnouncementAudience
	Category string
	Page     int
	PageSize int
}

// AnnouncementStats holds the dashboard tile counters. Counts are computed
// over the whole tenant, never over the active filter.
type AnnouncementStats struct {
	Total     int `db:"total" json:"total"`
	Published int `db:"published" json:"published"`
	Drafts    int `db:"drafts" json:"drafts"`
	Scheduled int `db:"scheduled" json:"scheduled"`
	Archived  int `db:"archived" json:"archived"`
	High      int `db:"high" json:"high_priority"`
	Medium    int `db:"medium" json:"medium_priority"`
	Low       int `db:"low" json:"low_priority"`
}
