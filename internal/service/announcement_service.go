package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edupanel/school-admin-api/internal/models"
	appErrors "github.com/edupanel/school-admin-api/pkg/errors"
)

type announcementRepository interface {
	List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error)
	GetByID(ctx context.Context, schoolID, id string) (*models.Announcement, error)
	Stats(ctx context.Context, schoolID string) (*models.AnnouncementStats, error)
	Create(ctx context.Context, announcement *models.Announcement) error
	Update(ctx context.Context, announcement *models.Announcement) error
	Delete(ctx context.Context, schoolID, id string) error
	SetPublished(ctx context.Context, schoolID, id string, published bool) error
	Archive(ctx context.Context, schoolID, id string, at time.Time) error
}

// Actor identifies who performed a mutation, for the audit trail.
type Actor struct {
	UserID    string
	IP        string
	UserAgent string
}

// AnnouncementServiceConfig tunes listing and caching behaviour.
type AnnouncementServiceConfig struct {
	PageSize      int
	StatsCacheTTL time.Duration
}

// AnnouncementService handles announcement workflows.
type AnnouncementService struct {
	repo      announcementRepository
	audit     auditWriter
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
	cfg       AnnouncementServiceConfig
}

// NewAnnouncementService constructs the service.
func NewAnnouncementService(repo announcementRepository, audit auditWriter, cache *CacheService, validate *validator.Validate, logger *zap.Logger, cfg AnnouncementServiceConfig) *AnnouncementService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 10
	}
	svc := &AnnouncementService{repo: repo, audit: audit, cache: cache, validator: validate, logger: logger, now: time.Now, cfg: cfg}
	svc.validator.RegisterValidation("audience", func(fl validator.FieldLevel) bool {
		switch models.AnnouncementAudience(strings.ToLower(fl.Field().String())) {
		case models.AnnouncementAudienceAll, models.AnnouncementAudienceStudents, models.AnnouncementAudienceTeachers,
			models.AnnouncementAudienceParents, models.AnnouncementAudienceStaff:
			return true
		default:
			return false
		}
	})
	svc.validator.RegisterValidation("priority", func(fl validator.FieldLevel) bool {
		switch models.AnnouncementPriority(strings.ToLower(fl.Field().String())) {
		case models.AnnouncementPriorityHigh, models.AnnouncementPriorityMedium, models.AnnouncementPriorityLow:
			return true
		default:
			return false
		}
	})
	svc.validator.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return isKnownCategory(strings.ToLower(fl.Field().String()))
	})
	return svc
}

// AnnouncementListQuery carries raw query string values before validation.
type AnnouncementListQuery struct {
	Status   string
	Search   string
	Priority string
	Audience string
	Category string
	Page     string
}

// ParseFilter whitelists filter values. Unrecognised values are silently
// dropped so the dimension stays unfiltered; filters never fail a request.
func (s *AnnouncementService) ParseFilter(schoolID string, q AnnouncementListQuery) models.AnnouncementFilter {
	filter := models.AnnouncementFilter{SchoolID: schoolID, Page: 1, PageSize: s.cfg.PageSize}

	switch models.AnnouncementStatus(strings.ToLower(q.Status)) {
	case models.AnnouncementStatusPublished, models.AnnouncementStatusDrafts,
		models.AnnouncementStatusScheduled, models.AnnouncementStatusArchived:
		filter.Status = models.AnnouncementStatus(strings.ToLower(q.Status))
	}
	if search := strings.TrimSpace(q.Search); search != "" {
		filter.Search = search
	}
	switch models.AnnouncementPriority(strings.ToLower(q.Priority)) {
	case models.AnnouncementPriorityHigh, models.AnnouncementPriorityMedium, models.AnnouncementPriorityLow:
		filter.Priority = models.AnnouncementPriority(strings.ToLower(q.Priority))
	}
	switch models.AnnouncementAudience(strings.ToLower(q.Audience)) {
	case models.AnnouncementAudienceAll, models.AnnouncementAudienceStudents, models.AnnouncementAudienceTeachers,
		models.AnnouncementAudienceParents, models.AnnouncementAudienceStaff:
		filter.Audience = models.AnnouncementAudience(strings.ToLower(q.Audience))
	}
	if isKnownCategory(strings.ToLower(q.Category)) {
		filter.Category = strings.ToLower(q.Category)
	}
	if page, err := strconv.Atoi(q.Page); err == nil && page >= 1 {
		filter.Page = page
	}
	return filter
}

// List returns announcements with pagination metadata.
func (s *AnnouncementService) List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, *models.Pagination, error) {
	if filter.PageSize <= 0 {
		filter.PageSize = s.cfg.PageSize
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list announcements")
	}
	return rows, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Stats returns the dashboard counters. Aggregate failures never fail the
// request: the stats reset to zeros, the error goes to the log.
func (s *AnnouncementService) Stats(ctx context.Context, schoolID string) *models.AnnouncementStats {
	cacheKey := fmt.Sprintf("ann:stats:%s", schoolID)
	if s.cache != nil {
		var cached models.AnnouncementStats
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached
		}
	}

	stats, err := s.repo.Stats(ctx, schoolID)
	if err != nil {
		s.logger.Error("announcement stats degraded to zeros", zap.String("school_id", schoolID), zap.Error(err))
		return &models.AnnouncementStats{}
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, stats, s.cfg.StatsCacheTTL); err != nil {
			s.logger.Warn("announcement stats cache write failed", zap.Error(err))
		}
	}
	return stats
}

// Get returns an announcement by id.
func (s *AnnouncementService) Get(ctx context.Context, schoolID, id string) (*models.Announcement, error) {
	ann, err := s.repo.GetByID(ctx, schoolID, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get announcement")
	}
	return ann, nil
}

// CreateAnnouncementRequest describes the create payload. PublishNow absent
// means the record stays a draft.
type CreateAnnouncementRequest struct {
	Title       string     `json:"title" validate:"required"`
	Description string     `json:"description" validate:"required"`
	Priority    string     `json:"priority" validate:"required,priority"`
	Audience    string     `json:"target_audience" validate:"required,audience"`
	Category    string     `json:"category" validate:"required,category"`
	PublishNow  bool       `json:"publish_now"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	ClassID     *string    `json:"class_id"`
	SectionID   *string    `json:"section_id"`
}

// UpdateAnnouncementRequest describes the update payload.
type UpdateAnnouncementRequest struct {
	Title       string     `json:"title" validate:"required"`
	Description string     `json:"description" validate:"required"`
	Priority    string     `json:"priority" validate:"required,priority"`
	Audience    string     `json:"target_audience" validate:"required,audience"`
	Category    string     `json:"category" validate:"required,category"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	ClassID     *string    `json:"class_id"`
	SectionID   *string    `json:"section_id"`
}

// Create registers a new announcement for the actor's school.
func (s *AnnouncementService) Create(ctx context.Context, schoolID string, actor Actor, req CreateAnnouncementRequest) (*models.Announcement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if req.StartDate != nil && req.EndDate != nil && req.EndDate.Before(*req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_date must be after start_date")
	}

	announcement := &models.Announcement{
		SchoolID:    schoolID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Priority:    models.AnnouncementPriority(strings.ToLower(req.Priority)),
		Audience:    models.AnnouncementAudience(strings.ToLower(req.Audience)),
		Category:    strings.ToLower(req.Category),
		IsPublished: req.PublishNow,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		ClassID:     req.ClassID,
		SectionID:   req.SectionID,
		CreatedBy:   actor.UserID,
	}
	if err := s.repo.Create(ctx, announcement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create announcement")
	}
	s.writeAudit(ctx, schoolID, actor, models.AuditActionAnnouncementCreate, announcement.ID, announcement.Title)
	s.invalidateStats(ctx, schoolID)
	return announcement, nil
}

// Update modifies an existing announcement.
func (s *AnnouncementService) Update(ctx context.Context, schoolID, id string, actor Actor, req UpdateAnnouncementRequest) (*models.Announcement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if req.StartDate != nil && req.EndDate != nil && req.EndDate.Before(*req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_date must be after start_date")
	}

	existing, err := s.Get(ctx, schoolID, id)
	if err != nil {
		return nil, err
	}
	existing.Title = strings.TrimSpace(req.Title)
	existing.Description = req.Description
	existing.Priority = models.AnnouncementPriority(strings.ToLower(req.Priority))
	existing.Audience = models.AnnouncementAudience(strings.ToLower(req.Audience))
	existing.Category = strings.ToLower(req.Category)
	existing.StartDate = req.StartDate
	existing.EndDate = req.EndDate
	existing.ClassID = req.ClassID
	existing.SectionID = req.SectionID

	if err := s.repo.Update(ctx, existing); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update announcement")
	}
	s.writeAudit(ctx, schoolID, actor, models.AuditActionAnnouncementUpdate, existing.ID, existing.Title)
	s.invalidateStats(ctx, schoolID)
	return existing, nil
}

// Delete removes an announcement. Missing or foreign ids leave the table
// unchanged and write no audit entry.
func (s *AnnouncementService) Delete(ctx context.Context, schoolID, id string, actor Actor) error {
	if err := s.repo.Delete(ctx, schoolID, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete announcement")
	}
	s.writeAudit(ctx, schoolID, actor, models.AuditActionAnnouncementDelete, id, "")
	s.invalidateStats(ctx, schoolID)
	return nil
}

// Publish makes an announcement visible.
func (s *AnnouncementService) Publish(ctx context.Context, schoolID, id string, actor Actor) error {
	return s.setPublished(ctx, schoolID, id, actor, true)
}

// Unpublish reverts an announcement to draft.
func (s *AnnouncementService) Unpublish(ctx context.Context, schoolID, id string, actor Actor) error {
	return s.setPublished(ctx, schoolID, id, actor, false)
}

// Archive ends an announcement now. The row keeps its publish flag; archived
// remains a derived classification.
func (s *AnnouncementService) Archive(ctx context.Context, schoolID, id string, actor Actor) error {
	if err := s.repo.Archive(ctx, schoolID, id, s.now()); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive announcement")
	}
	s.writeAudit(ctx, schoolID, actor, models.AuditActionAnnouncementArchive, id, "")
	s.invalidateStats(ctx, schoolID)
	return nil
}

func (s *AnnouncementService) setPublished(ctx context.Context, schoolID, id string, actor Actor, published bool) error {
	if err := s.repo.SetPublished(ctx, schoolID, id, published); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to change publish state")
	}
	action := models.AuditActionAnnouncementPublish
	if !published {
		action = models.AuditActionAnnouncementHide
	}
	s.writeAudit(ctx, schoolID, actor, action, id, "")
	s.invalidateStats(ctx, schoolID)
	return nil
}

func (s *AnnouncementService) writeAudit(ctx context.Context, schoolID string, actor Actor, action, id, title string) {
	if s.audit == nil {
		return
	}
	var payload []byte
	if title != "" {
		payload, _ = json.Marshal(map[string]string{"title": title})
	}
	entry := &models.AuditLog{
		SchoolID:   schoolID,
		UserID:     &actor.UserID,
		Action:     action,
		Resource:   "announcement",
		ResourceID: &id,
		NewValues:  payload,
		IPAddress:  actor.IP,
		UserAgent:  actor.UserAgent,
	}
	if err := s.audit.Create(ctx, entry); err != nil {
		s.logger.Warn("audit write failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *AnnouncementService) invalidateStats(ctx context.Context, schoolID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, fmt.Sprintf("ann:stats:%s", schoolID)); err != nil {
		s.logger.Warn("announcement stats cache invalidate failed", zap.Error(err))
	}
}

func isKnownCategory(category string) bool {
	for _, known := range models.AnnouncementCategories {
		if category == known {
			return true
		}
	}
	return false
}
