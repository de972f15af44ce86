package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edupanel/school-admin-api/internal/middleware"
	"github.com/edupanel/school-admin-api/internal/models"
	"github.com/edupanel/school-admin-api/internal/service"
)

type stubAnnouncementRepo struct {
	rows      []models.Announcement
	total     int
	deleteErr error
}

func (s *stubAnnouncementRepo) List(context.Context, models.AnnouncementFilter) ([]models.Announcement, int, error) {
	return s.rows, s.total, nil
}

func (s *stubAnnouncementRepo) GetByID(context.Context, string, string) (*models.Announcement, error) {
	return nil, sql.ErrNoRows
}

func (s *stubAnnouncementRepo) Stats(context.Context, string) (*models.AnnouncementStats, error) {
	return &models.AnnouncementStats{Total: 3, Published: 2, Drafts: 1}, nil
}

func (s *stubAnnouncementRepo) Create(context.Context, *models.Announcement) error { return nil }
func (s *stubAnnouncementRepo) Update(context.Context, *models.Announcement) error { return nil }
func (s *stubAnnouncementRepo) Delete(context.Context, string, string) error       { return s.deleteErr }
func (s *stubAnnouncementRepo) SetPublished(context.Context, string, string, bool) error {
	return nil
}
func (s *stubAnnouncementRepo) Archive(context.Context, string, string, time.Time) error {
	return nil
}

type envelope struct {
	Data       json.RawMessage        `json:"data"`
	Error      map[string]interface{} `json:"error"`
	Pagination *models.Pagination     `json:"pagination"`
}

func newAnnouncementHandler(repo *stubAnnouncementRepo) *AnnouncementHandler {
	svc := service.NewAnnouncementService(repo, nil, nil, nil, nil, service.AnnouncementServiceConfig{PageSize: 10})
	return NewAnnouncementHandler(svc)
}

func testContext(t *testing.T, method, target string, withClaims bool) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, target, nil)
	if withClaims {
		c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", SchoolID: "s1", Role: models.RoleAdmin})
	}
	return c, rec
}

func TestAnnouncementListReturnsPagination(t *testing.T) {
	hdl := newAnnouncementHandler(&stubAnnouncementRepo{rows: make([]models.Announcement, 10), total: 23})

	c, rec := testContext(t, http.MethodGet, "/announcements?page=2&status=published", true)
	hdl.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 23, env.Pagination.TotalCount)
	assert.Equal(t, 3, env.Pagination.TotalPages)
}

func TestAnnouncementListWithoutClaims(t *testing.T) {
	hdl := newAnnouncementHandler(&stubAnnouncementRepo{})

	c, rec := testContext(t, http.MethodGet, "/announcements", false)
	hdl.List(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAnnouncementStatsEndpoint(t *testing.T) {
	hdl := newAnnouncementHandler(&stubAnnouncementRepo{})

	c, rec := testContext(t, http.MethodGet, "/announcements/stats", true)
	hdl.Stats(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	var stats models.AnnouncementStats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Published)
}

func TestAnnouncementDeleteMissingReturns404(t *testing.T) {
	hdl := newAnnouncementHandler(&stubAnnouncementRepo{deleteErr: sql.ErrNoRows})

	c, rec := testContext(t, http.MethodDelete, "/announcements/missing", true)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	hdl.Delete(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnnouncementGetMissingReturns404(t *testing.T) {
	hdl := newAnnouncementHandler(&stubAnnouncementRepo{})

	c, rec := testContext(t, http.MethodGet, "/announcements/missing", true)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	hdl.Get(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
