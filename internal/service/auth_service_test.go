package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/edupanel/school-admin-api/internal/models"
	appErrors "github.com/edupanel/school-admin-api/pkg/errors"
)

type mockAuthRepo struct {
	user             *models.User
	findErr          error
	school           *models.School
	schoolErr        error
	lastLoginUpdated bool
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.user, nil
}

func (m *mockAuthRepo) FindSchool(ctx context.Context, id string) (*models.School, error) {
	if m.schoolErr != nil {
		return nil, m.schoolErr
	}
	return m.school, nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func authFixture(t *testing.T) *mockAuthRepo {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	require.NoError(t, err)
	return &mockAuthRepo{
		user: &models.User{
			ID: "u1", SchoolID: "s1", Email: "admin@greenhill.edu",
			PasswordHash: string(hash), FullName: "School Admin",
			Role: models.RoleAdmin, Active: true,
		},
		school: &models.School{ID: "s1", Slug: "greenhill", Name: "Greenhill Academy", Active: true},
	}
}

func TestLoginIssuesTenantScopedToken(t *testing.T) {
	repo := authFixture(t)
	audit := &mockAudit{}
	svc := NewAuthService(repo, audit, nil, nil, AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, Issuer: "school-admin-api"})

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@greenhill.edu", Password: "password"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, "s1", res.School.ID)
	assert.True(t, repo.lastLoginUpdated)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditActionLogin, audit.entries[0].Action)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "s1", claims.SchoolID)
	assert.Equal(t, "greenhill", claims.SchoolSlug)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestLoginWrongPassword(t *testing.T) {
	repo := authFixture(t)
	svc := NewAuthService(repo, nil, nil, nil, AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@greenhill.edu", Password: "wrong"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
}

func TestLoginUnknownEmailHidesExistence(t *testing.T) {
	repo := &mockAuthRepo{findErr: sql.ErrNoRows}
	svc := NewAuthService(repo, nil, nil, nil, AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ghost@greenhill.edu", Password: "password"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
}

func TestLoginInactiveUser(t *testing.T) {
	repo := authFixture(t)
	repo.user.Active = false
	svc := NewAuthService(repo, nil, nil, nil, AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@greenhill.edu", Password: "password"})
	assert.ErrorIs(t, err, appErrors.ErrInactiveAccount)
}

func TestLoginMissingSchool(t *testing.T) {
	repo := authFixture(t)
	repo.schoolErr = sql.ErrNoRows
	svc := NewAuthService(repo, nil, nil, nil, AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@greenhill.edu", Password: "password"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrTenantUnresolved.Code, appErr.Code)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	repo := authFixture(t)
	issuer := NewAuthService(repo, nil, nil, nil, AuthConfig{AccessTokenSecret: "secret-a", AccessTokenExpiry: time.Hour})
	verifier := NewAuthService(repo, nil, nil, nil, AuthConfig{AccessTokenSecret: "secret-b", AccessTokenExpiry: time.Hour})

	res, err := issuer.Login(context.Background(), models.LoginRequest{Email: "admin@greenhill.edu", Password: "password"})
	require.NoError(t, err)

	_, err = verifier.ValidateToken(res.AccessToken)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}
