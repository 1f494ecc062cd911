package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/maktab-hq/maktab-api/internal/models"
	appErrors "github.com/maktab-hq/maktab-api/pkg/errors"
)

type mockAuthRepo struct {
	users         map[string]*models.User
	refreshTokens map[string]*models.RefreshToken
	auditLogs     []*models.AuditLog

	lastLoginSet   bool
	revokeAllCalls int
}

func newMockAuthRepo(users ...*models.User) *mockAuthRepo {
	repo := &mockAuthRepo{
		users:         make(map[string]*models.User),
		refreshTokens: make(map[string]*models.RefreshToken),
	}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (m *mockAuthRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) UpdateLastLogin(_ context.Context, _ string, _ time.Time) error {
	m.lastLoginSet = true
	return nil
}

func (m *mockAuthRepo) UpdatePassword(_ context.Context, id, passwordHash string, _ time.Time) error {
	if u, ok := m.users[id]; ok {
		u.PasswordHash = passwordHash
	}
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(_ context.Context, userID string) error {
	m.revokeAllCalls++
	for _, token := range m.refreshTokens {
		if token.UserID == userID {
			token.Revoked = true
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(_ context.Context, token *models.RefreshToken) error {
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(_ context.Context, token string) (*models.RefreshToken, error) {
	stored, ok := m.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return stored, nil
}

func (m *mockAuthRepo) RevokeRefreshToken(_ context.Context, id string, revokedAt time.Time) error {
	for _, token := range m.refreshTokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func newAuthFixture(repo *mockAuthRepo, singleSession bool) *AuthService {
	return NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "maktab-api",
		Audience:           []string{"maktab-api"},
		SingleSession:      singleSession,
	})
}

func hashOf(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestAuthLoginIssuesScopedTokens(t *testing.T) {
	repo := newMockAuthRepo(&models.User{
		ID: "u1", CampusID: "campus-1", Email: "admin@school.pk",
		PasswordHash: hashOf(t, "secret123"), FullName: "Campus Admin",
		Role: models.RoleAdmin, Active: true,
	})
	svc := newAuthFixture(repo, false)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@school.pk", Password: "secret123"})
	require.NoError(t, err)

	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, "campus-1", res.User.CampusID)
	assert.True(t, repo.lastLoginSet)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionLogin, repo.auditLogs[0].Action)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "campus-1", claims.CampusID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestAuthLoginRejectsBadPasswordAndInactive(t *testing.T) {
	repo := newMockAuthRepo(&models.User{
		ID: "u1", Email: "admin@school.pk", PasswordHash: hashOf(t, "secret123"), Active: true,
	})
	svc := newAuthFixture(repo, false)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@school.pk", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)

	repo.users["u1"].Active = false
	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "admin@school.pk", Password: "secret123"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthSingleSessionRevokesOlderLogins(t *testing.T) {
	repo := newMockAuthRepo(&models.User{
		ID: "u1", Email: "admin@school.pk", PasswordHash: hashOf(t, "secret123"), Active: true,
	})
	svc := newAuthFixture(repo, true)

	first, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@school.pk", Password: "secret123"})
	require.NoError(t, err)
	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "admin@school.pk", Password: "secret123"})
	require.NoError(t, err)

	assert.Equal(t, 2, repo.revokeAllCalls)
	assert.True(t, repo.refreshTokens[first.RefreshToken].Revoked)
}

func TestAuthRefreshRotatesToken(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "u1", Email: "admin@school.pk", Active: true, Role: models.RoleAdmin})
	repo.refreshTokens["old-token"] = &models.RefreshToken{
		ID: "rt1", UserID: "u1", Token: "old-token", ExpiresAt: time.Now().Add(time.Hour),
	}
	svc := newAuthFixture(repo, false)

	res, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old-token"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEqual(t, "old-token", res.RefreshToken)
	assert.True(t, repo.refreshTokens["old-token"].Revoked)
}

func TestAuthRefreshRejectsExpiredOrRevoked(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "u1", Email: "admin@school.pk", Active: true})
	repo.refreshTokens["stale"] = &models.RefreshToken{
		ID: "rt1", UserID: "u1", Token: "stale", ExpiresAt: time.Now().Add(-time.Minute),
	}
	svc := newAuthFixture(repo, false)

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "stale"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	repo.refreshTokens["burnt"] = &models.RefreshToken{
		ID: "rt2", UserID: "u1", Token: "burnt", ExpiresAt: time.Now().Add(time.Hour), Revoked: true,
	}
	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "burnt"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthLogoutChecksOwnership(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "u1", Active: true})
	repo.refreshTokens["mine"] = &models.RefreshToken{
		ID: "rt1", UserID: "u1", Token: "mine", ExpiresAt: time.Now().Add(time.Hour),
	}
	svc := newAuthFixture(repo, false)

	err := svc.Logout(context.Background(), "mine", "somebody-else", models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.False(t, repo.refreshTokens["mine"].Revoked)

	require.NoError(t, svc.Logout(context.Background(), "mine", "u1", models.LoginRequest{}))
	assert.True(t, repo.refreshTokens["mine"].Revoked)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionLogout, repo.auditLogs[0].Action)
}

func TestAuthChangePasswordRevokesSessions(t *testing.T) {
	oldHash := hashOf(t, "old-secret")
	repo := newMockAuthRepo(&models.User{ID: "u1", PasswordHash: oldHash, Active: true})
	repo.refreshTokens["live"] = &models.RefreshToken{
		ID: "rt1", UserID: "u1", Token: "live", ExpiresAt: time.Now().Add(time.Hour),
	}
	svc := newAuthFixture(repo, false)

	err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{
		OldPassword: "bad-guess", NewPassword: "brand-new",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{
		OldPassword: "old-secret", NewPassword: "brand-new",
	}))
	assert.NotEqual(t, oldHash, repo.users["u1"].PasswordHash)
	assert.True(t, repo.refreshTokens["live"].Revoked)
}

func TestValidateTokenRejectsForeignSignature(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "u1", Email: "admin@school.pk", PasswordHash: hashOf(t, "secret123"), Active: true})
	issuer := newAuthFixture(repo, false)

	res, err := issuer.Login(context.Background(), models.LoginRequest{Email: "admin@school.pk", Password: "secret123"})
	require.NoError(t, err)

	other := NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret: "different-secret",
		AccessTokenExpiry: time.Hour,
	})
	_, err = other.ValidateToken(res.AccessToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
