package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/hostelhub/residence-api/internal/models"
	appErrors "github.com/hostelhub/residence-api/pkg/errors"
)

type mockUserRepo struct {
	users      map[string]*models.User
	auditLogs  []*models.AuditLog
	revoked    []string
	lastFilter models.UserFilter
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*models.User)}
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	m.lastFilter = filter
	var out []models.User
	for _, user := range m.users {
		if filter.HostelID != "" && (user.HostelID == nil || *user.HostelID != filter.HostelID) {
			continue
		}
		out = append(out, *user)
	}
	return out, len(out), nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, user := range m.users {
		if user.Email == strings.ToLower(email) {
			copied := *user
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	copied := *user
	m.users[user.ID] = &copied
	return nil
}

func (m *mockUserRepo) SetActive(ctx context.Context, id string, active bool) error {
	user, ok := m.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	user.Active = active
	return nil
}

func (m *mockUserRepo) RevokeUserTokens(ctx context.Context, userID string) error {
	m.revoked = append(m.revoked, userID)
	return nil
}

func (m *mockUserRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func (m *mockUserRepo) ListAuditLogs(ctx context.Context, resource, resourceID string, limit int) ([]models.AuditLog, error) {
	var out []models.AuditLog
	for _, log := range m.auditLogs {
		if log.Resource == resource && log.ResourceID != nil && *log.ResourceID == resourceID {
			out = append(out, *log)
		}
	}
	return out, nil
}

func newUserService() (*UserService, *mockUserRepo) {
	repo := newMockUserRepo()
	return NewUserService(repo, nil, zap.NewNop()), repo
}

func validUserRequest() CreateUserRequest {
	return CreateUserRequest{
		Email:    "Warden@Hostel.Test",
		FullName: "  Meera Pillai  ",
		Role:     models.RoleSupervisor,
		Password: "long-enough-secret",
	}
}

func TestUserCreate(t *testing.T) {
	svc, repo := newUserService()

	user, err := svc.Create(context.Background(), validUserRequest(), staffActor())
	require.NoError(t, err)

	assert.Equal(t, "warden@hostel.test", user.Email)
	assert.Equal(t, "Meera Pillai", user.FullName)
	assert.True(t, user.Active)
	require.NotNil(t, user.HostelID)
	assert.Equal(t, testHostelID, *user.HostelID)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("long-enough-secret")))

	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, "USER_CREATE", repo.auditLogs[0].Action)
}

func TestUserCreateAdminNeedsSuperadmin(t *testing.T) {
	svc, _ := newUserService()
	req := validUserRequest()
	req.Role = models.RoleAdmin

	_, err := svc.Create(context.Background(), req, staffActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	super := &models.JWTClaims{UserID: "user-root", Role: models.RoleSuperAdmin}
	hostel := "3da5cf3c-74e6-4c0a-9c82-333333333301"
	req.HostelID = &hostel
	user, err := svc.Create(context.Background(), req, super)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, user.Role)
}

func TestUserCreateForeignHostelForbidden(t *testing.T) {
	svc, _ := newUserService()
	req := validUserRequest()
	other := "3da5cf3c-74e6-4c0a-9c82-333333333302"
	req.HostelID = &other

	_, err := svc.Create(context.Background(), req, staffActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	svc, _ := newUserService()
	_, err := svc.Create(context.Background(), validUserRequest(), staffActor())
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), validUserRequest(), staffActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestUserCreateValidation(t *testing.T) {
	svc, _ := newUserService()
	req := validUserRequest()
	req.Password = "short"

	_, err := svc.Create(context.Background(), req, staffActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserListScopedToHostel(t *testing.T) {
	svc, repo := newUserService()
	_, err := svc.Create(context.Background(), validUserRequest(), staffActor())
	require.NoError(t, err)

	users, pagination, err := svc.List(context.Background(), models.UserFilter{}, staffActor())
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, testHostelID, repo.lastFilter.HostelID)
	assert.Equal(t, 1, pagination.TotalCount)

	_, _, err = svc.List(context.Background(), models.UserFilter{}, aliceActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestUserGetHiddenAcrossHostels(t *testing.T) {
	svc, _ := newUserService()
	user, err := svc.Create(context.Background(), validUserRequest(), staffActor())
	require.NoError(t, err)

	foreign := staffActor()
	foreign.HostelID = "hostel-2"
	_, err = svc.Get(context.Background(), user.ID, foreign)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestUserDeactivateRevokesTokens(t *testing.T) {
	svc, repo := newUserService()
	user, err := svc.Create(context.Background(), validUserRequest(), staffActor())
	require.NoError(t, err)

	require.NoError(t, svc.SetActive(context.Background(), user.ID, false, staffActor()))
	assert.False(t, repo.users[user.ID].Active)
	assert.Equal(t, []string{user.ID}, repo.revoked)

	// Reactivation does not revoke again.
	require.NoError(t, svc.SetActive(context.Background(), user.ID, true, staffActor()))
	assert.Len(t, repo.revoked, 1)
}

func TestUserCannotDeactivateSelf(t *testing.T) {
	svc, repo := newUserService()
	actor := staffActor()
	hostel := testHostelID
	repo.users[actor.UserID] = &models.User{ID: actor.UserID, Email: "self@hostel.test", Role: models.RoleAdmin, HostelID: &hostel, Active: true}

	err := svc.SetActive(context.Background(), actor.UserID, false, actor)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserAuditTrail(t *testing.T) {
	svc, _ := newUserService()
	user, err := svc.Create(context.Background(), validUserRequest(), staffActor())
	require.NoError(t, err)
	require.NoError(t, svc.SetActive(context.Background(), user.ID, false, staffActor()))

	entries, err := svc.AuditTrail(context.Background(), "user", user.ID, 10, staffActor())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "USER_CREATE", entries[0].Action)
	assert.Equal(t, "USER_SET_ACTIVE", entries[1].Action)

	_, err = svc.AuditTrail(context.Background(), "user", user.ID, 10, aliceActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
