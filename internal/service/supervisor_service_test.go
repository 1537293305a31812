package service

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hostelhub/residence-api/internal/dto"
	"github.com/hostelhub/residence-api/internal/models"
	appErrors "github.com/hostelhub/residence-api/pkg/errors"
)

type mockSupervisorRepo struct {
	supervisors map[string]*models.Supervisor
	nextID      int
	counts      [4]int
	performance models.SupervisorPerformance
	countsCalls int
	lastSince   time.Time
}

func newMockSupervisorRepo() *mockSupervisorRepo {
	return &mockSupervisorRepo{supervisors: make(map[string]*models.Supervisor)}
}

func (m *mockSupervisorRepo) Create(ctx context.Context, supervisor *models.Supervisor) error {
	m.nextID++
	supervisor.ID = fmt.Sprintf("sup-%d", m.nextID)
	copied := *supervisor
	m.supervisors[supervisor.ID] = &copied
	return nil
}

func (m *mockSupervisorRepo) GetByID(ctx context.Context, id string) (*models.Supervisor, error) {
	supervisor, ok := m.supervisors[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *supervisor
	return &copied, nil
}

func (m *mockSupervisorRepo) GetByUserID(ctx context.Context, userID string) (*models.Supervisor, error) {
	for _, supervisor := range m.supervisors {
		if supervisor.UserID == userID {
			copied := *supervisor
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockSupervisorRepo) ListByHostel(ctx context.Context, hostelID string) ([]models.Supervisor, error) {
	var out []models.Supervisor
	for _, supervisor := range m.supervisors {
		if supervisor.HostelID == hostelID {
			out = append(out, *supervisor)
		}
	}
	return out, nil
}

func (m *mockSupervisorRepo) UpdatePermissions(ctx context.Context, id string, permissions []string, template *string) error {
	supervisor, ok := m.supervisors[id]
	if !ok {
		return sql.ErrNoRows
	}
	supervisor.Permissions = pq.StringArray(permissions)
	supervisor.Template = template
	return nil
}

func (m *mockSupervisorRepo) UpdateFloors(ctx context.Context, id string, floors []int64) error {
	supervisor, ok := m.supervisors[id]
	if !ok {
		return sql.ErrNoRows
	}
	supervisor.Floors = pq.Int64Array(floors)
	return nil
}

func (m *mockSupervisorRepo) SetActive(ctx context.Context, id string, active bool) error {
	supervisor, ok := m.supervisors[id]
	if !ok {
		return sql.ErrNoRows
	}
	supervisor.Active = active
	return nil
}

func (m *mockSupervisorRepo) Performance(ctx context.Context, supervisor *models.Supervisor, since time.Time) (*models.SupervisorPerformance, error) {
	m.lastSince = since
	copied := m.performance
	copied.SupervisorID = supervisor.ID
	return &copied, nil
}

func (m *mockSupervisorRepo) DashboardCounts(ctx context.Context, supervisor *models.Supervisor, today time.Time) (int, int, int, int, error) {
	m.countsCalls++
	return m.counts[0], m.counts[1], m.counts[2], m.counts[3], nil
}

func writeTemplateFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "templates.yaml")
	content := `templates:
  - name: FULL_ACCESS
    description: Everything
    permissions:
      - ANNOUNCEMENT_CREATE
      - ANNOUNCEMENT_APPROVE
      - ATTENDANCE_MARK
  - name: READ_ONLY
    description: Observation only
    permissions:
      - STUDENT_VIEW
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newSupervisorFixture(t *testing.T) (*SupervisorService, *mockSupervisorRepo, *mapCache) {
	t.Helper()
	templates, err := LoadPermissionTemplates(writeTemplateFile(t))
	require.NoError(t, err)
	repo := newMockSupervisorRepo()
	cache := newMapCache()
	svc := NewSupervisorService(repo, &mockAuditSink{}, cache, time.Minute, templates, nil, zap.NewNop())
	return svc, repo, cache
}

func validSupervisorRequest() dto.CreateSupervisorRequest {
	return dto.CreateSupervisorRequest{
		UserID:   "9d04bd92-4afc-4aa5-b2e8-999999999901",
		FullName: "Priya Nair",
		Floors:   []int64{1, 2},
		Template: "full_access",
	}
}

func TestLoadPermissionTemplates(t *testing.T) {
	templates, err := LoadPermissionTemplates(writeTemplateFile(t))
	require.NoError(t, err)

	require.Len(t, templates, 2)
	full, ok := templates["FULL_ACCESS"]
	require.True(t, ok)
	assert.Equal(t, []string{"ANNOUNCEMENT_CREATE", "ANNOUNCEMENT_APPROVE", "ATTENDANCE_MARK"}, full.Permissions)

	_, err = LoadPermissionTemplates(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestSupervisorCreate(t *testing.T) {
	svc, repo, _ := newSupervisorFixture(t)

	supervisor, err := svc.Create(context.Background(), validSupervisorRequest(), staffActor())
	require.NoError(t, err)

	assert.True(t, supervisor.Active)
	assert.Equal(t, testHostelID, supervisor.HostelID)
	require.NotNil(t, supervisor.Template)
	assert.Equal(t, "FULL_ACCESS", *supervisor.Template)
	assert.Contains(t, supervisor.Permissions, "ATTENDANCE_MARK")
	assert.Len(t, repo.supervisors, 1)
}

func TestSupervisorCreateUnknownTemplate(t *testing.T) {
	svc, _, _ := newSupervisorFixture(t)
	req := validSupervisorRequest()
	req.Template = "SUPERPOWERS"

	_, err := svc.Create(context.Background(), req, staffActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSupervisorCreateDuplicateUser(t *testing.T) {
	svc, _, _ := newSupervisorFixture(t)
	_, err := svc.Create(context.Background(), validSupervisorRequest(), staffActor())
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), validSupervisorRequest(), staffActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestSupervisorCreateRequiresAdmin(t *testing.T) {
	svc, _, _ := newSupervisorFixture(t)

	_, err := svc.Create(context.Background(), validSupervisorRequest(), supervisorActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestSupervisorUpdatePermissionsExactlyOneSource(t *testing.T) {
	svc, _, _ := newSupervisorFixture(t)
	supervisor, err := svc.Create(context.Background(), validSupervisorRequest(), staffActor())
	require.NoError(t, err)

	readOnly := "READ_ONLY"
	both := dto.UpdatePermissionsRequest{Template: &readOnly, Permissions: []string{"STUDENT_VIEW"}}
	_, err = svc.UpdatePermissions(context.Background(), supervisor.ID, both, staffActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	neither := dto.UpdatePermissionsRequest{}
	_, err = svc.UpdatePermissions(context.Background(), supervisor.ID, neither, staffActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSupervisorUpdatePermissionsFromTemplate(t *testing.T) {
	svc, _, _ := newSupervisorFixture(t)
	supervisor, err := svc.Create(context.Background(), validSupervisorRequest(), staffActor())
	require.NoError(t, err)

	readOnly := "read_only"
	updated, err := svc.UpdatePermissions(context.Background(), supervisor.ID, dto.UpdatePermissionsRequest{Template: &readOnly}, staffActor())
	require.NoError(t, err)
	assert.Equal(t, pq.StringArray{"STUDENT_VIEW"}, updated.Permissions)
	require.NotNil(t, updated.Template)
	assert.Equal(t, "READ_ONLY", *updated.Template)
}

func TestSupervisorUpdatePermissionsExplicitList(t *testing.T) {
	svc, _, _ := newSupervisorFixture(t)
	supervisor, err := svc.Create(context.Background(), validSupervisorRequest(), staffActor())
	require.NoError(t, err)

	req := dto.UpdatePermissionsRequest{Permissions: []string{"ATTENDANCE_MARK", "STUDENT_VIEW"}}
	updated, err := svc.UpdatePermissions(context.Background(), supervisor.ID, req, staffActor())
	require.NoError(t, err)
	assert.Equal(t, pq.StringArray{"ATTENDANCE_MARK", "STUDENT_VIEW"}, updated.Permissions)
	assert.Nil(t, updated.Template)
}

func TestSupervisorUpdateFloors(t *testing.T) {
	svc, _, _ := newSupervisorFixture(t)
	supervisor, err := svc.Create(context.Background(), validSupervisorRequest(), staffActor())
	require.NoError(t, err)

	updated, err := svc.UpdateFloors(context.Background(), supervisor.ID, dto.UpdateFloorsRequest{Floors: []int64{3}}, staffActor())
	require.NoError(t, err)
	assert.Equal(t, pq.Int64Array{3}, updated.Floors)
}

func TestSupervisorHiddenAcrossHostels(t *testing.T) {
	svc, _, _ := newSupervisorFixture(t)
	supervisor, err := svc.Create(context.Background(), validSupervisorRequest(), staffActor())
	require.NoError(t, err)

	foreign := staffActor()
	foreign.HostelID = "hostel-2"
	_, err = svc.Get(context.Background(), supervisor.ID, foreign)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSupervisorDashboard(t *testing.T) {
	svc, repo, _ := newSupervisorFixture(t)
	supervisor, err := svc.Create(context.Background(), validSupervisorRequest(), staffActor())
	require.NoError(t, err)
	repo.counts = [4]int{2, 5, 1, 3}
	repo.performance = models.SupervisorPerformance{AnnouncementsCreated: 7, PeriodDays: 30}

	actor := supervisorActor()
	actor.UserID = supervisor.UserID

	dashboard, err := svc.Dashboard(context.Background(), actor)
	require.NoError(t, err)
	assert.Equal(t, 2, dashboard.PendingApprovals)
	assert.Equal(t, 5, dashboard.OpenMaintenance)
	assert.Equal(t, 3, dashboard.UnreadUrgent)
	assert.Equal(t, 7, dashboard.Performance.AnnouncementsCreated)

	// Second read comes from the cache.
	_, err = svc.Dashboard(context.Background(), actor)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.countsCalls)
}

func TestSupervisorDashboardInactive(t *testing.T) {
	svc, _, _ := newSupervisorFixture(t)
	supervisor, err := svc.Create(context.Background(), validSupervisorRequest(), staffActor())
	require.NoError(t, err)
	require.NoError(t, svc.SetActive(context.Background(), supervisor.ID, false, staffActor()))

	actor := supervisorActor()
	actor.UserID = supervisor.UserID
	_, err = svc.Dashboard(context.Background(), actor)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestSupervisorDashboardWithoutRecord(t *testing.T) {
	svc, _, _ := newSupervisorFixture(t)

	_, err := svc.Dashboard(context.Background(), supervisorActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestSupervisorPerformanceWindowClamped(t *testing.T) {
	svc, repo, _ := newSupervisorFixture(t)
	supervisor, err := svc.Create(context.Background(), validSupervisorRequest(), staffActor())
	require.NoError(t, err)

	_, err = svc.Performance(context.Background(), supervisor.ID, 4000, staffActor())
	require.NoError(t, err)
	expected := time.Now().UTC().AddDate(0, 0, -30)
	assert.WithinDuration(t, expected, repo.lastSince, time.Minute)
}
