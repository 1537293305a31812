package service

import (
	"context"
	"database/sql"
	"strings"
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

type mockAttendanceRepo struct {
	records    map[string]models.AttendanceRecord
	reportRows []models.AttendanceReportRow
	summary    *models.AttendanceSummary
	absentees  []string
	minNights  int
	lastFilter models.AttendanceFilter
}

func newMockAttendanceRepo() *mockAttendanceRepo {
	return &mockAttendanceRepo{records: make(map[string]models.AttendanceRecord)}
}

func attendanceKey(studentID string, date time.Time) string {
	return studentID + "/" + date.Format("2006-01-02")
}

func (m *mockAttendanceRepo) BulkUpsert(ctx context.Context, records []models.AttendanceRecord) error {
	for _, record := range records {
		m.records[attendanceKey(record.StudentID, record.Date)] = record
	}
	return nil
}

func (m *mockAttendanceRepo) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	m.lastFilter = filter
	var out []models.AttendanceRecord
	for _, record := range m.records {
		if filter.StudentID != "" && record.StudentID != filter.StudentID {
			continue
		}
		out = append(out, record)
	}
	return out, len(out), nil
}

func (m *mockAttendanceRepo) DailyReport(ctx context.Context, hostelID string, date time.Time) ([]models.AttendanceReportRow, error) {
	return m.reportRows, nil
}

func (m *mockAttendanceRepo) Summary(ctx context.Context, studentID string, from, to time.Time) (*models.AttendanceSummary, error) {
	if m.summary == nil {
		return &models.AttendanceSummary{StudentID: studentID}, nil
	}
	copied := *m.summary
	copied.StudentID = studentID
	return &copied, nil
}

func (m *mockAttendanceRepo) ListConsecutiveAbsentees(ctx context.Context, hostelID string, since time.Time, minNights int) ([]string, error) {
	m.minNights = minNights
	return m.absentees, nil
}

type mockSupervisorLookup struct {
	supervisors map[string]*models.Supervisor
}

func (m *mockSupervisorLookup) GetByUserID(ctx context.Context, userID string) (*models.Supervisor, error) {
	supervisor, ok := m.supervisors[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return supervisor, nil
}

type mockAttendanceRoster struct {
	byID     map[string]*models.Student
	byUserID map[string]*models.Student
}

func (m *mockAttendanceRoster) GetByID(ctx context.Context, id string) (*models.Student, error) {
	student, ok := m.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return student, nil
}

func (m *mockAttendanceRoster) GetByUserID(ctx context.Context, userID string) (*models.Student, error) {
	student, ok := m.byUserID[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return student, nil
}

func newAttendanceFixture() (*AttendanceService, *mockAttendanceRepo, *mockSupervisorLookup, *mockAuditSink) {
	repo := newMockAttendanceRepo()
	supervisors := &mockSupervisorLookup{supervisors: make(map[string]*models.Supervisor)}
	alice := &models.Student{ID: studentIDAlice, UserID: "user-alice", HostelID: testHostelID, FullName: "Alice Tan", RoomID: strPtr(roomID101), Floor: intPtr(1), Active: true}
	dan := &models.Student{ID: studentIDDan, UserID: "user-dan", HostelID: testHostelID, FullName: "Dan Ong", RoomID: strPtr(roomID201), Floor: intPtr(2), Active: true}
	roster := &mockAttendanceRoster{
		byID:     map[string]*models.Student{alice.ID: alice, dan.ID: dan},
		byUserID: map[string]*models.Student{alice.UserID: alice, dan.UserID: dan},
	}
	audit := &mockAuditSink{}
	svc := NewAttendanceService(repo, supervisors, roster, audit, nil, zap.NewNop())
	return svc, repo, supervisors, audit
}

func supervisorActor() *models.JWTClaims {
	return &models.JWTClaims{UserID: "user-sup", Role: models.RoleSupervisor, HostelID: testHostelID}
}

func yesterday() time.Time {
	return time.Now().UTC().Add(-24 * time.Hour)
}

func TestAttendanceMark(t *testing.T) {
	svc, repo, _, audit := newAttendanceFixture()
	req := dto.MarkAttendanceRequest{
		Date: yesterday(),
		Entries: []dto.AttendanceEntry{
			{StudentID: studentIDAlice, Status: models.AttendancePresent},
			{StudentID: studentIDDan, Status: models.AttendanceAbsent, Note: strPtr("left for the weekend")},
		},
	}

	count, err := svc.Mark(context.Background(), req, staffActor())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	require.Len(t, repo.records, 2)

	stored := repo.records[attendanceKey(studentIDDan, yesterday().Truncate(24*time.Hour))]
	assert.Equal(t, models.AttendanceAbsent, stored.Status)
	assert.Equal(t, testHostelID, stored.HostelID)
	assert.Equal(t, "user-1", stored.MarkedBy)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionAttendanceMark, audit.logs[0].Action)
}

func TestAttendanceMarkOverwritesSameDay(t *testing.T) {
	svc, repo, _, _ := newAttendanceFixture()
	mark := func(status models.AttendanceStatus) {
		req := dto.MarkAttendanceRequest{
			Date:    yesterday(),
			Entries: []dto.AttendanceEntry{{StudentID: studentIDAlice, Status: status}},
		}
		_, err := svc.Mark(context.Background(), req, staffActor())
		require.NoError(t, err)
	}

	mark(models.AttendanceAbsent)
	mark(models.AttendancePresent)

	require.Len(t, repo.records, 1)
	stored := repo.records[attendanceKey(studentIDAlice, yesterday().Truncate(24*time.Hour))]
	assert.Equal(t, models.AttendancePresent, stored.Status)
}

func TestAttendanceMarkRejectsFutureDate(t *testing.T) {
	svc, _, _, _ := newAttendanceFixture()
	req := dto.MarkAttendanceRequest{
		Date:    time.Now().UTC().Add(48 * time.Hour),
		Entries: []dto.AttendanceEntry{{StudentID: studentIDAlice, Status: models.AttendancePresent}},
	}

	_, err := svc.Mark(context.Background(), req, staffActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAttendanceMarkRejectsDuplicates(t *testing.T) {
	svc, _, _, _ := newAttendanceFixture()
	req := dto.MarkAttendanceRequest{
		Date: yesterday(),
		Entries: []dto.AttendanceEntry{
			{StudentID: studentIDAlice, Status: models.AttendancePresent},
			{StudentID: studentIDAlice, Status: models.AttendanceAbsent},
		},
	}

	_, err := svc.Mark(context.Background(), req, staffActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAttendanceMarkRejectsUnknownStudent(t *testing.T) {
	svc, _, _, _ := newAttendanceFixture()
	req := dto.MarkAttendanceRequest{
		Date:    yesterday(),
		Entries: []dto.AttendanceEntry{{StudentID: "7be29b70-28fa-4fe3-b0c6-777777777701", Status: models.AttendancePresent}},
	}

	_, err := svc.Mark(context.Background(), req, staffActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAttendanceMarkForbiddenForStudents(t *testing.T) {
	svc, _, _, _ := newAttendanceFixture()
	req := dto.MarkAttendanceRequest{
		Date:    yesterday(),
		Entries: []dto.AttendanceEntry{{StudentID: studentIDAlice, Status: models.AttendancePresent}},
	}

	_, err := svc.Mark(context.Background(), req, aliceActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAttendanceSupervisorFloorRestriction(t *testing.T) {
	svc, _, supervisors, _ := newAttendanceFixture()
	supervisors.supervisors["user-sup"] = &models.Supervisor{
		ID:          "sup-1",
		UserID:      "user-sup",
		HostelID:    testHostelID,
		Floors:      pq.Int64Array{1},
		Permissions: pq.StringArray{string(models.PermAttendanceMark)},
		Active:      true,
	}

	onFloor := dto.MarkAttendanceRequest{
		Date:    yesterday(),
		Entries: []dto.AttendanceEntry{{StudentID: studentIDAlice, Status: models.AttendancePresent}},
	}
	count, err := svc.Mark(context.Background(), onFloor, supervisorActor())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	offFloor := dto.MarkAttendanceRequest{
		Date:    yesterday(),
		Entries: []dto.AttendanceEntry{{StudentID: studentIDDan, Status: models.AttendancePresent}},
	}
	_, err = svc.Mark(context.Background(), offFloor, supervisorActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAttendanceSupervisorNeedsPermission(t *testing.T) {
	svc, _, supervisors, _ := newAttendanceFixture()
	supervisors.supervisors["user-sup"] = &models.Supervisor{
		ID:       "sup-1",
		UserID:   "user-sup",
		HostelID: testHostelID,
		Floors:   pq.Int64Array{1},
		Active:   true,
	}
	req := dto.MarkAttendanceRequest{
		Date:    yesterday(),
		Entries: []dto.AttendanceEntry{{StudentID: studentIDAlice, Status: models.AttendancePresent}},
	}

	_, err := svc.Mark(context.Background(), req, supervisorActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAttendanceInactiveSupervisor(t *testing.T) {
	svc, _, supervisors, _ := newAttendanceFixture()
	supervisors.supervisors["user-sup"] = &models.Supervisor{
		ID:          "sup-1",
		UserID:      "user-sup",
		HostelID:    testHostelID,
		Permissions: pq.StringArray{string(models.PermAttendanceMark)},
		Active:      false,
	}
	req := dto.MarkAttendanceRequest{
		Date:    yesterday(),
		Entries: []dto.AttendanceEntry{{StudentID: studentIDAlice, Status: models.AttendancePresent}},
	}

	_, err := svc.Mark(context.Background(), req, supervisorActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAttendanceSupervisorWithoutFloorsIsUnrestricted(t *testing.T) {
	svc, _, supervisors, _ := newAttendanceFixture()
	supervisors.supervisors["user-sup"] = &models.Supervisor{
		ID:          "sup-1",
		UserID:      "user-sup",
		HostelID:    testHostelID,
		Permissions: pq.StringArray{string(models.PermAttendanceMark)},
		Active:      true,
	}
	req := dto.MarkAttendanceRequest{
		Date: yesterday(),
		Entries: []dto.AttendanceEntry{
			{StudentID: studentIDAlice, Status: models.AttendancePresent},
			{StudentID: studentIDDan, Status: models.AttendancePresent},
		},
	}

	count, err := svc.Mark(context.Background(), req, supervisorActor())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestAttendanceListScopesStudents(t *testing.T) {
	svc, repo, _, _ := newAttendanceFixture()
	repo.records["seed"] = models.AttendanceRecord{StudentID: studentIDAlice, Status: models.AttendancePresent}
	repo.records["other"] = models.AttendanceRecord{StudentID: studentIDDan, Status: models.AttendanceAbsent}

	records, _, err := svc.List(context.Background(), models.AttendanceFilter{}, aliceActor())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, studentIDAlice, records[0].StudentID)
	assert.Equal(t, studentIDAlice, repo.lastFilter.StudentID)
	assert.Equal(t, testHostelID, repo.lastFilter.HostelID)
}

func TestAttendanceDailyReportForbiddenForStudents(t *testing.T) {
	svc, _, _, _ := newAttendanceFixture()

	_, err := svc.DailyReport(context.Background(), yesterday(), aliceActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAttendanceExportDailyReport(t *testing.T) {
	svc, repo, _, _ := newAttendanceFixture()
	repo.reportRows = []models.AttendanceReportRow{
		{StudentID: studentIDAlice, FullName: "Alice Tan", RoomID: strPtr(roomID101), Floor: intPtr(1), Status: models.AttendancePresent},
		{StudentID: studentIDDan, FullName: "Dan Ong", Status: models.AttendanceAbsent, Note: strPtr("not seen since dinner")},
	}

	payload, contentType, err := svc.ExportDailyReport(context.Background(), dto.AttendanceReportQuery{Date: yesterday(), Format: "csv"}, staffActor())
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	text := string(payload)
	assert.True(t, strings.HasPrefix(text, "Student,Room,Floor,Status,Note"))
	assert.Contains(t, text, "Alice Tan")
	assert.Contains(t, text, "not seen since dinner")

	payload, contentType, err = svc.ExportDailyReport(context.Background(), dto.AttendanceReportQuery{Date: yesterday(), Format: "pdf"}, staffActor())
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", contentType)
	assert.True(t, strings.HasPrefix(string(payload), "%PDF"))
}

func TestAttendanceSummary(t *testing.T) {
	svc, repo, _, _ := newAttendanceFixture()
	repo.summary = &models.AttendanceSummary{TotalDays: 30, PresentDays: 27, AbsentDays: 3, AttendanceRate: 90}

	summary, err := svc.Summary(context.Background(), studentIDAlice, time.Time{}, time.Time{}, staffActor())
	require.NoError(t, err)
	assert.Equal(t, studentIDAlice, summary.StudentID)
	assert.Equal(t, 90.0, summary.AttendanceRate)

	// Students always get their own summary, whatever ID they pass.
	summary, err = svc.Summary(context.Background(), studentIDDan, time.Time{}, time.Time{}, aliceActor())
	require.NoError(t, err)
	assert.Equal(t, studentIDAlice, summary.StudentID)

	now := time.Now().UTC()
	_, err = svc.Summary(context.Background(), studentIDAlice, now, now.Add(-time.Hour), staffActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Summary(context.Background(), "8cf3ac81-39fb-4ff4-a1d7-888888888801", time.Time{}, time.Time{}, staffActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAttendanceSummaryHidesForeignStudents(t *testing.T) {
	svc, _, _, _ := newAttendanceFixture()
	actor := staffActor()
	actor.HostelID = "hostel-2"

	_, err := svc.Summary(context.Background(), studentIDAlice, time.Time{}, time.Time{}, actor)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAttendanceConsecutiveAbsentees(t *testing.T) {
	svc, repo, _, _ := newAttendanceFixture()
	repo.absentees = []string{studentIDDan}

	ids, err := svc.ConsecutiveAbsentees(context.Background(), 0, staffActor())
	require.NoError(t, err)
	assert.Equal(t, []string{studentIDDan}, ids)
	assert.Equal(t, 3, repo.minNights)

	_, err = svc.ConsecutiveAbsentees(context.Background(), 3, aliceActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
