package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/hostelhub/residence-api/internal/dto"
	"github.com/hostelhub/residence-api/internal/models"
	appErrors "github.com/hostelhub/residence-api/pkg/errors"
	"github.com/hostelhub/residence-api/pkg/export"
)

type attendanceStore interface {
	BulkUpsert(ctx context.Context, records []models.AttendanceRecord) error
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error)
	DailyReport(ctx context.Context, hostelID string, date time.Time) ([]models.AttendanceReportRow, error)
	Summary(ctx context.Context, studentID string, from, to time.Time) (*models.AttendanceSummary, error)
	ListConsecutiveAbsentees(ctx context.Context, hostelID string, since time.Time, minNights int) ([]string, error)
}

type supervisorLookup interface {
	GetByUserID(ctx context.Context, userID string) (*models.Supervisor, error)
}

type rosterStore interface {
	GetByID(ctx context.Context, id string) (*models.Student, error)
	GetByUserID(ctx context.Context, userID string) (*models.Student, error)
}

// AttendanceService records nightly roll calls and produces reports.
// Supervisors marking attendance are restricted to students on their
// assigned floors.
type AttendanceService struct {
	repo        attendanceStore
	supervisors supervisorLookup
	students    rosterStore
	audit       auditLogger
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAttendanceService constructs the service.
func NewAttendanceService(repo attendanceStore, supervisors supervisorLookup, students rosterStore, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{
		repo:        repo,
		supervisors: supervisors,
		students:    students,
		audit:       audit,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		validator:   validate,
		logger:      logger,
	}
}

// Mark records a bulk roll call for one date. Future dates are rejected;
// existing marks for the same (student, date) are overwritten.
func (s *AttendanceService) Mark(ctx context.Context, req dto.MarkAttendanceRequest, actor *models.JWTClaims) (int, error) {
	if actor == nil {
		return 0, appErrors.ErrUnauthorized
	}
	if actor.Role == models.RoleStudent {
		return 0, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	date := req.Date.UTC().Truncate(24 * time.Hour)
	if date.After(time.Now().UTC()) {
		return 0, appErrors.Clone(appErrors.ErrValidation, "attendance cannot be marked for future dates")
	}

	allowedFloors, err := s.floorRestriction(ctx, actor)
	if err != nil {
		return 0, err
	}

	seen := make(map[string]bool, len(req.Entries))
	records := make([]models.AttendanceRecord, 0, len(req.Entries))
	for _, entry := range req.Entries {
		if seen[entry.StudentID] {
			return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate entry for student %s", entry.StudentID))
		}
		seen[entry.StudentID] = true

		student, err := s.students.GetByID(ctx, entry.StudentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown student %s", entry.StudentID))
			}
			return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
		}
		if err := checkHostelScope(actor, student.HostelID); err != nil {
			return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("student %s is not in your hostel", entry.StudentID))
		}
		if allowedFloors != nil {
			if student.Floor == nil || !allowedFloors[*student.Floor] {
				return 0, appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("student %s is not on your assigned floors", entry.StudentID))
			}
		}
		records = append(records, models.AttendanceRecord{
			HostelID:  student.HostelID,
			StudentID: entry.StudentID,
			Date:      date,
			Status:    entry.Status,
			Note:      entry.Note,
			MarkedBy:  actor.UserID,
		})
	}

	if err := s.repo.BulkUpsert(ctx, records); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save attendance")
	}
	s.emitAudit(ctx, actor, date)
	return len(records), nil
}

// List returns attendance records. Students see only their own.
func (s *AttendanceService) List(ctx context.Context, filter models.AttendanceFilter, actor *models.JWTClaims) ([]models.AttendanceRecord, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleSuperAdmin {
		filter.HostelID = actor.HostelID
	}
	if actor.Role == models.RoleStudent {
		student, err := s.resolveStudent(ctx, actor)
		if err != nil {
			return nil, nil, err
		}
		filter.StudentID = student.ID
	}
	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	if pagination.Page < 1 {
		pagination.Page = 1
	}
	if pagination.PageSize < 1 {
		pagination.PageSize = 20
	}
	return records, pagination, nil
}

// DailyReport returns the full roster with each student's status for a date.
// Unmarked students are reported ABSENT.
func (s *AttendanceService) DailyReport(ctx context.Context, date time.Time, actor *models.JWTClaims) ([]models.AttendanceReportRow, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role == models.RoleStudent {
		return nil, appErrors.ErrForbidden
	}
	rows, err := s.repo.DailyReport(ctx, actor.HostelID, date.UTC().Truncate(24*time.Hour))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build daily report")
	}
	return rows, nil
}

// ExportDailyReport renders the daily report as CSV or PDF.
func (s *AttendanceService) ExportDailyReport(ctx context.Context, query dto.AttendanceReportQuery, actor *models.JWTClaims) ([]byte, string, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	rows, err := s.DailyReport(ctx, query.Date, actor)
	if err != nil {
		return nil, "", err
	}

	dataset := export.Dataset{
		Headers: []string{"Student", "Room", "Floor", "Status", "Note"},
		Rows:    make([]map[string]string, 0, len(rows)),
	}
	for _, row := range rows {
		room, floor, note := "", "", ""
		if row.RoomID != nil {
			room = *row.RoomID
		}
		if row.Floor != nil {
			floor = strconv.Itoa(*row.Floor)
		}
		if row.Note != nil {
			note = *row.Note
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Student": row.FullName,
			"Room":    room,
			"Floor":   floor,
			"Status":  string(row.Status),
			"Note":    note,
		})
	}

	switch query.Format {
	case "pdf":
		title := fmt.Sprintf("Attendance %s", query.Date.Format("2006-01-02"))
		payload, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return payload, "application/pdf", nil
	default:
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return payload, "text/csv", nil
	}
}

// Summary aggregates one student's attendance over a window. Students may
// read their own summary; staff may read anyone's in their hostel.
func (s *AttendanceService) Summary(ctx context.Context, studentID string, from, to time.Time, actor *models.JWTClaims) (*models.AttendanceSummary, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.AddDate(0, -1, 0)
	}
	if !from.Before(to) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "from must be before to")
	}

	if actor.Role == models.RoleStudent {
		own, err := s.resolveStudent(ctx, actor)
		if err != nil {
			return nil, err
		}
		studentID = own.ID
	} else {
		student, err := s.students.GetByID(ctx, studentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.ErrNotFound
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
		}
		if err := checkHostelScope(actor, student.HostelID); err != nil {
			return nil, appErrors.ErrNotFound
		}
	}

	summary, err := s.repo.Summary(ctx, studentID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise attendance")
	}
	return summary, nil
}

// ConsecutiveAbsentees lists students absent for at least minNights nights
// in a row, for follow-up.
func (s *AttendanceService) ConsecutiveAbsentees(ctx context.Context, minNights int, actor *models.JWTClaims) ([]string, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role == models.RoleStudent {
		return nil, appErrors.ErrForbidden
	}
	if minNights < 2 {
		minNights = 3
	}
	since := time.Now().UTC().AddDate(0, 0, -minNights)
	ids, err := s.repo.ListConsecutiveAbsentees(ctx, actor.HostelID, since, minNights)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list absentees")
	}
	return ids, nil
}

// floorRestriction returns the set of floors a supervisor may mark, or nil
// when the actor is unrestricted.
func (s *AttendanceService) floorRestriction(ctx context.Context, actor *models.JWTClaims) (map[int]bool, error) {
	if actor.Role != models.RoleSupervisor {
		return nil, nil
	}
	supervisor, err := s.supervisors.GetByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "no supervisor record for this account")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load supervisor")
	}
	if !supervisor.Active {
		return nil, appErrors.ErrInactiveAccount
	}
	if !supervisor.HasPermission(models.PermAttendanceMark) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "missing attendance permission")
	}
	if len(supervisor.Floors) == 0 {
		return nil, nil
	}
	floors := make(map[int]bool, len(supervisor.Floors))
	for _, f := range supervisor.Floors {
		floors[int(f)] = true
	}
	return floors, nil
}

func (s *AttendanceService) resolveStudent(ctx context.Context, actor *models.JWTClaims) (*models.Student, error) {
	student, err := s.students.GetByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "no student record for this account")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

func (s *AttendanceService) emitAudit(ctx context.Context, actor *models.JWTClaims, date time.Time) {
	if s.audit == nil {
		return
	}
	day := date.Format("2006-01-02")
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionAttendanceMark,
		Resource:   "attendance",
		ResourceID: &day,
	}); err != nil {
		s.logger.Warn("audit log write failed", zap.Error(err))
	}
}
