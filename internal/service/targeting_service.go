package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/hostelhub/residence-api/internal/dto"
	"github.com/hostelhub/residence-api/internal/models"
	appErrors "github.com/hostelhub/residence-api/pkg/errors"
)

type targetingRuleStore interface {
	ReplaceRules(ctx context.Context, announcementID string, rules []models.TargetingRule) error
	ListRules(ctx context.Context, announcementID string) ([]models.TargetingRule, error)
	ClearRules(ctx context.Context, announcementID string) error
}

type targetingAnnouncementStore interface {
	GetByID(ctx context.Context, id string) (*models.Announcement, error)
}

type recipientStore interface {
	ListActiveByHostel(ctx context.Context, hostelID string) ([]models.Recipient, error)
	ListByRooms(ctx context.Context, hostelID string, roomIDs []string) ([]models.Recipient, error)
	ListByFloors(ctx context.Context, hostelID string, floors []int64) ([]models.Recipient, error)
	ListByIDs(ctx context.Context, hostelID string, ids []string) ([]models.Recipient, error)
}

// TargetingService resolves announcement audiences from targeting rules.
type TargetingService struct {
	rules          targetingRuleStore
	announcements  targetingAnnouncementStore
	students       recipientStore
	audit          auditLogger
	validate       *validator.Validate
	logger         *zap.Logger
	maxPreviewSize int
}

// NewTargetingService constructs the service.
func NewTargetingService(rules targetingRuleStore, announcements targetingAnnouncementStore, students recipientStore, audit auditLogger, logger *zap.Logger, maxPreviewSize int) *TargetingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxPreviewSize <= 0 {
		maxPreviewSize = 500
	}
	return &TargetingService{
		rules:          rules,
		announcements:  announcements,
		students:       students,
		audit:          audit,
		validate:       validator.New(),
		logger:         logger,
		maxPreviewSize: maxPreviewSize,
	}
}

// Apply validates and persists a targeting configuration, returning the
// resolved audience summary.
func (s *TargetingService) Apply(ctx context.Context, announcementID string, req dto.ApplyTargetingRequest, actor *models.JWTClaims) (*models.TargetingSummary, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	announcement, err := s.loadEditable(ctx, announcementID)
	if err != nil {
		return nil, err
	}
	mode := normalizeCombineMode(req.CombineMode)
	if err := validateRuleSet(req.Rules, mode); err != nil {
		return nil, err
	}

	rules := buildRules(announcementID, req.Rules, mode, req.GlobalExclusions)
	recipients, excludedCount, err := s.resolve(ctx, announcement.HostelID, rules, mode)
	if err != nil {
		return nil, err
	}

	if err := s.rules.ReplaceRules(ctx, announcementID, rules); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store targeting rules")
	}
	if s.audit != nil && actor != nil {
		_ = s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &actor.UserID,
			Action:     models.AuditActionTargetingApply,
			Resource:   "announcement",
			ResourceID: &announcementID,
		})
	}

	summary := summarize(announcementID, recipients, excludedCount)
	s.logger.Info("targeting applied",
		zap.String("announcement_id", announcementID),
		zap.Int("recipients", summary.TotalRecipients))
	return &summary, nil
}

// Preview resolves rules without persisting anything. The sample is capped
// server-side regardless of the requested size.
func (s *TargetingService) Preview(ctx context.Context, announcementID string, req dto.PreviewTargetingRequest) (*models.TargetingPreview, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	announcement, err := s.load(ctx, announcementID)
	if err != nil {
		return nil, err
	}
	mode := normalizeCombineMode(req.CombineMode)
	if err := validateRuleSet(req.Rules, mode); err != nil {
		return nil, err
	}

	recipients, excludedCount, err := s.resolve(ctx, announcement.HostelID, buildRules(announcementID, req.Rules, mode, req.GlobalExclusions), mode)
	if err != nil {
		return nil, err
	}

	sampleSize := req.SampleSize
	if sampleSize <= 0 || sampleSize > s.maxPreviewSize {
		sampleSize = s.maxPreviewSize
	}
	sample := recipients
	if len(sample) > sampleSize {
		sample = sample[:sampleSize]
	}

	return &models.TargetingPreview{
		Summary:      summarize(announcementID, recipients, excludedCount),
		Sample:       sample,
		SampleSize:   len(sample),
		TotalMatched: len(recipients),
	}, nil
}

// Summary resolves the stored rules of an announcement.
func (s *TargetingService) Summary(ctx context.Context, announcementID string) (*models.TargetingSummary, error) {
	announcement, err := s.load(ctx, announcementID)
	if err != nil {
		return nil, err
	}
	rules, err := s.rules.ListRules(ctx, announcementID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load targeting rules")
	}
	if len(rules) == 0 {
		summary := summarize(announcementID, nil, 0)
		summary.Warnings = append(summary.Warnings, "no targeting rules configured")
		return &summary, nil
	}
	recipients, excludedCount, err := s.resolve(ctx, announcement.HostelID, rules, combineModeOf(rules))
	if err != nil {
		return nil, err
	}
	summary := summarize(announcementID, recipients, excludedCount)
	return &summary, nil
}

// Resolve returns the full recipient list for delivery dispatch.
func (s *TargetingService) Resolve(ctx context.Context, announcement *models.Announcement) ([]models.Recipient, error) {
	rules, err := s.rules.ListRules(ctx, announcement.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load targeting rules")
	}
	if len(rules) == 0 {
		// No rules means the whole hostel.
		return s.students.ListActiveByHostel(ctx, announcement.HostelID)
	}
	recipients, _, err := s.resolve(ctx, announcement.HostelID, rules, combineModeOf(rules))
	return recipients, err
}

// Clear removes the targeting configuration, reverting to hostel-wide.
func (s *TargetingService) Clear(ctx context.Context, announcementID string) error {
	if _, err := s.loadEditable(ctx, announcementID); err != nil {
		return err
	}
	if err := s.rules.ClearRules(ctx, announcementID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear targeting rules")
	}
	return nil
}

// BulkApply applies one configuration to several announcements, reporting
// per-item outcomes.
func (s *TargetingService) BulkApply(ctx context.Context, req dto.BulkTargetingRequest, actor *models.JWTClaims) (*models.BulkDecisionSummary, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	summary := &models.BulkDecisionSummary{}
	apply := dto.ApplyTargetingRequest{Rules: req.Rules, CombineMode: req.CombineMode, GlobalExclusions: req.GlobalExclusions}
	for _, id := range req.AnnouncementIDs {
		outcome := models.BulkDecisionOutcome{AnnouncementID: id, Success: true}
		if _, err := s.Apply(ctx, id, apply, actor); err != nil {
			outcome.Success = false
			outcome.Error = appErrors.FromError(err).Message
			summary.FailureCount++
		} else {
			summary.SuccessCount++
		}
		summary.Outcomes = append(summary.Outcomes, outcome)
	}
	return summary, nil
}

func (s *TargetingService) load(ctx context.Context, announcementID string) (*models.Announcement, error) {
	announcement, err := s.announcements.GetByID(ctx, announcementID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load announcement")
	}
	return announcement, nil
}

func (s *TargetingService) loadEditable(ctx context.Context, announcementID string) (*models.Announcement, error) {
	announcement, err := s.load(ctx, announcementID)
	if err != nil {
		return nil, err
	}
	switch announcement.Status {
	case models.AnnouncementStatusDraft, models.AnnouncementStatusScheduled, models.AnnouncementStatusPendingApproval:
		return announcement, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrConflict, "targeting can only change before publication")
	}
}

// resolve evaluates the rules in position order against the hostel roster.
// The second return value counts combined recipients that the exclusion
// sets removed.
func (s *TargetingService) resolve(ctx context.Context, hostelID string, rules []models.TargetingRule, mode models.CombineMode) ([]models.Recipient, int, error) {
	perRule := make([]map[string]models.Recipient, 0, len(rules))
	excluded := make(map[string]struct{})

	for _, rule := range rules {
		matched, err := s.matchRule(ctx, hostelID, rule)
		if err != nil {
			return nil, 0, err
		}
		for _, id := range rule.ExcludeStudentIDs {
			excluded[id] = struct{}{}
		}
		if len(rule.ExcludeRoomIDs) > 0 {
			roomMatched, err := s.students.ListByRooms(ctx, hostelID, rule.ExcludeRoomIDs)
			if err != nil {
				return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve excluded rooms")
			}
			for _, rec := range roomMatched {
				excluded[rec.StudentID] = struct{}{}
			}
		}
		perRule = append(perRule, matched)
	}

	combined := combine(perRule, mode)
	result := make([]models.Recipient, 0, len(combined))
	removed := 0
	for id, rec := range combined {
		if _, skip := excluded[id]; skip {
			removed++
			continue
		}
		result = append(result, rec)
	}
	sortRecipients(result)
	return result, removed, nil
}

func (s *TargetingService) matchRule(ctx context.Context, hostelID string, rule models.TargetingRule) (map[string]models.Recipient, error) {
	var (
		recipients []models.Recipient
		err        error
	)
	switch rule.TargetType {
	case models.TargetTypeAll:
		recipients, err = s.students.ListActiveByHostel(ctx, hostelID)
	case models.TargetTypeSpecificRooms:
		recipients, err = s.students.ListByRooms(ctx, hostelID, rule.RoomIDs)
	case models.TargetTypeSpecificFloors:
		recipients, err = s.students.ListByFloors(ctx, hostelID, rule.Floors)
	case models.TargetTypeSpecificStudents:
		recipients, err = s.students.ListByIDs(ctx, hostelID, rule.StudentIDs)
	case models.TargetTypeCustom:
		recipients, err = s.matchCustom(ctx, hostelID, rule)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported target type: %s", rule.TargetType))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve targeting rule")
	}
	matched := make(map[string]models.Recipient, len(recipients))
	for _, rec := range recipients {
		matched[rec.StudentID] = rec
	}
	return matched, nil
}

// matchCustom unions the rule's room, floor, and student selectors.
func (s *TargetingService) matchCustom(ctx context.Context, hostelID string, rule models.TargetingRule) ([]models.Recipient, error) {
	seen := make(map[string]models.Recipient)
	if len(rule.RoomIDs) > 0 {
		recs, err := s.students.ListByRooms(ctx, hostelID, rule.RoomIDs)
		if err != nil {
			return nil, err
		}
		for _, rec := range recs {
			seen[rec.StudentID] = rec
		}
	}
	if len(rule.Floors) > 0 {
		recs, err := s.students.ListByFloors(ctx, hostelID, rule.Floors)
		if err != nil {
			return nil, err
		}
		for _, rec := range recs {
			seen[rec.StudentID] = rec
		}
	}
	if len(rule.StudentIDs) > 0 {
		recs, err := s.students.ListByIDs(ctx, hostelID, rule.StudentIDs)
		if err != nil {
			return nil, err
		}
		for _, rec := range recs {
			seen[rec.StudentID] = rec
		}
	}
	out := make([]models.Recipient, 0, len(seen))
	for _, rec := range seen {
		out = append(out, rec)
	}
	return out, nil
}

// combine merges per-rule matches. DIFFERENCE subtracts every later rule
// from the first one.
func combine(perRule []map[string]models.Recipient, mode models.CombineMode) map[string]models.Recipient {
	if len(perRule) == 0 {
		return map[string]models.Recipient{}
	}
	switch mode {
	case models.CombineModeIntersection:
		result := make(map[string]models.Recipient, len(perRule[0]))
		for id, rec := range perRule[0] {
			inAll := true
			for _, other := range perRule[1:] {
				if _, ok := other[id]; !ok {
					inAll = false
					break
				}
			}
			if inAll {
				result[id] = rec
			}
		}
		return result
	case models.CombineModeDifference:
		result := make(map[string]models.Recipient, len(perRule[0]))
		for id, rec := range perRule[0] {
			result[id] = rec
		}
		for _, other := range perRule[1:] {
			for id := range other {
				delete(result, id)
			}
		}
		return result
	default:
		result := make(map[string]models.Recipient)
		for _, matched := range perRule {
			for id, rec := range matched {
				result[id] = rec
			}
		}
		return result
	}
}

func validateRuleSet(rules []dto.TargetingRuleInput, mode models.CombineMode) error {
	hasAll := false
	for _, rule := range rules {
		if overlaps(rule.StudentIDs, rule.ExcludeStudentIDs) {
			return appErrors.Clone(appErrors.ErrValidation, "a rule cannot include and exclude the same student")
		}
		if overlaps(rule.RoomIDs, rule.ExcludeRoomIDs) {
			return appErrors.Clone(appErrors.ErrValidation, "a rule cannot include and exclude the same room")
		}
		switch rule.TargetType {
		case models.TargetTypeAll:
			hasAll = true
		case models.TargetTypeSpecificRooms:
			if len(rule.RoomIDs) == 0 {
				return appErrors.Clone(appErrors.ErrValidation, "room targeting requires at least one room")
			}
		case models.TargetTypeSpecificFloors:
			if len(rule.Floors) == 0 {
				return appErrors.Clone(appErrors.ErrValidation, "floor targeting requires at least one floor")
			}
		case models.TargetTypeSpecificStudents:
			if len(rule.StudentIDs) == 0 {
				return appErrors.Clone(appErrors.ErrValidation, "student targeting requires at least one student")
			}
		case models.TargetTypeCustom:
			if len(rule.RoomIDs) == 0 && len(rule.Floors) == 0 && len(rule.StudentIDs) == 0 &&
				len(rule.ExcludeStudentIDs) == 0 && len(rule.ExcludeRoomIDs) == 0 {
				return appErrors.Clone(appErrors.ErrValidation, "custom targeting requires at least one selector")
			}
		}
	}
	if hasAll && mode == models.CombineModeIntersection && len(rules) > 1 {
		return appErrors.Clone(appErrors.ErrValidation, "an ALL rule cannot be intersected with other rules")
	}
	return nil
}

func overlaps(include, exclude []string) bool {
	if len(include) == 0 || len(exclude) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(include))
	for _, id := range include {
		set[id] = struct{}{}
	}
	for _, id := range exclude {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}

// buildRules converts rule inputs into persistable rules. Global exclusions
// are folded into the first rule's exclusion list; resolve collects
// exclusions across all rules and applies them after combination, so the
// placement does not narrow their effect.
func buildRules(announcementID string, inputs []dto.TargetingRuleInput, mode models.CombineMode, globalExclusions []string) []models.TargetingRule {
	rules := make([]models.TargetingRule, 0, len(inputs))
	for i, in := range inputs {
		excludeStudents := in.ExcludeStudentIDs
		if i == 0 && len(globalExclusions) > 0 {
			excludeStudents = make([]string, 0, len(in.ExcludeStudentIDs)+len(globalExclusions))
			excludeStudents = append(excludeStudents, in.ExcludeStudentIDs...)
			excludeStudents = append(excludeStudents, globalExclusions...)
		}
		rules = append(rules, models.TargetingRule{
			AnnouncementID:    announcementID,
			TargetType:        in.TargetType,
			RoomIDs:           in.RoomIDs,
			Floors:            in.Floors,
			StudentIDs:        in.StudentIDs,
			ExcludeStudentIDs: excludeStudents,
			ExcludeRoomIDs:    in.ExcludeRoomIDs,
			CombineMode:       mode,
			Position:          i,
		})
	}
	return rules
}

func summarize(announcementID string, recipients []models.Recipient, excludedCount int) models.TargetingSummary {
	summary := models.TargetingSummary{
		AnnouncementID:        announcementID,
		TotalRecipients:       len(recipients),
		StudentsCount:         len(recipients),
		ExcludedStudentsCount: excludedCount,
		RecipientsByRoom:      make(map[string]int),
		RecipientsByFloor:     make(map[int]int),
	}
	for _, rec := range recipients {
		if rec.RoomID != nil {
			summary.RecipientsByRoom[*rec.RoomID]++
		}
		if rec.Floor != nil {
			summary.RecipientsByFloor[*rec.Floor]++
		}
	}
	summary.RoomsCount = len(summary.RecipientsByRoom)
	summary.FloorsCount = len(summary.RecipientsByFloor)
	summary.HasValidRecipients = summary.TotalRecipients > 0
	if !summary.HasValidRecipients {
		summary.Warnings = append(summary.Warnings, "targeting matches no active residents")
	}
	return summary
}

func normalizeCombineMode(mode models.CombineMode) models.CombineMode {
	if mode == "" {
		return models.CombineModeUnion
	}
	return mode
}

// combineModeOf recovers the combine mode stored alongside the rules.
func combineModeOf(rules []models.TargetingRule) models.CombineMode {
	if len(rules) == 0 || rules[0].CombineMode == "" {
		return models.CombineModeUnion
	}
	return rules[0].CombineMode
}

func sortRecipients(recipients []models.Recipient) {
	sort.Slice(recipients, func(i, j int) bool {
		if recipients[i].FullName != recipients[j].FullName {
			return recipients[i].FullName < recipients[j].FullName
		}
		return recipients[i].StudentID < recipients[j].StudentID
	})
}
