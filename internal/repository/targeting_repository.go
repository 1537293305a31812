package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/hostelhub/residence-api/internal/models"
)

// TargetingRepository persists audience targeting rules.
type TargetingRepository struct {
	db *sqlx.DB
}

// NewTargetingRepository constructs the repository.
func NewTargetingRepository(db *sqlx.DB) *TargetingRepository {
	return &TargetingRepository{db: db}
}

// ReplaceRules swaps the announcement's targeting rule set atomically.
// Either all new rules land or the previous set stays untouched.
func (r *TargetingRepository) ReplaceRules(ctx context.Context, announcementID string, rules []models.TargetingRule) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin targeting replace: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM targeting_rules WHERE announcement_id = $1", announcementID); err != nil {
		return fmt.Errorf("clear targeting rules: %w", err)
	}

	const query = `INSERT INTO targeting_rules
	(id, announcement_id, target_type, room_ids, floors, student_ids, exclude_student_ids, exclude_room_ids, combine_mode, position, created_at)
	VALUES (:id, :announcement_id, :target_type, :room_ids, :floors, :student_ids, :exclude_student_ids, :exclude_room_ids, :combine_mode, :position, :created_at)`
	now := time.Now().UTC()
	for i := range rules {
		rule := &rules[i]
		if rule.ID == "" {
			rule.ID = uuid.NewString()
		}
		rule.AnnouncementID = announcementID
		rule.Position = i
		rule.CreatedAt = now
		if _, err := tx.NamedExecContext(ctx, query, rule); err != nil {
			return fmt.Errorf("insert targeting rule: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit targeting replace: %w", err)
	}
	return nil
}

// ListRules returns the announcement's rules in application order.
func (r *TargetingRepository) ListRules(ctx context.Context, announcementID string) ([]models.TargetingRule, error) {
	const query = `SELECT id, announcement_id, target_type, room_ids, floors, student_ids,
       exclude_student_ids, exclude_room_ids, combine_mode, position, created_at
	FROM targeting_rules WHERE announcement_id = $1 ORDER BY position`
	var rules []models.TargetingRule
	if err := r.db.SelectContext(ctx, &rules, query, announcementID); err != nil {
		return nil, fmt.Errorf("list targeting rules: %w", err)
	}
	return rules, nil
}

// ClearRules removes the announcement's targeting configuration.
func (r *TargetingRepository) ClearRules(ctx context.Context, announcementID string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM targeting_rules WHERE announcement_id = $1", announcementID); err != nil {
		return fmt.Errorf("clear targeting rules: %w", err)
	}
	return nil
}
