package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/hostelhub/residence-api/internal/models"
)

const recipientColumns = `s.id AS student_id, s.full_name, s.email, s.room_id, s.floor`

// StudentRepository resolves hostel residents for audience targeting.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// GetByID returns a student row.
func (r *StudentRepository) GetByID(ctx context.Context, id string) (*models.Student, error) {
	const query = `SELECT id, user_id, hostel_id, room_id, floor, full_name, email, phone, active, created_at, updated_at
	FROM students WHERE id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// GetByUserID returns the student bound to a user account.
func (r *StudentRepository) GetByUserID(ctx context.Context, userID string) (*models.Student, error) {
	const query = `SELECT id, user_id, hostel_id, room_id, floor, full_name, email, phone, active, created_at, updated_at
	FROM students WHERE user_id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, userID); err != nil {
		return nil, err
	}
	return &student, nil
}

// ListActiveByHostel resolves every active resident of a hostel.
func (r *StudentRepository) ListActiveByHostel(ctx context.Context, hostelID string) ([]models.Recipient, error) {
	query := fmt.Sprintf(`SELECT %s FROM students s WHERE s.hostel_id = $1 AND s.active ORDER BY s.full_name`, recipientColumns)
	var recipients []models.Recipient
	if err := r.db.SelectContext(ctx, &recipients, query, hostelID); err != nil {
		return nil, fmt.Errorf("list hostel residents: %w", err)
	}
	return recipients, nil
}

// ListByRooms resolves active residents of the given rooms.
func (r *StudentRepository) ListByRooms(ctx context.Context, hostelID string, roomIDs []string) ([]models.Recipient, error) {
	query := fmt.Sprintf(`SELECT %s FROM students s
	WHERE s.hostel_id = $1 AND s.active AND s.room_id = ANY($2) ORDER BY s.full_name`, recipientColumns)
	var recipients []models.Recipient
	if err := r.db.SelectContext(ctx, &recipients, query, hostelID, pq.Array(roomIDs)); err != nil {
		return nil, fmt.Errorf("list residents by rooms: %w", err)
	}
	return recipients, nil
}

// ListByFloors resolves active residents of the given floors.
func (r *StudentRepository) ListByFloors(ctx context.Context, hostelID string, floors []int64) ([]models.Recipient, error) {
	query := fmt.Sprintf(`SELECT %s FROM students s
	WHERE s.hostel_id = $1 AND s.active AND s.floor = ANY($2) ORDER BY s.full_name`, recipientColumns)
	var recipients []models.Recipient
	if err := r.db.SelectContext(ctx, &recipients, query, hostelID, pq.Array(floors)); err != nil {
		return nil, fmt.Errorf("list residents by floors: %w", err)
	}
	return recipients, nil
}

// ListByIDs resolves the given students, skipping inactive ones.
func (r *StudentRepository) ListByIDs(ctx context.Context, hostelID string, ids []string) ([]models.Recipient, error) {
	query := fmt.Sprintf(`SELECT %s FROM students s
	WHERE s.hostel_id = $1 AND s.active AND s.id = ANY($2) ORDER BY s.full_name`, recipientColumns)
	var recipients []models.Recipient
	if err := r.db.SelectContext(ctx, &recipients, query, hostelID, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list residents by ids: %w", err)
	}
	return recipients, nil
}

// CountActiveByHostel returns the active resident count of a hostel.
func (r *StudentRepository) CountActiveByHostel(ctx context.Context, hostelID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM students WHERE hostel_id = $1 AND active", hostelID); err != nil {
		return 0, fmt.Errorf("count hostel residents: %w", err)
	}
	return count, nil
}

// ListRooms returns a hostel's rooms ordered by floor and number.
func (r *StudentRepository) ListRooms(ctx context.Context, hostelID string) ([]models.Room, error) {
	const query = `SELECT id, hostel_id, number, floor, capacity FROM rooms
	WHERE hostel_id = $1 ORDER BY floor, number`
	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query, hostelID); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// ListFloors returns the distinct floors present in a hostel.
func (r *StudentRepository) ListFloors(ctx context.Context, hostelID string) ([]int, error) {
	var floors []int
	if err := r.db.SelectContext(ctx, &floors,
		"SELECT DISTINCT floor FROM rooms WHERE hostel_id = $1 ORDER BY floor", hostelID); err != nil {
		return nil, fmt.Errorf("list floors: %w", err)
	}
	return floors, nil
}
