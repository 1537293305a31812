package models

import "time"

// Room represents a hostel room.
type Room struct {
	ID        string    `db:"id" json:"id"`
	HostelID  string    `db:"hostel_id" json:"hostel_id"`
	Number    string    `db:"number" json:"number"`
	Floor     int       `db:"floor" json:"floor"`
	Capacity  int       `db:"capacity" json:"capacity"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Student binds a user account to its hostel residence.
type Student struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	HostelID  string    `db:"hostel_id" json:"hostel_id"`
	RoomID    *string   `db:"room_id" json:"room_id,omitempty"`
	Floor     *int      `db:"floor" json:"floor,omitempty"`
	FullName  string    `db:"full_name" json:"full_name"`
	Email     string    `db:"email" json:"email"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Recipient is the resolved targeting view of a student.
type Recipient struct {
	StudentID string  `db:"student_id" json:"student_id"`
	FullName  string  `db:"full_name" json:"full_name"`
	Email     string  `db:"email" json:"email"`
	RoomID    *string `db:"room_id" json:"room_id,omitempty"`
	Floor     *int    `db:"floor" json:"floor,omitempty"`
}
