package model

import "time"

// Student is a student-artist on a campus roster.
type Student struct {
	ID              int64     `json:"id"`
	SRCode          string    `json:"sr_code"`
	Name            string    `json:"name"`
	Email           string    `json:"email,omitempty"`
	Campus          string    `json:"campus"`
	Program         string    `json:"program,omitempty"`
	PerformanceType string    `json:"performance_type,omitempty"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Student statuses.
const (
	StudentStatusActive   = "active"
	StudentStatusInactive = "inactive"
	StudentStatusArchived = "archived"
)

// ValidStudentStatus reports whether s is a settable student status.
func ValidStudentStatus(s string) bool {
	return s == StudentStatusActive || s == StudentStatusInactive
}

// Application is a request to join a campus performing group.
type Application struct {
	ID              int64      `json:"id"`
	SRCode          string     `json:"sr_code"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	Campus          string     `json:"campus"`
	Program         string     `json:"program,omitempty"`
	PerformanceType string     `json:"performance_type"`
	Status          string     `json:"status"`
	StudentID       *int64     `json:"student_id,omitempty"`
	DecidedBy       *int64     `json:"decided_by,omitempty"`
	DecidedAt       *time.Time `json:"decided_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Application statuses.
const (
	ApplicationPending  = "pending"
	ApplicationApproved = "approved"
	ApplicationRejected = "rejected"
)
