// Package models defines data structures used throughout the Metronix application.
package models

import (
	"database/sql"
	"time"
)

// Role is the role a user holds. It never changes after the user is created.
type Role string

// Roles supported by the system
const (
	RoleCitizen Role = "CITIZEN"
	RoleSolver  Role = "SOLVER"
	RoleAdmin   Role = "ADMIN"
)

// IsValid reports whether r is a known role
func (r Role) IsValid() bool {
	switch r {
	case RoleCitizen, RoleSolver, RoleAdmin:
		return true
	}
	return false
}

// AllRoles returns the roles in display order
func AllRoles() []Role {
	return []Role{RoleCitizen, RoleSolver, RoleAdmin}
}

// User represents a user in the system
type User struct {
	ID           int            `json:"id" yaml:"id"`
	Name         string         `json:"name" yaml:"name"`
	Email        string         `json:"email" yaml:"email"`
	PasswordHash sql.NullString `json:"-" yaml:"-"` // Omit from JSON responses
	Role         Role           `json:"role" yaml:"role"`
	CreatedAt    time.Time      `json:"created_at" yaml:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" yaml:"updated_at"`
}

// IsAdmin reports whether the user holds the ADMIN role
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Summary returns the public subset of the user used in complaint views
func (u *User) Summary() *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
}

// UserSummary is the short form of a user embedded in other resources
type UserSummary struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UserWithCounts is a user plus the number of complaints they filed and,
// for solvers, the number assigned to them.
type UserWithCounts struct {
	User
	ComplaintCount int `json:"complaint_count"`
	AssignedCount  int `json:"assigned_count"`
}

// Actor is the authenticated identity performing an operation.
type Actor struct {
	UserID int
	Role   Role
}

// IsAdmin reports whether the actor holds the ADMIN role
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// SentNotification records an email the system attempted to deliver
type SentNotification struct {
	ID               int            `json:"id"`
	UserID           sql.NullInt64  `json:"user_id"`
	ComplaintID      sql.NullInt64  `json:"complaint_id"`
	NotificationType string         `json:"notification_type"`
	Recipient        string         `json:"recipient"`
	Subject          string         `json:"subject"`
	Status           string         `json:"status"`
	ErrorMessage     sql.NullString `json:"error_message"`
	SentAt           time.Time      `json:"sent_at"`
}

// Helper functions for converting sql.Null types to pointers
func nullInt64ToPointer(ni sql.NullInt64) *int {
	if ni.Valid {
		v := int(ni.Int64)
		return &v
	}
	return nil
}

func nullFloat64ToPointer(nf sql.NullFloat64) *float64 {
	if nf.Valid {
		return &nf.Float64
	}
	return nil
}

// NullInt64FromPointer converts an optional id into its SQL form
func NullInt64FromPointer(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

// NullFloat64FromPointer converts an optional coordinate into its SQL form
func NullFloat64FromPointer(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
