package models

import (
	"time"

	"github.com/lib/pq"
)

// Department is a municipal department complaints can be routed to
type Department struct {
	ID        int            `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"uniqueIndex;not null" json:"name"`
	Keywords  pq.StringArray `gorm:"type:text[]" json:"keywords"`
	CreatedAt time.Time      `json:"created_at"`
}

// TableName pins the table used by gorm
func (Department) TableName() string { return "departments" }

// Solver is the profile of a user holding the SOLVER role
type Solver struct {
	ID           int       `gorm:"primaryKey" json:"id"`
	UserID       int       `gorm:"uniqueIndex;not null" json:"user_id"`
	DepartmentID *int      `json:"department_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName pins the table used by gorm
func (Solver) TableName() string { return "solvers" }

// SolverSummary is a solver as listed in reference data
type SolverSummary struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	DepartmentID *int   `json:"department_id"`
}

// DefaultDepartments are seeded on first start
func DefaultDepartments() []Department {
	return []Department{
		{Name: "Public Works", Keywords: pq.StringArray{"road", "roads", "pothole", "potholes", "street", "street lights", "sidewalk", "bridge"}},
		{Name: "Water Supply", Keywords: pq.StringArray{"water", "leakage", "pipeline", "pipe", "supply", "drainage"}},
		{Name: "Electricity", Keywords: pq.StringArray{"electricity", "power", "outage", "wire", "transformer", "streetlight"}},
		{Name: "Sanitation", Keywords: pq.StringArray{"garbage", "waste", "trash", "sewage", "cleaning", "toilet"}},
		{Name: "Environmental", Keywords: pq.StringArray{"noise", "pollution", "air", "tree", "park"}},
		{Name: "Transportation", Keywords: pq.StringArray{"parking", "traffic", "bus", "signal", "vehicle"}},
		{Name: "General Administration", Keywords: pq.StringArray{"general", "other", "administration"}},
	}
}
