package models

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"
)

// Category classifies what a complaint is about
type Category string

// Complaint categories. The literal values are stored and sent on the wire.
const (
	CategoryRoads       Category = "ROADS"
	CategoryWater       Category = "WATER"
	CategoryElectricity Category = "ELECTRICITY"
	CategorySanitation  Category = "SANITATION"
	CategoryNoise       Category = "NOISE"
	CategoryParking     Category = "PARKING"
	CategoryOther       Category = "OTHER"
)

// AllCategories returns every category in display order
func AllCategories() []Category {
	return []Category{
		CategoryRoads, CategoryWater, CategoryElectricity, CategorySanitation,
		CategoryNoise, CategoryParking, CategoryOther,
	}
}

// IsValid reports whether c is a known category
func (c Category) IsValid() bool {
	for _, known := range AllCategories() {
		if c == known {
			return true
		}
	}
	return false
}

// Priority is how urgent a complaint is
type Priority string

// Complaint priorities
const (
	PriorityLow    Priority = "LOW"
	PriorityNormal Priority = "NORMAL"
	PriorityHigh   Priority = "HIGH"
)

// AllPriorities returns every priority from lowest to highest
func AllPriorities() []Priority {
	return []Priority{PriorityLow, PriorityNormal, PriorityHigh}
}

// IsValid reports whether p is a known priority
func (p Priority) IsValid() bool {
	return p.Rank() > 0
}

// Rank orders priorities; unknown values rank 0.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityNormal:
		return 2
	case PriorityHigh:
		return 3
	}
	return 0
}

// Status is where a complaint is in its lifecycle.
// There is deliberately no in-progress value: starting work is only recorded in the progress log.
type Status string

// Complaint statuses
const (
	StatusSubmitted Status = "SUBMITTED"
	StatusAssigned  Status = "ASSIGNED"
	StatusResolved  Status = "RESOLVED"
)

// AllStatuses returns the statuses in lifecycle order
func AllStatuses() []Status {
	return []Status{StatusSubmitted, StatusAssigned, StatusResolved}
}

// IsValid reports whether s is a known status
func (s Status) IsValid() bool {
	switch s {
	case StatusSubmitted, StatusAssigned, StatusResolved:
		return true
	}
	return false
}

// ParseCategory normalizes and validates a category token
func ParseCategory(raw string) (Category, bool) {
	c := Category(strings.ToUpper(strings.TrimSpace(raw)))
	return c, c.IsValid()
}

// ParsePriority normalizes and validates a priority token
func ParsePriority(raw string) (Priority, bool) {
	p := Priority(strings.ToUpper(strings.TrimSpace(raw)))
	return p, p.IsValid()
}

// ParseStatus normalizes and validates a status token
func ParseStatus(raw string) (Status, bool) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	return s, s.IsValid()
}

// ParseRole normalizes and validates a role token
func ParseRole(raw string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(raw)))
	return r, r.IsValid()
}

// Complaint is a citizen report about a municipal problem
type Complaint struct {
	ID           int             `json:"id"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Category     Category        `json:"category"`
	Priority     Priority        `json:"priority"`
	Status       Status          `json:"status"`
	Location     string          `json:"location"`
	Lat          sql.NullFloat64 `json:"lat"`
	Lng          sql.NullFloat64 `json:"lng"`
	Images       []string        `json:"images"`
	CitizenID    int             `json:"citizen_id"`
	DepartmentID sql.NullInt64   `json:"department_id"`
	SolverID     sql.NullInt64   `json:"solver_id"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// HasSolver reports whether a solver is assigned
func (c *Complaint) HasSolver() bool {
	return c.SolverID.Valid
}

// IsAssignedTo reports whether userID is the assigned solver
func (c *Complaint) IsAssignedTo(userID int) bool {
	return c.SolverID.Valid && int(c.SolverID.Int64) == userID
}

// MarshalJSON flattens the nullable columns into JSON nulls
func (c Complaint) MarshalJSON() ([]byte, error) {
	images := c.Images
	if images == nil {
		images = []string{}
	}
	return json.Marshal(&complaintJSON{
		ID:           c.ID,
		Title:        c.Title,
		Description:  c.Description,
		Category:     c.Category,
		Priority:     c.Priority,
		Status:       c.Status,
		Location:     c.Location,
		Lat:          nullFloat64ToPointer(c.Lat),
		Lng:          nullFloat64ToPointer(c.Lng),
		Images:       images,
		CitizenID:    c.CitizenID,
		DepartmentID: nullInt64ToPointer(c.DepartmentID),
		SolverID:     nullInt64ToPointer(c.SolverID),
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	})
}

// complaintJSON is the wire shape of a Complaint
type complaintJSON struct {
	ID           int       `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Category     Category  `json:"category"`
	Priority     Priority  `json:"priority"`
	Status       Status    `json:"status"`
	Location     string    `json:"location"`
	Lat          *float64  `json:"lat"`
	Lng          *float64  `json:"lng"`
	Images       []string  `json:"images"`
	CitizenID    int       `json:"citizen_id"`
	DepartmentID *int      `json:"department_id"`
	SolverID     *int      `json:"solver_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UnmarshalJSON reads the shape written by MarshalJSON
func (c *Complaint) UnmarshalJSON(data []byte) error {
	var w complaintJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*c = Complaint{
		ID:           w.ID,
		Title:        w.Title,
		Description:  w.Description,
		Category:     w.Category,
		Priority:     w.Priority,
		Status:       w.Status,
		Location:     w.Location,
		Lat:          NullFloat64FromPointer(w.Lat),
		Lng:          NullFloat64FromPointer(w.Lng),
		Images:       w.Images,
		CitizenID:    w.CitizenID,
		DepartmentID: NullInt64FromPointer(w.DepartmentID),
		SolverID:     NullInt64FromPointer(w.SolverID),
		CreatedAt:    w.CreatedAt,
		UpdatedAt:    w.UpdatedAt,
	}
	return nil
}

// ProgressLog is an immutable audit entry on a complaint
type ProgressLog struct {
	ID          int       `json:"id"`
	ComplaintID int       `json:"complaint_id"`
	UserID      int       `json:"user_id"`
	Status      Status    `json:"status"`
	Note        string    `json:"note"`
	CreatedAt   time.Time `json:"created_at"`
}

// ProgressEntry is a progress log joined with the acting user
type ProgressEntry struct {
	ProgressLog
	UserName string `json:"user_name"`
	UserRole Role   `json:"user_role"`
}

// ComplaintDetail is a complaint together with the people involved and its
// progress log, newest entry first.
type ComplaintDetail struct {
	Complaint  Complaint       `json:"complaint"`
	Citizen    *UserSummary    `json:"citizen"`
	Solver     *UserSummary    `json:"solver"`
	Department *Department     `json:"department"`
	Logs       []ProgressEntry `json:"logs"`
}

// ComplaintSummary is a complaint with citizen and solver for list views
type ComplaintSummary struct {
	Complaint
	Citizen *UserSummary `json:"citizen"`
	Solver  *UserSummary `json:"solver"`
}

// MarshalJSON keeps the embedded complaint's custom encoding and appends the people
func (s ComplaintSummary) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(s.Complaint)
	if err != nil {
		return nil, err
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, err
	}
	fields["citizen"] = s.Citizen
	fields["solver"] = s.Solver
	return json.Marshal(fields)
}

// UnmarshalJSON reads the flattened shape written by MarshalJSON
func (s *ComplaintSummary) UnmarshalJSON(data []byte) error {
	var people struct {
		Citizen *UserSummary `json:"citizen"`
		Solver  *UserSummary `json:"solver"`
	}
	if err := json.Unmarshal(data, &people); err != nil {
		return err
	}
	if err := s.Complaint.UnmarshalJSON(data); err != nil {
		return err
	}
	s.Citizen = people.Citizen
	s.Solver = people.Solver
	return nil
}

// ComplaintFilter narrows a complaint listing. Nil fields impose no constraint.
type ComplaintFilter struct {
	Category     *Category
	Priority     *Priority
	Status       *Status
	DepartmentID *int
	SolverID     *int
	CitizenID    *int
}

// ComplaintUpdate is the set of fields an administrator may override.
// Nil fields are left untouched. ClearSolver removes the assigned solver.
type ComplaintUpdate struct {
	Status       *Status
	Priority     *Priority
	SolverID     *int
	ClearSolver  bool
	DepartmentID *int
}

// IsEmpty reports whether the update carries no changes
func (u ComplaintUpdate) IsEmpty() bool {
	return u.Status == nil && u.Priority == nil && u.SolverID == nil && !u.ClearSolver && u.DepartmentID == nil
}

// SolverQueues is what a solver works from. Available holds unassigned open
// complaints, highest priority then oldest first. Assigned holds the solver's
// own complaints, most recently updated first.
type SolverQueues struct {
	Available []ComplaintSummary `json:"available"`
	Assigned  []ComplaintSummary `json:"assigned"`
}
