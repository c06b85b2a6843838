// Package api holds the request and response bodies of the HTTP API.
package api

import (
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"
)

// SolverAction is one of the actions a solver can take on a complaint
type SolverAction string

// Defines values for SolverAction.
const (
	SolverActionAssign  SolverAction = "assign"
	SolverActionStart   SolverAction = "start"
	SolverActionResolve SolverAction = "resolve"
	SolverActionAddNote SolverAction = "add_note"
)

// LoginRequest defines model for LoginRequest.
type LoginRequest struct {
	Email    openapi_types.Email `json:"email"`
	Password string              `json:"password"`
}

// SignupRequest defines model for SignupRequest.
type SignupRequest struct {
	Name     string              `json:"name"`
	Email    openapi_types.Email `json:"email"`
	Password string              `json:"password"`
}

// SolverActionRequest defines model for SolverActionRequest.
type SolverActionRequest struct {
	Action SolverAction `json:"action"`
	Note   *string      `json:"note,omitempty"`
}

// NoteRequest defines model for NoteRequest.
type NoteRequest struct {
	Note string `json:"note"`
}

// AdminOverrideRequest defines model for AdminOverrideRequest.
type AdminOverrideRequest struct {
	Status       *string `json:"status,omitempty"`
	Priority     *string `json:"priority,omitempty"`
	SolverId     *int    `json:"solver_id,omitempty"`
	ClearSolver  *bool   `json:"clear_solver,omitempty"`
	DepartmentId *int    `json:"department_id,omitempty"`
}

// CreateUserRequest defines model for CreateUserRequest.
type CreateUserRequest struct {
	Name         string              `json:"name"`
	Email        openapi_types.Email `json:"email"`
	Password     string              `json:"password"`
	Role         string              `json:"role"`
	DepartmentId *int                `json:"department_id,omitempty"`
}

// CreateDepartmentRequest defines model for CreateDepartmentRequest.
type CreateDepartmentRequest struct {
	Name     string    `json:"name"`
	Keywords *[]string `json:"keywords,omitempty"`
}

// DailySummarySendRequest defines model for DailySummarySendRequest.
type DailySummarySendRequest struct {
	Date  *openapi_types.Date  `json:"date,omitempty"`
	Email *openapi_types.Email `json:"email,omitempty"`
}

// User defines model for User.
type User struct {
	Id        int                 `json:"id"`
	Name      string              `json:"name"`
	Email     openapi_types.Email `json:"email"`
	Role      string              `json:"role"`
	CreatedAt *time.Time          `json:"created_at,omitempty"`
}

// LoginResponse defines model for LoginResponse.
type LoginResponse struct {
	Success bool    `json:"success"`
	Message *string `json:"message,omitempty"`
	User    *User   `json:"user,omitempty"`
}

// AuthStatusResponse defines model for AuthStatusResponse.
type AuthStatusResponse struct {
	Authenticated bool  `json:"authenticated"`
	User          *User `json:"user"`
}

// TokenResponse defines model for TokenResponse.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// SuccessResponse defines model for SuccessResponse.
type SuccessResponse struct {
	Success bool    `json:"success"`
	Message *string `json:"message,omitempty"`
}

// ReferenceData defines model for ReferenceData.
type ReferenceData struct {
	Categories  []string     `json:"categories"`
	Priorities  []string     `json:"priorities"`
	Statuses    []string     `json:"statuses"`
	Departments []Department `json:"departments"`
	Solvers     []Solver     `json:"solvers"`
}

// Department defines model for Department.
type Department struct {
	Id       int      `json:"id"`
	Name     string   `json:"name"`
	Keywords []string `json:"keywords"`
}

// Solver defines model for Solver.
type Solver struct {
	Id           int                 `json:"id"`
	Name         string              `json:"name"`
	Email        openapi_types.Email `json:"email"`
	DepartmentId *int                `json:"department_id"`
}
