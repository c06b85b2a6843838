package handlers

import (
	"metronix/internal/api"
	"metronix/internal/models"

	openapi_types "github.com/oapi-codegen/runtime/types"
)

func stringPtr(s string) *string {
	return &s
}

func convertUserToAPI(user *models.User) *api.User {
	if user == nil {
		return nil
	}
	out := &api.User{
		Id:    user.ID,
		Name:  user.Name,
		Email: openapi_types.Email(user.Email),
		Role:  string(user.Role),
	}
	if !user.CreatedAt.IsZero() {
		created := user.CreatedAt
		out.CreatedAt = &created
	}
	return out
}

func convertDepartmentsToAPI(departments []models.Department) []api.Department {
	out := make([]api.Department, 0, len(departments))
	for _, d := range departments {
		keywords := []string(d.Keywords)
		if keywords == nil {
			keywords = []string{}
		}
		out = append(out, api.Department{Id: d.ID, Name: d.Name, Keywords: keywords})
	}
	return out
}

func convertSolversToAPI(solvers []models.SolverSummary) []api.Solver {
	out := make([]api.Solver, 0, len(solvers))
	for _, s := range solvers {
		out = append(out, api.Solver{
			Id:           s.ID,
			Name:         s.Name,
			Email:        openapi_types.Email(s.Email),
			DepartmentId: s.DepartmentID,
		})
	}
	return out
}

func enumStrings[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}
