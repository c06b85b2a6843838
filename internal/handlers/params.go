package handlers

import (
	"strconv"
	"strings"

	"metronix/internal/models"

	"github.com/gin-gonic/gin"
)

// ParseFilters returns a map of non-empty trimmed query params for the given keys.
func ParseFilters(c *gin.Context, keys ...string) map[string]string {
	filters := make(map[string]string, len(keys))
	for _, key := range keys {
		if val := strings.TrimSpace(c.Query(key)); val != "" {
			filters[key] = val
		}
	}
	return filters
}

// parseIDParam reads a positive integer path parameter. It writes a 400 and
// returns false when the value is missing or malformed.
func parseIDParam(c *gin.Context, name string) (int, bool) {
	raw := c.Param(name)
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		HandleValidationError(c, name, raw, "must be a positive integer")
		return 0, false
	}
	return id, true
}

// parseComplaintFilter builds a filter from the admin list query string.
// Unknown enum values and malformed ids are rejected rather than ignored.
func parseComplaintFilter(c *gin.Context) (models.ComplaintFilter, bool) {
	var filter models.ComplaintFilter
	raw := ParseFilters(c, "category", "priority", "status", "department_id", "solver_id", "citizen_id")

	if v, ok := raw["category"]; ok {
		category, valid := models.ParseCategory(v)
		if !valid {
			HandleValidationError(c, "category", v, "unknown category")
			return filter, false
		}
		filter.Category = &category
	}
	if v, ok := raw["priority"]; ok {
		priority, valid := models.ParsePriority(v)
		if !valid {
			HandleValidationError(c, "priority", v, "unknown priority")
			return filter, false
		}
		filter.Priority = &priority
	}
	if v, ok := raw["status"]; ok {
		status, valid := models.ParseStatus(v)
		if !valid {
			HandleValidationError(c, "status", v, "unknown status")
			return filter, false
		}
		filter.Status = &status
	}

	for key, dest := range map[string]**int{
		"department_id": &filter.DepartmentID,
		"solver_id":     &filter.SolverID,
		"citizen_id":    &filter.CitizenID,
	} {
		v, ok := raw[key]
		if !ok {
			continue
		}
		id, err := strconv.Atoi(v)
		if err != nil || id <= 0 {
			HandleValidationError(c, key, v, "must be a positive integer")
			return filter, false
		}
		*dest = &id
	}

	return filter, true
}

// parseWindowDays reads the optional "days" query parameter. Zero means the
// configured default.
func parseWindowDays(c *gin.Context) (int, bool) {
	raw := strings.TrimSpace(c.Query("days"))
	if raw == "" {
		return 0, true
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days < 1 || days > 366 {
		HandleValidationError(c, "days", raw, "must be between 1 and 366")
		return 0, false
	}
	return days, true
}
