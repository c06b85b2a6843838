package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"metronix/internal/models"
	contextutils "metronix/internal/utils"

	"github.com/lib/pq"
)

// complaintColumns is the column list scanned by scanComplaint, in order
const complaintColumns = `id, title, description, category, priority, status, location, lat, lng, images, citizen_id, department_id, solver_id, created_at, updated_at`

// complaintSummarySelect joins the citizen and the optional solver onto each complaint
const complaintSummarySelect = `
	SELECT c.id, c.title, c.description, c.category, c.priority, c.status, c.location, c.lat, c.lng, c.images,
		c.citizen_id, c.department_id, c.solver_id, c.created_at, c.updated_at,
		cu.id, cu.name, cu.email,
		su.id, su.name, su.email
	FROM complaints c
	JOIN users cu ON cu.id = c.citizen_id
	LEFT JOIN users su ON su.id = c.solver_id`

// priorityRankSQL orders HIGH before NORMAL before LOW
const priorityRankSQL = `CASE c.priority WHEN 'HIGH' THEN 3 WHEN 'NORMAL' THEN 2 ELSE 1 END`

type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func complaintScanTargets(c *models.Complaint) []interface{} {
	return []interface{}{
		&c.ID, &c.Title, &c.Description, &c.Category, &c.Priority, &c.Status, &c.Location,
		&c.Lat, &c.Lng, pq.Array(&c.Images), &c.CitizenID, &c.DepartmentID, &c.SolverID,
		&c.CreatedAt, &c.UpdatedAt,
	}
}

func scanComplaint(row rowScanner) (*models.Complaint, error) {
	c := &models.Complaint{}
	if err := row.Scan(complaintScanTargets(c)...); err != nil {
		return nil, err
	}
	return c, nil
}

// summaryQuery builds a complaint summary listing with positional placeholders
type summaryQuery struct {
	conditions []string
	args       []interface{}
	orderBy    string
	limit      int
}

// where adds a condition. Each "?" in cond is replaced by the next $n placeholder.
func (q *summaryQuery) where(cond string, args ...interface{}) *summaryQuery {
	for _, arg := range args {
		q.args = append(q.args, arg)
		cond = strings.Replace(cond, "?", fmt.Sprintf("$%d", len(q.args)), 1)
	}
	q.conditions = append(q.conditions, cond)
	return q
}

func (q *summaryQuery) applyFilter(f models.ComplaintFilter) *summaryQuery {
	if f.Category != nil {
		q.where("c.category = ?", string(*f.Category))
	}
	if f.Priority != nil {
		q.where("c.priority = ?", string(*f.Priority))
	}
	if f.Status != nil {
		q.where("c.status = ?", string(*f.Status))
	}
	if f.DepartmentID != nil {
		q.where("c.department_id = ?", *f.DepartmentID)
	}
	if f.SolverID != nil {
		q.where("c.solver_id = ?", *f.SolverID)
	}
	if f.CitizenID != nil {
		q.where("c.citizen_id = ?", *f.CitizenID)
	}
	return q
}

func (q *summaryQuery) build() (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString(complaintSummarySelect)
	if len(q.conditions) > 0 {
		sb.WriteString("\n\tWHERE ")
		sb.WriteString(strings.Join(q.conditions, " AND "))
	}
	orderBy := q.orderBy
	if orderBy == "" {
		orderBy = "c.created_at DESC, c.id DESC"
	}
	sb.WriteString("\n\tORDER BY ")
	sb.WriteString(orderBy)
	args := q.args
	if q.limit > 0 {
		args = append(args, q.limit)
		sb.WriteString(fmt.Sprintf("\n\tLIMIT $%d", len(args)))
	}
	return sb.String(), args
}

func (q *summaryQuery) run(ctx context.Context, db querier) ([]models.ComplaintSummary, error) {
	query, args := q.build()
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to list complaints: %v", err)
	}
	defer func() { _ = rows.Close() }()

	summaries := []models.ComplaintSummary{}
	for rows.Next() {
		var s models.ComplaintSummary
		var citizen models.UserSummary
		var solverID sql.NullInt64
		var solverName, solverEmail sql.NullString

		targets := append(complaintScanTargets(&s.Complaint),
			&citizen.ID, &citizen.Name, &citizen.Email,
			&solverID, &solverName, &solverEmail,
		)
		if err := rows.Scan(targets...); err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to scan complaint: %v", err)
		}
		s.Citizen = &citizen
		s.Solver = userSummaryFromNullable(solverID, solverName, solverEmail)
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to list complaints: %v", err)
	}
	return summaries, nil
}
