package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"metronix/internal/models"
	"metronix/internal/observability"
	contextutils "metronix/internal/utils"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DepartmentServiceInterface manages departments and solver reference data
type DepartmentServiceInterface interface {
	ListDepartments(ctx context.Context) ([]models.Department, error)
	GetDepartment(ctx context.Context, id int) (*models.Department, error)
	CreateDepartment(ctx context.Context, name string, keywords []string) (*models.Department, error)
	SeedDefaultDepartments(ctx context.Context) (int, error)
	ListSolvers(ctx context.Context) ([]models.SolverSummary, error)
}

// DepartmentService is backed by gorm on the shared connection pool
type DepartmentService struct {
	db     *gorm.DB
	logger *observability.Logger
}

var _ DepartmentServiceInterface = (*DepartmentService)(nil)

// NewDepartmentService creates a DepartmentService
func NewDepartmentService(db *gorm.DB, logger *observability.Logger) *DepartmentService {
	return &DepartmentService{db: db, logger: logger}
}

// ListDepartments returns every department ordered by name
func (s *DepartmentService) ListDepartments(ctx context.Context) (result0 []models.Department, err error) {
	ctx, span := observability.TraceDepartmentFunction(ctx, "list_departments")
	defer observability.FinishSpan(span, &err)

	departments := []models.Department{}
	if err = s.db.WithContext(ctx).Order("name").Find(&departments).Error; err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to list departments: %v", err)
	}
	return departments, nil
}

// GetDepartment loads one department
func (s *DepartmentService) GetDepartment(ctx context.Context, id int) (result0 *models.Department, err error) {
	ctx, span := observability.TraceDepartmentFunction(ctx, "get_department", attribute.Int("department.id", id))
	defer observability.FinishSpan(span, &err)

	var dept models.Department
	if err = s.db.WithContext(ctx).First(&dept, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "department %d not found", id)
		}
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to load department: %v", err)
	}
	return &dept, nil
}

// CreateDepartment adds a department. Keywords are lower-cased, trimmed and de-duplicated.
func (s *DepartmentService) CreateDepartment(ctx context.Context, name string, keywords []string) (result0 *models.Department, err error) {
	ctx, span := observability.TraceDepartmentFunction(ctx, "create_department")
	defer observability.FinishSpan(span, &err)

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, contextutils.WrapError(contextutils.ErrMissingRequired, "department name is required")
	}

	dept := models.Department{Name: name, Keywords: normalizeKeywords(keywords), CreatedAt: time.Now().UTC()}
	if err = s.db.WithContext(ctx).Create(&dept).Error; err != nil {
		if isDuplicateKeyError(err) || errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, contextutils.WrapErrorf(contextutils.ErrRecordExists, "department %q already exists", name)
		}
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to create department: %v", err)
	}

	s.logger.Info(ctx, "Department created", map[string]interface{}{"department_id": dept.ID, "name": dept.Name})
	return &dept, nil
}

// SeedDefaultDepartments inserts the default departments that do not exist yet
// and returns how many were added.
func (s *DepartmentService) SeedDefaultDepartments(ctx context.Context) (result0 int, err error) {
	ctx, span := observability.TraceDepartmentFunction(ctx, "seed_default_departments")
	defer observability.FinishSpan(span, &err)

	defaults := models.DefaultDepartments()
	now := time.Now().UTC()
	for i := range defaults {
		defaults[i].CreatedAt = now
	}

	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&defaults)
	if res.Error != nil {
		return 0, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to seed departments: %v", res.Error)
	}

	added := int(res.RowsAffected)
	span.SetAttributes(attribute.Int("departments.added", added))
	if added > 0 {
		s.logger.Info(ctx, "Seeded default departments", map[string]interface{}{"added": added})
	}
	return added, nil
}

// ListSolvers returns every SOLVER user with their department. ID is the user id,
// which is what complaints reference.
func (s *DepartmentService) ListSolvers(ctx context.Context) (result0 []models.SolverSummary, err error) {
	ctx, span := observability.TraceDepartmentFunction(ctx, "list_solvers")
	defer observability.FinishSpan(span, &err)

	solvers := []models.SolverSummary{}
	err = s.db.WithContext(ctx).
		Table("users").
		Select("users.id, users.name, users.email, solvers.department_id").
		Joins("LEFT JOIN solvers ON solvers.user_id = users.id").
		Where("users.role = ?", string(models.RoleSolver)).
		Order("users.name").
		Scan(&solvers).Error
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to list solvers: %v", err)
	}
	return solvers, nil
}

func normalizeKeywords(keywords []string) []string {
	seen := make(map[string]bool, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
