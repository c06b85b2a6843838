package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"metronix/internal/database"
	contextutils "metronix/internal/utils"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDepartmentService(t *testing.T) (*DepartmentService, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gdb, err := database.OpenGorm(db)
	require.NoError(t, err)

	cleanup := func() {
		require.NoError(t, mock.ExpectationsWereMet())
		require.NoError(t, db.Close())
	}
	return NewDepartmentService(gdb, createTestLogger()), mock, cleanup
}

func TestDepartmentService_ListDepartments(t *testing.T) {
	service, mock, cleanup := newTestDepartmentService(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery(`SELECT \* FROM "departments" ORDER BY name`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "keywords", "created_at"}).
			AddRow(2, "Electricity", "{power,outage}", now).
			AddRow(1, "Public Works", "{road,pothole}", now))

	departments, err := service.ListDepartments(context.Background())
	require.NoError(t, err)
	require.Len(t, departments, 2)
	assert.Equal(t, "Electricity", departments[0].Name)
	assert.Equal(t, pq.StringArray{"power", "outage"}, departments[0].Keywords)
}

func TestDepartmentService_GetDepartment_NotFound(t *testing.T) {
	service, mock, cleanup := newTestDepartmentService(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT \* FROM "departments" WHERE "departments"."id" = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "keywords", "created_at"}))

	_, err := service.GetDepartment(context.Background(), 99)
	require.Error(t, err)
	assert.True(t, errors.Is(err, contextutils.ErrRecordNotFound))
}

func TestDepartmentService_CreateDepartment(t *testing.T) {
	service, mock, cleanup := newTestDepartmentService(t)
	defer cleanup()

	mock.ExpectQuery(`INSERT INTO "departments"`).
		WithArgs("Parks", `{"grass","tree"}`, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(8))

	dept, err := service.CreateDepartment(context.Background(), "  Parks ", []string{"Tree", " grass", "tree", ""})
	require.NoError(t, err)
	assert.Equal(t, 8, dept.ID)
	assert.Equal(t, "Parks", dept.Name)
	assert.Equal(t, pq.StringArray{"grass", "tree"}, dept.Keywords)
}

func TestDepartmentService_CreateDepartment_Duplicate(t *testing.T) {
	service, mock, cleanup := newTestDepartmentService(t)
	defer cleanup()

	mock.ExpectQuery(`INSERT INTO "departments"`).WillReturnError(&pq.Error{Code: "23505"})

	_, err := service.CreateDepartment(context.Background(), "Parks", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, contextutils.ErrRecordExists))
}

func TestDepartmentService_CreateDepartment_RequiresName(t *testing.T) {
	service, _, cleanup := newTestDepartmentService(t)
	defer cleanup()

	_, err := service.CreateDepartment(context.Background(), "   ", nil)
	assert.True(t, errors.Is(err, contextutils.ErrMissingRequired))
}

func TestDepartmentService_SeedDefaultDepartments(t *testing.T) {
	service, mock, cleanup := newTestDepartmentService(t)
	defer cleanup()

	mock.ExpectQuery(`INSERT INTO "departments" .* ON CONFLICT \("name"\) DO NOTHING`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2))

	added, err := service.SeedDefaultDepartments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, added)
}

func TestDepartmentService_ListSolvers(t *testing.T) {
	service, mock, cleanup := newTestDepartmentService(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT users.id, users.name, users.email, solvers.department_id FROM "?users"? LEFT JOIN solvers ON solvers.user_id = users.id WHERE users.role = \$1 ORDER BY users.name`).
		WithArgs("SOLVER").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "department_id"}).
			AddRow(9, "Sam", "sam@example.com", 1).
			AddRow(10, "Sue", "sue@example.com", nil))

	solvers, err := service.ListSolvers(context.Background())
	require.NoError(t, err)
	require.Len(t, solvers, 2)
	require.NotNil(t, solvers[0].DepartmentID)
	assert.Equal(t, 1, *solvers[0].DepartmentID)
	assert.Nil(t, solvers[1].DepartmentID)
}

func TestNormalizeKeywords(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, normalizeKeywords([]string{" B", "a", "b", ""}))
	assert.Empty(t, normalizeKeywords(nil))
}
