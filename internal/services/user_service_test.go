package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"metronix/internal/config"
	"metronix/internal/models"
	contextutils "metronix/internal/utils"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var userColumns = []string{"id", "name", "email", "password_hash", "role", "created_at", "updated_at"}

func newTestUserService(t *testing.T) (*UserService, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	cleanup := func() {
		require.NoError(t, mock.ExpectationsWereMet())
		require.NoError(t, db.Close())
	}

	cfg := &config.Config{Auth: config.AuthConfig{BcryptCost: bcrypt.MinCost}}
	return NewUserServiceWithLogger(db, cfg, createTestLogger()), mock, cleanup
}

func hashForTest(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestUserService_NewUserServiceWithLogger(t *testing.T) {
	service := NewUserServiceWithLogger(nil, &config.Config{}, createTestLogger())
	assert.NotNil(t, service)
	assert.Equal(t, config.DefaultBcryptCost, service.bcryptCost())
}

func TestUserService_CreateUser_Validation(t *testing.T) {
	service, _, cleanup := newTestUserService(t)
	defer cleanup()

	dept := 1
	tests := []struct {
		name  string
		input CreateUserInput
		want  error
	}{
		{"missing name", CreateUserInput{Name: "  ", Email: "a@example.com", Role: models.RoleCitizen}, contextutils.ErrMissingRequired},
		{"bad email", CreateUserInput{Name: "A", Email: "not-an-email", Role: models.RoleCitizen}, contextutils.ErrInvalidInput},
		{"bad role", CreateUserInput{Name: "A", Email: "a@example.com", Role: "MAYOR"}, contextutils.ErrInvalidInput},
		{"short password", CreateUserInput{Name: "A", Email: "a@example.com", Password: "short", Role: models.RoleCitizen}, contextutils.ErrInvalidInput},
		{"department on citizen", CreateUserInput{Name: "A", Email: "a@example.com", Role: models.RoleCitizen, DepartmentID: &dept}, contextutils.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.CreateUser(context.Background(), tt.input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestUserService_CreateUser_Citizen(t *testing.T) {
	service, mock, cleanup := newTestUserService(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO users").
		WithArgs("John Doe", "john@example.com", sqlmock.AnyArg(), "CITIZEN", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
	mock.ExpectCommit()

	user, err := service.CreateUser(context.Background(), CreateUserInput{
		Name: " John Doe ", Email: "John@Example.com", Password: "password123", Role: models.RoleCitizen,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, user.ID)
	assert.Equal(t, "john@example.com", user.Email)
	require.True(t, user.PasswordHash.Valid)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash.String), []byte("password123")))
}

func TestUserService_CreateUser_SolverGetsProfile(t *testing.T) {
	service, mock, cleanup := newTestUserService(t)
	defer cleanup()

	dept := 2
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO users").
		WithArgs("Sam", "sam@example.com", nil, "SOLVER", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))
	mock.ExpectExec("INSERT INTO solvers").
		WithArgs(9, int64(2), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	user, err := service.CreateUser(context.Background(), CreateUserInput{
		Name: "Sam", Email: "sam@example.com", Role: models.RoleSolver, DepartmentID: &dept,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleSolver, user.Role)
	assert.False(t, user.PasswordHash.Valid)
}

func TestUserService_CreateUser_UnknownDepartmentRollsBack(t *testing.T) {
	service, mock, cleanup := newTestUserService(t)
	defer cleanup()

	dept := 99
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO users").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))
	mock.ExpectExec("INSERT INTO solvers").WillReturnError(&pq.Error{Code: "23503"})
	mock.ExpectRollback()

	_, err := service.CreateUser(context.Background(), CreateUserInput{
		Name: "Sam", Email: "sam@example.com", Role: models.RoleSolver, DepartmentID: &dept,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, contextutils.ErrInvalidInput))
	assert.Contains(t, err.Error(), "department 99 does not exist")
}

func TestUserService_CreateUser_Duplicate(t *testing.T) {
	service, mock, cleanup := newTestUserService(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO users").WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	_, err := service.CreateUser(context.Background(), CreateUserInput{Name: "A", Email: "a@example.com", Role: models.RoleCitizen})
	require.Error(t, err)
	assert.True(t, errors.Is(err, contextutils.ErrRecordExists))
}

func TestUserService_RegisterCitizen(t *testing.T) {
	t.Run("signups disabled", func(t *testing.T) {
		service, _, cleanup := newTestUserService(t)
		defer cleanup()
		service.cfg.Auth.SignupsDisabled = true

		_, err := service.RegisterCitizen(context.Background(), "A", "a@example.com", "password123")
		assert.True(t, errors.Is(err, contextutils.ErrForbidden))
	})

	t.Run("password required", func(t *testing.T) {
		service, _, cleanup := newTestUserService(t)
		defer cleanup()

		_, err := service.RegisterCitizen(context.Background(), "A", "a@example.com", "")
		assert.True(t, errors.Is(err, contextutils.ErrMissingRequired))
	})
}

func TestUserService_GetUserByID_NotFound(t *testing.T) {
	service, mock, cleanup := newTestUserService(t)
	defer cleanup()

	mock.ExpectQuery("SELECT id, name, email, password_hash, role, created_at, updated_at FROM users WHERE id").
		WithArgs(42).
		WillReturnError(sql.ErrNoRows)

	_, err := service.GetUserByID(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, errors.Is(err, contextutils.ErrRecordNotFound))
}

func TestUserService_AuthenticateUser(t *testing.T) {
	now := time.Now()
	hash := hashForTest(t, "password123")

	tests := []struct {
		name     string
		password string
		rows     *sqlmock.Rows
		queryErr error
		wantErr  error
	}{
		{
			name:     "success",
			password: "password123",
			rows:     sqlmock.NewRows(userColumns).AddRow(1, "John", "john@example.com", hash, "CITIZEN", now, now),
		},
		{
			name:     "wrong password",
			password: "nope-nope-nope",
			rows:     sqlmock.NewRows(userColumns).AddRow(1, "John", "john@example.com", hash, "CITIZEN", now, now),
			wantErr:  contextutils.ErrInvalidCredentials,
		},
		{
			name:     "no password set",
			password: "password123",
			rows:     sqlmock.NewRows(userColumns).AddRow(1, "John", "john@example.com", nil, "SOLVER", now, now),
			wantErr:  contextutils.ErrInvalidCredentials,
		},
		{
			name:     "unknown email",
			password: "password123",
			queryErr: sql.ErrNoRows,
			wantErr:  contextutils.ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, mock, cleanup := newTestUserService(t)
			defer cleanup()

			q := mock.ExpectQuery("FROM users WHERE email").WithArgs("john@example.com")
			if tt.queryErr != nil {
				q.WillReturnError(tt.queryErr)
			} else {
				q.WillReturnRows(tt.rows)
			}

			user, err := service.AuthenticateUser(context.Background(), "John@example.com ", tt.password)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 1, user.ID)
		})
	}
}

func TestUserService_AuthenticateUser_EmptyInput(t *testing.T) {
	service, _, cleanup := newTestUserService(t)
	defer cleanup()

	_, err := service.AuthenticateUser(context.Background(), "", "x")
	assert.True(t, errors.Is(err, contextutils.ErrInvalidCredentials))
}

func TestUserService_ListUsersWithCounts(t *testing.T) {
	service, mock, cleanup := newTestUserService(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery("FROM users u WHERE u.role = \\$1 ORDER BY u.created_at DESC").
		WithArgs("SOLVER").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "role", "created_at", "updated_at", "complaint_count", "assigned_count"}).
			AddRow(9, "Sam", "sam@example.com", "SOLVER", now, now, 0, 4))

	role := models.RoleSolver
	users, err := service.ListUsersWithCounts(context.Background(), &role)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, 4, users[0].AssignedCount)
}

func TestUserService_ListUsersWithCounts_InvalidRole(t *testing.T) {
	service, _, cleanup := newTestUserService(t)
	defer cleanup()

	role := models.Role("MAYOR")
	_, err := service.ListUsersWithCounts(context.Background(), &role)
	assert.True(t, errors.Is(err, contextutils.ErrInvalidInput))
}

func TestUserService_CountUsersByRole_IncludesZeros(t *testing.T) {
	service, mock, cleanup := newTestUserService(t)
	defer cleanup()

	mock.ExpectQuery("SELECT role, COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"role", "count"}).AddRow("CITIZEN", 5).AddRow("ADMIN", 1))

	counts, err := service.CountUsersByRole(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[models.Role]int{models.RoleCitizen: 5, models.RoleSolver: 0, models.RoleAdmin: 1}, counts)
}

func TestUserService_UpdateUserPassword(t *testing.T) {
	service, mock, cleanup := newTestUserService(t)
	defer cleanup()

	mock.ExpectExec("UPDATE users SET password_hash").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), 7).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := service.UpdateUserPassword(context.Background(), 7, "password123")
	assert.True(t, errors.Is(err, contextutils.ErrRecordNotFound))
}

func TestUserService_EnsureAdminUserExists(t *testing.T) {
	now := time.Now()

	t.Run("creates when missing", func(t *testing.T) {
		service, mock, cleanup := newTestUserService(t)
		defer cleanup()

		mock.ExpectQuery("FROM users WHERE email").WithArgs("admin@metronix.com").WillReturnError(sql.ErrNoRows)
		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO users").
			WithArgs("Administrator", "admin@metronix.com", sqlmock.AnyArg(), "ADMIN", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectCommit()

		require.NoError(t, service.EnsureAdminUserExists(context.Background(), "", "admin@metronix.com", "password123"))
	})

	t.Run("noop when password matches", func(t *testing.T) {
		service, mock, cleanup := newTestUserService(t)
		defer cleanup()

		mock.ExpectQuery("FROM users WHERE email").WillReturnRows(
			sqlmock.NewRows(userColumns).AddRow(1, "Admin", "admin@metronix.com", hashForTest(t, "password123"), "ADMIN", now, now))

		require.NoError(t, service.EnsureAdminUserExists(context.Background(), "Admin", "admin@metronix.com", "password123"))
	})

	t.Run("resets changed password", func(t *testing.T) {
		service, mock, cleanup := newTestUserService(t)
		defer cleanup()

		mock.ExpectQuery("FROM users WHERE email").WillReturnRows(
			sqlmock.NewRows(userColumns).AddRow(1, "Admin", "admin@metronix.com", hashForTest(t, "old-password"), "ADMIN", now, now))
		mock.ExpectExec("UPDATE users SET password_hash").
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), 1).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, service.EnsureAdminUserExists(context.Background(), "Admin", "admin@metronix.com", "new-password"))
	})

	t.Run("role is never changed", func(t *testing.T) {
		service, mock, cleanup := newTestUserService(t)
		defer cleanup()

		mock.ExpectQuery("FROM users WHERE email").WillReturnRows(
			sqlmock.NewRows(userColumns).AddRow(4, "Jo", "admin@metronix.com", nil, "CITIZEN", now, now))

		err := service.EnsureAdminUserExists(context.Background(), "Admin", "admin@metronix.com", "password123")
		assert.True(t, errors.Is(err, contextutils.ErrConflict))
	})

	t.Run("requires credentials", func(t *testing.T) {
		service, _, cleanup := newTestUserService(t)
		defer cleanup()

		assert.Error(t, service.EnsureAdminUserExists(context.Background(), "Admin", "", "x"))
		assert.Error(t, service.EnsureAdminUserExists(context.Background(), "Admin", "a@example.com", ""))
	})
}
