package commands

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"metronix/internal/models"
	"metronix/internal/observability"
	"metronix/internal/services"
	contextutils "metronix/internal/utils"

	"github.com/lib/pq"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// The embedded interfaces leave unused methods nil so an unexpected call panics.

type mockUserService struct {
	services.UserServiceInterface
	mock.Mock
}

func (m *mockUserService) ListUsersWithCounts(ctx context.Context, role *models.Role) ([]models.UserWithCounts, error) {
	args := m.Called(ctx, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.UserWithCounts), args.Error(1)
}

func (m *mockUserService) CreateUser(ctx context.Context, input services.CreateUserInput) (*models.User, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockUserService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockUserService) UpdateUserPassword(ctx context.Context, userID int, newPassword string) error {
	return m.Called(ctx, userID, newPassword).Error(0)
}

func (m *mockUserService) CountUsersByRole(ctx context.Context) (map[models.Role]int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[models.Role]int), args.Error(1)
}

type mockDepartmentService struct {
	services.DepartmentServiceInterface
	mock.Mock
}

func (m *mockDepartmentService) ListDepartments(ctx context.Context) ([]models.Department, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Department), args.Error(1)
}

func (m *mockDepartmentService) CreateDepartment(ctx context.Context, name string, keywords []string) (*models.Department, error) {
	args := m.Called(ctx, name, keywords)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Department), args.Error(1)
}

func (m *mockDepartmentService) SeedDefaultDepartments(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type mockReportingService struct {
	services.ReportingServiceInterface
	mock.Mock
}

func (m *mockReportingService) CountByStatus(ctx context.Context) (models.StatusCounts, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(models.StatusCounts), args.Error(1)
}

func (m *mockReportingService) DailySummary(ctx context.Context, date time.Time) (*models.DailySummary, error) {
	args := m.Called(ctx, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DailySummary), args.Error(1)
}

func (m *mockReportingService) SendDailySummary(ctx context.Context, date time.Time, to, name string) (*models.DailySummary, error) {
	args := m.Called(ctx, date, to, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DailySummary), args.Error(1)
}

type mockMigrator struct {
	mock.Mock
}

func (m *mockMigrator) RunMigrations(databaseURL string) error {
	return m.Called(databaseURL).Error(0)
}

func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	cmd.SilenceUsage = true
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func stubPassword(t *testing.T, password string, err error) {
	t.Helper()
	prev := passwordReader
	passwordReader = func() (string, error) { return password, err }
	t.Cleanup(func() { passwordReader = prev })
}

func TestUserList(t *testing.T) {
	users := &mockUserService{}
	solver := models.RoleSolver
	users.On("ListUsersWithCounts", mock.Anything, &solver).Return([]models.UserWithCounts{
		{User: models.User{ID: 9, Name: "Sam Solver", Email: "sam@example.com", Role: models.RoleSolver, CreatedAt: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)}, AssignedCount: 4},
	}, nil)

	out, err := run(t, UserCommands(users, observability.NewNopLogger(), "postgres://u:p@db/metronix"), "list", "--role", "solver")
	require.NoError(t, err)
	assert.Contains(t, out, "Sam Solver")
	assert.Contains(t, out, "sam@example.com")
	assert.Contains(t, out, "2026-10-01")
	users.AssertExpectations(t)
}

func TestUserList_UnknownRole(t *testing.T) {
	users := &mockUserService{}
	_, err := run(t, UserCommands(users, observability.NewNopLogger(), ""), "list", "--role", "mayor")
	require.Error(t, err)
	assert.True(t, errors.Is(err, contextutils.ErrInvalidInput))
	users.AssertNotCalled(t, "ListUsersWithCounts", mock.Anything, mock.Anything)
}

func TestUserCreate(t *testing.T) {
	stubPassword(t, "s3cret-pass", nil)
	users := &mockUserService{}
	dept := 2
	users.On("CreateUser", mock.Anything, services.CreateUserInput{
		Name: "Sam Solver", Email: "sam@example.com", Password: "s3cret-pass", Role: models.RoleSolver, DepartmentID: &dept,
	}).Return(&models.User{ID: 12, Name: "Sam Solver", Email: "sam@example.com", Role: models.RoleSolver}, nil)

	out, err := run(t, UserCommands(users, observability.NewNopLogger(), ""),
		"create", "--name", "Sam Solver", "--email", "sam@example.com", "--role", "SOLVER", "--department", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Created SOLVER user Sam Solver <sam@example.com> (ID: 12)")
	users.AssertExpectations(t)
}

func TestUserCreate_PasswordMismatch(t *testing.T) {
	stubPassword(t, "", contextutils.ErrorWithContextf("passwords do not match"))
	users := &mockUserService{}

	_, err := run(t, UserCommands(users, observability.NewNopLogger(), ""),
		"create", "--name", "Pat", "--email", "pat@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "passwords do not match")
	users.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
}

func TestUserResetPassword(t *testing.T) {
	stubPassword(t, "new-password", nil)
	users := &mockUserService{}
	users.On("GetUserByEmail", mock.Anything, "pat@example.com").Return(&models.User{ID: 3, Email: "pat@example.com"}, nil)
	users.On("UpdateUserPassword", mock.Anything, 3, "new-password").Return(nil)

	out, err := run(t, UserCommands(users, observability.NewNopLogger(), ""), "reset-password", "pat@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "Password reset for pat@example.com (ID: 3)")
	users.AssertExpectations(t)
}

func TestUserResetPassword_UnknownUser(t *testing.T) {
	users := &mockUserService{}
	users.On("GetUserByEmail", mock.Anything, "ghost@example.com").Return(nil, contextutils.ErrRecordNotFound)

	_, err := run(t, UserCommands(users, observability.NewNopLogger(), ""), "reset-password", "ghost@example.com")
	require.Error(t, err)
	assert.True(t, errors.Is(err, contextutils.ErrRecordNotFound))
	users.AssertNotCalled(t, "UpdateUserPassword", mock.Anything, mock.Anything, mock.Anything)
}

func TestDepartments(t *testing.T) {
	depts := &mockDepartmentService{}
	depts.On("ListDepartments", mock.Anything).Return([]models.Department{
		{ID: 1, Name: "Public Works", Keywords: pq.StringArray{"road", "pothole"}},
	}, nil)
	depts.On("CreateDepartment", mock.Anything, "Parks", []string{"tree", "park"}).
		Return(&models.Department{ID: 7, Name: "Parks"}, nil)
	depts.On("SeedDefaultDepartments", mock.Anything).Return(0, nil).Once()

	out, err := run(t, DepartmentCommands(depts, observability.NewNopLogger()), "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Public Works")
	assert.Contains(t, out, "road, pothole")

	out, err = run(t, DepartmentCommands(depts, observability.NewNopLogger()), "create", "--name", "Parks", "--keywords", "tree,park")
	require.NoError(t, err)
	assert.Contains(t, out, "Created department Parks (ID: 7)")

	out, err = run(t, DepartmentCommands(depts, observability.NewNopLogger()), "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "nothing seeded")

	depts.AssertExpectations(t)
}

func TestDBStats(t *testing.T) {
	users := &mockUserService{}
	reports := &mockReportingService{}
	users.On("CountUsersByRole", mock.Anything).Return(map[models.Role]int{models.RoleCitizen: 5, models.RoleAdmin: 1}, nil)
	reports.On("CountByStatus", mock.Anything).Return(models.StatusCounts{models.StatusSubmitted: 3, models.StatusResolved: 2}, nil)

	out, err := run(t, DatabaseCommands(users, reports, &mockMigrator{}, "", observability.NewNopLogger(), nil), "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "CITIZEN    5")
	assert.Contains(t, out, "SOLVER     0")
	assert.Contains(t, out, "SUBMITTED  3")
}

func TestDBMigrate(t *testing.T) {
	migrator := &mockMigrator{}
	migrator.On("RunMigrations", "postgres://u:p@db/metronix").Return(nil).Once()
	migrator.On("RunMigrations", "postgres://broken").Return(errors.New("dirty database version 3"))

	out, err := run(t, DatabaseCommands(&mockUserService{}, &mockReportingService{}, migrator, "postgres://u:p@db/metronix", observability.NewNopLogger(), nil), "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "Migrations applied")

	_, err = run(t, DatabaseCommands(&mockUserService{}, &mockReportingService{}, migrator, "postgres://broken", observability.NewNopLogger(), nil), "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dirty database version 3")
}

func TestSummarySend(t *testing.T) {
	reports := &mockReportingService{}
	date := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)
	reports.On("SendDailySummary", mock.Anything, date, "mayor@example.com", "Mayor").Return(&models.DailySummary{
		Date: "2026-10-14", Total: 2, Pending: 1, Resolved: 1,
		Complaints: []models.ComplaintSummary{{Complaint: models.Complaint{ID: 4, Title: "Broken light", Status: models.StatusSubmitted, Priority: models.PriorityHigh}}},
	}, nil)

	out, err := run(t, SummaryCommands(reports, observability.NewNopLogger()),
		"send", "--date", "2026-10-14", "--to", "mayor@example.com", "--name", "Mayor")
	require.NoError(t, err)
	assert.Contains(t, out, "Summary for 2026-10-14")
	assert.Contains(t, out, "Broken light")
	assert.Contains(t, out, "Sent to mayor@example.com")
	reports.AssertExpectations(t)
}

func TestSummarySend_RejectsBadInput(t *testing.T) {
	reports := &mockReportingService{}

	_, err := run(t, SummaryCommands(reports, observability.NewNopLogger()), "send", "--date", "14/10/2026", "--to", "mayor@example.com")
	require.Error(t, err)
	assert.True(t, errors.Is(err, contextutils.ErrInvalidInput))

	_, err = run(t, SummaryCommands(reports, observability.NewNopLogger()), "send", "--to", "not-an-email")
	require.Error(t, err)
	assert.True(t, errors.Is(err, contextutils.ErrInvalidInput))

	reports.AssertNotCalled(t, "SendDailySummary", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestParseSummaryDate_DefaultsToTodayUTC(t *testing.T) {
	date, err := parseSummaryDate("")
	require.NoError(t, err)
	now := time.Now().UTC()
	assert.Equal(t, now.Format(summaryDateLayout), date.Format(summaryDateLayout))
	assert.Equal(t, time.UTC, date.Location())
}
