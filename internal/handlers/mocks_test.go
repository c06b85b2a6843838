package handlers

import (
	"context"
	"time"

	"metronix/internal/models"
	"metronix/internal/services"

	"github.com/stretchr/testify/mock"
)

type MockUserService struct {
	mock.Mock
}

var _ services.UserServiceInterface = (*MockUserService)(nil)

func (m *MockUserService) CreateUser(ctx context.Context, input services.CreateUserInput) (*models.User, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) RegisterCitizen(ctx context.Context, name, email, password string) (*models.User, error) {
	args := m.Called(ctx, name, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) AuthenticateUser(ctx context.Context, email, password string) (*models.User, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) ListUsersWithCounts(ctx context.Context, role *models.Role) ([]models.UserWithCounts, error) {
	args := m.Called(ctx, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.UserWithCounts), args.Error(1)
}

func (m *MockUserService) CountUsersByRole(ctx context.Context) (map[models.Role]int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[models.Role]int), args.Error(1)
}

func (m *MockUserService) UpdateUserPassword(ctx context.Context, userID int, newPassword string) error {
	return m.Called(ctx, userID, newPassword).Error(0)
}

func (m *MockUserService) EnsureAdminUserExists(ctx context.Context, name, email, password string) error {
	return m.Called(ctx, name, email, password).Error(0)
}

type MockComplaintService struct {
	mock.Mock
}

var _ services.ComplaintServiceInterface = (*MockComplaintService)(nil)

func (m *MockComplaintService) complaint(args mock.Arguments) (*models.Complaint, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Complaint), args.Error(1)
}

func (m *MockComplaintService) Submit(ctx context.Context, citizenID int, input services.SubmitComplaintInput) (*models.Complaint, error) {
	return m.complaint(m.Called(ctx, citizenID, input))
}

func (m *MockComplaintService) Assign(ctx context.Context, complaintID, solverID int) (*models.Complaint, error) {
	return m.complaint(m.Called(ctx, complaintID, solverID))
}

func (m *MockComplaintService) Start(ctx context.Context, complaintID, solverID int) (*models.Complaint, error) {
	return m.complaint(m.Called(ctx, complaintID, solverID))
}

func (m *MockComplaintService) Resolve(ctx context.Context, complaintID, solverID int, note string) (*models.Complaint, error) {
	return m.complaint(m.Called(ctx, complaintID, solverID, note))
}

func (m *MockComplaintService) AddNote(ctx context.Context, complaintID int, actor models.Actor, note string) (*models.ProgressLog, error) {
	args := m.Called(ctx, complaintID, actor, note)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProgressLog), args.Error(1)
}

func (m *MockComplaintService) AdminOverride(ctx context.Context, complaintID int, actor models.Actor, update models.ComplaintUpdate) (*models.Complaint, error) {
	return m.complaint(m.Called(ctx, complaintID, actor, update))
}

func (m *MockComplaintService) GetComplaintDetail(ctx context.Context, complaintID int, actor models.Actor) (*models.ComplaintDetail, error) {
	args := m.Called(ctx, complaintID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ComplaintDetail), args.Error(1)
}

func (m *MockComplaintService) ListForCitizen(ctx context.Context, citizenID int) ([]models.ComplaintSummary, error) {
	args := m.Called(ctx, citizenID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ComplaintSummary), args.Error(1)
}

func (m *MockComplaintService) SolverQueues(ctx context.Context, solverID int) (*models.SolverQueues, error) {
	args := m.Called(ctx, solverID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SolverQueues), args.Error(1)
}

type MockReportingService struct {
	mock.Mock
}

var _ services.ReportingServiceInterface = (*MockReportingService)(nil)

func (m *MockReportingService) CountByStatus(ctx context.Context) (models.StatusCounts, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(models.StatusCounts), args.Error(1)
}

func (m *MockReportingService) CountByPriority(ctx context.Context) (models.PriorityCounts, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(models.PriorityCounts), args.Error(1)
}

func (m *MockReportingService) CountByDepartment(ctx context.Context) ([]models.DepartmentCount, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.DepartmentCount), args.Error(1)
}

func (m *MockReportingService) DailyCounts(ctx context.Context, windowDays int) ([]models.DailyCount, error) {
	args := m.Called(ctx, windowDays)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.DailyCount), args.Error(1)
}

func (m *MockReportingService) ListFiltered(ctx context.Context, filter models.ComplaintFilter) ([]models.ComplaintSummary, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ComplaintSummary), args.Error(1)
}

func (m *MockReportingService) Dashboard(ctx context.Context) (*models.Dashboard, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dashboard), args.Error(1)
}

func (m *MockReportingService) Analytics(ctx context.Context, windowDays int) (*models.Analytics, error) {
	args := m.Called(ctx, windowDays)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Analytics), args.Error(1)
}

func (m *MockReportingService) DailySummary(ctx context.Context, date time.Time) (*models.DailySummary, error) {
	args := m.Called(ctx, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DailySummary), args.Error(1)
}

func (m *MockReportingService) SendDailySummary(ctx context.Context, date time.Time, to, name string) (*models.DailySummary, error) {
	args := m.Called(ctx, date, to, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DailySummary), args.Error(1)
}

type MockDepartmentService struct {
	mock.Mock
}

var _ services.DepartmentServiceInterface = (*MockDepartmentService)(nil)

func (m *MockDepartmentService) ListDepartments(ctx context.Context) ([]models.Department, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Department), args.Error(1)
}

func (m *MockDepartmentService) GetDepartment(ctx context.Context, id int) (*models.Department, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Department), args.Error(1)
}

func (m *MockDepartmentService) CreateDepartment(ctx context.Context, name string, keywords []string) (*models.Department, error) {
	args := m.Called(ctx, name, keywords)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Department), args.Error(1)
}

func (m *MockDepartmentService) SeedDefaultDepartments(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockDepartmentService) ListSolvers(ctx context.Context) ([]models.SolverSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.SolverSummary), args.Error(1)
}
