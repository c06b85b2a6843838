package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"metronix/internal/config"
	"metronix/internal/models"
	contextutils "metronix/internal/utils"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// memoryCache is an in-process Cache for exercising cache hits
type memoryCache struct {
	values   map[string]interface{}
	counters map[string]int64
	deleted  []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string]interface{}{}, counters: map[string]int64{}}
}

func (c *memoryCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	if d, ok := dest.(*int64); ok {
		n, found := c.counters[key]
		*d = n
		return found, nil
	}
	v, ok := c.values[key]
	if !ok {
		return false, nil
	}
	switch d := dest.(type) {
	case *models.Dashboard:
		*d = *(v.(*models.Dashboard))
	case *models.Analytics:
		*d = *(v.(*models.Analytics))
	}
	return true, nil
}

func (c *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.values[key] = value
	return nil
}

func (c *memoryCache) DeletePrefix(_ context.Context, prefix string) error {
	c.deleted = append(c.deleted, prefix)
	return nil
}

func (c *memoryCache) Incr(_ context.Context, key string) (int64, error) {
	c.counters[key]++
	return c.counters[key], nil
}

type reportingFixture struct {
	service  *ReportingService
	sql      sqlmock.Sqlmock
	users    *MockUserService
	notifier *MockNotifier
	cache    *memoryCache
}

func newTestReportingService(t *testing.T) (*reportingFixture, func()) {
	t.Helper()

	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)

	f := &reportingFixture{
		sql:      sqlMock,
		users:    &MockUserService{},
		notifier: &MockNotifier{},
		cache:    newMemoryCache(),
	}
	cfg := &config.Config{Reporting: config.ReportingConfig{RecentLimit: 3}}
	f.service = NewReportingService(db, cfg, f.users, f.notifier, f.cache, createTestLogger())
	f.service.now = func() time.Time { return testNow }

	cleanup := func() {
		require.NoError(t, sqlMock.ExpectationsWereMet())
		f.users.AssertExpectations(t)
		f.notifier.AssertExpectations(t)
		require.NoError(t, db.Close())
	}
	return f, cleanup
}

func (f *reportingFixture) expectStatusCounts() {
	f.sql.ExpectQuery(`SELECT status, COUNT\(\*\) FROM complaints GROUP BY status`).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("SUBMITTED", 4).
			AddRow("RESOLVED", 2))
}

func TestReportingService_CountByStatusIncludesZeros(t *testing.T) {
	f, cleanup := newTestReportingService(t)
	defer cleanup()

	f.expectStatusCounts()

	counts, err := f.service.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.StatusCounts{
		models.StatusSubmitted: 4,
		models.StatusAssigned:  0,
		models.StatusResolved:  2,
	}, counts)
	assert.Equal(t, 6, counts.Total())
}

func TestReportingService_CountByPriority(t *testing.T) {
	f, cleanup := newTestReportingService(t)
	defer cleanup()

	f.sql.ExpectQuery(`SELECT priority, COUNT\(\*\) FROM complaints GROUP BY priority`).
		WillReturnRows(sqlmock.NewRows([]string{"priority", "count"}).AddRow("HIGH", 5))

	counts, err := f.service.CountByPriority(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, counts[models.PriorityHigh])
	assert.Equal(t, 0, counts[models.PriorityLow])
	assert.Len(t, counts, 3)
}

func TestReportingService_CountByDepartment(t *testing.T) {
	f, cleanup := newTestReportingService(t)
	defer cleanup()

	f.sql.ExpectQuery(`LEFT JOIN departments d ON d.id = c.department_id`).
		WillReturnRows(sqlmock.NewRows([]string{"department_id", "name", "count"}).
			AddRow(1, "Public Works", 7).
			AddRow(nil, "Unassigned", 3))

	counts, err := f.service.CountByDepartment(context.Background())
	require.NoError(t, err)
	require.Len(t, counts, 2)
	require.NotNil(t, counts[0].DepartmentID)
	assert.Equal(t, 1, *counts[0].DepartmentID)
	assert.Nil(t, counts[1].DepartmentID)
	assert.Equal(t, "Unassigned", counts[1].Name)
}

func TestReportingService_DailyCounts(t *testing.T) {
	f, cleanup := newTestReportingService(t)
	defer cleanup()

	f.sql.ExpectQuery(`GROUP BY day\s+ORDER BY day ASC`).
		WithArgs(testNow.AddDate(0, 0, -30)).
		WillReturnRows(sqlmock.NewRows([]string{"day", "count"}).
			AddRow("2026-02-27", 2).
			AddRow("2026-03-01", 1))

	counts, err := f.service.DailyCounts(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []models.DailyCount{{Date: "2026-02-27", Count: 2}, {Date: "2026-03-01", Count: 1}}, counts)
}

func TestReportingService_DailyCounts_CustomWindow(t *testing.T) {
	f, cleanup := newTestReportingService(t)
	defer cleanup()

	f.sql.ExpectQuery(`FROM complaints\s+WHERE created_at >= \$1`).
		WithArgs(testNow.AddDate(0, 0, -7)).
		WillReturnRows(sqlmock.NewRows([]string{"day", "count"}))

	counts, err := f.service.DailyCounts(context.Background(), 7)
	require.NoError(t, err)
	assert.Empty(t, counts)
	assert.NotNil(t, counts)
}

func TestReportingService_QueryErrorSurfaces(t *testing.T) {
	f, cleanup := newTestReportingService(t)
	defer cleanup()

	f.sql.ExpectQuery(`SELECT status`).WillReturnError(errors.New("connection reset"))

	_, err := f.service.CountByStatus(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, contextutils.ErrDatabaseQuery))
}

func TestReportingService_ListFiltered(t *testing.T) {
	f, cleanup := newTestReportingService(t)
	defer cleanup()

	high := models.PriorityHigh
	solver := 9
	created := testNow.Add(-time.Hour)
	f.sql.ExpectQuery(`WHERE c.priority = \$1 AND c.solver_id = \$2\s+ORDER BY c.created_at DESC, c.id DESC`).
		WithArgs("HIGH", 9).
		WillReturnRows(summaryRows().
			AddRow(4, "Outage", "d", "ELECTRICITY", "HIGH", "ASSIGNED", "", nil, nil, "{}", 3, nil, 9, created, created,
				3, "John Doe", "john@example.com", 9, "Sam Solver", "sam@example.com"))

	list, err := f.service.ListFiltered(context.Background(), models.ComplaintFilter{Priority: &high, SolverID: &solver})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Sam Solver", list[0].Solver.Name)
}

func TestReportingService_DashboardIsCached(t *testing.T) {
	f, cleanup := newTestReportingService(t)
	defer cleanup()

	f.expectStatusCounts()
	f.users.On("CountUsersByRole", mock.Anything).
		Return(map[models.Role]int{models.RoleCitizen: 5, models.RoleSolver: 2, models.RoleAdmin: 1}, nil).Once()
	f.sql.ExpectQuery(`ORDER BY c.created_at DESC, c.id DESC\s+LIMIT \$1`).WithArgs(3).
		WillReturnRows(summaryRows())

	first, err := f.service.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, first.TotalComplaints)
	assert.Equal(t, 5, first.UsersByRole[models.RoleCitizen])
	assert.Empty(t, first.RecentComplaints)

	second, err := f.service.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.TotalComplaints, second.TotalComplaints)
	assert.Contains(t, f.cache.values, "reports:0:dashboard")
}

func TestReportingService_DashboardIgnoresEntriesFromOlderGeneration(t *testing.T) {
	f, cleanup := newTestReportingService(t)
	defer cleanup()

	f.users.On("CountUsersByRole", mock.Anything).
		Return(map[models.Role]int{models.RoleCitizen: 5}, nil).Twice()
	for i := 0; i < 2; i++ {
		f.expectStatusCounts()
		f.sql.ExpectQuery(`ORDER BY c.created_at DESC, c.id DESC\s+LIMIT \$1`).WithArgs(3).
			WillReturnRows(summaryRows())
	}

	_, err := f.service.Dashboard(context.Background())
	require.NoError(t, err)

	// A write bumps the generation. The entry stored under the old generation
	// stands in for a report that raced the write and landed after it.
	_, err = f.cache.Incr(context.Background(), reportGenerationKey)
	require.NoError(t, err)
	require.Contains(t, f.cache.values, "reports:0:dashboard")

	_, err = f.service.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Contains(t, f.cache.values, "reports:1:dashboard")
	require.NoError(t, f.sql.ExpectationsWereMet())
}

func TestReportingService_Analytics(t *testing.T) {
	f, cleanup := newTestReportingService(t)
	defer cleanup()

	f.sql.ExpectQuery(`GROUP BY day`).WillReturnRows(sqlmock.NewRows([]string{"day", "count"}).AddRow("2026-03-01", 3))
	f.sql.ExpectQuery(`LEFT JOIN departments`).WillReturnRows(sqlmock.NewRows([]string{"department_id", "name", "count"}))
	f.sql.ExpectQuery(`GROUP BY priority`).WillReturnRows(sqlmock.NewRows([]string{"priority", "count"}).AddRow("LOW", 3))
	f.expectStatusCounts()

	analytics, err := f.service.Analytics(context.Background(), 14)
	require.NoError(t, err)
	require.Len(t, analytics.ComplaintsByDay, 1)
	assert.Equal(t, 3, analytics.PriorityStats[models.PriorityLow])
	assert.Equal(t, 4, analytics.StatusStats[models.StatusSubmitted])
	assert.Contains(t, f.cache.values, "reports:0:analytics:14")
}

func TestReportingService_DailySummary(t *testing.T) {
	f, cleanup := newTestReportingService(t)
	defer cleanup()

	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	created := day.Add(5 * time.Hour)
	f.sql.ExpectQuery(`WHERE c.created_at >= \$1 AND c.created_at < \$2`).
		WithArgs(day, day.AddDate(0, 0, 1)).
		WillReturnRows(summaryRows().
			AddRow(3, "A", "d", "ROADS", "LOW", "SUBMITTED", "", nil, nil, "{}", 3, nil, nil, created, created, 3, "John", "j@example.com", nil, nil, nil).
			AddRow(2, "B", "d", "ROADS", "LOW", "ASSIGNED", "", nil, nil, "{}", 3, nil, 9, created, created, 3, "John", "j@example.com", 9, "Sam", "s@example.com").
			AddRow(1, "C", "d", "ROADS", "LOW", "RESOLVED", "", nil, nil, "{}", 3, nil, 9, created, created, 3, "John", "j@example.com", 9, "Sam", "s@example.com"))

	// Any time on the date selects the whole UTC day.
	summary, err := f.service.DailySummary(context.Background(), day.Add(17*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01", summary.Date)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 1, summary.Pending)
	assert.Equal(t, 1, summary.Assigned)
	assert.Equal(t, 1, summary.Resolved)
	assert.Len(t, summary.Complaints, 3)
}

func TestReportingService_SendDailySummary(t *testing.T) {
	t.Run("delivered", func(t *testing.T) {
		f, cleanup := newTestReportingService(t)
		defer cleanup()

		f.sql.ExpectQuery(`WHERE c.created_at >= \$1`).WillReturnRows(summaryRows())
		f.notifier.On("SendDailySummary", mock.Anything, "admin@metronix.com", "Admin", mock.AnythingOfType("*models.DailySummary")).
			Return(NotificationResult{Delivered: true})

		summary, err := f.service.SendDailySummary(context.Background(), testNow, "admin@metronix.com", "Admin")
		require.NoError(t, err)
		assert.Equal(t, 0, summary.Total)
	})

	t.Run("failure surfaces", func(t *testing.T) {
		f, cleanup := newTestReportingService(t)
		defer cleanup()

		f.sql.ExpectQuery(`WHERE c.created_at >= \$1`).WillReturnRows(summaryRows())
		f.notifier.On("SendDailySummary", mock.Anything, "admin@metronix.com", "Admin", mock.Anything).
			Return(NotificationResult{Err: contextutils.WrapError(contextutils.ErrNotificationFailed, "smtp down")})

		summary, err := f.service.SendDailySummary(context.Background(), testNow, "admin@metronix.com", "Admin")
		require.Error(t, err)
		assert.True(t, errors.Is(err, contextutils.ErrNotificationFailed))
		assert.NotNil(t, summary)
	})
}

func TestTruncateToUTCDate(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	in := time.Date(2026, 3, 2, 3, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), truncateToUTCDate(in))
}
