package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"metronix/internal/cache"
	"metronix/internal/config"
	"metronix/internal/models"
	"metronix/internal/observability"
	contextutils "metronix/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// reportCachePrefix namespaces every cached report so a write can drop them all
const reportCachePrefix = "reports:"

// reportGenerationKey holds a counter bumped on every complaint write. Report keys
// embed the generation seen before the report was computed, so a report built
// from pre-write data and stored after the invalidation is never read back.
const reportGenerationKey = "reportgen"

// dateLayout is the UTC calendar date format used in reports
const dateLayout = "2006-01-02"

// ReportingServiceInterface is the read-only aggregation layer behind the admin views
type ReportingServiceInterface interface {
	CountByStatus(ctx context.Context) (models.StatusCounts, error)
	CountByPriority(ctx context.Context) (models.PriorityCounts, error)
	CountByDepartment(ctx context.Context) ([]models.DepartmentCount, error)
	DailyCounts(ctx context.Context, windowDays int) ([]models.DailyCount, error)
	ListFiltered(ctx context.Context, filter models.ComplaintFilter) ([]models.ComplaintSummary, error)
	Dashboard(ctx context.Context) (*models.Dashboard, error)
	Analytics(ctx context.Context, windowDays int) (*models.Analytics, error)
	DailySummary(ctx context.Context, date time.Time) (*models.DailySummary, error)
	SendDailySummary(ctx context.Context, date time.Time, to, name string) (*models.DailySummary, error)
}

// ReportingService runs aggregate queries. Dashboard and analytics are cached
// when a cache is configured; complaint writes invalidate them.
type ReportingService struct {
	db       *sql.DB
	cfg      *config.Config
	users    UserServiceInterface
	notifier NotificationServiceInterface
	cache    cache.Cache
	logger   *observability.Logger
	now      func() time.Time
}

var _ ReportingServiceInterface = (*ReportingService)(nil)

// NewReportingService creates a ReportingService. A nil cache disables caching.
func NewReportingService(
	db *sql.DB,
	cfg *config.Config,
	users UserServiceInterface,
	notifier NotificationServiceInterface,
	reportCache cache.Cache,
	logger *observability.Logger,
) *ReportingService {
	if reportCache == nil {
		reportCache = cache.NopCache{}
	}
	return &ReportingService{
		db:       db,
		cfg:      cfg,
		users:    users,
		notifier: notifier,
		cache:    reportCache,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CountByStatus counts complaints per status. Every status is present, zero included.
func (s *ReportingService) CountByStatus(ctx context.Context) (result0 models.StatusCounts, err error) {
	ctx, span := observability.TraceReportingFunction(ctx, "count_by_status")
	defer observability.FinishSpan(span, &err)

	counts := models.StatusCounts{}
	for _, st := range models.AllStatuses() {
		counts[st] = 0
	}
	err = s.groupCount(ctx, `SELECT status, COUNT(*) FROM complaints GROUP BY status`, func(key string, n int) {
		counts[models.Status(key)] = n
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// CountByPriority counts complaints per priority, zero included
func (s *ReportingService) CountByPriority(ctx context.Context) (result0 models.PriorityCounts, err error) {
	ctx, span := observability.TraceReportingFunction(ctx, "count_by_priority")
	defer observability.FinishSpan(span, &err)

	counts := models.PriorityCounts{}
	for _, p := range models.AllPriorities() {
		counts[p] = 0
	}
	err = s.groupCount(ctx, `SELECT priority, COUNT(*) FROM complaints GROUP BY priority`, func(key string, n int) {
		counts[models.Priority(key)] = n
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// CountByDepartment counts complaints per department. Complaints without a
// department are grouped under a nil id named "Unassigned".
func (s *ReportingService) CountByDepartment(ctx context.Context) (result0 []models.DepartmentCount, err error) {
	ctx, span := observability.TraceReportingFunction(ctx, "count_by_department")
	defer observability.FinishSpan(span, &err)

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.department_id, COALESCE(d.name, 'Unassigned'), COUNT(*)
		FROM complaints c
		LEFT JOIN departments d ON d.id = c.department_id
		GROUP BY c.department_id, d.name
		ORDER BY COUNT(*) DESC, COALESCE(d.name, 'Unassigned')`)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to count by department: %v", err)
	}
	defer func() { _ = rows.Close() }()

	counts := []models.DepartmentCount{}
	for rows.Next() {
		var deptID sql.NullInt64
		var dc models.DepartmentCount
		if err = rows.Scan(&deptID, &dc.Name, &dc.Count); err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to scan department count: %v", err)
		}
		if deptID.Valid {
			id := int(deptID.Int64)
			dc.DepartmentID = &id
		}
		counts = append(counts, dc)
	}
	if err = rows.Err(); err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to count by department: %v", err)
	}
	return counts, nil
}

// DailyCounts buckets complaints created in the trailing window by UTC date,
// ascending. Dates without complaints are omitted. A window of zero or less
// uses the configured default.
func (s *ReportingService) DailyCounts(ctx context.Context, windowDays int) (result0 []models.DailyCount, err error) {
	windowDays = s.windowDays(windowDays)
	ctx, span := observability.TraceReportingFunction(ctx, "daily_counts", attribute.Int("window_days", windowDays))
	defer observability.FinishSpan(span, &err)

	since := s.now().AddDate(0, 0, -windowDays)
	rows, err := s.db.QueryContext(ctx, `
		SELECT to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day, COUNT(*)
		FROM complaints
		WHERE created_at >= $1
		GROUP BY day
		ORDER BY day ASC`, since)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to count daily complaints: %v", err)
	}
	defer func() { _ = rows.Close() }()

	counts := []models.DailyCount{}
	for rows.Next() {
		var dc models.DailyCount
		if err = rows.Scan(&dc.Date, &dc.Count); err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to scan daily count: %v", err)
		}
		counts = append(counts, dc)
	}
	if err = rows.Err(); err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to count daily complaints: %v", err)
	}
	return counts, nil
}

// ListFiltered lists complaints newest first. Filters combine with AND.
func (s *ReportingService) ListFiltered(ctx context.Context, filter models.ComplaintFilter) (result0 []models.ComplaintSummary, err error) {
	ctx, span := observability.TraceReportingFunction(ctx, "list_filtered")
	defer observability.FinishSpan(span, &err)

	q := &summaryQuery{}
	q.applyFilter(filter)
	return q.run(ctx, s.db)
}

// Dashboard returns status counts, users by role and the most recent complaints
func (s *ReportingService) Dashboard(ctx context.Context) (result0 *models.Dashboard, err error) {
	ctx, span := observability.TraceReportingFunction(ctx, "dashboard")
	defer observability.FinishSpan(span, &err)

	key := s.reportKey(ctx, "dashboard")
	var cached models.Dashboard
	if s.cacheGet(ctx, key, &cached) {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return &cached, nil
	}

	counts, err := s.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	byRole, err := s.users.CountUsersByRole(ctx)
	if err != nil {
		return nil, err
	}

	recent := &summaryQuery{limit: s.recentLimit()}
	recentList, err := recent.run(ctx, s.db)
	if err != nil {
		return nil, err
	}

	dashboard := &models.Dashboard{
		Complaints:       counts,
		TotalComplaints:  counts.Total(),
		UsersByRole:      byRole,
		RecentComplaints: recentList,
	}
	s.cacheSet(ctx, key, dashboard)
	return dashboard, nil
}

// Analytics returns daily counts over the window plus department, priority and status stats
func (s *ReportingService) Analytics(ctx context.Context, windowDays int) (result0 *models.Analytics, err error) {
	windowDays = s.windowDays(windowDays)
	ctx, span := observability.TraceReportingFunction(ctx, "analytics", attribute.Int("window_days", windowDays))
	defer observability.FinishSpan(span, &err)

	key := s.reportKey(ctx, fmt.Sprintf("analytics:%d", windowDays))
	var cached models.Analytics
	if s.cacheGet(ctx, key, &cached) {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return &cached, nil
	}

	daily, err := s.DailyCounts(ctx, windowDays)
	if err != nil {
		return nil, err
	}
	departments, err := s.CountByDepartment(ctx)
	if err != nil {
		return nil, err
	}
	priorities, err := s.CountByPriority(ctx)
	if err != nil {
		return nil, err
	}
	statuses, err := s.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	analytics := &models.Analytics{
		ComplaintsByDay: daily,
		DepartmentStats: departments,
		PriorityStats:   priorities,
		StatusStats:     statuses,
	}
	s.cacheSet(ctx, key, analytics)
	return analytics, nil
}

// DailySummary covers the complaints created on the UTC date of date, newest first
func (s *ReportingService) DailySummary(ctx context.Context, date time.Time) (result0 *models.DailySummary, err error) {
	start := truncateToUTCDate(date)
	ctx, span := observability.TraceReportingFunction(ctx, "daily_summary", attribute.String("date", start.Format(dateLayout)))
	defer observability.FinishSpan(span, &err)

	q := &summaryQuery{}
	q.where("c.created_at >= ?", start).where("c.created_at < ?", start.AddDate(0, 0, 1))
	complaints, err := q.run(ctx, s.db)
	if err != nil {
		return nil, err
	}

	summary := &models.DailySummary{Date: start.Format(dateLayout), Complaints: complaints}
	for _, c := range complaints {
		summary.Total++
		switch c.Status {
		case models.StatusSubmitted:
			summary.Pending++
		case models.StatusAssigned:
			summary.Assigned++
		case models.StatusResolved:
			summary.Resolved++
		}
	}
	return summary, nil
}

// SendDailySummary builds the summary for date and emails it. Unlike lifecycle
// notifications, a delivery failure is returned to the caller.
func (s *ReportingService) SendDailySummary(ctx context.Context, date time.Time, to, name string) (result0 *models.DailySummary, err error) {
	ctx, span := observability.TraceReportingFunction(ctx, "send_daily_summary")
	defer observability.FinishSpan(span, &err)

	summary, err := s.DailySummary(ctx, date)
	if err != nil {
		return nil, err
	}

	result := s.notifier.SendDailySummary(ctx, to, name, summary)
	span.SetAttributes(observability.AttributeStatus(result.Status()))
	if result.Err != nil {
		return summary, result.Err
	}

	s.logger.Info(ctx, "Daily summary sent", map[string]interface{}{
		"date":  summary.Date,
		"total": summary.Total,
	})
	return summary, nil
}

func (s *ReportingService) groupCount(ctx context.Context, query string, set func(key string, n int)) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to count complaints: %v", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to scan count: %v", err)
		}
		set(key, n)
	}
	if err := rows.Err(); err != nil {
		return contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to count complaints: %v", err)
	}
	return nil
}

// reportKey returns the cache key for name under the current generation, or ""
// when the generation cannot be read and caching should be skipped.
func (s *ReportingService) reportKey(ctx context.Context, name string) string {
	var generation int64
	if _, err := s.cache.Get(ctx, reportGenerationKey, &generation); err != nil {
		s.logger.Warn(ctx, "Report cache generation unavailable", map[string]interface{}{"error": err.Error()})
		return ""
	}
	return fmt.Sprintf("%s%d:%s", reportCachePrefix, generation, name)
}

func (s *ReportingService) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if key == "" {
		return false
	}
	hit, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		s.logger.Warn(ctx, "Report cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
		return false
	}
	return hit
}

func (s *ReportingService) cacheSet(ctx context.Context, key string, value interface{}) {
	if key == "" {
		return
	}
	ttl := s.cfg.Redis.TTL
	if ttl <= 0 {
		ttl = config.DefaultReportCacheTTL
	}
	if err := s.cache.Set(ctx, key, value, ttl); err != nil {
		s.logger.Warn(ctx, "Report cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
}

func (s *ReportingService) windowDays(days int) int {
	if days > 0 {
		return days
	}
	if s.cfg.Reporting.WindowDays > 0 {
		return s.cfg.Reporting.WindowDays
	}
	return config.DefaultReportingWindowDays
}

func (s *ReportingService) recentLimit() int {
	if s.cfg.Reporting.RecentLimit > 0 {
		return s.cfg.Reporting.RecentLimit
	}
	return config.DefaultRecentComplaints
}

func truncateToUTCDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
