package handlers

import (
	"net/http"
	"strings"
	"time"

	"metronix/internal/api"
	"metronix/internal/config"
	"metronix/internal/models"
	"metronix/internal/observability"
	"metronix/internal/services"
	contextutils "metronix/internal/utils"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

const dateLayout = "2006-01-02"

// AdminHandler serves the administrator endpoints
type AdminHandler struct {
	userService       services.UserServiceInterface
	complaintService  services.ComplaintServiceInterface
	reportingService  services.ReportingServiceInterface
	departmentService services.DepartmentServiceInterface
	config            *config.Config
	logger            *observability.Logger
}

// NewAdminHandler creates a new AdminHandler instance
func NewAdminHandler(
	userService services.UserServiceInterface,
	complaintService services.ComplaintServiceInterface,
	reportingService services.ReportingServiceInterface,
	departmentService services.DepartmentServiceInterface,
	cfg *config.Config,
	logger *observability.Logger,
) *AdminHandler {
	return &AdminHandler{
		userService:       userService,
		complaintService:  complaintService,
		reportingService:  reportingService,
		departmentService: departmentService,
		config:            cfg,
		logger:            logger,
	}
}

// ListComplaints returns complaints matching the query filters, newest first
func (h *AdminHandler) ListComplaints(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "admin_list_complaints")
	defer observability.FinishSpan(span, nil)

	filter, ok := parseComplaintFilter(c)
	if !ok {
		return
	}

	complaints, err := h.reportingService.ListFiltered(ctx, filter)
	if err != nil {
		respondError(ctx, c, h.logger, "Failed to list complaints", err, nil)
		return
	}

	span.SetAttributes(attribute.Int("complaints.count", len(complaints)))
	c.JSON(http.StatusOK, gin.H{"complaints": complaints})
}

// OverrideComplaint applies an administrative change to a complaint
func (h *AdminHandler) OverrideComplaint(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "admin_override_complaint")
	defer observability.FinishSpan(span, nil)

	actor, ok := currentActor(c)
	if !ok {
		return
	}
	complaintID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req api.AdminOverrideRequest
	if !bindJSON(c, &req) {
		return
	}

	update := models.ComplaintUpdate{
		SolverID:     req.SolverId,
		DepartmentID: req.DepartmentId,
		ClearSolver:  req.ClearSolver != nil && *req.ClearSolver,
	}
	if req.Status != nil {
		status, valid := models.ParseStatus(*req.Status)
		if !valid {
			HandleValidationError(c, "status", *req.Status, "unknown status")
			return
		}
		update.Status = &status
	}
	if req.Priority != nil {
		priority, valid := models.ParsePriority(*req.Priority)
		if !valid {
			HandleValidationError(c, "priority", *req.Priority, "unknown priority")
			return
		}
		update.Priority = &priority
	}
	span.SetAttributes(observability.AttributeComplaintID(complaintID))

	complaint, err := h.complaintService.AdminOverride(ctx, complaintID, actor, update)
	if err != nil {
		respondError(ctx, c, h.logger, "Failed to override complaint", err, map[string]interface{}{"complaint_id": complaintID})
		return
	}

	c.JSON(http.StatusOK, complaint)
}

// GetDashboard returns status counts, users by role and recent complaints
func (h *AdminHandler) GetDashboard(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "admin_dashboard")
	defer observability.FinishSpan(span, nil)

	dashboard, err := h.reportingService.Dashboard(ctx)
	if err != nil {
		respondError(ctx, c, h.logger, "Failed to build dashboard", err, nil)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

// GetAnalytics returns chart data over the trailing ?days= window
func (h *AdminHandler) GetAnalytics(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "admin_analytics")
	defer observability.FinishSpan(span, nil)

	days, ok := parseWindowDays(c)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int("analytics.window_days", days))

	analytics, err := h.reportingService.Analytics(ctx, days)
	if err != nil {
		respondError(ctx, c, h.logger, "Failed to build analytics", err, nil)
		return
	}
	c.JSON(http.StatusOK, analytics)
}

// ListUsers returns users with complaint counts, optionally filtered by ?role=
func (h *AdminHandler) ListUsers(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "admin_list_users")
	defer observability.FinishSpan(span, nil)

	var role *models.Role
	if raw := strings.TrimSpace(c.Query("role")); raw != "" {
		r, valid := models.ParseRole(raw)
		if !valid {
			HandleValidationError(c, "role", raw, "unknown role")
			return
		}
		role = &r
		span.SetAttributes(observability.AttributeRole(string(r)))
	}

	users, err := h.userService.ListUsersWithCounts(ctx, role)
	if err != nil {
		respondError(ctx, c, h.logger, "Failed to list users", err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// CreateUser creates a user of any role
func (h *AdminHandler) CreateUser(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "admin_create_user")
	defer observability.FinishSpan(span, nil)

	var req api.CreateUserRequest
	if !bindJSON(c, &req) {
		return
	}
	role, valid := models.ParseRole(req.Role)
	if !valid {
		HandleValidationError(c, "role", req.Role, "unknown role")
		return
	}

	user, err := h.userService.CreateUser(ctx, services.CreateUserInput{
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.ToLower(strings.TrimSpace(string(req.Email))),
		Password:     req.Password,
		Role:         role,
		DepartmentID: req.DepartmentId,
	})
	if err != nil {
		respondError(ctx, c, h.logger, "Failed to create user", err, map[string]interface{}{"role": string(role)})
		return
	}

	span.SetAttributes(observability.AttributeUserID(user.ID), observability.AttributeRole(string(role)))
	h.logger.Info(ctx, "User created by admin", map[string]interface{}{"user_id": user.ID, "role": string(role)})
	c.JSON(http.StatusCreated, convertUserToAPI(user))
}

// ListDepartments returns every department
func (h *AdminHandler) ListDepartments(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "admin_list_departments")
	defer observability.FinishSpan(span, nil)

	departments, err := h.departmentService.ListDepartments(ctx)
	if err != nil {
		respondError(ctx, c, h.logger, "Failed to list departments", err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"departments": convertDepartmentsToAPI(departments)})
}

// CreateDepartment adds a department
func (h *AdminHandler) CreateDepartment(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "admin_create_department")
	defer observability.FinishSpan(span, nil)

	var req api.CreateDepartmentRequest
	if !bindJSON(c, &req) {
		return
	}
	var keywords []string
	if req.Keywords != nil {
		keywords = *req.Keywords
	}

	dept, err := h.departmentService.CreateDepartment(ctx, req.Name, keywords)
	if err != nil {
		respondError(ctx, c, h.logger, "Failed to create department", err, nil)
		return
	}
	c.JSON(http.StatusCreated, convertDepartmentsToAPI([]models.Department{*dept})[0])
}

// GetReferenceData returns the enum values, departments and solvers used by admin forms
func (h *AdminHandler) GetReferenceData(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "admin_reference_data")
	defer observability.FinishSpan(span, nil)

	departments, err := h.departmentService.ListDepartments(ctx)
	if err != nil {
		respondError(ctx, c, h.logger, "Failed to list departments", err, nil)
		return
	}
	solvers, err := h.departmentService.ListSolvers(ctx)
	if err != nil {
		respondError(ctx, c, h.logger, "Failed to list solvers", err, nil)
		return
	}

	c.JSON(http.StatusOK, api.ReferenceData{
		Categories:  enumStrings(models.AllCategories()),
		Priorities:  enumStrings(models.AllPriorities()),
		Statuses:    enumStrings(models.AllStatuses()),
		Departments: convertDepartmentsToAPI(departments),
		Solvers:     convertSolversToAPI(solvers),
	})
}

// GetDailySummary previews the summary for ?date= (UTC, default today)
func (h *AdminHandler) GetDailySummary(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "admin_daily_summary")
	defer observability.FinishSpan(span, nil)

	date := time.Now().UTC()
	if raw := strings.TrimSpace(c.Query("date")); raw != "" {
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			HandleValidationError(c, "date", raw, "expected YYYY-MM-DD")
			return
		}
		date = parsed
	}

	summary, err := h.reportingService.DailySummary(ctx, date)
	if err != nil {
		respondError(ctx, c, h.logger, "Failed to build daily summary", err, nil)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// SendDailySummary emails the summary. The recipient defaults to the calling admin.
func (h *AdminHandler) SendDailySummary(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "admin_send_daily_summary")
	defer observability.FinishSpan(span, nil)

	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req api.DailySummarySendRequest
	if !bindJSON(c, &req) {
		return
	}

	date := time.Now().UTC()
	if req.Date != nil {
		date = req.Date.Time
	}

	admin, err := h.userService.GetUserByID(ctx, actor.UserID)
	if err != nil {
		respondError(ctx, c, h.logger, "Failed to load admin user", err, map[string]interface{}{"user_id": actor.UserID})
		return
	}
	to, name := admin.Email, admin.Name
	if req.Email != nil && *req.Email != "" {
		to, name = string(*req.Email), ""
	}

	summary, err := h.reportingService.SendDailySummary(ctx, date, to, name)
	if err != nil {
		respondError(ctx, c, h.logger, "Failed to send daily summary", err, map[string]interface{}{
			"recipient": contextutils.MaskEmail(to),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sent":      true,
		"recipient": to,
		"summary":   summary,
	})
}
