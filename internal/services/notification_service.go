package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"metronix/internal/config"
	"metronix/internal/models"
	"metronix/internal/observability"
	"metronix/internal/services/mailer"
	contextutils "metronix/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// NotificationKind identifies which email a notification attempt sent
type NotificationKind string

// Notification kinds, one per email template
const (
	NotificationConfirmation NotificationKind = mailer.TemplateComplaintConfirmation
	NotificationAssignment   NotificationKind = mailer.TemplateComplaintAssigned
	NotificationStatusUpdate NotificationKind = mailer.TemplateStatusUpdate
	NotificationDailySummary NotificationKind = mailer.TemplateDailySummary
)

// Values stored in sent_notifications.status
const (
	NotificationStatusSent    = "sent"
	NotificationStatusFailed  = "failed"
	NotificationStatusSkipped = "skipped"
)

// NotificationResult is the outcome of one notification attempt
type NotificationResult struct {
	Kind      NotificationKind
	Recipient string
	Subject   string
	Delivered bool
	// Skipped is set when nothing was attempted, e.g. no recipient address or email disabled
	Skipped bool
	Err     error
}

// Status returns the value recorded in sent_notifications
func (r NotificationResult) Status() string {
	switch {
	case r.Delivered:
		return NotificationStatusSent
	case r.Skipped:
		return NotificationStatusSkipped
	default:
		return NotificationStatusFailed
	}
}

// NotificationServiceInterface sends the complaint lifecycle emails.
// Lifecycle callers inspect the result only for logging; a failed attempt never
// fails the operation that triggered it.
type NotificationServiceInterface interface {
	NotifySubmitted(ctx context.Context, complaint *models.Complaint, citizen *models.User) NotificationResult
	NotifyAssigned(ctx context.Context, complaint *models.Complaint, solver *models.User) NotificationResult
	NotifyStatusChange(ctx context.Context, complaint *models.Complaint, citizen *models.User, previous models.Status, note string) NotificationResult
	SendDailySummary(ctx context.Context, to, name string, summary *models.DailySummary) NotificationResult
}

// NotificationService renders notifications through a Mailer and records every attempt
type NotificationService struct {
	db      *sql.DB
	mailer  mailer.Mailer
	cfg     *config.Config
	logger  *observability.Logger
	metrics *observability.LifecycleMetrics
}

var _ NotificationServiceInterface = (*NotificationService)(nil)

// NewNotificationService creates a NotificationService. db may be nil, in which
// case attempts are logged but not recorded.
func NewNotificationService(db *sql.DB, m mailer.Mailer, cfg *config.Config, logger *observability.Logger, metrics *observability.LifecycleMetrics) *NotificationService {
	return &NotificationService{db: db, mailer: m, cfg: cfg, logger: logger, metrics: metrics}
}

// NotifySubmitted sends the confirmation email to the citizen who filed the complaint
func (s *NotificationService) NotifySubmitted(ctx context.Context, complaint *models.Complaint, citizen *models.User) NotificationResult {
	return s.attempt(ctx, notification{
		kind:        NotificationConfirmation,
		user:        citizen,
		complaintID: complaint.ID,
		subject:     fmt.Sprintf("Complaint Submitted - %s", complaint.Title),
		data: map[string]interface{}{
			"Name":         displayName(citizen),
			"Complaint":    *complaint,
			"DashboardURL": s.dashboardURL("/citizen/dashboard"),
		},
	})
}

// NotifyAssigned tells a solver a complaint is now theirs
func (s *NotificationService) NotifyAssigned(ctx context.Context, complaint *models.Complaint, solver *models.User) NotificationResult {
	return s.attempt(ctx, notification{
		kind:        NotificationAssignment,
		user:        solver,
		complaintID: complaint.ID,
		subject:     fmt.Sprintf("New Complaint Assigned - %s", complaint.Title),
		data: map[string]interface{}{
			"Name":         displayName(solver),
			"Complaint":    *complaint,
			"DashboardURL": s.dashboardURL("/solver/dashboard"),
		},
	})
}

// NotifyStatusChange tells the citizen about progress on their complaint
func (s *NotificationService) NotifyStatusChange(ctx context.Context, complaint *models.Complaint, citizen *models.User, previous models.Status, note string) NotificationResult {
	return s.attempt(ctx, notification{
		kind:        NotificationStatusUpdate,
		user:        citizen,
		complaintID: complaint.ID,
		subject:     fmt.Sprintf("Complaint Status Updated - %s", complaint.Title),
		data: map[string]interface{}{
			"Name":           displayName(citizen),
			"Complaint":      *complaint,
			"PreviousStatus": previous,
			"NewStatus":      complaint.Status,
			"Note":           note,
			"DashboardURL":   s.dashboardURL("/citizen/dashboard"),
		},
	})
}

// SendDailySummary emails the summary for one day to an administrator.
// Unlike the lifecycle notifications the caller is expected to surface Err.
func (s *NotificationService) SendDailySummary(ctx context.Context, to, name string, summary *models.DailySummary) NotificationResult {
	limit := s.cfg.Reporting.SummaryLimit
	if limit <= 0 {
		limit = config.DefaultSummaryComplaints
	}
	recent := summary.Complaints
	if len(recent) > limit {
		recent = recent[:limit]
	}
	if name == "" {
		name = "Admin"
	}

	return s.attempt(ctx, notification{
		kind:     NotificationDailySummary,
		user:     &models.User{Name: name, Email: to},
		subject:  fmt.Sprintf("Daily Complaint Summary - %s", summary.Date),
		mustSend: true,
		data: map[string]interface{}{
			"Name":         name,
			"Summary":      *summary,
			"Recent":       recent,
			"DashboardURL": s.dashboardURL("/admin/dashboard"),
		},
	})
}

type notification struct {
	kind        NotificationKind
	user        *models.User
	complaintID int
	subject     string
	data        map[string]interface{}
	// mustSend turns a disabled mailer into a failure instead of a skip
	mustSend bool
}

func (s *NotificationService) attempt(ctx context.Context, n notification) (result NotificationResult) {
	ctx, span := observability.TraceNotificationFunction(ctx, "send_notification",
		attribute.String("notification.kind", string(n.kind)),
		observability.AttributeComplaintID(n.complaintID),
	)
	defer func() {
		span.SetAttributes(attribute.String("notification.status", result.Status()))
		err := result.Err
		observability.FinishSpan(span, &err)
	}()

	result = NotificationResult{Kind: n.kind, Subject: n.subject}
	if n.user != nil {
		result.Recipient = strings.TrimSpace(n.user.Email)
	}

	switch {
	case result.Recipient == "":
		result.Skipped = true
		if n.mustSend {
			result.Err = contextutils.WrapError(contextutils.ErrMissingRequired, "no recipient address for notification")
		}
	case !s.mailer.IsEnabled():
		result.Skipped = true
		if n.mustSend {
			result.Err = contextutils.WrapError(contextutils.ErrServiceUnavailable, "email is not enabled")
		}
	default:
		if err := s.mailer.SendEmail(ctx, result.Recipient, n.subject, string(n.kind), n.data); err != nil {
			result.Err = contextutils.WrapErrorf(contextutils.ErrNotificationFailed, "notification not delivered: %v", err)
		} else {
			result.Delivered = true
		}
		s.metrics.RecordNotification(ctx, string(n.kind), result.Delivered)
	}

	fields := map[string]interface{}{
		"kind":         string(n.kind),
		"complaint_id": n.complaintID,
		"recipient":    contextutils.MaskEmail(result.Recipient),
		"status":       result.Status(),
	}
	if result.Err != nil {
		s.logger.Warn(ctx, "Notification not delivered", mergeErrorField(fields, result.Err))
	} else {
		s.logger.Info(ctx, "Notification processed", fields)
	}

	if result.Recipient != "" {
		s.record(ctx, n, result)
	}
	return result
}

// record stores the attempt; failures here are only logged
func (s *NotificationService) record(ctx context.Context, n notification, result NotificationResult) {
	if s.db == nil {
		return
	}

	var userID sql.NullInt64
	if n.user != nil && n.user.ID > 0 {
		userID = sql.NullInt64{Int64: int64(n.user.ID), Valid: true}
	}
	var complaintID sql.NullInt64
	if n.complaintID > 0 {
		complaintID = sql.NullInt64{Int64: int64(n.complaintID), Valid: true}
	}
	var errMsg sql.NullString
	if result.Err != nil {
		errMsg = sql.NullString{String: result.Err.Error(), Valid: true}
	}

	query := `
		INSERT INTO sent_notifications (user_id, complaint_id, notification_type, recipient, subject, status, error_message, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := s.db.ExecContext(ctx, query, userID, complaintID, string(n.kind), result.Recipient, n.subject, result.Status(), errMsg, time.Now().UTC()); err != nil {
		s.logger.Error(ctx, "Failed to record sent notification", err, map[string]interface{}{
			"kind":         string(n.kind),
			"complaint_id": n.complaintID,
		})
	}
}

func (s *NotificationService) dashboardURL(path string) string {
	base := strings.TrimRight(s.cfg.Server.AppBaseURL, "/")
	if base == "" {
		base = "http://localhost:3000"
	}
	return base + path
}

func displayName(u *models.User) string {
	if u == nil || strings.TrimSpace(u.Name) == "" {
		return "there"
	}
	return u.Name
}

func mergeErrorField(fields map[string]interface{}, err error) map[string]interface{} {
	out := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["error"] = err.Error()
	return out
}
