// Package mailer defines the email sending interface used by the notification layer.
package mailer

import (
	"context"
)

// Template names understood by every Mailer implementation
const (
	TemplateComplaintConfirmation = "complaint_confirmation"
	TemplateComplaintAssigned     = "complaint_assigned"
	TemplateStatusUpdate          = "status_update"
	TemplateDailySummary          = "daily_summary"
)

// Mailer defines the interface for email sending functionality
type Mailer interface {
	// SendEmail renders templateName with data and sends it as an HTML email
	SendEmail(ctx context.Context, to, subject, templateName string, data map[string]interface{}) error

	// IsEnabled returns whether email functionality is enabled
	IsEnabled() bool
}

// KnownTemplates lists the templates in the order they are documented
func KnownTemplates() []string {
	return []string{
		TemplateComplaintConfirmation,
		TemplateComplaintAssigned,
		TemplateStatusUpdate,
		TemplateDailySummary,
	}
}
