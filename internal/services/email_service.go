// Package services provides business logic services for the Metronix application.
package services

import (
	"context"
	"fmt"

	"metronix/internal/config"
	"metronix/internal/observability"
	"metronix/internal/services/mailer"
	contextutils "metronix/internal/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/mail.v2"
)

// EmailService implements the mailer.Mailer interface using gomail
type EmailService struct {
	cfg    *config.Config
	logger *observability.Logger
	dialer *mail.Dialer
}

// EmailServiceInterface defines the interface for email functionality
type EmailServiceInterface = mailer.Mailer

// Ensure EmailService implements the Mailer interface
var _ mailer.Mailer = (*EmailService)(nil)

// NewEmailService creates a new EmailService instance
func NewEmailService(cfg *config.Config, logger *observability.Logger) *EmailService {
	var dialer *mail.Dialer
	if cfg.Email.Enabled && cfg.Email.SMTP.Host != "" {
		dialer = mail.NewDialer(
			cfg.Email.SMTP.Host,
			cfg.Email.SMTP.Port,
			cfg.Email.SMTP.Username,
			cfg.Email.SMTP.Password,
		)
	}

	return &EmailService{
		cfg:    cfg,
		logger: logger,
		dialer: dialer,
	}
}

// SendEmail sends a templated email with the given parameters
func (e *EmailService) SendEmail(ctx context.Context, to, subject, templateName string, data map[string]interface{}) (err error) {
	ctx, span := otel.Tracer("email-service").Start(ctx, "SendEmail",
		trace.WithAttributes(
			attribute.String("email.to", contextutils.MaskEmail(to)),
			attribute.String("email.subject", subject),
			attribute.String("email.template", templateName),
		),
	)
	defer observability.FinishSpan(span, &err)

	if !e.IsEnabled() {
		e.logger.Info(ctx, "Email disabled, skipping email send", map[string]interface{}{
			"to":       contextutils.MaskEmail(to),
			"template": templateName,
		})
		return nil
	}

	if e.dialer == nil {
		return contextutils.WrapError(contextutils.ErrNotificationFailed, "email service not properly configured")
	}

	content, err := renderEmailTemplate(templateName, data)
	if err != nil {
		return contextutils.WrapError(err, "failed to generate email content")
	}

	m := mail.NewMessage()
	m.SetHeader("From", fmt.Sprintf("%s <%s>", e.fromName(), e.cfg.Email.SMTP.FromAddress))
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", content)

	if err = e.dialer.DialAndSend(m); err != nil {
		e.logger.Error(ctx, "Failed to send email", err, map[string]interface{}{
			"to":       contextutils.MaskEmail(to),
			"template": templateName,
			"subject":  subject,
		})
		return contextutils.WrapErrorf(contextutils.ErrNotificationFailed, "failed to send email: %v", err)
	}

	e.logger.Info(ctx, "Email sent successfully", map[string]interface{}{
		"to":       contextutils.MaskEmail(to),
		"template": templateName,
		"subject":  subject,
	})

	return nil
}

// IsEnabled returns whether email functionality is enabled
func (e *EmailService) IsEnabled() bool {
	return e.cfg.Email.Enabled && e.cfg.Email.SMTP.Host != ""
}

func (e *EmailService) fromName() string {
	if e.cfg.Email.SMTP.FromName != "" {
		return e.cfg.Email.SMTP.FromName
	}
	return "Metronix"
}
