package services

import (
	"context"
	"sort"
	"sync"

	"metronix/internal/config"
	"metronix/internal/observability"
	"metronix/internal/services/mailer"
	contextutils "metronix/internal/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// CapturedEmail is an email the TestEmailService would have sent
type CapturedEmail struct {
	To       string
	Subject  string
	Template string
	Body     string
}

// TestEmailService implements the Mailer interface for testing purposes.
// It renders the template, logs the operation and keeps the result in memory.
type TestEmailService struct {
	cfg    *config.Config
	logger *observability.Logger

	mu   sync.Mutex
	sent []CapturedEmail
	// FailWith, when set, is returned from every SendEmail call
	FailWith error
}

var _ mailer.Mailer = (*TestEmailService)(nil)

// NewTestEmailService creates a new TestEmailService instance
func NewTestEmailService(cfg *config.Config, logger *observability.Logger) *TestEmailService {
	return &TestEmailService{
		cfg:    cfg,
		logger: logger,
	}
}

// SendEmail renders and records the email instead of sending it
func (e *TestEmailService) SendEmail(ctx context.Context, to, subject, templateName string, data map[string]interface{}) error {
	ctx, span := otel.Tracer("test-email-service").Start(ctx, "SendEmail",
		trace.WithAttributes(
			attribute.String("email.subject", subject),
			attribute.String("email.template", templateName),
		),
	)
	defer span.End()

	body, err := renderEmailTemplate(templateName, data)
	if err != nil {
		span.RecordError(err)
		return err
	}

	e.logger.Info(ctx, "TEST MODE: Would send email", map[string]interface{}{
		"to":        contextutils.MaskEmail(to),
		"subject":   subject,
		"template":  templateName,
		"test_mode": true,
		"data_keys": getMapKeys(data),
	})

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.FailWith != nil {
		return e.FailWith
	}
	e.sent = append(e.sent, CapturedEmail{To: to, Subject: subject, Template: templateName, Body: body})
	return nil
}

// IsEnabled always returns true in test mode
func (e *TestEmailService) IsEnabled() bool {
	return true
}

// Sent returns a copy of the captured emails
func (e *TestEmailService) Sent() []CapturedEmail {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]CapturedEmail, len(e.sent))
	copy(out, e.sent)
	return out
}

func getMapKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
