package services

import (
	"context"
	"errors"
	"testing"

	"metronix/internal/config"
	"metronix/internal/models"
	"metronix/internal/observability"
	"metronix/internal/services/mailer"
	contextutils "metronix/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockMailer is a mock implementation of the Mailer interface for testing
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendEmail(ctx context.Context, to, subject, templateName string, data map[string]interface{}) error {
	args := m.Called(ctx, to, subject, templateName, data)
	return args.Error(0)
}

func (m *MockMailer) IsEnabled() bool {
	args := m.Called()
	return args.Bool(0)
}

var _ mailer.Mailer = (*MockMailer)(nil)

// createTestLogger creates a logger for testing
func createTestLogger() *observability.Logger {
	cfg := &config.OpenTelemetryConfig{
		EnableLogging: false, // Disable logging for tests
	}
	return observability.NewLogger(cfg)
}

func TestNewEmailService(t *testing.T) {
	cfg := &config.Config{
		Email: config.EmailConfig{
			Enabled: true,
			SMTP: config.SMTPConfig{
				Host:        "smtp.example.com",
				Port:        587,
				Username:    "mailer@example.com",
				Password:    "password",
				FromAddress: "noreply@metronix.com",
				FromName:    "Metronix",
			},
		},
	}

	service := NewEmailService(cfg, createTestLogger())

	assert.NotNil(t, service)
	assert.True(t, service.IsEnabled())
	assert.NotNil(t, service.dialer)
}

func TestNewEmailService_Disabled(t *testing.T) {
	cfg := &config.Config{Email: config.EmailConfig{Enabled: false}}

	service := NewEmailService(cfg, createTestLogger())

	assert.NotNil(t, service)
	assert.False(t, service.IsEnabled())
	assert.Nil(t, service.dialer)
}

func TestNewEmailService_EnabledWithoutHost(t *testing.T) {
	cfg := &config.Config{Email: config.EmailConfig{Enabled: true}}

	service := NewEmailService(cfg, createTestLogger())

	assert.False(t, service.IsEnabled())
}

func TestEmailService_SendEmail_Disabled(t *testing.T) {
	service := NewEmailService(&config.Config{}, createTestLogger())

	err := service.SendEmail(context.Background(), "citizen@example.com", "subject", mailer.TemplateComplaintConfirmation, nil)
	assert.NoError(t, err)
}

func TestEmailService_SendEmail_UnknownTemplate(t *testing.T) {
	cfg := &config.Config{
		Email: config.EmailConfig{Enabled: true, SMTP: config.SMTPConfig{Host: "smtp.example.com", Port: 587}},
	}
	service := NewEmailService(cfg, createTestLogger())

	err := service.SendEmail(context.Background(), "citizen@example.com", "subject", "word_of_the_day", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown template")
}

func TestEmailService_FromNameDefault(t *testing.T) {
	service := NewEmailService(&config.Config{}, createTestLogger())
	assert.Equal(t, "Metronix", service.fromName())
}

func sampleComplaint() models.Complaint {
	return models.Complaint{
		ID:          1,
		Title:       "Pothole on Main St",
		Description: "Large pothole near the crossing",
		Category:    models.CategoryRoads,
		Priority:    models.PriorityHigh,
		Status:      models.StatusSubmitted,
		CitizenID:   3,
	}
}

func TestRenderEmailTemplate(t *testing.T) {
	complaint := sampleComplaint()

	tests := []struct {
		name     string
		template string
		data     map[string]interface{}
		contains []string
	}{
		{
			name:     "confirmation",
			template: mailer.TemplateComplaintConfirmation,
			data:     map[string]interface{}{"Name": "John Doe", "Complaint": complaint},
			contains: []string{"Dear John Doe", "Pothole on Main St", "ROADS", "Not specified", "Metronix Team"},
		},
		{
			name:     "assignment",
			template: mailer.TemplateComplaintAssigned,
			data:     map[string]interface{}{"Name": "Sam Solver", "Complaint": complaint, "DashboardURL": "http://localhost:3000/solver/dashboard"},
			contains: []string{"New Complaint Assignment", "Dear Sam Solver", "/solver/dashboard"},
		},
		{
			name:     "status update with note",
			template: mailer.TemplateStatusUpdate,
			data: map[string]interface{}{
				"Name": "John Doe", "Complaint": complaint,
				"PreviousStatus": models.StatusAssigned, "NewStatus": models.StatusResolved,
				"Note": "Fixed pothole",
			},
			contains: []string{"Previous Status:</strong> ASSIGNED", "RESOLVED", "Fixed pothole"},
		},
		{
			name:     "daily summary",
			template: mailer.TemplateDailySummary,
			data: map[string]interface{}{
				"Name": "Admin",
				"Summary": models.DailySummary{Date: "2024-03-01", Total: 2, Pending: 1, Resolved: 1},
				"Recent": []models.ComplaintSummary{{Complaint: complaint}},
			},
			contains: []string{"2024-03-01", "Total Complaints:</strong> 2", "Recent Complaints", "Pothole on Main St"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := renderEmailTemplate(tt.template, tt.data)
			require.NoError(t, err)
			for _, want := range tt.contains {
				assert.Contains(t, body, want)
			}
		})
	}
}

func TestRenderEmailTemplate_EscapesUserInput(t *testing.T) {
	complaint := sampleComplaint()
	complaint.Title = "<script>alert(1)</script>"

	body, err := renderEmailTemplate(mailer.TemplateComplaintConfirmation, map[string]interface{}{"Name": "x", "Complaint": complaint})
	require.NoError(t, err)
	assert.NotContains(t, body, "<script>")
}

func TestRenderEmailTemplate_Unknown(t *testing.T) {
	_, err := renderEmailTemplate("complaint_card", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, contextutils.ErrInvalidInput))
}
