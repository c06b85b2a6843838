package services

import (
	"context"
	"errors"
	"testing"

	"metronix/internal/config"
	"metronix/internal/services/mailer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestEmailService_IsEnabled(t *testing.T) {
	service := NewTestEmailService(&config.Config{}, createTestLogger())

	// Test email service should always be enabled
	assert.True(t, service.IsEnabled())
}

func TestTestEmailService_SendEmailCaptures(t *testing.T) {
	service := NewTestEmailService(&config.Config{}, createTestLogger())

	err := service.SendEmail(context.Background(), "citizen@example.com", "Complaint Submitted - Pothole",
		mailer.TemplateComplaintConfirmation, map[string]interface{}{"Name": "John", "Complaint": sampleComplaint()})
	require.NoError(t, err)

	sent := service.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "citizen@example.com", sent[0].To)
	assert.Equal(t, mailer.TemplateComplaintConfirmation, sent[0].Template)
	assert.Contains(t, sent[0].Body, "Dear John")
}

func TestTestEmailService_FailWith(t *testing.T) {
	service := NewTestEmailService(&config.Config{}, createTestLogger())
	service.FailWith = errors.New("smtp down")

	err := service.SendEmail(context.Background(), "citizen@example.com", "s",
		mailer.TemplateComplaintConfirmation, map[string]interface{}{"Complaint": sampleComplaint()})
	assert.EqualError(t, err, "smtp down")
	assert.Empty(t, service.Sent())
}

func TestTestEmailService_UnknownTemplate(t *testing.T) {
	service := NewTestEmailService(&config.Config{}, createTestLogger())

	err := service.SendEmail(context.Background(), "a@example.com", "s", "nope", nil)
	assert.Error(t, err)
}

func TestGetMapKeysSorted(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, getMapKeys(map[string]interface{}{"c": 1, "a": 2, "b": 3}))
}
