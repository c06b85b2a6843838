//go:build integration

package services

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"metronix/internal/config"
	"metronix/internal/database"
	"metronix/internal/models"
	"metronix/internal/observability"

	"github.com/stretchr/testify/require"
)

// SharedTestDBSetup provides a clean, migrated database for each integration test
func SharedTestDBSetup(t *testing.T) *sql.DB {
	t.Helper()
	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	dbManager := database.NewManager(logger)

	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Fatal("TEST_DATABASE_URL environment variable must be set for integration tests")
	}

	cfg := database.DefaultDatabaseConfig()
	cfg.URL = databaseURL
	db, err := dbManager.InitDBWithConfig(cfg)
	require.NoError(t, err)

	CleanupTestDatabase(db, t)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// CleanupTestDatabase empties every table. TRUNCATE bypasses the
// append-only row trigger on progress_logs.
func CleanupTestDatabase(db *sql.DB, t *testing.T) {
	t.Helper()
	_, err := db.ExecContext(context.Background(),
		`TRUNCATE TABLE sent_notifications, progress_logs, complaints, solvers, departments, users RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
}

// newIntegrationConfig is a test config with a cheap bcrypt cost
func newIntegrationConfig() *config.Config {
	return &config.Config{
		IsTest: true,
		Auth:   config.AuthConfig{BcryptCost: 4},
		Reporting: config.ReportingConfig{
			WindowDays:   config.DefaultReportingWindowDays,
			RecentLimit:  config.DefaultRecentComplaints,
			SummaryLimit: config.DefaultSummaryComplaints,
		},
	}
}

func createIntegrationUser(t *testing.T, users *UserService, name string, role models.Role) *models.User {
	t.Helper()
	user, err := users.CreateUser(context.Background(), CreateUserInput{
		Name:     name,
		Email:    name + "@example.com",
		Password: "password123",
		Role:     role,
	})
	require.NoError(t, err)
	return user
}

func cfgUploads(t *testing.T) config.UploadsConfig {
	t.Helper()
	return config.UploadsConfig{Dir: t.TempDir(), MaxFiles: config.MaxAttachmentsPerComplaint}
}
