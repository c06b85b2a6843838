// Package main provides a small CLI utility to reset the application's
// database to a clean state. It is intended for local development and
// testing only and will permanently delete all data when run.
package main

import (
	"bufio"
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"metronix/internal/config"
	"metronix/internal/database"
	"metronix/internal/observability"
	"metronix/internal/services"
	contextutils "metronix/internal/utils"
)

// resetTables lists every application table. TRUNCATE bypasses the
// append-only trigger on progress_logs.
var resetTables = []string{"sent_notifications", "progress_logs", "complaints", "solvers", "departments", "users"}

// fatalIfErr logs the error with context and exits
func fatalIfErr(ctx context.Context, logger *observability.Logger, msg string, err error, fields map[string]interface{}) {
	logger.Error(ctx, msg, err, fields)
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}

func main() {
	ctx := context.Background()

	assumeYes := flag.Bool("yes", false, "skip the confirmation prompt")
	flag.Parse()

	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	cfg.OpenTelemetry.EnableTracing = false
	cfg.OpenTelemetry.EnableMetrics = false
	_, _, logger, err := observability.SetupObservability(&cfg.OpenTelemetry, "reset-db", cfg.Server.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("DATABASE RESET UTILITY")
	fmt.Println("======================")
	fmt.Println("This will PERMANENTLY DELETE ALL DATA in the database:")
	fmt.Println("users, departments, solvers, complaints, progress logs and notification records.")
	fmt.Println("")

	if cfg.Database.URL == "" {
		fatalIfErr(ctx, logger, "Database URL is empty", contextutils.ErrDatabaseConnection, nil)
	}
	fmt.Printf("URL: %s\n\n", contextutils.MaskDatabaseURL(cfg.Database.URL))

	if !*assumeYes && !confirmReset(os.Stdin, os.Stdout) {
		fmt.Println("Reset cancelled.")
		return
	}

	// InitDBWithConfig applies any pending migrations before the reset
	db, err := database.NewManager(logger).InitDBWithConfig(cfg.Database)
	if err != nil {
		fatalIfErr(ctx, logger, "Failed to connect to database", err, map[string]interface{}{"db_url": contextutils.MaskDatabaseURL(cfg.Database.URL)})
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn(ctx, "Warning: failed to close database connection", map[string]interface{}{"error": err.Error()})
		}
	}()

	gormDB, err := database.OpenGorm(db)
	if err != nil {
		fatalIfErr(ctx, logger, "Failed to open gorm session", err, nil)
	}

	userService := services.NewUserServiceWithLogger(db, cfg, logger)
	departmentService := services.NewDepartmentService(gormDB, logger)

	if err := resetDatabase(ctx, db, cfg, userService, departmentService, logger); err != nil {
		fatalIfErr(ctx, logger, "Failed to reset database", err, nil)
	}

	fmt.Println("Database reset complete.")
	if cfg.Server.AdminEmail != "" {
		fmt.Printf("Admin user: %s\n", cfg.Server.AdminEmail)
	}
}

// resetDatabase empties every table, recreates the configured admin and
// reseeds departments when enabled
func resetDatabase(
	ctx context.Context,
	db *sql.DB,
	cfg *config.Config,
	userService services.UserServiceInterface,
	departmentService services.DepartmentServiceInterface,
	logger *observability.Logger,
) error {
	logger.Info(ctx, "Truncating tables", map[string]interface{}{"tables": strings.Join(resetTables, ",")})
	if _, err := db.ExecContext(ctx, "TRUNCATE TABLE "+strings.Join(resetTables, ", ")+" RESTART IDENTITY CASCADE"); err != nil {
		return contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to truncate tables: %v", err)
	}

	if cfg.Server.AdminEmail != "" {
		if err := userService.EnsureAdminUserExists(ctx, cfg.Server.AdminName, cfg.Server.AdminEmail, cfg.Server.AdminPassword); err != nil {
			return contextutils.WrapError(err, "failed to recreate admin user")
		}
		logger.Info(ctx, "Admin user recreated", map[string]interface{}{"admin_email": contextutils.MaskEmail(cfg.Server.AdminEmail)})
	}

	if cfg.Server.SeedDepartments {
		created, err := departmentService.SeedDefaultDepartments(ctx)
		if err != nil {
			return contextutils.WrapError(err, "failed to seed departments")
		}
		logger.Info(ctx, "Seeded default departments", map[string]interface{}{"count": created})
	}

	return nil
}

func confirmReset(in io.Reader, out io.Writer) bool {
	reader := bufio.NewReader(in)

	for {
		fmt.Fprint(out, "Are you sure you want to reset the database? (type 'yes' to confirm): ")
		response, err := reader.ReadString('\n')
		if err != nil && response == "" {
			return false
		}

		switch strings.TrimSpace(strings.ToLower(response)) {
		case "yes":
			return true
		case "no", "":
			return false
		default:
			fmt.Fprintln(out, "Please type 'yes' to confirm or 'no' to cancel.")
		}
	}
}
