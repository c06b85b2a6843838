// Package main provides the Metronix admin CLI tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"metronix/cmd/adm/commands"
	"metronix/internal/config"
	"metronix/internal/database"
	"metronix/internal/observability"
	"metronix/internal/services"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
		os.Exit(1)
	}

	if os.Getenv(config.ConfigFileEnv) == "" {
		defaultPaths := []string{
			"config.yaml",       // repository root
			"../config.yaml",    // cmd/
			"../../config.yaml", // cmd/adm/
		}

		for _, path := range defaultPaths {
			if _, err := os.Stat(path); err == nil {
				if err := os.Setenv(config.ConfigFileEnv, path); err != nil {
					fmt.Fprintf(os.Stderr, "Failed to set %s: %v\n", config.ConfigFileEnv, err)
					os.Exit(1)
				}
				break
			}
		}
	}

	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// The admin tool talks to the database directly and should not need a collector
	cfg.OpenTelemetry.EnableTracing = false
	cfg.OpenTelemetry.EnableMetrics = false
	cfg.OpenTelemetry.EnableLogging = false

	_, _, logger, err := observability.SetupObservability(&cfg.OpenTelemetry, "metronix-admin", "error")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}

	dbManager := database.NewManager(logger)

	// Migrations are an explicit subcommand here, never implicit
	db, err := dbManager.InitDBWithoutMigrations(cfg.Database)
	if err != nil {
		logger.Error(ctx, "Failed to connect to database", err, nil)
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn(ctx, "Failed to close database connection", map[string]interface{}{"error": err.Error()})
		}
	}()

	gormDB, err := database.OpenGorm(db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open gorm session: %v\n", err)
		os.Exit(1)
	}

	userService := services.NewUserServiceWithLogger(db, cfg, logger)
	departmentService := services.NewDepartmentService(gormDB, logger)
	notificationService := services.NewNotificationService(db, services.CreateEmailService(cfg, logger), cfg, logger, nil)
	reportingService := services.NewReportingService(db, cfg, userService, notificationService, nil, logger)

	rootCmd := &cobra.Command{
		Use:   "adm",
		Short: "Metronix administration tool",
		Long: `Metronix administration tool

Manage users and departments, inspect and migrate the database,
and preview or email the daily complaint summary.`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				fmt.Printf("Error showing help: %v\n", err)
			}
		},
	}

	rootCmd.AddCommand(commands.UserCommands(userService, logger, cfg.Database.URL))
	rootCmd.AddCommand(commands.DepartmentCommands(departmentService, logger))
	rootCmd.AddCommand(commands.DatabaseCommands(userService, reportingService, dbManager, cfg.Database.URL, logger, db))
	rootCmd.AddCommand(commands.SummaryCommands(reportingService, logger))

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
