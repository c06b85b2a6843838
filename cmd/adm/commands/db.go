// Package commands provides CLI commands for the admin tool
package commands

import (
	"database/sql"
	"fmt"

	"metronix/internal/config"
	"metronix/internal/models"
	"metronix/internal/observability"
	"metronix/internal/services"
	contextutils "metronix/internal/utils"

	"github.com/spf13/cobra"
)

// Migrator applies pending schema migrations
type Migrator interface {
	RunMigrations(databaseURL string) error
}

// DatabaseCommands returns the database management commands
func DatabaseCommands(
	userService services.UserServiceInterface,
	reportingService services.ReportingServiceInterface,
	migrator Migrator,
	databaseURL string,
	logger *observability.Logger,
	db *sql.DB,
) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
		Long: `Database management commands for Metronix.

Available commands:
  stats   - Show user and complaint counts
  migrate - Apply pending schema migrations`,
	}

	dbCmd.AddCommand(statsCmd(userService, reportingService, logger, db))
	dbCmd.AddCommand(migrateCmd(migrator, databaseURL, logger))

	return dbCmd
}

// statsCmd returns the stats command
func statsCmd(userService services.UserServiceInterface, reportingService services.ReportingServiceInterface, logger *observability.Logger, db *sql.DB) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		Long:  `Show users per role and complaints per status.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := commandContext(cmd)

			logger.Info(ctx, "Diagnostic info", map[string]interface{}{
				"config_file": configFile(config.ConfigFileEnv),
				"database":    getDatabaseInfo(ctx, db),
			})

			userCounts, err := userService.CountUsersByRole(ctx)
			if err != nil {
				logger.Error(ctx, "Failed to count users", err, nil)
				return contextutils.WrapError(err, "failed to count users")
			}

			statusCounts, err := reportingService.CountByStatus(ctx)
			if err != nil {
				logger.Error(ctx, "Failed to count complaints", err, nil)
				return contextutils.WrapError(err, "failed to count complaints")
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Users")
			for _, role := range models.AllRoles() {
				fmt.Fprintf(out, "  %-10s %d\n", role, userCounts[role])
			}
			fmt.Fprintln(out, "Complaints")
			for _, status := range models.AllStatuses() {
				fmt.Fprintf(out, "  %-10s %d\n", status, statusCounts[status])
			}
			return nil
		},
	}
}

// migrateCmd returns the migrate command
func migrateCmd(migrator Migrator, databaseURL string, logger *observability.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending migrations",
		Long:  `Apply every pending migration from the migrations directory. Already applied migrations are skipped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := commandContext(cmd)

			if err := migrator.RunMigrations(databaseURL); err != nil {
				logger.Error(ctx, "Migration failed", err, map[string]interface{}{"database_url": contextutils.MaskDatabaseURL(databaseURL)})
				return contextutils.WrapError(err, "migration failed")
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
			return nil
		},
	}
}
