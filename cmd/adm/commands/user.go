package commands

import (
	"fmt"
	"strings"

	"metronix/internal/config"
	"metronix/internal/models"
	"metronix/internal/observability"
	"metronix/internal/services"
	contextutils "metronix/internal/utils"

	"github.com/spf13/cobra"
)

// passwordReader is swapped in tests so commands never touch the terminal
var passwordReader = readPasswordTwice

// UserCommands returns the user management commands
func UserCommands(userService services.UserServiceInterface, logger *observability.Logger, databaseURL string) *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "User management commands",
		Long: `User management commands for Metronix.

Available commands:
  list           - List users with their complaint counts
  create         - Create a citizen, solver or admin account
  reset-password - Reset password for a specific user`,
	}

	userCmd.AddCommand(listCmd(userService, logger, databaseURL))
	userCmd.AddCommand(createUserCmd(userService, logger))
	userCmd.AddCommand(resetPasswordCmd(userService, logger))

	return userCmd
}

// listCmd returns the list command
func listCmd(userService services.UserServiceInterface, logger *observability.Logger, databaseURL string) *cobra.Command {
	var roleFlag string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all users",
		Long:  `List users in the database, optionally restricted to one role.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := commandContext(cmd)

			logger.Info(ctx, "Admin command diagnostics", map[string]interface{}{
				"config_file":  configFile(config.ConfigFileEnv),
				"database_url": contextutils.MaskDatabaseURL(databaseURL),
			})

			var role *models.Role
			if roleFlag != "" {
				r, ok := models.ParseRole(roleFlag)
				if !ok {
					return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "unknown role %q", roleFlag)
				}
				role = &r
			}

			users, err := userService.ListUsersWithCounts(ctx, role)
			if err != nil {
				logger.Error(ctx, "Failed to list users", err, nil)
				return contextutils.WrapError(err, "failed to list users")
			}

			out := cmd.OutOrStdout()
			if len(users) == 0 {
				fmt.Fprintln(out, "No users found")
				return nil
			}

			fmt.Fprintf(out, "%-5s %-24s %-32s %-8s %-10s %-9s %-10s\n", "ID", "Name", "Email", "Role", "Submitted", "Assigned", "Created")
			fmt.Fprintln(out, strings.Repeat("-", 104))
			for _, u := range users {
				fmt.Fprintf(out, "%-5d %-24s %-32s %-8s %-10d %-9d %-10s\n",
					u.ID, u.Name, u.Email, u.Role, u.ComplaintCount, u.AssignedCount, u.CreatedAt.Format("2006-01-02"))
			}

			logger.Info(ctx, "Listed users", map[string]interface{}{"total": len(users)})
			return nil
		},
	}

	cmd.Flags().StringVar(&roleFlag, "role", "", "Only list users with this role (CITIZEN, SOLVER, ADMIN)")
	return cmd
}

// createUserCmd returns the create command
func createUserCmd(userService services.UserServiceInterface, logger *observability.Logger) *cobra.Command {
	var (
		name         string
		email        string
		roleFlag     string
		departmentID int
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		Long: `Create a user account. The password is prompted for and never taken from flags.
Solvers may be attached to a department with --department.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := commandContext(cmd)

			role, ok := models.ParseRole(roleFlag)
			if !ok {
				return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "unknown role %q", roleFlag)
			}

			password, err := passwordReader()
			if err != nil {
				return err
			}

			input := services.CreateUserInput{
				Name:     name,
				Email:    email,
				Password: password,
				Role:     role,
			}
			if departmentID > 0 {
				input.DepartmentID = &departmentID
			}

			user, err := userService.CreateUser(ctx, input)
			if err != nil {
				logger.Error(ctx, "Failed to create user", err, map[string]interface{}{"email": contextutils.MaskEmail(email)})
				return contextutils.WrapError(err, "failed to create user")
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created %s user %s <%s> (ID: %d)\n", user.Role, user.Name, user.Email, user.ID)
			logger.Info(ctx, "User created", map[string]interface{}{"user_id": user.ID, "role": string(user.Role)})
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&email, "email", "", "Login email")
	cmd.Flags().StringVar(&roleFlag, "role", string(models.RoleCitizen), "Role (CITIZEN, SOLVER, ADMIN)")
	cmd.Flags().IntVar(&departmentID, "department", 0, "Department id for solvers")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

// resetPasswordCmd returns the reset-password command
func resetPasswordCmd(userService services.UserServiceInterface, logger *observability.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-password [email]",
		Short: "Reset password for a user",
		Long:  `Reset the password for a specific user. If the email is not provided, you will be prompted for it.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)

			var email string
			if len(args) > 0 {
				email = args[0]
			} else {
				fmt.Fprint(cmd.OutOrStdout(), "Enter email: ")
				if _, err := fmt.Fscanln(cmd.InOrStdin(), &email); err != nil {
					return contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to read email: %v", err)
				}
			}
			email = strings.TrimSpace(email)
			if email == "" {
				return contextutils.ErrorWithContextf("email is required")
			}

			user, err := userService.GetUserByEmail(ctx, email)
			if err != nil {
				logger.Error(ctx, "Failed to get user", err, map[string]interface{}{"email": contextutils.MaskEmail(email)})
				return contextutils.WrapErrorf(err, "failed to get user '%s'", email)
			}

			newPassword, err := passwordReader()
			if err != nil {
				return err
			}

			if err := userService.UpdateUserPassword(ctx, user.ID, newPassword); err != nil {
				logger.Error(ctx, "Failed to update password", err, map[string]interface{}{"user_id": user.ID})
				return contextutils.WrapErrorf(err, "failed to update password for user '%s'", email)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Password reset for %s (ID: %d)\n", user.Email, user.ID)
			logger.Info(ctx, "Password reset successful", map[string]interface{}{"user_id": user.ID})
			return nil
		},
	}
}
