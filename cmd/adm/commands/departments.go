package commands

import (
	"context"
	"fmt"
	"strings"

	"metronix/internal/observability"
	"metronix/internal/services"
	contextutils "metronix/internal/utils"

	"github.com/spf13/cobra"
)

// DepartmentCommands returns the department management commands
func DepartmentCommands(departmentService services.DepartmentServiceInterface, logger *observability.Logger) *cobra.Command {
	deptCmd := &cobra.Command{
		Use:     "departments",
		Aliases: []string{"dept"},
		Short:   "Department management commands",
		Long: `Department management commands for Metronix.

Available commands:
  list   - List departments and their routing keywords
  create - Create a department
  seed   - Create the default departments when none exist`,
	}

	deptCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List departments",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := commandContext(cmd)

			departments, err := departmentService.ListDepartments(ctx)
			if err != nil {
				logger.Error(ctx, "Failed to list departments", err, nil)
				return contextutils.WrapError(err, "failed to list departments")
			}

			out := cmd.OutOrStdout()
			if len(departments) == 0 {
				fmt.Fprintln(out, "No departments found")
				return nil
			}
			for _, d := range departments {
				fmt.Fprintf(out, "%-4d %-28s %s\n", d.ID, d.Name, strings.Join(d.Keywords, ", "))
			}
			return nil
		},
	})

	var (
		name     string
		keywords []string
	)
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a department",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := commandContext(cmd)

			dept, err := departmentService.CreateDepartment(ctx, name, keywords)
			if err != nil {
				logger.Error(ctx, "Failed to create department", err, map[string]interface{}{"name": name})
				return contextutils.WrapError(err, "failed to create department")
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created department %s (ID: %d)\n", dept.Name, dept.ID)
			return nil
		},
	}
	createCmd.Flags().StringVar(&name, "name", "", "Department name")
	createCmd.Flags().StringSliceVar(&keywords, "keywords", nil, "Comma separated routing keywords")
	_ = createCmd.MarkFlagRequired("name")
	deptCmd.AddCommand(createCmd)

	deptCmd.AddCommand(&cobra.Command{
		Use:   "seed",
		Short: "Create the default departments",
		Long:  `Create the default departments with their routing keywords. Does nothing when any department already exists.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := commandContext(cmd)

			created, err := departmentService.SeedDefaultDepartments(ctx)
			if err != nil {
				logger.Error(ctx, "Failed to seed departments", err, nil)
				return contextutils.WrapError(err, "failed to seed departments")
			}

			if created == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Departments already present, nothing seeded")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d departments\n", created)
			logger.Info(ctx, "Seeded default departments", map[string]interface{}{"count": created})
			return nil
		},
	})

	return deptCmd
}

// commandContext returns the command's context, falling back to Background when run outside Execute
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
