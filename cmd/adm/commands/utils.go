package commands

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"syscall"

	contextutils "metronix/internal/utils"

	"golang.org/x/term"
)

// getDatabaseInfo returns database connection information
func getDatabaseInfo(ctx context.Context, db *sql.DB) string {
	if db == nil {
		return "Not connected"
	}

	var dbName string
	if err := db.QueryRowContext(ctx, "SELECT current_database()").Scan(&dbName); err != nil {
		return "Connected (unknown database)"
	}

	var host sql.NullString
	if err := db.QueryRowContext(ctx, "SELECT inet_server_addr()::text").Scan(&host); err != nil || !host.Valid {
		return fmt.Sprintf("Connected to %s", dbName)
	}

	return fmt.Sprintf("Connected to %s on %s", dbName, host.String)
}

// readPasswordTwice prompts for a password and its confirmation without echoing
func readPasswordTwice() (string, error) {
	fmt.Print("Enter new password: ")
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to read password: %v", err)
	}
	if len(passwordBytes) == 0 {
		return "", contextutils.ErrorWithContextf("password cannot be empty")
	}

	fmt.Print("Confirm new password: ")
	confirmBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to read password confirmation: %v", err)
	}

	if string(passwordBytes) != string(confirmBytes) {
		return "", contextutils.ErrorWithContextf("passwords do not match")
	}
	return string(passwordBytes), nil
}

// configFile reports which config file the tool loaded, for diagnostics
func configFile(envName string) string {
	if v := strings.TrimSpace(os.Getenv(envName)); v != "" {
		return v
	}
	return "(defaults)"
}
