package commands

import (
	"fmt"
	"io"
	"time"

	"metronix/internal/models"
	"metronix/internal/observability"
	"metronix/internal/services"
	contextutils "metronix/internal/utils"

	"github.com/spf13/cobra"
)

const summaryDateLayout = "2006-01-02"

// SummaryCommands returns the daily summary commands
func SummaryCommands(reportingService services.ReportingServiceInterface, logger *observability.Logger) *cobra.Command {
	summaryCmd := &cobra.Command{
		Use:   "summary",
		Short: "Daily complaint summary commands",
		Long: `Daily complaint summary commands for Metronix.

Available commands:
  show - Print the summary for a day
  send - Email the summary for a day`,
	}

	var showDate string
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the daily summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := commandContext(cmd)

			date, err := parseSummaryDate(showDate)
			if err != nil {
				return err
			}

			summary, err := reportingService.DailySummary(ctx, date)
			if err != nil {
				logger.Error(ctx, "Failed to build daily summary", err, map[string]interface{}{"date": showDate})
				return contextutils.WrapError(err, "failed to build daily summary")
			}

			printSummary(cmd.OutOrStdout(), summary)
			return nil
		},
	}
	showCmd.Flags().StringVar(&showDate, "date", "", "Day to summarize (YYYY-MM-DD, default today UTC)")
	summaryCmd.AddCommand(showCmd)

	var (
		sendDate string
		to       string
		name     string
	)
	sendCmd := &cobra.Command{
		Use:   "send",
		Short: "Email the daily summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := commandContext(cmd)

			date, err := parseSummaryDate(sendDate)
			if err != nil {
				return err
			}
			if !contextutils.IsValidEmail(to) {
				return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "invalid recipient %q", to)
			}

			summary, err := reportingService.SendDailySummary(ctx, date, to, name)
			if err != nil {
				logger.Error(ctx, "Failed to send daily summary", err, map[string]interface{}{
					"date":      date.Format(summaryDateLayout),
					"recipient": contextutils.MaskEmail(to),
				})
				return contextutils.WrapError(err, "failed to send daily summary")
			}

			printSummary(cmd.OutOrStdout(), summary)
			fmt.Fprintf(cmd.OutOrStdout(), "Sent to %s\n", to)
			return nil
		},
	}
	sendCmd.Flags().StringVar(&sendDate, "date", "", "Day to summarize (YYYY-MM-DD, default today UTC)")
	sendCmd.Flags().StringVar(&to, "to", "", "Recipient email")
	sendCmd.Flags().StringVar(&name, "name", "", "Recipient display name")
	_ = sendCmd.MarkFlagRequired("to")
	summaryCmd.AddCommand(sendCmd)

	return summaryCmd
}

func parseSummaryDate(raw string) (time.Time, error) {
	if raw == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	date, err := time.Parse(summaryDateLayout, raw)
	if err != nil {
		return time.Time{}, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "invalid date %q, expected YYYY-MM-DD", raw)
	}
	return date, nil
}

func printSummary(out io.Writer, summary *models.DailySummary) {
	fmt.Fprintf(out, "Summary for %s\n", summary.Date)
	fmt.Fprintf(out, "  total %d  pending %d  assigned %d  resolved %d\n",
		summary.Total, summary.Pending, summary.Assigned, summary.Resolved)
	for _, c := range summary.Complaints {
		fmt.Fprintf(out, "  #%-5d %-10s %-8s %s\n", c.ID, c.Status, c.Priority, c.Title)
	}
}
