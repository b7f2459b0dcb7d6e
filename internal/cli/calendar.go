package cli

import (
	"fmt"
	"time"

	"github.com/dalemusser/rulepost/internal/app/system/calendar"
	"github.com/dalemusser/rulepost/internal/app/system/stageclock"
	"github.com/spf13/cobra"
)

// NewCalendarCommand creates the calendar command group. Its commands
// need no database.
func NewCalendarCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Inspect the working-day calendar",
	}
	cmd.AddCommand(newWorkingDayCommand(rootOpts))
	cmd.AddCommand(newStageEndsCommand(rootOpts))
	cmd.AddCommand(newNextSlotCommand(rootOpts))
	return cmd
}

func newWorkingDayCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "working-day <YYYY-MM-DD>",
		Short:        "Report whether a date is a working day",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cal, err := rootOpts.calendar()
			if err != nil {
				return err
			}
			day, err := time.ParseInLocation(calendar.DateLayout, args[0], cal.Location())
			if err != nil {
				return fmt.Errorf("invalid date %q: %w", args[0], err)
			}
			out := cmd.OutOrStdout()
			if cal.IsWorkingDay(day) {
				fmt.Fprintf(out, "%s is a working day\n", args[0])
				return nil
			}
			fmt.Fprintf(out, "%s is not a working day; next working day %s\n",
				args[0], cal.NextWorkingDay(day).Format(calendar.DateLayout))
			return nil
		},
	}
}

func newStageEndsCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		days int
		at   string
		from string
	)
	cmd := &cobra.Command{
		Use:          "stage-ends",
		Short:        "Compute a stage deadline",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cal, err := rootOpts.calendar()
			if err != nil {
				return err
			}
			tod, err := stageclock.ParseTimeOfDay(at)
			if err != nil {
				return err
			}
			now := time.Now()
			if from != "" {
				if now, err = time.Parse(time.RFC3339, from); err != nil {
					return fmt.Errorf("invalid --from %q: %w", from, err)
				}
			}
			ends, err := stageclock.ComputeStageEnds(cal, now, days, tod)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n",
				ends.In(cal.Location()).Format(time.RFC3339), ends.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 4, "working days")
	cmd.Flags().StringVar(&at, "at", "19:59", "time of day HH:MM")
	cmd.Flags().StringVar(&from, "from", "", "start instant in RFC3339 (default now)")
	return cmd
}

func newNextSlotCommand(rootOpts *RootOptions) *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:          "next-slot",
		Short:        "Show the next comment publication slot",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cal, err := rootOpts.calendar()
			if err != nil {
				return err
			}
			now := time.Now()
			if from != "" {
				if now, err = time.Parse(time.RFC3339, from); err != nil {
					return fmt.Errorf("invalid --from %q: %w", from, err)
				}
			}
			next := stageclock.NextPublicationSlot(cal, now)
			fmt.Fprintln(cmd.OutOrStdout(), next.In(cal.Location()).Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "start instant in RFC3339 (default now)")
	return cmd
}
