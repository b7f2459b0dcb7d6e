package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/rulepost/internal/app/orchestrator"
	"github.com/spf13/cobra"
)

// NewSlotCommand creates the slot command group.
func NewSlotCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slot",
		Short: "Run publication slots",
	}
	cmd.AddCommand(newSlotRunCommand(rootOpts))
	return cmd
}

func newSlotRunCommand(rootOpts *RootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "run <0000|1200|2000>",
		Short: "Run one publication slot now",
		Long: `Run the phases of one daily trigger immediately.

Without --force the run claims the slot for today's date, so it is skipped
when the scheduler (or another operator) already ran it. --force runs the
phases without claiming or recording the slot.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSlot(cmd, rootOpts, args[0], force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "run even if the slot already ran today")
	return cmd
}

func runSlot(cmd *cobra.Command, opts *RootOptions, name string, force bool) error {
	switch name {
	case orchestrator.Slot0000, orchestrator.Slot1200, orchestrator.Slot2000:
	default:
		return fmt.Errorf("unknown slot %q: must be one of 0000, 1200, 2000", name)
	}

	logger := opts.logger()
	defer func() { _ = logger.Sync() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	svc, closeFn, err := opts.connect(ctx, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	rep, err := svc.Orchestrator.RunSlot(ctx, name, time.Now(), force)
	if !errors.Is(err, orchestrator.ErrClaimed) {
		svc.Audit.SlotRunManual(ctx, name, rep.RunID, force, err)
	}
	out := cmd.OutOrStdout()
	if errors.Is(err, orchestrator.ErrClaimed) {
		fmt.Fprintf(out, "slot %s already ran on %s (use --force to run again)\n", name, rep.Date)
		return nil
	}
	fmt.Fprintf(out, "slot %s run %s date %s: %s in %s\n",
		rep.Slot, rep.RunID, rep.Date, strings.Join(rep.Phases, ", "), rep.Duration.Round(time.Millisecond))
	return err
}
