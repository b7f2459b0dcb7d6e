package cli

import (
	"context"
	"fmt"

	"github.com/dalemusser/rulepost/internal/domain/models"
	"github.com/spf13/cobra"
)

// NewTeamCommand creates the team command group.
func NewTeamCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "team",
		Short: "Manage team accounts",
	}
	cmd.AddCommand(&cobra.Command{
		Use:          "disable <team>",
		Short:        "Disable every account of a team",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := rootOpts.logger()
			defer func() { _ = logger.Sync() }()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			svc, closeFn, err := rootOpts.connect(ctx, logger)
			if err != nil {
				return err
			}
			defer closeFn()

			// the operator acts with admin rights
			caller := models.Caller{Role: models.RoleAdmin}
			n, err := svc.Lifecycle.DisableTeam(ctx, caller, args[0])
			if err != nil {
				return err
			}
			svc.Audit.TeamDisabled(ctx, nil, caller, args[0], n)
			fmt.Fprintf(cmd.OutOrStdout(), "disabled %d account(s) of team %s\n", n, args[0])
			return nil
		},
	})
	return cmd
}
