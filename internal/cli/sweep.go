package cli

import (
	"context"
	"fmt"

	"github.com/cimillas/live-commerce/internal/jobs"
	"github.com/spf13/cobra"
)

// NewSweepCommand creates the sweep command.
func NewSweepCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one expiry and warning pass, then exit",
		Long: `End every open session whose timeout has passed and warn viewers of
sessions about to expire. Intended for cron when serve runs with a long
SWEEP_INTERVAL or on several instances.

Example:
  livecommerce sweep`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd.Context(), rootOpts, cmd)
		},
	}
}

func runSweep(ctx context.Context, opts *RootOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, logger, err := loadConfig(opts)
	if err != nil {
		return err
	}

	rt, err := newRuntime(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer rt.Close()

	res, err := jobs.NewSweeper(rt.sessions, cfg.SweepInterval, logger).RunOnce(ctx)
	fmt.Fprintf(cmd.OutOrStdout(), "expired=%d warned=%d\n", res.Expired, res.Warned)
	return err
}
