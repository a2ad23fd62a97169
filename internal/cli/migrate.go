package cli

import (
	"context"

	"github.com/cimillas/live-commerce/internal/config"
	"github.com/cimillas/live-commerce/migrations"
	"github.com/spf13/cobra"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded SQL migrations",
		Long: `Apply every embedded SQL migration to DATABASE_URL in filename order.
Applied migrations are skipped, so the command is safe to rerun.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), rootOpts)
		},
	}
}

func runMigrate(ctx context.Context, opts *RootOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, logger, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if cfg.Store != config.StorePostgres {
		logger.Info("nothing to migrate", "store", cfg.Store)
		return nil
	}

	pool, err := connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	applied, err := migrations.Apply(ctx, pool)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		logger.Info("schema up to date")
		return nil
	}
	logger.Info("migrations applied", "names", applied)
	return nil
}
