// Package cli implements the livecommerce command line.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const serviceName = "livecommerce"

// RootOptions holds global flags for all commands. Empty values leave the
// environment configuration in place.
type RootOptions struct {
	LogLevel  string
	LogFormat string
}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   serviceName,
		Short: "Live commerce session engine",
		Long: `Runs live shopping sessions: a host and a client share a cart drawn from
warehouse inventory that other sessions compete for, with session pricing,
a bounded session lifecycle and real-time event streams.

Configuration is read from the environment, merged with the nearest .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "override LOG_LEVEL (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "", "override LOG_FORMAT (text|json)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewSweepCommand(opts))

	return cmd
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
