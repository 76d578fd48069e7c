package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/maxgio92/wsscan/internal/logging"
)

type rootOptions struct {
	logLevel  string
	logPretty bool
}

func (o *rootOptions) loggingConfig(cmd *cobra.Command) logging.Config {
	return logging.Config{
		Level:  o.logLevel,
		Pretty: o.logPretty,
		Output: cmd.ErrOrStderr(),
	}
}

// NewRootCmd builds the wsscan command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "wsscan",
		Short: "Find injected code in the working set of a process",
		Long: `wsscan classifies every memory region of a process and reports the
executable ones that are not backed by a legitimate image or file mapping
and hold a PE image or code-like bytes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&opts.logPretty, "log-pretty", true, "Human-readable log output")

	cmd.AddCommand(newScanCmd(opts))
	return cmd
}

// Execute runs the root command until ctx is done.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}
