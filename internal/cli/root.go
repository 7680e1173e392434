// Package cli provides the command-line interface for ezquery.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nhath/ezquery/internal/ui"
)

// Version information (set at build time).
var Version = "0.1.0"

// options are the global flags shared by every command
type options struct {
	configPath string
	remote     string
	debug      bool
}

// NewRootCmd creates and returns the root command. Without a subcommand
// it starts the terminal UI.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "ezquery",
		Short: "ezquery - terminal SQL client with natural-language queries",
		Long: `ezquery manages PostgreSQL, MySQL and SQLite connections, browses their
schemas and runs SQL written by hand or generated from plain language.

The backend runs in process by default. Point --remote at an
"ezquery serve" instance to drive a shared backend instead.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), opts, appTUI)
			if err != nil {
				return err
			}
			defer a.Close()
			return ui.Run(cmd.Context(), a.deps())
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "config file (default: $XDG_CONFIG_HOME/ezquery/config.toml)")
	pf.StringVar(&opts.remote, "remote", "", "base URL of an ezquery server, overrides the config")
	pf.BoolVar(&opts.debug, "debug", false, "write debug logs to debug.log")

	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newConnCmd(opts))
	rootCmd.AddCommand(newExecCmd(opts))
	rootCmd.AddCommand(newHistoryCmd(opts))

	return rootCmd
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
