package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhath/ezquery/internal/rpc"
)

func newServeCmd(opts *options) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose the local backend over HTTP for remote clients",
		Long: `Serve the in-process backend on an HTTP endpoint so other ezquery
instances can use it with --remote. Connections, schema snapshots and
history stay on this machine.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), opts, appServe)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.engine == nil {
				return errors.New("serve needs a local backend, unset remote")
			}
			addr := a.cfg.Listen
			if listen != "" {
				addr = listen
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Listening on http://%s\n", addr)
			return rpc.NewServer(a.engine, a.logger).ListenAndServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "address to listen on (default from config)")
	return cmd
}
