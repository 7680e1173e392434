package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhath/ezquery/internal/core"
	"github.com/nhath/ezquery/internal/registry"
)

func newConnCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conn",
		Aliases: []string{"connection", "connections"},
		Short:   "Manage saved connections",
	}
	cmd.AddCommand(newConnListCmd(opts))
	cmd.AddCommand(newConnAddCmd(opts))
	cmd.AddCommand(newConnRemoveCmd(opts))
	cmd.AddCommand(newConnTestCmd(opts))
	cmd.AddCommand(newConnSchemaCmd(opts))
	return cmd
}

func newConnListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List saved connections",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), opts, appCLI)
			if err != nil {
				return err
			}
			defer a.Close()

			conns, err := a.registry.List(cmd.Context())
			if err != nil {
				return err
			}
			renderConnections(cmd.OutOrStdout(), conns)
			return nil
		},
	}
}

// tunnelFlags are the SSH options shared by add and test
type tunnelFlags struct {
	host    string
	port    int
	user    string
	keyPath string
}

func (f *tunnelFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.host, "ssh-host", "", "SSH bastion host")
	cmd.Flags().IntVar(&f.port, "ssh-port", 22, "SSH bastion port")
	cmd.Flags().StringVar(&f.user, "ssh-user", "", "SSH user")
	cmd.Flags().StringVar(&f.keyPath, "ssh-key", "", "SSH private key file (default: ssh-agent)")
}

func (f *tunnelFlags) tunnel() *core.Tunnel {
	if f.host == "" {
		return nil
	}
	return &core.Tunnel{Host: f.host, Port: f.port, User: f.user, KeyPath: f.keyPath}
}

func newConnAddCmd(opts *options) *cobra.Command {
	var (
		dsn string
		ssh tunnelFlags
	)
	cmd := &cobra.Command{
		Use:   "add NAME --dsn DSN",
		Short: "Save a new connection after testing it",
		Example: `  ezquery conn add local --dsn ./app.db
  ezquery conn add prod --dsn postgres://app:secret@db:5432/app --ssh-host bastion --ssh-user ops`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			draft, err := core.ParseDSN(args[0], dsn)
			if err != nil {
				return err
			}
			draft.Tunnel = ssh.tunnel()

			a, err := openApp(cmd.Context(), opts, appCLI)
			if err != nil {
				return err
			}
			defer a.Close()

			conn, err := a.registry.Add(cmd.Context(), draft)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s) as %s\n", conn.Name, conn.Address(), conn.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&dsn, "dsn", "", "connection string (postgres://, mysql://, sqlite:// or a file path)")
	_ = cmd.MarkFlagRequired("dsn")
	ssh.register(cmd)
	return cmd
}

func newConnRemoveCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "rm NAME|ID",
		Aliases: []string{"remove", "delete"},
		Short:   "Delete a saved connection with its schema snapshot and history",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts, appCLI)
			if err != nil {
				return err
			}
			defer a.Close()

			conn, err := resolveConnection(cmd.Context(), a.registry, args[0])
			if err != nil {
				return err
			}
			if err := a.coord.Remove(cmd.Context(), conn.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", conn.Name)
			return nil
		},
	}
}

func newConnTestCmd(opts *options) *cobra.Command {
	var ssh tunnelFlags
	cmd := &cobra.Command{
		Use:   "test DSN",
		Short: "Check that a connection string is reachable without saving it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			draft, err := core.ParseDSN("", args[0])
			if err != nil {
				return err
			}
			draft.Tunnel = ssh.tunnel()

			a, err := openApp(cmd.Context(), opts, appCLI)
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := a.registry.Test(cmd.Context(), draft.Probe()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Connection succeeded")
			return nil
		},
	}
	ssh.register(cmd)
	return cmd
}

func newConnSchemaCmd(opts *options) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "schema NAME|ID",
		Short: "Show the tables and views of a connection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, opts, appCLI)
			if err != nil {
				return err
			}
			defer a.Close()

			conn, err := resolveConnection(ctx, a.registry, args[0])
			if err != nil {
				return err
			}
			meta, err := a.coord.SelectAndLoad(ctx, conn.ID)
			if err == nil && refresh {
				_, meta, err = a.coord.RefreshActive(ctx)
			}
			if err != nil {
				return err
			}
			renderMetadata(cmd.OutOrStdout(), meta)
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "re-extract instead of using the saved snapshot")
	return cmd
}

// resolveConnection finds a connection by ID or, failing that, by name
func resolveConnection(ctx context.Context, reg *registry.Registry, ref string) (core.Connection, error) {
	conns, err := reg.List(ctx)
	if err != nil {
		return core.Connection{}, err
	}
	for _, c := range conns {
		if c.ID == ref {
			return c, nil
		}
	}
	for _, c := range conns {
		if c.Name == ref {
			return c, nil
		}
	}
	return core.Connection{}, fmt.Errorf("%w: connection %q", core.ErrNotFound, ref)
}
