package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nhath/ezquery/internal/history"
)

func newHistoryCmd(opts *options) *cobra.Command {
	var (
		limit  int
		search string
		remove int64
	)
	cmd := &cobra.Command{
		Use:   "history NAME|ID",
		Short: "Show the query history of a connection",
		Example: `  ezquery history local
  ezquery history local --search orders --limit 5
  ezquery history local --delete 42`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, opts, appCLI)
			if err != nil {
				return err
			}
			defer a.Close()

			hist, err := a.history()
			if err != nil {
				return err
			}
			conn, err := resolveConnection(ctx, a.registry, args[0])
			if err != nil {
				return err
			}

			if remove > 0 {
				if err := hist.Delete(ctx, remove); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted entry %d\n", remove)
				return nil
			}

			var entries []history.Entry
			if search != "" {
				entries, err = hist.Search(ctx, conn.ID, search, limit)
			} else {
				entries, err = hist.List(ctx, conn.ID, limit, 0)
			}
			if err != nil {
				return err
			}
			total, err := hist.Count(ctx, conn.ID)
			if err != nil {
				return err
			}
			renderHistory(cmd.OutOrStdout(), entries, total, isTerminal(os.Stdout))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum entries to show")
	cmd.Flags().StringVarP(&search, "search", "s", "", "only entries whose SQL or prompt contains text")
	cmd.Flags().Int64Var(&remove, "delete", 0, "delete the entry with this ID")
	return cmd
}
