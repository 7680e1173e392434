package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nhath/ezquery/internal/core"
	"github.com/nhath/ezquery/internal/ui/highlight"
)

func newExecCmd(opts *options) *cobra.Command {
	var (
		ask          bool
		generateOnly bool
	)
	cmd := &cobra.Command{
		Use:   "exec NAME|ID [SQL...]",
		Short: "Run SQL, or a plain-language question, against a connection",
		Long: `Run SQL against a saved connection and print the result.

With --ask the arguments are a question that is turned into SQL using the
connection's schema. --generate-only prints the SQL without running it.
SQL given as "-" is read from stdin.`,
		Example: `  ezquery exec local "SELECT * FROM users"
  ezquery exec prod --ask "ten newest orders with their customer"
  echo "SELECT 1" | ezquery exec local -`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			text := strings.Join(args[1:], " ")
			if text == "-" {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				text = string(b)
			}

			a, err := openApp(ctx, opts, appCLI)
			if err != nil {
				return err
			}
			defer a.Close()

			conn, err := resolveConnection(ctx, a.registry, args[0])
			if err != nil {
				return err
			}
			if err := a.coord.Select(conn.ID); err != nil {
				return err
			}
			sess := a.coord.Session()
			out := cmd.OutOrStdout()

			switch {
			case generateOnly:
				sql, err := sess.GenerateOnly(ctx, text)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, colorSQL(sql, conn.Type))
				return nil
			case ask:
				resp, err := sess.ExecuteFromNaturalLanguage(ctx, text)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, colorSQL(resp.GeneratedSQL, conn.Type))
				renderResult(out, resp.Result)
				return nil
			}

			res, err := sess.Execute(ctx, text)
			if err != nil {
				return err
			}
			renderResult(out, res)
			return nil
		},
	}
	cmd.Flags().BoolVar(&ask, "ask", false, "treat the arguments as a plain-language question")
	cmd.Flags().BoolVar(&generateOnly, "generate-only", false, "print the SQL generated for the question without running it")
	cmd.MarkFlagsMutuallyExclusive("ask", "generate-only")
	return cmd
}

// colorSQL highlights sql when stdout is a terminal
func colorSQL(sql string, dialect core.DriverType) string {
	if !isTerminal(os.Stdout) {
		return sql
	}
	return highlight.SQL(sql, dialect)
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
