package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"

	"github.com/nhath/ezquery/internal/core"
	"github.com/nhath/ezquery/internal/history"
	"github.com/nhath/ezquery/internal/ui/components/table"
	"github.com/nhath/ezquery/internal/ui/highlight"
	"github.com/nhath/ezquery/internal/ui/icons"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	faintStyle  = lipgloss.NewStyle().Faint(true)
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#BF616A"))
)

const maxCellWidth = 40

func newTable(headers ...string) *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(faintStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == lgtable.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)
}

func renderConnections(w io.Writer, conns []core.Connection) {
	if len(conns) == 0 {
		fmt.Fprintln(w, faintStyle.Render("No connections. Add one with: ezquery conn add NAME --dsn DSN"))
		return
	}
	t := newTable("", "NAME", "TYPE", "ADDRESS", "TUNNEL", "ID")
	for _, c := range conns {
		tunnel := ""
		if c.Tunnel != nil {
			tunnel = c.Tunnel.User + "@" + c.Tunnel.Host
		}
		t.Row(icons.Status(c.Status), c.Name, string(c.Type), c.Address(), tunnel, c.ID)
	}
	fmt.Fprintln(w, t.Render())
}

func renderMetadata(w io.Writer, meta *core.Metadata) {
	if meta == nil || (len(meta.Tables) == 0 && len(meta.Views) == 0) {
		fmt.Fprintln(w, faintStyle.Render("No tables or views"))
		return
	}
	t := newTable("KIND", "SCHEMA", "NAME", "COLUMNS", "KEYS")
	for _, tbl := range meta.Tables {
		t.Row(icons.IconTable+" table", tbl.Schema, tbl.Name, strconv.Itoa(len(tbl.Columns)), strconv.Itoa(len(tbl.ForeignKeys)))
	}
	for _, v := range meta.Views {
		t.Row(icons.IconView+" view", v.Schema, v.Name, strconv.Itoa(len(v.Columns)), "")
	}
	fmt.Fprintln(w, t.Render())
	fmt.Fprintln(w, faintStyle.Render(fmt.Sprintf("%d tables, %d views, extracted %s",
		meta.TableCount(), len(meta.Views), meta.ExtractedAt.Local().Format("2006-01-02 15:04:05"))))
}

func renderResult(w io.Writer, res *core.QueryResult) {
	if res == nil {
		return
	}
	if len(res.Columns) > 0 {
		t := newTable(res.Columns...)
		for _, row := range res.Rows {
			cells := make([]string, len(res.Columns))
			for i, col := range res.Columns {
				cells[i] = truncate(table.FormatValue(row[col]), maxCellWidth)
			}
			t.Row(cells...)
		}
		fmt.Fprintln(w, t.Render())
	}

	footer := fmt.Sprintf("%d rows (%d ms)", res.Total, res.ExecTimeMs)
	if res.Truncated {
		footer += ", truncated"
	}
	fmt.Fprintln(w, faintStyle.Render(footer))
}

func renderHistory(w io.Writer, entries []history.Entry, total int, color bool) {
	if len(entries) == 0 {
		fmt.Fprintln(w, faintStyle.Render("No history"))
		return
	}
	t := newTable("ID", "WHEN", "KIND", "STATUS", "ROWS", "MS", "SQL")
	for _, e := range entries {
		status := icons.IconSuccess
		if e.Status == history.StatusError {
			status = errStyle.Render(icons.IconError)
		}
		sql := e.QueryPreview(60)
		if color {
			sql = highlight.SQL(sql, "")
		}
		t.Row(
			strconv.FormatInt(e.ID, 10),
			e.ExecutedAt.Local().Format("01-02 15:04"),
			string(e.Kind),
			status,
			strconv.Itoa(e.RowCount),
			strconv.FormatInt(e.DurationMs, 10),
			sql,
		)
	}
	fmt.Fprintln(w, t.Render())
	fmt.Fprintln(w, faintStyle.Render(fmt.Sprintf("showing %d of %d", len(entries), total)))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
