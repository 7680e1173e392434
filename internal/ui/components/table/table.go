package table

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	bbtable "github.com/evertras/bubble-table/table"

	"github.com/nhath/ezquery/internal/core"
)

// Nord colors
const (
	ColorForeground = "#D8DEE9" // Nord4: Light gray
	ColorComment    = "#4C566A" // Nord3: Dark gray
	ColorGreen      = "#A3BE8C" // Nord14: Green
	ColorOrange     = "#D08770" // Nord12: Orange
	ColorPink       = "#B48EAD" // Nord15: Pink
	ColorPurple     = "#B48EAD" // Nord15: Purple
	ColorYellow     = "#EBCB8B" // Nord13: Yellow
	ColorTeal       = "#8FBCBB" // Nord7: Teal
)

const (
	maxColumnWidth = 40
	// NullText is how a NULL cell is shown.
	NullText = "NULL"
)

// New creates a new bubble-table with Nord theme (no background)
func New(cols []bbtable.Column) bbtable.Model {
	return bbtable.New(cols).
		WithBaseStyle(lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorForeground))).
		HeaderStyle(lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorTeal)).
			Bold(true)).
		HighlightStyle(lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorGreen)).
			Bold(true)).
		Focused(true).
		BorderRounded()
}

// FromQueryResult builds a paged table from a QueryResult with
// type-specific coloring. Column order follows res.Columns.
func FromQueryResult(res *core.QueryResult, pageSize int) bbtable.Model {
	if res == nil {
		return bbtable.New(nil)
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	cells := make([][]string, len(res.Rows))
	for i, r := range res.Rows {
		cells[i] = make([]string, len(res.Columns))
		for j, c := range res.Columns {
			cells[i][j] = FormatValue(r[c])
		}
	}

	widths := calculateColumnWidths(res.Columns, cells)
	cols := make([]bbtable.Column, 0, len(res.Columns))
	for i, c := range res.Columns {
		w := widths[i]
		if w > maxColumnWidth {
			w = maxColumnWidth
		}
		cols = append(cols, bbtable.NewColumn(columnKey(i), c, w))
	}

	rows := make([]bbtable.Row, 0, len(cells))
	for i, r := range res.Rows {
		data := bbtable.RowData{}
		for j, c := range res.Columns {
			data[columnKey(j)] = bbtable.NewStyledCell(cells[i][j], ValueStyle(r[c]))
		}
		rows = append(rows, bbtable.NewRow(data))
	}

	footer := fmt.Sprintf("%d rows • %d ms", res.Total, res.ExecTimeMs)
	if res.Truncated {
		footer += " • truncated"
	}
	return New(cols).
		WithRows(rows).
		WithPageSize(pageSize).
		WithStaticFooter(footer)
}

// FromColumns builds a table describing the columns of a table or view.
func FromColumns(cols []core.Column) bbtable.Model {
	headers := []string{"Name", "Type", "Null", "Key", "Default"}
	data := make([][]string, 0, len(cols))
	for _, c := range cols {
		null := "YES"
		if !c.Nullable {
			null = "NO"
		}
		key := ""
		if c.IsPrimaryKey {
			key = "PK"
		}
		def := ""
		if c.DefaultValue != nil {
			def = *c.DefaultValue
		}
		data = append(data, []string{c.Name, c.DataType, null, key, def})
	}
	return fromStrings(headers, data, map[int]lipgloss.Style{
		3: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
	})
}

// FromForeignKeys builds a table of foreign key edges.
func FromForeignKeys(fks []core.ForeignKey) bbtable.Model {
	headers := []string{"Constraint", "Column", "References"}
	data := make([][]string, 0, len(fks))
	for _, fk := range fks {
		data = append(data, []string{fk.ConstraintName, fk.ColumnName, fk.ReferencedTable + "." + fk.ReferencedColumn})
	}
	return fromStrings(headers, data, nil)
}

func fromStrings(headers []string, data [][]string, styled map[int]lipgloss.Style) bbtable.Model {
	widths := calculateColumnWidths(headers, data)
	cols := make([]bbtable.Column, 0, len(headers))
	for i, h := range headers {
		w := widths[i]
		if w > maxColumnWidth+10 {
			w = maxColumnWidth + 10
		}
		cols = append(cols, bbtable.NewColumn(columnKey(i), h, w))
	}
	rows := make([]bbtable.Row, 0, len(data))
	for _, rd := range data {
		row := bbtable.RowData{}
		for i, v := range rd {
			if s, ok := styled[i]; ok {
				row[columnKey(i)] = bbtable.NewStyledCell(v, s)
				continue
			}
			row[columnKey(i)] = v
		}
		rows = append(rows, bbtable.NewRow(row))
	}
	return New(cols).WithRows(rows).WithNoPagination()
}

// columnKey keys cells by position; result columns may repeat a name.
func columnKey(i int) string {
	return "c" + strconv.Itoa(i)
}

func calculateColumnWidths(headers []string, rows [][]string) []int {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, val := range row {
			if i < len(widths) && lipgloss.Width(val) > widths[i] {
				widths[i] = lipgloss.Width(val)
			}
		}
	}

	// Add padding
	for i := range widths {
		widths[i] += 2
	}
	return widths
}

// FormatValue renders a result scalar for display.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return NullText
	case string:
		return strings.ReplaceAll(val, "\n", "↵")
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ValueStyle returns a lipgloss style based on the value's type
func ValueStyle(v any) lipgloss.Style {
	switch v.(type) {
	case nil:
		return lipgloss.NewStyle().Foreground(lipgloss.Color(ColorPink)).Italic(true)
	case bool:
		return lipgloss.NewStyle().Foreground(lipgloss.Color(ColorOrange))
	case int, int32, int64, float32, float64:
		return lipgloss.NewStyle().Foreground(lipgloss.Color(ColorPurple))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow))
	}
}
