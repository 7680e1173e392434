package table

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nhath/ezquery/internal/core"
)

func TestFormatValue(t *testing.T) {
	assert.Equal(t, NullText, FormatValue(nil))
	assert.Equal(t, "1.5", FormatValue(1.5))
	assert.Equal(t, "42", FormatValue(float64(42)))
	assert.Equal(t, "true", FormatValue(true))
	assert.Equal(t, "a↵b", FormatValue("a\nb"))
}

func TestFromQueryResult(t *testing.T) {
	res := &core.QueryResult{
		Columns:    []string{"id", "name"},
		Rows:       []core.Row{{"id": int64(1), "name": "ada"}, {"id": int64(2), "name": nil}},
		Total:      2,
		ExecTimeMs: 7,
		Truncated:  true,
	}

	view := FromQueryResult(res, 10).View()

	assert.Contains(t, view, "name")
	assert.Contains(t, view, "ada")
	assert.Contains(t, view, NullText)
	m := FromQueryResult(res, 10)
	assert.Equal(t, 2, m.TotalRows())
}

func TestFromQueryResultNil(t *testing.T) {
	m := FromQueryResult(nil, 10)
	assert.Equal(t, 0, m.TotalRows())
}

func TestFromColumns(t *testing.T) {
	def := "'anon'"
	view := FromColumns([]core.Column{
		{Name: "id", DataType: "integer", IsPrimaryKey: true},
		{Name: "name", DataType: "text", Nullable: true, DefaultValue: &def},
	}).View()

	assert.Contains(t, view, "PK")
	assert.Contains(t, view, "'anon'")
}
