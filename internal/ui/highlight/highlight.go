// Package highlight renders SQL with terminal colors.
package highlight

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"

	"github.com/nhath/ezquery/internal/core"
)

// Style is the chroma style used for every highlight.
const Style = "nord"

func lexerFor(dialect core.DriverType) chroma.Lexer {
	var l chroma.Lexer
	switch dialect {
	case core.MySQL:
		l = lexers.Get("mysql")
	case core.Postgres:
		l = lexers.Get("postgresql")
	}
	if l == nil {
		l = lexers.Get("sql")
	}
	if l == nil {
		l = lexers.Fallback
	}
	return chroma.Coalesce(l)
}

// SQL returns sql colored for a 256-color terminal. On any highlighting
// failure the input is returned unchanged.
func SQL(sql string, dialect core.DriverType) string {
	if strings.TrimSpace(sql) == "" {
		return sql
	}
	it, err := lexerFor(dialect).Tokenise(nil, sql)
	if err != nil {
		return sql
	}
	style := styles.Get(Style)
	if style == nil {
		style = styles.Fallback
	}
	var b strings.Builder
	if err := formatters.TTY256.Format(&b, style, it); err != nil {
		return sql
	}
	return strings.TrimRight(b.String(), "\n")
}
