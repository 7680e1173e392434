// Package sqlguard applies the keyword-level checks run before a query
// reaches a database: statement splitting, DDL rejection and row limits.
package sqlguard

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/lib/pq"

	"github.com/nhath/ezquery/internal/core"
)

// DefaultRowLimit is the row cap applied to SELECTs without their own limit.
const DefaultRowLimit = 100

var (
	ddlKeywords   = []string{"CREATE", "DROP", "ALTER", "TRUNCATE", "GRANT", "REVOKE"}
	queryKeywords = []string{"SELECT", "WITH", "EXPLAIN", "DESCRIBE", "SHOW", "PRAGMA", "VALUES"}
	limitClause   = regexp.MustCompile(`(?i)\b(LIMIT|FETCH)\b`)
	lineComment   = regexp.MustCompile(`(?m)^\s*--[^\n]*\n?`)
)

// Split splits a script on semicolons outside quotes.
func Split(query string) []string {
	var statements []string
	var current strings.Builder
	inSingleQuote := false
	inDoubleQuote := false

	for i := 0; i < len(query); i++ {
		c := query[i]

		// Handle escape sequences
		if (inSingleQuote || inDoubleQuote) && c == '\\' && i+1 < len(query) {
			current.WriteByte(c)
			i++
			current.WriteByte(query[i])
			continue
		}

		if c == '\'' && !inDoubleQuote {
			inSingleQuote = !inSingleQuote
		} else if c == '"' && !inSingleQuote {
			inDoubleQuote = !inDoubleQuote
		}

		if c == ';' && !inSingleQuote && !inDoubleQuote {
			if stmt := strings.TrimSpace(current.String()); stmt != "" {
				statements = append(statements, stmt)
			}
			current.Reset()
			continue
		}

		current.WriteByte(c)
	}

	if stmt := strings.TrimSpace(current.String()); stmt != "" {
		statements = append(statements, stmt)
	}
	return statements
}

// leadingKeyword returns the first keyword of stmt, upper-cased, ignoring
// leading line comments and parentheses.
func leadingKeyword(stmt string) string {
	s := strings.TrimSpace(lineComment.ReplaceAllString(stmt, ""))
	s = strings.TrimLeft(s, "( \t\r\n")
	end := strings.IndexFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r == '_')
	})
	if end >= 0 {
		s = s[:end]
	}
	return strings.ToUpper(s)
}

// IsDDL reports whether stmt changes schema or privileges.
func IsDDL(stmt string) bool {
	kw := leadingKeyword(stmt)
	for _, k := range ddlKeywords {
		if kw == k {
			return true
		}
	}
	return false
}

// IsSelect reports whether stmt is a plain SELECT.
func IsSelect(stmt string) bool {
	return leadingKeyword(stmt) == "SELECT"
}

// ReturnsRows reports whether stmt is expected to produce a result set.
func ReturnsRows(stmt string) bool {
	kw := leadingKeyword(stmt)
	for _, k := range queryKeywords {
		if kw == k {
			return true
		}
	}
	return false
}

// InjectLimit appends LIMIT n to a SELECT without a LIMIT or FETCH clause,
// dropping a trailing semicolon. It reports whether the statement changed.
func InjectLimit(stmt string, n int) (string, bool) {
	if n <= 0 || !IsSelect(stmt) || limitClause.MatchString(stmt) {
		return stmt, false
	}
	s := strings.TrimSpace(stmt)
	s = strings.TrimSpace(strings.TrimSuffix(s, ";"))
	return fmt.Sprintf("%s LIMIT %d", s, n), true
}

// Check rejects statements that are not allowed to run.
func Check(stmt string) error {
	if IsDDL(stmt) {
		return core.WrapExecution(fmt.Errorf("DDL statements are not allowed: %s", leadingKeyword(stmt)))
	}
	return nil
}

// Plan is a checked script ready to run.
type Plan struct {
	Statements []string
	// Limited marks statements that received an injected LIMIT.
	Limited []bool
}

// Prepare splits script, rejects DDL and injects the row limit.
func Prepare(script string, rowLimit int) (Plan, error) {
	if err := core.ValidateStatement(script); err != nil {
		return Plan{}, err
	}
	stmts := Split(script)
	if len(stmts) == 0 {
		return Plan{}, core.Invalid("sql", "no statement to run")
	}
	p := Plan{Statements: make([]string, len(stmts)), Limited: make([]bool, len(stmts))}
	for i, stmt := range stmts {
		if err := Check(stmt); err != nil {
			return Plan{}, err
		}
		p.Statements[i], p.Limited[i] = InjectLimit(stmt, rowLimit)
	}
	return p, nil
}

// QuoteIdent quotes an identifier for the dialect.
func QuoteIdent(dialect core.DriverType, name string) string {
	if dialect == core.MySQL {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return pq.QuoteIdentifier(name)
}

// SelectAll builds a preview statement for a table or view.
func SelectAll(dialect core.DriverType, schema, name string, limit int) string {
	target := QuoteIdent(dialect, name)
	if schema != "" && dialect != core.SQLite {
		target = QuoteIdent(dialect, schema) + "." + target
	}
	if limit <= 0 {
		limit = DefaultRowLimit
	}
	return fmt.Sprintf("SELECT * FROM %s LIMIT %d", target, limit)
}
