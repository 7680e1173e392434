// Package ai turns natural-language requests into SQL with a chat model.
package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/nhath/ezquery/internal/core"
)

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// Provider is a chat completion backend.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
	Name() string
}

// Generator produces one SQL statement for a prompt against a schema.
type Generator interface {
	Generate(ctx context.Context, prompt string, meta *core.Metadata, dialect core.DriverType) (string, error)
}

// SQLGenerator implements Generator on top of a Provider.
type SQLGenerator struct {
	provider Provider
}

// NewGenerator wraps p.
func NewGenerator(p Provider) *SQLGenerator {
	return &SQLGenerator{provider: p}
}

// Generate asks the model for SQL and strips formatting from the reply.
func (g *SQLGenerator) Generate(ctx context.Context, prompt string, meta *core.Metadata, dialect core.DriverType) (string, error) {
	if err := core.ValidatePrompt(prompt); err != nil {
		return "", err
	}
	reply, err := g.provider.Chat(ctx, []Message{
		{Role: "system", Content: SystemPrompt(dialect)},
		{Role: "user", Content: UserPrompt(prompt, meta, dialect)},
	})
	if err != nil {
		return "", core.WrapExecution(fmt.Errorf("%s: %w", g.provider.Name(), err))
	}
	sql := CleanSQL(reply)
	if sql == "" {
		return "", core.WrapExecution(fmt.Errorf("%s returned no SQL", g.provider.Name()))
	}
	return sql, nil
}

// DialectName is the human name of a dialect used in prompts.
func DialectName(d core.DriverType) string {
	switch d {
	case core.MySQL:
		return "MySQL"
	case core.SQLite:
		return "SQLite"
	default:
		return "PostgreSQL"
	}
}

// SystemPrompt returns the rules given to the model.
func SystemPrompt(dialect core.DriverType) string {
	name := DialectName(dialect)
	return fmt.Sprintf(`You are an expert %[1]s query assistant. Convert the user's request into one valid %[1]s query.

Rules:
1. Generate SELECT queries only. Never generate DDL (CREATE/DROP/ALTER) or data changes.
2. If the query has no LIMIT clause, add LIMIT 100.
3. The SQL must follow %[1]s syntax.
4. Return only the SQL statement, no explanation.
5. Use the provided schema to pick exact table and column names.
6. Respect the case of table and column names.
7. Understand requests written in any language.

Output format:
Only the SQL statement. No markdown code fences, no comments.`, name)
}

// UserPrompt combines the schema description with the request.
func UserPrompt(prompt string, meta *core.Metadata, dialect core.DriverType) string {
	return fmt.Sprintf(`Database schema:

%s

Request:
%s

Translate the request into a %s query using the schema above. Return only the SQL.`,
		DescribeSchema(meta), prompt, DialectName(dialect))
}

// DescribeSchema renders metadata as text for the model.
func DescribeSchema(meta *core.Metadata) string {
	if meta.TableCount() == 0 {
		return "No tables or views were found in the database."
	}
	var parts []string

	if len(meta.Tables) > 0 {
		parts = append(parts, "Tables:")
		for _, t := range meta.Tables {
			parts = append(parts, fmt.Sprintf("  - %s (%s)", displayName(t.Schema, t.Name), t.TableType))
			if len(t.Columns) > 0 {
				cols := make([]string, 0, len(t.Columns))
				for _, c := range t.Columns {
					desc := fmt.Sprintf("%s (%s)", c.Name, c.DataType)
					if c.IsPrimaryKey {
						desc += " [PRIMARY KEY]"
					}
					if !c.Nullable {
						desc += " [NOT NULL]"
					}
					cols = append(cols, desc)
				}
				parts = append(parts, "    Columns: "+strings.Join(cols, ", "))
			}
			if len(t.PrimaryKeys) > 0 {
				parts = append(parts, "    Primary key: "+strings.Join(t.PrimaryKeys, ", "))
			}
			if len(t.ForeignKeys) > 0 {
				fks := make([]string, 0, len(t.ForeignKeys))
				for _, fk := range t.ForeignKeys {
					fks = append(fks, fmt.Sprintf("%s.%s -> %s.%s", t.Name, fk.ColumnName, fk.ReferencedTable, fk.ReferencedColumn))
				}
				parts = append(parts, "    Foreign keys: "+strings.Join(fks, ", "))
			}
		}
	}

	if len(meta.Views) > 0 {
		parts = append(parts, "\nViews:")
		for _, v := range meta.Views {
			parts = append(parts, "  - "+displayName(v.Schema, v.Name))
			if len(v.Columns) > 0 {
				cols := make([]string, 0, len(v.Columns))
				for _, c := range v.Columns {
					cols = append(cols, fmt.Sprintf("%s (%s)", c.Name, c.DataType))
				}
				parts = append(parts, "    Columns: "+strings.Join(cols, ", "))
			}
		}
	}
	return strings.Join(parts, "\n")
}

// displayName omits the default schemas.
func displayName(schema, name string) string {
	if schema == "" || schema == "public" {
		return name
	}
	return schema + "." + name
}

// CleanSQL removes markdown fences and a trailing semicolon.
func CleanSQL(s string) string {
	s = strings.TrimSpace(s)
	for _, fence := range []string{"```sql", "```SQL", "```"} {
		if strings.HasPrefix(s, fence) {
			if inner, ok := strings.CutSuffix(strings.TrimPrefix(s, fence), "```"); ok {
				s = strings.TrimSpace(inner)
			}
			break
		}
	}
	s = strings.TrimRight(s, "; \t\r\n")
	return strings.TrimSpace(s)
}
