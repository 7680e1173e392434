package core

import "time"

// Metadata is the extracted schema of one connection.
type Metadata struct {
	ConnectionID string    `json:"connectionId"`
	Tables       []Table   `json:"tables"`
	Views        []View    `json:"views"`
	ExtractedAt  time.Time `json:"extractedAt"`
}

// Table describes a base table.
type Table struct {
	Schema      string       `json:"schema"`
	Name        string       `json:"name"`
	TableType   string       `json:"tableType"`
	Columns     []Column     `json:"columns"`
	PrimaryKeys []string     `json:"primaryKeys"`
	ForeignKeys []ForeignKey `json:"foreignKeys"`
}

// QualifiedName returns schema.name, or just name when there is no schema.
func (t Table) QualifiedName() string {
	return qualify(t.Schema, t.Name)
}

// View describes a database view.
type View struct {
	Schema     string   `json:"schema"`
	Name       string   `json:"name"`
	Columns    []Column `json:"columns"`
	Definition *string  `json:"definition,omitempty"`
}

// QualifiedName returns schema.name, or just name when there is no schema.
func (v View) QualifiedName() string {
	return qualify(v.Schema, v.Name)
}

// Column describes one column of a table or view.
type Column struct {
	Name            string  `json:"name"`
	DataType        string  `json:"dataType"`
	Nullable        bool    `json:"nullable"`
	DefaultValue    *string `json:"defaultValue,omitempty"`
	IsPrimaryKey    bool    `json:"isPrimaryKey"`
	OrdinalPosition int     `json:"ordinalPosition"`
}

// ForeignKey is one column edge of a foreign key constraint.
type ForeignKey struct {
	ConstraintName   string `json:"constraintName"`
	ColumnName       string `json:"columnName"`
	ReferencedTable  string `json:"referencedTable"`
	ReferencedColumn string `json:"referencedColumn"`
}

// TableCount returns the number of tables and views.
func (m *Metadata) TableCount() int {
	if m == nil {
		return 0
	}
	return len(m.Tables) + len(m.Views)
}

func qualify(schema, name string) string {
	if schema == "" {
		return name
	}
	return schema + "." + name
}
