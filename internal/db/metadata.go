// internal/db/metadata.go
package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/nhath/ezquery/internal/core"
)

// catalogQueries are the information_schema lookups of one dialect.
// Per-table queries take (schema, table) as their two parameters.
type catalogQueries struct {
	tables      string
	views       string
	columns     string
	primaryKeys string
	foreignKeys string
}

var postgresCatalog = catalogQueries{
	tables: `
		SELECT table_schema, table_name, table_type
		FROM information_schema.tables
		WHERE table_schema NOT IN ('information_schema', 'pg_catalog', 'pg_toast')
		AND table_type = 'BASE TABLE'
		ORDER BY table_schema, table_name`,
	views: `
		SELECT table_schema, table_name, view_definition
		FROM information_schema.views
		WHERE table_schema NOT IN ('information_schema', 'pg_catalog', 'pg_toast')
		ORDER BY table_schema, table_name`,
	columns: `
		SELECT column_name, data_type, is_nullable, column_default, ordinal_position
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`,
	primaryKeys: `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY'
		AND tc.table_schema = $1 AND tc.table_name = $2
		ORDER BY kcu.ordinal_position`,
	foreignKeys: `
		SELECT tc.constraint_name, kcu.column_name, ccu.table_name, ccu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON ccu.constraint_name = tc.constraint_name
			AND ccu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
		AND tc.table_schema = $1 AND tc.table_name = $2
		ORDER BY tc.constraint_name, kcu.ordinal_position`,
}

var mysqlCatalog = catalogQueries{
	tables: `
		SELECT TABLE_SCHEMA, TABLE_NAME, TABLE_TYPE
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = DATABASE()
		AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME`,
	views: `
		SELECT TABLE_SCHEMA, TABLE_NAME, VIEW_DEFINITION
		FROM INFORMATION_SCHEMA.VIEWS
		WHERE TABLE_SCHEMA = DATABASE()
		ORDER BY TABLE_NAME`,
	columns: `
		SELECT COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE, COLUMN_DEFAULT, ORDINAL_POSITION
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`,
	primaryKeys: `
		SELECT COLUMN_NAME
		FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE
		WHERE CONSTRAINT_NAME = 'PRIMARY'
		AND TABLE_SCHEMA = ? AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`,
	foreignKeys: `
		SELECT CONSTRAINT_NAME, COLUMN_NAME, REFERENCED_TABLE_NAME, REFERENCED_COLUMN_NAME
		FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE
		WHERE REFERENCED_TABLE_NAME IS NOT NULL
		AND TABLE_SCHEMA = ? AND TABLE_NAME = ?
		ORDER BY CONSTRAINT_NAME, ORDINAL_POSITION`,
}

// extractCatalog walks information_schema with the given queries.
func extractCatalog(ctx context.Context, db *sql.DB, q catalogQueries, connectionID string) (*core.Metadata, error) {
	if db == nil {
		return nil, WrapConnectionError(errNotConnected)
	}
	meta := &core.Metadata{
		ConnectionID: connectionID,
		Tables:       []core.Table{},
		Views:        []core.View{},
		ExtractedAt:  time.Now().UTC(),
	}

	rows, err := db.QueryContext(ctx, q.tables)
	if err != nil {
		return nil, WrapQueryError(err)
	}
	for rows.Next() {
		var t core.Table
		if err := rows.Scan(&t.Schema, &t.Name, &t.TableType); err != nil {
			rows.Close()
			return nil, WrapQueryError(err)
		}
		meta.Tables = append(meta.Tables, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, WrapQueryError(err)
	}

	for i := range meta.Tables {
		t := &meta.Tables[i]
		if t.PrimaryKeys, err = queryStrings(ctx, db, q.primaryKeys, t.Schema, t.Name); err != nil {
			return nil, err
		}
		if t.Columns, err = queryColumns(ctx, db, q.columns, t.Schema, t.Name, t.PrimaryKeys); err != nil {
			return nil, err
		}
		if t.ForeignKeys, err = queryForeignKeys(ctx, db, q.foreignKeys, t.Schema, t.Name); err != nil {
			return nil, err
		}
	}

	rows, err = db.QueryContext(ctx, q.views)
	if err != nil {
		return nil, WrapQueryError(err)
	}
	for rows.Next() {
		var v core.View
		var def sql.NullString
		if err := rows.Scan(&v.Schema, &v.Name, &def); err != nil {
			rows.Close()
			return nil, WrapQueryError(err)
		}
		if def.Valid {
			v.Definition = &def.String
		}
		meta.Views = append(meta.Views, v)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, WrapQueryError(err)
	}

	for i := range meta.Views {
		v := &meta.Views[i]
		if v.Columns, err = queryColumns(ctx, db, q.columns, v.Schema, v.Name, nil); err != nil {
			return nil, err
		}
	}
	return meta, nil
}

func queryColumns(ctx context.Context, db *sql.DB, query, schema, table string, pks []string) ([]core.Column, error) {
	rows, err := db.QueryContext(ctx, query, schema, table)
	if err != nil {
		return nil, WrapQueryError(err)
	}
	defer rows.Close()

	columns := []core.Column{}
	for rows.Next() {
		var col core.Column
		var nullable string
		var def sql.NullString
		if err := rows.Scan(&col.Name, &col.DataType, &nullable, &def, &col.OrdinalPosition); err != nil {
			return nil, WrapQueryError(err)
		}
		col.Nullable = nullable == "YES"
		if def.Valid {
			col.DefaultValue = &def.String
		}
		col.IsPrimaryKey = contains(pks, col.Name)
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, WrapQueryError(err)
	}
	return columns, nil
}

func queryStrings(ctx context.Context, db *sql.DB, query, schema, table string) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, schema, table)
	if err != nil {
		return nil, WrapQueryError(err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, WrapQueryError(err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, WrapQueryError(err)
	}
	return out, nil
}

func queryForeignKeys(ctx context.Context, db *sql.DB, query, schema, table string) ([]core.ForeignKey, error) {
	rows, err := db.QueryContext(ctx, query, schema, table)
	if err != nil {
		return nil, WrapQueryError(err)
	}
	defer rows.Close()

	fks := []core.ForeignKey{}
	for rows.Next() {
		var fk core.ForeignKey
		if err := rows.Scan(&fk.ConstraintName, &fk.ColumnName, &fk.ReferencedTable, &fk.ReferencedColumn); err != nil {
			return nil, WrapQueryError(err)
		}
		fks = append(fks, fk)
	}
	if err := rows.Err(); err != nil {
		return nil, WrapQueryError(err)
	}
	return fks, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
