// internal/db/sqlite.go
package db

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nhath/ezquery/internal/core"
	"github.com/nhath/ezquery/internal/sqlguard"
)

// SQLiteDriver implements Driver for SQLite
type SQLiteDriver struct {
	db *sql.DB
}

// Connect opens the database file named by params.Database
func (d *SQLiteDriver) Connect(ctx context.Context, params ConnectParams) error {
	dsn := strings.TrimPrefix(params.Database, "sqlite://")

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return WrapConnectionError(err)
	}
	// One writer; the pragmas below are per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return WrapConnectionError(fmt.Errorf("pragma foreign_keys: %w", err))
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 10000"); err != nil {
		db.Close()
		return WrapConnectionError(fmt.Errorf("pragma busy_timeout: %w", err))
	}

	d.db = db
	return nil
}

// Close closes the database connection
func (d *SQLiteDriver) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// Query runs a statement and returns results
func (d *SQLiteDriver) Query(ctx context.Context, query string, maxRows int) (*core.QueryResult, error) {
	return executeQuery(ctx, d.db, query, maxRows)
}

// Ping checks if database is reachable
func (d *SQLiteDriver) Ping(ctx context.Context) error {
	if d.db == nil {
		return WrapConnectionError(errNotConnected)
	}
	return WrapConnectionError(d.db.PingContext(ctx))
}

// Type returns the driver type
func (d *SQLiteDriver) Type() core.DriverType {
	return core.SQLite
}

// ExtractMetadata reads sqlite_master and the table pragmas
func (d *SQLiteDriver) ExtractMetadata(ctx context.Context, connectionID string) (*core.Metadata, error) {
	if d.db == nil {
		return nil, WrapConnectionError(errNotConnected)
	}
	meta := &core.Metadata{
		ConnectionID: connectionID,
		Tables:       []core.Table{},
		Views:        []core.View{},
		ExtractedAt:  time.Now().UTC(),
	}

	query := `SELECT type, name, COALESCE(sql, '') FROM sqlite_master
		WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'
		ORDER BY name`
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, WrapQueryError(err)
	}
	type object struct{ kind, name, def string }
	var objects []object
	for rows.Next() {
		var o object
		if err := rows.Scan(&o.kind, &o.name, &o.def); err != nil {
			rows.Close()
			return nil, WrapQueryError(err)
		}
		objects = append(objects, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, WrapQueryError(err)
	}

	for _, o := range objects {
		columns, pks, err := d.tableInfo(ctx, o.name)
		if err != nil {
			return nil, err
		}
		if o.kind == "view" {
			def := o.def
			meta.Views = append(meta.Views, core.View{Name: o.name, Columns: columns, Definition: &def})
			continue
		}
		fks, err := d.foreignKeys(ctx, o.name)
		if err != nil {
			return nil, err
		}
		meta.Tables = append(meta.Tables, core.Table{
			Name:        o.name,
			TableType:   "BASE TABLE",
			Columns:     columns,
			PrimaryKeys: pks,
			ForeignKeys: fks,
		})
	}
	return meta, nil
}

// tableInfo returns the columns of a table or view and its primary key in key order
func (d *SQLiteDriver) tableInfo(ctx context.Context, name string) ([]core.Column, []string, error) {
	rows, err := d.db.QueryContext(ctx, "PRAGMA table_info("+sqlguard.QuoteIdent(core.SQLite, name)+")")
	if err != nil {
		return nil, nil, WrapQueryError(err)
	}
	defer rows.Close()

	columns := []core.Column{}
	type keyPart struct {
		pos  int
		name string
	}
	var parts []keyPart
	for rows.Next() {
		var cid, notNull, pk int
		var colName, dataType string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &colName, &dataType, &notNull, &dflt, &pk); err != nil {
			return nil, nil, WrapQueryError(err)
		}
		col := core.Column{
			Name:            colName,
			DataType:        dataType,
			Nullable:        notNull == 0,
			IsPrimaryKey:    pk > 0,
			OrdinalPosition: cid + 1,
		}
		if dflt.Valid {
			col.DefaultValue = &dflt.String
		}
		if pk > 0 {
			parts = append(parts, keyPart{pk, colName})
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, WrapQueryError(err)
	}

	sort.Slice(parts, func(i, j int) bool { return parts[i].pos < parts[j].pos })
	pks := make([]string, 0, len(parts))
	for _, p := range parts {
		pks = append(pks, p.name)
	}
	return columns, pks, nil
}

// foreignKeys lists the foreign key edges of a table. An omitted target
// column refers to the target's primary key.
func (d *SQLiteDriver) foreignKeys(ctx context.Context, table string) ([]core.ForeignKey, error) {
	rows, err := d.db.QueryContext(ctx, "PRAGMA foreign_key_list("+sqlguard.QuoteIdent(core.SQLite, table)+")")
	if err != nil {
		return nil, WrapQueryError(err)
	}
	defer rows.Close()

	fks := []core.ForeignKey{}
	for rows.Next() {
		var id, seq int
		var target, from string
		var to sql.NullString
		var onUpdate, onDelete, match string
		if err := rows.Scan(&id, &seq, &target, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, WrapQueryError(err)
		}
		fks = append(fks, core.ForeignKey{
			ConstraintName:   fmt.Sprintf("fk_%s_%d", table, id),
			ColumnName:       from,
			ReferencedTable:  target,
			ReferencedColumn: to.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, WrapQueryError(err)
	}
	return fks, nil
}
