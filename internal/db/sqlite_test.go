// internal/db/sqlite_test.go
package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhath/ezquery/internal/core"
)

func openSQLite(t *testing.T) *SQLiteDriver {
	t.Helper()
	d := &SQLiteDriver{}
	path := filepath.Join(t.TempDir(), "shop.db")
	require.NoError(t, d.Connect(context.Background(), ConnectParams{Database: path}))
	t.Cleanup(func() { d.Close() })
	return d
}

func TestSQLiteDriverQuery(t *testing.T) {
	d := openSQLite(t)
	ctx := context.Background()

	_, err := d.Query(ctx, "CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL)", 0)
	require.NoError(t, err)
	res, err := d.Query(ctx, "INSERT INTO users (name) VALUES ('a'), ('b'), ('c')", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Rows[0]["rows_affected"])

	res, err = d.Query(ctx, "SELECT id, name FROM users ORDER BY id", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.True(t, res.Truncated)
	assert.Equal(t, "a", res.Rows[0]["name"])

	require.NoError(t, d.Ping(ctx))
}

func TestSQLiteExtractMetadata(t *testing.T) {
	d := openSQLite(t)
	ctx := context.Background()
	for _, stmt := range []string{
		"CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT NOT NULL, nickname TEXT DEFAULT 'anon')",
		"CREATE TABLE orders (id INTEGER PRIMARY KEY, user_id INTEGER REFERENCES users(id), total REAL)",
		"CREATE VIEW big_orders AS SELECT * FROM orders WHERE total > 100",
	} {
		_, err := d.Query(ctx, stmt, 0)
		require.NoError(t, err)
	}

	meta, err := d.ExtractMetadata(ctx, "local")
	require.NoError(t, err)

	assert.Equal(t, "local", meta.ConnectionID)
	require.Len(t, meta.Tables, 2)
	orders, users := meta.Tables[0], meta.Tables[1]
	assert.Equal(t, "orders", orders.Name)
	assert.Equal(t, []string{"id"}, users.PrimaryKeys)
	require.Len(t, users.Columns, 3)
	assert.False(t, users.Columns[1].Nullable)
	assert.Equal(t, "'anon'", *users.Columns[2].DefaultValue)
	assert.Equal(t, []core.ForeignKey{{
		ConstraintName:   "fk_orders_0",
		ColumnName:       "user_id",
		ReferencedTable:  "users",
		ReferencedColumn: "id",
	}}, orders.ForeignKeys)

	require.Len(t, meta.Views, 1)
	assert.Equal(t, "big_orders", meta.Views[0].Name)
	assert.Len(t, meta.Views[0].Columns, 3)
	assert.Contains(t, *meta.Views[0].Definition, "total > 100")
}
