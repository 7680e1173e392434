package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhath/ezquery/internal/core"
)

func TestExecuteQueryScansRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT id, name, seen FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "seen"}).
			AddRow(int64(1), []byte("alice"), ts).
			AddRow(int64(2), nil, nil))

	res, err := executeQuery(context.Background(), db, "SELECT id, name, seen FROM users", 0)
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "name", "seen"}, res.Columns)
	assert.Equal(t, 2, res.Total)
	assert.False(t, res.Truncated)
	assert.Equal(t, core.Row{"id": int64(1), "name": "alice", "seen": "2024-05-01T12:00:00Z"}, res.Rows[0])
	assert.Nil(t, res.Rows[1]["name"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteQueryTruncates(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"n"})
	for i := 0; i < 5; i++ {
		rows.AddRow(int64(i))
	}
	mock.ExpectQuery("SELECT n FROM nums").WillReturnRows(rows)

	res, err := executeQuery(context.Background(), db, "SELECT n FROM nums", 3)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Total)
	assert.Len(t, res.Rows, 3)
	assert.True(t, res.Truncated)
}

func TestExecuteQueryDML(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE users SET active").WillReturnResult(sqlmock.NewResult(0, 4))

	res, err := executeQuery(context.Background(), db, "UPDATE users SET active = true", 100)
	require.NoError(t, err)

	assert.Equal(t, []string{"rows_affected"}, res.Columns)
	assert.Equal(t, int64(4), res.Rows[0]["rows_affected"])
}

func TestExecuteQueryErrorsAreExecutionErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT").WillReturnError(errors.New(`relation "nope" does not exist`))

	_, err = executeQuery(context.Background(), db, "SELECT * FROM nope", 0)

	assert.Equal(t, core.KindExecution, core.KindOf(err))
	assert.Equal(t, `relation "nope" does not exist`, core.Message(err))
}

func TestExecuteQueryNotConnected(t *testing.T) {
	_, err := executeQuery(context.Background(), nil, "SELECT 1", 0)
	assert.Equal(t, core.KindConnectivity, core.KindOf(err))
}

func TestExtractCatalogPostgres(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM information_schema.tables").
		WillReturnRows(sqlmock.NewRows([]string{"table_schema", "table_name", "table_type"}).
			AddRow("public", "orders", "BASE TABLE"))
	mock.ExpectQuery("PRIMARY KEY").WithArgs("public", "orders").
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}).AddRow("id"))
	mock.ExpectQuery("FROM information_schema.columns").WithArgs("public", "orders").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable", "column_default", "ordinal_position"}).
			AddRow("id", "integer", "NO", "nextval('orders_id_seq')", 1).
			AddRow("user_id", "integer", "YES", nil, 2))
	mock.ExpectQuery("FOREIGN KEY").WithArgs("public", "orders").
		WillReturnRows(sqlmock.NewRows([]string{"constraint_name", "column_name", "table_name", "column_name"}).
			AddRow("orders_user_fk", "user_id", "users", "id"))
	mock.ExpectQuery("FROM information_schema.views").
		WillReturnRows(sqlmock.NewRows([]string{"table_schema", "table_name", "view_definition"}).
			AddRow("public", "recent_orders", "SELECT * FROM orders"))
	mock.ExpectQuery("FROM information_schema.columns").WithArgs("public", "recent_orders").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable", "column_default", "ordinal_position"}).
			AddRow("id", "integer", "YES", nil, 1))

	meta, err := extractCatalog(context.Background(), db, postgresCatalog, "conn-1")
	require.NoError(t, err)

	assert.Equal(t, "conn-1", meta.ConnectionID)
	require.Len(t, meta.Tables, 1)
	orders := meta.Tables[0]
	assert.Equal(t, "public.orders", orders.QualifiedName())
	assert.Equal(t, []string{"id"}, orders.PrimaryKeys)
	require.Len(t, orders.Columns, 2)
	assert.True(t, orders.Columns[0].IsPrimaryKey)
	assert.False(t, orders.Columns[0].Nullable)
	assert.Equal(t, "nextval('orders_id_seq')", *orders.Columns[0].DefaultValue)
	assert.Nil(t, orders.Columns[1].DefaultValue)
	assert.Equal(t, []core.ForeignKey{{ConstraintName: "orders_user_fk", ColumnName: "user_id", ReferencedTable: "users", ReferencedColumn: "id"}}, orders.ForeignKeys)
	require.Len(t, meta.Views, 1)
	assert.Equal(t, "SELECT * FROM orders", *meta.Views[0].Definition)
	assert.Len(t, meta.Views[0].Columns, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewDriver(t *testing.T) {
	for _, typ := range []core.DriverType{core.Postgres, core.MySQL, core.SQLite} {
		d, err := NewDriver(typ)
		require.NoError(t, err)
		assert.Equal(t, typ, d.Type())
	}
	_, err := NewDriver("oracle")
	assert.Error(t, err)
}
