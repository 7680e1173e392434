package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhath/ezquery/internal/config"
	"github.com/nhath/ezquery/internal/core"
	"github.com/nhath/ezquery/internal/db"
	"github.com/nhath/ezquery/internal/history"
	"github.com/nhath/ezquery/internal/session"
	"github.com/nhath/ezquery/internal/store"
	"github.com/nhath/ezquery/internal/testutil"
)

func newEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	cipher, err := config.NewCipherWithKey(make([]byte, 32))
	require.NoError(t, err)
	logger := testutil.NewTestLogger(t)
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "ezquery.db"), cipher, logger)
	require.NoError(t, err)
	e := New(st, append([]Option{WithLogger(logger)}, opts...)...)
	t.Cleanup(func() {
		e.Close()
		st.Close()
	})
	return e
}

// seedSQLite creates a target database with n users.
func seedSQLite(t *testing.T, n int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "target.db")
	conn, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Exec(`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`)
	require.NoError(t, err)
	for i := 1; i <= n; i++ {
		_, err = conn.Exec(`INSERT INTO users (name) VALUES (?)`, fmt.Sprintf("user%d", i))
		require.NoError(t, err)
	}
	return path
}

func addSQLite(t *testing.T, e *Engine, path string) core.Connection {
	t.Helper()
	c, err := e.AddDatabase(context.Background(), core.Draft{Name: "local", Type: core.SQLite, DatabaseName: path})
	require.NoError(t, err)
	return c
}

func TestAddListAndQuery(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	c := addSQLite(t, e, seedSQLite(t, 3))

	assert.NotEmpty(t, c.ID)
	assert.Equal(t, core.StatusConnected, c.Status)
	list, err := e.ListDatabases(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, c.ID, list[0].ID)

	res, err := e.RunSQLQuery(ctx, c.ID, "SELECT id, name FROM users ORDER BY id")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.False(t, res.Truncated)
	assert.Equal(t, "SELECT id, name FROM users ORDER BY id LIMIT 100", res.SQL)
	assert.Equal(t, "user1", res.Rows[0]["name"])
}

func TestQueryLimitAndTruncation(t *testing.T) {
	e := newEngine(t, WithRowLimit(10))
	c := addSQLite(t, e, seedSQLite(t, 25))

	res, err := e.RunSQLQuery(context.Background(), c.ID, "SELECT * FROM users")
	require.NoError(t, err)
	assert.Equal(t, 10, res.Total)
	assert.True(t, res.Truncated)

	res, err = e.RunSQLQuery(context.Background(), c.ID, "SELECT * FROM users LIMIT 5")
	require.NoError(t, err)
	assert.Equal(t, 5, res.Total)
	assert.False(t, res.Truncated)

	res, err = e.RunSQLQuery(context.Background(), c.ID, "SELECT * FROM users LIMIT 50")
	require.NoError(t, err)
	assert.Equal(t, 10, res.Total)
	assert.True(t, res.Truncated)
}

func TestDDLRejected(t *testing.T) {
	e := newEngine(t)
	c := addSQLite(t, e, seedSQLite(t, 1))

	_, err := e.RunSQLQuery(context.Background(), c.ID, "DROP TABLE users")
	assert.Equal(t, core.KindExecution, core.KindOf(err))

	res, err := e.RunSQLQuery(context.Background(), c.ID, "SELECT count(*) AS n FROM users")
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Rows[0]["n"])
}

func TestMultiStatementReturnsLastResult(t *testing.T) {
	e := newEngine(t)
	c := addSQLite(t, e, seedSQLite(t, 2))

	res, err := e.RunSQLQuery(context.Background(), c.ID, "UPDATE users SET name = 'x'; SELECT name FROM users")
	require.NoError(t, err)
	assert.Equal(t, "x", res.Rows[0]["name"])
}

func TestInvalidSQLIsExecutionError(t *testing.T) {
	e := newEngine(t)
	c := addSQLite(t, e, seedSQLite(t, 1))

	_, err := e.RunSQLQuery(context.Background(), c.ID, "SELECT * FROM missing")
	assert.Equal(t, core.KindExecution, core.KindOf(err))

	entries, err := e.History().List(context.Background(), c.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, history.StatusError, entries[0].Status)
	assert.Contains(t, entries[0].ErrorMessage, "missing")
}

func TestMetadataCacheFirst(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	path := seedSQLite(t, 1)
	c := addSQLite(t, e, path)

	meta, err := e.GetDatabaseMetadata(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, meta.Tables, 1)

	conn, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = conn.Exec(`CREATE TABLE orders (id INTEGER PRIMARY KEY)`)
	require.NoError(t, err)
	conn.Close()

	meta, err = e.GetDatabaseMetadata(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, meta.Tables, 1)

	meta, err = e.RefreshMetadata(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, meta.Tables, 2)

	meta, err = e.GetDatabaseMetadata(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, meta.Tables, 2)
}

func TestDeleteCascades(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	c := addSQLite(t, e, seedSQLite(t, 1))
	_, err := e.GetDatabaseMetadata(ctx, c.ID)
	require.NoError(t, err)
	_, err = e.RunSQLQuery(ctx, c.ID, "SELECT 1")
	require.NoError(t, err)

	require.NoError(t, e.DeleteDatabase(ctx, c.ID))

	list, err := e.ListDatabases(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
	n, err := e.History().Count(ctx, c.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
	_, err = e.GetDatabaseMetadata(ctx, c.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, e.DeleteDatabase(ctx, c.ID), core.ErrNotFound)
}

func TestAddFailsWithoutConnectivity(t *testing.T) {
	e := newEngine(t, WithDriverFactory(func(core.DriverType) (db.Driver, error) {
		return &stubDriver{connectErr: errors.New("connection refused")}, nil
	}))

	_, err := e.AddDatabase(context.Background(), core.Draft{
		Name: "prod", Host: "10.0.0.1", Port: 5432, DatabaseName: "app", User: "app",
	})

	assert.Equal(t, core.KindConnectivity, core.KindOf(err))
	list, lerr := e.ListDatabases(context.Background())
	require.NoError(t, lerr)
	assert.Empty(t, list)
}

func TestAddValidatesBeforeConnecting(t *testing.T) {
	calls := 0
	e := newEngine(t, WithDriverFactory(func(core.DriverType) (db.Driver, error) {
		calls++
		return &stubDriver{}, nil
	}))

	_, err := e.AddDatabase(context.Background(), core.Draft{Name: "x", Host: "h", Port: 5432, User: "u"})

	assert.Equal(t, core.KindValidation, core.KindOf(err))
	assert.Zero(t, calls)
}

func TestUpdateRetestsTarget(t *testing.T) {
	stub := &stubDriver{}
	e := newEngine(t, WithDriverFactory(func(core.DriverType) (db.Driver, error) { return stub, nil }))
	ctx := context.Background()
	c, err := e.AddDatabase(ctx, core.Draft{Name: "prod", Host: "h", Port: 5432, DatabaseName: "app", User: "app", Password: "pw"})
	require.NoError(t, err)

	name := "prod-renamed"
	updated, err := e.UpdateDatabase(ctx, c.ID, core.Patch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "prod-renamed", updated.Name)
	assert.Equal(t, 1, stub.connects)

	stub.connectErr = errors.New("no route to host")
	host := "h2"
	updated, err = e.UpdateDatabase(ctx, c.ID, core.Patch{Host: &host})
	require.NoError(t, err)
	assert.Equal(t, "h2", updated.Host)
	assert.Equal(t, core.StatusFailed, updated.Status)

	_, err = e.UpdateDatabase(ctx, c.ID, core.Patch{})
	assert.Equal(t, core.KindValidation, core.KindOf(err))
	_, err = e.UpdateDatabase(ctx, "missing", core.Patch{Name: &name})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestTestConnection(t *testing.T) {
	e := newEngine(t)

	ok, err := e.TestConnection(context.Background(), core.Probe{Type: core.SQLite, DatabaseName: seedSQLite(t, 0)})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.TestConnection(context.Background(), core.Probe{Type: core.SQLite})
	assert.False(t, ok)
	assert.Equal(t, core.KindValidation, core.KindOf(err))

	list, err := e.ListDatabases(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCancelQueryAbortsInFlight(t *testing.T) {
	stub := &stubDriver{block: make(chan struct{}, 1)}
	e := newEngine(t, WithDriverFactory(func(core.DriverType) (db.Driver, error) { return stub, nil }))
	ctx := context.Background()
	c, err := e.AddDatabase(ctx, core.Draft{Name: "prod", Host: "h", Port: 5432, DatabaseName: "app", User: "app"})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := e.RunSQLQuery(ctx, c.ID, "SELECT pg_sleep(60)")
		done <- err
	}()
	<-stub.block

	require.NoError(t, e.CancelQuery(ctx, c.ID))

	select {
	case err := <-done:
		assert.Equal(t, core.KindExecution, core.KindOf(err))
		assert.Equal(t, "query cancelled", core.Message(err))
	case <-time.After(5 * time.Second):
		t.Fatal("query was not cancelled")
	}
}

func TestCancelLeavesNextQueryRunning(t *testing.T) {
	stub := &stubDriver{block: make(chan struct{}, 1), blockPrefix: "SELECT pg_sleep", delay: 200 * time.Millisecond}
	e := newEngine(t, WithDriverFactory(func(core.DriverType) (db.Driver, error) { return stub, nil }))
	ctx := context.Background()
	c, err := e.AddDatabase(ctx, core.Draft{Name: "prod", Host: "h", Port: 5432, DatabaseName: "app", User: "app"})
	require.NoError(t, err)
	s := session.New(c.ID, slowCancel{Engine: e, delay: 50 * time.Millisecond},
		session.WithLogger(testutil.NewTestLogger(t)))

	first := make(chan error, 1)
	go func() {
		_, err := s.Execute(ctx, "SELECT pg_sleep(60)")
		first <- err
	}()
	<-stub.block
	require.True(t, s.Cancel())
	require.False(t, s.Busy())

	res, err := s.Execute(ctx, "SELECT 1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	assert.Equal(t, session.Succeeded, s.Snapshot().Status)
	assert.ErrorIs(t, <-first, core.ErrStale)
}

func TestNaturalLanguageQuery(t *testing.T) {
	gen := &stubGenerator{sql: "SELECT * FROM users"}
	e := newEngine(t, WithGenerator(gen))
	ctx := context.Background()
	c := addSQLite(t, e, seedSQLite(t, 2))

	sql, err := e.GenerateSQLFromNL(ctx, c.ID, "列出所有用户")
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM users", sql)
	assert.Equal(t, core.SQLite, gen.dialect)
	require.NotNil(t, gen.meta)
	assert.Equal(t, "users", gen.meta.Tables[0].Name)

	resp, err := e.RunNLQuery(ctx, c.ID, "列出所有用户")
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM users", resp.GeneratedSQL)
	assert.Equal(t, 2, resp.Result.Total)

	entries, err := e.History().List(ctx, c.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, history.KindNaturalLanguage, entries[0].Kind)
	assert.Equal(t, "列出所有用户", entries[0].Prompt)
}

func TestGenerateWithoutGenerator(t *testing.T) {
	e := newEngine(t)
	c := addSQLite(t, e, seedSQLite(t, 1))

	_, err := e.GenerateSQLFromNL(context.Background(), c.ID, "count users")
	assert.Equal(t, core.KindExecution, core.KindOf(err))

	_, err = e.GenerateSQLFromNL(context.Background(), c.ID, " ")
	assert.Equal(t, core.KindValidation, core.KindOf(err))
}
