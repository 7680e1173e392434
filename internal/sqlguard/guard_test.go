package sqlguard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhath/ezquery/internal/core"
)

func TestInjectLimit(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		changed bool
	}{
		{"select without limit", "SELECT * FROM users", "SELECT * FROM users LIMIT 100", true},
		{"select with limit", "SELECT * FROM users LIMIT 50", "SELECT * FROM users LIMIT 50", false},
		{"trailing semicolon", "SELECT * FROM users;", "SELECT * FROM users LIMIT 100", true},
		{"insert untouched", "INSERT INTO users (name) VALUES ('test')", "INSERT INTO users (name) VALUES ('test')", false},
		{"fetch first", "SELECT * FROM users FETCH FIRST 10 ROWS ONLY", "SELECT * FROM users FETCH FIRST 10 ROWS ONLY", false},
		{"lower case", "select id from t", "select id from t LIMIT 100", true},
		{"column named limits", "SELECT limits FROM quotas", "SELECT limits FROM quotas LIMIT 100", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := InjectLimit(tt.in, DefaultRowLimit)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.changed, changed)
		})
	}
}

func TestIsDDL(t *testing.T) {
	for _, stmt := range []string{
		"CREATE TABLE test (id INT)",
		"CREATE INDEX idx ON test(id)",
		"drop table test",
		"ALTER TABLE test ADD COLUMN name TEXT",
		"TRUNCATE TABLE test",
		"GRANT SELECT ON TABLE test TO someone",
		"REVOKE SELECT ON TABLE test FROM someone",
		"-- cleanup\nDROP TABLE test",
	} {
		assert.True(t, IsDDL(stmt), stmt)
	}
	for _, stmt := range []string{
		"SELECT * FROM created",
		"UPDATE users SET name = 'drop'",
		"WITH x AS (SELECT 1) SELECT * FROM x",
	} {
		assert.False(t, IsDDL(stmt), stmt)
	}
}

func TestSplitRespectsQuotes(t *testing.T) {
	got := Split(`SELECT 'a;b'; SELECT "c;d";  ; SELECT 3`)

	assert.Equal(t, []string{`SELECT 'a;b'`, `SELECT "c;d"`, `SELECT 3`}, got)
}

func TestPrepare(t *testing.T) {
	plan, err := Prepare("SELECT * FROM a; UPDATE b SET x = 1", 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"SELECT * FROM a LIMIT 100", "UPDATE b SET x = 1"}, plan.Statements)
	assert.Equal(t, []bool{true, false}, plan.Limited)

	_, err = Prepare("SELECT 1; DROP TABLE users", 100)
	assert.Equal(t, core.KindExecution, core.KindOf(err))

	_, err = Prepare("  ", 100)
	assert.Equal(t, core.KindValidation, core.KindOf(err))

	_, err = Prepare(";;", 100)
	assert.Equal(t, core.KindValidation, core.KindOf(err))
}

func TestReturnsRows(t *testing.T) {
	assert.True(t, ReturnsRows("WITH x AS (SELECT 1) SELECT * FROM x"))
	assert.True(t, ReturnsRows("(SELECT 1) UNION (SELECT 2)"))
	assert.True(t, ReturnsRows("PRAGMA table_info(users)"))
	assert.False(t, ReturnsRows("DELETE FROM users"))
}

func TestSelectAll(t *testing.T) {
	assert.Equal(t, `SELECT * FROM "public"."users" LIMIT 100`, SelectAll(core.Postgres, "public", "users", 0))
	assert.Equal(t, "SELECT * FROM `shop`.`order` LIMIT 10", SelectAll(core.MySQL, "shop", "order", 10))
	assert.Equal(t, `SELECT * FROM "weird""name" LIMIT 100`, SelectAll(core.SQLite, "main", `weird"name`, 100))
}
