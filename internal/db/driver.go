// internal/db/driver.go
package db

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/nhath/ezquery/internal/core"
	"github.com/nhath/ezquery/internal/sqlguard"
)

const (
	connectTimeout  = 15 * time.Second
	rowsAffectedCol = "rows_affected"
)

// ConnectParams holds database connection details
type ConnectParams struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Tunnel   *core.Tunnel // Optional SSH tunnel
	Logger   *slog.Logger
}

// ParamsFromProbe converts a probe into ConnectParams.
func ParamsFromProbe(p core.Probe) ConnectParams {
	return ConnectParams{
		Host:     p.Host,
		Port:     p.Port,
		User:     p.User,
		Password: p.Password,
		Database: p.DatabaseName,
		Tunnel:   p.Tunnel,
	}
}

func (p ConnectParams) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.Logger
}

// Driver defines the interface for database operations
type Driver interface {
	Connect(ctx context.Context, params ConnectParams) error
	Close() error
	// Query runs one statement. At most maxRows rows are returned; the
	// result is marked truncated when more were available. maxRows <= 0
	// disables the cap.
	Query(ctx context.Context, query string, maxRows int) (*core.QueryResult, error)
	Ping(ctx context.Context) error
	Type() core.DriverType
	ExtractMetadata(ctx context.Context, connectionID string) (*core.Metadata, error)
}

// Factory creates an unconnected driver for a type.
type Factory func(core.DriverType) (Driver, error)

// NewDriver creates a new driver instance by type
func NewDriver(driverType core.DriverType) (Driver, error) {
	switch driverType {
	case core.Postgres, "":
		return &PostgresDriver{}, nil
	case core.MySQL:
		return &MySQLDriver{}, nil
	case core.SQLite:
		return &SQLiteDriver{}, nil
	default:
		return nil, fmt.Errorf("unknown driver type: %s", driverType)
	}
}

// executeQuery runs a statement and returns results
func executeQuery(ctx context.Context, db *sql.DB, query string, maxRows int) (*core.QueryResult, error) {
	if db == nil {
		return nil, WrapConnectionError(errNotConnected)
	}
	start := time.Now()
	if sqlguard.ReturnsRows(query) {
		return executeSelect(ctx, db, query, maxRows, start)
	}
	return executeDML(ctx, db, query, start)
}

// executeSelect runs a row-returning statement
func executeSelect(ctx context.Context, db *sql.DB, query string, maxRows int, start time.Time) (*core.QueryResult, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, WrapQueryError(err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, WrapQueryError(err)
	}
	results := make([]core.Row, 0)
	truncated := false

	for rows.Next() {
		if maxRows > 0 && len(results) >= maxRows {
			truncated = true
			break
		}
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, WrapQueryError(err)
		}

		row := make(core.Row, len(columns))
		for i, v := range values {
			row[columns[i]] = normalizeValue(v)
		}
		results = append(results, row)
	}

	if err := rows.Err(); err != nil {
		return nil, WrapQueryError(err)
	}

	return &core.QueryResult{
		Columns:    columns,
		Rows:       results,
		Total:      len(results),
		ExecTimeMs: time.Since(start).Milliseconds(),
		SQL:        query,
		Truncated:  truncated,
	}, nil
}

// executeDML runs INSERT/UPDATE/DELETE statements
func executeDML(ctx context.Context, db *sql.DB, query string, start time.Time) (*core.QueryResult, error) {
	result, err := db.ExecContext(ctx, query)
	if err != nil {
		return nil, WrapQueryError(err)
	}
	affected, _ := result.RowsAffected()
	return &core.QueryResult{
		Columns:    []string{rowsAffectedCol},
		Rows:       []core.Row{{rowsAffectedCol: affected}},
		Total:      1,
		ExecTimeMs: time.Since(start).Milliseconds(),
		SQL:        query,
	}, nil
}

// normalizeValue converts a scanned value to a JSON scalar
func normalizeValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case [16]byte:
		return formatUUID(val)
	case bool, string, int64, int32, int, float64, float32:
		return val
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

func formatUUID(b [16]byte) string {
	s := hex.EncodeToString(b[:])
	return s[0:8] + "-" + s[8:12] + "-" + s[12:16] + "-" + s[16:20] + "-" + s[20:]
}

// pingWithTimeout verifies a freshly opened pool.
func pingWithTimeout(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	return db.PingContext(ctx)
}
