// internal/db/mysql.go
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/nhath/ezquery/internal/core"
)

// MySQLDriver implements Driver for MySQL
type MySQLDriver struct {
	db      *sql.DB
	tunnel  *SSHTunnel
	netName string // Registered network name for SSH
}

// Connect establishes connection to MySQL
func (d *MySQLDriver) Connect(ctx context.Context, params ConnectParams) error {
	cfg := mysql.NewConfig()
	cfg.User = params.User
	cfg.Passwd = params.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", params.Host, params.Port)
	cfg.DBName = params.Database
	cfg.ParseTime = true
	cfg.Timeout = connectTimeout

	if params.Tunnel != nil && params.Tunnel.Host != "" {
		tunnel, err := NewSSHTunnel(ctx, params.Tunnel, params.logger())
		if err != nil {
			return WrapConnectionError(fmt.Errorf("failed to create SSH tunnel: %w", err))
		}
		d.tunnel = tunnel

		// Register a unique network for this connection
		d.netName = fmt.Sprintf("mysql+ssh+%d", time.Now().UnixNano())
		mysql.RegisterDialContext(d.netName, func(ctx context.Context, addr string) (net.Conn, error) {
			return tunnel.DialContext(ctx, "tcp", addr)
		})
		cfg.Net = d.netName
	}

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		d.Close() // Cleanup tunnel if open failed
		return WrapConnectionError(err)
	}

	// Configure connection pooling
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	// sql.Open is lazy
	if err := pingWithTimeout(ctx, db); err != nil {
		db.Close()
		d.Close()
		return WrapConnectionError(err)
	}

	d.db = db
	return nil
}

// Close closes the database connection and SSH tunnel
func (d *MySQLDriver) Close() error {
	var dbErr error
	if d.db != nil {
		dbErr = d.db.Close()
	}

	if d.tunnel != nil {
		if err := d.tunnel.Close(); err != nil {
			if dbErr != nil {
				return fmt.Errorf("db close err: %v, tunnel close err: %w", dbErr, err)
			}
			return err
		}
	}
	// The registered dial context cannot be removed from the driver.
	return dbErr
}

// Query runs a statement and returns results
func (d *MySQLDriver) Query(ctx context.Context, query string, maxRows int) (*core.QueryResult, error) {
	return executeQuery(ctx, d.db, query, maxRows)
}

// Ping checks if database is reachable
func (d *MySQLDriver) Ping(ctx context.Context) error {
	if d.db == nil {
		return WrapConnectionError(errNotConnected)
	}
	return WrapConnectionError(d.db.PingContext(ctx))
}

// Type returns the driver type
func (d *MySQLDriver) Type() core.DriverType {
	return core.MySQL
}

// ExtractMetadata reads the current database's catalog
func (d *MySQLDriver) ExtractMetadata(ctx context.Context, connectionID string) (*core.Metadata, error) {
	return extractCatalog(ctx, d.db, mysqlCatalog, connectionID)
}
