// Package store persists registered connections and metadata snapshots in a
// local SQLite database.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	_ "github.com/mattn/go-sqlite3"

	"github.com/nhath/ezquery/internal/core"
)

// Cipher encrypts secrets before they are written.
type Cipher interface {
	Encrypt(plain string) (string, error)
	Decrypt(cipherText string) (string, error)
}

// Record is a connection together with its secret.
type Record struct {
	core.Connection
	Password string
}

// Probe returns the connectivity fields of the record.
func (r Record) Probe() core.Probe {
	return core.Probe{
		Type:         r.Type,
		Host:         r.Host,
		Port:         r.Port,
		DatabaseName: r.DatabaseName,
		User:         r.User,
		Password:     r.Password,
		Tunnel:       r.Tunnel,
	}
}

// Store manages connection and metadata persistence
type Store struct {
	db     *sql.DB
	cipher Cipher
	logger *slog.Logger
}

// DefaultPath returns the XDG data path of the store.
func DefaultPath() (string, error) {
	return xdg.DataFile("ezquery/ezquery.db")
}

// Open opens or creates the store at path and applies migrations.
func Open(ctx context.Context, path string, cipher Cipher, logger *slog.Logger) (*Store, error) {
	if cipher == nil {
		return nil, errors.New("store: cipher is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, cipher: cipher, logger: logger}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	logger.Debug("store opened", "path", path)
	return s, nil
}

// DB exposes the underlying handle for stores sharing the file.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

const connectionColumns = `id, name, type, host, port, database_name, user, password, tunnel, status, created_at, updated_at`

// ListConnections returns all connections ordered by creation.
func (s *Store) ListConnections(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+connectionColumns+` FROM connections ORDER BY created_at, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		r, err := s.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// GetConnection returns one connection or core.ErrNotFound.
func (s *Store) GetConnection(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+connectionColumns+` FROM connections WHERE id = ?`, id)
	r, err := s.scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}
	return r, err
}

// SaveConnection inserts or replaces a connection.
func (s *Store) SaveConnection(ctx context.Context, r Record) error {
	password, err := s.cipher.Encrypt(r.Password)
	if err != nil {
		return fmt.Errorf("encrypt password: %w", err)
	}
	var tunnel sql.NullString
	if r.Tunnel != nil {
		b, err := json.Marshal(r.Tunnel)
		if err != nil {
			return err
		}
		tunnel = sql.NullString{String: string(b), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO connections (`+connectionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			host = excluded.host,
			port = excluded.port,
			database_name = excluded.database_name,
			user = excluded.user,
			password = excluded.password,
			tunnel = excluded.tunnel,
			status = excluded.status,
			updated_at = excluded.updated_at`,
		r.ID, r.Name, string(r.Type), r.Host, r.Port, r.DatabaseName, r.User,
		password, tunnel, string(r.Status), r.CreatedAt.UTC(), r.UpdatedAt.UTC(),
	)
	return err
}

// UpdateStatus records the last known reachability of a connection.
func (s *Store) UpdateStatus(ctx context.Context, id string, status core.ConnectionStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE connections SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id)
	return err
}

// DeleteConnection removes a connection and everything that references it.
func (s *Store) DeleteConnection(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM connections WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}
	return nil
}

// LoadMetadata returns the stored snapshot, or nil when there is none.
func (s *Store) LoadMetadata(ctx context.Context, connectionID string) (*core.Metadata, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM metadata WHERE connection_id = ?`, connectionID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var meta core.Metadata
	if err := json.Unmarshal([]byte(data), &meta); err != nil {
		s.logger.Warn("discarding unreadable metadata snapshot", "connection", connectionID, "error", err)
		return nil, nil
	}
	return &meta, nil
}

// DeleteMetadata drops the snapshot of a connection.
func (s *Store) DeleteMetadata(ctx context.Context, connectionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM metadata WHERE connection_id = ?`, connectionID)
	return err
}

// SaveMetadata overwrites the snapshot of meta.ConnectionID.
func (s *Store) SaveMetadata(ctx context.Context, meta *core.Metadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO metadata (connection_id, data, extracted_at) VALUES (?, ?, ?)
		ON CONFLICT(connection_id) DO UPDATE SET data = excluded.data, extracted_at = excluded.extracted_at`,
		meta.ConnectionID, string(data), meta.ExtractedAt.UTC())
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanRecord(row scanner) (Record, error) {
	var (
		r        Record
		typ      string
		status   string
		password string
		tunnel   sql.NullString
	)
	err := row.Scan(&r.ID, &r.Name, &typ, &r.Host, &r.Port, &r.DatabaseName, &r.User,
		&password, &tunnel, &status, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return Record{}, err
	}
	r.Type = core.DriverType(typ)
	r.Status = core.ConnectionStatus(status)
	if tunnel.Valid && tunnel.String != "" {
		r.Tunnel = &core.Tunnel{}
		if err := json.Unmarshal([]byte(tunnel.String), r.Tunnel); err != nil {
			return Record{}, fmt.Errorf("decode tunnel of %s: %w", r.ID, err)
		}
	}
	if password != "" {
		if r.Password, err = s.cipher.Decrypt(password); err != nil {
			s.logger.Warn("cannot decrypt stored password", "connection", r.ID, "error", err)
		}
	}
	return r, nil
}
