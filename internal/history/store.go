// internal/history/store.go
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

const entryColumns = `id, connection_id, kind, sql, prompt, executed_at, duration_ms, row_count, status, error_message`

// Store manages query history persistence on the shared database. The
// query_history table is created by the store migrations.
type Store struct {
	db        *sql.DB
	retention time.Duration
	logger    *slog.Logger
}

// Option configures a Store
type Option func(*Store)

// WithRetention sets how long entries are kept
func WithRetention(d time.Duration) Option {
	return func(s *Store) { s.retention = d }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore creates a history store over db and prunes expired entries
func NewStore(ctx context.Context, db *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:        db,
		retention: 90 * 24 * time.Hour,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.cleanup(ctx); err != nil {
		s.logger.Warn("history cleanup failed", "error", err)
	}
	return s
}

// Add inserts a new execution into history
func (s *Store) Add(ctx context.Context, entry *Entry) error {
	if entry.ExecutedAt.IsZero() {
		entry.ExecutedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO query_history (connection_id, kind, sql, prompt, executed_at, duration_ms, row_count, status, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ConnectionID,
		string(entry.Kind),
		entry.SQL,
		nullable(entry.Prompt),
		entry.ExecutedAt.UTC(),
		entry.DurationMs,
		entry.RowCount,
		entry.Status,
		nullable(entry.ErrorMessage),
	)
	if err != nil {
		return fmt.Errorf("add history: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	entry.ID = id
	return nil
}

// List returns paginated history entries for a connection, newest first
func (s *Store) List(ctx context.Context, connectionID string, limit, offset int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM query_history
		WHERE connection_id = ?
		ORDER BY executed_at DESC, id DESC
		LIMIT ? OFFSET ?`, connectionID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Search finds history entries whose SQL or prompt contains text
func (s *Store) Search(ctx context.Context, connectionID, text string, limit int) ([]Entry, error) {
	pattern := "%" + text + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM query_history
		WHERE connection_id = ? AND (sql LIKE ? OR prompt LIKE ?)
		ORDER BY executed_at DESC, id DESC
		LIMIT ?`, connectionID, pattern, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEntries(rows)
}

// scanEntries scans rows into an Entry slice
func scanEntries(rows *sql.Rows) ([]Entry, error) {
	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var kind string
		var prompt, errMsg sql.NullString
		if err := rows.Scan(&e.ID, &e.ConnectionID, &kind, &e.SQL, &prompt, &e.ExecutedAt,
			&e.DurationMs, &e.RowCount, &e.Status, &errMsg); err != nil {
			return nil, err
		}
		e.Kind = Kind(kind)
		e.Prompt = prompt.String
		e.ErrorMessage = errMsg.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Delete removes a history entry by ID
func (s *Store) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM query_history WHERE id = ?", id)
	return err
}

// Count returns the total number of history entries for a connection
func (s *Store) Count(ctx context.Context, connectionID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM query_history WHERE connection_id = ?`, connectionID).Scan(&count)
	return count, err
}

// cleanup removes entries older than the retention period
func (s *Store) cleanup(ctx context.Context) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM query_history WHERE executed_at < ?`, time.Now().Add(-s.retention).UTC())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.logger.Info("pruned query history", "entries", n)
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
