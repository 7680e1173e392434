package store

import (
	"context"
	"fmt"
)

// migrations are applied in order; a migration never changes once released.
var migrations = []string{
	`CREATE TABLE connections (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL DEFAULT 'postgres',
		host TEXT NOT NULL DEFAULT '',
		port INTEGER NOT NULL DEFAULT 0,
		database_name TEXT NOT NULL,
		user TEXT NOT NULL DEFAULT '',
		password TEXT NOT NULL DEFAULT '',
		tunnel TEXT,
		status TEXT NOT NULL DEFAULT 'disconnected',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE metadata (
		connection_id TEXT PRIMARY KEY REFERENCES connections(id) ON DELETE CASCADE,
		data TEXT NOT NULL,
		extracted_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE query_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		connection_id TEXT NOT NULL REFERENCES connections(id) ON DELETE CASCADE,
		kind TEXT NOT NULL,
		sql TEXT NOT NULL,
		prompt TEXT,
		executed_at TIMESTAMP NOT NULL,
		duration_ms INTEGER NOT NULL,
		row_count INTEGER NOT NULL,
		status TEXT NOT NULL,
		error_message TEXT
	)`,
	`CREATE INDEX idx_history_connection ON query_history(connection_id)`,
	`CREATE INDEX idx_history_executed_at ON query_history(executed_at)`,
}

// migrate brings the schema up to date inside one transaction.
func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY)`); err != nil {
		return err
	}
	var current int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return err
	}
	if current >= len(migrations) {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for v := current + 1; v <= len(migrations); v++ {
		if _, err := tx.ExecContext(ctx, migrations[v-1]); err != nil {
			return fmt.Errorf("migration %d: %w", v, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, v); err != nil {
			return err
		}
	}
	s.logger.Info("store migrated", "from", current, "to", len(migrations))
	return tx.Commit()
}
