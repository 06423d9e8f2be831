package storage

import (
	"context"
	"fmt"
	"log/slog"
)

// migrations run in order; each entry is one schema version.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS categories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		type TEXT NOT NULL DEFAULT 'spending',
		budget REAL NOT NULL DEFAULT 0,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		date TIMESTAMP NOT NULL,
		name TEXT NOT NULL,
		purpose TEXT NOT NULL DEFAULT '',
		amount REAL NOT NULL,
		currency TEXT NOT NULL DEFAULT 'EUR',
		category_id INTEGER REFERENCES categories(id),
		predicted_category_id INTEGER REFERENCES categories(id),
		confidence REAL,
		is_reviewed INTEGER NOT NULL DEFAULT 0,
		imported_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		import_batch TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_reviewed ON transactions(is_reviewed)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_category ON transactions(category_id)`,
	`CREATE TABLE IF NOT EXISTS merchant_stats (
		merchant TEXT PRIMARY KEY,
		seen_count INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS review_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		transaction_id TEXT NOT NULL,
		confidence REAL NOT NULL,
		was_corrected INTEGER NOT NULL,
		reviewed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_review_log_reviewed_at ON review_log(reviewed_at)`,
	`CREATE TABLE IF NOT EXISTS merchant_mappings (
		merchant_pattern TEXT PRIMARY KEY,
		category_id INTEGER NOT NULL REFERENCES categories(id),
		confidence REAL NOT NULL,
		occurrence_count INTEGER NOT NULL DEFAULT 1,
		last_seen TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
}

// Migrate applies all schema migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	for i, migration := range migrations {
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	slog.Debug("migrations applied", "count", len(migrations))
	return nil
}
