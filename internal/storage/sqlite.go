package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var sqliteDialect = dialect{
	name:   "sqlite",
	driver: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS test_cases (
			id          INTEGER PRIMARY KEY,
			name        TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			priority    TEXT NOT NULL,
			automated   BOOLEAN NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS defects (
			id           INTEGER PRIMARY KEY,
			test_case_id INTEGER NOT NULL,
			title        TEXT NOT NULL,
			severity     TEXT NOT NULL,
			status       TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS test_runs (
			run_id       INTEGER PRIMARY KEY,
			test_case_id INTEGER NOT NULL,
			priority     INTEGER NOT NULL,
			submitted_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS run_results (
			run_id       INTEGER PRIMARY KEY,
			batch_id     TEXT NOT NULL,
			test_case_id INTEGER NOT NULL,
			priority     INTEGER NOT NULL,
			outcome      TEXT NOT NULL,
			passed       BOOLEAN NOT NULL,
			notes        TEXT NOT NULL DEFAULT '',
			executed_at  TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS history (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			entry      TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_defects_test_case ON defects(test_case_id)`,
		`CREATE TABLE IF NOT EXISTS record_ids (
			id INTEGER PRIMARY KEY
		)`,
		`INSERT OR IGNORE INTO record_ids (id) SELECT id FROM test_cases UNION SELECT id FROM defects`,
		`CREATE TABLE IF NOT EXISTS consumed_runs (
			run_id      INTEGER PRIMARY KEY,
			consumed_at TEXT NOT NULL
		)`,
	},
	isDuplicate: func(err error) bool {
		var se *sqlite.Error
		if !errors.As(err, &se) {
			return false
		}
		code := se.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	},
}

// OpenSQLite opens (creating if needed) the SQLite database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, unavailable("create store dir", err)
	}
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	return openSQL(ctx, sqliteDialect, dsn)
}
