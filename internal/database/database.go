package database

import (
	"database/sql"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver
)

// New creates a new SQLite connection pool. Foreign keys and a busy timeout
// are enabled on every pooled connection through the DSN.
func New(dataSourceName string) (*sql.DB, error) {
	sep := "?"
	if strings.Contains(dataSourceName, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite", dataSourceName+sep+"_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	if strings.Contains(dataSourceName, "mode=memory") {
		// Every pooled connection must see the same in-memory database.
		db.SetMaxOpenConns(1)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	// journal_mode is not supported for in-memory databases; ignore errors.
	_, _ = db.Exec(`PRAGMA journal_mode=WAL`)
	return db, nil
}

// Migrate runs the SQL statements to set up the database schema.
func Migrate(db *sql.DB) error {
	const sqlStmt = `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT NOT NULL PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'user',
		xp INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL -- unix milliseconds
	);

	CREATE TABLE IF NOT EXISTS rocks (
		id TEXT NOT NULL PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		type TEXT,
		description TEXT,
		rarity TEXT,
		rarity_score INTEGER NOT NULL DEFAULT 1,
		-- Store the composition list as JSON text
		composition_json TEXT,
		hardness REAL,
		confidence REAL,
		image_url TEXT,
		origin TEXT NOT NULL DEFAULT 'scan',
		xp_awarded INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL -- unix milliseconds
	);

	CREATE INDEX IF NOT EXISTS idx_rocks_user_created ON rocks(user_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_rocks_created ON rocks(created_at);
	`
	_, err := db.Exec(sqlStmt)
	return err
}
