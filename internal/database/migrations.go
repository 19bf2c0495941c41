package database

import (
	"database/sql"
	"fmt"
)

// CurrentVersion is the schema version written by this build.
const CurrentVersion = 2

// ErrMigrationRequired is returned when an existing database is older than
// CurrentVersion and upgrading was not requested.
type ErrMigrationRequired struct {
	Have, Want int
}

func (e ErrMigrationRequired) Error() string {
	return fmt.Sprintf("database schema version %d is older than %d: run `neurodash migrate` or set NEURODASH_RUN_MIGRATIONS=true", e.Have, e.Want)
}

func migrate(db *sql.DB, allowUpgrade bool) error {
	version, err := SchemaVersion(db)
	if err != nil {
		return err
	}
	if version >= CurrentVersion {
		return nil
	}
	// Upgrades of existing data are opt-in; a fresh database is always set up.
	if version > 0 && !allowUpgrade {
		return ErrMigrationRequired{Have: version, Want: CurrentVersion}
	}

	if version < 1 {
		if err := migrateV1(db); err != nil {
			return err
		}
	}
	if version < 2 {
		if err := migrateV2(db); err != nil {
			return err
		}
	}

	_, err = db.Exec(fmt.Sprintf("PRAGMA user_version = %d", CurrentVersion))
	return err
}

func migrateV1(db *sql.DB) error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Every feature collection (events, tasks, routines, ...) is a set of JSON
	-- documents namespaced by owner and collection name.
	CREATE TABLE IF NOT EXISTS documents (
		user_id INTEGER NOT NULL,
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		data TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (user_id, collection, id),
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS push_subscriptions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		endpoint TEXT NOT NULL,
		p256dh TEXT NOT NULL,
		auth TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(user_id, endpoint),
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	-- Server-side refresh token store for rotating refresh tokens
	CREATE TABLE IF NOT EXISTS refresh_tokens (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		token_hash TEXT NOT NULL UNIQUE,
		expires_at DATETIME NOT NULL,
		ttl_days INTEGER NOT NULL DEFAULT 7,
		revoked BOOLEAN DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_documents_created ON documents(user_id, collection, created_at);
	CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user_id ON refresh_tokens(user_id);
	`
	_, err := db.Exec(ddl)
	return err
}

// migrateV2 adds the profile display name (idempotent).
func migrateV2(db *sql.DB) error {
	exists, err := columnExists(db, "users", "display_name")
	if err != nil {
		return err
	}
	if !exists {
		if _, err := db.Exec("ALTER TABLE users ADD COLUMN display_name TEXT NOT NULL DEFAULT ''"); err != nil {
			return err
		}
	}
	return nil
}

// columnExists checks if a column exists on a given table (SQLite PRAGMA table_info)
func columnExists(db *sql.DB, table string, column string) (bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	var cid int
	var name string
	var ctype string
	var notnull int
	var dflt sql.NullString
	var pk int

	found := false
	for rows.Next() {
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			found = true
		}
	}
	return found, rows.Err()
}
