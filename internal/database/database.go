package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Options selects the sqlite driver and file. Driver "sqlite3" is the cgo
// driver (SQLCipher capable), "sqlite" the pure-Go one.
type Options struct {
	Driver        string
	Path          string
	EncryptionKey string
	// Migrate allows upgrading an existing database to the current schema.
	// A fresh database is always initialized.
	Migrate bool
}

func Initialize(opts Options) (*sql.DB, error) {
	if opts.Driver == "" {
		opts.Driver = "sqlite3"
	}

	if opts.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(opts.Driver, opts.Path)
	if err != nil {
		return nil, err
	}

	// One connection: keeps :memory: databases coherent and serializes writers.
	db.SetMaxOpenConns(1)

	// If an encryption key is provided, apply it immediately after opening.
	// This requires the sqlite3 driver linked against SQLCipher.
	if opts.EncryptionKey != "" {
		if opts.Driver != "sqlite3" {
			db.Close()
			return nil, fmt.Errorf("database encryption requires the sqlite3 driver, got %q", opts.Driver)
		}
		esc := strings.ReplaceAll(opts.EncryptionKey, "'", "''")
		if _, err := db.Exec(fmt.Sprintf("PRAGMA key = '%s';", esc)); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set database encryption key: %w", err)
		}
		_, _ = db.Exec("PRAGMA cipher_compatibility = 4;")
		// A wrong key or a non-database file fails here.
		var count int
		if err := db.QueryRow("SELECT count(*) FROM sqlite_master;").Scan(&count); err != nil {
			db.Close()
			return nil, fmt.Errorf("database inaccessible with provided encryption key: %w", err)
		}
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}

	if err := migrate(db, opts.Migrate); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// SchemaVersion returns the schema version recorded in PRAGMA user_version.
func SchemaVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("read user_version: %w", err)
	}
	return version, nil
}
