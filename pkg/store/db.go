// Package store implements the record-store engine: a pluggable key/value
// collection abstraction (KeyStore) backed concretely by an embedded SQL
// engine. Each store is a table of opaque key/meta/body rows with an
// optional monotonic sequence column, soft-delete support, key- and
// sequence-ordered enumeration, and JSON-tree query compilation including
// full-text search.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/cuemby/veyradb/pkg/dberr"
)

// DB wraps the shared SQL connection pool for one on-disk database file.
// SQLite allows only one writer at a time; callers serialize writes
// through the database facade's transaction discipline rather than
// through this type, which only owns the raw handle and pragmas.
type DB struct {
	sql  *sql.DB
	path string
}

// OpenOptions mirror the subset of config.Config relevant to opening the
// SQL backing file.
type OpenOptions struct {
	Create    bool
	Writeable bool
}

// Open opens (and optionally creates) the SQLite file at path, applying
// the pragmas the engine needs for a single-process, WAL-mode workload.
func Open(path string, opts OpenOptions) (*DB, *dberr.Error) {
	if !opts.Create {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, dberr.Newf(dberr.CantOpenFile, "database file %s does not exist", path)
		}
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, dberr.Wrap(dberr.CantOpenFile, err, "creating database directory")
		}
	}

	mode := "rwc"
	if !opts.Writeable {
		mode = "ro"
	}
	dsn := fmt.Sprintf("file:%s?mode=%s", path, mode)
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, dberr.Wrap(dberr.CantOpenFile, err, "opening sqlite database")
	}
	sqlDB.SetMaxOpenConns(1) // SQLite only supports a single writer; one conn avoids lock thrash

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := sqlDB.Exec(p); err != nil {
			sqlDB.Close()
			return nil, dberr.Wrap(dberr.CantOpenFile, err, "applying pragma "+p)
		}
	}

	db := &DB{sql: sqlDB, path: path}
	if derr := db.ensureMetaTable(); derr != nil {
		sqlDB.Close()
		return nil, derr
	}
	return db, nil
}

func (db *DB) ensureMetaTable() *dberr.Error {
	_, err := db.sql.Exec(`CREATE TABLE IF NOT EXISTS kvmeta (
		name TEXT PRIMARY KEY,
		lastSeq INTEGER NOT NULL DEFAULT 0
	)`)
	if err != nil {
		return dberr.Wrap(dberr.CantOpenFile, err, "creating kvmeta table")
	}
	return nil
}

// Close closes the underlying SQL connection pool.
func (db *DB) Close() error {
	return db.sql.Close()
}

// Path returns the database file path.
func (db *DB) Path() string { return db.path }

// Raw exposes the *sql.DB for the facade's transaction management and for
// packages that need direct SQL access.
func (db *DB) Raw() *sql.DB { return db.sql }
