// Package sqlite stores the derivative index in a SQLite database.
package sqlite

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/zjrosen/smripost/internal/index/domain"
	"github.com/zjrosen/smripost/internal/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const pragmas = "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(wal)"

// DB owns the index database connection.
type DB struct {
	conn *sql.DB
}

// NewDB opens (creating if needed) the database at path and applies any
// pending migrations. An existing database is backed up to path+".bak"
// first, including changes still held in its write-ahead log.
func NewDB(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	info, statErr := os.Stat(path)
	existing := statErr == nil && info.Size() > 0

	log.Debug(log.CatDB, "Opening index database", "path", path)
	conn, err := sql.Open("sqlite3", "file:"+path+pragmas)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if existing {
		if err := backup(conn, path+".bak"); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}

	if err := migrate(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}

	log.Info(log.CatDB, "Index database ready", "path", path)
	return &DB{conn: conn}, nil
}

// Close folds the write-ahead log into the database file and closes the
// connection.
func (db *DB) Close() error {
	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		log.Warn(log.CatDB, "WAL checkpoint failed", "error", err)
	}
	return db.conn.Close()
}

// FileRepository returns the index repository backed by this database.
func (db *DB) FileRepository() domain.Repository {
	return newFileRepository(db.conn)
}

// backup writes a consistent copy of the open database to dst. VACUUM INTO
// reads through the connection, so pages still in the -wal file are kept.
func backup(conn *sql.DB, dst string) error {
	if err := os.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove old database backup: %w", err)
	}
	if _, err := conn.Exec("VACUUM INTO ?", dst); err != nil {
		return fmt.Errorf("failed to write database backup: %w", err)
	}
	return nil
}

// migrate applies every embedded up migration newer than the recorded
// schema version, each inside its own transaction.
func migrate(conn *sql.DB) error {
	if _, err := conn.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at INTEGER NOT NULL
	)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	var current uint
	if err := conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	defer func() { _ = src.Close() }()

	version, err := src.First()
	for err == nil {
		if version > current {
			if applyErr := apply(conn, src, version); applyErr != nil {
				return applyErr
			}
		}
		version, err = src.Next(version)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to list migrations: %w", err)
	}
	return nil
}

func apply(conn *sql.DB, src source.Driver, version uint) error {
	body, name, err := src.ReadUp(version)
	if err != nil {
		return fmt.Errorf("failed to read migration %d: %w", version, err)
	}
	stmts, err := io.ReadAll(body)
	_ = body.Close()
	if err != nil {
		return fmt.Errorf("failed to read migration %d: %w", version, err)
	}

	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin migration %d: %w", version, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(string(stmts)); err != nil {
		return fmt.Errorf("failed to apply migration %d (%s): %w", version, name, err)
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
		version, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to record migration %d: %w", version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", version, err)
	}

	log.Info(log.CatDB, "Applied migration", "version", version, "name", name)
	return nil
}
