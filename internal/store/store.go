// Package store is the embedded relational store: a single-file
// SQLite database reached through sqlx, with forward-only embedded
// migrations applied at startup via golang-migrate. One repository
// file per aggregate.
package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// ErrSchemaAhead is returned when the on-disk database's schema
// version is newer than any migration this binary knows about;
// running an older binary against a newer data directory is refused
// rather than silently operating on an unrecognized schema. It is
// also returned when the migration bookkeeping is left dirty by an
// earlier failed migration.
var ErrSchemaAhead = errors.New("store: database schema is ahead of this binary's migrations")

// Store wraps the SQLite connection and exposes one repository per
// aggregate.
type Store struct {
	db  *sqlx.DB
	log *zap.Logger
}

// Open connects to the SQLite database at path (created if absent),
// applies any pending migrations, and returns a ready Store.
func Open(path string, log *zap.Logger) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", path)
	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // mattn/go-sqlite3 serializes writers anyway; avoid SQLITE_BUSY churn.

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database %s: %w", path, err)
	}

	if err := migrateUp(db, log); err != nil {
		db.Close()
		return nil, err
	}

	log.Info("store opened", zap.String("path", path))
	return &Store{db: db, log: log}, nil
}

// schemaVersion is the highest migration this binary embeds. A
// database recorded past it was written by a newer binary; refuse to
// touch it.
const schemaVersion = 2

func migrateUp(db *sqlx.DB, log *zap.Logger) error {
	driver, err := sqlite3.WithInstance(db.DB, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to build migration driver: %w", err)
	}

	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "bdcore", driver)
	if err != nil {
		return fmt.Errorf("failed to construct migrator: %w", err)
	}

	if version, _, err := m.Version(); err == nil && version > schemaVersion {
		return fmt.Errorf("%w: database at version %d, binary supports up to %d",
			ErrSchemaAhead, version, schemaVersion)
	} else if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Debug("no pending migrations")
			return nil
		}
		if isDirtyVersionError(err) {
			return fmt.Errorf("%w: %v", ErrSchemaAhead, err)
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	log.Info("migrations applied")
	return nil
}

func isDirtyVersionError(err error) bool {
	var dirty migrate.ErrDirty
	return errors.As(err, &dirty)
}

// DB exposes the underlying *sqlx.DB for components (e.g. Vacuum,
// Stats, backup) that need raw access.
func (s *Store) DB() *sqlx.DB { return s.db }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Tx is a handle for an in-flight transaction, returned by BeginTx and
// passed back to Commit/Rollback. Repositories accept it as an
// optional execer so callers can batch several writes atomically.
type Tx struct {
	tx *sqlx.Tx
}

// BeginTx starts a new transaction.
func (s *Store) BeginTx() (*Tx, error) {
	tx, err := s.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// Commit commits the transaction.
func (t *Tx) Commit() error { return t.tx.Commit() }

// Rollback rolls back the transaction. Calling Rollback after a
// successful Commit is a safe no-op (sql.ErrTxDone is swallowed).
func (t *Tx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

// execer is satisfied by both *sqlx.DB and *sqlx.Tx, letting
// repository methods run either standalone or inside a caller's
// transaction.
type execer interface {
	sqlx.Ext
	Get(dest interface{}, query string, args ...interface{}) error
	Select(dest interface{}, query string, args ...interface{}) error
}

func (s *Store) execer(tx *Tx) execer {
	if tx != nil {
		return tx.tx
	}
	return s.db
}

// namedExec runs a named-parameter statement against either a bare DB
// or an in-flight Tx, via sqlx's Ext-based NamedExec helper.
func namedExec(e execer, query string, arg interface{}) (sql.Result, error) {
	return sqlx.NamedExec(e, query, arg)
}
