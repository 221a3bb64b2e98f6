// Package state manages ybox's single state database: one SQLite file
// tracking every container, installed package, dependency edge, and
// repository, shared across all ybox binaries on the host.
package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/ybox-project/ybox/pkg/lock"
	"github.com/ybox-project/ybox/pkg/ybox"
)

// Store is the single entry point onto the state database. All mutating
// operations take the state-DB lock before touching SQLite, per the
// lock ordering state-DB -> shared-root -> engine.
type Store struct {
	db   *sql.DB
	lock *lock.FileLock
}

// Open connects to the SQLite database at dbPath, migrating it to the
// bundled schema version if needed, and returns a Store guarded by a
// file lock at lockPath.
func Open(dbPath, lockPath string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, ybox.NewError(ybox.KindSchema, dbPath, err)
	}
	db.SetMaxOpenConns(1) // single-writer discipline; concurrency is via the file lock, not SQLite's busy handler

	s := &Store{db: db, lock: lock.New(lockPath)}

	if err := s.lock.AcquireTimeout(30*time.Second, lock.Exclusive); err != nil {
		db.Close()
		return nil, err
	}
	defer s.lock.Release()

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// WithLock acquires the state-DB exclusive lock, runs fn, and releases
// the lock regardless of fn's outcome. Callers performing a sequence of
// operations that must be seen atomically by other ybox processes
// (e.g. record_package followed by dependency inserts) should wrap the
// whole sequence in one WithLock call rather than locking per statement.
func (s *Store) WithLock(ctx context.Context, fn func(*sql.Tx) error) error {
	if err := s.lock.Acquire(ctx, lock.Exclusive); err != nil {
		return err
	}
	defer s.lock.Release()

	tx, err := s.db.Begin()
	if err != nil {
		return ybox.NewError(ybox.KindSchema, "", err)
	}
	defer tx.Rollback()

	// Deferred so a container rename (tombstone creation) can update the
	// parent row before its children are repointed, without the foreign
	// key check tripping mid-transaction.
	if _, err := tx.Exec(`PRAGMA defer_foreign_keys = ON`); err != nil {
		return ybox.NewError(ybox.KindSchema, "", err)
	}

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// WithReadLock acquires the state-DB shared lock for a read-only query.
func (s *Store) WithReadLock(ctx context.Context, fn func(*sql.DB) error) error {
	if err := s.lock.Acquire(ctx, lock.Shared); err != nil {
		return err
	}
	defer s.lock.Release()
	return fn(s.db)
}

// SchemaVersion reports the current schema version of the open database.
func (s *Store) SchemaVersion() (string, error) {
	v, err := readSchemaVersion(s.db)
	if err != nil {
		return "", ybox.NewError(ybox.KindSchema, "", err)
	}
	return v, nil
}
