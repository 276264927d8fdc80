package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteDialect implements Dialect on modernc.org/sqlite. The pool is kept
// at a single connection so writes serialize in-process, and file-backed
// databases can additionally be guarded by a file lock so only one process
// owns them at a time.
type SQLiteDialect struct {
	mu    sync.Mutex
	locks map[string]*flock.Flock
}

func init() {
	RegisterDialect(&SQLiteDialect{locks: make(map[string]*flock.Flock)})
}

// Name returns the dialect name.
func (d *SQLiteDialect) Name() string {
	return "sqlite"
}

// Open opens the sqlite database, creating the file when missing.
func (d *SQLiteDialect) Open(ctx context.Context, cfg Config) (*sql.DB, func() error, error) {
	db, err := sql.Open("sqlite", buildSQLiteDSN(cfg.DSN))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// One connection keeps immediate transactions from tripping over each
	// other and gives :memory: databases a stable backing store.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to connect to sqlite database: %w", err)
	}

	if cfg.FileLock && !isMemoryDB(cfg.DSN) {
		release, err := d.acquireFileLock(extractDBPath(cfg.DSN))
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return db, release, nil
	}
	return db, nil, nil
}

// Migrate applies the sqlite schema migrations.
func (d *SQLiteDialect) Migrate(ctx context.Context, db *sql.DB) error {
	return runMigrations(ctx, db, "sqlite3", "migrations/sqlite")
}

// Rebind is a no-op: sqlite consumes ?-style placeholders natively.
func (d *SQLiteDialect) Rebind(query string) string {
	return query
}

// Lock is a no-op. File locking at Open plus immediate write transactions
// already serialize sqlite writers.
func (d *SQLiteDialect) Lock(_ context.Context, _ *sql.DB, _ string) (func() error, error) {
	return func() error { return nil }, nil
}

func (d *SQLiteDialect) acquireFileLock(dbPath string) (func() error, error) {
	lockPath := dbPath + ".lock"

	d.mu.Lock()
	if _, held := d.locks[lockPath]; held {
		d.mu.Unlock()
		return nil, fmt.Errorf("database %s is already locked by this process", dbPath)
	}
	fl := flock.New(lockPath)
	d.locks[lockPath] = fl
	d.mu.Unlock()

	drop := func() {
		d.mu.Lock()
		delete(d.locks, lockPath)
		d.mu.Unlock()
	}

	locked, err := fl.TryLock()
	if err != nil {
		drop()
		return nil, fmt.Errorf("failed to acquire file lock on %s: %w", lockPath, err)
	}
	if !locked {
		drop()
		return nil, fmt.Errorf("database %s is locked by another process", dbPath)
	}

	release := func() error {
		drop()
		if err := fl.Unlock(); err != nil {
			return fmt.Errorf("failed to release file lock on %s: %w", lockPath, err)
		}
		return nil
	}
	return release, nil
}

// buildSQLiteDSN appends the connection parameters every taskdog database
// uses: immediate write transactions, a generous busy timeout, and WAL.
func buildSQLiteDSN(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_txlock=immediate" +
		"&_pragma=busy_timeout(10000)" +
		"&_pragma=journal_mode(WAL)"
}

// isMemoryDB reports whether the DSN points at an in-memory database.
func isMemoryDB(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// extractDBPath strips the file: prefix and query parameters off a DSN.
func extractDBPath(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return path
}
