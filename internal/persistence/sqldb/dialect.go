package sqldb

import (
	"context"
	"database/sql"
)

// Config selects and parameterizes the database backend.
type Config struct {
	// Driver is the dialect identifier ("sqlite" or "postgres").
	Driver string

	// DSN is the driver-specific data source name. For sqlite this is a
	// file path or ":memory:"; for postgres a connection URL.
	DSN string

	// FileLock guards file-backed sqlite databases against concurrent
	// processes. Ignored by other dialects and by memory databases.
	FileLock bool
}

// Dialect abstracts the differences between supported database engines.
type Dialect interface {
	// Name returns the dialect identifier (e.g., "postgres", "sqlite")
	Name() string

	// Open establishes the database handle. The returned cleanup function
	// releases resources held alongside the connection (file locks) and
	// may be nil.
	Open(ctx context.Context, cfg Config) (*sql.DB, func() error, error)

	// Migrate brings the schema up to date.
	Migrate(ctx context.Context, db *sql.DB) error

	// Rebind converts ?-style placeholders to the dialect's native format.
	Rebind(query string) string

	// Lock acquires a named cross-process write lock where the engine
	// supports one. Returns a release function.
	Lock(ctx context.Context, db *sql.DB, name string) (func() error, error)
}

// DialectRegistry holds registered database dialects.
type DialectRegistry struct {
	dialects map[string]Dialect
}

// NewDialectRegistry creates a new dialect registry.
func NewDialectRegistry() *DialectRegistry {
	return &DialectRegistry{
		dialects: make(map[string]Dialect),
	}
}

// Register adds a dialect to the registry.
func (r *DialectRegistry) Register(d Dialect) {
	r.dialects[d.Name()] = d
}

// Get retrieves a dialect by name.
func (r *DialectRegistry) Get(name string) (Dialect, bool) {
	d, ok := r.dialects[name]
	return d, ok
}

// globalRegistry is the default dialect registry.
var globalRegistry = NewDialectRegistry()

// RegisterDialect registers a dialect in the global registry.
func RegisterDialect(d Dialect) {
	globalRegistry.Register(d)
}

// GetDialect retrieves a dialect from the global registry.
func GetDialect(name string) (Dialect, bool) {
	return globalRegistry.Get(name)
}
