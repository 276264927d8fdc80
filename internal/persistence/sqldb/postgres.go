package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
)

// PostgresDialect implements Dialect on the pgx stdlib driver.
type PostgresDialect struct{}

func init() {
	RegisterDialect(&PostgresDialect{})
}

// Name returns the dialect name.
func (d *PostgresDialect) Name() string {
	return "postgres"
}

// Open establishes a connection pool to PostgreSQL.
func (d *PostgresDialect) Open(ctx context.Context, cfg Config) (*sql.DB, func() error, error) {
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return db, nil, nil
}

// Migrate applies the postgres schema migrations.
func (d *PostgresDialect) Migrate(ctx context.Context, db *sql.DB) error {
	return runMigrations(ctx, db, "postgres", "migrations/postgres")
}

// Rebind converts ?-style placeholders to postgres positional format.
func (d *PostgresDialect) Rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Lock acquires a named advisory lock so server processes sharing one
// database serialize their writes.
func (d *PostgresDialect) Lock(ctx context.Context, db *sql.DB, name string) (func() error, error) {
	// Convert the lock name to a 64-bit integer using FNV hash
	h := fnv.New64a()
	h.Write([]byte(name))
	lockID := int64(h.Sum64())

	// Advisory locks are session-scoped: pin one connection so acquire
	// and release happen on the same session.
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve connection for advisory lock: %w", err)
	}

	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock($1)", lockID); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to acquire advisory lock %q: %w", name, err)
	}

	release := func() error {
		defer func() { _ = conn.Close() }()
		if _, err := conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", lockID); err != nil {
			return fmt.Errorf("failed to release advisory lock %q: %w", name, err)
		}
		return nil
	}
	return release, nil
}
