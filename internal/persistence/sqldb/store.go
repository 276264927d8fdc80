// Package sqldb persists tasks in a relational database. It speaks sqlite
// (the default single-file backend) and postgres through a small dialect
// layer; the schema is managed by embedded goose migrations.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Kohei-Wada/taskdog-sub001/internal/common/telemetry"
	"github.com/Kohei-Wada/taskdog-sub001/internal/core"
)

// writeLockName scopes the cross-process lock taken around write
// transactions.
const writeLockName = "taskdog:tasks:write"

var (
	insertTaskQuery = "INSERT INTO tasks (" + taskColumns + ") VALUES (" +
		placeholders(taskColumnCount) + ")"

	upsertTaskQuery = insertTaskQuery + ` ON CONFLICT (id) DO UPDATE SET
	name = excluded.name,
	status = excluded.status,
	priority = excluded.priority,
	tags = excluded.tags,
	estimated_duration = excluded.estimated_duration,
	deadline = excluded.deadline,
	planned_start = excluded.planned_start,
	planned_end = excluded.planned_end,
	is_fixed = excluded.is_fixed,
	actual_start = excluded.actual_start,
	actual_end = excluded.actual_end,
	actual_daily_hours = excluded.actual_daily_hours,
	daily_allocations = excluded.daily_allocations,
	depends_on = excluded.depends_on,
	parent_id = excluded.parent_id,
	archived = excluded.archived,
	created_at = excluded.created_at,
	updated_at = excluded.updated_at`
)

// Store is a task repository backed by a relational database.
type Store struct {
	db      *sql.DB
	dialect Dialect
	cleanup func() error
}

// Open connects to the configured database, applies pending migrations,
// and returns the ready store.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	dialect, ok := GetDialect(cfg.Driver)
	if !ok {
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
	db, cleanup, err := dialect.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := dialect.Migrate(ctx, db); err != nil {
		_ = db.Close()
		if cleanup != nil {
			_ = cleanup()
		}
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Store{db: db, dialect: dialect, cleanup: cleanup}, nil
}

// Close releases the database handle and any locks held alongside it.
func (s *Store) Close() error {
	err := s.db.Close()
	if s.cleanup != nil {
		if cerr := s.cleanup(); err == nil {
			err = cerr
		}
	}
	return err
}

// GetAll loads every stored task ordered by id.
func (s *Store) GetAll(ctx context.Context) ([]*core.Task, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+taskColumns+" FROM tasks ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*core.Task
	for rows.Next() {
		var rec taskRecord
		if err := rec.scanFrom(rows); err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		t, err := rec.task()
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate task rows: %w", err)
	}
	return tasks, nil
}

// GetByID loads a single task by id.
func (s *Store) GetByID(ctx context.Context, id int) (*core.Task, error) {
	query := s.dialect.Rebind("SELECT " + taskColumns + " FROM tasks WHERE id = ?")
	var rec taskRecord
	if err := rec.scanFrom(s.db.QueryRowContext(ctx, query, id)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.NewNotFoundError(id)
		}
		return nil, fmt.Errorf("failed to load task %d: %w", id, err)
	}
	return rec.task()
}

// SaveAll writes the given tasks in one transaction, inserting missing
// rows and updating existing ones.
func (s *Store) SaveAll(ctx context.Context, tasks []*core.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	ctx, span := telemetry.Start(ctx, "TaskStore: SaveAll", trace.WithAttributes(
		attribute.String("db.driver", s.dialect.Name()),
		attribute.Int("db.tasks", len(tasks)),
	))
	defer span.End()

	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, s.dialect.Rebind(upsertTaskQuery))
		if err != nil {
			return fmt.Errorf("failed to prepare task upsert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, t := range tasks {
			if _, err := stmt.ExecContext(ctx, storeArgs(t)...); err != nil {
				return fmt.Errorf("failed to save task %d: %w", t.ID, err)
			}
		}
		return nil
	})
}

// Create inserts a new task. A zero id is assigned the next free id, and
// the task is updated in place.
func (s *Store) Create(ctx context.Context, t *core.Task) error {
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		if t.ID == 0 {
			id, err := nextID(ctx, tx)
			if err != nil {
				return err
			}
			t.ID = id
		}
		query := s.dialect.Rebind(insertTaskQuery)
		if _, err := tx.ExecContext(ctx, query, storeArgs(t)...); err != nil {
			return fmt.Errorf("failed to create task %d: %w", t.ID, err)
		}
		return nil
	})
}

// Delete removes a task row.
func (s *Store) Delete(ctx context.Context, id int) error {
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		query := s.dialect.Rebind("DELETE FROM tasks WHERE id = ?")
		res, err := tx.ExecContext(ctx, query, id)
		if err != nil {
			return fmt.Errorf("failed to delete task %d: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to delete task %d: %w", id, err)
		}
		if n == 0 {
			return core.NewNotFoundError(id)
		}
		return nil
	})
}

// NextID returns the id the next created task will receive.
func (s *Store) NextID(ctx context.Context) (int, error) {
	return nextID(ctx, s.db)
}

// withWriteTx runs fn inside a write transaction, holding the dialect's
// cross-process lock for the duration.
func (s *Store) withWriteTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	release, err := s.dialect.Lock(ctx, s.db, writeLockName)
	if err != nil {
		return err
	}
	defer func() { _ = release() }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func nextID(ctx context.Context, q querier) (int, error) {
	var id int
	if err := q.QueryRowContext(ctx, "SELECT COALESCE(MAX(id), 0) + 1 FROM tasks").Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to compute next task id: %w", err)
	}
	return id, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
