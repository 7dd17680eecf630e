package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore is a PostgreSQL-backed task store.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PgStore on an existing connection pool.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// EnsureSchema creates the tasks table and its indexes if they don't exist.
func (s *PgStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tasks (
			id              TEXT PRIMARY KEY,
			title           TEXT NOT NULL,
			description     TEXT NOT NULL DEFAULT '',
			status          TEXT NOT NULL,
			priority        TEXT NOT NULL DEFAULT 'medium',
			due_date        TIMESTAMPTZ,
			assigned_to     TEXT NOT NULL DEFAULT '',
			estimated_hours DOUBLE PRECISION,
			actual_hours    DOUBLE PRECISION,
			tags            TEXT[] NOT NULL DEFAULT '{}',
			dependency_ids  TEXT[] NOT NULL DEFAULT '{}',
			created_at      TIMESTAMPTZ NOT NULL,
			updated_at      TIMESTAMPTZ NOT NULL,
			completed_at    TIMESTAMPTZ
		)`)
	if err != nil {
		return fmt.Errorf("create tasks table: %w", err)
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_tasks_deps ON tasks USING GIN (dependency_ids)`)
	return err
}

// Close releases the connection pool.
func (s *PgStore) Close() error {
	s.pool.Close()
	return nil
}

const pgColumns = `id, title, description, status, priority, due_date, assigned_to,
	estimated_hours, actual_hours, tags, dependency_ids, created_at, updated_at, completed_at`

// Create persists a new task and sets its ID, CreatedAt, and UpdatedAt.
func (s *PgStore) Create(ctx context.Context, t *Task) (string, error) {
	t.ID = uuid.NewString()
	now := time.Now().UTC().Truncate(time.Microsecond)
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO tasks (`+pgColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		t.ID, t.Title, t.Description, string(t.Status), string(t.Priority),
		t.DueDate, t.Assignee, t.EstimatedHours, t.ActualHours,
		emptySlice(t.Tags), emptySlice(t.DependencyIDs),
		t.CreatedAt, t.UpdatedAt, t.CompletedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert task: %w", err)
	}
	return t.ID, nil
}

// Get retrieves a task by ID.
func (s *PgStore) Get(ctx context.Context, id string) (*Task, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pgColumns+` FROM tasks WHERE id = $1`, id)
	t, err := scanPgTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return t, err
}

// Put saves changes to an existing task.
func (s *PgStore) Put(ctx context.Context, t *Task) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE tasks SET
			title=$1, description=$2, status=$3, priority=$4, due_date=$5, assigned_to=$6,
			estimated_hours=$7, actual_hours=$8, tags=$9, dependency_ids=$10,
			updated_at=$11, completed_at=$12
		WHERE id=$13`,
		t.Title, t.Description, string(t.Status), string(t.Priority),
		t.DueDate, t.Assignee, t.EstimatedHours, t.ActualHours,
		emptySlice(t.Tags), emptySlice(t.DependencyIDs),
		t.UpdatedAt, t.CompletedAt, t.ID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("task %s: %w", t.ID, ErrNotFound)
	}
	return nil
}

// Delete removes a task by ID.
func (s *PgStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return nil
}

// List returns tasks matching the filter.
func (s *PgStore) List(ctx context.Context, f Filter) ([]*Task, error) {
	where, args := buildPgWhere(f, time.Now().UTC())
	q := `SELECT ` + pgColumns + ` FROM tasks` + where + pgOrderClause(f)
	n := len(args)
	if f.Limit > 0 {
		q += fmt.Sprintf(" LIMIT $%d", n+1)
		args = append(args, f.Limit)
		n++
	}
	if f.Offset > 0 {
		q += fmt.Sprintf(" OFFSET $%d", n+1)
		args = append(args, f.Offset)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanPgTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Count returns the number of tasks matching the filter.
func (s *PgStore) Count(ctx context.Context, f Filter) (int, error) {
	where, args := buildPgWhere(f, time.Now().UTC())
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tasks`+where, args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return n, nil
}

func buildPgWhere(f Filter, now time.Time) (string, []any) {
	var conds []string
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Status != nil {
		conds = append(conds, "status = "+arg(string(*f.Status)))
	}
	if f.Priority != nil {
		conds = append(conds, "priority = "+arg(string(*f.Priority)))
	}
	if f.Assignee != "" {
		conds = append(conds, "assigned_to = "+arg(f.Assignee))
	}
	if len(f.Tags) > 0 {
		conds = append(conds, "tags && "+arg(f.Tags))
	}
	if f.DependsOn != "" {
		conds = append(conds, arg(f.DependsOn)+" = ANY(dependency_ids)")
	}
	if f.Overdue != nil {
		cond := "(due_date IS NOT NULL AND due_date < " + arg(now) +
			" AND status NOT IN ('completed','cancelled'))"
		if !*f.Overdue {
			cond = "NOT " + cond
		}
		conds = append(conds, cond)
	}
	if f.Search != "" {
		pat := arg("%" + f.Search + "%")
		conds = append(conds, "(title ILIKE "+pat+" OR description ILIKE "+pat+" OR assigned_to ILIKE "+pat+")")
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func pgOrderClause(f Filter) string {
	col, ok := map[string]string{
		"title":       "title",
		"status":      "status",
		"priority":    priorityRank,
		"assigned_to": "assigned_to",
		"due_date":    "due_date",
		"created_at":  "created_at",
		"updated_at":  "updated_at",
	}[f.SortBy]
	if !ok {
		return " ORDER BY " + priorityRank + " DESC, created_at ASC"
	}
	dir := " ASC"
	if f.SortDesc {
		dir = " DESC"
	}
	return " ORDER BY " + col + dir + ", created_at ASC"
}

type pgScanner interface {
	Scan(dest ...any) error
}

func scanPgTask(row pgScanner) (*Task, error) {
	var t Task
	var status, priority string
	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &status, &priority,
		&t.DueDate, &t.Assignee, &t.EstimatedHours, &t.ActualHours,
		&t.Tags, &t.DependencyIDs,
		&t.CreatedAt, &t.UpdatedAt, &t.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Status = Status(status)
	t.Priority = Priority(priority)
	return &t, nil
}
