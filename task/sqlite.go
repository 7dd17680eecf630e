package task

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id              TEXT PRIMARY KEY,
	title           TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL,
	priority        TEXT NOT NULL DEFAULT 'medium',
	due_date        DATETIME,
	assigned_to     TEXT NOT NULL DEFAULT '',
	estimated_hours REAL,
	actual_hours    REAL,
	tags            TEXT NOT NULL DEFAULT '[]',
	dependency_ids  TEXT NOT NULL DEFAULT '[]',
	created_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL,
	completed_at    DATETIME
);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_tasks_assigned_to ON tasks(assigned_to);
`

// priorityRank orders the priority enum for sorting, low to critical.
const priorityRank = `CASE priority WHEN 'critical' THEN 3 WHEN 'high' THEN 2 WHEN 'medium' THEN 1 ELSE 0 END`

// SQLiteStore persists tasks in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the tasks table exists. The caller is responsible for calling Close.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1) // single writer; doubles as the per-task RMW unit
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Create persists a new task and sets its ID, CreatedAt, and UpdatedAt.
func (s *SQLiteStore) Create(ctx context.Context, t *Task) (string, error) {
	t.ID = uuid.NewString()
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	tags, _ := json.Marshal(emptySlice(t.Tags))
	deps, _ := json.Marshal(emptySlice(t.DependencyIDs))

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks
			(id, title, description, status, priority, due_date, assigned_to,
			 estimated_hours, actual_hours, tags, dependency_ids,
			 created_at, updated_at, completed_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Title, t.Description, string(t.Status), string(t.Priority),
		nullTime(t.DueDate), t.Assignee,
		nullFloat(t.EstimatedHours), nullFloat(t.ActualHours),
		string(tags), string(deps),
		t.CreatedAt, t.UpdatedAt, nullTime(t.CompletedAt),
	)
	if err != nil {
		return "", fmt.Errorf("insert task: %w", err)
	}
	return t.ID, nil
}

// Get retrieves a task by ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT * FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return t, err
}

// Put saves changes to an existing task. Timestamps are persisted as given;
// the engine owns the updated_at bump.
func (s *SQLiteStore) Put(ctx context.Context, t *Task) error {
	tags, _ := json.Marshal(emptySlice(t.Tags))
	deps, _ := json.Marshal(emptySlice(t.DependencyIDs))

	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET
			title=?, description=?, status=?, priority=?, due_date=?, assigned_to=?,
			estimated_hours=?, actual_hours=?, tags=?, dependency_ids=?,
			updated_at=?, completed_at=?
		WHERE id=?`,
		t.Title, t.Description, string(t.Status), string(t.Priority),
		nullTime(t.DueDate), t.Assignee,
		nullFloat(t.EstimatedHours), nullFloat(t.ActualHours),
		string(tags), string(deps),
		t.UpdatedAt, nullTime(t.CompletedAt),
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("task %s: %w", t.ID, ErrNotFound)
	}
	return nil
}

// Delete removes a task by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id=?", id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return nil
}

// List returns tasks matching the filter.
func (s *SQLiteStore) List(ctx context.Context, f Filter) ([]*Task, error) {
	q := strings.Builder{}
	q.WriteString("SELECT * FROM tasks")
	where, args := buildWhere(f, time.Now().UTC())
	q.WriteString(where)
	q.WriteString(orderClause(f))
	if f.Limit > 0 {
		q.WriteString(fmt.Sprintf(" LIMIT %d", f.Limit))
		if f.Offset > 0 {
			q.WriteString(fmt.Sprintf(" OFFSET %d", f.Offset))
		}
	} else if f.Offset > 0 {
		q.WriteString(fmt.Sprintf(" LIMIT -1 OFFSET %d", f.Offset))
	}

	rows, err := s.db.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Count returns the number of tasks matching the filter.
func (s *SQLiteStore) Count(ctx context.Context, f Filter) (int, error) {
	where, args := buildWhere(f, time.Now().UTC())
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks"+where, args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return n, nil
}

// buildWhere translates the filter into a WHERE clause and its arguments.
func buildWhere(f Filter, now time.Time) (string, []any) {
	q := strings.Builder{}
	q.WriteString(" WHERE 1=1")
	args := []any{}

	if f.Status != nil {
		q.WriteString(" AND status=?")
		args = append(args, string(*f.Status))
	}
	if f.Priority != nil {
		q.WriteString(" AND priority=?")
		args = append(args, string(*f.Priority))
	}
	if f.Assignee != "" {
		q.WriteString(" AND assigned_to=?")
		args = append(args, f.Assignee)
	}
	if len(f.Tags) > 0 {
		q.WriteString(" AND EXISTS (SELECT 1 FROM json_each(tasks.tags) WHERE json_each.value IN (?" +
			strings.Repeat(",?", len(f.Tags)-1) + "))")
		for _, tag := range f.Tags {
			args = append(args, tag)
		}
	}
	if f.DependsOn != "" {
		q.WriteString(" AND EXISTS (SELECT 1 FROM json_each(tasks.dependency_ids) WHERE json_each.value = ?)")
		args = append(args, f.DependsOn)
	}
	if f.Overdue != nil {
		cond := "(due_date IS NOT NULL AND due_date < ? AND status NOT IN ('completed','cancelled'))"
		if *f.Overdue {
			q.WriteString(" AND " + cond)
		} else {
			q.WriteString(" AND NOT " + cond)
		}
		args = append(args, now)
	}
	if f.Search != "" {
		q.WriteString(" AND (title LIKE ? OR description LIKE ? OR assigned_to LIKE ?)")
		pat := "%" + f.Search + "%"
		args = append(args, pat, pat, pat)
	}
	return q.String(), args
}

// orderClause maps the filter's sort request onto a whitelisted column.
// Unknown or empty SortBy falls back to priority rank, then creation time.
func orderClause(f Filter) string {
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

// scanner abstracts sql.Row and sql.Rows for scanTask.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*Task, error) {
	var t Task
	var status, priority, tagsJSON, depsJSON string
	var dueDate, completedAt sql.NullTime
	var estimated, actual sql.NullFloat64

	err := s.Scan(
		&t.ID, &t.Title, &t.Description, &status, &priority,
		&dueDate, &t.Assignee,
		&estimated, &actual,
		&tagsJSON, &depsJSON,
		&t.CreatedAt, &t.UpdatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Status = Status(status)
	t.Priority = Priority(priority)

	_ = json.Unmarshal([]byte(tagsJSON), &t.Tags)
	_ = json.Unmarshal([]byte(depsJSON), &t.DependencyIDs)

	if dueDate.Valid {
		t.DueDate = &dueDate.Time
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	if estimated.Valid {
		t.EstimatedHours = &estimated.Float64
	}
	if actual.Valid {
		t.ActualHours = &actual.Float64
	}
	return &t, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func emptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
