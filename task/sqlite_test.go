package task

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	f, err := os.CreateTemp("", "loom-task-*.db")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	f.Close()
	path := f.Name()
	t.Cleanup(func() { os.Remove(path) })

	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_CreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	hours := 8.0
	due := time.Now().UTC().Add(48 * time.Hour)
	tk := &Task{
		Title:          "Test task",
		Description:    "Do something",
		Status:         StatusPending,
		Priority:       PriorityHigh,
		Assignee:       "dev@example.com",
		EstimatedHours: &hours,
		DueDate:        &due,
		Tags:           []string{"go", "backend"},
	}
	id, err := store.Create(ctx, tk)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id == "" {
		t.Fatal("Create returned empty ID")
	}
	if tk.ID != id {
		t.Errorf("task.ID = %q, want %q", tk.ID, id)
	}

	got, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != tk.Title {
		t.Errorf("Title = %q, want %q", got.Title, tk.Title)
	}
	if got.Status != StatusPending {
		t.Errorf("Status = %q, want %q", got.Status, StatusPending)
	}
	if got.Priority != PriorityHigh {
		t.Errorf("Priority = %q, want %q", got.Priority, PriorityHigh)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "go" {
		t.Errorf("Tags = %v, want [go backend]", got.Tags)
	}
	if got.EstimatedHours == nil || *got.EstimatedHours != 8.0 {
		t.Errorf("EstimatedHours = %v, want 8.0", got.EstimatedHours)
	}
	if got.DueDate == nil {
		t.Error("DueDate not persisted")
	}
	if got.CompletedAt != nil {
		t.Error("CompletedAt should be nil for a pending task")
	}
}

func TestSQLiteStore_Get_NotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Get(context.Background(), "nonexistent")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStore_Put(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tk := &Task{Title: "orig", Status: StatusPending, Priority: PriorityMedium}
	id, err := store.Create(ctx, tk)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	tk.Title = "updated"
	tk.Status = StatusInProgress
	tk.DependencyIDs = []string{"dep-1"}
	tk.UpdatedAt = time.Now().UTC()
	if err := store.Put(ctx, tk); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get after put: %v", err)
	}
	if got.Title != "updated" {
		t.Errorf("Title = %q, want updated", got.Title)
	}
	if got.Status != StatusInProgress {
		t.Errorf("Status = %q, want in-progress", got.Status)
	}
	if len(got.DependencyIDs) != 1 || got.DependencyIDs[0] != "dep-1" {
		t.Errorf("DependencyIDs = %v, want [dep-1]", got.DependencyIDs)
	}
}

func TestSQLiteStore_Put_NotFound(t *testing.T) {
	store := newTestStore(t)
	tk := &Task{ID: "nonexistent", Title: "x", Status: StatusPending, Priority: PriorityLow}
	if err := store.Put(context.Background(), tk); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStore_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tk := &Task{Title: "to delete", Status: StatusPending, Priority: PriorityLow}
	id, err := store.Create(ctx, tk)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := store.Delete(ctx, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestSQLiteStore_ListFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	seed := []*Task{
		{Title: "Fix login bug", Status: StatusPending, Priority: PriorityHigh,
			Assignee: "alice@example.com", Tags: []string{"urgent", "backend"}, DueDate: &future},
		{Title: "Design dashboard", Status: StatusInProgress, Priority: PriorityMedium,
			Assignee: "bob@example.com", Tags: []string{"frontend", "ui"}, DueDate: &past},
		{Title: "Write documentation", Status: StatusCompleted, Priority: PriorityLow,
			Assignee: "alice@example.com", Tags: []string{"docs"}, DueDate: &past},
	}
	var ids []string
	for _, tk := range seed {
		id, err := store.Create(ctx, tk)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		ids = append(ids, id)
	}

	all, err := store.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("List all: got %d, want 3", len(all))
	}
	// Default ordering is priority rank descending.
	if all[0].Priority != PriorityHigh {
		t.Errorf("first task priority = %q, want high", all[0].Priority)
	}

	pending := StatusPending
	got, err := store.List(ctx, Filter{Status: &pending})
	if err != nil {
		t.Fatalf("List pending: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Fix login bug" {
		t.Errorf("List pending: got %d tasks", len(got))
	}

	high := PriorityHigh
	got, err = store.List(ctx, Filter{Priority: &high})
	if err != nil {
		t.Fatalf("List high: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("List high priority: got %d, want 1", len(got))
	}

	got, err = store.List(ctx, Filter{Assignee: "alice@example.com"})
	if err != nil {
		t.Fatalf("List assignee: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("List assignee: got %d, want 2", len(got))
	}

	got, err = store.List(ctx, Filter{Tags: []string{"frontend", "docs"}})
	if err != nil {
		t.Fatalf("List tags: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("List tags any-of: got %d, want 2", len(got))
	}

	overdue := true
	got, err = store.List(ctx, Filter{Overdue: &overdue})
	if err != nil {
		t.Fatalf("List overdue: %v", err)
	}
	// Task 2 is past due and in progress; task 3 is past due but completed.
	if len(got) != 1 || got[0].Title != "Design dashboard" {
		t.Errorf("List overdue: got %d, want only the in-progress one", len(got))
	}

	got, err = store.List(ctx, Filter{Search: "dashboard"})
	if err != nil {
		t.Fatalf("List search: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Design dashboard" {
		t.Errorf("List search: got %d", len(got))
	}

	got, err = store.List(ctx, Filter{SortBy: "title"})
	if err != nil {
		t.Fatalf("List sorted: %v", err)
	}
	if got[0].Title != "Design dashboard" || got[2].Title != "Write documentation" {
		t.Errorf("List sorted by title: wrong order: %q, %q, %q",
			got[0].Title, got[1].Title, got[2].Title)
	}

	got, err = store.List(ctx, Filter{Limit: 2})
	if err != nil {
		t.Fatalf("List limit: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("List limit 2: got %d", len(got))
	}

	// Reverse dependency lookup.
	dependent, err := store.Get(ctx, ids[0])
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	dependent.DependencyIDs = []string{ids[2]}
	dependent.UpdatedAt = time.Now().UTC()
	if err := store.Put(ctx, dependent); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err = store.List(ctx, Filter{DependsOn: ids[2]})
	if err != nil {
		t.Fatalf("List depends-on: %v", err)
	}
	if len(got) != 1 || got[0].ID != ids[0] {
		t.Errorf("List depends-on: got %d, want the dependent task", len(got))
	}
}

func TestSQLiteStore_Count(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		tk := &Task{Title: "task", Status: StatusPending, Priority: PriorityMedium}
		if _, err := store.Create(ctx, tk); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	n, err := store.Count(ctx, Filter{})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 5 {
		t.Errorf("Count = %d, want 5", n)
	}

	pending := StatusPending
	n, err = store.Count(ctx, Filter{Status: &pending})
	if err != nil {
		t.Fatalf("Count pending: %v", err)
	}
	if n != 5 {
		t.Errorf("Count pending = %d, want 5", n)
	}
}
