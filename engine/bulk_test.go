package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/loomtask/loom/task"
)

func TestEngine_BulkUpdate_MixedOutcomes(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	a := mustCreate(t, e, &task.Task{Title: "a"})
	b := mustCreate(t, e, &task.Task{Title: "b", Status: task.StatusCancelled})
	c := mustCreate(t, e, &task.Task{Title: "c"})

	// Cancelled tasks may not start; their neighbors still move.
	status := task.StatusInProgress
	ids := []string{a.ID, b.ID, c.ID}
	results, err := e.BulkUpdate(ctx, ids, task.Patch{Status: &status})
	if err != nil {
		t.Fatalf("BulkUpdate: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("results len = %d, want 3", len(results))
	}
	for i, id := range ids {
		if results[i].ID != id {
			t.Errorf("result %d id = %q, want %q (input order)", i, results[i].ID, id)
		}
	}

	var terr *task.InvalidTransitionError
	if !errors.As(results[1].Err, &terr) {
		t.Fatalf("middle item: expected InvalidTransitionError, got %v", results[1].Err)
	}
	if results[1].Task != nil {
		t.Error("failed item must carry no task")
	}
	for _, i := range []int{0, 2} {
		if results[i].Err != nil {
			t.Errorf("item %d: unexpected error %v", i, results[i].Err)
		}
		if results[i].Task == nil || results[i].Task.Status != task.StatusInProgress {
			t.Errorf("item %d not moved to in-progress", i)
		}
	}

	// The failed item is untouched in the store.
	got, err := e.Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != task.StatusCancelled {
		t.Errorf("failed item status = %q, want cancelled", got.Status)
	}
}

func TestEngine_BulkUpdate_UnknownID(t *testing.T) {
	e, _ := newTestEngine(t)

	a := mustCreate(t, e, &task.Task{Title: "a"})
	title := "renamed"
	results, err := e.BulkUpdate(context.Background(), []string{"missing", a.ID}, task.Patch{Title: &title})
	if err != nil {
		t.Fatalf("BulkUpdate: %v", err)
	}
	if !errors.Is(results[0].Err, task.ErrNotFound) {
		t.Errorf("unknown id: expected ErrNotFound, got %v", results[0].Err)
	}
	if results[1].Err != nil || results[1].Task.Title != "renamed" {
		t.Errorf("valid item should succeed: %+v", results[1])
	}
}

func TestEngine_BulkUpdate_Empty(t *testing.T) {
	e, _ := newTestEngine(t)
	results, err := e.BulkUpdate(context.Background(), nil, task.Patch{})
	if err != nil {
		t.Fatalf("BulkUpdate: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("results = %v, want empty", results)
	}
}

func TestEngine_BulkUpdate_ContextCancelled(t *testing.T) {
	e, _ := newTestEngine(t)

	a := mustCreate(t, e, &task.Task{Title: "a"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	title := "renamed"
	results, err := e.BulkUpdate(ctx, []string{a.ID}, task.Patch{Title: &title})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(results) != 0 {
		t.Errorf("no items should be processed after cancellation, got %d", len(results))
	}
}
