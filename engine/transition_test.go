package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/loomtask/loom/task"
)

// allowedPairs is the full transition table plus self-transitions, used to
// verify CheckTransition by exhaustive enumeration.
var allowedPairs = map[task.Status][]task.Status{
	task.StatusPending:    {task.StatusPending, task.StatusInProgress, task.StatusCancelled, task.StatusOnHold},
	task.StatusInProgress: {task.StatusInProgress, task.StatusCompleted, task.StatusOnHold, task.StatusCancelled},
	task.StatusOnHold:     {task.StatusOnHold, task.StatusPending, task.StatusInProgress, task.StatusCancelled},
	task.StatusCompleted:  {task.StatusCompleted, task.StatusInProgress},
	task.StatusCancelled:  {task.StatusCancelled, task.StatusPending},
}

func pairAllowed(from, to task.Status) bool {
	for _, s := range allowedPairs[from] {
		if s == to {
			return true
		}
	}
	return false
}

func TestCheckTransition_FullEnumeration(t *testing.T) {
	for _, from := range task.Statuses {
		for _, to := range task.Statuses {
			allowed, reason := CheckTransition(from, to)
			want := pairAllowed(from, to)
			if allowed != want {
				t.Errorf("CheckTransition(%s, %s) = %v, want %v", from, to, allowed, want)
			}
			if allowed && reason != "" {
				t.Errorf("CheckTransition(%s, %s): allowed with reason %q", from, to, reason)
			}
			if !allowed && reason == "" {
				t.Errorf("CheckTransition(%s, %s): rejected without reason", from, to)
			}
		}
	}
}

func TestApplyTransition_SetsCompletedAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tk := &task.Task{Status: task.StatusInProgress, Title: "t", Priority: task.PriorityLow}

	if err := ApplyTransition(tk, task.StatusCompleted, now); err != nil {
		t.Fatalf("ApplyTransition: %v", err)
	}
	if tk.Status != task.StatusCompleted {
		t.Errorf("Status = %q, want completed", tk.Status)
	}
	if tk.CompletedAt == nil || !tk.CompletedAt.Equal(now) {
		t.Errorf("CompletedAt = %v, want %v", tk.CompletedAt, now)
	}
	if !tk.UpdatedAt.Equal(now) {
		t.Errorf("UpdatedAt = %v, want %v", tk.UpdatedAt, now)
	}
}

func TestApplyTransition_ClearsCompletedAtOnReopen(t *testing.T) {
	now := time.Now().UTC()
	done := now.Add(-time.Hour)
	tk := &task.Task{Status: task.StatusCompleted, CompletedAt: &done}

	if err := ApplyTransition(tk, task.StatusInProgress, now); err != nil {
		t.Fatalf("ApplyTransition: %v", err)
	}
	if tk.CompletedAt != nil {
		t.Errorf("CompletedAt = %v, want nil after reopening", tk.CompletedAt)
	}
}

func TestApplyTransition_SelfTransitionKeepsCompletedAt(t *testing.T) {
	now := time.Now().UTC()
	done := now.Add(-time.Hour)
	tk := &task.Task{Status: task.StatusCompleted, CompletedAt: &done}

	if err := ApplyTransition(tk, task.StatusCompleted, now); err != nil {
		t.Fatalf("ApplyTransition: %v", err)
	}
	if tk.CompletedAt == nil || !tk.CompletedAt.Equal(done) {
		t.Errorf("CompletedAt = %v, want original %v", tk.CompletedAt, done)
	}
}

func TestApplyTransition_RejectionLeavesTaskUnmodified(t *testing.T) {
	now := time.Now().UTC()
	before := now.Add(-time.Hour)
	tk := &task.Task{Status: task.StatusPending, UpdatedAt: before}

	err := ApplyTransition(tk, task.StatusCompleted, now)
	var terr *task.InvalidTransitionError
	if !errors.As(err, &terr) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	if terr.From != task.StatusPending || terr.To != task.StatusCompleted {
		t.Errorf("error pair = %s -> %s", terr.From, terr.To)
	}
	if tk.Status != task.StatusPending {
		t.Errorf("Status changed to %q on rejection", tk.Status)
	}
	if !tk.UpdatedAt.Equal(before) {
		t.Errorf("UpdatedAt bumped on rejection")
	}
	if tk.CompletedAt != nil {
		t.Errorf("CompletedAt set on rejection")
	}
}
