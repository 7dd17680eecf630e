package engine

import (
	"time"

	"github.com/loomtask/loom/task"
)

// transitions encodes the allowed workflow moves per status. Self-transitions
// are always permitted and are not listed.
var transitions = map[task.Status][]task.Status{
	task.StatusPending:    {task.StatusInProgress, task.StatusCancelled, task.StatusOnHold},
	task.StatusInProgress: {task.StatusCompleted, task.StatusOnHold, task.StatusCancelled},
	task.StatusOnHold:     {task.StatusPending, task.StatusInProgress, task.StatusCancelled},
	task.StatusCompleted:  {task.StatusInProgress}, // reopen
	task.StatusCancelled:  {task.StatusPending},    // reopen
}

// CheckTransition reports whether a task may move from current to proposed.
// It is a pure function of the transition table; an empty reason means the
// move is allowed.
func CheckTransition(current, proposed task.Status) (allowed bool, reason string) {
	if current == proposed {
		return true, ""
	}
	for _, next := range transitions[current] {
		if next == proposed {
			return true, ""
		}
	}
	err := &task.InvalidTransitionError{From: current, To: proposed}
	return false, err.Error()
}

// ApplyTransition moves t to the proposed status, stamping completed_at when
// the task enters the completed state and clearing it when the task leaves.
// Rejected transitions return *task.InvalidTransitionError and leave t
// untouched. This is the only place task status ever changes.
func ApplyTransition(t *task.Task, proposed task.Status, now time.Time) error {
	if allowed, _ := CheckTransition(t.Status, proposed); !allowed {
		return &task.InvalidTransitionError{From: t.Status, To: proposed}
	}
	switch {
	case proposed == task.StatusCompleted && t.Status != task.StatusCompleted:
		at := now
		t.CompletedAt = &at
	case proposed != task.StatusCompleted:
		t.CompletedAt = nil
	}
	t.Status = proposed
	t.UpdatedAt = now
	return nil
}
