package task

import (
	"strings"
	"testing"
)

func TestDependencyConflictError_Message(t *testing.T) {
	err := &DependencyConflictError{ID: "a", Dependents: []string{"b", "c"}}
	msg := err.Error()
	if !strings.Contains(msg, "2 task(s)") || !strings.Contains(msg, "e.g. b") {
		t.Errorf("unexpected message: %s", msg)
	}
}

func TestDependencyConflictError_NoDependents(t *testing.T) {
	// Constructors always pass a non-empty list, but formatting must not
	// panic on a hand-built value.
	err := &DependencyConflictError{ID: "a"}
	msg := err.Error()
	if !strings.Contains(msg, "cannot delete task a") {
		t.Errorf("unexpected message: %s", msg)
	}
}
