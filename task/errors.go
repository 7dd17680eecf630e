package task

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates a referenced task id is absent from the store.
var ErrNotFound = errors.New("task not found")

// ValidationError reports a field constraint violation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InvalidTransitionError reports a status change not permitted by the
// workflow transition table.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition from %s to %s", e.From, e.To)
}

// SelfDependencyError reports an attempt to make a task depend on itself.
type SelfDependencyError struct {
	ID string
}

func (e *SelfDependencyError) Error() string {
	return fmt.Sprintf("task %s cannot depend on itself", e.ID)
}

// UnknownTaskError reports a dependency target that does not exist.
type UnknownTaskError struct {
	ID string
}

func (e *UnknownTaskError) Error() string {
	return fmt.Sprintf("dependency task %s not found", e.ID)
}

// DependencyConflictError reports a deletion blocked by tasks that still
// depend on the target.
type DependencyConflictError struct {
	ID         string
	Dependents []string
}

func (e *DependencyConflictError) Error() string {
	if len(e.Dependents) == 0 {
		return fmt.Sprintf("cannot delete task %s: other tasks depend on it", e.ID)
	}
	return fmt.Sprintf("cannot delete task %s: %d task(s) depend on it (e.g. %s)",
		e.ID, len(e.Dependents), e.Dependents[0])
}
