package engine

import (
	"context"
	"errors"

	"github.com/loomtask/loom/events"
	"github.com/loomtask/loom/task"
)

// AddDependencies adds every id in depIDs to the dependency set of taskID.
// A self-edge fails with *task.SelfDependencyError and a dangling target
// with *task.UnknownTaskError; both are checked before anything is written.
// Adding an edge that already exists is a no-op, not an error.
func (e *Engine) AddDependencies(ctx context.Context, taskID string, depIDs []string) (*task.Task, error) {
	t, err := e.store.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := e.checkDependencies(ctx, taskID, depIDs); err != nil {
		return nil, err
	}

	changed := false
	for _, dep := range depIDs {
		if !t.DependsOn(dep) {
			t.DependencyIDs = append(t.DependencyIDs, dep)
			changed = true
		}
	}
	if !changed {
		return t, nil
	}

	t.UpdatedAt = e.now().UTC()
	if err := e.store.Put(ctx, t); err != nil {
		return nil, err
	}
	e.publish(ctx, events.TaskUpdated, t)
	return t, nil
}

// RemoveDependency removes the edge (taskID -> depID) if present. Removing
// an absent edge is a no-op, not an error.
func (e *Engine) RemoveDependency(ctx context.Context, taskID, depID string) (*task.Task, error) {
	t, err := e.store.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !t.DependsOn(depID) {
		return t, nil
	}

	deps := t.DependencyIDs[:0]
	for _, dep := range t.DependencyIDs {
		if dep != depID {
			deps = append(deps, dep)
		}
	}
	t.DependencyIDs = deps
	t.UpdatedAt = e.now().UTC()
	if err := e.store.Put(ctx, t); err != nil {
		return nil, err
	}
	e.publish(ctx, events.TaskUpdated, t)
	return t, nil
}

// Dependencies returns the dependency set of taskID exactly as stored: no
// transitive closure, no cycle detection.
func (e *Engine) Dependencies(ctx context.Context, taskID string) ([]string, error) {
	t, err := e.store.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), t.DependencyIDs...), nil
}

// ReadyToStart reports whether every dependency of t is completed. A
// dangling dependency counts as incomplete rather than failing the call.
func (e *Engine) ReadyToStart(ctx context.Context, t *task.Task) (bool, error) {
	for _, dep := range t.DependencyIDs {
		d, err := e.store.Get(ctx, dep)
		if err != nil {
			if errors.Is(err, task.ErrNotFound) {
				return false, nil
			}
			return false, err
		}
		if d.Status != task.StatusCompleted {
			return false, nil
		}
	}
	return true, nil
}

// checkDependencies validates dependency targets for taskID: no self-edges,
// no dangling ids. taskID may be empty at creation time, before an id is
// assigned.
func (e *Engine) checkDependencies(ctx context.Context, taskID string, depIDs []string) error {
	for _, dep := range depIDs {
		if dep == taskID {
			return &task.SelfDependencyError{ID: dep}
		}
		if _, err := e.store.Get(ctx, dep); err != nil {
			if errors.Is(err, task.ErrNotFound) {
				return &task.UnknownTaskError{ID: dep}
			}
			return err
		}
	}
	return nil
}
