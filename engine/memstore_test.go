package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/loomtask/loom/task"
)

// memStore is a deterministic in-memory task.Store for engine tests.
type memStore struct {
	tasks  map[string]*task.Task
	nextID int

	failPut error // when set, Put returns this error
}

func newMemStore() *memStore {
	return &memStore{tasks: make(map[string]*task.Task)}
}

func (s *memStore) Create(_ context.Context, t *task.Task) (string, error) {
	s.nextID++
	t.ID = fmt.Sprintf("task-%d", s.nextID)
	s.tasks[t.ID] = t.Clone()
	return t.ID, nil
}

func (s *memStore) Get(_ context.Context, id string) (*task.Task, error) {
	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, task.ErrNotFound)
	}
	return t.Clone(), nil
}

func (s *memStore) Put(_ context.Context, t *task.Task) error {
	if s.failPut != nil {
		return s.failPut
	}
	if _, ok := s.tasks[t.ID]; !ok {
		return fmt.Errorf("task %s: %w", t.ID, task.ErrNotFound)
	}
	s.tasks[t.ID] = t.Clone()
	return nil
}

func (s *memStore) Delete(_ context.Context, id string) error {
	if _, ok := s.tasks[id]; !ok {
		return fmt.Errorf("task %s: %w", id, task.ErrNotFound)
	}
	delete(s.tasks, id)
	return nil
}

func (s *memStore) List(_ context.Context, f task.Filter) ([]*task.Task, error) {
	var result []*task.Task
	for _, t := range s.tasks {
		if f.DependsOn != "" && !t.DependsOn(f.DependsOn) {
			continue
		}
		if f.Status != nil && t.Status != *f.Status {
			continue
		}
		result = append(result, t.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *memStore) Count(ctx context.Context, f task.Filter) (int, error) {
	tasks, err := s.List(ctx, f)
	return len(tasks), err
}
