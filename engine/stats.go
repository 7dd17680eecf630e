package engine

import (
	"context"
	"time"

	"github.com/loomtask/loom/task"
)

// Statistics summarizes a point-in-time snapshot of the task collection.
// Every status and priority key is present, zero when unrepresented.
type Statistics struct {
	Total                  int                   `json:"total_tasks"`
	ByStatus               map[task.Status]int   `json:"tasks_by_status"`
	ByPriority             map[task.Priority]int `json:"tasks_by_priority"`
	Overdue                int                   `json:"overdue_tasks"`
	AverageCompletionHours *float64              `json:"average_completion_time_hours"`
}

// ComputeStatistics derives aggregate metrics from the snapshot. It is a
// pure function of its inputs: the same snapshot and clock always produce
// the same report. The completion-time average covers tasks that are
// completed and carry both timestamps; it is absent when no task qualifies.
func ComputeStatistics(snapshot []*task.Task, now time.Time) *Statistics {
	s := &Statistics{
		ByStatus:   make(map[task.Status]int, len(task.Statuses)),
		ByPriority: make(map[task.Priority]int, len(task.Priorities)),
	}
	for _, status := range task.Statuses {
		s.ByStatus[status] = 0
	}
	for _, priority := range task.Priorities {
		s.ByPriority[priority] = 0
	}

	var completed int
	var totalHours float64
	for _, t := range snapshot {
		s.Total++
		s.ByStatus[t.Status]++
		s.ByPriority[t.Priority]++
		if t.Overdue(now) {
			s.Overdue++
		}
		if t.Status == task.StatusCompleted && t.CompletedAt != nil {
			completed++
			totalHours += t.CompletedAt.Sub(t.CreatedAt).Hours()
		}
	}
	if completed > 0 {
		avg := totalHours / float64(completed)
		s.AverageCompletionHours = &avg
	}
	return s
}

// Statistics reads a snapshot of the whole task collection and computes the
// report. The snapshot is point-in-time, not transactionally consistent
// with concurrent writers.
func (e *Engine) Statistics(ctx context.Context) (*Statistics, error) {
	snapshot, err := e.store.List(ctx, task.Filter{})
	if err != nil {
		return nil, err
	}
	return ComputeStatistics(snapshot, e.now().UTC()), nil
}
