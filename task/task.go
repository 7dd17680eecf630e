// Package task defines the task model, field validation, and persistence.
package task

import "time"

// Status represents the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusOnHold     Status = "on-hold"
)

// Statuses lists every valid status value.
var Statuses = []Status{
	StatusPending,
	StatusInProgress,
	StatusCompleted,
	StatusCancelled,
	StatusOnHold,
}

// Valid reports whether s is a member of the status enum.
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Priority ranks tasks for scheduling and list ordering.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Priorities lists every valid priority value.
var Priorities = []Priority{
	PriorityLow,
	PriorityMedium,
	PriorityHigh,
	PriorityCritical,
}

// Valid reports whether p is a member of the priority enum.
func (p Priority) Valid() bool {
	for _, v := range Priorities {
		if p == v {
			return true
		}
	}
	return false
}

// Weight returns the numeric rank of the priority, low (0) to critical (3).
func (p Priority) Weight() int {
	switch p {
	case PriorityCritical:
		return 3
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	default:
		return 0
	}
}

// Task is a tracked unit of work.
type Task struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Status         Status     `json:"status"`
	Priority       Priority   `json:"priority"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	Assignee       string     `json:"assigned_to,omitempty"`
	EstimatedHours *float64   `json:"estimated_hours,omitempty"`
	ActualHours    *float64   `json:"actual_hours,omitempty"`
	Tags           []string   `json:"tags,omitempty"`
	DependencyIDs  []string   `json:"dependency_ids,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// Progress reports completion as a percentage derived from status.
func (t *Task) Progress() float64 {
	switch t.Status {
	case StatusCompleted:
		return 100.0
	case StatusInProgress:
		return 50.0
	default:
		return 0.0
	}
}

// Overdue reports whether the task is past its due date and still open.
// Completed and cancelled tasks are never overdue.
func (t *Task) Overdue(now time.Time) bool {
	if t.DueDate == nil {
		return false
	}
	if t.Status == StatusCompleted || t.Status == StatusCancelled {
		return false
	}
	return t.DueDate.Before(now)
}

// DependsOn reports whether id is in the task's dependency set.
func (t *Task) DependsOn(id string) bool {
	for _, dep := range t.DependencyIDs {
		if dep == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	c := *t
	if t.DueDate != nil {
		d := *t.DueDate
		c.DueDate = &d
	}
	if t.CompletedAt != nil {
		d := *t.CompletedAt
		c.CompletedAt = &d
	}
	if t.EstimatedHours != nil {
		h := *t.EstimatedHours
		c.EstimatedHours = &h
	}
	if t.ActualHours != nil {
		h := *t.ActualHours
		c.ActualHours = &h
	}
	c.Tags = append([]string(nil), t.Tags...)
	c.DependencyIDs = append([]string(nil), t.DependencyIDs...)
	return &c
}
