// Package events provides the in-process task lifecycle event bus.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/loomtask/loom/task"
)

// Type identifies the kind of task lifecycle event.
type Type string

const (
	TaskCreated Type = "task.created"
	TaskUpdated Type = "task.updated"
	TaskDeleted Type = "task.deleted"
)

// Event records a single task lifecycle change.
type Event struct {
	ID        string     `json:"id"`
	Type      Type       `json:"type"`
	TaskID    string     `json:"task_id"`
	Task      *task.Task `json:"task,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// New builds an event for t with a fresh id and timestamp.
func New(typ Type, t *task.Task) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      typ,
		TaskID:    t.ID,
		Task:      t,
		Timestamp: time.Now().UTC(),
	}
}

// Handler processes published events.
type Handler func(ctx context.Context, ev *Event) error

// Bus delivers task lifecycle events to subscribers and keeps a bounded
// history for late consumers.
type Bus interface {
	// Publish delivers the event to every subscriber and appends it to
	// the history.
	Publish(ctx context.Context, ev *Event) error

	// Subscribe registers a handler for all events.
	// Returns an unsubscribe function.
	Subscribe(handler Handler) (unsubscribe func())

	// History returns up to limit most recent events in chronological
	// order. limit <= 0 means no cap beyond the bus's own retention.
	History(limit int) []*Event
}
