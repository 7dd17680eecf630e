package task

import "context"

// Store persists and retrieves tasks. Implementations must treat each call
// as its own atomic unit; the engine never holds a lock across calls.
type Store interface {
	// Create persists a new task, assigning its ID and creation timestamps.
	Create(ctx context.Context, t *Task) (string, error)

	// Get retrieves a task by ID. Returns ErrNotFound if absent.
	Get(ctx context.Context, id string) (*Task, error)

	// Put saves changes to an existing task. Returns ErrNotFound if absent.
	Put(ctx context.Context, t *Task) error

	// Delete removes a task by ID. Returns ErrNotFound if absent.
	Delete(ctx context.Context, id string) error

	// List returns tasks matching the filter.
	List(ctx context.Context, f Filter) ([]*Task, error)

	// Count returns the number of tasks matching the filter.
	Count(ctx context.Context, f Filter) (int, error)
}

// Filter controls which tasks List and Count return.
type Filter struct {
	Status    *Status
	Priority  *Priority
	Assignee  string
	Tags      []string // any-of tag membership
	Overdue   *bool
	Search    string // substring match over title, description, assignee
	DependsOn string // tasks whose dependency set contains this id
	SortBy    string // scalar field name; empty for the default ordering
	SortDesc  bool
	Limit     int
	Offset    int
}

// SortFields lists the scalar fields List accepts in Filter.SortBy, keyed
// by their external (JSON) names.
var SortFields = map[string]bool{
	"title":       true,
	"status":      true,
	"priority":    true,
	"assigned_to": true,
	"due_date":    true,
	"created_at":  true,
	"updated_at":  true,
}
