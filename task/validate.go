package task

import (
	"strings"
	"time"
)

// Field constraints enforced on every mutation.
const (
	MaxTitleLen       = 255
	MaxDescriptionLen = 5000
	MaxAssigneeLen    = 100
	MaxTags           = 20
)

// Validate checks every field constraint on the task. It runs against the
// fully-applied copy of a mutation, before anything is persisted.
func (t *Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if len(t.Title) > MaxTitleLen {
		return &ValidationError{Field: "title", Reason: "must be at most 255 characters"}
	}
	if len(t.Description) > MaxDescriptionLen {
		return &ValidationError{Field: "description", Reason: "must be at most 5000 characters"}
	}
	if !t.Status.Valid() {
		return &ValidationError{Field: "status", Reason: "must be one of pending, in-progress, completed, cancelled, on-hold"}
	}
	if !t.Priority.Valid() {
		return &ValidationError{Field: "priority", Reason: "must be one of low, medium, high, critical"}
	}
	if len(t.Assignee) > MaxAssigneeLen {
		return &ValidationError{Field: "assigned_to", Reason: "must be at most 100 characters"}
	}
	if t.EstimatedHours != nil && *t.EstimatedHours < 0 {
		return &ValidationError{Field: "estimated_hours", Reason: "must not be negative"}
	}
	if t.ActualHours != nil && *t.ActualHours < 0 {
		return &ValidationError{Field: "actual_hours", Reason: "must not be negative"}
	}
	if n := uniqueCount(t.Tags); n > MaxTags {
		return &ValidationError{Field: "tags", Reason: "maximum 20 unique tags allowed"}
	}
	return nil
}

func uniqueCount(tags []string) int {
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		seen[tag] = struct{}{}
	}
	return len(seen)
}

// Patch is a partial task update. Nil fields are left unchanged.
type Patch struct {
	Title          *string    `json:"title,omitempty"`
	Description    *string    `json:"description,omitempty"`
	Status         *Status    `json:"status,omitempty"`
	Priority       *Priority  `json:"priority,omitempty"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	Assignee       *string    `json:"assigned_to,omitempty"`
	EstimatedHours *float64   `json:"estimated_hours,omitempty"`
	ActualHours    *float64   `json:"actual_hours,omitempty"`
	Tags           *[]string  `json:"tags,omitempty"`
}

// ApplyFields copies every set non-status field of the patch onto t.
// Status is deliberately excluded: status changes are only ever applied
// through the workflow state machine.
func (p Patch) ApplyFields(t *Task) {
	if p.Title != nil {
		t.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.DueDate != nil {
		d := *p.DueDate
		t.DueDate = &d
	}
	if p.Assignee != nil {
		t.Assignee = *p.Assignee
	}
	if p.EstimatedHours != nil {
		h := *p.EstimatedHours
		t.EstimatedHours = &h
	}
	if p.ActualHours != nil {
		h := *p.ActualHours
		t.ActualHours = &h
	}
	if p.Tags != nil {
		t.Tags = append([]string(nil), (*p.Tags)...)
	}
}

// Empty reports whether the patch carries no updates at all.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil &&
		p.Priority == nil && p.DueDate == nil && p.Assignee == nil &&
		p.EstimatedHours == nil && p.ActualHours == nil && p.Tags == nil
}
