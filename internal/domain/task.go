package domain

import "time"

// Status is the closed set of task states.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Task is owned by exactly one user. OwnerID and CreatedAt are set once at creation.
type Task struct {
	ID          string
	Title       string
	Description *string
	Status      Status
	Deadline    *time.Time
	OwnerID     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SortField selects the list ordering key.
type SortField string

const (
	SortByCreatedAt SortField = "createdAt"
	SortByDeadline  SortField = "deadline"
)

// TaskFilter narrows and orders an owner's task list.
// Tasks without a deadline always sort last when ordering by deadline.
type TaskFilter struct {
	Status Status
	SortBy SortField
	Desc   bool
}

// DefaultTaskFilter lists newest first.
func DefaultTaskFilter() TaskFilter {
	return TaskFilter{SortBy: SortByCreatedAt, Desc: true}
}

// TaskInput carries the client-supplied fields of a new task.
type TaskInput struct {
	Title       string
	Description *string
	Status      Status
	Deadline    *time.Time
}

// TaskPatch is a partial update. Nil pointers leave the field unchanged;
// the Clear flags null out the optional fields.
type TaskPatch struct {
	Title            *string
	Description      *string
	ClearDescription bool
	Status           *Status
	Deadline         *time.Time
	ClearDeadline    bool
}

// Apply returns t with the patch fields replaced.
func (p TaskPatch) Apply(t Task) Task {
	if p.Title != nil {
		t.Title = *p.Title
	}
	switch {
	case p.ClearDescription:
		t.Description = nil
	case p.Description != nil:
		d := *p.Description
		t.Description = &d
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	switch {
	case p.ClearDeadline:
		t.Deadline = nil
	case p.Deadline != nil:
		d := *p.Deadline
		t.Deadline = &d
	}
	return t
}
