package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"taskmanager/internal/domain"
)

var deadlineLayouts = []string{
	"2006-01-02", // date only
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
}

// ParseDeadline accepts a date ("2006-01-02", start of day UTC) or an RFC3339 datetime.
func ParseDeadline(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range deadlineLayouts {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("deadline: use date (YYYY-MM-DD) or RFC3339 datetime")
}

// Deadline is a tri-state JSON deadline: absent, null (or ""), or a timestamp.
type Deadline struct {
	Set bool
	T   *time.Time
}

func (d *Deadline) UnmarshalJSON(data []byte) error {
	d.Set = true
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("deadline must be a string or null")
	}
	if raw == nil || strings.TrimSpace(*raw) == "" {
		d.T = nil
		return nil
	}
	parsed, err := ParseDeadline(*raw)
	if err != nil {
		return err
	}
	d.T = &parsed
	return nil
}

// OptionalString is a tri-state JSON string: absent, null, or a value.
type OptionalString struct {
	Set   bool
	Null  bool
	Value string
}

func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Null = true
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

// CreateTaskRequest is the JSON body for POST /tasks.
type CreateTaskRequest struct {
	Title       string         `json:"title"`
	Description OptionalString `json:"description"`
	Status      string         `json:"status"`
	Deadline    Deadline       `json:"deadline"`
}

func (r CreateTaskRequest) Input() domain.TaskInput {
	in := domain.TaskInput{
		Title:    r.Title,
		Status:   domain.Status(r.Status),
		Deadline: r.Deadline.T,
	}
	if r.Description.Set && !r.Description.Null && r.Description.Value != "" {
		d := r.Description.Value
		in.Description = &d
	}
	return in
}

// UpdateTaskRequest is the JSON body for PUT /tasks/:id. Absent fields are left
// unchanged; a null or empty description clears it, as on create.
type UpdateTaskRequest struct {
	Title       *string        `json:"title"`
	Description OptionalString `json:"description"`
	Status      *string        `json:"status"`
	Deadline    Deadline       `json:"deadline"`
}

func (r UpdateTaskRequest) Patch() domain.TaskPatch {
	p := domain.TaskPatch{Title: r.Title}
	if r.Description.Set {
		if r.Description.Null || r.Description.Value == "" {
			p.ClearDescription = true
		} else {
			d := r.Description.Value
			p.Description = &d
		}
	}
	if r.Status != nil {
		st := domain.Status(*r.Status)
		p.Status = &st
	}
	if r.Deadline.Set {
		if r.Deadline.T == nil {
			p.ClearDeadline = true
		} else {
			p.Deadline = r.Deadline.T
		}
	}
	return p
}

// TaskOwner is the owner summary embedded in task responses.
type TaskOwner struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type TaskResponse struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Status      string     `json:"status"`
	Deadline    *time.Time `json:"deadline"`
	CreatedBy   string     `json:"createdBy"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	User        *TaskOwner `json:"user,omitempty"`
}

// TaskToResponse converts a task. owner is embedded when non-nil.
func TaskToResponse(t domain.Task, owner *domain.Identity) TaskResponse {
	resp := TaskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Deadline:    t.Deadline,
		CreatedBy:   t.OwnerID,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if owner != nil {
		resp.User = &TaskOwner{Name: owner.Name, Email: owner.Email}
	}
	return resp
}

func TasksToResponses(list []domain.Task, owner *domain.Identity) []TaskResponse {
	out := make([]TaskResponse, len(list))
	for i := range list {
		out[i] = TaskToResponse(list[i], owner)
	}
	return out
}

// TaskFromResponse is the inverse of TaskToResponse, used by API clients.
func TaskFromResponse(r TaskResponse) domain.Task {
	return domain.Task{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Status:      domain.Status(r.Status),
		Deadline:    r.Deadline,
		OwnerID:     r.CreatedBy,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// ListQuery is the query string of GET /tasks.
type ListQuery struct {
	Status  string `form:"status"`
	SortBy  string `form:"sortBy"`
	SortDir string `form:"sortDir"`
}

// Filter converts the query, defaulting to createdAt descending.
// Unknown sort keys fall back to createdAt; any direction but "asc" is descending.
func (q ListQuery) Filter() domain.TaskFilter {
	f := domain.DefaultTaskFilter()
	f.Status = domain.Status(q.Status)
	if domain.SortField(q.SortBy) == domain.SortByDeadline {
		f.SortBy = domain.SortByDeadline
	}
	f.Desc = q.SortDir != "asc"
	return f
}
