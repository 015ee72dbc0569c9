// Package client is the data-access layer used by taskctl: one API interface
// with a network implementation and an in-process one, plus a client cache.
package client

import (
	"context"
	"fmt"
	"net/http"

	dom "taskmanager/internal/domain"
	"taskmanager/internal/dto"
)

// API is the task manager as seen from a client.
type API interface {
	Login(ctx context.Context, email, password string) (Session, error)
	Register(ctx context.Context, name, email, password string) (Session, error)
	Logout(ctx context.Context) error
	ChangePassword(ctx context.Context, current, next string) error

	ListTasks(ctx context.Context, q dto.ListQuery) ([]dto.TaskResponse, error)
	GetTask(ctx context.Context, id string) (dto.TaskResponse, error)
	CreateTask(ctx context.Context, d TaskDraft) (dto.TaskResponse, error)
	UpdateTask(ctx context.Context, id string, ch TaskChanges) (dto.TaskResponse, error)
	DeleteTask(ctx context.Context, id string) error
}

// TaskDraft holds the fields of a new task. Empty strings mean "not given".
type TaskDraft struct {
	Title       string
	Description string
	Status      string
	Deadline    string
}

func (d TaskDraft) body() map[string]any {
	b := map[string]any{"title": d.Title}
	if d.Description != "" {
		b["description"] = d.Description
	}
	if d.Status != "" {
		b["status"] = d.Status
	}
	if d.Deadline != "" {
		b["deadline"] = d.Deadline
	}
	return b
}

func (d TaskDraft) input() (dom.TaskInput, error) {
	in := dom.TaskInput{Title: d.Title, Status: dom.Status(d.Status)}
	if d.Description != "" {
		desc := d.Description
		in.Description = &desc
	}
	if d.Deadline != "" {
		t, err := dto.ParseDeadline(d.Deadline)
		if err != nil {
			return dom.TaskInput{}, dom.Errorf(dom.ErrValidation, "%s", err.Error())
		}
		in.Deadline = &t
	}
	return in, nil
}

// TaskChanges is a partial update. Nil fields are left unchanged; the Clear
// flags send null.
type TaskChanges struct {
	Title            *string
	Description      *string
	ClearDescription bool
	Status           *string
	Deadline         *string
	ClearDeadline    bool
}

func (ch TaskChanges) body() map[string]any {
	b := map[string]any{}
	if ch.Title != nil {
		b["title"] = *ch.Title
	}
	switch {
	case ch.ClearDescription:
		b["description"] = nil
	case ch.Description != nil:
		b["description"] = *ch.Description
	}
	if ch.Status != nil {
		b["status"] = *ch.Status
	}
	switch {
	case ch.ClearDeadline:
		b["deadline"] = nil
	case ch.Deadline != nil:
		b["deadline"] = *ch.Deadline
	}
	return b
}

func (ch TaskChanges) patch() (dom.TaskPatch, error) {
	p := dom.TaskPatch{
		Title:            ch.Title,
		Description:      ch.Description,
		ClearDescription: ch.ClearDescription,
		ClearDeadline:    ch.ClearDeadline,
	}
	if ch.Status != nil {
		st := dom.Status(*ch.Status)
		p.Status = &st
	}
	if ch.Deadline != nil && !ch.ClearDeadline {
		t, err := dto.ParseDeadline(*ch.Deadline)
		if err != nil {
			return dom.TaskPatch{}, dom.Errorf(dom.ErrValidation, "%s", err.Error())
		}
		p.Deadline = &t
	}
	return p, nil
}

// APIError is a failed envelope returned by the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, http.StatusText(e.Status), e.Message)
}

// Is lets callers test an APIError against the domain error kinds, so both
// API implementations fail the same way under errors.Is.
func (e *APIError) Is(target error) bool {
	switch e.Status {
	case http.StatusBadRequest:
		return target == dom.ErrValidation
	case http.StatusUnauthorized:
		return target == dom.ErrMissingCredential || target == dom.ErrInvalidToken ||
			target == dom.ErrExpiredToken || target == dom.ErrInvalidCredentials
	case http.StatusForbidden:
		return target == dom.ErrForbidden
	case http.StatusNotFound:
		return target == dom.ErrNotFound
	case http.StatusConflict:
		return target == dom.ErrConflict
	}
	return false
}
