package dto

import (
	"encoding/json"
	"testing"
	"time"

	"taskmanager/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDeadline(t *testing.T) {
	got, err := ParseDeadline("2026-02-19")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 19, 0, 0, 0, 0, time.UTC), got)

	got, err = ParseDeadline("2026-02-19T10:30:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 19, 8, 30, 0, 0, time.UTC), got)

	_, err = ParseDeadline("next tuesday")
	assert.Error(t, err)
}

func TestUpdateTaskRequest_TriState(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		check func(t *testing.T, p domain.TaskPatch)
	}{
		{
			name: "absent fields unchanged",
			body: `{}`,
			check: func(t *testing.T, p domain.TaskPatch) {
				assert.Equal(t, domain.TaskPatch{}, p)
			},
		},
		{
			name: "null clears optional fields",
			body: `{"description":null,"deadline":null}`,
			check: func(t *testing.T, p domain.TaskPatch) {
				assert.True(t, p.ClearDescription)
				assert.True(t, p.ClearDeadline)
				assert.Nil(t, p.Description)
				assert.Nil(t, p.Deadline)
			},
		},
		{
			name: "empty description clears like on create",
			body: `{"description":""}`,
			check: func(t *testing.T, p domain.TaskPatch) {
				assert.True(t, p.ClearDescription)
				assert.Nil(t, p.Description)
			},
		},
		{
			name: "values replace",
			body: `{"title":"t","description":"d","status":"completed","deadline":"2026-03-01"}`,
			check: func(t *testing.T, p domain.TaskPatch) {
				require.NotNil(t, p.Title)
				assert.Equal(t, "t", *p.Title)
				require.NotNil(t, p.Description)
				assert.Equal(t, "d", *p.Description)
				require.NotNil(t, p.Status)
				assert.Equal(t, domain.StatusCompleted, *p.Status)
				require.NotNil(t, p.Deadline)
				assert.Equal(t, 2026, p.Deadline.Year())
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req UpdateTaskRequest
			require.NoError(t, json.Unmarshal([]byte(tt.body), &req))
			tt.check(t, req.Patch())
		})
	}
}

func TestCreateTaskRequest_Input(t *testing.T) {
	var req CreateTaskRequest
	require.NoError(t, json.Unmarshal([]byte(`{"title":"Write report","description":""}`), &req))
	in := req.Input()
	assert.Equal(t, "Write report", in.Title)
	assert.Nil(t, in.Description)
	assert.Nil(t, in.Deadline)
	assert.Equal(t, domain.Status(""), in.Status)

	assert.Error(t, json.Unmarshal([]byte(`{"title":"x","deadline":"soon"}`), &req))
}

func TestListQuery_Filter(t *testing.T) {
	f := ListQuery{}.Filter()
	assert.Equal(t, domain.SortByCreatedAt, f.SortBy)
	assert.True(t, f.Desc)

	f = ListQuery{Status: "pending", SortBy: "deadline", SortDir: "asc"}.Filter()
	assert.Equal(t, domain.StatusPending, f.Status)
	assert.Equal(t, domain.SortByDeadline, f.SortBy)
	assert.False(t, f.Desc)

	f = ListQuery{SortBy: "title", SortDir: "sideways"}.Filter()
	assert.Equal(t, domain.SortByCreatedAt, f.SortBy)
	assert.True(t, f.Desc)
}

func TestTaskResponseRoundTrip(t *testing.T) {
	now := time.Now().UTC()
	task := domain.Task{ID: "t1", Title: "a", Status: domain.StatusPending, OwnerID: "u1", CreatedAt: now, UpdatedAt: now}
	owner := domain.Identity{ID: "u1", Name: "Ann", Email: "a@x.com"}

	resp := TaskToResponse(task, &owner)
	assert.Equal(t, "u1", resp.CreatedBy)
	require.NotNil(t, resp.User)
	assert.Equal(t, "Ann", resp.User.Name)
	assert.Equal(t, task, TaskFromResponse(resp))
}
