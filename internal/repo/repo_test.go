package repo

import (
	"context"
	"testing"
	"time"

	dom "taskmanager/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type repoFactory func(t *testing.T) (UserRepo, TaskRepo)

func memoryFactory(t *testing.T) (UserRepo, TaskRepo) {
	s := NewMemoryStore()
	return s.Users(), s.Tasks()
}

func sqliteFactory(t *testing.T) (UserRepo, TaskRepo) {
	t.Helper()
	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return NewGormUserRepo(db), NewGormTaskRepo(db)
}

func TestMemoryStore(t *testing.T) { runRepoSuite(t, memoryFactory) }

func TestGormStore(t *testing.T) { runRepoSuite(t, sqliteFactory) }

func runRepoSuite(t *testing.T, factory repoFactory) {
	t.Run("users", func(t *testing.T) { testUsers(t, factory) })
	t.Run("task crud", func(t *testing.T) { testTaskCRUD(t, factory) })
	t.Run("list scoping and filter", func(t *testing.T) { testListScoping(t, factory) })
	t.Run("list ordering", func(t *testing.T) { testListOrdering(t, factory) })
}

func testUsers(t *testing.T, factory repoFactory) {
	ctx := context.Background()
	users, _ := factory(t)
	now := time.Now().UTC().Truncate(time.Microsecond)

	u, err := users.Create(ctx, dom.User{ID: uuid.NewString(), Name: "Ann", Email: "a@x.com", PasswordHash: "h1", CreatedAt: now})
	require.NoError(t, err)

	_, err = users.Create(ctx, dom.User{ID: uuid.NewString(), Name: "Dup", Email: "a@x.com", PasswordHash: "h2", CreatedAt: now})
	assert.ErrorIs(t, err, ErrDuplicate)

	got, err := users.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "Ann", got.Name)

	require.NoError(t, users.UpdatePasswordHash(ctx, u.ID, "h3"))
	got, err = users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "h3", got.PasswordHash)

	_, err = users.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, users.UpdatePasswordHash(ctx, "missing", "x"), ErrNotFound)
}

func newTask(owner, title string, created time.Time) dom.Task {
	return dom.Task{
		ID:        uuid.NewString(),
		Title:     title,
		Status:    dom.StatusPending,
		OwnerID:   owner,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func testTaskCRUD(t *testing.T, factory repoFactory) {
	ctx := context.Background()
	_, tasks := factory(t)
	now := time.Now().UTC().Truncate(time.Microsecond)

	desc := "details"
	in := newTask("u1", "Write report", now)
	in.Description = &desc
	created, err := tasks.Create(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, in.ID, created.ID)

	got, err := tasks.GetByID(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, "Write report", got.Title)
	require.NotNil(t, got.Description)
	assert.Equal(t, "details", *got.Description)
	assert.Nil(t, got.Deadline)
	assert.Equal(t, "u1", got.OwnerID)
	assert.True(t, got.CreatedAt.Equal(now))

	deadline := now.Add(48 * time.Hour)
	got.Title = "Rewrite report"
	got.Description = nil
	got.Deadline = &deadline
	got.Status = dom.StatusCompleted
	got.UpdatedAt = now.Add(time.Second)
	updated, err := tasks.Update(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, "Rewrite report", updated.Title)
	assert.Nil(t, updated.Description)
	require.NotNil(t, updated.Deadline)
	assert.True(t, updated.Deadline.Equal(deadline))
	assert.Equal(t, dom.StatusCompleted, updated.Status)
	assert.True(t, updated.UpdatedAt.Equal(now.Add(time.Second)))

	missing := newTask("u1", "ghost", now)
	_, err = tasks.Update(ctx, missing)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, tasks.Delete(ctx, in.ID))
	_, err = tasks.GetByID(ctx, in.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, tasks.Delete(ctx, in.ID), ErrNotFound)
}

func testListScoping(t *testing.T, factory repoFactory) {
	ctx := context.Background()
	_, tasks := factory(t)
	base := time.Now().UTC().Truncate(time.Microsecond)

	for i, owner := range []string{"u1", "u2", "u1", "u2", "u1"} {
		tk := newTask(owner, owner, base.Add(time.Duration(i)*time.Minute))
		if i == 2 {
			tk.Status = dom.StatusCompleted
		}
		_, err := tasks.Create(ctx, tk)
		require.NoError(t, err)
	}

	filters := []dom.TaskFilter{
		dom.DefaultTaskFilter(),
		{SortBy: dom.SortByDeadline},
		{SortBy: dom.SortByDeadline, Desc: true, Status: dom.StatusPending},
		{Status: dom.StatusCompleted},
		{Status: dom.StatusInProgress},
	}
	for _, f := range filters {
		list, err := tasks.ListByOwner(ctx, "u1", f)
		require.NoError(t, err)
		for _, tk := range list {
			assert.Equal(t, "u1", tk.OwnerID)
			if f.Status != "" {
				assert.Equal(t, f.Status, tk.Status)
			}
		}
	}

	all, err := tasks.ListByOwner(ctx, "u1", dom.DefaultTaskFilter())
	require.NoError(t, err)
	assert.Len(t, all, 3)

	completed, err := tasks.ListByOwner(ctx, "u1", dom.TaskFilter{Status: dom.StatusCompleted})
	require.NoError(t, err)
	assert.Len(t, completed, 1)

	none, err := tasks.ListByOwner(ctx, "nobody", dom.DefaultTaskFilter())
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func testListOrdering(t *testing.T, factory repoFactory) {
	ctx := context.Background()
	_, tasks := factory(t)
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	d1 := base.Add(72 * time.Hour)
	d2 := base.Add(24 * time.Hour)
	specs := []struct {
		title    string
		deadline *time.Time
	}{
		{"a", &d1},
		{"b", nil},
		{"c", &d2},
		{"d", nil},
	}
	for i, s := range specs {
		tk := newTask("u1", s.title, base.Add(time.Duration(i)*time.Minute))
		tk.Deadline = s.deadline
		_, err := tasks.Create(ctx, tk)
		require.NoError(t, err)
	}

	titles := func(f dom.TaskFilter) []string {
		list, err := tasks.ListByOwner(ctx, "u1", f)
		require.NoError(t, err)
		out := make([]string, len(list))
		for i, tk := range list {
			out[i] = tk.Title
		}
		return out
	}

	assert.Equal(t, []string{"d", "c", "b", "a"}, titles(dom.DefaultTaskFilter()))
	assert.Equal(t, []string{"a", "b", "c", "d"}, titles(dom.TaskFilter{SortBy: dom.SortByCreatedAt}))
	assert.Equal(t, []string{"c", "a", "b", "d"}, titles(dom.TaskFilter{SortBy: dom.SortByDeadline}))
	assert.Equal(t, []string{"a", "c", "b", "d"}, titles(dom.TaskFilter{SortBy: dom.SortByDeadline, Desc: true}))
}
