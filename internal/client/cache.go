package client

import (
	"context"
	"sync"

	"taskmanager/internal/dto"
)

// CachedAPI keeps fetched tasks normalized by id and list results keyed by
// query. Any task mutation drops every cached list; an update also replaces
// the cached item so a following GetTask needs no round trip.
type CachedAPI struct {
	API

	mu    sync.Mutex
	items map[string]dto.TaskResponse
	lists map[dto.ListQuery][]string
}

func NewCachedAPI(api API) *CachedAPI {
	c := &CachedAPI{API: api}
	c.reset()
	return c
}

func (c *CachedAPI) Login(ctx context.Context, email, password string) (Session, error) {
	c.reset()
	return c.API.Login(ctx, email, password)
}

func (c *CachedAPI) Register(ctx context.Context, name, email, password string) (Session, error) {
	c.reset()
	return c.API.Register(ctx, name, email, password)
}

func (c *CachedAPI) Logout(ctx context.Context) error {
	c.reset()
	return c.API.Logout(ctx)
}

func (c *CachedAPI) ListTasks(ctx context.Context, q dto.ListQuery) ([]dto.TaskResponse, error) {
	c.mu.Lock()
	if ids, ok := c.lists[q]; ok {
		out := make([]dto.TaskResponse, 0, len(ids))
		for _, id := range ids {
			out = append(out, c.items[id])
		}
		c.mu.Unlock()
		return out, nil
	}
	c.mu.Unlock()

	list, err := c.API.ListTasks(ctx, q)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, len(list))
	for i, t := range list {
		ids[i] = t.ID
		c.items[t.ID] = t
	}
	c.lists[q] = ids
	return list, nil
}

func (c *CachedAPI) GetTask(ctx context.Context, id string) (dto.TaskResponse, error) {
	c.mu.Lock()
	t, ok := c.items[id]
	c.mu.Unlock()
	if ok {
		return t, nil
	}

	t, err := c.API.GetTask(ctx, id)
	if err != nil {
		return dto.TaskResponse{}, err
	}
	c.mu.Lock()
	c.items[id] = t
	c.mu.Unlock()
	return t, nil
}

func (c *CachedAPI) CreateTask(ctx context.Context, d TaskDraft) (dto.TaskResponse, error) {
	t, err := c.API.CreateTask(ctx, d)
	if err != nil {
		return dto.TaskResponse{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[t.ID] = t
	c.dropLists()
	return t, nil
}

func (c *CachedAPI) UpdateTask(ctx context.Context, id string, ch TaskChanges) (dto.TaskResponse, error) {
	t, err := c.API.UpdateTask(ctx, id, ch)
	if err != nil {
		return dto.TaskResponse{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[t.ID] = t
	c.dropLists()
	return t, nil
}

func (c *CachedAPI) DeleteTask(ctx context.Context, id string) error {
	if err := c.API.DeleteTask(ctx, id); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, id)
	c.dropLists()
	return nil
}

// dropLists must be called with mu held.
func (c *CachedAPI) dropLists() {
	c.lists = make(map[dto.ListQuery][]string)
}

func (c *CachedAPI) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]dto.TaskResponse)
	c.dropLists()
}
