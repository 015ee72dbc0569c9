package repo

import (
	"context"
	"sort"
	"sync"

	dom "taskmanager/internal/domain"
)

// MemoryStore is an in-process UserRepo and TaskRepo. Task iteration follows insertion order.
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[string]dom.User
	byEmail map[string]string
	tasks   map[string]dom.Task
	order   []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[string]dom.User),
		byEmail: make(map[string]string),
		tasks:   make(map[string]dom.Task),
	}
}

// Users returns the store as a UserRepo.
func (s *MemoryStore) Users() UserRepo { return memoryUsers{s} }

// Tasks returns the store as a TaskRepo.
func (s *MemoryStore) Tasks() TaskRepo { return memoryTasks{s} }

type memoryUsers struct{ s *MemoryStore }

func (m memoryUsers) Create(_ context.Context, u dom.User) (dom.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.byEmail[u.Email]; ok {
		return dom.User{}, ErrDuplicate
	}
	if _, ok := m.s.users[u.ID]; ok {
		return dom.User{}, ErrDuplicate
	}
	m.s.users[u.ID] = u
	m.s.byEmail[u.Email] = u.ID
	return u, nil
}

func (m memoryUsers) GetByEmail(_ context.Context, email string) (dom.User, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	id, ok := m.s.byEmail[email]
	if !ok {
		return dom.User{}, ErrNotFound
	}
	return m.s.users[id], nil
}

func (m memoryUsers) GetByID(_ context.Context, id string) (dom.User, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	u, ok := m.s.users[id]
	if !ok {
		return dom.User{}, ErrNotFound
	}
	return u, nil
}

func (m memoryUsers) UpdatePasswordHash(_ context.Context, id, passwordHash string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	u, ok := m.s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = passwordHash
	m.s.users[id] = u
	return nil
}

type memoryTasks struct{ s *MemoryStore }

func (m memoryTasks) Create(_ context.Context, t dom.Task) (dom.Task, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.tasks[t.ID]; ok {
		return dom.Task{}, ErrDuplicate
	}
	m.s.tasks[t.ID] = cloneTask(t)
	m.s.order = append(m.s.order, t.ID)
	return cloneTask(t), nil
}

func (m memoryTasks) GetByID(_ context.Context, id string) (dom.Task, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	t, ok := m.s.tasks[id]
	if !ok {
		return dom.Task{}, ErrNotFound
	}
	return cloneTask(t), nil
}

func (m memoryTasks) ListByOwner(_ context.Context, ownerID string, f dom.TaskFilter) ([]dom.Task, error) {
	m.s.mu.RLock()
	list := make([]dom.Task, 0)
	for _, id := range m.s.order {
		t := m.s.tasks[id]
		if t.OwnerID != ownerID {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		list = append(list, cloneTask(t))
	}
	m.s.mu.RUnlock()

	SortTasks(list, f)
	return list, nil
}

func (m memoryTasks) Update(_ context.Context, t dom.Task) (dom.Task, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	old, ok := m.s.tasks[t.ID]
	if !ok {
		return dom.Task{}, ErrNotFound
	}
	// owner and creation time are immutable
	t.OwnerID = old.OwnerID
	t.CreatedAt = old.CreatedAt
	m.s.tasks[t.ID] = cloneTask(t)
	return cloneTask(t), nil
}

func (m memoryTasks) Delete(_ context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(m.s.tasks, id)
	for i, oid := range m.s.order {
		if oid == id {
			m.s.order = append(m.s.order[:i], m.s.order[i+1:]...)
			break
		}
	}
	return nil
}

// SortTasks orders list in place per f. The sort is stable, so equal keys keep
// their incoming order; tasks without a deadline go last in both directions.
func SortTasks(list []dom.Task, f dom.TaskFilter) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if f.SortBy == dom.SortByDeadline {
			switch {
			case a.Deadline == nil && b.Deadline == nil:
				return false
			case a.Deadline == nil:
				return false
			case b.Deadline == nil:
				return true
			}
			if f.Desc {
				return a.Deadline.After(*b.Deadline)
			}
			return a.Deadline.Before(*b.Deadline)
		}
		if f.Desc {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}

func cloneTask(t dom.Task) dom.Task {
	if t.Description != nil {
		d := *t.Description
		t.Description = &d
	}
	if t.Deadline != nil {
		d := *t.Deadline
		t.Deadline = &d
	}
	return t
}
