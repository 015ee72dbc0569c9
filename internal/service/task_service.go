package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"taskmanager/internal/cache"
	dom "taskmanager/internal/domain"
	"taskmanager/internal/repo"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

var (
	errTaskNotFound  = dom.Errorf(dom.ErrNotFound, "Task not found")
	errTaskForbidden = dom.Errorf(dom.ErrForbidden, "Not authorized to access this task")
	errTitleRequired = dom.Errorf(dom.ErrValidation, "Title is required")
)

// TaskService is the access-control layer over the task store: every
// read, update and delete loads the task and checks its owner first.
type TaskService struct {
	repo  repo.TaskRepo
	cache *cache.TaskCache
	sf    singleflight.Group
	log   *slog.Logger
	now   func() time.Time
}

// NewTaskService creates a TaskService. If c is nil, caching is disabled.
func NewTaskService(r repo.TaskRepo, c *cache.TaskCache, log *slog.Logger) *TaskService {
	if log == nil {
		log = slog.Default()
	}
	return &TaskService{repo: r, cache: c, log: log, now: time.Now}
}

func (s *TaskService) Create(ctx context.Context, ownerID string, in dom.TaskInput) (dom.Task, error) {
	if strings.TrimSpace(in.Title) == "" {
		return dom.Task{}, errTitleRequired
	}
	if in.Status == "" {
		in.Status = dom.StatusPending
	}
	if in.Description != nil && *in.Description == "" {
		in.Description = nil
	}
	if err := validateStatus(in.Status); err != nil {
		return dom.Task{}, err
	}

	now := s.clock()
	t, err := s.repo.Create(ctx, dom.Task{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		Deadline:    in.Deadline,
		OwnerID:     ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return dom.Task{}, fmt.Errorf("create task: %w", err)
	}
	s.invalidateCache(ctx, ownerID)
	return t, nil
}

// List returns the owner's tasks. Results are served from the cache when enabled.
func (s *TaskService) List(ctx context.Context, ownerID string, f dom.TaskFilter) ([]dom.Task, error) {
	if f.Status != "" {
		if err := validateStatus(f.Status); err != nil {
			return nil, err
		}
	}
	if f.SortBy != dom.SortByDeadline {
		f.SortBy = dom.SortByCreatedAt
	}

	if s.cache == nil {
		return s.list(ctx, ownerID, f)
	}
	gen, err := s.cache.Generation(ctx, ownerID)
	if err != nil {
		s.log.Warn("task cache generation read failed", "owner", ownerID, "error", err)
		return s.list(ctx, ownerID, f)
	}
	key := cache.Key(ownerID, gen, f)

	// shared by every caller waiting on key, so one caller leaving must not cancel it
	shared := context.WithoutCancel(ctx)
	v, err, _ := s.sf.Do(key, func() (interface{}, error) {
		list, err := s.cache.GetList(shared, key)
		if err != nil {
			s.log.Warn("task cache read failed", "owner", ownerID, "error", err)
		} else if list != nil {
			return list, nil
		}
		list, err = s.list(shared, ownerID, f)
		if err != nil {
			return nil, err
		}
		if err := s.cache.SetList(shared, key, list); err != nil {
			s.log.Warn("task cache write failed", "owner", ownerID, "error", err)
		}
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]dom.Task), nil
}

func (s *TaskService) GetByID(ctx context.Context, ownerID, id string) (dom.Task, error) {
	return s.authorize(ctx, ownerID, id)
}

// Update applies a partial update. UpdatedAt always moves forward.
func (s *TaskService) Update(ctx context.Context, ownerID, id string, p dom.TaskPatch) (dom.Task, error) {
	existing, err := s.authorize(ctx, ownerID, id)
	if err != nil {
		return dom.Task{}, err
	}
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return dom.Task{}, errTitleRequired
	}
	if p.Status != nil {
		if err := validateStatus(*p.Status); err != nil {
			return dom.Task{}, err
		}
	}

	if p.Description != nil && *p.Description == "" {
		p.Description, p.ClearDescription = nil, true
	}

	next := p.Apply(existing)
	next.UpdatedAt = s.clock()
	if !next.UpdatedAt.After(existing.UpdatedAt) {
		next.UpdatedAt = existing.UpdatedAt.Add(time.Microsecond)
	}

	t, err := s.repo.Update(ctx, next)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return dom.Task{}, errTaskNotFound
		}
		return dom.Task{}, fmt.Errorf("update task: %w", err)
	}
	s.invalidateCache(ctx, ownerID)
	return t, nil
}

func (s *TaskService) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := s.authorize(ctx, ownerID, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return errTaskNotFound
		}
		return fmt.Errorf("delete task: %w", err)
	}
	s.invalidateCache(ctx, ownerID)
	return nil
}

// authorize loads the task and rejects callers other than its owner.
func (s *TaskService) authorize(ctx context.Context, ownerID, id string) (dom.Task, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return dom.Task{}, errTaskNotFound
		}
		return dom.Task{}, fmt.Errorf("load task: %w", err)
	}
	if t.OwnerID != ownerID {
		return dom.Task{}, errTaskForbidden
	}
	return t, nil
}

func (s *TaskService) list(ctx context.Context, ownerID string, f dom.TaskFilter) ([]dom.Task, error) {
	list, err := s.repo.ListByOwner(ctx, ownerID, f)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	if list == nil {
		list = []dom.Task{}
	}
	return list, nil
}

func (s *TaskService) invalidateCache(ctx context.Context, ownerID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateOwner(ctx, ownerID); err != nil {
		s.log.Warn("task cache invalidation failed", "owner", ownerID, "error", err)
	}
}

// clock is truncated to the precision every store keeps.
func (s *TaskService) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func validateStatus(st dom.Status) error {
	if !st.Valid() {
		return dom.Errorf(dom.ErrValidation, "Status must be one of: pending, in-progress, completed")
	}
	return nil
}
