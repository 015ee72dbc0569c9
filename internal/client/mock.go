package client

import (
	"context"
	"errors"

	"taskmanager/internal/auth"
	dom "taskmanager/internal/domain"
	"taskmanager/internal/dto"
	"taskmanager/internal/repo"
	"taskmanager/internal/service"
)

// Mock serves the API in-process on top of the real services, so it
// enforces the same validation and ownership rules as the server.
type Mock struct {
	users    *service.UserService
	tasks    *service.TaskService
	tokens   *auth.TokenManager
	sessions SessionStore
}

// MockOptions configures the in-process API. Zero values select an in-memory store.
type MockOptions struct {
	Users  repo.UserRepo
	Tasks  repo.TaskRepo
	Secret string
}

func NewMock(opts MockOptions, sessions SessionStore) *Mock {
	if opts.Users == nil || opts.Tasks == nil {
		s := repo.NewMemoryStore()
		opts.Users, opts.Tasks = s.Users(), s.Tasks()
	}
	if opts.Secret == "" {
		opts.Secret = "taskctl-mock"
	}
	tokens := auth.NewTokenManager(auth.TokenConfig{SecretKey: opts.Secret, TTL: auth.DefaultTokenTTL, Issuer: "taskctl-mock"})
	return &Mock{
		users:    service.NewUserService(opts.Users, auth.NewPasswordHasher(0), tokens),
		tasks:    service.NewTaskService(opts.Tasks, nil, nil),
		tokens:   tokens,
		sessions: sessions,
	}
}

func (m *Mock) Login(ctx context.Context, email, password string) (Session, error) {
	res, err := m.users.Login(ctx, email, password)
	if err != nil {
		return Session{}, err
	}
	return m.save(res)
}

func (m *Mock) Register(ctx context.Context, name, email, password string) (Session, error) {
	res, err := m.users.Register(ctx, name, email, password)
	if err != nil {
		return Session{}, err
	}
	return m.save(res)
}

func (m *Mock) Logout(context.Context) error {
	return m.sessions.Clear()
}

func (m *Mock) ChangePassword(ctx context.Context, current, next string) error {
	id, err := m.identity(ctx)
	if err != nil {
		return err
	}
	return m.users.ChangePassword(ctx, id.ID, current, next)
}

func (m *Mock) ListTasks(ctx context.Context, q dto.ListQuery) ([]dto.TaskResponse, error) {
	id, err := m.identity(ctx)
	if err != nil {
		return nil, err
	}
	list, err := m.tasks.List(ctx, id.ID, q.Filter())
	if err != nil {
		return nil, err
	}
	return dto.TasksToResponses(list, &id), nil
}

func (m *Mock) GetTask(ctx context.Context, taskID string) (dto.TaskResponse, error) {
	id, err := m.identity(ctx)
	if err != nil {
		return dto.TaskResponse{}, err
	}
	t, err := m.tasks.GetByID(ctx, id.ID, taskID)
	if err != nil {
		return dto.TaskResponse{}, err
	}
	return dto.TaskToResponse(t, &id), nil
}

func (m *Mock) CreateTask(ctx context.Context, d TaskDraft) (dto.TaskResponse, error) {
	id, err := m.identity(ctx)
	if err != nil {
		return dto.TaskResponse{}, err
	}
	in, err := d.input()
	if err != nil {
		return dto.TaskResponse{}, err
	}
	t, err := m.tasks.Create(ctx, id.ID, in)
	if err != nil {
		return dto.TaskResponse{}, err
	}
	return dto.TaskToResponse(t, &id), nil
}

func (m *Mock) UpdateTask(ctx context.Context, taskID string, ch TaskChanges) (dto.TaskResponse, error) {
	id, err := m.identity(ctx)
	if err != nil {
		return dto.TaskResponse{}, err
	}
	p, err := ch.patch()
	if err != nil {
		return dto.TaskResponse{}, err
	}
	t, err := m.tasks.Update(ctx, id.ID, taskID, p)
	if err != nil {
		return dto.TaskResponse{}, err
	}
	return dto.TaskToResponse(t, &id), nil
}

func (m *Mock) DeleteTask(ctx context.Context, taskID string) error {
	id, err := m.identity(ctx)
	if err != nil {
		return err
	}
	return m.tasks.Delete(ctx, id.ID, taskID)
}

// identity plays the role of the auth middleware for the stored token.
func (m *Mock) identity(ctx context.Context) (dom.Identity, error) {
	s, err := m.sessions.Load()
	if err != nil {
		return dom.Identity{}, err
	}
	if s.Token == "" {
		return dom.Identity{}, dom.Errorf(dom.ErrMissingCredential, "Authentication required")
	}
	claims, err := m.tokens.Verify(s.Token)
	if err != nil {
		_ = m.sessions.Clear()
		return dom.Identity{}, err
	}
	u, err := m.users.GetByID(ctx, claims.ID)
	if errors.Is(err, dom.ErrNotFound) {
		_ = m.sessions.Clear()
		return dom.Identity{}, dom.Errorf(dom.ErrInvalidToken, "Invalid token")
	}
	if err != nil {
		return dom.Identity{}, err
	}
	return u.Identity(), nil
}

func (m *Mock) save(res service.AuthResult) (Session, error) {
	s := Session{Token: res.Token, User: dto.UserFromIdentity(res.User)}
	if err := m.sessions.Save(s); err != nil {
		return Session{}, err
	}
	return s, nil
}
