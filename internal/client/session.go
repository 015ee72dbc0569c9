package client

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"taskmanager/internal/dto"

	"gopkg.in/yaml.v3"
)

// Session is the durable client-side login state.
type Session struct {
	Token string           `yaml:"token"`
	User  dto.UserResponse `yaml:"user"`
}

// LoggedIn reports whether a token is held.
func (s Session) LoggedIn() bool { return s.Token != "" }

// SessionStore persists the Session between runs.
type SessionStore interface {
	Load() (Session, error)
	Save(Session) error
	Clear() error
}

// FileSessionStore keeps the session in a YAML file readable only by the owner.
type FileSessionStore struct {
	path string
	mu   sync.Mutex
}

func NewFileSessionStore(path string) *FileSessionStore {
	return &FileSessionStore{path: path}
}

// Load returns an empty Session when the file does not exist.
func (f *FileSessionStore) Load() (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return Session{}, nil
	}
	if err != nil {
		return Session{}, fmt.Errorf("read session: %w", err)
	}
	var s Session
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Session{}, fmt.Errorf("parse session %s: %w", f.path, err)
	}
	return s, nil
}

func (f *FileSessionStore) Save(s Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	return os.WriteFile(f.path, b, 0o600)
}

func (f *FileSessionStore) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

// MemorySessionStore is a SessionStore that lives for one process.
type MemorySessionStore struct {
	mu sync.Mutex
	s  Session
}

func (m *MemorySessionStore) Load() (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s, nil
}

func (m *MemorySessionStore) Save(s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = s
	return nil
}

func (m *MemorySessionStore) Clear() error {
	return m.Save(Session{})
}
