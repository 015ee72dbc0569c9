package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskmanager/internal/auth"
	dom "taskmanager/internal/domain"
	"taskmanager/internal/repo"
	"taskmanager/internal/utils"

	"github.com/google/uuid"
)

var (
	errInvalidCredentials = dom.Errorf(dom.ErrInvalidCredentials, "Invalid credentials")
	errUserNotFound       = dom.Errorf(dom.ErrNotFound, "User not found")
	errPasswordTooLong    = dom.Errorf(dom.ErrValidation, "Password must be at most %d bytes", auth.MaxPasswordBytes)
)

// AuthResult is what a successful login or registration hands back to the client.
type AuthResult struct {
	Token string
	User  dom.Identity
}

// UserService handles registration, login and password changes.
type UserService struct {
	repo   repo.UserRepo
	hasher *auth.PasswordHasher
	tokens *auth.TokenManager
	now    func() time.Time
}

// NewUserService returns a new UserService.
func NewUserService(r repo.UserRepo, hasher *auth.PasswordHasher, tokens *auth.TokenManager) *UserService {
	return &UserService{repo: r, hasher: hasher, tokens: tokens, now: time.Now}
}

// Register creates a user with a hashed password and signs them in.
func (s *UserService) Register(ctx context.Context, name, email, password string) (AuthResult, error) {
	name = strings.TrimSpace(name)
	email = utils.NormalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return AuthResult{}, dom.Errorf(dom.ErrValidation, "Name, email and password are required")
	}
	if len(password) > auth.MaxPasswordBytes {
		return AuthResult{}, errPasswordTooLong
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return AuthResult{}, fmt.Errorf("hash password: %w", err)
	}
	u, err := s.repo.Create(ctx, dom.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC().Truncate(time.Microsecond),
	})
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return AuthResult{}, dom.Errorf(dom.ErrConflict, "User with this email already exists")
		}
		return AuthResult{}, fmt.Errorf("create user: %w", err)
	}
	return s.signIn(u)
}

// Login checks email and password. Unknown email and wrong password fail identically.
func (s *UserService) Login(ctx context.Context, email, password string) (AuthResult, error) {
	email = utils.NormalizeEmail(email)
	if email == "" || password == "" {
		return AuthResult{}, dom.Errorf(dom.ErrValidation, "Email and password are required")
	}
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return AuthResult{}, errInvalidCredentials
		}
		return AuthResult{}, fmt.Errorf("load user: %w", err)
	}
	if !s.hasher.Verify(password, u.PasswordHash) {
		return AuthResult{}, errInvalidCredentials
	}
	return s.signIn(u)
}

// ChangePassword replaces the password hash after checking the current password.
func (s *UserService) ChangePassword(ctx context.Context, userID, current, next string) error {
	if current == "" || next == "" {
		return dom.Errorf(dom.ErrValidation, "Current password and new password are required")
	}
	if len(next) > auth.MaxPasswordBytes {
		return errPasswordTooLong
	}
	u, err := s.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(current, u.PasswordHash) {
		return dom.Errorf(dom.ErrValidation, "Current password is incorrect")
	}
	hash, err := s.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.UpdatePasswordHash(ctx, u.ID, hash); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return errUserNotFound
		}
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// GetByID implements auth.UserLookup.
func (s *UserService) GetByID(ctx context.Context, id string) (dom.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return dom.User{}, errUserNotFound
		}
		return dom.User{}, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}

func (s *UserService) signIn(u dom.User) (AuthResult, error) {
	token, err := s.tokens.Issue(u.Identity())
	if err != nil {
		return AuthResult{}, fmt.Errorf("issue token: %w", err)
	}
	return AuthResult{Token: token, User: u.Identity()}, nil
}
