package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"taskmanager/internal/domain"
	"taskmanager/internal/dto"

	"github.com/gin-gonic/gin"
)

const contextKeyIdentity = "identity"

var errMissingCredential = domain.Errorf(domain.ErrMissingCredential, "Authentication required")

// UserLookup resolves a user id. It must return an error wrapping
// domain.ErrNotFound for unknown users.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (domain.User, error)
}

// Middleware resolves the caller from a session cookie or a bearer token.
type Middleware struct {
	sessions   *SessionStore
	tokens     *TokenManager
	users      UserLookup
	cookieName string
	log        *slog.Logger
}

// NewMiddleware builds the auth gate. sessions may be nil, which disables the cookie path.
func NewMiddleware(sessions *SessionStore, tokens *TokenManager, users UserLookup, cookieName string, log *slog.Logger) *Middleware {
	if log == nil {
		log = slog.Default()
	}
	return &Middleware{sessions: sessions, tokens: tokens, users: users, cookieName: cookieName, log: log}
}

// IdentityFromContext returns the identity set by Require.
func IdentityFromContext(c *gin.Context) (domain.Identity, bool) {
	v, ok := c.Get(contextKeyIdentity)
	if !ok {
		return domain.Identity{}, false
	}
	id, ok := v.(domain.Identity)
	return id, ok
}

// Require rejects the request with 401 unless Resolve succeeds.
func (m *Middleware) Require() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := m.Resolve(c.Request)
		if err != nil {
			status := http.StatusUnauthorized
			if !isAuthError(err) {
				m.log.Error("resolve identity", "path", c.FullPath(), "error", err)
				status = http.StatusInternalServerError
				err = errors.New("Internal Server Error")
			}
			c.AbortWithStatusJSON(status, dto.Fail(domain.Message(err)))
			return
		}
		c.Set(contextKeyIdentity, id)
		c.Next()
	}
}

// Resolve runs the credential precedence: a resolvable session cookie wins,
// otherwise the Authorization bearer token decides.
func (m *Middleware) Resolve(r *http.Request) (domain.Identity, error) {
	ctx := r.Context()

	if m.sessions != nil {
		if cookie, err := r.Cookie(m.cookieName); err == nil && cookie.Value != "" {
			if id, ok := m.fromSession(ctx, cookie.Value); ok {
				return id, nil
			}
		}
	}

	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return domain.Identity{}, errMissingCredential
	}

	claims, err := m.tokens.Verify(strings.TrimSpace(token))
	if err != nil {
		return domain.Identity{}, err
	}
	user, err := m.users.GetByID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Identity{}, errInvalidToken
		}
		return domain.Identity{}, err
	}
	return user.Identity(), nil
}

func (m *Middleware) fromSession(ctx context.Context, sessionID string) (domain.Identity, bool) {
	userID, ok, err := m.sessions.GetUserID(ctx, sessionID)
	if err != nil {
		m.log.Warn("session lookup failed, falling back to bearer token", "error", err)
		return domain.Identity{}, false
	}
	if !ok {
		return domain.Identity{}, false
	}
	user, err := m.users.GetByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			m.log.Warn("session user lookup failed", "error", err)
		}
		return domain.Identity{}, false
	}
	return user.Identity(), true
}

func isAuthError(err error) bool {
	return errors.Is(err, domain.ErrMissingCredential) ||
		errors.Is(err, domain.ErrInvalidToken) ||
		errors.Is(err, domain.ErrExpiredToken)
}
