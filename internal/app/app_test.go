package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"taskmanager/internal/config"
	"taskmanager/internal/dto"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

type harness struct {
	t   *testing.T
	app *App
}

// newHarness builds the app over the memory store. withRedis starts a miniredis.
func newHarness(t *testing.T, withRedis bool, env map[string]string) *harness {
	t.Helper()
	t.Setenv("STORE_DRIVER", config.DriverMemory)
	t.Setenv("REDIS_URL", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("APP_ENV", "test")
	t.Setenv("BCRYPT_COST", "4")
	t.Setenv("JWT_SECRET", "test-secret")
	if withRedis {
		mr := miniredis.RunT(t)
		t.Setenv("REDIS_ADDR", mr.Addr())
	}
	for k, v := range env {
		t.Setenv(k, v)
	}

	cfg, err := config.Load()
	require.NoError(t, err)
	a, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return &harness{t: t, app: a}
}

type reqOpt func(*http.Request)

func bearer(token string) reqOpt {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func forwardedFor(ip string) reqOpt {
	return func(r *http.Request) { r.Header.Set("X-Forwarded-For", ip) }
}

func withCookies(cookies []*http.Cookie) reqOpt {
	return func(r *http.Request) {
		for _, c := range cookies {
			r.AddCookie(c)
		}
	}
}

func (h *harness) do(method, path string, body any, opts ...reqOpt) (*httptest.ResponseRecorder, envelope) {
	h.t.Helper()
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(h.t, err)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "192.0.2.1:5000"
	for _, o := range opts {
		o(req)
	}
	w := httptest.NewRecorder()
	h.app.Router().ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func (h *harness) register(name, email, password string) dto.AuthResponse {
	h.t.Helper()
	w, env := h.do(http.MethodPost, "/auth/register", map[string]string{"name": name, "email": email, "password": password})
	require.Equal(h.t, http.StatusCreated, w.Code, w.Body.String())
	var res dto.AuthResponse
	require.NoError(h.t, json.Unmarshal(env.Data, &res))
	return res
}

func (h *harness) createTask(token string, body any) dto.TaskResponse {
	h.t.Helper()
	w, env := h.do(http.MethodPost, "/tasks", body, bearer(token))
	require.Equal(h.t, http.StatusCreated, w.Code, w.Body.String())
	var task dto.TaskResponse
	require.NoError(h.t, json.Unmarshal(env.Data, &task))
	return task
}

func TestLoginScenario(t *testing.T) {
	h := newHarness(t, false, nil)
	reg := h.register("Ann", "a@x.com", "password")
	assert.NotEmpty(t, reg.Token)

	w, env := h.do(http.MethodPost, "/auth/login", map[string]string{"email": "a@x.com", "password": "password"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	var res dto.AuthResponse
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, dto.UserResponse{ID: reg.User.ID, Name: "Ann", Email: "a@x.com"}, res.User)

	w, _ = h.do(http.MethodPost, "/auth/login", map[string]string{"email": "a@x.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"Invalid credentials"}`, w.Body.String())

	w, env = h.do(http.MethodPost, "/auth/login", map[string]string{"email": "a@x.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Email and password are required", env.Message)

	w, _ = h.do(http.MethodPost, "/auth/login", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = h.do(http.MethodPost, "/auth/register", map[string]string{"name": "Dup", "email": "A@x.com", "password": "pw"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "User with this email already exists", env.Message)
}

func TestCreateTaskScenario(t *testing.T) {
	h := newHarness(t, false, nil)
	u := h.register("Ann", "a@x.com", "password")

	w, env := h.do(http.MethodPost, "/tasks", map[string]string{"title": "Write report"}, bearer(u.Token))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, env.Success)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &raw))
	assert.Equal(t, "Write report", raw["title"])
	assert.Equal(t, "pending", raw["status"])
	assert.Equal(t, u.User.ID, raw["createdBy"])
	assert.Nil(t, raw["deadline"])
	assert.Nil(t, raw["description"])
	assert.Equal(t, map[string]any{"name": "Ann", "email": "a@x.com"}, raw["user"])

	w, env = h.do(http.MethodPost, "/tasks", map[string]string{"description": "no title"}, bearer(u.Token))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Title is required", env.Message)

	w, _ = h.do(http.MethodPost, "/tasks", map[string]string{"title": "x", "status": "done"}, bearer(u.Token))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = h.do(http.MethodPost, "/tasks", map[string]string{"title": "x", "deadline": "tomorrow"}, bearer(u.Token))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	task := h.createTask(u.Token, map[string]string{"title": "dated", "deadline": "2026-06-01"})
	require.NotNil(t, task.Deadline)
	assert.Equal(t, "2026-06-01T00:00:00Z", task.Deadline.Format("2006-01-02T15:04:05Z07:00"))
}

func TestAuthRequired(t *testing.T) {
	h := newHarness(t, false, nil)

	w, env := h.do(http.MethodGet, "/tasks", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "Authentication required", env.Message)

	w, env = h.do(http.MethodGet, "/tasks", nil, bearer("garbage"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid token", env.Message)

	w, _ = h.do(http.MethodPut, "/auth/change-password", map[string]string{"currentPassword": "a", "newPassword": "b"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOwnershipScenario(t *testing.T) {
	h := newHarness(t, false, nil)
	ann := h.register("Ann", "a@x.com", "password")
	bob := h.register("Bob", "b@x.com", "password")
	task := h.createTask(ann.Token, map[string]string{"title": "Ann's"})

	w, env := h.do(http.MethodDelete, "/tasks/"+task.ID, nil, bearer(bob.Token))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Not authorized to access this task", env.Message)

	w, _ = h.do(http.MethodGet, "/tasks/"+task.ID, nil, bearer(bob.Token))
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = h.do(http.MethodPut, "/tasks/"+task.ID, map[string]string{"title": "mine now"}, bearer(bob.Token))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env = h.do(http.MethodGet, "/tasks/"+task.ID, nil, bearer(ann.Token))
	require.Equal(t, http.StatusOK, w.Code)
	var got dto.TaskResponse
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "Ann's", got.Title)

	w, env = h.do(http.MethodGet, "/tasks", nil, bearer(bob.Token))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, string(env.Data))

	w, env = h.do(http.MethodGet, "/tasks/does-not-exist", nil, bearer(bob.Token))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Task not found", env.Message)

	w, env = h.do(http.MethodDelete, "/tasks/"+task.ID, nil, bearer(ann.Token))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Task deleted successfully", env.Message)
	w, _ = h.do(http.MethodGet, "/tasks/"+task.ID, nil, bearer(ann.Token))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateScenario(t *testing.T) {
	h := newHarness(t, true, nil)
	u := h.register("Ann", "a@x.com", "password")
	task := h.createTask(u.Token, map[string]string{"title": "t", "description": "d", "deadline": "2026-06-01"})

	w, env := h.do(http.MethodPut, "/tasks/"+task.ID, map[string]any{"status": "completed", "deadline": nil}, bearer(u.Token))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got dto.TaskResponse
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "completed", got.Status)
	assert.Nil(t, got.Deadline)
	require.NotNil(t, got.Description)
	assert.Equal(t, "d", *got.Description)
	assert.Equal(t, "t", got.Title)
	assert.True(t, got.UpdatedAt.After(task.UpdatedAt))

	w, env = h.do(http.MethodPut, "/tasks/"+task.ID, map[string]any{"status": "archived"}, bearer(u.Token))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, env.Success)

	w, _ = h.do(http.MethodPut, "/tasks/"+task.ID, map[string]any{"title": ""}, bearer(u.Token))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// the cached list reflects the update
	w, env = h.do(http.MethodGet, "/tasks?status=completed", nil, bearer(u.Token))
	require.Equal(t, http.StatusOK, w.Code)
	var list []dto.TaskResponse
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, task.ID, list[0].ID)

	w, _ = h.do(http.MethodGet, "/tasks?status=bogus", nil, bearer(u.Token))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListSortedByDeadline(t *testing.T) {
	h := newHarness(t, false, nil)
	u := h.register("Ann", "a@x.com", "password")

	h.createTask(u.Token, map[string]string{"title": "late", "deadline": "2026-09-01"})
	h.createTask(u.Token, map[string]string{"title": "none"})
	h.createTask(u.Token, map[string]string{"title": "early", "deadline": "2026-07-01"})

	titles := func(query string) []string {
		w, env := h.do(http.MethodGet, "/tasks"+query, nil, bearer(u.Token))
		require.Equal(t, http.StatusOK, w.Code)
		var list []dto.TaskResponse
		require.NoError(t, json.Unmarshal(env.Data, &list))
		out := make([]string, len(list))
		for i, task := range list {
			out[i] = task.Title
		}
		return out
	}

	assert.Equal(t, []string{"early", "late", "none"}, titles("?sortBy=deadline&sortDir=asc"))
	assert.Equal(t, []string{"late", "early", "none"}, titles("?sortBy=deadline&sortDir=desc"))
	assert.Equal(t, []string{"early", "none", "late"}, titles(""))
	assert.Equal(t, []string{"late", "none", "early"}, titles("?sortBy=bogus&sortDir=asc"))
}

func TestSessionCookieFlow(t *testing.T) {
	h := newHarness(t, true, nil)
	h.register("Ann", "a@x.com", "password")

	w, _ := h.do(http.MethodPost, "/auth/login", map[string]string{"email": "a@x.com", "password": "password"})
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "session_id", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	w, _ = h.do(http.MethodGet, "/tasks", nil, withCookies(cookies))
	assert.Equal(t, http.StatusOK, w.Code)

	w, env := h.do(http.MethodPost, "/auth/logout", nil, withCookies(cookies))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Logged out successfully", env.Message)

	w, _ = h.do(http.MethodGet, "/tasks", nil, withCookies(cookies))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, env = h.do(http.MethodPost, "/auth/logout", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	assert.Equal(t, "Already logged out", env.Message)
}

func TestNoSessionWithoutRedis(t *testing.T) {
	h := newHarness(t, false, nil)
	h.register("Ann", "a@x.com", "password")

	w, _ := h.do(http.MethodPost, "/auth/login", map[string]string{"email": "a@x.com", "password": "password"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Result().Cookies())

	w, env := h.do(http.MethodPost, "/auth/logout", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Already logged out", env.Message)
}

func TestChangePassword(t *testing.T) {
	h := newHarness(t, false, nil)
	u := h.register("Ann", "a@x.com", "old-pass")

	w, env := h.do(http.MethodPut, "/auth/change-password", map[string]string{"currentPassword": "nope", "newPassword": "new-pass"}, bearer(u.Token))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Current password is incorrect", env.Message)

	w, env = h.do(http.MethodPut, "/auth/change-password", map[string]string{"currentPassword": "old-pass", "newPassword": "new-pass"}, bearer(u.Token))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Password changed successfully", env.Message)

	w, _ = h.do(http.MethodPost, "/auth/login", map[string]string{"email": "a@x.com", "password": "new-pass"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthRateLimit(t *testing.T) {
	h := newHarness(t, true, map[string]string{"RATE_LIMIT_AUTH": "2", "RATE_LIMIT_WINDOW": "1m"})
	creds := map[string]string{"email": "a@x.com", "password": "wrong"}

	for i := 0; i < 2; i++ {
		w, _ := h.do(http.MethodPost, "/auth/login", creds)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}
	w, env := h.do(http.MethodPost, "/auth/login", creds)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.False(t, env.Success)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// task routes are not limited
	w, _ = h.do(http.MethodGet, "/tasks", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRateLimitIgnoresForwardedFor(t *testing.T) {
	h := newHarness(t, true, map[string]string{"RATE_LIMIT_AUTH": "2", "RATE_LIMIT_WINDOW": "1m"})
	creds := map[string]string{"email": "a@x.com", "password": "wrong"}

	for _, ip := range []string{"10.0.0.1", "10.0.0.2"} {
		w, _ := h.do(http.MethodPost, "/auth/login", creds, forwardedFor(ip))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}
	w, _ := h.do(http.MethodPost, "/auth/login", creds, forwardedFor("10.0.0.9"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestAuthRateLimitBehindTrustedProxy(t *testing.T) {
	h := newHarness(t, true, map[string]string{
		"RATE_LIMIT_AUTH":   "2",
		"RATE_LIMIT_WINDOW": "1m",
		"TRUSTED_PROXIES":   "192.0.2.1",
	})
	creds := map[string]string{"email": "a@x.com", "password": "wrong"}

	for _, ip := range []string{"10.0.0.1", "10.0.0.1"} {
		w, _ := h.do(http.MethodPost, "/auth/login", creds, forwardedFor(ip))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}
	w, _ := h.do(http.MethodPost, "/auth/login", creds, forwardedFor("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// a different client behind the same proxy has its own window
	w, _ = h.do(http.MethodPost, "/auth/login", creds, forwardedFor("10.0.0.2"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPasswordByteLimit(t *testing.T) {
	h := newHarness(t, false, nil)
	long := strings.Repeat("é", 40)

	w, env := h.do(http.MethodPost, "/auth/register", map[string]string{"name": "Ann", "email": "a@x.com", "password": long})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Password must be at most 72 bytes", env.Message)

	u := h.register("Ann", "a@x.com", "old-pass")
	w, env = h.do(http.MethodPut, "/auth/change-password", map[string]string{"currentPassword": "old-pass", "newPassword": long}, bearer(u.Token))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Password must be at most 72 bytes", env.Message)

	w, _ = h.do(http.MethodPost, "/auth/login", map[string]string{"email": "a@x.com", "password": "old-pass"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestEmptyDescriptionIsNull(t *testing.T) {
	h := newHarness(t, false, nil)
	u := h.register("Ann", "a@x.com", "password")

	created := h.createTask(u.Token, map[string]string{"title": "t", "description": ""})
	assert.Nil(t, created.Description)

	task := h.createTask(u.Token, map[string]string{"title": "t", "description": "d"})
	require.NotNil(t, task.Description)
	w, env := h.do(http.MethodPut, "/tasks/"+task.ID, map[string]string{"description": ""}, bearer(u.Token))
	require.Equal(t, http.StatusOK, w.Code)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &raw))
	assert.Contains(t, raw, "description")
	assert.Nil(t, raw["description"])
}

func TestServiceEndpoints(t *testing.T) {
	h := newHarness(t, true, map[string]string{"VERSION": "1.2.3"})

	w, _ := h.do(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true,"env":"test","store":"memory","redis":"up"}`, w.Body.String())

	w, _ = h.do(http.MethodGet, "/version", nil)
	assert.JSONEq(t, `{"version":"1.2.3"}`, w.Body.String())

	w, _ = h.do(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORSConfig(t *testing.T) {
	assert.True(t, corsConfig([]string{"*"}).AllowAllOrigins)
	c := corsConfig([]string{"http://localhost:3000"})
	assert.False(t, c.AllowAllOrigins)
	assert.True(t, c.AllowCredentials)
}
