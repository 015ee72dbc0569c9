package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"taskmanager/internal/dto"
)

// HTTPClient talks to the REST API. It attaches the stored bearer token and
// forgets it when the server answers 401.
type HTTPClient struct {
	baseURL  string
	hc       *http.Client
	sessions SessionStore
}

// NewHTTPClient returns a client for baseURL. The cookie jar carries the
// server session for the lifetime of the client.
func NewHTTPClient(baseURL string, sessions SessionStore) *HTTPClient {
	jar, _ := cookiejar.New(nil)
	return &HTTPClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		hc:       &http.Client{Timeout: 15 * time.Second, Jar: jar},
		sessions: sessions,
	}
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (Session, error) {
	return c.authenticate(ctx, "/auth/login", map[string]string{"email": email, "password": password})
}

func (c *HTTPClient) Register(ctx context.Context, name, email, password string) (Session, error) {
	return c.authenticate(ctx, "/auth/register", map[string]string{"name": name, "email": email, "password": password})
}

// Logout ends the server session and always forgets the local token.
func (c *HTTPClient) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
	if clearErr := c.sessions.Clear(); clearErr != nil {
		return clearErr
	}
	return err
}

func (c *HTTPClient) ChangePassword(ctx context.Context, current, next string) error {
	body := map[string]string{"currentPassword": current, "newPassword": next}
	return c.do(ctx, http.MethodPut, "/auth/change-password", body, nil)
}

func (c *HTTPClient) ListTasks(ctx context.Context, q dto.ListQuery) ([]dto.TaskResponse, error) {
	v := url.Values{}
	if q.Status != "" {
		v.Set("status", q.Status)
	}
	if q.SortBy != "" {
		v.Set("sortBy", q.SortBy)
	}
	if q.SortDir != "" {
		v.Set("sortDir", q.SortDir)
	}
	path := "/tasks"
	if len(v) > 0 {
		path += "?" + v.Encode()
	}
	var out []dto.TaskResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []dto.TaskResponse{}
	}
	return out, nil
}

func (c *HTTPClient) GetTask(ctx context.Context, id string) (dto.TaskResponse, error) {
	var out dto.TaskResponse
	err := c.do(ctx, http.MethodGet, "/tasks/"+url.PathEscape(id), nil, &out)
	return out, err
}

func (c *HTTPClient) CreateTask(ctx context.Context, d TaskDraft) (dto.TaskResponse, error) {
	var out dto.TaskResponse
	err := c.do(ctx, http.MethodPost, "/tasks", d.body(), &out)
	return out, err
}

func (c *HTTPClient) UpdateTask(ctx context.Context, id string, ch TaskChanges) (dto.TaskResponse, error) {
	var out dto.TaskResponse
	err := c.do(ctx, http.MethodPut, "/tasks/"+url.PathEscape(id), ch.body(), &out)
	return out, err
}

func (c *HTTPClient) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/tasks/"+url.PathEscape(id), nil, nil)
}

func (c *HTTPClient) authenticate(ctx context.Context, path string, body any) (Session, error) {
	var res dto.AuthResponse
	if err := c.do(ctx, http.MethodPost, path, body, &res); err != nil {
		return Session{}, err
	}
	s := Session{Token: res.Token, User: res.User}
	if err := c.sessions.Save(s); err != nil {
		return Session{}, fmt.Errorf("save session: %w", err)
	}
	return s, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	var sess Session
	if path != "/auth/login" && path != "/auth/register" {
		if sess, err = c.sessions.Load(); err != nil {
			return err
		}
	}
	if sess.Token != "" {
		req.Header.Set("Authorization", "Bearer "+sess.Token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Message string          `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}

	if resp.StatusCode >= http.StatusBadRequest || !env.Success {
		if resp.StatusCode == http.StatusUnauthorized && sess.Token != "" {
			_ = c.sessions.Clear()
		}
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%s %s: decode data: %w", method, path, err)
		}
	}
	return nil
}
