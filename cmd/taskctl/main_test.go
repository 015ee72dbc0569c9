package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"taskmanager/internal/dto"

	"github.com/spf13/cobra"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.Server)
	assert.False(t, cfg.Mock)

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: http://api:9000\nmock: true\n"), 0o600))
	cfg, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://api:9000", cfg.Server)
	assert.True(t, cfg.Mock)
	assert.NotEmpty(t, cfg.SessionFile)

	require.NoError(t, os.WriteFile(path, []byte("server: [\n"), 0o600))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func writeMockConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "mock: true\n" +
		"session_file: " + filepath.Join(dir, "session.yaml") + "\n" +
		"mock_db: " + filepath.Join(dir, "mock.db") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, config string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := execute(append([]string{"--config", config}, args...), func(cmd *cobra.Command) {
		cmd.SetOut(&out)
		cmd.SetErr(&out)
	})
	return out.String(), err
}

func TestTaskCommandsAgainstMock(t *testing.T) {
	config := writeMockConfig(t)

	_, err := run(t, config, "tasks", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not logged in")

	out, err := run(t, config, "register", "-n", "Ann", "-e", "ann@example.com", "-p", "secret1")
	require.NoError(t, err)
	assert.Contains(t, out, "Registered Ann <ann@example.com>")

	out, err = run(t, config, "tasks", "create", "Write report", "--deadline", "2030-01-02", "-j")
	require.NoError(t, err)
	var created dto.TaskResponse
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	assert.Equal(t, "Write report", created.Title)
	assert.Equal(t, "pending", created.Status)

	// state survives across invocations through the SQLite file
	out, err = run(t, config, "tasks", "update", created.ID, "-s", "completed", "-j")
	require.NoError(t, err)
	var updated dto.TaskResponse
	require.NoError(t, json.Unmarshal([]byte(out), &updated))
	assert.Equal(t, "completed", updated.Status)

	out, err = run(t, config, "tasks", "list", "-s", "completed")
	require.NoError(t, err)
	assert.Contains(t, out, created.ID)
	assert.Contains(t, out, "2030-01-02")

	_, err = run(t, config, "tasks", "update", created.ID, "-s", "archived")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Status must be one of")

	out, err = run(t, config, "tasks", "rm", created.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Task deleted")

	_, err = run(t, config, "tasks", "get", created.ID)
	require.Error(t, err)
	assert.Equal(t, "Task not found", err.Error())

	out, err = run(t, config, "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")

	out, err = run(t, config, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Not logged in")

	_, err = run(t, config, "login", "-e", "ann@example.com", "-p", "wrong")
	require.Error(t, err)
	assert.Equal(t, "Invalid credentials", err.Error())
}
