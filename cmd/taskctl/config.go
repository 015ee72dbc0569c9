package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is read from ~/.taskctl/config.yaml. Flags override it.
type Config struct {
	Server      string `yaml:"server"`
	SessionFile string `yaml:"session_file"`
	Mock        bool   `yaml:"mock"`
	MockDB      string `yaml:"mock_db"`
}

func defaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".taskctl"
	}
	return filepath.Join(home, ".taskctl")
}

func defaultConfig() Config {
	dir := defaultDir()
	return Config{
		Server:      "http://localhost:8080",
		SessionFile: filepath.Join(dir, "session.yaml"),
		MockDB:      filepath.Join(dir, "mock.db"),
	}
}

// LoadConfig reads path over the defaults. A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
