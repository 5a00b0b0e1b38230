package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds process-level settings. Durations are Go duration strings
// such as "30m" or "10s".
type Config struct {
	ServerName     string        `yaml:"server_name"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	SweepInterval  time.Duration `yaml:"sweep_interval"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	SQLiteDir      string        `yaml:"sqlite_dir"`
	WatchSQLite    bool          `yaml:"watch_sqlite_files"`
}

// Default returns the settings used when no config file is given.
func Default() *Config {
	return &Config{
		ServerName:     "sqldesk",
		IdleTimeout:    30 * time.Minute,
		SweepInterval:  5 * time.Minute,
		ConnectTimeout: 10 * time.Second,
		SQLiteDir:      defaultSQLiteDir(),
		WatchSQLite:    true,
	}
}

func defaultSQLiteDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "databases"
	}
	return filepath.Join(dir, "sqldesk", "databases")
}

// LoadConfig reads a YAML file over the defaults. An empty path returns
// the defaults unchanged.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file not found: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.SQLiteDir, err = expandHome(cfg.SQLiteDir)
	if err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand sqlite_dir: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.ServerName) == "" {
		return errors.New("server_name is required")
	}
	if c.IdleTimeout <= 0 {
		return errors.New("idle_timeout must be positive")
	}
	if c.SweepInterval <= 0 {
		return errors.New("sweep_interval must be positive")
	}
	if c.ConnectTimeout < time.Second {
		return errors.New("connect_timeout must be at least 1s")
	}
	if c.SQLiteDir == "" {
		return errors.New("sqlite_dir is required")
	}
	return nil
}
