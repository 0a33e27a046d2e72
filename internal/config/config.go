package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

var (
	ErrMissing         = errors.New("config file missing")
	ErrMalformed       = errors.New("config file could not be parsed")
	ErrRootPathInvalid = errors.New("root path in config doesn't exist")
)

type Config struct {
	RootPath string      `yaml:"rootpath" toml:"rootpath"`
	Repos    []string    `yaml:"repos" toml:"repos"`
	LogFile  string      `yaml:"log_file" toml:"log_file"`
	Log      LogConfig   `yaml:"log" toml:"log"`
	Tool     ToolConfig  `yaml:"tool" toml:"tool"`
	Probe    ProbeConfig `yaml:"probe" toml:"probe"`
	TUI      TUIConfig   `yaml:"tui" toml:"tui"`
}

type LogConfig struct {
	Level string `yaml:"level" toml:"level"`
}

// ToolConfig is the interactive git client started for a repo.
type ToolConfig struct {
	Command string   `yaml:"command" toml:"command"`
	Args    []string `yaml:"args" toml:"args"`
	// Terminal wraps the tool in a terminal emulator, e.g. ["kitty", "--"].
	Terminal []string `yaml:"terminal" toml:"terminal"`
	// Detached starts the tool without a terminal, for GUI clients.
	Detached bool `yaml:"detached" toml:"detached"`
}

type ProbeConfig struct {
	Timeout     time.Duration `yaml:"-" toml:"-"`
	RawTimeout  string        `yaml:"timeout" toml:"timeout"`
	Concurrency int           `yaml:"concurrency" toml:"concurrency"`
	Format      string        `yaml:"format" toml:"format"`
}

type TUIConfig struct {
	RefreshInterval time.Duration `yaml:"-" toml:"-"`
	RawInterval     string        `yaml:"refresh_interval" toml:"refresh_interval"`
	Watch           bool          `yaml:"watch" toml:"watch"`
}

// Load reads, decodes and validates the config file at path. The decoder is
// picked by extension: .yaml/.yml use YAML, everything else TOML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMissing, err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		_, err = toml.Decode(string(data), &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	if err := cfg.setDefaults(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// RepoDir returns the working directory of a configured repo.
func (c *Config) RepoDir(name string) string {
	return filepath.Join(c.RootPath, name)
}

func (c *Config) setDefaults() error {
	root, err := expandPath(c.RootPath)
	if err != nil {
		return err
	}
	c.RootPath = root

	if c.LogFile == "" {
		c.LogFile = filepath.Join(os.TempDir(), "git-overlay", "git-overlay.log")
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Tool.Command == "" {
		c.Tool.Command = "lazygit"
	}

	if c.Probe.RawTimeout == "" {
		c.Probe.RawTimeout = "10s"
	}
	timeout, err := time.ParseDuration(c.Probe.RawTimeout)
	if err != nil {
		return fmt.Errorf("parse probe.timeout %q: %w", c.Probe.RawTimeout, err)
	}
	if timeout <= 0 {
		return fmt.Errorf("probe.timeout must be positive, got %s", c.Probe.RawTimeout)
	}
	c.Probe.Timeout = timeout

	if c.Probe.Concurrency < 0 {
		return fmt.Errorf("probe.concurrency must not be negative, got %d", c.Probe.Concurrency)
	}
	if c.Probe.Concurrency == 0 {
		c.Probe.Concurrency = 1
	}
	switch c.Probe.Format {
	case "":
		c.Probe.Format = "text"
	case "text", "porcelain":
	default:
		return fmt.Errorf("invalid probe.format %q (text|porcelain)", c.Probe.Format)
	}

	if c.TUI.RawInterval != "" {
		interval, err := time.ParseDuration(c.TUI.RawInterval)
		if err != nil {
			return fmt.Errorf("parse tui.refresh_interval %q: %w", c.TUI.RawInterval, err)
		}
		if interval < 0 {
			return fmt.Errorf("tui.refresh_interval must not be negative, got %s", c.TUI.RawInterval)
		}
		c.TUI.RefreshInterval = interval
	}

	return nil
}

func (c *Config) validate() error {
	if c.RootPath == "" {
		return fmt.Errorf("%w: rootpath is empty", ErrRootPathInvalid)
	}
	info, err := os.Stat(c.RootPath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRootPathInvalid, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrRootPathInvalid, c.RootPath)
	}
	return nil
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) (string, error) {
	if path == "~" {
		return os.UserHomeDir()
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expand ~: %w", err)
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}
