package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"prdash/internal/session"
)

type Config struct {
	LogFile     string       `yaml:"log_file"`
	MergeMethod string       `yaml:"merge_method"`
	Theme       string       `yaml:"theme"`
	Repos       []RepoConfig `yaml:"repos"`
	Log         LogConfig    `yaml:"log"`
	TUI         TUIConfig    `yaml:"tui"`
	Bot         BotConfig    `yaml:"merge_bot"`
}

// RepoConfig seeds the repository list on first run; afterwards the
// session file wins.
type RepoConfig struct {
	Owner      string `yaml:"owner"`
	Name       string `yaml:"name"`
	BaseBranch string `yaml:"base_branch"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type TUIConfig struct {
	RefreshInterval time.Duration `yaml:"-"`
	RawInterval     string        `yaml:"refresh_interval"`
}

type BotConfig struct {
	MaxInFlight  int           `yaml:"max_in_flight"`
	RetryBudget  int           `yaml:"retry_budget"`
	PollInterval time.Duration `yaml:"-"`
	RawPoll      string        `yaml:"poll_interval"`
	Backoff      time.Duration `yaml:"-"`
	RawBackoff   string        `yaml:"backoff"`
}

// Load reads and validates the config file. A missing file is fine:
// everything has a default and repositories can come from the session.
func Load(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.setDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// DefaultPath returns the per-user config file location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "prdash", "config.yaml"), nil
}

// SeedRepos converts the configured repositories into session form.
func (c *Config) SeedRepos() []session.Repo {
	repos := make([]session.Repo, 0, len(c.Repos))
	for _, r := range c.Repos {
		repos = append(repos, session.Repo{Org: r.Owner, Repo: r.Name, Branch: r.BaseBranch})
	}
	return repos
}

func (c *Config) setDefaults() error {
	if c.LogFile == "" {
		dir, err := os.UserCacheDir()
		if err != nil {
			return fmt.Errorf("resolve cache dir: %w", err)
		}
		c.LogFile = filepath.Join(dir, "prdash", "prdash.log")
	}
	if c.MergeMethod == "" {
		c.MergeMethod = "squash"
	}
	if c.Theme == "" {
		c.Theme = "dark"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if c.TUI.RawInterval == "" {
		c.TUI.RawInterval = "30s"
	}
	refresh, err := time.ParseDuration(c.TUI.RawInterval)
	if err != nil {
		return fmt.Errorf("parse tui.refresh_interval %q: %w", c.TUI.RawInterval, err)
	}
	c.TUI.RefreshInterval = refresh

	if c.Bot.MaxInFlight == 0 {
		c.Bot.MaxInFlight = 2
	}
	if c.Bot.RetryBudget == 0 {
		c.Bot.RetryBudget = 3
	}
	if c.Bot.RawPoll == "" {
		c.Bot.RawPoll = "30s"
	}
	poll, err := time.ParseDuration(c.Bot.RawPoll)
	if err != nil {
		return fmt.Errorf("parse merge_bot.poll_interval %q: %w", c.Bot.RawPoll, err)
	}
	c.Bot.PollInterval = poll

	if c.Bot.RawBackoff == "" {
		c.Bot.RawBackoff = "1m"
	}
	backoff, err := time.ParseDuration(c.Bot.RawBackoff)
	if err != nil {
		return fmt.Errorf("parse merge_bot.backoff %q: %w", c.Bot.RawBackoff, err)
	}
	c.Bot.Backoff = backoff

	for i := range c.Repos {
		if c.Repos[i].BaseBranch == "" {
			c.Repos[i].BaseBranch = "main"
		}
	}
	return nil
}

func (c *Config) validate() error {
	switch c.MergeMethod {
	case "squash", "merge":
	default:
		return fmt.Errorf("invalid merge_method %q (squash|merge)", c.MergeMethod)
	}
	switch c.Theme {
	case "dark", "light":
	default:
		return fmt.Errorf("invalid theme %q (dark|light)", c.Theme)
	}
	if c.TUI.RefreshInterval <= 0 {
		return fmt.Errorf("tui.refresh_interval must be positive, got %s", c.TUI.RawInterval)
	}
	if c.Bot.MaxInFlight < 1 {
		return fmt.Errorf("merge_bot.max_in_flight must be at least 1, got %d", c.Bot.MaxInFlight)
	}
	if c.Bot.RetryBudget < 0 {
		return fmt.Errorf("merge_bot.retry_budget must not be negative, got %d", c.Bot.RetryBudget)
	}
	if c.Bot.PollInterval <= 0 {
		return fmt.Errorf("merge_bot.poll_interval must be positive, got %s", c.Bot.RawPoll)
	}
	if c.Bot.Backoff <= 0 {
		return fmt.Errorf("merge_bot.backoff must be positive, got %s", c.Bot.RawBackoff)
	}
	for i, r := range c.Repos {
		if r.Owner == "" {
			return fmt.Errorf("repos[%d]: owner required", i)
		}
		if r.Name == "" {
			return fmt.Errorf("repos[%d]: name required", i)
		}
	}
	return nil
}
