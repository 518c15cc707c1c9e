package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// DefaultRepo is one entry of the static fallback table used when a
// DEV ticket has no linked merge requests.
type DefaultRepo struct {
	// ProjectID is the GitLab project identifier. GitLab accepts both
	// the numeric ID and the URL-encoded path, so it is kept a string.
	ProjectID string `mapstructure:"project_id" yaml:"project_id"`

	// Name is the repository name, used in logs and by the bulk
	// sweep's project-ID lookup.
	Name string `mapstructure:"name" yaml:"name"`
}

// JiraConfig holds connection settings for the Jira REST API.
type JiraConfig struct {
	// BaseURL is the root URL of the Jira instance
	// (e.g., https://jira.corp.example.com).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// Username is the basic-auth user for the REST API. The password
	// comes from the keyring or a flag, never from the config file.
	Username string `mapstructure:"username" yaml:"username"`
}

// GitLabConfig holds connection settings for the GitLab REST API.
type GitLabConfig struct {
	// BaseURL is the API v4 root
	// (e.g., https://gitlab.corp.example.com/api/v4).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// Config is the top-level application configuration. It is built once
// at startup and treated as immutable for the lifetime of the run.
type Config struct {
	Jira   JiraConfig   `mapstructure:"jira" yaml:"jira"`
	GitLab GitLabConfig `mapstructure:"gitlab" yaml:"gitlab"`

	// MaxTickets is the ticket-count ceiling; a run with more tickets
	// than this is rejected before any processing.
	MaxTickets int `mapstructure:"max_tickets" yaml:"max_tickets"`

	// DefaultRepos is the fallback project table for DEV tickets with
	// no linked merge requests, in definition order.
	DefaultRepos []DefaultRepo `mapstructure:"default_repos" yaml:"default_repos"`

	// RepoGroups maps a group label (DEV, QA, Safety, ...) to the
	// repositories swept by the bulk revoke-all mode.
	RepoGroups map[string][]DefaultRepo `mapstructure:"repo_groups" yaml:"repo_groups"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/branchrevoker/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "branchrevoker", "config.yaml")
}

// LoadConfig reads configuration from the given YAML file path using
// Viper and validates the fields every run depends on.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("max_tickets", 30)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks that the configuration is complete enough to run.
func (c *Config) Validate() error {
	if c.Jira.BaseURL == "" {
		return fmt.Errorf("jira.base_url is required")
	}
	if c.Jira.Username == "" {
		return fmt.Errorf("jira.username is required")
	}
	if c.GitLab.BaseURL == "" {
		return fmt.Errorf("gitlab.base_url is required")
	}
	if c.MaxTickets < 1 {
		return fmt.Errorf("max_tickets must be positive, got %d", c.MaxTickets)
	}
	return nil
}
