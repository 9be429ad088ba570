// Package config provides server-level configuration for issuegate.
// It supports loading configuration from an issuegate.yaml file with
// proper precedence: CLI flags > environment > config file > defaults.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

const (
	// ConfigFile is the default name of the configuration file
	ConfigFile = "issuegate.yaml"

	// DefaultListen is the default listen address
	DefaultListen = ":3000"

	// DefaultRepoListLimit caps the last-resort repository listing
	DefaultRepoListLimit = 5

	// DefaultBackend is the work-item backend used when none is configured
	DefaultBackend = "github"
)

// ServerConfig represents the configuration of the issuegate server.
// Every field can be set in the config file and overridden via environment
// variables; the zero value of each field means "use the default".
type ServerConfig struct {
	// Listen is the address the HTTP server binds to (e.g. ":3000")
	Listen string `yaml:"listen,omitempty"`

	// GitHubBaseURL overrides the GitHub API base URL (for GHES or tests)
	GitHubBaseURL string `yaml:"github_base_url,omitempty"`

	// CopilotEndpoint overrides the completion endpoint the chat proxy
	// streams from
	CopilotEndpoint string `yaml:"copilot_endpoint,omitempty"`

	// AzureBaseURL overrides the Azure DevOps base URL
	AzureBaseURL string `yaml:"azure_base_url,omitempty"`

	// Backend selects the default issue backend ("github" or "azure-devops")
	Backend string `yaml:"backend,omitempty"`

	// RepoListLimit caps the last-resort repository listing
	RepoListLimit int `yaml:"repo_list_limit,omitempty"`

	// DefaultLabels are applied to issues whose intent carries no labels
	DefaultLabels []string `yaml:"default_labels,omitempty"`

	// SystemPrompts replace the built-in system prompts of the chat proxy
	SystemPrompts []string `yaml:"system_prompts,omitempty"`

	// LogLevel is the server log level (debug, info, warn, error)
	LogLevel string `yaml:"log_level,omitempty"`
}

// Load loads the server configuration from the given path.
//
// If path is empty, the default file name is tried in the current directory.
// A missing file is not an error: it yields a zero config with environment
// overrides applied. A file that exists but cannot be parsed is an error.
func Load(path string) (*ServerConfig, error) {
	explicit := path != ""
	if path == "" {
		path = ConfigFile
	}

	var cfg ServerConfig
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case os.IsNotExist(err) && !explicit:
		// no config file, environment and defaults only
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg.applyEnv()
	return &cfg, nil
}

// applyEnv overrides file values with ISSUEGATE_* environment variables.
// PORT is honored as a fallback listen address for platform compatibility.
func (c *ServerConfig) applyEnv() {
	if v := os.Getenv("ISSUEGATE_LISTEN"); v != "" {
		c.Listen = v
	} else if v := os.Getenv("PORT"); v != "" {
		c.Listen = ":" + v
	}
	if v := os.Getenv("ISSUEGATE_GITHUB_BASE_URL"); v != "" {
		c.GitHubBaseURL = v
	}
	if v := os.Getenv("ISSUEGATE_COPILOT_ENDPOINT"); v != "" {
		c.CopilotEndpoint = v
	}
	if v := os.Getenv("ISSUEGATE_AZURE_BASE_URL"); v != "" {
		c.AzureBaseURL = v
	}
	if v := os.Getenv("ISSUEGATE_BACKEND"); v != "" {
		c.Backend = v
	}
	if v := os.Getenv("ISSUEGATE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("ISSUEGATE_REPO_LIST_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.RepoListLimit = n
		}
	}
}

// ResolveString returns the effective value for a string configuration field.
// Precedence: cliValue > configValue > defaultValue.
// Returns the effective value and its source ("cli", "config", or "default").
func (c *ServerConfig) ResolveString(cliValue, configValue, defaultValue string) (string, string) {
	if cliValue != "" {
		return cliValue, "cli"
	}
	if configValue != "" {
		return configValue, "config"
	}
	return defaultValue, "default"
}

// ResolveListen returns the effective listen address and its source.
func (c *ServerConfig) ResolveListen(cliValue string) (string, string) {
	return c.ResolveString(cliValue, c.Listen, DefaultListen)
}

// ResolveBackend returns the effective issue backend name and its source.
func (c *ServerConfig) ResolveBackend(cliValue string) (string, string) {
	return c.ResolveString(cliValue, c.Backend, DefaultBackend)
}

// ResolveLogLevel returns the effective log level and its source.
func (c *ServerConfig) ResolveLogLevel(cliValue string) (string, string) {
	return c.ResolveString(cliValue, c.LogLevel, "info")
}

// ResolveRepoListLimit returns the effective listing cap.
func (c *ServerConfig) ResolveRepoListLimit() int {
	if c.RepoListLimit > 0 {
		return c.RepoListLimit
	}
	return DefaultRepoListLimit
}
