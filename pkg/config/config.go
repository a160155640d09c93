// Package config manages workflow configuration.
//
// Configuration is loaded once at startup from a YAML file and accessed
// through GetConfig(), which returns the config BY VALUE (a copy, not a
// reference) so callers cannot mutate shared state.
package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	cfg    *Config
	loaded bool
	mu     sync.RWMutex
)

// RoleConfig selects the provider and model for one agent role.
type RoleConfig struct {
	Provider string `yaml:"provider"` // "anthropic" or "openai"
	Model    string `yaml:"model"`
}

// AgentsConfig holds per-role LLM selection.
type AgentsConfig struct {
	Manager RoleConfig `yaml:"manager"`
	BA      RoleConfig `yaml:"ba"`
	Dev     RoleConfig `yaml:"dev"`
	Tester  RoleConfig `yaml:"tester"`
}

// WorkflowConfig holds workflow execution knobs. Durations are expressed in
// seconds in the YAML file.
type WorkflowConfig struct {
	MaxIterations        int `yaml:"max_iterations"`
	StepTimeoutSeconds   int `yaml:"step_timeout_seconds"`
	MaxValidationRetries int `yaml:"max_validation_retries"`
	MaxTransientRetries  int `yaml:"max_transient_retries"`
	RetryBackoffSeconds  int `yaml:"retry_backoff_seconds"`
	PromptTokenBudget    int `yaml:"prompt_token_budget"`
}

// StorageConfig holds persistence and workspace locations.
type StorageConfig struct {
	DatabasePath  string `yaml:"database_path"`
	WorkspaceRoot string `yaml:"workspace_root"`
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

// Config is the root configuration.
type Config struct {
	Agents   AgentsConfig   `yaml:"agents"`
	Workflow WorkflowConfig `yaml:"workflow"`
	Storage  StorageConfig  `yaml:"storage"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// StepTimeout returns the per-invocation timeout as a duration.
func (w *WorkflowConfig) StepTimeout() time.Duration {
	return time.Duration(w.StepTimeoutSeconds) * time.Second
}

// RetryBackoff returns the base backoff between transient retries.
func (w *WorkflowConfig) RetryBackoff() time.Duration {
	return time.Duration(w.RetryBackoffSeconds) * time.Second
}

// DefaultConfig returns a config with working defaults for every field.
func DefaultConfig() Config {
	return Config{
		Agents: AgentsConfig{
			Manager: RoleConfig{Provider: "anthropic", Model: "claude-sonnet-4-5"},
			BA:      RoleConfig{Provider: "anthropic", Model: "claude-sonnet-4-5"},
			Dev:     RoleConfig{Provider: "anthropic", Model: "claude-sonnet-4-5"},
			Tester:  RoleConfig{Provider: "openai", Model: "gpt-4o"},
		},
		Workflow: WorkflowConfig{
			MaxIterations:        10,
			StepTimeoutSeconds:   120,
			MaxValidationRetries: 3,
			MaxTransientRetries:  2,
			RetryBackoffSeconds:  2,
			PromptTokenBudget:    8000,
		},
		Storage: StorageConfig{
			DatabasePath:  "devteam.db",
			WorkspaceRoot: "workspace",
		},
		Metrics: MetricsConfig{
			Enabled:    false,
			ListenAddr: ":9090",
		},
	}
}

// LoadConfig loads configuration from the given YAML file, applying defaults
// for omitted fields. Must be called once before GetConfig. An empty path
// loads pure defaults.
func LoadConfig(path string) error {
	mu.Lock()
	defer mu.Unlock()

	c := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &c); err != nil {
			return fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := validate(&c); err != nil {
		return err
	}

	cfg = &c
	loaded = true
	return nil
}

// GetConfig returns a copy of the loaded configuration.
func GetConfig() (Config, error) {
	mu.RLock()
	defer mu.RUnlock()

	if !loaded {
		return Config{}, fmt.Errorf("config not loaded: call LoadConfig first")
	}
	return *cfg, nil
}

// ResetForTest clears the singleton so tests can reload cleanly.
func ResetForTest() {
	mu.Lock()
	defer mu.Unlock()
	cfg = nil
	loaded = false
}

func validate(c *Config) error {
	roles := map[string]*RoleConfig{
		"manager": &c.Agents.Manager,
		"ba":      &c.Agents.BA,
		"dev":     &c.Agents.Dev,
		"tester":  &c.Agents.Tester,
	}
	for name, role := range roles {
		if role.Provider != "anthropic" && role.Provider != "openai" {
			return fmt.Errorf("invalid provider for %s agent: %q", name, role.Provider)
		}
		if role.Model == "" {
			return fmt.Errorf("missing model for %s agent", name)
		}
	}

	if c.Workflow.MaxIterations <= 0 {
		return fmt.Errorf("workflow.max_iterations must be positive, got %d", c.Workflow.MaxIterations)
	}
	if c.Workflow.StepTimeoutSeconds <= 0 {
		return fmt.Errorf("workflow.step_timeout_seconds must be positive, got %d", c.Workflow.StepTimeoutSeconds)
	}
	if c.Workflow.MaxValidationRetries < 0 {
		return fmt.Errorf("workflow.max_validation_retries must not be negative, got %d", c.Workflow.MaxValidationRetries)
	}
	if c.Storage.DatabasePath == "" {
		return fmt.Errorf("storage.database_path must not be empty")
	}
	if c.Storage.WorkspaceRoot == "" {
		return fmt.Errorf("storage.workspace_root must not be empty")
	}
	return nil
}
