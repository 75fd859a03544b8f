// Package config handles the .faultctl directory every project gets: the
// journey log, user experiment definitions, saved reports, and config.yaml.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// FaultctlDir is the directory created in each project root.
	FaultctlDir = ".faultctl"

	// ExecutorSimulate runs experiments against the built-in simulator.
	ExecutorSimulate = "simulate"
	// ExecutorKubectl applies rendered manifests through kubectl.
	ExecutorKubectl = "kubectl"

	defaultSummaryModel  = "gemini-2.0-flash"
	defaultSummaryKeyEnv = "GEMINI_API_KEY"
)

const defaultProjectConfigYAML = `# faultctl project configuration
version: 1

# Executor backing experiment runs. "simulate" streams a scripted run without
# touching any cluster; "kubectl" applies the rendered manifest for real.
executor:
  mode: simulate
  # binary: kubectl
  # context: my-cluster
  # namespace: chaos-mesh

# Post-run log summarization. Requires the API key env var to be set.
summary:
  enabled: false
  model: gemini-2.0-flash
  api_key_env: GEMINI_API_KEY
`

// ExecutorConfig selects and parameterizes the run producer.
type ExecutorConfig struct {
	Mode      string `yaml:"mode"`
	Binary    string `yaml:"binary,omitempty"`
	Context   string `yaml:"context,omitempty"`
	Namespace string `yaml:"namespace,omitempty"`
}

// SummaryConfig controls the optional report summarizer.
type SummaryConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Model     string `yaml:"model,omitempty"`
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
}

// ProjectConfig models .faultctl/config.yaml.
type ProjectConfig struct {
	Version  int            `yaml:"version"`
	Executor ExecutorConfig `yaml:"executor"`
	Summary  SummaryConfig  `yaml:"summary"`
}

// Config holds the runtime configuration for one project.
type Config struct {
	// ProjectDir is the directory faultctl was launched from.
	ProjectDir string

	// FaultctlProjectDir is ProjectDir/.faultctl.
	FaultctlProjectDir string

	Project ProjectConfig
}

// InitFaultctlDir creates the .faultctl structure in the project directory:
//
// .faultctl/
// ├── logs/         <- wizard journey log
// ├── experiments/  <- user experiment definitions (*.yaml)
// └── reports/      <- saved run reports
func InitFaultctlDir(projectDir string) error {
	root := filepath.Join(projectDir, FaultctlDir)
	dirs := []string{
		filepath.Join(root, "logs"),
		filepath.Join(root, "experiments"),
		filepath.Join(root, "reports"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return ensureProjectConfig(filepath.Join(root, "config.yaml"))
}

// NewConfig loads project settings, applying defaults when config.yaml is
// missing.
func NewConfig(projectDir string) (*Config, error) {
	cfg := &Config{
		ProjectDir:         projectDir,
		FaultctlProjectDir: filepath.Join(projectDir, FaultctlDir),
		Project:            defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LogsDir returns the journey log directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.FaultctlProjectDir, "logs")
}

// ExperimentsDir returns the user experiment definitions directory.
func (c *Config) ExperimentsDir() string {
	return filepath.Join(c.FaultctlProjectDir, "experiments")
}

// ReportsDir returns where completed run reports are written.
func (c *Config) ReportsDir() string {
	return filepath.Join(c.FaultctlProjectDir, "reports")
}

// ProjectConfigPath returns the on-disk location of config.yaml.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.FaultctlProjectDir, "config.yaml")
}

// ExecutorMode returns the configured producer mode.
func (c *Config) ExecutorMode() string {
	return c.Project.Executor.Mode
}

// SummaryAPIKey resolves the summarizer key from the configured env var.
// Empty means the summarizer is unavailable.
func (c *Config) SummaryAPIKey() string {
	if !c.Project.Summary.Enabled {
		return ""
	}
	env := c.Project.Summary.APIKeyEnv
	if env == "" {
		env = defaultSummaryKeyEnv
	}
	return strings.TrimSpace(os.Getenv(env))
}

// Save persists the project configuration back to config.yaml.
func (c *Config) Save() error {
	c.Project.applyDefaults()
	c.Project.normalize()
	if err := c.Project.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.MkdirAll(c.FaultctlProjectDir, 0o755); err != nil {
		return fmt.Errorf("config: ensure dir: %w", err)
	}
	data, err := yaml.Marshal(c.Project)
	if err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}
	if err := os.WriteFile(c.ProjectConfigPath(), data, 0o644); err != nil {
		return fmt.Errorf("config: write project config: %w", err)
	}
	return nil
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	var parsed ProjectConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	parsed.applyDefaults()
	parsed.normalize()
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	c.Project = parsed
	return nil
}

func defaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version: 1,
		Executor: ExecutorConfig{
			Mode: ExecutorSimulate,
		},
		Summary: SummaryConfig{
			Model:     defaultSummaryModel,
			APIKeyEnv: defaultSummaryKeyEnv,
		},
	}
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if pc.Summary.Model == "" {
		pc.Summary.Model = defaultSummaryModel
	}
	if pc.Summary.APIKeyEnv == "" {
		pc.Summary.APIKeyEnv = defaultSummaryKeyEnv
	}
}

func (pc *ProjectConfig) normalize() {
	pc.Executor.Mode = strings.ToLower(strings.TrimSpace(pc.Executor.Mode))
	if pc.Executor.Mode == "" {
		pc.Executor.Mode = ExecutorSimulate
	}
	pc.Executor.Binary = strings.TrimSpace(pc.Executor.Binary)
	pc.Executor.Context = strings.TrimSpace(pc.Executor.Context)
	pc.Executor.Namespace = strings.TrimSpace(pc.Executor.Namespace)
	pc.Summary.Model = strings.TrimSpace(pc.Summary.Model)
	pc.Summary.APIKeyEnv = strings.TrimSpace(pc.Summary.APIKeyEnv)
}

func (pc ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	switch pc.Executor.Mode {
	case ExecutorSimulate, ExecutorKubectl:
	default:
		return fmt.Errorf("executor.mode must be %q or %q", ExecutorSimulate, ExecutorKubectl)
	}
	return nil
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0o644)
}
