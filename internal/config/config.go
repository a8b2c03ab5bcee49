package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all envdeploy configuration.
type Config struct {
	// Workspace resolution
	Workspace WorkspaceConfig `yaml:"workspace"`

	// Project matching rules
	Match MatchConfig `yaml:"match"`

	// Deployment layout
	Deploy DeployConfig `yaml:"deploy"`

	// Config text transformation
	Transform TransformConfig `yaml:"transform"`

	// Debug launch settings written to the per-user project file
	Launch LaunchConfig `yaml:"launch"`

	// Startup-project registration
	Startup StartupConfig `yaml:"startup"`

	// Duplicate-key share scan
	Scan ScanConfig `yaml:"scan"`
}

// WorkspaceConfig locates workspace roots.
type WorkspaceConfig struct {
	// BasePath is the user-scoped directory the workspace selector is
	// resolved against.
	BasePath string `yaml:"base_path"`
}

// MatchConfig configures project resolution.
type MatchConfig struct {
	// NamespacePrefix is the organization prefix tried when a loose
	// pattern has no exact match (e.g. "Service" -> "Kernel.Service").
	NamespacePrefix string `yaml:"namespace_prefix"`

	// ProjectExtension is the project definition file extension.
	ProjectExtension string `yaml:"project_extension"`

	// Predicates is the ordered disambiguation rule list. Known rules:
	// exact, prefixed, shallowest.
	Predicates []string `yaml:"predicates"`
}

// DeployConfig configures the deployment artifact layout.
type DeployConfig struct {
	// Dir is the deployment subdirectory under the project directory.
	Dir string `yaml:"dir"`

	// TargetFileName is the well-known build-output config filename.
	TargetFileName string `yaml:"target_file_name"`

	// Backup controls whether the target file is backed up before a write.
	Backup bool `yaml:"backup"`
}

// TransformConfig configures the environment substitutions.
type TransformConfig struct {
	// HostnamePlaceholder is the literal token replaced by
	// "<environment>.<domain_suffix>".
	HostnamePlaceholder string `yaml:"hostname_placeholder"`

	// DomainSuffix is appended to the environment name to form the host.
	DomainSuffix string `yaml:"domain_suffix"`

	// TargetDrive is the drive letter every drive root is rewritten to.
	TargetDrive string `yaml:"target_drive"`
}

// LaunchConfig configures the debug-launch settings. Program and
// Arguments may contain {environment}, {instance} and {project}
// placeholders.
type LaunchConfig struct {
	Program   string `yaml:"program"`
	Arguments string `yaml:"arguments"`
}

// StartupConfig configures the optional startup-project registration.
type StartupConfig struct {
	// RegisterCommand is the external helper invoked to register the
	// startup project. Empty means registration is unavailable. The
	// argument list may contain a {project} placeholder.
	RegisterCommand []string `yaml:"register_command"`

	// PromptTimeout bounds the interactive y/N prompt.
	PromptTimeout string `yaml:"prompt_timeout"`

	// CommandTimeout bounds the helper invocation.
	CommandTimeout string `yaml:"command_timeout"`
}

// ScanConfig configures the duplicate-key share scan.
type ScanConfig struct {
	Workers     int    `yaml:"workers"`
	RootTimeout string `yaml:"root_timeout"`
	KeyPattern  string `yaml:"key_pattern"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()

	return &Config{
		Workspace: WorkspaceConfig{
			BasePath: filepath.Join(home, "source", "repos"),
		},
		Match: MatchConfig{
			NamespacePrefix:  "Kernel.",
			ProjectExtension: ".csproj",
			Predicates:       []string{"exact", "prefixed", "shallowest"},
		},
		Deploy: DeployConfig{
			Dir:            ".Deploy",
			TargetFileName: "App.config",
			Backup:         true,
		},
		Transform: TransformConfig{
			HostnamePlaceholder: "localhost",
			DomainSuffix:        "corp.kernel.local",
			TargetDrive:         "D",
		},
		Launch: LaunchConfig{
			Program:   `D:\Services\{instance}\{instance}.Host.exe`,
			Arguments: "--environment {environment}",
		},
		Startup: StartupConfig{
			PromptTimeout:  "5s",
			CommandTimeout: "10s",
		},
		Scan: ScanConfig{
			Workers:     4,
			RootTimeout: "30s",
			KeyPattern:  `<add\s+key="([^"]+)"`,
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if base := os.Getenv("ENVDEPLOY_WORKSPACE_BASE"); base != "" {
		c.Workspace.BasePath = base
	}
	if suffix := os.Getenv("ENVDEPLOY_DOMAIN_SUFFIX"); suffix != "" {
		c.Transform.DomainSuffix = suffix
	}
	if drive := os.Getenv("ENVDEPLOY_TARGET_DRIVE"); drive != "" {
		c.Transform.TargetDrive = drive
	}
	if prefix := os.Getenv("ENVDEPLOY_NAMESPACE_PREFIX"); prefix != "" {
		c.Match.NamespacePrefix = prefix
	}
}

// GetPromptTimeout parses the prompt timeout with a 5s fallback.
func (c *Config) GetPromptTimeout() time.Duration {
	d, err := time.ParseDuration(c.Startup.PromptTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// GetCommandTimeout parses the registration command timeout with a 10s
// fallback.
func (c *Config) GetCommandTimeout() time.Duration {
	d, err := time.ParseDuration(c.Startup.CommandTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// GetRootTimeout parses the per-root scan timeout with a 30s fallback.
func (c *Config) GetRootTimeout() time.Duration {
	d, err := time.ParseDuration(c.Scan.RootTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// ExpandLaunch fills the launch placeholders for a concrete run.
func (c *Config) ExpandLaunch(project, instance, environment string) (program, arguments string) {
	r := strings.NewReplacer(
		"{project}", project,
		"{instance}", instance,
		"{environment}", environment,
	)
	return r.Replace(c.Launch.Program), r.Replace(c.Launch.Arguments)
}

// knownPredicates are the resolver rules Validate accepts.
var knownPredicates = map[string]bool{
	"exact":      true,
	"prefixed":   true,
	"shallowest": true,
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	if c.Workspace.BasePath == "" {
		return fmt.Errorf("workspace.base_path is required")
	}
	if len(c.Transform.TargetDrive) != 1 {
		return fmt.Errorf("transform.target_drive must be a single letter, got %q", c.Transform.TargetDrive)
	}
	d := c.Transform.TargetDrive[0]
	if (d < 'A' || d > 'Z') && (d < 'a' || d > 'z') {
		return fmt.Errorf("transform.target_drive must be a letter, got %q", c.Transform.TargetDrive)
	}
	if c.Deploy.TargetFileName == "" {
		return fmt.Errorf("deploy.target_file_name is required")
	}
	if len(c.Match.Predicates) == 0 {
		return fmt.Errorf("match.predicates must not be empty")
	}
	for _, p := range c.Match.Predicates {
		if !knownPredicates[p] {
			return fmt.Errorf("unknown match predicate %q", p)
		}
	}
	if _, err := time.ParseDuration(c.Startup.PromptTimeout); err != nil {
		return fmt.Errorf("invalid startup.prompt_timeout: %w", err)
	}
	return nil
}
