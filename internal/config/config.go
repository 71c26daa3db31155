package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/iambrandonn/actuator/internal/fsutil"
)

// FileNames are the config file names FindInTree looks for, in order
var FileNames = []string{"actuator.json", "actuator.yaml", "actuator.yml"}

// Approval modes
const (
	ApprovalPrompt = "prompt"
	ApprovalAuto   = "auto"
	ApprovalDeny   = "deny"
)

// Config represents the actuator.json (or actuator.yaml) configuration file
type Config struct {
	Version       string    `json:"version" yaml:"version"`
	WorkspaceRoot string    `json:"workspace_root" yaml:"workspace_root"`
	Execution     Execution `json:"execution" yaml:"execution"`
	Tasks         Tasks     `json:"tasks" yaml:"tasks"`
	Logging       Logging   `json:"logging" yaml:"logging"`
	Approval      Approval  `json:"approval" yaml:"approval"`
}

// Execution configures command runs
type Execution struct {
	TimeoutS        int               `json:"timeout_s" yaml:"timeout_s"`
	TailLines       int               `json:"tail_lines" yaml:"tail_lines"`
	RecoveryEnabled *bool             `json:"recovery_enabled,omitempty" yaml:"recovery_enabled,omitempty"`
	Env             map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
}

// Tasks configures in-memory task retention
type Tasks struct {
	RetentionS     int `json:"retention_s" yaml:"retention_s"`
	SweepIntervalS int `json:"sweep_interval_s" yaml:"sweep_interval_s"`
}

// Logging configures the process logger
type Logging struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// Approval selects the gate for proposals that need a human decision
type Approval struct {
	Mode string `json:"mode" yaml:"mode"`
}

// GenerateDefault creates a new Config with default values
func GenerateDefault() *Config {
	enabled := true
	return &Config{
		Version:       "1.0",
		WorkspaceRoot: ".",
		Execution: Execution{
			TimeoutS:        600,
			TailLines:       200,
			RecoveryEnabled: &enabled,
		},
		Tasks: Tasks{
			RetentionS:     3600,
			SweepIntervalS: 60,
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
		Approval: Approval{
			Mode: ApprovalPrompt,
		},
	}
}

// Validate checks the configuration for errors and returns user-friendly error messages
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("configuration error: missing required field 'version'\n\nHint: Add a version field like:\n  \"version\": \"1.0\"")
	}

	if c.Execution.TimeoutS < 0 {
		return fmt.Errorf("configuration error: invalid 'execution.timeout_s' value: %d\n\nHint: Use a positive number of seconds, or 0 for the default (600)", c.Execution.TimeoutS)
	}
	if c.Execution.TailLines < 0 {
		return fmt.Errorf("configuration error: invalid 'execution.tail_lines' value: %d\n\nHint: Use a positive line count, or 0 for the default (200)", c.Execution.TailLines)
	}
	for key := range c.Execution.Env {
		if key == "" || strings.ContainsAny(key, "=\x00") {
			return fmt.Errorf("configuration error: invalid environment variable name %q in 'execution.env'", key)
		}
	}

	if c.Tasks.RetentionS < 0 || c.Tasks.SweepIntervalS < 0 {
		return fmt.Errorf("configuration error: 'tasks.retention_s' and 'tasks.sweep_interval_s' must not be negative\n\nHint: Set retention_s to 0 to keep finished tasks forever")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("configuration error: invalid 'logging.level' value: %q\n\nHint: Use one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("configuration error: invalid 'logging.format' value: %q\n\nHint: Use text or json", c.Logging.Format)
	}

	switch c.Approval.Mode {
	case "", ApprovalPrompt, ApprovalAuto, ApprovalDeny:
	default:
		return fmt.Errorf("configuration error: invalid 'approval.mode' value: %q\n\nHint: Use one of prompt, auto, deny:\n  \"approval\": {\n    \"mode\": \"prompt\"\n  }", c.Approval.Mode)
	}

	return nil
}

// Timeout returns the per-command timeout; zero means the runner default
func (e Execution) Timeout() time.Duration {
	return time.Duration(e.TimeoutS) * time.Second
}

// EnvList returns Env as sorted KEY=VALUE pairs
func (e Execution) EnvList() []string {
	out := make([]string, 0, len(e.Env))
	for k, v := range e.Env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// Retention returns how long finished tasks are kept
func (t Tasks) Retention() time.Duration {
	return time.Duration(t.RetentionS) * time.Second
}

// SweepInterval returns how often finished tasks are swept
func (t Tasks) SweepInterval() time.Duration {
	return time.Duration(t.SweepIntervalS) * time.Second
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// LoadFromFile loads a configuration from a JSON or YAML file, chosen by extension
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if isYAML(path) {
		err = yaml.Unmarshal(data, &cfg)
	} else {
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return &cfg, nil
}

// SaveToFile writes the configuration atomically with 0600 permissions
func (c *Config) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := fsutil.AtomicWriteMode(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}

// FindInTree walks up from startDir looking for one of FileNames. It returns
// "" when no config file exists in startDir or any parent.
func FindInTree(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", startDir, err)
	}

	for {
		for _, name := range FileNames {
			candidate := filepath.Join(dir, name)
			info, err := os.Stat(candidate)
			if err == nil && !info.IsDir() {
				return candidate, nil
			}
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				return "", fmt.Errorf("failed to check %s: %w", candidate, err)
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// WorkspaceRootFor resolves cfg.WorkspaceRoot relative to the directory of
// the config file it was loaded from
func WorkspaceRootFor(cfg *Config, configPath string) (string, error) {
	root := cfg.WorkspaceRoot
	if root == "" {
		root = "."
	}
	if !filepath.IsAbs(root) {
		root = filepath.Join(filepath.Dir(configPath), root)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve workspace root %s: %w", root, err)
	}
	return abs, nil
}
