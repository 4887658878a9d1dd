// Package config handles configuration loading for phasegate.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/ShayCichocki/phasegate/internal/checkpoint"
	"github.com/ShayCichocki/phasegate/internal/gates"
	"github.com/ShayCichocki/phasegate/internal/trigger"
)

// ProjectConfigName is the project config file searched for from the
// working directory upwards.
const ProjectConfigName = ".phasegate.yaml"

// Config holds all configuration for phasegate.
type Config struct {
	Options     OptionsConfig     `mapstructure:"options"`
	Triggers    TriggersConfig    `mapstructure:"triggers"`
	Checkpoints CheckpointsConfig `mapstructure:"checkpoints"`
	Workflow    WorkflowConfig    `mapstructure:"workflow"`
	Logging     LoggingConfig     `mapstructure:"logging"`

	// GateOverrides are the well-formed entries of the gates list.
	GateOverrides []gates.Override `mapstructure:"-"`
	// Warnings collects recoverable configuration problems. Offending
	// entries were dropped and defaults used in their place.
	Warnings []ConfigError `mapstructure:"-"`
	// Sources lists the config files that were read, lowest precedence first.
	Sources []string `mapstructure:"-"`
}

// OptionsConfig controls gate execution.
type OptionsConfig struct {
	FailFast               bool `mapstructure:"fail_fast"`
	RunOptionalGates       bool `mapstructure:"run_optional_gates"`
	ContinueOnFlakyFailure bool `mapstructure:"continue_on_flaky_failure"`
}

// TriggersConfig controls when edits trigger validation.
type TriggersConfig struct {
	BatchThreshold    int      `mapstructure:"batch_threshold"`
	SensitivePatterns []string `mapstructure:"sensitive_patterns"`
}

// CheckpointsConfig controls checkpoint storage.
type CheckpointsConfig struct {
	Dir              string `mapstructure:"dir"`
	RetentionDays    int    `mapstructure:"retention_days"`
	OnValidationPass bool   `mapstructure:"on_validation_pass"`
}

// WorkflowConfig holds the default workflow started by `phase start`.
type WorkflowConfig struct {
	ID     string   `mapstructure:"id"`
	Phases []string `mapstructure:"phases"`
}

// LoggingConfig controls the log file.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// ExecutorOptions converts the options section for the gate executor.
func (c *Config) ExecutorOptions() gates.Options {
	return gates.Options{
		FailFast:               c.Options.FailFast,
		RunOptionalGates:       c.Options.RunOptionalGates,
		ContinueOnFlakyFailure: c.Options.ContinueOnFlakyFailure,
	}
}

// ResolveGates applies the configured gate overrides to the detected gates.
// An override naming a gate that was not detected and giving no command is
// dropped and recorded in Warnings.
func (c *Config) ResolveGates(detected []gates.Definition) []gates.Definition {
	defs, ignored := gates.Merge(detected, c.GateOverrides)
	source := strings.Join(c.Sources, ", ")
	for _, o := range ignored {
		c.Warnings = append(c.Warnings, ConfigError{
			Source:  source,
			Field:   "gates",
			Message: fmt.Sprintf("gate %q was not detected and has no command; entry ignored", o.Name),
		})
	}
	return defs
}

// CheckpointDir resolves the checkpoint directory against root.
func (c *Config) CheckpointDir(root string) string {
	if filepath.IsAbs(c.Checkpoints.Dir) {
		return c.Checkpoints.Dir
	}
	return filepath.Join(root, c.Checkpoints.Dir)
}

// LogFile resolves the log file against root. Empty disables logging.
func (c *Config) LogFile(root string) string {
	if c.Logging.File == "" || filepath.IsAbs(c.Logging.File) {
		return c.Logging.File
	}
	return filepath.Join(root, c.Logging.File)
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (PHASEGATE_OPTIONS_FAIL_FAST, ...)
// 2. Project config (.phasegate.yaml in startDir or a parent)
// 3. User config (~/.config/phasegate/config.yaml)
// 4. Built-in defaults
//
// Malformed files and entries never fail the load; they are reported in
// Config.Warnings.
func Load(startDir string) *Config {
	v := newViper()
	var warnings []ConfigError
	var sources []string

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			warnings = append(warnings, ConfigError{Source: GetUserConfigPath(), Message: err.Error()})
		}
	} else {
		sources = append(sources, v.ConfigFileUsed())
	}

	if projectConfig := findProjectConfig(startDir); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			warnings = append(warnings, ConfigError{Source: projectConfig, Message: err.Error()})
		} else if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			warnings = append(warnings, ConfigError{Source: projectConfig, Message: err.Error()})
		} else {
			sources = append(sources, projectConfig)
		}
	}

	cfg := decode(v, strings.Join(sources, ", "))
	cfg.Warnings = append(warnings, cfg.Warnings...)
	cfg.Sources = sources
	return cfg
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := decode(v, path)
	cfg.Sources = []string{path}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("PHASEGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// decode unmarshals v into a Config, falling back to defaults for anything
// that does not validate.
func decode(v *viper.Viper, source string) *Config {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		cfg = Default()
		cfg.Warnings = append(cfg.Warnings, ConfigError{Source: source, Message: err.Error()})
	}

	overrides, gateErrs := parseGates(v.Get("gates"), source)
	cfg.GateOverrides = overrides
	cfg.Warnings = append(cfg.Warnings, gateErrs...)
	cfg.Warnings = append(cfg.Warnings, cfg.validate(source)...)
	return cfg
}

// validate replaces out-of-range values with defaults.
func (c *Config) validate(source string) []ConfigError {
	var errs []ConfigError
	def := Default()

	if c.Triggers.BatchThreshold <= 0 {
		errs = append(errs, ConfigError{Source: source, Field: "triggers.batch_threshold",
			Message: fmt.Sprintf("must be positive, got %d; using %d", c.Triggers.BatchThreshold, def.Triggers.BatchThreshold)})
		c.Triggers.BatchThreshold = def.Triggers.BatchThreshold
	}
	if c.Checkpoints.RetentionDays <= 0 {
		errs = append(errs, ConfigError{Source: source, Field: "checkpoints.retention_days",
			Message: fmt.Sprintf("must be positive, got %d; using %d", c.Checkpoints.RetentionDays, def.Checkpoints.RetentionDays)})
		c.Checkpoints.RetentionDays = def.Checkpoints.RetentionDays
	}
	if strings.TrimSpace(c.Checkpoints.Dir) == "" {
		c.Checkpoints.Dir = def.Checkpoints.Dir
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
		c.Logging.Level = strings.ToLower(c.Logging.Level)
	default:
		errs = append(errs, ConfigError{Source: source, Field: "logging.level",
			Message: fmt.Sprintf("unknown level %q; using %s", c.Logging.Level, def.Logging.Level)})
		c.Logging.Level = def.Logging.Level
	}
	return errs
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath(startDir string) string {
	return findProjectConfig(startDir)
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("options.fail_fast", true)
	v.SetDefault("options.run_optional_gates", false)
	v.SetDefault("options.continue_on_flaky_failure", false)

	v.SetDefault("triggers.batch_threshold", trigger.DefaultBatchThreshold)
	v.SetDefault("triggers.sensitive_patterns", []string{})

	v.SetDefault("checkpoints.dir", checkpoint.DefaultDir)
	v.SetDefault("checkpoints.retention_days", checkpoint.DefaultRetentionDays)
	v.SetDefault("checkpoints.on_validation_pass", true)

	v.SetDefault("workflow.id", "")
	v.SetDefault("workflow.phases", []string{})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", filepath.Join(".phasegate", "logs", "phasegate.log"))
}

// getUserConfigDir returns the XDG config directory for phasegate.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "phasegate")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "phasegate")
	}
	return filepath.Join(home, ".config", "phasegate")
}

// findProjectConfig searches for .phasegate.yaml in startDir and its parents.
func findProjectConfig(startDir string) string {
	dir := startDir
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return ""
		}
		dir = cwd
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(dir, ProjectConfigName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Options: OptionsConfig{
			FailFast: true,
		},
		Triggers: TriggersConfig{
			BatchThreshold: trigger.DefaultBatchThreshold,
		},
		Checkpoints: CheckpointsConfig{
			Dir:              checkpoint.DefaultDir,
			RetentionDays:    checkpoint.DefaultRetentionDays,
			OnValidationPass: true,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  filepath.Join(".phasegate", "logs", "phasegate.log"),
		},
	}
}
