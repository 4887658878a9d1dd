package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"
)

// ProjectFile is the on-disk shape of .phasegate.yaml.
type ProjectFile struct {
	Gates       []GateEntry       `yaml:"gates,omitempty"`
	Options     ProjectOptions    `yaml:"options"`
	Triggers    ProjectTriggers   `yaml:"triggers"`
	Checkpoints ProjectCheckpoint `yaml:"checkpoints"`
	Workflow    ProjectWorkflow   `yaml:"workflow,omitempty"`
	Logging     ProjectLogging    `yaml:"logging"`
}

// GateEntry is one item of the gates list.
type GateEntry struct {
	Name           string   `yaml:"name"`
	Command        []string `yaml:"command,flow"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Enabled        bool     `yaml:"enabled"`
	Optional       bool     `yaml:"optional,omitempty"`
}

// ProjectOptions mirrors the options section.
type ProjectOptions struct {
	FailFast               bool `yaml:"fail_fast"`
	RunOptionalGates       bool `yaml:"run_optional_gates"`
	ContinueOnFlakyFailure bool `yaml:"continue_on_flaky_failure"`
}

// ProjectTriggers mirrors the triggers section.
type ProjectTriggers struct {
	BatchThreshold    int      `yaml:"batch_threshold"`
	SensitivePatterns []string `yaml:"sensitive_patterns,omitempty"`
}

// ProjectCheckpoint mirrors the checkpoints section.
type ProjectCheckpoint struct {
	Dir              string `yaml:"dir"`
	RetentionDays    int    `yaml:"retention_days"`
	OnValidationPass bool   `yaml:"on_validation_pass"`
}

// ProjectWorkflow mirrors the workflow section.
type ProjectWorkflow struct {
	ID     string   `yaml:"id,omitempty"`
	Phases []string `yaml:"phases,omitempty"`
}

// ProjectLogging mirrors the logging section.
type ProjectLogging struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// NewProjectFile builds a project file from cfg and the given gates.
func NewProjectFile(cfg *Config, defs []GateEntry) *ProjectFile {
	return &ProjectFile{
		Gates: defs,
		Options: ProjectOptions{
			FailFast:               cfg.Options.FailFast,
			RunOptionalGates:       cfg.Options.RunOptionalGates,
			ContinueOnFlakyFailure: cfg.Options.ContinueOnFlakyFailure,
		},
		Triggers: ProjectTriggers{
			BatchThreshold:    cfg.Triggers.BatchThreshold,
			SensitivePatterns: cfg.Triggers.SensitivePatterns,
		},
		Checkpoints: ProjectCheckpoint{
			Dir:              cfg.Checkpoints.Dir,
			RetentionDays:    cfg.Checkpoints.RetentionDays,
			OnValidationPass: cfg.Checkpoints.OnValidationPass,
		},
		Workflow: ProjectWorkflow{
			ID:     cfg.Workflow.ID,
			Phases: cfg.Workflow.Phases,
		},
		Logging: ProjectLogging{
			Level: cfg.Logging.Level,
			File:  cfg.Logging.File,
		},
	}
}

const projectFileHeader = `# phasegate project configuration
# Gates listed here override detected gates with the same name; new names
# are added. Commands are argument lists and never run through a shell.
`

// WriteProjectFile writes pf to dir/.phasegate.yaml. An existing file is
// only replaced when force is set.
func WriteProjectFile(dir string, pf *ProjectFile, force bool) (string, error) {
	path := filepath.Join(dir, ProjectConfigName)
	if _, err := os.Stat(path); err == nil && !force {
		return path, fmt.Errorf("%s already exists", path)
	}

	data, err := yaml.Marshal(pf)
	if err != nil {
		return path, fmt.Errorf("marshal project config: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(projectFileHeader), data...), 0644); err != nil {
		return path, fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
