// Package gates detects, configures and runs validation gates: external
// type-check, build, lint and test commands run against a working tree.
package gates

import (
	"fmt"
	"strings"

	"github.com/google/shlex"

	"github.com/ShayCichocki/phasegate/internal/errparse"
)

// DefaultTimeoutSeconds bounds a gate that does not configure its own timeout.
const DefaultTimeoutSeconds = 60

// Definition describes one validation gate.
// Definitions are recomputed on every invocation and never persisted.
type Definition struct {
	// Name identifies the gate and keys overrides.
	Name string `json:"name"`
	// Command is the argument vector. It is never passed through a shell.
	Command []string `json:"command"`
	// TimeoutSeconds bounds a single run of the gate.
	TimeoutSeconds int `json:"timeout_seconds"`
	// Enabled gates run; disabled gates never run.
	Enabled bool `json:"enabled"`
	// Optional gates are skipped unless optional gates are requested, and
	// never fail a run.
	Optional bool `json:"optional"`
	// Kind selects the error parser. Derived from Name when empty.
	Kind errparse.Kind `json:"kind"`
}

// Timeout returns the effective timeout in seconds.
func (d Definition) Timeout() int {
	if d.TimeoutSeconds <= 0 {
		return DefaultTimeoutSeconds
	}
	return d.TimeoutSeconds
}

// EffectiveKind returns the configured kind or derives one from the name.
func (d Definition) EffectiveKind() errparse.Kind {
	if d.Kind != "" {
		return d.Kind
	}
	return errparse.KindForGate(d.Name)
}

// Override patches or adds a gate. Nil fields are left untouched.
type Override struct {
	Name           string
	Command        []string
	TimeoutSeconds *int
	Enabled        *bool
	Optional       *bool
	Kind           *errparse.Kind
}

// Merge applies overrides to the detected gates. Overrides are keyed by
// name: a known name patches only the fields the override sets, an unknown
// name is appended as a new gate (enabled unless the override says otherwise).
// An unknown name without a command has nothing to run; it is left out and
// returned in ignored. The detected slice is not modified.
func Merge(detected []Definition, overrides []Override) (merged []Definition, ignored []Override) {
	merged = make([]Definition, len(detected))
	copy(merged, detected)

	index := make(map[string]int, len(merged))
	for i, d := range merged {
		index[d.Name] = i
	}

	for _, o := range overrides {
		if o.Name == "" {
			continue
		}
		i, ok := index[o.Name]
		if !ok {
			if len(o.Command) == 0 {
				ignored = append(ignored, o)
				continue
			}
			merged = append(merged, Definition{
				Name:           o.Name,
				TimeoutSeconds: DefaultTimeoutSeconds,
				Enabled:        true,
			})
			i = len(merged) - 1
			index[o.Name] = i
		}
		apply(&merged[i], o)
	}
	return merged, ignored
}

func apply(d *Definition, o Override) {
	if len(o.Command) > 0 {
		d.Command = append([]string(nil), o.Command...)
	}
	if o.TimeoutSeconds != nil {
		d.TimeoutSeconds = *o.TimeoutSeconds
	}
	if o.Enabled != nil {
		d.Enabled = *o.Enabled
	}
	if o.Optional != nil {
		d.Optional = *o.Optional
	}
	if o.Kind != nil {
		d.Kind = *o.Kind
	}
}

// ParseCommand converts a configured command into an argument vector.
// Strings are split with shell-like quoting rules but never executed by a
// shell; lists are used element for element.
func ParseCommand(v any) ([]string, error) {
	switch c := v.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(c) == "" {
			return nil, fmt.Errorf("empty command")
		}
		argv, err := shlex.Split(c)
		if err != nil {
			return nil, fmt.Errorf("split command %q: %w", c, err)
		}
		return argv, nil
	case []string:
		if len(c) == 0 {
			return nil, fmt.Errorf("empty command")
		}
		return append([]string(nil), c...), nil
	case []any:
		if len(c) == 0 {
			return nil, fmt.Errorf("empty command")
		}
		argv := make([]string, 0, len(c))
		for i, elem := range c {
			s, ok := elem.(string)
			if !ok {
				return nil, fmt.Errorf("command element %d is %T, want string", i, elem)
			}
			argv = append(argv, s)
		}
		return argv, nil
	default:
		return nil, fmt.Errorf("command is %T, want string or list", v)
	}
}
