package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/ShayCichocki/phasegate/internal/errparse"
	"github.com/ShayCichocki/phasegate/internal/gates"
)

// ConfigError describes a malformed configuration value that was ignored.
type ConfigError struct {
	Source  string
	Field   string
	Message string
}

func (e ConfigError) Error() string {
	var b strings.Builder
	if e.Source != "" {
		b.WriteString(e.Source)
		b.WriteString(": ")
	}
	if e.Field != "" {
		b.WriteString(e.Field)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

// parseGates converts the raw gates list into overrides. Entries that do not
// validate are dropped and reported; the rest are kept.
func parseGates(raw any, source string) ([]gates.Override, []ConfigError) {
	if raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, []ConfigError{{Source: source, Field: "gates", Message: fmt.Sprintf("expected a list, got %T", raw)}}
	}

	var overrides []gates.Override
	var errs []ConfigError
	for i, item := range list {
		field := fmt.Sprintf("gates[%d]", i)
		o, err := parseGate(item)
		if err != nil {
			errs = append(errs, ConfigError{Source: source, Field: field, Message: err.Error() + "; entry ignored"})
			continue
		}
		overrides = append(overrides, o)
	}
	return overrides, errs
}

func parseGate(item any) (gates.Override, error) {
	var o gates.Override

	entry, ok := toStringMap(item)
	if !ok {
		return o, fmt.Errorf("expected a mapping, got %T", item)
	}

	// Accept snake_case and camelCase spellings.
	fields := make(map[string]any, len(entry))
	for k, v := range entry {
		fields[normalizeKey(k)] = v
	}

	name, ok := fields["name"].(string)
	if !ok || strings.TrimSpace(name) == "" {
		return o, fmt.Errorf("missing name")
	}
	o.Name = strings.TrimSpace(name)

	if raw, ok := fields["command"]; ok {
		argv, err := gates.ParseCommand(raw)
		if err != nil {
			return o, fmt.Errorf("gate %q: %w", o.Name, err)
		}
		o.Command = argv
	}

	if raw, ok := fields["timeoutseconds"]; ok {
		n, err := toPositiveInt(raw)
		if err != nil {
			return o, fmt.Errorf("gate %q: timeout_seconds %w", o.Name, err)
		}
		o.TimeoutSeconds = &n
	}

	for _, flag := range []struct {
		key string
		dst **bool
	}{
		{"enabled", &o.Enabled},
		{"optional", &o.Optional},
	} {
		raw, ok := fields[flag.key]
		if !ok {
			continue
		}
		b, ok := raw.(bool)
		if !ok {
			return o, fmt.Errorf("gate %q: %s must be true or false, got %v", o.Name, flag.key, raw)
		}
		*flag.dst = &b
	}

	if raw, ok := fields["kind"]; ok {
		s, _ := raw.(string)
		kind := errparse.Kind(strings.ToLower(s))
		switch kind {
		case errparse.KindTypecheck, errparse.KindLint, errparse.KindBuild, errparse.KindTest, errparse.KindOther:
			o.Kind = &kind
		default:
			return o, fmt.Errorf("gate %q: unknown kind %v", o.Name, raw)
		}
	}

	return o, nil
}

func toStringMap(item any) (map[string]any, bool) {
	switch m := item.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, v := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = v
		}
		return out, true
	}
	return nil, false
}

func normalizeKey(k string) string {
	return strings.ToLower(strings.ReplaceAll(k, "_", ""))
}

func toPositiveInt(raw any) (int, error) {
	var n int
	switch v := raw.(type) {
	case int:
		n = v
	case int64:
		n = int(v)
	case uint64:
		n = int(v)
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("must be a whole number, got %v", v)
		}
		n = int(v)
	default:
		return 0, fmt.Errorf("must be a number, got %v", raw)
	}
	if n <= 0 {
		return 0, fmt.Errorf("must be positive, got %d", n)
	}
	return n, nil
}
