// Package errparse turns raw validation gate output into structured error records.
//
// Each output dialect is handled by a Parser strategy. A Registry selects the
// strategy for a gate kind and falls back to a generic line scan when the
// dialect-specific patterns find nothing. Parsing never fails: unrecognised
// output yields zero or more best-effort records.
package errparse

import (
	"strconv"
	"strings"
)

// MaxRecords bounds the number of records kept for a single gate.
const MaxRecords = 10

// Kind identifies the output dialect of a gate.
type Kind string

const (
	KindTypecheck Kind = "typecheck"
	KindLint      Kind = "lint"
	KindBuild     Kind = "build"
	KindTest      Kind = "test"
	KindOther     Kind = "other"
)

// ErrorRecord is a single finding extracted from gate output.
// Zero values mean the field was not present in the output.
type ErrorRecord struct {
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// String formats the record the way compilers print diagnostics.
func (r ErrorRecord) String() string {
	var b strings.Builder
	if r.File != "" {
		b.WriteString(r.File)
		if r.Line > 0 {
			b.WriteString(":")
			b.WriteString(strconv.Itoa(r.Line))
			if r.Column > 0 {
				b.WriteString(":")
				b.WriteString(strconv.Itoa(r.Column))
			}
		}
		b.WriteString(": ")
	}
	if r.Code != "" {
		b.WriteString(r.Code)
		b.WriteString(": ")
	}
	b.WriteString(r.Message)
	return b.String()
}

// Parser extracts error records from one output dialect.
type Parser interface {
	Parse(output string) []ErrorRecord
}

// Registry maps gate kinds to parser strategies.
type Registry struct {
	parsers  map[Kind]Parser
	fallback Parser
}

// NewRegistry returns a registry with the built-in dialects registered.
func NewRegistry() *Registry {
	r := &Registry{
		parsers:  make(map[Kind]Parser),
		fallback: DefaultParser{},
	}
	r.Register(KindTypecheck, TypecheckParser{})
	r.Register(KindLint, LintParser{})
	r.Register(KindBuild, BuildParser{})
	return r
}

// Register sets the parser used for a kind.
func (r *Registry) Register(kind Kind, p Parser) {
	r.parsers[kind] = p
}

// Parse extracts at most MaxRecords records from output using the parser
// registered for kind. It never panics.
func (r *Registry) Parse(kind Kind, output string) (records []ErrorRecord) {
	defer func() {
		if recover() != nil {
			records = capRecords(DefaultParser{}.Parse(output))
		}
	}()

	if strings.TrimSpace(output) == "" {
		return nil
	}

	p, ok := r.parsers[kind]
	if !ok {
		p = r.fallback
	}

	records = p.Parse(output)
	if len(records) == 0 && p != r.fallback {
		records = r.fallback.Parse(output)
	}
	return capRecords(records)
}

// KindForGate derives the output dialect from a gate name.
func KindForGate(name string) Kind {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "typecheck"), strings.Contains(n, "tsc"),
		strings.Contains(n, "mypy"), strings.Contains(n, "pyright"), n == "types":
		return KindTypecheck
	case strings.Contains(n, "lint"), strings.Contains(n, "vet"),
		strings.Contains(n, "ruff"), strings.Contains(n, "clippy"):
		return KindLint
	case strings.Contains(n, "build"), strings.Contains(n, "compile"):
		return KindBuild
	case strings.Contains(n, "test"), strings.Contains(n, "spec"):
		return KindTest
	default:
		return KindOther
	}
}

func capRecords(records []ErrorRecord) []ErrorRecord {
	if len(records) > MaxRecords {
		return records[:MaxRecords]
	}
	return records
}
