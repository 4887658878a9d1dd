package errparse

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// src/app.ts(10,5): error TS2322: Type mismatch
	tscParenPattern = regexp.MustCompile(`^(.+?)\((\d+),(\d+)\): error ([A-Za-z]+\d+): (.+)$`)
	// src/app.ts:10:5 - error TS2322: Type mismatch
	tscDashPattern = regexp.MustCompile(`^(.+?):(\d+):(\d+) - error ([A-Za-z]+\d+): (.+)$`)
	// pkg/mod.py:12: error: Incompatible types  [assignment]
	mypyPattern = regexp.MustCompile(`^(.+?):(\d+):(?:(\d+):)? error: (.+?)(?:\s+\[([\w-]+)\])?$`)
	// src/app.js:3:7: 'x' is assigned a value but never used
	lintPattern = regexp.MustCompile(`^(.+?):(\d+):(\d+):\s*(.+)$`)
	// Strip ANSI colour codes some tools emit even when not on a terminal.
	ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)
)

// TypecheckParser understands tsc and mypy diagnostics.
type TypecheckParser struct{}

// Parse implements Parser.
func (TypecheckParser) Parse(output string) []ErrorRecord {
	var records []ErrorRecord
	for _, line := range lines(output) {
		if m := tscParenPattern.FindStringSubmatch(line); m != nil {
			records = append(records, located(m[1], m[2], m[3], m[4], m[5]))
			continue
		}
		if m := tscDashPattern.FindStringSubmatch(line); m != nil {
			records = append(records, located(m[1], m[2], m[3], m[4], m[5]))
			continue
		}
		if m := mypyPattern.FindStringSubmatch(line); m != nil {
			records = append(records, located(m[1], m[2], m[3], m[5], m[4]))
		}
		if len(records) >= MaxRecords {
			break
		}
	}
	return records
}

// LintParser understands file:line:col: message diagnostics.
type LintParser struct{}

// Parse implements Parser.
func (LintParser) Parse(output string) []ErrorRecord {
	var records []ErrorRecord
	for _, line := range lines(output) {
		if m := lintPattern.FindStringSubmatch(line); m != nil {
			records = append(records, located(m[1], m[2], m[3], "", m[4]))
		}
		if len(records) >= MaxRecords {
			break
		}
	}
	return records
}

// BuildParser keeps every line mentioning an error.
type BuildParser struct{}

// Parse implements Parser.
func (BuildParser) Parse(output string) []ErrorRecord {
	return scan(output, "error")
}

// DefaultParser keeps every line mentioning an error or a failure.
type DefaultParser struct{}

// Parse implements Parser.
func (DefaultParser) Parse(output string) []ErrorRecord {
	return scan(output, "error", "failed")
}

func scan(output string, needles ...string) []ErrorRecord {
	var records []ErrorRecord
	for _, line := range lines(output) {
		lower := strings.ToLower(line)
		for _, needle := range needles {
			if strings.Contains(lower, needle) {
				records = append(records, ErrorRecord{Message: line})
				break
			}
		}
		if len(records) >= MaxRecords {
			break
		}
	}
	return records
}

func located(file, line, col, code, msg string) ErrorRecord {
	r := ErrorRecord{
		File:    strings.TrimSpace(file),
		Code:    code,
		Message: strings.TrimSpace(msg),
	}
	r.Line, _ = strconv.Atoi(line)
	r.Column, _ = strconv.Atoi(col)
	return r
}

// lines returns the non-empty, trimmed, colour-stripped lines of output.
func lines(output string) []string {
	raw := strings.Split(ansiPattern.ReplaceAllString(output, ""), "\n")
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimSpace(strings.TrimSuffix(l, "\r"))
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}
