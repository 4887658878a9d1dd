package trigger

import (
	"path"
	"strings"
)

// matchPath reports whether p matches pattern. Patterns without a slash are
// matched against the base name; patterns with a slash are matched segment
// by segment with ** spanning any number of directories.
func matchPath(p, pattern string) bool {
	p = normalize(p)
	if !strings.Contains(pattern, "/") {
		return matchSegment(path.Base(p), pattern)
	}
	return matchParts(strings.Split(p, "/"), strings.Split(pattern, "/"))
}

func normalize(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimPrefix(p, "./")
	return strings.TrimPrefix(p, "/")
}

// matchParts recursively matches path segments against pattern segments.
func matchParts(p, pattern []string) bool {
	if len(pattern) == 0 {
		return len(p) == 0
	}

	head, rest := pattern[0], pattern[1:]
	if head == "**" {
		if len(rest) == 0 {
			return true
		}
		for i := 0; i <= len(p); i++ {
			if matchParts(p[i:], rest) {
				return true
			}
		}
		return false
	}

	if len(p) == 0 || !matchSegment(p[0], head) {
		return false
	}
	return matchParts(p[1:], rest)
}

// matchSegment matches a single segment against a pattern containing
// zero or more * wildcards.
func matchSegment(segment, pattern string) bool {
	if pattern == "*" || pattern == segment {
		return true
	}
	if !strings.Contains(pattern, "*") {
		return false
	}

	parts := strings.Split(pattern, "*")
	if !strings.HasPrefix(segment, parts[0]) {
		return false
	}
	pos := len(parts[0])
	last := len(parts) - 1
	for _, part := range parts[1:last] {
		idx := strings.Index(segment[pos:], part)
		if idx == -1 {
			return false
		}
		pos += idx + len(part)
	}
	return len(segment)-pos >= len(parts[last]) && strings.HasSuffix(segment, parts[last])
}
