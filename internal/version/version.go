// Package version reports the phasegate release.
package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var versionContent string

// Commit and Date are set at build time:
//
//	go build -ldflags "-X github.com/ShayCichocki/phasegate/internal/version.Commit=$(git rev-parse --short HEAD)"
var (
	Commit = ""
	Date   = ""
)

// Get returns the current version, with whitespace trimmed
func Get() string {
	return strings.TrimSpace(versionContent)
}

// String returns the version with build metadata when present.
func String() string {
	var b strings.Builder
	b.WriteString(Get())
	if Commit != "" {
		b.WriteString(" (")
		b.WriteString(Commit)
		if Date != "" {
			b.WriteString(", ")
			b.WriteString(Date)
		}
		b.WriteString(")")
	}
	return b.String()
}
