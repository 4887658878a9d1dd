// Package integration provides cross-package integration tests for phasegate.
// These tests drive the engine against a real git repository, a real sqlite
// state database, and real gate processes.
//
// Build tag: integration
// Run with: go test -tags integration ./internal/integration/...
package integration
