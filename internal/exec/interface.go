// Package exec provides an interface for command execution.
package exec

import (
	"context"
	"time"
)

// Result is the outcome of a command run under a timeout.
type Result struct {
	// Output is the combined stdout/stderr of the process.
	Output []byte
	// ExitCode is the process exit status. It is -1 when the process was
	// killed by the timeout or never produced a status.
	ExitCode int
	// TimedOut is true when the timeout elapsed before the process exited.
	TimedOut bool
	// Duration is the wall-clock time the process ran.
	Duration time.Duration
}

// Success reports whether the process exited with status 0 in time.
func (r *Result) Success() bool {
	return r != nil && !r.TimedOut && r.ExitCode == 0
}

// CommandRunner defines the interface for running external commands.
// Commands are always an explicit argument vector; nothing is passed
// through a shell. This abstraction allows mocking command execution in tests.
type CommandRunner interface {
	// Run executes a command and returns combined stdout/stderr output.
	// The working directory is set to workDir if non-empty. A non-zero exit
	// status is returned as an error.
	Run(ctx context.Context, workDir string, name string, args ...string) (output []byte, err error)

	// Output executes a command and returns its stdout only. Stderr is
	// carried in the error when the command fails and dropped otherwise.
	Output(ctx context.Context, workDir string, name string, args ...string) (stdout []byte, err error)

	// RunTimeout executes argv with the given timeout and reports the exit
	// status instead of treating it as an error. The returned error is
	// non-nil only when the process could not be started.
	RunTimeout(ctx context.Context, workDir string, timeout time.Duration, argv []string) (*Result, error)

	// LookPath reports whether an executable is available in PATH.
	LookPath(name string) bool
}
