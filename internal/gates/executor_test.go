package gates

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/phasegate/internal/errparse"
	"github.com/ShayCichocki/phasegate/internal/exec"
	"github.com/ShayCichocki/phasegate/internal/flaky"
)

type fakeResult struct {
	output   string
	exitCode int
	timedOut bool
	err      error
}

// fakeRunner returns canned results keyed by the joined argv and records
// every invocation.
type fakeRunner struct {
	results  map[string]fakeResult
	calls    [][]string
	timeouts []time.Duration
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{results: make(map[string]fakeResult)}
}

func (f *fakeRunner) on(cmd string, r fakeResult) *fakeRunner {
	f.results[cmd] = r
	return f
}

func (f *fakeRunner) Run(ctx context.Context, workDir string, name string, args ...string) ([]byte, error) {
	return nil, errors.New("not used")
}

func (f *fakeRunner) Output(ctx context.Context, workDir string, name string, args ...string) ([]byte, error) {
	return nil, errors.New("not used")
}

func (f *fakeRunner) RunTimeout(ctx context.Context, workDir string, timeout time.Duration, argv []string) (*exec.Result, error) {
	f.calls = append(f.calls, argv)
	f.timeouts = append(f.timeouts, timeout)
	r := f.results[strings.Join(argv, " ")]
	if r.err != nil {
		return nil, r.err
	}
	exitCode := r.exitCode
	if r.timedOut {
		exitCode = -1
	}
	return &exec.Result{Output: []byte(r.output), ExitCode: exitCode, TimedOut: r.timedOut}, nil
}

func (f *fakeRunner) LookPath(name string) bool { return true }

func gate(name, cmd string) Definition {
	return Definition{Name: name, Command: strings.Fields(cmd), TimeoutSeconds: 60, Enabled: true}
}

func TestRunAll_ExitZeroHasNoErrors(t *testing.T) {
	runner := newFakeRunner().on("go build ./...", fakeResult{output: "warning: error-prone code\n"})
	run := NewExecutor(runner, "/repo").RunAll(context.Background(), []Definition{gate("build", "go build ./...")}, DefaultOptions())

	require.Len(t, run.Gates, 1)
	assert.True(t, run.Passed)
	assert.True(t, run.Gates[0].Success)
	assert.Empty(t, run.Gates[0].Errors)
	assert.Equal(t, 0, run.TotalErrors)
	assert.NotEmpty(t, run.ID)
}

func TestRunAll_ParsesTypecheckErrors(t *testing.T) {
	runner := newFakeRunner().on("npx tsc --noEmit", fakeResult{
		output:   "src/app.ts(10,5): error TS2322: Type mismatch\n",
		exitCode: 2,
	})
	run := NewExecutor(runner, "/repo").RunAll(context.Background(), []Definition{gate("typecheck", "npx tsc --noEmit")}, DefaultOptions())

	assert.False(t, run.Passed)
	require.Len(t, run.Gates[0].Errors, 1)
	assert.Equal(t, errparse.ErrorRecord{File: "src/app.ts", Line: 10, Column: 5, Code: "TS2322", Message: "Type mismatch"}, run.Gates[0].Errors[0])
	assert.Equal(t, 1, run.TotalErrors)
	assert.Equal(t, 2, run.Gates[0].ExitCode)
}

func TestRunAll_NonZeroExitAlwaysHasAnError(t *testing.T) {
	runner := newFakeRunner().on("make check", fakeResult{output: "nope\n", exitCode: 3})
	run := NewExecutor(runner, "").RunAll(context.Background(), []Definition{gate("custom", "make check")}, DefaultOptions())

	require.Len(t, run.Gates[0].Errors, 1)
	assert.Equal(t, "gate 'custom' failed with exit code 3", run.Gates[0].Errors[0].Message)
}

func TestRunAll_Timeout(t *testing.T) {
	runner := newFakeRunner().on("sleep 100", fakeResult{output: "partial", timedOut: true})
	def := gate("slow", "sleep 100")
	def.TimeoutSeconds = 2

	run := NewExecutor(runner, "").RunAll(context.Background(), []Definition{def}, DefaultOptions())

	result := run.Gates[0]
	assert.False(t, result.Success)
	assert.True(t, result.TimedOut)
	assert.Equal(t, "partial", result.RawOutput)
	assert.Equal(t, []errparse.ErrorRecord{{Message: "gate 'slow' timed out after 2s"}}, result.Errors)
	assert.Equal(t, []time.Duration{2 * time.Second}, runner.timeouts)
}

func TestRunAll_DefaultTimeout(t *testing.T) {
	runner := newFakeRunner()
	def := gate("build", "true")
	def.TimeoutSeconds = 0

	NewExecutor(runner, "").RunAll(context.Background(), []Definition{def}, DefaultOptions())
	assert.Equal(t, []time.Duration{60 * time.Second}, runner.timeouts)
}

func TestRunAll_FailedToStart(t *testing.T) {
	runner := newFakeRunner().on("missing-tool", fakeResult{err: errors.New("executable file not found")})
	run := NewExecutor(runner, "").RunAll(context.Background(), []Definition{gate("lint", "missing-tool")}, DefaultOptions())

	assert.False(t, run.Passed)
	result := run.Gates[0]
	assert.Equal(t, -1, result.ExitCode)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "gate 'lint' failed to start")
}

func TestRunAll_FailFastStopsAtFirstFailure(t *testing.T) {
	runner := newFakeRunner().
		on("a", fakeResult{}).
		on("b", fakeResult{exitCode: 1, output: "error: b broke"}).
		on("c", fakeResult{})
	defs := []Definition{gate("a", "a"), gate("b", "b"), gate("c", "c")}

	run := NewExecutor(runner, "").RunAll(context.Background(), defs, DefaultOptions())

	assert.False(t, run.Passed)
	require.Len(t, run.Gates, 2)
	assert.Equal(t, "b", run.Gates[1].Name)
	assert.Len(t, runner.calls, 2)
}

func TestRunAll_NoFailFastRunsEverything(t *testing.T) {
	runner := newFakeRunner().
		on("a", fakeResult{exitCode: 1}).
		on("b", fakeResult{exitCode: 1}).
		on("c", fakeResult{})
	defs := []Definition{gate("a", "a"), gate("b", "b"), gate("c", "c")}

	run := NewExecutor(runner, "").RunAll(context.Background(), defs, Options{FailFast: false})

	assert.False(t, run.Passed)
	assert.Len(t, run.Gates, 3)
	assert.Equal(t, 2, run.TotalErrors)
	assert.Equal(t, []string{"a", "b"}, run.FailedGates())
}

func TestRunAll_DisabledAndOptionalGates(t *testing.T) {
	runner := newFakeRunner().on("clippy", fakeResult{exitCode: 1})
	disabled := gate("test", "npm test")
	disabled.Enabled = false
	optional := gate("clippy", "clippy")
	optional.Optional = true
	defs := []Definition{gate("build", "build"), disabled, optional}

	t.Run("optional skipped by default", func(t *testing.T) {
		runner.calls = nil
		run := NewExecutor(runner, "").RunAll(context.Background(), defs, DefaultOptions())

		assert.True(t, run.Passed)
		assert.Equal(t, [][]string{{"build"}}, runner.calls)
		require.Len(t, run.Gates, 2)
		assert.True(t, run.Gates[1].Skipped)
	})

	t.Run("optional failure does not fail the run", func(t *testing.T) {
		runner.calls = nil
		run := NewExecutor(runner, "").RunAll(context.Background(), defs, Options{FailFast: true, RunOptionalGates: true})

		assert.True(t, run.Passed)
		assert.Equal(t, [][]string{{"build"}, {"clippy"}}, runner.calls)
		assert.False(t, run.Gates[1].Success)
		assert.Empty(t, run.FailedGates())
	})
}

func TestRunAll_NoGates(t *testing.T) {
	disabled := gate("test", "npm test")
	disabled.Enabled = false

	run := NewExecutor(newFakeRunner(), "").RunAll(context.Background(), []Definition{disabled}, DefaultOptions())

	assert.True(t, run.Passed)
	assert.True(t, run.Skipped)
	assert.Equal(t, SkippedNoGatesMessage, run.Message)
	assert.Equal(t, "validation skipped, no gates detected", run.Summary())
}

func TestRunAll_TestGateFeedsRecorder(t *testing.T) {
	runner := newFakeRunner().on("go test ./...", fakeResult{
		output:   "--- PASS: TestA (0.00s)\n--- FAIL: TestB (0.00s)\nFAIL\n",
		exitCode: 1,
	})
	tracker := flaky.NewTracker()
	tracker.RecordOutcome("TestB", true)

	exe := NewExecutor(runner, "")
	exe.SetRecorder(tracker)
	run := exe.RunAll(context.Background(), []Definition{gate("test", "go test ./...")}, DefaultOptions())

	assert.Equal(t, 3, tracker.Len())
	require.Len(t, run.FlakyTests, 1)
	assert.Equal(t, "TestB", run.FlakyTests[0].TestName)
}

func TestRunAll_TestGateWithoutParseableOutputRecordsGateName(t *testing.T) {
	runner := newFakeRunner().on("npm test", fakeResult{output: "ok"})
	tracker := flaky.NewTracker()

	exe := NewExecutor(runner, "")
	exe.SetRecorder(tracker)
	exe.RunAll(context.Background(), []Definition{gate("test", "npm test")}, DefaultOptions())

	samples := tracker.Samples()
	require.Len(t, samples, 1)
	assert.Equal(t, "test", samples[0].TestName)
	assert.True(t, samples[0].Passed)
}

func TestRunAll_ContinueOnFlakyFailure(t *testing.T) {
	newRunner := func() *fakeRunner {
		return newFakeRunner().
			on("go test ./...", fakeResult{output: "--- FAIL: TestFlaky (0.00s)\n", exitCode: 1}).
			on("go vet ./...", fakeResult{})
	}
	defs := []Definition{gate("test", "go test ./..."), gate("vet", "go vet ./...")}

	t.Run("flaky failure continues", func(t *testing.T) {
		tracker := flaky.NewTracker()
		tracker.RecordOutcome("TestFlaky", true)
		runner := newRunner()

		exe := NewExecutor(runner, "")
		exe.SetRecorder(tracker)
		run := exe.RunAll(context.Background(), defs, Options{FailFast: true, ContinueOnFlakyFailure: true})

		assert.False(t, run.Passed)
		assert.Len(t, run.Gates, 2)
	})

	t.Run("consistent failure still stops", func(t *testing.T) {
		tracker := flaky.NewTracker()
		runner := newRunner()

		exe := NewExecutor(runner, "")
		exe.SetRecorder(tracker)
		run := exe.RunAll(context.Background(), defs, Options{FailFast: true, ContinueOnFlakyFailure: true})

		assert.False(t, run.Passed)
		assert.Len(t, run.Gates, 1)
	})
}

func TestValidationRun_Summary(t *testing.T) {
	run := &ValidationRun{
		Passed:      false,
		TotalErrors: 1,
		Gates: []GateResult{{
			Name:   "typecheck",
			Errors: []errparse.ErrorRecord{{File: "src/app.ts", Line: 10, Column: 5, Code: "TS2322", Message: "Type mismatch"}},
		}},
	}

	summary := run.Summary()
	assert.Contains(t, summary, "validation failed: typecheck (1 error(s))")
	assert.Contains(t, summary, "[typecheck] src/app.ts:10:5")
	assert.Contains(t, summary, "TS2322")
}
