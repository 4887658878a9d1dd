package gates

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ShayCichocki/phasegate/internal/errparse"
	"github.com/ShayCichocki/phasegate/internal/exec"
	"github.com/ShayCichocki/phasegate/internal/flaky"
)

// SkippedNoGatesMessage is reported when there was nothing to run.
const SkippedNoGatesMessage = "skipped, no gates detected"

// GateResult is the outcome of running a single gate.
type GateResult struct {
	Name            string                 `json:"name"`
	Kind            errparse.Kind          `json:"kind"`
	Success         bool                   `json:"success"`
	RawOutput       string                 `json:"raw_output"`
	Errors          []errparse.ErrorRecord `json:"errors"`
	DurationSeconds float64                `json:"duration_seconds"`
	ExitCode        int                    `json:"exit_code"`
	TimedOut        bool                   `json:"timed_out,omitempty"`
	Skipped         bool                   `json:"skipped,omitempty"`
	Optional        bool                   `json:"optional,omitempty"`
}

// ValidationRun is the result of running a set of gates once.
type ValidationRun struct {
	ID              string         `json:"id"`
	Passed          bool           `json:"passed"`
	Skipped         bool           `json:"skipped,omitempty"`
	Message         string         `json:"message,omitempty"`
	Gates           []GateResult   `json:"gates"`
	TotalErrors     int            `json:"total_errors"`
	DurationSeconds float64        `json:"duration_seconds"`
	FlakyTests      []flaky.Report `json:"flaky_tests,omitempty"`
	StartedAt       time.Time      `json:"started_at"`
}

// FailedGates returns the names of non-optional gates that failed.
func (r *ValidationRun) FailedGates() []string {
	var names []string
	for _, g := range r.Gates {
		if !g.Success && !g.Optional && !g.Skipped {
			names = append(names, g.Name)
		}
	}
	return names
}

// Summary renders a short human-readable report of the run.
func (r *ValidationRun) Summary() string {
	if r.Skipped {
		return "validation " + r.Message
	}
	var sb strings.Builder
	if r.Passed {
		fmt.Fprintf(&sb, "validation passed: %d gate(s) in %.1fs", r.ranCount(), r.DurationSeconds)
	} else {
		fmt.Fprintf(&sb, "validation failed: %s (%d error(s))", strings.Join(r.FailedGates(), ", "), r.TotalErrors)
	}
	for _, g := range r.Gates {
		if g.Success || g.Skipped {
			continue
		}
		for _, e := range g.Errors {
			fmt.Fprintf(&sb, "\n  [%s] %s", g.Name, e.String())
		}
	}
	for _, f := range r.FlakyTests {
		fmt.Fprintf(&sb, "\n  flaky: %s (%.0f%% pass over %d runs)", f.TestName, f.PassRate*100, f.Total)
	}
	return sb.String()
}

func (r *ValidationRun) ranCount() int {
	n := 0
	for _, g := range r.Gates {
		if !g.Skipped {
			n++
		}
	}
	return n
}

// Options controls a validation run.
type Options struct {
	// FailFast stops at the first failing non-optional gate.
	FailFast bool
	// RunOptionalGates runs optional gates instead of skipping them.
	RunOptionalGates bool
	// ContinueOnFlakyFailure keeps going past a failing test gate when every
	// failing test in it is already flagged flaky. The run still fails.
	ContinueOnFlakyFailure bool
}

// DefaultOptions returns fail-fast execution without optional gates.
func DefaultOptions() Options {
	return Options{FailFast: true}
}

// OutcomeRecorder receives per-test outcomes from test gates.
type OutcomeRecorder interface {
	RecordOutcome(testName string, passed bool)
	DetectFlaky(minRuns int) []flaky.Report
}

// Executor runs gates sequentially through a CommandRunner.
type Executor struct {
	runner   exec.CommandRunner
	parsers  *errparse.Registry
	recorder OutcomeRecorder
	workDir  string
	logger   *zap.Logger
	now      func() time.Time
}

// NewExecutor creates an executor that runs gate commands in workDir.
func NewExecutor(runner exec.CommandRunner, workDir string) *Executor {
	return &Executor{
		runner:  runner,
		parsers: errparse.NewRegistry(),
		workDir: workDir,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
}

// SetRecorder sets where test outcomes are reported.
func (e *Executor) SetRecorder(r OutcomeRecorder) {
	e.recorder = r
}

// SetLogger sets the logger.
func (e *Executor) SetLogger(l *zap.Logger) {
	if l != nil {
		e.logger = l
	}
}

// SetParsers replaces the error parser registry.
func (e *Executor) SetParsers(p *errparse.Registry) {
	if p != nil {
		e.parsers = p
	}
}

// RunAll runs the gates in order and returns the aggregated result.
// Disabled gates never run. Gate failures, timeouts and start failures are
// recorded in the result; RunAll itself does not fail.
func (e *Executor) RunAll(ctx context.Context, defs []Definition, opts Options) *ValidationRun {
	start := e.now()
	run := &ValidationRun{
		ID:        uuid.NewString(),
		Passed:    true,
		StartedAt: start,
	}

	ranTests := false
	for _, def := range defs {
		if !def.Enabled {
			continue
		}
		if def.Optional && !opts.RunOptionalGates {
			run.Gates = append(run.Gates, GateResult{
				Name:     def.Name,
				Kind:     def.EffectiveKind(),
				Success:  true,
				Skipped:  true,
				Optional: true,
			})
			continue
		}

		result := e.runGate(ctx, def)
		run.Gates = append(run.Gates, result)
		run.TotalErrors += len(result.Errors)

		allFlaky := false
		if result.Kind == errparse.KindTest && e.recorder != nil {
			ranTests = true
			allFlaky = e.recordOutcomes(result)
		}

		e.logger.Debug("gate finished",
			zap.String("gate", result.Name),
			zap.Bool("success", result.Success),
			zap.Int("exit_code", result.ExitCode),
			zap.Bool("timed_out", result.TimedOut),
			zap.Float64("duration_seconds", result.DurationSeconds),
			zap.Int("errors", len(result.Errors)),
		)

		if result.Success || def.Optional {
			continue
		}
		run.Passed = false
		if opts.FailFast && !(opts.ContinueOnFlakyFailure && allFlaky) {
			break
		}
	}

	if run.ranCount() == 0 {
		run.Passed = true
		run.Skipped = true
		run.Message = SkippedNoGatesMessage
	}
	if ranTests {
		run.FlakyTests = e.recorder.DetectFlaky(flaky.DefaultMinRuns)
	}
	run.DurationSeconds = e.now().Sub(start).Seconds()
	return run
}

func (e *Executor) runGate(ctx context.Context, def Definition) GateResult {
	result := GateResult{
		Name:     def.Name,
		Kind:     def.EffectiveKind(),
		Optional: def.Optional,
	}
	timeout := def.Timeout()

	start := e.now()
	res, err := e.runner.RunTimeout(ctx, e.workDir, time.Duration(timeout)*time.Second, def.Command)
	result.DurationSeconds = e.now().Sub(start).Seconds()

	if err != nil {
		result.ExitCode = -1
		result.Errors = []errparse.ErrorRecord{{
			Message: fmt.Sprintf("gate '%s' failed to start: %v", def.Name, err),
		}}
		return result
	}

	result.RawOutput = string(res.Output)
	result.ExitCode = res.ExitCode

	switch {
	case res.TimedOut:
		result.TimedOut = true
		result.Errors = []errparse.ErrorRecord{{
			Message: fmt.Sprintf("gate '%s' timed out after %ds", def.Name, timeout),
		}}
	case res.Success():
		result.Success = true
		result.Errors = []errparse.ErrorRecord{}
	default:
		result.Errors = e.parsers.Parse(result.Kind, result.RawOutput)
		if len(result.Errors) == 0 {
			result.Errors = []errparse.ErrorRecord{{
				Message: fmt.Sprintf("gate '%s' failed with exit code %d", def.Name, res.ExitCode),
			}}
		}
	}
	return result
}

// recordOutcomes feeds a test gate's per-test results to the recorder and
// reports whether every failing test is currently flagged flaky.
func (e *Executor) recordOutcomes(result GateResult) bool {
	outcomes := flaky.ExtractOutcomes(result.RawOutput)
	if len(outcomes) == 0 {
		outcomes = []flaky.Outcome{{TestName: result.Name, Passed: result.Success}}
	}
	for _, o := range outcomes {
		e.recorder.RecordOutcome(o.TestName, o.Passed)
	}
	if result.Success || result.TimedOut {
		return false
	}

	flagged := make(map[string]bool)
	for _, r := range e.recorder.DetectFlaky(flaky.DefaultMinRuns) {
		flagged[r.TestName] = true
	}
	failing := 0
	for _, o := range outcomes {
		if o.Passed {
			continue
		}
		failing++
		if !flagged[o.TestName] {
			return false
		}
	}
	return failing > 0
}
