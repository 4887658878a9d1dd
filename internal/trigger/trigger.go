// Package trigger decides whether a file modification warrants running the
// validation gates now or can wait for the batch threshold.
package trigger

import (
	"fmt"
	"strings"
)

// Kind is the type of file operation.
type Kind string

const (
	KindWrite     Kind = "write"
	KindEdit      Kind = "edit"
	KindMultiEdit Kind = "multiEdit"
	KindDelete    Kind = "delete"
)

// Operation is one file modification event.
type Operation struct {
	Kind Kind
	Path string
	// DiffText is the changed text for edit-style operations.
	DiffText string
}

// Counters carry batching state between invocations.
type Counters struct {
	EditCount   int      `json:"fileEditCount"`
	RecentPaths []string `json:"recentFiles"`
}

// Decision is the outcome of evaluating one operation.
type Decision struct {
	ValidateNow bool
	HighRisk    bool
	Reason      string
	// Counters is the updated batching state to persist.
	Counters Counters
}

// Evaluator classifies operations. It holds no mutable state.
type Evaluator struct {
	batchThreshold int
	sensitive      []string
}

// NewEvaluator creates an evaluator. A non-positive threshold uses the
// default; extra patterns are added to DefaultSensitivePatterns.
func NewEvaluator(batchThreshold int, extraSensitive []string) *Evaluator {
	if batchThreshold <= 0 {
		batchThreshold = DefaultBatchThreshold
	}
	sensitive := make([]string, 0, len(DefaultSensitivePatterns)+len(extraSensitive))
	sensitive = append(sensitive, DefaultSensitivePatterns...)
	for _, p := range extraSensitive {
		if p = strings.TrimSpace(p); p != "" {
			sensitive = append(sensitive, p)
		}
	}
	return &Evaluator{batchThreshold: batchThreshold, sensitive: sensitive}
}

// BatchThreshold returns the configured threshold.
func (e *Evaluator) BatchThreshold() int {
	return e.batchThreshold
}

// Evaluate applies the trigger rules in order. The first high-risk rule
// that matches triggers immediately; otherwise validation waits until the
// edit count reaches the batch threshold. Whenever validation is due the
// returned counters are reset. Evaluate never fails; operations it cannot
// classify take the batch path.
func (e *Evaluator) Evaluate(op Operation, c Counters) Decision {
	next := Counters{EditCount: c.EditCount + 1}
	next.RecentPaths = append(next.RecentPaths, c.RecentPaths...)

	reason := ""
	if known(op.Kind) && op.Path != "" {
		next.RecentPaths = remember(next.RecentPaths, op.Path)
		reason = e.highRisk(op, next.RecentPaths)
	}

	d := Decision{HighRisk: reason != "", Reason: reason, Counters: next}
	switch {
	case d.HighRisk:
		d.ValidateNow = true
	case next.EditCount >= e.batchThreshold:
		d.ValidateNow = true
		d.Reason = fmt.Sprintf("batch threshold reached (%d edits)", next.EditCount)
	default:
		d.Reason = fmt.Sprintf("batched (%d/%d edits)", next.EditCount, e.batchThreshold)
	}

	if d.ValidateNow {
		d.Counters = Counters{}
	}
	return d
}

func (e *Evaluator) highRisk(op Operation, recent []string) string {
	if op.Kind == KindDelete {
		return "file deleted: " + op.Path
	}
	if pattern, ok := e.sensitiveMatch(op.Path); ok {
		return fmt.Sprintf("sensitive file changed: %s (matches %s)", op.Path, pattern)
	}
	if (op.Kind == KindEdit || op.Kind == KindMultiEdit) && touchesBoundary(op.DiffText) {
		return "module boundary changed in " + op.Path
	}
	if len(recent) >= 3 {
		return fmt.Sprintf("%d distinct files changed", len(recent))
	}
	return ""
}

// IsSensitive reports whether path matches a sensitive pattern.
func (e *Evaluator) IsSensitive(path string) bool {
	_, ok := e.sensitiveMatch(path)
	return ok
}

func (e *Evaluator) sensitiveMatch(path string) (string, bool) {
	for _, pattern := range e.sensitive {
		if matchPath(path, pattern) {
			return pattern, true
		}
	}
	return "", false
}

func touchesBoundary(diff string) bool {
	for _, re := range boundaryPatterns {
		if re.MatchString(diff) {
			return true
		}
	}
	return false
}

// remember moves path to the end of the window, keeping at most
// RecentPathsCap distinct entries.
func remember(recent []string, path string) []string {
	out := recent[:0]
	for _, p := range recent {
		if p != path {
			out = append(out, p)
		}
	}
	out = append(out, path)
	if len(out) > RecentPathsCap {
		out = out[len(out)-RecentPathsCap:]
	}
	return out
}

func known(k Kind) bool {
	switch k {
	case KindWrite, KindEdit, KindMultiEdit, KindDelete:
		return true
	}
	return false
}
