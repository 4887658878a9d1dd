// Package flaky tracks test outcomes within a session and flags tests whose
// results flip between passing and failing.
//
// The tracker is advisory. It never blocks a gate run or a phase transition,
// and its samples are only meaningful within the session that produced them.
package flaky

import (
	"math"
	"sort"
	"time"
)

const (
	// MaxSamples is the ring buffer capacity.
	MaxSamples = 50
	// DefaultMinRuns is the fewest runs a test needs before it can be flagged.
	DefaultMinRuns = 2

	lowerBound = 0.2
	upperBound = 0.8
)

// Sample is one recorded test outcome.
type Sample struct {
	TestName  string    `json:"test_name"`
	Passed    bool      `json:"passed"`
	Timestamp time.Time `json:"timestamp"`
}

// Report describes a test flagged as flaky.
type Report struct {
	TestName string  `json:"test_name"`
	PassRate float64 `json:"pass_rate"`
	Passed   int     `json:"passed"`
	Failed   int     `json:"failed"`
	Total    int     `json:"total"`
}

// Tracker holds the bounded sample history for the current session.
// It is not safe for concurrent use.
type Tracker struct {
	samples []Sample
	now     func() time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{now: time.Now}
}

// Restore creates a tracker seeded with previously persisted samples.
// Only the newest MaxSamples are kept.
func Restore(samples []Sample) *Tracker {
	t := NewTracker()
	t.Load(samples)
	return t
}

// Load replaces the buffer with samples, keeping the newest MaxSamples.
func (t *Tracker) Load(samples []Sample) {
	t.samples = nil
	for _, s := range samples {
		t.append(s)
	}
}

// RecordOutcome appends an outcome, evicting the oldest sample past MaxSamples.
func (t *Tracker) RecordOutcome(testName string, passed bool) {
	if testName == "" {
		return
	}
	t.append(Sample{TestName: testName, Passed: passed, Timestamp: t.now()})
}

func (t *Tracker) append(s Sample) {
	t.samples = append(t.samples, s)
	if over := len(t.samples) - MaxSamples; over > 0 {
		t.samples = append(t.samples[:0:0], t.samples[over:]...)
	}
}

// Samples returns a copy of the buffered samples, oldest first.
func (t *Tracker) Samples() []Sample {
	out := make([]Sample, len(t.samples))
	copy(out, t.samples)
	return out
}

// Len returns the number of buffered samples.
func (t *Tracker) Len() int {
	return len(t.samples)
}

// Reset drops every sample.
func (t *Tracker) Reset() {
	t.samples = nil
}

// DetectFlaky returns tests with at least minRuns samples whose pass rate
// lies in [0.2, 0.8]. Results are ordered by distance from certainty, most
// uncertain first, then by name.
func (t *Tracker) DetectFlaky(minRuns int) []Report {
	if minRuns < 1 {
		minRuns = DefaultMinRuns
	}

	type counts struct{ passed, failed int }
	byName := make(map[string]*counts)
	for _, s := range t.samples {
		c, ok := byName[s.TestName]
		if !ok {
			c = &counts{}
			byName[s.TestName] = c
		}
		if s.Passed {
			c.passed++
		} else {
			c.failed++
		}
	}

	var reports []Report
	for name, c := range byName {
		total := c.passed + c.failed
		if total < minRuns {
			continue
		}
		rate := float64(c.passed) / float64(total)
		if rate < lowerBound || rate > upperBound {
			continue
		}
		reports = append(reports, Report{
			TestName: name,
			PassRate: rate,
			Passed:   c.passed,
			Failed:   c.failed,
			Total:    total,
		})
	}

	sort.Slice(reports, func(i, j int) bool {
		di := certainty(reports[i].PassRate)
		dj := certainty(reports[j].PassRate)
		if di != dj {
			return di < dj
		}
		return reports[i].TestName < reports[j].TestName
	})
	return reports
}

// IsFlaky reports whether name is currently flagged.
func (t *Tracker) IsFlaky(name string, minRuns int) bool {
	for _, r := range t.DetectFlaky(minRuns) {
		if r.TestName == name {
			return true
		}
	}
	return false
}

// certainty is the distance of a pass rate from a coin flip.
func certainty(rate float64) float64 {
	return math.Abs(rate - 0.5)
}
