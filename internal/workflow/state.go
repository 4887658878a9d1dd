package workflow

import (
	"slices"
	"time"
)

// State is the persisted progress of one workflow.
type State struct {
	WorkflowID      string    `json:"workflowId"`
	Phases          []string  `json:"orderedPhases"`
	CurrentPhase    string    `json:"currentPhase"`
	PhasesCompleted []string  `json:"phasesCompleted"`
	Completed       bool      `json:"completed"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// HasPhase reports whether phase belongs to the workflow.
func (s *State) HasPhase(phase string) bool {
	return slices.Contains(s.Phases, phase)
}

// IsCompleted reports whether phase has been completed.
func (s *State) IsCompleted(phase string) bool {
	return slices.Contains(s.PhasesCompleted, phase)
}

// NextPhase returns the first phase in order that is neither completed nor
// equal to exclude.
func (s *State) NextPhase(exclude string) (string, bool) {
	for _, p := range s.Phases {
		if p != exclude && !s.IsCompleted(p) {
			return p, true
		}
	}
	return "", false
}

// PhaseIndex returns the zero-based position of phase, or -1.
func (s *State) PhaseIndex(phase string) int {
	return slices.Index(s.Phases, phase)
}

// Progress returns the snapshot published to progress sinks.
func (s *State) Progress() Progress {
	return Progress{
		CurrentPhase:    s.CurrentPhase,
		PhaseIndex:      s.PhaseIndex(s.CurrentPhase),
		TotalPhases:     len(s.Phases),
		PhasesCompleted: append([]string{}, s.PhasesCompleted...),
	}
}

// markCompleted adds phase to PhasesCompleted once.
func (s *State) markCompleted(phase string) {
	if !s.IsCompleted(phase) {
		s.PhasesCompleted = append(s.PhasesCompleted, phase)
	}
}

// Progress is the only view of a workflow that progress sinks receive.
type Progress struct {
	CurrentPhase    string   `json:"currentPhase"`
	PhaseIndex      int      `json:"phaseIndex"`
	TotalPhases     int      `json:"totalPhases"`
	PhasesCompleted []string `json:"phasesCompleted"`
}
