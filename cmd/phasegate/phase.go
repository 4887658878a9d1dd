package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/phasegate/internal/engine"
	"github.com/ShayCichocki/phasegate/internal/state"
	"github.com/ShayCichocki/phasegate/internal/workflow"
)

var (
	phaseWorkflowID string
	phaseForce      bool
	phaseHistory    int
)

var phaseCmd = &cobra.Command{
	Use:   "phase",
	Short: "Drive a multi-phase workflow",
	Long: `Start a workflow, complete its phases, and show progress.

Completing a phase runs the gates; a failing run blocks the transition
unless --force is given. Each transition checkpoints the tree under the
next phase's name so 'phasegate restore <phase>' can return to it.`,
}

var phaseStartCmd = &cobra.Command{
	Use:   "start [phase...]",
	Short: "Start a workflow",
	Long: `Start a workflow with the given ordered phases, replacing any active
workflow. Without arguments the phases from workflow.phases in the config
are used.

Examples:
  phasegate phase start discovery implementation review
  phasegate phase start --id feature-x plan build verify`,
	RunE: runPhaseStart,
}

var phaseCompleteCmd = &cobra.Command{
	Use:   "complete <phase>",
	Short: "Complete a phase and advance",
	Args:  cobra.ExactArgs(1),
	RunE:  runPhaseComplete,
}

var phaseStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show workflow progress and recent validation runs",
	Args:  cobra.NoArgs,
	RunE:  runPhaseStatus,
}

func init() {
	phaseStartCmd.Flags().StringVar(&phaseWorkflowID, "id", "", "Workflow id (generated when empty)")
	phaseCompleteCmd.Flags().BoolVar(&phaseForce, "force", false, "Advance even if validation fails")
	phaseStatusCmd.Flags().IntVar(&phaseHistory, "history", 5, "Number of validation runs to show")

	phaseCmd.AddCommand(phaseStartCmd)
	phaseCmd.AddCommand(phaseCompleteCmd)
	phaseCmd.AddCommand(phaseStatusCmd)
}

func runPhaseStart(cmd *cobra.Command, args []string) error {
	a, err := openApp(projectDir)
	if err != nil {
		return err
	}
	defer a.Close()

	phases := args
	id := phaseWorkflowID
	if len(phases) == 0 {
		phases = a.cfg.Workflow.Phases
		if id == "" {
			id = a.cfg.Workflow.ID
		}
	}
	if len(phases) == 0 {
		return errors.New("no phases given and workflow.phases is not configured")
	}

	req, err := newRequest("startWorkflow", map[string]any{"workflow_id": id, "phases": phases})
	if err != nil {
		return err
	}
	return respond(a.engine.Handle(cmd.Context(), req))
}

func runPhaseComplete(cmd *cobra.Command, args []string) error {
	a, err := openApp(projectDir)
	if err != nil {
		return err
	}
	defer a.Close()

	req, err := newRequest("completePhase", map[string]any{"phase": args[0], "force": phaseForce})
	if err != nil {
		return err
	}
	return respond(a.engine.Handle(cmd.Context(), req))
}

func runPhaseStatus(cmd *cobra.Command, args []string) error {
	a, err := openApp(projectDir)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := a.machine.Status(cmd.Context())
	if errors.Is(err, workflow.ErrNoWorkflow) {
		fmt.Println("No active workflow. Run 'phasegate phase start <phase...>' to begin.")
	} else if err != nil {
		return err
	} else {
		fmt.Println(renderProgress(s))
	}

	runs, err := a.db.ListRuns(cmd.Context(), phaseHistory)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	fmt.Println()
	displayRuns(runs, time.Now())
	return nil
}

// respond prints resp and turns a stop into an error.
func respond(resp engine.Response) error {
	printResponse(resp)
	if !resp.Continue {
		return errors.New(resp.StopReason)
	}
	return nil
}

var (
	progressTitle   = lipgloss.NewStyle().Bold(true)
	phaseDone       = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	phaseCurrent    = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	phasePending    = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	progressBarFill = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	progressBox     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

// renderProgress draws the workflow as a boxed phase list with a bar.
func renderProgress(s *workflow.State) string {
	p := s.Progress()

	var lines []string
	lines = append(lines, progressTitle.Render("Workflow "+s.WorkflowID))
	for i, phase := range s.Phases {
		switch {
		case s.IsCompleted(phase):
			lines = append(lines, phaseDone.Render(fmt.Sprintf("✓ %d. %s", i+1, phase)))
		case phase == s.CurrentPhase && !s.Completed:
			lines = append(lines, phaseCurrent.Render(fmt.Sprintf("▶ %d. %s", i+1, phase)))
		default:
			lines = append(lines, phasePending.Render(fmt.Sprintf("  %d. %s", i+1, phase)))
		}
	}

	const width = 20
	done := 0
	if p.TotalPhases > 0 {
		done = len(p.PhasesCompleted) * width / p.TotalPhases
	}
	bar := progressBarFill.Render(strings.Repeat("█", done)) + phasePending.Render(strings.Repeat("░", width-done))
	status := fmt.Sprintf("%d/%d phases", len(p.PhasesCompleted), p.TotalPhases)
	if s.Completed {
		status += ", complete"
	}
	lines = append(lines, "", bar+" "+status)

	return progressBox.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func displayRuns(runs []state.RunRecord, now time.Time) {
	if len(runs) == 0 {
		fmt.Println("No validation runs recorded.")
		return
	}
	fmt.Println("Recent validation runs:")
	for _, r := range runs {
		ago := formatDuration(now.Sub(r.StartedAt))
		switch {
		case r.Skipped:
			printStatus("⚠", fmt.Sprintf("%s ago  skipped  (%s)", ago, r.Trigger), color.FgYellow)
		case r.Passed:
			printStatus("✓", fmt.Sprintf("%s ago  passed in %.1fs  (%s)", ago, r.DurationSeconds, r.Trigger), color.FgGreen)
		default:
			printStatus("✗", fmt.Sprintf("%s ago  failed: %s, %d error(s)  (%s)",
				ago, strings.Join(r.FailedGates, ", "), r.TotalErrors, r.Trigger), color.FgRed)
		}
	}
}
