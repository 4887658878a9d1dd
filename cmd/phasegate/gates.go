package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/phasegate/internal/gates"
)

var gatesDetectedOnly bool

var gatesCmd = &cobra.Command{
	Use:   "gates",
	Short: "List the gates that validation runs",
	Long: `List detected gates merged with the gates configured in
.phasegate.yaml, in run order.

Disabled gates never run. Optional gates run only with
options.run_optional_gates.`,
	Args: cobra.NoArgs,
	RunE: runGates,
}

func init() {
	gatesCmd.Flags().BoolVar(&gatesDetectedOnly, "detected", false, "Show detected gates without configuration overrides")
}

func runGates(cmd *cobra.Command, args []string) error {
	a, err := openApp(projectDir)
	if err != nil {
		return err
	}
	defer a.Close()
	printWarnings(a)

	defs := a.gates
	if gatesDetectedOnly {
		defs = gates.Detect(a.root)
	}
	if len(defs) == 0 {
		fmt.Println("No gates detected. Add gates to .phasegate.yaml or run 'phasegate init'.")
		return nil
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		Headers("NAME", "KIND", "STATUS", "TIMEOUT", "COMMAND")
	for _, d := range defs {
		t.Row(d.Name, string(d.EffectiveKind()), gateStatus(d), fmt.Sprintf("%ds", d.Timeout()), strings.Join(d.Command, " "))
	}
	fmt.Println(t)
	return nil
}

func gateStatus(d gates.Definition) string {
	switch {
	case !d.Enabled:
		return color.New(color.FgHiBlack).Sprint("disabled")
	case d.Optional:
		return color.YellowString("optional")
	}
	return color.GreenString("enabled")
}
