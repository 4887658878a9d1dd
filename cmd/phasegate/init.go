package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/phasegate/internal/config"
	"github.com/ShayCichocki/phasegate/internal/gates"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize phasegate in a project",
	Long: `Initialize a directory for use with phasegate.

This command:
  - Detects the project's validation gates
  - Writes .phasegate.yaml listing them with the default options
  - Creates the .phasegate directory
  - Adds .phasegate/ to .gitignore

Examples:
  phasegate init              # Initialize current directory
  phasegate init ./myproject  # Initialize specific directory
  phasegate init --force      # Overwrite an existing .phasegate.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing .phasegate.yaml")
}

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := projectDir
	if len(args) > 0 {
		targetDir = args[0]
	}
	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolving absolute path: %w", err)
	}

	fmt.Printf("Initializing phasegate in %s...\n\n", absPath)

	defs := gates.Detect(absPath)
	if len(defs) == 0 {
		printStatus("⚠", "No gates detected (add them to .phasegate.yaml)", color.FgYellow)
	} else {
		names := make([]string, len(defs))
		for i, d := range defs {
			names[i] = d.Name
		}
		printStatus("✓", "Detected gates: "+strings.Join(names, ", "), color.FgGreen)
	}

	path, err := config.WriteProjectFile(absPath, config.NewProjectFile(config.Default(), gateEntries(defs)), initForce)
	if err != nil {
		if _, statErr := os.Stat(path); statErr == nil && !initForce {
			printStatus("•", ".phasegate.yaml already exists (use --force to overwrite)", color.FgCyan)
		} else {
			printStatus("✗", "Could not write .phasegate.yaml", color.FgRed)
			return err
		}
	} else {
		printStatus("✓", "Created "+config.ProjectConfigName, color.FgGreen)
	}

	if err := os.MkdirAll(filepath.Join(absPath, ".phasegate"), 0755); err != nil {
		return fmt.Errorf("creating .phasegate directory: %w", err)
	}
	printStatus("✓", "Created .phasegate directory", color.FgGreen)

	if err := updateGitignore(absPath); err != nil {
		return fmt.Errorf("updating .gitignore: %w", err)
	}
	printStatus("✓", "Updated .gitignore", color.FgGreen)

	fmt.Printf("\n%s phasegate initialization complete!\n\n", color.GreenString("✓"))
	fmt.Println("Next steps:")
	fmt.Println("  1. Review the gates:      phasegate gates")
	fmt.Println("  2. Run them once:         phasegate validate")
	fmt.Println("  3. Start a workflow:      phasegate phase start plan build review")
	return nil
}

func gateEntries(defs []gates.Definition) []config.GateEntry {
	entries := make([]config.GateEntry, 0, len(defs))
	for _, d := range defs {
		entries = append(entries, config.GateEntry{
			Name:           d.Name,
			Command:        d.Command,
			TimeoutSeconds: d.Timeout(),
			Enabled:        d.Enabled,
			Optional:       d.Optional,
		})
	}
	return entries
}

// updateGitignore adds phasegate entries to .gitignore if not present
func updateGitignore(repoPath string) error {
	gitignorePath := filepath.Join(repoPath, ".gitignore")

	var existingContent string
	if data, err := os.ReadFile(gitignorePath); err == nil {
		existingContent = string(data)
	}

	entries := []string{".phasegate/"}

	var missing []string
	for _, entry := range entries {
		if !strings.Contains(existingContent, entry) {
			missing = append(missing, entry)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	var newContent strings.Builder
	newContent.WriteString(existingContent)
	if len(existingContent) > 0 && !strings.HasSuffix(existingContent, "\n") {
		newContent.WriteString("\n")
	}
	newContent.WriteString("\n# phasegate\n")
	for _, entry := range missing {
		newContent.WriteString(entry + "\n")
	}

	return os.WriteFile(gitignorePath, []byte(newContent.String()), 0644)
}
