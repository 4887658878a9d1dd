package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/ShayCichocki/phasegate/internal/engine"
)

// printStatus prints a status line with color
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}

// printResponse prints an engine response for a person.
func printResponse(resp engine.Response) {
	if !resp.Continue {
		printStatus("✗", resp.StopReason, color.FgRed)
		if resp.Message != "" {
			fmt.Println("  " + resp.Message)
		}
		return
	}
	if resp.Message == "" {
		return
	}
	lines := strings.Split(resp.Message, "\n")
	symbol, attr := "•", color.FgCyan
	switch {
	case strings.Contains(lines[0], "validation failed"), strings.HasPrefix(lines[0], "cannot complete"):
		symbol, attr = "✗", color.FgRed
	case strings.Contains(lines[0], "validation skipped"), strings.HasPrefix(lines[0], "phasegate: "):
		symbol, attr = "⚠", color.FgYellow
	case strings.Contains(lines[0], "passed"), strings.Contains(lines[0], "completed"):
		symbol, attr = "✓", color.FgGreen
	}
	printStatus(symbol, lines[0], attr)
	for _, l := range lines[1:] {
		fmt.Println(l)
	}
}

// printWarnings prints configuration warnings.
func printWarnings(a *app) {
	for _, w := range a.cfg.Warnings {
		printStatus("⚠", w.Error(), color.FgYellow)
	}
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m > 0 {
			return fmt.Sprintf("%dh%dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	}
	days := int(d.Hours()) / 24
	return fmt.Sprintf("%dd", days)
}
