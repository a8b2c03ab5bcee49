// Visual styling for the run summaries.
package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"envdeploy/internal/pipeline"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8BC34A"))
	labelStyle  = lipgloss.NewStyle().Width(20).Foreground(lipgloss.Color("#5f87af"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC107"))
	dimStyle    = lipgloss.NewStyle().Faint(true)
)

func row(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "%s %s\n", labelStyle.Render(label), value)
}

func stepWord(s pipeline.StepResult) string {
	switch {
	case s.Detail != "":
		return dimStyle.Render(s.Detail)
	case s.Changed:
		return "updated"
	case s.Applied:
		return dimStyle.Render("already correct")
	default:
		return dimStyle.Render("skipped")
	}
}

// renderSummary formats a deploy summary for the terminal.
func renderSummary(sum *pipeline.Summary) string {
	var b strings.Builder

	title := "Deployment complete"
	if sum.DryRun {
		title = "Dry run: no files written"
	}
	b.WriteString(headerStyle.Render(title) + "\n")

	row(&b, "run", sum.RunID)
	row(&b, "workspace root", sum.WorkspaceRoot)
	row(&b, "project file", sum.ProjectFile)
	row(&b, "instance", sum.InstanceDir)
	row(&b, "environment config", sum.EnvironmentConfig)
	row(&b, "hostname", sum.Hostname)
	row(&b, "target file", sum.TargetFile)
	row(&b, "backup", sum.BackupFile)
	row(&b, "copy directive", stepWord(sum.CopyDirective))
	row(&b, "debug launch", stepWord(sum.DebugLaunch))
	row(&b, "startup project", stepWord(sum.Startup))

	if sum.Preview != "" {
		b.WriteString(labelStyle.Render("preview") + "\n")
		b.WriteString(dimStyle.Render(sum.Preview) + "\n")
	}
	for _, w := range sum.Warnings {
		b.WriteString(warnStyle.Render("warning: "+w) + "\n")
	}
	return b.String()
}
