package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	detailHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("205")).
				BorderStyle(lipgloss.NormalBorder()).
				BorderBottom(true).
				BorderForeground(lipgloss.Color("240"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			MarginTop(1)
)

// renderRunDetail builds the detail pane content for the viewport.
func renderRunDetail(run *RunInfo, output *RunOutput) string {
	if run == nil {
		return "Loading run details..."
	}

	var b strings.Builder

	b.WriteString(detailHeaderStyle.Render(run.Script))
	b.WriteString("\n\n")

	b.WriteString(renderField("ID", run.ID))
	b.WriteString(renderField("Path", run.Path))
	b.WriteString(renderField("Status", formatRunStatus(run.Status)))
	if run.ExitCode != nil {
		exit := fmt.Sprintf("%d", *run.ExitCode)
		if *run.ExitCode == 0 {
			exit = statusFinished.Render(exit)
		} else {
			exit = statusError.Render(exit)
		}
		b.WriteString(renderField("Exit Code", exit))
	}
	if run.Error != "" {
		b.WriteString(renderField("Error", statusError.Render(run.Error)))
	}
	b.WriteString(renderField("Created", run.CreatedAt))
	if run.StartedAt != "" {
		b.WriteString(renderField("Started", run.StartedAt))
	}
	if run.EndedAt != "" {
		b.WriteString(renderField("Ended", run.EndedAt))
	}

	if output != nil {
		if output.Stdout != "" {
			b.WriteString(sectionStyle.Render("Stdout"))
			b.WriteString("\n")
			b.WriteString(tailLines(output.Stdout, 30))
			b.WriteString("\n")
		}
		if output.Stderr != "" {
			b.WriteString(sectionStyle.Render("Stderr"))
			b.WriteString("\n")
			b.WriteString(statusError.Render(tailLines(output.Stderr, 10)))
			b.WriteString("\n")
		}
	}

	return b.String()
}

func renderField(label, value string) string {
	return fmt.Sprintf("%s %s\n", labelStyle.Render(label+":"), valueStyle.Render(value))
}

// tailLines keeps the last n lines of sink output.
func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
