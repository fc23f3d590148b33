package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/lipgloss"
)

var (
	listTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	statusQueued   = lipgloss.NewStyle().Foreground(lipgloss.Color("3")) // Yellow
	statusRunning  = lipgloss.NewStyle().Foreground(lipgloss.Color("6")) // Cyan
	statusFinished = lipgloss.NewStyle().Foreground(lipgloss.Color("2")) // Green
	statusKilled   = lipgloss.NewStyle().Foreground(lipgloss.Color("5")) // Magenta
	statusError    = lipgloss.NewStyle().Foreground(lipgloss.Color("1")) // Red
)

// RunItem implements list.Item for the run list
type RunItem struct {
	RunID     string
	Script    string
	RunStatus string
	ExitCode  *int
	CreatedAt string
}

func (i RunItem) FilterValue() string { return i.Script }
func (i RunItem) Title() string {
	return fmt.Sprintf("%s  %s", shortID(i.RunID), i.Script)
}
func (i RunItem) Description() string {
	desc := formatRunStatus(i.RunStatus)
	if i.ExitCode != nil {
		desc += fmt.Sprintf(" • exit %d", *i.ExitCode)
	}
	if i.CreatedAt != "" {
		desc += " • " + i.CreatedAt
	}
	return desc
}

func formatRunStatus(status string) string {
	switch status {
	case "queued":
		return statusQueued.Render("● queued")
	case "running":
		return statusRunning.Render("● running")
	case "finished":
		return statusFinished.Render("● finished")
	case "killed":
		return statusKilled.Render("● killed")
	case "error":
		return statusError.Render("● error")
	default:
		return status
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// newRunList builds the bubbles list used for the runs screen.
func newRunList() list.Model {
	delegate := list.NewDefaultDelegate()
	l := list.New([]list.Item{}, delegate, 80, 20)
	l.Title = "Runs"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.Styles.Title = listTitleStyle
	return l
}

// runListItems converts API runs into list items.
func runListItems(runs []RunInfo) []list.Item {
	items := make([]list.Item, len(runs))
	for i, r := range runs {
		items[i] = RunItem{
			RunID:     r.ID,
			Script:    r.Script,
			RunStatus: r.Status,
			ExitCode:  r.ExitCode,
			CreatedAt: r.CreatedAt,
		}
	}
	return items
}
