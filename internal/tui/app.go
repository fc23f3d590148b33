// Package tui provides the interactive terminal UI for Tempora.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	// Colors
	primaryColor = lipgloss.Color("#7C3AED")
	successColor = lipgloss.Color("#10B981")
	warningColor = lipgloss.Color("#F59E0B")
	errorColor   = lipgloss.Color("#EF4444")
	mutedColor   = lipgloss.Color("#6B7280")
	fgColor      = lipgloss.Color("#F9FAFB")
	cyanColor    = lipgloss.Color("#06B6D4")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#374151")).
			Foreground(fgColor).
			Padding(0, 1)

	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)

	daemonOnlineStyle = lipgloss.NewStyle().
				Foreground(successColor).
				Bold(true)

	daemonOfflineStyle = lipgloss.NewStyle().
				Foreground(errorColor)
)

const refreshInterval = 2 * time.Second

// App is the main TUI application model.
type App struct {
	client       *Client
	runList      list.Model
	runs         []RunInfo
	input        textinput.Model
	viewport     viewport.Model
	width        int
	height       int
	mode         string // "runs", "detail", "week"
	currentRun   *RunInfo
	output       *RunOutput
	week         *WeekInfo
	scripts      []ScriptInfo
	health       *HealthInfo
	message      string
	filter       string
	filterIdx    int
	loading      bool
	daemonOnline bool
	suggestions  *Suggestions
}

var filters = []string{"", "queued", "running", "finished", "killed", "error"}
var filterNames = []string{"ALL", "QUEUED", "RUNNING", "DONE", "KILLED", "ERROR"}

// New creates a new TUI application.
func New(apiAddr, token string) *App {
	ti := textinput.New()
	ti.Placeholder = "Type: run <script> | kill | busy <day> <start> <end> | week | runs"
	ti.Focus()
	ti.CharLimit = 256
	ti.Width = 80

	vp := viewport.New(80, 20)

	return &App{
		client:      NewClient(apiAddr, token),
		runList:     newRunList(),
		input:       ti,
		viewport:    vp,
		mode:        "runs",
		suggestions: NewSuggestions(),
	}
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		a.fetchRuns(),
		a.fetchScripts(),
		a.fetchHealth(),
		a.tickCmd(),
	)
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return a, tea.Quit

		case "esc":
			if a.mode == "detail" || a.mode == "week" {
				a.mode = "runs"
				a.currentRun = nil
				a.output = nil
				return a, a.fetchRuns()
			}

		case "up":
			if a.suggestions.IsVisible() {
				a.suggestions.Prev()
				return a, nil
			}

		case "down":
			if a.suggestions.IsVisible() {
				a.suggestions.Next()
				return a, nil
			}

		case "tab":
			// If suggestions visible, accept selection
			if a.suggestions.IsVisible() {
				if selected := a.suggestions.Selected(); selected != nil {
					a.input.SetValue(selected.Text + " ")
					a.suggestions.Update("")
				}
				return a, nil
			}
			if a.mode == "runs" {
				a.filterIdx = (a.filterIdx + 1) % len(filters)
				a.filter = filters[a.filterIdx]
				return a, a.fetchRuns()
			}

		case "enter":
			// If suggestions visible, accept selection
			if a.suggestions.IsVisible() {
				if selected := a.suggestions.Selected(); selected != nil {
					a.input.SetValue(selected.Text + " ")
					a.suggestions.Update("")
				}
				return a, nil
			}
			cmd := strings.TrimSpace(a.input.Value())
			if cmd != "" {
				a.input.SetValue("")
				return a, a.executeCommand(cmd)
			}
			if a.mode == "runs" {
				if item := a.selectedRun(); item != nil {
					a.mode = "detail"
					return a, a.fetchRunDetail(item.RunID)
				}
			}
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.input.Width = msg.Width - 4
		a.viewport.Width = msg.Width
		a.viewport.Height = msg.Height - 10
		a.runList.SetSize(msg.Width-2, msg.Height-10)

	case runsLoadedMsg:
		a.loading = false
		a.runs = msg.runs
		a.runList.SetItems(runListItems(msg.runs))

	case runDetailLoadedMsg:
		a.currentRun = msg.run
		a.output = msg.output
		a.viewport.SetContent(renderRunDetail(msg.run, msg.output))

	case weekLoadedMsg:
		a.week = msg.week

	case scriptsLoadedMsg:
		a.scripts = msg.scripts

	case healthMsg:
		a.health = msg.health
		a.daemonOnline = msg.health != nil && msg.health.OK

	case tickMsg:
		return a, tea.Batch(a.refreshCurrent(), a.fetchHealth(), a.tickCmd())

	case commandResultMsg:
		a.message = msg.message
		return a, a.refreshCurrent()

	case errMsg:
		a.message = "Error: " + msg.err.Error()
	}

	// Update input
	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	cmds = append(cmds, cmd)

	// List navigation happens whenever typing is not in progress.
	if a.mode == "runs" && a.input.Value() == "" && !a.suggestions.IsVisible() {
		a.runList, cmd = a.runList.Update(msg)
		cmds = append(cmds, cmd)
	}
	if a.mode == "detail" {
		a.viewport, cmd = a.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}

	// Update suggestions based on input
	a.suggestions.Update(a.input.Value())

	// Populate dynamic suggestions for @
	if strings.HasPrefix(a.input.Value(), "@") {
		var names []string
		for _, s := range a.scripts {
			names = append(names, s.Name)
		}
		a.suggestions.SetScripts(names)

		var runIDs []string
		for _, r := range a.runs {
			runIDs = append(runIDs, r.ID)
		}
		a.suggestions.SetRuns(runIDs)
	}

	return a, tea.Batch(cmds...)
}

// View implements tea.Model
func (a *App) View() string {
	var b strings.Builder

	// Header with daemon status
	daemonStatus := daemonOnlineStyle.Render("● DAEMON")
	if !a.daemonOnline {
		daemonStatus = daemonOfflineStyle.Render("○ DAEMON")
	}

	capacity := ""
	if a.health != nil {
		capacity = lipgloss.NewStyle().Foreground(cyanColor).
			Render(fmt.Sprintf("[%d/%d active]", a.health.Active, a.health.Max))
	}

	header := titleStyle.Render("🗓  TEMPORA")
	header += "  " + daemonStatus
	if capacity != "" {
		header += "  " + capacity
	}
	if a.health != nil && a.health.Version != "" {
		header += "  " + helpStyle.Render("v"+a.health.Version)
	}

	b.WriteString(header + "\n")
	b.WriteString(strings.Repeat("─", max(a.width, 20)) + "\n")

	// Main content area
	contentHeight := a.height - 8
	if contentHeight < 5 {
		contentHeight = 5
	}

	switch a.mode {
	case "runs":
		filterLabel := fmt.Sprintf(" Filter: [%s]", filterNames[a.filterIdx])
		b.WriteString(lipgloss.NewStyle().Foreground(mutedColor).Render(filterLabel) + "\n")
		if a.loading {
			b.WriteString("\n  Loading runs...\n")
		} else {
			b.WriteString(a.runList.View())
		}
	case "detail":
		b.WriteString(a.viewport.View())
	case "week":
		b.WriteString(renderWeek(a.week))
	}

	// Message bar
	if a.message != "" {
		msgStyle := lipgloss.NewStyle().Foreground(successColor)
		if strings.HasPrefix(a.message, "Error") {
			msgStyle = lipgloss.NewStyle().Foreground(errorColor)
		}
		b.WriteString("\n" + msgStyle.Render(a.message))
	} else {
		b.WriteString("\n")
	}

	// Input box
	b.WriteString("\n")
	b.WriteString(inputBoxStyle.Render(a.input.View()))

	// Suggestions dropdown (if visible) renders below the input
	if a.suggestions.IsVisible() {
		b.WriteString("\n")
		b.WriteString(a.suggestions.Render(a.width))
	}
	b.WriteString("\n")

	// Status bar
	var status string
	switch a.mode {
	case "runs":
		status = fmt.Sprintf(" Runs: %d | ↑↓:nav | Tab:filter | Enter:detail | /:commands | Ctrl+C:quit", len(a.runs))
	case "detail":
		status = " ↑↓:scroll | Esc:back | kill:stop this run | Ctrl+C:quit"
	case "week":
		status = " Esc:back | busy <day> <start> <end> | free <day> <start> <end>"
	default:
		status = " Esc:back | Enter:command | Ctrl+C:quit"
	}
	b.WriteString(statusBarStyle.Width(max(a.width, 20)).Render(status))

	return b.String()
}

func (a *App) selectedRun() *RunItem {
	if item := a.runList.SelectedItem(); item != nil {
		run := item.(RunItem)
		return &run
	}
	return nil
}

// refreshCurrent reloads whatever the active mode is showing.
func (a *App) refreshCurrent() tea.Cmd {
	switch a.mode {
	case "detail":
		if a.currentRun != nil {
			return a.fetchRunDetail(a.currentRun.ID)
		}
	case "week":
		return a.fetchWeek()
	}
	return a.fetchRuns()
}

func (a *App) fetchRuns() tea.Cmd {
	a.loading = a.runs == nil
	return func() tea.Msg {
		runs, err := a.client.ListRuns(a.filter)
		if err != nil {
			return errMsg{err}
		}
		return runsLoadedMsg{runs}
	}
}

func (a *App) fetchRunDetail(runID string) tea.Cmd {
	return func() tea.Msg {
		run, err := a.client.GetRun(runID)
		if err != nil {
			return errMsg{err}
		}
		output, _ := a.client.GetRunOutput(runID)
		return runDetailLoadedMsg{run, output}
	}
}

func (a *App) fetchWeek() tea.Cmd {
	return func() tea.Msg {
		week, err := a.client.GetWeek()
		if err != nil {
			return errMsg{err}
		}
		return weekLoadedMsg{week}
	}
}

func (a *App) fetchScripts() tea.Cmd {
	return func() tea.Msg {
		scripts, err := a.client.ListScripts()
		if err != nil {
			return errMsg{err}
		}
		return scriptsLoadedMsg{scripts}
	}
}

func (a *App) fetchHealth() tea.Cmd {
	return func() tea.Msg {
		health, err := a.client.CheckHealth()
		if err != nil {
			return healthMsg{nil}
		}
		return healthMsg{health}
	}
}

func (a *App) tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (a *App) executeCommand(input string) tea.Cmd {
	input = strings.TrimPrefix(input, "/")
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return nil
	}

	cmd := parts[0]
	args := parts[1:]

	// Mode switches happen synchronously so the next render is right.
	switch cmd {
	case "week":
		a.mode = "week"
		return a.fetchWeek()
	case "runs":
		a.mode = "runs"
		return a.fetchRuns()
	case "refresh":
		return tea.Batch(a.refreshCurrent(), a.fetchHealth(), a.fetchScripts())
	case "q", "quit", "exit":
		return tea.Quit
	}

	selected := a.selectedRun()
	current := a.currentRun

	return func() tea.Msg {
		switch cmd {
		case "run":
			if len(args) < 1 {
				return commandResultMsg{"Usage: run <script-or-path>"}
			}
			id, err := a.client.SubmitRun(args[0])
			if err != nil {
				return commandResultMsg{"Error: " + err.Error()}
			}
			return commandResultMsg{fmt.Sprintf("✓ Queued run %s", shortID(id))}

		case "kill":
			runID := ""
			if len(args) > 0 {
				runID = args[0]
			} else if current != nil {
				runID = current.ID
			} else if selected != nil {
				runID = selected.RunID
			}
			if runID == "" {
				return commandResultMsg{"No run selected"}
			}
			if err := a.client.KillRun(runID); err != nil {
				return commandResultMsg{"Error: " + err.Error()}
			}
			return commandResultMsg{fmt.Sprintf("✓ Killed run %s", shortID(runID))}

		case "busy", "free":
			if len(args) < 3 {
				return commandResultMsg{fmt.Sprintf("Usage: %s <day> <start> <end>", cmd)}
			}
			var err error
			if cmd == "busy" {
				err = a.client.MarkBusy(args[0], args[1], args[2])
			} else {
				err = a.client.MarkFree(args[0], args[1], args[2])
			}
			if err != nil {
				return commandResultMsg{"Error: " + err.Error()}
			}
			return commandResultMsg{fmt.Sprintf("✓ Marked %s %s-%s %s", args[0], args[1], args[2], cmd)}

		case "scripts":
			scripts, err := a.client.ListScripts()
			if err != nil {
				return commandResultMsg{"Error: " + err.Error()}
			}
			if len(scripts) == 0 {
				return commandResultMsg{"No scripts registered"}
			}
			names := make([]string, len(scripts))
			for i, s := range scripts {
				names[i] = s.Name
			}
			return commandResultMsg{fmt.Sprintf("%d scripts: %s", len(names), strings.Join(names, ", "))}

		default:
			return commandResultMsg{fmt.Sprintf("Unknown: %s (try: run, kill, busy, free, week, runs)", cmd)}
		}
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

type commandResultMsg struct {
	message string
}

type errMsg struct {
	err error
}

type runsLoadedMsg struct {
	runs []RunInfo
}

type runDetailLoadedMsg struct {
	run    *RunInfo
	output *RunOutput
}

type weekLoadedMsg struct {
	week *WeekInfo
}

type scriptsLoadedMsg struct {
	scripts []ScriptInfo
}

type healthMsg struct {
	health *HealthInfo
}

type tickMsg time.Time
