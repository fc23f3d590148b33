package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Suggestions provides autocomplete for commands
type Suggestions struct {
	items        []SuggestionItem
	filtered     []SuggestionItem
	selectedIdx  int
	visible      bool
	prefix       string // "/" or "@"
	currentInput string
}

// SuggestionItem represents a single autocomplete suggestion
type SuggestionItem struct {
	Text        string
	Description string
	Type        string // "command", "script", "run"
}

var commandSuggestions = []SuggestionItem{
	{Text: "run", Description: "Queue a script for execution", Type: "command"},
	{Text: "kill", Description: "Stop the selected run", Type: "command"},
	{Text: "busy", Description: "Mark blocks busy: busy <day> <start> <end>", Type: "command"},
	{Text: "free", Description: "Clear blocks: free <day> <start> <end>", Type: "command"},
	{Text: "week", Description: "Show the availability calendar", Type: "command"},
	{Text: "runs", Description: "Show the run list", Type: "command"},
	{Text: "scripts", Description: "List registered scripts", Type: "command"},
	{Text: "refresh", Description: "Reload from the daemon", Type: "command"},
	{Text: "quit", Description: "Exit the UI", Type: "command"},
}

// NewSuggestions creates a new suggestions handler
func NewSuggestions() *Suggestions {
	return &Suggestions{
		items:   commandSuggestions,
		visible: false,
	}
}

// Update updates suggestions based on current input
func (s *Suggestions) Update(input string) {
	if input == "" {
		s.visible = false
		s.filtered = nil
		s.prefix = ""
		return
	}

	firstChar := string(input[0])
	if firstChar == "/" {
		s.prefix = "/"
		s.items = commandSuggestions
		s.visible = true
		query := strings.ToLower(strings.TrimPrefix(input, "/"))
		s.filter(query)
	} else if firstChar == "@" {
		s.prefix = "@"
		// For @, wait for scripts/runs to be populated rather than
		// carrying over the command list.
		if len(s.items) > 0 && s.items[0].Type == "command" {
			s.items = []SuggestionItem{}
		}
		s.visible = true
		query := strings.ToLower(strings.TrimPrefix(input, "@"))
		s.filter(query)
	} else {
		s.visible = false
		s.filtered = nil
		s.prefix = ""
	}

	s.currentInput = input
}

// SetScripts updates the script name suggestions
func (s *Suggestions) SetScripts(names []string) {
	if s.prefix == "@" {
		s.items = make([]SuggestionItem, len(names))
		for i, name := range names {
			s.items[i] = SuggestionItem{
				Text:        name,
				Description: "Registered script",
				Type:        "script",
			}
		}
		query := strings.ToLower(strings.TrimPrefix(s.currentInput, "@"))
		s.filter(query)
	}
}

// SetRuns updates the run ID suggestions
func (s *Suggestions) SetRuns(ids []string) {
	if s.prefix == "@" {
		runItems := make([]SuggestionItem, len(ids))
		for i, id := range ids {
			runItems[i] = SuggestionItem{
				Text:        id,
				Description: "Run",
				Type:        "run",
			}
		}
		s.items = append(s.items, runItems...)
		query := strings.ToLower(strings.TrimPrefix(s.currentInput, "@"))
		s.filter(query)
	}
}

func (s *Suggestions) filter(query string) {
	if query == "" {
		s.filtered = s.items
		s.selectedIdx = 0
		return
	}

	s.filtered = []SuggestionItem{}
	for _, item := range s.items {
		if strings.Contains(strings.ToLower(item.Text), query) {
			s.filtered = append(s.filtered, item)
		}
	}
	s.selectedIdx = 0
}

// Next moves to the next suggestion
func (s *Suggestions) Next() {
	if len(s.filtered) == 0 {
		return
	}
	s.selectedIdx = (s.selectedIdx + 1) % len(s.filtered)
}

// Prev moves to the previous suggestion
func (s *Suggestions) Prev() {
	if len(s.filtered) == 0 {
		return
	}
	s.selectedIdx--
	if s.selectedIdx < 0 {
		s.selectedIdx = len(s.filtered) - 1
	}
}

// Selected returns the currently selected suggestion
func (s *Suggestions) Selected() *SuggestionItem {
	if !s.visible || len(s.filtered) == 0 || s.selectedIdx >= len(s.filtered) {
		return nil
	}
	return &s.filtered[s.selectedIdx]
}

// IsVisible returns whether suggestions are currently visible
func (s *Suggestions) IsVisible() bool {
	return s.visible && len(s.filtered) > 0
}

// Render renders the suggestions dropdown
func (s *Suggestions) Render(width int) string {
	if !s.IsVisible() {
		return ""
	}

	var b strings.Builder

	suggestionStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#6366F1")).
		Padding(0, 1).
		Width(width - 4)

	selectedItemStyle := lipgloss.NewStyle().
		Background(lipgloss.Color("#7C3AED")).
		Foreground(lipgloss.Color("#F9FAFB")).
		Bold(true)

	itemStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#F9FAFB"))

	descStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#6B7280")).
		Italic(true)

	var header string
	switch s.prefix {
	case "/":
		header = "💡 Commands"
	case "@":
		header = "🔗 References"
	}
	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED")).Render(header))
	b.WriteString("\n")

	// Show max 5 suggestions
	maxVisible := 5
	for i, item := range s.filtered {
		if i >= maxVisible {
			more := len(s.filtered) - maxVisible
			b.WriteString(descStyle.Render(fmt.Sprintf("  ... and %d more", more)))
			break
		}

		line := ""
		if i == s.selectedIdx {
			line = selectedItemStyle.Render("▶ " + item.Text)
			if item.Description != "" {
				line += " " + selectedItemStyle.Render(item.Description)
			}
		} else {
			line = itemStyle.Render("  " + item.Text)
			if item.Description != "" {
				line += " " + descStyle.Render(item.Description)
			}
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	return suggestionStyle.Render(b.String())
}
