package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	dayLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#06B6D4"))

	busyHourStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	mixedStyle    = lipgloss.NewStyle().Foreground(warningColor)
	freeHourStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#374151"))
	spanStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
)

// renderWeek draws the availability calendar: one row per day with an
// hour strip, followed by the busy spans spelled out.
func renderWeek(week *WeekInfo) string {
	var b strings.Builder

	b.WriteString("\n  📅 Availability Week\n")
	b.WriteString("  " + strings.Repeat("─", 50) + "\n\n")

	if week == nil {
		b.WriteString("  Loading...\n")
		return b.String()
	}

	b.WriteString(fmt.Sprintf("  %d-minute blocks, %d busy across the week\n\n",
		week.IntervalMinutes, week.BusyBlocks))

	// Hour ruler
	b.WriteString("             0     6     12    18    24\n")
	b.WriteString("             |     |     |     |     |\n")

	for _, day := range week.Days {
		label := fmt.Sprintf("%-10s", day.Day)
		b.WriteString("  " + dayLabelStyle.Render(label) + " " + hourStrip(day) + "\n")
	}

	b.WriteString("\n")
	for _, day := range week.Days {
		spans := busySpanLabels(day)
		if len(spans) == 0 {
			continue
		}
		b.WriteString(fmt.Sprintf("  %-10s %s\n", day.Day, spanStyle.Render(strings.Join(spans, ", "))))
	}

	return b.String()
}

// hourStrip compresses a day into one character per hour: busy, mixed,
// or free.
func hourStrip(day DayInfo) string {
	if len(day.Blocks) == 0 {
		return ""
	}
	perHour := len(day.Blocks) / 24
	if perHour == 0 {
		perHour = 1
	}

	var b strings.Builder
	for h := 0; h < 24; h++ {
		busy := 0
		for i := h * perHour; i < (h+1)*perHour && i < len(day.Blocks); i++ {
			if day.Blocks[i].Status == "busy" {
				busy++
			}
		}
		switch {
		case busy == perHour:
			b.WriteString(busyHourStyle.Render("█"))
		case busy > 0:
			b.WriteString(mixedStyle.Render("▒"))
		default:
			b.WriteString(freeHourStyle.Render("·"))
		}
	}
	return b.String()
}

// busySpanLabels merges consecutive busy blocks into HH:MM-HH:MM labels.
func busySpanLabels(day DayInfo) []string {
	var spans []string

	i := 0
	for i < len(day.Blocks) {
		if day.Blocks[i].Status != "busy" {
			i++
			continue
		}
		j := i + 1
		for j < len(day.Blocks) && day.Blocks[j].Status == "busy" {
			j++
		}

		start := clipMinutes(day.Blocks[i].Start)
		end := "24:00"
		if j < len(day.Blocks) {
			end = clipMinutes(day.Blocks[j].Start)
		}
		spans = append(spans, start+"-"+end)
		i = j
	}
	return spans
}

// clipMinutes trims HH:MM:SS down to HH:MM.
func clipMinutes(s string) string {
	if len(s) >= 5 {
		return s[:5]
	}
	return s
}
