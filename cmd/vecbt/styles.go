package main

import "github.com/charmbracelet/lipgloss"

// Styles degrade to plain text when stdout is not a terminal.
var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	colHeaderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	gainStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	lossStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	bestStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
)

// signed renders an already formatted number green when v is positive and
// red when negative.
func signed(v float64, formatted string) string {
	switch {
	case v > 0:
		return gainStyle.Render(formatted)
	case v < 0:
		return lossStyle.Render(formatted)
	default:
		return formatted
	}
}
