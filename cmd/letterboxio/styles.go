package main

import "github.com/charmbracelet/lipgloss"

var (
	accentColor  = lipgloss.Color("#FF8000") // site orange
	successColor = lipgloss.Color("#A8E6CF")
	errorColor   = lipgloss.Color("#FFB3BA")
	mutedColor   = lipgloss.Color("#6B7280")
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(accentColor).
			Bold(true)

	slugStyle = lipgloss.NewStyle().
			Foreground(accentColor)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	successStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accentColor).
			Padding(0, 1)
)
