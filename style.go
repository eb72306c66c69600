package main

import "github.com/charmbracelet/lipgloss"

var (
	keyword   = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Render
	faint     = lipgloss.NewStyle().Faint(true).Render
	warning   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F25D94")).Render
	paragraph = lipgloss.NewStyle().Width(78).Padding(0, 0, 0, 2).Render
)
