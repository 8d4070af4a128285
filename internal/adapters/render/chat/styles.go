package chat

import "github.com/charmbracelet/lipgloss"

type styles struct {
	header         lipgloss.Style
	userLabel      lipgloss.Style
	assistantLabel lipgloss.Style
	systemText     lipgloss.Style
	errorText      lipgloss.Style
	footer         lipgloss.Style
}

func newStyles() styles {
	return styles{
		header:         lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		userLabel:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		assistantLabel: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("78")),
		systemText:     lipgloss.NewStyle().Faint(true),
		errorText:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		footer:         lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}
