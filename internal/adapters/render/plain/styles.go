package plain

import "github.com/charmbracelet/lipgloss"

type styles struct {
	userLabel      lipgloss.Style
	assistantLabel lipgloss.Style
	errorText      lipgloss.Style
}

func newStyles() styles {
	return styles{
		userLabel:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		assistantLabel: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("78")),
		errorText:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
	}
}
