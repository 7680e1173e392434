package ui

import tea "github.com/charmbracelet/bubbletea"

// matches reports whether msg is one of the configured bindings
func matches(msg tea.KeyMsg, bindings []string) bool {
	s := msg.String()
	for _, b := range bindings {
		if b == s {
			return true
		}
	}
	return false
}

// firstKey returns the first binding or fallback
func firstKey(bindings []string, fallback string) string {
	if len(bindings) > 0 {
		return bindings[0]
	}
	return fallback
}
