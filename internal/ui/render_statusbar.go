package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhath/ezquery/internal/ui/icons"
)

func (m Model) renderStatusBar() string {
	var parts []string

	// 1. Focus
	parts = append(parts, ModeStyle.Render(m.focus.String()))

	// 2. Connection Info
	if conn, ok := m.connection(m.active); ok {
		info := ConnectionStyle.Render(icons.Database(conn.Type) + " " + conn.Name)
		addr := lipgloss.NewStyle().Background(CardBg()).Foreground(TextSecondary()).Render(limitString(conn.Address(), 30) + " ")
		parts = append(parts, info+addr)
	} else {
		parts = append(parts, ConnectionStyle.Render(" NO CONNECTION "))
	}

	// 3. Activity
	if m.busy() {
		parts = append(parts, RunningStyle.Render(m.spinner.View()+" Running..."))
	} else if m.schema.Loading() {
		loadingStyle := lipgloss.NewStyle().Foreground(HighlightColor()).Padding(0, 1)
		parts = append(parts, loadingStyle.Render("◌ Loading schema..."))
	}

	// 4. Notices
	if m.statusMsg != "" {
		statusStyle := lipgloss.NewStyle().Background(SuccessColor()).Foreground(BgPrimary()).Padding(0, 1)
		parts = append(parts, statusStyle.Render(icons.IconSuccess+" "+m.statusMsg))
	}
	if m.warningMsg != "" {
		parts = append(parts, WarningStyle.Render(limitString(m.warningMsg, 40)))
	}
	if m.errorMsg != "" {
		errorStyle := lipgloss.NewStyle().Background(ErrorColor()).Foreground(TextPrimary()).Padding(0, 1)
		parts = append(parts, errorStyle.Render(icons.IconError+" "+limitString(m.errorMsg, 40)))
	}

	content := lipgloss.JoinHorizontal(lipgloss.Left, parts...)
	return StatusBarStyle.Width(m.width).MaxHeight(1).Render(content)
}

// limitString truncates s to maxLen runes
func limitString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
