package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func (m Model) renderHelp() string {
	// Style for key hints - makes keys look like keyboard buttons
	keyStyle := lipgloss.NewStyle().
		Foreground(TextPrimary()).
		Background(CardBg()).
		Padding(0, 1).
		Bold(true)

	sepStyle := lipgloss.NewStyle().Foreground(TextFaint())
	descStyle := lipgloss.NewStyle().Foreground(TextSecondary())

	hint := func(key, desc string) string {
		return keyStyle.Render(key) + descStyle.Render(" "+desc)
	}

	sep := sepStyle.Render("  ")
	keys := m.config.Keys

	// Context-aware hints based on the focused pane
	var hints []string
	if m.busy() {
		hints = append(hints, hint(firstKey(keys.Cancel, "esc"), "Cancel"))
	}

	switch m.focus {
	case PaneConnections:
		if m.connList.Capturing() {
			hints = append(hints, hint("esc", "Back"))
			break
		}
		hints = append(hints,
			hint("enter", "Select"),
			hint("a", "Add"),
			hint("e", "Edit"),
			hint("d", "Delete"),
		)
	case PaneEditor:
		hints = append(hints,
			hint(firstKey(keys.Execute, "ctrl+d"), "Run"),
			hint(firstKey(keys.Clear, "ctrl+l"), "Clear"),
			hint(firstKey(keys.Schema, "ctrl+o"), "Schema"),
		)
	case PanePrompt:
		hints = append(hints,
			hint("enter", "Ask"),
			hint(firstKey(keys.Generate, "ctrl+g"), "Generate"),
		)
	case PaneResults:
		hints = append(hints,
			hint("↑/↓", "Rows"),
			hint("←/→", "Page"),
		)
	}

	hints = append(hints,
		hint(firstKey(keys.Focus, "tab"), "Pane"),
		hint(firstKey(keys.Help, "f1"), "Help"),
		hint(firstKey(keys.Exit, "ctrl+q"), "Quit"),
	)

	return lipgloss.NewStyle().MaxWidth(m.width).Render(strings.Join(hints, sep))
}
