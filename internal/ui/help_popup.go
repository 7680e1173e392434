package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	overlay "github.com/rmhubbert/bubbletea-overlay"
)

func (m Model) renderHelpPopup(main string) string {
	var content strings.Builder

	title := lipgloss.NewStyle().Bold(true).Foreground(AccentColor()).Render("Keyboard Shortcuts")
	content.WriteString(title)
	content.WriteString("\n\n")

	keys := m.config.Keys

	section := func(name string, bindings []struct{ key, desc string }) {
		header := lipgloss.NewStyle().Bold(true).Foreground(HighlightColor()).Render(name)
		content.WriteString(header + "\n")
		for _, b := range bindings {
			keyStyle := lipgloss.NewStyle().Foreground(SuccessColor()).Width(15)
			descStyle := lipgloss.NewStyle().Foreground(TextSecondary())
			content.WriteString(fmt.Sprintf("  %s %s\n", keyStyle.Render(b.key), descStyle.Render(b.desc)))
		}
		content.WriteString("\n")
	}

	section("Query", []struct{ key, desc string }{
		{strings.Join(keys.Execute, "/"), "Execute SQL"},
		{"enter", "Ask (in the ask pane)"},
		{strings.Join(keys.Generate, "/"), "Generate SQL only"},
		{strings.Join(keys.Cancel, "/"), "Cancel running query"},
		{strings.Join(keys.Clear, "/"), "Clear editor and results"},
	})

	section("Panels", []struct{ key, desc string }{
		{strings.Join(keys.Focus, "/"), "Next pane"},
		{"shift+tab", "Previous pane"},
		{strings.Join(keys.Schema, "/"), "Toggle schema browser"},
		{strings.Join(keys.Refresh, "/"), "Refresh schema"},
		{strings.Join(keys.Help, "/"), "Show this help"},
	})

	section("Connections", []struct{ key, desc string }{
		{"enter", "Select"},
		{"a", "Add"},
		{"e", "Edit"},
		{"d", "Delete"},
		{"ctrl+t", "Test (in form)"},
		{"ctrl+s", "Save (in form)"},
	})

	section("Schema Browser", []struct{ key, desc string }{
		{"enter", "View columns"},
		{"l/h", "Switch tabs"},
		{"p", "Preview rows"},
		{"esc", "Back / close"},
	})

	section("Other", []struct{ key, desc string }{
		{strings.Join(keys.Exit, "/"), "Quit"},
	})

	content.WriteString(lipgloss.NewStyle().Faint(true).Render("Press any key to close"))

	popupBox := PopupStyle.
		Width(50).
		MaxHeight(m.height - 4).
		Background(PopupBg()).
		Render(content.String())

	return overlay.Composite(popupBox, main, overlay.Center, overlay.Center, 0, 0)
}
