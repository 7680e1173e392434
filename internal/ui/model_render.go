package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	overlay "github.com/rmhubbert/bubbletea-overlay"

	"github.com/nhath/ezquery/internal/core"
	"github.com/nhath/ezquery/internal/session"
	"github.com/nhath/ezquery/internal/ui/components/table"
	"github.com/nhath/ezquery/internal/ui/highlight"
	"github.com/nhath/ezquery/internal/ui/icons"
)

// View renders the UI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	bodyHeight := m.bodyHeight()
	sidebarWidth, mainWidth := m.sidebarWidth(), m.mainWidth()

	sidebar := m.paneStyle(PaneConnections).
		Width(sidebarWidth - 2).
		Height(bodyHeight - 2).
		MaxHeight(bodyHeight).
		Render(m.connList.View())

	var snap session.Snapshot
	if sess := m.deps.Coordinator.Session(); sess != nil {
		snap = sess.Snapshot()
	}

	// 1. Editor grows with its content up to a third of the body
	editorHeight := m.editorHeight()
	m.editor.SetHeight(editorHeight)
	editorTitle := PaneTitleStyle.Render("SQL")
	if snap.Provenance != "" && snap.Provenance == m.editor.Value() {
		editorTitle += MetaStyle.Render("  generated from prompt")
	}
	editorBox := m.paneStyle(PaneEditor).
		Width(mainWidth - 2).
		Height(editorHeight + 1).
		MaxHeight(editorHeight + 3).
		Render(editorTitle + "\n" + m.editorBody())

	promptBox := m.paneStyle(PanePrompt).
		Width(mainWidth - 2).
		Render(m.prompt.View())

	// 2. Results take the rest
	resultsHeight := bodyHeight - lipgloss.Height(editorBox) - lipgloss.Height(promptBox)
	if resultsHeight < 3 {
		resultsHeight = 3
	}
	resultsBox := m.paneStyle(PaneResults).
		Width(mainWidth - 2).
		Height(resultsHeight - 2).
		MaxHeight(resultsHeight).
		Render(m.resultsBody(snap, mainWidth-4))

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		sidebar,
		lipgloss.JoinVertical(lipgloss.Left, editorBox, promptBox, resultsBox),
	)

	main := lipgloss.JoinVertical(lipgloss.Left,
		body,
		m.renderStatusBar(),
		m.renderHelp(),
	)

	if m.schema.IsVisible() {
		main = overlay.Composite(m.schema.View(), main, overlay.Center, overlay.Center, 0, 0)
	}
	if m.showHelp {
		main = m.renderHelpPopup(main)
	}
	return main
}

func (m Model) editorBody() string {
	if m.focus == PaneEditor || m.editor.Value() == "" {
		return m.editor.View()
	}
	var dialect core.DriverType
	if conn, ok := m.connection(m.active); ok {
		dialect = conn.Type
	}
	return highlight.SQL(m.editor.Value(), dialect)
}

func (m Model) resultsBody(snap session.Snapshot, width int) string {
	var b strings.Builder
	b.WriteString(PaneTitleStyle.Render("Results"))

	switch {
	case m.active == "":
		b.WriteString("\n" + MetaStyle.Render("No connection selected. Press a in the connections pane to add one."))
		return b.String()
	case snap.Status == session.Failed && snap.Err != nil:
		b.WriteString("\n" + ErrorStyle.Width(width).Render(icons.IconError+" "+core.Message(snap.Err)))
	case snap.Status == session.Cancelled:
		b.WriteString("\n" + MetaStyle.Render("Cancelled"))
	}

	if m.results == nil {
		b.WriteString("\n" + MetaStyle.Render("No results yet"))
		return b.String()
	}
	b.WriteString("\n" + m.resultsTable.View())
	return b.String()
}

func (m Model) paneStyle(p Pane) lipgloss.Style {
	if m.focus == p {
		return FocusedStyle
	}
	return PaneStyle
}

// layout resizes every component after a window change
func (m Model) layout() Model {
	bodyHeight := m.bodyHeight()
	sidebarWidth, mainWidth := m.sidebarWidth(), m.mainWidth()

	m.connList = m.connList.SetSize(sidebarWidth-4, bodyHeight-2)
	m.schema = m.schema.SetSize(m.width, m.height)
	m.editor.SetWidth(mainWidth - 4)
	m.prompt.Width = mainWidth - 8

	if m.results != nil {
		m.resultsTable = table.FromQueryResult(m.results, m.pageSize()).
			WithTargetWidth(mainWidth - 4).
			Focused(m.focus == PaneResults)
	}
	return m
}

func (m Model) bodyHeight() int {
	// status bar and hint line
	h := m.height - 2
	if h < 10 {
		h = 10
	}
	return h
}

func (m Model) sidebarWidth() int {
	w := m.width / 4
	if w < 24 {
		w = 24
	}
	if w > 36 {
		w = 36
	}
	return w
}

func (m Model) mainWidth() int {
	w := m.width - m.sidebarWidth()
	if w < 20 {
		w = 20
	}
	return w
}

func (m Model) editorHeight() int {
	lines := strings.Count(m.editor.Value(), "\n") + 1
	maxHeight := m.bodyHeight() / 3
	if maxHeight < 3 {
		maxHeight = 3
	}
	return min(max(lines, 3), maxHeight)
}

// pageSize is the number of result rows that fit the results pane
func (m Model) pageSize() int {
	// editor box, prompt box, results border and title, error line, table chrome
	used := (m.editorHeight() + 3) + 3 + 3 + 1 + 6
	return max(m.bodyHeight()-used, 1)
}
