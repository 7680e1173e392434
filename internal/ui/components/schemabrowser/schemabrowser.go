// Package schemabrowser provides a popup for browsing database schema.
package schemabrowser

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/evertras/bubble-table/table"

	"github.com/nhath/ezquery/internal/core"
	eztable "github.com/nhath/ezquery/internal/ui/components/table"
	"github.com/nhath/ezquery/internal/ui/icons"
)

type State int

const (
	StateObjects State = iota
	StateDetail
)

type DetailTab int

const (
	TabColumns DetailTab = iota
	TabRelations
)

// Object is one browsable table or view.
type Object struct {
	Schema  string
	Name    string
	View    bool
	Columns []core.Column
	Keys    []core.ForeignKey
	// Definition is the view body, when the database exposes it.
	Definition string
}

// Label is the display name of the object.
func (o Object) Label() string {
	if o.Schema == "" || o.Schema == "public" || o.Schema == "main" {
		return o.Name
	}
	return o.Schema + "." + o.Name
}

// PreviewMsg asks for a SELECT * preview of an object.
type PreviewMsg struct {
	Schema string
	Name   string
}

// Styles for the browser
type Styles struct {
	Container   lipgloss.Style
	Title       lipgloss.Style
	Item        lipgloss.Style
	ItemActive  lipgloss.Style
	ItemFaint   lipgloss.Style
	TableCell   lipgloss.Style
	Spinner     lipgloss.Style
	TabActive   lipgloss.Style
	TabInactive lipgloss.Style
	Error       lipgloss.Style
	Warning     lipgloss.Style
	Footer      lipgloss.Style
}

// DefaultStyles returns default styling using Nord palette
func DefaultStyles() Styles {
	textPrimary := lipgloss.Color("#D8DEE9")    // Nord4: Light gray
	textFaint := lipgloss.Color("#4C566A")      // Nord3: Dark gray
	accentColor := lipgloss.Color("#88C0D0")    // Nord8: Cyan blue
	successColor := lipgloss.Color("#A3BE8C")   // Nord14: Green
	highlightColor := lipgloss.Color("#8FBCBB") // Nord7: Teal

	return Styles{
		Container: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(highlightColor).
			Padding(1, 2),
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor).
			MarginBottom(1),
		Item:       lipgloss.NewStyle().Foreground(textPrimary),
		ItemActive: lipgloss.NewStyle().Foreground(successColor).Bold(true),
		ItemFaint:  lipgloss.NewStyle().Foreground(textFaint),
		TableCell:  lipgloss.NewStyle().Foreground(textPrimary),
		Spinner:    lipgloss.NewStyle().Foreground(highlightColor),
		TabActive: lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true).
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(successColor).
			Padding(0, 1),
		TabInactive: lipgloss.NewStyle().
			Foreground(textFaint).
			Padding(0, 1),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("#BF616A")),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("#D08770")),
		Footer:  lipgloss.NewStyle().Faint(true),
	}
}

// Model represents the schema browser state
type Model struct {
	visible     bool
	state       State
	objects     []Object
	selectedIdx int
	current     Object
	activeTab   DetailTab
	width       int
	height      int
	styles      Styles
	viewport    viewport.Model
	spinner     spinner.Model
	detail      table.Model
	loading     bool
	stale       bool
	err         string
	title       string
}

// New creates a new schema browser
func New() Model {
	s := spinner.New()
	s.Spinner = spinner.Dot

	m := Model{
		state:    StateObjects,
		styles:   DefaultStyles(),
		viewport: viewport.New(0, 0),
		spinner:  s,
	}
	m.spinner.Style = m.styles.Spinner
	return m
}

// Objects flattens metadata into browsable objects: tables first, then views.
func Objects(meta *core.Metadata) []Object {
	if meta == nil {
		return nil
	}
	out := make([]Object, 0, meta.TableCount())
	for _, t := range meta.Tables {
		out = append(out, Object{Schema: t.Schema, Name: t.Name, Columns: t.Columns, Keys: t.ForeignKeys})
	}
	for _, v := range meta.Views {
		o := Object{Schema: v.Schema, Name: v.Name, View: true, Columns: v.Columns}
		if v.Definition != nil {
			o.Definition = strings.TrimSpace(*v.Definition)
		}
		out = append(out, o)
	}
	return out
}

// SetSize sets the available size
func (m Model) SetSize(w, h int) Model {
	m.width = w
	m.height = h
	return m.updateViewportDimensions()
}

func (m Model) updateViewportDimensions() Model {
	popupWidth, popupHeight := m.getPopupSize()
	m.viewport.Width = popupWidth - 6
	if m.state == StateDetail {
		m.viewport.Height = popupHeight - 9
	} else {
		m.viewport.Height = popupHeight - 6
	}
	if m.viewport.Height < 1 {
		m.viewport.Height = 1
	}
	return m
}

// Toggle toggles visibility
func (m Model) Toggle() Model {
	m.visible = !m.visible
	if m.visible {
		m.state = StateObjects
		m = m.updateViewportDimensions().ensureSelectionVisible()
	}
	return m
}

// Hide closes the popup.
func (m Model) Hide() Model {
	m.visible = false
	return m
}

// IsVisible returns visibility state
func (m Model) IsVisible() bool {
	return m.visible
}

// StartLoading begins loading state
func (m Model) StartLoading(title string) (Model, tea.Cmd) {
	m.loading = true
	m.title = title
	m.err = ""
	return m, m.spinner.Tick
}

// SetMetadata replaces the browsed schema. The selection is kept when the
// same object still exists.
func (m Model) SetMetadata(title string, meta *core.Metadata, stale bool) Model {
	prev := ""
	if m.selectedIdx < len(m.objects) {
		prev = m.objects[m.selectedIdx].Label()
	}
	m.title = title
	m.objects = Objects(meta)
	m.loading = false
	m.stale = stale
	m.err = ""
	m.selectedIdx = 0
	for i, o := range m.objects {
		if o.Label() == prev {
			m.selectedIdx = i
			break
		}
	}
	if m.state == StateDetail {
		m.state = StateObjects
	}
	return m.updateViewportDimensions()
}

// SetError records a failed load. Objects already shown stay visible.
func (m Model) SetError(err string) Model {
	m.loading = false
	m.err = err
	m.stale = len(m.objects) > 0
	return m
}

// Reset empties the browser, for when no connection is selected.
func (m Model) Reset() Model {
	m.objects = nil
	m.selectedIdx = 0
	m.state = StateObjects
	m.loading = false
	m.stale = false
	m.err = ""
	m.title = ""
	return m
}

// Loading reports whether a load is in progress.
func (m Model) Loading() bool {
	return m.loading
}

// Len returns the number of browsable objects.
func (m Model) Len() int {
	return len(m.objects)
}

// Selected returns the highlighted object.
func (m Model) Selected() (Object, bool) {
	if m.state == StateDetail {
		return m.current, true
	}
	if m.selectedIdx < len(m.objects) {
		return m.objects[m.selectedIdx], true
	}
	return Object{}, false
}

// Update handles input
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(spinner.TickMsg); ok {
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	if !m.visible {
		return m, nil
	}

	key, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	switch key.String() {
	case "up", "k":
		if m.state == StateObjects {
			if m.selectedIdx > 0 {
				m.selectedIdx--
				m = m.ensureSelectionVisible()
			}
		} else {
			m.viewport.LineUp(1)
		}
	case "down", "j":
		if m.state == StateObjects {
			if m.selectedIdx < len(m.objects)-1 {
				m.selectedIdx++
				m = m.ensureSelectionVisible()
			}
		} else {
			m.viewport.LineDown(1)
		}
	case "left", "h":
		if m.state == StateDetail {
			m.activeTab = TabColumns
			m = m.syncDetail()
		}
	case "right", "l":
		if m.state == StateDetail {
			m.activeTab = TabRelations
			m = m.syncDetail()
		}
	case "p", "s":
		if o, ok := m.Selected(); ok {
			m.visible = false
			return m, func() tea.Msg {
				return PreviewMsg{Schema: o.Schema, Name: o.Name}
			}
		}
	case "enter":
		if m.state == StateObjects && m.selectedIdx < len(m.objects) {
			m.current = m.objects[m.selectedIdx]
			m.state = StateDetail
			m.activeTab = TabColumns
			m = m.updateViewportDimensions().syncDetail()
		}
	case "backspace", "esc":
		if m.state == StateDetail {
			m.state = StateObjects
			m = m.updateViewportDimensions().ensureSelectionVisible()
		} else {
			m.visible = false
		}
	}
	return m, nil
}

func (m Model) syncDetail() Model {
	m.viewport.YOffset = 0
	if m.activeTab == TabColumns {
		m.detail = eztable.FromColumns(m.current.Columns).Focused(false)
	} else if !m.current.View {
		m.detail = eztable.FromForeignKeys(m.current.Keys).Focused(false)
	}
	return m
}

func (m Model) ensureSelectionVisible() Model {
	if m.viewport.Height <= 0 {
		return m
	}
	if m.selectedIdx < m.viewport.YOffset {
		m.viewport.YOffset = m.selectedIdx
	} else if m.selectedIdx >= m.viewport.YOffset+m.viewport.Height {
		m.viewport.YOffset = m.selectedIdx - m.viewport.Height + 1
	}
	return m
}

// SetStyles sets custom styles
func (m Model) SetStyles(s Styles) Model {
	m.styles = s
	m.spinner.Style = s.Spinner
	return m
}

// View renders the browser popup
func (m Model) View() string {
	if !m.visible {
		return ""
	}
	popupWidth, popupHeight := m.getPopupSize()

	if m.loading && len(m.objects) == 0 {
		return m.styles.Container.
			Width(40).
			Height(5).
			Render(fmt.Sprintf("\n  %s Loading schema of %s...", m.spinner.View(), m.title))
	}

	var view strings.Builder
	title := " " + m.title
	if m.state == StateDetail {
		title = " " + m.current.Label()
	}
	if m.loading {
		title += " " + m.spinner.View()
	}
	view.WriteString(m.styles.Title.Render(title))
	view.WriteString("\n")
	if m.err != "" {
		view.WriteString(m.styles.Error.Render(icons.IconError + " " + m.err))
		view.WriteString("\n")
	} else if m.stale {
		view.WriteString(m.styles.Warning.Render("showing a stale snapshot"))
		view.WriteString("\n")
	}

	if m.state == StateDetail {
		second := " Foreign keys"
		if m.current.View {
			second = " Definition"
		}
		colStyle, relStyle := m.styles.TabActive, m.styles.TabInactive
		if m.activeTab == TabRelations {
			colStyle, relStyle = relStyle, colStyle
		}
		view.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			colStyle.Render(" Columns"),
			relStyle.Render(second)))
		view.WriteString("\n\n")
	}

	m.viewport.SetContent(m.renderContent(popupWidth))
	view.WriteString(m.viewport.View())

	view.WriteString("\n")
	if m.state == StateDetail {
		view.WriteString(m.styles.Footer.Render("p: preview • l/h: tabs • esc: back"))
	} else {
		view.WriteString(m.styles.Footer.Render("enter: details • p: preview • esc: close"))
	}

	return m.styles.Container.
		Width(popupWidth).
		Height(popupHeight).
		Render(view.String())
}

func (m Model) getPopupSize() (int, int) {
	popupWidth := int(float64(m.width) * 0.9)
	if popupWidth > 100 {
		popupWidth = 100
	}
	popupHeight := int(float64(m.height) * 0.8)
	if popupHeight > 35 {
		popupHeight = 35
	}
	return popupWidth, popupHeight
}

func (m Model) renderContent(popupWidth int) string {
	var content strings.Builder

	if m.state == StateObjects {
		if len(m.objects) == 0 {
			content.WriteString(m.styles.ItemFaint.Render("  (No tables or views found)"))
			return content.String()
		}
		for i, o := range m.objects {
			icon := icons.IconTable
			if o.View {
				icon = icons.IconView
			}
			line := fmt.Sprintf("%s %s", icon, o.Label())
			style := m.styles.Item
			prefix := "  "
			if i == m.selectedIdx {
				style = m.styles.ItemActive
				prefix = icons.IconSelect + " "
			}
			content.WriteString(style.Render(prefix + line))
			content.WriteString(m.styles.ItemFaint.Render(fmt.Sprintf("  %d cols", len(o.Columns))))
			content.WriteString("\n")
		}
		return content.String()
	}

	if m.activeTab == TabRelations && m.current.View {
		if m.current.Definition == "" {
			return m.styles.ItemFaint.Render("  (Definition not available)")
		}
		return m.styles.TableCell.Width(popupWidth - 8).Render(m.current.Definition)
	}
	if m.activeTab == TabRelations && len(m.current.Keys) == 0 {
		return m.styles.ItemFaint.Render("  (No foreign keys)")
	}
	return m.detail.WithTargetWidth(popupWidth - 8).View()
}
