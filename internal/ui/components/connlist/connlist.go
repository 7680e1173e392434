// Package connlist provides the connection list pane and its add/edit form.
package connlist

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhath/ezquery/internal/config"
	"github.com/nhath/ezquery/internal/core"
	"github.com/nhath/ezquery/internal/ui/icons"
)

// State represents the component state
type State int

const (
	StateBrowsing State = iota
	StateAdding
	StateEditing
	StateConfirmDelete
)

// Styles for the list
type Styles struct {
	Title         lipgloss.Style
	Item          lipgloss.Style
	ItemName      lipgloss.Style
	ItemHost      lipgloss.Style
	Selected      lipgloss.Style
	SelectedName  lipgloss.Style
	Active        lipgloss.Style
	StatusOK      lipgloss.Style
	StatusFailed  lipgloss.Style
	SectionTitle  lipgloss.Style
	FieldLabel    lipgloss.Style
	FieldLabelAct lipgloss.Style
	StatusSuccess lipgloss.Style
	StatusError   lipgloss.Style
	Hint          lipgloss.Style
}

// DefaultStyles returns the default styling
func DefaultStyles(theme config.Theme) Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(theme.Accent)),
		Item: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.TextSecondary)).
			PaddingLeft(1),
		ItemName: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.TextPrimary)).
			Bold(true),
		ItemHost: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.TextFaint)),
		Selected: lipgloss.NewStyle().
			Border(lipgloss.ThickBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color(theme.Accent)).
			Background(lipgloss.Color(theme.SelectedBg)),
		SelectedName: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.Success)).
			Bold(true),
		Active: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.Highlight)),
		StatusOK: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.Success)),
		StatusFailed: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.Error)),
		SectionTitle: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.Highlight)).
			Bold(true).
			MarginBottom(1),
		FieldLabel: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.TextFaint)).
			Width(10),
		FieldLabelAct: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.Accent)).
			Bold(true).
			Width(10),
		StatusSuccess: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.Success)).
			Bold(true),
		StatusError: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.Error)).
			Bold(true),
		Hint: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.TextFaint)),
	}
}

// SelectedMsg is sent when a connection is chosen
type SelectedMsg struct {
	ID string
}

// SubmitMsg is sent when the form is saved. ID is empty for a new
// connection; for an edit, Patch holds the changed fields.
type SubmitMsg struct {
	ID    string
	Draft core.Draft
	Patch core.Patch
}

// TestMsg asks for a connectivity test of the form values
type TestMsg struct {
	Probe core.Probe
}

// DeleteMsg is sent when a deletion is confirmed
type DeleteMsg struct {
	ID string
}

const (
	fieldName = iota
	fieldType
	fieldHost
	fieldPort
	fieldUser
	fieldDatabase
	fieldPassword
	fieldSSHHost
	fieldSSHUser
	fieldSSHKey
	fieldCount
)

var fieldLabels = [fieldCount]string{
	"Name", "Type", "Host", "Port", "User", "Database", "Password", "SSH host", "SSH user", "SSH key",
}

// Model represents the list state
type Model struct {
	conns    []core.Connection
	selected int
	active   string
	state    State
	inputs   [fieldCount]textinput.Model
	focused  int
	editing  string
	width    int
	height   int
	styles   Styles
	status   string
	statusOK bool
}

// New creates a new list
func New(theme config.Theme) Model {
	newInput := func(placeholder string, width int) textinput.Model {
		t := textinput.New()
		t.Placeholder = placeholder
		t.Width = width
		t.Prompt = ""
		return t
	}

	m := Model{styles: DefaultStyles(theme)}
	m.inputs[fieldName] = newInput("analytics", 30)
	m.inputs[fieldType] = newInput("postgres, mysql or sqlite", 30)
	m.inputs[fieldHost] = newInput("localhost", 30)
	m.inputs[fieldPort] = newInput("5432", 8)
	m.inputs[fieldUser] = newInput("postgres", 30)
	m.inputs[fieldDatabase] = newInput("Database / Path", 30)
	m.inputs[fieldPassword] = newInput("Password (optional)", 30)
	m.inputs[fieldPassword].EchoMode = textinput.EchoPassword
	m.inputs[fieldPassword].EchoCharacter = '•'
	m.inputs[fieldSSHHost] = newInput("optional", 30)
	m.inputs[fieldSSHUser] = newInput("optional", 30)
	m.inputs[fieldSSHKey] = newInput("~/.ssh/id_ed25519", 30)
	return m
}

// SetConnections updates the list, keeping the cursor on the same
// connection when it still exists
func (m Model) SetConnections(conns []core.Connection) Model {
	prev := m.SelectedID()
	m.conns = conns
	m.selected = 0
	for i, c := range conns {
		if c.ID == prev {
			m.selected = i
			break
		}
	}
	return m
}

// SetActive marks the active connection and moves the cursor to it
func (m Model) SetActive(id string) Model {
	m.active = id
	for i, c := range m.conns {
		if c.ID == id {
			m.selected = i
			break
		}
	}
	return m
}

// SetSize sets the pane size
func (m Model) SetSize(w, h int) Model {
	m.width = w
	m.height = h
	return m
}

// SetStatus shows a transient line under the form
func (m Model) SetStatus(text string, ok bool) Model {
	m.status = text
	m.statusOK = ok
	return m
}

// FormDone returns to browsing after a successful save.
func (m Model) FormDone() Model {
	m.state = StateBrowsing
	m.editing = ""
	m.blurAll()
	return m
}

// State returns the current state
func (m Model) State() State {
	return m.state
}

// Capturing reports whether keystrokes belong to the component, so the
// parent must not interpret them as shortcuts.
func (m Model) Capturing() bool {
	return m.state != StateBrowsing
}

// SelectedID returns the id under the cursor
func (m Model) SelectedID() string {
	if m.selected < len(m.conns) {
		return m.conns[m.selected].ID
	}
	return ""
}

func (m Model) find(id string) (core.Connection, bool) {
	for _, c := range m.conns {
		if id != "" && c.ID == id {
			return c, true
		}
	}
	return core.Connection{}, false
}

// Update handles input
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		if m.state == StateAdding || m.state == StateEditing {
			var cmd tea.Cmd
			m.inputs[m.focused], cmd = m.inputs[m.focused].Update(msg)
			return m, cmd
		}
		return m, nil
	}

	switch m.state {
	case StateConfirmDelete:
		id := m.SelectedID()
		m.state = StateBrowsing
		if key.String() == "y" && id != "" {
			return m, func() tea.Msg { return DeleteMsg{ID: id} }
		}
		return m, nil
	case StateAdding, StateEditing:
		return m.updateForm(key)
	}

	switch key.String() {
	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
	case "down", "j":
		if m.selected < len(m.conns)-1 {
			m.selected++
		}
	case "enter":
		if id := m.SelectedID(); id != "" {
			return m, func() tea.Msg { return SelectedMsg{ID: id} }
		}
	case "a":
		m.state = StateAdding
		m.editing = ""
		m.clearInputs()
		m.status = ""
		return m, m.focusField(fieldName)
	case "e":
		if m.selected < len(m.conns) {
			c := m.conns[m.selected]
			m.state = StateEditing
			m.editing = c.ID
			m.populateInputs(c)
			m.status = ""
			return m, m.focusField(fieldName)
		}
	case "d", "x":
		if m.SelectedID() != "" {
			m.state = StateConfirmDelete
		}
	}
	return m, nil
}

func (m Model) updateForm(key tea.KeyMsg) (Model, tea.Cmd) {
	switch key.String() {
	case "esc":
		return m.FormDone(), nil
	case "tab", "down":
		return m, m.focusField((m.focused + 1) % fieldCount)
	case "shift+tab", "up":
		return m, m.focusField((m.focused + fieldCount - 1) % fieldCount)
	case "ctrl+t":
		d, err := m.draft()
		if err != nil {
			m.status, m.statusOK = err.Error(), false
			return m, nil
		}
		m.status, m.statusOK = "Testing connection...", true
		return m, func() tea.Msg { return TestMsg{Probe: d.Probe()} }
	case "enter", "ctrl+s":
		if key.String() == "enter" && m.focused < fieldCount-1 {
			return m, m.focusField(m.focused + 1)
		}
		d, err := m.draft()
		if err != nil {
			m.status, m.statusOK = err.Error(), false
			return m, nil
		}
		submit := SubmitMsg{ID: m.editing, Draft: d}
		if orig, ok := m.find(m.editing); ok {
			submit.Patch = Diff(orig, d)
			if submit.Patch.Empty() {
				return m.FormDone(), nil
			}
		}
		m.status, m.statusOK = "Saving...", true
		return m, func() tea.Msg { return submit }
	}
	var cmd tea.Cmd
	m.inputs[m.focused], cmd = m.inputs[m.focused].Update(key)
	return m, cmd
}

// draft builds a connection draft from the form. Only the port is checked
// here; everything else is validated by the registry.
func (m Model) draft() (core.Draft, error) {
	val := func(i int) string { return strings.TrimSpace(m.inputs[i].Value()) }

	d := core.Draft{
		Name:         val(fieldName),
		Type:         core.DriverType(strings.ToLower(val(fieldType))),
		Host:         val(fieldHost),
		User:         val(fieldUser),
		DatabaseName: val(fieldDatabase),
		Password:     m.inputs[fieldPassword].Value(),
	}
	if d.Type == "" {
		d.Type = core.Postgres
	}
	if p := val(fieldPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return core.Draft{}, fmt.Errorf("port must be a number")
		}
		d.Port = port
	} else {
		d.Port = d.Type.DefaultPort()
	}
	if d.Type == core.SQLite && d.Host == "" {
		d.Host = "localhost"
	}
	if h := val(fieldSSHHost); h != "" {
		d.Tunnel = &core.Tunnel{Host: h, User: val(fieldSSHUser), KeyPath: val(fieldSSHKey)}
	}
	return d, nil
}

// Diff returns the patch that turns c into d. An empty password keeps
// the stored one.
func Diff(c core.Connection, d core.Draft) core.Patch {
	var p core.Patch
	if d.Name != c.Name {
		p.Name = &d.Name
	}
	if d.Type != c.Type {
		p.Type = &d.Type
	}
	if d.Host != c.Host {
		p.Host = &d.Host
	}
	if d.Port != c.Port {
		p.Port = &d.Port
	}
	if d.DatabaseName != c.DatabaseName {
		p.DatabaseName = &d.DatabaseName
	}
	if d.User != c.User {
		p.User = &d.User
	}
	if d.Password != "" {
		p.Password = &d.Password
	}
	switch {
	case d.Tunnel == nil && c.Tunnel != nil:
		p.Tunnel = &core.Tunnel{}
	case d.Tunnel != nil && (c.Tunnel == nil || *d.Tunnel != *c.Tunnel):
		p.Tunnel = d.Tunnel
	}
	return p
}

func (m *Model) focusField(idx int) tea.Cmd {
	m.blurAll()
	m.focused = idx
	return m.inputs[idx].Focus()
}

func (m *Model) blurAll() {
	for i := range m.inputs {
		m.inputs[i].Blur()
	}
}

func (m *Model) clearInputs() {
	for i := range m.inputs {
		m.inputs[i].SetValue("")
	}
}

func (m *Model) populateInputs(c core.Connection) {
	m.clearInputs()
	m.inputs[fieldName].SetValue(c.Name)
	m.inputs[fieldType].SetValue(string(c.Type))
	m.inputs[fieldHost].SetValue(c.Host)
	if c.Port > 0 {
		m.inputs[fieldPort].SetValue(strconv.Itoa(c.Port))
	}
	m.inputs[fieldUser].SetValue(c.User)
	m.inputs[fieldDatabase].SetValue(c.DatabaseName)
	if c.Tunnel != nil {
		m.inputs[fieldSSHHost].SetValue(c.Tunnel.Host)
		m.inputs[fieldSSHUser].SetValue(c.Tunnel.User)
		m.inputs[fieldSSHKey].SetValue(c.Tunnel.KeyPath)
	}
}

// View renders the pane
func (m Model) View() string {
	if m.state == StateAdding || m.state == StateEditing {
		return m.viewForm()
	}

	var b strings.Builder
	b.WriteString(m.styles.Title.Render("Connections"))
	b.WriteString("\n\n")

	if len(m.conns) == 0 {
		b.WriteString(m.styles.Hint.Render("No connections yet.\nPress a to add one."))
		return b.String()
	}

	for i, c := range m.conns {
		marker := icons.Status(c.Status)
		switch c.Status {
		case core.StatusConnected:
			marker = m.styles.StatusOK.Render(marker)
		case core.StatusFailed:
			marker = m.styles.StatusFailed.Render(marker)
		}
		name := limitString(c.Name, m.width-6)
		addr := m.styles.ItemHost.Render(limitString(c.Address(), m.width-4))
		line := fmt.Sprintf("%s %s %s", marker, icons.Database(c.Type), name)
		if c.ID == m.active {
			line += m.styles.Active.Render(" " + icons.IconBullet)
		}
		if i == m.selected {
			b.WriteString(m.styles.Selected.Render(m.styles.SelectedName.Render(line) + "\n" + addr))
		} else {
			b.WriteString(m.styles.Item.Render(m.styles.ItemName.Render(line) + "\n" + addr))
		}
		b.WriteString("\n")
	}

	if m.state == StateConfirmDelete {
		b.WriteString("\n")
		b.WriteString(m.styles.StatusError.Render("Delete " + m.conns[m.selected].Name + "? (y/n)"))
	} else {
		b.WriteString("\n")
		b.WriteString(m.styles.Hint.Render("enter select • a add • e edit • d delete"))
	}
	return b.String()
}

func (m Model) viewForm() string {
	var b strings.Builder
	title := "New connection"
	if m.state == StateEditing {
		title = "Edit connection"
	}
	b.WriteString(m.styles.SectionTitle.Render(title))
	b.WriteString("\n")
	for i := range m.inputs {
		label := m.styles.FieldLabel
		if i == m.focused {
			label = m.styles.FieldLabelAct
		}
		b.WriteString(label.Render(fieldLabels[i]))
		b.WriteString(m.inputs[i].View())
		b.WriteString("\n")
	}
	if m.status != "" {
		b.WriteString("\n")
		style := m.styles.StatusError
		if m.statusOK {
			style = m.styles.StatusSuccess
		}
		b.WriteString(style.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.styles.Hint.Render("tab next • ctrl+t test • ctrl+s save • esc cancel"))
	return b.String()
}

func limitString(s string, maxLen int) string {
	if maxLen <= 3 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
