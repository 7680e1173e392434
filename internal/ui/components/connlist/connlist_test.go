package connlist

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhath/ezquery/internal/config"
	"github.com/nhath/ezquery/internal/core"
)

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	case "ctrl+t":
		return tea.KeyMsg{Type: tea.KeyCtrlT}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func typeText(m Model, s string) Model {
	for _, r := range s {
		m, _ = m.Update(key(string(r)))
	}
	return m
}

func run(cmd tea.Cmd) tea.Msg {
	if cmd == nil {
		return nil
	}
	return cmd()
}

func conns() []core.Connection {
	return []core.Connection{
		{ID: "a", Name: "alpha", Type: core.Postgres, Host: "db", Port: 5432, DatabaseName: "app", User: "u", Status: core.StatusConnected},
		{ID: "b", Name: "beta", Type: core.SQLite, DatabaseName: "/tmp/b.db", Status: core.StatusFailed},
	}
}

func TestSelectAndDelete(t *testing.T) {
	m := New(config.DefaultConfig().Theme).SetConnections(conns())

	m, cmd := m.Update(key("j"))
	assert.Nil(t, cmd)
	_, cmd = m.Update(key("enter"))
	assert.Equal(t, SelectedMsg{ID: "b"}, run(cmd))

	m, _ = m.Update(key("d"))
	assert.True(t, m.Capturing())
	m, cmd = m.Update(key("n"))
	assert.Nil(t, cmd)
	assert.False(t, m.Capturing())

	m, _ = m.Update(key("d"))
	_, cmd = m.Update(key("y"))
	assert.Equal(t, DeleteMsg{ID: "b"}, run(cmd))
}

func TestAddForm(t *testing.T) {
	m := New(config.DefaultConfig().Theme)

	m, _ = m.Update(key("a"))
	require.Equal(t, StateAdding, m.State())
	m = typeText(m, "local")
	m, _ = m.Update(key("tab"))
	m = typeText(m, "sqlite")
	for i := 0; i < fieldDatabase-fieldType; i++ {
		m, _ = m.Update(key("tab"))
	}
	m = typeText(m, "/tmp/x.db")

	_, cmd := m.Update(key("ctrl+s"))
	msg, ok := run(cmd).(SubmitMsg)
	require.True(t, ok)
	assert.Empty(t, msg.ID)
	assert.Equal(t, "local", msg.Draft.Name)
	assert.Equal(t, core.SQLite, msg.Draft.Type)
	assert.Equal(t, "/tmp/x.db", msg.Draft.DatabaseName)
	assert.NoError(t, msg.Draft.Validate())
}

func TestFormRejectsBadPort(t *testing.T) {
	m := New(config.DefaultConfig().Theme)
	m, _ = m.Update(key("a"))
	for i := 0; i < fieldPort; i++ {
		m, _ = m.Update(key("tab"))
	}
	m = typeText(m, "abc")

	m, cmd := m.Update(key("ctrl+t"))
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), "port must be a number")
}

func TestEditSubmitsChangedFieldsOnly(t *testing.T) {
	m := New(config.DefaultConfig().Theme).SetConnections(conns())

	m, _ = m.Update(key("e"))
	require.Equal(t, StateEditing, m.State())
	m = typeText(m, "2")

	_, cmd := m.Update(key("ctrl+s"))
	msg, ok := run(cmd).(SubmitMsg)
	require.True(t, ok)
	assert.Equal(t, "a", msg.ID)
	require.NotNil(t, msg.Patch.Name)
	assert.Equal(t, "alpha2", *msg.Patch.Name)
	assert.False(t, msg.Patch.TouchesTarget())
}

func TestEditWithoutChangesCloses(t *testing.T) {
	m := New(config.DefaultConfig().Theme).SetConnections(conns())

	m, _ = m.Update(key("e"))
	m, cmd := m.Update(key("ctrl+s"))
	assert.Nil(t, cmd)
	assert.Equal(t, StateBrowsing, m.State())
}

func TestDiffTunnel(t *testing.T) {
	c := conns()[0]
	c.Tunnel = &core.Tunnel{Host: "bastion", User: "ops"}

	d := core.Draft{Name: c.Name, Type: c.Type, Host: c.Host, Port: c.Port, DatabaseName: c.DatabaseName, User: c.User}
	p := Diff(c, d)
	require.NotNil(t, p.Tunnel)
	assert.Empty(t, p.Tunnel.Host)

	d.Tunnel = &core.Tunnel{Host: "bastion", User: "ops"}
	assert.True(t, Diff(c, d).Empty())
}
