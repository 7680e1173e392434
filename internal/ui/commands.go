package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhath/ezquery/internal/core"
	"github.com/nhath/ezquery/internal/session"
)

const statusTTL = 6 * time.Second

// loadConnectionsCmd reloads the registry from the backend
func (m Model) loadConnectionsCmd() tea.Cmd {
	ctx, reg := m.ctx, m.deps.Registry
	return func() tea.Msg {
		_, err := reg.List(ctx)
		return ConnectionsLoadedMsg{Err: err}
	}
}

// loadMetadataCmd loads the active connection's schema through the cache
func (m Model) loadMetadataCmd() tea.Cmd {
	ctx, coord := m.ctx, m.deps.Coordinator
	return func() tea.Msg {
		id, meta, err := coord.ActiveMetadata(ctx)
		return MetadataMsg{ConnectionID: id, Metadata: meta, Err: err}
	}
}

// refreshMetadataCmd forces a schema re-extraction of the active connection
func (m Model) refreshMetadataCmd() tea.Cmd {
	ctx, coord := m.ctx, m.deps.Coordinator
	return func() tea.Msg {
		id, meta, err := coord.RefreshActive(ctx)
		return MetadataMsg{ConnectionID: id, Metadata: meta, Err: err}
	}
}

// executeCmd runs sql on a session
func (m Model) executeCmd(sess *session.Session, sql string) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		_, err := sess.Execute(ctx, sql)
		return QueryDoneMsg{ConnectionID: sess.ConnectionID(), Op: session.OpExecute, Err: err}
	}
}

// generateCmd turns a prompt into SQL without running it
func (m Model) generateCmd(sess *session.Session, prompt string) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		_, err := sess.GenerateOnly(ctx, prompt)
		return QueryDoneMsg{ConnectionID: sess.ConnectionID(), Op: session.OpGenerate, Err: err}
	}
}

// askCmd generates SQL from a prompt and runs it
func (m Model) askCmd(sess *session.Session, prompt string) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		_, err := sess.ExecuteFromNaturalLanguage(ctx, prompt)
		return QueryDoneMsg{ConnectionID: sess.ConnectionID(), Op: session.OpNaturalLanguage, Err: err}
	}
}

func (m Model) addConnectionCmd(draft core.Draft) tea.Cmd {
	ctx, reg := m.ctx, m.deps.Registry
	return func() tea.Msg {
		conn, err := reg.Add(ctx, draft)
		return SavedMsg{Connection: conn, IsNew: true, Err: err}
	}
}

func (m Model) updateConnectionCmd(id string, patch core.Patch) tea.Cmd {
	ctx, reg := m.ctx, m.deps.Registry
	return func() tea.Msg {
		conn, err := reg.Update(ctx, id, patch)
		return SavedMsg{Connection: conn, Err: err}
	}
}

func (m Model) testConnectionCmd(probe core.Probe) tea.Cmd {
	ctx, reg := m.ctx, m.deps.Registry
	return func() tea.Msg {
		ok, err := reg.Test(ctx, probe)
		return TestedMsg{OK: ok, Err: err}
	}
}

func (m Model) deleteConnectionCmd(id string) tea.Cmd {
	ctx, coord := m.ctx, m.deps.Coordinator
	return func() tea.Msg {
		return DeletedMsg{ID: id, Err: coord.Remove(ctx, id)}
	}
}

// waitForNotice blocks until the next notice arrives
func (m Model) waitForNotice() tea.Cmd {
	if m.deps.Notices == nil {
		return nil
	}
	ch := m.deps.Notices.C()
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return NoticeMsg(n)
	}
}

func clearStatusCmd(seq int) tea.Cmd {
	return tea.Tick(statusTTL, func(time.Time) tea.Msg {
		return clearStatusMsg{seq: seq}
	})
}
