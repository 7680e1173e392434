package ui

import (
	"errors"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhath/ezquery/internal/core"
	"github.com/nhath/ezquery/internal/notify"
	"github.com/nhath/ezquery/internal/session"
	"github.com/nhath/ezquery/internal/sqlguard"
	"github.com/nhath/ezquery/internal/ui/components/connlist"
	"github.com/nhath/ezquery/internal/ui/components/schemabrowser"
	"github.com/nhath/ezquery/internal/ui/components/table"
)

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m.layout(), nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		if msg.ID != m.spinner.ID() {
			var cmd tea.Cmd
			m.schema, cmd = m.schema.Update(msg)
			return m, cmd
		}
		if !m.busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case ConnectionsLoadedMsg:
		if msg.Err != nil {
			return m.setError(core.Message(msg.Err))
		}
		m.deps.Coordinator.Sync()
		return m.syncSelection()

	case MetadataMsg:
		return m.handleMetadata(msg), nil

	case QueryDoneMsg:
		return m.handleQueryDone(msg)

	case connlist.SelectedMsg:
		if err := m.deps.Coordinator.Select(msg.ID); err != nil {
			return m.setError(core.Message(err))
		}
		m, cmd := m.syncSelection()
		m, focusCmd := m.setFocus(PaneEditor)
		return m, tea.Batch(cmd, focusCmd)

	case connlist.SubmitMsg:
		if msg.ID == "" {
			return m, m.addConnectionCmd(msg.Draft)
		}
		return m, m.updateConnectionCmd(msg.ID, msg.Patch)

	case connlist.TestMsg:
		m.connList = m.connList.SetStatus("Testing...", true)
		return m, m.testConnectionCmd(msg.Probe)

	case connlist.DeleteMsg:
		return m, m.deleteConnectionCmd(msg.ID)

	case SavedMsg:
		return m.handleSaved(msg)

	case TestedMsg:
		if msg.OK {
			m.connList = m.connList.SetStatus("Connection succeeded", true)
		} else {
			text := "Connection failed"
			if msg.Err != nil {
				text += ": " + core.Message(msg.Err)
			}
			m.connList = m.connList.SetStatus(text, false)
		}
		return m, nil

	case DeletedMsg:
		if msg.Err != nil {
			return m.setError(core.Message(msg.Err))
		}
		return m.syncSelection()

	case schemabrowser.PreviewMsg:
		return m.preview(msg)

	case NoticeMsg:
		n := notify.Notice(msg)
		m.noticeSeq++
		switch n.Level {
		case notify.Error:
			m.errorMsg = n.Text
		case notify.Warning:
			m.warningMsg = n.Text
		default:
			m.statusMsg = n.Text
			m.errorMsg = ""
		}
		return m, tea.Batch(m.waitForNotice(), clearStatusCmd(m.noticeSeq))

	case clearStatusMsg:
		if msg.seq == m.noticeSeq {
			m.statusMsg, m.warningMsg, m.errorMsg = "", "", ""
		}
		return m, nil
	}

	return m.updateFocused(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	keys := m.config.Keys

	if m.showHelp {
		m.showHelp = false
		return m, nil
	}
	if matches(msg, keys.Exit) {
		return m, tea.Quit
	}
	if m.schema.IsVisible() {
		var cmd tea.Cmd
		m.schema, cmd = m.schema.Update(msg)
		return m, cmd
	}
	if m.focus == PaneConnections && m.connList.Capturing() {
		var cmd tea.Cmd
		m.connList, cmd = m.connList.Update(msg)
		return m, cmd
	}

	switch {
	case matches(msg, keys.Help):
		m.showHelp = true
		return m, nil
	case matches(msg, keys.Schema):
		if m.active == "" {
			return m.setError("Select a connection first")
		}
		m.schema = m.schema.SetSize(m.width, m.height).Toggle()
		return m, nil
	case matches(msg, keys.Focus):
		return m.setFocus((m.focus + 1) % paneCount)
	case msg.String() == "shift+tab":
		return m.setFocus((m.focus + paneCount - 1) % paneCount)
	case matches(msg, keys.Execute):
		return m.execute()
	case matches(msg, keys.Generate):
		return m.ask(false)
	case matches(msg, keys.Refresh):
		return m.refresh()
	case matches(msg, keys.Clear):
		return m.clear()
	case matches(msg, keys.Cancel):
		if sess := m.deps.Coordinator.Session(); sess != nil && sess.Cancel() {
			return m, nil
		}
		if m.focus != PaneConnections {
			return m.setFocus(PaneConnections)
		}
		return m, nil
	case m.focus == PanePrompt && msg.Type == tea.KeyEnter:
		return m.ask(true)
	}

	return m.updateFocused(msg)
}

// updateFocused forwards msg to the component owning the focus
func (m Model) updateFocused(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.focus {
	case PaneConnections:
		m.connList, cmd = m.connList.Update(msg)
	case PaneEditor:
		before := m.editor.Value()
		m.editor, cmd = m.editor.Update(msg)
		if after := m.editor.Value(); after != before {
			if sess := m.deps.Coordinator.Session(); sess != nil {
				sess.SetSQL(after)
			}
		}
	case PanePrompt:
		m.prompt, cmd = m.prompt.Update(msg)
	case PaneResults:
		m.resultsTable, cmd = m.resultsTable.Update(msg)
	}
	return m, cmd
}

func (m Model) setFocus(p Pane) (Model, tea.Cmd) {
	m.focus = p
	m.editor.Blur()
	m.prompt.Blur()
	m.resultsTable = m.resultsTable.Focused(p == PaneResults)

	var cmd tea.Cmd
	switch p {
	case PaneEditor:
		cmd = m.editor.Focus()
	case PanePrompt:
		cmd = m.prompt.Focus()
	}
	return m, cmd
}

// syncSelection reconciles the view with the coordinator's active
// connection, resetting per-connection state when it changed.
func (m Model) syncSelection() (Model, tea.Cmd) {
	coord := m.deps.Coordinator
	m.connList = m.connList.SetConnections(m.deps.Registry.Connections())

	active := coord.Active()
	m.connList = m.connList.SetActive(active)
	if active == m.active {
		return m, nil
	}

	m.active = active
	m.results = nil
	m.resultsTable = table.New(nil)
	m.prompt.Reset()
	m.editor.Reset()
	m.schema = m.schema.Reset()
	if active == "" {
		return m, nil
	}
	if sess := coord.Session(); sess != nil {
		snap := sess.Snapshot()
		m.editor.SetValue(snap.SQL)
		m = m.showResult(snap.Result)
	}

	conn, _ := m.connection(active)
	var cmd tea.Cmd
	m.schema, cmd = m.schema.StartLoading(conn.Name)
	return m, tea.Batch(cmd, m.loadMetadataCmd())
}

func (m Model) handleMetadata(msg MetadataMsg) Model {
	if errors.Is(msg.Err, core.ErrStale) || msg.ConnectionID != m.active || m.active == "" {
		return m
	}
	conn, _ := m.connection(msg.ConnectionID)
	if msg.Err != nil {
		// keep browsing the last good schema
		if st := m.deps.Cache.State(msg.ConnectionID); st.Metadata != nil {
			m.schema = m.schema.SetMetadata(conn.Name, st.Metadata, true)
		}
		m.schema = m.schema.SetError(core.Message(msg.Err))
		return m
	}
	m.schema = m.schema.SetMetadata(conn.Name, msg.Metadata, false)
	return m
}

func (m Model) handleQueryDone(msg QueryDoneMsg) (Model, tea.Cmd) {
	if m.inflight > 0 {
		m.inflight--
	}
	if errors.Is(msg.Err, core.ErrStale) || msg.ConnectionID != m.active {
		return m, nil
	}
	sess := m.deps.Coordinator.Session()
	if sess == nil || sess.ConnectionID() != msg.ConnectionID {
		return m, nil
	}

	snap := sess.Snapshot()
	if msg.Err == nil && msg.Op != session.OpExecute {
		m.editor.SetValue(snap.SQL)
	}
	m = m.showResult(snap.Result)

	// the session only notifies failures it ran into
	switch core.KindOf(msg.Err) {
	case core.KindValidation, core.KindBusy:
		return m.setError(core.Message(msg.Err))
	}
	return m, nil
}

func (m Model) handleSaved(msg SavedMsg) (Model, tea.Cmd) {
	if msg.Err != nil {
		m.connList = m.connList.SetStatus(core.Message(msg.Err), false)
		return m, nil
	}
	m.connList = m.connList.FormDone()
	if msg.IsNew {
		if err := m.deps.Coordinator.Select(msg.Connection.ID); err != nil {
			return m.setError(core.Message(err))
		}
		return m.syncSelection()
	}

	m, cmd := m.syncSelection()
	if msg.Connection.ID != m.active {
		return m, cmd
	}
	var loadCmd tea.Cmd
	m.schema, loadCmd = m.schema.StartLoading(msg.Connection.Name)
	return m, tea.Batch(cmd, loadCmd, m.refreshMetadataCmd())
}

func (m Model) execute() (Model, tea.Cmd) {
	sess := m.deps.Coordinator.Session()
	if sess == nil {
		return m.setError("Select a connection first")
	}
	sql := m.editor.Value()
	sess.SetSQL(sql)
	m.errorMsg = ""
	m.inflight++
	return m, tea.Batch(m.executeCmd(sess, sql), m.spinner.Tick)
}

// ask sends the prompt to the generator, running the SQL when run is set
func (m Model) ask(run bool) (Model, tea.Cmd) {
	sess := m.deps.Coordinator.Session()
	if sess == nil {
		return m.setError("Select a connection first")
	}
	prompt := m.prompt.Value()
	m.errorMsg = ""
	m.inflight++
	if run {
		return m, tea.Batch(m.askCmd(sess, prompt), m.spinner.Tick)
	}
	return m, tea.Batch(m.generateCmd(sess, prompt), m.spinner.Tick)
}

func (m Model) refresh() (Model, tea.Cmd) {
	if m.active == "" {
		return m.setError("Select a connection first")
	}
	conn, _ := m.connection(m.active)
	var cmd tea.Cmd
	m.schema, cmd = m.schema.StartLoading(conn.Name)
	return m, tea.Batch(cmd, m.refreshMetadataCmd())
}

func (m Model) clear() (Model, tea.Cmd) {
	if sess := m.deps.Coordinator.Session(); sess != nil {
		if err := sess.Clear(); err != nil {
			return m.setError(core.Message(err))
		}
	}
	m.editor.Reset()
	m.prompt.Reset()
	m.results = nil
	m.resultsTable = table.New(nil)
	return m, nil
}

// preview loads a SELECT of the chosen object into the editor and runs it
func (m Model) preview(msg schemabrowser.PreviewMsg) (Model, tea.Cmd) {
	conn, ok := m.connection(m.active)
	if !ok {
		return m, nil
	}
	m.editor.SetValue(sqlguard.SelectAll(conn.Type, msg.Schema, msg.Name, m.config.RowLimit))
	m, focusCmd := m.setFocus(PaneEditor)
	m, cmd := m.execute()
	return m, tea.Batch(focusCmd, cmd)
}

func (m Model) showResult(res *core.QueryResult) Model {
	if res == m.results {
		return m
	}
	m.results = res
	if res == nil {
		m.resultsTable = table.New(nil)
		return m
	}
	m.resultsTable = table.FromQueryResult(res, m.pageSize()).
		WithTargetWidth(m.mainWidth() - 4).
		Focused(m.focus == PaneResults)
	return m
}

func (m Model) setError(text string) (Model, tea.Cmd) {
	m.noticeSeq++
	m.errorMsg = text
	return m, clearStatusCmd(m.noticeSeq)
}

func (m Model) busy() bool {
	if m.inflight > 0 {
		return true
	}
	sess := m.deps.Coordinator.Session()
	return sess != nil && sess.Busy()
}
