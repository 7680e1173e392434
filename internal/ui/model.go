// internal/ui/model.go
// Root Model struct, constructor, and Init
package ui

import (
	"context"
	"log/slog"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/evertras/bubble-table/table"

	"github.com/nhath/ezquery/internal/config"
	"github.com/nhath/ezquery/internal/core"
	"github.com/nhath/ezquery/internal/metacache"
	"github.com/nhath/ezquery/internal/notify"
	"github.com/nhath/ezquery/internal/registry"
	"github.com/nhath/ezquery/internal/selection"
	"github.com/nhath/ezquery/internal/ui/components/connlist"
	"github.com/nhath/ezquery/internal/ui/components/schemabrowser"
)

// Deps are the orchestration components the UI drives
type Deps struct {
	Config      *config.Config
	Registry    *registry.Registry
	Cache       *metacache.Cache
	Coordinator *selection.Coordinator
	// Notices is drained into the status bar. Nil disables notices.
	Notices *notify.Chan
	Logger  *slog.Logger
}

// Model is the root Bubble Tea model. It holds view state only; the
// session and selection state live in the orchestration layer and are
// read back through snapshots.
type Model struct {
	ctx    context.Context
	deps   Deps
	config *config.Config
	logger *slog.Logger

	width, height int
	focus         Pane
	active        string

	// Components
	connList     connlist.Model
	schema       schemabrowser.Model
	editor       textarea.Model
	prompt       textinput.Model
	spinner      spinner.Model
	results      *core.QueryResult
	resultsTable table.Model

	// Popups
	showHelp bool

	// inflight counts dispatched session operations not yet reported
	inflight int

	// Status
	statusMsg  string
	warningMsg string
	errorMsg   string
	noticeSeq  int
}

// New creates the root model
func New(ctx context.Context, deps Deps) Model {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
		deps.Config = cfg
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	InitStyles(cfg.Theme)

	ed := textarea.New()
	ed.Placeholder = "Enter SQL query (" + firstKey(cfg.Keys.Execute, "ctrl+d") + " to execute)..."
	ed.CharLimit = 0
	ed.SetHeight(5)
	ed.ShowLineNumbers = false
	// Remove cursor line background - keep it transparent
	ed.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ed.BlurredStyle.CursorLine = lipgloss.NewStyle()
	ed.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(TextFaint())
	ed.BlurredStyle.Placeholder = lipgloss.NewStyle().Foreground(TextFaint())

	pi := textinput.New()
	pi.Prompt = "? "
	pi.PromptStyle = PromptStyle
	pi.Placeholder = "Ask in plain language, enter to run, " + firstKey(cfg.Keys.Generate, "ctrl+g") + " to only generate"
	pi.CharLimit = 1000

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = lipgloss.NewStyle().Foreground(AccentColor())

	return Model{
		ctx:          ctx,
		deps:         deps,
		config:       cfg,
		logger:       logger,
		focus:        PaneConnections,
		connList:     connlist.New(cfg.Theme),
		schema:       schemabrowser.New(),
		editor:       ed,
		prompt:       pi,
		spinner:      sp,
		resultsTable: table.New(nil),
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.loadConnectionsCmd(),
		m.waitForNotice(),
	)
}

// Run starts the program on the alternate screen and blocks until exit
func Run(ctx context.Context, deps Deps) error {
	p := tea.NewProgram(New(ctx, deps), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func (m Model) connection(id string) (core.Connection, bool) {
	return m.deps.Registry.Get(id)
}
