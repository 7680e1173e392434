package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhath/ezquery/internal/ai"
	"github.com/nhath/ezquery/internal/backend"
	"github.com/nhath/ezquery/internal/config"
	"github.com/nhath/ezquery/internal/engine"
	"github.com/nhath/ezquery/internal/history"
	"github.com/nhath/ezquery/internal/metacache"
	"github.com/nhath/ezquery/internal/notify"
	"github.com/nhath/ezquery/internal/registry"
	"github.com/nhath/ezquery/internal/rpc"
	"github.com/nhath/ezquery/internal/selection"
	"github.com/nhath/ezquery/internal/session"
	"github.com/nhath/ezquery/internal/store"
	"github.com/nhath/ezquery/internal/ui"
)

// appMode selects where notices and logs go
type appMode int

const (
	// appCLI logs warnings to stderr
	appCLI appMode = iota
	// appTUI keeps the terminal clean and routes notices to the status bar
	appTUI
	// appServe logs requests to stderr
	appServe
)

// noticeBuffer bounds notices waiting for the status bar
const noticeBuffer = 32

var errRemoteHistory = errors.New("history is only available with a local backend")

// app is the wired orchestration layer over one backend
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	backend  backend.Backend
	engine   *engine.Engine
	registry *registry.Registry
	cache    *metacache.Cache
	coord    *selection.Coordinator
	notices  *notify.Chan
	closers  []func() error
}

func openApp(ctx context.Context, opts *options, mode appMode) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	a := &app{cfg: cfg}
	if err := a.setupLogger(opts, mode); err != nil {
		return nil, err
	}

	if err := a.openBackend(ctx); err != nil {
		a.Close()
		return nil, err
	}

	notifier := notify.Log(a.logger)
	if mode == appTUI {
		a.notices = notify.NewChan(noticeBuffer)
		notifier = notify.Multi(a.notices, notifier)
	}

	a.registry = registry.New(a.backend,
		registry.WithNotifier(notifier),
		registry.WithLogger(a.logger),
	)
	a.cache = metacache.New(a.backend,
		metacache.WithTimeout(cfg.MetadataTimeout()),
		metacache.WithLogger(a.logger),
	)
	a.coord = selection.New(a.backend, a.registry, a.cache,
		selection.WithNotifier(notifier),
		selection.WithLogger(a.logger),
		selection.WithSessionOptions(session.WithTimeout(cfg.QueryTimeout())),
	)
	return a, nil
}

func loadConfig(opts *options) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.LoadFrom(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if opts.remote != "" {
		cfg.Remote = opts.remote
	}
	return cfg, nil
}

func (a *app) setupLogger(opts *options, mode appMode) error {
	if opts.debug {
		f, err := tea.LogToFile("debug.log", "debug")
		if err != nil {
			return fmt.Errorf("could not open debug log: %w", err)
		}
		a.closers = append(a.closers, f.Close)
		a.logger = slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
		return nil
	}

	var (
		w     io.Writer = os.Stderr
		level           = slog.LevelWarn
	)
	switch mode {
	case appTUI:
		w = io.Discard
	case appServe:
		level = slog.LevelInfo
	}
	a.logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	return nil
}

// openBackend connects to a remote server or builds the in-process engine
func (a *app) openBackend(ctx context.Context) error {
	cfg := a.cfg
	if cfg.Remote != "" {
		a.backend = rpc.NewBackend(cfg.Remote, nil)
		a.logger.Debug("using remote backend", "url", cfg.Remote)
		return nil
	}

	path := cfg.DataPath
	if path == "" {
		p, err := store.DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}

	cipher, err := config.NewCipher()
	if err != nil {
		return err
	}
	st, err := store.Open(ctx, path, cipher, a.logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	a.closers = append(a.closers, st.Close)

	hist := history.NewStore(ctx, st.DB(),
		history.WithRetention(time.Duration(cfg.HistoryRetentionDays)*24*time.Hour),
		history.WithLogger(a.logger),
	)
	gen := ai.NewGenerator(ai.NewOpenAI(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model, ai.WithLogger(a.logger)))

	a.engine = engine.New(st,
		engine.WithGenerator(gen),
		engine.WithHistory(hist),
		engine.WithRowLimit(cfg.RowLimit),
		engine.WithQueryTimeout(cfg.QueryTimeout()),
		engine.WithLogger(a.logger),
	)
	// engine first so pooled drivers close before the store
	a.closers = append(a.closers, a.engine.Close)
	a.backend = a.engine
	return nil
}

func (a *app) deps() ui.Deps {
	return ui.Deps{
		Config:      a.cfg,
		Registry:    a.registry,
		Cache:       a.cache,
		Coordinator: a.coord,
		Notices:     a.notices,
		Logger:      a.logger,
	}
}

// history returns the local query history
func (a *app) history() (*history.Store, error) {
	if a.engine == nil {
		return nil, errRemoteHistory
	}
	return a.engine.History(), nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
