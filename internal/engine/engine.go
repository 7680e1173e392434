// Package engine is the in-process Backend: it owns persisted connections,
// pooled drivers, metadata snapshots, history and SQL generation.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nhath/ezquery/internal/ai"
	"github.com/nhath/ezquery/internal/backend"
	"github.com/nhath/ezquery/internal/core"
	"github.com/nhath/ezquery/internal/db"
	"github.com/nhath/ezquery/internal/history"
	"github.com/nhath/ezquery/internal/sqlguard"
	"github.com/nhath/ezquery/internal/store"
)

// Engine implements backend.Backend.
type Engine struct {
	store     *store.Store
	history   *history.Store
	generator ai.Generator
	newDriver db.Factory
	logger    *slog.Logger

	rowLimit     int
	queryTimeout time.Duration
	testTimeout  time.Duration

	mu       sync.Mutex
	pool     map[string]db.Driver
	inflight map[string]map[uint64]context.CancelFunc
	seq      uint64
}

var _ backend.Backend = (*Engine)(nil)

// Option configures an Engine
type Option func(*Engine)

// WithGenerator sets the natural-language SQL generator.
func WithGenerator(g ai.Generator) Option {
	return func(e *Engine) { e.generator = g }
}

// WithDriverFactory replaces db.NewDriver.
func WithDriverFactory(f db.Factory) Option {
	return func(e *Engine) { e.newDriver = f }
}

// WithHistory sets the history store. By default history shares the store's
// database.
func WithHistory(h *history.Store) Option {
	return func(e *Engine) { e.history = h }
}

// WithRowLimit sets the row cap of a query result.
func WithRowLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.rowLimit = n
		}
	}
}

// WithQueryTimeout bounds every query and extraction. Zero disables it.
func WithQueryTimeout(d time.Duration) Option {
	return func(e *Engine) { e.queryTimeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an engine over st.
func New(st *store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:       st,
		newDriver:   db.NewDriver,
		logger:      slog.New(slog.DiscardHandler),
		rowLimit:    sqlguard.DefaultRowLimit,
		testTimeout: 15 * time.Second,
		pool:        make(map[string]db.Driver),
		inflight:    make(map[string]map[uint64]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.history == nil {
		e.history = history.NewStore(context.Background(), st.DB(), history.WithLogger(e.logger))
	}
	return e
}

// History exposes the query history.
func (e *Engine) History() *history.Store {
	return e.history
}

// Close closes every pooled driver.
func (e *Engine) Close() error {
	e.mu.Lock()
	pool := e.pool
	e.pool = make(map[string]db.Driver)
	for _, calls := range e.inflight {
		for _, cancel := range calls {
			cancel()
		}
	}
	e.mu.Unlock()

	for id, d := range pool {
		if err := d.Close(); err != nil {
			e.logger.Warn("close driver", "connection", id, "error", err)
		}
	}
	return nil
}

// connect opens and verifies a driver for probe.
func (e *Engine) connect(ctx context.Context, probe core.Probe) (db.Driver, error) {
	typ := probe.Type
	if typ == "" {
		typ = core.Postgres
	}
	d, err := e.newDriver(typ)
	if err != nil {
		return nil, core.Invalid("type", err.Error())
	}
	params := db.ParamsFromProbe(probe)
	params.Logger = e.logger
	if err := d.Connect(ctx, params); err != nil {
		return nil, core.WrapConnectivity(err)
	}
	return d, nil
}

// driverFor returns the pooled driver of id, connecting on first use.
func (e *Engine) driverFor(ctx context.Context, id string) (db.Driver, store.Record, error) {
	rec, err := e.store.GetConnection(ctx, id)
	if err != nil {
		return nil, store.Record{}, core.WrapExecution(err)
	}

	e.mu.Lock()
	d, ok := e.pool[id]
	e.mu.Unlock()
	if ok {
		return d, rec, nil
	}

	d, err = e.connect(ctx, rec.Probe())
	if err != nil {
		if serr := e.store.UpdateStatus(ctx, id, core.StatusFailed); serr != nil {
			e.logger.Warn("record connection status", "connection", id, "error", serr)
		}
		return nil, rec, err
	}

	e.mu.Lock()
	if existing, ok := e.pool[id]; ok {
		e.mu.Unlock()
		d.Close()
		return existing, rec, nil
	}
	e.pool[id] = d
	e.mu.Unlock()
	e.logger.Debug("driver pooled", "connection", id, "type", rec.Type)
	return d, rec, nil
}

// drop closes the pooled driver of id.
func (e *Engine) drop(id string) {
	e.mu.Lock()
	d, ok := e.pool[id]
	delete(e.pool, id)
	e.mu.Unlock()
	if ok {
		if err := d.Close(); err != nil {
			e.logger.Warn("close driver", "connection", id, "error", err)
		}
	}
}

// track derives a cancellable context registered under id.
func (e *Engine) track(ctx context.Context, id string) (context.Context, func()) {
	var cancel context.CancelFunc
	if e.queryTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, e.queryTimeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}

	e.mu.Lock()
	e.seq++
	n := e.seq
	if e.inflight[id] == nil {
		e.inflight[id] = make(map[uint64]context.CancelFunc)
	}
	e.inflight[id][n] = cancel
	e.mu.Unlock()

	return ctx, func() {
		cancel()
		e.mu.Lock()
		delete(e.inflight[id], n)
		if len(e.inflight[id]) == 0 {
			delete(e.inflight, id)
		}
		e.mu.Unlock()
	}
}

// CancelQuery aborts every in-flight call for id.
func (e *Engine) CancelQuery(ctx context.Context, id string) error {
	if err := core.ValidateID(id); err != nil {
		return err
	}
	e.mu.Lock()
	calls := e.inflight[id]
	delete(e.inflight, id)
	e.mu.Unlock()

	for _, cancel := range calls {
		cancel()
	}
	e.logger.Info("cancel requested", "connection", id, "calls", len(calls))
	return nil
}

// cancelled converts an aborted call into an execution error.
func cancelled(ctx context.Context, err error) error {
	if ctx.Err() == context.Canceled {
		return core.WrapExecution(fmt.Errorf("query cancelled"))
	}
	if ctx.Err() == context.DeadlineExceeded {
		return core.WrapExecution(fmt.Errorf("query timed out"))
	}
	return err
}
