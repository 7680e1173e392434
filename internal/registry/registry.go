// Package registry owns the list of known database connections.
package registry

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/nhath/ezquery/internal/backend"
	"github.com/nhath/ezquery/internal/core"
	"github.com/nhath/ezquery/internal/notify"
)

// Registry mirrors the backend's connection list. The local list changes
// only after the backend confirms a mutation.
type Registry struct {
	backend  backend.Backend
	notifier notify.Notifier
	logger   *slog.Logger

	mu    sync.RWMutex
	conns []core.Connection
}

// Option configures a Registry.
type Option func(*Registry)

// WithNotifier sets where failures and confirmations are reported.
func WithNotifier(n notify.Notifier) Option {
	return func(r *Registry) { r.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// New creates a Registry over b.
func New(b backend.Backend, opts ...Option) *Registry {
	r := &Registry{
		backend:  b,
		notifier: notify.Discard,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// List fetches the connection list from the backend and replaces the local copy.
func (r *Registry) List(ctx context.Context) ([]core.Connection, error) {
	conns, err := r.backend.ListDatabases(ctx)
	if err != nil {
		r.fail("", "load connections", err)
		return nil, err
	}
	r.mu.Lock()
	r.conns = slices.Clone(conns)
	r.mu.Unlock()
	r.logger.Debug("connections loaded", "count", len(conns))
	return slices.Clone(conns), nil
}

// Connections returns a snapshot of the local list.
func (r *Registry) Connections() []core.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.conns)
}

// Get returns the connection with id from the local list.
func (r *Registry) Get(id string) (core.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := r.index(id)
	if i < 0 {
		return core.Connection{}, false
	}
	return r.conns[i], true
}

// Add validates the draft, asks the backend to create it and appends the
// confirmed connection.
func (r *Registry) Add(ctx context.Context, draft core.Draft) (core.Connection, error) {
	if err := draft.Validate(); err != nil {
		return core.Connection{}, err
	}
	conn, err := r.backend.AddDatabase(ctx, draft)
	if err != nil {
		r.fail("", "add connection", err)
		return core.Connection{}, err
	}
	r.mu.Lock()
	r.conns = append(r.conns, conn)
	r.mu.Unlock()
	r.logger.Info("connection added", "id", conn.ID, "name", conn.Name)
	r.notifier.Notify(notify.Notice{Level: notify.Success, ConnectionID: conn.ID, Text: "Connection " + conn.Name + " added"})
	return conn, nil
}

// Update applies a partial patch through the backend and replaces the
// local entry with the backend's answer.
func (r *Registry) Update(ctx context.Context, id string, patch core.Patch) (core.Connection, error) {
	if err := core.ValidateID(id); err != nil {
		return core.Connection{}, err
	}
	if err := patch.Validate(); err != nil {
		return core.Connection{}, err
	}
	conn, err := r.backend.UpdateDatabase(ctx, id, patch)
	if err != nil {
		r.fail(id, "update connection", err)
		return core.Connection{}, err
	}
	r.mu.Lock()
	if i := r.index(id); i >= 0 {
		r.conns[i] = conn
	} else {
		r.conns = append(r.conns, conn)
	}
	r.mu.Unlock()
	r.logger.Info("connection updated", "id", id)
	r.notifier.Notify(notify.Notice{Level: notify.Success, ConnectionID: id, Text: "Connection " + conn.Name + " updated"})
	return conn, nil
}

// Delete removes the connection through the backend, then locally.
func (r *Registry) Delete(ctx context.Context, id string) error {
	if err := core.ValidateID(id); err != nil {
		return err
	}
	if err := r.backend.DeleteDatabase(ctx, id); err != nil {
		r.fail(id, "delete connection", err)
		return err
	}
	r.mu.Lock()
	if i := r.index(id); i >= 0 {
		r.conns = slices.Delete(r.conns, i, i+1)
	}
	r.mu.Unlock()
	r.logger.Info("connection deleted", "id", id)
	r.notifier.Notify(notify.Notice{Level: notify.Success, ConnectionID: id, Text: "Connection deleted"})
	return nil
}

// Test probes connectivity without touching the registry. A failed probe
// returns false along with the reason.
func (r *Registry) Test(ctx context.Context, probe core.Probe) (bool, error) {
	if err := probe.Validate(); err != nil {
		return false, err
	}
	ok, err := r.backend.TestConnection(ctx, probe)
	if err != nil {
		r.fail("", "test connection", err)
		return false, err
	}
	if ok {
		r.notifier.Notify(notify.Notice{Level: notify.Success, Text: "Connection test succeeded"})
	} else {
		r.notifier.Notify(notify.Notice{Level: notify.Error, Text: "Connection test failed"})
	}
	return ok, nil
}

func (r *Registry) index(id string) int {
	return slices.IndexFunc(r.conns, func(c core.Connection) bool { return c.ID == id })
}

func (r *Registry) fail(id, op string, err error) {
	r.logger.Warn(op+" failed", "id", id, "error", err)
	r.notifier.Notify(notify.Notice{Level: notify.Error, ConnectionID: id, Text: op + ": " + core.Message(err)})
}
