// Package selection tracks the active connection and owns its session.
package selection

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nhath/ezquery/internal/backend"
	"github.com/nhath/ezquery/internal/core"
	"github.com/nhath/ezquery/internal/metacache"
	"github.com/nhath/ezquery/internal/notify"
	"github.com/nhath/ezquery/internal/registry"
	"github.com/nhath/ezquery/internal/session"
)

// Coordinator keeps exactly one session alive: the one of the active
// connection. Switching away discards it; metadata stays cached.
type Coordinator struct {
	backend  backend.Backend
	registry *registry.Registry
	cache    *metacache.Cache
	clock    *session.Clock
	notifier notify.Notifier
	logger   *slog.Logger
	sessOpts []session.Option

	mu      sync.Mutex
	active  string
	session *session.Session
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithNotifier sets where notices go. Sessions created by the coordinator
// share it.
func WithNotifier(n notify.Notifier) Option {
	return func(c *Coordinator) { c.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithSessionOptions adds options applied to every new session.
func WithSessionOptions(opts ...session.Option) Option {
	return func(c *Coordinator) { c.sessOpts = append(c.sessOpts, opts...) }
}

// New wires a Coordinator over the registry and cache.
func New(b backend.Backend, reg *registry.Registry, cache *metacache.Cache, opts ...Option) *Coordinator {
	c := &Coordinator{
		backend:  b,
		registry: reg,
		cache:    cache,
		clock:    session.NewClock(),
		notifier: notify.Discard,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Select makes id the active connection. An empty id clears the
// selection. Selecting a different connection discards the previous
// session without cancelling its backend work; the new session starts
// idle. Selecting the active connection again is a no-op.
func (c *Coordinator) Select(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Remove deletes from the registry before taking c.mu
	if id != "" {
		if _, ok := c.registry.Get(id); !ok {
			return core.ErrNotFound
		}
	}
	if id == c.active && (id == "" || c.session != nil) {
		return nil
	}
	c.switchLocked(id)
	return nil
}

// Active returns the active connection id, empty when none.
func (c *Coordinator) Active() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// IsActive reports whether id is the active connection.
func (c *Coordinator) IsActive(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return id != "" && c.active == id
}

// Session returns the active session, nil when nothing is selected.
func (c *Coordinator) Session() *session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// ActiveMetadata loads the active connection's metadata through the cache.
// It returns ErrStale if the selection changed while loading.
func (c *Coordinator) ActiveMetadata(ctx context.Context) (string, *core.Metadata, error) {
	id := c.Active()
	if id == "" {
		return "", nil, nil
	}
	meta, err := c.cache.Load(ctx, id)
	return c.settle(id, meta, err, "load schema")
}

// RefreshActive force-refreshes the active connection's metadata.
func (c *Coordinator) RefreshActive(ctx context.Context) (string, *core.Metadata, error) {
	id := c.Active()
	if id == "" {
		return "", nil, core.Invalid("databaseId", "no connection selected")
	}
	meta, err := c.cache.Refresh(ctx, id)
	if id, meta, err = c.settle(id, meta, err, "refresh schema"); err == nil {
		c.notifier.Notify(notify.Notice{Level: notify.Success, ConnectionID: id, Text: "Schema refreshed"})
	}
	return id, meta, err
}

// SelectAndLoad selects id and loads its metadata.
func (c *Coordinator) SelectAndLoad(ctx context.Context, id string) (*core.Metadata, error) {
	if err := c.Select(id); err != nil {
		return nil, err
	}
	_, meta, err := c.ActiveMetadata(ctx)
	return meta, err
}

// Remove deletes a connection and everything held for it. If it was
// active, the selection falls back to the first remaining connection, or
// to none.
func (c *Coordinator) Remove(ctx context.Context, id string) error {
	if err := c.registry.Delete(ctx, id); err != nil {
		return err
	}
	c.cache.Forget(id)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == id {
		c.switchLocked(c.fallback(id))
	}
	return nil
}

// Sync reconciles the selection with the registry after a reload: a
// vanished active connection is replaced, and the first connection is
// selected when nothing is.
func (c *Coordinator) Sync() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != "" {
		if _, ok := c.registry.Get(c.active); ok {
			return
		}
		c.cache.Forget(c.active)
	}
	if next := c.fallback(c.active); next != c.active || c.session == nil {
		c.switchLocked(next)
	}
}

// switchLocked retires the current session and opens one for id.
// Callers hold c.mu.
func (c *Coordinator) switchLocked(id string) {
	prev := c.active
	if c.session != nil {
		c.session.Discard()
		c.session = nil
	}
	c.active = id
	if id != "" {
		opts := append([]session.Option{
			session.WithClock(c.clock),
			session.WithNotifier(c.notifier),
			session.WithLogger(c.logger),
		}, c.sessOpts...)
		c.session = session.New(id, c.backend, opts...)
	}
	c.logger.Debug("selection changed", "from", prev, "to", id)
}

// fallback picks the first registered connection other than excluded.
func (c *Coordinator) fallback(excluded string) string {
	for _, conn := range c.registry.Connections() {
		if conn.ID != excluded {
			return conn.ID
		}
	}
	return ""
}

func (c *Coordinator) settle(id string, meta *core.Metadata, err error, op string) (string, *core.Metadata, error) {
	if !c.IsActive(id) {
		c.logger.Debug("discarding metadata for inactive connection", "connection", id)
		return id, nil, core.ErrStale
	}
	if err != nil {
		c.notifier.Notify(notify.Notice{Level: notify.Error, ConnectionID: id, Text: op + ": " + core.Message(err)})
		return id, nil, err
	}
	return id, meta, nil
}
