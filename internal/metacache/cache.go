// Package metacache caches one schema snapshot per connection.
package metacache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nhath/ezquery/internal/backend"
	"github.com/nhath/ezquery/internal/core"
)

const (
	defaultTimeout   = 2 * time.Minute
	defaultWarmLimit = 4
)

// State is what the cache knows about one connection.
type State struct {
	Metadata *core.Metadata
	// Err is the failure of the last extraction, nil after a success.
	Err error
	// Stale is set when Metadata survived a failed extraction.
	Stale   bool
	Loading bool
}

// flight is one in-progress extraction. Waiters block on done.
type flight struct {
	done   chan struct{}
	forced bool
	meta   *core.Metadata
	err    error
}

func (f *flight) wait(ctx context.Context) (*core.Metadata, error) {
	select {
	case <-f.done:
		return f.meta, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type slot struct {
	meta    *core.Metadata
	lastErr error
	flight  *flight
}

// Cache holds at most one current Metadata per connection id. Extractions
// for the same id never overlap; different ids are independent.
type Cache struct {
	backend backend.Backend
	logger  *slog.Logger
	timeout time.Duration

	mu    sync.Mutex
	slots map[string]*slot
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// WithTimeout bounds a single extraction.
func WithTimeout(d time.Duration) Option {
	return func(c *Cache) { c.timeout = d }
}

// New creates an empty cache over b.
func New(b backend.Backend, opts ...Option) *Cache {
	c := &Cache{
		backend: b,
		logger:  slog.New(slog.DiscardHandler),
		timeout: defaultTimeout,
		slots:   make(map[string]*slot),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load returns the cached metadata for id, extracting it first if the
// cache is empty. A Load issued while an extraction is running waits for
// that extraction instead of starting another.
func (c *Cache) Load(ctx context.Context, id string) (*core.Metadata, error) {
	if err := core.ValidateID(id); err != nil {
		return nil, err
	}

	c.mu.Lock()
	s := c.slot(id)
	if s.flight == nil {
		if s.meta != nil {
			m := s.meta
			c.mu.Unlock()
			return m, nil
		}
		f := c.start(id, s, false)
		c.mu.Unlock()
		return f.wait(ctx)
	}
	f := s.flight
	c.mu.Unlock()

	meta, err := f.wait(ctx)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	// A failed refresh keeps the previous snapshot, which is still
	// the answer to Load.
	if m, ok := c.Peek(id); ok {
		return m, nil
	}
	return meta, err
}

// Refresh extracts id's metadata unconditionally and replaces the cache
// entry on success. Concurrent refreshes share one extraction; a running
// plain load is waited out first.
func (c *Cache) Refresh(ctx context.Context, id string) (*core.Metadata, error) {
	if err := core.ValidateID(id); err != nil {
		return nil, err
	}

	for {
		c.mu.Lock()
		s := c.slot(id)
		if s.flight == nil {
			f := c.start(id, s, true)
			c.mu.Unlock()
			return f.wait(ctx)
		}
		f := s.flight
		c.mu.Unlock()

		if f.forced {
			return f.wait(ctx)
		}
		if _, err := f.wait(ctx); err != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
}

// Peek returns the cached metadata without extracting.
func (c *Cache) Peek(id string) (*core.Metadata, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.slots[id]
	if !ok || s.meta == nil {
		return nil, false
	}
	return s.meta, true
}

// State reports the cache state for id.
func (c *Cache) State(id string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.slots[id]
	if !ok {
		return State{}
	}
	return State{
		Metadata: s.meta,
		Err:      s.lastErr,
		Stale:    s.meta != nil && s.lastErr != nil,
		Loading:  s.flight != nil,
	}
}

// Forget drops everything cached for id. An extraction still running for
// id completes for its waiters but is not stored.
func (c *Cache) Forget(id string) {
	c.mu.Lock()
	delete(c.slots, id)
	c.mu.Unlock()
	c.logger.Debug("metadata forgotten", "connection", id)
}

// Warm loads metadata for several connections concurrently. It returns the
// first error after every load has finished.
func (c *Cache) Warm(ctx context.Context, ids []string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(defaultWarmLimit)
	for _, id := range ids {
		g.Go(func() error {
			_, err := c.Load(ctx, id)
			return err
		})
	}
	return g.Wait()
}

// slot returns the slot for id, creating it. Callers hold c.mu.
func (c *Cache) slot(id string) *slot {
	s, ok := c.slots[id]
	if !ok {
		s = &slot{}
		c.slots[id] = s
	}
	return s
}

// start launches an extraction and marks it in flight. Callers hold c.mu.
// The extraction runs on its own context so one waiter giving up does not
// fail the others.
func (c *Cache) start(id string, s *slot, forced bool) *flight {
	f := &flight{done: make(chan struct{}), forced: forced}
	s.flight = f

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()

		started := time.Now()
		var (
			meta *core.Metadata
			err  error
		)
		if forced {
			meta, err = c.backend.RefreshMetadata(ctx, id)
		} else {
			meta, err = c.backend.GetDatabaseMetadata(ctx, id)
		}

		c.mu.Lock()
		if c.slots[id] == s {
			if err == nil {
				s.meta = meta
				s.lastErr = nil
			} else {
				s.lastErr = err
			}
			s.flight = nil
		}
		f.meta, f.err = meta, err
		c.mu.Unlock()
		close(f.done)

		if err != nil {
			c.logger.Warn("metadata extraction failed", "connection", id, "forced", forced, "error", err)
			return
		}
		c.logger.Debug("metadata extracted", "connection", id, "forced", forced,
			"tables", meta.TableCount(), "took", time.Since(started))
	}()
	return f
}
