// Package session implements the per-connection query execution context.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nhath/ezquery/internal/backend"
	"github.com/nhath/ezquery/internal/core"
	"github.com/nhath/ezquery/internal/notify"
)

const defaultCancelTimeout = 5 * time.Second

// Status is the state machine value of a session.
type Status int

const (
	Idle Status = iota
	Running
	Succeeded
	Failed
	Cancelled
)

func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return "idle"
	}
}

// Op identifies the execute-family operation that last ran.
type Op int

const (
	OpNone Op = iota
	OpExecute
	OpGenerate
	OpNaturalLanguage
)

func (o Op) String() string {
	switch o {
	case OpExecute:
		return "execute"
	case OpGenerate:
		return "generate"
	case OpNaturalLanguage:
		return "natural-language"
	default:
		return "none"
	}
}

// Snapshot is a consistent copy of a session's state.
type Snapshot struct {
	ConnectionID string
	SQL          string
	// Provenance is the generated SQL when the current SQL came from a
	// natural-language prompt, empty when the user wrote it.
	Provenance string
	Result     *core.QueryResult
	Err        error
	Status     Status
	Op         Op
	Generation uint64
}

// Busy reports whether an operation is in flight.
func (s Snapshot) Busy() bool { return s.Status == Running }

// Session is the execution context of one connection. At most one
// execute-family operation runs at a time; while it runs, Result and Err
// still describe the previous completed operation.
type Session struct {
	id            string
	backend       backend.Backend
	clock         *Clock
	notifier      notify.Notifier
	logger        *slog.Logger
	timeout       time.Duration
	cancelTimeout time.Duration

	mu         sync.Mutex
	sql        string
	provenance string
	result     *core.QueryResult
	err        error
	status     Status
	op         Op
	token      uint64
	cancel     context.CancelFunc
	// cancelDone is closed once the last cancel_query signal has been sent.
	cancelDone chan struct{}
	closed     bool
}

// Option configures a Session.
type Option func(*Session)

// WithClock shares a generation clock between sessions of the same process.
func WithClock(c *Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithNotifier sets where transient notices go.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Session) { s.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithTimeout bounds every backend call made by the session. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) { s.timeout = d }
}

// WithCancelTimeout bounds the cancel_query signal.
func WithCancelTimeout(d time.Duration) Option {
	return func(s *Session) { s.cancelTimeout = d }
}

// New creates an idle session for connection id.
func New(id string, b backend.Backend, opts ...Option) *Session {
	s := &Session{
		id:            id,
		backend:       b,
		notifier:      notify.Discard,
		logger:        slog.New(slog.DiscardHandler),
		cancelTimeout: defaultCancelTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = NewClock()
	}
	s.logger = s.logger.With("connection", id)
	return s
}

// ConnectionID returns the connection the session belongs to.
func (s *Session) ConnectionID() string { return s.id }

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ConnectionID: s.id,
		SQL:          s.sql,
		Provenance:   s.provenance,
		Result:       s.result,
		Err:          s.err,
		Status:       s.status,
		Op:           s.op,
		Generation:   s.clock.Current(s.id),
	}
}

// Busy reports whether an operation is in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status == Running
}

// SetSQL replaces the editable SQL text.
func (s *Session) SetSQL(text string) {
	s.mu.Lock()
	s.sql = text
	s.mu.Unlock()
}

// Clear drops the result, error and provenance.
func (s *Session) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == Running {
		return core.ErrBusy
	}
	s.result, s.err, s.provenance = nil, nil, ""
	s.status, s.op = Idle, OpNone
	return nil
}

// Execute runs sql on the backend. On success the result replaces the
// previous one and provenance is cleared; on failure the previous result is
// kept and Err is set.
func (s *Session) Execute(ctx context.Context, sql string) (*core.QueryResult, error) {
	if err := core.ValidateStatement(sql); err != nil {
		return nil, err
	}
	callCtx, token, done, err := s.begin(ctx, OpExecute, sql)
	if err != nil {
		return nil, err
	}
	defer done()

	res, err := s.backend.RunSQLQuery(callCtx, s.id, sql)

	s.mu.Lock()
	if s.stale(token) {
		s.mu.Unlock()
		s.logger.Debug("discarding stale query result", "token", token)
		return nil, core.ErrStale
	}
	if err == nil && res == nil {
		err = errors.New("backend returned no result")
	}
	if err != nil {
		err = s.failLocked(err)
		s.mu.Unlock()
		return nil, err
	}
	s.result = res
	s.err = nil
	s.provenance = ""
	s.status = Succeeded
	s.mu.Unlock()

	s.reportResult(res)
	return res, nil
}

// GenerateOnly turns prompt into SQL without running it. The generated SQL
// becomes both the provenance and the editable text; the result is untouched.
func (s *Session) GenerateOnly(ctx context.Context, prompt string) (string, error) {
	if err := core.ValidatePrompt(prompt); err != nil {
		return "", err
	}
	callCtx, token, done, err := s.begin(ctx, OpGenerate, "")
	if err != nil {
		return "", err
	}
	defer done()

	generated, err := s.backend.GenerateSQLFromNL(callCtx, s.id, prompt)

	s.mu.Lock()
	if s.stale(token) {
		s.mu.Unlock()
		s.logger.Debug("discarding stale generated SQL", "token", token)
		return "", core.ErrStale
	}
	if err != nil {
		err = s.failLocked(err)
		s.mu.Unlock()
		return "", err
	}
	s.provenance = generated
	s.sql = generated
	s.err = nil
	s.status = Succeeded
	s.mu.Unlock()

	s.notifier.Notify(notify.Notice{Level: notify.Success, ConnectionID: s.id, Text: "SQL generated"})
	return generated, nil
}

// ExecuteFromNaturalLanguage generates SQL from prompt and runs it in one
// backend call. Provenance and result are stored together.
func (s *Session) ExecuteFromNaturalLanguage(ctx context.Context, prompt string) (*core.NLQueryResponse, error) {
	if err := core.ValidatePrompt(prompt); err != nil {
		return nil, err
	}
	callCtx, token, done, err := s.begin(ctx, OpNaturalLanguage, "")
	if err != nil {
		return nil, err
	}
	defer done()

	resp, err := s.backend.RunNLQuery(callCtx, s.id, prompt)

	s.mu.Lock()
	if s.stale(token) {
		s.mu.Unlock()
		s.logger.Debug("discarding stale natural-language result", "token", token)
		return nil, core.ErrStale
	}
	if err == nil && (resp == nil || resp.Result == nil) {
		err = errors.New("backend returned no result")
	}
	if err != nil {
		err = s.failLocked(err)
		s.mu.Unlock()
		return nil, err
	}
	s.provenance = resp.GeneratedSQL
	s.sql = resp.GeneratedSQL
	s.result = resp.Result
	s.err = nil
	s.status = Succeeded
	s.mu.Unlock()

	s.reportResult(resp.Result)
	return resp, nil
}

// Cancel stops the running operation locally and asks the backend to stop
// it too. It returns false when nothing was running. The session is not
// busy once Cancel returns; a late completion of the cancelled operation
// is discarded.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	if s.closed || s.status != Running {
		s.mu.Unlock()
		return false
	}
	s.clock.Advance(s.id)
	s.status = Cancelled
	cancel := s.cancel
	s.cancel = nil
	prev := s.cancelDone
	sent := make(chan struct{})
	s.cancelDone = sent
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	go func() {
		defer close(sent)
		if prev != nil {
			<-prev
		}
		s.signalCancel()
	}()

	s.logger.Info("query cancelled")
	s.notifier.Notify(notify.Notice{Level: notify.Info, ConnectionID: s.id, Text: "Query cancelled"})
	return true
}

// Discard retires the session. The in-flight operation, if any, keeps
// running on the backend but its completion is dropped.
func (s *Session) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.clock.Advance(s.id)
	s.cancel = nil
}

// begin moves the session to Running and captures a fresh token. The
// returned done func releases the call context. A cancel_query signal still
// in transit is awaited first so it cannot abort the new call.
func (s *Session) begin(ctx context.Context, op Op, sql string) (context.Context, uint64, func(), error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, 0, nil, core.ErrClosed
	}
	if s.status == Running {
		s.mu.Unlock()
		return nil, 0, nil, core.ErrBusy
	}

	callCtx, cancel := context.WithCancel(ctx)
	if s.timeout > 0 {
		var cancelTimeout context.CancelFunc
		callCtx, cancelTimeout = context.WithTimeout(callCtx, s.timeout)
		parent := cancel
		cancel = func() {
			cancelTimeout()
			parent()
		}
	}

	s.token = s.clock.Advance(s.id)
	s.status = Running
	s.op = op
	s.cancel = cancel
	if sql != "" {
		s.sql = sql
	}
	token := s.token
	pending := s.cancelDone
	s.mu.Unlock()

	if pending != nil {
		select {
		case <-pending:
		case <-callCtx.Done():
		}
	}
	s.logger.Debug("operation started", "op", op, "token", token)
	return callCtx, token, cancel, nil
}

// stale reports whether a completion carrying token must be dropped.
// Callers hold s.mu.
func (s *Session) stale(token uint64) bool {
	return s.closed || s.token != token || s.clock.Current(s.id) != token
}

// failLocked records err as the outcome of the current operation. Callers
// hold s.mu.
func (s *Session) failLocked(err error) error {
	if core.KindOf(err) == core.KindUnknown {
		err = core.WrapExecution(err)
	}
	s.err = err
	s.status = Failed
	s.cancel = nil
	s.logger.Warn("operation failed", "op", s.op, "error", err)
	s.notifier.Notify(notify.Notice{Level: notify.Error, ConnectionID: s.id, Text: core.Message(err)})
	return err
}

func (s *Session) reportResult(res *core.QueryResult) {
	s.notifier.Notify(notify.Notice{
		Level:        notify.Success,
		ConnectionID: s.id,
		Text:         fmt.Sprintf("Query returned %d rows (%d ms)", res.Total, res.ExecTimeMs),
	})
	if res.Truncated {
		s.notifier.Notify(notify.Notice{
			Level:        notify.Warning,
			ConnectionID: s.id,
			Text:         fmt.Sprintf("Result truncated to %d rows", len(res.Rows)),
		})
	}
}

func (s *Session) signalCancel() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cancelTimeout)
	defer cancel()
	if err := s.backend.CancelQuery(ctx, s.id); err != nil {
		s.logger.Warn("cancel request failed", "error", err)
		s.notifier.Notify(notify.Notice{Level: notify.Warning, ConnectionID: s.id, Text: "Cancel request failed: " + core.Message(err)})
	}
}
