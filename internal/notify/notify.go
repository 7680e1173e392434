// Package notify carries transient user-facing notices out of the
// orchestration components.
package notify

import (
	"context"
	"log/slog"
	"sync"
)

// Level is the severity of a notice.
type Level int

const (
	Info Level = iota
	Success
	Warning
	Error
)

func (l Level) String() string {
	switch l {
	case Success:
		return "success"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "info"
	}
}

// Notice is one transient message.
type Notice struct {
	Level        Level
	ConnectionID string
	Text         string
}

// Notifier receives notices. Implementations must not block.
type Notifier interface {
	Notify(Notice)
}

// Func adapts a function to Notifier.
type Func func(Notice)

func (f Func) Notify(n Notice) { f(n) }

// Discard drops every notice.
var Discard Notifier = Func(func(Notice) {})

// Log writes notices to a structured logger.
func Log(logger *slog.Logger) Notifier {
	return Func(func(n Notice) {
		level := slog.LevelInfo
		switch n.Level {
		case Warning:
			level = slog.LevelWarn
		case Error:
			level = slog.LevelError
		}
		logger.Log(context.Background(), level, n.Text, "connection", n.ConnectionID, "kind", n.Level.String())
	})
}

// Chan is a buffered notifier drained by a single reader. When the buffer is
// full the oldest notice is dropped.
type Chan struct {
	ch chan Notice
}

// NewChan returns a Chan holding up to size notices.
func NewChan(size int) *Chan {
	if size < 1 {
		size = 1
	}
	return &Chan{ch: make(chan Notice, size)}
}

func (c *Chan) Notify(n Notice) {
	for {
		select {
		case c.ch <- n:
			return
		default:
		}
		select {
		case <-c.ch:
		default:
		}
	}
}

// C returns the receive side.
func (c *Chan) C() <-chan Notice { return c.ch }

// Recorder keeps every notice in memory.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Notify(n Notice) {
	r.mu.Lock()
	r.notices = append(r.notices, n)
	r.mu.Unlock()
}

// Notices returns a copy of what was recorded.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

// Last returns the most recent notice.
func (r *Recorder) Last() (Notice, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return Notice{}, false
	}
	return r.notices[len(r.notices)-1], true
}

// Multi fans a notice out to several notifiers.
func Multi(ns ...Notifier) Notifier {
	return Func(func(n Notice) {
		for _, x := range ns {
			x.Notify(n)
		}
	})
}
