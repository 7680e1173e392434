// internal/ui/messages.go
package ui

import (
	"github.com/nhath/ezquery/internal/core"
	"github.com/nhath/ezquery/internal/notify"
	"github.com/nhath/ezquery/internal/session"
)

// ConnectionsLoadedMsg is sent when the registry has been reloaded
type ConnectionsLoadedMsg struct {
	Err error
}

// MetadataMsg is sent when a schema load or refresh completes
type MetadataMsg struct {
	ConnectionID string
	Metadata     *core.Metadata
	Err          error
}

// QueryDoneMsg is sent when a session operation completes. The result
// itself is read from the session snapshot.
type QueryDoneMsg struct {
	ConnectionID string
	Op           session.Op
	Err          error
}

// SavedMsg is sent when a connection is added or updated
type SavedMsg struct {
	Connection core.Connection
	IsNew      bool
	Err        error
}

// TestedMsg is sent when a connectivity test completes
type TestedMsg struct {
	OK  bool
	Err error
}

// DeletedMsg is sent when a connection has been removed
type DeletedMsg struct {
	ID  string
	Err error
}

// NoticeMsg carries one transient notice from the orchestration layer
type NoticeMsg notify.Notice

// clearStatusMsg expires the status pills set by notice seq
type clearStatusMsg struct {
	seq int
}
