// internal/ui/model_types.go
package ui

// Pane identifies the focused area of the screen
type Pane int

const (
	PaneConnections Pane = iota
	PaneEditor
	PanePrompt
	PaneResults
	paneCount
)

func (p Pane) String() string {
	switch p {
	case PaneConnections:
		return "CONNECTIONS"
	case PanePrompt:
		return "ASK"
	case PaneResults:
		return "RESULTS"
	default:
		return "SQL"
	}
}
