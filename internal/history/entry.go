// internal/history/entry.go
package history

import "time"

// Kind distinguishes typed SQL from natural-language runs
type Kind string

const (
	KindSQL             Kind = "sql"
	KindNaturalLanguage Kind = "natural_language"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Entry represents a single query execution in history
type Entry struct {
	ID           int64     `json:"id"`
	ConnectionID string    `json:"connectionId"`
	Kind         Kind      `json:"kind"`
	SQL          string    `json:"sql"`
	Prompt       string    `json:"prompt,omitempty"`
	ExecutedAt   time.Time `json:"executedAt"`
	DurationMs   int64     `json:"durationMs"`
	RowCount     int       `json:"rowCount"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
}

// QueryPreview returns a truncated single-line version of the query
func (e *Entry) QueryPreview(maxLen int) string {
	q := []rune(collapse(e.SQL))
	if maxLen > 3 && len(q) > maxLen {
		return string(q[:maxLen-3]) + "..."
	}
	return string(q)
}

func collapse(s string) string {
	out := make([]rune, 0, len(s))
	space := false
	for _, r := range s {
		if r == '\n' || r == '\t' || r == '\r' || r == ' ' {
			if !space && len(out) > 0 {
				out = append(out, ' ')
			}
			space = true
			continue
		}
		space = false
		out = append(out, r)
	}
	if len(out) > 0 && out[len(out)-1] == ' ' {
		out = out[:len(out)-1]
	}
	return string(out)
}
