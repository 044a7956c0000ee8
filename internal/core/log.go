package core

import "time"

// LogLevel is the severity of a persisted log entry.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogEntry is one append-only audit record attached to a run. Entries are
// ordered by CreatedAt and never mutated or deleted by the worker.
type LogEntry struct {
	RunID     RunID
	Level     LogLevel
	Source    string
	Message   string
	Data      map[string]any
	CreatedAt time.Time
}
