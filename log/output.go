package log

import (
	"time"
)

// Entry is one structured log event handed to outputs.
type Entry struct {
	Timestamp time.Time
	Level     Level
	Tag       string
	Message   string
	Fields    map[string]any
}

// Output is a destination for log entries.
type Output interface {
	// Write writes a log entry to the output.
	Write(entry Entry) error
	// Close flushes and closes the output.
	Close() error
}
