package log

import (
	"context"
	"strings"
	"time"

	"github.com/logrusorgru/aurora"
)

// Formatter renders log entries as single lines for terminal or file output.
type Formatter struct {
	BaseTime         time.Time
	DisableColors    bool
	DisableTimestamp bool
	FullTimestamp    bool
	TimestampFormat  string
	DisableLineBreak bool
}

func (f Formatter) Format(ctx context.Context, level Level, tag string, message string, timestamp time.Time) string {
	levelString := strings.ToUpper(FormatLevel(level))
	if !f.DisableColors {
		switch level {
		case LevelDebug, LevelTrace:
			levelString = aurora.White(levelString).String()
		case LevelInfo:
			levelString = aurora.Cyan(levelString).String()
		case LevelWarn:
			levelString = aurora.Yellow(levelString).String()
		case LevelError, LevelFatal, LevelPanic:
			levelString = aurora.Red(levelString).String()
		}
	}
	if tag != "" {
		message = tag + ": " + message
	}
	var builder strings.Builder
	if !f.DisableTimestamp {
		if f.FullTimestamp {
			format := f.TimestampFormat
			if format == "" {
				format = "-0700 2006-01-02 15:04:05"
			}
			builder.WriteString(timestamp.Format(format))
			builder.WriteString(" ")
		} else {
			builder.WriteString("+")
			builder.WriteString(timestamp.Sub(f.BaseTime).Round(time.Millisecond).String())
			builder.WriteString(" ")
		}
	}
	builder.WriteString("[")
	builder.WriteString(levelString)
	builder.WriteString("] ")
	builder.WriteString(message)
	if !f.DisableLineBreak && !strings.HasSuffix(message, "\n") {
		builder.WriteString("\n")
	}
	return builder.String()
}
