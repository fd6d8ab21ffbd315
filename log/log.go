package log

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/sagernet/sing-ipqs/option"
	E "github.com/sagernet/sing/common/exceptions"
	F "github.com/sagernet/sing/common/format"
	"github.com/sagernet/sing/common/logger"
)

type (
	Logger        = logger.Logger
	ContextLogger = logger.ContextLogger
)

// Factory produces tagged loggers sharing a level and a set of outputs.
type Factory interface {
	Start() error
	Close() error
	Level() Level
	SetLevel(level Level)
	Logger() ContextLogger
	NewLogger(tag string) ContextLogger
}

type Options struct {
	Context       context.Context
	Options       option.LogOptions
	DefaultWriter io.Writer
	BaseTime      time.Time
}

// New builds a log factory from options.
func New(options Options) (Factory, error) {
	logOptions := options.Options
	if logOptions.Disabled {
		return NewNOPFactory(), nil
	}

	var writer io.Writer
	var filePath string
	switch logOptions.Output {
	case "":
		writer = options.DefaultWriter
		if writer == nil {
			writer = os.Stderr
		}
	case "stderr":
		writer = os.Stderr
	case "stdout":
		writer = os.Stdout
	default:
		filePath = logOptions.Output
	}

	var output Output
	if logOptions.Format == "json" {
		output = NewJSONOutput(writer, filePath)
	} else {
		formatter := Formatter{
			BaseTime:         options.BaseTime,
			DisableColors:    logOptions.DisableColor || filePath != "",
			DisableTimestamp: !logOptions.Timestamp && filePath != "",
			FullTimestamp:    logOptions.Timestamp,
			TimestampFormat:  "-0700 2006-01-02 15:04:05",
		}
		output = NewFormattedOutput(formatter, writer, filePath)
	}

	factory := &outputFactory{
		outputs: []Output{output},
		level:   LevelTrace,
	}
	if logOptions.Level != "" {
		level, err := ParseLevel(logOptions.Level)
		if err != nil {
			return nil, E.Cause(err, "parse log level")
		}
		factory.level = level
	}
	return factory, nil
}

var _ Factory = (*outputFactory)(nil)

type outputFactory struct {
	outputs []Output
	level   Level
}

func (f *outputFactory) Start() error {
	for _, output := range f.outputs {
		if starter, isStarter := output.(interface{ Start() error }); isStarter {
			err := starter.Start()
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *outputFactory) Close() error {
	var firstError error
	for _, output := range f.outputs {
		err := output.Close()
		if err != nil && firstError == nil {
			firstError = err
		}
	}
	return firstError
}

func (f *outputFactory) Level() Level {
	return f.level
}

func (f *outputFactory) SetLevel(level Level) {
	f.level = level
}

func (f *outputFactory) Logger() ContextLogger {
	return f.NewLogger("")
}

func (f *outputFactory) NewLogger(tag string) ContextLogger {
	return &outputLogger{f, tag}
}

type outputLogger struct {
	factory *outputFactory
	tag     string
}

func (l *outputLogger) log(ctx context.Context, level Level, args []any) {
	if level > l.factory.level {
		return
	}
	entry := Entry{
		Timestamp: time.Now(),
		Level:     level,
		Tag:       l.tag,
		Message:   F.ToString(args...),
		Fields:    FieldsFromContext(ctx),
	}
	for _, output := range l.factory.outputs {
		output.Write(entry)
	}
	switch level {
	case LevelFatal:
		os.Exit(1)
	case LevelPanic:
		panic(entry.Message)
	}
}

func (l *outputLogger) Trace(args ...any) { l.log(context.Background(), LevelTrace, args) }
func (l *outputLogger) Debug(args ...any) { l.log(context.Background(), LevelDebug, args) }
func (l *outputLogger) Info(args ...any)  { l.log(context.Background(), LevelInfo, args) }
func (l *outputLogger) Warn(args ...any)  { l.log(context.Background(), LevelWarn, args) }
func (l *outputLogger) Error(args ...any) { l.log(context.Background(), LevelError, args) }
func (l *outputLogger) Fatal(args ...any) { l.log(context.Background(), LevelFatal, args) }
func (l *outputLogger) Panic(args ...any) { l.log(context.Background(), LevelPanic, args) }

func (l *outputLogger) TraceContext(ctx context.Context, args ...any) { l.log(ctx, LevelTrace, args) }
func (l *outputLogger) DebugContext(ctx context.Context, args ...any) { l.log(ctx, LevelDebug, args) }
func (l *outputLogger) InfoContext(ctx context.Context, args ...any)  { l.log(ctx, LevelInfo, args) }
func (l *outputLogger) WarnContext(ctx context.Context, args ...any)  { l.log(ctx, LevelWarn, args) }
func (l *outputLogger) ErrorContext(ctx context.Context, args ...any) { l.log(ctx, LevelError, args) }
func (l *outputLogger) FatalContext(ctx context.Context, args ...any) { l.log(ctx, LevelFatal, args) }
func (l *outputLogger) PanicContext(ctx context.Context, args ...any) { l.log(ctx, LevelPanic, args) }
