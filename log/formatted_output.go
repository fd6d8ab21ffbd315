package log

import (
	"context"
	"io"
	"os"

	"github.com/sagernet/sing/common"
)

var _ Output = (*FormattedOutput)(nil)

// FormattedOutput wraps an io.Writer or a file path with a formatter.
type FormattedOutput struct {
	formatter Formatter
	writer    io.Writer
	file      *os.File
	filePath  string
}

// NewFormattedOutput creates a formatted output. When filePath is non-empty
// and writer is nil, the file is opened for appending at Start.
func NewFormattedOutput(formatter Formatter, writer io.Writer, filePath string) Output {
	return &FormattedOutput{
		formatter: formatter,
		writer:    writer,
		filePath:  filePath,
	}
}

// Start opens the file if this is a file output.
func (o *FormattedOutput) Start() error {
	if o.filePath != "" && o.writer == nil {
		file, err := os.OpenFile(o.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		o.file = file
		o.writer = file
	}
	return nil
}

// Write writes a formatted log entry.
func (o *FormattedOutput) Write(entry Entry) error {
	if o.writer == nil {
		return nil
	}
	message := o.formatter.Format(context.Background(), entry.Level, entry.Tag, entry.Message, entry.Timestamp)
	_, err := o.writer.Write([]byte(message))
	return err
}

// Close flushes and closes the output.
func (o *FormattedOutput) Close() error {
	return common.Close(common.PtrOrNil(o.file))
}
