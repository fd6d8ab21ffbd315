package log

import (
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/sagernet/sing/common"
)

var _ Output = (*JSONOutput)(nil)

// JSONOutput writes one JSON object per entry, suitable for log shippers.
type JSONOutput struct {
	access   sync.Mutex
	writer   io.Writer
	file     *os.File
	filePath string
}

type jsonEntry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Tag       string         `json:"tag,omitempty"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// NewJSONOutput creates a JSON lines output. When filePath is non-empty and
// writer is nil, the file is opened for appending at Start.
func NewJSONOutput(writer io.Writer, filePath string) Output {
	return &JSONOutput{
		writer:   writer,
		filePath: filePath,
	}
}

// Start opens the file if this is a file output.
func (o *JSONOutput) Start() error {
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

// Write writes one entry as a JSON line.
func (o *JSONOutput) Write(entry Entry) error {
	if o.writer == nil {
		return nil
	}
	line, err := json.Marshal(jsonEntry{
		Timestamp: entry.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
		Level:     FormatLevel(entry.Level),
		Tag:       entry.Tag,
		Message:   entry.Message,
		Fields:    entry.Fields,
	})
	if err != nil {
		return err
	}
	o.access.Lock()
	defer o.access.Unlock()
	_, err = o.writer.Write(append(line, '\n'))
	return err
}

// Close flushes and closes the output.
func (o *JSONOutput) Close() error {
	return common.Close(common.PtrOrNil(o.file))
}
