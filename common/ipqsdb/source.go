package ipqsdb

import (
	"io"
	"os"

	E "github.com/sagernet/sing/common/exceptions"
)

// Source is the byte view over a database file. All reads are positional so
// a single Source can serve concurrent lookups. No other component touches
// the file directly.
type Source interface {
	io.ReaderAt
	Size() int64
	Close() error
}

// readExact reads exactly len(buffer) bytes at offset, failing on any short
// or out-of-range read.
func readExact(source Source, offset int64, buffer []byte) error {
	if offset < 0 || offset+int64(len(buffer)) > source.Size() {
		return E.New("read of ", len(buffer), " bytes at offset ", offset, " outside file of ", source.Size(), " bytes")
	}
	_, err := io.ReadFull(io.NewSectionReader(source, offset, int64(len(buffer))), buffer)
	return err
}

// readString resolves a length-prefixed string at an absolute offset: one
// length byte followed by that many UTF-8 bytes.
func readString(source Source, offset int64) (string, error) {
	var sizeByte [1]byte
	err := readExact(source, offset, sizeByte[:])
	if err != nil {
		return "", err
	}
	raw := make([]byte, sizeByte[0])
	err = readExact(source, offset+1, raw)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

var _ Source = (*memorySource)(nil)

// memorySource serves reads from an in-memory copy of the database.
type memorySource struct {
	data []byte
}

func newMemorySource(data []byte) *memorySource {
	return &memorySource{data}
}

func (s *memorySource) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(s.data)) {
		return 0, io.EOF
	}
	n := copy(p, s.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (s *memorySource) Size() int64 {
	return int64(len(s.data))
}

func (s *memorySource) Close() error {
	s.data = nil
	return nil
}

var _ Source = (*fileSource)(nil)

// fileSource serves reads through positional reads on an open file. ReadAt
// is stateless with respect to the file cursor, so concurrent lookups on the
// same reader are safe.
type fileSource struct {
	file *os.File
	size int64
}

func newFileSource(path string) (*fileSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	return &fileSource{file, info.Size()}, nil
}

func (s *fileSource) ReadAt(p []byte, off int64) (int, error) {
	return s.file.ReadAt(p, off)
}

func (s *fileSource) Size() int64 {
	return s.size
}

func (s *fileSource) Close() error {
	return s.file.Close()
}
