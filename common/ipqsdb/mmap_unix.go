//go:build unix

package ipqsdb

import (
	"os"

	E "github.com/sagernet/sing/common/exceptions"

	"golang.org/x/sys/unix"
)

var _ Source = (*mmapSource)(nil)

// mmapSource serves reads from a read-only memory map of the database file.
type mmapSource struct {
	data []byte
}

func newMappedSource(path string) (Source, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()
	if size == 0 {
		return nil, E.New("empty database file: ", path)
	}
	if size != int64(int(size)) {
		return nil, E.New("database file too large to map: ", path)
	}
	data, err := unix.Mmap(int(file.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	return &mmapSource{data}, nil
}

func (s *mmapSource) ReadAt(p []byte, off int64) (int, error) {
	return (&memorySource{s.data}).ReadAt(p, off)
}

func (s *mmapSource) Size() int64 {
	return int64(len(s.data))
}

func (s *mmapSource) Close() error {
	data := s.data
	s.data = nil
	if data == nil {
		return nil
	}
	return unix.Munmap(data)
}
