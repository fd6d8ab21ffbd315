package ipqsdb

import (
	"net/netip"
	"os"

	E "github.com/sagernet/sing/common/exceptions"
)

// Reader answers lookups against one reputation database file. The header is
// parsed once at open; lookups are stateless and safe for concurrent use as
// long as the underlying source reads positionally, which every source in
// this package does.
type Reader struct {
	source     Source
	fileHeader *header
}

// Open opens the database at path, preferring a read-only memory map and
// falling back to loading the file into memory where mapping is unavailable.
func Open(path string) (*Reader, error) {
	source, err := newMappedSource(path)
	if err != nil {
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil, readErr
		}
		source = newMemorySource(data)
	}
	return newReader(source)
}

// OpenFile opens the database at path backed by positional file reads,
// keeping only the parsed header in memory.
func OpenFile(path string) (*Reader, error) {
	source, err := newFileSource(path)
	if err != nil {
		return nil, err
	}
	return newReader(source)
}

// FromBytes creates a reader over an in-memory database image.
func FromBytes(data []byte) (*Reader, error) {
	return newReader(newMemorySource(data))
}

// FromSource creates a reader over a caller-supplied byte source.
func FromSource(source Source) (*Reader, error) {
	return newReader(source)
}

func newReader(source Source) (*Reader, error) {
	fileHeader, err := parseHeader(source)
	if err != nil {
		source.Close()
		return nil, err
	}
	return &Reader{source, fileHeader}, nil
}

// IsIPv6 reports whether the file holds IPv6 data.
func (r *Reader) IsIPv6() bool {
	return r.fileHeader.isV6
}

// IsBlacklist reports whether the file is a blacklist build. Blacklist files
// bind records to exact ranges only; regular files fall back to the nearest
// preceding populated range.
func (r *Reader) IsBlacklist() bool {
	return r.fileHeader.isBlacklist
}

// RecordBytes reports the fixed per-record length declared by the header.
func (r *Reader) RecordBytes() int {
	return r.fileHeader.recordBytes
}

// Columns reports the column descriptor table in decoding order.
func (r *Reader) Columns() []Column {
	columns := make([]Column, len(r.fileHeader.columns))
	copy(columns, r.fileHeader.columns)
	return columns
}

// Fetch looks up the record bound to addr. It returns ErrFamilyMismatch
// without touching the tree when the address family does not match the file,
// and ErrNotFound when the database holds no record for the address.
func (r *Reader) Fetch(addr netip.Addr) (*Record, error) {
	if !addr.IsValid() {
		return nil, E.New("invalid address")
	}
	if addr.Is4() == r.fileHeader.isV6 {
		return nil, E.Cause(ErrFamilyMismatch, addr)
	}

	bits := newAddressBits(addr)
	position := 0
	nodeOffset := r.fileHeader.treeStart + treeHeaderLength
	// node offsets already visited, one per bit depth, for backtracking
	previous := make([]int64, bits.size)
	node := make([]byte, nodeLength)

	for visit := 0; visit < maxTreeVisits; visit++ {
		if position >= bits.size {
			return nil, E.Cause(ErrMalformedTree, "traversal exhausted ", bits.size, " bits without terminating")
		}
		previous[position] = nodeOffset
		err := readExact(r.source, nodeOffset, node)
		if err != nil {
			return nil, E.Cause(ErrMalformedTree, "node at offset ", nodeOffset)
		}
		offset, kind := childOffset(bits.get(position), node, r.fileHeader.treeStart, r.fileHeader.treeEnd)
		switch kind {
		case childRecord:
			return decodeRecord(r.source, r.fileHeader, offset)
		case childNode:
			nodeOffset = offset
			position++
		case childMissing:
			if r.fileHeader.isBlacklist {
				return nil, E.Cause(ErrNotFound, addr)
			}
			// fall back to the nearest preceding populated range
			rewound, ok := bits.backtrack(position)
			if !ok {
				return nil, E.Cause(ErrNotFound, addr)
			}
			position = rewound
			nodeOffset = previous[position]
		}
	}
	return nil, E.Cause(ErrMalformedTree, "traversal did not terminate")
}

// Close releases the underlying source. Records already fetched stay valid.
func (r *Reader) Close() error {
	return r.source.Close()
}
