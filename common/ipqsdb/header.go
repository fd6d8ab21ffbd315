package ipqsdb

import (
	"encoding/binary"
	"strings"

	E "github.com/sagernet/sing/common/exceptions"
)

const (
	// supportedVersion is the only database format version this reader
	// understands.
	supportedVersion = 0x01

	// prologueLength is the fixed part of the header before the column
	// descriptor table.
	prologueLength = 11

	// columnDescriptorLength is the size of one entry in the column table:
	// a 23-byte NUL-padded name followed by one type byte.
	columnDescriptorLength = 24

	// treeHeaderLength precedes the root node within the tree block: one
	// type byte and a 4-byte tree length.
	treeHeaderLength = 5

	// nodeLength is two 4-byte child offsets.
	nodeLength = 8
)

// Column describes one entry of the header's column table. The table order
// is the canonical decoding order for record slots.
type Column struct {
	Name string
	Type byte
}

// Kind names the storage kind declared by the column's type byte.
func (c Column) Kind() string {
	var kinds []string
	if c.Type&typeString != 0 {
		kinds = append(kinds, "string")
	}
	if c.Type&typeSmallInt != 0 {
		kinds = append(kinds, "small int")
	}
	if c.Type&typeInt != 0 {
		kinds = append(kinds, "int")
	}
	if c.Type&typeFloat != 0 {
		kinds = append(kinds, "float")
	}
	if len(kinds) == 0 {
		return "unknown"
	}
	return strings.Join(kinds, "+")
}

// width returns the record slot size of the column in bytes. String, int and
// float columns occupy 4 bytes, small ints a single byte.
func (c Column) width() int {
	if c.Type&(typeString|typeInt|typeFloat) != 0 {
		return 4
	}
	return 1
}

// header is the parsed file prologue, cached for the life of the reader.
type header struct {
	isV6        bool
	isBlacklist bool
	binaryData  bool
	treeStart   int64
	treeEnd     int64
	recordBytes int
	totalBytes  uint32
	columns     []Column
}

// parseHeader reads and validates the file prologue, the column descriptor
// table and the tree block header.
func parseHeader(source Source) (*header, error) {
	prologue := make([]byte, prologueLength)
	err := readExact(source, 0, prologue)
	if err != nil {
		return nil, E.Cause(err, "read prologue")
	}

	fileFlags := prologue[0]
	isV6 := fileFlags&flagIPv6Map != 0
	// exactly one address family flag may be set
	if isV6 == (fileFlags&flagIPv4Map != 0) {
		return nil, E.Cause(ErrMalformedHeader, "invalid address family flags")
	}

	if prologue[1] != supportedVersion {
		return nil, E.Cause(ErrUnsupportedVersion, "version ", prologue[1])
	}

	// bytes 2..5 encode the total header size as a varint; the tree block
	// starts where the header ends
	treeStart, n := binary.Uvarint(prologue[2:5])
	if n <= 0 || treeStart == 0 {
		return nil, E.Cause(ErrMalformedHeader, "invalid tree offset")
	}
	columnBytes := int(treeStart) - prologueLength
	if columnBytes <= 0 {
		return nil, E.Cause(ErrMalformedHeader, "no column data")
	}
	if columnBytes%columnDescriptorLength != 0 {
		return nil, E.Cause(ErrMalformedHeader, "column table of ", columnBytes, " bytes is not a whole number of descriptors")
	}

	recordBytes, n := binary.Uvarint(prologue[5:7])
	if n <= 0 || recordBytes == 0 {
		return nil, E.Cause(ErrMalformedHeader, "invalid record size")
	}
	preludeBytes := 1
	if fileFlags&flagBinaryData != 0 {
		preludeBytes = 3
	}
	if recordBytes < uint64(preludeBytes) {
		return nil, E.Cause(ErrMalformedHeader, "record size ", recordBytes, " cannot hold the ", preludeBytes, " byte flag prelude")
	}

	totalBytes := binary.LittleEndian.Uint32(prologue[7:11])

	columnData := make([]byte, columnBytes)
	err = readExact(source, prologueLength, columnData)
	if err != nil {
		return nil, E.Cause(err, "read column table")
	}
	columns := make([]Column, 0, columnBytes/columnDescriptorLength)
	for offset := 0; offset < columnBytes; offset += columnDescriptorLength {
		descriptor := columnData[offset : offset+columnDescriptorLength]
		columns = append(columns, Column{
			Name: strings.TrimRight(string(descriptor[:columnDescriptorLength-1]), "\x00"),
			Type: descriptor[columnDescriptorLength-1],
		})
	}

	treeHeader := make([]byte, treeHeaderLength)
	err = readExact(source, int64(treeStart), treeHeader)
	if err != nil {
		return nil, E.Cause(err, "read tree header")
	}
	if treeHeader[0]&typeTreeData == 0 {
		return nil, E.Cause(ErrMalformedTree, "missing tree data marker")
	}
	treeLength := binary.LittleEndian.Uint32(treeHeader[1:5])
	if treeLength == 0 {
		return nil, E.Cause(ErrMalformedTree, "empty tree block")
	}

	return &header{
		isV6:        isV6,
		isBlacklist: fileFlags&flagBlacklist != 0,
		binaryData:  fileFlags&flagBinaryData != 0,
		treeStart:   int64(treeStart),
		treeEnd:     int64(treeStart) + int64(treeLength),
		recordBytes: int(recordBytes),
		totalBytes:  totalBytes,
		columns:     columns,
	}, nil
}
