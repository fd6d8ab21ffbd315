package ipqsdb

import (
	"encoding/binary"
	"math"
	"net/netip"
	"testing"

	"go4.org/netipx"
)

// databaseBuilder assembles a database image in the on-disk format so tests
// can synthesize fixtures instead of shipping sample files.
type databaseBuilder struct {
	ipv6       bool
	blacklist  bool
	binaryData bool
	columns    []Column
	entries    []builderEntry
}

type builderEntry struct {
	prefix netip.Prefix
	record recordSpec
}

// recordSpec describes one record to place in the fixture. Column values
// are keyed by column name: uint32 for int columns, float32 for floats,
// uint8 for small ints, string for strings. A rawStringOffset value writes
// the given absolute offset into a string slot verbatim, for corruption
// tests. Missing string values encode the unavailable sentinel 0.
type recordSpec struct {
	flagsFirst  byte
	flagsSecond byte
	common      byte
	values      map[string]any
}

type rawStringOffset uint32

func newDatabaseBuilder(ipv6 bool, columns ...Column) *databaseBuilder {
	return &databaseBuilder{ipv6: ipv6, columns: columns}
}

func stringColumn(name string) Column   { return Column{Name: name, Type: typeString} }
func intColumn(name string) Column      { return Column{Name: name, Type: typeInt} }
func floatColumn(name string) Column    { return Column{Name: name, Type: typeFloat} }
func smallIntColumn(name string) Column { return Column{Name: name, Type: typeSmallInt} }

func (b *databaseBuilder) addPrefix(prefix netip.Prefix, record recordSpec) *databaseBuilder {
	b.entries = append(b.entries, builderEntry{prefix, record})
	return b
}

func (b *databaseBuilder) addRange(from, to netip.Addr, record recordSpec) *databaseBuilder {
	for _, prefix := range netipx.IPRangeFrom(from, to).Prefixes() {
		b.addPrefix(prefix, record)
	}
	return b
}

// buildNode is one trie node under construction. A child slot holds either
// nothing (missing), a deeper node, or a record index.
type buildNode struct {
	child  [2]*buildNode
	record [2]int
}

func newBuildNode() *buildNode {
	return &buildNode{record: [2]int{-1, -1}}
}

func (b *databaseBuilder) recordBytes() int {
	length := 1
	if b.binaryData {
		length += 2
	}
	for _, column := range b.columns {
		length += column.width()
	}
	return length
}

func (b *databaseBuilder) build(t *testing.T) []byte {
	t.Helper()

	root := newBuildNode()
	for index, entry := range b.entries {
		bits := newAddressBits(entry.prefix.Addr())
		node := root
		for depth := 0; depth < entry.prefix.Bits(); depth++ {
			branch := 0
			if bits.get(depth) {
				branch = 1
			}
			if depth == entry.prefix.Bits()-1 {
				node.record[branch] = index
				break
			}
			if node.child[branch] == nil {
				node.child[branch] = newBuildNode()
			}
			node = node.child[branch]
		}
	}

	// assign node offsets in preorder
	var nodes []*buildNode
	var collect func(node *buildNode)
	collect = func(node *buildNode) {
		nodes = append(nodes, node)
		for _, child := range node.child {
			if child != nil {
				collect(child)
			}
		}
	}
	collect(root)

	treeStart := prologueLength + columnDescriptorLength*len(b.columns)
	treeLength := treeHeaderLength + nodeLength*len(nodes)
	recordBase := treeStart + treeLength
	recordBytes := b.recordBytes()
	stringsStart := recordBase + recordBytes*len(b.entries)

	nodeOffsets := make(map[*buildNode]int, len(nodes))
	for index, node := range nodes {
		nodeOffsets[node] = treeStart + treeHeaderLength + nodeLength*index
	}

	// collect string values and assign offsets in the trailing region
	stringOffsets := make(map[string]int)
	var stringData []byte
	for _, entry := range b.entries {
		for _, value := range entry.record.values {
			text, isString := value.(string)
			if !isString {
				continue
			}
			if _, done := stringOffsets[text]; done {
				continue
			}
			if len(text) > 0xFF {
				t.Fatalf("string value too long: %q", text)
			}
			stringOffsets[text] = stringsStart + len(stringData)
			stringData = append(stringData, byte(len(text)))
			stringData = append(stringData, text...)
		}
	}

	image := make([]byte, 0, stringsStart+len(stringData))

	prologue := make([]byte, prologueLength)
	prologue[0] = flagIPv4Map
	if b.ipv6 {
		prologue[0] = flagIPv6Map
	}
	if b.blacklist {
		prologue[0] |= flagBlacklist
	}
	if b.binaryData {
		prologue[0] |= flagBinaryData
	}
	prologue[1] = supportedVersion
	binary.PutUvarint(prologue[2:5], uint64(treeStart))
	binary.PutUvarint(prologue[5:7], uint64(recordBytes))
	binary.LittleEndian.PutUint32(prologue[7:11], uint32(stringsStart+len(stringData)))
	image = append(image, prologue...)

	for _, column := range b.columns {
		descriptor := make([]byte, columnDescriptorLength)
		copy(descriptor, column.Name)
		descriptor[columnDescriptorLength-1] = column.Type
		image = append(image, descriptor...)
	}

	treeHeader := make([]byte, treeHeaderLength)
	treeHeader[0] = typeTreeData
	binary.LittleEndian.PutUint32(treeHeader[1:5], uint32(treeLength))
	image = append(image, treeHeader...)

	for _, node := range nodes {
		raw := make([]byte, nodeLength)
		for branch := 0; branch < 2; branch++ {
			var value uint32
			if node.child[branch] != nil {
				value = uint32(nodeOffsets[node.child[branch]])
			} else if node.record[branch] >= 0 {
				value = uint32(recordBase + recordBytes*node.record[branch])
			}
			binary.LittleEndian.PutUint32(raw[branch*4:branch*4+4], value)
		}
		image = append(image, raw...)
	}

	for _, entry := range b.entries {
		image = append(image, b.encodeRecord(t, entry.record, stringOffsets)...)
	}
	image = append(image, stringData...)
	return image
}

func (b *databaseBuilder) encodeRecord(t *testing.T, spec recordSpec, stringOffsets map[string]int) []byte {
	t.Helper()
	raw := make([]byte, 0, b.recordBytes())
	if b.binaryData {
		raw = append(raw, spec.flagsFirst, spec.flagsSecond)
	}
	raw = append(raw, spec.common)
	for _, column := range b.columns {
		value := spec.values[column.Name]
		switch column.width() {
		case 1:
			number, _ := value.(uint8)
			raw = append(raw, number)
		case 4:
			slot := make([]byte, 4)
			switch typed := value.(type) {
			case nil:
				// unavailable string or zero scalar
			case uint32:
				binary.LittleEndian.PutUint32(slot, typed)
			case float32:
				binary.LittleEndian.PutUint32(slot, math.Float32bits(typed))
			case string:
				binary.LittleEndian.PutUint32(slot, uint32(stringOffsets[typed]))
			case rawStringOffset:
				binary.LittleEndian.PutUint32(slot, uint32(typed))
			default:
				t.Fatalf("unsupported value for column %s: %T", column.Name, value)
			}
			raw = append(raw, slot...)
		}
	}
	return raw
}
