package ipqsdb

import (
	E "github.com/sagernet/sing/common/exceptions"
)

// Error kinds returned by the reader. All are matchable with errors.Is; the
// reader wraps them with context describing where decoding went wrong.
// Underlying I/O failures are returned as-is, wrapped with context.
var (
	// ErrUnsupportedVersion is returned when the database file declares a
	// format version this reader does not implement.
	ErrUnsupportedVersion = E.New("unsupported database version")

	// ErrMalformedHeader is returned when the file prologue or the column
	// descriptor table is self-inconsistent.
	ErrMalformedHeader = E.New("malformed database header")

	// ErrMalformedTree is returned when the search tree block is invalid or
	// a traversal fails to terminate within the declared depth.
	ErrMalformedTree = E.New("malformed search tree")

	// ErrMalformedRecord is returned when a record extends past the end of
	// the file or references an invalid string offset.
	ErrMalformedRecord = E.New("malformed record")

	// ErrNotFound is returned when the database holds no record for the
	// queried address. Expected in normal operation.
	ErrNotFound = E.New("no record for address")

	// ErrFamilyMismatch is returned when an IPv6 address is queried against
	// an IPv4 database or vice versa. The tree is never read in that case.
	ErrFamilyMismatch = E.New("address family does not match database")
)
