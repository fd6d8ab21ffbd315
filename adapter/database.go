package adapter

import (
	"net/netip"

	"github.com/sagernet/sing-ipqs/common/ipqsdb"
)

// RecordSource answers reputation lookups for one address family.
type RecordSource interface {
	// Fetch returns the record bound to addr, ipqsdb.ErrNotFound when the
	// database holds none, or ipqsdb.ErrFamilyMismatch for the wrong family.
	Fetch(addr netip.Addr) (*ipqsdb.Record, error)
	// IsIPv6 reports which address family the source serves.
	IsIPv6() bool
	Close() error
}

// ASNReader provides autonomous system lookups from an auxiliary database,
// used to cross-check values decoded from the flat file.
type ASNReader interface {
	// Lookup returns the ASN for the given address, 0 when unknown.
	Lookup(addr netip.Addr) uint
	// LookupWithOrg returns the ASN and organization name, (0, "") when
	// unknown.
	LookupWithOrg(addr netip.Addr) (uint, string)
	Close() error
}
