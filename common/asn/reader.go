package asn

import (
	"net/netip"
	"strings"

	E "github.com/sagernet/sing/common/exceptions"

	"github.com/oschwald/maxminddb-golang"
)

// record is the shape GeoLite2-ASN and compatible MMDB builds decode into.
type record struct {
	AutonomousSystemNumber       uint   `maxminddb:"autonomous_system_number"`
	AutonomousSystemOrganization string `maxminddb:"autonomous_system_organization"`
}

// Reader answers ASN lookups from a MaxMind MMDB file. It serves as an
// independent reference to cross-check ASN values decoded from the
// reputation flat file.
type Reader struct {
	reader *maxminddb.Reader
}

// Open opens an MMDB file whose database type carries ASN data
// (GeoLite2-ASN or a compatible custom build).
func Open(path string) (*Reader, error) {
	database, err := maxminddb.Open(path)
	if err != nil {
		return nil, err
	}
	databaseType := database.Metadata.DatabaseType
	if !strings.Contains(databaseType, "ASN") {
		database.Close()
		return nil, E.New("incorrect database type, expected an ASN build, got ", databaseType)
	}
	return &Reader{database}, nil
}

// Lookup returns the autonomous system number for the address, 0 when the
// address is not covered.
func (r *Reader) Lookup(addr netip.Addr) uint {
	number, _ := r.LookupWithOrg(addr)
	return number
}

// LookupWithOrg returns the ASN and organization name for the address,
// (0, "") when the address is not covered.
func (r *Reader) LookupWithOrg(addr netip.Addr) (uint, string) {
	var entry record
	err := r.reader.Lookup(addr.AsSlice(), &entry)
	if err != nil {
		return 0, ""
	}
	return entry.AutonomousSystemNumber, entry.AutonomousSystemOrganization
}

// Verify compares a flat-file ASN value against this database. It reports
// agreement and the reference value; addresses this database does not cover
// verify as agreeing.
func (r *Reader) Verify(addr netip.Addr, flatFileASN uint64) (bool, uint) {
	reference := r.Lookup(addr)
	if reference == 0 {
		return true, 0
	}
	return uint64(reference) == flatFileASN, reference
}

// Close releases the underlying database.
func (r *Reader) Close() error {
	return r.reader.Close()
}
