package ipqsdb

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	E "github.com/sagernet/sing/common/exceptions"
)

// Strictness selects among the fraud scores a file may carry. Higher levels
// are stricter and more false-positive prone; not every file carries every
// level.
type Strictness uint8

const (
	StrictnessZero Strictness = iota
	StrictnessOne
	StrictnessTwo
	StrictnessThree
)

// Known column names, as written by the publisher into the descriptor table.
const (
	columnASN          = "ASN"
	columnLatitude     = "Latitude"
	columnLongitude    = "Longitude"
	columnCountry      = "Country"
	columnCity         = "City"
	columnRegion       = "Region"
	columnISP          = "ISP"
	columnOrganization = "Organization"
	columnTimezone     = "Timezone"
)

var fraudScoreColumns = [4]string{"ZeroFraudScore", "OneFraudScore", "TwoFraudScore", "ThreeFraudScore"}

// ColumnValue is one decoded record slot, in column table order. Values are
// rendered as strings; unavailable strings render as "N/A".
type ColumnValue struct {
	Name  string
	Type  byte
	Value string
}

// Record is a fully decoded database entry. Accessors distinguish a column
// the file does not carry (ok == false) from a present value; a string
// column whose slot holds the unavailable offset 0 also reports ok == false.
// Records own their data and stay valid after the reader is closed.
type Record struct {
	connectionType string
	abuseVelocity  string

	country      *string
	city         *string
	region       *string
	isp          *string
	organization *string
	timezone     *string

	asn        *uint64
	latitude   *float32
	longitude  *float32
	fraudScore [4]*uint32

	isProxy           *bool
	isVPN             *bool
	isTor             *bool
	isCrawler         *bool
	isBot             *bool
	recentAbuse       *bool
	isBlacklisted     *bool
	isPrivate         *bool
	isMobile          *bool
	hasOpenPorts      *bool
	isHostingProvider *bool
	activeVPN         *bool
	activeTor         *bool
	publicAccessPoint *bool

	columns []ColumnValue
}

// decodeRecord reads the record at an absolute offset and walks the column
// table to produce an owned Record.
func decodeRecord(source Source, fileHeader *header, offset int64) (*Record, error) {
	if offset+int64(fileHeader.recordBytes) > source.Size() {
		return nil, E.Cause(ErrMalformedRecord, "record at offset ", offset, " extends past end of file")
	}
	raw := make([]byte, fileHeader.recordBytes)
	err := readExact(source, offset, raw)
	if err != nil {
		return nil, E.Cause(err, "read record")
	}

	record := &Record{
		columns: make([]ColumnValue, 0, len(fileHeader.columns)),
	}
	index := 0
	if fileHeader.binaryData {
		record.setPackedFlags(raw[0], raw[1])
		index = 2
	}
	commonByte := raw[index]
	index++
	record.connectionType = connectionTypeName(commonByte)
	record.abuseVelocity = abuseVelocityName(commonByte)

	for _, column := range fileHeader.columns {
		width := column.width()
		if index+width > len(raw) {
			return nil, E.Cause(ErrMalformedRecord, "column ", column.Name, " extends past record of ", len(raw), " bytes")
		}
		slot := raw[index : index+width]
		index += width
		err = record.decodeColumn(source, column, slot)
		if err != nil {
			return nil, err
		}
	}
	return record, nil
}

// setPackedFlags expands the two packed boolean bytes at the head of the
// record. Reserved bits are ignored.
func (r *Record) setPackedFlags(first, second byte) {
	has := func(data, flag byte) *bool {
		value := data&flag != 0
		return &value
	}
	r.isProxy = has(first, flagProxy)
	r.isVPN = has(first, flagVPN)
	r.isTor = has(first, flagTor)
	r.isCrawler = has(first, flagCrawler)
	r.isBot = has(first, flagBot)
	r.recentAbuse = has(first, flagRecentAbuse)
	r.isBlacklisted = has(first, flagBlacklisted)
	r.isPrivate = has(first, flagPrivate)
	r.isMobile = has(second, flagMobile)
	r.hasOpenPorts = has(second, flagOpenPorts)
	r.isHostingProvider = has(second, flagHostingProvider)
	r.activeVPN = has(second, flagActiveVPN)
	r.activeTor = has(second, flagActiveTor)
	r.publicAccessPoint = has(second, flagPublicAccessPoint)
}

// decodeColumn interprets one slot. The column name determines the concrete
// interpretation; unnamed extensions are rejected so a record either decodes
// completely or not at all.
func (r *Record) decodeColumn(source Source, column Column, slot []byte) error {
	switch column.Name {
	case columnASN:
		value := uint64(binary.LittleEndian.Uint32(slot))
		r.asn = &value
		r.appendColumn(column.Name, typeInt, strconv.FormatUint(value, 10))
	case columnLatitude:
		value := math.Float32frombits(binary.LittleEndian.Uint32(slot))
		r.latitude = &value
		r.appendColumn(column.Name, typeFloat, strconv.FormatFloat(float64(value), 'f', -1, 32))
	case columnLongitude:
		value := math.Float32frombits(binary.LittleEndian.Uint32(slot))
		r.longitude = &value
		r.appendColumn(column.Name, typeFloat, strconv.FormatFloat(float64(value), 'f', -1, 32))
	default:
		for level, name := range fraudScoreColumns {
			if column.Name != name {
				continue
			}
			value := uint32(slot[0])
			r.fraudScore[level] = &value
			r.appendColumn(column.Name, typeSmallInt, strconv.FormatUint(uint64(value), 10))
			return nil
		}
		return r.decodeStringColumn(source, column, slot)
	}
	return nil
}

// decodeStringColumn resolves a string slot: a 4-byte absolute offset to a
// length-prefixed string, with 0 meaning the value is unavailable.
func (r *Record) decodeStringColumn(source Source, column Column, slot []byte) error {
	if column.Type&typeString == 0 {
		return E.Cause(ErrMalformedRecord, "unsupported column ", column.Name)
	}
	var target **string
	switch column.Name {
	case columnCountry:
		target = &r.country
	case columnCity:
		target = &r.city
	case columnRegion:
		target = &r.region
	case columnISP:
		target = &r.isp
	case columnOrganization:
		target = &r.organization
	case columnTimezone:
		target = &r.timezone
	default:
		return E.Cause(ErrMalformedRecord, "unsupported column ", column.Name)
	}
	stringOffset := int64(binary.LittleEndian.Uint32(slot))
	if stringOffset == 0 {
		r.appendColumn(column.Name, typeString, "N/A")
		return nil
	}
	value, err := readString(source, stringOffset)
	if err != nil {
		return E.Cause(ErrMalformedRecord, "column ", column.Name, ": invalid string offset ", stringOffset)
	}
	*target = &value
	r.appendColumn(column.Name, typeString, value)
	return nil
}

func (r *Record) appendColumn(name string, columnType byte, value string) {
	r.columns = append(r.columns, ColumnValue{Name: name, Type: columnType, Value: value})
}

// ConnectionType reports one of: Residential, Mobile, Corporate,
// Data Center, Education, Unknown.
func (r *Record) ConnectionType() string {
	return r.connectionType
}

// AbuseVelocity reports how frequently the address engages in abuse: none,
// low, medium or high.
func (r *Record) AbuseVelocity() string {
	return r.abuseVelocity
}

func (r *Record) IsProxy() (bool, bool)           { return boolValue(r.isProxy) }
func (r *Record) IsVPN() (bool, bool)             { return boolValue(r.isVPN) }
func (r *Record) IsTor() (bool, bool)             { return boolValue(r.isTor) }
func (r *Record) IsCrawler() (bool, bool)         { return boolValue(r.isCrawler) }
func (r *Record) IsBot() (bool, bool)             { return boolValue(r.isBot) }
func (r *Record) RecentAbuse() (bool, bool)       { return boolValue(r.recentAbuse) }
func (r *Record) IsBlacklisted() (bool, bool)     { return boolValue(r.isBlacklisted) }
func (r *Record) IsPrivate() (bool, bool)         { return boolValue(r.isPrivate) }
func (r *Record) IsMobile() (bool, bool)          { return boolValue(r.isMobile) }
func (r *Record) HasOpenPorts() (bool, bool)      { return boolValue(r.hasOpenPorts) }
func (r *Record) IsHostingProvider() (bool, bool) { return boolValue(r.isHostingProvider) }
func (r *Record) ActiveVPN() (bool, bool)         { return boolValue(r.activeVPN) }
func (r *Record) ActiveTor() (bool, bool)         { return boolValue(r.activeTor) }
func (r *Record) PublicAccessPoint() (bool, bool) { return boolValue(r.publicAccessPoint) }

func (r *Record) Country() (string, bool)      { return stringValue(r.country) }
func (r *Record) City() (string, bool)         { return stringValue(r.city) }
func (r *Record) Region() (string, bool)       { return stringValue(r.region) }
func (r *Record) ISP() (string, bool)          { return stringValue(r.isp) }
func (r *Record) Organization() (string, bool) { return stringValue(r.organization) }
func (r *Record) Timezone() (string, bool)     { return stringValue(r.timezone) }

// ASN reports the autonomous system number. The publisher writes 0 for
// nonexistent ASNs; that still reports as a present value so the caller can
// decide.
func (r *Record) ASN() (uint64, bool) {
	if r.asn == nil {
		return 0, false
	}
	return *r.asn, true
}

func (r *Record) Latitude() (float32, bool) {
	if r.latitude == nil {
		return 0, false
	}
	return *r.latitude, true
}

func (r *Record) Longitude() (float32, bool) {
	if r.longitude == nil {
		return 0, false
	}
	return *r.longitude, true
}

// FraudScore reports the score at the given strictness level, if the file
// carries that level.
func (r *Record) FraudScore(strictness Strictness) (uint32, bool) {
	if strictness > StrictnessThree {
		return 0, false
	}
	score := r.fraudScore[strictness]
	if score == nil {
		return 0, false
	}
	return *score, true
}

// Columns reports the decoded record slots in column table order.
func (r *Record) Columns() []ColumnValue {
	columns := make([]ColumnValue, len(r.columns))
	copy(columns, r.columns)
	return columns
}

// Clone returns an independent copy of the record.
func (r *Record) Clone() *Record {
	clone := *r
	clone.columns = r.Columns()
	return &clone
}

func boolValue(value *bool) (bool, bool) {
	if value == nil {
		return false, false
	}
	return *value, true
}

func stringValue(value *string) (string, bool) {
	if value == nil {
		return "", false
	}
	return *value, true
}

func formatBool(value *bool) string {
	if value == nil {
		return "N/A"
	}
	return strconv.FormatBool(*value)
}

func formatString(value *string) string {
	if value == nil {
		return "N/A"
	}
	return *value
}

func formatScore(value *uint32) string {
	if value == nil {
		return "N/A"
	}
	return strconv.FormatUint(uint64(*value), 10)
}

// String renders the record as human-readable text, one field per line,
// with "N/A" standing in for anything the file does not carry.
func (r *Record) String() string {
	var builder strings.Builder
	writeLine := func(name, value string) {
		builder.WriteString(name)
		builder.WriteString(": ")
		builder.WriteString(value)
		builder.WriteString("\n")
	}
	writeLine("Connection Type", r.connectionType)
	writeLine("Abuse Velocity", r.abuseVelocity)
	writeLine("Country", formatString(r.country))
	writeLine("City", formatString(r.city))
	writeLine("Region", formatString(r.region))
	writeLine("ISP", formatString(r.isp))
	writeLine("Organization", formatString(r.organization))
	if r.asn != nil {
		writeLine("ASN", strconv.FormatUint(*r.asn, 10))
	} else {
		writeLine("ASN", "N/A")
	}
	writeLine("Timezone", formatString(r.timezone))
	if r.latitude != nil {
		writeLine("Latitude", strconv.FormatFloat(float64(*r.latitude), 'f', -1, 32))
	} else {
		writeLine("Latitude", "N/A")
	}
	if r.longitude != nil {
		writeLine("Longitude", strconv.FormatFloat(float64(*r.longitude), 'f', -1, 32))
	} else {
		writeLine("Longitude", "N/A")
	}
	builder.WriteString("Fraud Score:\n")
	for level, score := range r.fraudScore {
		writeLine(fmt.Sprint("    Strictness (", level, ")"), formatScore(score))
	}
	writeLine("Is Proxy", formatBool(r.isProxy))
	writeLine("Is VPN", formatBool(r.isVPN))
	writeLine("Is Tor", formatBool(r.isTor))
	writeLine("Is Crawler", formatBool(r.isCrawler))
	writeLine("Is Bot", formatBool(r.isBot))
	writeLine("Recent Abuse", formatBool(r.recentAbuse))
	writeLine("Is Blacklisted", formatBool(r.isBlacklisted))
	writeLine("Is Private", formatBool(r.isPrivate))
	writeLine("Is Mobile", formatBool(r.isMobile))
	writeLine("Has Open Ports", formatBool(r.hasOpenPorts))
	writeLine("Is Hosting Provider", formatBool(r.isHostingProvider))
	writeLine("Active VPN", formatBool(r.activeVPN))
	writeLine("Active Tor", formatBool(r.activeTor))
	writeLine("Public Access Point", formatBool(r.publicAccessPoint))
	return strings.TrimSuffix(builder.String(), "\n")
}

type recordJSON struct {
	ConnectionType    string      `json:"connection_type"`
	AbuseVelocity     string      `json:"abuse_velocity"`
	Country           *string     `json:"country,omitempty"`
	City              *string     `json:"city,omitempty"`
	Region            *string     `json:"region,omitempty"`
	ISP               *string     `json:"isp,omitempty"`
	Organization      *string     `json:"organization,omitempty"`
	ASN               *uint64     `json:"asn,omitempty"`
	Timezone          *string     `json:"timezone,omitempty"`
	Latitude          *float32    `json:"latitude,omitempty"`
	Longitude         *float32    `json:"longitude,omitempty"`
	FraudScore        [4]*uint32  `json:"fraud_score"`
	IsProxy           *bool       `json:"is_proxy,omitempty"`
	IsVPN             *bool       `json:"is_vpn,omitempty"`
	IsTor             *bool       `json:"is_tor,omitempty"`
	IsCrawler         *bool       `json:"is_crawler,omitempty"`
	IsBot             *bool       `json:"is_bot,omitempty"`
	RecentAbuse       *bool       `json:"recent_abuse,omitempty"`
	IsBlacklisted     *bool       `json:"is_blacklisted,omitempty"`
	IsPrivate         *bool       `json:"is_private,omitempty"`
	IsMobile          *bool       `json:"is_mobile,omitempty"`
	HasOpenPorts      *bool       `json:"has_open_ports,omitempty"`
	IsHostingProvider *bool       `json:"is_hosting_provider,omitempty"`
	ActiveVPN         *bool       `json:"active_vpn,omitempty"`
	ActiveTor         *bool       `json:"active_tor,omitempty"`
	PublicAccessPoint *bool       `json:"public_access_point,omitempty"`
}

// MarshalJSON serializes the record with absent fields omitted; fraud scores
// serialize as a four-entry array with null for missing levels.
func (r *Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(recordJSON{
		ConnectionType:    r.connectionType,
		AbuseVelocity:     r.abuseVelocity,
		Country:           r.country,
		City:              r.city,
		Region:            r.region,
		ISP:               r.isp,
		Organization:      r.organization,
		ASN:               r.asn,
		Timezone:          r.timezone,
		Latitude:          r.latitude,
		Longitude:         r.longitude,
		FraudScore:        r.fraudScore,
		IsProxy:           r.isProxy,
		IsVPN:             r.isVPN,
		IsTor:             r.isTor,
		IsCrawler:         r.isCrawler,
		IsBot:             r.isBot,
		RecentAbuse:       r.recentAbuse,
		IsBlacklisted:     r.isBlacklisted,
		IsPrivate:         r.isPrivate,
		IsMobile:          r.isMobile,
		HasOpenPorts:      r.hasOpenPorts,
		IsHostingProvider: r.isHostingProvider,
		ActiveVPN:         r.activeVPN,
		ActiveTor:         r.activeTor,
		PublicAccessPoint: r.publicAccessPoint,
	})
}
