package option

import (
	"os"

	"github.com/sagernet/sing/common/json"
)

// Options is the top-level configuration. Each database file holds exactly
// one address family; configure one entry per family in use.
type Options struct {
	Log          *LogOptions      `json:"log,omitempty"`
	IPv4Database *DatabaseOptions `json:"ipv4_database,omitempty"`
	IPv6Database *DatabaseOptions `json:"ipv6_database,omitempty"`
	ASNDatabase  *ASNOptions      `json:"asn_database,omitempty"`
}

// ReadFile loads options from a JSON configuration file.
func ReadFile(path string) (Options, error) {
	var options Options
	content, err := os.ReadFile(path)
	if err != nil {
		return options, err
	}
	err = json.Unmarshal(content, &options)
	return options, err
}
