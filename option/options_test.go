package option

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"log": {"level": "debug", "format": "json"},
		"ipv4_database": {"path": "/var/lib/ipqs/ipv4.ipqs", "mode": "mmap"},
		"ipv6_database": {"path": "/var/lib/ipqs/ipv6.ipqs", "mode": "file"},
		"asn_database": {"path": "/var/lib/ipqs/asn.mmdb"}
	}`), 0o644))

	options, err := ReadFile(path)
	require.NoError(t, err)
	require.NotNil(t, options.Log)
	require.Equal(t, "debug", options.Log.Level)
	require.NotNil(t, options.IPv4Database)
	require.Equal(t, DatabaseModeMapped, options.IPv4Database.Mode)
	require.NotNil(t, options.IPv6Database)
	require.Equal(t, DatabaseModeFile, options.IPv6Database.Mode)
	require.NotNil(t, options.ASNDatabase)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
