//go:build !unix

package ipqsdb

import (
	E "github.com/sagernet/sing/common/exceptions"
)

// Memory mapping is only wired up for unix-like platforms; Open falls back
// to loading the file into memory elsewhere.
func newMappedSource(path string) (Source, error) {
	return nil, E.New("memory mapping not supported on this platform")
}
